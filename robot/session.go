package robot

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iwtcode/densoAdapter/bcap"
	"github.com/iwtcode/densoAdapter/internal/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ControllerVariant - поколение контроллера.
type ControllerVariant string

const (
	RC8 ControllerVariant = "RC8"
	RC9 ControllerVariant = "RC9"
)

// Provider возвращает имя CAO-провайдера для варианта контроллера.
func (v ControllerVariant) Provider() (string, error) {
	switch v {
	case RC8:
		return "CaoProv.DENSO.VRC", nil
	case RC9:
		return "CaoProv.DENSO.VRC9", nil
	}
	return "", errors.Wrapf(ErrUnknownVariant, "%q", string(v))
}

// State - состояние сессии.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateStandby // рука захвачена, моторы включены
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateStandby:
		return "standby"
	default:
		return "disconnected"
	}
}

type MotorState int

const (
	MotorOff MotorState = iota
	MotorOn
)

const (
	// DefaultTimeout - таймаут соединения и каждого вызова.
	DefaultTimeout = 2000 * time.Millisecond
	// DefaultSpeed - внешняя скорость (%) при возврате в исходную позу.
	DefaultSpeed int32 = 75

	connectSuffix  = "_App"
	connectMachine = "localhost"
	armName        = "arm"
	modeVariable   = "@Mode"
)

// Options - параметры сессии. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	Dialer        Dialer
	Timeout       time.Duration
	ServiceOption string
	Speed         int32
	Logger        *logrus.Logger
}

type connectParams struct {
	address string
	variant ControllerVariant
	name    string
}

// Session - одна сессия с контроллером: свой Link и свой набор дескрипторов.
// Вызовы одной сессии не предназначены для параллельного использования,
// мьютекс защищает только поля состояния для опроса из другой горутины.
type Session struct {
	id      string
	opts    Options
	log     *logrus.Entry
	handles HandleRegistry

	mu     sync.Mutex
	link   Link
	target Pose
	robPos Pose
	state  State
	motor  MotorState
	last   *connectParams
}

// NewSession создаёт сессию в состоянии Disconnected. Соединение не открывается.
func NewSession(opts Options) *Session {
	if opts.Dialer == nil {
		opts.Dialer = DialBCAP
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Speed <= 0 {
		opts.Speed = DefaultSpeed
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	id := uuid.NewString()
	return &Session{
		id:   id,
		opts: opts,
		log:  opts.Logger.WithField("session", id),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Motor() MotorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motor
}

// Target возвращает копию последней заданной позы или nil.
func (s *Session) Target() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return nil
	}
	return append(Pose(nil), s.target...)
}

// Position возвращает позу, прочитанную последним CurPos.
func (s *Session) Position() Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.robPos == nil {
		return nil
	}
	return append(Pose(nil), s.robPos...)
}

// Handles даёт доступ к дескрипторам сессии.
func (s *Session) Handles() *HandleRegistry { return &s.handles }

func (s *Session) current() Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

func (s *Session) setTarget(p Pose) {
	s.mu.Lock()
	s.target = p
	s.mu.Unlock()
}

func (s *Session) setRobPos(p Pose) {
	s.mu.Lock()
	s.robPos = p
	s.mu.Unlock()
}

func (s *Session) clearTarget() { s.setTarget(nil) }

// requireLink - мягкая проверка: без соединения операция журналируется и пропускается.
func (s *Session) requireLink(op string) (Link, error) {
	link := s.current()
	if link == nil {
		s.log.WithField("op", op).Error("b-CAP client is not initialized")
		return nil, &Fault{Kind: KindTransport, Op: op, Err: ErrLinkNotInitialized}
	}
	return link, nil
}

func (s *Session) execArm(link Link, cmd ArmCommand) (interface{}, error) {
	name, param := cmd.armCommand()
	v, err := link.RobotExecute(s.handles.Arm(), name, param)
	if err != nil {
		return nil, errors.Wrapf(err, "Robot_Execute %s", name)
	}
	return v, nil
}

func (s *Session) execController(link Link, cmd ControllerCommand) (interface{}, error) {
	name, param := cmd.controllerCommand()
	v, err := link.ControllerExecute(s.handles.Controller(), name, param)
	if err != nil {
		return nil, errors.Wrapf(err, "Controller_Execute %s", name)
	}
	return v, nil
}

func (s *Session) readCurPos(link Link) (Pose, error) {
	v, err := s.execArm(link, CurPos{})
	if err != nil {
		return nil, err
	}
	return toPose(v)
}

// Connect открывает b-CAP соединение и получает дескрипторы контроллера, руки и переменной @Mode.
// Успех только при получении всех трёх. Если сессия уже подключена, старые дескрипторы
// сначала освобождаются. При частичном сбое соединение остаётся открытым до Disconnect.
func (s *Session) Connect(address string, variant ControllerVariant, name string) error {
	const op = "Connect"

	provider, err := variant.Provider()
	if err != nil {
		return s.handleFault(op, err)
	}
	host, port, err := splitAddress(address)
	if err != nil {
		return s.handleFault(op, err)
	}

	if s.current() != nil {
		s.log.Info("session is already connected, releasing previous handles")
		_ = s.Disconnect()
	}

	s.mu.Lock()
	s.last = &connectParams{address: address, variant: variant, name: name}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"controller": address, "provider": provider}).Info("connect robot")

	link, err := s.opts.Dialer(host, port, s.opts.Timeout)
	if err != nil {
		return s.handleFault(op, err)
	}
	s.mu.Lock()
	s.link = link
	s.target = nil
	s.mu.Unlock()

	if err := link.ServiceStart(s.opts.ServiceOption); err != nil {
		return s.handleFault(op, err)
	}

	hCtrl, err := link.ControllerConnect(name+connectSuffix, provider, connectMachine, optionIfNotMember)
	if err != nil {
		return s.handleFault(op, err)
	}
	if err := s.handles.SetController(hCtrl); err != nil {
		return s.handleFault(op, err)
	}
	s.log.Info("connected RC")

	hArm, err := link.ControllerGetRobot(hCtrl, armName, optionIfNotMember)
	if err != nil {
		return s.handleFault(op, err)
	}
	if err := s.handles.SetArm(hArm); err != nil {
		return s.handleFault(op, err)
	}

	hMode, err := link.ControllerGetVariable(hCtrl, modeVariable, optionIfNotMember)
	if err != nil {
		return s.handleFault(op, err)
	}
	if err := s.handles.SetMode(hMode); err != nil {
		return s.handleFault(op, err)
	}

	s.mu.Lock()
	s.state = StateConnected
	s.mu.Unlock()
	return nil
}

// StandbyOn захватывает руку и включает моторы.
// Если контроллер отклонил включение моторов из-за чужого исполнительного токена,
// команда Motor повторяется один раз; исходная ошибка всё равно журналируется.
func (s *Session) StandbyOn() error {
	const op = "StandbyOn"
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}
	s.clearTarget()

	if _, err := s.execArm(link, TakeArm{}); err != nil {
		return s.handleFault(op, err)
	}

	if _, err := s.execArm(link, Motor{On: true}); err != nil {
		first := Classify(op, err)
		if !first.RetriesCommand("Motor") {
			return s.handleFault(op, err)
		}
		s.log.Warnf("motor enable rejected with 0x%s, retrying once", FormatCode(first.Code))
		metrics.Retries.WithLabelValues("Motor").Inc()
		_, retryErr := s.execArm(link, Motor{On: true})
		s.handleFault(op, err)
		if retryErr != nil {
			return s.handleFault(op, retryErr)
		}
	}

	pos, err := s.readCurPos(link)
	if err != nil {
		return s.handleFault(op, err)
	}

	s.mu.Lock()
	s.robPos = pos
	s.motor = MotorOn
	s.state = StateStandby
	s.mu.Unlock()
	return nil
}

// StandbyOff освобождает руку и выключает моторы. Заданная поза сбрасывается в любом случае.
func (s *Session) StandbyOff() error {
	const op = "StandbyOff"
	defer s.clearTarget()

	link, err := s.requireLink(op)
	if err != nil {
		return err
	}
	if _, err := s.execArm(link, GiveArm{}); err != nil {
		return s.handleFault(op, err)
	}
	if _, err := s.execArm(link, Motor{On: false}); err != nil {
		return s.handleFault(op, err)
	}

	s.mu.Lock()
	s.motor = MotorOff
	s.state = StateConnected
	s.mu.Unlock()
	return nil
}

// Disconnect освобождает руку, дескрипторы и контроллер, останавливает сервис и закрывает соединение.
// Повторный вызов ничего не делает. Возвращает первую ошибку, остальные только журналируются.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	link := s.link
	s.mu.Unlock()
	if link == nil {
		return nil
	}

	var first error
	report := func(op string, err error) {
		f := s.handleFault(op, err)
		if first == nil {
			first = f
		}
	}

	if _, err := s.execArm(link, GiveArm{}); err != nil {
		s.log.WithError(err).Debug("GiveArm on disconnect failed")
	}

	s.handles.ReleaseAll(link, report)

	if err := link.ServiceStop(); err != nil {
		report("ServiceStop", err)
	}
	if err := link.Close(); err != nil && !errors.Is(err, bcap.ErrClosed) {
		report("Close", err)
	}

	s.mu.Lock()
	s.link = nil
	s.target = nil
	s.motor = MotorOff
	s.state = StateDisconnected
	s.mu.Unlock()

	s.log.Info("b-CAP service stopped")
	return first
}

// Close - синоним Disconnect для использования с defer.
func (s *Session) Close() error {
	return s.Disconnect()
}

func (s *Session) ClearErrors() error {
	const op = "ClearErrors"
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}
	if _, err := s.execController(link, ClearError{}); err != nil {
		return s.handleFault(op, err)
	}
	s.log.Info("cleared errors in robot controller")
	return nil
}

// SetExecutableToken передаёт исполнительный токен интерфейсу token, например "Ethernet".
func (s *Session) SetExecutableToken(token string) error {
	const op = "SetExecutableToken"
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}
	if _, err := s.execController(link, SetExToken{Token: token}); err != nil {
		return s.handleFault(op, err)
	}
	s.log.Infof("set executable token to %s", token)
	return nil
}

// ExecuteCalset выполняет CALSET руки.
func (s *Session) ExecuteCalset() error {
	const op = "ExecuteCalset"
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}
	if _, err := s.execArm(link, AutoCal{}); err != nil {
		return s.handleFault(op, err)
	}
	s.log.Info("executed CALSET")
	return nil
}

// Reconnect переподключается с параметрами последнего Connect, выполняет CALSET и StandbyOn.
// Останавливается на первой ошибке.
func (s *Session) Reconnect() error {
	const op = "Reconnect"
	if _, err := s.requireLink(op); err != nil {
		return err
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return s.handleFault(op, errors.New("no previous connection parameters"))
	}

	if err := s.Connect(last.address, last.variant, last.name); err != nil {
		return err
	}
	if err := s.ExecuteCalset(); err != nil {
		return err
	}
	return s.StandbyOn()
}

// splitAddress разбирает "host" или "host:port". Порт по умолчанию - 5007.
func splitAddress(address string) (string, int, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", 0, errors.Wrap(ErrInvalidAddress, "empty address")
	}
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		if strings.Contains(err.Error(), "missing port") {
			return strings.Trim(address, "[]"), bcap.DefaultPort, nil
		}
		return "", 0, errors.Wrapf(ErrInvalidAddress, "%q: %v", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, errors.Wrapf(ErrInvalidAddress, "%q: bad port", address)
	}
	return host, port, nil
}
