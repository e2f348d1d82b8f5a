package denso

import (
	"context"
	"time"

	"github.com/iwtcode/densoAdapter/internal/logging"
	"github.com/iwtcode/densoAdapter/models"
	"github.com/iwtcode/densoAdapter/robot"
	"github.com/sirupsen/logrus"
)

// Client является основной точкой входа для взаимодействия с библиотекой.
type Client struct {
	session *robot.Session
	config  *Config
	logger  *logrus.Logger
}

// New создает клиента и подключается к контроллеру по b-CAP.
func New(cfg *Config) (*Client, error) {
	return NewWithDialer(cfg, robot.DialBCAP)
}

// NewWithDialer - то же, что New, но с заданным способом открытия соединения.
func NewWithDialer(cfg *Config, dialer robot.Dialer) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(&logging.Config{
		Level:   cfg.LogLevel,
		LogsDir: cfg.LogDir,
	})

	session := robot.NewSession(robot.Options{
		Dialer:        dialer,
		Timeout:       cfg.Timeout(),
		ServiceOption: cfg.ServiceOption,
		Speed:         int32(cfg.Speed),
		Logger:        logger,
	})

	if err := session.Connect(cfg.Address(), cfg.Variant(), cfg.SessionName); err != nil {
		_ = session.Close()
		return nil, err
	}

	return &Client{
		session: session,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Close освобождает руку и контроллер и закрывает соединение. Безопасен при повторном вызове.
func (c *Client) Close() error {
	return c.session.Close()
}

// GetLogger возвращает используемый логгер.
func (c *Client) GetLogger() *logrus.Logger {
	return c.logger
}

// Session возвращает сессию для операций, которых нет в Client.
func (c *Client) Session() *robot.Session {
	return c.session
}

func (c *Client) ClearErrors() error {
	return c.session.ClearErrors()
}

func (c *Client) Reconnect() error {
	return c.session.Reconnect()
}

// StandbyOn захватывает руку и включает моторы.
func (c *Client) StandbyOn() error {
	return c.session.StandbyOn()
}

// StandbyOff освобождает руку и выключает моторы.
func (c *Client) StandbyOff() error {
	return c.session.StandbyOff()
}

func (c *Client) SetExecutableToken(token string) error {
	return c.session.SetExecutableToken(token)
}

func (c *Client) ExecuteCalset() error {
	return c.session.ExecuteCalset()
}

// Move смещает руку относительно последней заданной позы.
func (c *Client) Move(dev robot.Deviation) (robot.Pose, error) {
	return c.session.MoveByDeviation(dev)
}

// Home ведёт руку в исходную позу.
func (c *Client) Home() error {
	return c.session.GoToStartPosition()
}

// GetTelemetry возвращает режим работы и текущую позу.
func (c *Client) GetTelemetry() (*models.Telemetry, error) {
	return c.session.ReadTelemetry()
}

// GetBaseInfo возвращает серийный номер, тип руки и версию контроллера.
func (c *Client) GetBaseInfo() (*models.BaseInfo, error) {
	return c.session.ReadBaseInfo()
}

// ArchivePrograms выгружает программы контроллера в dir. Если dir пуст, используется
// DENSO_ARCHIVE_DIR, а если пуст и он - идентификатор контроллера из GetBaseInfo.
func (c *Client) ArchivePrograms(dir string) (*models.ArchiveReport, error) {
	if dir == "" {
		dir = c.config.ArchiveDir
	}
	if dir == "" {
		info, err := c.session.ReadBaseInfo()
		if err != nil {
			return &models.ArchiveReport{}, err
		}
		dir = info.Identifier()
	}
	return c.session.SaveAllProgramFiles(dir)
}

func (c *Client) StartTask(name, option string) (uint32, error) {
	return c.session.StartTask(name, option)
}

func (c *Client) StopTask(name string) error {
	return c.session.StopTask(name)
}

func (c *Client) WriteVariable(name string, value interface{}) error {
	return c.session.WriteVariable(name, value)
}

// StartPolling запускает опрос телеметрии с интервалом из конфигурации, если interval не задан.
func (c *Client) StartPolling(ctx context.Context, interval time.Duration) <-chan robot.PollingResult {
	if interval <= 0 {
		interval = c.config.MonitorInterval()
	}
	return c.session.StartPolling(ctx, interval)
}

// WatchCollision опрашивает флаг столкновения, пока не отменён ctx.
func (c *Client) WatchCollision(ctx context.Context, interval time.Duration, onHit func(flag int)) error {
	if interval <= 0 {
		interval = c.config.MonitorInterval()
	}
	return c.session.WatchCollision(ctx, interval, onHit)
}
