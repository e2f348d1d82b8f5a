package bcap

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/iwtcode/densoAdapter/internal/metrics"
	"github.com/pkg/errors"
)

// DefaultPort - TCP-порт b-CAP сервера контроллера.
const DefaultPort = 5007

// Client - b-CAP клиент поверх одного TCP-соединения.
// Вызовы сериализуются: следующий запрос уходит только после ответа на предыдущий.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	mu      sync.Mutex
	serial  uint16
}

// Dial подключается к b-CAP серверу контроллера.
func Dial(host string, port int, timeout time.Duration) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &TransportError{Op: "dial " + addr, Err: err}
	}
	return NewClient(conn, timeout), nil
}

// NewClient оборачивает уже открытое соединение.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// Close закрывает соединение. Повторный вызов ничего не делает.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// invoke отправляет запрос и ждёт ответа с тем же serial.
// Промежуточные ответы S_EXECUTING продлевают ожидание.
func (c *Client) invoke(id FuncID, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, &TransportError{Op: id.String(), Err: ErrClosed}
	}

	c.serial++
	if c.serial == 0 {
		c.serial = 1
	}
	req := &packet{serial: c.serial, id: int32(id), args: args}
	data, err := req.MarshalBinary()
	if err != nil {
		return nil, errors.Wrapf(err, "bcap: encode %s", id)
	}

	start := time.Now()
	defer func() {
		metrics.RPCDuration.WithLabelValues(id.String()).Observe(time.Since(start).Seconds())
	}()
	metrics.RPCCalls.WithLabelValues(id.String()).Inc()

	c.extendDeadline()
	if _, err := c.conn.Write(data); err != nil {
		return nil, &TransportError{Op: id.String(), Err: err}
	}

	for {
		resp, err := readPacket(c.conn)
		if err != nil {
			return nil, &TransportError{Op: id.String(), Err: err}
		}
		if resp.serial != c.serial {
			continue
		}
		hr := HResult(resp.id)
		if hr == SExecuting {
			c.extendDeadline()
			continue
		}
		if hr.Failed() {
			return nil, &HResultError{Func: id, HResult: hr}
		}
		if len(resp.args) == 0 {
			return nil, nil
		}
		return resp.args[0], nil
	}
}

func (c *Client) extendDeadline() {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
}

func (c *Client) invokeHandle(id FuncID, args ...interface{}) (uint32, error) {
	v, err := c.invoke(id, args...)
	if err != nil {
		return 0, err
	}
	return asHandle(id, v)
}

func (c *Client) invokeStrings(id FuncID, args ...interface{}) ([]string, error) {
	v, err := c.invoke(id, args...)
	if err != nil {
		return nil, err
	}
	return asStrings(id, v)
}

func (c *Client) invokeNone(id FuncID, args ...interface{}) error {
	_, err := c.invoke(id, args...)
	return err
}

// --- Service ---

func (c *Client) ServiceStart(option string) error {
	return c.invokeNone(FuncServiceStart, option)
}

func (c *Client) ServiceStop() error {
	return c.invokeNone(FuncServiceStop)
}

// --- Controller ---

func (c *Client) ControllerConnect(name, provider, machine, option string) (uint32, error) {
	return c.invokeHandle(FuncControllerConnect, name, provider, machine, option)
}

func (c *Client) ControllerDisconnect(h uint32) error {
	return c.invokeNone(FuncControllerDisconnect, int32(h))
}

func (c *Client) ControllerGetRobot(h uint32, name, option string) (uint32, error) {
	return c.invokeHandle(FuncControllerGetRobot, int32(h), name, option)
}

func (c *Client) ControllerGetVariable(h uint32, name, option string) (uint32, error) {
	return c.invokeHandle(FuncControllerGetVariable, int32(h), name, option)
}

func (c *Client) ControllerGetTask(h uint32, name, option string) (uint32, error) {
	return c.invokeHandle(FuncControllerGetTask, int32(h), name, option)
}

func (c *Client) ControllerGetFile(h uint32, name, option string) (uint32, error) {
	return c.invokeHandle(FuncControllerGetFile, int32(h), name, option)
}

func (c *Client) ControllerGetFileNames(h uint32, option string) ([]string, error) {
	return c.invokeStrings(FuncControllerGetFileNames, int32(h), option)
}

func (c *Client) ControllerExecute(h uint32, command string, param interface{}) (interface{}, error) {
	return c.invoke(FuncControllerExecute, int32(h), command, param)
}

// --- Robot ---

func (c *Client) RobotExecute(h uint32, command string, param interface{}) (interface{}, error) {
	return c.invoke(FuncRobotExecute, int32(h), command, param)
}

func (c *Client) RobotMove(h uint32, comp int32, pose interface{}, option string) error {
	return c.invokeNone(FuncRobotMove, int32(h), comp, pose, option)
}

func (c *Client) RobotRelease(h uint32) error {
	return c.invokeNone(FuncRobotRelease, int32(h))
}

// --- Task ---

func (c *Client) TaskStart(h uint32, mode int32, option string) error {
	return c.invokeNone(FuncTaskStart, int32(h), mode, option)
}

func (c *Client) TaskStop(h uint32, mode int32, option string) error {
	return c.invokeNone(FuncTaskStop, int32(h), mode, option)
}

func (c *Client) TaskRelease(h uint32) error {
	return c.invokeNone(FuncTaskRelease, int32(h))
}

// --- Variable ---

func (c *Client) VariableGetValue(h uint32) (interface{}, error) {
	return c.invoke(FuncVariableGetValue, int32(h))
}

func (c *Client) VariablePutValue(h uint32, value interface{}) error {
	return c.invokeNone(FuncVariablePutValue, int32(h), value)
}

func (c *Client) VariableRelease(h uint32) error {
	return c.invokeNone(FuncVariableRelease, int32(h))
}

// --- File ---

func (c *Client) FileGetFile(h uint32, name, option string) (uint32, error) {
	return c.invokeHandle(FuncFileGetFile, int32(h), name, option)
}

func (c *Client) FileGetFileNames(h uint32, option string) ([]string, error) {
	return c.invokeStrings(FuncFileGetFileNames, int32(h), option)
}

func (c *Client) FileGetValue(h uint32) (interface{}, error) {
	return c.invoke(FuncFileGetValue, int32(h))
}

func (c *Client) FileGetName(h uint32) (string, error) {
	v, err := c.invoke(FuncFileGetName, int32(h))
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("bcap: %s returned %T, want string", FuncFileGetName, v)
	}
	return s, nil
}

func (c *Client) FileRelease(h uint32) error {
	return c.invokeNone(FuncFileRelease, int32(h))
}

func asHandle(id FuncID, v interface{}) (uint32, error) {
	switch x := v.(type) {
	case int32:
		return uint32(x), nil
	case uint32:
		return x, nil
	case int16:
		return uint32(x), nil
	}
	return 0, errors.Errorf("bcap: %s returned %T, want handle", id, v)
}

func asStrings(id FuncID, v interface{}) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{x}, nil
	case []string:
		return x, nil
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, errors.Errorf("bcap: %s returned %T element, want string", id, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errors.Errorf("bcap: %s returned %T, want names", id, v)
}
