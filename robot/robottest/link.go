// Package robottest содержит записывающую заглушку robot.Link для тестов.
package robottest

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iwtcode/densoAdapter/bcap"
	"github.com/iwtcode/densoAdapter/robot"
)

// Call - один вызов Link. Для *Execute в Command лежит имя команды.
type Call struct {
	Method  string
	Command string
	Handle  uint32
	Args    []interface{}
}

// Key возвращает "Method" или "Method:Command".
func (c Call) Key() string {
	if c.Command != "" {
		return c.Method + ":" + c.Command
	}
	return c.Method
}

// Node - файл или каталог в дереве программ контроллера.
// Имя каталога заканчивается на "\".
type Node struct {
	Name     string
	Content  string
	Children []*Node
}

// Link записывает вызовы и отвечает по сценарию.
type Link struct {
	mu sync.Mutex

	Pos               []float64
	Serial            string
	RobotType         string
	Variables         map[string]interface{}
	Files             []*Node
	ErrorDescriptions map[int32]string

	calls    []Call
	failures map[string][]error
	next     uint32
	vars     map[uint32]string
	tasks    map[uint32]string
	files    map[uint32]*Node
	closed   bool

	DialHost string
	DialPort int
}

var _ robot.Link = (*Link)(nil)

// New создаёт заглушку с позой (100, 0, 300, 180, 0, 180, -1) и режимом Auto.
func New() *Link {
	return &Link{
		Pos:               []float64{100, 0, 300, 180, 0, 180, -1},
		Serial:            "ABC123",
		RobotType:         "COBOTTA",
		Variables:         map[string]interface{}{"@Mode": int32(3), "@VERSION": "2.16.1"},
		ErrorDescriptions: map[int32]string{},
		failures:          map[string][]error{},
		vars:              map[uint32]string{},
		tasks:             map[uint32]string{},
		files:             map[uint32]*Node{},
	}
}

// Dialer возвращает robot.Dialer, который всегда отдаёт эту заглушку.
func (l *Link) Dialer() robot.Dialer {
	return func(host string, port int, _ time.Duration) (robot.Link, error) {
		l.mu.Lock()
		l.DialHost, l.DialPort = host, port
		l.closed = false
		l.mu.Unlock()
		return l, nil
	}
}

// Remote возвращает ошибку контроллера с кодом code.
func Remote(code int32) error {
	return &bcap.HResultError{HResult: bcap.HResult(code)}
}

// FailNext ставит err ответом на следующий вызов с ключом key ("Motor" -> "RobotExecute:Motor").
func (l *Link) FailNext(key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key] = append(l.failures[key], err)
}

func (l *Link) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Methods возвращает ключи вызовов по порядку.
func (l *Link) Methods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.Key()
	}
	return out
}

func (l *Link) Count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Key() == key {
			n++
		}
	}
	return n
}

// Last возвращает последний вызов с ключом key.
func (l *Link) Last(key string) (Call, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.calls) - 1; i >= 0; i-- {
		if l.calls[i].Key() == key {
			return l.calls[i], true
		}
	}
	return Call{}, false
}

func (l *Link) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *Link) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// record вызывается под l.mu.
func (l *Link) record(method, command string, h uint32, args ...interface{}) error {
	c := Call{Method: method, Command: command, Handle: h, Args: args}
	l.calls = append(l.calls, c)
	if q := l.failures[c.Key()]; len(q) > 0 {
		l.failures[c.Key()] = q[1:]
		return q[0]
	}
	return nil
}

func (l *Link) handle() uint32 {
	l.next++
	return l.next
}

func (l *Link) ServiceStart(option string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("ServiceStart", "", 0, option)
}

func (l *Link) ServiceStop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("ServiceStop", "", 0)
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return l.record("Close", "", 0)
}

func (l *Link) ControllerConnect(name, provider, machine, option string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("ControllerConnect", "", 0, name, provider, machine, option); err != nil {
		return 0, err
	}
	return l.handle(), nil
}

func (l *Link) ControllerDisconnect(h uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("ControllerDisconnect", "", h)
}

func (l *Link) ControllerGetRobot(h uint32, name, option string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("ControllerGetRobot", "", h, name, option); err != nil {
		return 0, err
	}
	return l.handle(), nil
}

func (l *Link) ControllerGetVariable(h uint32, name, option string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("ControllerGetVariable", "", h, name, option); err != nil {
		return 0, err
	}
	v := l.handle()
	l.vars[v] = name
	return v, nil
}

func (l *Link) ControllerGetTask(h uint32, name, option string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("ControllerGetTask", "", h, name, option); err != nil {
		return 0, err
	}
	t := l.handle()
	l.tasks[t] = name
	return t, nil
}

func (l *Link) ControllerGetFile(h uint32, name, option string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("ControllerGetFile", "", h, name, option); err != nil {
		return 0, err
	}
	return l.open(l.Files, name)
}

func (l *Link) ControllerGetFileNames(h uint32, option string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("ControllerGetFileNames", "", h, option); err != nil {
		return nil, err
	}
	return names(l.Files), nil
}

func (l *Link) ControllerExecute(h uint32, command string, param interface{}) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("ControllerExecute", command, h, param); err != nil {
		return nil, err
	}
	switch command {
	case "SysInfo":
		return l.Serial, nil
	case "GetErrorDescription":
		code, _ := param.(int32)
		if d, ok := l.ErrorDescriptions[code]; ok {
			return d, nil
		}
		return "unknown error", nil
	}
	return nil, nil
}

func (l *Link) RobotExecute(h uint32, command string, param interface{}) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("RobotExecute", command, h, param); err != nil {
		return nil, err
	}
	switch command {
	case "CurPos":
		return append([]float64(nil), l.Pos...), nil
	case "GetRobotTypeName":
		return l.RobotType, nil
	case "Dev":
		return dev(param)
	}
	return nil, nil
}

func (l *Link) RobotMove(h uint32, comp int32, pose interface{}, option string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("RobotMove", "", h, comp, pose, option)
}

func (l *Link) RobotRelease(h uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("RobotRelease", "", h)
}

func (l *Link) TaskStart(h uint32, mode int32, option string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("TaskStart", "", h, mode, option)
}

func (l *Link) TaskStop(h uint32, mode int32, option string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("TaskStop", "", h, mode, option)
}

func (l *Link) TaskRelease(h uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("TaskRelease", "", h)
}

func (l *Link) VariableGetValue(h uint32) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("VariableGetValue", "", h); err != nil {
		return nil, err
	}
	if v, ok := l.Variables[l.vars[h]]; ok {
		return v, nil
	}
	return int32(0), nil
}

func (l *Link) VariablePutValue(h uint32, value interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("VariablePutValue", "", h, value); err != nil {
		return err
	}
	if name, ok := l.vars[h]; ok {
		l.Variables[name] = value
	}
	return nil
}

func (l *Link) VariableRelease(h uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("VariableRelease", "", h)
}

func (l *Link) FileGetFile(h uint32, name, option string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("FileGetFile", "", h, name, option); err != nil {
		return 0, err
	}
	parent, ok := l.files[h]
	if !ok {
		return 0, fmt.Errorf("robottest: unknown file handle %d", h)
	}
	return l.open(parent.Children, name)
}

func (l *Link) FileGetFileNames(h uint32, option string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("FileGetFileNames", "", h, option); err != nil {
		return nil, err
	}
	parent, ok := l.files[h]
	if !ok {
		return nil, fmt.Errorf("robottest: unknown file handle %d", h)
	}
	return names(parent.Children), nil
}

func (l *Link) FileGetValue(h uint32) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("FileGetValue", "", h); err != nil {
		return nil, err
	}
	return l.files[h].Content, nil
}

func (l *Link) FileGetName(h uint32) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("FileGetName", "", h); err != nil {
		return "", err
	}
	return l.files[h].Name, nil
}

func (l *Link) FileRelease(h uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record("FileRelease", "", h)
}

func (l *Link) open(nodes []*Node, name string) (uint32, error) {
	for _, n := range nodes {
		if n.Name == name {
			h := l.handle()
			l.files[h] = n
			return h, nil
		}
	}
	return 0, fmt.Errorf("robottest: no file %q", name)
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

// dev складывает позу из [[pose, "P"], "P(dx, ...)"] со смещением.
func dev(param interface{}) (interface{}, error) {
	args, ok := param.([]interface{})
	if !ok || len(args) != 2 {
		return nil, fmt.Errorf("robottest: bad Dev param %#v", param)
	}
	pair, ok := args[0].([]interface{})
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("robottest: bad Dev base %#v", args[0])
	}
	base, ok := pair[0].([]float64)
	if !ok {
		return nil, fmt.Errorf("robottest: bad Dev pose %#v", pair[0])
	}
	lit, _ := args[1].(string)
	if !strings.HasPrefix(lit, "P(") || !strings.HasSuffix(lit, ")") {
		return nil, fmt.Errorf("robottest: bad Dev offset %q", lit)
	}

	out := append([]float64(nil), base...)
	for i, part := range strings.Split(lit[2:len(lit)-1], ",") {
		d, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		if i < len(out) {
			out[i] += d
		}
	}
	return out, nil
}
