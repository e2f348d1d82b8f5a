package robot

import (
	"time"

	"github.com/iwtcode/densoAdapter/bcap"
)

// Link - удалённые вызовы контроллера, которыми пользуется сессия.
// Реализуется b-CAP клиентом; в тестах подменяется записывающей заглушкой.
type Link interface {
	ServiceStart(option string) error
	ServiceStop() error
	Close() error

	ControllerConnect(name, provider, machine, option string) (uint32, error)
	ControllerDisconnect(h uint32) error
	ControllerGetRobot(h uint32, name, option string) (uint32, error)
	ControllerGetVariable(h uint32, name, option string) (uint32, error)
	ControllerGetTask(h uint32, name, option string) (uint32, error)
	ControllerGetFile(h uint32, name, option string) (uint32, error)
	ControllerGetFileNames(h uint32, option string) ([]string, error)
	ControllerExecute(h uint32, command string, param interface{}) (interface{}, error)

	RobotExecute(h uint32, command string, param interface{}) (interface{}, error)
	RobotMove(h uint32, comp int32, pose interface{}, option string) error
	RobotRelease(h uint32) error

	TaskStart(h uint32, mode int32, option string) error
	TaskStop(h uint32, mode int32, option string) error
	TaskRelease(h uint32) error

	VariableGetValue(h uint32) (interface{}, error)
	VariablePutValue(h uint32, value interface{}) error
	VariableRelease(h uint32) error

	FileGetFile(h uint32, name, option string) (uint32, error)
	FileGetFileNames(h uint32, option string) ([]string, error)
	FileGetValue(h uint32) (interface{}, error)
	FileGetName(h uint32) (string, error)
	FileRelease(h uint32) error
}

var _ Link = (*bcap.Client)(nil)

// Dialer открывает Link к контроллеру.
type Dialer func(host string, port int, timeout time.Duration) (Link, error)

// DialBCAP - Dialer по умолчанию: b-CAP поверх TCP.
func DialBCAP(host string, port int, timeout time.Duration) (Link, error) {
	c, err := bcap.Dial(host, port, timeout)
	if err != nil {
		return nil, err
	}
	return c, nil
}
