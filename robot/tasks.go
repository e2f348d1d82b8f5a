package robot

import (
	"github.com/pkg/errors"
)

// TaskModeSingleCycle - однократное выполнение программы (2 - циклическое, 3 - пошаговое).
const TaskModeSingleCycle int32 = 1

// CollisionVariable - переменная контроллера, в которую программа пишет флаг столкновения.
const CollisionVariable = "I1"

// StartTask получает дескриптор задачи name с опцией option и запускает её однократно.
// Дескриптор остаётся за сессией и освобождается при Disconnect; повторный вызов с той же
// парой name/option использует его снова.
func (s *Session) StartTask(name, option string) (uint32, error) {
	const op = "StartTask"
	link, err := s.requireLink(op)
	if err != nil {
		return 0, err
	}

	key := taskKey(name, option)
	h, ok := s.handles.Lookup(HandleTask, key)
	if !ok {
		h, err = link.ControllerGetTask(s.handles.Controller(), name, option)
		if err != nil {
			return 0, s.handleFault(op, err)
		}
		s.handles.Track(HandleTask, h, key)
	}

	if err := link.TaskStart(h, TaskModeSingleCycle, ""); err != nil {
		return h, s.handleFault(op, errors.Wrapf(err, "start task %s", name))
	}
	s.log.WithField("task", name).Info("task started")
	return h, nil
}

// StopTask останавливает задачу name. Используется дескриптор, полученный без опции.
func (s *Session) StopTask(name string) error {
	const op = "StopTask"
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}

	key := taskKey(name, "")
	h, ok := s.handles.Lookup(HandleTask, key)
	if !ok {
		h, err = link.ControllerGetTask(s.handles.Controller(), name, "")
		if err != nil {
			return s.handleFault(op, err)
		}
		s.handles.Track(HandleTask, h, key)
	}

	if err := link.TaskStop(h, TaskModeSingleCycle, ""); err != nil {
		return s.handleFault(op, errors.Wrapf(err, "stop task %s", name))
	}
	s.log.WithField("task", name).Info("task stopped")
	return nil
}

// EstablishCollisionVariable получает дескриптор переменной флага столкновения.
// Освобождать через ReleaseVariable после окончания опроса.
func (s *Session) EstablishCollisionVariable() (uint32, error) {
	return s.acquireVariable("EstablishCollisionVariable", CollisionVariable)
}

// PollCollisionFlag читает текущее значение флага столкновения.
func (s *Session) PollCollisionFlag(h uint32) (int, error) {
	const op = "PollCollisionFlag"
	link, err := s.requireLink(op)
	if err != nil {
		return 0, err
	}
	v, err := link.VariableGetValue(h)
	if err != nil {
		return 0, s.handleFault(op, err)
	}
	flag, err := toInt(v)
	if err != nil {
		return 0, s.handleFault(op, err)
	}
	return flag, nil
}

// ReleaseVariable освобождает дескриптор переменной. Нулевой дескриптор игнорируется.
func (s *Session) ReleaseVariable(h uint32) error {
	const op = "ReleaseVariable"
	if h == 0 {
		return nil
	}
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}
	s.handles.Untrack(HandleVariable, h)
	if err := link.VariableRelease(h); err != nil {
		return s.handleFault(op, err)
	}
	s.log.WithField("handle", h).Debug("released variable")
	return nil
}

// WriteVariable записывает value в переменную контроллера name.
func (s *Session) WriteVariable(name string, value interface{}) error {
	const op = "WriteVariable"
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}
	h, err := s.acquireVariable(op, name)
	if err != nil {
		return err
	}
	defer func() { _ = s.ReleaseVariable(h) }()

	if err := link.VariablePutValue(h, value); err != nil {
		return s.handleFault(op, errors.Wrapf(err, "write %s", name))
	}
	return nil
}

func (s *Session) acquireVariable(op, name string) (uint32, error) {
	link, err := s.requireLink(op)
	if err != nil {
		return 0, err
	}
	h, err := link.ControllerGetVariable(s.handles.Controller(), name, "")
	if err != nil {
		return 0, s.handleFault(op, errors.Wrapf(err, "get variable %s", name))
	}
	s.handles.Track(HandleVariable, h, name)
	return h, nil
}

func taskKey(name, option string) string {
	if option == "" {
		return name
	}
	return name + "@" + option
}
