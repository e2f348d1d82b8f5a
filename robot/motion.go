package robot

import (
	"github.com/iwtcode/densoAdapter/internal/metrics"
)

// MoveByDeviation смещает руку на dev относительно последней заданной позы.
// Первая поза берётся из CurPos, дальше смещения накладываются на результат предыдущего
// движения без повторного чтения позиции. Движение ставится в очередь (Next), прихода
// в точку вызов не ждёт. Ошибка возвращается вызывающему.
func (s *Session) MoveByDeviation(dev Deviation) (Pose, error) {
	const op = "MoveByDeviation"
	link, err := s.requireLink(op)
	if err != nil {
		return nil, err
	}

	base := s.Target()
	if base == nil {
		base, err = s.readCurPos(link)
		if err != nil {
			return nil, s.handleFault(op, err)
		}
		s.setTarget(base)
	}

	v, err := s.execArm(link, Dev{Base: base, Offset: dev})
	if err != nil {
		return nil, s.handleFault(op, err)
	}
	next, err := toPose(v)
	if err != nil {
		return nil, s.handleFault(op, err)
	}

	pose := []interface{}{[]float64(next), "P", "@P"}
	if err := link.RobotMove(s.handles.Arm(), InterpolationPTP, pose, MoveNext); err != nil {
		return nil, s.handleFault(op, err)
	}

	s.setTarget(next)
	metrics.Moves.Inc()
	s.log.WithField("deviation", dev.String()).Debug("move queued")
	return append(Pose(nil), next...), nil
}

// GoToStartPosition захватывает руку, задаёт внешнюю скорость и ведёт руку в исходную позу
// в пространстве суставов. После этого рука освобождается дважды и моторы выключаются,
// даже если движение не удалось. Возвращает первую ошибку.
func (s *Session) GoToStartPosition() error {
	const op = "GoToStartPosition"
	link, err := s.requireLink(op)
	if err != nil {
		return err
	}

	var first error
	fail := func(err error) {
		f := s.handleFault(op, err)
		if first == nil {
			first = f
		}
	}

	if _, err := s.execArm(link, TakeArmDefault{}); err != nil {
		fail(err)
	} else if _, err := s.execArm(link, ExtSpeed{Percent: s.opts.Speed}); err != nil {
		fail(err)
	} else if err := link.RobotMove(s.handles.Arm(), InterpolationPTP, StartPosition, ""); err != nil {
		fail(err)
	} else {
		metrics.Moves.Inc()
	}

	// Второй GiveArm на случай, если контроллер не обработал первый.
	for _, cmd := range []ArmCommand{GiveArm{}, GiveArm{}, Motor{On: false}} {
		if _, err := s.execArm(link, cmd); err != nil {
			fail(err)
		}
	}

	s.mu.Lock()
	s.target = nil
	s.motor = MotorOff
	if s.state == StateStandby {
		s.state = StateConnected
	}
	s.mu.Unlock()
	return first
}
