package robot

import (
	"fmt"
	"time"

	"github.com/iwtcode/densoAdapter/models"
	"github.com/pkg/errors"
)

const versionVariable = "@VERSION"

// ReadTelemetry читает текущую позу и режим работы. Ничего не кэширует, кроме последней позы.
func (s *Session) ReadTelemetry() (*models.Telemetry, error) {
	const op = "ReadTelemetry"
	link, err := s.requireLink(op)
	if err != nil {
		return nil, err
	}

	pos, err := s.readCurPos(link)
	if err != nil {
		return nil, s.handleFault(op, err)
	}
	s.setRobPos(pos)

	v, err := link.VariableGetValue(s.handles.Mode())
	if err != nil {
		return nil, s.handleFault(op, errors.Wrap(err, "read @Mode"))
	}
	code, err := toInt(v)
	if err != nil {
		return nil, s.handleFault(op, err)
	}

	return &models.Telemetry{
		Mode:      models.ModeFromCode(code),
		ModeCode:  code,
		Position:  []float64(pos),
		Timestamp: time.Now(),
	}, nil
}

// ReadBaseInfo читает серийный номер контроллера, тип руки и версию VRC.
func (s *Session) ReadBaseInfo() (*models.BaseInfo, error) {
	const op = "ReadBaseInfo"
	link, err := s.requireLink(op)
	if err != nil {
		return nil, err
	}

	serial, err := s.execController(link, SysInfo{Index: 0})
	if err != nil {
		return nil, s.handleFault(op, err)
	}
	robotType, err := s.execArm(link, GetRobotTypeName{})
	if err != nil {
		return nil, s.handleFault(op, err)
	}

	hVersion, err := link.ControllerGetVariable(s.handles.Controller(), versionVariable, optionIfNotMember)
	if err != nil {
		return nil, s.handleFault(op, err)
	}
	defer func() {
		if err := link.VariableRelease(hVersion); err != nil {
			s.handleFault(op, err)
		}
	}()
	version, err := link.VariableGetValue(hVersion)
	if err != nil {
		return nil, s.handleFault(op, err)
	}

	return &models.BaseInfo{
		Serial:     asText(serial),
		RobotType:  asText(robotType),
		VRCVersion: asText(version),
	}, nil
}

func asText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
