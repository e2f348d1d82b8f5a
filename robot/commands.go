package robot

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Опция b-CAP: вернуть существующий объект, если он уже создан.
const optionIfNotMember = "@IfNotMember"

// Параметры движения.
const (
	// InterpolationPTP - тип интерполяции для Robot_Move.
	InterpolationPTP int32 = 1
	// MoveNext - движение ставится в очередь, вызов не ждёт прихода в точку.
	MoveNext = "Next"
	// StartPosition - исходная поза в пространстве суставов.
	StartPosition = "@P J(0,0,90,0,90,0)"
)

// Pose - поза, как её возвращает контроллер (x, y, z, rx, ry, rz, fig).
type Pose []float64

// Deviation - смещение, накладываемое на позу.
type Deviation []float64

// String возвращает литерал вида "P(10, 0, 0, 0, 0, 0)".
func (d Deviation) String() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "P(" + strings.Join(parts, ", ") + ")"
}

// ArmCommand - команда Robot_Execute.
type ArmCommand interface {
	armCommand() (name string, param interface{})
}

// ControllerCommand - команда Controller_Execute.
type ControllerCommand interface {
	controllerCommand() (name string, param interface{})
}

// TakeArm захватывает руку (группа 0, без сохранения скорости).
type TakeArm struct{}

func (TakeArm) armCommand() (string, interface{}) {
	return "TakeArm", []interface{}{int32(0), int32(0)}
}

// TakeArmDefault захватывает руку без аргументов, с параметрами контроллера по умолчанию.
type TakeArmDefault struct{}

func (TakeArmDefault) armCommand() (string, interface{}) { return "TakeArm", nil }

// GiveArm освобождает руку.
type GiveArm struct{}

func (GiveArm) armCommand() (string, interface{}) { return "GiveArm", nil }

// Motor включает или выключает питание моторов.
type Motor struct {
	On bool
}

func (m Motor) armCommand() (string, interface{}) {
	state := int32(0)
	if m.On {
		state = 1
	}
	return "Motor", []interface{}{state, int32(0)}
}

// CurPos читает текущую позу.
type CurPos struct{}

func (CurPos) armCommand() (string, interface{}) { return "CurPos", nil }

// Dev вычисляет позу Base, смещённую на Offset.
type Dev struct {
	Base   Pose
	Offset Deviation
}

func (d Dev) armCommand() (string, interface{}) {
	return "Dev", []interface{}{
		[]interface{}{[]float64(d.Base), "P"},
		d.Offset.String(),
	}
}

// ExtSpeed задаёт внешнюю скорость в процентах.
type ExtSpeed struct {
	Percent int32
}

func (e ExtSpeed) armCommand() (string, interface{}) { return "ExtSpeed", e.Percent }

// AutoCal выполняет CALSET.
type AutoCal struct{}

func (AutoCal) armCommand() (string, interface{}) { return "AutoCal", "" }

type GetRobotTypeName struct{}

func (GetRobotTypeName) armCommand() (string, interface{}) { return "GetRobotTypeName", nil }

type ClearError struct{}

func (ClearError) controllerCommand() (string, interface{}) { return "ClearError", nil }

// SetExToken передаёт исполнительный токен указанному интерфейсу (например "Ethernet").
type SetExToken struct {
	Token string
}

func (s SetExToken) controllerCommand() (string, interface{}) {
	return "SetExToken", []interface{}{s.Token}
}

type SysInfo struct {
	Index int32
}

func (s SysInfo) controllerCommand() (string, interface{}) { return "SysInfo", s.Index }

// GetErrorDescription запрашивает текст ошибки по коду.
type GetErrorDescription struct {
	Code int32
}

func (g GetErrorDescription) controllerCommand() (string, interface{}) {
	return "GetErrorDescription", g.Code
}

// toPose приводит результат CurPos/Dev к Pose.
func toPose(v interface{}) (Pose, error) {
	switch x := v.(type) {
	case []float64:
		return Pose(append([]float64(nil), x...)), nil
	case []float32:
		p := make(Pose, len(x))
		for i, e := range x {
			p[i] = float64(e)
		}
		return p, nil
	case []interface{}:
		p := make(Pose, len(x))
		for i, e := range x {
			f, err := toFloat(e)
			if err != nil {
				return nil, err
			}
			p[i] = f
		}
		return p, nil
	}
	return nil, errors.Errorf("unexpected pose value %T", v)
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int:
		return float64(x), nil
	}
	return 0, errors.Errorf("unexpected numeric value %T", v)
}

func toInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int16:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case float64:
		return int(x), nil
	case float32:
		return int(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("unexpected integer value %T", v)
}
