package models

import (
	"strings"
	"time"
)

// OperatingMode - режим работы контроллера, прочитанный из переменной @Mode.
type OperatingMode string

const (
	ModeManual     OperatingMode = "manual"
	ModeTeachCheck OperatingMode = "teach check"
	ModeAuto       OperatingMode = "auto"
	ModeUnknown    OperatingMode = "unknown"
)

// ModeFromCode переводит числовой код @Mode в режим.
func ModeFromCode(code int) OperatingMode {
	switch code {
	case 1:
		return ModeManual
	case 2:
		return ModeTeachCheck
	case 3:
		return ModeAuto
	default:
		return ModeUnknown
	}
}

// Telemetry содержит один снимок опроса: режим и текущую позицию руки
type Telemetry struct {
	Mode      OperatingMode `json:"mode"`
	ModeCode  int           `json:"mode_code"`
	Position  []float64     `json:"position"`
	Timestamp time.Time     `json:"timestamp"`
}

// BaseInfo содержит базовую информацию о контроллере и руке
type BaseInfo struct {
	Serial     string `json:"serial"`
	RobotType  string `json:"robot_type"`
	VRCVersion string `json:"vrc_version"`
}

var unsafePathChars = strings.NewReplacer(
	".", "_", "/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_", " ", "_",
)

// Identifier склеивает поля через "_" и заменяет символы, недопустимые в путях.
// Используется как имя каталога архива программ.
func (b BaseInfo) Identifier() string {
	return unsafePathChars.Replace(strings.Join([]string{b.Serial, b.RobotType, b.VRCVersion}, "_"))
}

// FaultRecord - описание одной классифицированной ошибки
type FaultRecord struct {
	Kind        string `json:"kind"`
	Op          string `json:"op"`
	Code        int32  `json:"code,omitempty"`
	Hex         string `json:"hex,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ArchiveReport - итог выгрузки дерева программ
type ArchiveReport struct {
	Root        string   `json:"root"`
	Files       []string `json:"files"`
	Directories []string `json:"directories"`
	Skipped     []string `json:"skipped"`
}
