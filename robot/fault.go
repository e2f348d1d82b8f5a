package robot

import (
	"fmt"
	"strings"

	"github.com/iwtcode/densoAdapter/bcap"
	"github.com/iwtcode/densoAdapter/internal/metrics"
	"github.com/iwtcode/densoAdapter/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrLinkNotInitialized - операция вызвана до Connect или после Disconnect.
	ErrLinkNotInitialized = errors.New("b-CAP link is not initialized")
	// ErrUnknownVariant - неизвестный тип контроллера.
	ErrUnknownVariant = errors.New("unknown controller variant")
	ErrInvalidAddress = errors.New("invalid controller address")
)

// CodeTokenOwnership - исполнительный токен не принадлежит этой сессии (0x83501028).
const CodeTokenOwnership int32 = -0x7CAFEFD8

// recoverable - коды, на которые сессия реагирует повтором, и команда, которую повторяют.
var recoverable = map[int32]string{
	CodeTokenOwnership: "Motor",
}

// FaultKind - вид ошибки.
type FaultKind int

const (
	KindGeneric FaultKind = iota
	KindConfiguration
	KindRemote
	KindTransport
)

func (k FaultKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindRemote:
		return "remote"
	case KindTransport:
		return "transport"
	default:
		return "generic"
	}
}

// Fault - результат неудачной операции сессии.
type Fault struct {
	Kind        FaultKind
	Op          string
	Code        int32 // только для KindRemote
	Description string
	Err         error
}

func (f *Fault) Error() string {
	if f.Kind == KindRemote {
		msg := fmt.Sprintf("%s: remote fault 0x%s", f.Op, FormatCode(f.Code))
		if f.Description != "" {
			msg += " (" + f.Description + ")"
		}
		return msg
	}
	return fmt.Sprintf("%s: %v", f.Op, errors.Cause(f.Err))
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Recoverable сообщает, есть ли для кода ошибки автоматический повтор.
func (f *Fault) Recoverable() bool {
	if f.Kind != KindRemote {
		return false
	}
	_, ok := recoverable[f.Code]
	return ok
}

// RetriesCommand сообщает, повторяется ли command после этой ошибки.
func (f *Fault) RetriesCommand(command string) bool {
	if f.Kind != KindRemote {
		return false
	}
	return recoverable[f.Code] == command
}

// Record возвращает описание ошибки для журналов и API.
func (f *Fault) Record() models.FaultRecord {
	rec := models.FaultRecord{
		Kind:        f.Kind.String(),
		Op:          f.Op,
		Description: f.Description,
		Message:     f.Error(),
		Recoverable: f.Recoverable(),
	}
	if f.Kind == KindRemote {
		rec.Code = f.Code
		rec.Hex = FormatCode(f.Code)
	}
	return rec
}

// FormatCode выводит код в шестнадцатеричном виде без префикса;
// отрицательные коды - как беззнаковое 32-битное значение.
func FormatCode(code int32) string {
	return bcap.HResult(code).Hex()
}

// Classify определяет вид ошибки. Уже классифицированный Fault возвращается как есть.
func Classify(op string, err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}

	var hr *bcap.HResultError
	var te *bcap.TransportError
	switch {
	case errors.As(err, &hr):
		return &Fault{Kind: KindRemote, Op: op, Code: hr.Code(), Err: err}
	case errors.As(err, &te), errors.Is(err, ErrLinkNotInitialized), errors.Is(err, bcap.ErrClosed):
		return &Fault{Kind: KindTransport, Op: op, Err: err}
	case errors.Is(err, ErrUnknownVariant), errors.Is(err, ErrInvalidAddress):
		return &Fault{Kind: KindConfiguration, Op: op, Err: err}
	default:
		return &Fault{Kind: KindGeneric, Op: op, Err: err}
	}
}

// handleFault - единая точка обработки ошибок удалённых вызовов: полный стек в журнал,
// для ошибок контроллера - код и описание, полученное у самого контроллера.
// Ничего не пробрасывает дальше: вызывающий получает Fault как значение.
func (s *Session) handleFault(op string, err error) *Fault {
	f := Classify(op, errors.WithStack(err))
	log := s.log.WithFields(logrus.Fields{"op": op, "kind": f.Kind.String()})

	log.Errorf("%+v", f.Err)

	code := ""
	link := s.current()
	if f.Kind == KindRemote && s.handles.Controller() != 0 && link != nil {
		code = FormatCode(f.Code)
		if f.Description == "" {
			f.Description = s.describe(link, f.Code)
		}
		log.WithField("code", "0x"+code).Errorf("ORiN error, error code: 0x%s, error description: %s", code, f.Description)
	} else {
		if f.Kind == KindRemote {
			code = FormatCode(f.Code)
		}
		cause := errors.Cause(f.Err)
		log.Errorf("%s : %v", typeName(cause), cause)
	}

	metrics.Faults.WithLabelValues(f.Kind.String(), code).Inc()
	return f
}

// describe запрашивает у контроллера текст ошибки. Сбой самого запроса только журналируется.
func (s *Session) describe(link Link, code int32) string {
	name, param := GetErrorDescription{Code: code}.controllerCommand()
	v, err := link.ControllerExecute(s.handles.Controller(), name, param)
	if err != nil {
		s.log.WithError(err).Warn("could not fetch error description")
		return ""
	}
	desc, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	return desc
}

func typeName(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
