package bcap

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ErrClosed возвращается при вызове на закрытом клиенте.
var ErrClosed = errors.New("bcap: connection closed")

// HResult - код возврата ORiN/CAO (знаковое 32-битное значение).
type HResult int32

// Коды, которые клиент обрабатывает сам.
const (
	SOK        HResult = 0
	SExecuting HResult = 0x900
)

// Failed сообщает, является ли код ошибкой.
func (h HResult) Failed() bool {
	return h < 0
}

// Hex возвращает шестнадцатеричное представление кода без префикса.
// Отрицательные коды выводятся в беззнаковой форме дополнительного кода: -2091904984 -> "83501028".
func (h HResult) Hex() string {
	if h < 0 {
		return strconv.FormatUint(uint64(uint32(h)), 16)
	}
	return strconv.FormatInt(int64(h), 16)
}

// HResultError - ошибка, которую вернул контроллер.
type HResultError struct {
	Func    FuncID
	HResult HResult
}

func (e *HResultError) Error() string {
	return fmt.Sprintf("bcap: %s failed: hresult 0x%s (%d)", e.Func, e.HResult.Hex(), int32(e.HResult))
}

// Code возвращает знаковый код ошибки.
func (e *HResultError) Code() int32 {
	return int32(e.HResult)
}

// TransportError - сбой соединения: таймаут, разрыв, испорченный кадр.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bcap: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
