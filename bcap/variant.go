package bcap

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Коды типов VARIANT, используемые в b-CAP.
const (
	vtEmpty   uint16 = 0
	vtNull    uint16 = 1
	vtI2      uint16 = 2
	vtI4      uint16 = 3
	vtR4      uint16 = 4
	vtR8      uint16 = 5
	vtCY      uint16 = 6
	vtDate    uint16 = 7
	vtBSTR    uint16 = 8
	vtError   uint16 = 10
	vtBool    uint16 = 11
	vtVariant uint16 = 12
	vtUI1     uint16 = 17
	vtUI2     uint16 = 18
	vtUI4     uint16 = 19
	vtI8      uint16 = 20
	vtUI8     uint16 = 21
	vtArray   uint16 = 0x2000
)

// oleEpoch - нулевая точка OLE Automation дат (VT_DATE).
var oleEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func put(w *bytes.Buffer, v interface{}) {
	_ = binary.Write(w, binary.LittleEndian, v)
}

func putHeader(w *bytes.Buffer, vt uint16, count int) {
	put(w, vt)
	put(w, uint32(count))
}

func putBSTR(w *bytes.Buffer, s string) {
	u := utf16.Encode([]rune(s))
	put(w, uint32(len(u)*2))
	put(w, u)
}

// encodeVariant сериализует Go-значение в VARIANT.
func encodeVariant(w *bytes.Buffer, v interface{}) error {
	switch x := v.(type) {
	case nil:
		putHeader(w, vtEmpty, 1)
	case int16:
		putHeader(w, vtI2, 1)
		put(w, x)
	case int32:
		putHeader(w, vtI4, 1)
		put(w, x)
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return errors.Errorf("bcap: int value %d overflows VT_I4", x)
		}
		putHeader(w, vtI4, 1)
		put(w, int32(x))
	case int64:
		putHeader(w, vtI8, 1)
		put(w, x)
	case uint8:
		putHeader(w, vtUI1, 1)
		put(w, x)
	case uint16:
		putHeader(w, vtUI2, 1)
		put(w, x)
	case uint32:
		putHeader(w, vtUI4, 1)
		put(w, x)
	case uint64:
		putHeader(w, vtUI8, 1)
		put(w, x)
	case float32:
		putHeader(w, vtR4, 1)
		put(w, x)
	case float64:
		putHeader(w, vtR8, 1)
		put(w, x)
	case bool:
		putHeader(w, vtBool, 1)
		if x {
			put(w, int16(-1))
		} else {
			put(w, int16(0))
		}
	case string:
		putHeader(w, vtBSTR, 1)
		putBSTR(w, x)
	case time.Time:
		putHeader(w, vtDate, 1)
		put(w, x.UTC().Sub(oleEpoch).Hours()/24)
	case []byte:
		putHeader(w, vtArray|vtUI1, len(x))
		w.Write(x)
	case []int16:
		putHeader(w, vtArray|vtI2, len(x))
		put(w, x)
	case []int32:
		putHeader(w, vtArray|vtI4, len(x))
		put(w, x)
	case []int:
		putHeader(w, vtArray|vtI4, len(x))
		for _, e := range x {
			put(w, int32(e))
		}
	case []float32:
		putHeader(w, vtArray|vtR4, len(x))
		put(w, x)
	case []float64:
		putHeader(w, vtArray|vtR8, len(x))
		put(w, x)
	case []string:
		putHeader(w, vtArray|vtBSTR, len(x))
		for _, s := range x {
			putBSTR(w, s)
		}
	case []interface{}:
		putHeader(w, vtArray|vtVariant, len(x))
		for _, e := range x {
			if err := encodeVariant(w, e); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("bcap: unsupported argument type %T", v)
	}
	return nil
}

// decoder читает VARIANT-значения из буфера пакета.
type decoder struct {
	buf []byte
	off int
}

var errShortVariant = errors.New("bcap: truncated variant")

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, errShortVariant
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) bstr() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(u)), nil
}

// variant читает один VARIANT: тип, количество элементов и данные.
func (d *decoder) variant() (interface{}, error) {
	vt, err := d.u16()
	if err != nil {
		return nil, err
	}
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	if vt&vtArray != 0 {
		if int64(count) > int64(d.remaining()) {
			return nil, errors.Errorf("bcap: array of %d elements exceeds packet", count)
		}
		return d.array(vt&^vtArray, int(count))
	}
	return d.scalar(vt)
}

func (d *decoder) scalar(vt uint16) (interface{}, error) {
	switch vt {
	case vtEmpty, vtNull:
		return nil, nil
	case vtI2:
		v, err := d.u16()
		return int16(v), err
	case vtI4, vtError:
		v, err := d.u32()
		return int32(v), err
	case vtR4:
		v, err := d.u32()
		return math.Float32frombits(v), err
	case vtR8:
		v, err := d.u64()
		return math.Float64frombits(v), err
	case vtCY:
		v, err := d.u64()
		return float64(int64(v)) / 10000, err
	case vtDate:
		v, err := d.u64()
		days := math.Float64frombits(v)
		return oleEpoch.Add(time.Duration(days * 24 * float64(time.Hour))), err
	case vtBSTR:
		return d.bstr()
	case vtBool:
		v, err := d.u16()
		return v != 0, err
	case vtUI1:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case vtUI2:
		return d.u16()
	case vtUI4:
		return d.u32()
	case vtI8:
		v, err := d.u64()
		return int64(v), err
	case vtUI8:
		return d.u64()
	case vtVariant:
		return d.variant()
	default:
		return nil, errors.Errorf("bcap: unsupported variant type 0x%04x", vt)
	}
}

func (d *decoder) array(elem uint16, n int) (interface{}, error) {
	switch elem {
	case vtUI1:
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b...), nil
	case vtI2:
		out := make([]int16, n)
		for i := range out {
			v, err := d.u16()
			if err != nil {
				return nil, err
			}
			out[i] = int16(v)
		}
		return out, nil
	case vtI4:
		out := make([]int32, n)
		for i := range out {
			v, err := d.u32()
			if err != nil {
				return nil, err
			}
			out[i] = int32(v)
		}
		return out, nil
	case vtR4:
		out := make([]float32, n)
		for i := range out {
			v, err := d.u32()
			if err != nil {
				return nil, err
			}
			out[i] = math.Float32frombits(v)
		}
		return out, nil
	case vtR8:
		out := make([]float64, n)
		for i := range out {
			v, err := d.u64()
			if err != nil {
				return nil, err
			}
			out[i] = math.Float64frombits(v)
		}
		return out, nil
	case vtBSTR:
		out := make([]string, n)
		for i := range out {
			s, err := d.bstr()
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	case vtVariant:
		out := make([]interface{}, n)
		for i := range out {
			v, err := d.variant()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		out := make([]interface{}, n)
		for i := range out {
			v, err := d.scalar(elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
}

// decodeVariant разбирает ровно один VARIANT из b.
func decodeVariant(b []byte) (interface{}, error) {
	d := &decoder{buf: b}
	v, err := d.variant()
	if err != nil {
		return nil, err
	}
	if d.remaining() != 0 {
		return nil, errors.Errorf("bcap: %d trailing bytes after variant", d.remaining())
	}
	return v, nil
}
