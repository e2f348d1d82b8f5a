package bcap

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	soh = 0x01
	eot = 0x04

	// SOH + длина + serial + reserved + id + argc
	headerSize = 1 + 4 + 2 + 2 + 4 + 2
	minPacket  = headerSize + 1
	maxPacket  = 16 << 20
)

// packet - кадр b-CAP. В запросе id содержит номер функции, в ответе - HRESULT.
type packet struct {
	serial   uint16
	reserved uint16
	id       int32
	args     []interface{}
}

// MarshalBinary собирает кадр: SOH | len | serial | reserved | id | argc | {arglen | VARIANT}* | EOT.
func (p *packet) MarshalBinary() ([]byte, error) {
	var body bytes.Buffer
	for i, a := range p.args {
		var vb bytes.Buffer
		if err := encodeVariant(&vb, a); err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		put(&body, uint32(vb.Len()))
		body.Write(vb.Bytes())
	}

	total := headerSize + body.Len() + 1
	if total > maxPacket {
		return nil, errors.Errorf("bcap: packet of %d bytes exceeds limit", total)
	}

	var out bytes.Buffer
	out.Grow(total)
	out.WriteByte(soh)
	put(&out, uint32(total))
	put(&out, p.serial)
	put(&out, p.reserved)
	put(&out, p.id)
	put(&out, uint16(len(p.args)))
	out.Write(body.Bytes())
	out.WriteByte(eot)
	return out.Bytes(), nil
}

// readPacket читает один кадр из потока.
func readPacket(r io.Reader) (*packet, error) {
	var head [5]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	if head[0] != soh {
		return nil, errors.Errorf("bcap: bad start byte 0x%02x", head[0])
	}
	total := binary.LittleEndian.Uint32(head[1:])
	if total < minPacket || total > maxPacket {
		return nil, errors.Errorf("bcap: bad packet length %d", total)
	}

	rest := make([]byte, total-5)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	if rest[len(rest)-1] != eot {
		return nil, errors.Errorf("bcap: bad end byte 0x%02x", rest[len(rest)-1])
	}

	p := &packet{
		serial:   binary.LittleEndian.Uint16(rest[0:2]),
		reserved: binary.LittleEndian.Uint16(rest[2:4]),
		id:       int32(binary.LittleEndian.Uint32(rest[4:8])),
	}
	argc := int(binary.LittleEndian.Uint16(rest[8:10]))

	d := &decoder{buf: rest[10 : len(rest)-1]}
	for i := 0; i < argc; i++ {
		n, err := d.u32()
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d length", i)
		}
		raw, err := d.take(int(n))
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		v, err := decodeVariant(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		p.args = append(p.args, v)
	}
	return p, nil
}
