package protocol

import "errors"

var (
	ErrTruncated = errors.New("protocol: truncated argument")
	ErrTooLong   = errors.New("protocol: frame too long")
)

// AppendInt appends v in the variable length encoding Klipper uses for
// command arguments. Values in [-32, 96) take a single byte.
func AppendInt(b []byte, v int32) []byte {
	if v < -(1<<26) || v >= 3<<26 {
		b = append(b, byte(v>>28)&0x7F|0x80)
	}
	if v < -(1<<19) || v >= 3<<19 {
		b = append(b, byte(v>>21)&0x7F|0x80)
	}
	if v < -(1<<12) || v >= 3<<12 {
		b = append(b, byte(v>>14)&0x7F|0x80)
	}
	if v < -(1<<5) || v >= 3<<5 {
		b = append(b, byte(v>>7)&0x7F|0x80)
	}
	return append(b, byte(v)&0x7F)
}

func AppendUint(b []byte, v uint32) []byte {
	return AppendInt(b, int32(v))
}

// AppendBytes appends a length-prefixed byte string.
func AppendBytes(b []byte, p []byte) []byte {
	b = AppendUint(b, uint32(len(p)))
	return append(b, p...)
}

func AppendString(b []byte, s string) []byte {
	b = AppendUint(b, uint32(len(s)))
	return append(b, s...)
}

// Reader decodes arguments from a command payload. The first decode error
// sticks; later reads return zero values.
type Reader struct {
	buf []byte
	err error
}

func NewReader(p []byte) *Reader {
	return &Reader{buf: p}
}

// Len is the number of undecoded bytes.
func (r *Reader) Len() int { return len(r.buf) }

func (r *Reader) Err() error { return r.err }

func (r *Reader) Int() int32 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) == 0 {
		r.err = ErrTruncated
		return 0
	}
	c := uint32(r.buf[0])
	r.buf = r.buf[1:]
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for c&0x80 != 0 {
		if len(r.buf) == 0 {
			r.err = ErrTruncated
			return 0
		}
		c = uint32(r.buf[0])
		r.buf = r.buf[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v)
}

func (r *Reader) Uint() uint32 { return uint32(r.Int()) }

// Bytes returns a length-prefixed byte string. The result aliases the
// payload.
func (r *Reader) Bytes() []byte {
	n := int(r.Uint())
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf) {
		r.err = ErrTruncated
		return nil
	}
	p := r.buf[:n]
	r.buf = r.buf[n:]
	return p
}

func (r *Reader) String() string { return string(r.Bytes()) }
