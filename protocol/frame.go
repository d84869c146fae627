package protocol

import "bytes"

// Frame is one decoded block. An empty payload is an ACK, or a NAK when its
// sequence is not the one the sender expected.
type Frame struct {
	Seq     uint8
	Payload []byte
}

func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// AppendFrame appends payload as a block with sequence seq.
func AppendFrame(b []byte, seq uint8, payload []byte) ([]byte, error) {
	n := len(payload) + MinFrame
	if n > MaxFrame {
		return b, ErrTooLong
	}
	start := len(b)
	b = append(b, byte(n), seq)
	b = append(b, payload...)
	crc := CRC16(b[start:])
	return append(b, byte(crc>>8), byte(crc), SyncByte), nil
}

// AppendAck appends an empty block announcing the next expected sequence.
func AppendAck(b []byte, seq uint8) []byte {
	b, _ = AppendFrame(b, seq, nil)
	return b
}

// Decoder splits a byte stream into blocks. After a bad length, destination
// bit, sync byte or checksum it drops input up to the next sync byte.
type Decoder struct {
	buf    []byte
	synced bool

	// Dropped counts the times the stream lost synchronisation.
	Dropped int
}

func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, 2*MaxFrame), synced: true}
}

// Write buffers stream bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete block, if any. The payload is a copy.
func (d *Decoder) Next() (Frame, bool) {
	for len(d.buf) > 0 {
		if !d.synced {
			i := bytes.IndexByte(d.buf, SyncByte)
			if i < 0 {
				d.buf = d.buf[:0]
				break
			}
			d.consume(i + 1)
			d.synced = true
			continue
		}
		if d.buf[0] == SyncByte {
			d.consume(1)
			continue
		}
		if len(d.buf) < MinFrame {
			break
		}
		n := int(d.buf[0])
		if n < MinFrame || n > MaxFrame || d.buf[1]&^SeqMask != DestBit {
			d.desync()
			continue
		}
		if len(d.buf) < n {
			break
		}
		crc := uint16(d.buf[n-3])<<8 | uint16(d.buf[n-2])
		if d.buf[n-1] != SyncByte || crc != CRC16(d.buf[:n-TrailerSize]) {
			d.desync()
			continue
		}
		f := Frame{
			Seq:     d.buf[1],
			Payload: append([]byte(nil), d.buf[HeaderSize:n-TrailerSize]...),
		}
		d.consume(n)
		return f, true
	}
	return Frame{}, false
}

// Reset discards buffered input.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.synced = true
}

func (d *Decoder) desync() {
	d.synced = false
	d.Dropped++
}

func (d *Decoder) consume(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}
