package protocol

import (
	"io"
	"sync"
)

// Handler runs one command. It decodes its own arguments from r; a non-nil
// error abandons the rest of the block.
type Handler func(id uint16, r *Reader) error

// Endpoint is the device side of the link. It acknowledges every block,
// runs the commands of in-sequence blocks and frames responses.
type Endpoint struct {
	mu      sync.Mutex
	out     io.Writer
	next    uint8
	scratch []byte

	dec     *Decoder
	dropped int
	handle  Handler

	// OnReset runs when the host restarts its sequence at zero.
	OnReset func()
}

func NewEndpoint(out io.Writer, h Handler) *Endpoint {
	return &Endpoint{
		out:     out,
		next:    DestBit,
		scratch: make([]byte, 0, MaxFrame),
		dec:     NewDecoder(),
		handle:  h,
	}
}

// Receive consumes bytes read from the host.
func (e *Endpoint) Receive(p []byte) {
	e.dec.Write(p)
	for {
		f, ok := e.dec.Next()
		if !ok {
			break
		}
		e.mu.Lock()
		if f.Seq == DestBit && e.next != DestBit {
			e.next = DestBit
			if e.OnReset != nil {
				e.OnReset()
			}
		}
		run := f.Seq == e.next && !f.IsAck()
		if run {
			e.next = NextSeq(f.Seq)
		}
		e.ackLocked()
		e.mu.Unlock()
		if run {
			e.dispatch(f.Payload)
		}
	}
	if e.dec.Dropped != e.dropped {
		e.dropped = e.dec.Dropped
		e.mu.Lock()
		e.ackLocked()
		e.mu.Unlock()
	}
}

func (e *Endpoint) dispatch(payload []byte) {
	r := NewReader(payload)
	for r.Len() > 0 {
		id := r.Uint()
		if r.Err() != nil {
			return
		}
		if err := e.handle(uint16(id), r); err != nil {
			return
		}
	}
}

// Send frames payload as one block to the host.
func (e *Endpoint) Send(payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := AppendFrame(e.scratch[:0], e.next, payload)
	if err != nil {
		return err
	}
	e.scratch = b
	_, err = e.out.Write(b)
	return err
}

func (e *Endpoint) ackLocked() {
	e.scratch = AppendAck(e.scratch[:0], e.next)
	e.out.Write(e.scratch)
}

// Reset returns the endpoint to its power-on sequence state.
func (e *Endpoint) Reset() {
	e.mu.Lock()
	e.next = DestBit
	e.mu.Unlock()
	e.dec.Reset()
}
