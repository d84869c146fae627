package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var ErrClosed = errors.New("protocol: connection closed")

// DefaultAckTimeout bounds the wait for an ACK when the caller's context has
// no deadline.
const DefaultAckTimeout = 2 * time.Second

// Conn is the host side of the link. A background reader splits the stream
// into ACKs and messages; Send blocks until the device acknowledges.
type Conn struct {
	rw io.ReadWriteCloser

	sendMu sync.Mutex
	seq    uint8
	out    []byte

	acks chan uint8
	msgs chan Frame

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error

	// Resends counts blocks sent again after a NAK.
	Resends int
}

// NewConn starts reading from rw.
func NewConn(rw io.ReadWriteCloser) *Conn {
	c := &Conn{
		rw:   rw,
		seq:  DestBit,
		out:  make([]byte, 0, MaxFrame),
		acks: make(chan uint8, 4),
		msgs: make(chan Frame, 64),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	dec := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, ok := dec.Next()
				if !ok {
					break
				}
				c.deliver(f)
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			c.fail(err)
			return
		}
		if n == 0 {
			// Serial read timeouts surface as empty EOF reads.
			time.Sleep(5 * time.Millisecond)
		}
		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (c *Conn) deliver(f Frame) {
	if f.IsAck() {
		select {
		case c.acks <- f.Seq:
		default:
		}
		return
	}
	select {
	case c.msgs <- f:
		return
	default:
	}
	// Drop the oldest message rather than stall the reader.
	select {
	case <-c.msgs:
	default:
	}
	select {
	case c.msgs <- f:
	default:
	}
}

// Send frames payload and waits for the device to acknowledge it. A NAK
// resynchronises the sequence number and resends once.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultAckTimeout)
		defer cancel()
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		c.drainAcks()
		b, err := AppendFrame(c.out[:0], c.seq, payload)
		if err != nil {
			return err
		}
		c.out = b
		if _, err := c.rw.Write(b); err != nil {
			return fmt.Errorf("protocol: write: %w", err)
		}
		want := NextSeq(c.seq)
		got, err := c.waitAck(ctx)
		if err != nil {
			return err
		}
		if got == want {
			c.seq = want
			return nil
		}
		c.seq = got
		c.Resends++
	}
	return fmt.Errorf("protocol: block not accepted, device expects seq %#02x", c.seq)
}

// waitAck returns the sequence carried by the next ACK. Anything other than
// want is a NAK naming the sequence the device expects.
func (c *Conn) waitAck(ctx context.Context) (uint8, error) {
	select {
	case seq := <-c.acks:
		return seq, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("protocol: waiting for ack: %w", ctx.Err())
	case <-c.done:
		return 0, c.Err()
	}
}

func (c *Conn) drainAcks() {
	for {
		select {
		case <-c.acks:
		default:
			return
		}
	}
}

// Receive returns the next message from the device.
func (c *Conn) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.msgs:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-c.done:
		return Frame{}, c.Err()
	}
}

// Err reports why the connection stopped, or nil while it is open.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

// Close stops the reader and closes the port.
func (c *Conn) Close() error {
	c.fail(ErrClosed)
	return c.rw.Close()
}
