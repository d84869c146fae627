// Package client talks to an ADC controller board: it fetches the data
// dictionary, sends named commands and matches the replies.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"goadc/errcode"
	"goadc/host/serial"
	"goadc/protocol"
)

const (
	identifyFormat = "identify offset=%u count=%c"
	identifyResp   = "identify_response offset=%u data=%.*s"
	identifyCmdID  = 1
	identifyRespID = 0
	identifyChunk  = 40

	eventQueue = 64
)

// ErrNoDictionary is returned by calls made before Identify.
var ErrNoDictionary = errors.New("client: dictionary not loaded")

// Message is one decoded response.
type Message struct {
	Name string
	Args []protocol.Arg
}

// Arg returns the named argument.
func (m Message) Arg(name string) (protocol.Arg, bool) {
	for _, a := range m.Args {
		if a.Name == name {
			return a, true
		}
	}
	return protocol.Arg{}, false
}

// Int returns the named integer argument, or 0.
func (m Message) Int(name string) int64 {
	a, _ := m.Arg(name)
	return a.Int
}

func (m Message) String() string {
	s := m.Name
	for _, a := range m.Args {
		s += " " + a.String()
	}
	return s
}

type command struct {
	id     uint16
	format protocol.Format
}

type subscriber struct {
	match func(Message) bool
	ch    chan Message
}

// Client is a connection to one board.
type Client struct {
	conn *protocol.Conn
	log  *slog.Logger

	mu    sync.RWMutex
	dict  *Dictionary
	cmds  map[string]command
	resps map[uint16]protocol.Format

	subMu sync.Mutex
	subs  map[*subscriber]struct{}

	reqMu sync.Mutex // one request in flight

	events chan Message
	done   chan struct{}
}

// Options configures Dial.
type Options struct {
	Logger *slog.Logger

	// MaxElapsed bounds the retries while the device is absent or busy.
	MaxElapsed time.Duration
}

// Dial opens the serial port, retrying with exponential backoff while it is
// missing, and fetches the data dictionary.
func Dial(ctx context.Context, cfg *serial.Config, opts Options) (*Client, error) {
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 5 * time.Second
	}
	var port serial.Port
	op := func() error {
		p, err := serial.Open(cfg)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		port = p
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     50 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         time.Second,
		MaxElapsedTime:      opts.MaxElapsed,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", cfg.Device, err)
	}
	port.Flush()

	c := New(port, opts.Logger)
	if err := c.Identify(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an open link. Call Identify before any named command.
func New(rw io.ReadWriteCloser, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		conn:   protocol.NewConn(rw),
		log:    log,
		cmds:   make(map[string]command),
		resps:  make(map[uint16]protocol.Format),
		subs:   make(map[*subscriber]struct{}),
		events: make(chan Message, eventQueue),
		done:   make(chan struct{}),
	}
	f, _ := protocol.ParseFormat(identifyFormat)
	c.cmds[f.Name] = command{id: identifyCmdID, format: f}
	c.resps[identifyRespID], _ = protocol.ParseFormat(identifyResp)
	go c.receiveLoop()
	return c
}

// Close shuts the link down.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Events delivers messages nobody is waiting for, such as adc_group_done.
// Old events are dropped when it is not drained.
func (c *Client) Events() <-chan Message { return c.events }

// Dictionary returns the dictionary fetched by Identify.
func (c *Client) Dictionary() *Dictionary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dict
}

// Resends reports how many blocks the device asked to have resent.
func (c *Client) Resends() int { return c.conn.Resends }

func (c *Client) receiveLoop() {
	defer close(c.done)
	for {
		f, err := c.conn.Receive(context.Background())
		if err != nil {
			if !errors.Is(err, protocol.ErrClosed) {
				c.log.Warn("client: link lost", "err", err)
			}
			return
		}
		r := protocol.NewReader(f.Payload)
		for r.Len() > 0 {
			id := uint16(r.Uint())
			c.mu.RLock()
			format, ok := c.resps[id]
			c.mu.RUnlock()
			if !ok {
				c.log.Warn("client: unknown response", "id", id)
				break
			}
			args, err := format.Decode(r)
			if err != nil {
				c.log.Warn("client: bad response", "err", err)
				break
			}
			c.route(Message{Name: format.Name, Args: args})
		}
	}
}

// route hands m to every matching subscriber, or to Events when none wants it.
func (c *Client) route(m Message) {
	c.subMu.Lock()
	taken := false
	for s := range c.subs {
		if s.match(m) {
			select {
			case s.ch <- m:
			default:
				c.log.Warn("client: subscriber full", "msg", m.Name)
			}
			taken = true
		}
	}
	c.subMu.Unlock()
	if taken {
		return
	}
	for {
		select {
		case c.events <- m:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

func (c *Client) subscribe(match func(Message) bool) *subscriber {
	s := &subscriber{match: match, ch: make(chan Message, 64)}
	c.subMu.Lock()
	c.subs[s] = struct{}{}
	c.subMu.Unlock()
	return s
}

func (c *Client) unsubscribe(s *subscriber) {
	c.subMu.Lock()
	delete(c.subs, s)
	c.subMu.Unlock()
}

func (c *Client) next(ctx context.Context, s *subscriber) (Message, error) {
	select {
	case m := <-s.ch:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.done:
		if err := c.conn.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, protocol.ErrClosed
	}
}

func (c *Client) encode(name string, args map[string]string) ([]byte, error) {
	c.mu.RLock()
	cmd, ok := c.cmds[name]
	c.mu.RUnlock()
	if !ok {
		if c.Dictionary() == nil {
			return nil, ErrNoDictionary
		}
		return nil, fmt.Errorf("client: unknown command %q", name)
	}
	b := protocol.AppendUint(nil, uint32(cmd.id))
	return cmd.format.AppendArgs(b, args)
}

// Send transmits a command without waiting for any reply.
func (c *Client) Send(ctx context.Context, name string, args map[string]string) error {
	b, err := c.encode(name, args)
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, b)
}

// Request sends a command and returns the first reply whose name is in
// replies.
func (c *Client) Request(ctx context.Context, name string, args map[string]string, replies ...string) (Message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	s := c.subscribe(func(m Message) bool {
		for _, r := range replies {
			if m.Name == r {
				return true
			}
		}
		return false
	})
	defer c.unsubscribe(s)
	if err := c.Send(ctx, name, args); err != nil {
		return Message{}, err
	}
	return c.next(ctx, s)
}

// Call sends a command that answers adc_ack and converts a failing ack into
// its errcode.Code.
func (c *Client) Call(ctx context.Context, name string, args map[string]string) error {
	m, err := c.Request(ctx, name, args, "adc_ack")
	if err != nil {
		return err
	}
	return ackError(m)
}

func ackError(m Message) error {
	code := errcode.FromWire(uint8(m.Int("code")))
	if code == errcode.OK {
		return nil
	}
	return code
}

// Identify downloads and parses the data dictionary, then learns every
// command and response it lists.
func (c *Client) Identify(ctx context.Context) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	s := c.subscribe(func(m Message) bool { return m.Name == "identify_response" })
	defer c.unsubscribe(s)

	var raw []byte
	for {
		args := map[string]string{
			"offset": fmt.Sprint(len(raw)),
			"count":  fmt.Sprint(identifyChunk),
		}
		if err := c.Send(ctx, "identify", args); err != nil {
			return fmt.Errorf("client: identify: %w", err)
		}
		m, err := c.next(ctx, s)
		if err != nil {
			return fmt.Errorf("client: identify: %w", err)
		}
		if off := m.Int("offset"); off != int64(len(raw)) {
			return fmt.Errorf("client: identify: offset %d, want %d", off, len(raw))
		}
		data, _ := m.Arg("data")
		if len(data.Bytes) == 0 {
			break
		}
		raw = append(raw, data.Bytes...)
	}

	dict, err := ParseDictionary(raw)
	if err != nil {
		return err
	}
	cmds := make(map[string]command, len(dict.Commands))
	for s, id := range dict.Commands {
		f, err := protocol.ParseFormat(s)
		if err != nil {
			return fmt.Errorf("client: dictionary: %w", err)
		}
		cmds[f.Name] = command{id: uint16(id), format: f}
	}
	resps := make(map[uint16]protocol.Format, len(dict.Responses))
	for s, id := range dict.Responses {
		f, err := protocol.ParseFormat(s)
		if err != nil {
			return fmt.Errorf("client: dictionary: %w", err)
		}
		resps[uint16(id)] = f
	}

	c.mu.Lock()
	c.dict, c.cmds, c.resps = dict, cmds, resps
	c.mu.Unlock()
	c.log.Debug("client: dictionary loaded", "bytes", len(raw), "version", dict.Version,
		"commands", len(cmds), "responses", len(resps))
	return nil
}
