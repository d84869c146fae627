package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"goadc/errcode"
)

// Group state numbers carried by adc_state.
const (
	StateIdle = iota
	StateBusy
	StateCompleted
	StateStreamCompleted
)

var stateNames = [...]string{"IDLE", "BUSY", "COMPLETED", "STREAM_COMPLETED"}

// Flag bits of adc_state.
const (
	FlagHwTrigger = 1 << iota
	FlagNotify
	FlagLimitFailed
	FlagImplicitStop
)

// Status is a decoded adc_state.
type Status struct {
	Group int
	State int
	Index int
	Valid int
	Flags int
}

func (s Status) StateName() string {
	if s.State < len(stateNames) {
		return stateNames[s.State]
	}
	return "UNKNOWN"
}

// Version is a decoded adc_version.
type Version struct {
	Vendor, Module      int
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d (vendor %d module %d)", v.Major, v.Minor, v.Patch, v.Vendor, v.Module)
}

// TraceEvent is a decoded adc_trace_event.
type TraceEvent struct {
	Type  int
	Unit  int
	Group int
	Value uint32
}

func group(id int) map[string]string { return map[string]string{"group": strconv.Itoa(id)} }

func (c *Client) Start(ctx context.Context, id int) error {
	return c.Call(ctx, "adc_start", group(id))
}

func (c *Client) Stop(ctx context.Context, id int) error {
	return c.Call(ctx, "adc_stop", group(id))
}

func (c *Client) EnableHwTrigger(ctx context.Context, id int) error {
	return c.Call(ctx, "adc_enable_hw_trigger", group(id))
}

func (c *Client) DisableHwTrigger(ctx context.Context, id int) error {
	return c.Call(ctx, "adc_disable_hw_trigger", group(id))
}

func (c *Client) EnableNotification(ctx context.Context, id int) error {
	return c.Call(ctx, "adc_enable_notification", group(id))
}

func (c *Client) DisableNotification(ctx context.Context, id int) error {
	return c.Call(ctx, "adc_disable_notification", group(id))
}

func channel(id, ch int) map[string]string {
	return map[string]string{"group": strconv.Itoa(id), "channel": strconv.Itoa(ch)}
}

func (c *Client) EnableChannel(ctx context.Context, id, ch int) error {
	return c.Call(ctx, "adc_enable_channel", channel(id, ch))
}

func (c *Client) DisableChannel(ctx context.Context, id, ch int) error {
	return c.Call(ctx, "adc_disable_channel", channel(id, ch))
}

func (c *Client) Calibrate(ctx context.Context, unit int) error {
	return c.Call(ctx, "adc_calibrate", map[string]string{"unit": strconv.Itoa(unit)})
}

func (c *Client) SetClockMode(ctx context.Context, mode int) error {
	return c.Call(ctx, "adc_set_clock", map[string]string{"mode": strconv.Itoa(mode)})
}

// SetPower prepares and enters a power state.
func (c *Client) SetPower(ctx context.Context, state int) error {
	if err := c.Call(ctx, "adc_prepare_power", map[string]string{"state": strconv.Itoa(state)}); err != nil {
		return err
	}
	return c.Call(ctx, "adc_set_power", nil)
}

// Power returns the current and target power states.
func (c *Client) Power(ctx context.Context) (current, target int, err error) {
	m, err := c.Request(ctx, "adc_get_power", nil, "adc_power", "adc_ack")
	if err != nil {
		return 0, 0, err
	}
	if m.Name == "adc_ack" {
		return 0, 0, ackError(m)
	}
	return int(m.Int("current")), int(m.Int("target")), nil
}

func (c *Client) Version(ctx context.Context) (Version, error) {
	m, err := c.Request(ctx, "adc_get_version", nil, "adc_version")
	if err != nil {
		return Version{}, err
	}
	return Version{
		Vendor: int(m.Int("vendor")),
		Module: int(m.Int("module")),
		Major:  int(m.Int("major")),
		Minor:  int(m.Int("minor")),
		Patch:  int(m.Int("patch")),
	}, nil
}

func (c *Client) Status(ctx context.Context, id int) (Status, error) {
	m, err := c.Request(ctx, "adc_status", group(id), "adc_state", "adc_ack")
	if err != nil {
		return Status{}, err
	}
	if m.Name == "adc_ack" {
		return Status{}, ackError(m)
	}
	return Status{
		Group: int(m.Int("group")),
		State: int(m.Int("state")),
		Index: int(m.Int("index")),
		Valid: int(m.Int("valid")),
		Flags: int(m.Int("flags")),
	}, nil
}

// Read fetches the latest completed round of a group and reports whether it
// passed the limit check.
func (c *Client) Read(ctx context.Context, id int) ([]uint16, bool, error) {
	var inRange bool
	vs, err := c.collect(ctx, "adc_read", id, "adc_result", func(m Message) {
		inRange = m.Int("in_range") != 0
	})
	return vs, inRange, err
}

// ReadStream fetches the newest sample of every channel of a group and the
// number of valid samples per channel.
func (c *Client) ReadStream(ctx context.Context, id int) ([]uint16, int, error) {
	var valid int
	vs, err := c.collect(ctx, "adc_read_stream", id, "adc_stream", func(m Message) {
		valid = int(m.Int("valid"))
	})
	return vs, valid, err
}

// collect gathers the chunks of a value response. A reply of adc_ack means
// the device refused the read.
func (c *Client) collect(ctx context.Context, name string, id int, resp string, first func(Message)) ([]uint16, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	s := c.subscribe(func(m Message) bool {
		return m.Name == "adc_ack" || (m.Name == resp && int(m.Int("group")) == id)
	})
	defer c.unsubscribe(s)
	if err := c.Send(ctx, name, group(id)); err != nil {
		return nil, err
	}

	var vs []uint16
	for {
		m, err := c.next(ctx, s)
		if err != nil {
			return nil, err
		}
		if m.Name == "adc_ack" {
			if err := ackError(m); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("client: %s: unexpected ack", name)
		}
		if m.Int("first") != int64(len(vs)) {
			return nil, fmt.Errorf("client: %s: chunk at %d, want %d", resp, m.Int("first"), len(vs))
		}
		if len(vs) == 0 {
			first(m)
		}
		raw, _ := m.Arg("values")
		for i := 0; i+1 < len(raw.Bytes); i += 2 {
			vs = append(vs, uint16(raw.Bytes[i])|uint16(raw.Bytes[i+1])<<8)
		}
		if int64(len(vs)) >= m.Int("total") {
			return vs, nil
		}
	}
}

// Trace fetches the device's trace ring, oldest first.
func (c *Client) Trace(ctx context.Context, size int) ([]TraceEvent, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	s := c.subscribe(func(m Message) bool { return m.Name == "adc_trace_event" })
	defer c.unsubscribe(s)
	if err := c.Send(ctx, "adc_dump_trace", nil); err != nil {
		return nil, err
	}
	// The ring has no terminator; stop when it goes quiet.
	var events []TraceEvent
	for len(events) < size {
		quiet, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		m, err := c.next(quiet, s)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return events, ctx.Err()
			}
			break
		}
		events = append(events, TraceEvent{
			Type:  int(m.Int("type")),
			Unit:  int(m.Int("unit")),
			Group: int(m.Int("group")),
			Value: uint32(m.Int("value")),
		})
	}
	return events, nil
}

// Sample is one reading delivered by Watch.
type Sample struct {
	Group  int
	Time   time.Time
	Values []uint16
	Valid  int
}

// Watch polls a streaming group no faster than every interval and calls fn
// with each reading until ctx is done or a read fails. Reads that find the
// group idle or without a new sample are skipped.
func (c *Client) Watch(ctx context.Context, id int, every time.Duration, fn func(Sample)) error {
	lim := rate.NewLimiter(rate.Every(every), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		vs, valid, err := c.ReadStream(ctx, id)
		switch {
		case errors.Is(err, errcode.Idle):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if valid == 0 {
			continue
		}
		fn(Sample{Group: id, Time: time.Now(), Values: vs, Valid: valid})
	}
}
