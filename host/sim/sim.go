// Package sim runs a complete ADC controller board in memory: the driver and
// its command surface on top of a converter model behind hal.MemRegisters.
// Groups that use DMA never complete in the model.
package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"goadc/core"
	"goadc/errcode"
	"goadc/hal"
	"goadc/protocol"
)

// Board is a simulated controller.
type Board struct {
	Regs   *hal.MemRegisters
	Bridge *hal.RegBridge
	Driver *core.Driver
	Remote *core.Remote

	// Level returns the input seen on a hardware channel. It is read on
	// every conversion.
	Level func(unit hal.UnitID, hw uint8) hal.Value

	mu    sync.Mutex // device side: command dispatch and Step
	units int
	log   *slog.Logger
}

// DefaultLevel derives a fixed reading from the unit and channel numbers.
func DefaultLevel(unit hal.UnitID, hw uint8) hal.Value {
	return hal.Value(1000*int(unit) + 10*int(hw) + 5)
}

// New brings up a board for cfg. Every group gets a result buffer and a
// notification latch.
func New(cfg *core.Config, log *slog.Logger) (*Board, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Board{
		Regs:  hal.NewMemRegisters(),
		Level: DefaultLevel,
		units: len(cfg.Units),
		log:   log,
	}
	b.Regs.OnStore = b.onStore
	b.Bridge = hal.NewRegBridge(b.Regs, 0)
	b.Driver = core.New(b.Bridge)
	b.Driver.SetUsageReporter(core.UsageReporterFunc(func(unit core.UnitID, svc core.ServiceID, code errcode.Code) {
		log.Debug("sim: usage error", "unit", unit, "service", svc.String(), "code", code)
	}))
	b.Driver.SetFaultReporter(core.FaultReporterFunc(func(ev core.EventID, status core.EventStatus) {
		if status == core.EventFailed {
			log.Warn("sim: fault", "event", ev.String())
		}
	}))
	b.Remote = core.NewRemote(b.Driver)

	c := *cfg
	c.Groups = append([]core.GroupConfig(nil), cfg.Groups...)
	for i := range c.Groups {
		c.Groups[i].Notify = b.Remote.Notifier(c.Groups[i].ID)
	}
	if err := b.Driver.Init(&c); err != nil {
		return nil, err
	}
	for _, g := range c.Groups {
		samples := g.Samples
		if samples == 0 {
			samples = 1
		}
		if err := b.Driver.SetupResultBuffer(g.ID, make([]core.Value, len(g.Channels)*samples)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// onStore plays the converter's part in the stop and calibration handshakes.
func (b *Board) onStore(off, v uint32) {
	if off%hal.UnitStride != hal.RegCTRL {
		return
	}
	status := off - hal.RegCTRL + hal.RegSTATUS
	if v&hal.CtrlSTOP != 0 {
		b.Regs.Poke(status, b.Regs.Peek(status)|hal.StatusSTOPACK)
	}
	if v&hal.CtrlCAL != 0 {
		b.Regs.Poke(status, b.Regs.Peek(status)|hal.StatusCALDONE)
	}
}

// Attach serves the command protocol on rw until it fails or is closed.
func (b *Board) Attach(rw io.ReadWriteCloser) {
	ep := protocol.NewEndpoint(rw, func(id uint16, r *protocol.Reader) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.Remote.Dispatch(id, r)
	})
	ep.OnReset = func() { b.log.Debug("sim: host reset the sequence") }
	b.Remote.SetOutput(ep)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := rw.Read(buf)
			if n > 0 {
				ep.Receive(buf[:n])
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
					b.log.Debug("sim: link closed", "err", err)
				}
				return
			}
		}
	}()
}

// Pipe attaches the board to one end of an in-memory link and returns the
// other end for the host.
func (b *Board) Pipe() net.Conn {
	host, dev := net.Pipe()
	b.Attach(dev)
	return host
}

// Step converts one segment on every unit running a software-triggered
// conversion, then services the resulting events and notifications. It
// returns the number of events handled.
func (b *Board) Step() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for u := 0; u < b.units; u++ {
		b.convert(hal.UnitID(u), hal.CtrlSTART)
	}
	return b.service()
}

// Trigger delivers one hardware trigger pulse to a unit.
func (b *Board) Trigger(unit hal.UnitID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.convert(unit, hal.CtrlHWTRIG)
	return b.service()
}

func (b *Board) service() int {
	n := b.Driver.Poll(b.Bridge)
	b.Remote.NotifyTask()
	return n
}

// convert fills the result registers of the loaded segment when the unit is
// armed by mode and the previous segment has been collected.
func (b *Board) convert(unit hal.UnitID, mode uint32) bool {
	base := hal.UnitBase(unit)
	ctrl := b.Regs.Peek(base + hal.RegCTRL)
	status := b.Regs.Peek(base + hal.RegSTATUS)
	if ctrl&hal.CtrlEN == 0 || ctrl&mode == 0 || ctrl&hal.CtrlDMAEN != 0 || status&hal.StatusEOS != 0 {
		return false
	}
	n := hal.FieldCtrlNSLOT.Get(ctrl)
	for i := uint32(0); i < n; i++ {
		cmd := b.Regs.Peek(base + hal.RegCMD0 + 4*i)
		ch := uint8(hal.FieldCmdCh.Get(cmd))
		b.Regs.Poke(base+hal.RegRES0+4*i, uint32(b.Level(unit, ch)))
	}
	if mode == hal.CtrlSTART {
		b.Regs.Poke(base+hal.RegCTRL, ctrl&^hal.CtrlSTART)
	}
	b.Regs.Poke(base+hal.RegSTATUS, status|hal.StatusEOS)
	return true
}

// Run steps the board every period until ctx is done.
func (b *Board) Run(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.Step()
		}
	}
}
