package core

import (
	"errors"
	"sync"
	"testing"

	"goadc/errcode"
	"goadc/hal"
)

// fakeBridge records every call and simulates conversions on demand.
type fakeBridge struct {
	mu    sync.Mutex
	calls []string

	seg    map[UnitID]hal.Segment
	xfer   map[UnitID]hal.DmaTransfer
	desc   map[UnitID]int
	iter   map[UnitID]int
	levels map[uint8]Value

	segments    map[UnitID][]int // channel count of every programmed segment
	stops       int
	stopTimeout bool
	calPolls    int // CalibrationDone turns true after this many polls, <0 never
	polled      int
	initErr     error
	power       map[UnitID]uint8
	powerFault  map[UnitID]bool // SetPowerState fails on these units
	dividers    map[UnitID]uint8
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		seg:        make(map[UnitID]hal.Segment),
		xfer:       make(map[UnitID]hal.DmaTransfer),
		desc:       make(map[UnitID]int),
		iter:       make(map[UnitID]int),
		levels:     make(map[uint8]Value),
		segments:   make(map[UnitID][]int),
		power:      make(map[UnitID]uint8),
		powerFault: make(map[UnitID]bool),
		dividers:   make(map[UnitID]uint8),
		calPolls:   2,
	}
}

func (f *fakeBridge) log(op string, unit UnitID) {
	f.calls = append(f.calls, op+":"+itoa(int(unit)))
}

// level is the value converted on a hardware channel.
func (f *fakeBridge) level(hw uint8) Value {
	if v, ok := f.levels[hw]; ok {
		return v
	}
	return Value(hw)*10 + 1
}

func (f *fakeBridge) InitUnit(unit UnitID, setup hal.UnitSetup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("init", unit)
	return f.initErr
}

func (f *fakeBridge) DeInitUnit(unit UnitID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("deinit", unit)
}

func (f *fakeBridge) ConfigurePartialConversion(unit UnitID, seg hal.Segment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("configure", unit)
	seg.Channels = append([]uint8(nil), seg.Channels...)
	f.seg[unit] = seg
	f.segments[unit] = append(f.segments[unit], len(seg.Channels))
}

func (f *fakeBridge) ConfigureDmaPartialConversion(unit UnitID, seg hal.Segment, xfer hal.DmaTransfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("configure-dma", unit)
	seg.Channels = append([]uint8(nil), seg.Channels...)
	f.seg[unit] = seg
	descs := make([]hal.DmaDescriptor, len(xfer.Descriptors))
	for i, d := range xfer.Descriptors {
		d.Dest = append([]int(nil), d.Dest...)
		descs[i] = d
	}
	xfer.Descriptors = descs
	f.xfer[unit] = xfer
	f.desc[unit] = 0
	f.iter[unit] = 0
}

func (f *fakeBridge) StartNormalConversion(unit UnitID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("start", unit)
}

func (f *fakeBridge) StartHwTriggerConversion(unit UnitID, trig hal.Trigger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("arm", unit)
}

func (f *fakeBridge) StopCurrentConversion(unit UnitID) hal.PollResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("stop", unit)
	f.stops++
	delete(f.seg, unit)
	if f.stopTimeout {
		return hal.PollTimedOut
	}
	return hal.PollOK
}

func (f *fakeBridge) ReadResults(unit UnitID, dst []Value) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("read", unit)
	seg := f.seg[unit]
	n := 0
	for i, hw := range seg.Channels {
		if i >= len(dst) {
			break
		}
		dst[i] = f.level(hw)
		n++
	}
	return n
}

func (f *fakeBridge) StartCalibration(unit UnitID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("calibrate", unit)
	f.polled = 0
}

func (f *fakeBridge) CalibrationDone(unit UnitID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled++
	return f.calPolls >= 0 && f.polled > f.calPolls
}

func (f *fakeBridge) SetClockDivider(unit UnitID, div uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("clock", unit)
	f.dividers[unit] = div
}

var errFakePower = errors.New("power rail fault")

func (f *fakeBridge) SetPowerState(unit UnitID, state uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("power", unit)
	if f.powerFault[unit] {
		return errFakePower
	}
	f.power[unit] = state
	return nil
}

// dmaRound performs one DMA iteration on a unit: every slot of the loaded
// segment is written through the current descriptor.
func (f *fakeBridge) dmaRound(unit UnitID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	xfer := f.xfer[unit]
	idx := f.desc[unit]
	if idx < 0 || idx >= len(xfer.Descriptors) {
		return
	}
	d := xfer.Descriptors[idx]
	it := f.iter[unit]
	for pos, hw := range f.seg[unit].Channels {
		xfer.Buffer[d.Dest[pos]+it*d.Stride] = f.level(hw)
	}
	it++
	if it == d.Iterations {
		it = 0
		f.desc[unit] = d.Next
	}
	f.iter[unit] = it
}

func (f *fakeBridge) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.stops = 0
	for k := range f.segments {
		delete(f.segments, k)
	}
}

func (f *fakeBridge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBridge) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) > len(op) && c[:len(op)+1] == op+":" {
			n++
		}
	}
	return n
}

// recorder collects both diagnostic channels.
type recorder struct {
	mu     sync.Mutex
	usage  []errcode.Code
	svcs   []ServiceID
	failed []EventID
	passed []EventID
}

func (r *recorder) ReportUsageError(unit UnitID, svc ServiceID, code errcode.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = append(r.usage, code)
	r.svcs = append(r.svcs, svc)
}

func (r *recorder) ReportEvent(ev EventID, status EventStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status == EventFailed {
		r.failed = append(r.failed, ev)
	} else {
		r.passed = append(r.passed, ev)
	}
}

func (r *recorder) lastUsage() errcode.Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.usage) == 0 {
		return errcode.OK
	}
	return r.usage[len(r.usage)-1]
}

func (r *recorder) usageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.usage)
}

func channels(hw ...uint8) []ChannelConfig {
	chs := make([]ChannelConfig, len(hw))
	for i, h := range hw {
		chs[i] = ChannelConfig{ID: ChannelID(i), HwChannel: h}
	}
	return chs
}

func swOneShot(id GroupID, unit UnitID, prio uint8, hw ...uint8) GroupConfig {
	return GroupConfig{
		ID:       id,
		Unit:     unit,
		Channels: channels(hw...),
		Trigger:  TriggerSoftware,
		Mode:     ConvOneShot,
		Access:   AccessSingle,
		Priority: prio,
		Samples:  1,
	}
}

func allFeatures() Features {
	return Features{LimitCheck: true, DMA: true, HwTrigger: true, Notifications: true, Priority: true}
}

func oneUnit(slots int, groups ...GroupConfig) *Config {
	return &Config{
		Units:    []UnitConfig{{ID: 0, Slots: slots, HwTriggerSlots: 2, DMA: true, DMAChannel: 4, ClockDivider: [2]uint8{1, 4}}},
		Groups:   groups,
		Features: allFeatures(),
	}
}

// setup initialises a driver and attaches a fresh result buffer to every
// group.
func setup(t *testing.T, cfg *Config) (*Driver, *fakeBridge, *recorder) {
	t.Helper()
	fb := newFakeBridge()
	rec := &recorder{}
	d := New(fb)
	d.SetUsageReporter(rec)
	d.SetFaultReporter(rec)
	if err := d.Init(cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i := range cfg.Groups {
		g := &cfg.Groups[i]
		samples := g.Samples
		if samples == 0 {
			samples = 1
		}
		if err := d.SetupResultBuffer(g.ID, make([]Value, len(g.Channels)*samples)); err != nil {
			t.Fatalf("SetupResultBuffer(%d): %v", g.ID, err)
		}
	}
	fb.reset()
	return d, fb, rec
}

func mustState(t *testing.T, d *Driver, id GroupID, want GroupState) {
	t.Helper()
	got, err := d.GetGroupStatus(id)
	if err != nil {
		t.Fatalf("GetGroupStatus(%d): %v", id, err)
	}
	if got != want {
		t.Errorf("group %d state = %v, want %v", id, got, want)
	}
}

func snapshot(d *Driver, unit UnitID, kind QueueKind) []GroupID {
	buf := make([]GroupID, 16)
	return buf[:d.QueueSnapshot(unit, kind, buf)]
}

// frontIsActive checks that the hardware owner is the front of the
// highest-precedence non-empty queue.
func frontIsActive(t *testing.T, d *Driver, unit UnitID) {
	t.Helper()
	want := noGroup
	for _, k := range DefaultPrecedence {
		if q := snapshot(d, unit, k); len(q) > 0 {
			want = q[0]
			break
		}
	}
	got, _ := d.ActiveGroup(unit)
	if got != want {
		t.Errorf("active group %d, queue front %d", got, want)
	}
}

func equalIDs(a, b []GroupID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
