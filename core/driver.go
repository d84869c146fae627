// Package core implements the scheduling and arbitration core of a
// multi-unit ADC driver: group state machines, per-unit request queues,
// segment programming of the conversion slots, limit checking and result
// readback. Hardware access goes through a hal.Bridge.
package core

import (
	"sort"
	"sync"
	"sync/atomic"

	"goadc/errcode"
	"goadc/hal"
)

// GroupStatus is the runtime record of a group.
type GroupStatus struct {
	State             GroupState
	AlreadyConverted  bool
	ResultIndex       int // next sample slot in the result buffer
	Valid             int // valid samples per channel, at most Samples
	CurrentChannel    int // progress cursor in conversion order
	HwTriggerEnabled  bool
	NotifyEnabled     bool
	LimitFailed       bool
	ImplicitlyStopped bool
	Buffer            []Value
}

type group struct {
	cfg  *GroupConfig
	unit *unit
	kind QueueKind

	// Every channel in physical order, and the enable mask by logical index.
	allOrder   []uint8
	allLogical []int
	enabled    []bool

	order   []uint8 // enabled hardware channels in conversion order
	logical []int   // conversion position -> logical channel index
	round   []Value // one round, conversion order
	values  []Value // one round, logical order

	status GroupStatus
}

type unit struct {
	cfg  *UnitConfig
	id   UnitID
	lock critical

	queues      [queueKinds]queue
	active      GroupID
	calibrating bool
	exclusive   bool // held by a unit-wide operation

	descs [hal.DescCount]hal.DmaDescriptor
	dest  [hal.DescCount][]int
}

// idle reports whether the unit owns no work. Caller holds u.lock.
func (u *unit) idle() bool {
	if u.active != noGroup {
		return false
	}
	for k := range u.queues {
		if !u.queues[k].empty() {
			return false
		}
	}
	return true
}

// Driver is one ADC driver instance. All state lives here; several drivers
// can coexist, e.g. in tests.
type Driver struct {
	bridge hal.Bridge

	mu          sync.Mutex // lifecycle, clock and power state
	initialized atomic.Bool
	cfg         Config
	units       []unit
	groups      []group

	clock    ClockMode
	power    PowerState
	target   PowerState
	prepared bool

	usage  UsageReporter
	faults FaultReporter

	trace        traceRing
	debugOut     DebugWriter
	debugEnabled bool
}

// New returns an uninitialised driver talking to bridge.
func New(bridge hal.Bridge) *Driver {
	d := &Driver{bridge: bridge}
	d.usage = debugReporter{d}
	d.faults = debugReporter{d}
	return d
}

// SetUsageReporter replaces the usage-error channel.
func (d *Driver) SetUsageReporter(r UsageReporter) {
	if r == nil {
		r = debugReporter{d}
	}
	d.usage = r
}

// SetFaultReporter replaces the hardware-fault channel.
func (d *Driver) SetFaultReporter(r FaultReporter) {
	if r == nil {
		r = debugReporter{d}
	}
	d.faults = r
}

// Init validates cfg, allocates every runtime structure and brings up the
// units. No allocation happens on any later operation path.
func (d *Driver) Init(cfg *Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized.Load() {
		return d.usageError(SvcInit, AnyUnit, errcode.AlreadyInitialized)
	}
	if cfg == nil {
		return d.usageError(SvcInit, AnyUnit, errcode.ParamConfig)
	}
	c := cfg.withDefaults()
	if err := c.Validate(); err != nil {
		d.usage.ReportUsageError(AnyUnit, SvcInit, errcode.ParamConfig)
		return &errcode.E{C: errcode.ParamConfig, Op: SvcInit.String(), Err: err}
	}
	d.cfg = c
	d.build()

	for i := range d.units {
		u := &d.units[i]
		err := d.bridge.InitUnit(u.id, hal.UnitSetup{
			Slots:        u.cfg.Slots,
			Resolution:   u.cfg.Resolution,
			SampleTime:   u.cfg.SampleTime,
			ClockDivider: u.cfg.ClockDivider[ClockNormal],
			DMA:          u.cfg.DMA,
			DMAChannel:   u.cfg.DMAChannel,
		})
		if err != nil {
			for j := 0; j < i; j++ {
				d.bridge.DeInitUnit(d.units[j].id)
			}
			d.units, d.groups = nil, nil
			return &errcode.E{C: errcode.Error, Op: SvcInit.String(), Msg: "unit " + itoa(i), Err: err}
		}
	}
	d.clock = ClockNormal
	d.power = PowerFull
	d.target = PowerFull
	d.prepared = false
	d.initialized.Store(true)
	d.debugPrintln("[ADC] initialized units=" + itoa(len(d.units)) + " groups=" + itoa(len(d.groups)))
	return nil
}

// build allocates units, queues and group scratch from d.cfg.
func (d *Driver) build() {
	c := &d.cfg
	d.units = make([]unit, len(c.Units))
	for i := range d.units {
		u := &d.units[i]
		u.cfg = &c.Units[i]
		u.id = u.cfg.ID
		u.active = noGroup
		swDepth := c.SwQueueDepth
		if swDepth == 0 {
			swDepth = c.unitGroups(u.id)
		}
		u.queues[QueueSwNormal] = newQueue(swDepth)
		u.queues[QueueSwInjected] = newQueue(1)
		u.queues[QueueHwNormal] = newQueue(u.cfg.HwTriggerSlots)
		u.queues[QueueHwInjected] = newQueue(u.cfg.HwTriggerSlots)
		for k := range u.dest {
			u.dest[k] = make([]int, u.cfg.Slots)
		}
	}

	d.groups = make([]group, len(c.Groups))
	for i := range d.groups {
		g := &d.groups[i]
		g.cfg = &c.Groups[i]
		g.unit = &d.units[g.cfg.Unit]
		g.kind = queueFor(g.cfg)

		n := len(g.cfg.Channels)
		g.allLogical = make([]int, n)
		for j := range g.allLogical {
			g.allLogical[j] = j
		}
		// Physical order: ascending hardware channel, ties keep logical order.
		sort.SliceStable(g.allLogical, func(a, b int) bool {
			return g.cfg.Channels[g.allLogical[a]].HwChannel < g.cfg.Channels[g.allLogical[b]].HwChannel
		})
		g.allOrder = make([]uint8, n)
		for pos, l := range g.allLogical {
			g.allOrder[pos] = g.cfg.Channels[l].HwChannel
		}
		g.enabled = make([]bool, n)
		for j := range g.enabled {
			g.enabled[j] = true
		}
		g.order = make([]uint8, 0, n)
		g.logical = make([]int, 0, n)
		g.applyMask()
		g.round = make([]Value, n)
		g.values = make([]Value, n)
	}
}

func queueFor(g *GroupConfig) QueueKind {
	switch {
	case g.Trigger == TriggerHardware && g.Type == ConvInjected:
		return QueueHwInjected
	case g.Trigger == TriggerHardware:
		return QueueHwNormal
	case g.Type == ConvInjected:
		return QueueSwInjected
	}
	return QueueSwNormal
}

// DeInit returns every unit to its reset state. All units must be idle.
func (d *Driver) DeInit() error {
	if c := d.initializedCode(); c != errcode.OK {
		return d.usageError(SvcDeInit, AnyUnit, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.claimAll(); c != errcode.OK {
		return d.usageError(SvcDeInit, AnyUnit, c)
	}
	for i := range d.groups {
		if d.state(&d.groups[i]) != StateIdle {
			d.releaseAll()
			return d.usageError(SvcDeInit, AnyUnit, errcode.Busy)
		}
	}
	d.initialized.Store(false)
	for i := range d.units {
		d.bridge.DeInitUnit(d.units[i].id)
	}
	d.units, d.groups = nil, nil
	return nil
}

// GetVersionInfo reports the driver version.
func (d *Driver) GetVersionInfo() VersionInfo {
	return VersionInfo{VendorID: vendorID, ModuleID: moduleID, Major: 1, Minor: 2, Patch: 0}
}

// claim takes a unit's exclusive flag for a unit-wide operation. The unit must
// be idle.
func (d *Driver) claim(u *unit) errcode.Code {
	s := u.lock.enter()
	defer u.lock.exit(s)
	if u.exclusive || !u.idle() {
		return errcode.Busy
	}
	u.exclusive = true
	return errcode.OK
}

func (d *Driver) release(u *unit) {
	s := u.lock.enter()
	u.exclusive = false
	u.lock.exit(s)
}

// claimAll claims every unit or none.
func (d *Driver) claimAll() errcode.Code {
	for i := range d.units {
		if c := d.claim(&d.units[i]); c != errcode.OK {
			for j := 0; j < i; j++ {
				d.release(&d.units[j])
			}
			return c
		}
	}
	return errcode.OK
}

func (d *Driver) releaseAll() {
	for i := range d.units {
		d.release(&d.units[i])
	}
}
