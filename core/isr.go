package core

// HandleSegmentComplete is the end-of-segment interrupt entry for a unit. It
// collects the segment results, programs the next segment or finishes the
// round, and runs the group notification after leaving the critical region.
func (d *Driver) HandleSegmentComplete(id UnitID) {
	if !d.initialized.Load() || int(id) >= len(d.units) {
		return
	}
	if notify := d.segmentComplete(&d.units[id]); notify != nil {
		notify()
	}
}

func (d *Driver) segmentComplete(u *unit) func() {
	s := u.lock.enter()
	defer u.lock.exit(s)
	if u.active == noGroup {
		d.record(EvtSpurious, u.id, noGroup, 0)
		return nil
	}
	g := &d.groups[u.active]
	if g.cfg.UseDMA {
		return nil
	}
	st := &g.status
	seg := segment(u, g)
	first := seg.First
	d.bridge.ReadResults(u.id, g.round[first:first+len(seg.Channels)])
	st.CurrentChannel = first + len(seg.Channels)
	d.record(EvtSegment, u.id, g.cfg.ID, uint32(st.CurrentChannel))
	if !seg.Final {
		d.program(u, g)
		return nil
	}
	st.CurrentChannel = 0
	return d.completeRound(u, g)
}

// HandleDmaComplete is the DMA interrupt entry: one iteration of the active
// group's descriptor chain has landed in its result buffer.
func (d *Driver) HandleDmaComplete(id UnitID) {
	if !d.initialized.Load() || int(id) >= len(d.units) {
		return
	}
	if notify := d.dmaComplete(&d.units[id]); notify != nil {
		notify()
	}
}

func (d *Driver) dmaComplete(u *unit) func() {
	s := u.lock.enter()
	defer u.lock.exit(s)
	if u.active == noGroup {
		d.record(EvtSpurious, u.id, noGroup, 1)
		return nil
	}
	g := &d.groups[u.active]
	if !g.cfg.UseDMA {
		return nil
	}
	g.status.LimitFailed = false
	d.storeSample(g)
	d.advance(u, g)
	return d.notification(g)
}

// completeRound applies the limit check and stores one round of results.
// Disabled channels keep their buffer contents.
// It returns the callback to run once the lock is released, if any.
func (d *Driver) completeRound(u *unit, g *group) func() {
	st := &g.status
	for pos, l := range g.logical {
		g.values[l] = g.round[pos]
	}
	if g.cfg.LimitCheck && d.cfg.Features.LimitCheck && !g.inRange() {
		st.LimitFailed = true
		d.record(EvtLimit, u.id, g.cfg.ID, 0)
		if g.cfg.Trigger == TriggerSoftware && g.cfg.Mode == ConvOneShot {
			d.retire(u, g)
			st.State = StateIdle
			d.reschedule(u)
			return nil
		}
		d.rearm(u, g)
		return nil
	}
	st.LimitFailed = false
	samples := g.cfg.Samples
	for _, l := range g.logical {
		st.Buffer[l*samples+st.ResultIndex] = g.values[l]
	}
	d.storeSample(g)
	d.advance(u, g)
	return d.notification(g)
}

// storeSample accounts for one sample written at ResultIndex.
func (d *Driver) storeSample(g *group) {
	st := &g.status
	st.AlreadyConverted = true
	st.ResultIndex++
	if st.Valid < g.cfg.Samples {
		st.Valid++
	}
	d.record(EvtRound, g.unit.id, g.cfg.ID, uint32(st.ResultIndex))
}

// advance moves g through COMPLETED or STREAM_COMPLETED after a stored sample
// and keeps it running, wraps it, or stops it.
func (d *Driver) advance(u *unit, g *group) {
	st := &g.status
	if st.ResultIndex < g.cfg.Samples {
		if st.State == StateBusy {
			st.State = StateCompleted
		}
		d.rearm(u, g)
		return
	}
	st.State = StateStreamCompleted
	if wraps(g) {
		st.ResultIndex = 0
		d.rearm(u, g)
		return
	}
	st.ImplicitlyStopped = true
	d.retire(u, g)
	d.reschedule(u)
}

func (d *Driver) notification(g *group) func() {
	if g.status.NotifyEnabled && d.cfg.Features.Notifications {
		return g.cfg.Notify
	}
	return nil
}

// EventSource reports pending converter events. *hal.RegBridge implements it.
type EventSource interface {
	EndOfSegment(unit UnitID) bool
	DmaDone(unit UnitID) bool
}

// Poll runs the interrupt entries for every event src reports pending and
// returns how many it handled. Boards without a routed converter interrupt
// call it from their main loop.
func (d *Driver) Poll(src EventSource) int {
	if !d.initialized.Load() {
		return 0
	}
	n := 0
	for i := range d.units {
		id := d.units[i].id
		if src.DmaDone(id) {
			d.HandleDmaComplete(id)
			n++
		}
		if src.EndOfSegment(id) {
			d.HandleSegmentComplete(id)
			n++
		}
	}
	return n
}
