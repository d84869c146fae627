package core

import "goadc/hal"

// All functions in this file run with the unit lock held.

// enqueue places g on its queue. The software normal queue is kept in
// priority order when the priority feature is on: g goes in front of the first
// entry whose priority is not higher than its own. Every other queue is FIFO.
func (d *Driver) enqueue(g *group) bool {
	u := g.unit
	q := &u.queues[g.kind]
	pos := q.len()
	if g.kind == QueueSwNormal && d.cfg.Features.Priority {
		for i := 0; i < q.len(); i++ {
			if d.groups[q.items[i]].cfg.Priority <= g.cfg.Priority {
				pos = i
				break
			}
		}
	}
	if !q.insertAt(pos, g.cfg.ID) {
		return false
	}
	d.record(EvtEnqueue, u.id, g.cfg.ID, uint32(g.kind))
	return true
}

func (d *Driver) dequeue(g *group) bool {
	if !g.unit.queues[g.kind].remove(g.cfg.ID) {
		return false
	}
	d.record(EvtDequeue, g.unit.id, g.cfg.ID, uint32(g.kind))
	return true
}

// desired is the front of the highest-precedence non-empty queue.
func (d *Driver) desired(u *unit) GroupID {
	for _, k := range d.cfg.Precedence {
		if id := u.queues[k].front(); id != noGroup {
			return id
		}
	}
	return noGroup
}

// reschedule hands the hardware to the desired group, preempting the current
// owner if needed. It returns the outcome of any stop it issued.
func (d *Driver) reschedule(u *unit) hal.PollResult {
	want := d.desired(u)
	if want == u.active {
		return hal.PollOK
	}
	res := hal.PollOK
	if u.active != noGroup {
		res = d.preempt(u, &d.groups[u.active])
	}
	if want != noGroup {
		u.active = want
		d.program(u, &d.groups[want])
	}
	return res
}

// preempt takes the hardware away from g, which stays queued.
func (d *Driver) preempt(u *unit, g *group) hal.PollResult {
	d.record(EvtPreempt, u.id, g.cfg.ID, uint32(g.status.CurrentChannel))
	res := d.stopHardware(u)
	if g.cfg.Replacement == ReplaceAbortRestart {
		g.status.CurrentChannel = 0
	}
	return res
}

// stopHardware issues the bounded stop and releases the unit.
func (d *Driver) stopHardware(u *unit) hal.PollResult {
	res := d.bridge.StopCurrentConversion(u.id)
	if res.Ok() {
		d.faults.ReportEvent(EventStopTimeout, EventPassed)
	} else {
		d.record(EvtStopTimeout, u.id, u.active, 0)
		d.faults.ReportEvent(EventStopTimeout, EventFailed)
	}
	u.active = noGroup
	return res
}

// retire removes g from its queue for good. A hardware-triggered owner is
// disarmed; a software owner has already finished converting.
func (d *Driver) retire(u *unit, g *group) hal.PollResult {
	d.dequeue(g)
	g.status.CurrentChannel = 0
	if u.active != g.cfg.ID {
		return hal.PollOK
	}
	if g.cfg.Trigger == TriggerHardware {
		return d.stopHardware(u)
	}
	u.active = noGroup
	return hal.PollOK
}

// ActiveGroup returns the group that owns the unit's hardware.
func (d *Driver) ActiveGroup(id UnitID) (GroupID, bool) {
	if !d.initialized.Load() || int(id) >= len(d.units) {
		return noGroup, false
	}
	u := &d.units[id]
	s := u.lock.enter()
	defer u.lock.exit(s)
	return u.active, u.active != noGroup
}

// QueueSnapshot copies the contents of one queue, front first, into dst.
func (d *Driver) QueueSnapshot(id UnitID, kind QueueKind, dst []GroupID) int {
	if !d.initialized.Load() || int(id) >= len(d.units) || kind >= queueKinds {
		return 0
	}
	u := &d.units[id]
	s := u.lock.enter()
	defer u.lock.exit(s)
	return u.queues[kind].snapshot(dst)
}
