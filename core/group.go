package core

import (
	"goadc/errcode"
	"goadc/hal"
)

// SetupResultBuffer attaches the application buffer that receives g's results.
// The layout is channel-major: buf[channel*Samples+sample].
func (d *Driver) SetupResultBuffer(id GroupID, buf []Value) error {
	g, err := d.lookup(SvcSetupResultBuffer, id)
	if err != nil {
		return err
	}
	u := g.unit
	if err := d.check(SvcSetupResultBuffer, u.id, bufferLength(g, buf)); err != nil {
		return err
	}
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(SvcSetupResultBuffer, u.id, idleState(g)); err != nil {
		return err
	}
	g.status.Buffer = buf[:len(g.cfg.Channels)*g.cfg.Samples]
	resetStatus(&g.status)
	return nil
}

func resetStatus(st *GroupStatus) {
	st.AlreadyConverted = false
	st.ResultIndex = 0
	st.Valid = 0
	st.CurrentChannel = 0
	st.LimitFailed = false
	st.ImplicitlyStopped = false
}

// StartGroupConversion queues a software-triggered group and lets the unit's
// scheduler decide whether it converts now.
func (d *Driver) StartGroupConversion(id GroupID) error {
	g, err := d.lookup(SvcStartGroupConversion, id)
	if err != nil {
		return err
	}
	u := g.unit
	if err := d.check(SvcStartGroupConversion, u.id, softwareTrigger(g)); err != nil {
		return err
	}
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(SvcStartGroupConversion, u.id,
		bufferSet(g), unitAvailable(u), idleState(g), queueHasRoom(g)); err != nil {
		return err
	}
	resetStatus(&g.status)
	g.status.State = StateBusy
	d.enqueue(g)
	d.reschedule(u)
	return nil
}

// StopGroupConversion cancels a software-triggered group.
func (d *Driver) StopGroupConversion(id GroupID) error {
	g, err := d.lookup(SvcStopGroupConversion, id)
	if err != nil {
		return err
	}
	u := g.unit
	if err := d.check(SvcStopGroupConversion, u.id, softwareTrigger(g)); err != nil {
		return err
	}
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(SvcStopGroupConversion, u.id, notIdle(g)); err != nil {
		return err
	}
	res := hal.PollOK
	if u.active == g.cfg.ID {
		res = d.stopHardware(u)
	}
	d.dequeue(g)
	st := &g.status
	st.State = StateIdle
	st.CurrentChannel = 0
	st.ImplicitlyStopped = false
	st.NotifyEnabled = false
	d.reschedule(u)
	if !res.Ok() {
		return errcode.New(SvcStopGroupConversion.String(), errcode.Timeout)
	}
	return nil
}

// EnableHardwareTrigger arms a hardware-triggered group.
func (d *Driver) EnableHardwareTrigger(id GroupID) error {
	g, err := d.lookup(SvcEnableHardwareTrigger, id)
	if err != nil {
		return err
	}
	u := g.unit
	if err := d.check(SvcEnableHardwareTrigger, u.id, hardwareTrigger(g), oneShotMode(g)); err != nil {
		return err
	}
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(SvcEnableHardwareTrigger, u.id,
		bufferSet(g), unitAvailable(u), idleState(g), queueHasRoom(g)); err != nil {
		return err
	}
	resetStatus(&g.status)
	g.status.State = StateBusy
	g.status.HwTriggerEnabled = true
	d.enqueue(g)
	d.reschedule(u)
	return nil
}

// DisableHardwareTrigger disarms a hardware-triggered group.
func (d *Driver) DisableHardwareTrigger(id GroupID) error {
	g, err := d.lookup(SvcDisableHardwareTrigger, id)
	if err != nil {
		return err
	}
	u := g.unit
	if err := d.check(SvcDisableHardwareTrigger, u.id, hardwareTrigger(g)); err != nil {
		return err
	}
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(SvcDisableHardwareTrigger, u.id, triggerEnabled(g)); err != nil {
		return err
	}
	res := d.retire(u, g)
	st := &g.status
	st.State = StateIdle
	st.HwTriggerEnabled = false
	st.ImplicitlyStopped = false
	st.NotifyEnabled = false
	d.reschedule(u)
	if !res.Ok() {
		return errcode.New(SvcDisableHardwareTrigger.String(), errcode.Timeout)
	}
	return nil
}

// EnableGroupNotification turns on the group's completion callback.
func (d *Driver) EnableGroupNotification(id GroupID) error {
	return d.setNotification(SvcEnableGroupNotification, id, true)
}

// DisableGroupNotification turns off the group's completion callback.
func (d *Driver) DisableGroupNotification(id GroupID) error {
	return d.setNotification(SvcDisableGroupNotification, id, false)
}

func (d *Driver) setNotification(svc ServiceID, id GroupID, on bool) error {
	g, err := d.lookup(svc, id)
	if err != nil {
		return err
	}
	if err := d.check(svc, g.unit.id, d.notifCapable(g)); err != nil {
		return err
	}
	s := g.unit.lock.enter()
	g.status.NotifyEnabled = on
	g.unit.lock.exit(s)
	return nil
}

// GetGroupStatus returns the conversion state of a group.
func (d *Driver) GetGroupStatus(id GroupID) (GroupState, error) {
	g, err := d.lookup(SvcGetGroupStatus, id)
	if err != nil {
		return StateIdle, err
	}
	return d.state(g), nil
}

func (d *Driver) state(g *group) GroupState {
	s := g.unit.lock.enter()
	defer g.unit.lock.exit(s)
	return g.status.State
}

// Status returns a copy of a group's runtime record.
func (d *Driver) Status(id GroupID) (GroupStatus, bool) {
	if !d.initialized.Load() || int(id) >= len(d.groups) {
		return GroupStatus{}, false
	}
	g := &d.groups[id]
	s := g.unit.lock.enter()
	defer g.unit.lock.exit(s)
	return g.status, true
}

// channelCount is the width of group id, or 0 for an unknown group.
func (d *Driver) channelCount(id GroupID) int {
	if !d.initialized.Load() || int(id) >= len(d.groups) {
		return 0
	}
	return len(d.groups[id].cfg.Channels)
}
