package core

import "goadc/errcode"

// ReadGroup copies the latest sample of every channel, in logical channel
// order, into out. inRange is false when the last round failed its limit
// check. A group that has not converted yet returns errcode.NoResult, which is
// not a usage error.
func (d *Driver) ReadGroup(id GroupID, out []Value) (inRange bool, err error) {
	g, err := d.lookup(SvcReadGroup, id)
	if err != nil {
		return false, err
	}
	u := g.unit
	if len(out) < len(g.cfg.Channels) {
		return false, d.usageError(SvcReadGroup, u.id, errcode.ParamPointer)
	}
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(SvcReadGroup, u.id, notIdle(g)); err != nil {
		return false, err
	}
	st := &g.status
	if !st.AlreadyConverted {
		return false, errcode.New(SvcReadGroup.String(), errcode.NoResult)
	}
	last := lastSample(g)
	samples := g.cfg.Samples
	for l := range g.cfg.Channels {
		out[l] = st.Buffer[l*samples+last]
	}
	consumed(g)
	return !st.LimitFailed, nil
}

// GetStreamLastPointer returns the result buffer starting at the most recent
// sample of the first channel, and the number of valid samples per channel.
// The sample of channel c is at ptr[c*Samples].
func (d *Driver) GetStreamLastPointer(id GroupID) ([]Value, int, error) {
	g, err := d.lookup(SvcGetStreamLastPointer, id)
	if err != nil {
		return nil, 0, err
	}
	u := g.unit
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(SvcGetStreamLastPointer, u.id, notIdle(g)); err != nil {
		return nil, 0, err
	}
	st := &g.status
	if !st.AlreadyConverted {
		return nil, 0, nil
	}
	ptr := st.Buffer[lastSample(g):]
	n := st.Valid
	consumed(g)
	return ptr, n, nil
}

func lastSample(g *group) int {
	samples := g.cfg.Samples
	return (g.status.ResultIndex + samples - 1) % samples
}

// consumed applies the readback transition. Unit lock held.
func consumed(g *group) {
	st := &g.status
	switch st.State {
	case StateCompleted:
		st.State = StateBusy
	case StateStreamCompleted:
		if st.ImplicitlyStopped {
			st.State = StateIdle
			st.ImplicitlyStopped = false
			st.HwTriggerEnabled = false
		} else {
			st.State = StateBusy
		}
	}
}
