package core

import "goadc/errcode"

// EnableChannel puts a channel back into its group's conversion order. The
// group must be idle.
func (d *Driver) EnableChannel(id GroupID, ch ChannelID) error {
	return d.setChannel(SvcEnableChannel, id, ch, true)
}

// DisableChannel removes a channel from its group's conversion order until it
// is enabled again. Its slots in the result buffer keep their last values. A
// group keeps at least one enabled channel.
func (d *Driver) DisableChannel(id GroupID, ch ChannelID) error {
	return d.setChannel(SvcDisableChannel, id, ch, false)
}

func (d *Driver) setChannel(svc ServiceID, id GroupID, ch ChannelID, on bool) error {
	g, err := d.lookup(svc, id)
	if err != nil {
		return err
	}
	u := g.unit
	l := g.channelIndex(ch)
	if l < 0 {
		return d.usageError(svc, u.id, errcode.ParamChannel)
	}
	s := u.lock.enter()
	defer u.lock.exit(s)
	if err := d.check(svc, u.id, idleState(g)); err != nil {
		return err
	}
	if !on && g.enabled[l] && len(g.logical) == 1 {
		return d.usageError(svc, u.id, errcode.ParamChannel)
	}
	g.enabled[l] = on
	g.applyMask()
	return nil
}

// channelIndex returns the logical index of ch in g, or -1.
func (g *group) channelIndex(ch ChannelID) int {
	for l := range g.cfg.Channels {
		if g.cfg.Channels[l].ID == ch {
			return l
		}
	}
	return -1
}

// applyMask rebuilds the conversion order from the enable mask in place.
func (g *group) applyMask() {
	g.order = g.order[:0]
	g.logical = g.logical[:0]
	for pos, l := range g.allLogical {
		if g.enabled[l] {
			g.order = append(g.order, g.allOrder[pos])
			g.logical = append(g.logical, l)
		}
	}
}
