package core

import "goadc/hal"

// segment returns the next slice of g's conversion order that fits in the
// unit's command slots.
func segment(u *unit, g *group) hal.Segment {
	first := g.status.CurrentChannel
	n := len(g.order) - first
	if n > u.cfg.Slots {
		n = u.cfg.Slots
	}
	return hal.Segment{
		Group:    uint16(g.cfg.ID),
		Channels: g.order[first : first+n],
		First:    first,
		Final:    first+n == len(g.order),
	}
}

// program loads g's next segment and starts it. Unit lock held.
func (d *Driver) program(u *unit, g *group) {
	seg := segment(u, g)
	if g.cfg.UseDMA {
		d.bridge.ConfigureDmaPartialConversion(u.id, seg, d.dmaTransfer(u, g))
	} else {
		d.bridge.ConfigurePartialConversion(u.id, seg)
	}
	if g.cfg.Trigger == TriggerHardware {
		d.bridge.StartHwTriggerConversion(u.id, g.cfg.HwTrigger)
	} else {
		d.bridge.StartNormalConversion(u.id)
	}
	d.record(EvtProgram, u.id, g.cfg.ID, uint32(seg.First))
}

// wraps reports whether g keeps converting into the start of its buffer
// after the last sample. Continuous and hardware-triggered groups wrap when
// the buffer is circular or holds a single sample; everything else stops.
func wraps(g *group) bool {
	if g.cfg.Mode != ConvContinuous && g.cfg.Trigger != TriggerHardware {
		return false
	}
	return g.cfg.Buffer == BufferCircular || g.cfg.Access == AccessSingle
}

// dmaTransfer fills the unit's descriptor table for g. Descriptor 0 resumes at
// the current result index; wrapping groups chain descriptor 1, which covers
// the whole buffer and repeats itself.
func (d *Driver) dmaTransfer(u *unit, g *group) hal.DmaTransfer {
	samples := g.cfg.Samples
	start := g.status.ResultIndex
	if start >= samples {
		start = 0
	}
	n := len(g.order)

	d0 := &u.descs[0]
	d0.Dest = u.dest[0][:n]
	for pos, l := range g.logical {
		d0.Dest[pos] = l*samples + start
	}
	d0.Stride = 1
	d0.Iterations = samples - start
	d0.Next = -1
	descs := u.descs[:1]

	if wraps(g) {
		d1 := &u.descs[1]
		d1.Dest = u.dest[1][:n]
		for pos, l := range g.logical {
			d1.Dest[pos] = l * samples
		}
		d1.Stride = 1
		d1.Iterations = samples
		d1.Next = 1
		d0.Next = 1
		descs = u.descs[:2]
	}
	return hal.DmaTransfer{Channel: u.cfg.DMAChannel, Buffer: g.status.Buffer, Descriptors: descs}
}

// rearm starts the next round of a continuous software group that still owns
// the unit. Hardware-triggered groups stay armed on their own.
func (d *Driver) rearm(u *unit, g *group) {
	if u.active != g.cfg.ID || g.cfg.Trigger == TriggerHardware || g.cfg.Mode != ConvContinuous {
		return
	}
	if g.cfg.UseDMA {
		// The descriptor chain is still loaded; only the start is needed.
		d.bridge.StartNormalConversion(u.id)
		return
	}
	d.program(u, g)
}
