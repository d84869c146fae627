package core

import "goadc/errcode"

// usageError reports code on the usage-error channel and returns it wrapped
// with the service name.
func (d *Driver) usageError(svc ServiceID, unit UnitID, code errcode.Code) error {
	d.usage.ReportUsageError(unit, svc, code)
	d.record(EvtUsage, unit, noGroup, uint32(code.Wire()))
	return errcode.New(svc.String(), code)
}

// check reports the first failing code. Codes are evaluated by the caller in
// argument order, so only pass checks whose inputs are already known valid.
func (d *Driver) check(svc ServiceID, unit UnitID, codes ...errcode.Code) error {
	for _, c := range codes {
		if c != errcode.OK {
			return d.usageError(svc, unit, c)
		}
	}
	return nil
}

func (d *Driver) initializedCode() errcode.Code {
	if !d.initialized.Load() {
		return errcode.Uninit
	}
	return errcode.OK
}

// lookup runs the initialized and group range checks shared by every group
// service.
func (d *Driver) lookup(svc ServiceID, id GroupID) (*group, error) {
	if c := d.initializedCode(); c != errcode.OK {
		return nil, d.usageError(svc, AnyUnit, c)
	}
	if int(id) >= len(d.groups) {
		return nil, d.usageError(svc, AnyUnit, errcode.ParamGroup)
	}
	return &d.groups[id], nil
}

// lookupUnit is lookup for unit services.
func (d *Driver) lookupUnit(svc ServiceID, id UnitID) (*unit, error) {
	if c := d.initializedCode(); c != errcode.OK {
		return nil, d.usageError(svc, AnyUnit, c)
	}
	if int(id) >= len(d.units) {
		return nil, d.usageError(svc, AnyUnit, errcode.ParamUnit)
	}
	return &d.units[id], nil
}

func bufferSet(g *group) errcode.Code {
	if g.status.Buffer == nil {
		return errcode.BufferUninit
	}
	return errcode.OK
}

func bufferLength(g *group, buf []Value) errcode.Code {
	if buf == nil || len(buf) < len(g.cfg.Channels)*g.cfg.Samples {
		return errcode.ParamPointer
	}
	return errcode.OK
}

func softwareTrigger(g *group) errcode.Code {
	if g.cfg.Trigger != TriggerSoftware {
		return errcode.WrongTriggSrc
	}
	return errcode.OK
}

func hardwareTrigger(g *group) errcode.Code {
	if g.cfg.Trigger != TriggerHardware {
		return errcode.WrongTriggSrc
	}
	return errcode.OK
}

func oneShotMode(g *group) errcode.Code {
	if g.cfg.Mode != ConvOneShot {
		return errcode.WrongConvMode
	}
	return errcode.OK
}

func (d *Driver) notifCapable(g *group) errcode.Code {
	if g.cfg.Notify == nil || !d.cfg.Features.Notifications {
		return errcode.NotifCapability
	}
	return errcode.OK
}

// The checks below read state shared with the interrupt entries; callers hold
// the unit lock.

func idleState(g *group) errcode.Code {
	if g.status.State != StateIdle {
		return errcode.Busy
	}
	return errcode.OK
}

func notIdle(g *group) errcode.Code {
	if g.status.State == StateIdle {
		return errcode.Idle
	}
	return errcode.OK
}

func triggerEnabled(g *group) errcode.Code {
	if !g.status.HwTriggerEnabled {
		return errcode.Idle
	}
	return errcode.OK
}

func queueHasRoom(g *group) errcode.Code {
	if g.unit.queues[g.kind].full() {
		return errcode.QueueFull
	}
	return errcode.OK
}

func unitAvailable(u *unit) errcode.Code {
	if u.exclusive {
		return errcode.Busy
	}
	return errcode.OK
}
