package core

import (
	"goadc/errcode"
	"goadc/hal"
)

// Calibrate runs the converter's self-calibration and waits, bounded, for it
// to finish. The unit must be idle.
func (d *Driver) Calibrate(id UnitID) error {
	u, err := d.lookupUnit(SvcCalibrate, id)
	if err != nil {
		return err
	}
	if c := d.claim(u); c != errcode.OK {
		return d.usageError(SvcCalibrate, u.id, c)
	}
	defer d.release(u)

	d.setCalibrating(u, true)
	d.bridge.StartCalibration(u.id)
	res := hal.Poll(d.cfg.CalibrationBudget, func() bool {
		return d.bridge.CalibrationDone(u.id)
	})
	d.setCalibrating(u, false)
	if !res.Ok() {
		d.record(EvtCalTimeout, u.id, noGroup, d.cfg.CalibrationBudget)
		d.faults.ReportEvent(EventCalibrationTimeout, EventFailed)
		return errcode.New(SvcCalibrate.String(), errcode.Timeout)
	}
	d.faults.ReportEvent(EventCalibrationTimeout, EventPassed)
	return nil
}

func (d *Driver) setCalibrating(u *unit, on bool) {
	s := u.lock.enter()
	u.calibrating = on
	u.lock.exit(s)
}

// Calibrating reports whether a calibration is in progress on the unit.
func (d *Driver) Calibrating(id UnitID) bool {
	if !d.initialized.Load() || int(id) >= len(d.units) {
		return false
	}
	u := &d.units[id]
	s := u.lock.enter()
	defer u.lock.exit(s)
	return u.calibrating
}

// SetClockMode switches every unit to the clock divider configured for mode.
func (d *Driver) SetClockMode(mode ClockMode) error {
	if c := d.initializedCode(); c != errcode.OK {
		return d.usageError(SvcSetClockMode, AnyUnit, c)
	}
	if mode > ClockAlternate {
		return d.usageError(SvcSetClockMode, AnyUnit, errcode.ParamMode)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.claimAll(); c != errcode.OK {
		return d.usageError(SvcSetClockMode, AnyUnit, c)
	}
	defer d.releaseAll()
	for i := range d.units {
		u := &d.units[i]
		d.bridge.SetClockDivider(u.id, u.cfg.ClockDivider[mode])
	}
	d.clock = mode
	return nil
}

// CurrentClockMode returns the active clock mode.
func (d *Driver) CurrentClockMode() ClockMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// PreparePowerState records target as the pending power state.
func (d *Driver) PreparePowerState(target PowerState) error {
	if c := d.initializedCode(); c != errcode.OK {
		return d.usageError(SvcPreparePowerState, AnyUnit, c)
	}
	if !d.cfg.supportsPower(target) {
		return d.usageError(SvcPreparePowerState, AnyUnit, errcode.PowerNotSupported)
	}
	d.mu.Lock()
	d.target = target
	d.prepared = true
	d.mu.Unlock()
	return nil
}

// SetPowerState commits the prepared power state on every unit. All units
// must be idle.
func (d *Driver) SetPowerState() error {
	if c := d.initializedCode(); c != errcode.OK {
		return d.usageError(SvcSetPowerState, AnyUnit, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.prepared {
		return d.usageError(SvcSetPowerState, AnyUnit, errcode.NotPrepared)
	}
	if c := d.claimAll(); c != errcode.OK {
		return d.usageError(SvcSetPowerState, AnyUnit, errcode.NotDisengaged)
	}
	defer d.releaseAll()
	for i := range d.units {
		if err := d.bridge.SetPowerState(d.units[i].id, uint8(d.target)); err != nil {
			// Units already switched go back so that all of them agree on d.power.
			for j := 0; j < i; j++ {
				_ = d.bridge.SetPowerState(d.units[j].id, uint8(d.power))
			}
			return &errcode.E{C: errcode.Error, Op: SvcSetPowerState.String(), Msg: "unit " + itoa(i), Err: err}
		}
	}
	d.power = d.target
	d.prepared = false
	d.debugPrintln("[ADC] power state " + itoa(int(d.power)))
	return nil
}

// GetCurrentPowerState returns the committed power state.
func (d *Driver) GetCurrentPowerState() (PowerState, error) {
	if c := d.initializedCode(); c != errcode.OK {
		return PowerFull, d.usageError(SvcGetCurrentPowerState, AnyUnit, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power, nil
}

// GetTargetPowerState returns the prepared power state, or the current one
// when nothing is pending.
func (d *Driver) GetTargetPowerState() (PowerState, error) {
	if c := d.initializedCode(); c != errcode.OK {
		return PowerFull, d.usageError(SvcGetTargetPowerState, AnyUnit, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.prepared {
		return d.power, nil
	}
	return d.target, nil
}
