package config

import (
	"goadc/core"
	"goadc/hal"
)

const (
	DefaultBaud          = 250000
	DefaultReadTimeoutMs = 100
	DefaultI2CAddress    = 0x48
	DefaultI2CFrequency  = 400000
	DefaultSlots         = 8
	DefaultHwQueueDepth  = 2
)

// applyDefaults fills in missing values.
func applyDefaults(f *File) {
	b := &f.Board
	if b.Baud == 0 {
		b.Baud = DefaultBaud
	}
	if b.ReadTimeoutMs == 0 {
		b.ReadTimeoutMs = DefaultReadTimeoutMs
	}
	if b.I2CAddress == 0 {
		b.I2CAddress = DefaultI2CAddress
	}
	if b.I2CFrequency == 0 {
		b.I2CFrequency = DefaultI2CFrequency
	}
	if b.StopBudget == 0 {
		b.StopBudget = hal.DefaultStopBudget
	}
	if f.CalibrationBudget == 0 {
		f.CalibrationBudget = core.DefaultCalibrationBudget
	}

	for i := range f.Units {
		u := &f.Units[i]
		if u.Slots == 0 {
			u.Slots = DefaultSlots
		}
		if u.HwTriggerSlots == nil {
			n := DefaultHwQueueDepth
			u.HwTriggerSlots = &n
		}
		if len(u.ClockDivider) == 0 {
			u.ClockDivider = []uint8{1, 1}
		}
	}

	for i := range f.Groups {
		g := &f.Groups[i]
		if g.Samples == 0 {
			g.Samples = 1
		}
		for j := range g.Channels {
			if g.Channels[j].ID == nil {
				id := j
				g.Channels[j].ID = &id
			}
		}
	}
}
