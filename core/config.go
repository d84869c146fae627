package core

import (
	"errors"

	"goadc/hal"
)

// RangeKind selects how a channel's result is compared with its limits.
type RangeKind uint8

const (
	RangeAlways RangeKind = iota
	RangeBetween
	RangeNotBetween
	RangeOverHigh
	RangeNotOverHigh
	RangeUnderLow
	RangeNotUnderLow
)

// ChannelConfig describes one logical channel of a group.
type ChannelConfig struct {
	ID        ChannelID
	HwChannel uint8
	Range     RangeKind
	Low       Value
	High      Value
}

// GroupConfig is the static description of a conversion group.
type GroupConfig struct {
	ID          GroupID
	Unit        UnitID
	Channels    []ChannelConfig
	Trigger     TriggerSource
	Mode        ConvMode
	Access      AccessMode
	Buffer      BufferMode
	Type        ConvType
	Priority    uint8
	Samples     int // per-channel stream depth, 1 for single access
	LimitCheck  bool
	Replacement Replacement
	UseDMA      bool
	HwTrigger   hal.Trigger

	// Notify is invoked from interrupt context after a completed round while
	// notifications are enabled for the group. It runs outside the driver's
	// critical regions and may call back into the driver.
	Notify func()
}

// UnitConfig is the static description of one converter.
type UnitConfig struct {
	ID             UnitID
	Slots          int // conversion-command slots, K
	HwTriggerSlots int // depth of each hardware queue
	Resolution     uint8
	SampleTime     uint8
	DMA            bool
	DMAChannel     uint8
	ClockDivider   [2]uint8 // indexed by ClockMode
}

// Features switches optional behaviour on or off for the whole driver.
type Features struct {
	LimitCheck    bool
	DMA           bool
	HwTrigger     bool
	Notifications bool
	Priority      bool
}

// Config is the complete, immutable driver configuration.
type Config struct {
	Units    []UnitConfig
	Groups   []GroupConfig
	Features Features

	// Precedence is the order in which a unit services its queues. The zero
	// value selects DefaultPrecedence.
	Precedence [queueKinds]QueueKind

	// SwQueueDepth bounds the software normal queue of each unit. Zero sizes it
	// to the number of groups on the unit.
	SwQueueDepth int

	// CalibrationBudget bounds the calibration completion poll. The stop
	// acknowledgement budget belongs to the bridge (hal.NewRegBridge).
	CalibrationBudget uint32

	// PowerStates lists the supported reduced power states. PowerFull is
	// always accepted.
	PowerStates []PowerState
}

// DefaultCalibrationBudget is used when Config.CalibrationBudget is zero.
const DefaultCalibrationBudget = 10000

// withDefaults returns a copy of c with zero values replaced.
func (c Config) withDefaults() Config {
	if c.Precedence == [queueKinds]QueueKind{} {
		c.Precedence = DefaultPrecedence
	}
	if c.CalibrationBudget == 0 {
		c.CalibrationBudget = DefaultCalibrationBudget
	}
	c.Units = append([]UnitConfig(nil), c.Units...)
	c.Groups = append([]GroupConfig(nil), c.Groups...)
	for i := range c.Groups {
		if c.Groups[i].Samples == 0 {
			c.Groups[i].Samples = 1
		}
	}
	return c
}

func configError(what string, id int, msg string) error {
	return errors.New(what + " " + itoa(id) + ": " + msg)
}

// Validate checks the structural rules of a configuration.
func (c *Config) Validate() error {
	if len(c.Units) == 0 {
		return errors.New("no units configured")
	}
	if len(c.Units) > hal.MaxUnits {
		return errors.New("too many units")
	}
	var seen [queueKinds]bool
	for _, k := range c.Precedence {
		if k >= queueKinds || seen[k] {
			return errors.New("precedence must list every queue exactly once")
		}
		seen[k] = true
	}
	for i, u := range c.Units {
		if int(u.ID) != i {
			return configError("unit", i, "IDs must be dense and ordered")
		}
		if u.Slots < 1 || u.Slots > hal.MaxSlots {
			return configError("unit", i, "slot count out of range")
		}
		if u.HwTriggerSlots < 0 {
			return configError("unit", i, "negative hardware queue depth")
		}
		if u.DMA && !c.Features.DMA {
			return configError("unit", i, "DMA disabled in features")
		}
		if err := validatePresets(i, &u); err != nil {
			return err
		}
	}
	for i := range c.Groups {
		if err := c.validateGroup(i, &c.Groups[i]); err != nil {
			return err
		}
	}
	return nil
}

// validatePresets checks the register presets against their field widths.
func validatePresets(i int, u *UnitConfig) error {
	if !hal.FieldCfgRes.Fits(uint32(u.Resolution)) {
		return configError("unit", i, "resolution code out of range")
	}
	if !hal.FieldCfgSmp.Fits(uint32(u.SampleTime)) {
		return configError("unit", i, "sample time out of range")
	}
	for _, div := range u.ClockDivider {
		if !hal.FieldCfgClkDiv.Fits(uint32(div)) {
			return configError("unit", i, "clock divider out of range")
		}
	}
	if u.DMA && !hal.FieldDmaCh.Fits(uint32(u.DMAChannel)) {
		return configError("unit", i, "DMA channel out of range")
	}
	return nil
}

func (c *Config) validateGroup(i int, g *GroupConfig) error {
	if int(g.ID) != i {
		return configError("group", i, "IDs must be dense and ordered")
	}
	if int(g.Unit) >= len(c.Units) {
		return configError("group", i, "unknown unit")
	}
	u := &c.Units[g.Unit]
	if len(g.Channels) == 0 {
		return configError("group", i, "no channels")
	}
	if g.Samples < 1 {
		return configError("group", i, "samples must be at least 1")
	}
	if g.Access == AccessSingle && g.Samples != 1 {
		return configError("group", i, "single access takes exactly one sample")
	}
	if g.Trigger == TriggerSoftware && g.Mode == ConvOneShot && g.Samples != 1 {
		return configError("group", i, "software one-shot takes exactly one sample")
	}
	if g.Trigger == TriggerHardware {
		if !c.Features.HwTrigger {
			return configError("group", i, "hardware trigger disabled in features")
		}
		if len(g.Channels) > u.Slots {
			return configError("group", i, "hardware-triggered group exceeds the slot count")
		}
		if u.HwTriggerSlots == 0 {
			return configError("group", i, "unit has no hardware trigger queue")
		}
	}
	if g.UseDMA {
		if !u.DMA {
			return configError("group", i, "unit has no DMA channel")
		}
		if len(g.Channels) > u.Slots {
			return configError("group", i, "DMA group exceeds the slot count")
		}
		if g.LimitCheck {
			return configError("group", i, "limit check is not available with DMA")
		}
	}
	if g.LimitCheck && !c.Features.LimitCheck {
		return configError("group", i, "limit check disabled in features")
	}
	for j, ch := range g.Channels {
		for _, other := range g.Channels[:j] {
			if other.ID == ch.ID {
				return configError("group", i, "duplicate channel id")
			}
		}
		if ch.Range > RangeNotUnderLow {
			return configError("group", i, "unknown range kind")
		}
		if ch.Low > ch.High && ch.Range != RangeAlways {
			return configError("group", i, "low limit above high limit")
		}
	}
	return nil
}

// unitGroups counts the groups configured on a unit.
func (c *Config) unitGroups(u UnitID) int {
	n := 0
	for i := range c.Groups {
		if c.Groups[i].Unit == u {
			n++
		}
	}
	return n
}

// supportsPower reports whether s may be requested.
func (c *Config) supportsPower(s PowerState) bool {
	if s == PowerFull {
		return true
	}
	for _, p := range c.PowerStates {
		if p == s {
			return true
		}
	}
	return false
}
