package config

import (
	"fmt"

	"goadc/core"
	"goadc/hal"
)

var (
	triggers = map[string]core.TriggerSource{
		"": core.TriggerSoftware, "software": core.TriggerSoftware, "hardware": core.TriggerHardware,
	}
	modes = map[string]core.ConvMode{
		"": core.ConvOneShot, "one_shot": core.ConvOneShot, "continuous": core.ConvContinuous,
	}
	accesses = map[string]core.AccessMode{
		"": core.AccessSingle, "single": core.AccessSingle, "streaming": core.AccessStreaming,
	}
	buffers = map[string]core.BufferMode{
		"": core.BufferLinear, "linear": core.BufferLinear, "circular": core.BufferCircular,
	}
	convTypes = map[string]core.ConvType{
		"": core.ConvNormal, "normal": core.ConvNormal, "injected": core.ConvInjected,
	}
	replacements = map[string]core.Replacement{
		"": core.ReplaceAbortRestart, "abort_restart": core.ReplaceAbortRestart,
		"suspend_resume": core.ReplaceSuspendResume,
	}
	edges = map[string]hal.Edge{
		"": hal.EdgeRising, "rising": hal.EdgeRising, "falling": hal.EdgeFalling, "both": hal.EdgeBoth,
	}
	ranges = map[string]core.RangeKind{
		"": core.RangeAlways, "always": core.RangeAlways,
		"between": core.RangeBetween, "not_between": core.RangeNotBetween,
		"over_high": core.RangeOverHigh, "not_over_high": core.RangeNotOverHigh,
		"under_low": core.RangeUnderLow, "not_under_low": core.RangeNotUnderLow,
	}
	queues = map[string]core.QueueKind{
		"sw_injected": core.QueueSwInjected, "hw_injected": core.QueueHwInjected,
		"hw_normal": core.QueueHwNormal, "sw_normal": core.QueueSwNormal,
	}
)

func lookup[T any](table map[string]T, what string, owner string, name string) (T, error) {
	v, ok := table[name]
	if !ok {
		return v, fmt.Errorf("%s: unknown %s %q", owner, what, name)
	}
	return v, nil
}

func on(b *bool) bool { return b == nil || *b }

// ToCore converts the document into a driver configuration. Notification
// callbacks are left for the caller to attach.
func (f *File) ToCore() (*core.Config, error) {
	cfg := &core.Config{
		Features: core.Features{
			LimitCheck:    on(f.Features.LimitCheck),
			DMA:           on(f.Features.DMA),
			HwTrigger:     on(f.Features.HwTrigger),
			Notifications: on(f.Features.Notifications),
			Priority:      on(f.Features.Priority),
		},
		Precedence:        core.DefaultPrecedence,
		SwQueueDepth:      f.SwQueueDepth,
		CalibrationBudget: f.CalibrationBudget,
	}
	if len(f.Precedence) > 0 {
		if len(f.Precedence) != len(cfg.Precedence) {
			return nil, fmt.Errorf("precedence: want %d queues, got %d", len(cfg.Precedence), len(f.Precedence))
		}
		for i, name := range f.Precedence {
			k, err := lookup(queues, "queue", "precedence", name)
			if err != nil {
				return nil, err
			}
			cfg.Precedence[i] = k
		}
	}
	for _, s := range f.PowerStates {
		cfg.PowerStates = append(cfg.PowerStates, core.PowerState(s))
	}

	for _, u := range f.Units {
		cu := core.UnitConfig{
			ID:         core.UnitID(u.ID),
			Slots:      u.Slots,
			Resolution: u.Resolution,
			SampleTime: u.SampleTime,
			DMA:        u.DMA,
			DMAChannel: u.DMAChannel,
		}
		if u.HwTriggerSlots != nil {
			cu.HwTriggerSlots = *u.HwTriggerSlots
		}
		if len(u.ClockDivider) > len(cu.ClockDivider) {
			return nil, fmt.Errorf("unit %d: clock_divider has %d entries", u.ID, len(u.ClockDivider))
		}
		copy(cu.ClockDivider[:], u.ClockDivider)
		cfg.Units = append(cfg.Units, cu)
	}

	for _, g := range f.Groups {
		cg, err := g.toCore()
		if err != nil {
			return nil, err
		}
		cfg.Groups = append(cfg.Groups, cg)
	}
	return cfg, nil
}

func (g *Group) owner() string {
	if g.Name != "" {
		return fmt.Sprintf("group %d (%s)", g.ID, g.Name)
	}
	return fmt.Sprintf("group %d", g.ID)
}

func (g *Group) toCore() (core.GroupConfig, error) {
	owner := g.owner()
	cg := core.GroupConfig{
		ID:         core.GroupID(g.ID),
		Unit:       core.UnitID(g.Unit),
		Priority:   g.Priority,
		Samples:    g.Samples,
		LimitCheck: g.LimitCheck,
		UseDMA:     g.DMA,
	}
	var err error
	if cg.Trigger, err = lookup(triggers, "trigger", owner, g.Trigger); err != nil {
		return cg, err
	}
	if cg.Mode, err = lookup(modes, "mode", owner, g.Mode); err != nil {
		return cg, err
	}
	if cg.Access, err = lookup(accesses, "access", owner, g.Access); err != nil {
		return cg, err
	}
	if cg.Buffer, err = lookup(buffers, "buffer", owner, g.Buffer); err != nil {
		return cg, err
	}
	if cg.Type, err = lookup(convTypes, "type", owner, g.Type); err != nil {
		return cg, err
	}
	if cg.Replacement, err = lookup(replacements, "replacement", owner, g.Replacement); err != nil {
		return cg, err
	}
	if g.HwTrigger != nil {
		edge, err := lookup(edges, "edge", owner, g.HwTrigger.Edge)
		if err != nil {
			return cg, err
		}
		cg.HwTrigger = hal.Trigger{Source: g.HwTrigger.Source, Edge: edge}
	}
	for _, ch := range g.Channels {
		kind, err := lookup(ranges, "range", owner, ch.Range)
		if err != nil {
			return cg, err
		}
		cg.Channels = append(cg.Channels, core.ChannelConfig{
			ID:        core.ChannelID(*ch.ID),
			HwChannel: ch.HW,
			Range:     kind,
			Low:       core.Value(ch.Low),
			High:      core.Value(ch.High),
		})
	}
	return cg, nil
}

// Check converts the document and validates the result.
func (f *File) Check() (*core.Config, error) {
	cfg, err := f.ToCore()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
