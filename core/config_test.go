package core

import (
	"testing"

	"goadc/hal"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no units", func(c *Config) { c.Units = nil }, false},
		{"sparse unit ids", func(c *Config) { c.Units[0].ID = 1 }, false},
		{"too many slots", func(c *Config) { c.Units[0].Slots = 17 }, false},
		{"resolution code", func(c *Config) { c.Units[0].Resolution = 12 }, false},
		{"highest resolution code", func(c *Config) { c.Units[0].Resolution = hal.Res12Bit }, true},
		{"sample time", func(c *Config) { c.Units[0].SampleTime = 255 }, true},
		{"normal clock divider", func(c *Config) { c.Units[0].ClockDivider[ClockNormal] = 16 }, false},
		{"alternate clock divider", func(c *Config) { c.Units[0].ClockDivider[ClockAlternate] = 20 }, false},
		{"dma channel", func(c *Config) { c.Units[0].DMAChannel = 32 }, false},
		{"dma channel without dma", func(c *Config) {
			c.Units[0].DMA = false
			c.Units[0].DMAChannel = 32
		}, true},
		{"sparse group ids", func(c *Config) { c.Groups[0].ID = 4 }, false},
		{"unknown unit", func(c *Config) { c.Groups[0].Unit = 2 }, false},
		{"no channels", func(c *Config) { c.Groups[0].Channels = nil }, false},
		{"single access with samples", func(c *Config) { c.Groups[0].Samples = 3 }, false},
		{"software one-shot stream", func(c *Config) {
			c.Groups[0].Access = AccessStreaming
			c.Groups[0].Samples = 3
		}, false},
		{"continuous stream", func(c *Config) {
			c.Groups[0].Mode = ConvContinuous
			c.Groups[0].Access = AccessStreaming
			c.Groups[0].Samples = 3
		}, true},
		{"hardware group wider than slots", func(c *Config) {
			c.Groups[0].Trigger = TriggerHardware
			c.Groups[0].Channels = channels(1, 2, 3, 4, 5)
		}, false},
		{"hardware group without queue", func(c *Config) {
			c.Groups[0].Trigger = TriggerHardware
			c.Units[0].HwTriggerSlots = 0
		}, false},
		{"hardware trigger feature off", func(c *Config) {
			c.Groups[0].Trigger = TriggerHardware
			c.Features.HwTrigger = false
		}, false},
		{"dma with limit check", func(c *Config) {
			c.Groups[0].UseDMA = true
			c.Groups[0].LimitCheck = true
		}, false},
		{"dma without unit channel", func(c *Config) {
			c.Groups[0].UseDMA = true
			c.Units[0].DMA = false
		}, false},
		{"dma feature off", func(c *Config) { c.Features.DMA = false }, false},
		{"duplicate channel", func(c *Config) {
			c.Groups[0].Channels = []ChannelConfig{{ID: 1, HwChannel: 1}, {ID: 1, HwChannel: 2}}
		}, false},
		{"precedence not a permutation", func(c *Config) {
			c.Precedence = [4]QueueKind{QueueSwNormal, QueueSwNormal, QueueHwNormal, QueueHwInjected}
		}, false},
		{"inverted limits", func(c *Config) {
			c.Groups[0].Channels[0].Range = RangeBetween
			c.Groups[0].Channels[0].Low = 10
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := oneUnit(4, swOneShot(0, 0, 0, 1, 2))
			tt.mutate(c)
			cc := c.withDefaults()
			err := cc.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestWithDefaults(t *testing.T) {
	c := oneUnit(4, GroupConfig{ID: 0, Channels: channels(1)})
	cc := c.withDefaults()
	if cc.Precedence != DefaultPrecedence {
		t.Errorf("precedence = %v", cc.Precedence)
	}
	if cc.Groups[0].Samples != 1 || c.Groups[0].Samples != 0 {
		t.Error("defaults must apply to a copy")
	}
	if cc.CalibrationBudget != DefaultCalibrationBudget {
		t.Errorf("budget = %d", cc.CalibrationBudget)
	}
}

func TestPhysicalOrder(t *testing.T) {
	d, _, _ := setup(t, oneUnit(4, swOneShot(0, 0, 0, 7, 3, 7, 1)))
	g := &d.groups[0]
	wantOrder := []uint8{1, 3, 7, 7}
	wantLogical := []int{3, 1, 0, 2}
	for i := range wantOrder {
		if g.order[i] != wantOrder[i] || g.logical[i] != wantLogical[i] {
			t.Errorf("position %d: hw %d logical %d", i, g.order[i], g.logical[i])
		}
	}
}

func TestRangeKinds(t *testing.T) {
	tests := []struct {
		kind RangeKind
		v    Value
		want bool
	}{
		{RangeAlways, 0, true},
		{RangeBetween, 10, false},
		{RangeBetween, 11, true},
		{RangeBetween, 20, true},
		{RangeBetween, 21, false},
		{RangeNotBetween, 10, true},
		{RangeNotBetween, 20, false},
		{RangeNotBetween, 21, true},
		{RangeOverHigh, 20, false},
		{RangeOverHigh, 21, true},
		{RangeNotOverHigh, 20, true},
		{RangeNotOverHigh, 21, false},
		{RangeUnderLow, 10, true},
		{RangeUnderLow, 11, false},
		{RangeNotUnderLow, 10, false},
		{RangeNotUnderLow, 11, true},
	}
	for _, tt := range tests {
		ch := ChannelConfig{Range: tt.kind, Low: 10, High: 20}
		if got := ch.InRange(tt.v); got != tt.want {
			t.Errorf("kind %d value %d: got %v, want %v", tt.kind, tt.v, got, tt.want)
		}
	}
}
