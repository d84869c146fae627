//go:build rp2040 || rp2350

package main

import (
	"goadc/core"
	"goadc/hal"
)

// External converter on I2C0, default pins SDA=GP4, SCL=GP5.
const (
	converterAddr = 0x48
	i2cFrequency  = 400000
	stopBudget    = hal.DefaultStopBudget
)

func channels(hw ...uint8) []core.ChannelConfig {
	chs := make([]core.ChannelConfig, len(hw))
	for i, h := range hw {
		chs[i] = core.ChannelConfig{ID: core.ChannelID(i), HwChannel: h}
	}
	return chs
}

// boardConfig describes the converter fitted to this board: one unit with
// eight slots, a fast one-shot group, a continuously streamed group and a
// hardware-triggered injected group.
func boardConfig() *core.Config {
	return &core.Config{
		Units: []core.UnitConfig{{
			ID:             0,
			Slots:          8,
			HwTriggerSlots: 2,
			Resolution:     hal.Res12Bit,
			SampleTime:     4,
			ClockDivider:   [2]uint8{1, 4},
		}},
		Groups: []core.GroupConfig{
			{ID: 0, Unit: 0, Channels: channels(0, 1, 2, 3), Samples: 1, Priority: 2},
			{ID: 1, Unit: 0, Channels: channels(4, 5), Mode: core.ConvContinuous,
				Access: core.AccessStreaming, Buffer: core.BufferCircular, Samples: 16, Priority: 1},
			{ID: 2, Unit: 0, Channels: channels(6), Trigger: core.TriggerHardware, Type: core.ConvInjected,
				HwTrigger: hal.Trigger{Source: 1, Edge: hal.EdgeRising}, Samples: 1, Priority: 3},
		},
		Features: core.Features{
			LimitCheck:    true,
			HwTrigger:     true,
			Notifications: true,
			Priority:      true,
		},
		Precedence:        core.DefaultPrecedence,
		CalibrationBudget: core.DefaultCalibrationBudget,
		PowerStates:       []core.PowerState{1, 2},
	}
}
