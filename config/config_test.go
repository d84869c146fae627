package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"goadc/core"
	"goadc/hal"
)

const sample = `
board:
  device: /dev/ttyACM0
features:
  dma: false
precedence: [hw_injected, sw_injected, hw_normal, sw_normal]
power_states: [1, 2]
units:
  - id: 0
    slots: 4
    clock_divider: [2, 8]
groups:
  - id: 0
    name: supply
    unit: 0
    channels:
      - hw: 3
      - hw: 4
        range: between
        low: 100
        high: 900
    limit_check: true
  - id: 1
    unit: 0
    trigger: hardware
    mode: continuous
    access: streaming
    buffer: circular
    type: injected
    priority: 3
    samples: 4
    replacement: suspend_resume
    hw_trigger: {source: 2, edge: falling}
    channels:
      - {id: 7, hw: 1}
`

func TestParseDefaults(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	want := Board{
		Device:        "/dev/ttyACM0",
		Baud:          DefaultBaud,
		ReadTimeoutMs: DefaultReadTimeoutMs,
		I2CAddress:    DefaultI2CAddress,
		I2CFrequency:  DefaultI2CFrequency,
		StopBudget:    hal.DefaultStopBudget,
	}
	if diff := cmp.Diff(want, f.Board); diff != "" {
		t.Errorf("board (-want +got):\n%s", diff)
	}
	if f.CalibrationBudget != core.DefaultCalibrationBudget {
		t.Errorf("calibration budget = %d", f.CalibrationBudget)
	}
	if u := f.Units[0]; *u.HwTriggerSlots != DefaultHwQueueDepth {
		t.Errorf("hw_trigger_slots = %d", *u.HwTriggerSlots)
	}
	if f.Groups[0].Samples != 1 || *f.Groups[0].Channels[1].ID != 1 {
		t.Errorf("group defaults: %+v", f.Groups[0])
	}
}

func TestToCore(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := f.Check()
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	wantFeatures := core.Features{LimitCheck: true, HwTrigger: true, Notifications: true, Priority: true}
	if diff := cmp.Diff(wantFeatures, cfg.Features); diff != "" {
		t.Errorf("features (-want +got):\n%s", diff)
	}
	if cfg.Precedence[0] != core.QueueHwInjected || cfg.Precedence[1] != core.QueueSwInjected {
		t.Errorf("precedence = %v", cfg.Precedence)
	}
	wantUnit := core.UnitConfig{ID: 0, Slots: 4, HwTriggerSlots: DefaultHwQueueDepth, ClockDivider: [2]uint8{2, 8}}
	if diff := cmp.Diff([]core.UnitConfig{wantUnit}, cfg.Units); diff != "" {
		t.Errorf("units (-want +got):\n%s", diff)
	}

	g := cfg.Groups[1]
	want := core.GroupConfig{
		ID:          1,
		Trigger:     core.TriggerHardware,
		Mode:        core.ConvContinuous,
		Access:      core.AccessStreaming,
		Buffer:      core.BufferCircular,
		Type:        core.ConvInjected,
		Priority:    3,
		Samples:     4,
		Replacement: core.ReplaceSuspendResume,
		HwTrigger:   hal.Trigger{Source: 2, Edge: hal.EdgeFalling},
		Channels:    []core.ChannelConfig{{ID: 7, HwChannel: 1}},
	}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Errorf("group 1 (-want +got):\n%s", diff)
	}
	ch := cfg.Groups[0].Channels[1]
	if ch.Range != core.RangeBetween || ch.Low != 100 || ch.High != 900 {
		t.Errorf("channel = %+v", ch)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "boards: {}\n", "boards"},
		{"empty", "", "empty"},
		{"bad mode", "groups: [{id: 0, mode: sometimes}]\n", `unknown mode "sometimes"`},
		{"bad range", "groups: [{id: 2, name: x, channels: [{range: inside}]}]\n", `group 2 (x): unknown range`},
		{"bad edge", "groups: [{id: 0, hw_trigger: {edge: up}}]\n", "unknown edge"},
		{"short precedence", "precedence: [sw_normal]\n", "want 4 queues"},
		{"bad queue", "precedence: [a, b, c, d]\n", `unknown queue "a"`},
		{"divider", "units: [{id: 0, clock_divider: [1, 2, 3]}]\n", "clock_divider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			if err == nil {
				_, err = f.ToCore()
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestCheckRejectsInvalid(t *testing.T) {
	// Group on a unit that does not exist.
	f, err := Parse([]byte("units: [{id: 0}]\ngroups: [{id: 0, unit: 3, channels: [{hw: 1}]}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Check(); err == nil {
		t.Error("Check accepted a group on a missing unit")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adc.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Groups) != 2 || f.Groups[0].Name != "supply" {
		t.Errorf("groups = %+v", f.Groups)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adc.yaml")
	if err := os.WriteFile(path, []byte("units: [{id: 0}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloads := make(chan *File, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(f *File, err error) {
			if err != nil {
				return
			}
			select {
			case reloads <- f:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	// The watcher may not be registered yet; keep rewriting until it sees one.
	for {
		select {
		case f := <-reloads:
			if len(f.Units) != 1 || f.Units[0].Slots != 4 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch: %v", err)
			}
			return
		case <-tick.C:
			os.WriteFile(path, []byte("units: [{id: 0, slots: 4}]\n"), 0o644)
		case <-deadline:
			t.Fatal("no reload seen")
		}
	}
}
