package client_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"goadc/core"
	"goadc/errcode"
	"goadc/hal"
	"goadc/host/client"
	"goadc/host/sim"
)

func channels(hw ...uint8) []core.ChannelConfig {
	chs := make([]core.ChannelConfig, len(hw))
	for i, h := range hw {
		chs[i] = core.ChannelConfig{ID: core.ChannelID(i), HwChannel: h}
	}
	return chs
}

func testConfig() *core.Config {
	wide := make([]uint8, 30)
	for i := range wide {
		wide[i] = uint8(i + 1)
	}
	return &core.Config{
		Units: []core.UnitConfig{{ID: 0, Slots: 8, HwTriggerSlots: 2, ClockDivider: [2]uint8{1, 4}}},
		Groups: []core.GroupConfig{
			{ID: 0, Unit: 0, Channels: channels(1, 2), Samples: 1},
			{ID: 1, Unit: 0, Channels: channels(3), Mode: core.ConvContinuous,
				Access: core.AccessStreaming, Buffer: core.BufferCircular, Samples: 3},
			{ID: 2, Unit: 0, Channels: channels(wide...), Samples: 1},
		},
		Features:    core.Features{LimitCheck: true, HwTrigger: true, Notifications: true, Priority: true},
		Precedence:  core.DefaultPrecedence,
		PowerStates: []core.PowerState{1},
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func connect(t *testing.T) (*client.Client, *sim.Board) {
	t.Helper()
	board, err := sim.New(testConfig(), nil)
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	c := client.New(board.Pipe(), nil)
	t.Cleanup(func() { c.Close() })
	if err := c.Identify(testContext(t)); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	return c, board
}

func TestIdentify(t *testing.T) {
	c, _ := connect(t)
	d := c.Dictionary()
	if d == nil {
		t.Fatal("no dictionary")
	}
	if _, ok := d.Commands["adc_start group=%hu"]; !ok {
		t.Errorf("adc_start missing from %v", d.Commands)
	}
	if d.Config["ADC_VERSION"] != "1.2.0" {
		t.Errorf("config = %v", d.Config)
	}
}

func TestNoDictionary(t *testing.T) {
	board, err := sim.New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c := client.New(board.Pipe(), nil)
	defer c.Close()
	if err := c.Start(testContext(t), 0); !errors.Is(err, client.ErrNoDictionary) {
		t.Errorf("Start before Identify: %v", err)
	}
}

func TestStartAndRead(t *testing.T) {
	c, board := connect(t)
	ctx := testContext(t)

	if err := c.Start(ctx, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(ctx, 0); !errors.Is(err, errcode.Busy) {
		t.Errorf("second Start: %v", err)
	}
	board.Step()

	st, err := c.Status(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != client.StateStreamCompleted || st.Valid != 1 {
		t.Errorf("status = %+v (%s)", st, st.StateName())
	}

	vs, inRange, err := c.Read(ctx, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []uint16{uint16(sim.DefaultLevel(0, 1)), uint16(sim.DefaultLevel(0, 2))}
	if len(vs) != 2 || vs[0] != want[0] || vs[1] != want[1] || !inRange {
		t.Errorf("Read = %v %v, want %v", vs, inRange, want)
	}
	if _, _, err := c.Read(ctx, 0); !errors.Is(err, errcode.Idle) {
		t.Errorf("Read after consume: %v", err)
	}
}

func TestWideRead(t *testing.T) {
	c, board := connect(t)
	ctx := testContext(t)
	if err := c.Start(ctx, 2); err != nil {
		t.Fatal(err)
	}
	// 30 channels on 8 slots take four segments.
	for i := 0; i < 4; i++ {
		board.Step()
	}
	vs, _, err := c.Read(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 30 || vs[29] != uint16(sim.DefaultLevel(0, 30)) {
		t.Errorf("Read = %v", vs)
	}
}

func TestErrors(t *testing.T) {
	c, _ := connect(t)
	ctx := testContext(t)
	tests := []struct {
		name string
		err  error
		want errcode.Code
	}{
		{"unknown group", c.Start(ctx, 9), errcode.ParamGroup},
		{"stop idle", c.Stop(ctx, 0), errcode.Idle},
		{"sw group hw trigger", c.EnableHwTrigger(ctx, 0), errcode.WrongTriggSrc},
		{"unprepared power", c.Call(ctx, "adc_set_power", nil), errcode.NotPrepared},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("err = %v, want %v", tt.err, tt.want)
			}
		})
	}
	if err := c.Send(ctx, "adc_launch", nil); err == nil {
		t.Error("unknown command accepted")
	}
	if err := c.Send(ctx, "adc_start", map[string]string{"group": "x"}); err == nil {
		t.Error("non-numeric argument accepted")
	}
}

func TestLifecycle(t *testing.T) {
	c, board := connect(t)
	ctx := testContext(t)

	if err := c.Calibrate(ctx, 0); err != nil {
		t.Errorf("Calibrate: %v", err)
	}
	if err := c.SetClockMode(ctx, 1); err != nil {
		t.Errorf("SetClockMode: %v", err)
	}
	if div := hal.FieldCfgClkDiv.Get(board.Regs.Peek(hal.UnitBase(0) + hal.RegCFG)); div != 4 {
		t.Errorf("clock divider = %d", div)
	}
	if err := c.SetPower(ctx, 1); err != nil {
		t.Fatalf("SetPower: %v", err)
	}
	cur, target, err := c.Power(ctx)
	if err != nil || cur != 1 || target != 1 {
		t.Errorf("Power = %d %d %v", cur, target, err)
	}
	v, err := c.Version(ctx)
	if err != nil || v.Major != 1 {
		t.Errorf("Version = %v %v", v, err)
	}
}

func TestNotification(t *testing.T) {
	c, board := connect(t)
	ctx := testContext(t)
	if err := c.EnableNotification(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(ctx, 1); err != nil {
		t.Fatal(err)
	}
	board.Step()
	select {
	case m := <-c.Events():
		if m.Name != "adc_group_done" || m.Int("group") != 1 {
			t.Errorf("event = %s", m)
		}
	case <-ctx.Done():
		t.Fatal("no notification")
	}
	if err := c.Stop(ctx, 1); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestTrace(t *testing.T) {
	c, board := connect(t)
	ctx := testContext(t)
	board.Driver.ClearTrace()
	if err := c.Start(ctx, 0); err != nil {
		t.Fatal(err)
	}
	events, err := c.Trace(ctx, core.TraceRingSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 || events[0].Type != core.EvtEnqueue {
		t.Errorf("trace = %+v", events)
	}
}

func TestWatch(t *testing.T) {
	c, board := connect(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Start(ctx, 1); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		board.Run(ctx, 2*time.Millisecond)
	}()

	var samples []client.Sample
	err := c.Watch(ctx, 1, 10*time.Millisecond, func(s client.Sample) {
		samples = append(samples, s)
		if len(samples) == 3 {
			cancel()
		}
	})
	wg.Wait()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(samples) < 3 {
		t.Fatalf("got %d samples", len(samples))
	}
	for _, s := range samples {
		if len(s.Values) != 1 || s.Values[0] != uint16(sim.DefaultLevel(0, 3)) || s.Valid == 0 {
			t.Errorf("sample = %+v", s)
		}
	}
}

func TestParseDictionaryPlainJSON(t *testing.T) {
	d, err := client.ParseDictionary([]byte(`{"version":"x","commands":{"identify offset=%u count=%c":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	if d.Version != "x" || d.Commands["identify offset=%u count=%c"] != 1 {
		t.Errorf("dictionary = %+v", d)
	}
	if !strings.Contains(d.Summary(), "[ 1] identify") {
		t.Errorf("summary:\n%s", d.Summary())
	}
	if _, err := client.ParseDictionary([]byte{0x78, 0x01, 0xff}); err == nil {
		t.Error("corrupt zlib accepted")
	}
}

