package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goadc/core"
	"goadc/host/api"
	"goadc/host/client"
	"goadc/host/sim"
)

func testConfig() *core.Config {
	return &core.Config{
		Units: []core.UnitConfig{{ID: 0, Slots: 4, HwTriggerSlots: 2, ClockDivider: [2]uint8{1, 2}}},
		Groups: []core.GroupConfig{
			{ID: 0, Unit: 0, Samples: 1, Channels: []core.ChannelConfig{{ID: 0, HwChannel: 4}, {ID: 1, HwChannel: 5}}},
			{ID: 1, Unit: 0, Samples: 2, Mode: core.ConvContinuous, Access: core.AccessStreaming,
				Buffer: core.BufferCircular, Channels: []core.ChannelConfig{{ID: 0, HwChannel: 6}}},
		},
		Features:    core.Features{HwTrigger: true, Notifications: true, Priority: true},
		Precedence:  core.DefaultPrecedence,
		PowerStates: []core.PowerState{2},
	}
}

// newTestServer wires the router to a simulated board.
func newTestServer(t *testing.T) (*httptest.Server, *sim.Board, *api.Bus) {
	t.Helper()
	board, err := sim.New(testConfig(), nil)
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	c := client.New(board.Pipe(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Identify(ctx); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	bus := api.NewBus()
	go bus.Pump(ctx, c.Events())

	srv := httptest.NewServer(api.NewRouter(c, bus))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		c.Close()
	})
	return srv, board, bus
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

func TestInfo(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := do(t, srv, "GET", "/api/info", "")
	requireStatus(t, resp, http.StatusOK)
	var info api.Info
	decodeJSON(t, resp, &info)
	if info.Config["ADC_VERSION"] != "1.2.0" || info.Commands == 0 || !strings.HasPrefix(info.Driver, "1.2.0") {
		t.Errorf("info = %+v", info)
	}
}

func TestStartAndRead(t *testing.T) {
	srv, board, _ := newTestServer(t)

	requireStatus(t, do(t, srv, "POST", "/api/groups/0/start", ""), http.StatusNoContent)
	requireStatus(t, do(t, srv, "POST", "/api/groups/0/start", ""), http.StatusConflict)
	board.Step()

	resp := do(t, srv, "GET", "/api/groups/0", "")
	requireStatus(t, resp, http.StatusOK)
	var st api.GroupStatus
	decodeJSON(t, resp, &st)
	if st.State != "STREAM_COMPLETED" || st.Valid != 1 {
		t.Errorf("status = %+v", st)
	}

	resp = do(t, srv, "GET", "/api/groups/0/result", "")
	requireStatus(t, resp, http.StatusOK)
	var res api.Result
	decodeJSON(t, resp, &res)
	if len(res.Values) != 2 || res.Values[1] != uint16(sim.DefaultLevel(0, 5)) || res.InRange == nil || !*res.InRange {
		t.Errorf("result = %+v", res)
	}

	resp = do(t, srv, "GET", "/api/groups/0/result", "")
	requireStatus(t, resp, http.StatusConflict)
	var apiErr api.Error
	decodeJSON(t, resp, &apiErr)
	if apiErr.Code != "idle" {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	tests := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/groups/7/start", "", http.StatusNotFound},
		{"POST", "/api/groups/x/start", "", http.StatusBadRequest},
		{"PUT", "/api/groups/0/hw-trigger", "", http.StatusBadRequest},
		{"POST", "/api/groups/0/stop", "", http.StatusConflict},
		{"PUT", "/api/clock", `{"mode":"fast"}`, http.StatusBadRequest},
		{"PUT", "/api/power", `{"state":5}`, http.StatusBadRequest},
		{"PUT", "/api/power", `nope`, http.StatusBadRequest},
		{"DELETE", "/api/groups/0/channels/9", "", http.StatusNotFound},
		{"DELETE", "/api/groups/0/channels/x", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.body)
			requireStatus(t, resp, tt.want)
			resp.Body.Close()
		})
	}
}

func TestChannels(t *testing.T) {
	srv, board, _ := newTestServer(t)

	requireStatus(t, do(t, srv, "DELETE", "/api/groups/0/channels/0", ""), http.StatusNoContent)
	requireStatus(t, do(t, srv, "DELETE", "/api/groups/0/channels/1", ""), http.StatusNotFound)
	requireStatus(t, do(t, srv, "POST", "/api/groups/0/start", ""), http.StatusNoContent)
	requireStatus(t, do(t, srv, "PUT", "/api/groups/0/channels/0", ""), http.StatusConflict)
	board.Step()

	resp := do(t, srv, "GET", "/api/groups/0/result", "")
	requireStatus(t, resp, http.StatusOK)
	var res api.Result
	decodeJSON(t, resp, &res)
	if len(res.Values) != 2 || res.Values[0] != 0 || res.Values[1] != uint16(sim.DefaultLevel(0, 5)) {
		t.Errorf("result with channel 0 disabled = %+v", res)
	}

	requireStatus(t, do(t, srv, "PUT", "/api/groups/0/channels/0", ""), http.StatusNoContent)
}

func TestPowerAndClock(t *testing.T) {
	srv, _, _ := newTestServer(t)
	requireStatus(t, do(t, srv, "PUT", "/api/clock", `{"mode":"alternate"}`), http.StatusNoContent)
	requireStatus(t, do(t, srv, "POST", "/api/units/0/calibrate", ""), http.StatusNoContent)

	resp := do(t, srv, "PUT", "/api/power", `{"state":2}`)
	requireStatus(t, resp, http.StatusOK)
	var p api.Power
	decodeJSON(t, resp, &p)
	if p.Current != 2 || p.Target != 2 {
		t.Errorf("power = %+v", p)
	}
}

func TestStreamAndEvents(t *testing.T) {
	srv, board, bus := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/events", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	requireStatus(t, resp, http.StatusOK)
	for bus.SubscriberCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	requireStatus(t, do(t, srv, "PUT", "/api/groups/1/notification", ""), http.StatusNoContent)
	requireStatus(t, do(t, srv, "POST", "/api/groups/1/start", ""), http.StatusNoContent)
	board.Step()

	sc := bufio.NewScanner(resp.Body)
	var data string
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	var e api.Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		t.Fatalf("event %q: %v", data, err)
	}
	if e.Name != "adc_group_done" || e.Args["group"] != 1 {
		t.Errorf("event = %+v", e)
	}

	sresp := do(t, srv, "GET", "/api/groups/1/stream", "")
	requireStatus(t, sresp, http.StatusOK)
	var res api.Result
	decodeJSON(t, sresp, &res)
	if res.Valid == nil || *res.Valid != 1 || len(res.Values) != 1 {
		t.Errorf("stream = %+v", res)
	}
}

func TestTrace(t *testing.T) {
	srv, _, _ := newTestServer(t)
	requireStatus(t, do(t, srv, "POST", "/api/groups/0/start", ""), http.StatusNoContent)
	resp := do(t, srv, "GET", "/api/trace", "")
	requireStatus(t, resp, http.StatusOK)
	var events []map[string]int
	decodeJSON(t, resp, &events)
	if len(events) == 0 {
		t.Error("empty trace")
	}
}
