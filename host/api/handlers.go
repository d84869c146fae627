package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"goadc/errcode"
	"goadc/host/client"
)

const traceSize = 32

// Handlers holds the dependencies of every handler.
type Handlers struct {
	dev    Device
	events *Bus
}

// Error is the body of every failed request.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func badRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "bad_request", Message: msg}
}

// statusOf maps a driver outcome to an HTTP status.
func statusOf(c errcode.Code) int {
	switch c {
	case errcode.ParamGroup, errcode.ParamUnit, errcode.ParamChannel:
		return http.StatusNotFound
	case errcode.ParamMode, errcode.ParamConfig, errcode.ParamPointer, errcode.PowerNotSupported,
		errcode.WrongTriggSrc, errcode.WrongConvMode, errcode.NotifCapability:
		return http.StatusBadRequest
	case errcode.Busy, errcode.Idle, errcode.QueueFull, errcode.BufferUninit, errcode.NoResult,
		errcode.NotPrepared, errcode.NotDisengaged:
		return http.StatusConflict
	case errcode.Uninit:
		return http.StatusServiceUnavailable
	case errcode.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *Error
	var code errcode.Code
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &code):
		apiErr = &Error{Status: statusOf(code), Code: string(code), Message: code.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		apiErr = &Error{Status: http.StatusGatewayTimeout, Code: string(errcode.Timeout), Message: err.Error()}
	default:
		apiErr = &Error{Status: http.StatusBadGateway, Code: string(errcode.Error), Message: err.Error()}
	}
	writeJSON(w, apiErr.Status, apiErr)
}

func intParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		return 0, badRequest("invalid " + name + " parameter")
	}
	return n, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest(fmt.Sprintf("invalid body: %v", err))
	}
	return nil
}

// Info describes the connected board.
type Info struct {
	Version    string            `json:"version"`
	Driver     string            `json:"driver"`
	Config     map[string]string `json:"config"`
	Commands   int               `json:"commands"`
	Dictionary string            `json:"dictionary"`
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	v, err := h.dev.Version(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	info := Info{Driver: v.String()}
	if d := h.dev.Dictionary(); d != nil {
		info.Version = d.Version
		info.Config = d.Config
		info.Commands = len(d.Commands)
		info.Dictionary = d.Summary()
	}
	writeJSON(w, http.StatusOK, info)
}

// GroupStatus is the JSON form of a group's status.
type GroupStatus struct {
	Group         int    `json:"group"`
	State         string `json:"state"`
	Index         int    `json:"index"`
	Valid         int    `json:"valid"`
	HwTrigger     bool   `json:"hw_trigger"`
	Notification  bool   `json:"notification"`
	LimitFailed   bool   `json:"limit_failed"`
	ImplicitlyOff bool   `json:"implicitly_stopped"`
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	gid, err := intParam(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.dev.Status(r.Context(), gid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GroupStatus{
		Group:         st.Group,
		State:         st.StateName(),
		Index:         st.Index,
		Valid:         st.Valid,
		HwTrigger:     st.Flags&client.FlagHwTrigger != 0,
		Notification:  st.Flags&client.FlagNotify != 0,
		LimitFailed:   st.Flags&client.FlagLimitFailed != 0,
		ImplicitlyOff: st.Flags&client.FlagImplicitStop != 0,
	})
}

func (h *Handlers) groupAction(fn func(context.Context, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gid, err := intParam(r, "gid")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := fn(r.Context(), gid); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) channelAction(fn func(context.Context, int, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gid, err := intParam(r, "gid")
		if err != nil {
			writeError(w, err)
			return
		}
		cid, err := intParam(r, "cid")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := fn(r.Context(), gid, cid); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Result is the JSON form of a group reading.
type Result struct {
	Group   int      `json:"group"`
	Values  []uint16 `json:"values"`
	InRange *bool    `json:"in_range,omitempty"`
	Valid   *int     `json:"valid,omitempty"`
}

func (h *Handlers) getResult(w http.ResponseWriter, r *http.Request) {
	gid, err := intParam(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	vs, inRange, err := h.dev.Read(r.Context(), gid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Result{Group: gid, Values: vs, InRange: &inRange})
}

func (h *Handlers) getStream(w http.ResponseWriter, r *http.Request) {
	gid, err := intParam(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	vs, valid, err := h.dev.ReadStream(r.Context(), gid)
	if err != nil {
		writeError(w, err)
		return
	}
	if vs == nil {
		vs = []uint16{}
	}
	writeJSON(w, http.StatusOK, Result{Group: gid, Values: vs, Valid: &valid})
}

func (h *Handlers) calibrate(w http.ResponseWriter, r *http.Request) {
	uid, err := intParam(r, "uid")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.dev.Calibrate(r.Context(), uid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) setClock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	modes := map[string]int{"normal": 0, "alternate": 1}
	mode, ok := modes[req.Mode]
	if !ok {
		writeError(w, badRequest("mode must be normal or alternate"))
		return
	}
	if err := h.dev.SetClockMode(r.Context(), mode); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Power is the JSON form of the power states.
type Power struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

func (h *Handlers) getPower(w http.ResponseWriter, r *http.Request) {
	cur, target, err := h.dev.Power(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Power{Current: cur, Target: target})
}

func (h *Handlers) setPower(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State *int `json:"state"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.State == nil || *req.State < 0 {
		writeError(w, badRequest("state is required"))
		return
	}
	if err := h.dev.SetPower(r.Context(), *req.State); err != nil {
		writeError(w, err)
		return
	}
	h.getPower(w, r)
}

func (h *Handlers) getTrace(w http.ResponseWriter, r *http.Request) {
	events, err := h.dev.Trace(r.Context(), traceSize)
	if err != nil {
		writeError(w, err)
		return
	}
	type event struct {
		Type  int    `json:"type"`
		Unit  int    `json:"unit"`
		Group int    `json:"group"`
		Value uint32 `json:"value"`
	}
	out := make([]event, len(events))
	for i, e := range events {
		out[i] = event(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// sseEvents streams device notifications as server-sent events.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Name, data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
