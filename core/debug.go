package core

// DebugWriter is a function type for writing debug messages.
type DebugWriter func(string)

// TraceEvent captures a scheduler event for post-mortem analysis.
type TraceEvent struct {
	Type  uint8
	Unit  UnitID
	Group GroupID
	Value uint32
}

// Trace event type codes.
const (
	EvtEnqueue     = 1 // group entered a queue, Value = queue kind
	EvtDequeue     = 2 // group left a queue, Value = queue kind
	EvtProgram     = 3 // segment programmed, Value = first position
	EvtSegment     = 4 // end of segment, Value = next position
	EvtPreempt     = 5 // active group displaced
	EvtRound       = 6 // round completed, Value = result index
	EvtStopTimeout = 7 // hardware stop not acknowledged
	EvtLimit       = 8 // round discarded by the limit check
	EvtSpurious    = 9 // completion without an active group
	EvtUsage       = 10
	EvtCalTimeout  = 11
)

const TraceRingSize = 32

type traceRing struct {
	lock   critical
	events [TraceRingSize]TraceEvent
	head   uint8
}

// SetDebugWriter redirects debug output, e.g. to a UART.
func (d *Driver) SetDebugWriter(w DebugWriter) {
	d.debugOut = w
}

// SetDebugEnabled enables or disables debug output.
func (d *Driver) SetDebugEnabled(enabled bool) {
	d.debugEnabled = enabled
}

func (d *Driver) debugPrintln(msg string) {
	if d.debugEnabled && d.debugOut != nil {
		d.debugOut(msg)
	}
}

// record appends an event to the trace ring. Never blocks.
func (d *Driver) record(typ uint8, unit UnitID, group GroupID, value uint32) {
	r := &d.trace
	s := r.lock.enter()
	r.events[r.head] = TraceEvent{Type: typ, Unit: unit, Group: group, Value: value}
	r.head = (r.head + 1) % TraceRingSize
	r.lock.exit(s)
}

// Trace copies the recorded events, oldest first, into dst and returns the
// number copied.
func (d *Driver) Trace(dst []TraceEvent) int {
	r := &d.trace
	s := r.lock.enter()
	defer r.lock.exit(s)
	n := 0
	for i := uint8(0); i < TraceRingSize && n < len(dst); i++ {
		evt := r.events[(r.head+i)%TraceRingSize]
		if evt.Type == 0 {
			continue
		}
		dst[n] = evt
		n++
	}
	return n
}

// ClearTrace empties the trace ring.
func (d *Driver) ClearTrace() {
	r := &d.trace
	s := r.lock.enter()
	r.events = [TraceRingSize]TraceEvent{}
	r.head = 0
	r.lock.exit(s)
}

func traceName(typ uint8) string {
	switch typ {
	case EvtEnqueue:
		return "ENQUEUE"
	case EvtDequeue:
		return "DEQUEUE"
	case EvtProgram:
		return "PROGRAM"
	case EvtSegment:
		return "SEGMENT"
	case EvtPreempt:
		return "PREEMPT"
	case EvtRound:
		return "ROUND"
	case EvtStopTimeout:
		return "STOP_TIMEOUT!"
	case EvtLimit:
		return "LIMIT"
	case EvtSpurious:
		return "SPURIOUS"
	case EvtUsage:
		return "USAGE"
	case EvtCalTimeout:
		return "CAL_TIMEOUT!"
	}
	return "UNKNOWN"
}

// DumpTrace writes the trace ring through the debug writer regardless of the
// enable flag. Call it from task context only.
func (d *Driver) DumpTrace() {
	if d.debugOut == nil {
		return
	}
	var events [TraceRingSize]TraceEvent
	n := d.Trace(events[:])
	d.debugOut("[TRACE] === Trace Ring Dump ===")
	for _, evt := range events[:n] {
		d.debugOut("[TRACE] " + traceName(evt.Type) +
			" unit=" + itoa(int(evt.Unit)) +
			" group=" + itoa(int(evt.Group)) +
			" v=" + utoa(evt.Value))
	}
	d.debugOut("[TRACE] === End Dump ===")
}
