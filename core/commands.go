package core

import (
	"math/bits"
	"sync/atomic"

	"goadc/errcode"
	"goadc/protocol"
)

// Sender delivers one response payload to the host. *protocol.Endpoint
// implements it.
type Sender interface {
	Send(payload []byte) error
}

const (
	identifyChunk = 40 // dictionary bytes per identify_response
	resultChunk   = 24 // values per adc_result
)

// Status flag bits of adc_state.
const (
	FlagHwTrigger = 1 << iota
	FlagNotify
	FlagLimitFailed
	FlagImplicitStop
)

// Remote exposes a Driver over the command protocol. Every command that has
// no data response answers adc_ack with the service ID and the wire number of
// its outcome (0 for success).
type Remote struct {
	d    *Driver
	reg  *CommandRegistry
	dict *Dictionary
	out  Sender

	pending []uint32 // latched notifications, one bit per group

	respIdentify uint16
	respAck      uint16
	respResult   uint16
	respStream   uint16
	respState    uint16
	respPower    uint16
	respVersion  uint16
	respTrace    uint16
	respDone     uint16
}

func NewRemote(d *Driver) *Remote {
	r := &Remote{d: d, reg: NewCommandRegistry()}
	r.dict = NewDictionary(r.reg)
	r.register()
	v := d.GetVersionInfo()
	r.dict.AddConstant("ADC_VERSION", itoa(int(v.Major))+"."+itoa(int(v.Minor))+"."+itoa(int(v.Patch)))
	r.dict.AddConstant("TRACE_SIZE", itoa(TraceRingSize))
	return r
}

// SetOutput sets where responses go.
func (r *Remote) SetOutput(out Sender) { r.out = out }

func (r *Remote) Registry() *CommandRegistry { return r.reg }

func (r *Remote) Dictionary() *Dictionary { return r.dict }

// Dispatch runs one command; pass it to protocol.NewEndpoint.
func (r *Remote) Dispatch(id uint16, rd *protocol.Reader) error {
	return r.reg.Dispatch(id, rd)
}

func (r *Remote) register() {
	reg := r.reg
	r.respIdentify = reg.RegisterResponse("identify_response offset=%u data=%.*s")
	reg.Register("identify offset=%u count=%c", r.identify)

	r.respAck = reg.RegisterResponse("adc_ack service=%c code=%c")
	r.respResult = reg.RegisterResponse("adc_result group=%hu first=%c total=%c in_range=%c values=%*s")
	r.respStream = reg.RegisterResponse("adc_stream group=%hu first=%c total=%c valid=%hu values=%*s")
	r.respState = reg.RegisterResponse("adc_state group=%hu state=%c index=%hu valid=%hu flags=%c")
	r.respPower = reg.RegisterResponse("adc_power current=%c target=%c")
	r.respVersion = reg.RegisterResponse("adc_version vendor=%hu module=%hu major=%c minor=%c patch=%c")
	r.respTrace = reg.RegisterResponse("adc_trace_event type=%c unit=%c group=%hu value=%u")
	r.respDone = reg.RegisterResponse("adc_group_done group=%hu")

	r.groupCommand("adc_start group=%hu", SvcStartGroupConversion, r.d.StartGroupConversion)
	r.groupCommand("adc_stop group=%hu", SvcStopGroupConversion, r.d.StopGroupConversion)
	r.groupCommand("adc_enable_hw_trigger group=%hu", SvcEnableHardwareTrigger, r.d.EnableHardwareTrigger)
	r.groupCommand("adc_disable_hw_trigger group=%hu", SvcDisableHardwareTrigger, r.d.DisableHardwareTrigger)
	r.groupCommand("adc_enable_notification group=%hu", SvcEnableGroupNotification, r.d.EnableGroupNotification)
	r.groupCommand("adc_disable_notification group=%hu", SvcDisableGroupNotification, r.d.DisableGroupNotification)
	r.channelCommand("adc_enable_channel group=%hu channel=%c", SvcEnableChannel, r.d.EnableChannel)
	r.channelCommand("adc_disable_channel group=%hu channel=%c", SvcDisableChannel, r.d.DisableChannel)
	reg.Register("adc_read group=%hu", r.read)
	reg.Register("adc_read_stream group=%hu", r.readStream)
	reg.Register("adc_status group=%hu", r.status)

	reg.Register("adc_calibrate unit=%c", func(rd *protocol.Reader) error {
		id := UnitID(rd.Uint())
		if err := rd.Err(); err != nil {
			return err
		}
		return r.ack(SvcCalibrate, r.d.Calibrate(id))
	})
	reg.Register("adc_set_clock mode=%c", func(rd *protocol.Reader) error {
		mode := ClockMode(rd.Uint())
		if err := rd.Err(); err != nil {
			return err
		}
		return r.ack(SvcSetClockMode, r.d.SetClockMode(mode))
	})
	reg.Register("adc_prepare_power state=%c", func(rd *protocol.Reader) error {
		state := PowerState(rd.Uint())
		if err := rd.Err(); err != nil {
			return err
		}
		return r.ack(SvcPreparePowerState, r.d.PreparePowerState(state))
	})
	reg.Register("adc_set_power", func(*protocol.Reader) error {
		return r.ack(SvcSetPowerState, r.d.SetPowerState())
	})
	reg.Register("adc_get_power", r.power)
	reg.Register("adc_get_version", func(*protocol.Reader) error {
		v := r.d.GetVersionInfo()
		return r.send(r.respVersion, uint32(v.VendorID), uint32(v.ModuleID),
			uint32(v.Major), uint32(v.Minor), uint32(v.Patch))
	})
	reg.Register("adc_dump_trace", r.dumpTrace)
}

func (r *Remote) groupCommand(format string, svc ServiceID, fn func(GroupID) error) {
	r.reg.Register(format, func(rd *protocol.Reader) error {
		id := GroupID(rd.Uint())
		if err := rd.Err(); err != nil {
			return err
		}
		return r.ack(svc, fn(id))
	})
}

func (r *Remote) channelCommand(format string, svc ServiceID, fn func(GroupID, ChannelID) error) {
	r.reg.Register(format, func(rd *protocol.Reader) error {
		id := GroupID(rd.Uint())
		ch := ChannelID(rd.Uint())
		if err := rd.Err(); err != nil {
			return err
		}
		return r.ack(svc, fn(id, ch))
	})
}

func (r *Remote) identify(rd *protocol.Reader) error {
	offset := rd.Uint()
	count := int(rd.Uint())
	if err := rd.Err(); err != nil {
		return err
	}
	if count > identifyChunk {
		count = identifyChunk
	}
	b := protocol.AppendUint(nil, uint32(r.respIdentify))
	b = protocol.AppendUint(b, offset)
	b = protocol.AppendBytes(b, r.dict.Chunk(offset, count))
	return r.sendPayload(b)
}

func (r *Remote) read(rd *protocol.Reader) error {
	id := GroupID(rd.Uint())
	if err := rd.Err(); err != nil {
		return err
	}
	out := make([]Value, r.d.channelCount(id))
	inRange, err := r.d.ReadGroup(id, out)
	if err != nil {
		return r.ack(SvcReadGroup, err)
	}
	if r.d.debugEnabled {
		r.d.debugPrintln("adc_read " + itoa(int(id)) + ": " + joinValues(out))
	}
	flag := uint32(0)
	if inRange {
		flag = 1
	}
	return r.sendValues(r.respResult, id, flag, out)
}

// readStream reports the latest sample of every channel and the number of
// valid samples held per channel.
func (r *Remote) readStream(rd *protocol.Reader) error {
	id := GroupID(rd.Uint())
	if err := rd.Err(); err != nil {
		return err
	}
	ptr, valid, err := r.d.GetStreamLastPointer(id)
	if err != nil {
		return r.ack(SvcGetStreamLastPointer, err)
	}
	var out []Value
	if valid > 0 {
		g := &r.d.groups[id]
		out = make([]Value, len(g.cfg.Channels))
		for c := range out {
			out[c] = ptr[c*g.cfg.Samples]
		}
	}
	return r.sendValues(r.respStream, id, uint32(valid), out)
}

func (r *Remote) status(rd *protocol.Reader) error {
	id := GroupID(rd.Uint())
	if err := rd.Err(); err != nil {
		return err
	}
	state, err := r.d.GetGroupStatus(id)
	if err != nil {
		return r.ack(SvcGetGroupStatus, err)
	}
	st, _ := r.d.Status(id)
	flags := uint32(0)
	if st.HwTriggerEnabled {
		flags |= FlagHwTrigger
	}
	if st.NotifyEnabled {
		flags |= FlagNotify
	}
	if st.LimitFailed {
		flags |= FlagLimitFailed
	}
	if st.ImplicitlyStopped {
		flags |= FlagImplicitStop
	}
	return r.send(r.respState, uint32(id), uint32(state), uint32(st.ResultIndex), uint32(st.Valid), flags)
}

func (r *Remote) power(*protocol.Reader) error {
	cur, err := r.d.GetCurrentPowerState()
	if err != nil {
		return r.ack(SvcGetCurrentPowerState, err)
	}
	target, err := r.d.GetTargetPowerState()
	if err != nil {
		return r.ack(SvcGetTargetPowerState, err)
	}
	return r.send(r.respPower, uint32(cur), uint32(target))
}

func (r *Remote) dumpTrace(*protocol.Reader) error {
	var events [TraceRingSize]TraceEvent
	n := r.d.Trace(events[:])
	for _, e := range events[:n] {
		if err := r.send(r.respTrace, uint32(e.Type), uint32(e.Unit), uint32(e.Group), e.Value); err != nil {
			return err
		}
	}
	return nil
}

// Notifier returns a notification callback for group id. The callback only
// latches the group; NotifyTask reports it. Set up all notifiers before the
// driver starts converting.
func (r *Remote) Notifier(id GroupID) func() {
	word, bit := int(id)/32, uint32(1)<<(id%32)
	for len(r.pending) <= word {
		r.pending = append(r.pending, 0)
	}
	return func() { atomic.OrUint32(&r.pending[word], bit) }
}

// NotifyTask sends adc_group_done for every latched notification and returns
// how many it sent. Call it from the main loop.
func (r *Remote) NotifyTask() int {
	n := 0
	for w := range r.pending {
		set := atomic.SwapUint32(&r.pending[w], 0)
		for set != 0 {
			b := bits.TrailingZeros32(set)
			set &^= 1 << b
			r.send(r.respDone, uint32(w*32+b))
			n++
		}
	}
	return n
}

func (r *Remote) ack(svc ServiceID, err error) error {
	return r.send(r.respAck, uint32(svc), uint32(errcode.Of(err).Wire()))
}

func (r *Remote) send(id uint16, args ...uint32) error {
	b := protocol.AppendUint(make([]byte, 0, protocol.MaxPayload), uint32(id))
	for _, a := range args {
		b = protocol.AppendUint(b, a)
	}
	return r.sendPayload(b)
}

// sendValues reports vs in chunks that fit one frame, each carrying its
// offset and the total count. An empty vs still produces one message.
func (r *Remote) sendValues(resp uint16, id GroupID, extra uint32, vs []Value) error {
	for first := 0; first == 0 || first < len(vs); first += resultChunk {
		end := first + resultChunk
		if end > len(vs) {
			end = len(vs)
		}
		raw := make([]byte, 0, 2*(end-first))
		for _, v := range vs[first:end] {
			raw = append(raw, byte(v), byte(v>>8))
		}
		b := protocol.AppendUint(make([]byte, 0, protocol.MaxPayload), uint32(resp))
		b = protocol.AppendUint(b, uint32(id))
		b = protocol.AppendUint(b, uint32(first))
		b = protocol.AppendUint(b, uint32(len(vs)))
		b = protocol.AppendUint(b, extra)
		b = protocol.AppendBytes(b, raw)
		if err := r.sendPayload(b); err != nil {
			return err
		}
		if end == len(vs) {
			break
		}
	}
	return nil
}

func (r *Remote) sendPayload(b []byte) error {
	if r.out == nil {
		return nil
	}
	return r.out.Send(b)
}
