// Package errcode holds the stable error identifiers reported by the ADC driver.
package errcode

// Code is a stable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Usage errors: detected at entry, reported on the usage-error channel.
const (
	OK                 Code = "ok"
	Uninit             Code = "uninit"
	AlreadyInitialized Code = "already_initialized"
	ParamConfig        Code = "param_config"
	ParamGroup         Code = "param_group"
	ParamUnit          Code = "param_unit"
	ParamPointer       Code = "param_pointer"
	ParamMode          Code = "param_mode"
	BufferUninit       Code = "buffer_uninit"
	WrongTriggSrc      Code = "wrong_trigg_src"
	WrongConvMode      Code = "wrong_conv_mode"
	QueueFull          Code = "queue_full"
	Busy               Code = "busy"
	Idle               Code = "idle"
	NotifCapability    Code = "notif_capability"
	PowerNotSupported  Code = "power_state_not_supported"
	NotPrepared        Code = "not_prepared"
	NotDisengaged      Code = "not_disengaged"
	ParamChannel       Code = "param_channel"
)

// Runtime outcomes that are not usage errors.
const (
	Timeout  Code = "timeout"
	NoResult Code = "no_result"

	Error Code = "error" // generic fallback
)

// wire lists codes in their on-the-wire order. Append only.
var wire = [...]Code{
	OK, Uninit, AlreadyInitialized, ParamConfig, ParamGroup, ParamUnit,
	ParamPointer, ParamMode, BufferUninit, WrongTriggSrc, WrongConvMode,
	QueueFull, Busy, Idle, NotifCapability, PowerNotSupported, NotPrepared,
	NotDisengaged, Timeout, NoResult, Error, ParamChannel,
}

// Wire returns the stable numeric form of c used by the command protocol.
func (c Code) Wire() uint8 {
	for i, w := range wire {
		if w == c {
			return uint8(i)
		}
	}
	return Error.Wire()
}

// FromWire is the inverse of Wire. Unknown numbers map to Error.
func FromWire(n uint8) Code {
	if int(n) < len(wire) {
		return wire[n]
	}
	return Error
}

// E keeps the failing service alongside the code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Busy) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an E for the given service.
func New(op string, c Code) *E {
	return &E{C: c, Op: op}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
