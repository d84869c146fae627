package core

import "goadc/hal"

// UnitID identifies one physical converter.
type UnitID = hal.UnitID

// Value is a raw conversion result.
type Value = hal.Value

// GroupID indexes the configured groups.
type GroupID uint16

// ChannelID is the logical channel number inside a configuration.
type ChannelID uint8

// noGroup marks an empty queue slot or an idle unit.
const noGroup GroupID = 0xFFFF

// AnyUnit is reported with usage errors that are not tied to a unit.
const AnyUnit UnitID = 0xFF

// GroupState is the conversion state of a group.
type GroupState uint8

const (
	StateIdle GroupState = iota
	StateBusy
	StateCompleted
	StateStreamCompleted
)

func (s GroupState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBusy:
		return "BUSY"
	case StateCompleted:
		return "COMPLETED"
	case StateStreamCompleted:
		return "STREAM_COMPLETED"
	}
	return "UNKNOWN"
}

type TriggerSource uint8

const (
	TriggerSoftware TriggerSource = iota
	TriggerHardware
)

type ConvMode uint8

const (
	ConvOneShot ConvMode = iota
	ConvContinuous
)

type AccessMode uint8

const (
	AccessSingle AccessMode = iota
	AccessStreaming
)

type BufferMode uint8

const (
	BufferLinear BufferMode = iota
	BufferCircular
)

// ConvType selects the normal or the injected (preempting) pipeline.
type ConvType uint8

const (
	ConvNormal ConvType = iota
	ConvInjected
)

// Replacement decides what happens to a group that loses the hardware to a
// higher-precedence request.
type Replacement uint8

const (
	// ReplaceAbortRestart discards the partial round; the group restarts at its
	// first channel.
	ReplaceAbortRestart Replacement = iota
	// ReplaceSuspendResume keeps the completed segments and resumes at the
	// interrupted one.
	ReplaceSuspendResume
)

// QueueKind names one of the four request queues of a unit.
type QueueKind uint8

const (
	QueueSwInjected QueueKind = iota
	QueueHwInjected
	QueueHwNormal
	QueueSwNormal

	queueKinds = 4
)

func (k QueueKind) String() string {
	switch k {
	case QueueSwInjected:
		return "sw-injected"
	case QueueHwInjected:
		return "hw-injected"
	case QueueHwNormal:
		return "hw-normal"
	case QueueSwNormal:
		return "sw-normal"
	}
	return "unknown"
}

// DefaultPrecedence is the queue service order used when a configuration
// leaves Precedence unset.
var DefaultPrecedence = [queueKinds]QueueKind{
	QueueSwInjected, QueueHwInjected, QueueHwNormal, QueueSwNormal,
}

type ClockMode uint8

const (
	ClockNormal ClockMode = iota
	ClockAlternate
)

// PowerState is a converter power level. PowerFull is always supported.
type PowerState uint8

const PowerFull PowerState = 0

// VersionInfo identifies the driver build.
type VersionInfo struct {
	VendorID uint16
	ModuleID uint16
	Major    uint8
	Minor    uint8
	Patch    uint8
}

const (
	vendorID = 0x00CE
	moduleID = 123
)
