// Package hal is the boundary between the ADC scheduler and the converter hardware.
//
// The scheduler in package core only talks to a Bridge. RegBridge implements it on
// top of a RegisterFile, which can be plain memory (host tests), a register window
// reached over I2C, or memory-mapped I/O on the target.
package hal

// UnitID identifies one physical converter.
type UnitID uint8

// Value is a raw conversion result. Hardware results are right aligned.
type Value uint16

// Edge selects the hardware trigger edge.
type Edge uint8

const (
	EdgeRising Edge = iota
	EdgeFalling
	EdgeBoth
)

// Trigger describes the external start event armed for a hardware-triggered group.
type Trigger struct {
	Source uint8
	Edge   Edge
}

// Segment is the part of a group programmed into the conversion-command slots in
// one pass.
type Segment struct {
	Group    uint16  // owning group, informational
	Channels []uint8 // hardware channels in slot order
	First    int     // position of Channels[0] in the group's conversion order
	Final    bool    // last segment of the group
}

// DmaDescriptor moves the result slots of one trigger event into the destination
// buffer. Dest[i] is the buffer offset of slot i on the first iteration; every
// following iteration adds Stride.
type DmaDescriptor struct {
	Dest       []int
	Stride     int
	Iterations int
	Next       int // chained descriptor index, -1 ends the chain
}

// DmaTransfer is handed to ConfigureDmaPartialConversion.
type DmaTransfer struct {
	Channel     uint8
	Buffer      []Value
	Descriptors []DmaDescriptor
}

// UnitSetup carries the per-unit register presets applied at Init.
type UnitSetup struct {
	Slots        int
	Resolution   uint8
	SampleTime   uint8
	ClockDivider uint8
	DMA          bool
	DMAChannel   uint8
}

// Bridge is the register/DMA primitive set the scheduler consumes.
// Implementations must not call back into the scheduler.
type Bridge interface {
	InitUnit(unit UnitID, setup UnitSetup) error
	DeInitUnit(unit UnitID)

	// ConfigurePartialConversion loads one segment into the command slots.
	// Only the last slot of the segment raises the end-of-segment interrupt.
	ConfigurePartialConversion(unit UnitID, seg Segment)

	// ConfigureDmaPartialConversion loads one segment whose results are moved
	// by the DMA engine according to xfer.
	ConfigureDmaPartialConversion(unit UnitID, seg Segment, xfer DmaTransfer)

	StartNormalConversion(unit UnitID)
	StartHwTriggerConversion(unit UnitID, trig Trigger)

	// StopCurrentConversion aborts whatever the unit is converting and waits,
	// bounded, for the acknowledgement.
	StopCurrentConversion(unit UnitID) PollResult

	// ReadResults copies the results of the last segment into dst and returns
	// the number of values written.
	ReadResults(unit UnitID, dst []Value) int

	StartCalibration(unit UnitID)
	CalibrationDone(unit UnitID) bool

	SetClockDivider(unit UnitID, div uint8)
	SetPowerState(unit UnitID, state uint8) error
}
