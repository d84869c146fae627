package hal

import (
	"errors"
	"unsafe"
)

var (
	ErrPowerState = errors.New("unsupported power state")
	ErrSlots      = errors.New("slot count out of range")
	ErrField      = errors.New("register preset out of range")
)

// DefaultStopBudget is the poll budget for the stop acknowledgement.
const DefaultStopBudget = 10000

// errorer is implemented by register files whose accesses can fail (I2C).
type errorer interface {
	Err() error
}

// RegBridge implements Bridge by programming the register map in layout.go.
type RegBridge struct {
	rf         RegisterFile
	stopBudget uint32

	// Slots loaded by the last ConfigurePartialConversion, per unit.
	loaded [MaxUnits]int
}

// NewRegBridge constructs a bridge over rf. A zero stopBudget selects
// DefaultStopBudget.
func NewRegBridge(rf RegisterFile, stopBudget uint32) *RegBridge {
	if stopBudget == 0 {
		stopBudget = DefaultStopBudget
	}
	return &RegBridge{rf: rf, stopBudget: stopBudget}
}

func (b *RegBridge) reg(unit UnitID, off uint32) Reg {
	return Reg{rf: b.rf, off: UnitBase(unit) + off}
}

func (b *RegBridge) err() error {
	if e, ok := b.rf.(errorer); ok {
		return e.Err()
	}
	return nil
}

func (b *RegBridge) InitUnit(unit UnitID, setup UnitSetup) error {
	if setup.Slots < 1 || setup.Slots > MaxSlots {
		return ErrSlots
	}
	if !FieldCfgRes.Fits(uint32(setup.Resolution)) ||
		!FieldCfgSmp.Fits(uint32(setup.SampleTime)) ||
		!FieldCfgClkDiv.Fits(uint32(setup.ClockDivider)) ||
		(setup.DMA && !FieldDmaCh.Fits(uint32(setup.DMAChannel))) {
		return ErrField
	}
	cfg := FieldCfgRes.Put(0, uint32(setup.Resolution))
	cfg = FieldCfgSmp.Put(cfg, uint32(setup.SampleTime))
	cfg = FieldCfgClkDiv.Put(cfg, uint32(setup.ClockDivider))
	b.reg(unit, RegCFG).Set(cfg)

	if setup.DMA {
		b.reg(unit, RegDMA).Set(FieldDmaCh.Put(0, uint32(setup.DMAChannel)))
	} else {
		b.reg(unit, RegDMA).Set(0)
	}
	b.reg(unit, RegSTATUS).Set(statusEvents)
	b.reg(unit, RegCTRL).Set(CtrlEN)
	return b.err()
}

func (b *RegBridge) DeInitUnit(unit UnitID) {
	b.reg(unit, RegCTRL).Set(0)
	b.reg(unit, RegSTATUS).Set(statusEvents)
	b.loaded[unit%MaxUnits] = 0
}

func (b *RegBridge) loadCommands(unit UnitID, seg Segment, irq bool) {
	n := len(seg.Channels)
	for i, ch := range seg.Channels {
		cmd := FieldCmdCh.Put(0, uint32(ch))
		if i == n-1 {
			cmd |= CmdLAST
			if irq {
				cmd |= CmdEOSIRQ
			}
		}
		b.reg(unit, RegCMD0+uint32(i)*4).Set(cmd)
	}
	ctrl := b.reg(unit, RegCTRL)
	ctrl.SetField(FieldCtrlNSLOT, uint32(n))
	b.loaded[unit%MaxUnits] = n
}

func (b *RegBridge) ConfigurePartialConversion(unit UnitID, seg Segment) {
	b.loadCommands(unit, seg, true)
	b.reg(unit, RegCTRL).ClearBits(CtrlDMAEN)
}

func (b *RegBridge) ConfigureDmaPartialConversion(unit UnitID, seg Segment, xfer DmaTransfer) {
	b.loadCommands(unit, seg, false)

	dma := FieldDmaCh.Put(0, uint32(xfer.Channel))
	if len(xfer.Descriptors) > 1 {
		dma |= DmaCIRC
	}
	b.reg(unit, RegDMA).Set(dma)
	if len(xfer.Buffer) > 0 {
		b.reg(unit, RegDMABASE).Set(uint32(uintptr(unsafe.Pointer(&xfer.Buffer[0]))))
	}

	for d, desc := range xfer.Descriptors {
		if d >= DescCount {
			break
		}
		base := RegDESC0 + uint32(d)*DescStride
		next := uint32(DescNone)
		if desc.Next >= 0 && desc.Next < DescCount {
			next = uint32(desc.Next)
		}
		ctrl := FieldDescCount.Put(0, uint32(desc.Iterations))
		ctrl = FieldDescNext.Put(ctrl, next)
		ctrl = FieldDescStride.Put(ctrl, uint32(desc.Stride))
		b.reg(unit, base+DescCTRL).Set(ctrl)
		for i, off := range desc.Dest {
			b.reg(unit, base+DescDEST0+uint32(i)*4).Set(uint32(off))
		}
	}
	b.reg(unit, RegCTRL).SetBits(CtrlDMAEN)
}

func (b *RegBridge) StartNormalConversion(unit UnitID) {
	ctrl := b.reg(unit, RegCTRL)
	ctrl.ClearBits(CtrlHWTRIG)
	ctrl.SetBits(CtrlSTART)
}

func (b *RegBridge) StartHwTriggerConversion(unit UnitID, trig Trigger) {
	t := FieldTrigSrc.Put(0, uint32(trig.Source))
	t = FieldTrigEdge.Put(t, uint32(trig.Edge))
	b.reg(unit, RegTRIG).Set(t)
	b.reg(unit, RegCTRL).SetBits(CtrlHWTRIG)
}

func (b *RegBridge) StopCurrentConversion(unit UnitID) PollResult {
	status := b.reg(unit, RegSTATUS)
	ctrl := b.reg(unit, RegCTRL)
	ctrl.SetBits(CtrlSTOP)
	res := Poll(b.stopBudget, func() bool {
		return status.HasBits(StatusSTOPACK)
	})
	ctrl.ClearBits(CtrlSTOP | CtrlHWTRIG | CtrlDMAEN | CtrlSTART)
	status.Set(StatusSTOPACK | StatusEOS | StatusDMADONE)
	return res
}

func (b *RegBridge) ReadResults(unit UnitID, dst []Value) int {
	n := b.loaded[unit%MaxUnits]
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = Value(b.reg(unit, RegRES0+uint32(i)*4).GetField(FieldResData))
	}
	b.reg(unit, RegSTATUS).Set(StatusEOS)
	return n
}

func (b *RegBridge) StartCalibration(unit UnitID) {
	b.reg(unit, RegSTATUS).Set(StatusCALDONE)
	b.reg(unit, RegCTRL).SetBits(CtrlCAL)
}

func (b *RegBridge) CalibrationDone(unit UnitID) bool {
	if !b.reg(unit, RegSTATUS).HasBits(StatusCALDONE) {
		return false
	}
	b.reg(unit, RegCTRL).ClearBits(CtrlCAL)
	return true
}

func (b *RegBridge) SetClockDivider(unit UnitID, div uint8) {
	b.reg(unit, RegCFG).SetField(FieldCfgClkDiv, uint32(div))
}

func (b *RegBridge) SetPowerState(unit UnitID, state uint8) error {
	if !FieldCfgPwr.Fits(uint32(state)) {
		return ErrPowerState
	}
	b.reg(unit, RegCFG).SetField(FieldCfgPwr, uint32(state))
	return b.err()
}

// EndOfSegment reports a pending end-of-segment event.
func (b *RegBridge) EndOfSegment(unit UnitID) bool {
	return b.reg(unit, RegSTATUS).HasBits(StatusEOS)
}

// DmaDone reports and clears a pending DMA iteration event.
func (b *RegBridge) DmaDone(unit UnitID) bool {
	status := b.reg(unit, RegSTATUS)
	if !status.HasBits(StatusDMADONE) {
		return false
	}
	status.Set(StatusDMADONE)
	return true
}
