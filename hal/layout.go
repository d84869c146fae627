package hal

// Register map of one converter unit. Units are laid out back to back,
// UnitStride bytes apart.
const (
	UnitStride = 0x200

	RegCTRL    = 0x00
	RegSTATUS  = 0x04 // event bits are write-one-to-clear
	RegTRIG    = 0x08
	RegCFG     = 0x0C
	RegDMA     = 0x10
	RegDMABASE = 0x14
	RegCMD0    = 0x20 // MaxSlots command words
	RegRES0    = 0x60 // MaxSlots result words
	RegDESC0   = 0xA0 // DescCount descriptors, DescStride bytes each

	DescStride = 0x50
	DescCTRL   = 0x00
	DescDEST0  = 0x10 // MaxSlots destination offsets

	MaxSlots  = 16
	MaxUnits  = 8
	DescCount = 2
)

// CTRL bits.
const (
	CtrlEN     = 1 << 0
	CtrlSTART  = 1 << 1
	CtrlSTOP   = 1 << 2
	CtrlCAL    = 1 << 3
	CtrlHWTRIG = 1 << 4
	CtrlDMAEN  = 1 << 5
)

// STATUS bits. Bit 0 is reserved.
const (
	StatusEOS     = 1 << 1
	StatusSTOPACK = 1 << 2
	StatusCALDONE = 1 << 3
	StatusDMADONE = 1 << 4

	statusEvents = StatusEOS | StatusSTOPACK | StatusCALDONE | StatusDMADONE
)

// CMD word bits.
const (
	CmdEOSIRQ = 1 << 8
	CmdLAST   = 1 << 9
)

// DMA bits.
const (
	DmaCIRC = 1 << 8
)

// Resolution codes for the CFG RES field.
const (
	Res6Bit uint8 = iota
	Res8Bit
	Res10Bit
	Res12Bit
)

// DescNone in the NEXT field ends a descriptor chain.
const DescNone = 3

var (
	FieldCtrlNSLOT  = Field{Pos: 8, Width: 5}
	FieldTrigSrc    = Field{Pos: 0, Width: 8}
	FieldTrigEdge   = Field{Pos: 8, Width: 2}
	FieldCfgRes     = Field{Pos: 0, Width: 2}
	FieldCfgSmp     = Field{Pos: 4, Width: 8}
	FieldCfgClkDiv  = Field{Pos: 12, Width: 4}
	FieldCfgPwr     = Field{Pos: 16, Width: 3}
	FieldDmaCh      = Field{Pos: 0, Width: 5}
	FieldCmdCh      = Field{Pos: 0, Width: 6}
	FieldResData    = Field{Pos: 0, Width: 16}
	FieldDescCount  = Field{Pos: 0, Width: 16}
	FieldDescNext   = Field{Pos: 16, Width: 2}
	FieldDescStride = Field{Pos: 20, Width: 12}
)

// UnitBase returns the byte offset of a unit's register block.
func UnitBase(unit UnitID) uint32 {
	return uint32(unit) * UnitStride
}
