package hal

// RegisterFile is a window of 32-bit registers addressed by byte offset.
type RegisterFile interface {
	Load(off uint32) uint32
	Store(off uint32, v uint32)
}

// Field is a named bitfield inside a register.
type Field struct {
	Pos   uint8
	Width uint8
}

// Mask returns the in-place mask of the field.
func (f Field) Mask() uint32 {
	return (uint32(1)<<f.Width - 1) << f.Pos
}

// Get extracts the field from v.
func (f Field) Get(v uint32) uint32 {
	return (v & f.Mask()) >> f.Pos
}

// Fits reports whether x can be stored in the field without truncation.
func (f Field) Fits(x uint32) bool {
	return x <= f.Mask()>>f.Pos
}

// Put returns v with the field replaced by x.
func (f Field) Put(v, x uint32) uint32 {
	return v&^f.Mask() | (x<<f.Pos)&f.Mask()
}

// Reg is a single register inside a RegisterFile.
type Reg struct {
	rf  RegisterFile
	off uint32
}

func (r Reg) Get() uint32  { return r.rf.Load(r.off) }
func (r Reg) Set(v uint32) { r.rf.Store(r.off, v) }

func (r Reg) SetBits(m uint32)   { r.Set(r.Get() | m) }
func (r Reg) ClearBits(m uint32) { r.Set(r.Get() &^ m) }

// HasBits reports whether every bit of m is set.
func (r Reg) HasBits(m uint32) bool { return r.Get()&m == m }

func (r Reg) GetField(f Field) uint32     { return f.Get(r.Get()) }
func (r Reg) SetField(f Field, x uint32) { r.Set(f.Put(r.Get(), x)) }
