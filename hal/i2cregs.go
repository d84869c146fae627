package hal

import (
	"encoding/binary"

	"tinygo.org/x/drivers"
)

// I2CRegisters reaches the converter register map of an external device over
// I2C. Offsets are sent as a 16-bit big-endian address, values as 32-bit
// big-endian words.
//
// Load and Store cannot return errors; the first failure is latched and
// reported by Err until ClearErr.
type I2CRegisters struct {
	bus  drivers.I2C
	addr uint16
	err  error

	w [6]byte
	r [4]byte
}

// NewI2CRegisters wraps a TinyGo I2C bus.
func NewI2CRegisters(bus drivers.I2C, addr uint16) *I2CRegisters {
	return &I2CRegisters{bus: bus, addr: addr}
}

func (c *I2CRegisters) Load(off uint32) uint32 {
	binary.BigEndian.PutUint16(c.w[:2], uint16(off))
	if err := c.bus.Tx(c.addr, c.w[:2], c.r[:]); err != nil {
		c.latch(err)
		return 0
	}
	return binary.BigEndian.Uint32(c.r[:])
}

func (c *I2CRegisters) Store(off uint32, v uint32) {
	binary.BigEndian.PutUint16(c.w[:2], uint16(off))
	binary.BigEndian.PutUint32(c.w[2:], v)
	if err := c.bus.Tx(c.addr, c.w[:], nil); err != nil {
		c.latch(err)
	}
}

func (c *I2CRegisters) latch(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the first bus error since the last ClearErr.
func (c *I2CRegisters) Err() error { return c.err }

// ClearErr forgets a latched error.
func (c *I2CRegisters) ClearErr() { c.err = nil }
