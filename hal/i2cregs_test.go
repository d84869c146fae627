package hal

import (
	"encoding/binary"
	"errors"
	"testing"
)

// fakeI2C implements drivers.I2C on top of a MemRegisters window.
type fakeI2C struct {
	regs *MemRegisters
	addr uint16
	fail error
	txs  int
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	f.txs++
	if f.fail != nil {
		return f.fail
	}
	if addr != f.addr {
		return errors.New("nack")
	}
	off := uint32(binary.BigEndian.Uint16(w[:2]))
	if len(w) == 6 {
		f.regs.Store(off, binary.BigEndian.Uint32(w[2:]))
	}
	if len(r) == 4 {
		binary.BigEndian.PutUint32(r, f.regs.Load(off))
	}
	return nil
}

func TestI2CRegisters(t *testing.T) {
	bus := &fakeI2C{regs: NewMemRegisters(), addr: 0x48}
	rf := NewI2CRegisters(bus, 0x48)

	rf.Store(0x20C, 0xDEADBEEF)
	if got := bus.regs.Peek(0x20C); got != 0xDEADBEEF {
		t.Errorf("device register = %#x", got)
	}
	if got := rf.Load(0x20C); got != 0xDEADBEEF {
		t.Errorf("Load = %#x", got)
	}
	if rf.Err() != nil {
		t.Errorf("unexpected error %v", rf.Err())
	}

	bus.fail = errors.New("bus stuck")
	if got := rf.Load(0x20C); got != 0 {
		t.Errorf("failed Load returned %#x", got)
	}
	rf.Store(0, 1)
	if rf.Err() == nil || rf.Err().Error() != "bus stuck" {
		t.Errorf("first error not latched: %v", rf.Err())
	}
	rf.ClearErr()
	if rf.Err() != nil {
		t.Error("ClearErr did not clear")
	}
}

func TestRegBridgeOverI2C(t *testing.T) {
	bus := &fakeI2C{regs: NewMemRegisters(), addr: 0x48}
	b := NewRegBridge(NewI2CRegisters(bus, 0x48), 0)
	if err := b.InitUnit(0, UnitSetup{Slots: 8}); err != nil {
		t.Fatalf("InitUnit: %v", err)
	}
	if bus.regs.Peek(RegCTRL)&CtrlEN == 0 {
		t.Error("unit not enabled over I2C")
	}

	bus.fail = errors.New("nack")
	if err := b.InitUnit(1, UnitSetup{Slots: 8}); err == nil {
		t.Error("bus failure not surfaced by InitUnit")
	}
}
