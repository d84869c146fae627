package hal

import "sync"

// MemRegisters is a RegisterFile backed by memory. Hooks let tests play the
// part of the converter: OnStore runs after every store, OnLoad before every load.
// Hooks may call Poke and Peek but not Load or Store.
type MemRegisters struct {
	mu    sync.Mutex
	words map[uint32]uint32

	OnStore func(off, v uint32)
	OnLoad  func(off uint32)
}

// NewMemRegisters returns an empty register file.
func NewMemRegisters() *MemRegisters {
	return &MemRegisters{words: make(map[uint32]uint32)}
}

func (m *MemRegisters) Load(off uint32) uint32 {
	if m.OnLoad != nil {
		m.OnLoad(off)
	}
	return m.Peek(off)
}

func (m *MemRegisters) Store(off uint32, v uint32) {
	// STATUS event bits are write-one-to-clear.
	if off%UnitStride == RegSTATUS {
		m.mu.Lock()
		m.words[off] &^= v & statusEvents
		m.mu.Unlock()
	} else {
		m.Poke(off, v)
	}
	if m.OnStore != nil {
		m.OnStore(off, v)
	}
}

// Peek reads a register without running hooks.
func (m *MemRegisters) Peek(off uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[off]
}

// Poke writes a register without running hooks or write-one-to-clear logic.
func (m *MemRegisters) Poke(off uint32, v uint32) {
	m.mu.Lock()
	m.words[off] = v
	m.mu.Unlock()
}
