//go:build !tinygo

package core

import "sync"

// irqState is a placeholder for interrupt state on regular Go.
type irqState uintptr

// critical guards state shared between interrupt entries and foreground calls.
// On regular Go the interrupt entries run on ordinary goroutines, so a mutex
// stands in for masking interrupts.
type critical struct {
	mu sync.Mutex
}

func (c *critical) enter() irqState {
	c.mu.Lock()
	return 0
}

func (c *critical) exit(irqState) {
	c.mu.Unlock()
}
