//go:build tinygo

package core

import "runtime/interrupt"

type irqState = interrupt.State

// critical masks interrupts for the duration of a region.
type critical struct{}

func (c *critical) enter() irqState {
	return interrupt.Disable()
}

func (c *critical) exit(state irqState) {
	interrupt.Restore(state)
}
