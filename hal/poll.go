package hal

// PollResult is the outcome of a bounded wait.
type PollResult uint8

const (
	PollOK PollResult = iota
	PollTimedOut
)

// Ok reports whether the condition was met within the budget.
func (r PollResult) Ok() bool { return r == PollOK }

func (r PollResult) String() string {
	if r == PollOK {
		return "ok"
	}
	return "timed out"
}

// Poll calls done until it returns true or budget iterations have been spent.
// It never blocks beyond the budget; a zero budget times out immediately.
func Poll(budget uint32, done func() bool) PollResult {
	for i := uint32(0); i < budget; i++ {
		if done() {
			return PollOK
		}
	}
	return PollTimedOut
}
