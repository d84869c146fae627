package core

// InRange applies the channel's range condition to v. Boundaries follow the
// usual ADC limit-check convention: a value equal to the low limit counts as
// below it, a value equal to the high limit as not above it.
func (c *ChannelConfig) InRange(v Value) bool {
	switch c.Range {
	case RangeBetween:
		return v > c.Low && v <= c.High
	case RangeNotBetween:
		return v <= c.Low || v > c.High
	case RangeOverHigh:
		return v > c.High
	case RangeNotOverHigh:
		return v <= c.High
	case RangeUnderLow:
		return v <= c.Low
	case RangeNotUnderLow:
		return v > c.Low
	}
	return true
}

// inRange checks the last round of g's enabled channels. Unit lock held.
func (g *group) inRange() bool {
	for _, l := range g.logical {
		if !g.cfg.Channels[l].InRange(g.values[l]) {
			return false
		}
	}
	return true
}
