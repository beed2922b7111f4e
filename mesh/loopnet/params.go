package loopnet

import "time"

// Params adjust node behavior.
type Params struct {
	// PulsePeriod is how often the node's network thread pulses the
	// heartbeat channel.
	PulsePeriod time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		PulsePeriod: 250 * time.Millisecond,
	}
}
