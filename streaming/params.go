package streaming

import (
	"encoding/json"
	"time"
)

// Params adjust the behavior of pipelines and calls.
type Params struct {
	// FrameDuration is the pump clock: one frame moves per period.
	FrameDuration time.Duration

	// FrameQueueSize bounds the buffer between the substrate callback and
	// a remote source. Frames beyond it are dropped.
	FrameQueueSize int

	// StatsWindow is the measurement window for the bitrate estimate.
	StatsWindow time.Duration

	// RingTimeout is how long an unanswered incoming call rings before it
	// is declined.
	RingTimeout time.Duration

	// AnswerTimeout is how long an outgoing call waits for an answer.
	AnswerTimeout time.Duration
}

// paramsDisk will be the marshal-able and unmarshal-able object.
type paramsDisk struct {
	FrameDuration  time.Duration
	FrameQueueSize int
	StatsWindow    time.Duration
	RingTimeout    time.Duration
	AnswerTimeout  time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		FrameDuration:  20 * time.Millisecond,
		FrameQueueSize: 32,
		StatsWindow:    time.Second,
		RingTimeout:    30 * time.Second,
		AnswerTimeout:  15 * time.Second,
	}
}

// GetParameters returns the default Params, or override with given
// parameters, if set.
func GetParameters(params string) (Params, error) {
	p := GetDefaultParams()
	if len(params) > 0 {
		err := json.Unmarshal([]byte(params), &p)
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}

// MarshalJSON adheres to the json.Marshaler interface.
func (p Params) MarshalJSON() ([]byte, error) {
	pDisk := paramsDisk{
		FrameDuration:  p.FrameDuration,
		FrameQueueSize: p.FrameQueueSize,
		StatsWindow:    p.StatsWindow,
		RingTimeout:    p.RingTimeout,
		AnswerTimeout:  p.AnswerTimeout,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		FrameDuration:  pDisk.FrameDuration,
		FrameQueueSize: pDisk.FrameQueueSize,
		StatsWindow:    pDisk.StatsWindow,
		RingTimeout:    pDisk.RingTimeout,
		AnswerTimeout:  pDisk.AnswerTimeout,
	}

	return nil
}
