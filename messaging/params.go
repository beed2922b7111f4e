package messaging

import (
	"encoding/json"
	"time"
)

// Params adjust the behavior of the messaging manager and its workers.
type Params struct {
	// MaxDeliveryAttempts is how many direct delivery attempts the
	// outbound worker makes before falling back to propagation.
	MaxDeliveryAttempts uint

	// DeliveryRetryWait is how long the outbound worker waits between
	// direct attempts when a path to the destination is known.
	DeliveryRetryWait time.Duration

	// PathRequestWait is how long the outbound worker waits for an
	// announce after requesting a path to an unresolved destination.
	PathRequestWait time.Duration

	// OutboundQueueSize bounds how many submitted messages may wait for
	// the outbound worker before Send starts failing.
	OutboundQueueSize int

	// InboundQueueSize bounds the dispatch channel between the substrate
	// callback and the dispatcher. Deliveries beyond it are dropped.
	InboundQueueSize int

	// SendsPerSecond paces delivery attempts on the outbound worker.
	SendsPerSecond int

	// AnnounceCooldown suppresses announces issued faster than this.
	AnnounceCooldown time.Duration

	// HistoryLimit caps how many inbound records are retained and
	// persisted. The oldest records fall off first.
	HistoryLimit int
}

// paramsDisk will be the marshal-able and unmarshal-able object.
type paramsDisk struct {
	MaxDeliveryAttempts uint
	DeliveryRetryWait   time.Duration
	PathRequestWait     time.Duration
	OutboundQueueSize   int
	InboundQueueSize    int
	SendsPerSecond      int
	AnnounceCooldown    time.Duration
	HistoryLimit        int
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		MaxDeliveryAttempts: 5,
		DeliveryRetryWait:   10 * time.Second,
		PathRequestWait:     7 * time.Second,
		OutboundQueueSize:   64,
		InboundQueueSize:    64,
		SendsPerSecond:      4,
		AnnounceCooldown:    10 * time.Second,
		HistoryLimit:        256,
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
		MaxDeliveryAttempts: p.MaxDeliveryAttempts,
		DeliveryRetryWait:   p.DeliveryRetryWait,
		PathRequestWait:     p.PathRequestWait,
		OutboundQueueSize:   p.OutboundQueueSize,
		InboundQueueSize:    p.InboundQueueSize,
		SendsPerSecond:      p.SendsPerSecond,
		AnnounceCooldown:    p.AnnounceCooldown,
		HistoryLimit:        p.HistoryLimit,
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
		MaxDeliveryAttempts: pDisk.MaxDeliveryAttempts,
		DeliveryRetryWait:   pDisk.DeliveryRetryWait,
		PathRequestWait:     pDisk.PathRequestWait,
		OutboundQueueSize:   pDisk.OutboundQueueSize,
		InboundQueueSize:    pDisk.InboundQueueSize,
		SendsPerSecond:      pDisk.SendsPerSecond,
		AnnounceCooldown:    pDisk.AnnounceCooldown,
		HistoryLimit:        pDisk.HistoryLimit,
	}

	return nil
}
