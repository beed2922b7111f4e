package mesh

import (
	"encoding/json"
	"time"
)

// Params adjust session behavior.
type Params struct {
	// HealthTimeout is how long the session may go without a substrate
	// heartbeat before it is marked unhealthy.
	HealthTimeout time.Duration

	// ConnectTimeout bounds how long WaitUntilConnected blocks by default
	// when the caller passes no explicit timeout.
	ConnectTimeout time.Duration
}

// paramsDisk will be the marshal-able and unmarshal-able object.
type paramsDisk struct {
	HealthTimeout  time.Duration
	ConnectTimeout time.Duration
}

// GetDefaultParams returns a default set of Params.
func GetDefaultParams() Params {
	return Params{
		HealthTimeout:  15 * time.Second,
		ConnectTimeout: 30 * time.Second,
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
		HealthTimeout:  p.HealthTimeout,
		ConnectTimeout: p.ConnectTimeout,
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
		HealthTimeout:  pDisk.HealthTimeout,
		ConnectTimeout: pDisk.ConnectTimeout,
	}

	return nil
}
