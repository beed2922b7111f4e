package client

// params.go defines the high level parameters structure that is passed
// down into the core subsystem modules.

import (
	"encoding/json"

	"gitlab.com/weftnet/client/mesh"
	"gitlab.com/weftnet/client/messaging"
	"gitlab.com/weftnet/client/streaming"
)

// Params bundles the settings of every subsystem the client drives.
type Params struct {
	Session   mesh.Params
	Messaging messaging.Params
	Streaming streaming.Params
}

// GetDefaultParams returns the default Params of every subsystem.
func GetDefaultParams() Params {
	return Params{
		Session:   mesh.GetDefaultParams(),
		Messaging: messaging.GetDefaultParams(),
		Streaming: streaming.GetDefaultParams(),
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
