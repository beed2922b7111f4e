////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"fmt"
	"time"
)

// Object is the unit of storage in a versioned KV. It records the schema
// version of the serialized data and the time it was written.
type Object struct {
	// Version determines which upgrades, if any, apply to Data.
	Version uint64

	// Timestamp is set when the object is written.
	Timestamp time.Time

	// Data is the serialized form of the stored object.
	Data []byte
}

// Unmarshal deserializes an Object from a byte slice so that it is loadable
// from an ekv.KeyValue.
func (v *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, v)
}

// Marshal serializes an Object into a byte slice so that it is storable in
// an ekv.KeyValue. All fields are exported with simple types; failing to
// marshal means something is deeply wrong, so it panics.
func (v *Object) Marshal() []byte {
	d, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("Could not marshal object: %+v", v))
	}
	return d
}
