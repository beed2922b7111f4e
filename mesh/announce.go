////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mesh

import (
	"unicode/utf8"

	jww "github.com/spf13/jwalterweatherman"
	"github.com/vmihailenco/msgpack/v5"
)

// BuildAnnounceData packs a display name into announce application data.
// The layout is a packed array so future fields can ride along without
// breaking old readers.
func BuildAnnounceData(displayName string) []byte {
	data, err := msgpack.Marshal([]interface{}{[]byte(displayName)})
	if err != nil {
		// Packing a single byte slice cannot fail.
		jww.FATAL.Panicf("Failed to pack announce data: %+v", err)
	}
	return data
}

// ParseAnnounceData extracts a display name from announce application data.
// It reads the packed array form and falls back to treating the whole blob
// as UTF-8, matching what older peers send. An empty string means no
// readable name was present; it is never an error.
func ParseAnnounceData(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var fields []interface{}
	if err := msgpack.Unmarshal(data, &fields); err == nil {
		if len(fields) > 0 {
			switch name := fields[0].(type) {
			case []byte:
				if utf8.Valid(name) {
					return string(name)
				}
			case string:
				return name
			}
		}
		return ""
	}

	if utf8.Valid(data) {
		return string(data)
	}
	return ""
}
