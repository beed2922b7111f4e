////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package client

import (
	"encoding/json"
	"reflect"
	"testing"
)

// Tests that GetParameters returns the defaults for an empty override,
// honors a JSON override, and rejects malformed JSON.
func TestGetParameters(t *testing.T) {
	defaults, err := GetParameters("")
	if err != nil {
		t.Fatalf("GetParameters errored on an empty override: %+v", err)
	}
	if !reflect.DeepEqual(defaults, GetDefaultParams()) {
		t.Errorf("Empty override did not yield the defaults."+
			"\nexpected: %+v\nreceived: %+v", GetDefaultParams(), defaults)
	}

	expected := GetDefaultParams()
	expected.Messaging.HistoryLimit = 7
	expected.Streaming.FrameQueueSize = 3
	data, err := json.Marshal(&expected)
	if err != nil {
		t.Fatalf("Failed to marshal params: %+v", err)
	}

	overridden, err := GetParameters(string(data))
	if err != nil {
		t.Fatalf("GetParameters errored on a valid override: %+v", err)
	}
	if !reflect.DeepEqual(overridden, expected) {
		t.Errorf("Override was not honored."+
			"\nexpected: %+v\nreceived: %+v", expected, overridden)
	}

	if _, err = GetParameters("not json"); err == nil {
		t.Error("GetParameters did not error on malformed JSON.")
	}
}
