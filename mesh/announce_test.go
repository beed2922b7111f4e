////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mesh

import "testing"

// Tests that a display name survives the build/parse round trip.
func TestAnnounceData_RoundTrip(t *testing.T) {
	for _, name := range []string{"loom", "warp & weft", "ÀÉÎÕÜ"} {
		if got := ParseAnnounceData(BuildAnnounceData(name)); got != name {
			t.Errorf("Round trip changed the display name."+
				"\nexpected: %q\nreceived: %q", name, got)
		}
	}
}

// Tests that raw UTF-8 app data, as older peers send it, parses as the
// display name.
func TestParseAnnounceData_RawUTF8(t *testing.T) {
	if got := ParseAnnounceData([]byte("plain name")); got != "plain name" {
		t.Errorf("Raw UTF-8 did not parse.\nreceived: %q", got)
	}
}

// Tests that empty and unreadable app data produce an empty name without
// erroring.
func TestParseAnnounceData_Unreadable(t *testing.T) {
	if got := ParseAnnounceData(nil); got != "" {
		t.Errorf("Nil app data produced %q.", got)
	}

	if got := ParseAnnounceData([]byte{0xff, 0xfe, 0xfd}); got != "" {
		t.Errorf("Invalid bytes produced %q.", got)
	}
}
