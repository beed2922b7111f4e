////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import "strconv"

// invalidStatusErr is the string returned by Status.String for a value
// outside the defined statuses.
const invalidStatusErr = "INVALID STATUS: "

// Status is the running state of a Stoppable. The order matters:
// Multi.GetStatus reports the smallest status among its children, so a
// tree counts as Stopped only once every child does.
type Status uint32

const (
	Running Status = iota
	Stopping
	Stopped
)

// String adheres to the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return invalidStatusErr + strconv.Itoa(int(s))
	}
}
