////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package client

import "gitlab.com/weftnet/client/address"

// Status is a point-in-time view of the client's standing on the overlay.
type Status struct {
	// Connected reports whether the session currently holds a healthy
	// substrate.
	Connected bool

	// Interfaces and Peers count the live substrate attachments.
	Interfaces int
	Peers      int

	// IdentityHash names the local identity on the overlay. It is the
	// zero hash when no identity is loaded.
	IdentityHash address.Hash
}
