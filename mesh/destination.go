////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mesh

import (
	"fmt"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/catalog"
)

// Direction determines whether a destination receives payloads or only
// addresses a remote endpoint.
type Direction uint8

const (
	// In destinations are owned locally and receive.
	In Direction = iota

	// Out destinations address remote endpoints and never receive.
	Out
)

// String prints a human-readable version of the Direction. This function
// adheres to the fmt.Stringer interface.
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("INVALID DIRECTION: %d", uint8(d))
	}
}

// Destination names one endpoint within the application namespace: an
// identity qualified by an aspect. Its hash is what payloads are addressed
// to on the wire.
type Destination struct {
	identityHash address.Hash
	aspect       string
	direction    Direction
	hash         address.Hash
	handler      DeliveryHandler
}

// NewIn creates an inbound destination for the local identity hash under
// the given aspect. The handler receives everything addressed to it once
// the destination is registered with the substrate.
func NewIn(identityHash address.Hash, aspect string, h DeliveryHandler) *Destination {
	return &Destination{
		identityHash: identityHash,
		aspect:       aspect,
		direction:    In,
		hash:         DeriveHash(identityHash, aspect),
		handler:      h,
	}
}

// NewOut creates an outbound destination addressing the remote identity
// hash under the given aspect.
func NewOut(identityHash address.Hash, aspect string) *Destination {
	return &Destination{
		identityHash: identityHash,
		aspect:       aspect,
		direction:    Out,
		hash:         DeriveHash(identityHash, aspect),
	}
}

// DeriveHash returns the destination hash for the identity hash under the
// given aspect. The derivation is the address of record: both ends of the
// network compute it independently and must agree.
func DeriveHash(identityHash address.Hash, aspect string) address.Hash {
	return address.HashOf(
		[]byte(catalog.App), []byte(aspect), identityHash.Bytes())
}

// Hash returns the destination hash payloads are addressed to.
func (d *Destination) Hash() address.Hash {
	return d.hash
}

// IdentityHash returns the hash of the identity the destination belongs to.
func (d *Destination) IdentityHash() address.Hash {
	return d.identityHash
}

// Aspect returns the aspect qualifying the destination.
func (d *Destination) Aspect() string {
	return d.aspect
}

// Direction returns whether the destination is inbound or outbound.
func (d *Destination) Direction() Direction {
	return d.direction
}

// Handler returns the delivery handler of an inbound destination, or nil
// for outbound destinations.
func (d *Destination) Handler() DeliveryHandler {
	return d.handler
}

// String renders the destination for logs as app.aspect/shortHash. This
// function adheres to the fmt.Stringer interface.
func (d *Destination) String() string {
	return fmt.Sprintf("%s.%s/%s (%s)",
		catalog.App, d.aspect, d.hash.ShortString(), d.direction)
}
