////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package mesh wraps the overlay transport substrate behind a narrow
// interface and adds the session-level services the rest of the client
// builds on: idempotent initialization, liveness tracking, and a directory
// of announced peers. The substrate itself (routing, links, interfaces) is
// injected; this package never implements transport.
package mesh

import (
	"time"

	"github.com/pkg/errors"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
)

// ErrInitFailed is returned when the substrate cannot be brought up. The
// underlying fault is attached to the chain.
var ErrInitFailed = errors.New("network initialization failed")

// NetworkStatus is a point-in-time snapshot of substrate connectivity.
type NetworkStatus struct {
	Connected  bool
	Interfaces int
	Peers      int
}

// Delivery is one payload handed up by the substrate for a registered
// inbound destination.
type Delivery struct {
	// To is the hash of the destination the payload arrived on.
	To address.Hash

	// Payload is the raw payload; the layer that registered the
	// destination owns its format.
	Payload []byte

	// Propagated is set when the payload arrived through store-and-forward
	// rather than a direct link.
	Propagated bool

	ReceivedAt time.Time
}

// DeliveryHandler consumes deliveries for an inbound destination. The
// substrate invokes Deliver on its own network goroutine; implementations
// must hand the work off and return quickly.
type DeliveryHandler interface {
	Deliver(d Delivery)

	// Name returns a name for the handler, used for debugging.
	Name() string
}

// Announcement is one peer presence broadcast heard from the substrate.
type Announcement struct {
	Source  address.Hash
	Public  identity.Public
	AppData []byte
	At      time.Time
}

// Registration is a live claim on an inbound destination. Unregister
// withdraws the claim; deliveries stop afterward.
type Registration interface {
	Destination() *Destination
	Unregister()
}

// Substrate is the transport the client rides on. Implementations must be
// goroutine safe. The Heartbeats and Announcements channels must be non-nil
// for the life of the substrate, including before Start.
type Substrate interface {
	// Start attaches the local identity and brings the substrate up.
	// Session guards idempotence; Start itself is called at most once.
	Start(local identity.Public) error
	Stop() error

	// Counts reports the live interface and peer tallies.
	Counts() (interfaces, peers int)

	// Heartbeats pulses while the transport is confirmed live. The health
	// tracker consumes it.
	Heartbeats() <-chan struct{}

	// Announcements carries peer announces heard on the network. The
	// session's directory consumes it.
	Announcements() <-chan Announcement

	// RegisterDestination claims the inbound destination and begins
	// routing payloads addressed to it into the destination's handler. A
	// nil Registration with a nil error means the destination was already
	// claimed locally; payloads keep flowing to the original handler and
	// the caller holds no handle to withdraw.
	RegisterDestination(dst *Destination) (Registration, error)

	// Announce broadcasts the local identity's presence with the given
	// application data.
	Announce(appData []byte) error

	// ResolveIdentity recalls the public identity behind the identity
	// hash, if it is known.
	ResolveIdentity(target address.Hash) (identity.Public, bool)

	// RequestPath asks the network to establish knowledge of the identity
	// hash. Resolution may succeed on a later attempt; the request itself
	// returns immediately.
	RequestPath(target address.Hash) error

	// DeliverDirect carries the payload to the destination hash over a
	// direct path. It errors when no path is available.
	DeliverDirect(target address.Hash, payload []byte) error

	// Propagate hands the payload to the network for store-and-forward
	// delivery to the destination hash.
	Propagate(target address.Hash, payload []byte) error
}
