////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/weftnet/client/address"
)

// MessageState tracks a message through the outbound delivery lifecycle.
type MessageState uint8

const (
	// Generating - the message exists but has not been submitted.
	Generating MessageState = iota

	// Queued - the message was accepted into the outbound queue.
	Queued

	// Sending - the outbound worker is attempting direct delivery.
	Sending

	// Delivered - the substrate accepted the message for direct delivery.
	Delivered

	// Propagated - direct attempts ran out and the message was handed to
	// the propagation network for store-and-forward pickup.
	Propagated

	// Failed - every delivery method was exhausted.
	Failed
)

// String adheres to the fmt.Stringer interface.
func (ms MessageState) String() string {
	switch ms {
	case Generating:
		return "generating"
	case Queued:
		return "queued"
	case Sending:
		return "sending"
	case Delivered:
		return "delivered"
	case Propagated:
		return "propagated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown state %d", ms)
	}
}

// Terminal reports whether the state is final. A terminal state never
// changes again.
func (ms MessageState) Terminal() bool {
	return ms == Delivered || ms == Propagated || ms == Failed
}

// Method is how a message should reach its destination.
type Method uint8

const (
	// Direct - deliver straight to the destination over an established
	// path, retrying until attempts run out.
	Direct Method = iota

	// Propagation - skip direct delivery and hand the message to the
	// propagation network immediately.
	Propagation
)

// String adheres to the fmt.Stringer interface.
func (m Method) String() string {
	switch m {
	case Direct:
		return "direct"
	case Propagation:
		return "propagation"
	default:
		return fmt.Sprintf("unknown method %d", m)
	}
}

// Message is a single outbound message. All fields are set at creation and
// immutable after submission; only the delivery state and attempt count
// move, and only forward.
type Message struct {
	ID uuid.UUID

	// To is the recipient's identity hash. Dest is the recipient's derived
	// delivery destination hash, which is what actually carries the
	// payload on the wire.
	To   address.Hash
	Dest address.Hash

	// Source is the local delivery destination hash.
	Source address.Hash

	Content []byte
	Title   string
	Fields  map[string]interface{}

	Method               Method
	TryPropagationOnFail bool

	CreatedAt time.Time

	mux      sync.Mutex
	state    MessageState
	attempts uint
}

// State returns the current delivery state.
func (m *Message) State() MessageState {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.state
}

// Attempts returns how many direct delivery attempts have been made.
func (m *Message) Attempts() uint {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.attempts
}

// advance moves the message to the given state. It returns false without
// modifying anything when the current state is terminal or the transition
// would move backward, so terminal outcomes are recorded exactly once.
func (m *Message) advance(to MessageState) bool {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.state.Terminal() || to <= m.state {
		return false
	}

	m.state = to
	return true
}

// recordAttempt bumps the direct attempt counter.
func (m *Message) recordAttempt() uint {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.attempts++
	return m.attempts
}
