////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"gitlab.com/weftnet/client/stoppable"
)

// outboundWorker drains the outbound queue one message at a time. Delivery
// attempts are paced by a rate limiter built from Params.SendsPerSecond.
func (m *Manager) outboundWorker(stop *stoppable.Single) {
	jww.INFO.Printf("[MSG] Starting outbound worker")

	rl := ratelimit.New(m.params.SendsPerSecond, ratelimit.WithoutSlack)

	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Printf(
				"[MSG] Stopping outbound worker: stoppable triggered")
			stop.ToStopped()
			return
		case msg := <-m.outbound:
			if !m.deliver(msg, rl, stop) {
				return
			}
		}
	}
}

// deliver runs the attempt loop for one message: up to MaxDeliveryAttempts
// direct attempts with a path request whenever the destination cannot be
// resolved, then the propagation fallback. It returns false when the
// stoppable fired mid-delivery and the worker must exit.
func (m *Manager) deliver(msg *Message, rl ratelimit.Limiter,
	stop *stoppable.Single) bool {
	if !msg.advance(Sending) {
		jww.WARN.Printf("[MSG] Message %s is %s; refusing to deliver",
			msg.ID, msg.State())
		return true
	}

	payload, err := packEnvelope(msg, m.localHash)
	if err != nil {
		jww.ERROR.Printf("[MSG] %+v", err)
		msg.advance(Failed)
		return true
	}

	if msg.Method == Propagation {
		m.propagate(msg, payload)
		return true
	}

	for attempt := uint(1); attempt <= m.params.MaxDeliveryAttempts; attempt++ {
		rl.Take()

		err = m.session.DeliverDirect(msg.Dest, payload)
		if err == nil {
			msg.advance(Delivered)
			m.noteDelivery()
			jww.INFO.Printf("[MSG] Delivered %s to %s after %d attempt(s)",
				msg.ID, msg.To.ShortString(), attempt)
			return true
		}

		msg.recordAttempt()
		jww.WARN.Printf("[MSG] Delivery attempt %d/%d for %s failed: %+v",
			attempt, m.params.MaxDeliveryAttempts, msg.ID, err)

		if attempt == m.params.MaxDeliveryAttempts {
			break
		}

		// When the destination cannot be resolved, ask the network for a
		// path and give the announce longer to come back.
		wait := m.params.DeliveryRetryWait
		if _, ok := m.session.ResolveIdentity(msg.To); !ok {
			if reqErr := m.session.RequestPath(msg.To); reqErr != nil {
				jww.WARN.Printf("[MSG] Path request for %s failed: %+v",
					msg.To.ShortString(), reqErr)
			}
			wait = m.params.PathRequestWait
		}

		select {
		case <-stop.Quit():
			jww.DEBUG.Printf("[MSG] Stopping outbound worker while "+
				"delivering %s: stoppable triggered", msg.ID)
			stop.ToStopped()
			return false
		case <-time.After(wait):
		}
	}

	if !msg.TryPropagationOnFail {
		msg.advance(Failed)
		jww.ERROR.Printf("[MSG] Message %s failed after %d direct attempts",
			msg.ID, msg.Attempts())
		return true
	}

	jww.INFO.Printf("[MSG] Direct delivery of %s exhausted; falling back "+
		"to propagation", msg.ID)
	m.propagate(msg, payload)
	return true
}

// propagate hands the payload to the propagation network for
// store-and-forward pickup.
func (m *Manager) propagate(msg *Message, payload []byte) {
	if err := m.session.Propagate(msg.Dest, payload); err != nil {
		jww.ERROR.Printf("[MSG] Propagation of %s failed: %+v", msg.ID, err)
		msg.advance(Failed)
		return
	}

	msg.advance(Propagated)
	m.noteDelivery()
	jww.INFO.Printf("[MSG] Handed %s to the propagation network for %s",
		msg.ID, msg.To.ShortString())
}
