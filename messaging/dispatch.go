////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/mesh"
	"gitlab.com/weftnet/client/stoppable"
)

// deliveryHandler receives substrate deliveries for the delivery aspect.
// Deliver runs on the substrate's network goroutine, so it only unpacks,
// dedups, projects, and hands off. Everything heavier happens on the
// dispatcher side of the channel.
type deliveryHandler struct {
	m *Manager
}

func (h deliveryHandler) Name() string { return "messaging" }

func (h deliveryHandler) Deliver(d mesh.Delivery) {
	h.m.handleDelivery(d)
}

func (m *Manager) handleDelivery(d mesh.Delivery) {
	env, err := unpackEnvelope(d.Payload)
	if err != nil {
		jww.WARN.Printf("[MSG] Dropping malformed %d-byte delivery: %+v",
			len(d.Payload), err)
		return
	}

	m.seenMux.Lock()
	if m.seen.Has(env.id) {
		m.seenMux.Unlock()
		jww.DEBUG.Printf("[MSG] Ignoring duplicate delivery of %s", env.id)
		return
	}
	m.seen.Insert(env.id)
	m.seenMux.Unlock()

	rec := InboundRecord{
		MessageID:  env.id,
		Sender:     env.sender,
		SenderName: m.senderName(env.sender),
		Title:      string(env.title),
		Content:    string(env.content),
		ReceivedAt: d.ReceivedAt,
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = netTime.Now()
	}

	select {
	case m.inbound <- rec:
	default:
		jww.WARN.Printf("[MSG] Dispatch queue full; dropping message %s "+
			"from %s", env.id, env.sender.ShortString())
	}
}

// senderName resolves a human-readable name for a peer: the announce
// directory's display name when one is known, a truncated hex rendering of
// the hash otherwise. It never fails.
func (m *Manager) senderName(peer address.Hash) string {
	if name, ok := m.session.DisplayName(peer); ok {
		return name
	}
	return peer.ShortString()
}

// dispatcher owns the record list. It drains the dispatch channel,
// prepends each record, persists history, and notifies the consumer
// callback.
func (m *Manager) dispatcher(stop *stoppable.Single) {
	jww.INFO.Printf("[MSG] Starting delivery dispatcher")

	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Printf(
				"[MSG] Stopping delivery dispatcher: stoppable triggered")
			stop.ToStopped()
			return
		case rec := <-m.inbound:
			m.recordInbound(rec)
		}
	}
}

// recordInbound applies one record. Runs only on the dispatcher goroutine,
// the single writer of the record list.
func (m *Manager) recordInbound(rec InboundRecord) {
	m.recordsMux.Lock()
	records := make([]InboundRecord, 0, len(m.records)+1)
	records = append(records, rec)
	records = append(records, m.records...)
	if len(records) > m.params.HistoryLimit {
		records = records[:m.params.HistoryLimit]
	}
	m.records = records
	m.recordsMux.Unlock()

	m.saveHistory(records)

	m.cbMux.Lock()
	cb := m.callback
	m.cbMux.Unlock()
	if cb != nil {
		cb(rec)
	}

	jww.DEBUG.Printf("[MSG] Recorded message %s from %s",
		rec.MessageID, rec.SenderName)
}
