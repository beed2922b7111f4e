////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/storage/versioned"
)

const (
	historyKey     = "messageHistory"
	historyVersion = 0
)

// InboundRecord is the consumer-facing projection of a message. For
// received messages Sender is the sender's identity hash; for local echoes
// (SentBySelf) it is the recipient's, so conversations group on the peer
// either way.
type InboundRecord struct {
	MessageID  uuid.UUID
	Sender     address.Hash
	SenderName string
	Title      string
	Content    string
	SentBySelf bool
	ReceivedAt time.Time
}

// loadHistory restores the persisted record list. A missing history is a
// fresh start; a corrupt one is logged and discarded.
func (m *Manager) loadHistory() []InboundRecord {
	obj, err := m.kv.Get(historyKey, historyVersion)
	if err != nil {
		if m.kv.Exists(err) {
			jww.WARN.Printf("[MSG] Failed to load message history: %+v", err)
		}
		return nil
	}

	var records []InboundRecord
	if err = json.Unmarshal(obj.Data, &records); err != nil {
		jww.WARN.Printf("[MSG] Discarding corrupt message history: %+v", err)
		return nil
	}

	jww.INFO.Printf("[MSG] Loaded %d historical message(s)", len(records))
	return records
}

// saveHistory persists the record list. Called only from the dispatcher
// goroutine.
func (m *Manager) saveHistory(records []InboundRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		jww.ERROR.Printf("[MSG] Failed to marshal message history: %+v", err)
		return
	}

	err = m.kv.Set(historyKey, &versioned.Object{
		Version:   historyVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	})
	if err != nil {
		jww.ERROR.Printf("[MSG] Failed to persist message history: %+v", err)
	}
}
