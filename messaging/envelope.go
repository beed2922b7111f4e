////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"gitlab.com/weftnet/client/address"
)

// envelopeDisk is the wire form of a message payload. Field names are part
// of the wire format; renaming one breaks delivery between versions.
type envelopeDisk struct {
	ID      []byte                 `msgpack:"id"`
	Sender  []byte                 `msgpack:"sender"`
	SentAt  int64                  `msgpack:"sentAt"`
	Title   []byte                 `msgpack:"title"`
	Content []byte                 `msgpack:"content"`
	Fields  map[string]interface{} `msgpack:"fields,omitempty"`
}

// envelope is the unpacked, validated form of an inbound payload.
type envelope struct {
	id      uuid.UUID
	sender  address.Hash
	sentAt  time.Time
	title   []byte
	content []byte
	fields  map[string]interface{}
}

// packEnvelope serializes a message for the wire. The sender is the local
// identity hash so receivers can resolve it against their announce
// directory.
func packEnvelope(m *Message, sender address.Hash) ([]byte, error) {
	payload, err := msgpack.Marshal(&envelopeDisk{
		ID:      m.ID[:],
		Sender:  sender.Bytes(),
		SentAt:  m.CreatedAt.UnixNano(),
		Title:   []byte(m.Title),
		Content: m.Content,
		Fields:  m.Fields,
	})
	if err != nil {
		return nil, errors.WithMessagef(err,
			"failed to pack message %s", m.ID)
	}
	return payload, nil
}

// unpackEnvelope parses and validates a wire payload.
func unpackEnvelope(data []byte) (*envelope, error) {
	disk := envelopeDisk{}
	if err := msgpack.Unmarshal(data, &disk); err != nil {
		return nil, errors.WithMessage(err, "malformed envelope")
	}

	id, err := uuid.FromBytes(disk.ID)
	if err != nil {
		return nil, errors.WithMessagef(err,
			"envelope carries a malformed message ID (%d bytes)",
			len(disk.ID))
	}

	sender, err := address.Unmarshal(disk.Sender)
	if err != nil {
		return nil, errors.WithMessage(err,
			"envelope carries a malformed sender")
	}

	return &envelope{
		id:      id,
		sender:  sender,
		sentAt:  time.Unix(0, disk.SentAt),
		title:   disk.Title,
		content: disk.Content,
		fields:  disk.Fields,
	}, nil
}
