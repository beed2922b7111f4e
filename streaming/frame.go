////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"gitlab.com/weftnet/client/address"
)

// Frame is one clocked unit of media moving through a pipeline.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Payload    []byte
}

// frameDisk is the wire form of a frame on the streaming aspect. Field
// names are part of the wire format.
type frameDisk struct {
	Sender     []byte `msgpack:"sender"`
	Seq        uint64 `msgpack:"seq"`
	CapturedAt int64  `msgpack:"capturedAt"`
	Payload    []byte `msgpack:"payload"`
}

// packFrame serializes a frame for the wire, stamped with the sending
// identity so the receiver can route it to the right remote source.
func packFrame(sender address.Hash, f Frame) ([]byte, error) {
	data, err := msgpack.Marshal(&frameDisk{
		Sender:     sender.Bytes(),
		Seq:        f.Seq,
		CapturedAt: f.CapturedAt.UnixNano(),
		Payload:    f.Payload,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to pack frame %d", f.Seq)
	}
	return data, nil
}

// unpackFrame parses a wire payload into the sender and the frame.
func unpackFrame(data []byte) (address.Hash, Frame, error) {
	disk := frameDisk{}
	if err := msgpack.Unmarshal(data, &disk); err != nil {
		return address.Hash{}, Frame{},
			errors.WithMessage(err, "malformed frame")
	}

	sender, err := address.Unmarshal(disk.Sender)
	if err != nil {
		return address.Hash{}, Frame{},
			errors.WithMessage(err, "frame carries a malformed sender")
	}

	return sender, Frame{
		Seq:        disk.Seq,
		CapturedAt: time.Unix(0, disk.CapturedAt),
		Payload:    disk.Payload,
	}, nil
}
