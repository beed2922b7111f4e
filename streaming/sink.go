////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"fmt"

	"github.com/pkg/errors"

	"gitlab.com/weftnet/client/address"
)

// SinkKind is the closed set of frame consumers.
type SinkKind uint8

const (
	// SinkLocal plays frames on a local device.
	SinkLocal SinkKind = iota

	// SinkRemote sends frames to a peer over the streaming aspect.
	SinkRemote

	// SinkNull discards frames.
	SinkNull
)

// String adheres to the fmt.Stringer interface.
func (sk SinkKind) String() string {
	switch sk {
	case SinkLocal:
		return "local"
	case SinkRemote:
		return "remote"
	case SinkNull:
		return "null"
	default:
		return fmt.Sprintf("unknown sink kind %d", sk)
	}
}

// SinkParams configure a sink. Only the fields for the requested kind are
// read.
type SinkParams struct {
	// Device is the playback device for SinkLocal. Nil discards.
	Device PlaybackDevice

	// Peer is the remote identity for SinkRemote.
	Peer address.Hash
}

// Sink consumes frames from a pipeline pump.
type Sink interface {
	WriteFrame(Frame) error
	Close() error
}

type localSink struct {
	device PlaybackDevice
}

func (s *localSink) WriteFrame(f Frame) error {
	if err := s.device.Play(f.Payload); err != nil {
		return errors.WithMessage(err, "playback device")
	}
	return nil
}

func (s *localSink) Close() error { return nil }

// remoteSink ships frames to the peer's streaming destination, stamped
// with the local identity for routing on the far side.
type remoteSink struct {
	session Session
	local   address.Hash
	dest    address.Hash
}

func (s *remoteSink) WriteFrame(f Frame) error {
	payload, err := packFrame(s.local, f)
	if err != nil {
		return err
	}
	return s.session.DeliverDirect(s.dest, payload)
}

func (s *remoteSink) Close() error { return nil }

type nullSink struct{}

func (nullSink) WriteFrame(Frame) error { return nil }

func (nullSink) Close() error { return nil }
