////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/weftnet/client/address"
)

// SourceKind is the closed set of frame producers.
type SourceKind uint8

const (
	// SourceLocal captures from a local device.
	SourceLocal SourceKind = iota

	// SourceRemote receives frames a peer sends over the streaming aspect.
	SourceRemote

	// SourceFile reads length-prefixed frames from a file.
	SourceFile
)

// String adheres to the fmt.Stringer interface.
func (sk SourceKind) String() string {
	switch sk {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceFile:
		return "file"
	default:
		return fmt.Sprintf("unknown source kind %d", sk)
	}
}

// SourceParams configure a source. Only the fields for the requested kind
// are read.
type SourceParams struct {
	// Device is the capture device for SourceLocal. Nil captures silence.
	Device CaptureDevice

	// Peer is the remote identity for SourceRemote.
	Peer address.Hash

	// Path is the frame file for SourceFile.
	Path string
}

// Source produces frames for a pipeline pump. ReadFrame returns errNoFrame
// when nothing is available this period and io.EOF when the source is
// drained or closed.
type Source interface {
	ReadFrame() (Frame, error)
	Close() error
}

// errNoFrame tells the pump to skip this period without marking the source
// drained.
var errNoFrame = errors.New("no frame available")

// maxFrameLen bounds a file frame so a corrupt length prefix cannot ask
// for gigabytes.
const maxFrameLen = 1 << 16

type localSource struct {
	device CaptureDevice

	mux    sync.Mutex
	seq    uint64
	closed bool
}

func (s *localSource) ReadFrame() (Frame, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.closed {
		return Frame{}, io.EOF
	}

	data, err := s.device.Capture()
	if err != nil {
		return Frame{}, errors.WithMessage(err, "capture device")
	}

	s.seq++
	return Frame{Seq: s.seq, CapturedAt: netTime.Now(), Payload: data}, nil
}

func (s *localSource) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.closed = true
	return nil
}

// remoteSource buffers frames routed in from a peer. push runs on the
// substrate's goroutine and never blocks.
type remoteSource struct {
	peer   address.Hash
	frames chan Frame

	quit      chan struct{}
	closeOnce sync.Once
	detach    func()
}

func newRemoteSource(peer address.Hash, queueSize int,
	detach func()) *remoteSource {
	return &remoteSource{
		peer:   peer,
		frames: make(chan Frame, queueSize),
		quit:   make(chan struct{}),
		detach: detach,
	}
}

func (s *remoteSource) push(f Frame) {
	select {
	case s.frames <- f:
	case <-s.quit:
	default:
		jww.WARN.Printf("Dropping frame %d from %s: buffer full",
			f.Seq, s.peer.ShortString())
	}
}

func (s *remoteSource) ReadFrame() (Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.quit:
		return Frame{}, io.EOF
	default:
		return Frame{}, errNoFrame
	}
}

func (s *remoteSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.detach != nil {
			s.detach()
		}
	})
	return nil
}

// fileSource reads frames stored as a 4-byte big-endian length prefix
// followed by the payload.
type fileSource struct {
	f  *os.File
	br *bufio.Reader

	mux sync.Mutex
	seq uint64
}

func newFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessagef(err,
			"failed to open frame file %q", path)
	}
	return &fileSource{f: f, br: bufio.NewReader(f)}, nil
}

func (s *fileSource) ReadFrame() (Frame, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	var prefix [4]byte
	if _, err := io.ReadFull(s.br, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, errors.WithMessage(err, "frame length prefix")
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > maxFrameLen {
		return Frame{}, errors.Errorf(
			"frame length %d exceeds the %d-byte limit", length, maxFrameLen)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(s.br, payload); err != nil {
		return Frame{}, errors.WithMessage(err, "truncated frame")
	}

	s.seq++
	return Frame{Seq: s.seq, CapturedAt: netTime.Now(), Payload: payload}, nil
}

func (s *fileSource) Close() error {
	return s.f.Close()
}
