////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"io"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
)

// Mixer sums several sources into one stream of frames. It implements
// Source, so it can feed a pipeline like any single source, but it is
// never registered in the pipeline registry itself; it lives and dies
// with the pipeline that consumes it.
type Mixer struct {
	mux        sync.Mutex
	sources    []Source
	frameBytes int
	seq        uint64
	closed     bool
}

func newMixer(params Params) *Mixer {
	return &Mixer{frameBytes: pcmFrameBytes(params.FrameDuration)}
}

// AddSource adds a source to the mix. Frames read from the mixer after
// this call include the new source's samples.
func (mx *Mixer) AddSource(source Source) {
	mx.mux.Lock()
	defer mx.mux.Unlock()
	mx.sources = append(mx.sources, source)
}

// ReadFrame polls every source once and returns the saturating sum of the
// frames that arrived, as 16-bit little-endian PCM padded with silence to
// one full frame period. Sources with no frame ready this period are
// skipped; if none produced a frame, errNoFrame is returned and the caller
// tries again next period.
func (mx *Mixer) ReadFrame() (Frame, error) {
	mx.mux.Lock()
	defer mx.mux.Unlock()

	if mx.closed {
		return Frame{}, io.EOF
	}

	var mixed []byte
	var got bool
	for _, source := range mx.sources {
		frame, err := source.ReadFrame()
		if err != nil {
			// Drained or empty sources stay in the mix; they may
			// produce again later.
			continue
		}
		got = true
		mixed = mixFrames(mixed, frame.Payload)
	}

	if !got {
		return Frame{}, errNoFrame
	}

	if len(mixed) < mx.frameBytes {
		padded := make([]byte, mx.frameBytes)
		copy(padded, mixed)
		mixed = padded
	}

	mx.seq++
	return Frame{
		Seq:        mx.seq,
		CapturedAt: netTime.Now(),
		Payload:    mixed,
	}, nil
}

// Close closes every source in the mix.
func (mx *Mixer) Close() error {
	mx.mux.Lock()
	defer mx.mux.Unlock()

	if mx.closed {
		return nil
	}
	mx.closed = true

	for _, source := range mx.sources {
		if err := source.Close(); err != nil {
			jww.WARN.Printf("Failed to close mixed source: %+v", err)
		}
	}
	mx.sources = nil
	return nil
}

// mixFrames adds b into a sample by sample with saturation, returning a
// buffer as long as the longer input. Odd trailing bytes pass through
// unmixed.
func mixFrames(a, b []byte) []byte {
	if len(a) == 0 {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}

	out := a
	if len(b) > len(a) {
		out = make([]byte, len(b))
		copy(out, a)
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i+1 < n; i += 2 {
		sa := int16(uint16(out[i]) | uint16(out[i+1])<<8)
		sb := int16(uint16(b[i]) | uint16(b[i+1])<<8)
		sum := int32(sa) + int32(sb)
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		out[i] = byte(uint16(sum))
		out[i+1] = byte(uint16(sum) >> 8)
	}
	if len(b) > len(a) {
		copy(out[len(a):], b[len(a):])
	}
	return out
}
