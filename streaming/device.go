////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import "time"

// defaultFrameBytes is one frame period of 16 kHz mono 16-bit samples.
const defaultFrameBytes = 640

// pcmFrameBytes is the payload length of one frame period of 16 kHz mono
// 16-bit samples.
func pcmFrameBytes(period time.Duration) int {
	samples := 16000 * int64(period) / int64(time.Second)
	if samples <= 0 {
		return defaultFrameBytes
	}
	return int(samples) * 2
}

// CaptureDevice produces one frame period of raw audio per call. Codec and
// hardware I/O live behind this boundary; the default implementation
// captures silence.
type CaptureDevice interface {
	Capture() ([]byte, error)
}

// PlaybackDevice consumes raw audio. The default implementation discards
// it.
type PlaybackDevice interface {
	Play([]byte) error
}

// silenceDevice fills every frame with zeroed samples.
type silenceDevice struct {
	size int
}

func (s silenceDevice) Capture() ([]byte, error) {
	return make([]byte, s.size), nil
}

// discardDevice drops playback on the floor.
type discardDevice struct{}

func (discardDevice) Play([]byte) error { return nil }
