////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/weftnet/client/address"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// mixParams sizes mixer frames at two samples so expected buffers stay
// small.
func mixParams() Params {
	p := newTestParams()
	p.FrameDuration = 125 * time.Microsecond
	return p
}

// Tests that two sources mix by sample-wise addition.
func TestMixer_MixesSources(t *testing.T) {
	m, _, _ := newTestManager(t)
	mix := m.CreateMixer(mixParams())

	mix.AddSource(&localSource{device: newScriptDevice(pcm16(1000, -2000))})
	mix.AddSource(&localSource{device: newScriptDevice(pcm16(500, 1000))})

	frame, err := mix.ReadFrame()
	if err != nil {
		t.Fatalf("Failed to read mixed frame: %+v", err)
	}

	expected := pcm16(1500, -1000)
	if !bytes.Equal(frame.Payload, expected) {
		t.Errorf("Unexpected mix.\nexpected: %v\nreceived: %v",
			expected, frame.Payload)
	}
	if frame.Seq != 1 {
		t.Errorf("Unexpected sequence.\nexpected: %d\nreceived: %d",
			1, frame.Seq)
	}
}

// Tests that the mix clamps at the 16-bit rails instead of wrapping.
func TestMixer_Saturates(t *testing.T) {
	m, _, _ := newTestManager(t)
	mix := m.CreateMixer(mixParams())

	mix.AddSource(&localSource{device: newScriptDevice(pcm16(30000, -30000))})
	mix.AddSource(&localSource{device: newScriptDevice(pcm16(30000, -30000))})

	frame, err := mix.ReadFrame()
	if err != nil {
		t.Fatalf("Failed to read mixed frame: %+v", err)
	}

	expected := pcm16(32767, -32768)
	if !bytes.Equal(frame.Payload, expected) {
		t.Errorf("Unexpected mix.\nexpected: %v\nreceived: %v",
			expected, frame.Payload)
	}
}

// Tests that sources with nothing ready are skipped, and a round where no
// source produces reports errNoFrame.
func TestMixer_SkipsEmptySources(t *testing.T) {
	m, _, _ := newTestManager(t)
	mix := m.CreateMixer(mixParams())

	mix.AddSource(&localSource{device: newScriptDevice(pcm16(123, 456))})
	mix.AddSource(newRemoteSource(address.Hash{}, 4, nil))

	frame, err := mix.ReadFrame()
	if err != nil {
		t.Fatalf("Failed to read mixed frame: %+v", err)
	}
	if !bytes.Equal(frame.Payload, pcm16(123, 456)) {
		t.Errorf("Unexpected mix.\nexpected: %v\nreceived: %v",
			pcm16(123, 456), frame.Payload)
	}

	if _, err = mix.ReadFrame(); !errors.Is(err, errNoFrame) {
		t.Errorf("Unexpected error with nothing ready."+
			"\nexpected: %v\nreceived: %v", errNoFrame, err)
	}
}

// Tests that short frames pad with silence to one frame period and longer
// frames pass through whole.
func TestMixer_FrameLengths(t *testing.T) {
	m, _, _ := newTestManager(t)

	mix := m.CreateMixer(mixParams())
	mix.AddSource(&localSource{device: newScriptDevice(pcm16(700))})
	mix.AddSource(&localSource{device: newScriptDevice(pcm16(100, 200, 300))})

	frame, err := mix.ReadFrame()
	if err != nil {
		t.Fatalf("Failed to read mixed frame: %+v", err)
	}
	expected := pcm16(800, 200, 300)
	if !bytes.Equal(frame.Payload, expected) {
		t.Errorf("Unexpected uneven mix.\nexpected: %v\nreceived: %v",
			expected, frame.Payload)
	}

	lone := m.CreateMixer(mixParams())
	lone.AddSource(&localSource{device: newScriptDevice(pcm16(900))})

	frame, err = lone.ReadFrame()
	if err != nil {
		t.Fatalf("Failed to read lone frame: %+v", err)
	}
	expected = pcm16(900, 0)
	if !bytes.Equal(frame.Payload, expected) {
		t.Errorf("Unexpected padding.\nexpected: %v\nreceived: %v",
			expected, frame.Payload)
	}
}

// Tests that close closes every source in the mix and further reads report
// end of stream.
func TestMixer_Close(t *testing.T) {
	m, _, _ := newTestManager(t)
	mix := m.CreateMixer(mixParams())

	inner := &localSource{device: silenceDevice{size: 4}}
	mix.AddSource(inner)

	if err := mix.Close(); err != nil {
		t.Fatalf("Failed to close mixer: %+v", err)
	}
	if _, err := mix.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("Unexpected error after close."+
			"\nexpected: %v\nreceived: %v", io.EOF, err)
	}
	if _, err := inner.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("Inner source survived the mixer close; received: %v", err)
	}
	if err := mix.Close(); err != nil {
		t.Errorf("Second close errored: %+v", err)
	}
}

// Tests a mixer feeding a pipeline end to end.
func TestMixer_InPipeline(t *testing.T) {
	m, _, _ := newTestManager(t)

	mix := m.CreateMixer(mixParams())
	mix.AddSource(&localSource{device: newScriptDevice(pcm16(10, 20))})
	mix.AddSource(&localSource{device: newScriptDevice(pcm16(1, 2))})

	collect := &collectDevice{}
	sink, err := m.CreateSink(SinkLocal, SinkParams{Device: collect})
	if err != nil {
		t.Fatalf("Failed to create sink: %+v", err)
	}

	id, err := m.CreatePipeline(mix, sink, newTestParams())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %+v", err)
	}
	if err = m.StartPipeline(id); err != nil {
		t.Fatalf("Failed to start: %+v", err)
	}

	if !pollUntil(2*time.Second, func() bool { return collect.count() >= 1 }) {
		t.Fatal("Mixed frame never arrived")
	}
	if !bytes.Equal(collect.frame(0), pcm16(11, 22)) {
		t.Errorf("Unexpected mixed frame.\nexpected: %v\nreceived: %v",
			pcm16(11, 22), collect.frame(0))
	}

	if err = m.ClosePipeline(id); err != nil {
		t.Errorf("Failed to close: %+v", err)
	}
}
