////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/weftnet/client/catalog"
	"gitlab.com/weftnet/client/mesh"
)

// Tests the pipeline lifecycle: created stopped, active while running,
// inactive after stop, and gone after close.
func TestManager_PipelineLifecycle(t *testing.T) {
	m, _, _ := newTestManager(t)

	src, err := m.CreateSource(SourceLocal, SourceParams{})
	if err != nil {
		t.Fatalf("Failed to create source: %+v", err)
	}
	sink, err := m.CreateSink(SinkNull, SinkParams{})
	if err != nil {
		t.Fatalf("Failed to create sink: %+v", err)
	}

	id, err := m.CreatePipeline(src, sink, newTestParams())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %+v", err)
	}

	stats, err := m.PipelineStats(id)
	if err != nil {
		t.Fatalf("Failed to read stats: %+v", err)
	}
	if stats.Active {
		t.Error("Pipeline active before start")
	}

	if err = m.StartPipeline(id); err != nil {
		t.Fatalf("Failed to start: %+v", err)
	}
	if stats, err = m.PipelineStats(id); err != nil {
		t.Fatalf("Failed to read stats: %+v", err)
	}
	if !stats.Active {
		t.Error("Pipeline inactive after start")
	}

	// The silence source produces continuously, so the bitrate shows up
	// once the stats window turns over.
	if !pollUntil(2*time.Second, func() bool {
		stats, _ = m.PipelineStats(id)
		return stats.Bitrate > 0
	}) {
		t.Error("Bitrate never rose above zero")
	}

	if err = m.StopPipeline(id); err != nil {
		t.Fatalf("Failed to stop: %+v", err)
	}
	if stats, err = m.PipelineStats(id); err != nil {
		t.Fatalf("Failed to read stats: %+v", err)
	}
	if stats.Active {
		t.Error("Pipeline active after stop")
	}

	if err = m.StopPipeline(id); err != nil {
		t.Errorf("Second stop errored: %+v", err)
	}

	if err = m.ClosePipeline(id); err != nil {
		t.Fatalf("Failed to close: %+v", err)
	}
	if _, err = m.PipelineStats(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unexpected stats error after close."+
			"\nexpected: %v\nreceived: %v", ErrNotFound, err)
	}
	if err = m.ClosePipeline(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unexpected second close error."+
			"\nexpected: %v\nreceived: %v", ErrNotFound, err)
	}
	if err = m.StartPipeline(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unexpected start error after close."+
			"\nexpected: %v\nreceived: %v", ErrNotFound, err)
	}
}

// Tests that frames move from the capture device to the playback device in
// order and the pipeline goes inactive once the source drains.
func TestManager_Pipeline_MovesFrames(t *testing.T) {
	m, _, _ := newTestManager(t)

	capture := newScriptDevice([]byte{1, 1}, []byte{2, 2}, []byte{3, 3})
	collect := &collectDevice{}

	src, err := m.CreateSource(SourceLocal, SourceParams{Device: capture})
	if err != nil {
		t.Fatalf("Failed to create source: %+v", err)
	}
	sink, err := m.CreateSink(SinkLocal, SinkParams{Device: collect})
	if err != nil {
		t.Fatalf("Failed to create sink: %+v", err)
	}

	id, err := m.CreatePipeline(src, sink, newTestParams())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %+v", err)
	}
	if err = m.StartPipeline(id); err != nil {
		t.Fatalf("Failed to start: %+v", err)
	}

	if !pollUntil(2*time.Second, func() bool { return collect.count() == 3 }) {
		t.Fatalf("Frames never arrived.\nexpected: %d\nreceived: %d",
			3, collect.count())
	}
	for i, expected := range [][]byte{{1, 1}, {2, 2}, {3, 3}} {
		if !bytes.Equal(collect.frame(i), expected) {
			t.Errorf("Unexpected frame %d.\nexpected: %v\nreceived: %v",
				i, expected, collect.frame(i))
		}
	}

	// The drained source leaves the pipeline registered but inactive.
	if !pollUntil(2*time.Second, func() bool {
		stats, _ := m.PipelineStats(id)
		return !stats.Active
	}) {
		t.Error("Pipeline never went inactive after the source drained")
	}

	if err = m.ClosePipeline(id); err != nil {
		t.Errorf("Failed to close: %+v", err)
	}
}

// Tests that a remote sink ships frames to the peer's streaming
// destination stamped with the local identity.
func TestManager_Pipeline_RemoteSink(t *testing.T) {
	m, session, local := newTestManager(t)
	peer := newTestIdentity(t, 7)

	capture := newScriptDevice([]byte("one"), []byte("two"))
	src, err := m.CreateSource(SourceLocal, SourceParams{Device: capture})
	if err != nil {
		t.Fatalf("Failed to create source: %+v", err)
	}
	sink, err := m.CreateSink(SinkRemote, SinkParams{Peer: peer.Hash()})
	if err != nil {
		t.Fatalf("Failed to create sink: %+v", err)
	}

	id, err := m.CreatePipeline(src, sink, newTestParams())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %+v", err)
	}
	if err = m.StartPipeline(id); err != nil {
		t.Fatalf("Failed to start: %+v", err)
	}

	if !pollUntil(2*time.Second, func() bool {
		return session.deliveredCount() == 2
	}) {
		t.Fatalf("Frames never shipped.\nexpected: %d\nreceived: %d",
			2, session.deliveredCount())
	}

	expected := mesh.DeriveHash(peer.Hash(), catalog.Streaming)
	last := session.lastDelivered()
	if !last.target.Equal(expected) {
		t.Errorf("Unexpected target.\nexpected: %s\nreceived: %s",
			expected, last.target)
	}

	sender, frame, err := unpackFrame(last.payload)
	if err != nil {
		t.Fatalf("Failed to unpack shipped frame: %+v", err)
	}
	if !sender.Equal(local.Hash()) {
		t.Errorf("Unexpected sender stamp.\nexpected: %s\nreceived: %s",
			local.Hash(), sender)
	}
	if string(frame.Payload) != "two" {
		t.Errorf("Unexpected payload.\nexpected: %q\nreceived: %q",
			"two", frame.Payload)
	}

	if err = m.ClosePipeline(id); err != nil {
		t.Errorf("Failed to close: %+v", err)
	}
}

// Tests that a stopped pipeline can start again.
func TestManager_Pipeline_Restart(t *testing.T) {
	m, _, _ := newTestManager(t)

	src, err := m.CreateSource(SourceLocal, SourceParams{})
	if err != nil {
		t.Fatalf("Failed to create source: %+v", err)
	}
	sink, err := m.CreateSink(SinkNull, SinkParams{})
	if err != nil {
		t.Fatalf("Failed to create sink: %+v", err)
	}
	id, err := m.CreatePipeline(src, sink, newTestParams())
	if err != nil {
		t.Fatalf("Failed to create pipeline: %+v", err)
	}

	for round := 0; round < 2; round++ {
		if err = m.StartPipeline(id); err != nil {
			t.Fatalf("Failed to start on round %d: %+v", round, err)
		}
		stats, err := m.PipelineStats(id)
		if err != nil {
			t.Fatalf("Failed to read stats on round %d: %+v", round, err)
		}
		if !stats.Active {
			t.Errorf("Pipeline inactive after start on round %d", round)
		}
		if err = m.StopPipeline(id); err != nil {
			t.Fatalf("Failed to stop on round %d: %+v", round, err)
		}
	}

	if err = m.ClosePipeline(id); err != nil {
		t.Errorf("Failed to close: %+v", err)
	}
}

// Tests that ListActive filters to the pipelines currently moving frames.
func TestManager_ListActive(t *testing.T) {
	m, _, _ := newTestManager(t)

	mkPipeline := func() PipelineID {
		src, err := m.CreateSource(SourceLocal, SourceParams{})
		if err != nil {
			t.Fatalf("Failed to create source: %+v", err)
		}
		sink, err := m.CreateSink(SinkNull, SinkParams{})
		if err != nil {
			t.Fatalf("Failed to create sink: %+v", err)
		}
		id, err := m.CreatePipeline(src, sink, newTestParams())
		if err != nil {
			t.Fatalf("Failed to create pipeline: %+v", err)
		}
		return id
	}

	running := mkPipeline()
	mkPipeline()

	if err := m.StartPipeline(running); err != nil {
		t.Fatalf("Failed to start: %+v", err)
	}

	active := m.ListActive()
	if len(active) != 1 || active[0] != running {
		t.Errorf("Unexpected active set.\nexpected: %v\nreceived: %v",
			[]PipelineID{running}, active)
	}

	if err := m.StopPipeline(running); err != nil {
		t.Fatalf("Failed to stop: %+v", err)
	}
	if active = m.ListActive(); len(active) != 0 {
		t.Errorf("Active set not empty after stop: %v", active)
	}
}
