////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/weftnet/client/stoppable"
)

// PipelineID uniquely identifies a pipeline for the process lifetime.
type PipelineID uuid.UUID

// String adheres to the fmt.Stringer interface.
func (id PipelineID) String() string {
	return uuid.UUID(id).String()
}

// PipelineState tracks a pipeline through its lifecycle.
type PipelineState uint8

const (
	// Created - built and registered but never started.
	Created PipelineState = iota

	// Running - the pump is moving frames.
	Running

	// Stopped - the pump has quiesced; the pipeline can start again.
	Stopped
)

// String adheres to the fmt.Stringer interface.
func (ps PipelineState) String() string {
	switch ps {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown state %d", ps)
	}
}

// Stats is a live view of one pipeline.
type Stats struct {
	// Latency is a smoothed capture-to-sink estimate.
	Latency time.Duration

	// Bitrate is payload bits per second over the stats window.
	Bitrate float64

	// Active reports whether frames are moving.
	Active bool
}

// latencySmoothing weights the previous latency estimate when a new frame
// folds in.
const latencySmoothing = 0.9

// quiesceTimeout bounds how long a stop waits for the pump to acknowledge.
const quiesceTimeout = 5 * time.Second

// Pipeline moves frames from one source to one sink on a fixed clock. It
// is owned by the manager registry; all lifecycle calls go through the
// manager.
type Pipeline struct {
	id     PipelineID
	source Source
	sink   Sink
	params Params

	mux   sync.Mutex
	state PipelineState
	stop  *stoppable.Single

	statsMux    sync.Mutex
	latency     time.Duration
	bitrate     float64
	active      bool
	windowStart time.Time
	windowBytes int
}

func newPipeline(source Source, sink Sink, params Params) (*Pipeline, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithMessage(err, "pipeline ID")
	}

	return &Pipeline{
		id:     PipelineID(id),
		source: source,
		sink:   sink,
		params: params,
	}, nil
}

// ID returns the registry key of the pipeline.
func (p *Pipeline) ID() PipelineID {
	return p.id
}

// State returns the current lifecycle state.
func (p *Pipeline) State() PipelineState {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.state
}

// start launches the pump. Starting a running pipeline is a no-op.
func (p *Pipeline) start() error {
	p.mux.Lock()
	defer p.mux.Unlock()

	if p.state == Running {
		jww.DEBUG.Printf("Pipeline %s is already running", p.id)
		return nil
	}

	stop := stoppable.NewSingle("pipeline " + p.id.String())
	p.stop = stop
	p.state = Running
	p.setActive(true)

	go p.pump(stop)

	jww.INFO.Printf("Pipeline %s started", p.id)
	return nil
}

// halt stops the pump and waits for it to quiesce, so no frame moves after
// halt returns. Halting a pipeline that is not running is a no-op success.
func (p *Pipeline) halt() error {
	p.mux.Lock()
	if p.state != Running {
		p.mux.Unlock()
		return nil
	}
	stop := p.stop
	p.state = Stopped
	p.mux.Unlock()

	if err := stop.Close(); err != nil {
		jww.WARN.Printf("Failed to signal pipeline %s pump: %+v", p.id, err)
	}
	if err := stoppable.WaitForStopped(stop, quiesceTimeout); err != nil {
		return errors.WithMessagef(err,
			"pipeline %s pump did not quiesce", p.id)
	}

	p.setActive(false)
	jww.INFO.Printf("Pipeline %s stopped", p.id)
	return nil
}

// pump moves one frame per clock period until stopped. A drained or broken
// source leaves the pipeline running but inactive.
func (p *Pipeline) pump(stop *stoppable.Single) {
	tick := time.NewTicker(p.params.FrameDuration)
	defer tick.Stop()

	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Printf("Stopping pipeline %s pump: stoppable "+
				"triggered", p.id)
			stop.ToStopped()
			return

		case <-tick.C:
			frame, err := p.source.ReadFrame()
			switch {
			case err == nil:

			case errors.Is(err, errNoFrame):
				continue

			case errors.Is(err, io.EOF):
				if p.isActive() {
					jww.INFO.Printf("Pipeline %s source drained", p.id)
					p.setActive(false)
				}
				continue

			default:
				jww.WARN.Printf("Pipeline %s read failed: %+v", p.id, err)
				p.setActive(false)
				continue
			}

			if err = p.sink.WriteFrame(frame); err != nil {
				jww.WARN.Printf("Pipeline %s write failed: %+v", p.id, err)
				p.setActive(false)
				continue
			}

			p.noteFrame(frame)
		}
	}
}

// noteFrame folds one moved frame into the stats.
func (p *Pipeline) noteFrame(f Frame) {
	p.statsMux.Lock()
	defer p.statsMux.Unlock()

	p.active = true

	if !f.CapturedAt.IsZero() {
		sample := netTime.Now().Sub(f.CapturedAt)
		if sample < 0 {
			sample = 0
		}
		if p.latency == 0 {
			p.latency = sample
		} else {
			p.latency = time.Duration(
				latencySmoothing*float64(p.latency) +
					(1-latencySmoothing)*float64(sample))
		}
	}

	now := netTime.Now()
	if p.windowStart.IsZero() {
		p.windowStart = now
	}
	p.windowBytes += len(f.Payload)
	if elapsed := now.Sub(p.windowStart); elapsed >= p.params.StatsWindow {
		p.bitrate = float64(p.windowBytes*8) / elapsed.Seconds()
		p.windowStart = now
		p.windowBytes = 0
	}
}

func (p *Pipeline) stats() Stats {
	p.statsMux.Lock()
	defer p.statsMux.Unlock()
	return Stats{Latency: p.latency, Bitrate: p.bitrate, Active: p.active}
}

func (p *Pipeline) isActive() bool {
	p.statsMux.Lock()
	defer p.statsMux.Unlock()
	return p.active
}

func (p *Pipeline) setActive(active bool) {
	p.statsMux.Lock()
	p.active = active
	p.statsMux.Unlock()
}
