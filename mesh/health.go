////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Event-driven liveness tracking for the network session, fed by the
// substrate's heartbeat channel.

package mesh

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/weftnet/client/stoppable"
)

// Monitor reports substrate liveness and notifies callbacks on changes.
type Monitor interface {
	AddHealthCallback(f func(bool)) uint64
	RemoveHealthCallback(uint64)
	IsHealthy() bool
	WasHealthy() bool
	StartProcesses() (stoppable.Stoppable, error)
}

type tracker struct {
	timeout   time.Duration
	heartbeat <-chan struct{}

	funcs   map[uint64]func(isHealthy bool)
	funcsID uint64

	running bool

	// isHealthy is the current health status; wasHealthy latches true the
	// first time isHealthy does.
	isHealthy  bool
	wasHealthy bool
	mux        sync.RWMutex
}

// newTracker builds a tracker over the given heartbeat channel. The session
// is considered healthy while heartbeats arrive within the timeout.
func newTracker(heartbeat <-chan struct{}, timeout time.Duration) *tracker {
	return &tracker{
		timeout:   timeout,
		heartbeat: heartbeat,
		funcs:     map[uint64]func(isHealthy bool){},
	}
}

// AddHealthCallback registers a function to run on every health change and
// returns a unique ID for removing it. The callback fires once immediately
// with the current status.
func (t *tracker) AddHealthCallback(f func(isHealthy bool)) uint64 {
	t.mux.Lock()
	id := t.funcsID
	t.funcs[id] = f
	t.funcsID++
	t.mux.Unlock()

	go f(t.IsHealthy())

	return id
}

// RemoveHealthCallback stops the callback with the given ID from running on
// future health changes.
func (t *tracker) RemoveHealthCallback(id uint64) {
	t.mux.Lock()
	delete(t.funcs, id)
	t.mux.Unlock()
}

// IsHealthy returns the current health status.
func (t *tracker) IsHealthy() bool {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.isHealthy
}

// WasHealthy returns true if the session has ever been healthy.
func (t *tracker) WasHealthy() bool {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.wasHealthy
}

func (t *tracker) setHealth(h bool) {
	t.mux.Lock()
	changed := t.isHealthy != h
	t.wasHealthy = t.wasHealthy || h
	t.isHealthy = h
	funcs := make([]func(bool), 0, len(t.funcs))
	for _, f := range t.funcs {
		funcs = append(funcs, f)
	}
	t.mux.Unlock()

	if changed {
		for _, f := range funcs {
			go f(h)
		}
	}
}

// StartProcesses starts the long-running monitor thread. It errors when the
// monitor is already running.
func (t *tracker) StartProcesses() (stoppable.Stoppable, error) {
	t.mux.Lock()
	if t.running {
		t.mux.Unlock()
		return nil, errors.New(
			"cannot start health monitor: it is already running")
	}
	t.running = true
	t.isHealthy = false
	t.mux.Unlock()

	stop := stoppable.NewSingle("healthMonitor")
	go t.start(stop)

	return stop, nil
}

// start monitors the heartbeat channel and flips health on timeout.
func (t *tracker) start(stop *stoppable.Single) {
	for {
		select {
		case <-stop.Quit():
			t.mux.Lock()
			t.running = false
			t.mux.Unlock()

			t.setHealth(false)
			stop.ToStopped()
			return

		case <-t.heartbeat:
			t.setHealth(true)

		case <-time.After(t.timeout):
			if t.IsHealthy() {
				jww.WARN.Printf("No heartbeat for %s; marking the session "+
					"unhealthy.", t.timeout)
			}
			t.setHealth(false)
		}
	}
}
