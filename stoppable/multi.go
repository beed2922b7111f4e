////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// closeMultiErr is returned by Multi.Close when children fail to close. It
// takes the Multi name, the failure count, and the child count.
const closeMultiErr = "multi stoppable %q failed to close %d/%d children"

// Multi aggregates a tree of stoppables so that whole subsystems stop as
// one. It adheres to the Stoppable interface.
type Multi struct {
	name       string
	stoppables []Stoppable
	mux        sync.RWMutex
	once       sync.Once
}

// NewMulti returns a new Multi with no children.
func NewMulti(name string) *Multi {
	return &Multi{name: name}
}

// Add appends the Stoppable to the list of children.
func (m *Multi) Add(s Stoppable) {
	m.mux.Lock()
	m.stoppables = append(m.stoppables, s)
	m.mux.Unlock()
}

// Name returns the name of the Multi followed by the names of all its
// children in braces.
func (m *Multi) Name() string {
	m.mux.RLock()
	names := make([]string, 0, len(m.stoppables))
	for _, s := range m.stoppables {
		names = append(names, s.Name())
	}
	m.mux.RUnlock()

	return m.name + "{" + strings.Join(names, ", ") + "}"
}

// GetStatus returns the lowest status of all children. A Multi with no
// children is Stopped.
func (m *Multi) GetStatus() Status {
	lowest := Stopped

	m.mux.RLock()
	for _, s := range m.stoppables {
		if status := s.GetStatus(); status < lowest {
			lowest = status
		}
	}
	m.mux.RUnlock()

	return lowest
}

// IsRunning returns true if the Multi is marked as running.
func (m *Multi) IsRunning() bool {
	return m.GetStatus() == Running
}

// IsStopping returns true if the Multi is marked as stopping.
func (m *Multi) IsStopping() bool {
	return m.GetStatus() == Stopping
}

// IsStopped returns true if the Multi is marked as stopped.
func (m *Multi) IsStopped() bool {
	return m.GetStatus() == Stopped
}

// Close concurrently closes all children and reports how many failed. Only
// the first call closes; subsequent calls return nil.
func (m *Multi) Close() error {
	var err error

	m.once.Do(func() {
		var failed uint32
		var wg sync.WaitGroup

		m.mux.RLock()
		children := make([]Stoppable, len(m.stoppables))
		copy(children, m.stoppables)
		m.mux.RUnlock()

		for _, s := range children {
			wg.Add(1)
			go func(s Stoppable) {
				defer wg.Done()
				if closeErr := s.Close(); closeErr != nil {
					jww.ERROR.Printf("Failed to close stoppable %q in %q: %+v",
						s.Name(), m.name, closeErr)
					atomic.AddUint32(&failed, 1)
				}
			}(s)
		}

		wg.Wait()

		if failed > 0 {
			err = errors.Errorf(closeMultiErr, m.name, failed, len(children))
		}
	})

	if err != nil {
		jww.ERROR.Print(err.Error())
	}

	return err
}
