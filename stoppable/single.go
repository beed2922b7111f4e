////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Single controls one goroutine through a quit channel. It adheres to the
// Stoppable interface.
type Single struct {
	name   string
	quit   chan struct{}
	status Status
	once   sync.Once
}

// NewSingle returns a new Single in the Running state.
func NewSingle(name string) *Single {
	return &Single{
		name:   name,
		quit:   make(chan struct{}, 1),
		status: Running,
	}
}

// Name returns the name given at construction.
func (s *Single) Name() string {
	return s.name
}

// Quit returns the channel the controlled goroutine must select on. A
// single token is sent when Close is called; the goroutine acknowledges it
// by calling ToStopped.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

// GetStatus returns the current status of the Single.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32((*uint32)(&s.status)))
}

// IsRunning returns true if the Single is marked as running.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// IsStopping returns true if the Single is marked as stopping.
func (s *Single) IsStopping() bool {
	return s.GetStatus() == Stopping
}

// IsStopped returns true if the Single is marked as stopped.
func (s *Single) IsStopped() bool {
	return s.GetStatus() == Stopped
}

// toStopping moves the status from Running to Stopping. An error is
// returned if the Single was not running.
func (s *Single) toStopping() error {
	if !atomic.CompareAndSwapUint32(
		(*uint32)(&s.status), uint32(Running), uint32(Stopping)) {
		return errors.Errorf("failed to stop single stoppable %q: status is "+
			"%s, not %s", s.name, s.GetStatus(), Running)
	}

	jww.DEBUG.Printf("Single stoppable %q moved from %s to %s.",
		s.name, Running, Stopping)

	return nil
}

// ToStopped moves the status from Stopping to Stopped. The controlled
// goroutine calls it exactly once after draining; any other transition is a
// programmer error and panics.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		(*uint32)(&s.status), uint32(Stopping), uint32(Stopped)) {
		jww.FATAL.Panicf("Failed to mark single stoppable %q stopped: status "+
			"is %s, not %s.", s.name, s.GetStatus(), Stopping)
	}

	jww.DEBUG.Printf("Single stoppable %q moved from %s to %s.",
		s.name, Stopping, Stopped)
}

// Close signals the controlled goroutine to quit. It returns immediately
// and does not wait for acknowledgement; use WaitForStopped for that. Only
// the first call sends on the quit channel.
func (s *Single) Close() error {
	var err error

	s.once.Do(func() {
		err = s.toStopping()
		if err != nil {
			return
		}

		s.quit <- struct{}{}
	})

	if err != nil {
		jww.ERROR.Print(err.Error())
	}

	return err
}
