////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// pollPeriod is how often WaitForStopped rechecks the status.
	pollPeriod = 100 * time.Millisecond

	// timeoutErr is returned by WaitForStopped on expiry.
	timeoutErr = "timed out after %s waiting for the stoppable %q to stop"

	// errKey marks errors produced when a thread exits because its stoppable
	// quit. CheckErr keys off of it.
	errKey = "stoppable"

	// ErrMsg is the error format a worker returns when it exits early
	// because its stoppable is no longer running. It takes the stoppable
	// name followed by the worker name.
	ErrMsg = errKey + " %q is no longer running, exiting %s early"
)

// Stoppable is the interface for stopping a long-running goroutine. Every
// background thread in the client is tracked behind one.
type Stoppable interface {
	Name() string
	GetStatus() Status
	IsRunning() bool
	IsStopping() bool
	IsStopped() bool
	Close() error
}

// WaitForStopped polls the Stoppable until it reports Stopped or the
// timeout expires.
func WaitForStopped(s Stoppable, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if s.IsStopped() {
			return nil
		}

		select {
		case <-deadline.C:
			return errors.Errorf(timeoutErr, timeout, s.Name())
		case <-time.After(pollPeriod):
		}
	}
}

// CheckErr determines if the error came from a thread exiting because its
// stoppable quit rather than from a real failure.
func CheckErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), errKey)
}
