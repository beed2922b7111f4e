////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

func TestMain(m *testing.M) {
	jww.SetStdoutThreshold(jww.LevelFatal)

	os.Exit(m.Run())
}

// Unit test of Status.String.
func TestStatus_String(t *testing.T) {
	testValues := []struct {
		status   Status
		expected string
	}{
		{Running, "running"},
		{Stopping, "stopping"},
		{Stopped, "stopped"},
		{100, "INVALID STATUS: 100"},
	}

	for i, val := range testValues {
		if val.status.String() != val.expected {
			t.Errorf("String did not return the expected value (%d)."+
				"\nexpected: %s\nreceived: %s",
				i, val.expected, val.status.String())
		}
	}
}

// Tests that WaitForStopped returns once the stoppable acknowledges the
// quit signal.
func TestWaitForStopped(t *testing.T) {
	single := NewSingle("testSingle")
	go func() {
		<-single.Quit()
		time.Sleep(50 * time.Millisecond)
		single.ToStopped()
	}()

	if err := single.Close(); err != nil {
		t.Fatalf("Failed to close single stoppable: %+v", err)
	}

	if err := WaitForStopped(single, 2*time.Second); err != nil {
		t.Errorf("WaitForStopped returned an error: %+v", err)
	}
}

// Error path: tests that WaitForStopped errors when the timeout is reached
// before the stoppable stops.
func TestWaitForStopped_TimeoutError(t *testing.T) {
	single := NewSingle("testSingle")

	if err := WaitForStopped(single, 0); err == nil {
		t.Error("WaitForStopped did not error on a running stoppable.")
	}
}

// Tests that CheckErr keys on worker-exit errors and nothing else.
func TestCheckErr(t *testing.T) {
	testValues := []struct {
		err      error
		expected bool
	}{
		{errors.Errorf(ErrMsg, "testStoppable", "testWorker"), true},
		{errors.Errorf(ErrMsg, "", ""), true},
		{errors.New("random error"), false},
		{nil, false},
	}

	for i, val := range testValues {
		if result := CheckErr(val.err); result != val.expected {
			t.Errorf("CheckErr returned the wrong value (%d)."+
				"\nexpected: %t\nreceived: %t", i, val.expected, result)
		}
	}
}
