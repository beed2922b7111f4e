////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mesh

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/xx_network/primitives/netTime"
)

func testParams() Params {
	p := GetDefaultParams()
	p.HealthTimeout = 50 * time.Millisecond
	p.ConnectTimeout = 2 * time.Second
	return p
}

// Tests that calling Initialize twice starts the substrate exactly once and
// that the second call reports success.
func TestSession_Initialize_Idempotent(t *testing.T) {
	sub := newMockSubstrate()
	session := NewSession(sub, testParams())
	local := newTestIdentity(t, 42).Public()

	if err := session.Initialize(local); err != nil {
		t.Fatalf("First Initialize returned an error: %+v", err)
	}
	if err := session.Initialize(local); err != nil {
		t.Fatalf("Second Initialize returned an error: %+v", err)
	}

	if sub.starts() != 1 {
		t.Errorf("Substrate was started %d times instead of once.",
			sub.starts())
	}

	if !session.IsInitialized() {
		t.Error("Session does not report initialized.")
	}
}

// Error path: tests that a substrate fault surfaces as ErrInitFailed and
// that the session stays uninitialized.
func TestSession_Initialize_Error(t *testing.T) {
	sub := newMockSubstrate()
	sub.startErr = errors.New("no interfaces")
	session := NewSession(sub, testParams())

	err := session.Initialize(newTestIdentity(t, 42).Public())
	if !errors.Is(err, ErrInitFailed) {
		t.Errorf("Initialize did not return ErrInitFailed.\nreceived: %+v",
			err)
	}

	if session.IsInitialized() {
		t.Error("Session reports initialized after a failed start.")
	}

	if regErr := session.RequestPath(newTestIdentity(t, 43).Hash()); regErr == nil {
		t.Error("RequestPath succeeded on an uninitialized session.")
	}
}

// Tests that Status is zero before initialization and carries substrate
// counts plus health after.
func TestSession_Status(t *testing.T) {
	sub := newMockSubstrate()
	session := NewSession(sub, testParams())

	if status := session.Status(); status != (NetworkStatus{}) {
		t.Errorf("Uninitialized session has nonzero status: %+v", status)
	}

	if err := session.Initialize(newTestIdentity(t, 42).Public()); err != nil {
		t.Fatalf("Initialize returned an error: %+v", err)
	}

	stop, err := session.StartProcesses()
	if err != nil {
		t.Fatalf("StartProcesses returned an error: %+v", err)
	}
	defer func() {
		if err := stop.Close(); err != nil {
			t.Errorf("Failed to close session processes: %+v", err)
		}
	}()

	sub.heartbeats <- struct{}{}

	deadline := time.After(2 * time.Second)
	for !session.IsHealthy() {
		select {
		case <-deadline:
			t.Fatal("Session never became healthy.")
		case <-time.After(5 * time.Millisecond):
		}
	}

	status := session.Status()
	if !status.Connected || status.Interfaces != 1 || status.Peers != 2 {
		t.Errorf("Status did not reflect the substrate: %+v", status)
	}
}

// Tests that the session goes unhealthy when heartbeats stop and that
// WasHealthy latches.
func TestSession_Health_Timeout(t *testing.T) {
	sub := newMockSubstrate()
	session := NewSession(sub, testParams())

	if err := session.Initialize(newTestIdentity(t, 42).Public()); err != nil {
		t.Fatalf("Initialize returned an error: %+v", err)
	}

	stop, err := session.StartProcesses()
	if err != nil {
		t.Fatalf("StartProcesses returned an error: %+v", err)
	}
	defer stop.Close()

	sub.heartbeats <- struct{}{}
	if err = session.WaitUntilConnected(2 * time.Second); err != nil {
		t.Fatalf("WaitUntilConnected returned an error: %+v", err)
	}

	// No further heartbeats; the 50 ms timeout should flip health off.
	deadline := time.After(2 * time.Second)
	for session.IsHealthy() {
		select {
		case <-deadline:
			t.Fatal("Session never went unhealthy after heartbeats stopped.")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if !session.WasHealthy() {
		t.Error("WasHealthy did not latch after a healthy period.")
	}
}

// Tests that announcements drain into the directory and are readable
// through Lookup, DisplayName, and Peers.
func TestSession_Announcements(t *testing.T) {
	sub := newMockSubstrate()
	session := NewSession(sub, testParams())

	if err := session.Initialize(newTestIdentity(t, 42).Public()); err != nil {
		t.Fatalf("Initialize returned an error: %+v", err)
	}

	stop, err := session.StartProcesses()
	if err != nil {
		t.Fatalf("StartProcesses returned an error: %+v", err)
	}
	defer stop.Close()

	peer := newTestIdentity(t, 99)
	sub.announcements <- Announcement{
		Source:  peer.Hash(),
		Public:  peer.Public(),
		AppData: BuildAnnounceData("warp & weft"),
		At:      netTime.Now(),
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := session.Lookup(peer.Hash()); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Announcement never reached the directory.")
		case <-time.After(5 * time.Millisecond):
		}
	}

	name, ok := session.DisplayName(peer.Hash())
	if !ok || name != "warp & weft" {
		t.Errorf("DisplayName returned %q, %t.", name, ok)
	}

	peers := session.Peers()
	if len(peers) != 1 || !peers[0].Identity.Equal(peer.Hash()) {
		t.Errorf("Peers returned the wrong snapshot: %+v", peers)
	}
}

// Tests that Shutdown stops the substrate once, and only after
// initialization.
func TestSession_Shutdown(t *testing.T) {
	sub := newMockSubstrate()
	session := NewSession(sub, testParams())

	if err := session.Shutdown(); err != nil {
		t.Errorf("Shutdown of an uninitialized session errored: %+v", err)
	}
	if sub.stopCount != 0 {
		t.Error("Shutdown stopped a substrate that was never started.")
	}

	session = NewSession(newMockSubstrate(), testParams())
	sub = session.substrate.(*mockSubstrate)
	if err := session.Initialize(newTestIdentity(t, 42).Public()); err != nil {
		t.Fatalf("Initialize returned an error: %+v", err)
	}

	if err := session.Shutdown(); err != nil {
		t.Errorf("Shutdown returned an error: %+v", err)
	}
	if err := session.Shutdown(); err != nil {
		t.Errorf("Second Shutdown returned an error: %+v", err)
	}
	if sub.stopCount != 1 {
		t.Errorf("Substrate was stopped %d times instead of once.",
			sub.stopCount)
	}
}
