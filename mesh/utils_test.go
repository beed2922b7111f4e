////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mesh

import (
	"math/rand"
	"sync"
	"testing"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
)

// newTestIdentity generates a deterministic identity for tests.
func newTestIdentity(t *testing.T, seed int64) *identity.Identity {
	ident, err := identity.Generate(rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("Failed to generate test identity: %+v", err)
	}
	return ident
}

// mockSubstrate is a controllable Substrate for session tests.
type mockSubstrate struct {
	mux        sync.Mutex
	startCount int
	startErr   error
	stopCount  int

	heartbeats    chan struct{}
	announcements chan Announcement

	registered map[address.Hash]*Destination
	announced  [][]byte
}

func newMockSubstrate() *mockSubstrate {
	return &mockSubstrate{
		heartbeats:    make(chan struct{}, 8),
		announcements: make(chan Announcement, 8),
		registered:    make(map[address.Hash]*Destination),
	}
}

func (m *mockSubstrate) Start(identity.Public) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.startCount++
	return m.startErr
}

func (m *mockSubstrate) Stop() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.stopCount++
	return nil
}

func (m *mockSubstrate) Counts() (int, int) { return 1, 2 }

func (m *mockSubstrate) Heartbeats() <-chan struct{} { return m.heartbeats }

func (m *mockSubstrate) Announcements() <-chan Announcement {
	return m.announcements
}

func (m *mockSubstrate) RegisterDestination(dst *Destination) (Registration, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.registered[dst.Hash()]; ok {
		return nil, nil
	}
	m.registered[dst.Hash()] = dst
	return &mockRegistration{dst: dst}, nil
}

func (m *mockSubstrate) Announce(appData []byte) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.announced = append(m.announced, appData)
	return nil
}

func (m *mockSubstrate) ResolveIdentity(address.Hash) (identity.Public, bool) {
	return identity.Public{}, false
}

func (m *mockSubstrate) RequestPath(address.Hash) error { return nil }

func (m *mockSubstrate) DeliverDirect(address.Hash, []byte) error { return nil }

func (m *mockSubstrate) Propagate(address.Hash, []byte) error { return nil }

func (m *mockSubstrate) starts() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.startCount
}

type mockRegistration struct {
	dst *Destination
}

func (r *mockRegistration) Destination() *Destination { return r.dst }
func (r *mockRegistration) Unregister()               {}
