////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package messaging

import (
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
	"gitlab.com/weftnet/client/mesh"
	"gitlab.com/weftnet/client/storage/versioned"
)

func TestMain(m *testing.M) {
	jww.SetStdoutThreshold(jww.LevelFatal)
	os.Exit(m.Run())
}

func newTestParams() Params {
	p := GetDefaultParams()
	p.MaxDeliveryAttempts = 3
	p.DeliveryRetryWait = time.Millisecond
	p.PathRequestWait = time.Millisecond
	p.SendsPerSecond = 1000
	p.AnnounceCooldown = 0
	return p
}

func newTestIdentity(t testing.TB, seed int64) *identity.Identity {
	ident, err := identity.Generate(rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("Failed to generate identity: %+v", err)
	}
	return ident
}

// pollUntil calls f every millisecond until it returns true or the timeout
// lapses.
func pollUntil(timeout time.Duration, f func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return f()
}

type mockDelivery struct {
	target  address.Hash
	payload []byte
}

// mockSession scripts the substrate side of the manager. failRemaining
// counts down DeliverDirect failures; set it to alwaysFail to never
// succeed.
type mockSession struct {
	mux sync.Mutex

	regErr     error
	regNil     bool
	registered []*mesh.Destination

	announced [][]byte

	resolvable map[address.Hash]identity.Public
	names      map[address.Hash]string

	pathRequests []address.Hash

	failRemaining int
	delivered     []mockDelivery

	propagateErr error
	propagated   []mockDelivery
}

const alwaysFail = -1

func newMockSession() *mockSession {
	return &mockSession{
		resolvable: make(map[address.Hash]identity.Public),
		names:      make(map[address.Hash]string),
	}
}

// addPeer makes the identity resolvable, optionally with a display name.
func (ms *mockSession) addPeer(ident *identity.Identity, name string) {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	ms.resolvable[ident.Hash()] = ident.Public()
	if name != "" {
		ms.names[ident.Hash()] = name
	}
}

func (ms *mockSession) RegisterDestination(dst *mesh.Destination) (
	mesh.Registration, error) {
	ms.mux.Lock()
	defer ms.mux.Unlock()

	if ms.regErr != nil {
		return nil, ms.regErr
	}
	ms.registered = append(ms.registered, dst)
	if ms.regNil {
		return nil, nil
	}
	return &mockRegistration{dst: dst}, nil
}

func (ms *mockSession) Announce(appData []byte) error {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	ms.announced = append(ms.announced, append([]byte(nil), appData...))
	return nil
}

func (ms *mockSession) ResolveIdentity(target address.Hash) (
	identity.Public, bool) {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	pub, ok := ms.resolvable[target]
	return pub, ok
}

func (ms *mockSession) RequestPath(target address.Hash) error {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	ms.pathRequests = append(ms.pathRequests, target)
	return nil
}

func (ms *mockSession) DeliverDirect(target address.Hash,
	payload []byte) error {
	ms.mux.Lock()
	defer ms.mux.Unlock()

	if ms.failRemaining != 0 {
		if ms.failRemaining > 0 {
			ms.failRemaining--
		}
		return errors.Errorf("no path to destination %s",
			target.ShortString())
	}

	ms.delivered = append(ms.delivered,
		mockDelivery{target: target, payload: append([]byte(nil), payload...)})
	return nil
}

func (ms *mockSession) Propagate(target address.Hash, payload []byte) error {
	ms.mux.Lock()
	defer ms.mux.Unlock()

	if ms.propagateErr != nil {
		return ms.propagateErr
	}
	ms.propagated = append(ms.propagated,
		mockDelivery{target: target, payload: append([]byte(nil), payload...)})
	return nil
}

func (ms *mockSession) DisplayName(target address.Hash) (string, bool) {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	name, ok := ms.names[target]
	return name, ok && name != ""
}

func (ms *mockSession) deliveredCount() int {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	return len(ms.delivered)
}

func (ms *mockSession) lastDelivered() mockDelivery {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	return ms.delivered[len(ms.delivered)-1]
}

func (ms *mockSession) propagatedCount() int {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	return len(ms.propagated)
}

func (ms *mockSession) pathRequestCount() int {
	ms.mux.Lock()
	defer ms.mux.Unlock()
	return len(ms.pathRequests)
}

type mockRegistration struct {
	dst          *mesh.Destination
	unregistered bool
}

func (mr *mockRegistration) Destination() *mesh.Destination { return mr.dst }

func (mr *mockRegistration) Unregister() { mr.unregistered = true }

// newTestManager builds a manager over a mock session and an in-memory
// store. The local identity is deterministic from the seed.
func newTestManager(t testing.TB, seed int64) (*Manager, *mockSession,
	*identity.Identity) {
	session := newMockSession()
	local := newTestIdentity(t, seed)
	kv := versioned.NewKV(ekv.MakeMemstore())
	m := NewManager(session, local.Hash(), "tester", kv, newTestParams())
	return m, session, local
}

// startProcesses starts the manager's workers and registers cleanup.
func startProcesses(t *testing.T, m *Manager) {
	stop, err := m.StartProcesses()
	if err != nil {
		t.Fatalf("Failed to start processes: %+v", err)
	}
	t.Cleanup(func() {
		if err := stop.Close(); err != nil {
			t.Errorf("Failed to close stoppable: %+v", err)
		}
	})
}
