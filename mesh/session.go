////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mesh

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
	"gitlab.com/weftnet/client/stoppable"
)

// errNotInitialized guards operations that need a live substrate.
var errNotInitialized = errors.New("network session is not initialized")

// Session wraps a Substrate with idempotent initialization, liveness
// tracking, and a directory of announced peers. One Session exists per
// client; everything above it goes through it rather than the substrate.
type Session struct {
	substrate Substrate
	params    Params

	initOnce sync.Once
	initErr  error

	mux         sync.RWMutex
	initialized bool

	health *tracker
	dir    *directory

	stopOnce sync.Once
}

// NewSession wraps the substrate. Nothing touches the network until
// Initialize.
func NewSession(sub Substrate, params Params) *Session {
	return &Session{
		substrate: sub,
		params:    params,
		health:    newTracker(sub.Heartbeats(), params.HealthTimeout),
		dir:       newDirectory(),
	}
}

// Initialize brings the substrate up under the local identity. The first
// call does the work; every later call returns the first call's outcome
// without touching the substrate again.
func (s *Session) Initialize(local identity.Public) error {
	s.initOnce.Do(func() {
		jww.INFO.Printf("Initializing network session as %s",
			local.Hash().ShortString())

		if err := s.substrate.Start(local); err != nil {
			s.initErr = errors.WithMessagef(ErrInitFailed,
				"substrate start: %+v", err)
			jww.ERROR.Printf("Network session initialization failed: %+v",
				err)
			return
		}

		s.mux.Lock()
		s.initialized = true
		s.mux.Unlock()
	})

	return s.initErr
}

// IsInitialized determines if Initialize has succeeded.
func (s *Session) IsInitialized() bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.initialized
}

func (s *Session) checkInitialized() error {
	if !s.IsInitialized() {
		return errNotInitialized
	}
	return nil
}

// Status reports a point-in-time snapshot of connectivity. Before
// initialization every field is zero.
func (s *Session) Status() NetworkStatus {
	if !s.IsInitialized() {
		return NetworkStatus{}
	}

	interfaces, peers := s.substrate.Counts()
	return NetworkStatus{
		Connected:  s.health.IsHealthy(),
		Interfaces: interfaces,
		Peers:      peers,
	}
}

// StartProcesses starts the health monitor and the announcement worker and
// returns their stoppable bundle.
func (s *Session) StartProcesses() (stoppable.Stoppable, error) {
	multi := stoppable.NewMulti("session")

	healthStop, err := s.health.StartProcesses()
	if err != nil {
		return nil, err
	}
	multi.Add(healthStop)

	annStop := stoppable.NewSingle("announcementWorker")
	go s.listenAnnouncements(annStop)
	multi.Add(annStop)

	return multi, nil
}

// listenAnnouncements drains the substrate's announcement channel into the
// directory.
func (s *Session) listenAnnouncements(stop *stoppable.Single) {
	for {
		select {
		case <-stop.Quit():
			stop.ToStopped()
			return
		case a := <-s.substrate.Announcements():
			s.dir.record(a)
		}
	}
}

// AddHealthCallback registers a function to run on every health change and
// returns a unique ID for removing it.
func (s *Session) AddHealthCallback(f func(bool)) uint64 {
	return s.health.AddHealthCallback(f)
}

// RemoveHealthCallback stops the callback with the given ID from running on
// future health changes.
func (s *Session) RemoveHealthCallback(id uint64) {
	s.health.RemoveHealthCallback(id)
}

// IsHealthy returns the current health status of the session.
func (s *Session) IsHealthy() bool {
	return s.health.IsHealthy()
}

// WasHealthy returns true if the session has ever been healthy.
func (s *Session) WasHealthy() bool {
	return s.health.WasHealthy()
}

// WaitUntilConnected blocks until the session reports healthy or the
// timeout expires. A zero timeout uses Params.ConnectTimeout.
func (s *Session) WaitUntilConnected(timeout time.Duration) error {
	if timeout == 0 {
		timeout = s.params.ConnectTimeout
	}

	connected := make(chan bool, 10)
	id := s.health.AddHealthCallback(func(h bool) { connected <- h })
	defer s.health.RemoveHealthCallback(id)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case h := <-connected:
			if h {
				return nil
			}
		case <-deadline.C:
			return errors.Errorf("timed out after %s waiting for the "+
				"network session to connect", timeout)
		}
	}
}

// RegisterDestination claims the inbound destination with the substrate. A
// nil Registration with a nil error means the destination was already
// claimed locally; see Substrate.RegisterDestination.
func (s *Session) RegisterDestination(dst *Destination) (Registration, error) {
	if err := s.checkInitialized(); err != nil {
		return nil, err
	}

	jww.INFO.Printf("Registering destination %s", dst)
	return s.substrate.RegisterDestination(dst)
}

// Announce broadcasts the local identity's presence with the given
// application data.
func (s *Session) Announce(appData []byte) error {
	if err := s.checkInitialized(); err != nil {
		return err
	}

	jww.DEBUG.Printf("Announcing presence with %d bytes of app data",
		len(appData))
	return s.substrate.Announce(appData)
}

// ResolveIdentity recalls the public identity behind the identity hash.
func (s *Session) ResolveIdentity(target address.Hash) (identity.Public, bool) {
	if !s.IsInitialized() {
		return identity.Public{}, false
	}
	return s.substrate.ResolveIdentity(target)
}

// RequestPath asks the network to establish knowledge of the identity hash.
func (s *Session) RequestPath(target address.Hash) error {
	if err := s.checkInitialized(); err != nil {
		return err
	}

	jww.DEBUG.Printf("Requesting path to %s", target.ShortString())
	return s.substrate.RequestPath(target)
}

// DeliverDirect carries the payload to the destination hash over a direct
// path.
func (s *Session) DeliverDirect(target address.Hash, payload []byte) error {
	if err := s.checkInitialized(); err != nil {
		return err
	}
	return s.substrate.DeliverDirect(target, payload)
}

// Propagate hands the payload to the network for store-and-forward
// delivery.
func (s *Session) Propagate(target address.Hash, payload []byte) error {
	if err := s.checkInitialized(); err != nil {
		return err
	}
	return s.substrate.Propagate(target, payload)
}

// Lookup returns the directory entry for the identity hash, if one was
// ever heard.
func (s *Session) Lookup(h address.Hash) (Entry, bool) {
	return s.dir.lookup(h)
}

// DisplayName returns the announced display name for the identity hash.
func (s *Session) DisplayName(h address.Hash) (string, bool) {
	return s.dir.displayName(h)
}

// Peers returns a snapshot of every identity heard from, most recently
// heard first.
func (s *Session) Peers() []Entry {
	return s.dir.list()
}

// Shutdown stops the substrate. Call it after closing the stoppables
// returned by StartProcesses. Only the first call stops.
func (s *Session) Shutdown() error {
	var err error
	s.stopOnce.Do(func() {
		if !s.IsInitialized() {
			return
		}
		jww.INFO.Print("Shutting down network session")
		err = s.substrate.Stop()
	})
	return err
}
