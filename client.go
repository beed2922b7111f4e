////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package client ties the weft subsystems together into one object:
// encrypted local storage, the persistent identity, the network session,
// addressed messaging, and real-time streaming. Create storage once with
// NewClient, then LoadClient, InitializeNetwork, and StartNetworkFollower
// to come online.
package client

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
	"gitlab.com/weftnet/client/mesh"
	"gitlab.com/weftnet/client/messaging"
	"gitlab.com/weftnet/client/stoppable"
	"gitlab.com/weftnet/client/storage/versioned"
	"gitlab.com/weftnet/client/streaming"
)

const followerStoppableName = "client"

// followerStopTimeout bounds how long StopNetworkFollower waits for the
// worker tree to wind down after closing it.
const followerStopTimeout = 10 * time.Second

// DefaultDisplayName is announced when storage holds no stored name. The
// name falls back to the application identifier, matching what peers see
// from a client that never set one.
const DefaultDisplayName = "weft client"

const (
	clientPrefix       = "client"
	displayNameKey     = "displayName"
	displayNameVersion = 0
)

// Client is the top-level weft object. The zero value is not usable;
// construct with LoadClient.
type Client struct {
	params Params

	kv      *versioned.KV
	store   *identity.Store
	session *mesh.Session

	displayName string

	// messaging exists from LoadClient on. streaming is nil until
	// InitializeNetwork because its construction claims destinations on
	// the substrate, which requires an initialized session. followers is
	// non-nil exactly while the worker tree runs.
	mux       sync.Mutex
	messaging *messaging.Manager
	streaming *streaming.Manager
	followers stoppable.Stoppable
}

// NewClient creates client storage under storageDir, generates and
// persists a fresh identity if none exists, and stores the display name.
// Re-running against existing storage keeps the stored identity. An empty
// displayName stores DefaultDisplayName.
func NewClient(storageDir, password, displayName string) error {
	jww.INFO.Printf("NewClient(dir: %s)", storageDir)

	kv, err := openStorage(storageDir, password)
	if err != nil {
		return err
	}

	ident, err := identity.NewStore(storageDir).CreateOrLoad()
	if err != nil {
		return err
	}

	if displayName == "" {
		displayName = DefaultDisplayName
	}
	if err = storeDisplayName(kv, displayName); err != nil {
		return err
	}

	jww.INFO.Printf("Client identity %s ready as %q",
		ident.Hash(), displayName)
	return nil
}

// LoadClient opens client storage and builds the session and messaging
// subsystems on top of the given substrate. A storage directory that was
// never initialized gets a fresh identity, so first runs work without a
// prior NewClient. The network stays down until InitializeNetwork.
func LoadClient(storageDir, password string, substrate mesh.Substrate,
	params Params) (*Client, error) {
	jww.INFO.Printf("LoadClient(dir: %s)", storageDir)

	kv, err := openStorage(storageDir, password)
	if err != nil {
		return nil, err
	}

	store := identity.NewStore(storageDir)
	ident, err := store.CreateOrLoad()
	if err != nil {
		return nil, err
	}

	c := &Client{
		params:      params,
		kv:          kv,
		store:       store,
		session:     mesh.NewSession(substrate, params.Session),
		displayName: loadDisplayName(kv),
	}
	c.messaging = messaging.NewManager(c.session, ident.Hash(),
		c.displayName, kv, params.Messaging)

	jww.INFO.Printf("Loaded client identity %s (%q)",
		ident.Hash(), c.displayName)
	return c, nil
}

// openStorage opens the encrypted key/value store backing the client.
func openStorage(storageDir, password string) (*versioned.KV, error) {
	fs, err := ekv.NewFilestore(storageDir, password)
	if err != nil {
		return nil, errors.WithMessage(err,
			"failed to create storage session")
	}
	return versioned.NewKV(fs), nil
}

func storeDisplayName(kv *versioned.KV, name string) error {
	err := kv.Prefix(clientPrefix).Set(displayNameKey, &versioned.Object{
		Version:   displayNameVersion,
		Timestamp: netTime.Now(),
		Data:      []byte(name),
	})
	return errors.WithMessage(err, "failed to store the display name")
}

// loadDisplayName returns the stored display name, or the default when
// none was ever stored.
func loadDisplayName(kv *versioned.KV) string {
	obj, err := kv.Prefix(clientPrefix).Get(displayNameKey,
		displayNameVersion)
	if err != nil || len(obj.Data) == 0 {
		return DefaultDisplayName
	}
	return string(obj.Data)
}

// InitializeNetwork attaches the identity to the substrate and brings the
// network-facing subsystems up: the session initializes, messaging claims
// the delivery destination, and the streaming manager registers its
// destinations. It is idempotent; a second call after success is a no-op.
// Substrate faults surface as mesh.ErrInitFailed.
func (c *Client) InitializeNetwork() error {
	ident, ok := c.store.Identity()
	if !ok {
		return errors.New("no identity is loaded")
	}

	if err := c.session.Initialize(ident.Public()); err != nil {
		return err
	}

	c.mux.Lock()
	defer c.mux.Unlock()

	if _, err := c.messaging.RegisterDeliveryDestination(); err != nil {
		return err
	}

	if c.streaming == nil {
		sm, err := streaming.NewManager(c.session, ident.Hash(),
			c.params.Streaming)
		if err != nil {
			return err
		}
		c.streaming = sm
	}

	return nil
}

// StartNetworkFollower starts the long-running workers of every subsystem
// and announces the local identity. When timeout is positive it then
// blocks until the session reports healthy or the timeout lapses; the
// workers keep running either way, so a timed-out caller may simply wait
// again. InitializeNetwork must have succeeded first.
func (c *Client) StartNetworkFollower(timeout time.Duration) error {
	c.mux.Lock()
	if c.streaming == nil {
		c.mux.Unlock()
		return errors.New("network is not initialized")
	}
	if c.followers != nil {
		c.mux.Unlock()
		return errors.Errorf("network follower is already %s",
			c.followers.GetStatus())
	}

	jww.INFO.Print("StartNetworkFollower()")

	multi := stoppable.NewMulti(followerStoppableName)

	sessionStop, err := c.session.StartProcesses()
	if err != nil {
		c.mux.Unlock()
		return errors.WithMessage(err,
			"failed to start session processes")
	}
	multi.Add(sessionStop)

	messagingStop, err := c.messaging.StartProcesses()
	if err != nil {
		c.mux.Unlock()
		c.unwind(multi)
		return errors.WithMessage(err,
			"failed to start messaging processes")
	}
	multi.Add(messagingStop)

	streamingStop, err := c.streaming.StartProcesses()
	if err != nil {
		c.mux.Unlock()
		c.unwind(multi)
		return errors.WithMessage(err,
			"failed to start streaming processes")
	}
	multi.Add(streamingStop)

	c.followers = multi
	c.mux.Unlock()

	// Put the identity on the air so peers can resolve it without
	// waiting for the first manual announce.
	if err = c.messaging.Announce(); err != nil {
		jww.WARN.Printf("Startup announce failed: %+v", err)
	}

	if timeout > 0 {
		return c.session.WaitUntilConnected(timeout)
	}
	return nil
}

// unwind closes the workers that made it up before a later one failed to
// start.
func (c *Client) unwind(multi *stoppable.Multi) {
	if err := multi.Close(); err != nil {
		jww.ERROR.Printf("Failed to unwind partially started network "+
			"follower: %+v", err)
	}
}

// StopNetworkFollower stops the running follower workers and waits for
// them to wind down. It errors when no follower is running.
func (c *Client) StopNetworkFollower() error {
	c.mux.Lock()
	followers := c.followers
	c.followers = nil
	c.mux.Unlock()

	if followers == nil {
		return errors.New("no network follower is running")
	}

	jww.INFO.Print("StopNetworkFollower()")

	if err := followers.Close(); err != nil {
		return errors.WithMessage(err,
			"failed to stop the network follower")
	}
	return stoppable.WaitForStopped(followers, followerStopTimeout)
}

// NetworkFollowerStatus reports the state of the follower worker tree.
func (c *Client) NetworkFollowerStatus() stoppable.Status {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.followers == nil {
		return stoppable.Stopped
	}
	return c.followers.GetStatus()
}

// HasRunningProcesses returns true while any follower worker is still
// running.
func (c *Client) HasRunningProcesses() bool {
	return c.NetworkFollowerStatus() != stoppable.Stopped
}

// Shutdown stops the follower if it is running and releases the network
// session. The client cannot be reused afterward.
func (c *Client) Shutdown() error {
	c.mux.Lock()
	running := c.followers != nil
	c.mux.Unlock()

	if running {
		if err := c.StopNetworkFollower(); err != nil {
			jww.WARN.Printf("Failed to stop the network follower "+
				"cleanly: %+v", err)
		}
	}
	return c.session.Shutdown()
}

// Status reports the merged network and identity view: substrate
// connectivity plus the hash that names this client on the overlay.
func (c *Client) Status() Status {
	netStatus := c.session.Status()
	hash, _ := c.store.Hash()

	return Status{
		Connected:    netStatus.Connected,
		Interfaces:   netStatus.Interfaces,
		Peers:        netStatus.Peers,
		IdentityHash: hash,
	}
}

// IdentityHash returns the address hash of the loaded identity. The second
// return is false when no identity has been loaded.
func (c *Client) IdentityHash() (address.Hash, bool) {
	return c.store.Hash()
}

// DisplayName returns the name announced alongside the identity.
func (c *Client) DisplayName() string {
	return c.displayName
}

// GetSession returns the network session.
func (c *Client) GetSession() *mesh.Session {
	return c.session
}

// GetMessaging returns the messaging manager.
func (c *Client) GetMessaging() *messaging.Manager {
	return c.messaging
}

// GetStreaming returns the streaming manager. It is nil until
// InitializeNetwork succeeds.
func (c *Client) GetStreaming() *streaming.Manager {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.streaming
}

// GetStorage returns the versioned storage backing the client.
func (c *Client) GetStorage() *versioned.KV {
	return c.kv
}

// GetIdentityStore returns the identity store.
func (c *Client) GetIdentityStore() *identity.Store {
	return c.store
}
