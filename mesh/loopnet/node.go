////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package loopnet

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
	"gitlab.com/weftnet/client/mesh"
)

const (
	heartbeatBuffer = 4
	announceBuffer  = 16
	inboundBuffer   = 64
)

type inboundItem struct {
	handler  mesh.DeliveryHandler
	delivery mesh.Delivery
}

// Node is one endpoint on a Hub. It adheres to the mesh.Substrate
// interface; each client in a loopback run owns one.
type Node struct {
	hub    *Hub
	params Params

	mux         sync.Mutex
	started     bool
	local       identity.Public
	localHash   address.Hash
	lastAppData []byte
	quit        chan struct{}

	heartbeats    chan struct{}
	announcements chan mesh.Announcement
	inbound       chan inboundItem
}

// Start attaches the local identity to the hub and starts the node's
// network thread.
func (n *Node) Start(local identity.Public) error {
	n.mux.Lock()
	if n.started {
		n.mux.Unlock()
		return errors.New("loopnet node is already started")
	}
	n.started = true
	n.local = local
	n.localHash = local.Hash()
	n.quit = make(chan struct{})
	n.mux.Unlock()

	n.hub.attach(n)
	go n.run()

	return nil
}

// Stop detaches the node from the hub and stops its network thread.
// Stopping a node that never started is a no-op.
func (n *Node) Stop() error {
	n.mux.Lock()
	if !n.started {
		n.mux.Unlock()
		return nil
	}
	n.started = false
	close(n.quit)
	n.mux.Unlock()

	n.hub.detach(n)
	return nil
}

// Counts reports one interface while started and the number of other nodes
// on the hub as peers.
func (n *Node) Counts() (interfaces, peers int) {
	n.mux.Lock()
	started := n.started
	n.mux.Unlock()

	if !started {
		return 0, 0
	}
	return 1, n.hub.peerCount() - 1
}

// Heartbeats returns the channel pulsed by the node's network thread.
func (n *Node) Heartbeats() <-chan struct{} {
	return n.heartbeats
}

// Announcements returns the channel carrying announces from other nodes.
func (n *Node) Announcements() <-chan mesh.Announcement {
	return n.announcements
}

// RegisterDestination claims the inbound destination on the hub.
func (n *Node) RegisterDestination(dst *mesh.Destination) (mesh.Registration, error) {
	if err := n.checkStarted(); err != nil {
		return nil, err
	}
	return n.hub.register(n, dst)
}

// Announce broadcasts presence to every other node on the hub. The app
// data is remembered and reused when the hub answers path requests on this
// node's behalf.
func (n *Node) Announce(appData []byte) error {
	n.mux.Lock()
	if !n.started {
		n.mux.Unlock()
		return errors.New("loopnet node is not started")
	}
	n.lastAppData = copyBytes(appData)
	n.mux.Unlock()

	return n.hub.announce(n, appData)
}

// reannounce repeats the last announce, app data included.
func (n *Node) reannounce() error {
	n.mux.Lock()
	if !n.started {
		n.mux.Unlock()
		return errors.New("loopnet node is not started")
	}
	data := n.lastAppData
	n.mux.Unlock()

	return n.hub.announce(n, data)
}

// ResolveIdentity recalls an identity that has announced on the hub.
func (n *Node) ResolveIdentity(target address.Hash) (identity.Public, bool) {
	return n.hub.resolve(target)
}

// RequestPath asks the hub to have the target identity re-announce.
func (n *Node) RequestPath(target address.Hash) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return n.hub.requestPath(target)
}

// DeliverDirect routes the payload to the node holding the destination.
func (n *Node) DeliverDirect(target address.Hash, payload []byte) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return n.hub.deliverDirect(target, payload)
}

// Propagate stores the payload with the hub when the destination is
// offline and delivers immediately when it is not.
func (n *Node) Propagate(target address.Hash, payload []byte) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return n.hub.propagate(target, payload)
}

func (n *Node) checkStarted() error {
	n.mux.Lock()
	defer n.mux.Unlock()
	if !n.started {
		return errors.New("loopnet node is not started")
	}
	return nil
}

// enqueue hands a delivery to the node's network thread. It fails rather
// than blocks when the inbound queue is full.
func (n *Node) enqueue(h mesh.DeliveryHandler, d mesh.Delivery) error {
	select {
	case n.inbound <- inboundItem{handler: h, delivery: d}:
		return nil
	default:
		return errors.Errorf("inbound queue full for node %s",
			n.localHash.ShortString())
	}
}

// run is the node's network thread. It pulses heartbeats and hands inbound
// payloads to their destination handlers one at a time, so handlers always
// run on this goroutine.
func (n *Node) run() {
	ticker := time.NewTicker(n.params.PulsePeriod)
	defer ticker.Stop()

	n.pulse()
	for {
		select {
		case <-n.quit:
			return
		case <-ticker.C:
			n.pulse()
		case item := <-n.inbound:
			item.handler.Deliver(item.delivery)
		}
	}
}

func (n *Node) pulse() {
	select {
	case n.heartbeats <- struct{}{}:
	default:
	}
}
