////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package loopnet is an in-memory substrate: a hub routing payloads
// between nodes inside one process. It backs tests and loopback-only runs
// of the client; no real transport sits underneath.
package loopnet

import (
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
	"sync"
	"time"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
	"gitlab.com/weftnet/client/mesh"
)

const (
	// maxStoredPerTarget caps the store-and-forward backlog per
	// destination; the oldest payload is dropped on overflow.
	maxStoredPerTarget = 64
)

type storedPayload struct {
	payload []byte
	at      time.Time
}

// Hub routes between every node created from it. All routing state lives
// here; nodes hold only their own channels.
type Hub struct {
	mux        sync.Mutex
	nodes      map[address.Hash]*Node
	routes     map[address.Hash]*registration
	stored     map[address.Hash][]storedPayload
	identities map[address.Hash]identity.Public
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		nodes:      make(map[address.Hash]*Node),
		routes:     make(map[address.Hash]*registration),
		stored:     make(map[address.Hash][]storedPayload),
		identities: make(map[address.Hash]identity.Public),
	}
}

// NewNode creates a node attached to nothing. The node joins the hub when
// its Start is called with the local identity.
func (h *Hub) NewNode(params Params) *Node {
	return &Node{
		hub:           h,
		params:        params,
		heartbeats:    make(chan struct{}, heartbeatBuffer),
		announcements: make(chan mesh.Announcement, announceBuffer),
		inbound:       make(chan inboundItem, inboundBuffer),
	}
}

func (h *Hub) attach(n *Node) {
	h.mux.Lock()
	h.nodes[n.localHash] = n
	h.mux.Unlock()

	jww.INFO.Printf("Loopnet node %s attached", n.localHash.ShortString())
}

func (h *Hub) detach(n *Node) {
	h.mux.Lock()
	delete(h.nodes, n.localHash)
	for hash, reg := range h.routes {
		if reg.node == n {
			delete(h.routes, hash)
		}
	}
	h.mux.Unlock()

	jww.INFO.Printf("Loopnet node %s detached", n.localHash.ShortString())
}

func (h *Hub) register(n *Node, dst *mesh.Destination) (mesh.Registration, error) {
	if dst.Direction() != mesh.In {
		return nil, errors.Errorf(
			"cannot register outbound destination %s", dst)
	}
	if dst.Handler() == nil {
		return nil, errors.Errorf(
			"inbound destination %s has no delivery handler", dst)
	}

	h.mux.Lock()
	if existing, ok := h.routes[dst.Hash()]; ok {
		h.mux.Unlock()
		if existing.node == n {
			// Already claimed by this node. Payloads keep flowing to the
			// first handler; the caller gets no handle.
			return nil, nil
		}
		return nil, errors.Errorf(
			"destination %s is claimed by another node",
			dst.Hash().ShortString())
	}

	reg := &registration{hub: h, node: n, dst: dst}
	h.routes[dst.Hash()] = reg
	backlog := h.stored[dst.Hash()]
	delete(h.stored, dst.Hash())
	h.mux.Unlock()

	for _, sp := range backlog {
		delivery := mesh.Delivery{
			To:         dst.Hash(),
			Payload:    sp.payload,
			Propagated: true,
			ReceivedAt: netTime.Now(),
		}
		if err := n.enqueue(dst.Handler(), delivery); err != nil {
			jww.WARN.Printf("Dropping stored payload for %s: %+v",
				dst.Hash().ShortString(), err)
		}
	}

	return reg, nil
}

func (h *Hub) unregister(reg *registration) {
	h.mux.Lock()
	if h.routes[reg.dst.Hash()] == reg {
		delete(h.routes, reg.dst.Hash())
	}
	h.mux.Unlock()
}

func (h *Hub) announce(from *Node, appData []byte) error {
	h.mux.Lock()
	a := mesh.Announcement{
		Source:  from.localHash,
		Public:  from.local,
		AppData: copyBytes(appData),
		At:      netTime.Now(),
	}
	h.identities[from.localHash] = from.local

	targets := make([]*Node, 0, len(h.nodes))
	for _, n := range h.nodes {
		if n != from {
			targets = append(targets, n)
		}
	}
	h.mux.Unlock()

	for _, n := range targets {
		select {
		case n.announcements <- a:
		default:
			jww.WARN.Printf("Dropping announcement from %s to %s: channel full",
				a.Source.ShortString(), n.localHash.ShortString())
		}
	}

	return nil
}

func (h *Hub) resolve(target address.Hash) (identity.Public, bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	pub, ok := h.identities[target]
	return pub, ok
}

func (h *Hub) requestPath(target address.Hash) error {
	h.mux.Lock()
	n, ok := h.nodes[target]
	h.mux.Unlock()

	if !ok {
		jww.DEBUG.Printf("Path request for %s goes unanswered",
			target.ShortString())
		return nil
	}

	// The target answers a path request by re-announcing.
	go func() {
		if err := n.reannounce(); err != nil {
			jww.WARN.Printf("Path request reply from %s failed: %+v",
				target.ShortString(), err)
		}
	}()

	return nil
}

func (h *Hub) deliverDirect(target address.Hash, payload []byte) error {
	h.mux.Lock()
	reg, ok := h.routes[target]
	h.mux.Unlock()

	if !ok {
		return errors.Errorf("no path to destination %s",
			target.ShortString())
	}

	delivery := mesh.Delivery{
		To:         target,
		Payload:    copyBytes(payload),
		ReceivedAt: netTime.Now(),
	}
	return reg.node.enqueue(reg.dst.Handler(), delivery)
}

func (h *Hub) propagate(target address.Hash, payload []byte) error {
	h.mux.Lock()
	reg, ok := h.routes[target]
	if !ok {
		queue := h.stored[target]
		if len(queue) >= maxStoredPerTarget {
			jww.WARN.Printf("Store-and-forward backlog for %s is full; "+
				"dropping the oldest payload", target.ShortString())
			queue = queue[1:]
		}
		h.stored[target] = append(queue,
			storedPayload{payload: copyBytes(payload), at: netTime.Now()})
		h.mux.Unlock()

		jww.DEBUG.Printf("Stored payload for offline destination %s",
			target.ShortString())
		return nil
	}
	h.mux.Unlock()

	delivery := mesh.Delivery{
		To:         target,
		Payload:    copyBytes(payload),
		Propagated: true,
		ReceivedAt: netTime.Now(),
	}
	return reg.node.enqueue(reg.dst.Handler(), delivery)
}

func (h *Hub) peerCount() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return len(h.nodes)
}

type registration struct {
	hub  *Hub
	node *Node
	dst  *mesh.Destination
}

func (r *registration) Destination() *mesh.Destination { return r.dst }

func (r *registration) Unregister() { r.hub.unregister(r) }

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
