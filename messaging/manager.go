////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package messaging owns the delivery lifecycle for addressed messages: it
// claims the local delivery destination, paces and retries outbound sends
// with a propagation fallback, and projects inbound deliveries into a
// persisted, newest-first record list for a single consumer callback.
package messaging

import (
	"sync"
	"time"

	"github.com/golang-collections/collections/set"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/catalog"
	"gitlab.com/weftnet/client/identity"
	"gitlab.com/weftnet/client/mesh"
	"gitlab.com/weftnet/client/stoppable"
	"gitlab.com/weftnet/client/storage/versioned"
)

var (
	// ErrInvalidAddress is returned when a destination address is not
	// exactly address.HashLen bytes.
	ErrInvalidAddress = errors.New("destination address must be 16 bytes")

	// ErrIdentityUnknown is returned when the destination's identity has
	// not been heard from. It is recoverable: a path request has already
	// been issued, so retry once the peer announces.
	ErrIdentityUnknown = errors.New(
		"destination identity has not announced yet")

	// ErrRouterNotReady is returned when an operation needs the delivery
	// destination and none has been registered.
	ErrRouterNotReady = errors.New("no delivery destination is registered")

	// ErrCreationFailed is returned when a message cannot be constructed.
	ErrCreationFailed = errors.New("failed to create message")

	// ErrSendFailed is returned when a message cannot be accepted for
	// delivery.
	ErrSendFailed = errors.New("failed to submit message")
)

const messagingPrefix = "messaging"

// deliveryRateSmoothing weights the previous delivery-rate estimate when a
// new delivery folds in.
const deliveryRateSmoothing = 0.9

// Session is the subset of the network session the manager uses.
// *mesh.Session satisfies it.
type Session interface {
	RegisterDestination(dst *mesh.Destination) (mesh.Registration, error)
	Announce(appData []byte) error
	ResolveIdentity(target address.Hash) (identity.Public, bool)
	RequestPath(target address.Hash) error
	DeliverDirect(target address.Hash, payload []byte) error
	Propagate(target address.Hash, payload []byte) error
	DisplayName(target address.Hash) (string, bool)
}

// RouterStats is a point-in-time view of the delivery machinery.
type RouterStats struct {
	OutboundQueueDepth int
	InboundQueueDepth  int

	// DeliveryRate is a smoothed messages-per-minute delivery estimate.
	DeliveryRate float64
}

// Manager is the messaging subsystem. Construct with NewManager, register
// the delivery destination, then StartProcesses to begin moving messages.
type Manager struct {
	session Session
	kv      *versioned.KV
	params  Params

	localHash   address.Hash
	displayName string

	// Registration state. delivery is nil until
	// RegisterDeliveryDestination succeeds; registration stays nil when
	// the substrate reported the destination as already claimed.
	mux          sync.Mutex
	delivery     *mesh.Destination
	registration mesh.Registration
	lastAnnounce time.Time

	outbound chan *Message
	inbound  chan InboundRecord

	// seen dedups inbound deliveries by message ID. Guarded separately
	// because it is touched on the substrate's goroutine.
	seenMux sync.Mutex
	seen    *set.Set

	pendingMux sync.RWMutex
	pending    map[uuid.UUID]*Message

	// records is newest-first and written only by the dispatcher.
	recordsMux sync.RWMutex
	records    []InboundRecord

	cbMux    sync.Mutex
	callback func(InboundRecord)

	rateMux      sync.Mutex
	deliveryRate float64
	lastDelivery time.Time
}

// NewManager builds the messaging subsystem for the given local identity
// hash and reloads any persisted message history from kv.
func NewManager(session Session, localHash address.Hash, displayName string,
	kv *versioned.KV, params Params) *Manager {
	m := &Manager{
		session:      session,
		kv:           kv.Prefix(messagingPrefix),
		params:       params,
		localHash:    localHash,
		displayName:  displayName,
		outbound:     make(chan *Message, params.OutboundQueueSize),
		inbound:      make(chan InboundRecord, params.InboundQueueSize),
		seen:         set.New(),
		pending:      make(map[uuid.UUID]*Message),
		lastDelivery: netTime.Now(),
	}
	m.records = m.loadHistory()
	return m
}

// RegisterDeliveryDestination claims the local delivery destination on the
// substrate. It is idempotent: repeat calls return the same destination.
// When the substrate reports the destination already claimed it returns no
// handle; the manager then rides a bare inbound destination so routing
// still works. That outcome is not an error.
func (m *Manager) RegisterDeliveryDestination() (*mesh.Destination, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.delivery != nil {
		return m.delivery, nil
	}

	dst := mesh.NewIn(m.localHash, catalog.Delivery, deliveryHandler{m})
	reg, err := m.session.RegisterDestination(dst)
	if err != nil {
		return nil, errors.WithMessage(err,
			"failed to register the delivery destination")
	}

	if reg == nil {
		jww.WARN.Printf("[MSG] Delivery destination %s already claimed; "+
			"continuing without a registration handle",
			dst.Hash().ShortString())
		m.delivery = dst
	} else {
		m.delivery = reg.Destination()
		m.registration = reg
	}

	jww.INFO.Printf("[MSG] Delivery destination %s ready", m.delivery)
	return m.delivery, nil
}

// CreateMessage builds a direct message for the 16-byte destination
// address. The destination must have been heard from: when its identity
// cannot be resolved, a path request is issued and ErrIdentityUnknown is
// returned so the caller can retry after the peer announces.
func (m *Manager) CreateMessage(dest, content []byte, title string,
	fields map[string]interface{}) (*Message, error) {
	to, err := address.Unmarshal(dest)
	if err != nil {
		return nil, errors.WithMessagef(ErrInvalidAddress,
			"got %d bytes", len(dest))
	}

	if _, ok := m.session.ResolveIdentity(to); !ok {
		if err = m.session.RequestPath(to); err != nil {
			jww.WARN.Printf("[MSG] Path request for %s failed: %+v",
				to.ShortString(), err)
		}
		return nil, errors.WithMessagef(ErrIdentityUnknown,
			"no identity known for %s; path requested", to.ShortString())
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithMessagef(ErrCreationFailed,
			"message ID: %+v", err)
	}

	msg := &Message{
		ID:                   id,
		To:                   to,
		Dest:                 mesh.DeriveHash(to, catalog.Delivery),
		Source:               mesh.DeriveHash(m.localHash, catalog.Delivery),
		Content:              append([]byte(nil), content...),
		Title:                title,
		Method:               Direct,
		TryPropagationOnFail: true,
		CreatedAt:            netTime.Now(),
	}
	if len(fields) > 0 {
		msg.Fields = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			msg.Fields[k] = v
		}
	}

	return msg, nil
}

// Send submits the message for asynchronous delivery. A nil return means
// the message was accepted into the outbound queue, not that it was
// delivered; poll OutboundStatus for the outcome. A message can be
// submitted once.
func (m *Manager) Send(msg *Message) error {
	if msg == nil {
		return errors.WithMessage(ErrSendFailed, "nil message")
	}

	m.mux.Lock()
	registered := m.delivery != nil
	m.mux.Unlock()
	if !registered {
		return ErrRouterNotReady
	}

	if !msg.advance(Queued) {
		return errors.WithMessagef(ErrSendFailed,
			"message %s is already %s", msg.ID, msg.State())
	}

	m.pendingMux.Lock()
	m.pending[msg.ID] = msg
	m.pendingMux.Unlock()

	select {
	case m.outbound <- msg:
	default:
		msg.advance(Failed)
		return errors.WithMessage(ErrSendFailed, "outbound queue is full")
	}

	m.echoLocal(msg)

	jww.DEBUG.Printf("[MSG] Queued message %s for %s",
		msg.ID, msg.To.ShortString())
	return nil
}

// echoLocal projects a just-submitted message into the record list so
// consumers see their own outbound traffic inline with received messages.
func (m *Manager) echoLocal(msg *Message) {
	rec := InboundRecord{
		MessageID:  msg.ID,
		Sender:     msg.To,
		SenderName: m.senderName(msg.To),
		Title:      msg.Title,
		Content:    string(msg.Content),
		SentBySelf: true,
		ReceivedAt: netTime.Now(),
	}

	select {
	case m.inbound <- rec:
	default:
		jww.WARN.Printf("[MSG] Dispatch queue full; dropping the local "+
			"echo of %s", msg.ID)
	}
}

// OutboundStatus reports the delivery state of a previously submitted
// message. The second return is false for IDs never submitted here.
func (m *Manager) OutboundStatus(id uuid.UUID) (MessageState, bool) {
	m.pendingMux.RLock()
	msg, ok := m.pending[id]
	m.pendingMux.RUnlock()

	if !ok {
		return Generating, false
	}
	return msg.State(), true
}

// RegisterDeliveryCallback sets the single inbound consumer. Registering a
// new callback replaces, and discards, the previous one.
func (m *Manager) RegisterDeliveryCallback(f func(InboundRecord)) {
	m.cbMux.Lock()
	m.callback = f
	m.cbMux.Unlock()
}

// Announce broadcasts the local delivery destination with the display name
// attached as app data. Announces inside the cooldown window are dropped.
func (m *Manager) Announce() error {
	m.mux.Lock()
	if m.delivery == nil {
		m.mux.Unlock()
		return ErrRouterNotReady
	}

	now := netTime.Now()
	if !m.lastAnnounce.IsZero() &&
		now.Sub(m.lastAnnounce) < m.params.AnnounceCooldown {
		m.mux.Unlock()
		jww.DEBUG.Printf("[MSG] Suppressing announce inside the %s cooldown",
			m.params.AnnounceCooldown)
		return nil
	}
	m.lastAnnounce = now
	m.mux.Unlock()

	return m.session.Announce(mesh.BuildAnnounceData(m.displayName))
}

// Stats reports queue depths and the smoothed delivery rate.
func (m *Manager) Stats() RouterStats {
	m.rateMux.Lock()
	rate := m.deliveryRate
	m.rateMux.Unlock()

	return RouterStats{
		OutboundQueueDepth: len(m.outbound),
		InboundQueueDepth:  len(m.inbound),
		DeliveryRate:       rate,
	}
}

// Records returns a newest-first snapshot of the message history.
func (m *Manager) Records() []InboundRecord {
	m.recordsMux.RLock()
	defer m.recordsMux.RUnlock()

	records := make([]InboundRecord, len(m.records))
	copy(records, m.records)
	return records
}

// noteDelivery folds a completed delivery into the messages-per-minute
// estimate.
func (m *Manager) noteDelivery() {
	m.rateMux.Lock()
	defer m.rateMux.Unlock()

	now := netTime.Now()
	elapsed := now.Sub(m.lastDelivery)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}

	instant := float64(time.Minute) / float64(elapsed)
	m.deliveryRate = deliveryRateSmoothing*m.deliveryRate +
		(1-deliveryRateSmoothing)*instant
	m.lastDelivery = now
}

// StartProcesses starts the outbound worker and the inbound dispatcher.
func (m *Manager) StartProcesses() (stoppable.Stoppable, error) {
	multi := stoppable.NewMulti("messaging")

	outboundStop := stoppable.NewSingle("outboundWorker")
	go m.outboundWorker(outboundStop)
	multi.Add(outboundStop)

	dispatchStop := stoppable.NewSingle("deliveryDispatcher")
	go m.dispatcher(dispatchStop)
	multi.Add(dispatchStop)

	return multi, nil
}
