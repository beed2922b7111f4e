////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package streaming moves real-time media frames between sources and sinks.
// Pipelines pair one source with one sink on a fixed frame clock and live
// in a registry owned by the manager; telephones compose two pipelines
// with call signaling into a bidirectional voice session. Frames and
// signals ride their own destination aspects on the mesh.
package streaming

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/catalog"
	"gitlab.com/weftnet/client/identity"
	"gitlab.com/weftnet/client/mesh"
	"gitlab.com/weftnet/client/stoppable"
)

// Error messages.
var (
	// ErrUnsupportedKind is returned when a source or sink kind is outside
	// the known set.
	ErrUnsupportedKind = errors.New("unsupported source or sink kind")

	// ErrNotFound is returned for operations naming a pipeline that is not
	// in the registry, including one already closed.
	ErrNotFound = errors.New("no such pipeline")

	// ErrSessionFailed is returned when a telephone call cannot be set up
	// or is refused. A failed setup leaves nothing registered.
	ErrSessionFailed = errors.New("call setup failed")
)

// signalQueueSize bounds call signals waiting for the dispatcher.
const signalQueueSize = 16

// Session is the subset of the mesh session the streaming manager needs.
// *mesh.Session satisfies it.
type Session interface {
	RegisterDestination(dst *mesh.Destination) (mesh.Registration, error)
	ResolveIdentity(target address.Hash) (identity.Public, bool)
	DeliverDirect(target address.Hash, payload []byte) error
}

// Manager owns the pipeline registry and the call table. All lifecycle
// mutations go through the manager; readers get snapshots.
type Manager struct {
	session   Session
	params    Params
	localHash address.Hash

	mux       sync.RWMutex
	pipelines map[PipelineID]*Pipeline
	calls     map[uuid.UUID]*Telephone

	routesMux sync.RWMutex
	routes    map[address.Hash]*remoteSource

	incomingMux    sync.Mutex
	incoming       func(*Telephone)
	incomingParams CallParams

	signals chan signal

	streamDest *mesh.Destination
	telDest    *mesh.Destination
}

// NewManager registers the streaming and telephone destinations for the
// local identity and returns a manager with an empty registry. Call
// StartProcesses to begin handling call signals.
func NewManager(
	session Session, localHash address.Hash, params Params) (*Manager, error) {
	m := &Manager{
		session:   session,
		params:    params,
		localHash: localHash,
		pipelines: make(map[PipelineID]*Pipeline),
		calls:     make(map[uuid.UUID]*Telephone),
		routes:    make(map[address.Hash]*remoteSource),
		signals:   make(chan signal, signalQueueSize),
	}

	m.streamDest = mesh.NewIn(localHash, catalog.Streaming, &frameHandler{m})
	if err := m.register(m.streamDest); err != nil {
		return nil, err
	}

	m.telDest = mesh.NewIn(localHash, catalog.Telephone, &signalHandler{m})
	if err := m.register(m.telDest); err != nil {
		return nil, err
	}

	jww.INFO.Printf("[STRM] Streaming up; frames on %s, signaling on %s",
		m.streamDest.Hash().ShortString(), m.telDest.Hash().ShortString())
	return m, nil
}

func (m *Manager) register(dst *mesh.Destination) error {
	reg, err := m.session.RegisterDestination(dst)
	if err != nil {
		return errors.WithMessagef(err,
			"failed to register the %s destination", dst.Hash().ShortString())
	}
	if reg == nil {
		jww.WARN.Printf("[STRM] Destination %s already claimed; continuing "+
			"without a registration handle", dst.Hash().ShortString())
	}
	return nil
}

// CreateSource builds a source of the given kind. Unknown kinds fail with
// ErrUnsupportedKind.
func (m *Manager) CreateSource(kind SourceKind, p SourceParams) (Source, error) {
	switch kind {
	case SourceLocal:
		device := p.Device
		if device == nil {
			device = silenceDevice{size: pcmFrameBytes(m.params.FrameDuration)}
		}
		return &localSource{device: device}, nil

	case SourceRemote:
		if p.Peer.IsZero() {
			return nil, errors.New("remote source requires a peer")
		}
		return m.attachRoute(p.Peer)

	case SourceFile:
		if p.Path == "" {
			return nil, errors.New("file source requires a path")
		}
		return newFileSource(p.Path)

	default:
		return nil, errors.WithMessagef(ErrUnsupportedKind,
			"source kind %d", kind)
	}
}

// CreateSink builds a sink of the given kind. Unknown kinds fail with
// ErrUnsupportedKind.
func (m *Manager) CreateSink(kind SinkKind, p SinkParams) (Sink, error) {
	switch kind {
	case SinkLocal:
		device := p.Device
		if device == nil {
			device = discardDevice{}
		}
		return &localSink{device: device}, nil

	case SinkRemote:
		if p.Peer.IsZero() {
			return nil, errors.New("remote sink requires a peer")
		}
		return &remoteSink{
			session: m.session,
			local:   m.localHash,
			dest:    mesh.DeriveHash(p.Peer, catalog.Streaming),
		}, nil

	case SinkNull:
		return nullSink{}, nil

	default:
		return nil, errors.WithMessagef(ErrUnsupportedKind,
			"sink kind %d", kind)
	}
}

// attachRoute claims the inbound frame route for the peer. One remote
// source per peer: frames carry only the sender hash, so two sources for
// the same peer could not be told apart.
func (m *Manager) attachRoute(peer address.Hash) (*remoteSource, error) {
	m.routesMux.Lock()
	defer m.routesMux.Unlock()

	if _, exists := m.routes[peer]; exists {
		return nil, errors.Errorf(
			"peer %s already has a stream route", peer.ShortString())
	}

	var src *remoteSource
	src = newRemoteSource(peer, m.params.FrameQueueSize, func() {
		m.detachRoute(peer, src)
	})
	m.routes[peer] = src
	return src, nil
}

func (m *Manager) detachRoute(peer address.Hash, src *remoteSource) {
	m.routesMux.Lock()
	defer m.routesMux.Unlock()
	if m.routes[peer] == src {
		delete(m.routes, peer)
	}
}

// CreatePipeline registers a pipeline over the given endpoints. It is
// created stopped; StartPipeline begins moving frames.
func (m *Manager) CreatePipeline(
	source Source, sink Sink, params Params) (PipelineID, error) {
	if source == nil || sink == nil {
		return PipelineID{}, errors.New(
			"a pipeline requires both a source and a sink")
	}

	p, err := newPipeline(source, sink, params)
	if err != nil {
		return PipelineID{}, err
	}

	m.mux.Lock()
	m.pipelines[p.id] = p
	m.mux.Unlock()

	jww.INFO.Printf("[STRM] Created pipeline %s", p.id)
	return p.id, nil
}

// StartPipeline starts the pipeline's pump. Starting a running pipeline is
// a no-op success.
func (m *Manager) StartPipeline(id PipelineID) error {
	p, err := m.pipeline(id)
	if err != nil {
		return err
	}
	return p.start()
}

// StopPipeline stops the pipeline and waits until no more frames move.
// Stopping an already-stopped pipeline is a no-op success.
func (m *Manager) StopPipeline(id PipelineID) error {
	p, err := m.pipeline(id)
	if err != nil {
		return err
	}
	return p.halt()
}

// ClosePipeline stops the pipeline if it is running, removes it from the
// registry, and releases its endpoints. Closing an unknown ID fails with
// ErrNotFound so duplicate cleanup is detectable.
func (m *Manager) ClosePipeline(id PipelineID) error {
	m.mux.Lock()
	p, ok := m.pipelines[id]
	if !ok {
		m.mux.Unlock()
		return errors.WithMessagef(ErrNotFound, "pipeline %s", id)
	}
	delete(m.pipelines, id)
	m.mux.Unlock()

	haltErr := p.halt()

	if err := p.source.Close(); err != nil {
		jww.WARN.Printf("[STRM] Failed to close pipeline %s source: %+v",
			id, err)
	}
	if err := p.sink.Close(); err != nil {
		jww.WARN.Printf("[STRM] Failed to close pipeline %s sink: %+v",
			id, err)
	}

	jww.INFO.Printf("[STRM] Closed pipeline %s", id)
	return haltErr
}

// PipelineStats returns a live snapshot of the pipeline's stats.
func (m *Manager) PipelineStats(id PipelineID) (Stats, error) {
	p, err := m.pipeline(id)
	if err != nil {
		return Stats{}, err
	}
	return p.stats(), nil
}

// ListActive returns the IDs of every pipeline currently moving frames.
func (m *Manager) ListActive() []PipelineID {
	m.mux.RLock()
	defer m.mux.RUnlock()

	var active []PipelineID
	for id, p := range m.pipelines {
		if p.stats().Active {
			active = append(active, id)
		}
	}
	return active
}

// CreateMixer returns a mixer that sums several sources into one. The
// mixer is a composable source; it is not tracked in the registry.
func (m *Manager) CreateMixer(params Params) *Mixer {
	return newMixer(params)
}

// SetIncomingCallHandler registers the handler invoked when a peer calls.
// The handler receives a ringing Telephone and decides whether to Answer
// or Hangup; it runs on the signal dispatcher goroutine and must not
// block. While no handler is set, incoming calls are declined.
func (m *Manager) SetIncomingCallHandler(p CallParams, f func(*Telephone)) {
	m.incomingMux.Lock()
	defer m.incomingMux.Unlock()
	m.incomingParams = p
	m.incoming = f
}

func (m *Manager) pipeline(id PipelineID) (*Pipeline, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	p, ok := m.pipelines[id]
	if !ok {
		return nil, errors.WithMessagef(ErrNotFound, "pipeline %s", id)
	}
	return p, nil
}

// StartProcesses starts the call signal dispatcher.
func (m *Manager) StartProcesses() (stoppable.Stoppable, error) {
	multi := stoppable.NewMulti("streaming")

	signalStop := stoppable.NewSingle("signalDispatcher")
	go m.signalDispatcher(signalStop)
	multi.Add(signalStop)

	return multi, nil
}

// frameHandler receives media frames on the streaming destination. Deliver
// runs on the substrate's goroutine, so it only unpacks and routes.
type frameHandler struct {
	m *Manager
}

func (h *frameHandler) Deliver(d mesh.Delivery) {
	h.m.routeFrame(d.Payload)
}

func (h *frameHandler) Name() string {
	return "streaming"
}

// routeFrame hands an inbound frame to the remote source claimed for its
// sender. Frames with no claimed route are dropped.
func (m *Manager) routeFrame(payload []byte) {
	sender, frame, err := unpackFrame(payload)
	if err != nil {
		jww.WARN.Printf("[STRM] Dropping malformed %d-byte frame: %+v",
			len(payload), err)
		return
	}

	m.routesMux.RLock()
	src, ok := m.routes[sender]
	m.routesMux.RUnlock()
	if !ok {
		jww.DEBUG.Printf("[STRM] No route for frames from %s; dropping",
			sender.ShortString())
		return
	}

	src.push(frame)
}

// signalHandler receives call signaling on the telephone destination.
// Deliver runs on the substrate's goroutine, so it only unpacks and
// queues; the signal dispatcher advances call state.
type signalHandler struct {
	m *Manager
}

func (h *signalHandler) Deliver(d mesh.Delivery) {
	sig, err := unpackSignal(d.Payload)
	if err != nil {
		jww.WARN.Printf("[STRM] Dropping malformed call signal: %+v", err)
		return
	}

	select {
	case h.m.signals <- sig:
	default:
		jww.WARN.Printf("[STRM] Signal queue full; dropping %s from %s",
			sig.kind, sig.from.ShortString())
	}
}

func (h *signalHandler) Name() string {
	return "telephone"
}

// signalDispatcher drains queued call signals off the substrate's
// goroutine.
func (m *Manager) signalDispatcher(stop *stoppable.Single) {
	jww.INFO.Printf("[STRM] Starting call signal dispatcher")

	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Printf("[STRM] Stopping call signal dispatcher: " +
				"stoppable triggered")
			stop.ToStopped()
			return

		case sig := <-m.signals:
			m.handleSignal(sig)
		}
	}
}
