////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package streaming

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/vmihailenco/msgpack/v5"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/catalog"
	"gitlab.com/weftnet/client/mesh"
)

// CallState tracks a telephone through its call.
type CallState uint8

const (
	// Idle - created but signaling has not begun.
	Idle CallState = iota

	// Ringing - an invite is in flight (caller side) or awaiting an
	// answer decision (callee side).
	Ringing

	// Established - both media pipelines are running.
	Established

	// Ended - the call is over and its pipelines are released.
	Ended
)

// String adheres to the fmt.Stringer interface.
func (cs CallState) String() string {
	switch cs {
	case Idle:
		return "idle"
	case Ringing:
		return "ringing"
	case Established:
		return "established"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("unknown call state %d", cs)
	}
}

// signalKind discriminates call signals on the telephone aspect.
type signalKind uint8

const (
	signalInvite signalKind = iota
	signalAnswer
	signalHangup
)

// String adheres to the fmt.Stringer interface.
func (sk signalKind) String() string {
	switch sk {
	case signalInvite:
		return "invite"
	case signalAnswer:
		return "answer"
	case signalHangup:
		return "hangup"
	default:
		return fmt.Sprintf("unknown signal %d", sk)
	}
}

// signalDisk is the wire form of one call signal.
type signalDisk struct {
	Kind uint8  `msgpack:"kind"`
	Call []byte `msgpack:"call"`
	From []byte `msgpack:"from"`
}

// signal is one decoded call signal.
type signal struct {
	kind signalKind
	call uuid.UUID
	from address.Hash
}

func packSignal(
	kind signalKind, call uuid.UUID, from address.Hash) ([]byte, error) {
	data, err := msgpack.Marshal(&signalDisk{
		Kind: uint8(kind),
		Call: call[:],
		From: from.Bytes(),
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to marshal call signal")
	}
	return data, nil
}

func unpackSignal(data []byte) (signal, error) {
	var disk signalDisk
	if err := msgpack.Unmarshal(data, &disk); err != nil {
		return signal{}, errors.WithMessage(
			err, "failed to unmarshal call signal")
	}

	if disk.Kind > uint8(signalHangup) {
		return signal{}, errors.Errorf("unknown signal kind %d", disk.Kind)
	}
	call, err := uuid.FromBytes(disk.Call)
	if err != nil {
		return signal{}, errors.WithMessage(err, "call ID")
	}
	from, err := address.Unmarshal(disk.From)
	if err != nil {
		return signal{}, errors.WithMessage(err, "caller address")
	}

	return signal{kind: signalKind(disk.Kind), call: call, from: from}, nil
}

// CallParams configure the media endpoints of one call.
type CallParams struct {
	// Capture feeds the outbound pipeline. Nil captures silence.
	Capture CaptureDevice

	// Playback consumes the inbound pipeline. Nil discards.
	Playback PlaybackDevice
}

// Telephone is one bidirectional voice call: an outbound capture-to-peer
// pipeline, an inbound peer-to-playback pipeline, and signaling state,
// exposed as a single handle.
type Telephone struct {
	id     uuid.UUID
	remote address.Hash
	m      *Manager

	mux      sync.Mutex
	state    CallState
	onChange func(CallState)

	outbound PipelineID
	inbound  PipelineID

	answered chan struct{}
	ended    chan struct{}
	endOnce  sync.Once
}

func (m *Manager) newTelephone(id uuid.UUID, remote address.Hash) *Telephone {
	return &Telephone{
		id:       id,
		remote:   remote,
		m:        m,
		state:    Idle,
		answered: make(chan struct{}, 1),
		ended:    make(chan struct{}),
	}
}

// ID returns the call's unique identifier, shared by both sides.
func (t *Telephone) ID() uuid.UUID {
	return t.id
}

// Remote returns the identity hash of the far side.
func (t *Telephone) Remote() address.Hash {
	return t.remote
}

// CallState returns the current call state.
func (t *Telephone) CallState() CallState {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.state
}

// OnStateChange registers a callback fired on every state transition,
// replacing any previous callback. The callback runs outside the
// telephone's lock.
func (t *Telephone) OnStateChange(f func(CallState)) {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.onChange = f
}

func (t *Telephone) setState(state CallState) {
	t.mux.Lock()
	if t.state == state {
		t.mux.Unlock()
		return
	}
	t.state = state
	cb := t.onChange
	t.mux.Unlock()

	jww.INFO.Printf("[STRM] Call %s with %s is now %s",
		t.id, t.remote.ShortString(), state)
	if cb != nil {
		cb(state)
	}
}

// Answer accepts a ringing incoming call: it signals the caller and starts
// both media pipelines. Answering a call in any other state fails.
func (t *Telephone) Answer() error {
	t.mux.Lock()
	state := t.state
	t.mux.Unlock()
	if state != Ringing {
		return errors.Errorf("cannot answer a call that is %s", state)
	}

	if err := t.m.sendSignal(signalAnswer, t.id, t.remote); err != nil {
		t.m.teardownCall(t, false)
		return errors.WithMessagef(ErrSessionFailed, "answer: %v", err)
	}
	if err := t.m.startCallPipelines(t); err != nil {
		t.m.teardownCall(t, true)
		return errors.WithMessagef(ErrSessionFailed, "media start: %v", err)
	}

	t.setState(Established)
	return nil
}

// Hangup ends the call from either side and releases both pipelines.
// Hanging up an already-ended call is a no-op.
func (t *Telephone) Hangup() {
	t.m.teardownCall(t, true)
}

// CreateTelephone places a call to the remote identity and blocks until it
// is answered, refused, or times out. On success both media pipelines are
// registered and running; on failure nothing remains registered and the
// error wraps ErrSessionFailed.
func (m *Manager) CreateTelephone(
	remote address.Hash, p CallParams) (*Telephone, error) {
	if _, ok := m.session.ResolveIdentity(remote); !ok {
		return nil, errors.WithMessagef(ErrSessionFailed,
			"no identity known for %s", remote.ShortString())
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithMessage(err, "call ID")
	}

	tel := m.newTelephone(id, remote)
	if err = m.buildCallPipelines(tel, p); err != nil {
		return nil, errors.WithMessagef(ErrSessionFailed,
			"media setup: %v", err)
	}

	// The call table entry must exist before the invite goes out so the
	// answer has somewhere to land.
	m.mux.Lock()
	m.calls[id] = tel
	m.mux.Unlock()

	if err = m.sendSignal(signalInvite, id, remote); err != nil {
		m.teardownCall(tel, false)
		return nil, errors.WithMessagef(ErrSessionFailed, "invite: %v", err)
	}

	tel.setState(Ringing)
	jww.INFO.Printf("[STRM] Calling %s (call %s)", remote.ShortString(), id)

	select {
	case <-tel.answered:
		if err = m.startCallPipelines(tel); err != nil {
			m.teardownCall(tel, true)
			return nil, errors.WithMessagef(ErrSessionFailed,
				"media start: %v", err)
		}
		tel.setState(Established)
		return tel, nil

	case <-tel.ended:
		return nil, errors.WithMessagef(ErrSessionFailed,
			"%s declined the call", remote.ShortString())

	case <-time.After(m.params.AnswerTimeout):
		m.teardownCall(tel, true)
		return nil, errors.WithMessagef(ErrSessionFailed,
			"%s did not answer within %s",
			remote.ShortString(), m.params.AnswerTimeout)
	}
}

func (m *Manager) sendSignal(
	kind signalKind, call uuid.UUID, remote address.Hash) error {
	payload, err := packSignal(kind, call, m.localHash)
	if err != nil {
		return err
	}
	return m.session.DeliverDirect(
		mesh.DeriveHash(remote, catalog.Telephone), payload)
}

// buildCallPipelines registers the two media pipelines of a call without
// starting them. On any failure every partial piece is unwound.
func (m *Manager) buildCallPipelines(tel *Telephone, p CallParams) error {
	capture, err := m.CreateSource(SourceLocal, SourceParams{Device: p.Capture})
	if err != nil {
		return err
	}
	toPeer, err := m.CreateSink(SinkRemote, SinkParams{Peer: tel.remote})
	if err != nil {
		capture.Close()
		return err
	}
	outbound, err := m.CreatePipeline(capture, toPeer, m.params)
	if err != nil {
		capture.Close()
		toPeer.Close()
		return err
	}

	fromPeer, err := m.CreateSource(SourceRemote, SourceParams{Peer: tel.remote})
	if err != nil {
		m.ClosePipeline(outbound)
		return err
	}
	playback, err := m.CreateSink(SinkLocal, SinkParams{Device: p.Playback})
	if err != nil {
		fromPeer.Close()
		m.ClosePipeline(outbound)
		return err
	}
	inbound, err := m.CreatePipeline(fromPeer, playback, m.params)
	if err != nil {
		fromPeer.Close()
		playback.Close()
		m.ClosePipeline(outbound)
		return err
	}

	tel.outbound = outbound
	tel.inbound = inbound
	return nil
}

// startCallPipelines starts both directions; if the second fails, the
// first is stopped again.
func (m *Manager) startCallPipelines(tel *Telephone) error {
	if err := m.StartPipeline(tel.outbound); err != nil {
		return err
	}
	if err := m.StartPipeline(tel.inbound); err != nil {
		if stopErr := m.StopPipeline(tel.outbound); stopErr != nil {
			jww.WARN.Printf("[STRM] Failed to stop half-started call %s: %+v",
				tel.id, stopErr)
		}
		return err
	}
	return nil
}

// teardownCall removes the call and its pipelines, optionally telling the
// far side. Safe to call repeatedly and from any state.
func (m *Manager) teardownCall(tel *Telephone, notifyRemote bool) {
	tel.endOnce.Do(func() {
		if notifyRemote {
			if err := m.sendSignal(signalHangup, tel.id, tel.remote); err != nil {
				jww.DEBUG.Printf("[STRM] Hangup signal for call %s failed: %+v",
					tel.id, err)
			}
		}

		m.mux.Lock()
		delete(m.calls, tel.id)
		m.mux.Unlock()

		for _, id := range []PipelineID{tel.outbound, tel.inbound} {
			if id == (PipelineID{}) {
				continue
			}
			err := m.ClosePipeline(id)
			if err != nil && !errors.Is(err, ErrNotFound) {
				jww.WARN.Printf("[STRM] Failed to close call %s pipeline "+
					"%s: %+v", tel.id, id, err)
			}
		}

		close(tel.ended)
		tel.setState(Ended)
	})
}

// handleSignal advances the call table. It runs on the signal dispatcher
// goroutine.
func (m *Manager) handleSignal(sig signal) {
	switch sig.kind {
	case signalInvite:
		m.handleInvite(sig)

	case signalAnswer:
		tel, ok := m.call(sig.call)
		if !ok {
			jww.DEBUG.Printf("[STRM] Answer for unknown call %s; ignoring",
				sig.call)
			return
		}
		select {
		case tel.answered <- struct{}{}:
		default:
		}

	case signalHangup:
		tel, ok := m.call(sig.call)
		if !ok {
			jww.DEBUG.Printf("[STRM] Hangup for unknown call %s; ignoring",
				sig.call)
			return
		}
		jww.INFO.Printf("[STRM] %s hung up call %s",
			sig.from.ShortString(), sig.call)
		m.teardownCall(tel, false)
	}
}

// handleInvite rings a new incoming call. With no handler registered, or
// when the media pipelines cannot be built, the call is declined.
func (m *Manager) handleInvite(sig signal) {
	m.incomingMux.Lock()
	handler := m.incoming
	params := m.incomingParams
	m.incomingMux.Unlock()

	if handler == nil {
		jww.INFO.Printf("[STRM] Declining call %s from %s: no incoming "+
			"call handler", sig.call, sig.from.ShortString())
		m.declineCall(sig)
		return
	}

	if _, exists := m.call(sig.call); exists {
		jww.DEBUG.Printf("[STRM] Duplicate invite for call %s; ignoring",
			sig.call)
		return
	}

	tel := m.newTelephone(sig.call, sig.from)
	if err := m.buildCallPipelines(tel, params); err != nil {
		jww.WARN.Printf("[STRM] Declining call %s from %s: %+v",
			sig.call, sig.from.ShortString(), err)
		m.declineCall(sig)
		return
	}

	m.mux.Lock()
	m.calls[sig.call] = tel
	m.mux.Unlock()

	tel.setState(Ringing)
	handler(tel)

	// Unanswered calls decline themselves when the ring lapses.
	time.AfterFunc(m.params.RingTimeout, func() {
		if tel.CallState() == Ringing {
			jww.INFO.Printf("[STRM] Call %s from %s rang out",
				sig.call, sig.from.ShortString())
			m.teardownCall(tel, true)
		}
	})
}

func (m *Manager) call(id uuid.UUID) (*Telephone, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	tel, ok := m.calls[id]
	return tel, ok
}

func (m *Manager) declineCall(sig signal) {
	if err := m.sendSignal(signalHangup, sig.call, sig.from); err != nil {
		jww.DEBUG.Printf("[STRM] Failed to decline call %s: %+v",
			sig.call, err)
	}
}
