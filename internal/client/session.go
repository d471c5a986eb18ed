package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
)

// Role is the negotiation role. The participant already present in the
// room initiates toward the newcomer; the newcomer responds. Structural
// glare avoidance, no priority comparison needed.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

type State int32

const (
	StateIdle State = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNoVideoSender = errors.New("no outgoing video sender")
)

// Sender delivers an envelope to the relay.
type Sender interface {
	Send(core.Envelope) error
}

// PeerSession drives the one-to-one negotiation with a single remote
// participant. Closed is terminal; a rejoining remote id gets a fresh
// session, never a resurrected one.
type PeerSession interface {
	RemoteID() string
	Role() Role
	State() State
	HandleAnswer(sdp json.RawMessage) error
	HandleCandidate(candidate json.RawMessage) error
	// ReplaceOutgoingVideo swaps the source feeding the established video
	// sender in place, without renegotiation.
	ReplaceOutgoingVideo(t *LocalTrack) error
	Close()
}

type sessionConfig struct {
	remoteID   string
	role       Role
	offer      json.RawMessage // responder only
	iceServers []string
	tracks     []*LocalTrack
	send       Sender

	onRemoteTrack func(remoteID string, track *webrtc.TrackRemote)
	onClosed      func(remoteID string)
}

type peerSession struct {
	remoteID string
	role     Role
	state    int32

	mu          sync.Mutex
	pc          *webrtc.PeerConnection
	videoSender *webrtc.RTPSender
	pending     []webrtc.ICECandidateInit
	remoteSet   bool

	send          Sender
	onRemoteTrack func(remoteID string, track *webrtc.TrackRemote)
	onClosed      func(remoteID string)
}

func newPeerSession(cfg sessionConfig) (*peerSession, error) {
	var pcCfg webrtc.Configuration
	if len(cfg.iceServers) > 0 {
		pcCfg.ICEServers = []webrtc.ICEServer{{URLs: cfg.iceServers}}
	}
	pc, err := webrtc.NewPeerConnection(pcCfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	s := &peerSession{
		remoteID:      cfg.remoteID,
		role:          cfg.role,
		state:         int32(StateIdle),
		pc:            pc,
		send:          cfg.send,
		onRemoteTrack: cfg.onRemoteTrack,
		onClosed:      cfg.onClosed,
	}

	for _, t := range cfg.tracks {
		sender, err := pc.AddTrack(t.Track())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("add local track: %w", err)
		}
		if t.Kind() == TrackKindVideo {
			s.videoSender = sender
		}
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		data, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		if err := s.send.Send(core.Envelope{
			Kind:      core.KindICECandidate,
			Target:    s.remoteID,
			Candidate: data,
		}); err != nil {
			log.Debug().Err(err).Str("module", "client.session").Str("remote", s.remoteID).Msg("candidate send dropped")
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if !s.markConnected() {
			return
		}
		log.Info().Str("module", "client.session").Str("remote", s.remoteID).Str("kind", track.Kind().String()).Msg("remote track arrived")
		if s.onRemoteTrack != nil {
			s.onRemoteTrack(s.remoteID, track)
		}
	})

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Info().Str("module", "client.session").Str("remote", s.remoteID).Str("peer_state", st.String()).Msg("peer state")
		if st == webrtc.PeerConnectionStateFailed || st == webrtc.PeerConnectionStateClosed {
			s.Close()
		}
	})

	switch cfg.role {
	case RoleInitiator:
		err = s.startAsInitiator()
	case RoleResponder:
		err = s.startAsResponder(cfg.offer)
	default:
		err = fmt.Errorf("unknown role %q", cfg.role)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *peerSession) RemoteID() string { return s.remoteID }
func (s *peerSession) Role() Role       { return s.role }

func (s *peerSession) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// markConnected moves the session to Connected unless it already closed.
// A track callback racing Close must never overwrite the terminal state.
func (s *peerSession) markConnected() bool {
	for {
		st := atomic.LoadInt32(&s.state)
		switch State(st) {
		case StateClosed:
			return false
		case StateConnected:
			return true
		}
		if atomic.CompareAndSwapInt32(&s.state, st, int32(StateConnected)) {
			return true
		}
	}
}

func (s *peerSession) startAsInitiator() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	data, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	atomic.StoreInt32(&s.state, int32(StateNegotiating))
	return s.send.Send(core.Envelope{
		Kind:   core.KindOffer,
		Target: s.remoteID,
		SDP:    data,
	})
}

func (s *peerSession) startAsResponder(offer json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(offer, &desc); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.remoteSet = true
	s.flushPendingLocked()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	atomic.StoreInt32(&s.state, int32(StateNegotiating))
	return s.send.Send(core.Envelope{
		Kind:   core.KindAnswer,
		Target: s.remoteID,
		SDP:    data,
	})
}

func (s *peerSession) HandleAnswer(sdp json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &desc); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.remoteSet = true
	s.flushPendingLocked()
	return nil
}

func (s *peerSession) HandleCandidate(candidate json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &cand); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	// Candidates may trickle in before the remote description; queue them.
	if !s.remoteSet {
		s.pending = append(s.pending, cand)
		return nil
	}
	return s.pc.AddICECandidate(cand)
}

func (s *peerSession) flushPendingLocked() {
	for _, cand := range s.pending {
		if err := s.pc.AddICECandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "client.session").Str("remote", s.remoteID).Msg("queued candidate rejected")
		}
	}
	s.pending = nil
}

func (s *peerSession) ReplaceOutgoingVideo(t *LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if s.videoSender == nil {
		return ErrNoVideoSender
	}
	if err := s.videoSender.ReplaceTrack(t.Track()); err != nil {
		return fmt.Errorf("replace track: %w", err)
	}
	return nil
}

// Close is idempotent and terminal. The orchestrator is notified
// asynchronously so close can be triggered from any callback.
func (s *peerSession) Close() {
	if State(atomic.SwapInt32(&s.state, int32(StateClosed))) == StateClosed {
		return
	}
	if err := s.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "client.session").Str("remote", s.remoteID).Msg("close error")
	} else {
		log.Info().Str("module", "client.session").Str("remote", s.remoteID).Msg("closed")
	}
	if s.onClosed != nil {
		go s.onClosed(s.remoteID)
	}
}
