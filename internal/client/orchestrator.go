// Package client is the peer-session SDK: it talks to the relay over a
// websocket and drives one negotiation state machine per remote
// participant in the room.
package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

// Events is the presentation-layer surface. All callbacks are optional.
type Events struct {
	OnRemoteTrack  func(remoteID string, track *webrtc.TrackRemote)
	OnMemberJoined func(remoteID string)
	OnMemberLeft   func(remoteID string)
	OnScreenShare  func(remoteID string, active bool)
}

// SessionFactory builds a peer session. Swappable in tests.
type SessionFactory func(remoteID string, role Role, offer json.RawMessage) (PeerSession, error)

// Orchestrator owns the remote-id -> session map for one room membership.
// Messages for the same remote id are applied in arrival order; sessions
// for different ids are independent.
type Orchestrator struct {
	send       Sender
	events     Events
	iceServers []string
	media      *MediaController
	newSession SessionFactory

	mu       sync.Mutex
	selfID   string
	roomID   domain.RoomID
	sessions map[string]PeerSession
}

func NewOrchestrator(send Sender, device CaptureDevice, iceServers []string, events Events) *Orchestrator {
	o := &Orchestrator{
		send:       send,
		events:     events,
		iceServers: iceServers,
		sessions:   make(map[string]PeerSession),
	}
	o.newSession = o.pionSession
	o.media = newMediaController(device, o.liveSessions, o.announce)
	return o
}

// Media exposes the local media controller bound to this membership.
func (o *Orchestrator) Media() *MediaController { return o.media }

func (o *Orchestrator) SelfID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selfID
}

// JoinRoom announces this client to the room. Discovery of the existing
// members arrives as inbound offers; newcomers after us arrive as
// member-joined notifications.
func (o *Orchestrator) JoinRoom(room domain.RoomID) error {
	o.mu.Lock()
	o.roomID = room
	o.mu.Unlock()
	return o.send.Send(core.Envelope{Kind: core.KindJoinRoom, RoomID: room})
}

// Run consumes the signaling stream until ctx is done or the stream ends.
func (o *Orchestrator) Run(ctx context.Context, incoming <-chan core.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-incoming:
			if !ok {
				return
			}
			o.HandleMessage(env)
		}
	}
}

// HandleMessage is the single entry point for inbound signaling.
func (o *Orchestrator) HandleMessage(env core.Envelope) {
	switch env.Kind {
	case core.KindWelcome:
		o.mu.Lock()
		o.selfID = env.MemberID
		o.mu.Unlock()
		log.Info().Str("module", "client.orch").Str("self", env.MemberID).Msg("welcome")

	case core.KindMemberJoined:
		if env.MemberID == "" || env.MemberID == o.SelfID() {
			return
		}
		if o.events.OnMemberJoined != nil {
			o.events.OnMemberJoined(env.MemberID)
		}
		// We were here first, so we initiate.
		o.ensureSession(env.MemberID, RoleInitiator, nil)

	case core.KindOffer:
		o.ensureSession(env.Sender, RoleResponder, env.SDP)

	case core.KindAnswer:
		s := o.session(env.Sender)
		if s == nil {
			log.Debug().Str("module", "client.orch").Str("remote", env.Sender).Msg("answer for absent session dropped")
			return
		}
		if err := s.HandleAnswer(env.SDP); err != nil {
			log.Error().Err(err).Str("module", "client.orch").Str("remote", env.Sender).Msg("answer failed, closing session")
			o.dropSession(env.Sender)
		}

	case core.KindICECandidate:
		s := o.session(env.Sender)
		if s == nil {
			log.Debug().Str("module", "client.orch").Str("remote", env.Sender).Msg("candidate for absent session dropped")
			return
		}
		if err := s.HandleCandidate(env.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "client.orch").Str("remote", env.Sender).Msg("candidate rejected")
		}

	case core.KindMemberLeft:
		if s := o.takeSession(env.MemberID); s != nil {
			s.Close()
		}
		if o.events.OnMemberLeft != nil {
			o.events.OnMemberLeft(env.MemberID)
		}

	case core.KindScreenShareStarted:
		if o.events.OnScreenShare != nil {
			o.events.OnScreenShare(env.Sender, true)
		}

	case core.KindScreenShareStopped:
		if o.events.OnScreenShare != nil {
			o.events.OnScreenShare(env.Sender, false)
		}

	default:
		log.Warn().Str("module", "client.orch").Str("kind", env.Kind).Msg("unknown signal kind")
	}
}

// Leave synchronously closes every peer session and releases the local
// tracks tied to this membership.
func (o *Orchestrator) Leave() {
	o.mu.Lock()
	sessions := o.sessions
	o.sessions = make(map[string]PeerSession)
	o.roomID = ""
	o.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	o.media.Release()
	log.Info().Str("module", "client.orch").Int("closed", len(sessions)).Msg("left room")
}

// ensureSession is the atomic check-then-create step: whichever of a
// member-joined notification or an inbound offer arrives first creates the
// session, the second is a no-op. A session left behind in Closed state
// counts as absent, so a late offer starts a fresh negotiation.
func (o *Orchestrator) ensureSession(remoteID string, role Role, offer json.RawMessage) {
	if remoteID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.sessions[remoteID]; ok {
		if existing.State() != StateClosed {
			log.Debug().Str("module", "client.orch").Str("remote", remoteID).Msg("session already exists")
			return
		}
		delete(o.sessions, remoteID)
	}

	s, err := o.newSession(remoteID, role, offer)
	if err != nil {
		log.Error().Err(err).Str("module", "client.orch").Str("remote", remoteID).Str("role", string(role)).Msg("session start failed")
		return
	}
	o.sessions[remoteID] = s
	log.Info().Str("module", "client.orch").Str("remote", remoteID).Str("role", string(role)).Msg("session started")
}

func (o *Orchestrator) session(remoteID string) PeerSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[remoteID]
}

func (o *Orchestrator) takeSession(remoteID string) PeerSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[remoteID]
	if !ok {
		return nil
	}
	delete(o.sessions, remoteID)
	return s
}

func (o *Orchestrator) dropSession(remoteID string) {
	if s := o.takeSession(remoteID); s != nil {
		s.Close()
	}
}

// removeClosed reaps a session that closed on its own (channel error or
// remote hangup). It never touches a fresh session that already replaced
// the closed one under the same remote id.
func (o *Orchestrator) removeClosed(remoteID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[remoteID]; ok && s.State() == StateClosed {
		delete(o.sessions, remoteID)
	}
}

func (o *Orchestrator) liveSessions() []PeerSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]PeerSession, 0, len(o.sessions))
	for _, s := range o.sessions {
		if s.State() != StateClosed {
			out = append(out, s)
		}
	}
	return out
}

func (o *Orchestrator) announce(kind string) error {
	o.mu.Lock()
	room := o.roomID
	o.mu.Unlock()
	if room == "" {
		return nil
	}
	return o.send.Send(core.Envelope{Kind: kind, RoomID: room})
}

func (o *Orchestrator) pionSession(remoteID string, role Role, offer json.RawMessage) (PeerSession, error) {
	return newPeerSession(sessionConfig{
		remoteID:   remoteID,
		role:       role,
		offer:      offer,
		iceServers: o.iceServers,
		tracks:     o.media.PublishTracks(),
		send:       o.send,
		onRemoteTrack: func(id string, track *webrtc.TrackRemote) {
			if o.events.OnRemoteTrack != nil {
				o.events.OnRemoteTrack(id, track)
			}
		},
		onClosed: o.removeClosed,
	})
}
