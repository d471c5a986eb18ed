package app

import (
	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

// JoinRecorder is the seam to the room metadata service: it is told about
// every join so capacity accounting stays accurate. Errors are logged and
// never block routing.
type JoinRecorder interface {
	RecordJoin(room domain.RoomID, conn core.ConnID) error
}

// Relay is a pure per-message router. It understands which connection a
// frame should reach but nothing about negotiation semantics; sdp and
// candidate payloads pass through untouched.
type Relay struct {
	registry *Registry
	rooms    *Directory
	joins    JoinRecorder
}

func NewRelay(registry *Registry, rooms *Directory, joins JoinRecorder) *Relay {
	return &Relay{registry: registry, rooms: rooms, joins: joins}
}

// HandleMessage consumes one inbound frame from sender. The sender field
// of every forwarded message is rewritten from the transport identity;
// the client-supplied value is never trusted.
func (r *Relay) HandleMessage(sender core.ConnID, raw []byte) {
	env, err := core.DecodeEnvelope(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("conn", string(sender)).Msg("bad envelope")
		return
	}

	switch env.Kind {
	case core.KindJoinRoom:
		r.handleJoin(sender, env.RoomID)

	case core.KindOffer:
		r.rooms.Route(core.ConnID(env.Target), core.Envelope{
			Kind:   core.KindOffer,
			Sender: string(sender),
			SDP:    env.SDP,
		})

	case core.KindAnswer:
		r.rooms.Route(core.ConnID(env.Target), core.Envelope{
			Kind:   core.KindAnswer,
			Sender: string(sender),
			SDP:    env.SDP,
		})

	case core.KindICECandidate:
		r.rooms.Route(core.ConnID(env.Target), core.Envelope{
			Kind:      core.KindICECandidate,
			Sender:    string(sender),
			Candidate: env.Candidate,
		})

	case core.KindScreenShareStarted, core.KindScreenShareStopped:
		r.rooms.Broadcast(env.RoomID, sender, core.Envelope{
			Kind:   env.Kind,
			Sender: string(sender),
		})

	default:
		log.Warn().Str("module", "app.relay").Str("kind", env.Kind).Msg("unknown signal kind")
	}
}

func (r *Relay) handleJoin(sender core.ConnID, room domain.RoomID) {
	if room == "" {
		log.Warn().Str("module", "app.relay").Str("conn", string(sender)).Msg("join-room without roomId")
		return
	}
	if !r.registry.AddRoom(sender, room) {
		// Disconnected while the frame was in flight.
		return
	}
	r.rooms.Join(room, sender)
	if r.joins != nil {
		if err := r.joins.RecordJoin(room, sender); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").Str("room", string(room)).Msg("record join")
		}
	}
	r.rooms.Broadcast(room, sender, core.Envelope{
		Kind:     core.KindMemberJoined,
		RoomID:   room,
		MemberID: string(sender),
	})
}

// HandleDisconnect reacts to the transport-level close event. It runs the
// single leave-all pass and announces the departure to every affected room.
func (r *Relay) HandleDisconnect(sender core.ConnID) {
	for _, room := range r.registry.Unbind(sender) {
		r.rooms.Leave(room, sender)
		r.rooms.Broadcast(room, sender, core.Envelope{
			Kind:     core.KindMemberLeft,
			RoomID:   room,
			MemberID: string(sender),
		})
	}
}
