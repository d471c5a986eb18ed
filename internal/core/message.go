// Package core defines the signaling wire contract shared by the relay
// server and the client SDK.
package core

import (
	"encoding/json"

	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

// ConnID identifies a transport connection. Assigned by the relay on
// connect and never reused for the lifetime of the process.
type ConnID string

// Message kinds. These strings are part of the wire contract and must stay
// compatible with unmodified peers.
const (
	// client -> relay
	KindJoinRoom           = "join-room"
	KindOffer              = "offer"
	KindAnswer             = "answer"
	KindICECandidate       = "ice-candidate"
	KindScreenShareStarted = "screen-share-started"
	KindScreenShareStopped = "screen-share-stopped"

	// relay -> client
	KindWelcome      = "welcome"
	KindMemberJoined = "member-joined"
	KindMemberLeft   = "member-left"
)

// Envelope is the signaling message frame. Field names are the bit-exact
// contract; the relay reads kind/roomId/target and rewrites sender, and
// treats sdp/candidate as opaque payloads.
type Envelope struct {
	Kind      string          `json:"kind"`
	RoomID    domain.RoomID   `json:"roomId,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Target    string          `json:"target,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	MemberID  string          `json:"memberId,omitempty"`
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

// SignalConn abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConn interface {
	// TrySend queues a frame without blocking. It fails when the outbound
	// queue is full or the connection is closed; delivery is best-effort.
	TrySend([]byte) error
	Close()
}
