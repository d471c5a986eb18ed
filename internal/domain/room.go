package domain

import (
	"errors"
	"time"
)

type (
	// RoomID is the short human-shareable room code.
	RoomID   string
	RoomName string
)

const (
	MaxRoomNameLen         = 64
	DefaultMaxParticipants = 10
)

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

// Room is the metadata record owned by the room service. Membership of the
// live signaling mesh is tracked separately by the directory.
type Room struct {
	ID              RoomID      `json:"roomId"`
	Name            RoomName    `json:"name"`
	Description     string      `json:"description"`
	Owner           PrincipalID `json:"owner"`
	MaxParticipants int         `json:"maxParticipants"`
	IsPublic        bool        `json:"isPublic"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// NewRoom validates the name and fills defaults, keeping raw struct
// literals out of adapters.
func NewRoom(id RoomID, name RoomName, owner PrincipalID) (*Room, error) {
	if len(name) == 0 {
		return nil, ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return nil, ErrRoomNameTooLong
	}
	return &Room{
		ID:              id,
		Name:            name,
		Owner:           owner,
		MaxParticipants: DefaultMaxParticipants,
		IsPublic:        true,
		CreatedAt:       time.Now(),
	}, nil
}
