package app

import (
	"crypto/rand"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

var (
	ErrRoomIsFull = errors.New("room is full")
)

const roomCodeLen = 8

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MemberCounter reports how many live members a room currently has.
// Wired to Directory.MemberCount.
type MemberCounter func(room domain.RoomID) int

// RoomService owns room metadata: codes, names, visibility and capacity.
// It knows nothing about signaling; the relay only consults it through
// RecordJoin.
type RoomService struct {
	counter MemberCounter

	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomService(counter MemberCounter) *RoomService {
	return &RoomService{
		counter: counter,
		rooms:   make(map[domain.RoomID]*domain.Room),
	}
}

type CreateRoomParams struct {
	Name            domain.RoomName
	Description     string
	MaxParticipants int
	Public          *bool
}

// Create registers a new room under a fresh shareable code.
func (s *RoomService) Create(p CreateRoomParams, owner domain.PrincipalID) (*domain.Room, error) {
	room, err := domain.NewRoom(newRoomCode(), p.Name, owner)
	if err != nil {
		return nil, err
	}
	room.Description = p.Description
	if p.MaxParticipants > 0 {
		room.MaxParticipants = p.MaxParticipants
	}
	if p.Public != nil {
		room.IsPublic = *p.Public
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	log.Info().Str("module", "app.roomsvc").Str("room", string(room.ID)).Str("name", string(p.Name)).Msg("room created")
	return room, nil
}

func (s *RoomService) Lookup(id domain.RoomID) (*domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

func (s *RoomService) ListPublic() []*domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.IsPublic {
			out = append(out, room)
		}
	}
	return out
}

// RecordJoin admits a connection into a room, enforcing capacity. Rooms
// joined by code without a prior Create get an implicit metadata record
// so later lookups still resolve.
func (s *RoomService) RecordJoin(id domain.RoomID, conn core.ConnID) error {
	s.mu.Lock()
	room, ok := s.rooms[id]
	if !ok {
		room, _ = domain.NewRoom(id, domain.RoomName(id), "")
		// Code-only rooms never show up in the public listing.
		room.IsPublic = false
		s.rooms[id] = room
	}
	s.mu.Unlock()

	// The directory counts the joiner itself by the time we run.
	if s.counter != nil && s.counter(id) > room.MaxParticipants {
		return ErrRoomIsFull
	}
	return nil
}

func newRoomCode() domain.RoomID {
	buf := make([]byte, roomCodeLen)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return domain.RoomID(buf)
}
