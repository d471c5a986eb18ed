package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

type connEntry struct {
	conn  core.SignalConn
	rooms map[domain.RoomID]struct{}
}

// Registry maps a transport connection to its current room memberships.
// Memberships mutate only through Bind/AddRoom/RemoveRoom/Unbind; nothing
// else in the server iterates connection state.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnID]*connEntry)}
}

// Bind registers a freshly connected transport.
func (r *Registry) Bind(id core.ConnID, conn core.SignalConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{conn: conn, rooms: make(map[domain.RoomID]struct{})}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("connection bound")
}

// Unbind removes the connection and returns every room it belonged to.
// Called exactly once, on transport disconnect.
func (r *Registry) Unbind(id core.ConnID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	rooms := make([]domain.RoomID, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Int("rooms", len(rooms)).Msg("connection unbound")
	return rooms
}

// AddRoom records the membership. Idempotent; a no-op for unknown
// connections so a join racing a disconnect cannot resurrect the entry.
func (r *Registry) AddRoom(id core.ConnID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.rooms[room] = struct{}{}
	return true
}

func (r *Registry) RemoveRoom(id core.ConnID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		delete(e.rooms, room)
	}
}

func (r *Registry) RoomsOf(id core.ConnID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	rooms := make([]domain.RoomID, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Conn resolves a connection id to its transport. The second return is
// false when the connection already disconnected.
func (r *Registry) Conn(id core.ConnID) (core.SignalConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
