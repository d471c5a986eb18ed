package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

// Directory maps room ids to live member connection sets and delivers
// frames to them. It owns membership sets only; connection transports are
// resolved through the registry, and every delivery is fire-and-forget.
type Directory struct {
	registry *Registry

	mu    sync.RWMutex
	rooms map[domain.RoomID]map[core.ConnID]struct{}
}

func NewDirectory(registry *Registry) *Directory {
	return &Directory{
		registry: registry,
		rooms:    make(map[domain.RoomID]map[core.ConnID]struct{}),
	}
}

// Join adds the connection to the room's member set. Idempotent.
func (d *Directory) Join(room domain.RoomID, id core.ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	members, ok := d.rooms[room]
	if !ok {
		members = make(map[core.ConnID]struct{})
		d.rooms[room] = members
	}
	members[id] = struct{}{}
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("conn", string(id)).Msg("member joined")
}

// Leave removes the connection from the room. Empty rooms are reclaimed;
// the metadata record, if any, stays with the room service.
func (d *Directory) Leave(room domain.RoomID, id core.ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	members, ok := d.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(d.rooms, room)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("conn", string(id)).Msg("member left")
}

func (d *Directory) Members(room domain.RoomID) []core.ConnID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	members := d.rooms[room]
	out := make([]core.ConnID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (d *Directory) MemberCount(room domain.RoomID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[room])
}

// Broadcast delivers env to every current member of the room except the
// sender. Best-effort: a member mid-disconnect or with a full queue is
// skipped silently. The member snapshot is taken under the read lock and
// sends happen outside it, so a slow recipient cannot stall the room.
func (d *Directory) Broadcast(room domain.RoomID, except core.ConnID, env core.Envelope) {
	data, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Str("kind", env.Kind).Msg("broadcast encode")
		return
	}
	sent := 0
	for _, id := range d.Members(room) {
		if id == except {
			continue
		}
		conn, ok := d.registry.Conn(id)
		if !ok {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			log.Debug().Err(err).Str("module", "app.rooms").Str("conn", string(id)).Msg("broadcast dropped")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.rooms").Str("room", string(room)).Str("kind", env.Kind).Int("sent_to", sent).Msg("broadcast")
}

// Route delivers env to one specific connection. A missing target is a
// silent no-op: the sender cannot act on it and the eventual member-left
// broadcast is the authoritative signal.
func (d *Directory) Route(target core.ConnID, env core.Envelope) {
	conn, ok := d.registry.Conn(target)
	if !ok {
		log.Debug().Str("module", "app.rooms").Str("target", string(target)).Str("kind", env.Kind).Msg("route: target gone")
		return
	}
	data, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Str("kind", env.Kind).Msg("route encode")
		return
	}
	if err := conn.TrySend(data); err != nil {
		log.Debug().Err(err).Str("module", "app.rooms").Str("target", string(target)).Msg("route dropped")
	}
}
