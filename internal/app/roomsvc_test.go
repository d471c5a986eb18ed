package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

func TestRoomServiceCreate(t *testing.T) {
	svc := NewRoomService(nil)

	public := true
	room, err := svc.Create(CreateRoomParams{
		Name:            "standup",
		Description:     "daily sync",
		MaxParticipants: 4,
		Public:          &public,
	}, "owner-1")
	require.NoError(t, err)

	assert.Len(t, string(room.ID), 8)
	assert.Regexp(t, "^[A-Z0-9]+$", string(room.ID))
	assert.Equal(t, domain.RoomName("standup"), room.Name)
	assert.Equal(t, 4, room.MaxParticipants)
	assert.True(t, room.IsPublic)
	assert.False(t, room.CreatedAt.IsZero())

	got, ok := svc.Lookup(room.ID)
	require.True(t, ok)
	assert.Equal(t, room, got)
}

func TestRoomServiceCreateDefaults(t *testing.T) {
	svc := NewRoomService(nil)

	room, err := svc.Create(CreateRoomParams{Name: "quiet"}, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMaxParticipants, room.MaxParticipants)
	assert.True(t, room.IsPublic)

	_, err = svc.Create(CreateRoomParams{Name: ""}, "owner-1")
	assert.Error(t, err)
}

func TestRoomServiceListPublic(t *testing.T) {
	svc := NewRoomService(nil)

	private := false
	_, err := svc.Create(CreateRoomParams{Name: "open"}, "o")
	require.NoError(t, err)
	_, err = svc.Create(CreateRoomParams{Name: "hidden", Public: &private}, "o")
	require.NoError(t, err)

	listed := svc.ListPublic()
	require.Len(t, listed, 1)
	assert.Equal(t, domain.RoomName("open"), listed[0].Name)
}

func TestRoomServiceRecordJoinImplicitRoom(t *testing.T) {
	svc := NewRoomService(func(domain.RoomID) int { return 1 })

	// Joining by a code nobody created still resolves afterwards.
	require.NoError(t, svc.RecordJoin("FRIENDLY", "conn-1"))
	room, ok := svc.Lookup("FRIENDLY")
	require.True(t, ok)
	assert.Equal(t, domain.RoomName("FRIENDLY"), room.Name)
}

func TestRoomServiceRecordJoinCapacity(t *testing.T) {
	members := 0
	svc := NewRoomService(func(domain.RoomID) int { return members })

	room, err := svc.Create(CreateRoomParams{Name: "small", MaxParticipants: 2}, "o")
	require.NoError(t, err)

	members = 2
	assert.NoError(t, svc.RecordJoin(room.ID, "conn-2"))
	members = 3
	assert.ErrorIs(t, svc.RecordJoin(room.ID, "conn-3"), ErrRoomIsFull)
}

func TestTokenAuthenticator(t *testing.T) {
	auth := NewTokenAuthenticator()

	_, err := auth.Verify("")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	first, err := auth.Verify("token-a")
	require.NoError(t, err)
	again, err := auth.Verify("token-a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := auth.Verify("token-b")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}
