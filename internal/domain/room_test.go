package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom(t *testing.T) {
	room, err := NewRoom("ROOM1234", "standup", "owner")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxParticipants, room.MaxParticipants)
	assert.True(t, room.IsPublic)
	assert.False(t, room.CreatedAt.IsZero())
}

func TestNewRoomValidation(t *testing.T) {
	_, err := NewRoom("ROOM1234", "", "owner")
	assert.ErrorIs(t, err, ErrRoomNameEmpty)

	long := RoomName(strings.Repeat("x", MaxRoomNameLen+1))
	_, err = NewRoom("ROOM1234", long, "owner")
	assert.ErrorIs(t, err, ErrRoomNameTooLong)
}

func TestPrincipal(t *testing.T) {
	p := NewGuest()
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "guest", p.Username)

	require.NoError(t, p.SetUsername("alice"))
	assert.Equal(t, "alice", p.Username)

	assert.ErrorIs(t, p.SetUsername(""), ErrUsernameEmpty)
	assert.ErrorIs(t, p.SetUsername(strings.Repeat("x", MaxUsernameLen+1)), ErrUsernameTooLong)
}
