package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinReturnsExistingInJoinOrder(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry()

	existing, moved := registry.Join("r1", Participant{ID: "a", Username: "alice"})
	require.Nil(moved)
	require.Empty(existing)

	existing, moved = registry.Join("r1", Participant{ID: "b", Username: "bob"})
	require.Nil(moved)
	require.Equal([]Participant{{ID: "a", Username: "alice"}}, existing)

	existing, moved = registry.Join("r1", Participant{ID: "c", Username: "carol"})
	require.Nil(moved)
	require.Equal([]Participant{
		{ID: "a", Username: "alice"},
		{ID: "b", Username: "bob"},
	}, existing)
}

func TestJoinSameRoomTwiceDoesNotDuplicate(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry()
	registry.Join("r1", Participant{ID: "a", Username: "alice"})
	registry.Join("r1", Participant{ID: "b", Username: "bob"})

	existing, moved := registry.Join("r1", Participant{ID: "a", Username: "alice"})
	require.Nil(moved)
	require.Equal([]Participant{{ID: "b", Username: "bob"}}, existing)
	require.Len(registry.members("r1"), 2)
}

func TestJoinReassignsRoom(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry()
	registry.Join("r1", Participant{ID: "a", Username: "alice"})
	registry.Join("r1", Participant{ID: "b", Username: "bob"})

	existing, moved := registry.Join("r2", Participant{ID: "b", Username: "bob"})
	require.Empty(existing)
	require.NotNil(moved)
	require.Equal("r1", moved.Room)
	require.Equal("b", moved.Participant.ID)

	require.Equal([]Participant{{ID: "a", Username: "alice"}}, registry.members("r1"))
	require.Equal([]Participant{{ID: "b", Username: "bob"}}, registry.members("r2"))
}

func TestLeave(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry()
	registry.Join("r1", Participant{ID: "a", Username: "alice"})
	registry.Join("r1", Participant{ID: "b", Username: "bob"})

	p, room, ok := registry.Leave("a")
	require.True(ok)
	require.Equal("r1", room)
	require.Equal("alice", p.Username)
	require.Equal([]Participant{{ID: "b", Username: "bob"}}, registry.members("r1"))

	// A departed participant appears in no room.
	_, _, ok = registry.Leave("a")
	require.False(ok)
}

func TestLeaveUnknownIsNoOp(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry()
	_, _, ok := registry.Leave("nobody")
	require.False(ok)
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	require := require.New(t)

	registry := NewRegistry()
	registry.Join("r1", Participant{ID: "a", Username: "alice"})
	registry.Leave("a")

	_, ok := registry.rooms["r1"]
	require.False(ok)

	// A stale room name causes no observable harm on re-use.
	existing, moved := registry.Join("r1", Participant{ID: "b", Username: "bob"})
	require.Nil(moved)
	require.Empty(existing)
}
