package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Connect("alice", NewChannelSink(1))

	req.True(registry.Join("alice", "general"))
	req.True(registry.Join("alice", "general"))
	req.Len(registry.RoomSinks("general"), 1)
}

func TestRegistry_JoinUnknownConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.False(registry.Join("ghost", "general"))
	req.Nil(registry.RoomSinks("general"))
}

func TestRegistry_LeaveNeverJoinedRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Connect("alice", NewChannelSink(1))

	// Idempotent: leaving a room never joined is a silent no-op.
	registry.Leave("alice", "general")
	req.Len(registry.Sinks(), 1)
}

func TestRegistry_DisconnectReleasesAllRooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Connect("alice", NewChannelSink(1))
	registry.Connect("bob", NewChannelSink(1))

	registry.Join("alice", "general")
	registry.Join("alice", "random")
	registry.Join("bob", "general")

	registry.Disconnect("alice")

	req.Len(registry.RoomSinks("general"), 1)
	req.Nil(registry.RoomSinks("random"))
	_, ok := registry.Sink("alice")
	req.False(ok)
}
