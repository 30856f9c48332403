package runtime

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"post-lab/contract"
)

func newTestGateway() *Gateway {
	return NewGateway(NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func drainSink(sink *ChannelSink) []contract.OutboundMessage {
	var msgs []contract.OutboundMessage
	for {
		select {
		case msg := <-sink.Messages():
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestGateway_BroadcastAllReachesEveryConnection(t *testing.T) {
	req := require.New(t)
	gateway := newTestGateway()

	alice := NewChannelSink(4)
	bob := NewChannelSink(4)
	gateway.OnConnect("alice", alice)
	gateway.OnConnect("bob", bob)

	gateway.BroadcastAll("post.created", "payload")

	for _, sink := range []*ChannelSink{alice, bob} {
		msgs := drainSink(sink)
		req.Len(msgs, 1)
		req.Equal("post.created", msgs[0].Event)
		req.Equal("payload", msgs[0].Payload)
	}
}

func TestGateway_BroadcastAllSkipsDisconnected(t *testing.T) {
	req := require.New(t)
	gateway := newTestGateway()

	alice := NewChannelSink(4)
	bob := NewChannelSink(4)
	gateway.OnConnect("alice", alice)
	gateway.OnConnect("bob", bob)
	gateway.OnDisconnect("bob")

	gateway.BroadcastAll("post.deleted", nil)

	req.Len(drainSink(alice), 1)
	req.Empty(drainSink(bob))
}

func TestGateway_RoomIsolation(t *testing.T) {
	req := require.New(t)
	gateway := newTestGateway()

	alice := NewChannelSink(4)
	bob := NewChannelSink(4)
	gateway.OnConnect("alice", alice)
	gateway.OnConnect("bob", bob)

	ack := gateway.Join("alice", "general")
	req.True(ack.Success)
	req.Equal("general", ack.Room)

	gateway.BroadcastRoom("general", "room.notice", "hi")

	req.Len(drainSink(alice), 1)
	req.Empty(drainSink(bob))
}

func TestGateway_JoinFailsForUnknownConnection(t *testing.T) {
	req := require.New(t)
	gateway := newTestGateway()

	ack := gateway.Join("ghost", "general")
	req.False(ack.Success)
	req.Equal("general", ack.Room)
}

func TestGateway_LeaveAlwaysAcknowledges(t *testing.T) {
	req := require.New(t)
	gateway := newTestGateway()
	gateway.OnConnect("alice", NewChannelSink(1))

	ack := gateway.Leave("alice", "never-joined")
	req.True(ack.Success)
	req.Equal("never-joined", ack.Room)
}

func TestGateway_HandleMessageFansOutWithSenderAndTimestamp(t *testing.T) {
	req := require.New(t)
	gateway := newTestGateway()

	alice := NewChannelSink(4)
	bob := NewChannelSink(4)
	gateway.OnConnect("alice", alice)
	gateway.OnConnect("bob", bob)

	ack := gateway.HandleMessage("alice", InboundMessage{Data: "hello"})
	req.True(ack.Success)
	req.Equal("Message received", ack.Message)

	// The sender receives its own message too.
	for _, sink := range []*ChannelSink{alice, bob} {
		msgs := drainSink(sink)
		req.Len(msgs, 1)
		req.Equal("message", msgs[0].Event)

		broadcast, ok := msgs[0].Payload.(BroadcastMessage)
		req.True(ok)
		req.Equal("alice", broadcast.ClientID)
		req.Equal("hello", broadcast.Data)

		stamp, err := time.Parse(time.RFC3339, broadcast.Timestamp)
		req.NoError(err)
		req.WithinDuration(time.Now().UTC(), stamp, time.Minute)
	}
}

func TestGateway_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	req := require.New(t)
	gateway := newTestGateway()

	slow := NewChannelSink(1)
	gateway.OnConnect("slow", slow)

	gateway.BroadcastAll("post.updated", 1)
	gateway.BroadcastAll("post.updated", 2)

	msgs := drainSink(slow)
	req.Len(msgs, 1)
	req.Equal(1, msgs[0].Payload)
}
