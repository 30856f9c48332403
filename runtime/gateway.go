package runtime

import (
	"log/slog"
	"time"

	"post-lab/contract"
)

// InboundMessage is what a connected client sends on the generic
// "message" event.
type InboundMessage struct {
	Data any `json:"data"`
}

// BroadcastMessage is the fan-out shape for an inbound message: the
// sender and receipt time are attached before it goes back out to
// everyone.
type BroadcastMessage struct {
	ClientID  string `json:"clientId"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// MessageAck is returned to the sender of an inbound message.
type MessageAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Gateway pushes live updates to connected clients. Every delivery is
// best effort: a sink that cannot accept a message right now simply
// misses it, and nothing upstream waits or fails because of it.
type Gateway struct {
	registry *Registry
	log      *slog.Logger
}

func NewGateway(registry *Registry, log *slog.Logger) *Gateway {
	return &Gateway{registry: registry, log: log}
}

func (g *Gateway) OnConnect(connectionID string, sink contract.ClientSink) {
	g.registry.Connect(connectionID, sink)
	g.log.Info("client connected", "connection_id", connectionID)
}

// OnDisconnect clears the connection and all of its room memberships
// immediately; there is no lazy cleanup.
func (g *Gateway) OnDisconnect(connectionID string) {
	g.registry.Disconnect(connectionID)
	g.log.Info("client disconnected", "connection_id", connectionID)
}

func (g *Gateway) Join(connectionID, room string) contract.RoomAck {
	joined := g.registry.Join(connectionID, room)
	if joined {
		g.log.Info("client joined room", "connection_id", connectionID, "room", room)
	}
	return contract.RoomAck{Success: joined, Room: room}
}

func (g *Gateway) Leave(connectionID, room string) contract.RoomAck {
	g.registry.Leave(connectionID, room)
	g.log.Info("client left room", "connection_id", connectionID, "room", room)
	return contract.RoomAck{Success: true, Room: room}
}

// BroadcastAll delivers to every connection present at call time.
func (g *Gateway) BroadcastAll(eventName string, payload any) {
	g.deliver(g.registry.Sinks(), eventName, payload)
}

// BroadcastRoom delivers only to current members of the room.
func (g *Gateway) BroadcastRoom(room, eventName string, payload any) {
	g.deliver(g.registry.RoomSinks(room), eventName, payload)
}

func (g *Gateway) deliver(sinks []contract.ClientSink, eventName string, payload any) {
	dropped := 0
	for _, sink := range sinks {
		if !sink.Send(contract.OutboundMessage{Event: eventName, Payload: payload}) {
			dropped++
		}
	}
	if dropped > 0 {
		g.log.Debug("broadcast dropped for slow clients",
			"event", eventName, "dropped", dropped, "targets", len(sinks))
	}
}

// HandleMessage re-broadcasts an inbound message to all connections with
// the sender and timestamp attached, then acknowledges the sender.
func (g *Gateway) HandleMessage(connectionID string, msg InboundMessage) MessageAck {
	g.log.Info("message received", "connection_id", connectionID)

	g.BroadcastAll("message", BroadcastMessage{
		ClientID:  connectionID,
		Data:      msg.Data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return MessageAck{Success: true, Message: "Message received"}
}
