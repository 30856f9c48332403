package runtime

import (
	"sync"

	"post-lab/contract"
)

type set map[string]struct{}

// Registry tracks live connections and their room memberships. It is
// shared between every request-handling goroutine and the broadcast
// path, so all mutation goes through one mutex and room iteration takes
// a consistent snapshot under the read lock.
//
// connRooms mirrors roomMembers per connection so a disconnect can
// release every membership without scanning all rooms.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]contract.ClientSink
	roomMembers map[string]set
	connRooms   map[string]set
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]contract.ClientSink),
		roomMembers: make(map[string]set),
		connRooms:   make(map[string]set),
	}
}

// Connect registers a connection's delivery sink. Reconnecting under the
// same ID replaces the sink; memberships survive the swap.
func (r *Registry) Connect(connectionID string, sink contract.ClientSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[connectionID] = sink
}

// Disconnect drops the connection and synchronously clears all of its
// room memberships. Empty rooms are removed entirely so the maps never
// leak names of long-gone rooms.
func (r *Registry) Disconnect(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.connections, connectionID)

	for room := range r.connRooms[connectionID] {
		if members, ok := r.roomMembers[room]; ok {
			delete(members, connectionID)
			if len(members) == 0 {
				delete(r.roomMembers, room)
			}
		}
	}
	delete(r.connRooms, connectionID)
}

// Join is idempotent and a no-op for unknown connections.
func (r *Registry) Join(connectionID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connectionID]; !ok {
		return false
	}
	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(set)
	}
	r.roomMembers[room][connectionID] = struct{}{}

	if _, ok := r.connRooms[connectionID]; !ok {
		r.connRooms[connectionID] = make(set)
	}
	r.connRooms[connectionID][room] = struct{}{}
	return true
}

// Leave is idempotent: leaving a room never joined succeeds silently.
func (r *Registry) Leave(connectionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.roomMembers[room]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.roomMembers, room)
		}
	}
	if rooms, ok := r.connRooms[connectionID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.connRooms, connectionID)
		}
	}
}

// Sinks returns the delivery sinks for every live connection.
func (r *Registry) Sinks() []contract.ClientSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.ClientSink, 0, len(r.connections))
	for _, sink := range r.connections {
		sinks = append(sinks, sink)
	}
	return sinks
}

// RoomSinks resolves a room's members into their sinks. Returns nil for
// an unknown or empty room.
func (r *Registry) RoomSinks(room string) []contract.ClientSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	var sinks []contract.ClientSink
	for connectionID := range members {
		if sink, exists := r.connections[connectionID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// Sink looks up a single connection's sink.
func (r *Registry) Sink(connectionID string) (contract.ClientSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.connections[connectionID]
	return sink, ok
}
