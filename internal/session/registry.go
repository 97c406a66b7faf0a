package session

import "github.com/pixelton/townsquare/internal/game"

// Room is one named partition of the world and its current members.
type Room struct {
	Name    string
	members map[string]*game.Entity
}

// Members returns the room's entities in unspecified order.
func (r *Room) Members() []*game.Entity {
	out := make([]*game.Entity, 0, len(r.members))
	for _, e := range r.members {
		out = append(out, e)
	}
	return out
}

// Len returns the member count.
func (r *Room) Len() int {
	return len(r.members)
}

// Registry holds the canonical per-room player entities. It carries no lock:
// the hub's event loop is its only writer and reader, which serializes all
// access. Construct one per hub and inject it; nothing here is ambient
// state, so tests get a fresh registry each.
type Registry struct {
	rooms  map[string]*Room
	byConn map[string]*Room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		byConn: make(map[string]*Room),
	}
}

// Room returns the named room, creating it on first use. Rooms are never
// destroyed; an empty room simply stops appearing in broadcasts.
func (r *Registry) Room(name string) *Room {
	rm, ok := r.rooms[name]
	if !ok {
		rm = &Room{Name: name, members: make(map[string]*game.Entity)}
		r.rooms[name] = rm
	}
	return rm
}

// Add places an entity in the named room.
func (r *Registry) Add(roomName string, e *game.Entity) {
	rm := r.Room(roomName)
	rm.members[e.ID] = e
	r.byConn[e.ID] = rm
}

// Find returns the entity and its room for a connection id.
func (r *Registry) Find(id string) (*game.Entity, *Room, bool) {
	rm, ok := r.byConn[id]
	if !ok {
		return nil, nil, false
	}
	e, ok := rm.members[id]
	if !ok {
		return nil, nil, false
	}
	return e, rm, true
}

// Remove deletes the entity from whichever room holds it and reports the
// room it was in. Removing an absent id is a no-op, never an error.
func (r *Registry) Remove(id string) (*Room, bool) {
	rm, ok := r.byConn[id]
	if !ok {
		return nil, false
	}
	delete(rm.members, id)
	delete(r.byConn, id)
	return rm, true
}

// Counts reports the member count per room, skipping empty rooms.
func (r *Registry) Counts() map[string]int {
	out := make(map[string]int)
	for name, rm := range r.rooms {
		if len(rm.members) > 0 {
			out[name] = len(rm.members)
		}
	}
	return out
}
