package game

import "sync"

// Roster holds the client-side mirrors of every other connected player.
// Updates are last-value-wins: each network event overwrites the stored
// entity with the received fields, with no smoothing or prediction. The
// renderer reads a snapshot once per frame.
//
// The roster is written by the network receive goroutine and read by the
// render loop, hence the lock.
type Roster struct {
	mu   sync.RWMutex
	self string
	ents map[string]Entity
}

// NewRoster creates an empty roster. Events about selfID are ignored, so a
// gameSync that includes the local player never shadows the locally
// integrated position.
func NewRoster(selfID string) *Roster {
	return &Roster{
		self: selfID,
		ents: make(map[string]Entity),
	}
}

// Upsert stores or replaces a remote entity.
func (r *Roster) Upsert(e Entity) {
	if e.ID == r.self {
		return
	}
	r.mu.Lock()
	r.ents[e.ID] = e
	r.mu.Unlock()
}

// ApplyMove overwrites position and pose for a known entity. Unknown ids are
// inserted; a move can arrive before the join event on a lossy delivery
// order, and the periodic sync would reconcile it anyway.
func (r *Roster) ApplyMove(id string, x, y float64, facing Facing, sprite string, moving bool) {
	if id == r.self {
		return
	}
	r.mu.Lock()
	e := r.ents[id]
	e.ID = id
	e.X, e.Y = x, y
	e.Facing = facing
	e.Sprite = sprite
	e.Moving = moving
	r.ents[id] = e
	r.mu.Unlock()
}

// ApplyInput overwrites pose only, leaving position untouched.
func (r *Roster) ApplyInput(id string, facing Facing, sprite string, moving bool) {
	if id == r.self {
		return
	}
	r.mu.Lock()
	e := r.ents[id]
	e.ID = id
	e.Facing = facing
	e.Sprite = sprite
	e.Moving = moving
	r.ents[id] = e
	r.mu.Unlock()
}

// Remove drops a departed entity. Removing an absent id is a no-op.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	delete(r.ents, id)
	r.mu.Unlock()
}

// Sync replaces the whole roster with a full-room snapshot, dropping any
// entity the snapshot no longer lists.
func (r *Roster) Sync(ents []Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]Entity, len(ents))
	for _, e := range ents {
		if e.ID == r.self {
			continue
		}
		next[e.ID] = e
	}
	r.ents = next
}

// Snapshot returns the current remote entities in unspecified order.
func (r *Roster) Snapshot() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entity, 0, len(r.ents))
	for _, e := range r.ents {
		out = append(out, e)
	}
	return out
}

// Len returns the number of tracked remote entities.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ents)
}
