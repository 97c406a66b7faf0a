package game

import (
	"testing"
)

func TestRosterLastValueWins(t *testing.T) {
	r := NewRoster("me")

	r.Upsert(Entity{ID: "a", X: 10, Y: 10, Facing: FacingDown, Sprite: "idle-down"})
	r.ApplyMove("a", 40, 50, FacingRight, "walk-right", true)
	r.ApplyInput("a", FacingUp, "idle-up", false)

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(snap))
	}
	e := snap[0]
	if e.X != 40 || e.Y != 50 {
		t.Errorf("input update must not touch position: got (%v,%v)", e.X, e.Y)
	}
	if e.Facing != FacingUp || e.Sprite != "idle-up" || e.Moving {
		t.Errorf("pose not overwritten: %+v", e)
	}
}

func TestRosterIgnoresSelf(t *testing.T) {
	r := NewRoster("me")
	r.Upsert(Entity{ID: "me", X: 1})
	r.ApplyMove("me", 2, 2, FacingUp, "walk-up", true)
	r.Sync([]Entity{{ID: "me"}, {ID: "other"}})

	if r.Len() != 1 {
		t.Fatalf("expected only the remote entity, got %d", r.Len())
	}
	if r.Snapshot()[0].ID != "other" {
		t.Errorf("expected 'other', got %q", r.Snapshot()[0].ID)
	}
}

func TestRosterRemoveIdempotent(t *testing.T) {
	r := NewRoster("me")
	r.Upsert(Entity{ID: "a"})
	r.Remove("a")
	r.Remove("a") // absent id is a no-op
	if r.Len() != 0 {
		t.Errorf("expected empty roster, got %d", r.Len())
	}
}

func TestRosterSyncDropsStaleEntities(t *testing.T) {
	r := NewRoster("me")
	r.Upsert(Entity{ID: "a"})
	r.Upsert(Entity{ID: "b"})

	r.Sync([]Entity{{ID: "b", X: 7}})

	if r.Len() != 1 {
		t.Fatalf("expected 1 entity after sync, got %d", r.Len())
	}
	if e := r.Snapshot()[0]; e.ID != "b" || e.X != 7 {
		t.Errorf("unexpected entity after sync: %+v", e)
	}
}

func TestRosterMoveBeforeJoin(t *testing.T) {
	// A move can be delivered before the join announcement; the roster
	// inserts rather than dropping it.
	r := NewRoster("me")
	r.ApplyMove("ghost", 5, 6, FacingLeft, "walk-left", true)
	if r.Len() != 1 {
		t.Fatalf("expected move to insert unknown entity")
	}
}
