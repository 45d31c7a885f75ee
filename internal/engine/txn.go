package engine

import (
	"fmt"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// txn stages changes to a set of locked containers. Each container is
// cloned on first touch; the live state is replaced only by Engine.commit,
// so an abandoned txn leaves nothing behind.
type txn struct {
	holds  map[string]*hold
	states map[string]*stowage
	moves  map[string]*location // nil value: item left its container
}

// checkpoint is a point a txn can roll back to.
type checkpoint struct {
	states map[string]*stowage
	moves  map[string]*location
}

func newTxn(holds map[string]*hold) *txn {
	return &txn{
		holds:  holds,
		states: make(map[string]*stowage),
		moves:  make(map[string]*location),
	}
}

// state returns the working copy of a locked container.
func (t *txn) state(containerID string) *stowage {
	if st, ok := t.states[containerID]; ok {
		return st
	}
	h, ok := t.holds[containerID]
	if !ok {
		panic(fmt.Errorf("container %q is not locked by this transaction", containerID))
	}
	st := h.st.clone()
	t.states[containerID] = st
	return st
}

func (t *txn) container(containerID string) types.Container {
	return t.holds[containerID].container
}

// fits reports whether b is free and inside the container.
func (t *txn) fits(containerID string, b grid.Box) bool {
	return t.state(containerID).grid.CanFit(b.Extent(), b.Min)
}

// place stows itemID at pos. The region must be free.
func (t *txn) place(containerID, itemID string, pos types.Position) {
	st := t.state(containerID)
	st.grid.Occupy(grid.BoxOf(pos), itemID)
	st.positions[itemID] = pos
	t.moves[itemID] = &location{containerID: containerID, position: pos}
}

// unstow takes itemID out of the container and returns where it was.
func (t *txn) unstow(containerID, itemID string) (types.Position, bool) {
	st := t.state(containerID)
	pos, ok := st.positions[itemID]
	if !ok {
		return types.Position{}, false
	}
	st.grid.Remove(itemID)
	delete(st.positions, itemID)
	t.moves[itemID] = nil
	return pos, true
}

// where returns the item's container as seen by this txn. Items not
// touched by the txn are looked up in the engine index.
func (t *txn) where(e *Engine, itemID string) (location, bool) {
	if loc, ok := t.moves[itemID]; ok {
		if loc == nil {
			return location{}, false
		}
		return *loc, true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	loc, ok := e.locations[itemID]
	return loc, ok
}

func (t *txn) checkpoint() checkpoint {
	cp := checkpoint{
		states: make(map[string]*stowage, len(t.states)),
		moves:  make(map[string]*location, len(t.moves)),
	}
	for id, st := range t.states {
		cp.states[id] = st.clone()
	}
	for id, loc := range t.moves {
		cp.moves[id] = loc
	}
	return cp
}

func (t *txn) rollback(cp checkpoint) {
	t.states = cp.states
	t.moves = cp.moves
}

// touched returns the ids of containers the txn cloned.
func (t *txn) touched() []string {
	out := make([]string, 0, len(t.states))
	for id := range t.states {
		out = append(out, id)
	}
	return out
}

// commit publishes the txn's container states and updates the item index.
// The caller still holds every container lock the txn used.
func (e *Engine) commit(t *txn) {
	for id, st := range t.states {
		t.holds[id].st = st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for itemID, loc := range t.moves {
		if loc == nil {
			delete(e.locations, itemID)
			continue
		}
		e.locations[itemID] = *loc
	}
	e.reportUsageLocked(t)
}

func (e *Engine) reportUsageLocked(t *txn) {
	for id, st := range t.states {
		e.rec.SetContainerUsage(id, st.grid.UsedCells(), st.grid.TotalCells())
	}
}
