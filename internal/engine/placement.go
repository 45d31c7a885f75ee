package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// PlaceItems stows a batch of items. Containers in the request are
// registered first; the batch is then considered against those containers,
// or against every registered container when the request names none.
//
// Items are handled in descending priority, ties in request order. Each
// item takes the best direct fit; failing that, and when rearrangement is
// enabled, lower-priority items are displaced to make room. Items that
// cannot be stowed are reported in Unplaced and the batch continues. Every
// item is committed on its own, so an item is either fully placed (with its
// rearrangement) or not touched at all.
func (e *Engine) PlaceItems(ctx context.Context, req types.PlacementRequest) (types.PlacementResponse, error) {
	if err := e.RegisterContainers(ctx, req.Containers); err != nil {
		return types.PlacementResponse{}, fmt.Errorf("registering containers: %w", err)
	}

	resp := types.PlacementResponse{Placements: []types.Placement{}, Rearrangements: []types.RearrangementStep{}}
	valid := make([]types.Item, 0, len(req.Items))
	for _, it := range req.Items {
		if err := it.Validate(); err != nil {
			resp.Unplaced = append(resp.Unplaced, types.UnplacedItem{ItemID: it.ItemID, Reason: err.Error()})
			e.rec.ObservePlacement(outcomeUnplaced)
			continue
		}
		valid = append(valid, it)
	}
	if err := e.RegisterItems(ctx, valid); err != nil {
		return types.PlacementResponse{}, fmt.Errorf("registering items: %w", err)
	}
	slices.SortStableFunc(valid, func(a, b types.Item) int { return cmp.Compare(b.Priority, a.Priority) })

	holds, unlock := e.lockAll()
	scope := make([]string, 0, len(req.Containers))
	for _, c := range req.Containers {
		scope = append(scope, c.ContainerID)
	}
	if len(scope) == 0 {
		scope = sortedHoldIDs(holds)
	}
	slices.Sort(scope)
	scope = slices.Compact(scope)

	var entries []types.LogEntry
	for _, item := range valid {
		item, _ = e.itemCopy(item.ItemID)
		placement, steps, err := e.placeOne(holds, scope, item, len(resp.Rearrangements))
		if err != nil {
			resp.Unplaced = append(resp.Unplaced, types.UnplacedItem{ItemID: item.ItemID, Reason: err.Error()})
			e.rec.ObservePlacement(outcomeUnplaced)
			e.log.Debug(ctx, "item not placed", logging.String("item_id", item.ItemID), logging.Err(err))
			continue
		}
		resp.Placements = append(resp.Placements, placement)
		resp.Rearrangements = append(resp.Rearrangements, steps...)
		entries = append(entries, placementEntries(placement, steps)...)
		if len(steps) > 0 {
			e.rec.ObservePlacement(outcomeRearranged)
			e.rec.ObserveRearrangement(len(steps))
		} else {
			e.rec.ObservePlacement(outcomePlaced)
		}
	}
	unlock()

	resp.Success = len(resp.Unplaced) == 0
	e.record(ctx, entries...)
	e.log.Info(ctx, "placement batch processed",
		logging.Int("placed", len(resp.Placements)),
		logging.Int("unplaced", len(resp.Unplaced)),
		logging.Int("rearrangement_steps", len(resp.Rearrangements)))
	return resp, nil
}

// placeOne stows one item and commits it. stepBase is the number of
// rearrangement steps already emitted in the batch.
func (e *Engine) placeOne(holds map[string]*hold, scope []string, item types.Item, stepBase int) (types.Placement, []types.RearrangementStep, error) {
	if item.Disposed {
		return types.Placement{}, nil, fmt.Errorf("item %q: %w", item.ItemID, types.ErrItemDisposed)
	}
	t := newTxn(holds)
	if loc, ok := t.where(e, item.ItemID); ok {
		return types.Placement{ItemID: item.ItemID, ContainerID: loc.containerID, Position: loc.position}, nil, nil
	}

	ext := grid.ExtentOf(item.Extent())
	if !fitsAnyBounds(t, scope, ext) {
		return types.Placement{}, nil, fmt.Errorf("item %q larger than every container: %w", item.ItemID, types.ErrInvalidGeometry)
	}

	if cid, cand, ok := e.preferredFit(t, item, scope); ok {
		pos := grid.PositionAt(cand.Box.Min, item.Extent())
		t.place(cid, item.ItemID, pos)
		e.commit(t)
		return types.Placement{ItemID: item.ItemID, ContainerID: cid, Position: pos}, nil, nil
	}
	if !e.rearrange {
		return types.Placement{}, nil, fmt.Errorf("item %q: %w", item.ItemID, types.ErrInfeasiblePlacement)
	}

	placement, steps, ok := e.rearrangeFor(t, scope, item)
	if !ok {
		return types.Placement{}, nil, fmt.Errorf("item %q: no rearrangement frees enough space: %w", item.ItemID, types.ErrInfeasiblePlacement)
	}
	for i := range steps {
		steps[i].Step = stepBase + i + 1
	}
	e.commit(t)
	return placement, steps, nil
}

// zoneCandidates narrows containers to the item's preferred zone, falling
// back to all of them when none matches.
func zoneCandidates(t *txn, item types.Item, containers []string) []string {
	if item.PreferredZone == "" {
		return containers
	}
	var out []string
	for _, id := range containers {
		if t.container(id).Zone == item.PreferredZone {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return containers
	}
	return out
}

func fitsAnyBounds(t *txn, containers []string, ext grid.Cell) bool {
	for _, id := range containers {
		if fitsBounds(t.state(id).grid.Bounds(), ext) {
			return true
		}
	}
	return false
}

func fitsBounds(bounds, ext grid.Cell) bool {
	return ext.W <= bounds.W && ext.D <= bounds.D && ext.H <= bounds.H
}

// preferredFit tries the containers of the item's preferred zone first and
// falls back to every container in scope. The zone is advisory: an item that
// fits anywhere is placed.
func (e *Engine) preferredFit(t *txn, item types.Item, scope []string) (string, grid.Candidate, bool) {
	zone := zoneCandidates(t, item, scope)
	if cid, cand, ok := e.bestFit(t, item, zone); ok || len(zone) == len(scope) {
		return cid, cand, ok
	}
	return e.bestFit(t, item, scope)
}

// bestFit picks the container and position for item among containers: the
// lowest accessibility score wins, then the container with more free cells,
// then the lower containerId.
func (e *Engine) bestFit(t *txn, item types.Item, containers []string) (string, grid.Candidate, bool) {
	ext := grid.ExtentOf(item.Extent())
	var (
		bestID   string
		best     grid.Candidate
		bestFree int
		found    bool
	)
	for _, id := range containers {
		g := t.state(id).grid
		cand, ok := g.FirstFit(ext)
		if !ok {
			continue
		}
		free := g.FreeCells()
		if !found || cand.Score < best.Score || (cand.Score == best.Score && free > bestFree) {
			bestID, best, bestFree, found = id, cand, free, true
		}
	}
	return bestID, best, found
}

type displaced struct {
	itemID string
	from   types.Position
}

// rearrangeFor tries the zone-matching containers, then the rest of scope,
// in id order until displacing lower-priority items makes room for item and
// every displaced item finds a new home. On success the txn holds the whole
// plan.
func (e *Engine) rearrangeFor(t *txn, scope []string, item types.Item) (types.Placement, []types.RearrangementStep, bool) {
	ext := grid.ExtentOf(item.Extent())
	zone := zoneCandidates(t, item, scope)
	order := append(slices.Clone(zone), slices.DeleteFunc(slices.Clone(scope), func(id string) bool {
		return slices.Contains(zone, id)
	})...)
	for _, cid := range order {
		if !fitsBounds(t.state(cid).grid.Bounds(), ext) {
			continue
		}
		cp := t.checkpoint()
		placement, steps, err := e.rearrangeIn(t, scope, cid, item)
		if err == nil {
			return placement, steps, true
		}
		t.rollback(cp)
	}
	return types.Placement{}, nil, false
}

var errNoRoom = errors.New("no room after displacement")

// rearrangeIn displaces items of strictly lower priority from cid, lowest
// priority and soonest expiry first, until item fits. Displaced items whose
// original region is still free go straight back; the rest take the first
// free spot left in cid, then move to other containers in scope.
func (e *Engine) rearrangeIn(t *txn, scope []string, cid string, item types.Item) (types.Placement, []types.RearrangementStep, error) {
	ext := grid.ExtentOf(item.Extent())
	st := t.state(cid)

	victims := e.displacementOrder(st, item.Priority)
	var (
		removed []displaced
		target  grid.Candidate
		found   bool
	)
	for _, v := range victims {
		pos, _ := t.unstow(cid, v.ItemID)
		removed = append(removed, displaced{itemID: v.ItemID, from: pos})
		if target, found = st.grid.FirstFit(ext); found {
			break
		}
	}
	if !found {
		return types.Placement{}, nil, errNoRoom
	}
	pos := grid.PositionAt(target.Box.Min, item.Extent())
	t.place(cid, item.ItemID, pos)

	var homeless []displaced
	for _, d := range removed {
		if t.fits(cid, grid.BoxOf(d.from)) {
			t.place(cid, d.itemID, d.from)
			continue
		}
		homeless = append(homeless, d)
	}

	others := slices.DeleteFunc(slices.Clone(scope), func(id string) bool { return id == cid })
	var steps, moves []types.RearrangementStep
	for _, d := range homeless {
		moved, ok := e.itemCopy(d.itemID)
		if !ok {
			return types.Placement{}, nil, errNoRoom
		}
		toID := cid
		cand, ok := st.grid.FirstFit(grid.ExtentOf(moved.Extent()))
		if !ok {
			if toID, cand, ok = e.preferredFit(t, moved, others); !ok {
				return types.Placement{}, nil, fmt.Errorf("item %q: %w", d.itemID, errNoRoom)
			}
		}
		to := grid.PositionAt(cand.Box.Min, moved.Extent())
		t.place(toID, d.itemID, to)

		from := d.from
		steps = append(steps, types.RearrangementStep{
			Action: types.ActionRemove, ItemID: d.itemID,
			FromContainer: cid, FromPosition: &from,
		})
		moves = append(moves, types.RearrangementStep{
			Action: types.ActionMove, ItemID: d.itemID,
			FromContainer: cid, FromPosition: &from,
			ToContainer: toID, ToPosition: &to,
		})
	}
	steps = append(steps, types.RearrangementStep{
		Action: types.ActionPlace, ItemID: item.ItemID,
		ToContainer: cid, ToPosition: &pos,
	})
	steps = append(steps, moves...)
	return types.Placement{ItemID: item.ItemID, ContainerID: cid, Position: pos}, steps, nil
}

// displacementOrder lists items in st with priority below limit: lowest
// priority first, then soonest expiry (no expiry last), then id.
func (e *Engine) displacementOrder(st *stowage, limit int) []types.Item {
	e.mu.RLock()
	var out []types.Item
	for id := range st.positions {
		if it, ok := e.items[id]; ok && it.Priority < limit {
			out = append(out, *it)
		}
	}
	e.mu.RUnlock()
	slices.SortFunc(out, disposalOrder)
	return out
}

// disposalOrder ranks items lowest priority first, then soonest expiry with
// undated items last, then id.
func disposalOrder(a, b types.Item) int {
	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}
	switch {
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return -1
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return 1
	case a.ExpiryDate != nil && b.ExpiryDate != nil:
		if c := a.ExpiryDate.Compare(b.ExpiryDate.Time); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ItemID, b.ItemID)
}

func placementEntries(p types.Placement, steps []types.RearrangementStep) []types.LogEntry {
	out := []types.LogEntry{{
		ActionType: types.LogActionPlacement,
		ItemID:     p.ItemID,
		Details: map[string]any{
			"containerId": p.ContainerID,
			"position":    p.Position,
		},
	}}
	for _, s := range steps {
		if s.Action != types.ActionMove {
			continue
		}
		out = append(out, types.LogEntry{
			ActionType: types.LogActionRearrangement,
			ItemID:     s.ItemID,
			Details: map[string]any{
				"fromContainer": s.FromContainer,
				"toContainer":   s.ToContainer,
				"position":      s.ToPosition,
			},
		})
	}
	return out
}
