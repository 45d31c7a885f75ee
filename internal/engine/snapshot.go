package engine

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// Snapshot exports containers, items, and placements. The mission date is
// not engine state; callers fill Snapshot.Date.
func (e *Engine) Snapshot(ctx context.Context) types.Snapshot {
	_, unlock := e.lockAll()
	defer unlock()

	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := types.Snapshot{
		Containers: make([]types.Container, 0, len(e.holds)),
		Items:      make([]types.Item, 0, len(e.items)),
		Placements: make([]types.Placement, 0, len(e.locations)),
	}
	for _, h := range e.holds {
		snap.Containers = append(snap.Containers, h.container)
	}
	for _, it := range e.items {
		snap.Items = append(snap.Items, *it)
	}
	for id, loc := range e.locations {
		snap.Placements = append(snap.Placements, types.Placement{ItemID: id, ContainerID: loc.containerID, Position: loc.position})
	}
	slices.SortFunc(snap.Containers, func(a, b types.Container) int { return compareStrings(a.ContainerID, b.ContainerID) })
	slices.SortFunc(snap.Items, func(a, b types.Item) int { return compareStrings(a.ItemID, b.ItemID) })
	slices.SortFunc(snap.Placements, func(a, b types.Placement) int { return compareStrings(a.ItemID, b.ItemID) })
	return snap
}

// Restore replaces the engine state with snap. Every placement must name a
// known item and container, lie inside the container, and not overlap
// another placement; otherwise the engine is left unchanged and the
// returned error wraps ErrCellConflict, ErrInvalidGeometry, ErrItemNotFound
// or ErrContainerNotFound. Restore is meant for startup, before the engine
// serves concurrent calls.
func (e *Engine) Restore(ctx context.Context, snap types.Snapshot) error {
	holds := make(map[string]*hold, len(snap.Containers))
	var errs error
	for _, c := range snap.Containers {
		if err := c.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("container %q: %w", c.ContainerID, err))
			continue
		}
		st, err := newStowage(c)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		holds[c.ContainerID] = &hold{container: c, st: st}
	}
	items := make(map[string]*types.Item, len(snap.Items))
	for _, it := range snap.Items {
		if err := it.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %q: %w", it.ItemID, err))
			continue
		}
		cp := it
		items[it.ItemID] = &cp
	}
	if errs != nil {
		return errs
	}

	locations := make(map[string]location, len(snap.Placements))
	for _, p := range snap.Placements {
		if err := restorePlacement(holds, items, locations, p); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return errs
	}

	_, unlock := e.lockAll()
	defer unlock()
	e.mu.Lock()
	e.holds, e.items, e.locations = holds, items, locations
	e.mu.Unlock()

	for id, h := range holds {
		e.rec.SetContainerUsage(id, h.st.grid.UsedCells(), h.st.grid.TotalCells())
	}
	e.log.Info(ctx, "state restored",
		logging.Int("containers", len(holds)),
		logging.Int("items", len(items)),
		logging.Int("placements", len(locations)))
	return nil
}

func restorePlacement(holds map[string]*hold, items map[string]*types.Item, locations map[string]location, p types.Placement) error {
	it, ok := items[p.ItemID]
	if !ok {
		return fmt.Errorf("placement of %q: %w", p.ItemID, types.ErrItemNotFound)
	}
	h, ok := holds[p.ContainerID]
	if !ok {
		return fmt.Errorf("placement of %q in %q: %w", p.ItemID, p.ContainerID, types.ErrContainerNotFound)
	}
	if _, dup := locations[p.ItemID]; dup {
		return fmt.Errorf("item %q placed twice: %w", p.ItemID, types.ErrCellConflict)
	}
	if it.Disposed {
		return fmt.Errorf("placement of %q: %w", p.ItemID, types.ErrItemDisposed)
	}
	box := grid.BoxOf(p.Position)
	if !p.Position.Valid() || !h.st.grid.InBounds(box) {
		return fmt.Errorf("placement of %q outside %q: %w", p.ItemID, p.ContainerID, types.ErrInvalidGeometry)
	}
	if !h.st.grid.CanFit(box.Extent(), box.Min) {
		return fmt.Errorf("placement of %q in %q: %w", p.ItemID, p.ContainerID, types.ErrCellConflict)
	}
	h.st.grid.Occupy(box, p.ItemID)
	h.st.positions[p.ItemID] = p.Position
	locations[p.ItemID] = location{containerID: p.ContainerID, position: p.Position}
	return nil
}
