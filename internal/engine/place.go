package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// extentTolerance absorbs float noise when comparing a requested position's
// extent with the item's dimensions.
const extentTolerance = 1e-9

// Place stows an item at a caller-chosen position, moving it out of its
// current container if it is stowed. The position's extent must equal the
// item's dimensions and its cells must be free; the item's own cells count
// as free when it moves within one container.
func (e *Engine) Place(ctx context.Context, req types.PlaceRequest) (types.PlaceResponse, error) {
	item, err := e.Item(req.ItemID)
	if err != nil {
		return types.PlaceResponse{}, err
	}
	if item.Disposed {
		return types.PlaceResponse{}, fmt.Errorf("item %q: %w", req.ItemID, types.ErrItemDisposed)
	}
	if !req.Position.Valid() || !sameExtent(req.Position.Extent(), item.Extent()) {
		return types.PlaceResponse{}, fmt.Errorf("position does not match item %q dimensions: %w", req.ItemID, types.ErrInvalidGeometry)
	}

	for {
		from, stowed := e.currentContainer(req.ItemID)
		ids := []string{req.ContainerID}
		if stowed {
			ids = append(ids, from)
		}
		holds, unlock, err := e.lockHolds(ids)
		if err != nil {
			return types.PlaceResponse{}, err
		}
		if now, ok := e.currentContainer(req.ItemID); ok != stowed || now != from {
			unlock()
			continue
		}

		t := newTxn(holds)
		if stowed {
			t.unstow(from, req.ItemID)
		}
		box := grid.BoxOf(req.Position)
		if !t.state(req.ContainerID).grid.InBounds(box) {
			unlock()
			return types.PlaceResponse{}, fmt.Errorf("position outside container %q: %w", req.ContainerID, types.ErrInvalidGeometry)
		}
		if !t.fits(req.ContainerID, box) {
			unlock()
			return types.PlaceResponse{}, fmt.Errorf("cells occupied in container %q: %w", req.ContainerID, types.ErrInfeasiblePlacement)
		}
		t.place(req.ContainerID, req.ItemID, req.Position)
		e.commit(t)
		unlock()

		details := map[string]any{"toContainer": req.ContainerID, "position": req.Position}
		if stowed {
			details["fromContainer"] = from
		}
		e.record(ctx, types.LogEntry{
			Timestamp:  e.stamp(req.Timestamp),
			UserID:     req.UserID,
			ActionType: types.LogActionPlace,
			ItemID:     req.ItemID,
			Details:    details,
		})
		e.log.Info(ctx, "item placed", logging.String("item_id", req.ItemID), logging.String("container_id", req.ContainerID))
		return types.PlaceResponse{Success: true}, nil
	}
}

func (e *Engine) currentContainer(itemID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	loc, ok := e.locations[itemID]
	return loc.containerID, ok
}

func sameExtent(a, b types.Coordinates) bool {
	return math.Abs(a.Width-b.Width) <= extentTolerance &&
		math.Abs(a.Depth-b.Depth) <= extentTolerance &&
		math.Abs(a.Height-b.Height) <= extentTolerance
}
