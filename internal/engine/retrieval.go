package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// extraction is the outcome of taking one item out of its container on a
// txn: the steps, and how many items had to be set aside.
type extraction struct {
	steps    []types.RetrievalStep
	blockers int
}

// PlanRetrieval returns the steps to take the item out of its container
// without changing anything. Blocking items are set aside nearest the open
// face first, the item is retrieved, and the blockers are put back in
// reverse order.
func (e *Engine) PlanRetrieval(ctx context.Context, itemID string) ([]types.RetrievalStep, error) {
	h, cid, unlock, err := e.lockItemContainer(itemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t := newTxn(map[string]*hold{cid: h})
	x, err := e.extract(t, cid, itemID, 0)
	if err != nil {
		return nil, err
	}
	return x.steps, nil
}

// Retrieve takes the item out of its container and counts one use. The
// setAside and placeBack moves of the plan are applied, so every other item
// ends where it was.
func (e *Engine) Retrieve(ctx context.Context, req types.RetrieveRequest) (types.RetrieveResponse, error) {
	if req.ItemID == "" {
		return types.RetrieveResponse{}, fmt.Errorf("retrieve: itemId is required: %w", types.ErrInvalidRequest)
	}
	h, cid, unlock, err := e.lockItemContainer(req.ItemID)
	if err != nil {
		return types.RetrieveResponse{}, err
	}

	t := newTxn(map[string]*hold{cid: h})
	x, err := e.extract(t, cid, req.ItemID, 0)
	if err != nil {
		unlock()
		return types.RetrieveResponse{}, err
	}
	e.commit(t)
	e.mu.Lock()
	uses := e.items[req.ItemID].Use()
	e.mu.Unlock()
	unlock()

	e.rec.ObserveRetrieval(x.blockers)
	e.record(ctx, types.LogEntry{
		Timestamp:  e.stamp(req.Timestamp),
		UserID:     req.UserID,
		ActionType: types.LogActionRetrieval,
		ItemID:     req.ItemID,
		Details: map[string]any{
			"fromContainer": cid,
			"setAside":      x.blockers,
			"currentUses":   uses,
		},
	})
	e.log.Info(ctx, "item retrieved",
		logging.String("item_id", req.ItemID),
		logging.String("container_id", cid),
		logging.Int("blockers", x.blockers))
	return types.RetrieveResponse{Success: true, Steps: x.steps}, nil
}

// extract removes itemID from cid on t, setting aside and restoring every
// blocking item. Step numbers continue after stepBase.
func (e *Engine) extract(t *txn, cid, itemID string, stepBase int) (extraction, error) {
	st := t.state(cid)
	blockers, ok := st.grid.BlockingItems(itemID)
	if !ok {
		return extraction{}, fmt.Errorf("item %q: %w", itemID, types.ErrItemNotStowed)
	}
	slices.SortFunc(blockers, func(a, b string) int {
		ra, _ := st.grid.Region(a)
		rb, _ := st.grid.Region(b)
		if c := cmp.Compare(ra.Min.D, rb.Min.D); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	var x extraction
	step := func(action, id string) {
		x.steps = append(x.steps, types.RetrievalStep{
			Step: stepBase + len(x.steps) + 1, Action: action, ItemID: id, ItemName: e.itemName(id),
		})
	}

	aside := make([]displaced, 0, len(blockers))
	for _, b := range blockers {
		pos, _ := t.unstow(cid, b)
		aside = append(aside, displaced{itemID: b, from: pos})
		step(types.ActionSetAside, b)
	}
	t.unstow(cid, itemID)
	step(types.ActionRetrieve, itemID)

	for i := len(aside) - 1; i >= 0; i-- {
		d := aside[i]
		if t.fits(cid, grid.BoxOf(d.from)) {
			t.place(cid, d.itemID, d.from)
		} else {
			// The original region is always free after the target left; a
			// fresh fit keeps the grid consistent if that ever changes.
			it, _ := e.itemCopy(d.itemID)
			cand, ok := st.grid.FirstFit(grid.ExtentOf(it.Extent()))
			if !ok {
				return extraction{}, fmt.Errorf("restoring %q: %w", d.itemID, types.ErrInfeasiblePlacement)
			}
			t.place(cid, d.itemID, grid.PositionAt(cand.Box.Min, it.Extent()))
		}
		step(types.ActionPlaceBack, d.itemID)
	}
	x.blockers = len(aside)
	return x, nil
}

// Search finds an item by id, or by name when ItemID is empty, and returns
// its location with the steps to retrieve it. Among several stowed items
// sharing a name, the one with the fewest blockers wins, then the lower id.
// Nothing is changed.
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) (types.SearchResponse, error) {
	candidates, err := e.searchCandidates(req)
	if err != nil {
		return types.SearchResponse{}, err
	}

	resp := types.SearchResponse{Success: true, RetrievalSteps: []types.RetrievalStep{}}
	bestBlockers := -1
	for _, id := range candidates {
		found, x, ok := e.inspect(id)
		if !ok {
			continue
		}
		if bestBlockers < 0 || x.blockers < bestBlockers {
			bestBlockers = x.blockers
			f := found
			resp.Found, resp.Item, resp.RetrievalSteps = true, &f, x.steps
		}
	}
	e.log.Debug(ctx, "search", logging.String("item_id", req.ItemID),
		logging.String("item_name", req.ItemName), logging.Any("found", resp.Found))
	return resp, nil
}

func (e *Engine) searchCandidates(req types.SearchRequest) ([]string, error) {
	if req.ItemID == "" && req.ItemName == "" {
		return nil, fmt.Errorf("search: itemId or itemName is required: %w", types.ErrInvalidRequest)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if req.ItemID != "" {
		if _, ok := e.items[req.ItemID]; !ok {
			return nil, nil
		}
		return []string{req.ItemID}, nil
	}
	var ids []string
	for id, it := range e.items {
		if it.Name == req.ItemName && !it.Disposed {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// inspect plans a retrieval for id on a throwaway txn.
func (e *Engine) inspect(id string) (types.FoundItem, extraction, bool) {
	h, cid, unlock, err := e.lockItemContainer(id)
	if err != nil {
		return types.FoundItem{}, extraction{}, false
	}
	defer unlock()

	pos := h.st.positions[id]
	t := newTxn(map[string]*hold{cid: h})
	x, err := e.extract(t, cid, id, 0)
	if err != nil {
		return types.FoundItem{}, extraction{}, false
	}
	return types.FoundItem{
		ItemID:      id,
		Name:        e.itemName(id),
		ContainerID: cid,
		Zone:        h.container.Zone,
		Position:    pos,
	}, x, true
}
