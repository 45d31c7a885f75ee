package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// Exclusion reasons in a return manifest.
const (
	excludedOverBudget = "exceeds maximum weight"
	excludedNotStowed  = "not stowed"
	excludedNoSpace    = "no space in undocking container"
)

// PlanReturn builds a disposal plan into the undocking container without
// changing anything.
func (e *Engine) PlanReturn(ctx context.Context, req types.ReturnPlanRequest) (types.ReturnPlanResponse, error) {
	return e.returnPlan(ctx, req, false)
}

// ApplyReturn builds the same plan as PlanReturn and commits it: accepted
// items end up in the undocking container and every blocker where it was.
func (e *Engine) ApplyReturn(ctx context.Context, req types.ReturnPlanRequest) (types.ReturnPlanResponse, error) {
	return e.returnPlan(ctx, req, true)
}

// returnPlan selects waste items at the undocking date, lowest priority and
// soonest expiry first, until the next one would exceed MaxWeight; that item
// and every later one are excluded as over budget. Each selected item is
// extracted from its container and fitted into the undocking container on
// its own checkpoint, so an item that cannot be extracted or does not fit is
// excluded without affecting the rest of the plan.
func (e *Engine) returnPlan(ctx context.Context, req types.ReturnPlanRequest, commit bool) (types.ReturnPlanResponse, error) {
	if req.UndockingContainerID == "" || req.UndockingDate.IsZero() || req.MaxWeight < 0 {
		return types.ReturnPlanResponse{}, fmt.Errorf("return plan: undockingContainerId, undockingDate and a non-negative maxWeight are required: %w", types.ErrInvalidRequest)
	}
	holds, unlock := e.lockAll()
	defer unlock()
	if _, ok := holds[req.UndockingContainerID]; !ok {
		return types.ReturnPlanResponse{}, fmt.Errorf("container %q: %w", req.UndockingContainerID, types.ErrContainerNotFound)
	}

	resp := types.ReturnPlanResponse{
		Success:        true,
		ReturnPlan:     []types.ReturnStep{},
		RetrievalSteps: []types.RetrievalStep{},
		ReturnManifest: types.ReturnManifest{
			UndockingContainerID: req.UndockingContainerID,
			UndockingDate:        req.UndockingDate,
			ReturnItems:          []types.ReturnItem{},
			ExcludedItems:        []types.ReturnItem{},
		},
	}
	manifest := &resp.ReturnManifest
	exclude := func(it types.Item, reason string) {
		manifest.ExcludedItems = append(manifest.ExcludedItems, types.ReturnItem{ItemID: it.ItemID, Name: it.Name, Reason: reason})
	}

	t := newTxn(holds)
	undock := req.UndockingContainerID
	overBudget := false
	var accepted []string
	for _, c := range e.returnCandidates(req.UndockingDate) {
		it := c.item
		// Items that cannot be loaded are skipped before they reach the budget.
		loc, ok := t.where(e, it.ItemID)
		if !ok {
			exclude(it, excludedNotStowed)
			continue
		}
		if overBudget || manifest.TotalWeight+it.Mass > req.MaxWeight {
			overBudget = true
			exclude(it, excludedOverBudget)
			continue
		}
		if loc.containerID != undock {
			cp := t.checkpoint()
			x, err := e.extract(t, loc.containerID, it.ItemID, len(resp.RetrievalSteps))
			if err != nil {
				t.rollback(cp)
				exclude(it, err.Error())
				continue
			}
			cand, ok := t.state(undock).grid.FirstFit(grid.ExtentOf(it.Extent()))
			if !ok {
				t.rollback(cp)
				exclude(it, excludedNoSpace)
				continue
			}
			t.place(undock, it.ItemID, grid.PositionAt(cand.Box.Min, it.Extent()))
			resp.RetrievalSteps = append(resp.RetrievalSteps, x.steps...)
			resp.ReturnPlan = append(resp.ReturnPlan, types.ReturnStep{
				Step:          len(resp.ReturnPlan) + 1,
				ItemID:        it.ItemID,
				ItemName:      it.Name,
				FromContainer: loc.containerID,
				ToContainer:   undock,
			})
		}
		manifest.ReturnItems = append(manifest.ReturnItems, types.ReturnItem{ItemID: it.ItemID, Name: it.Name, Reason: c.reason})
		manifest.TotalWeight += it.Mass
		manifest.TotalVolume += it.Volume()
		accepted = append(accepted, it.ItemID)
	}

	if commit {
		e.commit(t)
		e.mu.Lock()
		for _, id := range accepted {
			e.items[id].Waste = true
		}
		e.mu.Unlock()
	}
	e.log.Info(ctx, "return plan built",
		logging.String("undocking_container", undock),
		logging.Int("accepted", len(manifest.ReturnItems)),
		logging.Int("excluded", len(manifest.ExcludedItems)),
		logging.Any("applied", commit))
	return resp, nil
}

type returnCandidate struct {
	item   types.Item
	reason string
}

// returnCandidates lists waste items at date in disposal order.
func (e *Engine) returnCandidates(date types.Date) []returnCandidate {
	e.mu.RLock()
	var out []returnCandidate
	for _, it := range e.items {
		if it.Disposed {
			continue
		}
		if reason := wasteReason(*it, date); reason != "" {
			out = append(out, returnCandidate{item: *it, reason: reason})
		}
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b returnCandidate) int { return disposalOrder(a.item, b.item) })
	return out
}

// CompleteUndocking detaches every item in the undocking container for
// good: the items are freed from the grid, lose their container, and are
// marked disposed.
func (e *Engine) CompleteUndocking(ctx context.Context, req types.CompleteUndockingRequest) (types.CompleteUndockingResponse, error) {
	if req.UndockingContainerID == "" {
		return types.CompleteUndockingResponse{}, fmt.Errorf("complete undocking: undockingContainerId is required: %w", types.ErrInvalidRequest)
	}
	holds, unlock, err := e.lockHolds([]string{req.UndockingContainerID})
	if err != nil {
		return types.CompleteUndockingResponse{}, err
	}

	t := newTxn(holds)
	st := t.state(req.UndockingContainerID)
	removed := st.grid.Items()
	for _, id := range removed {
		t.unstow(req.UndockingContainerID, id)
	}
	e.commit(t)
	e.mu.Lock()
	for _, id := range removed {
		if it, ok := e.items[id]; ok {
			it.Disposed = true
		}
	}
	e.mu.Unlock()
	unlock()

	ts := e.stamp(req.Timestamp)
	entries := make([]types.LogEntry, 0, len(removed))
	for _, id := range removed {
		entries = append(entries, types.LogEntry{
			Timestamp:  ts,
			ActionType: types.LogActionDisposal,
			ItemID:     id,
			Details:    map[string]any{"containerId": req.UndockingContainerID},
		})
	}
	e.record(ctx, entries...)
	e.rec.ObserveUndocking(len(removed))
	e.log.Info(ctx, "undocking completed",
		logging.String("undocking_container", req.UndockingContainerID),
		logging.Int("items_removed", len(removed)))
	return types.CompleteUndockingResponse{Success: true, ItemsRemoved: len(removed)}, nil
}
