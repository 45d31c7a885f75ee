package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// IdentifyWaste lists every item that is waste at now: flagged by an
// earlier simulation, expired, or out of uses. Disposed items are left out.
// Nothing is changed.
func (e *Engine) IdentifyWaste(ctx context.Context, now types.Date) types.WasteIdentifyResponse {
	e.mu.RLock()
	out := make([]types.WasteItem, 0)
	for _, it := range e.items {
		if it.Disposed {
			continue
		}
		reason := wasteReason(*it, now)
		if reason == "" {
			continue
		}
		w := types.WasteItem{ItemID: it.ItemID, Name: it.Name, Reason: reason}
		if loc, ok := e.locations[it.ItemID]; ok {
			pos := loc.position
			w.ContainerID, w.Position = loc.containerID, &pos
		}
		out = append(out, w)
	}
	e.mu.RUnlock()

	slices.SortFunc(out, func(a, b types.WasteItem) int { return compareStrings(a.ItemID, b.ItemID) })
	e.rec.SetWasteItems(len(out))
	e.log.Debug(ctx, "waste identified", logging.Int("count", len(out)))
	return types.WasteIdentifyResponse{Success: true, WasteItems: out}
}

// wasteReason classifies item at now, also reporting items a simulation
// already flagged as waste.
func wasteReason(item types.Item, now types.Date) string {
	if r := types.Classify(item, now); r != "" {
		return r
	}
	if item.Waste {
		if item.IsDepleted() {
			return types.ReasonOutOfUses
		}
		return types.ReasonExpired
	}
	return ""
}

// Simulate advances mission time from the given date, one day at a time,
// either NumOfDays days or up to ToTimestamp, whose last step lands exactly
// on ToTimestamp. Each day every listed item
// that is not yet waste is used once; items reaching their usage limit are
// reported as depleted and items past their expiry as expired, and both are
// flagged as waste. Items are never moved.
func (e *Engine) Simulate(ctx context.Context, from types.Date, req types.SimulateRequest) (types.SimulateResponse, error) {
	days, err := simulationDays(from, req)
	if err != nil {
		return types.SimulateResponse{}, err
	}

	changes := types.SimulationChanges{
		ItemsUsed:          []types.UsedItem{},
		ItemsExpired:       []types.ItemRef{},
		ItemsDepletedToday: []types.ItemRef{},
	}
	usedAt := make(map[string]int)
	current := from

	e.mu.Lock()
	ids := make([]string, 0, len(e.items))
	for id := range e.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for day := 1; day <= days; day++ {
		current = from.AddDays(day)
		if day == days && req.ToTimestamp != nil {
			current = *req.ToTimestamp
		}
		for _, ref := range req.ItemsToBeUsedPerDay {
			it := e.resolveLocked(ids, ref)
			if it == nil {
				continue
			}
			it.Use()
			used := types.UsedItem{ItemID: it.ItemID, Name: it.Name, RemainingUses: it.RemainingUses()}
			if i, ok := usedAt[it.ItemID]; ok {
				changes.ItemsUsed[i] = used
			} else {
				usedAt[it.ItemID] = len(changes.ItemsUsed)
				changes.ItemsUsed = append(changes.ItemsUsed, used)
			}
			if it.IsDepleted() {
				it.Waste = true
				changes.ItemsDepletedToday = append(changes.ItemsDepletedToday, types.ItemRef{ItemID: it.ItemID, Name: it.Name})
			}
		}
		for _, id := range ids {
			it := e.items[id]
			if it.Waste || it.Disposed || !it.IsExpired(current) {
				continue
			}
			it.Waste = true
			changes.ItemsExpired = append(changes.ItemsExpired, types.ItemRef{ItemID: it.ItemID, Name: it.Name})
		}
	}
	e.mu.Unlock()

	e.record(ctx, types.LogEntry{
		ActionType: types.LogActionSimulation,
		Details: map[string]any{
			"from":     from.String(),
			"to":       current.String(),
			"used":     len(changes.ItemsUsed),
			"expired":  len(changes.ItemsExpired),
			"depleted": len(changes.ItemsDepletedToday),
		},
	})
	e.log.Info(ctx, "simulation advanced",
		logging.String("new_date", current.String()),
		logging.Int("days", days),
		logging.Int("expired", len(changes.ItemsExpired)),
		logging.Int("depleted", len(changes.ItemsDepletedToday)))
	return types.SimulateResponse{Success: true, NewDate: current, Changes: changes}, nil
}

// simulationDays returns how many whole days to advance. Exactly one of
// NumOfDays and ToTimestamp must be set.
func simulationDays(from types.Date, req types.SimulateRequest) (int, error) {
	switch {
	case req.NumOfDays > 0 && req.ToTimestamp != nil:
		return 0, fmt.Errorf("simulate: numOfDays and toTimestamp are exclusive: %w", types.ErrInvalidRequest)
	case req.NumOfDays > 0:
		return req.NumOfDays, nil
	case req.ToTimestamp != nil:
		if !req.ToTimestamp.After(from.Time) {
			return 0, fmt.Errorf("simulate: toTimestamp %s is not after %s: %w", req.ToTimestamp, from, types.ErrInvalidRequest)
		}
		days := 0
		for from.AddDays(days+1).Compare(req.ToTimestamp.Time) <= 0 {
			days++
		}
		return max(days, 1), nil
	default:
		return 0, fmt.Errorf("simulate: numOfDays or toTimestamp is required: %w", types.ErrInvalidRequest)
	}
}

// resolveLocked finds the item a reference names, skipping waste and
// disposed items. A name matches the first such item by id. The caller
// holds e.mu.
func (e *Engine) resolveLocked(ids []string, ref types.ItemRef) *types.Item {
	usable := func(it *types.Item) bool { return it != nil && !it.Waste && !it.Disposed && !it.IsDepleted() }
	if ref.ItemID != "" {
		if it := e.items[ref.ItemID]; usable(it) {
			return it
		}
		return nil
	}
	for _, id := range ids {
		if it := e.items[id]; it.Name == ref.Name && usable(it) {
			return it
		}
	}
	return nil
}
