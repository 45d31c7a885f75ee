// Package engine implements the spatial allocation and retrieval-planning
// engine: placement with rearrangement, retrieval planning, lifecycle
// simulation, and waste return planning over a fixed set of containers.
//
// Every container is guarded by its own mutex. Operations lock the
// containers they touch in containerId order, work on copy-on-write clones
// of those containers (see txn), and publish the clones only when the whole
// operation succeeded. The registry mutex guards the item registry and the
// item-to-container index; it is never held while acquiring a container
// lock.
package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// Recorder receives engine metrics. A nil Recorder is replaced by a no-op.
type Recorder interface {
	ObservePlacement(outcome string)
	ObserveRearrangement(steps int)
	ObserveRetrieval(blockers int)
	SetWasteItems(n int)
	ObserveUndocking(removed int)
	SetContainerUsage(containerID string, used, total int)
}

// Placement outcomes passed to Recorder.ObservePlacement.
const (
	outcomePlaced     = "placed"
	outcomeRearranged = "rearranged"
	outcomeUnplaced   = "unplaced"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// WithAuditLog sets the sink for audit entries of committed actions.
func WithAuditLog(a types.AuditLog) Option {
	return func(e *Engine) { e.audit = a }
}

// WithRearrangement enables or disables rearrangement when an item has no
// direct fit. Enabled by default.
func WithRearrangement(enabled bool) Option {
	return func(e *Engine) { e.rearrange = enabled }
}

// WithClock sets the clock used to timestamp audit entries whose request
// carried no timestamp. It is never used for lifecycle decisions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine owns the containers, the item registry, and the relation between
// items and the containers they are stowed in.
type Engine struct {
	mu        sync.RWMutex
	items     map[string]*types.Item
	holds     map[string]*hold
	locations map[string]location

	log       logging.Logger
	rec       Recorder
	audit     types.AuditLog
	rearrange bool
	now       func() time.Time
}

// hold is one container and its stowage state, guarded by mu.
type hold struct {
	mu        sync.Mutex
	container types.Container
	st        *stowage
}

// stowage is the occupancy of one container: the grid plus the position of
// every item in it.
type stowage struct {
	grid      *grid.Grid
	positions map[string]types.Position
}

func (s *stowage) clone() *stowage {
	c := &stowage{grid: s.grid.Clone(), positions: make(map[string]types.Position, len(s.positions))}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	return c
}

// location is the index entry for a stowed item.
type location struct {
	containerID string
	position    types.Position
}

// New returns an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		items:     make(map[string]*types.Item),
		holds:     make(map[string]*hold),
		locations: make(map[string]location),
		log:       logging.Noop(),
		rec:       nopRecorder{},
		rearrange: true,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func newStowage(c types.Container) (*stowage, error) {
	g, err := grid.New(grid.BoundsOf(c.Extent()))
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", c.ContainerID, err)
	}
	return &stowage{grid: g, positions: make(map[string]types.Position)}, nil
}

// RegisterContainers adds containers. Registering a known container with
// identical geometry is a no-op; a different geometry returns
// ErrContainerConflict. Nothing is registered if any entry is rejected.
func (e *Engine) RegisterContainers(ctx context.Context, containers []types.Container) error {
	var errs error
	fresh := make(map[string]*hold, len(containers))
	for _, c := range containers {
		if err := c.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("container %q: %w", c.ContainerID, err))
			continue
		}
		st, err := newStowage(c)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fresh[c.ContainerID] = &hold{container: c, st: st}
	}
	if errs != nil {
		return errs
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range containers {
		if existing, ok := e.holds[c.ContainerID]; ok && !existing.container.SameGeometry(c) {
			errs = multierr.Append(errs, fmt.Errorf("container %q: %w", c.ContainerID, types.ErrContainerConflict))
		}
	}
	if errs != nil {
		return errs
	}
	added := 0
	for id, h := range fresh {
		if _, ok := e.holds[id]; ok {
			continue
		}
		e.holds[id] = h
		added++
	}
	if added > 0 {
		e.log.Info(ctx, "containers registered", logging.Int("added", added))
	}
	return nil
}

// RegisterItems adds items to the registry. New items start unstowed with
// the usage count they carry. Re-registering a known item updates its
// descriptive fields and keeps its usage count and waste state; changing the
// dimensions of a stowed item is rejected with ErrInvalidGeometry. Nothing is
// registered if any entry is rejected.
func (e *Engine) RegisterItems(ctx context.Context, items []types.Item) error {
	var errs error
	for _, it := range items {
		if err := it.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %q: %w", it.ItemID, err))
		}
	}
	if errs != nil {
		return errs
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range items {
		existing, ok := e.items[it.ItemID]
		if !ok {
			continue
		}
		if _, stowed := e.locations[it.ItemID]; stowed && existing.Extent() != it.Extent() {
			errs = multierr.Append(errs, fmt.Errorf("item %q is stowed, dimensions cannot change: %w", it.ItemID, types.ErrInvalidGeometry))
		}
	}
	if errs != nil {
		return errs
	}
	for _, it := range items {
		if existing, ok := e.items[it.ItemID]; ok {
			uses, waste, disposed := existing.CurrentUses, existing.Waste, existing.Disposed
			*existing = it
			existing.CurrentUses = max(uses, it.CurrentUses)
			existing.Waste = waste || it.Waste
			existing.Disposed = disposed
			continue
		}
		cp := it
		e.items[it.ItemID] = &cp
	}
	return nil
}

// Item returns a copy of the registered item.
func (e *Engine) Item(id string) (types.Item, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	it, ok := e.items[id]
	if !ok {
		return types.Item{}, fmt.Errorf("item %q: %w", id, types.ErrItemNotFound)
	}
	return *it, nil
}

// Items returns copies of every registered item, sorted by id.
func (e *Engine) Items() []types.Item {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.Item, 0, len(e.items))
	for _, it := range e.items {
		out = append(out, *it)
	}
	slices.SortFunc(out, func(a, b types.Item) int { return compareStrings(a.ItemID, b.ItemID) })
	return out
}

// Locate returns where the item is stowed. Returns ErrItemNotFound for an
// unknown item and ErrItemNotStowed for an item without a container.
func (e *Engine) Locate(id string) (types.Placement, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.items[id]; !ok {
		return types.Placement{}, fmt.Errorf("item %q: %w", id, types.ErrItemNotFound)
	}
	loc, ok := e.locations[id]
	if !ok {
		return types.Placement{}, fmt.Errorf("item %q: %w", id, types.ErrItemNotStowed)
	}
	return types.Placement{ItemID: id, ContainerID: loc.containerID, Position: loc.position}, nil
}

// Containers returns every registered container, sorted by id.
func (e *Engine) Containers() []types.Container {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.Container, 0, len(e.holds))
	for _, h := range e.holds {
		out = append(out, h.container)
	}
	slices.SortFunc(out, func(a, b types.Container) int { return compareStrings(a.ContainerID, b.ContainerID) })
	return out
}

// Usage reports cell occupancy for every container and refreshes the
// utilisation gauges.
func (e *Engine) Usage(ctx context.Context) []types.ContainerUsage {
	holds, unlock := e.lockAll()
	defer unlock()

	out := make([]types.ContainerUsage, 0, len(holds))
	for _, id := range sortedHoldIDs(holds) {
		h := holds[id]
		u := types.ContainerUsage{
			Container:  h.container,
			TotalCells: h.st.grid.TotalCells(),
			UsedCells:  h.st.grid.UsedCells(),
			Items:      h.st.grid.Items(),
		}
		u.FreeCells = u.TotalCells - u.UsedCells
		e.rec.SetContainerUsage(id, u.UsedCells, u.TotalCells)
		out = append(out, u)
	}
	return out
}

// lockHolds locks the named containers in id order. The returned map holds
// exactly those containers; unlock releases them.
func (e *Engine) lockHolds(ids []string) (map[string]*hold, func(), error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	e.mu.RLock()
	holds := make(map[string]*hold, len(ids))
	for _, id := range ids {
		h, ok := e.holds[id]
		if !ok {
			e.mu.RUnlock()
			return nil, nil, fmt.Errorf("container %q: %w", id, types.ErrContainerNotFound)
		}
		holds[id] = h
	}
	e.mu.RUnlock()

	for _, id := range ids {
		holds[id].mu.Lock()
	}
	unlock := func() {
		for i := len(ids) - 1; i >= 0; i-- {
			holds[ids[i]].mu.Unlock()
		}
	}
	return holds, unlock, nil
}

// lockAll locks every registered container.
func (e *Engine) lockAll() (map[string]*hold, func()) {
	e.mu.RLock()
	ids := make([]string, 0, len(e.holds))
	for id := range e.holds {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	holds, unlock, err := e.lockHolds(ids)
	if err != nil {
		// Containers are never deregistered.
		panic(err)
	}
	return holds, unlock
}

// lockItemContainer locks the container an item is stowed in, retrying if
// the item moves before the lock is acquired.
func (e *Engine) lockItemContainer(itemID string) (*hold, string, func(), error) {
	for {
		e.mu.RLock()
		_, known := e.items[itemID]
		loc, stowed := e.locations[itemID]
		e.mu.RUnlock()
		if !known {
			return nil, "", nil, fmt.Errorf("item %q: %w", itemID, types.ErrItemNotFound)
		}
		if !stowed {
			return nil, "", nil, fmt.Errorf("item %q: %w", itemID, types.ErrItemNotStowed)
		}
		holds, unlock, err := e.lockHolds([]string{loc.containerID})
		if err != nil {
			return nil, "", nil, err
		}
		e.mu.RLock()
		now, ok := e.locations[itemID]
		e.mu.RUnlock()
		if ok && now.containerID == loc.containerID {
			return holds[loc.containerID], loc.containerID, unlock, nil
		}
		unlock()
	}
}

// itemCopy returns a copy of the registered item.
func (e *Engine) itemCopy(id string) (types.Item, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	it, ok := e.items[id]
	if !ok {
		return types.Item{}, false
	}
	return *it, true
}

func (e *Engine) itemName(id string) string {
	it, _ := e.itemCopy(id)
	return it.Name
}

func sortedHoldIDs(holds map[string]*hold) []string {
	ids := make([]string, 0, len(holds))
	for id := range holds {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type nopRecorder struct{}

func (nopRecorder) ObservePlacement(string)             {}
func (nopRecorder) ObserveRearrangement(int)            {}
func (nopRecorder) ObserveRetrieval(int)                {}
func (nopRecorder) SetWasteItems(int)                   {}
func (nopRecorder) ObserveUndocking(int)                {}
func (nopRecorder) SetContainerUsage(string, int, int)  {}
