package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/stowage/internal/grid"
	"github.com/mesh-intelligence/stowage/internal/metrics"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var day0 = types.MustDate("2025-05-01")

func container(id, zone string, w, d, h float64) types.Container {
	return types.Container{ContainerID: id, Zone: zone, Width: w, Depth: d, Height: h}
}

func cube(id string, side float64, priority int) types.Item {
	return types.Item{ItemID: id, Name: "name-" + id, Width: side, Depth: side, Height: side, Priority: priority}
}

func box(id string, w, d, h float64, priority int) types.Item {
	return types.Item{ItemID: id, Name: "name-" + id, Width: w, Depth: d, Height: h, Priority: priority}
}

func at(it types.Item, w, d, h float64) types.Position {
	return types.NewPosition(types.Coordinates{Width: w, Depth: d, Height: h}, it.Extent())
}

func newEngine(t *testing.T, containers ...types.Container) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.RegisterContainers(context.Background(), containers))
	return e
}

// stow registers it and puts it at pos.
func stow(t *testing.T, e *Engine, it types.Item, containerID string, pos types.Position) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.RegisterItems(ctx, []types.Item{it}))
	_, err := e.Place(ctx, types.PlaceRequest{ItemID: it.ItemID, ContainerID: containerID, Position: pos})
	require.NoError(t, err)
}

func gridCells(e *Engine, containerID string) []string {
	e.mu.RLock()
	h := e.holds[containerID]
	e.mu.RUnlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.st.grid.Cells()
}

// requireConsistent checks that every indexed item occupies exactly the
// voxelisation of its recorded position and nothing else is in any grid.
func requireConsistent(t *testing.T, e *Engine) {
	t.Helper()
	holds, unlock := e.lockAll()
	defer unlock()
	e.mu.RLock()
	defer e.mu.RUnlock()

	for cid, h := range holds {
		g := h.st.grid
		for _, id := range g.Items() {
			loc, ok := e.locations[id]
			require.True(t, ok, "item %s in grid %s but not indexed", id, cid)
			require.Equal(t, cid, loc.containerID)
			region, _ := g.Region(id)
			require.Equal(t, grid.BoxOf(loc.position), region, "item %s", id)
			require.Equal(t, loc.position, h.st.positions[id])
		}
	}
	for id, loc := range e.locations {
		h := holds[loc.containerID]
		_, ok := h.st.grid.Region(id)
		require.True(t, ok, "indexed item %s missing from grid %s", id, loc.containerID)
	}
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []types.LogEntry
}

func (a *auditRecorder) AppendLog(_ context.Context, entry types.LogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.ActionType)
	}
	return out
}

func TestRegisterContainers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, container("C1", "A", 10, 10, 10))

	t.Run("identical geometry is a no-op", func(t *testing.T) {
		require.NoError(t, e.RegisterContainers(ctx, []types.Container{container("C1", "A", 10, 10, 10)}))
		assert.Len(t, e.Containers(), 1)
	})

	t.Run("resize is a conflict", func(t *testing.T) {
		err := e.RegisterContainers(ctx, []types.Container{container("C1", "A", 5, 10, 10)})
		assert.ErrorIs(t, err, types.ErrContainerConflict)
	})

	t.Run("invalid entries are all reported and nothing is added", func(t *testing.T) {
		err := e.RegisterContainers(ctx, []types.Container{
			container("C2", "A", 10, 10, 10),
			container("bad", "A", 0.5, 10, 10),
			container("", "A", 1, 1, 1),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrInvalidGeometry)
		assert.ErrorIs(t, err, types.ErrInvalidRequest)
		assert.Len(t, e.Containers(), 1)
	})
}

func TestRegisterItemsKeepsUsage(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	it := cube("a", 1, 1)
	it.UsageLimit = types.IntPtr(5)
	require.NoError(t, e.RegisterItems(ctx, []types.Item{it}))
	e.items["a"].Use()

	it.Name = "renamed"
	require.NoError(t, e.RegisterItems(ctx, []types.Item{it}))
	got, err := e.Item("a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 1, got.CurrentUses)

	_, err = e.Item("missing")
	assert.ErrorIs(t, err, types.ErrItemNotFound)
}

func TestRegisterItemsRejectsResizeOfStowedItem(t *testing.T) {
	e := newEngine(t, container("C1", "", 5, 5, 5))
	it := cube("a", 1, 1)
	stow(t, e, it, "C1", at(it, 0, 0, 0))

	bigger := cube("a", 2, 1)
	err := e.RegisterItems(context.Background(), []types.Item{bigger})
	assert.ErrorIs(t, err, types.ErrInvalidGeometry)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, container("C1", "A", 4, 4, 4), container("C2", "B", 3, 3, 3))
	a, b := cube("a", 2, 3), box("b", 1, 2, 1, 1)
	b.ExpiryDate = types.DatePtr(day0)
	stow(t, e, a, "C1", at(a, 0, 1, 0))
	stow(t, e, b, "C2", at(b, 2, 0, 2))
	require.NoError(t, e.RegisterItems(ctx, []types.Item{cube("loose", 1, 1)}))

	snap := e.Snapshot(ctx)
	require.Len(t, snap.Placements, 2)

	restored := New()
	require.NoError(t, restored.Restore(ctx, snap))
	assert.Empty(t, cmp.Diff(snap, restored.Snapshot(ctx)))
	assert.Empty(t, cmp.Diff(gridCells(e, "C1"), gridCells(restored, "C1")))
	assert.Empty(t, cmp.Diff(gridCells(e, "C2"), gridCells(restored, "C2")))
	requireConsistent(t, restored)
}

func TestRestoreRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	a, b := cube("a", 2, 1), cube("b", 2, 1)
	snap := types.Snapshot{
		Containers: []types.Container{container("C1", "", 4, 4, 4)},
		Items:      []types.Item{a, b},
		Placements: []types.Placement{
			{ItemID: "a", ContainerID: "C1", Position: at(a, 0, 0, 0)},
			{ItemID: "b", ContainerID: "C1", Position: at(b, 1, 1, 1)},
		},
	}
	e := New()
	err := e.Restore(ctx, snap)
	assert.ErrorIs(t, err, types.ErrCellConflict)
	assert.Empty(t, e.Containers())

	snap.Placements[1].ContainerID = "nowhere"
	assert.ErrorIs(t, e.Restore(ctx, snap), types.ErrContainerNotFound)
}

func TestUsageAndMetrics(t *testing.T) {
	ctx := context.Background()
	col, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	e := New(WithRecorder(col))
	require.NoError(t, e.RegisterContainers(ctx, []types.Container{container("C1", "", 10, 10, 10)}))

	resp, err := e.PlaceItems(ctx, types.PlacementRequest{Items: []types.Item{cube("x", 4, 5)}})
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.Equal(t, 1.0, testutil.ToFloat64(col.Placements.WithLabelValues(metrics.OutcomePlaced)))
	assert.Equal(t, 64.0, testutil.ToFloat64(col.ContainerUsedCells.WithLabelValues("C1")))

	usage := e.Usage(ctx)
	require.Len(t, usage, 1)
	assert.Equal(t, 1000, usage[0].TotalCells)
	assert.Equal(t, 64, usage[0].UsedCells)
	assert.Equal(t, 936, usage[0].FreeCells)
	assert.Equal(t, []string{"x"}, usage[0].Items)
}

func TestConcurrentOperationsOnDisjointContainers(t *testing.T) {
	ctx := context.Background()
	const workers = 8
	e := New()
	for i := range workers {
		require.NoError(t, e.RegisterContainers(ctx, []types.Container{container(fmt.Sprintf("C%d", i), "", 4, 4, 4)}))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cid := fmt.Sprintf("C%d", i)
			front, back := box(fmt.Sprintf("f%d", i), 4, 1, 4, 1), box(fmt.Sprintf("b%d", i), 4, 1, 4, 2)
			if _, err := e.PlaceItems(ctx, types.PlacementRequest{
				Items:      []types.Item{back, front},
				Containers: []types.Container{container(cid, "", 4, 4, 4)},
			}); err != nil {
				errs <- err
				return
			}
			for range 5 {
				if _, err := e.Search(ctx, types.SearchRequest{ItemID: front.ItemID}); err != nil {
					errs <- err
					return
				}
				if _, err := e.Retrieve(ctx, types.RetrieveRequest{ItemID: front.ItemID}); err != nil {
					errs <- err
					return
				}
				if _, err := e.Place(ctx, types.PlaceRequest{ItemID: front.ItemID, ContainerID: cid, Position: at(front, 0, 1, 0)}); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	requireConsistent(t, e)
	for i := range workers {
		it, err := e.Item(fmt.Sprintf("f%d", i))
		require.NoError(t, err)
		assert.Equal(t, 5, it.CurrentUses)
	}
}

func TestConcurrentPlacementIntoSharedContainer(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, container("C1", "", 3, 3, 3))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := e.PlaceItems(ctx, types.PlacementRequest{Items: []types.Item{cube(fmt.Sprintf("i%02d", i), 1, 1)}})
			assert.NoError(t, err)
			assert.True(t, resp.Success)
		}(i)
	}
	wg.Wait()

	requireConsistent(t, e)
	assert.Len(t, e.Snapshot(ctx).Placements, 20)
	used := 0
	for _, c := range gridCells(e, "C1") {
		if c != "" {
			used++
		}
	}
	assert.Equal(t, 20, used)
}
