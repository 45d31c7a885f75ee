package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func sampleSnapshot() types.Snapshot {
	food := types.Item{
		ItemID: "001", Name: "Food Packet", Width: 10, Depth: 10, Height: 20,
		Mass: 5, Priority: 80, ExpiryDate: types.DatePtr(types.MustDate("2025-05-20")),
		UsageLimit: types.IntPtr(30), CurrentUses: 4, PreferredZone: "Crew Quarters",
	}
	kit := types.Item{
		ItemID: "002", Name: "Oxygen Cylinder", Width: 15, Depth: 15, Height: 50,
		Mass: 30, Priority: 95, PreferredZone: "Airlock", Waste: true,
	}
	return types.Snapshot{
		Date: types.MustDate("2025-05-02T08:30:00Z"),
		Containers: []types.Container{
			{ContainerID: "contA", Zone: "Crew Quarters", Width: 100, Depth: 85, Height: 200},
			{ContainerID: "contB", Zone: "Airlock", Width: 50, Depth: 85, Height: 200},
		},
		Items: []types.Item{food, kit},
		Placements: []types.Placement{{
			ItemID: "001", ContainerID: "contA",
			Position: types.NewPosition(types.Coordinates{Width: 0, Depth: 0, Height: 0}, food.Extent()),
		}},
	}
}

func TestLoadSnapshotEmpty(t *testing.T) {
	b := attach(t, t.TempDir())
	snap, err := b.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Date.IsZero())
	assert.Empty(t, snap.Containers)
	assert.Empty(t, snap.Items)
	assert.Empty(t, snap.Placements)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	want := sampleSnapshot()

	require.NoError(t, b.SaveSnapshot(ctx, want))
	got, err := b.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))
}

func TestSnapshotSurvivesReattach(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	want := sampleSnapshot()

	first := NewBackend()
	require.NoError(t, first.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	require.NoError(t, first.SaveSnapshot(ctx, want))
	require.NoError(t, first.Detach())

	data, err := os.ReadFile(filepath.Join(dir, itemsJSONL))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"item_id":"001"`)

	second := attach(t, dir)
	got, err := second.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))
}

func TestSaveSnapshotReplacesState(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	require.NoError(t, b.SaveSnapshot(ctx, sampleSnapshot()))

	next := sampleSnapshot()
	next.Date = types.Date{}
	next.Items = next.Items[1:]
	next.Placements = nil
	require.NoError(t, b.SaveSnapshot(ctx, next))

	got, err := b.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "002", got.Items[0].ItemID)
	assert.Empty(t, got.Placements)
	assert.True(t, got.Date.Equal(sampleSnapshot().Date.Time), "a zero date keeps the stored one")
}
