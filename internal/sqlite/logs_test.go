package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func seedLogs(t *testing.T, b *Backend) time.Time {
	t.Helper()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	entries := []types.LogEntry{
		{Timestamp: base, UserID: "u1", ActionType: types.LogActionPlacement, ItemID: "001",
			Details: map[string]any{"containerId": "contA"}},
		{Timestamp: base.Add(time.Hour), UserID: "u2", ActionType: types.LogActionRetrieval, ItemID: "001"},
		{Timestamp: base.Add(2 * time.Hour), UserID: "u1", ActionType: types.LogActionRetrieval, ItemID: "002"},
	}
	for _, e := range entries {
		require.NoError(t, b.AppendLog(context.Background(), e))
	}
	return base
}

func TestLogsFilter(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	base := seedLogs(t, b)

	tests := []struct {
		name   string
		filter types.LogFilter
		want   int
	}{
		{"all", types.LogFilter{}, 3},
		{"by item", types.LogFilter{ItemID: "001"}, 2},
		{"by user", types.LogFilter{UserID: "u1"}, 2},
		{"by action", types.LogFilter{ActionType: types.LogActionRetrieval}, 2},
		{"from", types.LogFilter{From: base.Add(time.Hour)}, 2},
		{"window", types.LogFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)}, 1},
		{"combined", types.LogFilter{UserID: "u1", ActionType: types.LogActionRetrieval}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Logs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, e := range got {
				assert.True(t, tt.filter.Matches(e))
			}
		})
	}
}

func TestLogsRoundTripFields(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	base := seedLogs(t, b)
	require.NoError(t, b.Detach())

	b = attach(t, dir)
	got, err := b.Logs(ctx, types.LogFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	first := got[0]
	assert.NotEmpty(t, first.LogID)
	assert.True(t, first.Timestamp.Equal(base))
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, map[string]any{"containerId": "contA"}, first.Details)
	assert.Nil(t, got[1].Details)
}

func TestExportLogs(t *testing.T) {
	ctx := context.Background()
	b := attach(t, t.TempDir())
	seedLogs(t, b)
	out := filepath.Join(t.TempDir(), "logs.jsonl")

	n, err := b.ExportLogs(ctx, out, types.LogFilter{ItemID: "001"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines, err := readJSONL(out)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"actionType":"placement"`)
}

func TestReadJSONLSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\nnot json\n\n{\"b\":2}\n"), 0o644))

	records, err := readJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"b":2}`, string(records[1]))
}

func TestWriteJSONLReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	lines, err := marshalRecords([]metaJSON{{Key: "k", Value: "v"}})
	require.NoError(t, err)
	require.NoError(t, writeJSONL(path, lines))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"key\":\"k\",\"value\":\"v\"}\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
