package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// testEnv holds the directories one test's commands share.
type testEnv struct {
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T, initArgs ...string) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{configDir: filepath.Join(root, "config"), dataDir: filepath.Join(root, "data")}
	_, err := env.run(t, append([]string{"init"}, initArgs...)...)
	require.NoError(t, err)
	return env
}

// run executes one stowage invocation and returns its stdout.
func (env testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config-dir", env.configDir, "--data-dir", env.dataDir}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (env testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	require.NoError(t, err, "stowage %s", strings.Join(args, " "))
	return out
}

// runJSON runs a command with --json and decodes its output into v.
func (env testEnv) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := env.mustRun(t, append([]string{"--json"}, args...)...)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestVersion(t *testing.T) {
	out := testEnv{configDir: t.TempDir(), dataDir: t.TempDir()}.mustRun(t, "version")
	assert.Contains(t, out, "stowage v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInitWritesConfig(t *testing.T) {
	env := newTestEnv(t, "--start-date", "2025-05-01")

	data, err := os.ReadFile(filepath.Join(env.configDir, configFileExt))
	require.NoError(t, err)
	var cfg configFile
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, types.BackendSQLite, cfg.Backend)
	assert.Equal(t, env.dataDir, cfg.DataDir)
	assert.Equal(t, "2025-05-01", cfg.StartDate)
	assert.True(t, cfg.Rearrangement)

	_, err = os.Stat(filepath.Join(env.dataDir, "items.jsonl"))
	assert.NoError(t, err)

	out := env.mustRun(t, "init", "--start-date", "2030-01-01")
	assert.Contains(t, out, "initialized")
	again, err := os.ReadFile(filepath.Join(env.configDir, configFileExt))
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again), "existing config is kept")
}

func TestInitRejectsBadStartDate(t *testing.T) {
	env := testEnv{configDir: t.TempDir(), dataDir: t.TempDir()}
	_, err := env.run(t, "init", "--start-date", "May 1st")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestContainersAndItems(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "containers", "add", "contA", "--zone", "Crew Quarters", "--width", "4", "--depth", "4", "--height", "4")
	env.mustRun(t, "items", "add", "food", "--name", "Food Packet",
		"--width", "2", "--depth", "2", "--height", "2", "--priority", "80", "--usage-limit", "3")

	var usage []types.ContainerUsage
	env.runJSON(t, &usage, "containers", "list")
	require.Len(t, usage, 1)
	assert.Equal(t, "contA", usage[0].ContainerID)
	assert.Equal(t, 64, usage[0].TotalCells)
	assert.Zero(t, usage[0].UsedCells)

	var items []itemView
	env.runJSON(t, &items, "items", "list", "--unstowed")
	require.Len(t, items, 1)
	assert.Equal(t, "Food Packet", items[0].Name)
	require.NotNil(t, items[0].UsageLimit)
	assert.Equal(t, 3, *items[0].UsageLimit)

	out := env.mustRun(t, "containers", "list")
	assert.Contains(t, out, "Crew Quarters")
	assert.Contains(t, out, "0/64")
}

func TestContainerResizeIsUserError(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "containers", "add", "contA", "--width", "4", "--depth", "4", "--height", "4")
	_, err := env.run(t, "containers", "add", "contA", "--width", "5", "--depth", "4", "--height", "4")
	require.ErrorIs(t, err, types.ErrContainerConflict)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestPlaceSearchRetrieve(t *testing.T) {
	env := newTestEnv(t, "--start-date", "2025-05-01")
	env.mustRun(t, "containers", "add", "contA", "--zone", "Lab", "--width", "4", "--depth", "4", "--height", "4")
	env.mustRun(t, "items", "add", "kit", "--name", "Med Kit", "--width", "2", "--depth", "2", "--height", "2",
		"--priority", "90", "--usage-limit", "5")
	env.mustRun(t, "items", "add", "spare", "--name", "Spare Part", "--width", "1", "--depth", "1", "--height", "1")

	var placed types.PlacementResponse
	env.runJSON(t, &placed, "placement")
	assert.True(t, placed.Success)
	require.Len(t, placed.Placements, 2)
	assert.Equal(t, "kit", placed.Placements[0].ItemID, "higher priority first")
	assert.Equal(t, types.Coordinates{}, placed.Placements[0].Position.StartCoordinates)

	_, err := env.run(t, "placement")
	assert.ErrorIs(t, err, errNothingToPlace)

	var found types.SearchResponse
	env.runJSON(t, &found, "search", "--name", "Med Kit")
	require.True(t, found.Found)
	assert.Equal(t, "kit", found.Item.ItemID)
	assert.Equal(t, "Lab", found.Item.Zone)
	require.NotEmpty(t, found.RetrievalSteps)
	assert.Equal(t, types.ActionRetrieve, found.RetrievalSteps[len(found.RetrievalSteps)-1].Action)

	env.mustRun(t, "retrieve", "kit", "--dry-run")
	var shown itemView
	env.runJSON(t, &shown, "items", "show", "kit")
	assert.Equal(t, "contA", shown.ContainerID, "dry run leaves the item in place")

	env.mustRun(t, "--user", "astro1", "retrieve", "kit")
	var retrieved itemView
	env.runJSON(t, &retrieved, "items", "show", "kit")
	assert.Empty(t, retrieved.ContainerID)
	assert.Nil(t, retrieved.Position)
	assert.Equal(t, 1, retrieved.CurrentUses)

	_, err = env.run(t, "retrieve", "kit")
	require.ErrorIs(t, err, types.ErrItemNotStowed)
	assert.Equal(t, exitUserError, exitCode(err))

	env.mustRun(t, "place", "kit", "--container", "contA", "--start", "2,2,2")
	var moved itemView
	env.runJSON(t, &moved, "items", "show", "kit")
	assert.Equal(t, "contA", moved.ContainerID)
	require.NotNil(t, moved.Position)
	assert.Equal(t, types.Coordinates{Width: 2, Depth: 2, Height: 2}, moved.Position.StartCoordinates)
	assert.Equal(t, types.Coordinates{Width: 4, Depth: 4, Height: 4}, moved.Position.EndCoordinates)

	var logs []types.LogEntry
	env.runJSON(t, &logs, "logs", "--item", "kit")
	actions := make([]string, 0, len(logs))
	for _, e := range logs {
		actions = append(actions, e.ActionType)
	}
	assert.Equal(t, []string{types.LogActionPlacement, types.LogActionRetrieval, types.LogActionPlace}, actions)
	assert.Equal(t, "astro1", logs[1].UserID)

	exported := filepath.Join(t.TempDir(), "audit.jsonl")
	out := env.mustRun(t, "logs", "--action", types.LogActionRetrieval, "--export", exported)
	assert.Contains(t, out, "Exported 1 log entries")
}

func TestPlaceOutsideContainerIsUserError(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "containers", "add", "contA", "--width", "2", "--depth", "2", "--height", "2")
	env.mustRun(t, "items", "add", "box", "--name", "Box", "--width", "2", "--depth", "2", "--height", "2")

	_, err := env.run(t, "place", "box", "--container", "contA", "--start", "1,0,0")
	require.ErrorIs(t, err, types.ErrInvalidGeometry)
	_, err = env.run(t, "place", "ghost", "--container", "contA")
	require.ErrorIs(t, err, types.ErrItemNotFound)
}

func TestSimulateAndReturnWaste(t *testing.T) {
	env := newTestEnv(t, "--start-date", "2025-05-01")
	env.mustRun(t, "containers", "add", "store", "--zone", "Storage", "--width", "4", "--depth", "4", "--height", "4")
	env.mustRun(t, "items", "add", "milk", "--name", "Milk", "--width", "1", "--depth", "1", "--height", "1",
		"--mass", "2", "--expiry", "2025-05-02")
	env.mustRun(t, "items", "add", "wipes", "--name", "Wipes", "--width", "1", "--depth", "1", "--height", "1",
		"--mass", "1", "--usage-limit", "1")
	env.mustRun(t, "placement")
	env.mustRun(t, "containers", "add", "undock", "--zone", "Airlock", "--width", "2", "--depth", "2", "--height", "2")

	var sim types.SimulateResponse
	env.runJSON(t, &sim, "simulate", "--days", "2", "--use-name", "Wipes")
	assert.Equal(t, "2025-05-03", sim.NewDate.Format(types.DateLayout))
	assert.Equal(t, []types.ItemRef{{ItemID: "wipes", Name: "Wipes"}}, sim.Changes.ItemsDepletedToday)
	assert.Equal(t, []types.ItemRef{{ItemID: "milk", Name: "Milk"}}, sim.Changes.ItemsExpired)

	var waste types.WasteIdentifyResponse
	env.runJSON(t, &waste, "waste", "identify")
	require.Len(t, waste.WasteItems, 2)
	assert.Equal(t, types.ReasonExpired, waste.WasteItems[0].Reason)
	assert.Equal(t, types.ReasonOutOfUses, waste.WasteItems[1].Reason)

	var plan types.ReturnPlanResponse
	env.runJSON(t, &plan, "waste", "return-plan", "--container", "undock", "--max-weight", "2")
	require.Len(t, plan.ReturnManifest.ReturnItems, 1, "the second item would exceed the budget")
	require.Len(t, plan.ReturnManifest.ExcludedItems, 1)

	var applied types.ReturnPlanResponse
	env.runJSON(t, &applied, "waste", "return-plan", "--container", "undock", "--max-weight", "10", "--apply")
	assert.Len(t, applied.ReturnManifest.ReturnItems, 2)
	assert.Equal(t, 3.0, applied.ReturnManifest.TotalWeight)

	var undocked []itemView
	env.runJSON(t, &undocked, "items", "list", "--container", "undock")
	assert.Len(t, undocked, 2)

	var done types.CompleteUndockingResponse
	env.runJSON(t, &done, "waste", "complete-undocking", "--container", "undock")
	assert.Equal(t, 2, done.ItemsRemoved)

	var visible []itemView
	env.runJSON(t, &visible, "items", "list")
	assert.Empty(t, visible, "disposed items are hidden")
	var all []itemView
	env.runJSON(t, &all, "items", "list", "--all")
	require.Len(t, all, 2)
	for _, it := range all {
		assert.True(t, it.Disposed, it.ItemID)
	}
}

func TestSimulateRequiresDaysOrDate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "simulate")
	require.ErrorIs(t, err, types.ErrInvalidRequest)
	_, err = env.run(t, "simulate", "--days", "1", "--to", "2030-01-01")
	require.Error(t, err)
}

func TestImportCSV(t *testing.T) {
	env := newTestEnv(t, "--start-date", "2025-05-01")
	dir := t.TempDir()
	containers := filepath.Join(dir, "containers.csv")
	items := filepath.Join(dir, "items.csv")
	require.NoError(t, os.WriteFile(containers, []byte(
		"Zone,Container ID,Width(cm),Depth(cm),Height(cm)\n"+
			"Crew Quarters,contA,100,85,200\n"+
			"Airlock,contB,50,85,200\n"), 0o644))
	require.NoError(t, os.WriteFile(items, []byte(
		"Item ID,Name,Width (cm),Depth (cm),Height (cm),Mass (kg),Priority (1-100),Expiry Date (ISO Format),Usage Limit,Preferred Zone\n"+
			"000001,Food Packet,10,10,20,5,80,2025-05-20,30,Crew Quarters\n"+
			"000002,Oxygen Cylinder,15,15,50,30,95,N/A,100,Airlock\n"), 0o644))

	env.mustRun(t, "containers", "import", containers)
	env.mustRun(t, "items", "import", items)

	var placed types.PlacementResponse
	env.runJSON(t, &placed, "placement")
	require.True(t, placed.Success)
	zones := map[string]string{}
	for _, p := range placed.Placements {
		zones[p.ItemID] = p.ContainerID
	}
	assert.Equal(t, map[string]string{"000001": "contA", "000002": "contB"}, zones)
}

func TestMetricsOutput(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "containers", "add", "contA", "--width", "2", "--depth", "2", "--height", "2")
	out := env.mustRun(t, "metrics")
	assert.Contains(t, out, `stowage_container_cells{container="contA"} 8`)
	assert.Contains(t, out, "stowage_waste_items 0")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"plain", errors.New("bad flag"), exitUserError},
		{"engine sentinel", engineError("retrieve", types.ErrItemNotFound), exitUserError},
		{"engine failure", engineError("retrieve", errors.New("disk on fire")), exitSysError},
		{"system", sysError("attach store: %w", os.ErrPermission), exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
	assert.ErrorIs(t, sysError("attach store: %w", os.ErrPermission), os.ErrPermission)
}
