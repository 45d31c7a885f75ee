package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func TestUsageLimitMakesWaste(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, container("C1", "", 5, 5, 5))
	u := cube("u", 1, 1)
	u.UsageLimit = types.IntPtr(3)
	u.ExpiryDate = types.DatePtr(day0.AddDays(100))
	stow(t, e, u, "C1", at(u, 0, 0, 0))
	use := []types.ItemRef{{ItemID: "u"}}

	resp, err := e.Simulate(ctx, day0, types.SimulateRequest{NumOfDays: 2, ItemsToBeUsedPerDay: use})
	require.NoError(t, err)
	require.Len(t, resp.Changes.ItemsUsed, 1)
	assert.Equal(t, 1, *resp.Changes.ItemsUsed[0].RemainingUses)
	assert.Empty(t, resp.Changes.ItemsDepletedToday)
	assert.Empty(t, e.IdentifyWaste(ctx, resp.NewDate).WasteItems)

	resp, err = e.Simulate(ctx, resp.NewDate, types.SimulateRequest{NumOfDays: 1, ItemsToBeUsedPerDay: []types.ItemRef{{Name: "name-u"}}})
	require.NoError(t, err)
	assert.Equal(t, []types.ItemRef{{ItemID: "u", Name: "name-u"}}, resp.Changes.ItemsDepletedToday)
	assert.Equal(t, 0, *resp.Changes.ItemsUsed[0].RemainingUses)

	waste := e.IdentifyWaste(ctx, resp.NewDate).WasteItems
	require.Len(t, waste, 1)
	assert.Equal(t, types.ReasonOutOfUses, waste[0].Reason)
	assert.Equal(t, "C1", waste[0].ContainerID)
	require.NotNil(t, waste[0].Position)

	resp, err = e.Simulate(ctx, resp.NewDate, types.SimulateRequest{NumOfDays: 1, ItemsToBeUsedPerDay: use})
	require.NoError(t, err)
	assert.Empty(t, resp.Changes.ItemsUsed, "waste items are not used again")
	it, _ := e.Item("u")
	assert.Equal(t, 3, it.CurrentUses)
}

func TestSimulateExpiresItems(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	soon, later, never := cube("soon", 1, 1), cube("later", 1, 1), cube("never", 1, 1)
	soon.ExpiryDate = types.DatePtr(day0.AddDays(1))
	later.ExpiryDate = types.DatePtr(day0.AddDays(30))
	require.NoError(t, e.RegisterItems(ctx, []types.Item{soon, later, never}))

	resp, err := e.Simulate(ctx, day0, types.SimulateRequest{NumOfDays: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Changes.ItemsExpired, "an item is still good on its expiry date")

	resp, err = e.Simulate(ctx, resp.NewDate, types.SimulateRequest{NumOfDays: 1})
	require.NoError(t, err)
	assert.True(t, resp.NewDate.Equal(day0.AddDays(2).Time))
	assert.Equal(t, []types.ItemRef{{ItemID: "soon", Name: "name-soon"}}, resp.Changes.ItemsExpired)

	resp, err = e.Simulate(ctx, resp.NewDate, types.SimulateRequest{NumOfDays: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Changes.ItemsExpired, "expiry is reported once")

	waste := e.IdentifyWaste(ctx, resp.NewDate).WasteItems
	require.Len(t, waste, 1)
	assert.Equal(t, types.ReasonExpired, waste[0].Reason)
	assert.Nil(t, waste[0].Position)
}

func TestExpiryTakesPrecedence(t *testing.T) {
	e := newEngine(t)
	it := cube("both", 1, 1)
	it.UsageLimit = types.IntPtr(1)
	it.CurrentUses = 1
	it.ExpiryDate = types.DatePtr(day0)
	require.NoError(t, e.RegisterItems(context.Background(), []types.Item{it}))

	waste := e.IdentifyWaste(context.Background(), day0.AddDays(1)).WasteItems
	require.Len(t, waste, 1)
	assert.Equal(t, types.ReasonExpired, waste[0].Reason)
}

func TestSimulateToTimestamp(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.RegisterItems(ctx, []types.Item{cube("a", 1, 1)}))
	to := day0.AddDays(3)

	resp, err := e.Simulate(ctx, day0, types.SimulateRequest{ToTimestamp: &to, ItemsToBeUsedPerDay: []types.ItemRef{{ItemID: "a"}}})
	require.NoError(t, err)
	assert.True(t, resp.NewDate.Equal(to.Time))
	it, _ := e.Item("a")
	assert.Equal(t, 3, it.CurrentUses)
}

func TestSimulateRejectsBadRequests(t *testing.T) {
	e := newEngine(t)
	past, future := day0.AddDays(-1), day0.AddDays(2)
	tests := []struct {
		name string
		req  types.SimulateRequest
	}{
		{"neither days nor timestamp", types.SimulateRequest{}},
		{"both days and timestamp", types.SimulateRequest{NumOfDays: 1, ToTimestamp: &future}},
		{"timestamp in the past", types.SimulateRequest{ToTimestamp: &past}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Simulate(context.Background(), day0, tt.req)
			assert.ErrorIs(t, err, types.ErrInvalidRequest)
		})
	}
}
