package metrics

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsEngineEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObservePlacement(OutcomePlaced)
	c.ObservePlacement(OutcomePlaced)
	c.ObservePlacement(OutcomeUnplaced)
	c.ObserveRearrangement(3)
	c.ObserveRetrieval(2)
	c.SetWasteItems(4)
	c.ObserveUndocking(5)
	c.SetContainerUsage("C1", 64, 1000)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Placements.WithLabelValues(OutcomePlaced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Placements.WithLabelValues(OutcomeUnplaced)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.RearrangementSteps))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Retrievals))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.WasteItems))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.ItemsUndocked))
	assert.Equal(t, 64.0, testutil.ToFloat64(c.ContainerUsedCells.WithLabelValues("C1")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(c.ContainerCells.WithLabelValues("C1")))
}

func TestNewCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveUndocking(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.ItemsUndocked))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObservePlacement(OutcomePlaced)
	c.ObserveRetrieval(1)
	c.SetContainerUsage("C1", 1, 1)
}

func TestWriteTextAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.ObservePlacement(OutcomeRearranged)

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Contains(t, buf.String(), `stowage_placements_total{outcome="rearranged"} 1`)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "stowage_placements_total")
}
