// Package metrics exposes Prometheus collectors for the stowage engine:
// placement outcomes, rearrangement churn, retrievals, waste, undocking and
// per-container utilisation.
package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Placement outcomes.
const (
	OutcomePlaced     = "placed"
	OutcomeRearranged = "rearranged"
	OutcomeUnplaced   = "unplaced"
)

// Collector bundles the engine metrics and satisfies engine.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	Placements         *prometheus.CounterVec
	RearrangementSteps prometheus.Counter
	Retrievals         prometheus.Counter
	RetrievalBlockers  prometheus.Histogram
	WasteItems         prometheus.Gauge
	ItemsUndocked      prometheus.Counter
	ContainerUsedCells *prometheus.GaugeVec
	ContainerCells     *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Placements, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stowage_placements_total",
		Help: "Items processed by the placement engine, labeled by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if c.RearrangementSteps, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stowage_rearrangement_steps_total",
		Help: "Remove, place and move steps emitted by committed rearrangements.",
	})); err != nil {
		return nil, err
	}
	if c.Retrievals, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stowage_retrievals_total",
		Help: "Committed item retrievals.",
	})); err != nil {
		return nil, err
	}
	if c.RetrievalBlockers, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stowage_retrieval_blockers",
		Help:    "Items set aside per committed retrieval.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})); err != nil {
		return nil, err
	}
	if c.WasteItems, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stowage_waste_items",
		Help: "Items classified as waste at the last identification.",
	})); err != nil {
		return nil, err
	}
	if c.ItemsUndocked, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stowage_items_undocked_total",
		Help: "Items permanently removed by completed undockings.",
	})); err != nil {
		return nil, err
	}
	if c.ContainerUsedCells, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stowage_container_used_cells",
		Help: "Occupied grid cells per container.",
	}, []string{"container"})); err != nil {
		return nil, err
	}
	if c.ContainerCells, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stowage_container_cells",
		Help: "Total grid cells per container.",
	}, []string{"container"})); err != nil {
		return nil, err
	}
	return c, nil
}

// ObservePlacement counts one item with the given outcome.
func (c *Collector) ObservePlacement(outcome string) {
	if c == nil {
		return
	}
	c.Placements.WithLabelValues(outcome).Inc()
}

// ObserveRearrangement adds the steps of a committed rearrangement.
func (c *Collector) ObserveRearrangement(steps int) {
	if c == nil {
		return
	}
	c.RearrangementSteps.Add(float64(steps))
}

// ObserveRetrieval counts a committed retrieval and its blockers.
func (c *Collector) ObserveRetrieval(blockers int) {
	if c == nil {
		return
	}
	c.Retrievals.Inc()
	c.RetrievalBlockers.Observe(float64(blockers))
}

// SetWasteItems records the size of the latest waste list.
func (c *Collector) SetWasteItems(n int) {
	if c == nil {
		return
	}
	c.WasteItems.Set(float64(n))
}

// ObserveUndocking adds items removed by an undocking.
func (c *Collector) ObserveUndocking(removed int) {
	if c == nil {
		return
	}
	c.ItemsUndocked.Add(float64(removed))
}

// SetContainerUsage records occupancy for one container.
func (c *Collector) SetContainerUsage(containerID string, used, total int) {
	if c == nil {
		return
	}
	c.ContainerUsedCells.WithLabelValues(containerID).Set(float64(used))
	c.ContainerCells.WithLabelValues(containerID).Set(float64(total))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
