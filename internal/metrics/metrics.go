// Package metrics exports store and effect activity to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/state"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "statekit"

// Collector implements the store observer hook and effect.Monitor.
type Collector struct {
	gatherer prometheus.Gatherer

	dispatches     *prometheus.CounterVec
	snapshotSeq    prometheus.Gauge
	effectRuns     *prometheus.CounterVec
	effectStarted  *prometheus.CounterVec
	effectDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. An empty namespace uses
// DefaultNamespace. Collectors already registered under the same names are
// reused, so several stores can share one registry.
func New(reg *prometheus.Registry, namespace string) (*Collector, error) {
	if reg == nil {
		return nil, fmt.Errorf("metrics: registry is required")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{gatherer: reg}
	var err error

	c.dispatches, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Successfully reduced dispatches by action type and whether state changed.",
	}, []string{"action", "changed"}))
	if err != nil {
		return nil, err
	}
	c.snapshotSeq, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_seq",
		Help:      "Sequence number of the current snapshot.",
	}))
	if err != nil {
		return nil, err
	}
	c.effectRuns, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "effect_runs_total",
		Help:      "Effect activations by registration, strategy and outcome.",
	}, []string{"effect", "strategy", "outcome"}))
	if err != nil {
		return nil, err
	}
	c.effectStarted, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "effect_runs_started_total",
		Help:      "Effect handler invocations by registration and strategy.",
	}, []string{"effect", "strategy"}))
	if err != nil {
		return nil, err
	}
	c.effectDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "effect_duration_seconds",
		Help:      "Wall time of effect handler runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"effect", "strategy"}))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("metrics: register collector: %w", err)
	}
	return c, nil
}

// Observe counts a dispatch and tracks the snapshot sequence.
func (c *Collector) Observe(a action.Action, prev, next *state.Snapshot) {
	changed := "false"
	if prev != next {
		changed = "true"
	}
	c.dispatches.WithLabelValues(a.Type, changed).Inc()
	c.snapshotSeq.Set(float64(next.Seq()))
}

// EffectStarted counts a handler invocation.
func (c *Collector) EffectStarted(name string, s effect.Strategy) {
	c.effectStarted.WithLabelValues(name, string(s)).Inc()
}

// EffectFinished records a trigger's outcome. Dropped triggers never ran,
// so they are not timed.
func (c *Collector) EffectFinished(name string, s effect.Strategy, o effect.Outcome, elapsed time.Duration) {
	c.effectRuns.WithLabelValues(name, string(s), string(o)).Inc()
	if o == effect.OutcomeDropped {
		return
	}
	c.effectDuration.WithLabelValues(name, string(s)).Observe(elapsed.Seconds())
}

// Sample is one flattened metric value. Histograms report their sample count.
type Sample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// Key renders the sample as name{k="v",...} for stable text output.
func (s Sample) Key() string {
	if len(s.Labels) == 0 {
		return s.Name
	}
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, s.Labels[k])
	}
	return fmt.Sprintf("%s{%s}", s.Name, strings.Join(parts, ","))
}

// Samples gathers every metric in the registry, sorted by Key.
func (c *Collector) Samples() ([]Sample, error) {
	families, err := c.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}

	var out []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			s := Sample{Name: mf.GetName()}
			if labels := m.GetLabel(); len(labels) > 0 {
				s.Labels = make(map[string]string, len(labels))
				for _, lp := range labels {
					s.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				s.Value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				s.Value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				s.Value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}
