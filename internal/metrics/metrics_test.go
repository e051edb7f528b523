package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/metrics"
	"github.com/roach88/statekit/internal/state"
	"github.com/roach88/statekit/internal/store"
	"github.com/roach88/statekit/internal/todo"
)

func newCollector(t *testing.T) (*metrics.Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg, "")
	require.NoError(t, err)
	return c, reg
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := metrics.New(nil, "")
	require.Error(t, err)
}

func TestNew_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := metrics.New(reg, "")
	require.NoError(t, err)
	second, err := metrics.New(reg, "")
	require.NoError(t, err)

	s0 := state.New(0, nil)
	first.Observe(action.New("a", nil), s0, s0.Next(nil))
	second.Observe(action.New("a", nil), s0, s0.Next(nil))

	samples, err := second.Samples()
	require.NoError(t, err)
	assert.Contains(t, samples, metrics.Sample{
		Name:   "statekit_dispatch_total",
		Labels: map[string]string{"action": "a", "changed": "true"},
		Value:  2,
	})
}

func TestCollector_Observe(t *testing.T) {
	c, reg := newCollector(t)

	s0 := state.New(0, nil)
	s1 := s0.Next(map[string]any{"n": 1})
	c.Observe(action.New("inc", nil), s0, s1)
	c.Observe(action.New("noop", nil), s1, s1)

	samples, err := c.Samples()
	require.NoError(t, err)
	keys := make([]string, len(samples))
	for i, s := range samples {
		keys[i] = s.Key()
	}
	assert.Equal(t, []string{
		`statekit_dispatch_total{action="inc",changed="true"}`,
		`statekit_dispatch_total{action="noop",changed="false"}`,
		`statekit_snapshot_seq`,
	}, keys)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "statekit_snapshot_seq"))
}

func TestCollector_EffectOutcomes(t *testing.T) {
	c, reg := newCollector(t)

	c.EffectStarted("save", effect.Concat)
	c.EffectFinished("save", effect.Concat, effect.OutcomeOK, 20*time.Millisecond)
	c.EffectStarted("save", effect.Concat)
	c.EffectFinished("save", effect.Concat, effect.OutcomeFailed, 5*time.Millisecond)
	c.EffectFinished("submit", effect.Exhaust, effect.OutcomeDropped, 0)

	samples, err := c.Samples()
	require.NoError(t, err)
	byKey := make(map[string]float64, len(samples))
	for _, s := range samples {
		byKey[s.Key()] = s.Value
	}
	assert.Equal(t, 2.0, byKey[`statekit_effect_runs_started_total{effect="save",strategy="concat"}`])
	assert.Equal(t, 1.0, byKey[`statekit_effect_runs_total{effect="save",outcome="ok",strategy="concat"}`])
	assert.Equal(t, 1.0, byKey[`statekit_effect_runs_total{effect="save",outcome="failed",strategy="concat"}`])
	assert.Equal(t, 1.0, byKey[`statekit_effect_runs_total{effect="submit",outcome="dropped",strategy="exhaust"}`])
	assert.Equal(t, 2.0, byKey[`statekit_effect_duration_seconds{effect="save",strategy="concat"}`])
	_, timed := byKey[`statekit_effect_duration_seconds{effect="submit",strategy="exhaust"}`]
	assert.False(t, timed)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "statekit_effect_duration_seconds"))
}

func TestSample_Key(t *testing.T) {
	assert.Equal(t, "up", metrics.Sample{Name: "up"}.Key())
	assert.Equal(t, `m{a="1",b="x"}`, metrics.Sample{
		Name:   "m",
		Labels: map[string]string{"b": "x", "a": "1"},
	}.Key())
}

func TestCollector_WiredIntoStore(t *testing.T) {
	c, reg := newCollector(t)

	app, err := todo.New(todo.Options{
		Store: []store.Option{store.WithObserver(c), store.WithEffectMonitor(c)},
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.NoError(t, app.Store.Dispatch(todo.Add("milk", action.WithCorrelation("item-1"))))
	require.NoError(t, app.Store.Dispatch(todo.SetDone("item-1", true)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Store.Wait(ctx))

	samples, err := c.Samples()
	require.NoError(t, err)
	byKey := make(map[string]float64, len(samples))
	for _, s := range samples {
		byKey[s.Key()] = s.Value
	}
	assert.Equal(t, 1.0, byKey[`statekit_dispatch_total{action="todo/add",changed="true"}`])
	assert.Equal(t, 1.0, byKey[`statekit_dispatch_total{action="todo/setDone",changed="true"}`])
	assert.Equal(t, 1.0, byKey[`statekit_effect_runs_total{effect="save",outcome="ok",strategy="concat"}`])
	assert.Equal(t, float64(app.Store.Snapshot().Seq()), byKey["statekit_snapshot_seq"])
	assert.Positive(t, testutil.CollectAndCount(reg, "statekit_effect_runs_total"))
}
