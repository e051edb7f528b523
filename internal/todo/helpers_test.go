package todo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
	"github.com/roach88/statekit/internal/store"
	"github.com/roach88/statekit/internal/testutil"
)

type harness struct {
	app  *App
	fake *Fake
	rec  *testutil.Recorder
	sink *errs.Collector
}

func newHarness(t *testing.T, fake *Fake, settings Settings) *harness {
	t.Helper()
	h := &harness{fake: fake, rec: &testutil.Recorder{}, sink: &errs.Collector{}}
	app, err := New(Options{
		Backend: fake,
		Store: []store.Option{
			store.WithIDGenerator(testutil.NewSequenceGenerator("c")),
			store.WithClock(testutil.NewClock(0, 1)),
			store.WithObserver(h.rec),
			store.WithErrorSink(h.sink),
		},
		Settings: settings,
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	h.app = app
	return h
}

func (h *harness) dispatch(t *testing.T, a action.Action) {
	t.Helper()
	require.NoError(t, h.app.Store.Dispatch(a))
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.app.Store.Wait(ctx))
}

func (h *harness) list(t *testing.T) *List {
	t.Helper()
	l, err := state.Get(h.app.Store.Snapshot(), h.app.Keys.Todos)
	require.NoError(t, err)
	return l
}
