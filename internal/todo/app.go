package todo

import (
	"fmt"

	"github.com/roach88/statekit/internal/effect"
	"github.com/roach88/statekit/internal/store"
)

// Options configure an App.
type Options struct {
	// Backend serves the effects. Default: an empty Fake.
	Backend Backend

	// Store options are passed to store.New.
	Store []store.Option

	Settings Settings
}

// App wires the registry, store, effects and selectors together.
type App struct {
	Store     *store.Store
	Keys      Keys
	Selectors *Selectors
	Backend   Backend
}

// New creates a running application.
func New(opts Options) (*App, error) {
	reg, keys, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	sels, err := NewSelectors(keys)
	if err != nil {
		return nil, err
	}
	if opts.Backend == nil {
		opts.Backend = NewFake()
	}

	st, err := store.New(reg, opts.Store...)
	if err != nil {
		return nil, fmt.Errorf("new todo app: %w", err)
	}
	if err := RegisterEffects(st, keys, opts.Backend, opts.Settings); err != nil {
		st.Close()
		return nil, fmt.Errorf("new todo app: %w", err)
	}
	return &App{Store: st, Keys: keys, Selectors: sels, Backend: opts.Backend}, nil
}

// Close closes the store, cancelling in-flight effects.
func (a *App) Close() {
	a.Store.Close()
}

// Dashboard reads the combined view.
func (a *App) Dashboard() (Dashboard, error) {
	return store.Select(a.Store, a.Selectors.Dashboard)
}

// Strategies returns the default strategy of each effect.
func Strategies() map[string]effect.Strategy {
	return map[string]effect.Strategy{
		SaveEffect:   effect.Concat,
		SearchEffect: effect.Switch,
		SubmitEffect: effect.Exhaust,
		NotifyEffect: effect.Merge,
	}
}
