package todo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Backend is the remote service the effects talk to.
// Implementations must honor ctx cancellation.
type Backend interface {
	SaveDone(ctx context.Context, id string, done bool) error
	Search(ctx context.Context, query string) ([]string, error)
	Submit(ctx context.Context, items []Item) (receipt string, err error)
	Notify(ctx context.Context, event string) error
}

// ErrRejected is returned by Fake for operations configured to fail.
var ErrRejected = errors.New("rejected by backend")

// Fake is an in-memory Backend with configurable latency and failures.
//
// Thread-safety: safe for concurrent use via internal mutex.
type Fake struct {
	mu            sync.Mutex
	catalog       []string
	searchLatency map[string]time.Duration
	saveLatency   time.Duration
	submitLatency time.Duration
	failSave      map[string]bool
	failSubmit    bool

	saved    map[string]bool
	searches []string
	submits  int
	notes    []string
}

// NewFake creates a fake whose search matches against catalog.
func NewFake(catalog ...string) *Fake {
	return &Fake{
		catalog:       catalog,
		searchLatency: make(map[string]time.Duration),
		failSave:      make(map[string]bool),
		saved:         make(map[string]bool),
	}
}

// SetSearchLatency delays searches for query by d.
func (f *Fake) SetSearchLatency(query string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchLatency[query] = d
}

// SetSaveLatency delays every save by d.
func (f *Fake) SetSaveLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveLatency = d
}

// SetSubmitLatency delays every submit by d.
func (f *Fake) SetSubmitLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitLatency = d
}

// FailSaves makes saves for the given item ids fail.
func (f *Fake) FailSaves(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.failSave[id] = true
	}
}

// AcceptSaves undoes FailSaves for the given item ids.
func (f *Fake) AcceptSaves(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.failSave, id)
	}
}

// FailSubmits makes submits fail while fail is true.
func (f *Fake) FailSubmits(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSubmit = fail
}

// SaveDone records the completion state of id.
func (f *Fake) SaveDone(ctx context.Context, id string, done bool) error {
	f.mu.Lock()
	latency, fail := f.saveLatency, f.failSave[id]
	f.mu.Unlock()

	if err := sleep(ctx, latency); err != nil {
		return err
	}
	if fail {
		return fmt.Errorf("save %q: %w", id, ErrRejected)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[id] = done
	return nil
}

// Search returns catalog entries containing query, case-insensitively, sorted.
func (f *Fake) Search(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	latency := f.searchLatency[query]
	f.searches = append(f.searches, query)
	f.mu.Unlock()

	if err := sleep(ctx, latency); err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	results := []string{}
	f.mu.Lock()
	for _, entry := range f.catalog {
		if strings.Contains(strings.ToLower(entry), needle) {
			results = append(results, entry)
		}
	}
	f.mu.Unlock()
	slices.Sort(results)
	return results, nil
}

// Submit returns a receipt numbered by successful submit count.
func (f *Fake) Submit(ctx context.Context, items []Item) (string, error) {
	f.mu.Lock()
	latency, fail := f.submitLatency, f.failSubmit
	f.mu.Unlock()

	if err := sleep(ctx, latency); err != nil {
		return "", err
	}
	if fail {
		return "", fmt.Errorf("submit: %w", ErrRejected)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return fmt.Sprintf("receipt-%d-%d", f.submits, len(items)), nil
}

// Notify records event.
func (f *Fake) Notify(ctx context.Context, event string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, event)
	return nil
}

// Saved returns a copy of the saved completion states.
func (f *Fake) Saved() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.saved))
	for k, v := range f.saved {
		out[k] = v
	}
	return out
}

// Searches returns every query the backend was asked, in order.
func (f *Fake) Searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.searches)
}

// Submits returns the number of successful submits.
func (f *Fake) Submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

// Notifications returns recorded notify events sorted, since notify runs
// concurrently.
func (f *Fake) Notifications() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.notes)
	slices.Sort(out)
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
