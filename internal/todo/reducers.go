package todo

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/reducer"
	"github.com/roach88/statekit/internal/state"
)

// Keys are the typed slice handles of the application.
type Keys struct {
	Counter state.Key[int]
	Todos   state.Key[*List]
	Search  state.Key[*Search]
	Submit  state.Key[*Submission]
}

// ErrEmptyTitle is returned by the todos reducer for blank titles.
var ErrEmptyTitle = errors.New("title must not be empty")

// ErrUnknownItem is returned when completing an item that does not exist.
var ErrUnknownItem = errors.New("unknown todo item")

// NewRegistry creates a registry with every slice and reducer defined.
func NewRegistry() (*reducer.Registry, Keys, error) {
	reg := reducer.New()
	keys, err := Register(reg)
	if err != nil {
		return nil, Keys{}, err
	}
	return reg, keys, nil
}

// Register defines the application slices on reg.
func Register(reg *reducer.Registry) (Keys, error) {
	var (
		keys Keys
		err  error
	)
	if keys.Counter, err = reducer.Define(reg, CounterSlice, 0); err != nil {
		return Keys{}, err
	}
	if keys.Todos, err = reducer.Define(reg, TodosSlice, &List{Items: []Item{}}); err != nil {
		return Keys{}, err
	}
	if keys.Search, err = reducer.Define(reg, SearchSlice, &Search{}); err != nil {
		return Keys{}, err
	}
	if keys.Submit, err = reducer.Define(reg, SubmitSlice, &Submission{}); err != nil {
		return Keys{}, err
	}

	handlers := []func() error{
		func() error {
			return reducer.HandlePure(reg, keys.Counter, action.Type(CounterIncrement), func(n int, _ action.Action) int { return n + 1 })
		},
		func() error {
			return reducer.HandlePure(reg, keys.Counter, action.Type(CounterDecrement), func(n int, _ action.Action) int { return n - 1 })
		},
		func() error {
			return reducer.HandlePure(reg, keys.Counter, action.Type(CounterReset), func(int, action.Action) int { return 0 })
		},
		func() error { return reducer.Handle(reg, keys.Counter, action.Type(CounterAdd), reduceAdd) },
		func() error { return reducer.Handle(reg, keys.Todos, action.Type(TodoAdd), reduceTodoAdd) },
		func() error { return reducer.Handle(reg, keys.Todos, action.Type(TodoRename), reduceRename) },
		func() error { return reducer.Handle(reg, keys.Todos, action.Type(TodoRemove), reduceRemove) },
		func() error { return reducer.Handle(reg, keys.Todos, action.Type(TodoSetDone), reduceSetDone) },
		func() error { return reducer.Handle(reg, keys.Todos, action.Type(TodoRevertDone), reduceRevertDone) },
		func() error { return reducer.HandlePure(reg, keys.Todos, action.Type(TodoSaved), reduceSaved) },
		func() error { return reducer.HandlePure(reg, keys.Todos, action.Type(TodoClearDone), reduceClearDone) },
		func() error { return reducer.Handle(reg, keys.Search, action.Type(SearchQuery), reduceQuery) },
		func() error { return reducer.Handle(reg, keys.Search, action.Type(SearchResults), reduceResults) },
		func() error { return reducer.Handle(reg, keys.Search, action.Type(SearchFailed), reduceSearchFailed) },
		func() error { return reducer.HandlePure(reg, keys.Submit, action.Type(Submit), reduceSubmit) },
		func() error { return reducer.Handle(reg, keys.Submit, action.Type(Submitted), reduceSubmitted) },
		func() error { return reducer.Handle(reg, keys.Submit, action.Type(SubmitFailed), reduceSubmitFailed) },
	}
	for _, h := range handlers {
		if err := h(); err != nil {
			return Keys{}, fmt.Errorf("register todo reducers: %w", err)
		}
	}
	return keys, nil
}

func reduceAdd(n int, a action.Action) (int, error) {
	d, err := action.Decode[int](a)
	if err != nil {
		return n, err
	}
	return n + d, nil
}

func reduceTodoAdd(l *List, a action.Action) (*List, error) {
	p, err := action.Decode[AddPayload](a)
	if err != nil {
		return l, err
	}
	title := cleanTitle(p.Title)
	if title == "" {
		return l, ErrEmptyTitle
	}
	id := p.ID
	if id == "" {
		id = a.Meta.CorrelationID
	}
	if l.index(id) >= 0 {
		return l, fmt.Errorf("todo %q already exists", id)
	}

	next := l.clone()
	next.Items = append(next.Items, Item{ID: id, Title: title})
	return next, nil
}

// cleanTitle trims and NFC-normalizes a title so that visually equal titles
// compare and encode identically.
func cleanTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func reduceRename(l *List, a action.Action) (*List, error) {
	p, err := action.Decode[RenamePayload](a)
	if err != nil {
		return l, err
	}
	title := cleanTitle(p.Title)
	if title == "" {
		return l, ErrEmptyTitle
	}
	i := l.index(p.ID)
	if i < 0 || l.Items[i].Title == title {
		return l, nil
	}

	next := l.clone()
	next.Items[i].Title = title
	return next, nil
}

func reduceRemove(l *List, a action.Action) (*List, error) {
	id, err := action.Decode[string](a)
	if err != nil {
		return l, err
	}
	i := l.index(id)
	if i < 0 {
		return l, nil
	}

	next := l.clone()
	next.Items = append(next.Items[:i], next.Items[i+1:]...)
	return next, nil
}

// reduceSetDone is the optimistic half of a completion: the new value is
// applied immediately and the replaced value is remembered under the
// action's correlation id until the save effect settles.
func reduceSetDone(l *List, a action.Action) (*List, error) {
	p, err := action.Decode[DonePayload](a)
	if err != nil {
		return l, err
	}
	i := l.index(p.ID)
	if i < 0 {
		return l, fmt.Errorf("%w: %q", ErrUnknownItem, p.ID)
	}
	if l.Items[i].Done == p.Done {
		return l, nil
	}

	next := l.clone()
	if next.Pending == nil {
		next.Pending = make(map[string]bool, 1)
	}
	next.Pending[a.Meta.CorrelationID] = l.Items[i].Done
	next.Items[i].Done = p.Done
	return next, nil
}

// reduceRevertDone restores the value carried by the compensating action.
// Only the Done field is restored, so unrelated edits made while the save
// was in flight survive. A revert for a settled correlation is ignored.
func reduceRevertDone(l *List, a action.Action) (*List, error) {
	p, err := action.Decode[DonePayload](a)
	if err != nil {
		return l, err
	}
	if _, pending := l.Pending[a.Meta.CorrelationID]; !pending {
		return l, nil
	}

	next := l.clone()
	delete(next.Pending, a.Meta.CorrelationID)
	if i := next.index(p.ID); i >= 0 {
		next.Items[i].Done = p.Done
	}
	return next, nil
}

func reduceSaved(l *List, a action.Action) *List {
	if _, pending := l.Pending[a.Meta.CorrelationID]; !pending {
		return l
	}
	next := l.clone()
	delete(next.Pending, a.Meta.CorrelationID)
	return next
}

func reduceClearDone(l *List, _ action.Action) *List {
	kept := make([]Item, 0, len(l.Items))
	for _, it := range l.Items {
		if !it.Done {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(l.Items) {
		return l
	}
	next := l.clone()
	next.Items = kept
	return next
}

func reduceQuery(s *Search, a action.Action) (*Search, error) {
	q, err := action.Decode[string](a)
	if err != nil {
		return s, err
	}
	q = strings.TrimSpace(q)
	if q == s.Query {
		return s, nil
	}
	return &Search{Query: q, Loading: q != ""}, nil
}

func reduceResults(s *Search, a action.Action) (*Search, error) {
	p, err := action.Decode[ResultsPayload](a)
	if err != nil {
		return s, err
	}
	if p.Query != s.Query {
		// Results for a query the user has moved past.
		return s, nil
	}
	return &Search{Query: s.Query, Results: p.Results}, nil
}

func reduceSearchFailed(s *Search, a action.Action) (*Search, error) {
	msg, err := action.Decode[string](a)
	if err != nil {
		return s, err
	}
	return &Search{Query: s.Query, Error: msg}, nil
}

func reduceSubmit(s *Submission, _ action.Action) *Submission {
	if s.InFlight {
		return s
	}
	return &Submission{InFlight: true, Count: s.Count, Receipt: s.Receipt}
}

func reduceSubmitted(s *Submission, a action.Action) (*Submission, error) {
	receipt, err := action.Decode[string](a)
	if err != nil {
		return s, err
	}
	return &Submission{Count: s.Count + 1, Receipt: receipt}, nil
}

func reduceSubmitFailed(s *Submission, a action.Action) (*Submission, error) {
	msg, err := action.Decode[string](a)
	if err != nil {
		return s, err
	}
	return &Submission{Count: s.Count, Receipt: s.Receipt, Error: msg}, nil
}
