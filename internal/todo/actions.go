package todo

import "github.com/roach88/statekit/internal/action"

// Increment builds a counter increment.
func Increment() action.Action { return action.New(CounterIncrement, nil) }

// Add builds a todo add; the item id defaults to the correlation id.
func Add(title string, opts ...action.Option) action.Action {
	return action.New(TodoAdd, AddPayload{Title: title}, opts...)
}

// SetDone builds the optimistic completion of item id.
func SetDone(id string, done bool, opts ...action.Option) action.Action {
	return action.New(TodoSetDone, DonePayload{ID: id, Done: done}, opts...)
}

// Rename builds a rename of item id.
func Rename(id, title string) action.Action {
	return action.New(TodoRename, RenamePayload{ID: id, Title: title})
}

// Query builds a search query.
func Query(q string) action.Action { return action.New(SearchQuery, q) }

// SubmitAll builds a submit request.
func SubmitAll() action.Action { return action.New(Submit, nil) }
