package todo

// Action types.
const (
	CounterIncrement = "counter/increment"
	CounterDecrement = "counter/decrement"
	CounterAdd       = "counter/add"
	CounterReset     = "counter/reset"

	TodoAdd        = "todo/add"
	TodoRename     = "todo/rename"
	TodoRemove     = "todo/remove"
	TodoSetDone    = "todo/setDone"
	TodoRevertDone = "todo/revertDone"
	TodoSaved      = "todo/saved"
	TodoClearDone  = "todo/clearDone"

	SearchQuery   = "search/query"
	SearchResults = "search/results"
	SearchFailed  = "search/failed"

	Submit       = "submit/request"
	Submitted    = "submit/done"
	SubmitFailed = "submit/failed"
)

// Slice names.
const (
	CounterSlice = "counter"
	TodosSlice   = "todos"
	SearchSlice  = "search"
	SubmitSlice  = "submit"
)

// Item is one todo.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// List is the todos slice. Lists are never modified in place: reducers
// return a new *List when anything changes, so pointer equality means
// "unchanged".
type List struct {
	Items []Item `json:"items"`

	// Pending maps the correlation id of an optimistic setDone to the Done
	// value it replaced, until the save settles.
	Pending map[string]bool `json:"pending,omitempty"`
}

// Find returns the item with id.
func (l *List) Find(id string) (Item, bool) {
	if l == nil {
		return Item{}, false
	}
	for _, it := range l.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (l *List) clone() *List {
	next := &List{Items: make([]Item, len(l.Items))}
	copy(next.Items, l.Items)
	if len(l.Pending) > 0 {
		next.Pending = make(map[string]bool, len(l.Pending))
		for k, v := range l.Pending {
			next.Pending[k] = v
		}
	}
	return next
}

func (l *List) index(id string) int {
	for i, it := range l.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Search is the search slice.
type Search struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
	Loading bool     `json:"loading"`
	Error   string   `json:"error,omitempty"`
}

// Submission is the submit slice.
type Submission struct {
	InFlight bool   `json:"in_flight"`
	Count    int    `json:"count"`
	Receipt  string `json:"receipt,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AddPayload is the payload of TodoAdd. An empty ID is replaced by the
// action's correlation id.
type AddPayload struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
}

// RenamePayload is the payload of TodoRename.
type RenamePayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// DonePayload is the payload of TodoSetDone and TodoRevertDone.
type DonePayload struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

// ResultsPayload is the payload of SearchResults.
type ResultsPayload struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
}
