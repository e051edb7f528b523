package todo

import (
	"fmt"

	"github.com/roach88/statekit/internal/selector"
)

// Filter selects which items Visible returns.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterActive Filter = "active"
	FilterDone   Filter = "done"
)

// Stats summarizes the todo list.
type Stats struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Remaining int `json:"remaining"`
}

// Dashboard is the combined read model shown by the CLI.
type Dashboard struct {
	Count   int      `json:"count"`
	Doubled int      `json:"doubled"`
	Stats   Stats    `json:"stats"`
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

// Selectors are the memoized read views of the application.
type Selectors struct {
	Count     selector.Selector[int]
	Doubled   selector.Selector[int]
	Items     selector.Selector[*List]
	Stats     selector.Selector[Stats]
	Search    selector.Selector[*Search]
	Dashboard selector.Selector[Dashboard]

	// Visible filters items. One memoized selector per filter.
	Visible *selector.Family[Filter, []Item]
}

// NewSelectors builds the selector graph over keys.
func NewSelectors(keys Keys) (*Selectors, error) {
	count := selector.FromKey(keys.Counter)
	items := selector.FromKey(keys.Todos)
	search := selector.FromKey(keys.Search)

	doubled := selector.Named("doubled", selector.Map(count, func(n int) int { return n * 2 }))
	stats := selector.Named("stats", selector.Map(items, func(l *List) Stats {
		s := Stats{Total: len(l.Items)}
		for _, it := range l.Items {
			if it.Done {
				s.Done++
			}
		}
		s.Remaining = s.Total - s.Done
		return s
	}))
	counts := selector.CombineN([]selector.Selector[int]{count, doubled}, func(v []int) [2]int {
		return [2]int{v[0], v[1]}
	})
	dashboard := selector.Named("dashboard", selector.Combine3(counts, stats, search, func(c [2]int, st Stats, s *Search) Dashboard {
		return Dashboard{Count: c[0], Doubled: c[1], Stats: st, Query: s.Query, Results: s.Results}
	}))

	visible, err := selector.NewFamily(8, func(f Filter) selector.Selector[[]Item] {
		return selector.Named("visible:"+string(f), selector.Map(items, func(l *List) []Item {
			out := []Item{}
			for _, it := range l.Items {
				if f == FilterAll || (f == FilterDone) == it.Done {
					out = append(out, it)
				}
			}
			return out
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("todo selectors: %w", err)
	}

	return &Selectors{
		Count:     count,
		Doubled:   doubled,
		Items:     items,
		Stats:     stats,
		Search:    search,
		Dashboard: dashboard,
		Visible:   visible,
	}, nil
}

// ParseFilter converts a filter name. Empty means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive, FilterDone:
		return Filter(s), nil
	default:
		return "", fmt.Errorf("invalid filter %q: must be all, active, or done", s)
	}
}
