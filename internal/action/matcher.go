package action

import "strings"

// Matcher decides whether a reducer or effect reacts to an action.
type Matcher interface {
	Match(a Action) bool
}

// MatchFunc adapts a function to the Matcher interface.
type MatchFunc func(a Action) bool

// Match calls f(a).
func (f MatchFunc) Match(a Action) bool { return f(a) }

// Type matches actions whose type is one of types.
func Type(types ...string) Matcher {
	if len(types) == 1 {
		want := types[0]
		return MatchFunc(func(a Action) bool { return a.Type == want })
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return MatchFunc(func(a Action) bool {
		_, ok := set[a.Type]
		return ok
	})
}

// Prefix matches actions whose type starts with prefix, e.g. "todos/".
func Prefix(prefix string) Matcher {
	return MatchFunc(func(a Action) bool { return strings.HasPrefix(a.Type, prefix) })
}

// Any matches every action.
func Any() Matcher {
	return MatchFunc(func(Action) bool { return true })
}

// Not inverts m.
func Not(m Matcher) Matcher {
	return MatchFunc(func(a Action) bool { return !m.Match(a) })
}

// All matches when every matcher matches. All() matches everything.
func All(ms ...Matcher) Matcher {
	return MatchFunc(func(a Action) bool {
		for _, m := range ms {
			if !m.Match(a) {
				return false
			}
		}
		return true
	})
}

// OneOf matches when at least one matcher matches. OneOf() matches nothing.
func OneOf(ms ...Matcher) Matcher {
	return MatchFunc(func(a Action) bool {
		for _, m := range ms {
			if m.Match(a) {
				return true
			}
		}
		return false
	})
}
