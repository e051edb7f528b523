package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/errs"
	"github.com/roach88/statekit/internal/state"
)

type todoList struct {
	Items []string
}

var (
	countKey = state.NewKey[int]("count")
	todosKey = state.NewKey[*todoList]("todos")
)

func snapshot(count int, todos *todoList) *state.Snapshot {
	return state.New(0, map[string]any{"count": count, "todos": todos})
}

func TestMap_DoubledCounter(t *testing.T) {
	calls := 0
	doubled := Map(FromKey(countKey), func(c int) int {
		calls++
		return c * 2
	})
	s := snapshot(1, &todoList{})

	got, err := doubled(s)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	got, err = doubled(s)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, calls, "same snapshot must not re-invoke combine")
}

func TestMemo_SkipsCombineWhenInputsUnchanged(t *testing.T) {
	calls := 0
	list := &todoList{Items: []string{"a", "b"}}
	total := Map(FromKey(todosKey), func(l *todoList) int {
		calls++
		return len(l.Items)
	})

	s0 := snapshot(0, list)
	s1 := s0.Next(map[string]any{"count": 5}) // todos untouched

	assert.Equal(t, 2, total.Must(s0))
	assert.Equal(t, 2, total.Must(s1))
	assert.Equal(t, 1, calls)

	s2 := s1.Next(map[string]any{"todos": &todoList{Items: []string{"a"}}})
	assert.Equal(t, 1, total.Must(s2))
	assert.Equal(t, 2, calls)
}

func TestMemo_PrimitiveValueEquality(t *testing.T) {
	calls := 0
	parity := Map(FromKey(countKey), func(c int) bool {
		calls++
		return c%2 == 0
	})

	parity.Must(snapshot(4, nil))
	parity.Must(snapshot(4, nil)) // different snapshot, equal value
	assert.Equal(t, 1, calls)
}

func TestMemo_CacheDepthOne(t *testing.T) {
	calls := 0
	sel := Map(FromKey(countKey), func(c int) int {
		calls++
		return c
	})

	sel.Must(snapshot(1, nil))
	sel.Must(snapshot(2, nil))
	sel.Must(snapshot(1, nil))
	assert.Equal(t, 3, calls, "only the last input is remembered")
}

func TestCombine2_Composed(t *testing.T) {
	doubled := Map(FromKey(countKey), func(c int) int { return c * 2 })
	calls := 0
	summary := Combine2(doubled, FromKey(todosKey), func(d int, l *todoList) int {
		calls++
		return d + len(l.Items)
	})

	list := &todoList{Items: []string{"x"}}
	assert.Equal(t, 3, summary.Must(snapshot(1, list)))
	assert.Equal(t, 3, summary.Must(snapshot(1, list)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 5, summary.Must(snapshot(2, list)))
	assert.Equal(t, 2, calls)
}

func TestCombine3(t *testing.T) {
	a := FromKey(countKey)
	b := Map(a, func(c int) int { return c + 1 })
	c := Map(a, func(c int) int { return c + 2 })
	sum := Combine3(a, b, c, func(x, y, z int) int { return x + y + z })

	assert.Equal(t, 6, sum.Must(snapshot(1, nil)))
}

func TestCombineN(t *testing.T) {
	a := FromKey(countKey)
	inputs := []Selector[int]{a, a, a}
	calls := 0
	sum := CombineN(inputs, func(vals []int) int {
		calls++
		total := 0
		for _, v := range vals {
			total += v
		}
		return total
	})
	inputs[0] = nil // external mutation must not affect the selector

	assert.Equal(t, 6, sum.Must(snapshot(2, nil)))
	assert.Equal(t, 6, sum.Must(snapshot(2, nil)))
	assert.Equal(t, 1, calls)
}

func TestSelectorErrors_PropagateToReader(t *testing.T) {
	missing := FromKey(state.NewKey[int]("missing"))
	_, err := missing(snapshot(1, nil))
	require.Error(t, err)
	assert.True(t, errs.IsSelector(err))

	derived := Map(missing, func(c int) int { return c })
	_, err = derived(snapshot(1, nil))
	assert.True(t, errs.IsSelector(err))
}

func TestCombinePanic_IsSelectorErrorAndNotCached(t *testing.T) {
	calls := 0
	fragile := Named("fragile", Map(FromKey(countKey), func(c int) int {
		calls++
		if c == 0 {
			panic("division by zero")
		}
		return 10 / c
	}))
	s := snapshot(0, nil)

	_, err := fragile(s)
	require.Error(t, err)
	assert.True(t, errs.IsSelector(err))
	assert.Contains(t, err.Error(), "fragile")

	_, err = fragile(s)
	require.Error(t, err)
	assert.Equal(t, 2, calls, "failures are not memoized")

	assert.Equal(t, 5, fragile.Must(snapshot(2, nil)))
}

func TestMust_Panics(t *testing.T) {
	missing := FromKey(state.NewKey[int]("missing"))
	assert.Panics(t, func() { missing.Must(snapshot(0, nil)) })
}
