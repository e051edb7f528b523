package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type todoList struct {
	Items []string
}

func TestSnapshot_NextSharesUntouchedSlices(t *testing.T) {
	list := &todoList{Items: []string{"a"}}
	s0 := New(0, map[string]any{"count": 0, "todos": list})

	s1 := s0.Next(map[string]any{"count": 1})

	assert.Equal(t, uint64(1), s1.Seq())
	assert.Same(t, list, MustGet(s1, NewKey[*todoList]("todos")))
	assert.Equal(t, 0, MustGet(s0, NewKey[int]("count")), "predecessor is never mutated")
	assert.Equal(t, 1, MustGet(s1, NewKey[int]("count")))
}

func TestNew_CopiesInput(t *testing.T) {
	in := map[string]any{"count": 1}
	s := New(0, in)
	in["count"] = 2

	assert.Equal(t, 1, MustGet(s, NewKey[int]("count")))
}

func TestGet_Errors(t *testing.T) {
	s := New(0, map[string]any{"count": 1})

	_, err := Get(s, NewKey[int]("missing"))
	assert.Error(t, err)

	_, err = Get(s, NewKey[string]("count"))
	assert.Error(t, err)

	assert.Panics(t, func() { MustGet(s, NewKey[string]("count")) })
}

func TestSnapshot_Names(t *testing.T) {
	s := New(3, map[string]any{"b": 1, "a": 2})

	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint64(3), s.Seq())
}

func TestSnapshot_NilSafe(t *testing.T) {
	var s *Snapshot

	assert.Zero(t, s.Seq())
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Names())
	_, ok := s.Slice("x")
	assert.False(t, ok)
}

func TestKey_Name(t *testing.T) {
	k := NewKey[int]("counter")
	require.Equal(t, "counter", k.Name())
}
