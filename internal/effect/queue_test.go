package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statekit/internal/action"
)

func TestMailbox_FIFO(t *testing.T) {
	q := newMailbox()
	for _, typ := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(action.New(typ, nil)))
	}
	assert.Equal(t, 3, q.Len())

	var got []string
	for {
		a, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, a.Type)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMailbox_SignalCoalesces(t *testing.T) {
	q := newMailbox()
	q.Enqueue(action.New("a", nil))
	q.Enqueue(action.New("b", nil))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestMailbox_Close(t *testing.T) {
	q := newMailbox()
	q.Enqueue(action.New("a", nil))

	assert.Equal(t, 1, q.Close())
	assert.Equal(t, 0, q.Close(), "second close is a no-op")
	assert.False(t, q.Enqueue(action.New("b", nil)))

	// The signal left by the first Enqueue is still buffered.
	_, open := <-q.Wait()
	assert.True(t, open)
	_, open = <-q.Wait()
	assert.False(t, open, "closed after the buffered signal")
}

func TestIdleTracker(t *testing.T) {
	tr := newIdleTracker()
	assertClosed(t, tr.done())

	tr.add(2)
	ch := tr.done()
	assertOpen(t, ch)
	tr.add(-1)
	assertOpen(t, ch)
	tr.add(-1)
	assertClosed(t, ch)

	tr.add(1)
	assertOpen(t, tr.done())
	tr.reset()
	assertClosed(t, tr.done())
}

func assertClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	default:
		t.Fatal("expected closed channel")
	}
}

func assertOpen(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("expected open channel")
	default:
	}
}
