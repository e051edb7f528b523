package effect

import "sync"

// idleTracker counts outstanding work: queued triggers, running handlers and
// concat backlog. The channel returned by done is closed whenever the count
// reaches zero.
type idleTracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func newIdleTracker() *idleTracker {
	ch := make(chan struct{})
	close(ch)
	return &idleTracker{idle: ch}
}

func (t *idleTracker) add(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.n == 0 && delta > 0 {
		t.idle = make(chan struct{})
	}
	t.n += delta
	if t.n <= 0 {
		t.n = 0
		select {
		case <-t.idle:
		default:
			close(t.idle)
		}
	}
}

func (t *idleTracker) done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}

func (t *idleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.n = 0
	select {
	case <-t.idle:
	default:
		close(t.idle)
	}
}
