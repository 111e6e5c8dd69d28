package eventline

import (
	"sync"
	"time"
)

// scheduledExecutor runs delayed tasks on a single worker, the Go analog of
// a single-threaded scheduled thread pool with remove-on-cancel semantics.
//
// The worker is intentionally sized to one: reconciliations for distinct
// identities are serialized on it, which removes the need for per-identity
// locks inside the dispatcher. Cancelled timers are dropped immediately so
// coalescing cannot leak scheduled tasks.
type scheduledExecutor struct {
	mu      sync.Mutex
	slot    chan struct{}
	timers  map[uint64]*time.Timer
	nextID  uint64
	stopped bool
}

func newScheduledExecutor() *scheduledExecutor {
	return &scheduledExecutor{
		slot:   make(chan struct{}, 1),
		timers: make(map[uint64]*time.Timer),
	}
}

// schedule arms a timer that hands the task to the worker after delay.
// The returned cancel function disarms the timer; it reports false when the
// timer already fired (or was cancelled before).
func (x *scheduledExecutor) schedule(delay time.Duration, task func()) (cancel func() bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.stopped {
		return func() bool { return false }
	}

	id := x.nextID
	x.nextID++

	t := time.AfterFunc(delay, func() {
		x.mu.Lock()
		if _, live := x.timers[id]; !live {
			// Cancelled between firing and acquiring the lock.
			x.mu.Unlock()
			return
		}
		delete(x.timers, id)
		x.mu.Unlock()

		x.slot <- struct{}{}
		defer func() { <-x.slot }()
		task()
	})
	x.timers[id] = t

	return func() bool {
		x.mu.Lock()
		defer x.mu.Unlock()
		if _, live := x.timers[id]; !live {
			return false
		}
		delete(x.timers, id)
		t.Stop()
		return true
	}
}

// pending returns the number of armed timers. Tasks currently running on
// the worker are not counted.
func (x *scheduledExecutor) pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.timers)
}

// shutdown disarms all pending timers and rejects further scheduling. A
// task already running on the worker is left to finish.
func (x *scheduledExecutor) shutdown() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.stopped = true
	for id, t := range x.timers {
		t.Stop()
		delete(x.timers, id)
	}
}
