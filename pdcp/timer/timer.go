// Package timer implements the unique_timer-equivalent PDCP uses for the
// discard timer and t-Reordering: a cancelable one-shot timer whose expiry
// callback is posted to a caller-chosen executor instead of running
// directly on the Go runtime's timer goroutine, so expiry always observes
// the serialized state of the bearer half that owns it.
package timer

import (
	"sync"
	"time"

	"go5gcore.dev/pdcp/executor"
)

// Timer is a cancelable, restartable one-shot timer.
type Timer struct {
	mu      sync.Mutex
	exec    executor.Executor
	fn      func()
	t       *time.Timer
	running bool
}

// New returns a Timer whose expiry callback fn is posted to exec.Execute.
func New(exec executor.Executor, fn func()) *Timer {
	return &Timer{exec: exec, fn: fn}
}

// Start arms the timer for d, canceling any previous run. d <= 0 means
// "infinity": the timer is never armed (matches pdcp_discard_timer::infinity
// / t_reordering::infinity, which disable the timer entirely).
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	if d <= 0 {
		return
	}
	t.running = true
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		if !t.running {
			t.mu.Unlock()
			return
		}
		t.running = false
		t.mu.Unlock()
		t.exec.Execute(t.fn)
	})
}

// Stop cancels the timer if running. Stop is idempotent and safe to call
// even if the timer already expired.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.t != nil {
		t.t.Stop()
	}
	t.running = false
}

// IsRunning reports whether the timer is currently armed.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
