// Package debounce provides a cancellable deferred task: every Trigger
// restarts the quiet period and the task runs once the period elapses
// without another Trigger.
package debounce

import (
	"sync"
	"time"
)

// Task runs fn after a quiet period. The zero value is not usable; use New.
type Task struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// New returns a task that calls fn delay after the last Trigger.
func New(delay time.Duration, fn func()) *Task {
	return &Task{delay: delay, fn: fn}
}

// Trigger cancels any pending run and schedules a new one.
func (t *Task) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, func() { t.fire(gen) })
}

// fire runs fn unless a later Trigger or Cancel superseded this run. A timer
// whose Stop lost the race still fires and is dropped here.
func (t *Task) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()
	t.fn()
}

// Cancel drops the pending run, if any. It is safe to call repeatedly.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending reports whether a run is scheduled.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
