package msgloop

import (
	"time"
)

// OneShotTimer runs a task once, on a loop, after a delay. It must only be
// used from the loop's goroutine.
//
// Stopping or restarting a timer does not remove the posted task from the
// loop. Instead, each start increments a generation number, and a task from
// an older generation does nothing when it runs.
type OneShotTimer struct {
	loop       *Loop
	task       func()
	delay      time.Duration
	generation uint64
	running    bool
}

// NewOneShotTimer returns a stopped timer that posts to loop.
func NewOneShotTimer(loop *Loop) *OneShotTimer {
	return &OneShotTimer{loop: loop}
}

// Start (re)starts the timer, such that task runs after delay, unless the
// timer is stopped or restarted first.
func (t *OneShotTimer) Start(delay time.Duration, task func()) {
	t.loop.mustBeLoopGoroutine()
	t.task = task
	t.delay = delay
	t.schedule()
}

// Reset restarts the timer with the delay and task of the last Start. It is a
// no-op if Start has never been called.
func (t *OneShotTimer) Reset() {
	t.loop.mustBeLoopGoroutine()
	if t.task == nil {
		return
	}
	t.schedule()
}

// Stop cancels the pending run, if any.
func (t *OneShotTimer) Stop() {
	t.loop.mustBeLoopGoroutine()
	t.generation++
	t.running = false
}

// IsRunning reports whether the task is pending.
func (t *OneShotTimer) IsRunning() bool {
	return t.running
}

// CurrentDelay returns the delay of the last Start.
func (t *OneShotTimer) CurrentDelay() time.Duration {
	return t.delay
}

func (t *OneShotTimer) schedule() {
	t.generation++
	t.running = true
	generation := t.generation
	t.loop.PostDelayedTask(func() {
		if t.generation != generation || !t.running {
			return
		}
		t.running = false
		t.task()
	}, t.delay)
}
