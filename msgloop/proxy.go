package msgloop

import (
	"sync"
	"time"
)

// Proxy is a thread-safe handle to a Loop, which remains valid after the loop
// is closed. Once the loop has been closed, posting through the proxy is a
// no-op, reporting false.
type Proxy struct {
	target *Loop
	id     uint64
	mu     sync.RWMutex
}

// PostTask is Loop.PostTask, reporting whether the loop accepted the task.
// A true result does not guarantee the task runs, as the loop may still be
// closed before it gets to it.
func (p *Proxy) PostTask(task func()) bool {
	return p.post(task, 0, true)
}

// PostDelayedTask is Loop.PostDelayedTask, reporting whether the loop accepted
// the task.
func (p *Proxy) PostDelayedTask(task func(), delay time.Duration) bool {
	return p.post(task, delay, true)
}

// PostNonNestableTask is Loop.PostNonNestableTask, reporting whether the loop
// accepted the task.
func (p *Proxy) PostNonNestableTask(task func()) bool {
	return p.post(task, 0, false)
}

// PostNonNestableDelayedTask is Loop.PostNonNestableDelayedTask, reporting
// whether the loop accepted the task.
func (p *Proxy) PostNonNestableDelayedTask(task func(), delay time.Duration) bool {
	return p.post(task, delay, false)
}

// BelongsToCurrentThread reports whether the calling goroutine is the one
// the (still open) loop is bound to.
func (p *Proxy) BelongsToCurrentThread() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target != nil && p.target.isLoopGoroutine()
}

// LoopID returns the ID of the loop, which remains available after it closes.
func (p *Proxy) LoopID() uint64 { return p.id }

// IsAlive reports whether the loop has not yet been closed.
func (p *Proxy) IsAlive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target != nil
}

func (p *Proxy) post(task func(), delay time.Duration, nestable bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.target == nil {
		return false
	}
	return p.target.postTask(task, delay, nestable, true)
}

func (p *Proxy) detach() {
	p.mu.Lock()
	p.target = nil
	p.mu.Unlock()
}

// QuitTask quits the loop bound to the goroutine it runs on. It is intended
// to be posted, e.g. proxy.PostTask(msgloop.QuitTask), to stop a loop from
// another goroutine.
func QuitTask() {
	if l := Current(); l != nil {
		l.Quit()
	}
}
