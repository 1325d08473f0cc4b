// Package atexit implements an explicit, process-wide registry of cleanup
// actions, which are executed in LIFO order when the owner calls
// [Manager.Run].
//
// There is no hidden global instance. The program (or a test) creates a
// Manager at startup, hands it to whatever needs to register cleanup (e.g.
// [github.com/joeycumines/go-msgloop/lazy.WithExitManager]), then runs it
// during shutdown:
//
//	exit := atexit.New()
//	defer exit.Run()
package atexit

import (
	"sync"
)

// Manager collects cleanup callbacks. It is safe for concurrent use.
//
// Callbacks registered while [Manager.Run] is executing are run by that same
// Run call, after the callback that registered them returns.
type Manager struct {
	callbacks []func()
	mu        sync.Mutex
	running   bool
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{}
}

// RegisterCallback pushes fn onto the cleanup stack. A nil fn is ignored.
func (m *Manager) RegisterCallback(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Len returns the number of callbacks waiting to be run.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callbacks)
}

// Run executes and removes every registered callback, most recently
// registered first. The lock is not held while a callback runs. Reentrant
// calls (from within a callback) return immediately, leaving the outer call
// to finish the stack.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	for {
		fn := m.pop()
		if fn == nil {
			return
		}
		fn()
	}
}

func (m *Manager) pop() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.callbacks)
	if n == 0 {
		return nil
	}
	fn := m.callbacks[n-1]
	m.callbacks[n-1] = nil
	m.callbacks = m.callbacks[:n-1]
	return fn
}
