//go:build !linux && !darwin

package msgloop

import (
	"sync"
	"time"
)

// waitableEvent is an auto-reset signal, backed by a buffered channel, for
// platforms without an eventfd or a usable self-pipe.
type waitableEvent struct {
	ch     chan struct{}
	mu     sync.RWMutex
	closed bool
}

func newWaitableEvent() (*waitableEvent, error) {
	return &waitableEvent{ch: make(chan struct{}, 1)}, nil
}

func (e *waitableEvent) signal() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

func (e *waitableEvent) wait(timeout time.Duration) {
	if timeout < 0 {
		<-e.ch
		return
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.ch:
	case <-t.C:
	}
}

func (e *waitableEvent) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
