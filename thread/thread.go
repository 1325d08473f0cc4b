// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package thread pairs a dedicated goroutine, locked to its own OS thread,
// with exactly one msgloop.Loop.
package thread

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-msgloop/msgloop"
	"github.com/joeycumines/logiface"
)

var (
	// ErrAlreadyStarted is returned by Start while the thread is running.
	ErrAlreadyStarted = errors.New("thread: already started")

	// ErrStopFromOwnThread is returned by Stop when called on the thread
	// being stopped, which would otherwise deadlock.
	ErrStopFromOwnThread = errors.New("thread: stop called from the thread being stopped")
)

// State is the lifecycle state of a Thread.
type State int32

const (
	// StateIdle indicates the thread has never been started.
	StateIdle State = iota
	// StateStarting indicates Start is waiting for the loop to be created.
	StateStarting
	// StateRunning indicates the loop is running.
	StateRunning
	// StateStopRequested indicates a quit task has been posted.
	StateStopRequested
	// StateStopped indicates the thread has been joined, or that its loop
	// quit without being stopped. It may be started again.
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopRequested:
		return "StopRequested"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Options are per-Start settings, see StartWithOptions.
type Options struct {
	// LoopOptions are applied after those from WithLoopOptions.
	LoopOptions []msgloop.Option
}

// Thread hosts a msgloop.Loop on a dedicated goroutine. Use Start to create
// the goroutine and its loop, and Stop to quit the loop and join the
// goroutine.
type Thread struct {
	_ [0]func() // no copy

	logger  *logiface.Logger[logiface.Event]
	init    func(loop *msgloop.Loop) error
	cleanUp func(loop *msgloop.Loop)

	loop  *msgloop.Loop
	proxy *msgloop.Proxy
	done  chan struct{}

	name        string
	loopOptions []msgloop.Option

	// startStopMu serializes Start and Stop, which block
	startStopMu sync.Mutex
	mu          sync.Mutex
	state       State

	quitProperly atomic.Bool
	lockOSThread bool
}

// New returns an idle thread. The name is also used as the loop's name.
func New(name string, opts ...Option) *Thread {
	x := &Thread{
		name:         name,
		lockOSThread: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}
	return x
}

// Start is StartWithOptions with zero Options.
func (x *Thread) Start() error {
	return x.StartWithOptions(Options{})
}

// StartWithOptions starts the thread, returning once its loop has been
// created and the init hook (if any) has run, such that tasks posted
// immediately afterward will not be lost. It returns ErrAlreadyStarted if
// the thread is already running, or the error from loop creation or the
// init hook, in which case the thread has already exited.
func (x *Thread) StartWithOptions(options Options) error {
	x.startStopMu.Lock()
	defer x.startStopMu.Unlock()

	x.mu.Lock()
	if x.state != StateIdle && x.state != StateStopped {
		x.mu.Unlock()
		return ErrAlreadyStarted
	}
	x.state = StateStarting
	x.mu.Unlock()

	x.quitProperly.Store(false)

	loopOptions := make([]msgloop.Option, 0, 2+len(x.loopOptions)+len(options.LoopOptions))
	loopOptions = append(loopOptions, msgloop.WithName(x.name), msgloop.WithLogger(x.logger))
	loopOptions = append(loopOptions, x.loopOptions...)
	loopOptions = append(loopOptions, options.LoopOptions...)

	var (
		started = make(chan error, 1)
		done    = make(chan struct{})
	)
	go x.threadMain(loopOptions, started, done)

	if err := <-started; err != nil {
		<-done
		x.mu.Lock()
		x.state = StateStopped
		x.mu.Unlock()
		x.logger.Err().Str(`thread`, x.name).Err(err).Log(`thread failed to start`)
		return err
	}

	x.mu.Lock()
	x.done = done
	if x.state == StateStarting {
		// unless the loop already quit on its own
		x.state = StateRunning
	}
	x.mu.Unlock()

	x.logger.Debug().Str(`thread`, x.name).Log(`thread started`)

	return nil
}

func (x *Thread) threadMain(loopOptions []msgloop.Option, started chan<- error, done chan<- struct{}) {
	defer close(done)

	if x.lockOSThread {
		// never unlocked: the OS thread exits with this goroutine
		runtime.LockOSThread()
	}

	loop, err := msgloop.New(loopOptions...)
	if err != nil {
		started <- err
		return
	}

	x.setLoop(loop)

	if x.init != nil {
		if err := x.init(loop); err != nil {
			x.setLoop(nil)
			_ = loop.Close()
			started <- err
			return
		}
	}

	started <- nil

	if err := loop.Run(); err != nil {
		x.logger.Err().Str(`thread`, x.name).Err(err).Log(`loop run failed`)
	}

	if !x.quitProperly.Load() {
		x.logger.Warning().Str(`thread`, x.name).Log(`thread loop quit without being stopped`)
	}

	if x.cleanUp != nil {
		x.cleanUp(loop)
	}

	x.setLoop(nil)

	if err := loop.Close(); err != nil {
		x.logger.Err().Str(`thread`, x.name).Err(err).Log(`failed to close loop`)
	}

	x.mu.Lock()
	switch x.state {
	case StateStarting, StateRunning:
		// quit without StopSoon, so Start need not wait for a Stop
		x.state = StateStopped
	}
	x.mu.Unlock()
}

func (x *Thread) setLoop(loop *msgloop.Loop) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.loop = loop
	if loop != nil {
		x.proxy = loop.Proxy()
	} else {
		x.proxy = nil
	}
}

// StopSoon posts a task that quits the thread's loop, after any work already
// queued. It does not wait for the thread to exit, see Stop. It is a no-op
// unless the thread is running.
func (x *Thread) StopSoon() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != StateRunning {
		return
	}
	x.state = StateStopRequested
	if x.proxy == nil {
		// the loop already quit on its own
		return
	}
	// non-nestable, so a nested run doesn't consume it
	x.proxy.PostNonNestableTask(func() {
		x.quitProperly.Store(true)
		msgloop.QuitTask()
	})
}

// Stop calls StopSoon, then waits for the thread to exit. It returns
// ErrStopFromOwnThread if called on the thread itself. It is a no-op if the
// thread is not running, so it may be called any number of times.
func (x *Thread) Stop() error {
	if x.onThread() {
		return ErrStopFromOwnThread
	}

	x.startStopMu.Lock()
	defer x.startStopMu.Unlock()

	x.StopSoon()

	x.mu.Lock()
	done := x.done
	x.mu.Unlock()
	if done == nil {
		return nil
	}

	<-done

	x.mu.Lock()
	x.done = nil
	x.state = StateStopped
	x.mu.Unlock()

	x.logger.Debug().Str(`thread`, x.name).Log(`thread stopped`)

	return nil
}

func (x *Thread) onThread() bool {
	proxy := x.Proxy()
	return proxy != nil && proxy.BelongsToCurrentThread()
}

// Loop returns the thread's loop, or nil if it isn't running. The loop may
// only be used on the thread, other goroutines should use Proxy.
func (x *Thread) Loop() *msgloop.Loop {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.loop
}

// Proxy returns a handle to the thread's loop, or nil if it isn't running.
// The handle remains safe to use after the thread stops, but posting through
// it will fail.
func (x *Thread) Proxy() *msgloop.Proxy {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.proxy
}

// IsRunning reports whether the thread has been started, and not stopped.
func (x *Thread) IsRunning() bool {
	switch x.State() {
	case StateRunning, StateStopRequested:
		return true
	default:
		return false
	}
}

// State returns the thread's lifecycle state.
func (x *Thread) State() State {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

// Name returns the thread's name.
func (x *Thread) Name() string { return x.name }

// ThreadWasQuitProperly reports whether the loop last run by the thread was
// quit by StopSoon (or Stop), rather than by an unrelated Quit.
func (x *Thread) ThreadWasQuitProperly() bool {
	return x.quitProperly.Load()
}
