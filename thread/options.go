package thread

import (
	"github.com/joeycumines/go-msgloop/msgloop"
	"github.com/joeycumines/logiface"
)

// Option configures a Thread.
type Option func(x *Thread)

// WithLoopOptions sets options used to create the thread's loop, each time it
// starts. The loop is named after the thread, and uses the thread's logger,
// unless these options say otherwise.
func WithLoopOptions(opts ...msgloop.Option) Option {
	return func(x *Thread) {
		x.loopOptions = append(x.loopOptions, opts...)
	}
}

// WithInit sets a hook, run on the thread after its loop is created, and
// before Start returns. An error aborts the start, and is returned by it.
func WithInit(fn func(loop *msgloop.Loop) error) Option {
	return func(x *Thread) {
		x.init = fn
	}
}

// WithCleanUp sets a hook, run on the thread after its loop quits, and
// before the loop is closed.
func WithCleanUp(fn func(loop *msgloop.Loop)) Option {
	return func(x *Thread) {
		x.cleanUp = fn
	}
}

// WithLogger sets the logger, for the thread and its loop.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(x *Thread) {
		x.logger = logger
	}
}

// WithLockOSThread controls whether the thread's goroutine is locked to its
// own OS thread. Defaults to true.
func WithLockOSThread(enabled bool) Option {
	return func(x *Thread) {
		x.lockOSThread = enabled
	}
}
