package observer

import (
	"sync"

	"github.com/joeycumines/go-msgloop/internal/observerlist"
	"github.com/joeycumines/go-msgloop/msgloop"
	"github.com/joeycumines/logiface"
)

// ThreadSafeList is an observer list that may be used from any goroutine
// bound to a msgloop.Loop, and that calls each observer only on the loop it
// was added from.
//
// Each loop has its own List, touched only by that loop's goroutine. The map
// from loop ID to list is the only state guarded by a lock, and the lock is
// never held while calling observers.
type ThreadSafeList[T comparable] struct {
	logger   *logiface.Logger[logiface.Event]
	contexts map[uint64]*listContext[T]
	mu       sync.Mutex
	mode     Mode
}

// listContext is shared between the map, and notifications in flight.
type listContext[T comparable] struct {
	proxy *msgloop.Proxy
	list  *observerlist.List[T]
}

// ThreadSafeOption configures a ThreadSafeList.
type ThreadSafeOption func(c *threadSafeConfig)

type threadSafeConfig struct {
	logger *logiface.Logger[logiface.Event]
	mode   Mode
}

// WithMode sets the mode of each per-loop List.
func WithMode(mode Mode) ThreadSafeOption {
	return func(c *threadSafeConfig) { c.mode = mode }
}

// WithLogger sets the logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) ThreadSafeOption {
	return func(c *threadSafeConfig) { c.logger = logger }
}

// NewThreadSafeList returns an empty ThreadSafeList.
func NewThreadSafeList[T comparable](opts ...ThreadSafeOption) *ThreadSafeList[T] {
	var c threadSafeConfig
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return &ThreadSafeList[T]{
		logger:   c.logger,
		contexts: make(map[uint64]*listContext[T]),
		mode:     c.mode,
	}
}

// AddObserver adds obs, to be notified on the calling goroutine's loop. It is
// a no-op, returning false, if the calling goroutine has no loop.
func (x *ThreadSafeList[T]) AddObserver(obs T) bool {
	loop := msgloop.Current()
	if loop == nil {
		x.logger.Warning().Log(`observer added without a current loop`)
		return false
	}

	x.mu.Lock()
	ctx := x.contexts[loop.ID()]
	if ctx == nil {
		ctx = &listContext[T]{
			proxy: loop.Proxy(),
			list:  observerlist.New[T](x.mode),
		}
		x.contexts[loop.ID()] = ctx
	}
	x.mu.Unlock()

	ctx.list.AddObserver(obs)

	return true
}

// RemoveObserver removes obs, which must have been added on the calling
// goroutine's loop. It is a no-op if the calling goroutine has no loop, or
// never added obs.
func (x *ThreadSafeList[T]) RemoveObserver(obs T) {
	loop := msgloop.Current()
	if loop == nil {
		return
	}

	x.mu.Lock()
	ctx := x.contexts[loop.ID()]
	x.mu.Unlock()
	if ctx == nil {
		return
	}

	ctx.list.RemoveObserver(obs)

	if ctx.list.Len() == 0 {
		// notifications already posted will see it is gone
		x.erase(loop.ID(), ctx)
	}
}

// Notify calls fn with each observer, on the observer's own loop. It may be
// called from any goroutine, and returns without waiting. Observers removed
// before their loop runs the notification are not called.
func (x *ThreadSafeList[T]) Notify(fn func(obs T)) {
	x.mu.Lock()
	contexts := make(map[uint64]*listContext[T], len(x.contexts))
	for id, ctx := range x.contexts {
		contexts[id] = ctx
	}
	x.mu.Unlock()

	for id, ctx := range contexts {
		if !ctx.proxy.PostTask(func() { x.notifyWrapper(id, ctx, fn) }) {
			// the loop was closed without removing its observers
			x.logger.Debug().Uint64(`loop`, id).Log(`dropping observers of a closed loop`)
			x.erase(id, ctx)
		}
	}
}

func (x *ThreadSafeList[T]) notifyWrapper(id uint64, ctx *listContext[T], fn func(obs T)) {
	x.mu.Lock()
	live := x.contexts[id] == ctx
	x.mu.Unlock()
	if !live {
		return
	}

	ctx.list.ForEach(fn)

	if ctx.list.Len() == 0 {
		x.erase(id, ctx)
	}
}

// erase removes ctx, if it is still registered for id.
func (x *ThreadSafeList[T]) erase(id uint64, ctx *listContext[T]) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.contexts[id] == ctx {
		delete(x.contexts, id)
	}
}

// loops returns the number of loops with registered observers.
func (x *ThreadSafeList[T]) loops() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.contexts)
}
