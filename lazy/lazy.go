// Package lazy provides race-free, at-most-once construction of shared
// instances.
//
// An [Instance] starts out empty. The first call to [Instance.Pointer] moves
// it to [StateCreating] and runs the constructor; concurrent callers block
// until construction finishes and then observe the same value. Nobody ever
// sees a partially constructed value, and the constructor never runs twice
// for the same generation.
//
// By default instances are leaky, i.e. never destroyed. Use
// [WithExitManager] to have the instance destroyed (and reset to
// [StateEmpty]) when an [atexit.Manager] runs.
package lazy

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-msgloop/atexit"
)

// State is the construction state of an Instance.
type State uint32

const (
	// StateEmpty indicates that no value has been constructed.
	StateEmpty State = iota
	// StateCreating indicates that a constructor is running, and that other
	// callers will block until it finishes.
	StateCreating
	// StateCreated indicates that the value is available.
	StateCreated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateCreating:
		return "Creating"
	case StateCreated:
		return "Created"
	default:
		return "Unknown"
	}
}

type (
	// Instance is a lazily constructed, shared *T. Instances must be
	// constructed with New, and must not be copied after first use.
	Instance[T any] struct {
		_       [0]func() // no copy
		ctor    func() *T
		dtor    func(*T)
		exit    *atexit.Manager
		current atomic.Pointer[generation[T]]
	}

	// Option configures an Instance.
	Option[T any] func(c *config[T])

	config[T any] struct {
		dtor func(*T)
		exit *atexit.Manager
	}

	// generation is one construct/destroy cycle. Resetting an instance swaps
	// in a fresh generation rather than re-arming a sync.Once.
	generation[T any] struct {
		value *T
		once  sync.Once
		state atomic.Uint32
	}
)

// WithExitManager registers the constructed value with exit, such that, when
// exit runs, dtor (if non-nil) is called with the value, and the instance
// resets to StateEmpty. A nil exit leaves the instance leaky.
func WithExitManager[T any](exit *atexit.Manager, dtor func(*T)) Option[T] {
	return func(c *config[T]) {
		c.exit = exit
		c.dtor = dtor
	}
}

// New returns an empty Instance, which will use ctor to construct its value.
// It panics if ctor is nil.
func New[T any](ctor func() *T, options ...Option[T]) *Instance[T] {
	if ctor == nil {
		panic(`lazy: nil constructor`)
	}
	var c config[T]
	for _, o := range options {
		if o != nil {
			o(&c)
		}
	}
	x := &Instance[T]{
		ctor: ctor,
		dtor: c.dtor,
		exit: c.exit,
	}
	x.current.Store(new(generation[T]))
	return x
}

// Pointer returns the value, constructing it if necessary. Callers that race
// the first construction block until it completes.
//
// If the constructor panics, the panic propagates to the caller that ran it,
// and the instance remains in StateCreating with a nil value.
func (x *Instance[T]) Pointer() *T {
	g := x.current.Load()
	if State(g.state.Load()) == StateCreated {
		return g.value
	}
	g.once.Do(func() {
		g.state.Store(uint32(StateCreating))
		g.value = x.ctor()
		g.state.Store(uint32(StateCreated))
		if x.exit != nil {
			x.exit.RegisterCallback(func() { x.destroy(g) })
		}
	})
	return g.value
}

// Get is an alias for Pointer.
func (x *Instance[T]) Get() *T { return x.Pointer() }

// State returns the construction state of the current generation.
func (x *Instance[T]) State() State {
	return State(x.current.Load().state.Load())
}

// IsCreated reports whether the value has been constructed.
func (x *Instance[T]) IsCreated() bool {
	return x.State() == StateCreated
}

func (x *Instance[T]) destroy(g *generation[T]) {
	if !x.current.CompareAndSwap(g, new(generation[T])) {
		return
	}
	if x.dtor != nil {
		x.dtor(g.value)
	}
}
