// Package observerlist implements a single-goroutine observer container that
// tolerates mutation during iteration.
package observerlist

// Mode controls whether observers added during an iteration are visited by
// that iteration.
type Mode int

const (
	// NotifyAll visits observers added while iterating.
	NotifyAll Mode = iota
	// NotifyExistingOnly visits only observers present when the outermost
	// iteration began.
	NotifyExistingOnly
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case NotifyAll:
		return "NotifyAll"
	case NotifyExistingOnly:
		return "NotifyExistingOnly"
	default:
		return "Unknown"
	}
}

type slot[T comparable] struct {
	obs  T
	live bool
}

// List is an ordered set of observers. It is NOT safe for concurrent use.
//
// Observers may be added or removed from within ForEach, including
// re-entrantly. Removal during iteration leaves a tombstone, compacted once
// the outermost iteration finishes. The zero value is an empty list using
// NotifyAll.
type List[T comparable] struct {
	slots     []slot[T]
	mode      Mode
	iterating int
	dirty     bool
}

// New returns an empty list using mode.
func New[T comparable](mode Mode) *List[T] {
	return &List[T]{mode: mode}
}

// Mode returns the list's notification mode.
func (x *List[T]) Mode() Mode { return x.mode }

// AddObserver appends obs, unless it is already present.
func (x *List[T]) AddObserver(obs T) {
	if x.indexOf(obs) >= 0 {
		return
	}
	x.slots = append(x.slots, slot[T]{obs: obs, live: true})
}

// RemoveObserver removes obs, reporting whether it was present.
func (x *List[T]) RemoveObserver(obs T) bool {
	i := x.indexOf(obs)
	if i < 0 {
		return false
	}
	if x.iterating > 0 {
		x.slots[i] = slot[T]{}
		x.dirty = true
		return true
	}
	last := len(x.slots) - 1
	copy(x.slots[i:], x.slots[i+1:])
	x.slots[last] = slot[T]{}
	x.slots = x.slots[:last]
	return true
}

// HasObserver reports whether obs is present.
func (x *List[T]) HasObserver(obs T) bool {
	return x.indexOf(obs) >= 0
}

// Len returns the number of observers.
func (x *List[T]) Len() (n int) {
	for _, s := range x.slots {
		if s.live {
			n++
		}
	}
	return n
}

// Clear removes every observer.
func (x *List[T]) Clear() {
	if x.iterating > 0 {
		for i := range x.slots {
			x.slots[i] = slot[T]{}
		}
		x.dirty = true
		return
	}
	clear(x.slots)
	x.slots = x.slots[:0]
}

// ForEach calls fn for each observer, in insertion order.
func (x *List[T]) ForEach(fn func(obs T)) {
	limit := -1
	if x.mode == NotifyExistingOnly {
		limit = len(x.slots)
	}
	x.iterating++
	defer x.endIteration()
	for i := 0; i < len(x.slots) && (limit < 0 || i < limit); i++ {
		if s := x.slots[i]; s.live {
			fn(s.obs)
		}
	}
}

func (x *List[T]) endIteration() {
	x.iterating--
	if x.iterating != 0 || !x.dirty {
		return
	}
	x.dirty = false
	live := x.slots[:0]
	for _, s := range x.slots {
		if s.live {
			live = append(live, s)
		}
	}
	clear(x.slots[len(live):])
	x.slots = live
}

func (x *List[T]) indexOf(obs T) int {
	for i, s := range x.slots {
		if s.live && s.obs == obs {
			return i
		}
	}
	return -1
}
