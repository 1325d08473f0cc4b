// Package observer provides observer lists, including a broadcaster that
// delivers each notification on the goroutine (loop) that registered the
// observer.
package observer

import (
	"github.com/joeycumines/go-msgloop/internal/observerlist"
)

type (
	// List is a single-goroutine observer list, which may be mutated during
	// iteration. See NewList.
	List[T comparable] = observerlist.List[T]

	// Mode controls whether observers added during an iteration are visited
	// by that iteration.
	Mode = observerlist.Mode
)

const (
	// NotifyAll visits observers added while iterating.
	NotifyAll = observerlist.NotifyAll
	// NotifyExistingOnly visits only observers present when the outermost
	// iteration began.
	NotifyExistingOnly = observerlist.NotifyExistingOnly
)

// NewList returns an empty List, using mode.
func NewList[T comparable](mode Mode) *List[T] {
	return observerlist.New[T](mode)
}
