package msgloop

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-msgloop/lazy"
)

// loopIDs issues Loop.ID values. Zero is never issued.
var loopIDs atomic.Uint64

// bindingTable maps goroutine ids to the loop bound to that goroutine, the
// equivalent of a thread-local "current loop" pointer.
type bindingTable struct {
	mu    sync.RWMutex
	loops map[uint64]*Loop
}

var bindings = lazy.New(func() *bindingTable {
	return &bindingTable{loops: make(map[uint64]*Loop)}
})

func (x *bindingTable) bind(gid uint64, l *Loop) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.loops[gid]; ok {
		return ErrLoopAlreadyBound
	}
	x.loops[gid] = l
	return nil
}

func (x *bindingTable) unbind(gid uint64, l *Loop) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.loops[gid] == l {
		delete(x.loops, gid)
	}
}

func (x *bindingTable) get(gid uint64) *Loop {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.loops[gid]
}

// Current returns the loop bound to the calling goroutine, or nil.
func Current() *Loop {
	if !bindings.IsCreated() {
		return nil
	}
	return bindings.Get().get(getGoroutineID())
}

// goroutinePrefix starts every runtime.Stack trace, e.g.
// "goroutine 18 [running]:".
var goroutinePrefix = []byte("goroutine ")

// getGoroutineID parses the calling goroutine's id out of its stack trace.
// It keys the binding table, and backs every owner check. Zero is returned
// if the trace is not in the expected format, which no goroutine has.
func getGoroutineID() uint64 {
	var buf [64]byte
	b := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
