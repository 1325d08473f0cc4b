//go:build linux || darwin

package msgloop

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// waitableEvent is an auto-reset kernel signal, backed by an eventfd
// (Linux) or a non-blocking self-pipe (Darwin), and waited on with poll.
//
// Thread Safety: signal may be called from any goroutine. wait and close
// are only called by the loop goroutine.
type waitableEvent struct {
	mu      sync.RWMutex
	readFd  int
	writeFd int
	buf     [8]byte
	closed  bool
}

func newWaitableEvent() (*waitableEvent, error) {
	readFd, writeFd, err := newWakeFds()
	if err != nil {
		return nil, err
	}
	return &waitableEvent{readFd: readFd, writeFd: writeFd}, nil
}

func (e *waitableEvent) signal() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	// PERFORMANCE: Native endianness, eventfd requires 8 bytes
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	// EAGAIN means the signal is already pending
	_, _ = unix.Write(e.writeFd, buf)
}

// wait blocks until signalled or until timeout elapses (forever, if timeout
// is negative), then resets the signal. Spurious wake-ups are possible.
func (e *waitableEvent) wait(timeout time.Duration) {
	if e.closed {
		return
	}
	fds := [1]unix.PollFd{{Fd: int32(e.readFd), Events: unix.POLLIN}}
	// EINTR is treated as a spurious wake-up
	if n, err := unix.Poll(fds[:], timeoutMillis(timeout)); err != nil || n == 0 {
		return
	}
	e.drain()
}

func (e *waitableEvent) drain() {
	for {
		if _, err := unix.Read(e.readFd, e.buf[:]); err != nil {
			return
		}
	}
}

func (e *waitableEvent) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := unix.Close(e.readFd)
	if e.writeFd != e.readFd {
		if err2 := unix.Close(e.writeFd); err == nil {
			err = err2
		}
	}
	return err
}
