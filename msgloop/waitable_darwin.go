//go:build darwin

package msgloop

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// newWakeFds returns both ends of a self-pipe, there being no eventfd.
// Darwin has no pipe2, so the flags are applied after the fact.
func newWakeFds() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, fmt.Errorf("msgloop: pipe: %w", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, fmt.Errorf("msgloop: set non-blocking: %w", err)
		}
	}
	return fds[0], fds[1], nil
}
