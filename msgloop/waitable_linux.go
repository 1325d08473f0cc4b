//go:build linux

package msgloop

import (
	"golang.org/x/sys/unix"
)

// newWakeFds returns a single non-blocking eventfd, as both ends.
func newWakeFds() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}
