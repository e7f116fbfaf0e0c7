//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package locking

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// TryLock takes a non-blocking exclusive advisory lock on f when it is
// backed by an OS descriptor. Handles without one (in-memory files) get a
// no-op unlock.
func TryLock(f any) (unlock func() error, err error) {
	fd, ok := f.(interface{ Fd() uintptr })
	if !ok {
		return func() error { return nil }, nil
	}
	h := int(fd.Fd())
	if err := unix.Flock(h, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: flock", ErrHeld)
		}
		return nil, fmt.Errorf("lock: flock: %w", err)
	}
	return func() error { return unix.Flock(h, unix.LOCK_UN) }, nil
}
