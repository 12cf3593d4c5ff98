//go:build linux || darwin

package cryptox

import (
	"sync"

	"golang.org/x/sys/unix"
)

// allocSecret returns size bytes backed by an anonymous mapping of their
// own, so the pages it locks are never shared with another key. The lock
// is best-effort: RLIMIT_MEMLOCK may refuse it, in which case the buffer
// is still usable but may be swapped. release zeroes and unmaps it and
// may be called more than once.
func allocSecret(size int) (buf []byte, release func(), err error) {
	m, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	locked := unix.Mlock(m) == nil

	var once sync.Once
	release = func() {
		once.Do(func() {
			clear(m)
			if locked {
				_ = unix.Munlock(m)
			}
			_ = unix.Munmap(m)
		})
	}
	return m[:size:size], release, nil
}
