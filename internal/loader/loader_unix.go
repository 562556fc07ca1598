//go:build !windows

package loader

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// unixAllocator implements Allocator with mmap/mprotect/munmap.
type unixAllocator struct{}

func newPlatformAllocator() Allocator { return unixAllocator{} }

func (unixAllocator) Map(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "mmap")
	}
	return mem, nil
}

func (unixAllocator) Protect(mem []byte, exec bool) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if exec {
		prot = unix.PROT_READ | unix.PROT_EXEC
	}
	if err := unix.Mprotect(mem, prot); err != nil {
		return errors.Wrap(err, "mprotect")
	}
	return nil
}

func (unixAllocator) Unmap(mem []byte) error {
	if err := unix.Munmap(mem); err != nil {
		return errors.Wrap(err, "munmap")
	}
	return nil
}
