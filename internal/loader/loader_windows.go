//go:build windows

package loader

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// windowsAllocator implements Allocator with VirtualAlloc/VirtualProtect/
// VirtualFree, the Windows leg of spec §9's "Loader isolation" seam.
type windowsAllocator struct{}

func newPlatformAllocator() Allocator { return windowsAllocator{} }

func (windowsAllocator) Map(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrap(err, "VirtualAlloc")
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func (windowsAllocator) Protect(mem []byte, exec bool) error {
	prot := uint32(windows.PAGE_READWRITE)
	if exec {
		prot = windows.PAGE_EXECUTE_READ
	}
	var old uint32
	addr := uintptr(unsafe.Pointer(&mem[0]))
	if err := windows.VirtualProtect(addr, uintptr(len(mem)), prot, &old); err != nil {
		return errors.Wrap(err, "VirtualProtect")
	}
	return nil
}

func (windowsAllocator) Unmap(mem []byte) error {
	addr := uintptr(unsafe.Pointer(&mem[0]))
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return errors.Wrap(err, "VirtualFree")
	}
	return nil
}
