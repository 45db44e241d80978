//go:build linux

package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem maps a physical window through /dev/mem. It is used when the drivers
// run under Linux on a core that can see the RTU peripheral space.
type DevMem struct {
	base uint64
	size uint64
	page uint64
	mem  []byte
}

var _ Bus = (*DevMem)(nil)

// OpenDevMem maps [base, base+size) with uncached device semantics.
func OpenDevMem(base, size uint64) (*DevMem, error) {
	if size == 0 {
		return nil, fmt.Errorf("devmem: map 0x%x: %w", base, ErrEmpty)
	}

	pageSize := uint64(os.Getpagesize())
	pageBase := base &^ (pageSize - 1)
	length := (base - pageBase) + size
	length = (length + pageSize - 1) &^ (pageSize - 1)

	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: open /dev/mem: %w", err)
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, int64(pageBase), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("devmem: mmap 0x%x+0x%x: %w", pageBase, length, err)
	}

	return &DevMem{base: base, size: size, page: pageBase, mem: mem}, nil
}

func (d *DevMem) Close() error {
	if d.mem == nil {
		return nil
	}
	err := unix.Munmap(d.mem)
	d.mem = nil
	return err
}

func (d *DevMem) ptr(addr uint64, width uint64) unsafe.Pointer {
	if addr < d.base || addr+width > d.base+d.size || addr%width != 0 {
		panic(&Fault{Addr: addr, Size: int(width), Err: ErrUnmapped})
	}
	return unsafe.Pointer(&d.mem[addr-d.page])
}

// Accesses must not be merged or elided.

func (d *DevMem) Read32(addr uint64) uint32 {
	return atomic.LoadUint32((*uint32)(d.ptr(addr, 4)))
}

func (d *DevMem) Write32(addr uint64, value uint32) {
	atomic.StoreUint32((*uint32)(d.ptr(addr, 4)), value)
}

func (d *DevMem) Read64(addr uint64) uint64 {
	return atomic.LoadUint64((*uint64)(d.ptr(addr, 8)))
}

func (d *DevMem) Write64(addr uint64, value uint64) {
	atomic.StoreUint64((*uint64)(d.ptr(addr, 8)), value)
}
