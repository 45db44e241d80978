// Package mmio is the register access layer shared by the drivers.
//
// Drivers never dereference addresses themselves. They claim a Region of a
// Bus and perform 32 or 64-bit accesses relative to its base. A Bus is either
// real memory (DevMem on Linux) or a Map that dispatches to simulated devices.
package mmio

import (
	"errors"
	"fmt"
)

var (
	ErrAliased  = errors.New("mmio: window aliases an existing claim")
	ErrEmpty    = errors.New("mmio: zero sized window")
	ErrOverflow = errors.New("mmio: window overflows the address space")
	ErrUnmapped = errors.New("mmio: no device at address")
)

// Bus performs single, naturally aligned register accesses.
//
// Accesses do not return errors. Real hardware reports a bad access as a
// synchronous abort, which the simulated bus models by panicking with *Fault.
type Bus interface {
	Read32(addr uint64) uint32
	Write32(addr uint64, value uint32)
	Read64(addr uint64) uint64
	Write64(addr uint64, value uint64)
}

// Fault describes a failed access on a simulated bus.
type Fault struct {
	Addr  uint64
	Size  int
	Write bool
	Err   error
}

func (f *Fault) Error() string {
	dir := "read"
	if f.Write {
		dir = "write"
	}
	return fmt.Sprintf("mmio: %d-byte %s at 0x%010x: %v", f.Size, dir, f.Addr, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Modify32 performs a read-modify-write of a 32-bit register.
func Modify32(b Bus, addr uint64, fn func(uint32) uint32) {
	b.Write32(addr, fn(b.Read32(addr)))
}

func regionsOverlap(aStart, aSize, bStart, bSize uint64) bool {
	aEnd := aStart + aSize
	bEnd := bStart + bSize
	return aStart < bEnd && bStart < aEnd
}
