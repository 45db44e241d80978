//go:build !linux

package mmio

import "errors"

var errDevMemUnsupported = errors.New("devmem: /dev/mem is only available on linux")

// DevMem is unavailable on this platform.
type DevMem struct{}

var _ Bus = (*DevMem)(nil)

func OpenDevMem(base, size uint64) (*DevMem, error) {
	return nil, errDevMemUnsupported
}

func (d *DevMem) Close() error                  { return nil }
func (d *DevMem) Read32(addr uint64) uint32     { panic(errDevMemUnsupported) }
func (d *DevMem) Write32(addr uint64, v uint32) { panic(errDevMemUnsupported) }
func (d *DevMem) Read64(addr uint64) uint64     { panic(errDevMemUnsupported) }
func (d *DevMem) Write64(addr uint64, v uint64) { panic(errDevMemUnsupported) }
