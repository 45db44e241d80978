package mmio

import (
	"fmt"
	"sync"
)

type claim struct {
	base, size uint64
	owner      string
}

var (
	claimsMu sync.Mutex
	claims   = map[Bus][]claim{}
)

// Region is an exclusive handle on a window of a Bus. Two live regions on the
// same bus never overlap, so a driver holding a Region is the only writer of
// those registers.
type Region struct {
	bus   Bus
	base  uint64
	size  uint64
	owner string

	released bool
}

// Claim takes exclusive ownership of [base, base+size) on bus.
func Claim(bus Bus, base, size uint64, owner string) (*Region, error) {
	if bus == nil {
		return nil, fmt.Errorf("mmio: claim %q: bus is nil", owner)
	}
	if size == 0 {
		return nil, fmt.Errorf("mmio: claim %q at 0x%x: %w", owner, base, ErrEmpty)
	}
	if base+size < base {
		return nil, fmt.Errorf("mmio: claim %q at 0x%x size 0x%x: %w", owner, base, size, ErrOverflow)
	}

	claimsMu.Lock()
	defer claimsMu.Unlock()

	for _, c := range claims[bus] {
		if regionsOverlap(base, size, c.base, c.size) {
			return nil, fmt.Errorf("mmio: claim %q 0x%x-0x%x overlaps %q 0x%x-0x%x: %w",
				owner, base, base+size-1, c.owner, c.base, c.base+c.size-1, ErrAliased)
		}
	}
	claims[bus] = append(claims[bus], claim{base: base, size: size, owner: owner})

	return &Region{bus: bus, base: base, size: size, owner: owner}, nil
}

// Release gives the window back. Using the region afterwards panics.
func (r *Region) Release() {
	if r == nil || r.released {
		return
	}
	claimsMu.Lock()
	defer claimsMu.Unlock()

	list := claims[r.bus]
	for i, c := range list {
		if c.base == r.base && c.size == r.size {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(claims, r.bus)
	} else {
		claims[r.bus] = list
	}
	r.released = true
}

func (r *Region) Base() uint64 { return r.base }
func (r *Region) Size() uint64 { return r.size }
func (r *Region) Bus() Bus     { return r.bus }

func (r *Region) addr(off uint64, width uint64) uint64 {
	if r.released {
		panic(fmt.Sprintf("mmio: access to released region %q", r.owner))
	}
	if off+width > r.size || off%width != 0 {
		panic(fmt.Sprintf("mmio: region %q: bad %d-byte access at offset 0x%x (size 0x%x)", r.owner, width, off, r.size))
	}
	return r.base + off
}

func (r *Region) Read32(off uint64) uint32 { return r.bus.Read32(r.addr(off, 4)) }

func (r *Region) Write32(off uint64, v uint32) { r.bus.Write32(r.addr(off, 4), v) }

func (r *Region) Read64(off uint64) uint64 { return r.bus.Read64(r.addr(off, 8)) }

func (r *Region) Write64(off uint64, v uint64) { r.bus.Write64(r.addr(off, 8), v) }

// Modify32 performs a read-modify-write at off.
func (r *Region) Modify32(off uint64, fn func(uint32) uint32) {
	a := r.addr(off, 4)
	r.bus.Write32(a, fn(r.bus.Read32(a)))
}
