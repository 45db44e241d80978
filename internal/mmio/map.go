package mmio

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// Handler serves accesses to the windows it was registered for. Addresses are
// absolute; data is little-endian and 4 or 8 bytes long.
type Handler interface {
	ReadMMIO(addr uint64, data []byte) error
	WriteMMIO(addr uint64, data []byte) error
}

type binding struct {
	base, size uint64
	name       string
	handler    Handler
}

// Builder registers device windows before creating a Map.
type Builder struct {
	bindings []binding
}

func NewBuilder() *Builder {
	return &Builder{}
}

// WithRegion registers handler for [base, base+size).
func (b *Builder) WithRegion(name string, base, size uint64, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("mmio: handler for %q at 0x%x is nil", name, base)
	}
	if size == 0 {
		return fmt.Errorf("mmio: region %q at 0x%x: %w", name, base, ErrEmpty)
	}
	if base+size < base {
		return fmt.Errorf("mmio: region %q at 0x%x size 0x%x: %w", name, base, size, ErrOverflow)
	}
	for _, existing := range b.bindings {
		if regionsOverlap(base, size, existing.base, existing.size) {
			return fmt.Errorf(
				"mmio: region %q 0x%x-0x%x overlaps %q 0x%x-0x%x",
				name, base, base+size-1, existing.name, existing.base, existing.base+existing.size-1)
		}
	}
	b.bindings = append(b.bindings, binding{base: base, size: size, name: name, handler: handler})
	return nil
}

// Build returns the Map. The builder may not be reused.
func (b *Builder) Build() *Map {
	bindings := append([]binding(nil), b.bindings...)
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].base < bindings[j].base })
	return &Map{bindings: bindings}
}

// Map is a Bus that forwards accesses to registered Handlers.
type Map struct {
	bindings []binding
}

var _ Bus = (*Map)(nil)

func (m *Map) lookup(addr uint64, size int) (Handler, error) {
	end := addr + uint64(size)
	if end < addr {
		return nil, ErrOverflow
	}
	i := sort.Search(len(m.bindings), func(i int) bool {
		return m.bindings[i].base+m.bindings[i].size > addr
	})
	if i < len(m.bindings) {
		b := m.bindings[i]
		if addr >= b.base && end <= b.base+b.size {
			return b.handler, nil
		}
	}
	return nil, ErrUnmapped
}

func (m *Map) access(addr uint64, data []byte, write bool) {
	h, err := m.lookup(addr, len(data))
	if err == nil {
		if write {
			err = h.WriteMMIO(addr, data)
		} else {
			err = h.ReadMMIO(addr, data)
		}
	}
	if err != nil {
		panic(&Fault{Addr: addr, Size: len(data), Write: write, Err: err})
	}
}

func (m *Map) Read32(addr uint64) uint32 {
	var buf [4]byte
	m.access(addr, buf[:], false)
	return binary.LittleEndian.Uint32(buf[:])
}

func (m *Map) Write32(addr uint64, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	m.access(addr, buf[:], true)
}

func (m *Map) Read64(addr uint64) uint64 {
	var buf [8]byte
	m.access(addr, buf[:], false)
	return binary.LittleEndian.Uint64(buf[:])
}

func (m *Map) Write64(addr uint64, value uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	m.access(addr, buf[:], true)
}

// Memory is a Handler backed by plain storage. It stands in for register
// blocks whose contents are only ever inspected, such as clock generators.
type Memory struct {
	mu   sync.Mutex
	base uint64
	data []byte
}

func NewMemory(base, size uint64) *Memory {
	return &Memory{base: base, data: make([]byte, size)}
}

func (m *Memory) Base() uint64 { return m.base }
func (m *Memory) Size() uint64 { return uint64(len(m.data)) }

func (m *Memory) slice(addr uint64, n int) ([]byte, error) {
	if addr < m.base || addr+uint64(n) > m.base+uint64(len(m.data)) {
		return nil, fmt.Errorf("memory: address 0x%x out of bounds", addr)
	}
	off := addr - m.base
	return m.data[off : off+uint64(n)], nil
}

func (m *Memory) ReadMMIO(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, err := m.slice(addr, len(data))
	if err != nil {
		return err
	}
	copy(data, src)
	return nil
}

func (m *Memory) WriteMMIO(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst, err := m.slice(addr, len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// Poke32 stores a 32-bit value without going through a Bus.
func (m *Memory) Poke32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	if err := m.WriteMMIO(addr, buf[:]); err != nil {
		panic(err)
	}
}

// Forward adapts a Bus to a Handler so that windows of several buses, such as
// separate DevMem mappings, can be combined into one Map.
func Forward(bus Bus) Handler { return forward{bus: bus} }

type forward struct {
	bus Bus
}

func (f forward) ReadMMIO(addr uint64, data []byte) error {
	switch len(data) {
	case 4:
		binary.LittleEndian.PutUint32(data, f.bus.Read32(addr))
	case 8:
		binary.LittleEndian.PutUint64(data, f.bus.Read64(addr))
	default:
		return fmt.Errorf("mmio: %d byte access at 0x%x", len(data), addr)
	}
	return nil
}

func (f forward) WriteMMIO(addr uint64, data []byte) error {
	switch len(data) {
	case 4:
		f.bus.Write32(addr, binary.LittleEndian.Uint32(data))
	case 8:
		f.bus.Write64(addr, binary.LittleEndian.Uint64(data))
	default:
		return fmt.Errorf("mmio: %d byte access at 0x%x", len(data), addr)
	}
	return nil
}
