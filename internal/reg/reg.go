// Package reg describes bit fields inside fixed-width hardware registers.
//
// A Field is plain data (shift and width) so register layouts can be written
// as tables of constants instead of shifts scattered through call sites.
package reg

import "fmt"

// Field is a contiguous run of bits inside a register.
type Field struct {
	Shift uint8
	Width uint8
}

// Bit returns a single-bit field at position n.
func Bit(n uint8) Field { return Field{Shift: n, Width: 1} }

// Bits returns the field covering bits hi..lo inclusive.
func Bits(hi, lo uint8) Field {
	if hi < lo {
		panic(fmt.Sprintf("reg: bad field bounds %d..%d", hi, lo))
	}
	return Field{Shift: lo, Width: hi - lo + 1}
}

// Mask returns the field mask shifted into position.
func (f Field) Mask() uint64 {
	if f.Width >= 64 {
		return ^uint64(0)
	}
	return ((uint64(1) << f.Width) - 1) << f.Shift
}

// Get extracts the field from v.
func (f Field) Get(v uint64) uint64 {
	return (v & f.Mask()) >> f.Shift
}

// Set returns v with the field replaced by x. Bits of x that do not fit are dropped.
func (f Field) Set(v, x uint64) uint64 {
	return (v &^ f.Mask()) | ((x << f.Shift) & f.Mask())
}

// IsSet reports whether any bit of the field is set in v.
func (f Field) IsSet(v uint64) bool {
	return v&f.Mask() != 0
}

// SetBool sets or clears every bit of the field.
func (f Field) SetBool(v uint64, on bool) uint64 {
	if on {
		return v | f.Mask()
	}
	return v &^ f.Mask()
}

// Get32 and Set32 are 32-bit conveniences for memory-mapped registers.
func (f Field) Get32(v uint32) uint32 { return uint32(f.Get(uint64(v))) }

func (f Field) Set32(v, x uint32) uint32 { return uint32(f.Set(uint64(v), uint64(x))) }

// IsSet32 is IsSet for 32-bit values.
func (f Field) IsSet32(v uint32) bool { return f.IsSet(uint64(v)) }

// SetBool32 is SetBool for 32-bit values.
func (f Field) SetBool32(v uint32, on bool) uint32 { return uint32(f.SetBool(uint64(v), on)) }

func (f Field) String() string {
	if f.Width == 1 {
		return fmt.Sprintf("[%d]", f.Shift)
	}
	return fmt.Sprintf("[%d:%d]", f.Shift+f.Width-1, f.Shift)
}
