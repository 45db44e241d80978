package mmio

import (
	"errors"
	"testing"
)

func newTestMap(t *testing.T) *Map {
	t.Helper()
	b := NewBuilder()
	if err := b.WithRegion("ram", 0x4000_0000, 0x10000, NewMemory(0x4000_0000, 0x10000)); err != nil {
		t.Fatalf("WithRegion: %v", err)
	}
	return b.Build()
}

func TestClaimIsExclusive(t *testing.T) {
	m := newTestMap(t)

	a, err := Claim(m, 0x4000_0000, 0x1000, "a")
	if err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	if _, err := Claim(m, 0x4000_0800, 0x1000, "b"); !errors.Is(err, ErrAliased) {
		t.Fatalf("expected ErrAliased, got %v", err)
	}

	a.Release()
	b, err := Claim(m, 0x4000_0800, 0x1000, "b")
	if err != nil {
		t.Fatalf("Claim after release: %v", err)
	}
	defer b.Release()

	// A different bus has its own claims.
	other := newTestMap(t)
	c, err := Claim(other, 0x4000_0800, 0x1000, "c")
	if err != nil {
		t.Fatalf("Claim on other bus: %v", err)
	}
	c.Release()
}

func TestRegionAccess(t *testing.T) {
	m := newTestMap(t)
	r, err := Claim(m, 0x4000_1000, 0x100, "r")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	defer r.Release()

	r.Write32(0x10, 5)
	r.Modify32(0x10, func(v uint32) uint32 { return v << 1 })
	if got := m.Read32(0x4000_1010); got != 10 {
		t.Fatalf("got %d", got)
	}

	r.Write64(0x20, 1<<40)
	if got := r.Read64(0x20); got != 1<<40 {
		t.Fatalf("Read64 = %#x", got)
	}
}

func TestRegionBoundsPanic(t *testing.T) {
	m := newTestMap(t)
	r, err := Claim(m, 0x4000_2000, 0x10, "small")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	defer r.Release()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out of range access")
		}
	}()
	r.Read32(0x10)
}

func TestClaimValidation(t *testing.T) {
	m := newTestMap(t)
	if _, err := Claim(m, 0x4000_0000, 0, "empty"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := Claim(m, ^uint64(0)-4, 0x10, "wrap"); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if _, err := Claim(nil, 0, 4, "nil"); err == nil {
		t.Fatalf("expected error for nil bus")
	}
}
