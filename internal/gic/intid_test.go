package gic

import (
	"errors"
	"testing"
)

func TestIntIDRanges(t *testing.T) {
	tests := []struct {
		name string
		fn   func(uint32) (IntID, error)
		n    uint32
		want IntID
		ok   bool
	}{
		{"sgi 0", NewSGI, 0, 0, true},
		{"sgi 15", NewSGI, 15, 15, true},
		{"sgi 16", NewSGI, 16, 0, false},
		{"ppi 0", NewPPI, 0, 16, true},
		{"ppi 15", NewPPI, 15, 31, true},
		{"ppi 16", NewPPI, 16, 0, false},
		{"spi 0", NewSPI, 0, 32, true},
		{"spi 987", NewSPI, 987, 1019, true},
		{"spi 988", NewSPI, 988, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := tt.fn(tt.n)
			if !tt.ok {
				if !errors.Is(err, ErrInvalidIntID) {
					t.Fatalf("err = %v, want ErrInvalidIntID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.want {
				t.Fatalf("id = %d, want %d", id, tt.want)
			}
		})
	}
}

func TestIntIDCategories(t *testing.T) {
	tests := []struct {
		id      IntID
		sgi     bool
		ppi     bool
		spi     bool
		special bool
		str     string
	}{
		{MustSGI(3), true, false, false, false, "SGI 3"},
		{MustPPI(11), false, true, false, false, "PPI 11"},
		{MustSPI(0), false, false, true, false, "SPI 0"},
		{SpecialNone, false, false, false, true, "Special 1023"},
	}
	for _, tt := range tests {
		if tt.id.IsSGI() != tt.sgi || tt.id.IsPPI() != tt.ppi || tt.id.IsSPI() != tt.spi || tt.id.IsSpecial() != tt.special {
			t.Fatalf("%d: wrong category", tt.id)
		}
		if got := tt.id.String(); got != tt.str {
			t.Fatalf("String() = %q, want %q", got, tt.str)
		}
	}
	if MustPPI(11) != 27 || MustPPI(14) != 30 {
		t.Fatalf("timer PPIs do not map to INTIDs 27 and 30")
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("MustSGI(16) did not panic")
		}
	}()
	MustSGI(16)
}
