package gic

import "fmt"

// IntID is a GIC interrupt identifier. The category is implied by the value:
// SGIs are 0-15, PPIs 16-31, SPIs 32-1019 and 1020-1023 are special.
type IntID uint32

const (
	sgiBase     = 0
	ppiBase     = 16
	spiBase     = 32
	specialBase = 1020

	sgiCount = ppiBase - sgiBase
	ppiCount = spiBase - ppiBase
	spiCount = specialBase - spiBase

	// MaxIntID is the largest non-special INTID without extended ranges.
	MaxIntID IntID = specialBase - 1
)

// Special INTIDs returned by the acknowledge registers.
const (
	SpecialSecure    IntID = 1020
	SpecialNonSecure IntID = 1021
	SpecialNMI       IntID = 1022
	SpecialNone      IntID = 1023
)

// NewSGI returns the INTID of software generated interrupt n (0-15).
func NewSGI(n uint32) (IntID, error) {
	if n >= sgiCount {
		return 0, fmt.Errorf("gic: SGI %d: %w", n, ErrInvalidIntID)
	}
	return IntID(sgiBase + n), nil
}

// NewPPI returns the INTID of private peripheral interrupt n (0-15).
func NewPPI(n uint32) (IntID, error) {
	if n >= ppiCount {
		return 0, fmt.Errorf("gic: PPI %d: %w", n, ErrInvalidIntID)
	}
	return IntID(ppiBase + n), nil
}

// NewSPI returns the INTID of shared peripheral interrupt n (0-987).
func NewSPI(n uint32) (IntID, error) {
	if n >= spiCount {
		return 0, fmt.Errorf("gic: SPI %d: %w", n, ErrInvalidIntID)
	}
	return IntID(spiBase + n), nil
}

func must(id IntID, err error) IntID {
	if err != nil {
		panic(err)
	}
	return id
}

// MustSGI, MustPPI and MustSPI panic on an out of range number. They are
// intended for package-level constants.
func MustSGI(n uint32) IntID { return must(NewSGI(n)) }
func MustPPI(n uint32) IntID { return must(NewPPI(n)) }
func MustSPI(n uint32) IntID { return must(NewSPI(n)) }

func (id IntID) IsSGI() bool     { return id < ppiBase }
func (id IntID) IsPPI() bool     { return id >= ppiBase && id < spiBase }
func (id IntID) IsSPI() bool     { return id >= spiBase && id < specialBase }
func (id IntID) IsSpecial() bool { return id >= specialBase && id <= SpecialNone }

// IsPrivate reports whether the interrupt is banked per core (SGI or PPI).
func (id IntID) IsPrivate() bool { return id < spiBase }

// Valid reports whether id names a real interrupt.
func (id IntID) Valid() bool { return id <= MaxIntID }

func (id IntID) String() string {
	switch {
	case id.IsSGI():
		return fmt.Sprintf("SGI %d", uint32(id-sgiBase))
	case id.IsPPI():
		return fmt.Sprintf("PPI %d", uint32(id-ppiBase))
	case id.IsSPI():
		return fmt.Sprintf("SPI %d", uint32(id-spiBase))
	case id.IsSpecial():
		return fmt.Sprintf("Special %d", uint32(id))
	}
	return fmt.Sprintf("IntID(%d)", uint32(id))
}
