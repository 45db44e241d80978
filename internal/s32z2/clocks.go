package s32z2

import (
	"fmt"
	"strings"

	"github.com/tinyrange/s32z2/internal/mmio"
	"github.com/tinyrange/s32z2/internal/reg"
	"github.com/tinyrange/s32z2/internal/sim"
)

// DFS register offsets.
const (
	dfsPortSR    = 0x0C
	dfsPortReset = 0x14
	dfsCtl       = 0x18
	dfsDvPort0   = 0x1C

	dfsPorts = 6
)

// PLLDIG register offsets.
const (
	pllCR     = 0x00
	pllSR     = 0x04
	pllDV     = 0x08
	pllFD     = 0x10
	pllClkMux = 0x20
	pllODiv0  = 0x80
)

var (
	dfsCtlInReset = reg.Bit(1)
	dfsDvMFI      = reg.Bits(15, 8)
	dfsDvMFN      = reg.Bits(5, 0)

	pllCRPowerDown = reg.Bit(31)
	pllSRLossLock  = reg.Bit(3)
	pllSRLocked    = reg.Bit(2)
	pllDVRDiv      = reg.Bits(14, 12)
	pllDVMFI       = reg.Bits(7, 0)
	pllFDSDMEn     = reg.Bit(30)
	pllFDMFN       = reg.Bits(14, 0)
	pllMuxFXOSC    = reg.Bit(0)
)

// DFSPort is the divider of one DFS output.
type DFSPort struct {
	MFI uint8 // integer part
	MFN uint8 // fractional numerator
}

func (p DFSPort) String() string {
	return fmt.Sprintf("DfsDvPort(mfi=%d, mfn=%d)", p.MFI, p.MFN)
}

// DFS is a snapshot of a Digital Frequency Synthesizer.
type DFS struct {
	InReset   bool
	PortSR    uint32 // one lock bit per port
	PortReset uint32 // one disable bit per port
	Ports     [dfsPorts]DFSPort
}

// PLL is a snapshot of a PLLDIG block.
type PLL struct {
	PowerDown  bool
	LossOfLock bool
	Locked     bool
	RDiv       uint8
	MFI        uint8
	SDMEnable  bool
	MFN        uint16
	FXOSC      bool // reference is the crystal, otherwise FIRC
}

// ClockDomain pairs a DFS with the PLL feeding it.
type ClockDomain struct {
	Name string
	DFS  DFS
	PLL  PLL
}

func (d ClockDomain) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Examining %s DFS and PLL...\n", d.Name)
	fmt.Fprintf(&b, "  DfsCtl(in_reset=%v)\n", d.DFS.InReset)
	fmt.Fprintf(&b, "  DfsPortSr(%06b)\n", d.DFS.PortSR)
	fmt.Fprintf(&b, "  DfsPortReset(%06b)\n", d.DFS.PortReset)
	for i, p := range d.DFS.Ports {
		fmt.Fprintf(&b, "  - DvPort%d: %v\n", i, p)
	}
	ref := "FIRC"
	if d.PLL.FXOSC {
		ref = "FXOSC"
	}
	fmt.Fprintf(&b, "  PllDigCr(pd=%v)\n", d.PLL.PowerDown)
	fmt.Fprintf(&b, "  PllDigSr(lol=%v, locked=%v)\n", d.PLL.LossOfLock, d.PLL.Locked)
	fmt.Fprintf(&b, "  PllDigDv(rdiv=%d, mfi=%d)\n", d.PLL.RDiv, d.PLL.MFI)
	fmt.Fprintf(&b, "  PllDigFd(sdmen=%v, mfn=%d)\n", d.PLL.SDMEnable, d.PLL.MFN)
	fmt.Fprintf(&b, "  PllDigClkMux(%s)\n", ref)
	return b.String()
}

// ReadDFS takes a snapshot of the DFS at base.
func ReadDFS(bus mmio.Bus, base uint64) (DFS, error) {
	r, err := mmio.Claim(bus, base, clockBlockSize, "dfs")
	if err != nil {
		return DFS{}, fmt.Errorf("read dfs: %w", err)
	}
	defer r.Release()

	d := DFS{
		InReset:   dfsCtlInReset.IsSet32(r.Read32(dfsCtl)),
		PortSR:    r.Read32(dfsPortSR) & 0x3f,
		PortReset: r.Read32(dfsPortReset) & 0x3f,
	}
	for i := range d.Ports {
		v := r.Read32(dfsDvPort0 + 4*uint64(i))
		d.Ports[i] = DFSPort{MFI: uint8(dfsDvMFI.Get32(v)), MFN: uint8(dfsDvMFN.Get32(v))}
	}
	return d, nil
}

// ReadPLL takes a snapshot of the PLLDIG block at base.
func ReadPLL(bus mmio.Bus, base uint64) (PLL, error) {
	r, err := mmio.Claim(bus, base, clockBlockSize, "pll")
	if err != nil {
		return PLL{}, fmt.Errorf("read pll: %w", err)
	}
	defer r.Release()

	sr := r.Read32(pllSR)
	dv := r.Read32(pllDV)
	fd := r.Read32(pllFD)
	return PLL{
		PowerDown:  pllCRPowerDown.IsSet32(r.Read32(pllCR)),
		LossOfLock: pllSRLossLock.IsSet32(sr),
		Locked:     pllSRLocked.IsSet32(sr),
		RDiv:       uint8(pllDVRDiv.Get32(dv)),
		MFI:        uint8(pllDVMFI.Get32(dv)),
		SDMEnable:  pllFDSDMEn.IsSet32(fd),
		MFN:        uint16(pllFDMFN.Get32(fd)),
		FXOSC:      pllMuxFXOSC.IsSet32(r.Read32(pllClkMux)),
	}, nil
}

// ReadClocks inspects the core and peripheral clock domains. The PLLs are
// already running when a program starts, so nothing is reprogrammed.
func ReadClocks(bus mmio.Bus) ([]ClockDomain, error) {
	domains := []struct {
		name     string
		dfs, pll uint64
	}{
		{"core", CoreDFSBase, CorePLLBase},
		{"periph", PeriphDFSBase, PeriphPLLBase},
	}
	var out []ClockDomain
	for _, d := range domains {
		dfs, err := ReadDFS(bus, d.dfs)
		if err != nil {
			return nil, fmt.Errorf("%s clocks: %w", d.name, err)
		}
		pll, err := ReadPLL(bus, d.pll)
		if err != nil {
			return nil, fmt.Errorf("%s clocks: %w", d.name, err)
		}
		out = append(out, ClockDomain{Name: d.name, DFS: dfs, PLL: pll})
	}
	return out, nil
}

// clockBlocks returns the clock generators as left by the boot ROM: PLLs
// locked on the crystal and every DFS port enabled.
func clockBlocks() []sim.Block {
	dv := func(mfi, mfn uint32) uint32 {
		return dfsDvMFI.Set32(dfsDvMFN.Set32(0, mfn), mfi)
	}
	dfs := func(ports ...uint32) map[uint64]uint32 {
		init := map[uint64]uint32{dfsPortSR: 0x3f}
		for i, p := range ports {
			init[dfsDvPort0+4*uint64(i)] = p
		}
		return init
	}
	pll := func(mfi uint32) map[uint64]uint32 {
		return map[uint64]uint32{
			pllSR:     uint32(pllSRLocked.Mask()),
			pllDV:     pllDVRDiv.Set32(pllDVMFI.Set32(0, mfi), 1),
			pllClkMux: uint32(pllMuxFXOSC.Mask()),
			pllODiv0:  1 << 31,
		}
	}
	return []sim.Block{
		{Name: "core-pll", Base: CorePLLBase, Size: clockBlockSize, Init: pll(50)},
		{Name: "periph-pll", Base: PeriphPLLBase, Size: clockBlockSize, Init: pll(50)},
		{Name: "core-dfs", Base: CoreDFSBase, Size: clockBlockSize, Init: dfs(
			dv(2, 0), dv(2, 0), dv(2, 9), dv(3, 0), dv(4, 0), dv(5, 0))},
		{Name: "periph-dfs", Base: PeriphDFSBase, Size: clockBlockSize, Init: dfs(
			dv(2, 18), dv(3, 0), dv(4, 0), dv(5, 0), dv(6, 0), dv(8, 0))},
	}
}
