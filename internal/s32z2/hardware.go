package s32z2

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinyrange/s32z2/internal/gic"
	"github.com/tinyrange/s32z2/internal/mmio"
)

// Window is a physical address range the drivers access.
type Window struct {
	Name string
	Base uint64
	Size uint64
}

// Windows lists the register blocks of the board described by c.
func (c Config) Windows() []Window {
	return []Window{
		{"gicd", c.PeriphBase + c.GICDOffset, gic.DistributorSize},
		{"gicr", c.PeriphBase + c.GICROffset, uint64(c.Cores) * gic.RedistributorStride},
		{"core-pll", CorePLLBase, clockBlockSize},
		{"periph-pll", PeriphPLLBase, clockBlockSize},
		{"core-dfs", CoreDFSBase, clockBlockSize},
		{"periph-dfs", PeriphDFSBase, clockBlockSize},
	}
}

type opener func(base, size uint64) (mmio.Bus, io.Closer, error)

func openDevMem(base, size uint64) (mmio.Bus, io.Closer, error) {
	d, err := mmio.OpenDevMem(base, size)
	if err != nil {
		return nil, nil, err
	}
	return d, d, nil
}

// Hardware is the board's register space mapped from Linux.
type Hardware struct {
	Bus     *mmio.Map
	closers []io.Closer
}

// OpenHardware maps every window of cfg through /dev/mem.
func OpenHardware(cfg Config) (*Hardware, error) {
	return openHardware(cfg, openDevMem)
}

func openHardware(cfg Config, open opener) (*Hardware, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Hardware{}
	b := mmio.NewBuilder()
	for _, w := range cfg.Windows() {
		bus, closer, err := open(w.Base, w.Size)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("map %s at 0x%x: %w", w.Name, w.Base, err)
		}
		h.closers = append(h.closers, closer)
		if err := b.WithRegion(w.Name, w.Base, w.Size, mmio.Forward(bus)); err != nil {
			h.Close()
			return nil, err
		}
	}
	h.Bus = b.Build()
	return h, nil
}

// Close unmaps every window.
func (h *Hardware) Close() error {
	var errs []error
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

// Inspection is a read-only snapshot of the interrupt controller and the
// clock generators.
type Inspection struct {
	GICDBase uint64
	GICRBase uint64
	GIC      gic.Info
	Clocks   []ClockDomain
}

// Inspect identifies the GIC and reads the clock configuration on bus
// without changing either.
func Inspect(bus mmio.Bus, cfg Config) (Inspection, error) {
	cfg.normalize()
	in := Inspection{
		GICDBase: cfg.PeriphBase + cfg.GICDOffset,
		GICRBase: cfg.PeriphBase + cfg.GICROffset,
	}

	info, err := gic.Probe(bus, in.GICDBase, in.GICRBase, cfg.Cores)
	if err != nil {
		return Inspection{}, fmt.Errorf("inspect: %w", err)
	}
	in.GIC = info

	in.Clocks, err = ReadClocks(bus)
	if err != nil {
		return Inspection{}, fmt.Errorf("inspect: %w", err)
	}
	return in, nil
}

func (in Inspection) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "GICv%d distributor @ 0x%08x, redistributors @ 0x%08x\n", in.GIC.ArchRev, in.GICDBase, in.GICRBase)
	fmt.Fprintf(&b, "  cores=%d max INTID=%d security=%v\n", in.GIC.CPUCount, in.GIC.MaxIntID, in.GIC.SecurityExtensions)
	for core, off := range in.GIC.Frames {
		fmt.Fprintf(&b, "  - core %d: frame 0x%08x\n", core, in.GICRBase+off)
	}
	for _, d := range in.Clocks {
		b.WriteString(d.String())
	}
	return b.String()
}
