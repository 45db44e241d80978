// Package sim models enough of the S32Z2 real-time unit to run the drivers
// on a host: the GICv3, the per-core Generic Timers, the system counter and
// the cores' system registers.
package sim

import (
	"fmt"

	"github.com/tinyrange/s32z2/internal/mmio"
)

// Block is a plain register block mapped on the bus, such as a clock
// generator. Init holds the reset values of selected registers, keyed by
// offset.
type Block struct {
	Name string
	Base uint64
	Size uint64
	Init map[uint64]uint32
}

// Config describes the machine to build.
type Config struct {
	Cores      int
	PeriphBase uint64
	GICDBase   uint64
	GICRBase   uint64
	SPILines   uint32
	Security   bool
	Clock      Clock
	StormLimit int
	Blocks     []Block
}

// Machine is an assembled board.
type Machine struct {
	bus   *mmio.Map
	gic   *GIC
	clock Clock
	cores []*Core
}

func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("sim: machine needs a clock")
	}
	gic, err := NewGIC(GICOptions{
		Cores:    cfg.Cores,
		GICDBase: cfg.GICDBase,
		GICRBase: cfg.GICRBase,
		SPILines: cfg.SPILines,
		Security: cfg.Security,
	})
	if err != nil {
		return nil, err
	}

	b := mmio.NewBuilder()
	for _, w := range gic.Windows() {
		if err := b.WithRegion(w.Name, w.Base, w.Size, gic); err != nil {
			return nil, fmt.Errorf("sim: map %s: %w", w.Name, err)
		}
	}
	for _, blk := range cfg.Blocks {
		mem := mmio.NewMemory(blk.Base, blk.Size)
		for off, v := range blk.Init {
			if off+4 > blk.Size {
				return nil, fmt.Errorf("sim: block %s: reset value at 0x%x outside the block", blk.Name, off)
			}
			mem.Poke32(blk.Base+off, v)
		}
		if err := b.WithRegion(blk.Name, blk.Base, blk.Size, mem); err != nil {
			return nil, fmt.Errorf("sim: map %s: %w", blk.Name, err)
		}
	}

	m := &Machine{
		bus:   b.Build(),
		gic:   gic,
		clock: cfg.Clock,
	}
	for i := 0; i < cfg.Cores; i++ {
		m.cores = append(m.cores, newCore(i, gic, cfg.Clock, cfg.PeriphBase, cfg.StormLimit))
	}
	return m, nil
}

// Bus is the physical address space shared by the cores.
func (m *Machine) Bus() *mmio.Map { return m.bus }

func (m *Machine) GIC() *GIC      { return m.gic }
func (m *Machine) Clock() Clock   { return m.clock }
func (m *Machine) Cores() []*Core { return m.cores }

// Core returns core i.
func (m *Machine) Core(i int) *Core { return m.cores[i] }
