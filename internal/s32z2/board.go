package s32z2

import (
	"fmt"

	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/gic"
	"github.com/tinyrange/s32z2/internal/sim"
	"github.com/tinyrange/s32z2/internal/timer"
)

// Board is a simulated S32Z2 with the drivers opened on its first core.
type Board struct {
	Config  Config
	Machine *sim.Machine
	Core    *sim.Core
	GIC     *gic.GICv3

	Physical *timer.Timer
	Virtual  *timer.Timer
}

// Open builds the machine described by cfg and opens the GIC driver at the
// address the core reports in IMP_CBAR.
func Open(cfg Config, opts ...gic.Option) (*Board, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := sim.NewMachine(cfg.MachineConfig())
	if err != nil {
		return nil, fmt.Errorf("build machine: %w", err)
	}
	core := m.Core(0)

	periph := cortexr.ImpCbar(core.ReadSysReg(cortexr.IMP_CBAR)).PeriphBase()
	g, err := gic.New(m.Bus(), periph+cfg.GICDOffset, periph+cfg.GICROffset, cfg.Cores, core, opts...)
	if err != nil {
		return nil, fmt.Errorf("open gic: %w", err)
	}

	return &Board{
		Config:   cfg,
		Machine:  m,
		Core:     core,
		GIC:      g,
		Physical: timer.NewPhysical(core),
		Virtual:  timer.NewVirtual(core),
	}, nil
}

// Close releases the driver's register windows.
func (b *Board) Close() {
	b.GIC.Close()
}
