package s32z2

import (
	"fmt"

	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/mmio"
)

// SetupCore prepares the calling core the way start-up code does before a
// program's main runs: it opens the peripheral port to EL1, turns on the
// caches and branch prediction, and reads back the clock configuration.
func SetupCore(cpu cortexr.SystemRegisters, bus mmio.Bus) ([]ClockDomain, error) {
	cortexr.ModifySysReg(cpu, cortexr.IMP_PERIPHPREGIONR, func(v uint64) uint64 {
		return v | 1
	})
	cortexr.ModifySysReg(cpu, cortexr.SCTLR, func(v uint64) uint64 {
		s := cortexr.Sctlr(v).WithDCache(true).WithICache(true).WithBranchPredict(true)
		return uint64(s)
	})

	clocks, err := ReadClocks(bus)
	if err != nil {
		return nil, fmt.Errorf("setup core: %w", err)
	}
	return clocks, nil
}
