// Package s32z2 describes the NXP S32Z2 real-time unit: where its GIC and
// clock generators live, which PPIs the timers use and how a core is
// brought up before a program runs.
package s32z2

import "github.com/tinyrange/s32z2/internal/gic"

const (
	// PeriphBase is the value of IMP_CBAR.PERIPHBASE on RTU0.
	PeriphBase = 0x4780_0000
	// GICDOffset and GICROffset locate the distributor and the first
	// redistributor relative to PeriphBase.
	GICDOffset = 0x0
	GICROffset = 0x10_0000

	// TimerFrequencyHz is the Generic Timer rate: the 40 MHz crystal
	// divided by five. Start-up code writes it to CNTFRQ.
	TimerFrequencyHz = 8_000_000

	// Cores is the number of Cortex-R52 cores in one RTU.
	Cores = 4
)

// Clock generator register blocks.
const (
	CoreDFSBase   = 0x4026_0000
	PeriphDFSBase = 0x4027_0000
	CorePLLBase   = 0x4021_0000
	PeriphPLLBase = 0x4022_0000

	clockBlockSize = 0x1000
)

// Timer interrupts. Both are PPIs, so they are configured per core.
var (
	VirtualTimerIntID  = gic.MustPPI(11)
	PhysicalTimerIntID = gic.MustPPI(14)
)
