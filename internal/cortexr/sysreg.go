// Package cortexr models the Cortex-R52 system registers used by the drivers.
//
// On silicon these are coprocessor accesses (MRC/MCR/MRRC/MCRR). The drivers
// only ever see the SystemRegisters interface, which the simulator in
// internal/sim implements for host execution.
package cortexr

import "fmt"

// Register identifies one system register of the calling core.
type Register int

const (
	RegisterInvalid Register = iota

	// Identification and control
	MIDR
	MPIDR
	CPSR
	SCTLR
	VBAR
	IMP_CBAR
	IMP_PERIPHPREGIONR

	// Generic Timer
	CNTFRQ
	CNTPCT
	CNTVCT
	CNTVOFF
	CNTP_CTL
	CNTP_CVAL
	CNTP_TVAL
	CNTV_CTL
	CNTV_CVAL
	CNTV_TVAL

	// GICv3 CPU interface
	ICC_PMR
	ICC_IAR0
	ICC_IAR1
	ICC_EOIR0
	ICC_EOIR1
	ICC_HPPIR1
	ICC_RPR
	ICC_BPR1
	ICC_CTLR
	ICC_SRE
	ICC_IGRPEN0
	ICC_IGRPEN1
	ICC_SGI0R
	ICC_SGI1R
	ICC_ASGI1R

	registerCount
)

var registerNames = [...]string{
	RegisterInvalid:    "invalid",
	MIDR:               "MIDR",
	MPIDR:              "MPIDR",
	CPSR:               "CPSR",
	SCTLR:              "SCTLR",
	VBAR:               "VBAR",
	IMP_CBAR:           "IMP_CBAR",
	IMP_PERIPHPREGIONR: "IMP_PERIPHPREGIONR",
	CNTFRQ:             "CNTFRQ",
	CNTPCT:             "CNTPCT",
	CNTVCT:             "CNTVCT",
	CNTVOFF:            "CNTVOFF",
	CNTP_CTL:           "CNTP_CTL",
	CNTP_CVAL:          "CNTP_CVAL",
	CNTP_TVAL:          "CNTP_TVAL",
	CNTV_CTL:           "CNTV_CTL",
	CNTV_CVAL:          "CNTV_CVAL",
	CNTV_TVAL:          "CNTV_TVAL",
	ICC_PMR:            "ICC_PMR",
	ICC_IAR0:           "ICC_IAR0",
	ICC_IAR1:           "ICC_IAR1",
	ICC_EOIR0:          "ICC_EOIR0",
	ICC_EOIR1:          "ICC_EOIR1",
	ICC_HPPIR1:         "ICC_HPPIR1",
	ICC_RPR:            "ICC_RPR",
	ICC_BPR1:           "ICC_BPR1",
	ICC_CTLR:           "ICC_CTLR",
	ICC_SRE:            "ICC_SRE",
	ICC_IGRPEN0:        "ICC_IGRPEN0",
	ICC_IGRPEN1:        "ICC_IGRPEN1",
	ICC_SGI0R:          "ICC_SGI0R",
	ICC_SGI1R:          "ICC_SGI1R",
	ICC_ASGI1R:         "ICC_ASGI1R",
}

func (r Register) String() string {
	if r > RegisterInvalid && r < registerCount {
		return registerNames[r]
	}
	return fmt.Sprintf("Register(%d)", int(r))
}

// Valid reports whether r names a known register.
func (r Register) Valid() bool {
	return r > RegisterInvalid && r < registerCount
}

// SystemRegisters reads and writes the calling core's system registers.
// 32-bit registers use the low half of the value.
type SystemRegisters interface {
	ReadSysReg(r Register) uint64
	WriteSysReg(r Register, value uint64)
}

// InterruptMasker controls the processor-level IRQ mask (CPSR.I).
type InterruptMasker interface {
	EnableInterrupts()
	DisableInterrupts()
	InterruptsEnabled() bool
}

// Processor is everything a driver or program needs from the calling core.
type Processor interface {
	SystemRegisters
	InterruptMasker
}

// ModifySysReg performs a read-modify-write of a system register.
func ModifySysReg(s SystemRegisters, r Register, fn func(uint64) uint64) {
	s.WriteSysReg(r, fn(s.ReadSysReg(r)))
}
