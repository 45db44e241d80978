package gic

import "github.com/tinyrange/s32z2/internal/reg"

// Distributor register offsets.
const (
	gicdCtlr       = 0x0000
	gicdTyper      = 0x0004
	gicdIgroupr    = 0x0080
	gicdIsenabler  = 0x0100
	gicdIcenabler  = 0x0180
	gicdIspendr    = 0x0200
	gicdIcpendr    = 0x0280
	gicdIpriorityr = 0x0400
	gicdIcfgr      = 0x0C00
	gicdIgrpmodr   = 0x0D00
	gicdIrouter    = 0x6000
	gicdPidr2      = 0xFFE8

	// DistributorSize is the size of the GICD register frame.
	DistributorSize = 0x10000
)

// Redistributor register offsets. Each core owns an RD_base frame followed
// by an SGI_base frame.
const (
	gicrCtlr  = 0x0000
	gicrTyper = 0x0008
	gicrWaker = 0x0014

	gicrSGIBase    = 0x10000
	gicrIgroupr0   = gicrSGIBase + 0x0080
	gicrIsenabler0 = gicrSGIBase + 0x0100
	gicrIcenabler0 = gicrSGIBase + 0x0180
	gicrIspendr0   = gicrSGIBase + 0x0200
	gicrIcpendr0   = gicrSGIBase + 0x0280
	gicrIpriorityr = gicrSGIBase + 0x0400
	gicrIcfgr0     = gicrSGIBase + 0x0C00
	gicrIgrpmodr0  = gicrSGIBase + 0x0D00

	// RedistributorStride is the size of one core's redistributor frames.
	RedistributorStride = 0x20000
)

// GICD_CTLR
var (
	ctlrEnableGrp0   = reg.Bit(0)
	ctlrEnableGrp1NS = reg.Bit(1)
	ctlrEnableGrp1S  = reg.Bit(2)
	ctlrAREs         = reg.Bit(4)
	ctlrAREns        = reg.Bit(5)
	ctlrDS           = reg.Bit(6)
	ctlrRWP          = reg.Bit(31)
)

// GICD_TYPER
var (
	typerITLines      = reg.Bits(4, 0)
	typerSecurityExtn = reg.Bit(10)
)

// GICD_PIDR2 / GICR_PIDR2
var pidr2ArchRev = reg.Bits(7, 4)

// GICR_WAKER
var (
	wakerProcessorSleep = reg.Bit(1)
	wakerChildrenAsleep = reg.Bit(2)
)

// GICR_TYPER
var (
	rtyperLast    = reg.Bit(4)
	rtyperProcNum = reg.Bits(23, 8)
)

// GICR_CTLR
var rctlrRWP = reg.Bit(3)

// ICC_SGI0R, ICC_SGI1R and ICC_ASGI1R
var (
	sgirTargetList = reg.Bits(15, 0)
	sgirAff1       = reg.Bits(23, 16)
	sgirINTID      = reg.Bits(27, 24)
	sgirAff2       = reg.Bits(39, 32)
	sgirIRM        = reg.Bit(40)
	sgirRS         = reg.Bits(47, 44)
	sgirAff3       = reg.Bits(55, 48)
)

// CPU interface fields
var (
	iarINTID     = reg.Bits(23, 0)
	sreSRE       = reg.Bit(0)
	igrpenEnable = reg.Bit(0)
	pmrPriority  = reg.Bits(7, 0)
	rprPriority  = reg.Bits(7, 0)
)

func encodeSGI(id IntID, t SGITargetList, allOther bool) uint64 {
	v := sgirINTID.Set(0, uint64(id))
	if allOther {
		return sgirIRM.SetBool(v, true)
	}
	v = sgirTargetList.Set(v, uint64(t.TargetList))
	v = sgirAff1.Set(v, uint64(t.Aff1))
	v = sgirAff2.Set(v, uint64(t.Aff2))
	v = sgirAff3.Set(v, uint64(t.Aff3))
	v = sgirRS.Set(v, 0)
	return v
}
