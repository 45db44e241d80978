package cortexr

import (
	"fmt"
	"strings"

	"github.com/tinyrange/s32z2/internal/reg"
)

// Mode is the CPSR processor mode.
type Mode uint8

const (
	ModeUsr Mode = 0b10000
	ModeFiq Mode = 0b10001
	ModeIrq Mode = 0b10010
	ModeSvc Mode = 0b10011
	ModeMon Mode = 0b10110
	ModeAbt Mode = 0b10111
	ModeHyp Mode = 0b11010
	ModeUnd Mode = 0b11011
	ModeSys Mode = 0b11111
)

func (m Mode) String() string {
	switch m {
	case ModeUsr:
		return "Usr"
	case ModeFiq:
		return "Fiq"
	case ModeIrq:
		return "Irq"
	case ModeSvc:
		return "Svc"
	case ModeMon:
		return "Mon"
	case ModeAbt:
		return "Abt"
	case ModeHyp:
		return "Hyp"
	case ModeUnd:
		return "Und"
	case ModeSys:
		return "Sys"
	}
	return fmt.Sprintf("Mode(%#b)", uint8(m))
}

var (
	cpsrMode = reg.Bits(4, 0)
	cpsrT    = reg.Bit(5)
	cpsrF    = reg.Bit(6)
	cpsrI    = reg.Bit(7)
	cpsrA    = reg.Bit(8)
	cpsrE    = reg.Bit(9)
	cpsrQ    = reg.Bit(27)
	cpsrV    = reg.Bit(28)
	cpsrC    = reg.Bit(29)
	cpsrZ    = reg.Bit(30)
	cpsrN    = reg.Bit(31)
)

// Cpsr is the Current Program Status Register.
type Cpsr uint32

func (c Cpsr) Mode() Mode           { return Mode(cpsrMode.Get32(uint32(c))) }
func (c Cpsr) IRQMasked() bool      { return cpsrI.IsSet32(uint32(c)) }
func (c Cpsr) FIQMasked() bool      { return cpsrF.IsSet32(uint32(c)) }
func (c Cpsr) WithMode(m Mode) Cpsr { return Cpsr(cpsrMode.Set32(uint32(c), uint32(m))) }

// WithIRQMasked returns c with CPSR.I set or cleared.
func (c Cpsr) WithIRQMasked(masked bool) Cpsr {
	return Cpsr(cpsrI.SetBool32(uint32(c), masked))
}

func (c Cpsr) String() string {
	v := uint32(c)
	return fmt.Sprintf("Cpsr { N=%d Z=%d C=%d V=%d Q=%d E=%d A=%d I=%d F=%d T=%d mode=%s }",
		cpsrN.Get32(v), cpsrZ.Get32(v), cpsrC.Get32(v), cpsrV.Get32(v), cpsrQ.Get32(v),
		cpsrE.Get32(v), cpsrA.Get32(v), cpsrI.Get32(v), cpsrF.Get32(v), cpsrT.Get32(v), c.Mode())
}

var (
	sctlrM   = reg.Bit(0)
	sctlrA   = reg.Bit(1)
	sctlrC   = reg.Bit(2)
	sctlrZ   = reg.Bit(11)
	sctlrI   = reg.Bit(12)
	sctlrV   = reg.Bit(13)
	sctlrWXN = reg.Bit(19)
	sctlrEE  = reg.Bit(25)
	sctlrTE  = reg.Bit(30)
)

// Sctlr is the System Control Register.
type Sctlr uint32

func (s Sctlr) MPUEnabled() bool    { return sctlrM.IsSet32(uint32(s)) }
func (s Sctlr) DCache() bool        { return sctlrC.IsSet32(uint32(s)) }
func (s Sctlr) ICache() bool        { return sctlrI.IsSet32(uint32(s)) }
func (s Sctlr) BranchPredict() bool { return sctlrZ.IsSet32(uint32(s)) }

func (s Sctlr) WithMPU(on bool) Sctlr           { return Sctlr(sctlrM.SetBool32(uint32(s), on)) }
func (s Sctlr) WithDCache(on bool) Sctlr        { return Sctlr(sctlrC.SetBool32(uint32(s), on)) }
func (s Sctlr) WithICache(on bool) Sctlr        { return Sctlr(sctlrI.SetBool32(uint32(s), on)) }
func (s Sctlr) WithBranchPredict(on bool) Sctlr { return Sctlr(sctlrZ.SetBool32(uint32(s), on)) }

func (s Sctlr) String() string {
	v := uint32(s)
	var set []string
	for _, f := range []struct {
		name  string
		field reg.Field
	}{
		{"M", sctlrM}, {"A", sctlrA}, {"C", sctlrC}, {"Z", sctlrZ}, {"I", sctlrI},
		{"V", sctlrV}, {"WXN", sctlrWXN}, {"EE", sctlrEE}, {"TE", sctlrTE},
	} {
		if f.field.IsSet32(v) {
			set = append(set, f.name)
		}
	}
	return fmt.Sprintf("Sctlr(%#010x) { %s }", v, strings.Join(set, " "))
}

var (
	midrImplementer = reg.Bits(31, 24)
	midrVariant     = reg.Bits(23, 20)
	midrArch        = reg.Bits(19, 16)
	midrPartNum     = reg.Bits(15, 4)
	midrRevision    = reg.Bits(3, 0)
)

// Midr is the Main ID Register.
type Midr uint32

func (m Midr) Implementer() uint8 { return uint8(midrImplementer.Get32(uint32(m))) }
func (m Midr) PartNum() uint16    { return uint16(midrPartNum.Get32(uint32(m))) }

func (m Midr) String() string {
	v := uint32(m)
	return fmt.Sprintf("Midr { implementer=%#x variant=%d arch=%#x part=%#x rev=%d }",
		midrImplementer.Get32(v), midrVariant.Get32(v), midrArch.Get32(v), midrPartNum.Get32(v), midrRevision.Get32(v))
}

var cbarPeriphBase = reg.Bits(31, 21)

// ImpCbar is the Configuration Base Address Register.
type ImpCbar uint32

// PeriphBase is the base of the GIC and other private peripherals.
func (c ImpCbar) PeriphBase() uint64 {
	return uint64(cbarPeriphBase.Get32(uint32(c))) << cbarPeriphBase.Shift
}

func (c ImpCbar) String() string {
	return fmt.Sprintf("ImpCbar { periphbase=0x%010x }", c.PeriphBase())
}

var (
	mpidrAff0 = reg.Bits(7, 0)
	mpidrAff1 = reg.Bits(15, 8)
	mpidrAff2 = reg.Bits(23, 16)
)

// Mpidr is the Multiprocessor Affinity Register.
type Mpidr uint32

func (m Mpidr) Aff0() uint8 { return uint8(mpidrAff0.Get32(uint32(m))) }
func (m Mpidr) Aff1() uint8 { return uint8(mpidrAff1.Get32(uint32(m))) }
func (m Mpidr) Aff2() uint8 { return uint8(mpidrAff2.Get32(uint32(m))) }

// NewMpidr builds an affinity value for a core.
func NewMpidr(aff2, aff1, aff0 uint8) Mpidr {
	v := mpidrAff0.Set32(0, uint32(aff0))
	v = mpidrAff1.Set32(v, uint32(aff1))
	v = mpidrAff2.Set32(v, uint32(aff2))
	return Mpidr(v | 1<<31)
}

func (m Mpidr) String() string {
	return fmt.Sprintf("Mpidr { aff2=%d aff1=%d aff0=%d }", m.Aff2(), m.Aff1(), m.Aff0())
}
