// Package gic drives an Arm GICv3 interrupt controller: the distributor,
// one redistributor per core and the system-register CPU interface of the
// calling core.
//
// The driver owns its register windows for its whole lifetime. Configuration
// calls report caller mistakes as errors. The acknowledge and end-of-interrupt
// path does no checking unless WithPairingCheck is given: every acknowledged
// interrupt must be ended exactly once, in LIFO order, or the running
// priority stays raised and lower priority interrupts are blocked.
package gic

import (
	"fmt"

	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/debug"
	"github.com/tinyrange/s32z2/internal/mmio"
	"github.com/tinyrange/s32z2/internal/reg"
)

const pollBudget = 1 << 16

var (
	trace      = debug.Source("gic")
	traceCPUIf = debug.Source("gic/cpuif")
)

// Option configures a GICv3 at construction.
type Option func(*GICv3)

// WithPairingCheck tracks acknowledged interrupts and reports ends that do
// not match the most recent outstanding acknowledge. It only observes; the
// register accesses are the same with or without it.
func WithPairingCheck(report func(error)) Option {
	return func(g *GICv3) {
		g.pairing = newPairingChecker(report)
	}
}

// GICv3 is the driver handle.
type GICv3 struct {
	gicd *mmio.Region
	gicr *mmio.Region
	cpu  cortexr.SystemRegisters

	cpuCount int
	frames   []uint64 // redistributor frame offset, indexed by core
	archRev  uint32
	security bool
	maxIntID IntID
	pairing  *pairingChecker
}

// New claims the distributor at gicdBase and cpuCount redistributor frames at
// gicrBase. cpu is the system register interface of the calling core.
func New(bus mmio.Bus, gicdBase, gicrBase uint64, cpuCount int, cpu cortexr.SystemRegisters, opts ...Option) (*GICv3, error) {
	if cpuCount < 1 {
		return nil, ErrNoCores
	}
	if cpu == nil {
		return nil, fmt.Errorf("gic: cpu interface is nil")
	}

	g, err := open(bus, gicdBase, gicrBase, cpuCount)
	if err != nil {
		return nil, err
	}
	g.cpu = cpu
	for _, opt := range opts {
		opt(g)
	}

	trace.Writef("new gicd=0x%x gicr=0x%x cores=%d security=%v max=%d",
		gicdBase, gicrBase, cpuCount, g.security, g.maxIntID)

	return g, nil
}

// open claims the register windows and identifies the controller.
func open(bus mmio.Bus, gicdBase, gicrBase uint64, cpuCount int) (*GICv3, error) {
	gicd, err := mmio.Claim(bus, gicdBase, DistributorSize, "gicd")
	if err != nil {
		return nil, fmt.Errorf("gic: claim distributor: %w", err)
	}
	gicr, err := mmio.Claim(bus, gicrBase, uint64(cpuCount)*RedistributorStride, "gicr")
	if err != nil {
		gicd.Release()
		return nil, fmt.Errorf("gic: claim redistributors: %w", err)
	}

	g := &GICv3{
		gicd:     gicd,
		gicr:     gicr,
		cpuCount: cpuCount,
	}
	if err := g.probe(); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Info describes a controller found by Probe.
type Info struct {
	ArchRev            uint32
	CPUCount           int
	MaxIntID           IntID
	SecurityExtensions bool
	// Frames holds the redistributor frame offset of each core, relative to
	// the redistributor base.
	Frames []uint64
}

// Probe identifies the controller at gicdBase and gicrBase without touching
// its configuration or any CPU interface. The windows are claimed only for
// the duration of the call.
func Probe(bus mmio.Bus, gicdBase, gicrBase uint64, cpuCount int) (Info, error) {
	if cpuCount < 1 {
		return Info{}, ErrNoCores
	}
	g, err := open(bus, gicdBase, gicrBase, cpuCount)
	if err != nil {
		return Info{}, err
	}
	defer g.Close()

	trace.Writef("probe gicd=0x%x gicr=0x%x rev=%d max=%d", gicdBase, gicrBase, g.archRev, g.maxIntID)
	return Info{
		ArchRev:            g.archRev,
		CPUCount:           g.cpuCount,
		MaxIntID:           g.maxIntID,
		SecurityExtensions: g.security,
		Frames:             append([]uint64(nil), g.frames...),
	}, nil
}

func (g *GICv3) probe() error {
	rev := pidr2ArchRev.Get32(g.gicd.Read32(gicdPidr2))
	if rev != 3 && rev != 4 {
		return fmt.Errorf("gic: architecture revision %d: %w", rev, ErrNotGICv3)
	}
	g.archRev = rev

	typer := g.gicd.Read32(gicdTyper)
	lines := typerITLines.Get32(typer)
	maxID := IntID(32*(lines+1) - 1)
	if maxID > MaxIntID {
		maxID = MaxIntID
	}
	g.maxIntID = maxID

	ctlr := g.gicd.Read32(gicdCtlr)
	g.security = typerSecurityExtn.IsSet32(typer) && !ctlrDS.IsSet32(ctlr)

	g.frames = make([]uint64, g.cpuCount)
	seen := make([]bool, g.cpuCount)
	for i := 0; i < g.cpuCount; i++ {
		off := uint64(i) * RedistributorStride
		rt := g.gicr.Read64(off + gicrTyper)
		proc := int(rtyperProcNum.Get(rt))
		if proc >= g.cpuCount || seen[proc] {
			return fmt.Errorf("gic: redistributor frame %d reports processor %d: %w", i, proc, ErrCoreOutOfRange)
		}
		seen[proc] = true
		g.frames[proc] = off
		if rtyperLast.IsSet(rt) && i != g.cpuCount-1 {
			return fmt.Errorf("gic: redistributor frame %d is the last of %d expected", i, g.cpuCount)
		}
	}
	return nil
}

// Close releases the register windows.
func (g *GICv3) Close() {
	g.gicd.Release()
	g.gicr.Release()
}

// CPUCount returns the number of redistributors the driver manages.
func (g *GICv3) CPUCount() int { return g.cpuCount }

// SecurityExtensions reports whether two security states are implemented,
// which makes Group1S available.
func (g *GICv3) SecurityExtensions() bool { return g.security }

// MaxIntID returns the highest SPI the distributor implements.
func (g *GICv3) MaxIntID() IntID { return g.maxIntID }

func waitRWP(r *mmio.Region, off uint64, rwp reg.Field) error {
	for i := 0; i < pollBudget; i++ {
		if !rwp.IsSet32(r.Read32(off)) {
			return nil
		}
	}
	return ErrRWPTimeout
}

// Setup initialises the distributor and wakes the redistributor of core. It
// must run once per participating core before that core's interrupts are
// configured; it also enables the calling core's CPU interface.
func (g *GICv3) Setup(core int) error {
	if core < 0 || core >= g.cpuCount {
		return fmt.Errorf("gic: setup core %d: %w", core, ErrCoreOutOfRange)
	}

	var ctlr uint32
	if g.security {
		ctlr = ctlrAREs.SetBool32(ctlr, true)
		ctlr = ctlrAREns.SetBool32(ctlr, true)
		ctlr = ctlrEnableGrp0.SetBool32(ctlr, true)
		ctlr = ctlrEnableGrp1NS.SetBool32(ctlr, true)
		ctlr = ctlrEnableGrp1S.SetBool32(ctlr, true)
	} else {
		// Single security state: bit 4 is ARE, bit 1 is EnableGrp1.
		ctlr = ctlrDS.SetBool32(ctlr, true)
		ctlr = ctlrAREs.SetBool32(ctlr, true)
		ctlr = ctlrEnableGrp0.SetBool32(ctlr, true)
		ctlr = ctlrEnableGrp1NS.SetBool32(ctlr, true)
	}
	g.gicd.Write32(gicdCtlr, ctlr)
	if err := waitRWP(g.gicd, gicdCtlr, ctlrRWP); err != nil {
		return fmt.Errorf("gic: setup distributor: %w", err)
	}

	// Every SGI and PPI of this core and every SPI start in Group 1
	// Non-secure.
	frame := g.frames[core]
	g.gicr.Write32(frame+gicrIgroupr0, 0xffff_ffff)
	if g.security {
		g.gicr.Write32(frame+gicrIgrpmodr0, 0)
	}
	for n := uint64(1); n <= uint64(g.maxIntID)/32; n++ {
		g.gicd.Write32(gicdIgroupr+4*n, 0xffff_ffff)
		if g.security {
			g.gicd.Write32(gicdIgrpmodr+4*n, 0)
		}
	}

	g.gicr.Modify32(frame+gicrWaker, func(v uint32) uint32 {
		return wakerProcessorSleep.SetBool32(v, false)
	})
	woke := false
	for i := 0; i < pollBudget; i++ {
		if !wakerChildrenAsleep.IsSet32(g.gicr.Read32(frame + gicrWaker)) {
			woke = true
			break
		}
	}
	if !woke {
		return fmt.Errorf("gic: setup core %d: %w", core, ErrWakeTimeout)
	}

	cortexr.ModifySysReg(g.cpu, cortexr.ICC_SRE, func(v uint64) uint64 {
		return sreSRE.SetBool(v, true)
	})
	g.cpu.WriteSysReg(cortexr.ICC_IGRPEN1, igrpenEnable.SetBool(0, true))

	trace.Writef("setup core=%d ctlr=%#x", core, ctlr)
	return nil
}

// SetPriorityMask writes ICC_PMR. Interrupts whose priority value is
// numerically greater than or equal to mask are not signalled.
func (g *GICv3) SetPriorityMask(mask uint8) {
	g.cpu.WriteSysReg(cortexr.ICC_PMR, pmrPriority.Set(0, uint64(mask)))
	traceCPUIf.Writef("pmr=%#x", mask)
}

// PriorityMask reads ICC_PMR.
func (g *GICv3) PriorityMask() uint8 {
	return uint8(pmrPriority.Get(g.cpu.ReadSysReg(cortexr.ICC_PMR)))
}

// RunningPriority reads ICC_RPR: the priority of the most recent
// acknowledged but not yet ended interrupt, or 0xff when idle.
func (g *GICv3) RunningPriority() uint8 {
	return uint8(rprPriority.Get(g.cpu.ReadSysReg(cortexr.ICC_RPR)))
}

func (g *GICv3) check(op string, id IntID, core Core) error {
	fail := func(err error) error {
		return &ConfigError{Op: op, ID: id, Core: core, Err: err}
	}
	if !id.Valid() || id > g.maxIntID {
		return fail(ErrInvalidIntID)
	}
	idx, set := core.Index()
	if id.IsPrivate() {
		if !set {
			return fail(ErrCoreRequired)
		}
		if idx < 0 || idx >= g.cpuCount {
			return fail(ErrCoreOutOfRange)
		}
	} else if set {
		return fail(ErrCoreNotApplicable)
	}
	return nil
}

// bank picks the register holding id: gicrOff inside the core's
// redistributor frames for private interrupts, gicdOff otherwise.
func (g *GICv3) bank(id IntID, core Core, gicdOff, gicrOff uint64) (*mmio.Region, uint64) {
	if id.IsPrivate() {
		idx, _ := core.Index()
		return g.gicr, g.frames[idx] + gicrOff
	}
	return g.gicd, gicdOff
}

// SetInterruptPriority sets the priority of id. Lower values are more urgent.
func (g *GICv3) SetInterruptPriority(id IntID, core Core, priority uint8) error {
	if err := g.check("set priority", id, core); err != nil {
		return err
	}
	r, base := g.bank(id, core, gicdIpriorityr, gicrIpriorityr)
	word := base + uint64(id)&^3
	shift := (uint32(id) & 3) * 8
	r.Modify32(word, func(v uint32) uint32 {
		return v&^(0xff<<shift) | uint32(priority)<<shift
	})
	trace.Writef("priority %v %v=%#x", id, core, priority)
	return nil
}

// SetGroup places id into group.
func (g *GICv3) SetGroup(id IntID, core Core, group Group) error {
	if err := g.check("set group", id, core); err != nil {
		return err
	}
	if group == Group1S && !g.security {
		return &ConfigError{Op: "set group", ID: id, Core: core, Err: ErrGroupUnavailable}
	}
	if group > Group1NS {
		return &ConfigError{Op: "set group", ID: id, Core: core, Err: fmt.Errorf("unknown group %d", group)}
	}

	bit := uint32(1) << (uint32(id) % 32)
	n := uint64(id) / 32 * 4

	groupReg, groupOff := g.bank(id, core, gicdIgroupr+n, gicrIgroupr0)
	groupReg.Modify32(groupOff, func(v uint32) uint32 {
		if group == Group1NS {
			return v | bit
		}
		return v &^ bit
	})

	if g.security {
		modReg, modOff := g.bank(id, core, gicdIgrpmodr+n, gicrIgrpmodr0)
		modReg.Modify32(modOff, func(v uint32) uint32 {
			if group == Group1S {
				return v | bit
			}
			return v &^ bit
		})
	}
	trace.Writef("group %v %v=%v", id, core, group)
	return nil
}

// EnableInterrupt enables or disables forwarding of id. Disabling an
// interrupt that is already pending may still let the CPU acknowledge it
// once.
func (g *GICv3) EnableInterrupt(id IntID, core Core, enable bool) error {
	if err := g.check("enable", id, core); err != nil {
		return err
	}
	bit := uint32(1) << (uint32(id) % 32)
	n := uint64(id) / 32 * 4

	var r *mmio.Region
	var off uint64
	if enable {
		r, off = g.bank(id, core, gicdIsenabler+n, gicrIsenabler0)
	} else {
		r, off = g.bank(id, core, gicdIcenabler+n, gicrIcenabler0)
	}
	r.Write32(off, bit)

	if !enable {
		ctl, rwp := uint64(gicdCtlr), ctlrRWP
		if id.IsPrivate() {
			idx, _ := core.Index()
			ctl, rwp = g.frames[idx]+gicrCtlr, rctlrRWP
		}
		if err := waitRWP(r, ctl, rwp); err != nil {
			return &ConfigError{Op: "disable", ID: id, Core: core, Err: err}
		}
	}
	trace.Writef("enable %v %v=%v", id, core, enable)
	return nil
}

// SetPending sets or clears the pending state of id from software.
func (g *GICv3) SetPending(id IntID, core Core, pending bool) error {
	if err := g.check("set pending", id, core); err != nil {
		return err
	}
	bit := uint32(1) << (uint32(id) % 32)
	n := uint64(id) / 32 * 4
	if pending {
		r, off := g.bank(id, core, gicdIspendr+n, gicrIspendr0)
		r.Write32(off, bit)
	} else {
		r, off := g.bank(id, core, gicdIcpendr+n, gicrIcpendr0)
		r.Write32(off, bit)
	}
	return nil
}

// SetTrigger selects level or edge signalling. SGIs are always edge.
func (g *GICv3) SetTrigger(id IntID, core Core, trigger Trigger) error {
	if err := g.check("set trigger", id, core); err != nil {
		return err
	}
	if id.IsSGI() {
		return &ConfigError{Op: "set trigger", ID: id, Core: core, Err: ErrTriggerFixed}
	}
	n := uint64(id) / 16 * 4
	shift := (uint32(id)%16)*2 + 1
	r, off := g.bank(id, core, gicdIcfgr+n, gicrIcfgr0+n)
	r.Modify32(off, func(v uint32) uint32 {
		if trigger == TriggerEdge {
			return v | 1<<shift
		}
		return v &^ (1 << shift)
	})
	return nil
}

// SetRoute routes SPI id to the core with the given affinity.
func (g *GICv3) SetRoute(id IntID, affinity cortexr.Mpidr) error {
	if err := g.check("set route", id, Shared); err != nil {
		return err
	}
	v := uint64(affinity.Aff0()) | uint64(affinity.Aff1())<<8 | uint64(affinity.Aff2())<<16
	g.gicd.Write64(gicdIrouter+8*uint64(id), v)
	trace.Writef("route %v=%v", id, affinity)
	return nil
}

// SendSGI generates software interrupt id for target.
func (g *GICv3) SendSGI(id IntID, target SGITarget, group SGIGroup) error {
	if !id.IsSGI() {
		return fmt.Errorf("gic: send %v: %w", id, ErrNotSGI)
	}

	var v uint64
	switch t := target.(type) {
	case SGITargetList:
		v = encodeSGI(id, t, false)
	case SGITargetAllOther:
		v = encodeSGI(id, SGITargetList{}, true)
	case SGITargetSelf:
		mp := cortexr.Mpidr(g.cpu.ReadSysReg(cortexr.MPIDR))
		if mp.Aff0() >= 16 {
			return fmt.Errorf("gic: send %v to self (%v): %w", id, mp, ErrTargetRange)
		}
		v = encodeSGI(id, SGITargetList{Aff2: mp.Aff2(), Aff1: mp.Aff1(), TargetList: 1 << mp.Aff0()}, false)
	default:
		return fmt.Errorf("gic: send %v: unknown target %T", id, target)
	}

	var r cortexr.Register
	switch group {
	case SGIGroup0:
		r = cortexr.ICC_SGI0R
	case SGICurrentGroup1:
		r = cortexr.ICC_SGI1R
	case SGIOtherGroup1:
		r = cortexr.ICC_ASGI1R
	default:
		return fmt.Errorf("gic: send %v: unknown group %d", id, group)
	}

	traceCPUIf.Writef("sgi %v %v=%#x", id, r, v)
	g.cpu.WriteSysReg(r, v)
	return nil
}

func iarFor(group InterruptGroup) cortexr.Register {
	if group == InterruptGroup0 {
		return cortexr.ICC_IAR0
	}
	return cortexr.ICC_IAR1
}

func eoirFor(group InterruptGroup) cortexr.Register {
	if group == InterruptGroup0 {
		return cortexr.ICC_EOIR0
	}
	return cortexr.ICC_EOIR1
}

// GetAndAcknowledgeInterrupt acknowledges the highest priority pending
// interrupt of group, raising the running priority. It returns false when
// nothing of that group is pending and signalled for this core.
func (g *GICv3) GetAndAcknowledgeInterrupt(group InterruptGroup) (IntID, bool) {
	id := IntID(iarINTID.Get(g.cpu.ReadSysReg(iarFor(group))))
	if !id.Valid() {
		return 0, false
	}
	if g.pairing != nil {
		g.pairing.acknowledged(id, group)
	}
	traceCPUIf.Writef("ack %v %v", id, group)
	return id, true
}

// EndInterrupt signals completion of id, which must be the most recently
// acknowledged interrupt still outstanding. Mismatched or unpaired calls are
// undefined at the hardware level and are not detected unless the driver was
// built WithPairingCheck.
func (g *GICv3) EndInterrupt(id IntID, group InterruptGroup) {
	if g.pairing != nil {
		g.pairing.ended(id, group)
	}
	g.cpu.WriteSysReg(eoirFor(group), iarINTID.Set(0, uint64(id)))
	traceCPUIf.Writef("eoi %v %v", id, group)
}

// HighestPendingInterrupt reads ICC_HPPIR1 without acknowledging.
func (g *GICv3) HighestPendingInterrupt() (IntID, bool) {
	id := IntID(iarINTID.Get(g.cpu.ReadSysReg(cortexr.ICC_HPPIR1)))
	if !id.Valid() {
		return 0, false
	}
	return id, true
}

// Outstanding returns how many acknowledged interrupts have not been ended.
// It is only tracked WithPairingCheck and returns -1 otherwise.
func (g *GICv3) Outstanding() int {
	if g.pairing == nil {
		return -1
	}
	return g.pairing.depth()
}
