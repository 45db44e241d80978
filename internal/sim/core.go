package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/debug"
)

var (
	ErrInterruptStorm = errors.New("sim: interrupt still signalled after handler returned too many times")
	ErrNoWakeSource   = errors.New("sim: waiting for interrupt with nothing armed to wake the core")
	ErrNoVector       = errors.New("sim: exception taken with no handler installed")
)

const (
	// DefaultStormLimit is how many back-to-back IRQ entries a core allows
	// before deciding the handler is not clearing its source.
	DefaultStormLimit = 1024

	wallPollInterval = 100 * time.Microsecond

	midrCortexR52 = 0x411FD132
	sctlrReset    = 0x30C50838
)

var traceCore = debug.Source("sim/core")

// Core is one Cortex-R52 core. It implements cortexr.Processor so drivers
// and programs can run on the host against the modelled peripherals.
//
// Pending IRQs are taken at every system register access and whenever
// CPSR.I is cleared, which stands in for instruction boundaries.
type Core struct {
	index  int
	gic    *GIC
	timers *Timers
	clock  Clock

	mu         sync.Mutex
	cpsr       cortexr.Cpsr
	sctlr      cortexr.Sctlr
	vbar       uint64
	cbar       cortexr.ImpCbar
	periphRgn  uint64
	irq        func()
	svc        func(imm uint32)
	stormLimit int
	err        error

	irqEntries int
	svcEntries int
}

func newCore(index int, gic *GIC, clock Clock, periphBase uint64, stormLimit int) *Core {
	if stormLimit <= 0 {
		stormLimit = DefaultStormLimit
	}
	c := &Core{
		index:      index,
		gic:        gic,
		timers:     newTimers(clock),
		clock:      clock,
		cpsr:       cortexr.Cpsr(0).WithMode(cortexr.ModeSvc).WithIRQMasked(true) | 1<<6,
		sctlr:      cortexr.Sctlr(sctlrReset),
		cbar:       cortexr.ImpCbar(periphBase),
		stormLimit: stormLimit,
	}
	gic.Connect(index, PhysicalTimerIntID, c.timers.PhysicalOutput)
	gic.Connect(index, VirtualTimerIntID, c.timers.VirtualOutput)
	return c
}

// Index returns the core number, which is also MPIDR.Aff0.
func (c *Core) Index() int { return c.index }

// Timers returns the core's Generic Timer.
func (c *Core) Timers() *Timers { return c.timers }

// SetIRQHandler installs the IRQ exception entry.
func (c *Core) SetIRQHandler(fn func()) {
	c.mu.Lock()
	c.irq = fn
	c.mu.Unlock()
}

// SetSVCHandler installs the supervisor call entry.
func (c *Core) SetSVCHandler(fn func(imm uint32)) {
	c.mu.Lock()
	c.svc = fn
	c.mu.Unlock()
}

// Err returns the first fatal condition the core hit, such as an interrupt
// storm. Once set the core keeps IRQs masked.
func (c *Core) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// IRQEntries counts IRQ exceptions taken.
func (c *Core) IRQEntries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irqEntries
}

func (c *Core) fail(err error) {
	if c.err == nil {
		c.err = err
		traceCore.Writef("core=%d fatal: %v", c.index, err)
	}
	c.cpsr = c.cpsr.WithIRQMasked(true)
}

// takeInterrupts enters the IRQ handler while an interrupt is signalled and
// CPSR.I is clear. The handler runs with IRQs masked and in IRQ mode; CPSR
// is restored when it returns.
func (c *Core) takeInterrupts() {
	for n := 0; ; n++ {
		c.mu.Lock()
		if c.cpsr.IRQMasked() || !c.gic.IRQ(c.index) {
			c.mu.Unlock()
			return
		}
		if c.irq == nil {
			c.fail(fmt.Errorf("core %d: irq: %w", c.index, ErrNoVector))
			c.mu.Unlock()
			return
		}
		if n >= c.stormLimit {
			c.fail(fmt.Errorf("core %d: %d entries: %w", c.index, n, ErrInterruptStorm))
			c.mu.Unlock()
			return
		}
		saved := c.cpsr
		c.cpsr = saved.WithMode(cortexr.ModeIrq).WithIRQMasked(true)
		c.irqEntries++
		handler := c.irq
		c.mu.Unlock()

		handler()

		c.mu.Lock()
		if c.err == nil {
			c.cpsr = saved
		}
		c.mu.Unlock()
	}
}

func (c *Core) EnableInterrupts() {
	c.mu.Lock()
	if c.err == nil {
		c.cpsr = c.cpsr.WithIRQMasked(false)
	}
	c.mu.Unlock()
	c.takeInterrupts()
}

func (c *Core) DisableInterrupts() {
	c.mu.Lock()
	c.cpsr = c.cpsr.WithIRQMasked(true)
	c.mu.Unlock()
}

func (c *Core) InterruptsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.cpsr.IRQMasked()
}

var timerRegisters = map[cortexr.Register]TimerRegister{
	cortexr.CNTFRQ:    TimerCNTFRQ,
	cortexr.CNTPCT:    TimerCNTPCT,
	cortexr.CNTVCT:    TimerCNTVCT,
	cortexr.CNTVOFF:   TimerCNTVOFF,
	cortexr.CNTP_CTL:  TimerCNTPCTL,
	cortexr.CNTP_CVAL: TimerCNTPCVAL,
	cortexr.CNTP_TVAL: TimerCNTPTVAL,
	cortexr.CNTV_CTL:  TimerCNTVCTL,
	cortexr.CNTV_CVAL: TimerCNTVCVAL,
	cortexr.CNTV_TVAL: TimerCNTVTVAL,
}

var cpuRegisters = map[cortexr.Register]CPURegister{
	cortexr.ICC_PMR:     CPUPMR,
	cortexr.ICC_IAR0:    CPUIAR0,
	cortexr.ICC_IAR1:    CPUIAR1,
	cortexr.ICC_EOIR0:   CPUEOIR0,
	cortexr.ICC_EOIR1:   CPUEOIR1,
	cortexr.ICC_HPPIR1:  CPUHPPIR1,
	cortexr.ICC_RPR:     CPURPR,
	cortexr.ICC_BPR1:    CPUBPR1,
	cortexr.ICC_CTLR:    CPUCTLR,
	cortexr.ICC_SRE:     CPUSRE,
	cortexr.ICC_IGRPEN0: CPUIGRPEN0,
	cortexr.ICC_IGRPEN1: CPUIGRPEN1,
	cortexr.ICC_SGI0R:   CPUSGI0R,
	cortexr.ICC_SGI1R:   CPUSGI1R,
	cortexr.ICC_ASGI1R:  CPUASGI1R,
}

func (c *Core) ReadSysReg(r cortexr.Register) uint64 {
	v := c.read(r)
	c.takeInterrupts()
	return v
}

func (c *Core) WriteSysReg(r cortexr.Register, v uint64) {
	c.write(r, v)
	c.takeInterrupts()
}

func (c *Core) read(r cortexr.Register) uint64 {
	if tr, ok := timerRegisters[r]; ok {
		return c.timers.Read(tr)
	}
	if cr, ok := cpuRegisters[r]; ok {
		return c.gic.ReadCPU(c.index, cr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch r {
	case cortexr.MIDR:
		return midrCortexR52
	case cortexr.MPIDR:
		return uint64(cortexr.NewMpidr(0, 0, uint8(c.index)))
	case cortexr.CPSR:
		return uint64(c.cpsr)
	case cortexr.SCTLR:
		return uint64(c.sctlr)
	case cortexr.VBAR:
		return c.vbar
	case cortexr.IMP_CBAR:
		return uint64(c.cbar)
	case cortexr.IMP_PERIPHPREGIONR:
		return c.periphRgn
	}
	traceCore.Writef("core=%d read of unmodelled %v", c.index, r)
	return 0
}

func (c *Core) write(r cortexr.Register, v uint64) {
	if tr, ok := timerRegisters[r]; ok {
		c.timers.Write(tr, v)
		return
	}
	if cr, ok := cpuRegisters[r]; ok {
		c.gic.WriteCPU(c.index, cr, v)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch r {
	case cortexr.CPSR:
		c.cpsr = cortexr.Cpsr(v)
	case cortexr.SCTLR:
		c.sctlr = cortexr.Sctlr(v)
	case cortexr.VBAR:
		c.vbar = v &^ 0x1f
	case cortexr.IMP_PERIPHPREGIONR:
		c.periphRgn = v
	default:
		traceCore.Writef("core=%d write %#x to read-only or unmodelled %v", c.index, v, r)
	}
}

// SupervisorCall executes SVC #imm. The handler runs in Supervisor mode with
// IRQs masked and may issue further supervisor calls.
func (c *Core) SupervisorCall(imm uint32) error {
	c.mu.Lock()
	handler := c.svc
	if handler == nil {
		c.mu.Unlock()
		return fmt.Errorf("core %d: svc %#x: %w", c.index, imm, ErrNoVector)
	}
	saved := c.cpsr
	c.cpsr = saved.WithMode(cortexr.ModeSvc).WithIRQMasked(true)
	c.svcEntries++
	c.mu.Unlock()

	traceCore.Writef("core=%d svc %#x", c.index, imm)
	handler(imm)

	c.mu.Lock()
	c.cpsr = saved
	c.mu.Unlock()
	c.takeInterrupts()
	return nil
}

// Advance moves a manually driven clock forward and takes any interrupts
// that became due. It has no effect on a wall clock.
func (c *Core) Advance(ticks uint64) {
	if a, ok := c.clock.(Advancer); ok {
		a.Advance(ticks)
	}
	c.takeInterrupts()
}

func (c *Core) wakeable() bool {
	// WFI wakes on a signalled interrupt regardless of CPSR.I.
	return c.gic.IRQ(c.index) || c.gic.FIQ(c.index)
}

// WaitForInterrupt suspends the core until an interrupt is signalled, then
// takes it if IRQs are unmasked. A manually driven clock is advanced to the
// next timer deadline; with a wall clock the core sleeps until woken or ctx
// ends.
func (c *Core) WaitForInterrupt(ctx context.Context) error {
	for {
		if err := c.Err(); err != nil {
			return err
		}
		if c.wakeable() {
			c.takeInterrupts()
			return c.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if a, ok := c.clock.(Advancer); ok {
			deadline, armed := c.timers.NextDeadline()
			if !armed {
				return fmt.Errorf("core %d: %w", c.index, ErrNoWakeSource)
			}
			if now := a.Now(); deadline <= now {
				// Armed and due but not signalled: masked at the GIC.
				return fmt.Errorf("core %d: timer due at %d is not signalled: %w", c.index, deadline, ErrNoWakeSource)
			}
			a.AdvanceTo(deadline)
			traceCore.Writef("core=%d wfi advanced to %d", c.index, deadline)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wallPollInterval):
		}
	}
}
