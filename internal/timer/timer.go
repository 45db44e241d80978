// Package timer drives the Cortex-R52 Generic Timer through its system
// registers. Each core has a physical and a virtual timer; both compare a
// 64-bit counter against a compare value and raise their PPI while
// enabled, unmasked and the counter has reached the compare value.
package timer

import (
	"time"

	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/debug"
	"github.com/tinyrange/s32z2/internal/reg"
)

var (
	ctlEnable  = reg.Bit(0)
	ctlIMask   = reg.Bit(1)
	ctlIStatus = reg.Bit(2)
)

var trace = debug.Source("timer")

// GenericTimer is the operation set shared by the physical and virtual
// timers.
type GenericTimer interface {
	// Counter returns the current count.
	Counter() uint64
	// CounterCompare returns the compare value.
	CounterCompare() uint64
	// CounterCompareSet sets the compare value.
	CounterCompareSet(v uint64)
	// CountdownSet sets the compare value to Counter()+ticks.
	CountdownSet(ticks uint32)
	// Countdown returns the signed distance from the counter to the
	// compare value. It is negative once the compare value has passed.
	Countdown() int64
	// Enable turns the timer on or off.
	Enable(on bool)
	Enabled() bool
	// InterruptMask masks or unmasks the timer's interrupt output.
	InterruptMask(masked bool)
	InterruptMasked() bool
	// InterruptStatus reports whether the timer is asserting its interrupt:
	// enabled, unmasked and the counter at or past the compare value.
	InterruptStatus() bool
	// FrequencyHz returns the counter frequency from CNTFRQ.
	FrequencyHz() uint32
	// DelayMs busy-waits for ms milliseconds on this timer's counter.
	DelayMs(ms uint32)
}

type registers struct {
	counter cortexr.Register
	ctl     cortexr.Register
	cval    cortexr.Register
	tval    cortexr.Register
}

// Timer is one Generic Timer instance of the calling core.
type Timer struct {
	cpu  cortexr.SystemRegisters
	regs registers
	name string
}

var _ GenericTimer = (*Timer)(nil)

// NewPhysical returns the EL1 physical timer (CNTP_*, counting CNTPCT).
func NewPhysical(cpu cortexr.SystemRegisters) *Timer {
	return &Timer{
		cpu:  cpu,
		name: "physical",
		regs: registers{
			counter: cortexr.CNTPCT,
			ctl:     cortexr.CNTP_CTL,
			cval:    cortexr.CNTP_CVAL,
			tval:    cortexr.CNTP_TVAL,
		},
	}
}

// NewVirtual returns the EL1 virtual timer (CNTV_*, counting CNTVCT).
func NewVirtual(cpu cortexr.SystemRegisters) *Timer {
	return &Timer{
		cpu:  cpu,
		name: "virtual",
		regs: registers{
			counter: cortexr.CNTVCT,
			ctl:     cortexr.CNTV_CTL,
			cval:    cortexr.CNTV_CVAL,
			tval:    cortexr.CNTV_TVAL,
		},
	}
}

func (t *Timer) String() string { return t.name + " timer" }

func (t *Timer) Counter() uint64 { return t.cpu.ReadSysReg(t.regs.counter) }

func (t *Timer) CounterCompare() uint64 { return t.cpu.ReadSysReg(t.regs.cval) }

func (t *Timer) CounterCompareSet(v uint64) {
	t.cpu.WriteSysReg(t.regs.cval, v)
	trace.Writef("%s cval=%d", t.name, v)
}

func (t *Timer) CountdownSet(ticks uint32) {
	t.CounterCompareSet(t.Counter() + uint64(ticks))
}

func (t *Timer) Countdown() int64 {
	return int64(t.CounterCompare() - t.Counter())
}

func (t *Timer) ctl() uint32 { return uint32(t.cpu.ReadSysReg(t.regs.ctl)) }

func (t *Timer) modifyCtl(f reg.Field, on bool) {
	v := t.ctl()
	v = ctlIStatus.SetBool32(v, false)
	v = f.SetBool32(v, on)
	t.cpu.WriteSysReg(t.regs.ctl, uint64(v))
	trace.Writef("%s ctl=%#x", t.name, v)
}

func (t *Timer) Enable(on bool) { t.modifyCtl(ctlEnable, on) }

func (t *Timer) Enabled() bool { return ctlEnable.IsSet32(t.ctl()) }

func (t *Timer) InterruptMask(masked bool) { t.modifyCtl(ctlIMask, masked) }

func (t *Timer) InterruptMasked() bool { return ctlIMask.IsSet32(t.ctl()) }

func (t *Timer) InterruptStatus() bool {
	v := t.ctl()
	return ctlEnable.IsSet32(v) && !ctlIMask.IsSet32(v) && ctlIStatus.IsSet32(v)
}

func (t *Timer) FrequencyHz() uint32 { return uint32(t.cpu.ReadSysReg(cortexr.CNTFRQ)) }

func (t *Timer) DelayMs(ms uint32) {
	ticks := uint64(t.FrequencyHz()) * uint64(ms) / 1000
	start := t.Counter()
	for t.Counter()-start < ticks {
	}
}

// Rearm moves the compare value period ticks past the previous one, so a
// periodic handler keeps an exact cadence however late it runs. A handler
// more than a period late leaves the compare value in the past and the
// interrupt fires again at once until the missed periods are caught up.
// It is the mandatory bottom half of a timer interrupt: without it the level
// stays asserted and the interrupt fires again as soon as it is ended.
func Rearm(t GenericTimer, period uint32) {
	t.CounterCompareSet(t.CounterCompare() + uint64(period))
}

// Ticks converts d to counter ticks at t's frequency.
func Ticks(t GenericTimer, d time.Duration) uint64 {
	freq := uint64(t.FrequencyHz())
	sec := uint64(d / time.Second)
	frac := uint64(d % time.Second)
	return sec*freq + frac*freq/uint64(time.Second)
}
