package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/tinyrange/s32z2/internal/cortexr"
)

const (
	testGICD = 0x4780_0000
	testGICR = 0x4790_0000
	testFreq = 8_000_000
)

func newTestMachine(t *testing.T, cores int, clock Clock) *Machine {
	t.Helper()
	m, err := NewMachine(Config{
		Cores:      cores,
		PeriphBase: testGICD,
		GICDBase:   testGICD,
		GICRBase:   testGICR,
		SPILines:   64,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

// enablePrivate configures a banked interrupt of core directly through the
// bus, the way a driver would after setup.
func enablePrivate(m *Machine, core int, id uint32, priority uint8) {
	bus := m.Bus()
	frame := uint64(testGICR) + uint64(core)*gicrFrame
	bus.Write32(testGICD+gicdCtlr, 0x13)
	bus.Write32(frame+gicrWaker, 0)
	bus.Write32(frame+gicrSGI+gicdIgroupr, bus.Read32(frame+gicrSGI+gicdIgroupr)|1<<id)
	bus.Write32(frame+gicrSGI+gicdIsenabler, 1<<id)
	word := frame + gicrSGI + gicdIpriorityr + uint64(id)&^3
	shift := (id & 3) * 8
	bus.Write32(word, bus.Read32(word)&^(0xff<<shift)|uint32(priority)<<shift)

	c := m.Core(core)
	c.WriteSysReg(cortexr.ICC_IGRPEN1, 1)
	c.WriteSysReg(cortexr.ICC_PMR, 0xff)
}

func TestNestedAcknowledgeRestoresRunningPriority(t *testing.T) {
	m := newTestMachine(t, 1, NewManualClock(testFreq))
	c := m.Core(0)
	enablePrivate(m, 0, 1, 0x80)
	enablePrivate(m, 0, 2, 0x40)

	if rpr := c.ReadSysReg(cortexr.ICC_RPR); rpr != idleRPR {
		t.Fatalf("idle RPR = %#x, want %#x", rpr, idleRPR)
	}

	m.GIC().Pulse(0, 1)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != 1 {
		t.Fatalf("first IAR1 = %d, want 1", id)
	}
	if rpr := c.ReadSysReg(cortexr.ICC_RPR); rpr != 0x80 {
		t.Fatalf("RPR after first ack = %#x, want 0x80", rpr)
	}

	m.GIC().Pulse(0, 2)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != 2 {
		t.Fatalf("nested IAR1 = %d, want 2", id)
	}
	if rpr := c.ReadSysReg(cortexr.ICC_RPR); rpr != 0x40 {
		t.Fatalf("RPR after nested ack = %#x, want 0x40", rpr)
	}

	c.WriteSysReg(cortexr.ICC_EOIR1, 2)
	if rpr := c.ReadSysReg(cortexr.ICC_RPR); rpr != 0x80 {
		t.Fatalf("RPR after inner EOI = %#x, want 0x80", rpr)
	}
	c.WriteSysReg(cortexr.ICC_EOIR1, 1)
	if rpr := c.ReadSysReg(cortexr.ICC_RPR); rpr != idleRPR {
		t.Fatalf("RPR after outer EOI = %#x, want %#x", rpr, idleRPR)
	}
	if f := m.GIC().Faults(); f != 0 {
		t.Fatalf("faults = %d, want 0", f)
	}
}

func TestLowerPriorityDoesNotPreempt(t *testing.T) {
	m := newTestMachine(t, 1, NewManualClock(testFreq))
	c := m.Core(0)
	enablePrivate(m, 0, 1, 0x40)
	enablePrivate(m, 0, 2, 0x80)

	m.GIC().Pulse(0, 1)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != 1 {
		t.Fatalf("IAR1 = %d, want 1", id)
	}
	m.GIC().Pulse(0, 2)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != intidNone {
		t.Fatalf("IAR1 while 0x40 active = %d, want spurious", id)
	}
	if id := c.ReadSysReg(cortexr.ICC_HPPIR1); id != 2 {
		t.Fatalf("HPPIR1 = %d, want 2", id)
	}
	c.WriteSysReg(cortexr.ICC_EOIR1, 1)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != 2 {
		t.Fatalf("IAR1 after EOI = %d, want 2", id)
	}
}

func TestPriorityMaskAndTieBreak(t *testing.T) {
	m := newTestMachine(t, 1, NewManualClock(testFreq))
	c := m.Core(0)
	enablePrivate(m, 0, 5, 0x20)
	enablePrivate(m, 0, 3, 0x20)

	c.WriteSysReg(cortexr.ICC_PMR, 0x20)
	m.GIC().Pulse(0, 5)
	m.GIC().Pulse(0, 3)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != intidNone {
		t.Fatalf("IAR1 with priority == PMR = %d, want spurious", id)
	}

	c.WriteSysReg(cortexr.ICC_PMR, 0x21)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != 3 {
		t.Fatalf("IAR1 = %d, want lowest id 3 on equal priority", id)
	}
}

func TestOutOfOrderEOICountsFault(t *testing.T) {
	m := newTestMachine(t, 1, NewManualClock(testFreq))
	c := m.Core(0)
	c.WriteSysReg(cortexr.ICC_EOIR1, 7)
	if f := m.GIC().Faults(); f != 1 {
		t.Fatalf("faults = %d, want 1", f)
	}
}

func TestSGIGroupMustMatchGenerateRegister(t *testing.T) {
	m := newTestMachine(t, 2, NewManualClock(testFreq))
	enablePrivate(m, 1, 4, 0x10)
	sender := m.Core(0)

	// ICC_SGI0R only generates Group 0 SGIs; SGI 4 is Group 1 on core 1.
	sender.WriteSysReg(cortexr.ICC_SGI0R, 4<<24|1<<1)
	if m.GIC().IRQ(1) {
		t.Fatalf("group 0 generate register delivered a group 1 SGI")
	}

	sender.WriteSysReg(cortexr.ICC_SGI1R, 4<<24|1<<1)
	if !m.GIC().IRQ(1) {
		t.Fatalf("SGI 4 not signalled on core 1")
	}
	if m.GIC().IRQ(0) {
		t.Fatalf("SGI leaked to the sender")
	}
}

func TestNonSecureCoreIgnoresSecureGroup1(t *testing.T) {
	m, err := NewMachine(Config{
		Cores:    1,
		GICDBase: testGICD,
		GICRBase: testGICR,
		Security: true,
		Clock:    NewManualClock(testFreq),
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	c := m.Core(0)
	enablePrivate(m, 0, 1, 0x10)
	enablePrivate(m, 0, 2, 0x40)

	// SGI 1 becomes Group 1 Secure and outranks SGI 2.
	bus := m.Bus()
	sgi := uint64(testGICR) + gicrSGI
	bus.Write32(sgi+gicdIgroupr, bus.Read32(sgi+gicdIgroupr)&^(1<<1))
	bus.Write32(sgi+gicdIgrpmodr, 1<<1)
	bus.Write32(testGICD+gicdCtlr, 0x37)

	m.GIC().Pulse(0, 1)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != intidNone {
		t.Fatalf("IAR1 = %d with only a Group 1 Secure SGI pending, want %d", id, intidNone)
	}
	if m.GIC().IRQ(0) {
		t.Fatalf("Group 1 Secure SGI signalled as IRQ to the Non-secure core")
	}

	m.GIC().Pulse(0, 2)
	if id := c.ReadSysReg(cortexr.ICC_IAR1); id != 2 {
		t.Fatalf("IAR1 = %d, want the Group 1 Non-secure SGI 2", id)
	}
	c.WriteSysReg(cortexr.ICC_EOIR1, 2)

	if bus.Read32(sgi+gicdIspendr)&(1<<1) == 0 {
		t.Fatalf("Group 1 Secure SGI 1 no longer pending")
	}
}

func TestTimerRegisters(t *testing.T) {
	clock := NewManualClock(testFreq)
	m := newTestMachine(t, 1, clock)
	c := m.Core(0)

	if f := c.ReadSysReg(cortexr.CNTFRQ); f != testFreq {
		t.Fatalf("CNTFRQ = %d, want %d", f, testFreq)
	}

	clock.Advance(100)
	c.WriteSysReg(cortexr.CNTP_TVAL, 50)
	if cval := c.ReadSysReg(cortexr.CNTP_CVAL); cval != 150 {
		t.Fatalf("CVAL after TVAL write = %d, want 150", cval)
	}
	c.WriteSysReg(cortexr.CNTP_CTL, 1)
	if ctl := c.ReadSysReg(cortexr.CNTP_CTL); ctl&4 != 0 {
		t.Fatalf("ISTATUS set before the deadline")
	}
	clock.Advance(60)
	if ctl := c.ReadSysReg(cortexr.CNTP_CTL); ctl&4 == 0 {
		t.Fatalf("ISTATUS clear after the deadline")
	}
	if tval := int32(uint32(c.ReadSysReg(cortexr.CNTP_TVAL))); tval != -10 {
		t.Fatalf("TVAL = %d, want -10", tval)
	}
	if !c.Timers().PhysicalOutput() {
		t.Fatalf("physical output low with ENABLE and condition met")
	}
	c.WriteSysReg(cortexr.CNTP_CTL, 3)
	if c.Timers().PhysicalOutput() {
		t.Fatalf("physical output high while IMASK set")
	}

	c.WriteSysReg(cortexr.CNTVOFF, 10)
	if v := c.ReadSysReg(cortexr.CNTVCT); v != 150 {
		t.Fatalf("CNTVCT = %d, want 150", v)
	}
}

func TestWaitForInterruptJumpsToDeadline(t *testing.T) {
	clock := NewManualClock(testFreq)
	m := newTestMachine(t, 1, clock)
	c := m.Core(0)
	enablePrivate(m, 0, VirtualTimerIntID, 0x20)

	var taken int
	c.SetIRQHandler(func() {
		id := c.ReadSysReg(cortexr.ICC_IAR1)
		taken++
		c.WriteSysReg(cortexr.CNTV_CTL, 0)
		c.WriteSysReg(cortexr.ICC_EOIR1, id)
	})
	c.WriteSysReg(cortexr.CNTV_CVAL, 1000)
	c.WriteSysReg(cortexr.CNTV_CTL, 1)
	c.EnableInterrupts()

	if err := c.WaitForInterrupt(context.Background()); err != nil {
		t.Fatalf("WaitForInterrupt: %v", err)
	}
	if taken != 1 {
		t.Fatalf("handler ran %d times, want 1", taken)
	}
	if now := clock.Now(); now != 1000 {
		t.Fatalf("clock = %d, want 1000", now)
	}

	if err := c.WaitForInterrupt(context.Background()); !errors.Is(err, ErrNoWakeSource) {
		t.Fatalf("WaitForInterrupt with nothing armed = %v, want ErrNoWakeSource", err)
	}
}

func TestInterruptStorm(t *testing.T) {
	m, err := NewMachine(Config{
		Cores:      1,
		GICDBase:   testGICD,
		GICRBase:   testGICR,
		Clock:      NewManualClock(testFreq),
		StormLimit: 8,
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	c := m.Core(0)
	enablePrivate(m, 0, PhysicalTimerIntID, 0x20)

	// A handler that acknowledges and ends without clearing the level.
	c.SetIRQHandler(func() {
		id := c.ReadSysReg(cortexr.ICC_IAR1)
		c.WriteSysReg(cortexr.ICC_EOIR1, id)
	})
	c.WriteSysReg(cortexr.CNTP_CVAL, 0)
	c.WriteSysReg(cortexr.CNTP_CTL, 1)
	c.EnableInterrupts()

	if err := c.Err(); !errors.Is(err, ErrInterruptStorm) {
		t.Fatalf("Err = %v, want ErrInterruptStorm", err)
	}
	if c.InterruptsEnabled() {
		t.Fatalf("IRQs still enabled after a storm")
	}
}

func TestSupervisorCallNests(t *testing.T) {
	m := newTestMachine(t, 1, NewManualClock(testFreq))
	c := m.Core(0)

	if err := c.SupervisorCall(1); !errors.Is(err, ErrNoVector) {
		t.Fatalf("SupervisorCall without handler = %v, want ErrNoVector", err)
	}

	var calls []uint32
	c.SetSVCHandler(func(imm uint32) {
		calls = append(calls, imm)
		if mode := cortexr.Cpsr(c.ReadSysReg(cortexr.CPSR)).Mode(); mode != cortexr.ModeSvc {
			t.Errorf("handler mode = %v, want Svc", mode)
		}
		if imm == 0xABCDEF {
			if err := c.SupervisorCall(0x456789); err != nil {
				t.Errorf("nested call: %v", err)
			}
		}
	})
	if err := c.SupervisorCall(0xABCDEF); err != nil {
		t.Fatalf("SupervisorCall: %v", err)
	}
	if len(calls) != 2 || calls[0] != 0xABCDEF || calls[1] != 0x456789 {
		t.Fatalf("calls = %#x", calls)
	}
}

func TestStepClockAdvancesOnRead(t *testing.T) {
	c := NewStepClock(testFreq, 10)
	a, b := c.Now(), c.Now()
	if b-a != 10 {
		t.Fatalf("step = %d, want 10", b-a)
	}
	c.AdvanceTo(5)
	if n := c.Now(); n != 20 {
		t.Fatalf("AdvanceTo moved the clock backwards: %d", n)
	}
}

func TestUnmappedAccessFaults(t *testing.T) {
	m := newTestMachine(t, 1, NewManualClock(testFreq))
	defer func() {
		if recover() == nil {
			t.Fatalf("read of an unmapped address did not fault")
		}
	}()
	m.Bus().Read32(0x1000)
}
