package gic

import (
	"errors"
	"testing"

	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/mmio"
	"github.com/tinyrange/s32z2/internal/sim"
)

const (
	testGICD = 0x4780_0000
	testGICR = 0x4790_0000
)

func newTestMachine(t *testing.T, cores int, security bool) *sim.Machine {
	t.Helper()
	m, err := sim.NewMachine(sim.Config{
		Cores:    cores,
		GICDBase: testGICD,
		GICRBase: testGICR,
		SPILines: 64,
		Security: security,
		Clock:    sim.NewManualClock(8_000_000),
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func newTestGIC(t *testing.T, cores int, opts ...Option) (*GICv3, *sim.Machine) {
	t.Helper()
	m := newTestMachine(t, cores, false)
	g, err := New(m.Bus(), testGICD, testGICR, cores, m.Core(0), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(g.Close)
	if err := g.Setup(0); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return g, m
}

func configureSGI(t *testing.T, g *GICv3, id IntID, priority uint8) {
	t.Helper()
	if err := g.SetInterruptPriority(id, OnCore(0), priority); err != nil {
		t.Fatalf("SetInterruptPriority(%v): %v", id, err)
	}
	if err := g.SetGroup(id, OnCore(0), Group1NS); err != nil {
		t.Fatalf("SetGroup(%v): %v", id, err)
	}
	if err := g.EnableInterrupt(id, OnCore(0), true); err != nil {
		t.Fatalf("EnableInterrupt(%v): %v", id, err)
	}
}

func TestNewRejectsAliasedWindow(t *testing.T) {
	m := newTestMachine(t, 1, false)
	g, err := New(m.Bus(), testGICD, testGICR, 1, m.Core(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := New(m.Bus(), testGICD, testGICR, 1, m.Core(0)); !errors.Is(err, mmio.ErrAliased) {
		t.Fatalf("second New = %v, want ErrAliased", err)
	}

	g.Close()
	g2, err := New(m.Bus(), testGICD, testGICR, 1, m.Core(0))
	if err != nil {
		t.Fatalf("New after Close: %v", err)
	}
	g2.Close()
}

func TestNewRejectsBadArguments(t *testing.T) {
	m := newTestMachine(t, 1, false)
	if _, err := New(m.Bus(), testGICD, testGICR, 0, m.Core(0)); !errors.Is(err, ErrNoCores) {
		t.Fatalf("New with zero cores = %v, want ErrNoCores", err)
	}
	if _, err := New(m.Bus(), testGICD, testGICR, 1, nil); err == nil {
		t.Fatalf("New with nil cpu succeeded")
	}
}

func TestProbe(t *testing.T) {
	m := newTestMachine(t, 2, false)
	info, err := Probe(m.Bus(), testGICD, testGICR, 2)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.ArchRev != 3 || info.CPUCount != 2 || info.MaxIntID != 95 || info.SecurityExtensions {
		t.Fatalf("Probe = %+v", info)
	}
	if len(info.Frames) != 2 || info.Frames[0] != 0 || info.Frames[1] != RedistributorStride {
		t.Fatalf("Frames = %#x", info.Frames)
	}

	// The windows are free again once Probe returns.
	g, err := New(m.Bus(), testGICD, testGICR, 2, m.Core(0))
	if err != nil {
		t.Fatalf("New after Probe: %v", err)
	}
	g.Close()

	if _, err := Probe(m.Bus(), testGICD, testGICR, 0); !errors.Is(err, ErrNoCores) {
		t.Fatalf("Probe with no cores = %v, want ErrNoCores", err)
	}}

func TestNewRejectsNonGICv3(t *testing.T) {
	b := mmio.NewBuilder()
	if err := b.WithRegion("gicd", testGICD, DistributorSize, mmio.NewMemory(testGICD, DistributorSize)); err != nil {
		t.Fatalf("WithRegion: %v", err)
	}
	if err := b.WithRegion("gicr", testGICR, RedistributorStride, mmio.NewMemory(testGICR, RedistributorStride)); err != nil {
		t.Fatalf("WithRegion: %v", err)
	}
	m := newTestMachine(t, 1, false)
	if _, err := New(b.Build(), testGICD, testGICR, 1, m.Core(0)); !errors.Is(err, ErrNotGICv3) {
		t.Fatalf("New on blank memory = %v, want ErrNotGICv3", err)
	}
}

func TestSetupEnablesCPUInterface(t *testing.T) {
	g, m := newTestGIC(t, 1)
	c := m.Core(0)

	if c.ReadSysReg(cortexr.ICC_SRE)&1 == 0 {
		t.Fatalf("ICC_SRE.SRE not set")
	}
	if c.ReadSysReg(cortexr.ICC_IGRPEN1)&1 == 0 {
		t.Fatalf("ICC_IGRPEN1 not set")
	}
	if waker := m.Bus().Read32(testGICR + gicrWaker); waker != 0 {
		t.Fatalf("GICR_WAKER = %#x, want 0", waker)
	}
	if g.SecurityExtensions() {
		t.Fatalf("security extensions reported on a single security state GIC")
	}
	if g.MaxIntID() != 95 {
		t.Fatalf("MaxIntID = %d, want 95", g.MaxIntID())
	}
	if err := g.Setup(1); !errors.Is(err, ErrCoreOutOfRange) {
		t.Fatalf("Setup(1) = %v, want ErrCoreOutOfRange", err)
	}
}

func TestConfigErrors(t *testing.T) {
	g, _ := newTestGIC(t, 2)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"ppi shared", func() error { return g.SetInterruptPriority(MustPPI(0), Shared, 0x10) }, ErrCoreRequired},
		{"sgi shared", func() error { return g.EnableInterrupt(MustSGI(1), Shared, true) }, ErrCoreRequired},
		{"spi on core", func() error { return g.EnableInterrupt(MustSPI(0), OnCore(0), true) }, ErrCoreNotApplicable},
		{"core out of range", func() error { return g.SetGroup(MustSGI(1), OnCore(2), Group1NS) }, ErrCoreOutOfRange},
		{"negative core", func() error { return g.SetGroup(MustSGI(1), OnCore(-1), Group1NS) }, ErrCoreOutOfRange},
		{"special id", func() error { return g.SetInterruptPriority(SpecialNone, Shared, 0) }, ErrInvalidIntID},
		{"spi not implemented", func() error { return g.EnableInterrupt(MustSPI(64), Shared, true) }, ErrInvalidIntID},
		{"group1s without security", func() error { return g.SetGroup(MustSGI(1), OnCore(0), Group1S) }, ErrGroupUnavailable},
		{"sgi trigger", func() error { return g.SetTrigger(MustSGI(1), OnCore(0), TriggerLevel) }, ErrTriggerFixed},
		{"route ppi", func() error { return g.SetRoute(MustPPI(1), cortexr.NewMpidr(0, 0, 0)) }, ErrCoreRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("err %T is not a *ConfigError", err)
			}
			if cerr.Op == "" {
				t.Fatalf("ConfigError without an operation")
			}
		})
	}

	if err := g.SetInterruptPriority(MustSPI(63), Shared, 0x10); err != nil {
		t.Fatalf("last implemented SPI rejected: %v", err)
	}
}

func TestSendSGIToSelf(t *testing.T) {
	g, _ := newTestGIC(t, 1)
	sgi3 := MustSGI(3)
	configureSGI(t, g, sgi3, 0x31)
	g.SetPriorityMask(0x80)

	if g.PriorityMask() != 0x80 {
		t.Fatalf("PriorityMask = %#x, want 0x80", g.PriorityMask())
	}
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("acknowledged an interrupt before sending")
	}

	if err := g.SendSGI(sgi3, SGITargetSelf{}, SGICurrentGroup1); err != nil {
		t.Fatalf("SendSGI: %v", err)
	}
	if id, ok := g.HighestPendingInterrupt(); !ok || id != sgi3 {
		t.Fatalf("HighestPendingInterrupt = %v %v, want %v", id, ok, sgi3)
	}
	id, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1)
	if !ok || id != sgi3 {
		t.Fatalf("acknowledge = %v %v, want %v", id, ok, sgi3)
	}
	if rpr := g.RunningPriority(); rpr != 0x31 {
		t.Fatalf("RunningPriority = %#x, want 0x31", rpr)
	}
	g.EndInterrupt(id, InterruptGroup1)
	if rpr := g.RunningPriority(); rpr != 0xff {
		t.Fatalf("RunningPriority after end = %#x, want 0xff", rpr)
	}
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("SGI acknowledged twice")
	}
}

func TestPriorityMaskBlocksSignalling(t *testing.T) {
	g, _ := newTestGIC(t, 1)
	sgi := MustSGI(5)
	configureSGI(t, g, sgi, 0x90)
	g.SetPriorityMask(0x80)

	if err := g.SendSGI(sgi, SGITargetSelf{}, SGICurrentGroup1); err != nil {
		t.Fatalf("SendSGI: %v", err)
	}
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("interrupt below the priority mask was acknowledged")
	}
	if id, ok := g.HighestPendingInterrupt(); !ok || id != sgi {
		t.Fatalf("HighestPendingInterrupt = %v %v, want %v", id, ok, sgi)
	}

	g.SetPriorityMask(0xa0)
	if id, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); !ok || id != sgi {
		t.Fatalf("acknowledge after raising the mask = %v %v", id, ok)
	}
	g.EndInterrupt(sgi, InterruptGroup1)
}

func TestDisabledInterruptIsNotAcknowledged(t *testing.T) {
	g, _ := newTestGIC(t, 1)
	sgi := MustSGI(2)
	configureSGI(t, g, sgi, 0x10)
	g.SetPriorityMask(0xff)

	if err := g.EnableInterrupt(sgi, OnCore(0), false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := g.SendSGI(sgi, SGITargetSelf{}, SGICurrentGroup1); err != nil {
		t.Fatalf("SendSGI: %v", err)
	}
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("disabled interrupt acknowledged")
	}
	if err := g.EnableInterrupt(sgi, OnCore(0), true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if id, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); !ok || id != sgi {
		t.Fatalf("pending interrupt lost across disable: %v %v", id, ok)
	}
	g.EndInterrupt(sgi, InterruptGroup1)
}

func TestNestedAcknowledgeIsLIFO(t *testing.T) {
	for n := 1; n <= 4; n++ {
		g, _ := newTestGIC(t, 1, WithPairingCheck(func(err error) {
			t.Errorf("pairing check: %v", err)
		}))
		g.SetPriorityMask(0xff)
		before := g.RunningPriority()

		var ids []IntID
		for i := 0; i < n; i++ {
			id := MustSGI(uint32(i))
			prio := uint8(0xc0 - 0x20*i)
			configureSGI(t, g, id, prio)
			if err := g.SendSGI(id, SGITargetSelf{}, SGICurrentGroup1); err != nil {
				t.Fatalf("SendSGI: %v", err)
			}
			got, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1)
			if !ok || got != id {
				t.Fatalf("n=%d: acknowledge %d = %v %v, want %v", n, i, got, ok, id)
			}
			if rpr := g.RunningPriority(); rpr != prio {
				t.Fatalf("n=%d: RunningPriority = %#x, want %#x", n, rpr, prio)
			}
			ids = append(ids, got)
		}
		if g.Outstanding() != n {
			t.Fatalf("Outstanding = %d, want %d", g.Outstanding(), n)
		}
		for i := len(ids) - 1; i >= 0; i-- {
			g.EndInterrupt(ids[i], InterruptGroup1)
		}
		if rpr := g.RunningPriority(); rpr != before {
			t.Fatalf("n=%d: RunningPriority = %#x, want %#x", n, rpr, before)
		}
		g.Close()
	}
}

func TestPairingCheckReportsMismatch(t *testing.T) {
	var reported []error
	g, _ := newTestGIC(t, 1, WithPairingCheck(func(err error) {
		reported = append(reported, err)
	}))
	g.SetPriorityMask(0xff)

	g.EndInterrupt(MustSGI(1), InterruptGroup1)
	if len(reported) != 1 || !errors.Is(reported[0], ErrUnpairedEnd) {
		t.Fatalf("reported = %v, want ErrUnpairedEnd", reported)
	}

	configureSGI(t, g, MustSGI(1), 0x80)
	configureSGI(t, g, MustSGI(2), 0x40)
	g.SendSGI(MustSGI(1), SGITargetSelf{}, SGICurrentGroup1)
	g.GetAndAcknowledgeInterrupt(InterruptGroup1)
	g.SendSGI(MustSGI(2), SGITargetSelf{}, SGICurrentGroup1)
	g.GetAndAcknowledgeInterrupt(InterruptGroup1)

	g.EndInterrupt(MustSGI(1), InterruptGroup1)
	if len(reported) != 2 || !errors.Is(reported[1], ErrOutOfOrderEnd) {
		t.Fatalf("reported = %v, want ErrOutOfOrderEnd", reported)
	}
	if g.Outstanding() != 1 {
		t.Fatalf("Outstanding = %d, want 1", g.Outstanding())
	}
}

func TestSendSGIErrors(t *testing.T) {
	g, _ := newTestGIC(t, 1)
	if err := g.SendSGI(MustPPI(0), SGITargetSelf{}, SGICurrentGroup1); !errors.Is(err, ErrNotSGI) {
		t.Fatalf("SendSGI(PPI) = %v, want ErrNotSGI", err)
	}
	if err := g.SendSGI(MustSGI(0), nil, SGICurrentGroup1); err == nil {
		t.Fatalf("SendSGI with nil target succeeded")
	}
}

func TestSendSGIToOtherCore(t *testing.T) {
	g, m := newTestGIC(t, 2)
	other := m.Core(1)
	if err := g.Setup(1); err != nil {
		t.Fatalf("Setup(1): %v", err)
	}
	other.WriteSysReg(cortexr.ICC_IGRPEN1, 1)
	other.WriteSysReg(cortexr.ICC_PMR, 0xff)
	g.SetPriorityMask(0xff)

	sgi := MustSGI(7)
	for _, core := range []Core{OnCore(0), OnCore(1)} {
		if err := g.SetInterruptPriority(sgi, core, 0x20); err != nil {
			t.Fatalf("priority: %v", err)
		}
		if err := g.EnableInterrupt(sgi, core, true); err != nil {
			t.Fatalf("enable: %v", err)
		}
	}
	if err := g.SendSGI(sgi, SGITargetList{TargetList: 1 << 1}, SGICurrentGroup1); err != nil {
		t.Fatalf("SendSGI: %v", err)
	}
	if !m.GIC().IRQ(1) {
		t.Fatalf("SGI not signalled on core 1")
	}
	if m.GIC().IRQ(0) {
		t.Fatalf("SGI signalled on the sender")
	}

	if err := g.SendSGI(sgi, SGITargetAllOther{}, SGICurrentGroup1); err != nil {
		t.Fatalf("SendSGI all other: %v", err)
	}
	if m.GIC().IRQ(0) {
		t.Fatalf("all-other SGI signalled on the sender")
	}
}

func TestSPIRoutingAndTrigger(t *testing.T) {
	g, m := newTestGIC(t, 1)
	g.SetPriorityMask(0xff)
	spi := MustSPI(10)

	if err := g.SetRoute(spi, cortexr.NewMpidr(0, 0, 0)); err != nil {
		t.Fatalf("SetRoute: %v", err)
	}
	if err := g.SetInterruptPriority(spi, Shared, 0x50); err != nil {
		t.Fatalf("SetInterruptPriority: %v", err)
	}
	if err := g.SetGroup(spi, Shared, Group1NS); err != nil {
		t.Fatalf("SetGroup: %v", err)
	}
	if err := g.EnableInterrupt(spi, Shared, true); err != nil {
		t.Fatalf("EnableInterrupt: %v", err)
	}

	// Level: stays pending while the input is high.
	m.GIC().SetLevel(0, uint32(spi), true)
	id, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1)
	if !ok || id != spi {
		t.Fatalf("acknowledge level SPI = %v %v", id, ok)
	}
	g.EndInterrupt(id, InterruptGroup1)
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); !ok {
		t.Fatalf("level SPI not pending again while the input is high")
	}
	g.EndInterrupt(spi, InterruptGroup1)
	m.GIC().SetLevel(0, uint32(spi), false)

	// Edge: software pending is consumed by the acknowledge.
	if err := g.SetTrigger(spi, Shared, TriggerEdge); err != nil {
		t.Fatalf("SetTrigger: %v", err)
	}
	if err := g.SetPending(spi, Shared, true); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	if id, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); !ok || id != spi {
		t.Fatalf("acknowledge edge SPI = %v %v", id, ok)
	}
	g.EndInterrupt(spi, InterruptGroup1)
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("edge SPI acknowledged twice")
	}

	// Routed elsewhere: not visible on core 0.
	if err := g.SetRoute(spi, cortexr.NewMpidr(0, 0, 3)); err != nil {
		t.Fatalf("SetRoute: %v", err)
	}
	g.SetPending(spi, Shared, true)
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("SPI routed to another core acknowledged on core 0")
	}
}

func TestSecureGroups(t *testing.T) {
	m := newTestMachine(t, 1, true)
	g, err := New(m.Bus(), testGICD, testGICR, 1, m.Core(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer g.Close()
	if !g.SecurityExtensions() {
		t.Fatalf("security extensions not detected")
	}
	if err := g.Setup(0); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := g.SetGroup(MustSGI(1), OnCore(0), Group1S); err != nil {
		t.Fatalf("SetGroup(Group1S): %v", err)
	}
	g.SetPriorityMask(0xff)
	g.EnableInterrupt(MustSGI(1), OnCore(0), true)

	// Group 1 Secure is not generated by ICC_SGI1R from the Non-secure side.
	g.SendSGI(MustSGI(1), SGITargetSelf{}, SGICurrentGroup1)
	if _, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("Group1S SGI generated through ICC_SGI1R")
	}
	g.SendSGI(MustSGI(1), SGITargetSelf{}, SGIOtherGroup1)
	if m.Bus().Read32(testGICR+gicrIspendr0)&(1<<1) == 0 {
		t.Fatalf("Group1S SGI through ICC_ASGI1R not pending")
	}
	// The core is Non-secure: Group 1 Secure is not acknowledged through IAR1.
	if id, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); ok {
		t.Fatalf("Group1S SGI acknowledged through IAR1 as %v", id)
	}

	configureSGI(t, g, MustSGI(2), 0x40)
	g.SendSGI(MustSGI(2), SGITargetSelf{}, SGICurrentGroup1)
	if id, ok := g.GetAndAcknowledgeInterrupt(InterruptGroup1); !ok || id != MustSGI(2) {
		t.Fatalf("Group1NS SGI = %v %v, want SGI 2", id, ok)
	}
	g.EndInterrupt(MustSGI(2), InterruptGroup1)
}
