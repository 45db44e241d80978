package demo

import (
	"context"
	"math"

	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/gic"
	"github.com/tinyrange/s32z2/internal/irq"
	"github.com/tinyrange/s32z2/internal/s32z2"
	"github.com/tinyrange/s32z2/internal/timer"
)

func init() {
	register(Program{Name: "gic", Description: "send an SGI to ourselves and take it", Run: gicProgram})
	register(Program{Name: "gic-timer", Description: "periodic virtual timer interrupts through the GIC", Run: gicTimerProgram})
}

const (
	sgiPriority   = 0x31
	priorityMask  = 0x80
	handlerGroup  = gic.InterruptGroup1
	selfTargetBit = 0b1
)

var sgiID = gic.MustSGI(3)

func dumpCPSR(env *Env) {
	env.Console.Println("CPSR: %v", cortexr.Cpsr(env.Board.Core.ReadSysReg(cortexr.CPSR)))
}

// setupGIC brings up the CPU interface of core 0, configures the SGI and
// installs a dispatcher as the IRQ vector.
func setupGIC(env *Env) (*irq.Dispatcher, error) {
	out := env.Console
	b := env.Board

	periph := cortexr.ImpCbar(b.Core.ReadSysReg(cortexr.IMP_CBAR)).PeriphBase()
	out.Println("Found PERIPHBASE 0x%08x", periph)
	out.Println("Creating GIC driver @ 0x%08x / 0x%08x", periph+b.Config.GICDOffset, periph+b.Config.GICROffset)

	out.Println("Calling gic.Setup(0)")
	if err := b.GIC.Setup(0); err != nil {
		return nil, err
	}
	b.GIC.SetPriorityMask(priorityMask)

	out.Println("Configure SGI...")
	if err := configure(b.GIC, sgiID, sgiPriority); err != nil {
		return nil, err
	}

	d := irq.New(b.GIC, handlerGroup)
	b.Core.SetIRQHandler(func() {
		out.IRQ("> IRQ")
		d.Trap()
		out.IRQ("< IRQ")
	})
	return d, nil
}

func configure(g *gic.GICv3, id gic.IntID, priority uint8) error {
	core := gic.OnCore(0)
	if err := g.SetInterruptPriority(id, core, priority); err != nil {
		return err
	}
	if err := g.SetGroup(id, core, gic.Group1NS); err != nil {
		return err
	}
	return g.EnableInterrupt(id, core, true)
}

func enableAndSend(env *Env) error {
	env.Console.Println("Enabling interrupts...")
	dumpCPSR(env)
	env.Board.Core.EnableInterrupts()
	dumpCPSR(env)

	env.Console.Println("Send SGI")
	return env.Board.GIC.SendSGI(sgiID, gic.SGITargetList{TargetList: selfTargetBit}, gic.SGICurrentGroup1)
}

func gicProgram(ctx context.Context, env *Env) error {
	d, err := setupGIC(env)
	if err != nil {
		return err
	}
	d.Handle(sgiID, func() {
		env.Console.IRQ("- IRQ handle %v", sgiID)
	})
	return enableAndSend(env)
}

func gicTimerProgram(ctx context.Context, env *Env) error {
	out := env.Console
	d, err := setupGIC(env)
	if err != nil {
		return err
	}

	vt := env.Board.Virtual
	d.Handle(sgiID, func() {
		out.IRQ("- IRQ handle %v", sgiID)
		out.IRQ("- SGI fired")
	})
	d.Handle(s32z2.VirtualTimerIntID, func() {
		out.IRQ("- IRQ handle %v", s32z2.VirtualTimerIntID)
		out.IRQ("- Timer fired - resetting")
		timer.Rearm(vt, vt.FrequencyHz())
	})

	out.Println("Configure Timer Interrupt...")
	if err := configure(env.Board.GIC, s32z2.VirtualTimerIntID, sgiPriority); err != nil {
		return err
	}
	vt.Enable(true)
	vt.InterruptMask(false)
	vt.CounterCompareSet(math.MaxUint64)

	if err := enableAndSend(env); err != nil {
		return err
	}
	vt.CountdownSet(vt.FrequencyHz())

	for count := 0; count < env.WakeUps; count++ {
		if err := env.Board.Core.WaitForInterrupt(ctx); err != nil {
			return err
		}
		out.Println("Main loop wake up %d", count)
	}
	return nil
}
