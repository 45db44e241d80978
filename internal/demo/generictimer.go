package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/tinyrange/s32z2/internal/cortexr"
	"github.com/tinyrange/s32z2/internal/sim"
	"github.com/tinyrange/s32z2/internal/timer"
)

func init() {
	register(Program{
		Name:        "generic-timer",
		Description: "busy-wait on the physical and virtual timers",
		Run:         genericTimer,
	})
}

const (
	// spinCheck is how many polls pass between context checks in busy loops.
	spinCheck        = 4096
	progressThrottle = 100 * time.Millisecond
)

func genericTimer(ctx context.Context, env *Env) error {
	if _, ok := env.Board.Machine.Clock().(*sim.ManualClock); ok {
		return ErrClockStopped
	}
	out := env.Console

	cntfrq := uint32(env.Board.Core.ReadSysReg(cortexr.CNTFRQ))
	out.Println("cntfrq = %0.3f MHz", float64(cntfrq)/1_000_000.0)
	delayTicks := cntfrq * 2

	for _, t := range []struct {
		timer timer.GenericTimer
		name  string
	}{
		{env.Board.Physical, "physical"},
		{env.Board.Virtual, "virtual"},
	} {
		name := t.name
		out.Heading("Using %s timer ************************", name)

		out.Println("Print five, one per second...")
		for i := 0; i < 5; i++ {
			out.Println("i = %d", i)
			t.timer.DelayMs(1000)
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		now := t.timer.Counter()
		out.Println("%s is now: %d", name, now)
		out.Println("Waiting for %d %s ticks to count up...", delayTicks, name)
		t.timer.CounterCompareSet(now + uint64(delayTicks))
		t.timer.Enable(true)
		if err := spinUntilFired(ctx, env, t.timer, fmt.Sprintf("%s count up", name)); err != nil {
			return err
		}
		out.OK("Matched! %s count now %d", name, t.timer.Counter())

		out.Println("Waiting for %d %s ticks to count down...", delayTicks, name)
		t.timer.CountdownSet(delayTicks)
		if err := spinUntilFired(ctx, env, t.timer, fmt.Sprintf("%s count down", name)); err != nil {
			return err
		}
		out.OK("%s countdown hit zero! (and is now %d)", name, int32(t.timer.Countdown()))
	}
	return nil
}

// spinUntilFired polls t until it asserts its interrupt, drawing the
// remaining distance as a progress bar.
func spinUntilFired(ctx context.Context, env *Env, t timer.GenericTimer, desc string) error {
	total := t.Countdown()
	if total < 1 {
		total = 1
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(env.Console.Writer()),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetVisibility(env.Progress),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(progressThrottle),
	)
	defer bar.Exit()

	for n := 0; !t.InterruptStatus(); n++ {
		if n%spinCheck == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			left := t.Countdown()
			if left < 0 {
				left = 0
			}
			if err := bar.Set64(total - left); err != nil {
				return fmt.Errorf("progress: %w", err)
			}
		}
	}
	if err := bar.Finish(); err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	return nil
}
