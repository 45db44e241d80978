package demo

import (
	"context"
	"fmt"

	"github.com/tinyrange/s32z2/internal/cortexr"
)

func init() {
	register(Program{Name: "hello", Description: "print a greeting, then panic", Run: hello})
	register(Program{Name: "registers", Description: "dump identification and control registers", Run: registers})
	register(Program{Name: "svc", Description: "nested supervisor calls", Run: svc})
}

func hello(ctx context.Context, env *Env) error {
	x := 1.0
	y := x * 2.0
	env.Console.Println("Hello, this is semihosting! x = %0.3f, y = %0.3f", x, y)
	return fmt.Errorf("%w: I am an example panic", ErrExamplePanic)
}

func registers(ctx context.Context, env *Env) error {
	cpu := env.Board.Core
	read := func(r cortexr.Register) uint64 { return cpu.ReadSysReg(r) }

	env.Console.Fields(
		[2]string{"MIDR", cortexr.Midr(read(cortexr.MIDR)).String()},
		[2]string{"CPSR", cortexr.Cpsr(read(cortexr.CPSR)).String()},
		[2]string{"IMP_CBAR", cortexr.ImpCbar(read(cortexr.IMP_CBAR)).String()},
		[2]string{"VBAR", fmt.Sprintf("Vbar(0x%08x)", read(cortexr.VBAR))},
		[2]string{"MPIDR", cortexr.Mpidr(read(cortexr.MPIDR)).String()},
	)

	// SetupCore has already turned these on; start from reset to show the
	// change.
	cpu.WriteSysReg(cortexr.SCTLR, uint64(cortexr.Sctlr(read(cortexr.SCTLR)).WithDCache(false).WithICache(false).WithBranchPredict(false)))
	env.Console.Println("%v before setting C, I and Z", cortexr.Sctlr(read(cortexr.SCTLR)))
	cortexr.ModifySysReg(cpu, cortexr.SCTLR, func(v uint64) uint64 {
		return uint64(cortexr.Sctlr(v).WithDCache(true).WithICache(true).WithBranchPredict(true))
	})
	env.Console.Println("%v after", cortexr.Sctlr(read(cortexr.SCTLR)))
	return nil
}

func svc(ctx context.Context, env *Env) error {
	core := env.Board.Core
	x := 1
	y := x + 1
	z := float64(y) * 1.5
	env.Console.Println("x = %d, y = %d, z = %0.3f", x, y, z)

	var nested error
	core.SetSVCHandler(func(arg uint32) {
		env.Console.Println("In SupervisorCall handler, with arg=%#06x", arg)
		if arg == 0xABCDEF {
			nested = core.SupervisorCall(0x456789)
		}
	})
	if err := core.SupervisorCall(0xABCDEF); err != nil {
		return err
	}
	if nested != nil {
		return nested
	}

	env.Console.Println("x = %d, y = %d, z = %0.3f", x, y, z)
	return fmt.Errorf("%w: I am an example panic", ErrExamplePanic)
}
