// Package demo holds the example programs for the S32Z2 drivers. Each one
// runs on the first core of a Board after the usual core set-up.
package demo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tinyrange/s32z2/internal/s32z2"
)

var (
	// ErrExamplePanic is returned by programs that end the way a bare-metal
	// example does: by panicking on purpose.
	ErrExamplePanic   = errors.New("demo: example panic")
	ErrUnknownProgram = errors.New("demo: unknown program")
	ErrClockStopped   = errors.New("demo: program busy-waits and needs a step or wall clock")
)

// Env is what a program runs against.
type Env struct {
	Board   *s32z2.Board
	Console *Console

	// Progress shows progress bars while busy-waiting.
	Progress bool
	// WakeUps bounds the main loop of programs that wait for interrupts
	// forever on hardware.
	WakeUps int
}

// Program is one example.
type Program struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) error
}

var programs = map[string]Program{}

func register(p Program) {
	programs[p.Name] = p
}

// Programs lists the examples by name.
func Programs() []Program {
	var out []Program
	for _, p := range programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds an example by name.
func Lookup(name string) (Program, error) {
	p, ok := programs[name]
	if !ok {
		return Program{}, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
	}
	return p, nil
}

// Run sets up the core and runs the named program.
func Run(ctx context.Context, name string, env *Env) error {
	p, err := Lookup(name)
	if err != nil {
		return err
	}
	if env.WakeUps <= 0 {
		env.WakeUps = 3
	}

	clocks, err := s32z2.SetupCore(env.Board.Core, env.Board.Machine.Bus())
	if err != nil {
		return err
	}
	for _, d := range clocks {
		env.Console.Println("%s", d)
	}

	if err := p.Run(ctx, env); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	if err := env.Board.Core.Err(); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	return nil
}
