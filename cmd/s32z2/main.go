package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/tinyrange/s32z2/internal/debug"
	"github.com/tinyrange/s32z2/internal/demo"
	"github.com/tinyrange/s32z2/internal/gic"
	"github.com/tinyrange/s32z2/internal/s32z2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "s32z2: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Board configuration file (YAML)")
	clock := flag.String("clock", "", "Override the clock kind (manual, step, wall)")
	tracePath := flag.String("trace", "", "Write a binary interrupt trace to this file")
	wakeUps := flag.Int("wakeups", 3, "Main loop iterations for programs that wait for interrupts")
	pairing := flag.Bool("check-pairing", false, "Warn when interrupts are ended out of order")
	list := flag.Bool("list", false, "List the example programs")
	devmem := flag.Bool("devmem", false, "Inspect the GIC and clocks of real hardware through /dev/mem instead of running a program")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <program>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run an S32Z2 example program on the simulated board.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s gic\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -clock wall -wakeups 5 gic-timer\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -trace irq.bin gic-timer\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -devmem -config board.yaml\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *list {
		for _, p := range demo.Programs() {
			fmt.Printf("%-14s %s\n", p.Name, p.Description)
		}
		return nil
	}

	cfg := s32z2.Default()
	if *configPath != "" {
		var err error
		cfg, err = s32z2.Load(*configPath)
		if err != nil {
			return err
		}
		slog.Debug("Loaded config", "path", *configPath)
	}

	if *tracePath != "" {
		if err := debug.OpenFile(*tracePath); err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer debug.Close()
		slog.Debug("Tracing", "path", *tracePath)
	}

	if *devmem {
		return inspectHardware(cfg)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("program name required")
	}
	name := flag.Arg(0)
	if _, err := demo.Lookup(name); err != nil {
		return err
	}

	if *clock != "" {
		cfg.Clock = *clock
		cfg.ClockStep = 0
	}

	var opts []gic.Option
	if *pairing {
		opts = append(opts, gic.WithPairingCheck(func(err error) {
			slog.Warn("Interrupt pairing", "err", err)
		}))
	}

	board, err := s32z2.Open(cfg, opts...)
	if err != nil {
		return err
	}
	defer board.Close()
	slog.Debug("Board open",
		"cores", cfg.Cores,
		"clock", cfg.Clock,
		"maxIntID", board.GIC.MaxIntID(),
		"security", board.GIC.SecurityExtensions(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	env := &demo.Env{
		Board:    board,
		Console:  demo.NewConsole(os.Stdout, tty),
		Progress: tty,
		WakeUps:  *wakeUps,
	}
	return demo.Run(ctx, name, env)
}

func inspectHardware(cfg s32z2.Config) error {
	hw, err := s32z2.OpenHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()
	slog.Debug("Mapped hardware", "periphBase", fmt.Sprintf("0x%08x", cfg.PeriphBase))

	in, err := s32z2.Inspect(hw.Bus, cfg)
	if err != nil {
		return err
	}
	fmt.Print(in)
	return nil
}
