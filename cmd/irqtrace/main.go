package main

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/tinyrange/s32z2/internal/debug"
)

var palette = []ansi.BasicColor{ansi.Cyan, ansi.Green, ansi.Yellow, ansi.Blue, ansi.Magenta, ansi.Red}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "irqtrace: %v\n", err)
		os.Exit(1)
	}
}

func sourceStyle(src string) ansi.Style {
	h := fnv.New32a()
	h.Write([]byte(src))
	return ansi.Style{}.ForegroundColor(palette[h.Sum32()%uint32(len(palette))])
}

func run() error {
	list := flag.Bool("list", false, "list all sources in the trace")
	source := flag.String("source", "", "comma separated sources to show")
	match := flag.String("match", "", "regex to filter messages")
	limit := flag.Int("limit", 0, "limit the number of entries (0 for unlimited)")
	tail := flag.Bool("tail", false, "show last N entries instead of first N")
	width := flag.Int("width", 0, "truncate lines to this many columns (0 for the terminal width)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `irqtrace - inspect interrupt traces written by s32z2 -trace

USAGE:
  irqtrace [flags] <filename>

EXAMPLES:
  irqtrace irq.bin                        Show every entry
  irqtrace -list irq.bin                  List the sources (gic, gic/cpuif, irq, timer, sim/...)
  irqtrace -source irq,timer irq.bin      Dispatcher and timer entries only
  irqtrace -match 'ack' -tail -limit 20 irq.bin

FLAGS:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	f, err := debug.OpenReader(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	if *list {
		sources, err := debug.Sources(f)
		if err != nil {
			return err
		}
		for _, s := range sources {
			fmt.Println(s)
		}
		return nil
	}

	filter := debug.Filter{Limit: *limit, Tail: *tail}
	if *source != "" {
		filter.Sources = strings.Split(*source, ",")
	}
	if *match != "" {
		re, err := regexp.Compile(*match)
		if err != nil {
			return fmt.Errorf("invalid match regex: %w", err)
		}
		filter.Match = func(r debug.Record) bool { return re.Match(r.Data) }
	}

	records, err := debug.Search(f, filter)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	cols := *width
	if cols == 0 && tty {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			cols = w
		}
	}

	for _, r := range records {
		src := "[" + r.Source + "]"
		if tty {
			src = sourceStyle(r.Source).Styled(src)
		}
		line := fmt.Sprintf("%s %s %s", r.Time.Format(time.RFC3339Nano), src, r.Data)
		if cols > 0 && ansi.StringWidth(line) > cols {
			line = ansi.Truncate(line, cols, "…")
		}
		fmt.Println(line)
	}
	return nil
}
