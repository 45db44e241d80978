package s32z2

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/s32z2/internal/sim"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("s32z2: invalid board config")

// Clock kinds.
const (
	ClockManual = "manual"
	ClockStep   = "step"
	ClockWall   = "wall"
)

const (
	defaultClockStep = 100
	defaultSPILines  = 64
)

// Config describes the simulated board. Zero fields take the S32Z2 values.
type Config struct {
	PeriphBase         uint64 `yaml:"periphBase"`
	GICDOffset         uint64 `yaml:"gicdOffset"`
	GICROffset         uint64 `yaml:"gicrOffset"`
	Cores              int    `yaml:"cores,omitempty"`
	SecurityExtensions bool   `yaml:"securityExtensions,omitempty"`
	TimerFrequencyHz   uint32 `yaml:"timerFrequencyHz,omitempty"`
	SPILines           uint32 `yaml:"spiLines,omitempty"`

	// Clock is one of manual, step or wall.
	Clock string `yaml:"clock,omitempty"`
	// ClockStep is how far a step clock moves per read.
	ClockStep uint64 `yaml:"clockStep,omitempty"`
	// StormLimit bounds back-to-back IRQ entries.
	StormLimit int `yaml:"stormLimit,omitempty"`
}

// Default returns the S32Z2 RTU0 configuration.
func Default() Config {
	var c Config
	c.normalize()
	return c
}

func (c *Config) normalize() {
	if c.PeriphBase == 0 {
		c.PeriphBase = PeriphBase
	}
	if c.GICROffset == 0 && c.GICDOffset == 0 {
		c.GICDOffset = GICDOffset
		c.GICROffset = GICROffset
	}
	if c.Cores == 0 {
		c.Cores = Cores
	}
	if c.TimerFrequencyHz == 0 {
		c.TimerFrequencyHz = TimerFrequencyHz
	}
	if c.SPILines == 0 {
		c.SPILines = defaultSPILines
	}
	if c.Clock == "" {
		c.Clock = ClockStep
	}
	if c.ClockStep == 0 && c.Clock == ClockStep {
		c.ClockStep = defaultClockStep
	}
	if c.StormLimit == 0 {
		c.StormLimit = sim.DefaultStormLimit
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate reports the first unusable value.
func (c Config) Validate() error {
	if c.PeriphBase%(2<<20) != 0 || c.PeriphBase >= 1<<32 {
		return invalid("periphBase 0x%x is not a 2 MiB aligned 32-bit address", c.PeriphBase)
	}
	if c.Cores < 1 || c.Cores > 16 {
		return invalid("cores %d out of range 1-16", c.Cores)
	}
	gicdEnd := c.GICDOffset + 0x1_0000
	gicrEnd := c.GICROffset + uint64(c.Cores)*0x2_0000
	if c.GICDOffset < gicrEnd && c.GICROffset < gicdEnd {
		return invalid("distributor at +0x%x overlaps redistributors at +0x%x", c.GICDOffset, c.GICROffset)
	}
	if c.TimerFrequencyHz == 0 {
		return invalid("timerFrequencyHz must be positive")
	}
	if c.SPILines > 988 {
		return invalid("spiLines %d exceeds 988", c.SPILines)
	}
	switch c.Clock {
	case ClockManual, ClockWall:
	case ClockStep:
		if c.ClockStep == 0 {
			return invalid("clockStep must be positive for a step clock")
		}
	default:
		return invalid("unknown clock %q", c.Clock)
	}
	if c.StormLimit < 0 {
		return invalid("stormLimit %d is negative", c.StormLimit)
	}
	return nil
}

// Load reads a YAML board description.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read board config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML board description, fills defaults and validates it.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse board config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(&c)
}

func (c Config) newClock() sim.Clock {
	switch c.Clock {
	case ClockManual:
		return sim.NewManualClock(c.TimerFrequencyHz)
	case ClockWall:
		return sim.NewWallClock(c.TimerFrequencyHz)
	}
	return sim.NewStepClock(c.TimerFrequencyHz, c.ClockStep)
}

// MachineConfig translates c into a simulator configuration, including the
// clock generator blocks.
func (c Config) MachineConfig() sim.Config {
	return sim.Config{
		Cores:      c.Cores,
		PeriphBase: c.PeriphBase,
		GICDBase:   c.PeriphBase + c.GICDOffset,
		GICRBase:   c.PeriphBase + c.GICROffset,
		SPILines:   c.SPILines,
		Security:   c.SecurityExtensions,
		Clock:      c.newClock(),
		StormLimit: c.StormLimit,
		Blocks:     clockBlocks(),
	}
}
