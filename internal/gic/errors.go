package gic

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIntID      = errors.New("gic: interrupt id out of range")
	ErrNotSGI            = errors.New("gic: interrupt id is not an SGI")
	ErrCoreRequired      = errors.New("gic: private interrupt needs a core index")
	ErrCoreNotApplicable = errors.New("gic: shared interrupt does not take a core index")
	ErrCoreOutOfRange    = errors.New("gic: core index out of range")
	ErrGroupUnavailable  = errors.New("gic: group not available without security extensions")
	ErrTriggerFixed      = errors.New("gic: SGIs are always edge triggered")
	ErrTargetRange       = errors.New("gic: affinity cannot be expressed in an SGI target list")
	ErrNoCores           = errors.New("gic: core count must be at least one")
	ErrWakeTimeout       = errors.New("gic: redistributor did not wake")
	ErrRWPTimeout        = errors.New("gic: register write did not complete")
	ErrNotGICv3          = errors.New("gic: distributor is not GICv3 or GICv4")

	ErrUnpairedEnd   = errors.New("gic: end of interrupt without acknowledge")
	ErrOutOfOrderEnd = errors.New("gic: end of interrupt out of LIFO order")
)

// ConfigError reports a rejected configuration call.
type ConfigError struct {
	Op   string
	ID   IntID
	Core Core
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gic: %s %v (%v): %v", e.Op, e.ID, e.Core, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
