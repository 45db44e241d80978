package sim

import (
	"sync"

	"github.com/tinyrange/s32z2/internal/reg"
)

// PPI INTIDs of the per-core timers.
const (
	VirtualTimerIntID  = 27
	PhysicalTimerIntID = 30
)

var (
	cntCtlEnable  = reg.Bit(0)
	cntCtlIMask   = reg.Bit(1)
	cntCtlIStatus = reg.Bit(2)
)

type timerRegs struct {
	ctl  uint32 // ENABLE and IMASK only; ISTATUS is computed
	cval uint64
}

func (t *timerRegs) condition(count uint64) bool {
	return count >= t.cval
}

func (t *timerRegs) output(count uint64) bool {
	return cntCtlEnable.IsSet32(t.ctl) && !cntCtlIMask.IsSet32(t.ctl) && t.condition(count)
}

func (t *timerRegs) readCtl(count uint64) uint32 {
	return cntCtlIStatus.SetBool32(t.ctl, t.condition(count))
}

// Timers is the Generic Timer of one core: a physical and a virtual timer
// over the shared system counter.
type Timers struct {
	mu      sync.Mutex
	clock   Clock
	freq    uint32
	phys    timerRegs
	virt    timerRegs
	cntvoff uint64
}

func newTimers(clock Clock) *Timers {
	return &Timers{clock: clock, freq: clock.Frequency()}
}

func (t *Timers) physical() uint64 { return t.clock.Now() }

func (t *Timers) virtual() uint64 { return t.clock.Now() - t.cntvoff }

// PhysicalOutput is the interrupt line of the physical timer.
func (t *Timers) PhysicalOutput() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phys.output(t.physical())
}

// VirtualOutput is the interrupt line of the virtual timer.
func (t *Timers) VirtualOutput() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.virt.output(t.virtual())
}

// NextDeadline returns the physical count at which the earliest armed timer
// fires, if any timer is armed.
func (t *Timers) NextDeadline() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var (
		next uint64
		ok   bool
	)
	armed := func(r *timerRegs) bool {
		return cntCtlEnable.IsSet32(r.ctl) && !cntCtlIMask.IsSet32(r.ctl)
	}
	if armed(&t.phys) {
		next, ok = t.phys.cval, true
	}
	if armed(&t.virt) {
		at := t.virt.cval + t.cntvoff
		if at < t.virt.cval {
			at = ^uint64(0)
		}
		if !ok || at < next {
			next, ok = at, true
		}
	}
	return next, ok
}

// TimerRegister names a Generic Timer register.
type TimerRegister int

const (
	TimerCNTFRQ TimerRegister = iota
	TimerCNTPCT
	TimerCNTVCT
	TimerCNTVOFF
	TimerCNTPCTL
	TimerCNTPCVAL
	TimerCNTPTVAL
	TimerCNTVCTL
	TimerCNTVCVAL
	TimerCNTVTVAL
)

// Read returns the value of a timer register.
func (t *Timers) Read(r TimerRegister) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch r {
	case TimerCNTFRQ:
		return uint64(t.freq)
	case TimerCNTPCT:
		return t.physical()
	case TimerCNTVCT:
		return t.virtual()
	case TimerCNTVOFF:
		return t.cntvoff
	case TimerCNTPCTL:
		return uint64(t.phys.readCtl(t.physical()))
	case TimerCNTPCVAL:
		return t.phys.cval
	case TimerCNTPTVAL:
		return uint64(uint32(t.phys.cval - t.physical()))
	case TimerCNTVCTL:
		return uint64(t.virt.readCtl(t.virtual()))
	case TimerCNTVCVAL:
		return t.virt.cval
	case TimerCNTVTVAL:
		return uint64(uint32(t.virt.cval - t.virtual()))
	}
	return 0
}

// Write sets a timer register. Writes to the counters are ignored.
func (t *Timers) Write(r TimerRegister, v uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctlMask := uint32(cntCtlEnable.Mask() | cntCtlIMask.Mask())
	switch r {
	case TimerCNTFRQ:
		t.freq = uint32(v)
	case TimerCNTVOFF:
		t.cntvoff = v
	case TimerCNTPCTL:
		t.phys.ctl = uint32(v) & ctlMask
	case TimerCNTPCVAL:
		t.phys.cval = v
	case TimerCNTPTVAL:
		t.phys.cval = t.physical() + uint64(int64(int32(uint32(v))))
	case TimerCNTVCTL:
		t.virt.ctl = uint32(v) & ctlMask
	case TimerCNTVCVAL:
		t.virt.cval = v
	case TimerCNTVTVAL:
		t.virt.cval = t.virtual() + uint64(int64(int32(uint32(v))))
	}
}
