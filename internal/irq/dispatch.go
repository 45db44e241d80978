// Package irq implements the interrupt dispatch protocol on top of a GIC
// CPU interface.
//
// The processor vectors every IRQ to one entry point that does not know
// which interrupt fired. Trap is that entry point: it acknowledges, runs the
// bottom half registered for the id and ends the interrupt, and repeats
// until the controller has nothing left to acknowledge. One trap can
// therefore service several interrupts that became pending together.
package irq

import (
	"sync"

	"github.com/tinyrange/s32z2/internal/debug"
	"github.com/tinyrange/s32z2/internal/gic"
)

var trace = debug.Source("irq")

// Controller is the part of the GIC the dispatcher needs.
type Controller interface {
	GetAndAcknowledgeInterrupt(group gic.InterruptGroup) (gic.IntID, bool)
	EndInterrupt(id gic.IntID, group gic.InterruptGroup)
}

var _ Controller = (*gic.GICv3)(nil)

// Stats counts dispatcher activity.
type Stats struct {
	Traps        uint64
	Acknowledges uint64
	Unknown      uint64
	Handled      map[gic.IntID]uint64
}

// Dispatcher maps interrupt ids to bottom halves.
//
// Handlers must be registered before the interrupts they serve are
// unmasked. An id with no handler is acknowledged and ended without further
// action so it cannot hold the running priority.
type Dispatcher struct {
	ctrl  Controller
	group gic.InterruptGroup

	mu       sync.Mutex
	handlers map[gic.IntID]func()
	stats    Stats
}

func New(ctrl Controller, group gic.InterruptGroup) *Dispatcher {
	return &Dispatcher{
		ctrl:     ctrl,
		group:    group,
		handlers: make(map[gic.IntID]func()),
		stats:    Stats{Handled: make(map[gic.IntID]uint64)},
	}
}

// Handle registers fn as the bottom half for id, replacing any previous one.
// A nil fn removes the handler.
func (d *Dispatcher) Handle(id gic.IntID, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn == nil {
		delete(d.handlers, id)
		return
	}
	d.handlers[id] = fn
}

// Trap is the IRQ entry point. It returns once acknowledge reports nothing
// pending.
func (d *Dispatcher) Trap() {
	d.mu.Lock()
	d.stats.Traps++
	d.mu.Unlock()

	for {
		id, ok := d.ctrl.GetAndAcknowledgeInterrupt(d.group)
		d.mu.Lock()
		d.stats.Acknowledges++
		if !ok {
			d.mu.Unlock()
			return
		}
		fn, known := d.handlers[id]
		if known {
			d.stats.Handled[id]++
		} else {
			d.stats.Unknown++
		}
		d.mu.Unlock()

		if known {
			fn()
		} else {
			trace.Writef("no handler for %v", id)
		}
		d.ctrl.EndInterrupt(id, d.group)
	}
}

// Stats returns a copy of the counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Handled = make(map[gic.IntID]uint64, len(d.stats.Handled))
	for id, n := range d.stats.Handled {
		s.Handled[id] = n
	}
	return s
}
