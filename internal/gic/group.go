package gic

import "fmt"

// Group is the interrupt group an interrupt is configured into.
type Group uint8

const (
	// Group0 interrupts are signalled as FIQ.
	Group0 Group = iota
	Group1S
	Group1NS
)

func (g Group) String() string {
	switch g {
	case Group0:
		return "Group0"
	case Group1S:
		return "Group1S"
	case Group1NS:
		return "Group1NS"
	}
	return fmt.Sprintf("Group(%d)", uint8(g))
}

// InterruptGroup selects the CPU interface register bank used to acknowledge
// and end interrupts.
type InterruptGroup uint8

const (
	InterruptGroup0 InterruptGroup = iota
	InterruptGroup1
)

func (g InterruptGroup) String() string {
	if g == InterruptGroup0 {
		return "Group0"
	}
	return "Group1"
}

// Trigger is the interrupt signalling mode.
type Trigger uint8

const (
	TriggerLevel Trigger = iota
	TriggerEdge
)

func (t Trigger) String() string {
	if t == TriggerEdge {
		return "edge"
	}
	return "level"
}

// Core names the redistributor that owns a private interrupt. SPIs are
// configured at the distributor and take Shared.
type Core struct {
	index int
	set   bool
}

// Shared is the Core value for SPIs.
var Shared = Core{}

// OnCore selects the redistributor of core i.
func OnCore(i int) Core { return Core{index: i, set: true} }

// Index returns the core index and whether one was given.
func (c Core) Index() (int, bool) { return c.index, c.set }

func (c Core) String() string {
	if !c.set {
		return "shared"
	}
	return fmt.Sprintf("core %d", c.index)
}

// SGITarget selects the cores an SGI is delivered to.
type SGITarget interface {
	isSGITarget()
}

// SGITargetList delivers to the cores Aff3.Aff2.Aff1.n for each bit n set in
// TargetList.
type SGITargetList struct {
	Aff3       uint8
	Aff2       uint8
	Aff1       uint8
	TargetList uint16
}

// SGITargetAllOther delivers to every core except the sender.
type SGITargetAllOther struct{}

// SGITargetSelf delivers to the sending core only.
type SGITargetSelf struct{}

func (SGITargetList) isSGITarget()     {}
func (SGITargetAllOther) isSGITarget() {}
func (SGITargetSelf) isSGITarget()     {}

// SGIGroup selects the group the generated SGI is signalled for.
type SGIGroup uint8

const (
	// SGIGroup0 generates through ICC_SGI0R.
	SGIGroup0 SGIGroup = iota
	// SGICurrentGroup1 generates through ICC_SGI1R.
	SGICurrentGroup1
	// SGIOtherGroup1 generates through ICC_ASGI1R.
	SGIOtherGroup1
)
