package sim

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tinyrange/s32z2/internal/debug"
	"github.com/tinyrange/s32z2/internal/mmio"
	"github.com/tinyrange/s32z2/internal/reg"
)

// Distributor and redistributor register offsets.
const (
	gicdCtlr       = 0x0000
	gicdTyper      = 0x0004
	gicdIidr       = 0x0008
	gicdIgroupr    = 0x0080
	gicdIsenabler  = 0x0100
	gicdIcenabler  = 0x0180
	gicdIspendr    = 0x0200
	gicdIcpendr    = 0x0280
	gicdIsactiver  = 0x0300
	gicdIcactiver  = 0x0380
	gicdIpriorityr = 0x0400
	gicdIcfgr      = 0x0C00
	gicdIgrpmodr   = 0x0D00
	gicdIrouter    = 0x6000
	gicdPidr2      = 0xFFE8

	gicrCtlr   = 0x0000
	gicrIidr   = 0x0004
	gicrTyper  = 0x0008
	gicrWaker  = 0x0014
	gicrPidr2  = 0xFFE8
	gicrSGI    = 0x10000
	gicrFrame  = 0x20000
	gicdFrame  = 0x10000
	bankedSize = 32

	implementerARM = 0x0200043B
	archRevGICv3   = 0x30

	intidNone = 1023
	idleRPR   = 0xff
)

var (
	dctlrEnableGrp0   = reg.Bit(0)
	dctlrEnableGrp1NS = reg.Bit(1)
	dctlrEnableGrp1S  = reg.Bit(2)
	dctlrDS           = reg.Bit(6)

	wakerProcessorSleep = reg.Bit(1)
	wakerChildrenAsleep = reg.Bit(2)

	routeAff0 = reg.Bits(7, 0)
	routeAff1 = reg.Bits(15, 8)
	routeAff2 = reg.Bits(23, 16)
	routeIRM  = reg.Bit(31)
	routeAff3 = reg.Bits(39, 32)

	sgiTargetList = reg.Bits(15, 0)
	sgiAff1       = reg.Bits(23, 16)
	sgiINTID      = reg.Bits(27, 24)
	sgiAff2       = reg.Bits(39, 32)
	sgiIRM        = reg.Bit(40)
	sgiRS         = reg.Bits(47, 44)
	sgiAff3       = reg.Bits(55, 48)
)

// line is the state of one interrupt at one destination.
type line struct {
	group    bool // IGROUPR bit
	grpmod   bool // IGRPMODR bit
	enabled  bool
	pending  bool // latched by an edge, an SGI or ISPENDR
	active   bool
	edge     bool
	level    bool
	priority uint8
	route    uint64

	source func() bool
}

func (l *line) asserted() bool {
	if l.pending {
		return true
	}
	if l.edge {
		return false
	}
	return l.level || (l.source != nil && l.source())
}

type activeEntry struct {
	id       uint32
	priority uint8
}

// cpuInterface is the ICC_* state of one core.
type cpuInterface struct {
	pmr     uint8
	bpr1    uint64
	ctlr    uint64
	sre     uint64
	igrpen0 bool
	igrpen1 bool
	active  []activeEntry
}

func (c *cpuInterface) runningPriority() uint8 {
	if len(c.active) == 0 {
		return idleRPR
	}
	return c.active[len(c.active)-1].priority
}

// GICOptions shape the modelled controller.
type GICOptions struct {
	Cores    int
	GICDBase uint64
	GICRBase uint64
	// SPILines is the number of implemented SPIs, rounded up to a multiple
	// of 32.
	SPILines uint32
	// Security models two security states. The core runs Non-secure and
	// GICD_CTLR.DS reads as zero. Without it DS reads as one.
	Security bool
}

// GIC models a GICv3 distributor, its redistributors and the system register
// CPU interfaces of the connected cores.
type GIC struct {
	mu sync.Mutex

	opts    GICOptions
	itLines uint32
	ctlr    uint32

	spis    []line
	private [][bankedSize]line
	waker   []uint32
	cpu     []cpuInterface

	faults int
}

var trace = debug.Source("sim/gic")

// NewGIC returns a controller in its reset state.
func NewGIC(opts GICOptions) (*GIC, error) {
	if opts.Cores < 1 {
		return nil, fmt.Errorf("sim: gic needs at least one core")
	}
	if opts.SPILines > 988 {
		return nil, fmt.Errorf("sim: gic supports at most 988 SPIs, got %d", opts.SPILines)
	}
	itLines := (opts.SPILines + 31) / 32
	g := &GIC{
		opts:    opts,
		itLines: itLines,
		spis:    make([]line, itLines*32),
		private: make([][bankedSize]line, opts.Cores),
		waker:   make([]uint32, opts.Cores),
		cpu:     make([]cpuInterface, opts.Cores),
	}
	if !opts.Security {
		g.ctlr = dctlrDS.SetBool32(0, true)
	}
	for i := range g.private {
		for id := 0; id < 16; id++ {
			g.private[i][id].edge = true
		}
		g.waker[i] = wakerProcessorSleep.SetBool32(wakerChildrenAsleep.SetBool32(0, true), true)
	}
	return g, nil
}

// Window is an address range a device answers to.
type Window struct {
	Name string
	Base uint64
	Size uint64
}

// Windows lists the ranges the GIC must be mapped at.
func (g *GIC) Windows() []Window {
	return []Window{
		{Name: "gicd", Base: g.opts.GICDBase, Size: gicdFrame},
		{Name: "gicr", Base: g.opts.GICRBase, Size: gicrFrame * uint64(g.opts.Cores)},
	}
}

// lookup returns the state of id as seen by core. Callers hold g.mu.
func (g *GIC) lookup(core int, id uint32) *line {
	if id < bankedSize {
		if core < 0 || core >= len(g.private) {
			return nil
		}
		return &g.private[core][id]
	}
	if n := int(id) - bankedSize; n < len(g.spis) {
		return &g.spis[n]
	}
	return nil
}

// SetLevel drives the input of a level-sensitive interrupt. core is ignored
// for SPIs.
func (g *GIC) SetLevel(core int, id uint32, high bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l := g.lookup(core, id); l != nil {
		l.level = high
	}
}

// Pulse latches an edge on id.
func (g *GIC) Pulse(core int, id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l := g.lookup(core, id); l != nil {
		l.pending = true
	}
	trace.Writef("pulse core=%d id=%d", core, id)
}

// Connect wires a level source, sampled whenever the controller looks for
// pending interrupts.
func (g *GIC) Connect(core int, id uint32, source func() bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l := g.lookup(core, id); l != nil {
		l.source = source
	}
}

// Faults counts end-of-interrupt writes that did not name the most recently
// acknowledged interrupt, and writes with nothing active.
func (g *GIC) Faults() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faults
}

// Active returns the ids on core's active priority stack, oldest first.
func (g *GIC) Active(core int) []uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []uint32
	for _, e := range g.cpu[core].active {
		ids = append(ids, e.id)
	}
	return ids
}

// interrupt group of a line: 0, 1 for Group1NS and 2 for Group1S.
func (g *GIC) groupOf(l *line) int {
	switch {
	case !l.group && !l.grpmod:
		return 0
	case l.group:
		return 1
	case g.opts.Security:
		return 2
	}
	return 0
}

func (g *GIC) distributorEnabled(group int) bool {
	switch group {
	case 0:
		return dctlrEnableGrp0.IsSet32(g.ctlr)
	case 1:
		return dctlrEnableGrp1NS.IsSet32(g.ctlr)
	}
	return dctlrEnableGrp1S.IsSet32(g.ctlr)
}

func (g *GIC) routedTo(l *line, core int) bool {
	if routeIRM.IsSet(l.route) {
		return true
	}
	if routeAff1.Get(l.route) != 0 || routeAff2.Get(l.route) != 0 || routeAff3.Get(l.route) != 0 {
		return false
	}
	return int(routeAff0.Get(l.route)) == core
}

// highestPending finds the best candidate for core among interrupts of the
// given CPU interface group (0 or 1 for Group 1 Non-secure), ignoring masking by PMR and the
// running priority. Callers hold g.mu.
func (g *GIC) highestPending(core int, cpuGroup int) (uint32, *line) {
	var (
		best   *line
		bestID uint32 = intidNone
	)
	consider := func(id uint32, l *line) {
		if !l.enabled || l.active || !l.asserted() {
			return
		}
		// The core runs Non-secure: IAR1 only sees Group 1 Non-secure and
		// Group 1 Secure is never presented to it.
		group := g.groupOf(l)
		if !g.distributorEnabled(group) || group != cpuGroup {
			return
		}
		if best == nil || l.priority < best.priority {
			best, bestID = l, id
		}
	}
	for id := uint32(0); id < bankedSize; id++ {
		consider(id, &g.private[core][id])
	}
	for n := range g.spis {
		if g.routedTo(&g.spis[n], core) {
			consider(uint32(n)+bankedSize, &g.spis[n])
		}
	}
	return bestID, best
}

// signalled reports whether core's CPU interface would present an interrupt
// of cpuGroup. Callers hold g.mu.
func (g *GIC) signalled(core int, cpuGroup int) (uint32, *line) {
	if wakerProcessorSleep.IsSet32(g.waker[core]) {
		return intidNone, nil
	}
	cpu := &g.cpu[core]
	if cpuGroup == 0 && !cpu.igrpen0 || cpuGroup == 1 && !cpu.igrpen1 {
		return intidNone, nil
	}
	id, l := g.highestPending(core, cpuGroup)
	if l == nil || l.priority >= cpu.pmr || l.priority >= cpu.runningPriority() {
		return intidNone, nil
	}
	return id, l
}

// IRQ reports whether a Group 1 interrupt is signalled to core.
func (g *GIC) IRQ(core int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, l := g.signalled(core, 1)
	return l != nil
}

// FIQ reports whether a Group 0 interrupt is signalled to core.
func (g *GIC) FIQ(core int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, l := g.signalled(core, 0)
	return l != nil
}

func (g *GIC) acknowledge(core int, cpuGroup int) uint32 {
	id, l := g.signalled(core, cpuGroup)
	if l == nil {
		return intidNone
	}
	l.pending = false
	l.active = true
	cpu := &g.cpu[core]
	cpu.active = append(cpu.active, activeEntry{id: id, priority: l.priority})
	trace.Writef("ack core=%d id=%d prio=%#x depth=%d", core, id, l.priority, len(cpu.active))
	return id
}

func (g *GIC) endOfInterrupt(core int, id uint32) {
	if id >= 1020 {
		return
	}
	cpu := &g.cpu[core]
	if len(cpu.active) == 0 {
		g.faults++
		trace.Writef("eoi core=%d id=%d with nothing active", core, id)
		return
	}
	top := cpu.active[len(cpu.active)-1]
	cpu.active = cpu.active[:len(cpu.active)-1]
	if top.id != id {
		g.faults++
		trace.Writef("eoi core=%d id=%d but %d is newest", core, id, top.id)
	}
	if l := g.lookup(core, id); l != nil {
		l.active = false
	}
	trace.Writef("eoi core=%d id=%d depth=%d", core, id, len(cpu.active))
}

// sendSGI delivers an SGI written to one of the generate registers. sel is
// 0 for ICC_SGI0R, 1 for ICC_SGI1R and 2 for ICC_ASGI1R.
func (g *GIC) sendSGI(from int, v uint64, sel int) {
	id := uint32(sgiINTID.Get(v))
	var targets []int
	if sgiIRM.IsSet(v) {
		for c := range g.private {
			if c != from {
				targets = append(targets, c)
			}
		}
	} else if sgiAff1.Get(v) == 0 && sgiAff2.Get(v) == 0 && sgiAff3.Get(v) == 0 {
		base := int(sgiRS.Get(v)) * 16
		list := sgiTargetList.Get(v)
		for bit := 0; bit < 16; bit++ {
			if list&(1<<bit) != 0 && base+bit < len(g.private) {
				targets = append(targets, base+bit)
			}
		}
	}

	for _, c := range targets {
		l := &g.private[c][id]
		group := g.groupOf(l)
		var ok bool
		switch sel {
		case 0:
			ok = group == 0
		case 1:
			ok = group == 1
		case 2:
			ok = g.opts.Security && group == 2
		}
		if ok {
			l.pending = true
		}
		trace.Writef("sgi from=%d to=%d id=%d sel=%d delivered=%v", from, c, id, sel, ok)
	}
}

// ReadCPU reads a CPU interface register of core.
func (g *GIC) ReadCPU(core int, r CPURegister) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	cpu := &g.cpu[core]
	switch r {
	case CPUPMR:
		return uint64(cpu.pmr)
	case CPUIAR0:
		return uint64(g.acknowledge(core, 0))
	case CPUIAR1:
		return uint64(g.acknowledge(core, 1))
	case CPUHPPIR1:
		id, _ := g.highestPending(core, 1)
		return uint64(id)
	case CPURPR:
		return uint64(cpu.runningPriority())
	case CPUBPR1:
		return cpu.bpr1
	case CPUCTLR:
		return cpu.ctlr
	case CPUSRE:
		return cpu.sre
	case CPUIGRPEN0:
		return boolBit(cpu.igrpen0)
	case CPUIGRPEN1:
		return boolBit(cpu.igrpen1)
	}
	return 0
}

// WriteCPU writes a CPU interface register of core.
func (g *GIC) WriteCPU(core int, r CPURegister, v uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cpu := &g.cpu[core]
	switch r {
	case CPUPMR:
		cpu.pmr = uint8(v)
	case CPUEOIR0, CPUEOIR1:
		g.endOfInterrupt(core, uint32(v&0xffffff))
	case CPUBPR1:
		cpu.bpr1 = v & 7
	case CPUCTLR:
		cpu.ctlr = v
	case CPUSRE:
		cpu.sre = v & 7
	case CPUIGRPEN0:
		cpu.igrpen0 = v&1 != 0
	case CPUIGRPEN1:
		cpu.igrpen1 = v&1 != 0
	case CPUSGI0R:
		g.sendSGI(core, v, 0)
	case CPUSGI1R:
		g.sendSGI(core, v, 1)
	case CPUASGI1R:
		g.sendSGI(core, v, 2)
	}
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// CPURegister names a CPU interface register.
type CPURegister int

const (
	CPUPMR CPURegister = iota
	CPUIAR0
	CPUIAR1
	CPUEOIR0
	CPUEOIR1
	CPUHPPIR1
	CPURPR
	CPUBPR1
	CPUCTLR
	CPUSRE
	CPUIGRPEN0
	CPUIGRPEN1
	CPUSGI0R
	CPUSGI1R
	CPUASGI1R
)

func (g *GIC) ReadMMIO(addr uint64, data []byte) error {
	return g.access(addr, data, false)
}

func (g *GIC) WriteMMIO(addr uint64, data []byte) error {
	return g.access(addr, data, true)
}

// access splits 64-bit accesses into two 32-bit register accesses.
func (g *GIC) access(addr uint64, data []byte, write bool) error {
	if len(data) != 4 && len(data) != 8 {
		return fmt.Errorf("sim: gic: %d-byte access at 0x%x", len(data), addr)
	}
	if addr&3 != 0 {
		return fmt.Errorf("sim: gic: unaligned access at 0x%x", addr)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < len(data); i += 4 {
		word := data[i : i+4]
		a := addr + uint64(i)
		var err error
		if write {
			err = g.write32(a, binary.LittleEndian.Uint32(word))
		} else {
			var v uint32
			v, err = g.read32(a)
			binary.LittleEndian.PutUint32(word, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *GIC) read32(addr uint64) (uint32, error) {
	if addr >= g.opts.GICDBase && addr < g.opts.GICDBase+gicdFrame {
		return g.readDistributor(addr - g.opts.GICDBase), nil
	}
	if addr >= g.opts.GICRBase && addr < g.opts.GICRBase+gicrFrame*uint64(g.opts.Cores) {
		off := addr - g.opts.GICRBase
		return g.readRedistributor(int(off/gicrFrame), off%gicrFrame), nil
	}
	return 0, mmio.ErrUnmapped
}

func (g *GIC) write32(addr uint64, v uint32) error {
	if addr >= g.opts.GICDBase && addr < g.opts.GICDBase+gicdFrame {
		g.writeDistributor(addr-g.opts.GICDBase, v)
		return nil
	}
	if addr >= g.opts.GICRBase && addr < g.opts.GICRBase+gicrFrame*uint64(g.opts.Cores) {
		off := addr - g.opts.GICRBase
		g.writeRedistributor(int(off/gicrFrame), off%gicrFrame, v)
		return nil
	}
	return mmio.ErrUnmapped
}

// bitRegister identifies the one-bit-per-interrupt register banks.
type bitRegister int

const (
	bitGroup bitRegister = iota
	bitGrpmod
	bitSetEnable
	bitClearEnable
	bitSetPending
	bitClearPending
	bitSetActive
	bitClearActive
)

var bitBanks = []struct {
	offset uint64
	kind   bitRegister
}{
	{gicdIgroupr, bitGroup},
	{gicdIsenabler, bitSetEnable},
	{gicdIcenabler, bitClearEnable},
	{gicdIspendr, bitSetPending},
	{gicdIcpendr, bitClearPending},
	{gicdIsactiver, bitSetActive},
	{gicdIcactiver, bitClearActive},
	{gicdIgrpmodr, bitGrpmod},
}

func readBit(l *line, kind bitRegister) bool {
	switch kind {
	case bitGroup:
		return l.group
	case bitGrpmod:
		return l.grpmod
	case bitSetEnable, bitClearEnable:
		return l.enabled
	case bitSetPending, bitClearPending:
		return l.asserted()
	}
	return l.active
}

func writeBit(l *line, kind bitRegister, set bool) {
	switch kind {
	case bitGroup:
		l.group = set
	case bitGrpmod:
		l.grpmod = set
	case bitSetEnable:
		l.enabled = l.enabled || set
	case bitClearEnable:
		l.enabled = l.enabled && !set
	case bitSetPending:
		l.pending = l.pending || set
	case bitClearPending:
		l.pending = l.pending && !set
	case bitSetActive:
		l.active = l.active || set
	case bitClearActive:
		l.active = l.active && !set
	}
}

// bitBank matches off against the bit banks, returning the kind and the
// register index within the bank.
func bitBank(off uint64) (bitRegister, uint64, bool) {
	for _, b := range bitBanks {
		if off >= b.offset && off < b.offset+0x80 {
			return b.kind, (off - b.offset) / 4, true
		}
	}
	return 0, 0, false
}

func (g *GIC) readBits(lines []line, kind bitRegister) uint32 {
	var v uint32
	for i := range lines {
		if readBit(&lines[i], kind) {
			v |= 1 << i
		}
	}
	return v
}

func (g *GIC) writeBits(lines []line, kind bitRegister, v uint32) {
	for i := range lines {
		writeBit(&lines[i], kind, v&(1<<i) != 0)
	}
}

// spiWord returns the 32 SPI lines of distributor register index n, or nil
// for the banked or unimplemented words.
func (g *GIC) spiWord(n uint64) []line {
	if n == 0 || n > uint64(g.itLines) {
		return nil
	}
	start := (n - 1) * 32
	return g.spis[start : start+32]
}

func (g *GIC) readDistributor(off uint64) uint32 {
	switch {
	case off == gicdCtlr:
		return g.ctlr
	case off == gicdTyper:
		v := g.itLines | uint32(g.opts.Cores-1)<<5
		if g.opts.Security {
			v |= 1 << 10
		}
		return v
	case off == gicdIidr:
		return implementerARM
	case off == gicdPidr2:
		return archRevGICv3
	case off >= gicdIpriorityr && off < gicdIpriorityr+0x400:
		var v uint32
		for i := uint64(0); i < 4; i++ {
			if l := g.spiAt(off - gicdIpriorityr + i); l != nil {
				v |= uint32(l.priority) << (8 * i)
			}
		}
		return v
	case off >= gicdIcfgr && off < gicdIcfgr+0x100:
		var v uint32
		for i := uint64(0); i < 16; i++ {
			if l := g.spiAt((off-gicdIcfgr)/4*16 + i); l != nil && l.edge {
				v |= 2 << (2 * i)
			}
		}
		return v
	case off >= gicdIrouter && off < gicdIrouter+8*1024:
		n := (off - gicdIrouter) / 8
		if l := g.spiAt(n); l != nil {
			if off%8 == 0 {
				return uint32(l.route)
			}
			return uint32(l.route >> 32)
		}
		return 0
	}
	if kind, n, ok := bitBank(off); ok {
		return g.readBits(g.spiWord(n), kind)
	}
	return 0
}

// spiAt returns the line for id when id is an implemented SPI.
func (g *GIC) spiAt(id uint64) *line {
	if id < bankedSize || id >= 1020 || id-bankedSize >= uint64(len(g.spis)) {
		return nil
	}
	return &g.spis[id-bankedSize]
}

func (g *GIC) writeDistributor(off uint64, v uint32) {
	switch {
	case off == gicdCtlr:
		mask := uint32(0x37)
		if !g.opts.Security {
			mask = 0x13
			v = dctlrDS.SetBool32(v, true)
			mask |= uint32(dctlrDS.Mask())
		}
		g.ctlr = v & mask
		trace.Writef("gicd ctlr=%#x", g.ctlr)
	case off >= gicdIpriorityr && off < gicdIpriorityr+0x400:
		for i := uint64(0); i < 4; i++ {
			if l := g.spiAt(off - gicdIpriorityr + i); l != nil {
				l.priority = uint8(v >> (8 * i))
			}
		}
	case off >= gicdIcfgr && off < gicdIcfgr+0x100:
		for i := uint64(0); i < 16; i++ {
			if l := g.spiAt((off-gicdIcfgr)/4*16 + i); l != nil {
				l.edge = v&(2<<(2*i)) != 0
			}
		}
	case off >= gicdIrouter && off < gicdIrouter+8*1024:
		if l := g.spiAt((off - gicdIrouter) / 8); l != nil {
			if off%8 == 0 {
				l.route = l.route&^0xffff_ffff | uint64(v)
			} else {
				l.route = l.route&0xffff_ffff | uint64(v)<<32
			}
		}
	default:
		if kind, n, ok := bitBank(off); ok {
			g.writeBits(g.spiWord(n), kind, v)
		}
	}
}

func (g *GIC) readRedistributor(core int, off uint64) uint32 {
	lines := g.private[core][:]
	switch {
	case off == gicrCtlr:
		return 0
	case off == gicrIidr:
		return implementerARM
	case off == gicrTyper:
		v := uint32(core) << 8
		if core == g.opts.Cores-1 {
			v |= 1 << 4
		}
		return v
	case off == gicrTyper+4:
		return uint32(core)
	case off == gicrWaker:
		return g.waker[core]
	case off == gicrPidr2, off == gicrSGI+gicrPidr2:
		return archRevGICv3
	case off >= gicrSGI+gicdIpriorityr && off < gicrSGI+gicdIpriorityr+bankedSize:
		var v uint32
		base := off - gicrSGI - gicdIpriorityr
		for i := uint64(0); i < 4; i++ {
			v |= uint32(lines[base+i].priority) << (8 * i)
		}
		return v
	case off == gicrSGI+gicdIcfgr || off == gicrSGI+gicdIcfgr+4:
		var v uint32
		base := (off - gicrSGI - gicdIcfgr) / 4 * 16
		for i := uint64(0); i < 16; i++ {
			if lines[base+i].edge {
				v |= 2 << (2 * i)
			}
		}
		return v
	}
	if off >= gicrSGI {
		if kind, n, ok := bitBank(off - gicrSGI); ok && n == 0 {
			return g.readBits(lines, kind)
		}
	}
	return 0
}

func (g *GIC) writeRedistributor(core int, off uint64, v uint32) {
	lines := g.private[core][:]
	switch {
	case off == gicrWaker:
		if wakerProcessorSleep.IsSet32(v) {
			g.waker[core] = uint32(wakerProcessorSleep.Mask() | wakerChildrenAsleep.Mask())
		} else {
			g.waker[core] = 0
		}
		trace.Writef("gicr core=%d waker=%#x", core, g.waker[core])
	case off >= gicrSGI+gicdIpriorityr && off < gicrSGI+gicdIpriorityr+bankedSize:
		base := off - gicrSGI - gicdIpriorityr
		for i := uint64(0); i < 4; i++ {
			lines[base+i].priority = uint8(v >> (8 * i))
		}
	case off == gicrSGI+gicdIcfgr:
		// SGIs are always edge triggered.
	case off == gicrSGI+gicdIcfgr+4:
		for i := uint64(0); i < 16; i++ {
			lines[16+i].edge = v&(2<<(2*i)) != 0
		}
	case off >= gicrSGI:
		if kind, n, ok := bitBank(off - gicrSGI); ok && n == 0 {
			g.writeBits(lines, kind, v)
		}
	}
}

var _ mmio.Handler = (*GIC)(nil)
