package gic

import "fmt"

type ack struct {
	id    IntID
	group InterruptGroup
}

// pairingChecker mirrors the CPU interface's active priority stack.
type pairingChecker struct {
	stack  []ack
	report func(error)
}

func newPairingChecker(report func(error)) *pairingChecker {
	if report == nil {
		report = func(err error) { panic(err) }
	}
	return &pairingChecker{report: report}
}

func (p *pairingChecker) acknowledged(id IntID, group InterruptGroup) {
	p.stack = append(p.stack, ack{id: id, group: group})
}

func (p *pairingChecker) ended(id IntID, group InterruptGroup) {
	if len(p.stack) == 0 {
		p.report(fmt.Errorf("gic: end %v %v: %w", id, group, ErrUnpairedEnd))
		return
	}
	top := p.stack[len(p.stack)-1]
	if top.id == id && top.group == group {
		p.stack = p.stack[:len(p.stack)-1]
		return
	}

	p.report(fmt.Errorf("gic: end %v %v while %v %v is newest: %w", id, group, top.id, top.group, ErrOutOfOrderEnd))
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].id == id && p.stack[i].group == group {
			p.stack = append(p.stack[:i], p.stack[i+1:]...)
			return
		}
	}
}

func (p *pairingChecker) depth() int { return len(p.stack) }
