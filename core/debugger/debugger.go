// Package debugger implements the breakpoint set, systrap history surface
// and disassembly support described in spec.md §3 and §4.12: execution,
// bus-read, bus-write, bus-rw, interrupt-level, trap-A and trap-F
// breakpoints, checked on the bus access path rather than bolted onto the
// CPU core itself.
package debugger

import (
	"github.com/google/uuid"

	"github.com/snowmac/snow/core/bus/cpubus"
	"github.com/snowmac/snow/core/cpu"
)

// Kind is an alias of cpu.BreakpointKind, so the debugger and the CPU core
// share one set of breakpoint kinds.
type Kind = cpu.BreakpointKind

const (
	KindExecution      = cpu.BreakExecution
	KindBusRead        = cpu.BreakBusRead
	KindBusWrite       = cpu.BreakBusWrite
	KindBusReadWrite   = cpu.BreakBusReadWrite
	KindInterruptLevel = cpu.BreakInterruptLevel
	KindTrapA          = cpu.BreakTrapA
	KindTrapF          = cpu.BreakTrapF
)

// Breakpoint is a debugger.Debugger-owned breakpoint entry, reusing
// cpu.Breakpoint's shape so execution breakpoints can be mirrored straight
// into the CPU core's own pre-fetch gate.
type Breakpoint = cpu.Breakpoint

// Hit is returned by Step when any breakpoint kind fires during the step,
// whether from the CPU core's own execution gate or from this package's
// bus-access/trap/interrupt-level checks.
type Hit struct {
	Breakpoint Breakpoint
}

func (Hit) Error() string { return "debugger: breakpoint hit" }

// bus is the subset of cpubus.CPUBus the Debugger wraps as a decorator so
// that bus-read/bus-write breakpoints can be checked on the access path
// itself, per spec.md §3's breakpoint set semantics.
type bus interface {
	cpubus.CPUBus
}

// Debugger decorates a concrete bus with breakpoint checking and owns the
// full breakpoint set; the emulator constructs its CPU core against the
// Debugger rather than against the bus directly.
type Debugger struct {
	bus bus
	cpu *cpu.CPU

	breakpoints []Breakpoint

	pendingBusHit *Breakpoint

	busTraceEnabled bool
	busTrace        []BusAccess
}

// BusAccess records one bus transaction for the bus-trace surface.
type BusAccess struct {
	Address uint32
	Width   cpubus.Width
	Write   bool
	Value   uint32
}

const busTraceCapacity = 2048

// New creates a Debugger wrapping b, to be handed to cpu.New in place of
// the raw bus.
func New(b bus) *Debugger {
	return &Debugger{bus: b}
}

// BindCPU associates the CPU core constructed against this Debugger, so
// that execution breakpoints and trace mode can be mirrored into it.
func (d *Debugger) BindCPU(c *cpu.CPU) { d.cpu = c }

// AddBreakpoint installs bp (assigning a fresh uuid if unset) and mirrors
// execution breakpoints into the bound CPU core's own pre-fetch gate.
func (d *Debugger) AddBreakpoint(bp Breakpoint) Breakpoint {
	if bp.ID == uuid.Nil {
		bp.ID = uuid.New()
	}
	d.breakpoints = append(d.breakpoints, bp)
	if bp.Kind == KindExecution && d.cpu != nil {
		d.cpu.AddBreakpoint(bp)
	}
	return bp
}

// RemoveBreakpoint deletes the breakpoint with the given ID from both this
// package's set and, if applicable, the CPU core's execution gate.
func (d *Debugger) RemoveBreakpoint(id uuid.UUID) {
	for i, bp := range d.breakpoints {
		if bp.ID == id {
			d.breakpoints = append(d.breakpoints[:i], d.breakpoints[i+1:]...)
			if bp.Kind == KindExecution && d.cpu != nil {
				d.cpu.RemoveBreakpoint(id)
			}
			return
		}
	}
}

// ListBreakpoints returns a copy of the current breakpoint set.
func (d *Debugger) ListBreakpoints() []Breakpoint {
	out := make([]Breakpoint, len(d.breakpoints))
	copy(out, d.breakpoints)
	return out
}

func (d *Debugger) busBreakpointFor(addr uint32, write bool) (Breakpoint, bool) {
	for _, bp := range d.breakpoints {
		if bp.Address != addr {
			continue
		}
		switch bp.Kind {
		case KindBusReadWrite:
			return bp, true
		case KindBusRead:
			if !write {
				return bp, true
			}
		case KindBusWrite:
			if write {
				return bp, true
			}
		}
	}
	return Breakpoint{}, false
}

// Read implements cpubus.CPUBus, checking bus-read breakpoints before
// delegating to the wrapped bus.
func (d *Debugger) Read(addr uint32, width cpubus.Width) (uint32, error) {
	if bp, ok := d.busBreakpointFor(addr, false); ok {
		d.pendingBusHit = &bp
	}
	v, err := d.bus.Read(addr, width)
	d.recordTrace(addr, width, false, v)
	return v, err
}

// Write implements cpubus.CPUBus, checking bus-write breakpoints before
// delegating to the wrapped bus.
func (d *Debugger) Write(addr uint32, width cpubus.Width, value uint32) error {
	if bp, ok := d.busBreakpointFor(addr, true); ok {
		d.pendingBusHit = &bp
	}
	err := d.bus.Write(addr, width, value)
	d.recordTrace(addr, width, true, value)
	return err
}

func (d *Debugger) recordTrace(addr uint32, width cpubus.Width, write bool, value uint32) {
	if !d.busTraceEnabled {
		return
	}
	entry := BusAccess{Address: addr, Width: width, Write: write, Value: value}
	if len(d.busTrace) >= busTraceCapacity {
		d.busTrace = d.busTrace[1:]
	}
	d.busTrace = append(d.busTrace, entry)
}

// ToggleBusTrace turns bus-access tracing on or off.
func (d *Debugger) ToggleBusTrace() bool {
	d.busTraceEnabled = !d.busTraceEnabled
	if !d.busTraceEnabled {
		d.busTrace = nil
	}
	return d.busTraceEnabled
}

// BusTrace returns the recorded bus-access trace.
func (d *Debugger) BusTrace() []BusAccess {
	out := make([]BusAccess, len(d.busTrace))
	copy(out, d.busTrace)
	return out
}

// ToggleHistory turns systrap history recording on or off in the bound CPU
// core.
func (d *Debugger) ToggleHistory() bool {
	if d.cpu == nil {
		return false
	}
	enabled := !d.cpu.HistoryEnabled()
	d.cpu.SetHistoryEnabled(enabled)
	return enabled
}

// History returns the CPU core's systrap history ring buffer contents.
func (d *Debugger) History() []cpu.SystrapEntry {
	if d.cpu == nil {
		return nil
	}
	return d.cpu.History()
}

// Step executes one CPU instruction and surfaces whichever breakpoint kind
// fired first: the CPU core's own execution-breakpoint pre-fetch gate, or
// a bus-read/bus-write breakpoint triggered during the instruction's own
// memory accesses. Trap-A/trap-F breakpoints are checked against the
// instruction just retired via the systrap history, per spec.md §3.
func (d *Debugger) Step() (Hit, bool, error) {
	d.pendingBusHit = nil

	start := d.cpu.Now()
	spent, err := d.cpu.Step()
	_ = spent

	if d.pendingBusHit != nil {
		hit := Hit{Breakpoint: *d.pendingBusHit}
		d.pendingBusHit = nil
		return hit, true, err
	}

	if hist := d.cpu.History(); len(hist) > 0 && hist[len(hist)-1].Tick >= start {
		if bp, ok := d.trapBreakpointHit(); ok {
			return Hit{Breakpoint: bp}, true, err
		}
	}

	if hit, ok := err.(cpu.BreakpointHit); ok {
		return Hit{Breakpoint: hit.Breakpoint}, true, nil
	}

	return Hit{}, false, err
}

func (d *Debugger) trapBreakpointHit() (Breakpoint, bool) {
	hist := d.cpu.History()
	if len(hist) == 0 {
		return Breakpoint{}, false
	}
	last := hist[len(hist)-1]
	for _, bp := range d.breakpoints {
		switch bp.Kind {
		case KindTrapA:
			if last.Opcode >= 0xA000 && last.Opcode < 0xB000 && uint32(last.Opcode&0x0FFF) == bp.Address {
				return bp, true
			}
		case KindTrapF:
			if last.Opcode >= 0xF000 && uint32(last.Opcode&0x0FFF) == bp.Address {
				return bp, true
			}
		}
	}
	return Breakpoint{}, false
}

// InterruptLevelBreakpoint reports whether level matches an
// interrupt-level breakpoint. Step does not call it; interrupt-level
// breakpoints are only reported through this method.
func (d *Debugger) InterruptLevelBreakpoint(level int) (Breakpoint, bool) {
	for _, bp := range d.breakpoints {
		if bp.Kind == KindInterruptLevel && bp.Level == level {
			return bp, true
		}
	}
	return Breakpoint{}, false
}
