// Package cpu implements the Motorola 68000 execution core: instruction
// fetch/decode/execute, exception and interrupt handling, and the
// breakpoint/trace/systrap-history observation hooks, per spec.md §4.3.
package cpu

import (
	"github.com/google/uuid"

	"github.com/snowmac/snow/core/bus/cpubus"
	"github.com/snowmac/snow/core/registers"
	"github.com/snowmac/snow/core/tick"
)

// Vector numbers for the synchronous/asynchronous exceptions this core
// raises, per spec.md §7.
const (
	VectorReset        = 0
	VectorBusError     = 2
	VectorAddressError = 3
	VectorIllegal      = 4
	VectorZeroDivide   = 5
	VectorCHK          = 6
	VectorTrapV        = 7
	VectorPrivilege    = 8
	VectorTrace        = 9
	VectorLineA        = 10
	VectorLineF        = 11
	VectorAutovectorBase = 24 // + interrupt level, for autovectored interrupts
	VectorTrapBase     = 32 // + n, for TRAP #n
)

// BreakpointKind distinguishes the entry shapes spec.md §3 enumerates for
// the breakpoint set.
type BreakpointKind int

const (
	BreakExecution BreakpointKind = iota
	BreakBusRead
	BreakBusWrite
	BreakBusReadWrite
	BreakInterruptLevel
	BreakTrapA
	BreakTrapF
)

// Breakpoint is one entry of the debugger's breakpoint set.
type Breakpoint struct {
	ID      uuid.UUID
	Kind    BreakpointKind
	Address uint32
	Level   int
}

// SystrapEntry records one A-line/F-line trap execution for the history
// ring buffer.
type SystrapEntry struct {
	PC     uint32
	Opcode uint16
	Tick   tick.Tick
}

const systrapHistoryCapacity = 1024

// BreakpointHit is returned by Step when PC matched an execution
// breakpoint before the instruction was fetched.
type BreakpointHit struct {
	Breakpoint Breakpoint
}

func (BreakpointHit) Error() string { return "cpu: breakpoint hit" }

// CPU is the M68000 execution core.
type CPU struct {
	Regs registers.File

	bus cpubus.CPUBus

	now tick.Tick

	breakpoints []Breakpoint

	historyEnabled bool
	history        []SystrapEntry
	historyNext    int

	pendingLevel int

	// halted is set on a double bus/address fault during exception
	// processing, per spec.md §7's "double fault" user-visible failure.
	halted bool
}

// New creates a CPU core bound to bus; the core is left in its power-on
// state until Reset is called.
func New(bus cpubus.CPUBus) *CPU {
	return &CPU{bus: bus}
}

// Halted reports whether a double fault has stopped guest execution.
func (c *CPU) Halted() bool { return c.halted }

// Now returns the CPU's local view of the tick counter (kept in step with
// the owning bus via the return value of Step).
func (c *CPU) Now() tick.Tick { return c.now }

// Reset loads SSP and PC from the reset vector, clears the remaining
// register file, and enters supervisor mode with interrupts masked at
// level 7, per spec.md §4.3. Idempotent: reset() followed by reset() is
// equivalent to one reset() (spec.md §8).
func (c *CPU) Reset() error {
	ssp, err := c.busReadLong(0x0)
	if err != nil {
		return err
	}
	pc, err := c.busReadLong(0x4)
	if err != nil {
		return err
	}

	c.Regs = registers.File{}
	c.Regs.SSP = ssp
	c.Regs.SetA7(ssp)
	c.Regs.PC = pc
	c.Regs.SR.Supervisor = true
	c.Regs.SR.IntMask = 7
	c.halted = false
	return nil
}

func (c *CPU) busReadLong(addr uint32) (uint32, error) {
	for {
		v, err := c.bus.Read(addr, cpubus.Long)
		if err == cpubus.ErrWaitState {
			c.now++
			continue
		}
		return v, err
	}
}

// AddBreakpoint installs bp, assigning it a fresh ID if unset.
func (c *CPU) AddBreakpoint(bp Breakpoint) Breakpoint {
	if bp.ID == uuid.Nil {
		bp.ID = uuid.New()
	}
	c.breakpoints = append(c.breakpoints, bp)
	return bp
}

// RemoveBreakpoint deletes the breakpoint with the given ID.
func (c *CPU) RemoveBreakpoint(id uuid.UUID) {
	for i, bp := range c.breakpoints {
		if bp.ID == id {
			c.breakpoints = append(c.breakpoints[:i], c.breakpoints[i+1:]...)
			return
		}
	}
}

// Breakpoints returns a copy of the current breakpoint set.
func (c *CPU) Breakpoints() []Breakpoint {
	out := make([]Breakpoint, len(c.breakpoints))
	copy(out, c.breakpoints)
	return out
}

func (c *CPU) executionBreakpointAt(pc uint32) (Breakpoint, bool) {
	for _, bp := range c.breakpoints {
		if bp.Kind == BreakExecution && bp.Address == pc {
			return bp, true
		}
	}
	return Breakpoint{}, false
}

// SetHistoryEnabled turns systrap history recording on or off.
func (c *CPU) SetHistoryEnabled(enabled bool) {
	c.historyEnabled = enabled
}

// HistoryEnabled reports whether systrap history recording is currently on.
func (c *CPU) HistoryEnabled() bool {
	return c.historyEnabled
}

// History returns the systrap ring buffer contents in chronological order.
func (c *CPU) History() []SystrapEntry {
	if len(c.history) < systrapHistoryCapacity {
		out := make([]SystrapEntry, len(c.history))
		copy(out, c.history)
		return out
	}
	out := make([]SystrapEntry, systrapHistoryCapacity)
	copy(out, c.history[c.historyNext:])
	copy(out[systrapHistoryCapacity-c.historyNext:], c.history[:c.historyNext])
	return out
}

func (c *CPU) recordSystrap(pc uint32, opcode uint16) {
	if !c.historyEnabled {
		return
	}
	entry := SystrapEntry{PC: pc, Opcode: opcode, Tick: c.now}
	if len(c.history) < systrapHistoryCapacity {
		c.history = append(c.history, entry)
		return
	}
	c.history[c.historyNext] = entry
	c.historyNext = (c.historyNext + 1) % systrapHistoryCapacity
}

// PendingIRQ injects an interrupt request at the given level (1..7),
// consulted at the next instruction boundary. Level 7 is
// non-maskable; a level at or below the current interrupt mask is
// ignored, per spec.md §4.3.
func (c *CPU) PendingIRQ(level int) {
	if level > c.pendingLevel {
		c.pendingLevel = level
	}
}

// Step executes one instruction (servicing a pending breakpoint or
// interrupt first) and returns the number of ticks consumed.
func (c *CPU) Step() (tick.Tick, error) {
	if c.halted {
		return 0, nil
	}

	if c.pendingLevel > 0 {
		level := c.pendingLevel
		if level == 7 || level > int(c.Regs.SR.IntMask) {
			c.pendingLevel = 0
			spent, err := c.raiseException(VectorAutovectorBase + level)
			return spent, err
		}
	}

	if bp, ok := c.executionBreakpointAt(c.Regs.PC); ok {
		return 0, BreakpointHit{Breakpoint: bp}
	}

	startTick := c.now
	opcode, err := c.fetchWord(c.Regs.PC)
	if err != nil {
		return c.spentSince(startTick), c.handleBusFault(err)
	}

	if opcode >= 0xA000 && opcode < 0xB000 {
		c.recordSystrap(c.Regs.PC, opcode)
	} else if opcode >= 0xF000 {
		c.recordSystrap(c.Regs.PC, opcode)
	}

	execErr := c.execute(opcode)
	if execErr != nil {
		return c.spentSince(startTick), c.handleBusFault(execErr)
	}

	if c.Regs.SR.Trace {
		spent, err := c.raiseException(VectorTrace)
		return c.spentSince(startTick) + spent, err
	}

	return c.spentSince(startTick), nil
}

func (c *CPU) spentSince(start tick.Tick) tick.Tick {
	return c.now - start
}

func (c *CPU) handleBusFault(err error) error {
	switch err {
	case cpubus.ErrBusError:
		_, raiseErr := c.raiseException(VectorBusError)
		return raiseErr
	case cpubus.ErrAddressError:
		_, raiseErr := c.raiseException(VectorAddressError)
		return raiseErr
	default:
		return err
	}
}

// raiseException pushes SR and PC onto the supervisor stack, enters
// supervisor mode, clears trace, and loads PC from the given vector.
func (c *CPU) raiseException(vector int) (tick.Tick, error) {
	start := c.now

	wasSupervisor := c.Regs.SR.Supervisor
	c.Regs.SR.Supervisor = true
	if !wasSupervisor {
		c.Regs.USP = c.Regs.A[7]
		c.Regs.A[7] = c.Regs.SSP
	}

	sr := c.Regs.SR.Word()
	pc := c.Regs.PC

	a7 := c.Regs.A[7] - 4
	c.Regs.A[7] = a7
	if err := c.busWriteLong(a7, pc); err != nil {
		c.halted = true
		return c.spentSince(start), err
	}
	a7 -= 2
	c.Regs.A[7] = a7
	if err := c.busWriteWord(a7, uint32(sr)); err != nil {
		c.halted = true
		return c.spentSince(start), err
	}
	c.Regs.SSP = a7
	c.Regs.SR.Trace = false

	handler, err := c.busReadLong(uint32(vector) * 4)
	if err != nil {
		c.halted = true
		return c.spentSince(start), err
	}
	c.Regs.PC = handler
	return c.spentSince(start), nil
}

func (c *CPU) busWriteLong(addr, v uint32) error {
	return c.busWrite(addr, cpubus.Long, v)
}

func (c *CPU) busWriteWord(addr, v uint32) error {
	return c.busWrite(addr, cpubus.Word, v)
}

func (c *CPU) busWrite(addr uint32, width cpubus.Width, v uint32) error {
	for {
		err := c.bus.Write(addr, width, v)
		if err == cpubus.ErrWaitState {
			c.now++
			continue
		}
		return err
	}
}

func (c *CPU) busRead(addr uint32, width cpubus.Width) (uint32, error) {
	for {
		v, err := c.bus.Read(addr, width)
		if err == cpubus.ErrWaitState {
			c.now++
			continue
		}
		return v, err
	}
}

func (c *CPU) fetchWord(addr uint32) (uint16, error) {
	if addr&1 != 0 {
		return 0, cpubus.ErrAddressError
	}
	v, err := c.busRead(addr, cpubus.Word)
	if err != nil {
		return 0, err
	}
	c.Regs.PC += 2
	c.now += 4 // base fetch cost; individual instructions add EA/operand cost
	return uint16(v), nil
}
