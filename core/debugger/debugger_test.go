package debugger_test

import (
	"testing"

	"github.com/snowmac/snow/core/bus/cpubus"
	"github.com/snowmac/snow/core/cpu"
	"github.com/snowmac/snow/core/debugger"
	"github.com/snowmac/snow/test"
)

type flatBus struct{ mem []byte }

func newFlatBus(size int) *flatBus { return &flatBus{mem: make([]byte, size)} }

func (b *flatBus) Read(addr uint32, width cpubus.Width) (uint32, error) {
	switch width {
	case cpubus.Byte:
		return uint32(b.mem[addr]), nil
	case cpubus.Word:
		return uint32(b.mem[addr])<<8 | uint32(b.mem[addr+1]), nil
	default:
		return uint32(b.mem[addr])<<24 | uint32(b.mem[addr+1])<<16 |
			uint32(b.mem[addr+2])<<8 | uint32(b.mem[addr+3]), nil
	}
}

func (b *flatBus) Write(addr uint32, width cpubus.Width, value uint32) error {
	switch width {
	case cpubus.Byte:
		b.mem[addr] = byte(value)
	case cpubus.Word:
		b.mem[addr] = byte(value >> 8)
		b.mem[addr+1] = byte(value)
	default:
		b.mem[addr] = byte(value >> 24)
		b.mem[addr+1] = byte(value >> 16)
		b.mem[addr+2] = byte(value >> 8)
		b.mem[addr+3] = byte(value)
	}
	return nil
}

func setup(t *testing.T) (*debugger.Debugger, *cpu.CPU) {
	raw := newFlatBus(0x10000)
	raw.Write(0x0, cpubus.Long, 0x8000)
	raw.Write(0x4, cpubus.Long, 0x400)
	raw.Write(0x400, cpubus.Word, 0x7000) // MOVEQ #0, D0

	dbg := debugger.New(raw)
	c := cpu.New(dbg)
	dbg.BindCPU(c)
	test.ExpectSuccess(t, c.Reset())
	return dbg, c
}

func TestBusWriteBreakpointIgnoresUnrelatedAddress(t *testing.T) {
	dbg, _ := setup(t)
	// MOVEQ #0,D0 at 0x400 only touches PC fetches, not data memory, so no
	// breakpoint at an unrelated address should fire.
	dbg.AddBreakpoint(debugger.Breakpoint{Kind: debugger.KindBusWrite, Address: 0x500})

	_, ok, err := dbg.Step()
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, ok, false)
}

func TestDisassembleNamesKnownOpcode(t *testing.T) {
	dbg, _ := setup(t)
	insns := dbg.Disassemble(0x400, 1)
	test.ExpectEquality(t, len(insns), 1)
	test.ExpectEquality(t, insns[0].Text, "MOVEQ")
}

func TestExecutionBreakpointSurfacesAsHit(t *testing.T) {
	dbg, _ := setup(t)
	dbg.AddBreakpoint(debugger.Breakpoint{Kind: debugger.KindExecution, Address: 0x400})

	_, ok, _ := dbg.Step()
	test.ExpectEquality(t, ok, true)
}
