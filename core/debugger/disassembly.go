package debugger

import (
	"fmt"

	"github.com/snowmac/snow/core/bus/cpubus"
)

// Instruction is one decoded entry of a Disassemble response.
type Instruction struct {
	Address uint32
	Opcode  uint16
	Text    string
}

// inspectable is implemented by concrete buses that support the
// side-effect-free debugger read path; when the wrapped bus doesn't
// implement it, Disassemble falls back to the (side-effecting) Read path,
// which is still safe for ROM/DRAM-only disassembly targets.
type inspectable interface {
	InspectRead(addr uint32, width cpubus.Width) (uint32, error)
}

// Disassemble decodes count instructions starting at addr, using the
// bound bus's side-effect-free read path where available.
func (d *Debugger) Disassemble(addr uint32, count int) []Instruction {
	out := make([]Instruction, 0, count)
	pc := addr
	for i := 0; i < count; i++ {
		opcode, ok := d.peekWord(pc)
		if !ok {
			break
		}
		out = append(out, Instruction{
			Address: pc,
			Opcode:  opcode,
			Text:    mnemonicFor(opcode),
		})
		pc += 2
	}
	return out
}

// NextCode returns the raw bytes surrounding addr, used by the disassembler
// UI to show an instruction's operand bytes.
func (d *Debugger) NextCode(addr uint32, count int) []byte {
	out := make([]byte, 0, count)
	for i := 0; i < count; i++ {
		v, ok := d.peekWord(addr + uint32(i&^1))
		if !ok {
			break
		}
		if i%2 == 0 {
			out = append(out, byte(v>>8))
		} else {
			out = append(out, byte(v))
		}
	}
	return out
}

func (d *Debugger) peekWord(addr uint32) (uint16, bool) {
	if ib, ok := d.bus.(inspectable); ok {
		v, err := ib.InspectRead(addr, cpubus.Word)
		if err != nil {
			return 0, false
		}
		return uint16(v), true
	}
	v, err := d.bus.Read(addr, cpubus.Word)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// mnemonicFor gives a coarse textual name for most of the opcode classes
// this core implements; other encodings are shown as raw DC.W. A DC.W line
// is not necessarily illegal to the core: ORI/ANDI to SR are executed and
// line-A/line-F words raise their trap exceptions.
func mnemonicFor(opcode uint16) string {
	switch {
	case opcode == 0x4E71:
		return "NOP"
	case opcode == 0x4E75:
		return "RTS"
	case opcode == 0x4E73:
		return "RTE"
	case opcode == 0x4E70:
		return "RESET"
	case opcode&0xFFC0 == 0x4E80:
		return "JSR"
	case opcode&0xFFC0 == 0x4EC0:
		return "JMP"
	case opcode&0xF1C0 == 0x41C0:
		return "LEA"
	case opcode&0xFF00 == 0x4200:
		return "CLR"
	case opcode&0xFFF0 == 0x4E40:
		return fmt.Sprintf("TRAP #%d", opcode&0xF)
	case opcode&0xF000 == 0x1000:
		return "MOVE.B"
	case opcode&0xF000 == 0x2000:
		return "MOVE.L"
	case opcode&0xF000 == 0x3000:
		return "MOVE.W"
	case opcode&0xF000 == 0x5000:
		if opcode&0x0100 != 0 {
			return "SUBQ"
		}
		return "ADDQ"
	case opcode&0xF000 == 0x6000:
		return "Bcc"
	case opcode&0xF000 == 0x7000:
		return "MOVEQ"
	case opcode&0xF000 == 0x9000:
		return "SUB"
	case opcode&0xF000 == 0xB000:
		return "CMP"
	case opcode&0xF000 == 0xD000:
		return "ADD"
	case opcode&0xF000 == 0xA000:
		return fmt.Sprintf("DC.W $%04X (A-line)", opcode)
	case opcode&0xF000 == 0xF000:
		return fmt.Sprintf("DC.W $%04X (F-line)", opcode)
	default:
		return fmt.Sprintf("DC.W $%04X", opcode)
	}
}
