package cpu

import "github.com/snowmac/snow/core/bus/cpubus"

// opSize is the operand width encoded in most 68000 opcode size fields
// (00=byte, 01=word, 10=long).
type opSize int

const (
	sizeByte opSize = 0
	sizeWord opSize = 1
	sizeLong opSize = 2
)

func busWidthFor(size opSize) cpubus.Width {
	switch size {
	case sizeByte:
		return cpubus.Byte
	case sizeWord:
		return cpubus.Word
	default:
		return cpubus.Long
	}
}

func maskToSize(v uint32, size opSize) uint32 {
	switch size {
	case sizeByte:
		return v & 0xFF
	case sizeWord:
		return v & 0xFFFF
	default:
		return v
	}
}

// mergeSize writes result's low `size` bytes into dst, preserving dst's
// upper bytes (the 68000 never touches more of a data register than the
// operand size names).
func mergeSize(dst, result uint32, size opSize) uint32 {
	switch size {
	case sizeByte:
		return (dst &^ 0xFF) | (result & 0xFF)
	case sizeWord:
		return (dst &^ 0xFFFF) | (result & 0xFFFF)
	default:
		return result
	}
}

func signExtend(v uint32, size opSize) int32 {
	switch size {
	case sizeByte:
		return int32(int8(v))
	case sizeWord:
		return int32(int16(v))
	default:
		return int32(v)
	}
}

func isNegative(v uint32, size opSize) bool {
	return signExtend(v, size) < 0
}

// readOperand fetches the value addressed by (mode, reg) at the given
// size, covering data-register-direct, address-register-direct,
// address-register-indirect (with optional post-increment/pre-decrement),
// and absolute long addressing — the modes exercised by this core's
// opcode subset.
func (c *CPU) readOperand(mode, reg int, size opSize) (uint32, error) {
	switch mode {
	case 0: // Dn
		return maskToSize(c.Regs.D[reg], size), nil
	case 1: // An
		return maskToSize(c.Regs.A[reg], size), nil
	case 2: // (An)
		return c.readMemSized(c.Regs.A[reg], size)
	case 3: // (An)+
		v, err := c.readMemSized(c.Regs.A[reg], size)
		if err != nil {
			return 0, err
		}
		c.Regs.A[reg] += operandStep(size, reg)
		return v, nil
	case 4: // -(An)
		c.Regs.A[reg] -= operandStep(size, reg)
		return c.readMemSized(c.Regs.A[reg], size)
	case 7:
		if reg == 4 { // immediate
			return c.fetchImmediate(size)
		}
		if reg == 1 { // absolute long
			addr, err := c.fetchWordPair()
			if err != nil {
				return 0, err
			}
			return c.readMemSized(addr, size)
		}
	}
	return 0, cpubus.ErrBusError
}

// writeOperand stores value at (mode, reg); only the modes readOperand
// supports for destinations (Dn, An, (An), (An)+, -(An), absolute long)
// are implemented.
func (c *CPU) writeOperand(mode, reg int, size opSize, value uint32) error {
	switch mode {
	case 0:
		c.Regs.D[reg] = mergeSize(c.Regs.D[reg], value, size)
		return nil
	case 1:
		c.Regs.A[reg] = maskToSize(value, sizeLong)
		return nil
	case 2:
		return c.writeMemSized(c.Regs.A[reg], size, value)
	case 3:
		if err := c.writeMemSized(c.Regs.A[reg], size, value); err != nil {
			return err
		}
		c.Regs.A[reg] += operandStep(size, reg)
		return nil
	case 4:
		c.Regs.A[reg] -= operandStep(size, reg)
		return c.writeMemSized(c.Regs.A[reg], size, value)
	case 7:
		if reg == 1 {
			addr, err := c.fetchWordPair()
			if err != nil {
				return err
			}
			return c.writeMemSized(addr, size, value)
		}
	}
	return cpubus.ErrBusError
}

// effectiveAddress computes the address named by an opcode's mode/reg
// field for control instructions (JSR/JMP/LEA): address-register-indirect
// and absolute long.
func (c *CPU) effectiveAddress(opcode uint16, size opSize) (uint32, error) {
	mode := int((opcode >> 3) & 0x7)
	reg := int(opcode & 0x7)
	switch mode {
	case 2:
		return c.Regs.A[reg], nil
	case 7:
		if reg == 1 {
			return c.fetchWordPair()
		}
		if reg == 2 { // PC-relative with displacement
			disp, err := c.fetchWord(c.Regs.PC)
			if err != nil {
				return 0, err
			}
			return c.Regs.PC - 2 + uint32(int32(int16(disp))), nil
		}
	}
	return 0, cpubus.ErrBusError
}

// operandStep returns the post-increment/pre-decrement step for a given
// size and register; A7 always steps by at least 2 to keep the stack
// word-aligned, per the 68000's documented exception to byte-sized
// address-register stepping.
func operandStep(size opSize, reg int) uint32 {
	switch size {
	case sizeByte:
		if reg == 7 {
			return 2
		}
		return 1
	case sizeWord:
		return 2
	default:
		return 4
	}
}

func (c *CPU) fetchImmediate(size opSize) (uint32, error) {
	switch size {
	case sizeByte, sizeWord:
		v, err := c.fetchWord(c.Regs.PC)
		if err != nil {
			return 0, err
		}
		return maskToSize(uint32(v), size), nil
	default:
		return c.fetchWordPair()
	}
}

func (c *CPU) fetchWordPair() (uint32, error) {
	hi, err := c.fetchWord(c.Regs.PC)
	if err != nil {
		return 0, err
	}
	lo, err := c.fetchWord(c.Regs.PC)
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

func (c *CPU) readMemSized(addr uint32, size opSize) (uint32, error) {
	return c.busRead(addr, busWidthFor(size))
}

func (c *CPU) writeMemSized(addr uint32, size opSize, value uint32) error {
	return c.busWrite(addr, busWidthFor(size), maskToSize(value, size))
}
