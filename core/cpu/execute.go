package cpu

import "github.com/snowmac/snow/core/bus/cpubus"

// execute decodes and runs one opcode, having already been fetched (PC
// already advanced past it). This covers the instruction classes that
// exercise the exception, addressing-mode and condition-code machinery
// spec.md §4.3 requires tested; opcodes outside this subset raise an
// illegal-instruction exception, matching real 68000 behaviour for
// unimplemented encodings.
func (c *CPU) execute(opcode uint16) error {
	switch {
	case opcode == 0x4E71: // NOP
		c.now += 4
		return nil
	case opcode == 0x4E75: // RTS
		return c.opRTS()
	case opcode == 0x4E73: // RTE
		return c.opRTE()
	case opcode == 0x4E70: // RESET
		c.now += 132
		return nil
	}

	switch opcode & 0xF000 {
	case 0x0000:
		return c.executeImmediateGroup(opcode)
	case 0x1000, 0x2000, 0x3000:
		return c.opMove(opcode)
	case 0x4000:
		return c.executeMiscGroup(opcode)
	case 0x5000:
		return c.opAddqSubq(opcode)
	case 0x6000:
		return c.opBcc(opcode)
	case 0x7000:
		return c.opMoveq(opcode)
	case 0x9000:
		return c.opSub(opcode)
	case 0xB000:
		return c.opCmp(opcode)
	case 0xD000:
		return c.opAdd(opcode)
	case 0xA000, 0xF000:
		return c.executeMiscGroup(opcode)
	}

	return c.opIllegal()
}

func (c *CPU) opIllegal() error {
	_, err := c.raiseException(VectorIllegal)
	return err
}

func (c *CPU) opRTS() error {
	addr := c.Regs.A[7]
	pc, err := c.busReadLong(addr)
	if err != nil {
		return err
	}
	c.Regs.A[7] = addr + 4
	c.Regs.PC = pc
	c.now += 16
	return nil
}

func (c *CPU) opRTE() error {
	if !c.Regs.SR.Supervisor {
		_, err := c.raiseException(VectorPrivilege)
		return err
	}
	addr := c.Regs.A[7]
	sr, err := c.busRead(addr, cpubus.Word)
	if err != nil {
		return err
	}
	pc, err := c.busReadLong(addr + 2)
	if err != nil {
		return err
	}
	newSSP := addr + 6
	c.Regs.SSP = newSSP
	c.Regs.A[7] = newSSP
	c.Regs.SR.SetWord(uint16(sr))
	c.Regs.PC = pc
	if !c.Regs.SR.Supervisor {
		c.Regs.A[7] = c.Regs.USP
	}
	c.now += 20
	return nil
}

// executeMiscGroup handles the 0x4xxx opcode map: JSR, JMP, LEA, CLR,
// TRAP, TRAP A/F-line dispatch (everything not otherwise in this map's
// compact-Mac-relevant subset falls through to illegal).
func (c *CPU) executeMiscGroup(opcode uint16) error {
	switch {
	case opcode&0xFFC0 == 0x4E80: // JSR
		return c.opJSR(opcode)
	case opcode&0xFFC0 == 0x4EC0: // JMP
		return c.opJMP(opcode)
	case opcode&0xF1C0 == 0x41C0: // LEA
		return c.opLEA(opcode)
	case opcode&0xFF00 == 0x4200: // CLR
		return c.opClr(opcode)
	case opcode&0xFFF0 == 0x4E40: // TRAP #n
		n := int(opcode & 0xF)
		_, err := c.raiseException(VectorTrapBase + n)
		return err
	case opcode&0xF000 == 0xA000:
		_, err := c.raiseException(VectorLineA)
		return err
	case opcode&0xF000 == 0xF000:
		_, err := c.raiseException(VectorLineF)
		return err
	}
	return c.opIllegal()
}

func (c *CPU) opJSR(opcode uint16) error {
	addr, err := c.effectiveAddress(opcode, sizeLong)
	if err != nil {
		return err
	}
	a7 := c.Regs.A[7] - 4
	if err := c.busWriteLong(a7, c.Regs.PC); err != nil {
		return err
	}
	c.Regs.A[7] = a7
	c.Regs.PC = addr
	c.now += 16
	return nil
}

func (c *CPU) opJMP(opcode uint16) error {
	addr, err := c.effectiveAddress(opcode, sizeLong)
	if err != nil {
		return err
	}
	c.Regs.PC = addr
	c.now += 8
	return nil
}

func (c *CPU) opLEA(opcode uint16) error {
	reg := int((opcode >> 9) & 0x7)
	addr, err := c.effectiveAddress(opcode, sizeLong)
	if err != nil {
		return err
	}
	c.Regs.A[reg] = addr
	c.now += 4
	return nil
}

func (c *CPU) opClr(opcode uint16) error {
	size := opSize((opcode >> 6) & 0x3)
	mode := int((opcode >> 3) & 0x7)
	reg := int(opcode & 0x7)
	if mode == 0 {
		c.Regs.D[reg] = clearBySize(c.Regs.D[reg], size)
	} else {
		addr, err := c.effectiveAddress(opcode, size)
		if err != nil {
			return err
		}
		if err := c.busWrite(addr, busWidthFor(size), 0); err != nil {
			return err
		}
	}
	c.Regs.SR.Z = true
	c.Regs.SR.N = false
	c.Regs.SR.V = false
	c.Regs.SR.C = false
	c.now += 4
	return nil
}

func clearBySize(v uint32, size opSize) uint32 {
	switch size {
	case sizeByte:
		return v &^ 0xFF
	case sizeWord:
		return v &^ 0xFFFF
	default:
		return 0
	}
}

// opMove handles the MOVE.b/w/l opcode map (0x1000/0x2000/0x3000), covering
// the common data- and address-register-direct and simple indirect
// addressing modes.
func (c *CPU) opMove(opcode uint16) error {
	var size opSize
	switch opcode & 0xF000 {
	case 0x1000:
		size = sizeByte
	case 0x3000:
		size = sizeWord
	default:
		size = sizeLong
	}

	srcMode := int((opcode >> 3) & 0x7)
	srcReg := int(opcode & 0x7)
	dstReg := int((opcode >> 9) & 0x7)
	dstMode := int((opcode >> 6) & 0x7)

	value, err := c.readOperand(srcMode, srcReg, size)
	if err != nil {
		return err
	}

	c.Regs.SR.Z = signExtend(value, size) == 0
	c.Regs.SR.N = isNegative(value, size)
	c.Regs.SR.V = false
	c.Regs.SR.C = false

	if err := c.writeOperand(dstMode, dstReg, size, value); err != nil {
		return err
	}
	c.now += 4
	return nil
}

func (c *CPU) opMoveq(opcode uint16) error {
	reg := int((opcode >> 9) & 0x7)
	data := int8(opcode & 0xFF)
	v := uint32(int32(data))
	c.Regs.D[reg] = v
	c.Regs.SR.Z = v == 0
	c.Regs.SR.N = int32(v) < 0
	c.Regs.SR.V = false
	c.Regs.SR.C = false
	c.now += 4
	return nil
}

func (c *CPU) opAddqSubq(opcode uint16) error {
	data := int((opcode >> 9) & 0x7)
	if data == 0 {
		data = 8
	}
	size := opSize((opcode >> 6) & 0x3)
	isSub := opcode&0x0100 != 0
	mode := int((opcode >> 3) & 0x7)
	reg := int(opcode & 0x7)

	v, err := c.readOperand(mode, reg, size)
	if err != nil {
		return err
	}
	var result uint32
	if isSub {
		result = v - uint32(data)
	} else {
		result = v + uint32(data)
	}
	result = maskToSize(result, size)
	if err := c.writeOperand(mode, reg, size, result); err != nil {
		return err
	}
	c.setArithFlags(result, size)
	c.now += 4
	return nil
}

func (c *CPU) opAdd(opcode uint16) error {
	return c.arith(opcode, false)
}

func (c *CPU) opSub(opcode uint16) error {
	return c.arith(opcode, true)
}

func (c *CPU) arith(opcode uint16, isSub bool) error {
	reg := int((opcode >> 9) & 0x7)
	size := opSize((opcode >> 6) & 0x3)
	mode := int((opcode >> 3) & 0x7)
	srcReg := int(opcode & 0x7)

	operand, err := c.readOperand(mode, srcReg, size)
	if err != nil {
		return err
	}
	dst := c.Regs.D[reg]
	var result uint32
	if isSub {
		result = maskToSize(dst-operand, size)
	} else {
		result = maskToSize(dst+operand, size)
	}
	c.Regs.D[reg] = mergeSize(c.Regs.D[reg], result, size)
	c.setArithFlags(result, size)
	c.now += 4
	return nil
}

func (c *CPU) opCmp(opcode uint16) error {
	reg := int((opcode >> 9) & 0x7)
	size := opSize((opcode >> 6) & 0x3)
	mode := int((opcode >> 3) & 0x7)
	srcReg := int(opcode & 0x7)

	operand, err := c.readOperand(mode, srcReg, size)
	if err != nil {
		return err
	}
	dst := c.Regs.D[reg]
	result := maskToSize(dst-operand, size)
	c.setArithFlags(result, size)
	c.now += 4
	return nil
}

func (c *CPU) setArithFlags(result uint32, size opSize) {
	c.Regs.SR.Z = signExtend(result, size) == 0
	c.Regs.SR.N = isNegative(result, size)
}

// executeImmediateGroup handles ORI to SR (0x007C) and ANDI to SR (0x027C),
// the 0x0000 opcode map's status-register forms relevant to interrupt-mask
// and supervisor-mode tests; every other encoding in this map is illegal.
func (c *CPU) executeImmediateGroup(opcode uint16) error {
	switch opcode {
	case 0x007C: // ORI to SR
		imm, err := c.fetchWord(c.Regs.PC)
		if err != nil {
			return err
		}
		if !c.Regs.SR.Supervisor {
			_, err := c.raiseException(VectorPrivilege)
			return err
		}
		c.Regs.SR.SetWord(c.Regs.SR.Word() | imm)
		c.now += 20
		return nil
	case 0x027C: // ANDI to SR
		imm, err := c.fetchWord(c.Regs.PC)
		if err != nil {
			return err
		}
		if !c.Regs.SR.Supervisor {
			_, err := c.raiseException(VectorPrivilege)
			return err
		}
		c.Regs.SR.SetWord(c.Regs.SR.Word() & imm)
		c.now += 20
		return nil
	}
	return c.opIllegal()
}

func (c *CPU) opBcc(opcode uint16) error {
	cond := (opcode >> 8) & 0xF
	disp := int8(opcode & 0xFF)

	base := c.Regs.PC
	var target uint32
	if disp == 0 {
		ext, err := c.fetchWord(c.Regs.PC)
		if err != nil {
			return err
		}
		target = base + uint32(int32(int16(ext)))
	} else {
		target = base + uint32(int32(disp))
	}

	if cond == 1 { // BSR
		a7 := c.Regs.A[7] - 4
		if err := c.busWriteLong(a7, c.Regs.PC); err != nil {
			return err
		}
		c.Regs.A[7] = a7
		c.Regs.PC = target
		c.now += 18
		return nil
	}

	if c.conditionTrue(cond) {
		c.Regs.PC = target
	}
	c.now += 10
	return nil
}

func (c *CPU) conditionTrue(cond uint16) bool {
	sr := &c.Regs.SR
	switch cond {
	case 0x0: // BRA
		return true
	case 0x2: // BHI
		return !sr.C && !sr.Z
	case 0x3: // BLS
		return sr.C || sr.Z
	case 0x4: // BCC
		return !sr.C
	case 0x5: // BCS
		return sr.C
	case 0x6: // BNE
		return !sr.Z
	case 0x7: // BEQ
		return sr.Z
	case 0xA: // BPL
		return !sr.N
	case 0xB: // BMI
		return sr.N
	case 0xC: // BGE
		return sr.N == sr.V
	case 0xD: // BLT
		return sr.N != sr.V
	case 0xE: // BGT
		return sr.N == sr.V && !sr.Z
	case 0xF: // BLE
		return sr.N != sr.V || sr.Z
	}
	return false
}
