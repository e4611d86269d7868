// Package registers implements the 68000 register file: eight data
// registers, eight address registers (A7 aliased to USP or SSP by the
// supervisor bit), the program counter and the status register.
package registers

import "fmt"

// StatusRegister is the 68000's 16-bit SR: condition codes in the low byte,
// supervisor/trace/interrupt-mask in the high byte.
type StatusRegister struct {
	C bool // carry
	V bool // overflow
	Z bool // zero
	N bool // negative
	X bool // extend

	Supervisor bool
	Trace      bool
	IntMask    uint8 // 3-bit interrupt priority mask
}

// Word packs the status register into the 68000's 16-bit SR layout.
func (s StatusRegister) Word() uint16 {
	var w uint16
	if s.C {
		w |= 1 << 0
	}
	if s.V {
		w |= 1 << 1
	}
	if s.Z {
		w |= 1 << 2
	}
	if s.N {
		w |= 1 << 3
	}
	if s.X {
		w |= 1 << 4
	}
	w |= uint16(s.IntMask&0x7) << 8
	if s.Supervisor {
		w |= 1 << 13
	}
	if s.Trace {
		w |= 1 << 15
	}
	return w
}

// SetWord unpacks a 16-bit SR value into the status register.
func (s *StatusRegister) SetWord(w uint16) {
	s.C = w&(1<<0) != 0
	s.V = w&(1<<1) != 0
	s.Z = w&(1<<2) != 0
	s.N = w&(1<<3) != 0
	s.X = w&(1<<4) != 0
	s.IntMask = uint8((w >> 8) & 0x7)
	s.Supervisor = w&(1<<13) != 0
	s.Trace = w&(1<<15) != 0
}

func (s StatusRegister) String() string {
	flag := func(b bool, c string) string {
		if b {
			return c
		}
		return "-"
	}
	return fmt.Sprintf("%s%s%s%s%s %s im=%d",
		flag(s.Trace, "T"), flag(s.Supervisor, "S"),
		flag(s.X, "X"), flag(s.N, "N"), flag(s.Z, "Z"),
		flag(s.V, "V")+flag(s.C, "C"), s.IntMask)
}

// File is the complete, observable 68000 register file. A debugger obtains
// a read-only view by copying this struct by value (see File.Snapshot).
type File struct {
	D [8]uint32
	A [8]uint32

	// USP and SSP are the two banks that A7 aliases between, selected by
	// SR.Supervisor.
	USP uint32
	SSP uint32

	PC uint32
	SR StatusRegister
}

// A7 returns the current value of A7, resolved against the active stack
// pointer bank.
func (f *File) A7() uint32 {
	if f.SR.Supervisor {
		return f.SSP
	}
	return f.USP
}

// SetA7 writes through to the active stack pointer bank.
func (f *File) SetA7(v uint32) {
	if f.SR.Supervisor {
		f.SSP = v
	} else {
		f.USP = v
	}
	f.A[7] = v
}

// Snapshot returns a copy of the register file, safe for a debugger to hold
// without synchronizing with the CPU.
func (f File) Snapshot() File {
	return f
}
