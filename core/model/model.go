// Package model describes the immutable per-machine configuration of a
// compact Macintosh: RAM size, peripheral complement and the memory
// interleave ratio that governs how the CPU and video engine share DRAM.
package model

// Type identifies one member of the compact Macintosh family.
type Type int

const (
	Mac128K Type = iota
	Mac512K
	MacPlus
	MacSE
	MacClassic
)

func (t Type) String() string {
	switch t {
	case Mac128K:
		return "Macintosh 128K"
	case Mac512K:
		return "Macintosh 512K"
	case MacPlus:
		return "Macintosh Plus"
	case MacSE:
		return "Macintosh SE"
	case MacClassic:
		return "Macintosh Classic"
	default:
		return "unknown"
	}
}

// Interleave describes the CPU/video DRAM arbitration ratio for a model, per
// spec.md §4.2: the CPU may access DRAM on a tick iff tick mod Period >=
// CPUFrom.
type Interleave struct {
	Period  uint64
	CPUFrom uint64
}

// Patch describes an (address, value) ROM patch applied at load time, used
// by some models to disable the ROM's RAM self-test so that emulation starts
// faster.
type Patch struct {
	Address uint32
	Value   uint8
}

// Descriptor is the immutable configuration for one Mac model. It is created
// once, at machine construction, and never mutated afterwards.
type Descriptor struct {
	Type Type

	RAMSize uint32

	HasSCSI bool
	HasADB  bool

	// DoubleSidedFloppy is true for models whose internal floppy drive
	// supports 800 KB double-sided disks (Plus, SE, Classic); the 128K and
	// 512K are single-sided.
	DoubleSidedFloppy bool

	Keymap string

	Interleave Interleave

	RAMTestPatch *Patch
}

// Descriptors is the built-in table of model descriptors.
var Descriptors = map[Type]Descriptor{
	Mac128K: {
		Type:              Mac128K,
		RAMSize:           128 * 1024,
		HasSCSI:           false,
		HasADB:            false,
		DoubleSidedFloppy: false,
		Keymap:            "aekm0110",
		Interleave:        Interleave{Period: 8, CPUFrom: 4},
	},
	Mac512K: {
		Type:              Mac512K,
		RAMSize:           512 * 1024,
		HasSCSI:           false,
		HasADB:            false,
		DoubleSidedFloppy: false,
		Keymap:            "aekm0110",
		Interleave:        Interleave{Period: 8, CPUFrom: 4},
	},
	MacPlus: {
		Type:              MacPlus,
		RAMSize:           4 * 1024 * 1024,
		HasSCSI:           true,
		HasADB:            false,
		DoubleSidedFloppy: true,
		Keymap:            "aekm0110",
		Interleave:        Interleave{Period: 8, CPUFrom: 4},
		RAMTestPatch:      &Patch{Address: 0x0002AF8A, Value: 0x60},
	},
	MacSE: {
		Type:              MacSE,
		RAMSize:           4 * 1024 * 1024,
		HasSCSI:           true,
		HasADB:            true,
		DoubleSidedFloppy: true,
		Keymap:            "aekm0115",
		Interleave:        Interleave{Period: 16, CPUFrom: 4},
	},
	MacClassic: {
		Type:              MacClassic,
		RAMSize:           4 * 1024 * 1024,
		HasSCSI:           true,
		HasADB:            true,
		DoubleSidedFloppy: true,
		Keymap:            "aekm0115",
		Interleave:        Interleave{Period: 16, CPUFrom: 4},
	},
}

// CPUMayAccessDRAM implements the interleave rule of spec.md §4.2 and §8's
// quantified invariant: the CPU may access DRAM on tick t iff
// t mod Period >= CPUFrom.
func (d Descriptor) CPUMayAccessDRAM(t uint64) bool {
	return t%d.Interleave.Period >= d.Interleave.CPUFrom
}
