// Package keymap translates the "universal" keyboard scancode space
// (identical to the Apple Extended Keyboard M0115) into the scancode space
// a specific physical keyboard expects, per spec.md §6.
package keymap

// Scancode is a single keyboard scancode, in whichever space its Keymap
// names.
type Scancode = uint8

// Keymap names a target keyboard scancode space.
type Keymap int

const (
	// Universal is the Snow core's native scancode space; it is identical
	// to AekM0115 and requires no translation.
	Universal Keymap = iota
	// AekM0115 is the Apple Extended Keyboard (ADB), used by SE/Classic.
	AekM0115
	// AkM0110 is the Apple M0110 keyboard, used by 128K/512K/Plus.
	AkM0110
)

// Translate converts a universal-space scancode into km's space. The
// second return value is false if km has no equivalent key (the event
// should be silently dropped, per spec.md §6).
func (km Keymap) Translate(sc Scancode) (Scancode, bool) {
	switch km {
	case Universal, AekM0115:
		return sc, true
	case AkM0110:
		return akm0110Translate(sc)
	default:
		return 0, false
	}
}

// akm0110Translate maps M0115/universal scancodes to the M0110's smaller
// key set, grounded on the Apple M0110 protocol tables.
func akm0110Translate(sc Scancode) (Scancode, bool) {
	v, ok := akm0110Table[sc]
	return v, ok
}

var akm0110Table = map[Scancode]Scancode{
	0x32: 0x65, 0x12: 0x25, 0x13: 0x27, 0x14: 0x29, 0x15: 0x2B, 0x17: 0x2F,
	0x16: 0x2D, 0x1A: 0x35, 0x1C: 0x39, 0x19: 0x33, 0x1D: 0x3B, 0x1B: 0x37,
	0x18: 0x31, 0x33: 0x67,

	0x30: 0x61, 0x0C: 0x19, 0x0D: 0x1B, 0x0E: 0x1D, 0x0F: 0x1F, 0x11: 0x23,
	0x10: 0x21, 0x20: 0x41, 0x22: 0x45, 0x1F: 0x3F, 0x23: 0x47, 0x21: 0x43,
	0x1E: 0x3D, 0x2A: 0x55,

	0x39: 0x73, 0x00: 0x01, 0x01: 0x03, 0x02: 0x05, 0x03: 0x07, 0x05: 0x0B,
	0x04: 0x09, 0x26: 0x4D, 0x28: 0x51, 0x25: 0x4B, 0x29: 0x53, 0x27: 0x4F,
	0x24: 0x49,

	0x38: 0x71, 0x06: 0x0D, 0x07: 0x0F, 0x08: 0x11, 0x09: 0x13, 0x0B: 0x17,
	0x2D: 0x5B, 0x2E: 0x5D, 0x2B: 0x57, 0x2F: 0x5F, 0x2C: 0x59, 0x7B: 0x71,

	0x3A: 0x75, 0x37: 0x6F, 0x31: 0x63, 0x7C: 0x75,
}
