// Package via implements the 6522 VIA (Versatile Interface Adapter) used by
// the compact Macintosh for keyboard/mouse lines, the sound/framebuffer
// select bits, the ROM overlay bit and the RTC's one-second tick input.
//
// Register addressing and the IRQ/timer state machine follow spec.md §4.4.
package via

import (
	"github.com/snowmac/snow/core/tick"
	"github.com/snowmac/snow/logger"
)

// Register identifies one of the sixteen addressable VIA registers, at
// fixed strides from the VIA's base address.
type Register int

const (
	RegPortB Register = iota
	RegPortA
	RegDDRB
	RegDDRA
	RegT1CounterLow
	RegT1CounterHigh
	RegT1LatchLow
	RegT1LatchHigh
	RegT2CounterLow
	RegT2CounterHigh
	RegSR
	RegACR
	RegPCR
	RegIFR
	RegIER
	RegPortANoHandshake
)

// Port A bit assignments (model-specific but constant across the compact
// Mac family for these four lines).
const (
	PA_Overlay       = 1 << 0 // ROM overlay, write-once in some models
	PA_SoundBuffer   = 1 << 3 // 0 = main, 1 = alternate sound/PWM buffer
	PA_FramebufferSel = 1 << 4
)

// Port B bit assignments.
const (
	PB_RTCData    = 1 << 0
	PB_RTCClock   = 1 << 1
	PB_RTCEnable  = 1 << 2
	PB_MouseSwitch = 1 << 3
	PB_MouseX     = 1 << 4
	PB_MouseY     = 1 << 5
	PB_SoundOff   = 1 << 7
)

// IFR/IER bit assignments used by this emulation.
const (
	IRQ_CA2 = 1 << 0
	IRQ_CA1 = 1 << 1
	IRQ_SR  = 1 << 2
	IRQ_CB2 = 1 << 3
	IRQ_CB1 = 1 << 4
	IRQ_T2  = 1 << 5
	IRQ_T1  = 1 << 6
	IRQ_Any = 1 << 7
)

// VIA holds the full register state of one 6522.
type VIA struct {
	// ModelOverlayOneShot selects whether the first write to PA_Overlay wins
	// permanently (per Open Question (b) in spec.md §9 this is adopted as
	// one-shot for all models unless a regression is observed).
	ModelOverlayOneShot bool

	ddra, ddrb uint8
	ora, orb   uint8 // output registers
	ira, irb   uint8 // input latches, updated by connected components

	t1Counter, t1Latch uint16
	t2Counter, t2Latch uint16
	t1Fired, t2Fired   bool

	sr        uint8
	srCounter int8
	srActive  bool

	ifr, ier uint8
	acr, pcr uint8

	overlayLatched bool
	overlayValue   bool

	// oneSecondLine is the last level fed to SetOneSecond (driven by the bus
	// once per simulated second); a rising edge sets IFR CA1 regardless of ACR.
	oneSecondLine bool

	// MouseButtonDown mirrors PB3 (active low in real hardware; exposed here
	// as a plain boolean, inverted at the register-read boundary).
	MouseButtonDown bool

	// Log receives notable one-shot state transitions (currently just the
	// overlay latch, since it only ever fires once per boot). Nil disables
	// logging, which is the default so that unit tests stay quiet.
	Log *logger.Logger
}

// NewVIA creates a VIA with power-on-reset state (registers undefined on
// real hardware; zeroed here for determinism).
func NewVIA() *VIA {
	return &VIA{ModelOverlayOneShot: true}
}

// Overlay reports the current state of the ROM overlay latch (PA0).
func (v *VIA) Overlay() bool {
	return v.overlayValue
}

// FramebufferSelect reports which framebuffer half is selected (PA4).
func (v *VIA) FramebufferSelect() bool {
	return v.ora&PA_FramebufferSel != 0
}

// SoundBufferSelect reports which sound buffer half is selected (PA3).
func (v *VIA) SoundBufferSelect() bool {
	return v.ora&PA_SoundBuffer != 0
}

// SoundEnabled reports whether PB7 (sound disable) is low.
func (v *VIA) SoundEnabled() bool {
	return v.orb&PB_SoundOff == 0
}

// SetRTCLine sets the incoming RTC data bit (read by the CPU via Port B).
func (v *VIA) SetRTCLine(data bool) {
	if data {
		v.irb |= PB_RTCData
	} else {
		v.irb &^= PB_RTCData
	}
}

// RTCLines returns the outgoing (data, clock, enable) lines as driven by
// Port B output register bits 0-2.
func (v *VIA) RTCLines() (data, clock, enable bool) {
	return v.orb&PB_RTCData != 0, v.orb&PB_RTCClock != 0, v.orb&PB_RTCEnable != 0
}

// SetOneSecond feeds the RTC's one-second line into CA1 (rising edge sets
// IFR bit 1 regardless of ACR configuration, as CA1 is always edge
// triggered on this platform).
func (v *VIA) SetOneSecond(level bool) {
	if level && !v.oneSecondLine {
		v.ifr |= IRQ_CA1
	}
	v.oneSecondLine = level
}

// SetMouseSwitch mirrors the mouse button state onto PB3 (active low).
func (v *VIA) SetMouseSwitch(down bool) {
	v.MouseButtonDown = down
	if !down {
		v.irb |= PB_MouseSwitch
	} else {
		v.irb &^= PB_MouseSwitch
	}
}

// ShiftKeyboardByte starts an external-clock shift of one byte into the
// shift register, as driven by the keyboard's clock line. Completion raises
// IFR bit 2.
func (v *VIA) ShiftKeyboardByte(b uint8) {
	v.sr = b
	v.srCounter = 8
	v.srActive = true
}

// IRQ reports whether the VIA's combined IRQ output line is asserted:
// (IFR & IER & 0x7F) != 0, surfaced to the CPU as interrupt level 1.
func (v *VIA) IRQ() bool {
	return v.ifr&v.ier&0x7f != 0
}

func (v *VIA) recalcIFR7() {
	if v.ifr&v.ier&0x7f != 0 {
		v.ifr |= IRQ_Any
	} else {
		v.ifr &^= IRQ_Any
	}
}

// Tick advances the VIA by n ticks, running T1/T2 and the shift register at
// the VIA's own E-clock rate (one VIA tick per VIATickDivisor master
// ticks, approximating the real ~0.8 MHz E-clock from the 8 MHz master
// clock).
const VIATickDivisor = tick.Tick(10)

func (v *VIA) Tick(n tick.Tick, acc *tick.Tick) {
	*acc += n
	for *acc >= VIATickDivisor {
		*acc -= VIATickDivisor
		v.tickOnce()
	}
}

func (v *VIA) tickOnce() {
	if v.t1Counter == 0 {
		v.t1Fired = true
		v.ifr |= IRQ_T1
		if v.acr&0x40 != 0 { // continuous mode
			v.t1Counter = v.t1Latch
			if v.acr&0x80 != 0 {
				v.orb ^= 0x80 // toggle PB7
			}
		} else {
			v.t1Counter--
		}
	} else {
		v.t1Counter--
	}

	if v.acr&0x20 == 0 { // T2 one-shot mode (timed)
		if v.t2Counter == 0 {
			v.t2Fired = true
			v.ifr |= IRQ_T2
			v.t2Counter--
		} else {
			v.t2Counter--
		}
	}

	if v.srActive && v.srCounter > 0 {
		v.srCounter--
		if v.srCounter == 0 {
			v.srActive = false
			v.ifr |= IRQ_SR
		}
	}

	v.recalcIFR7()
}

func (v *VIA) readReg(r Register) uint8 {
	switch r {
	case RegPortB:
		val := (v.orb & v.ddrb) | (v.irb &^ v.ddrb)
		return val
	case RegPortA, RegPortANoHandshake:
		val := (v.ora & v.ddra) | (v.ira &^ v.ddra)
		return val
	case RegDDRB:
		return v.ddrb
	case RegDDRA:
		return v.ddra
	case RegT1CounterLow:
		v.ifr &^= IRQ_T1
		v.recalcIFR7()
		return uint8(v.t1Counter)
	case RegT1CounterHigh:
		return uint8(v.t1Counter >> 8)
	case RegT1LatchLow:
		return uint8(v.t1Latch)
	case RegT1LatchHigh:
		return uint8(v.t1Latch >> 8)
	case RegT2CounterLow:
		v.ifr &^= IRQ_T2
		v.recalcIFR7()
		return uint8(v.t2Counter)
	case RegT2CounterHigh:
		return uint8(v.t2Counter >> 8)
	case RegSR:
		v.ifr &^= IRQ_SR
		v.recalcIFR7()
		return v.sr
	case RegACR:
		return v.acr
	case RegPCR:
		return v.pcr
	case RegIFR:
		return v.ifr
	case RegIER:
		return v.ier | 0x80
	}
	return 0
}

func (v *VIA) writeReg(r Register, val uint8) {
	switch r {
	case RegPortB:
		v.orb = val
	case RegPortA, RegPortANoHandshake:
		v.writePortA(val)
	case RegDDRB:
		v.ddrb = val
	case RegDDRA:
		v.ddra = val
	case RegT1CounterLow, RegT1LatchLow:
		v.t1Latch = (v.t1Latch & 0xff00) | uint16(val)
	case RegT1CounterHigh:
		v.t1Latch = (uint16(val) << 8) | (v.t1Latch & 0xff)
		v.t1Counter = v.t1Latch
		v.ifr &^= IRQ_T1
		v.recalcIFR7()
	case RegT1LatchHigh:
		v.t1Latch = (uint16(val) << 8) | (v.t1Latch & 0xff)
	case RegT2CounterLow:
		v.t2Latch = (v.t2Latch & 0xff00) | uint16(val)
	case RegT2CounterHigh:
		v.t2Counter = (uint16(val) << 8) | (v.t2Latch & 0xff)
		v.ifr &^= IRQ_T2
		v.recalcIFR7()
	case RegSR:
		v.ShiftKeyboardByte(val)
	case RegACR:
		v.acr = val
	case RegPCR:
		v.pcr = val
	case RegIFR:
		v.ifr &^= val & 0x7f
		v.recalcIFR7()
	case RegIER:
		if val&0x80 != 0 {
			v.ier |= val & 0x7f
		} else {
			v.ier &^= val & 0x7f
		}
		v.recalcIFR7()
	}
}

func (v *VIA) writePortA(val uint8) {
	if v.overlayLatched && v.ModelOverlayOneShot {
		// the overlay bit is sticky once written, per spec.md §4.1
		val = (val &^ PA_Overlay) | boolBit(v.overlayValue, PA_Overlay)
	} else {
		v.overlayValue = val&PA_Overlay != 0
		v.overlayLatched = true
		if v.Log != nil {
			v.Log.Logf(logger.Allow, LogTag, "overlay latched to %v", v.overlayValue)
		}
	}
	v.ora = val
}

func boolBit(b bool, mask uint8) uint8 {
	if b {
		return mask
	}
	return 0
}

// Read performs a CPU read of VIA register r.
func (v *VIA) Read(r Register) uint8 {
	return v.readReg(r)
}

// Write performs a CPU write of VIA register r.
func (v *VIA) Write(r Register, val uint8) {
	v.writeReg(r, val)
}

// InspectRead is the side-effect-free variant used by the debugger: it must
// not clear IFR latches or consume the shift register.
func (v *VIA) InspectRead(r Register) uint8 {
	switch r {
	case RegT1CounterLow:
		return uint8(v.t1Counter)
	case RegT2CounterLow:
		return uint8(v.t2Counter)
	case RegSR:
		return v.sr
	default:
		return v.readRegNoSideEffect(r)
	}
}

func (v *VIA) readRegNoSideEffect(r Register) uint8 {
	switch r {
	case RegPortB:
		return (v.orb & v.ddrb) | (v.irb &^ v.ddrb)
	case RegPortA, RegPortANoHandshake:
		return (v.ora & v.ddra) | (v.ira &^ v.ddra)
	case RegDDRB:
		return v.ddrb
	case RegDDRA:
		return v.ddra
	case RegT1CounterHigh:
		return uint8(v.t1Counter >> 8)
	case RegT1LatchLow:
		return uint8(v.t1Latch)
	case RegT1LatchHigh:
		return uint8(v.t1Latch >> 8)
	case RegT2CounterHigh:
		return uint8(v.t2Counter >> 8)
	case RegACR:
		return v.acr
	case RegPCR:
		return v.pcr
	case RegIFR:
		return v.ifr
	case RegIER:
		return v.ier | 0x80
	}
	return 0
}

// LogTag is used when the VIA logs to the central logger.
const LogTag = "via"
