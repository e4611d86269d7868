package iwm

import (
	"github.com/snowmac/snow/core/tick"
)

// Mode selects between the legacy IWM register protocol and the SWIM
// extended protocol, per spec.md §4.5.
type Mode int

const (
	ModeIWM Mode = iota
	ModeSWIM
)

// handshake bits read back on the status register.
const (
	statusSense  = 0x80
	statusMZReset = 0x10
)

// Controller is the IWM/SWIM floppy controller owning both drive
// mechanisms and the eight phase lines used to address its internal
// registers, per spec.md §4.5.
type Controller struct {
	Mode Mode

	drives [2]Drive
	active int

	// phase0..phase3 are the four state-machine phase lines; in IWM's
	// register-read mode their combined value selects which status byte
	// Q6/Q7 expose.
	phase [4]bool

	q6, q7 bool

	motorOn   bool
	writeMode bool

	// mode register (SWIM only): latch mode, clock speed, etc.
	modeRegister uint8

	writeDataLatch uint8
	dataRegister   uint8

	lines *lineState
}

// lineState tracks cross-chip control lines the controller consumes from
// or feeds to the VIA, rather than holding pointers to the VIA itself (the
// owning bus aggregate wires these top-down each tick, per spec.md §9's
// no-cross-pointer design note).
type lineState struct {
	enable bool // VIA PB4: drive 1/2 select inverted... see SelectDrive
	hiFDHead bool
}

// NewController creates a two-drive IWM/SWIM controller. doubleSided
// selects whether both mechanisms are the SE/Plus-class double-sided
// 800K drives, or the 128K/512K-class single-sided 400K drives.
func NewController(doubleSided bool) *Controller {
	c := &Controller{lines: &lineState{}}
	c.drives[0] = *NewDrive(0, doubleSided)
	c.drives[1] = *NewDrive(1, doubleSided)
	if doubleSided {
		c.Mode = ModeSWIM
	}
	return c
}

// Drive returns a pointer to drive i (0 or 1).
func (c *Controller) Drive(i int) *Drive {
	return &c.drives[i]
}

// SelectDrive chooses which of the two mechanisms phase/motor/step lines
// address.
func (c *Controller) SelectDrive(i int) {
	c.active = i & 1
}

// SetPhase sets one of the four phase lines (PH0..PH3), driving the
// stepper motor direction/step pulse and (in register-read mode) the
// Q6/Q7-gated register select.
func (c *Controller) SetPhase(i int, level bool) {
	if i < 0 || i > 3 {
		return
	}
	rising := level && !c.phase[i]
	c.phase[i] = level

	if !c.writeMode && rising {
		switch i {
		case 0:
			c.drives[c.active].SetDirection(StepDown)
		case 1:
			c.drives[c.active].SetDirection(StepUp)
		case 2:
			if c.phase[0] != c.phase[1] {
				c.drives[c.active].Step()
			}
		}
	}
}

// SetQ6Q7 sets the Q6/Q7 mode-select lines, determining whether a read
// fetches the data register or a status/handshake byte.
func (c *Controller) SetQ6Q7(q6, q7 bool) {
	c.q6, c.q7 = q6, q7
}

// SetMotor enables or disables the spindle motor on the active drive.
func (c *Controller) SetMotor(on bool) {
	c.motorOn = on
	c.drives[c.active].SetMotor(on)
}

// SetWriteMode switches the controller between read and write protocol
// handling of the phase lines.
func (c *Controller) SetWriteMode(write bool) {
	c.writeMode = write
}

// ReadDataRegister returns the shifted-in data register byte (Q6=0,Q7=0 in
// IWM terms), clearing its MSB-valid flag as a real IWM would after a read.
func (c *Controller) ReadDataRegister() uint8 {
	v := c.dataRegister
	c.dataRegister = 0
	return v
}

// ReadStatus returns the IWM status register: bit 7 is set when the active
// drive has no disk, bit 5 reflects motor-on; all other bits read as zero.
func (c *Controller) ReadStatus() uint8 {
	var v uint8
	d := &c.drives[c.active]
	if !d.Present {
		v |= statusSense
	}
	if c.motorOn {
		v |= 0x20
	}
	return v
}

// WriteDataRegister shifts a byte out to the active drive's write-data
// line, bit by bit, MSB first, across the next eight Tick calls' worth of
// bit cells. For simplicity (and because the compact Mac's GCR encoder
// always primes whole encoded bytes), the byte is written atomically at
// the drive's current bit position.
func (c *Controller) WriteDataRegister(v uint8) {
	d := &c.drives[c.active]
	for i := 7; i >= 0; i-- {
		d.WriteBit(v&(1<<uint(i)) != 0)
	}
}

// Eject schedules removal of the active drive's media.
func (c *Controller) Eject() {
	c.drives[c.active].ScheduleEject()
}

// FeedPWMSample forwards a PWM duty sample (sourced from the VIA's sound
// buffer select / PWM generation path on single-sided models) to both
// drives, since only one is usually spinning at a time but both track the
// shared disk-speed PWM line in real hardware.
func (c *Controller) FeedPWMSample(duty8 uint8) {
	c.drives[0].FeedPWMSample(duty8)
	c.drives[1].FeedPWMSample(duty8)
}

// Tick advances both drive mechanisms and, while the motor is on and the
// controller is not in write mode, shifts one bit read from the active
// drive into the data register per call; there is no byte-ready gating.
func (c *Controller) Tick(n tick.Tick) {
	for i := range c.drives {
		c.drives[i].Tick(n)
		if c.drives[i].EjectDue() {
			c.drives[i].Eject()
		}
	}

	if c.motorOn && !c.writeMode {
		d := &c.drives[c.active]
		if d.ReadBit() {
			c.dataRegister = (c.dataRegister << 1) | 1
		} else {
			c.dataRegister = c.dataRegister << 1
		}
	}
}
