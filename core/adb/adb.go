// Package adb implements the Apple Desktop Bus transceiver: the two-line
// bus-phase state machine and the keyboard/mouse device models, per
// spec.md §4.9.
package adb

// BusState is the transceiver's bus phase, derived from the two state
// lines (ST1, ST0).
type BusState int

const (
	StateIdle BusState = iota
	StateTransmit
	StateAck
	StateReceive
)

func busStateFor(st1, st0 bool) BusState {
	switch {
	case st1 && st0:
		return StateIdle
	case !st1 && !st0:
		return StateTransmit
	case st1 && !st0:
		return StateAck
	default:
		return StateReceive
	}
}

// Command is an ADB command code (lower nibble of the command byte): bits
// 3..2 select Reset/Flush (type 0), Listen (type 2), or Talk (type 3);
// bits 1..0 select the register for Listen/Talk.
type Command int

const (
	CmdReset   Command = 0x0
	CmdFlush   Command = 0x1
	CmdListen0 Command = 0x8
	CmdListen1 Command = 0x9
	CmdListen2 Command = 0xA
	CmdListen3 Command = 0xB
	CmdTalk0   Command = 0xC
	CmdTalk1   Command = 0xD
	CmdTalk2   Command = 0xE
	CmdTalk3   Command = 0xF
)

// Device is implemented by keyboard and mouse models.
type Device interface {
	Reset()
	Flush()
	Talk(reg int) []byte
	Listen(reg int, data []byte)
	ServiceRequestPending() bool
}

const maxDevices = 16

// Transceiver is the ADB host controller.
type Transceiver struct {
	st1, st0 bool
	state    BusState

	devices [maxDevices]Device

	pendingAddr int
	pendingCmd  int
	haveCmd     bool

	replyBuf []byte
	replyIdx int
}

// New creates a transceiver with the bus idle and no devices attached.
func New() *Transceiver {
	return &Transceiver{st1: true, st0: true, state: StateIdle}
}

// Attach installs dev at ADB address addr (0..15).
func (t *Transceiver) Attach(addr int, dev Device) {
	if addr < 0 || addr >= maxDevices {
		return
	}
	t.devices[addr] = dev
}

// State returns the transceiver's current bus phase.
func (t *Transceiver) State() BusState { return t.state }

// SetLines drives the ST1/ST0 state lines; a rising edge on either line
// triggers the corresponding host-side action per spec.md §4.9.
func (t *Transceiver) SetLines(st1, st0 bool) {
	risingEither := (st1 && !t.st1) || (st0 && !t.st0)
	t.st1, t.st0 = st1, st0
	next := busStateFor(st1, st0)

	if risingEither && next != t.state {
		t.state = next
		switch next {
		case StateAck:
			t.respond()
		case StateReceive:
			// host pulls bytes back via ReadReplyByte; nothing to do here.
		}
	} else {
		t.state = next
	}
}

// TransmitCommandByte accepts the command byte sent while the bus is in
// Transmit phase: upper nibble is the device address, lower nibble the
// command code.
func (t *Transceiver) TransmitCommandByte(b uint8) {
	t.pendingAddr = int(b >> 4)
	t.pendingCmd = int(b & 0xF)
	t.haveCmd = true
}

// Reassign moves the device currently at from to address to, modelling a
// Listen-register-3 handler-id 0xFE address change.
func (t *Transceiver) Reassign(from, to int) {
	if from < 0 || from >= maxDevices || to < 0 || to >= maxDevices {
		return
	}
	t.devices[to] = t.devices[from]
	if from != to {
		t.devices[from] = nil
	}
}

func (t *Transceiver) respond() {
	if !t.haveCmd {
		t.replyBuf = nil
		return
	}
	dev := t.devices[t.pendingAddr]
	if dev == nil {
		t.replyBuf = nil
		return
	}

	switch {
	case t.pendingCmd == int(CmdReset):
		dev.Reset()
		t.replyBuf = nil
	case t.pendingCmd == int(CmdFlush):
		dev.Flush()
		t.replyBuf = nil
	case t.pendingCmd >= 0xC:
		reg := t.pendingCmd & 0x3
		t.replyBuf = dev.Talk(reg)
	default:
		t.replyBuf = nil
	}
	t.replyIdx = 0
}

// ReadReplyByte pulls the next byte of a Talk reply during the Receive
// phase; ok is false once the reply is exhausted.
func (t *Transceiver) ReadReplyByte() (b uint8, ok bool) {
	if t.replyIdx >= len(t.replyBuf) {
		return 0, false
	}
	b = t.replyBuf[t.replyIdx]
	t.replyIdx++
	return b, true
}

// ListenData delivers the data bytes of a Listen command to the addressed
// device's register.
func (t *Transceiver) ListenData(data []byte) {
	if !t.haveCmd || t.pendingCmd > 0xB || t.pendingCmd < 0x8 {
		return
	}
	dev := t.devices[t.pendingAddr]
	if dev == nil {
		return
	}
	reg := t.pendingCmd & 0x3
	dev.Listen(reg, data)
}

// ServiceRequestPending polls every attached device for SRQ, as the
// transceiver does between transactions.
func (t *Transceiver) ServiceRequestPending() bool {
	for _, d := range t.devices {
		if d != nil && d.ServiceRequestPending() {
			return true
		}
	}
	return false
}
