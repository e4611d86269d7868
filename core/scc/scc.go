// Package scc implements the Z8530 SCC (Serial Communications Controller)
// channel state and the two-channel shared interrupt arbitration used by the
// compact Macintosh, per spec.md §4.6.
package scc

// Channel names the SCC's two symmetric channels.
type Channel int

const (
	A Channel = iota
	B
)

// IRQ priority, high to low, per spec.md §3 "SCC IRQ priority".
type irqSource int

const (
	srcARxSpecial irqSource = iota
	srcARxAvailable
	srcATxEmpty
	srcAExtStatus
	srcBRxSpecial
	srcBRxAvailable
	srcBTxEmpty
	srcBExtStatus
	srcNone
)

// command identifies a WR0 bits 3..5 command code.
type command uint8

const (
	cmdNull command = iota
	cmdPointHigh
	cmdResetExtStatusInt
	cmdSendAbort
	cmdIntNextRx
	cmdResetTxInt
	cmdResetError
	cmdResetHighestIUS
)

// chanState is the per-channel register file described in spec.md §3.
type chanState struct {
	sdlcMode bool
	hunt     bool
	txEnable bool
	rxEnable bool

	rxIRQPending       bool
	txIRQPending       bool
	extStatusIRQPending bool

	rxIE       bool
	txIE       bool
	extStatusIE bool

	dcd bool

	wr12, wr13, wr15 uint8

	txFIFO []uint8
	rxFIFO []uint8
}

// SCC is a two-channel Z8530.
type SCC struct {
	chans [2]chanState

	masterIE bool
	vector   uint8

	// pointer is the "pointed-to register" cursor, shared between channels
	// and reset to 0 after each non-register-0 access.
	pointer uint8
}

// NewSCC creates an SCC with both channels idle.
func NewSCC() *SCC {
	return &SCC{}
}

// WriteControl writes a control-register access. When the pointer cursor is
// at 0, value's low three bits select the register the *next* access
// targets (0 meaning "no further access needed") and bits 3..5 encode a
// command executed immediately, per spec.md §4.6; "point high" adds 8 to
// the selected register so WR8..WR15 are reachable. Once the pointer is
// non-zero, value is written to that register and the pointer resets to 0.
func (s *SCC) WriteControl(ch Channel, value uint8) {
	c := &s.chans[ch]

	if s.pointer == 0 {
		reg := value & 0x7
		cmd := command((value >> 3) & 0x7)
		switch cmd {
		case cmdPointHigh:
			reg += 8
		case cmdResetExtStatusInt:
			c.extStatusIRQPending = false
		case cmdResetTxInt:
			c.txIRQPending = false
		case cmdResetHighestIUS:
			s.resetHighestIUS()
		case cmdResetError, cmdSendAbort, cmdIntNextRx, cmdNull:
		}
		s.pointer = reg
		return
	}

	reg := s.pointer
	s.pointer = 0

	switch reg {
	case 1:
		c.extStatusIE = value&0x1 != 0
		c.txIE = value&0x2 != 0
		c.rxIE = (value>>3)&0x3 != 0
	case 3:
		c.rxEnable = value&0x1 != 0
		c.hunt = value&0x10 != 0
	case 5:
		c.txEnable = value&0x8 != 0
		c.sdlcMode = value&0x4 != 0
	case 9:
		s.masterIE = value&0x8 != 0
		if !s.masterIE {
			c.rxIRQPending = false
			c.txIRQPending = false
			c.extStatusIRQPending = false
		}
	case 12:
		c.wr12 = value
	case 13:
		c.wr13 = value
	case 15:
		c.wr15 = value
		c.extStatusIE = value&0x8 != 0 || c.extStatusIE
	}
}

func (s *SCC) resetHighestIUS() {
	if s.chans[A].rxIRQPending {
		s.chans[A].rxIRQPending = false
		return
	}
	if s.chans[A].txIRQPending {
		s.chans[A].txIRQPending = false
		return
	}
	if s.chans[A].extStatusIRQPending {
		s.chans[A].extStatusIRQPending = false
		return
	}
	if s.chans[B].rxIRQPending {
		s.chans[B].rxIRQPending = false
		return
	}
	if s.chans[B].txIRQPending {
		s.chans[B].txIRQPending = false
		return
	}
	s.chans[B].extStatusIRQPending = false
}

// ReadControl reads RR0/RR1/... per the current pointer, which is reset to 0
// after the access (except pointer 0 reads, which are idempotent anyway).
func (s *SCC) ReadControl(ch Channel) uint8 {
	c := &s.chans[ch]
	reg := s.pointer
	s.pointer = 0

	switch reg {
	case 0:
		var v uint8
		if len(c.rxFIFO) > 0 {
			v |= 0x1
		}
		if len(c.txFIFO) == 0 {
			v |= 0x4
		}
		if c.dcd {
			v |= 0x8
		}
		return v
	case 2:
		return s.vector
	case 3:
		var v uint8
		if s.chans[A].rxIRQPending {
			v |= 0x20
		}
		if s.chans[A].txIRQPending {
			v |= 0x10
		}
		if s.chans[A].extStatusIRQPending {
			v |= 0x8
		}
		if s.chans[B].rxIRQPending {
			v |= 0x4
		}
		if s.chans[B].txIRQPending {
			v |= 0x2
		}
		if s.chans[B].extStatusIRQPending {
			v |= 0x1
		}
		return v
	default:
		return 0
	}
}

// WriteData enqueues a byte to ch's TX FIFO, raising TX-pending if the
// channel is TX-enabled and both TX-IE and master-IE are set.
func (s *SCC) WriteData(ch Channel, b uint8) {
	c := &s.chans[ch]
	c.txFIFO = append(c.txFIFO, b)
	if c.txEnable && c.txIE && s.masterIE {
		c.txIRQPending = true
	}
}

// ReadData dequeues a byte from ch's RX FIFO, returning 0 if empty.
func (s *SCC) ReadData(ch Channel) uint8 {
	c := &s.chans[ch]
	if len(c.rxFIFO) == 0 {
		return 0
	}
	b := c.rxFIFO[0]
	c.rxFIFO = c.rxFIFO[1:]
	if len(c.rxFIFO) == 0 {
		c.rxIRQPending = false
	}
	return b
}

// PushRX fills ch's RX FIFO from an external bridge (modem/localtalk), only
// if the channel is RX-enabled.
func (s *SCC) PushRX(ch Channel, data []uint8) {
	c := &s.chans[ch]
	if !c.rxEnable {
		return
	}
	c.rxFIFO = append(c.rxFIFO, data...)
	if c.rxIE && s.masterIE {
		c.rxIRQPending = true
	}
}

// TakeTX drains and returns ch's pending TX bytes.
func (s *SCC) TakeTX(ch Channel) []uint8 {
	c := &s.chans[ch]
	out := c.txFIFO
	c.txFIFO = nil
	return out
}

// SetDCD updates ch's DCD line; a level change raises ext-status-pending if
// DCD IE is set.
func (s *SCC) SetDCD(ch Channel, level bool) {
	c := &s.chans[ch]
	if level != c.dcd {
		c.dcd = level
		if c.extStatusIE && s.masterIE {
			c.extStatusIRQPending = true
		}
	}
}

// IRQPending reports the highest-priority pending interrupt source, or
// false if master-IE is clear or nothing is pending (per spec.md §8's
// quantified invariant: master-IE clear implies IRQPending is always
// false).
func (s *SCC) IRQPending() bool {
	if !s.masterIE {
		return false
	}
	return s.highestPending() != srcNone
}

func (s *SCC) highestPending() irqSource {
	if !s.masterIE {
		return srcNone
	}
	switch {
	case s.chans[A].rxIRQPending:
		return srcARxAvailable
	case s.chans[A].txIRQPending:
		return srcATxEmpty
	case s.chans[A].extStatusIRQPending:
		return srcAExtStatus
	case s.chans[B].rxIRQPending:
		return srcBRxAvailable
	case s.chans[B].txIRQPending:
		return srcBTxEmpty
	case s.chans[B].extStatusIRQPending:
		return srcBExtStatus
	}
	return srcNone
}

// Vector returns the RR2-on-channel-B encoded interrupt vector, combining
// the WR9 base vector with the status bits for the highest pending source.
func (s *SCC) Vector() uint8 {
	src := s.highestPending()
	if src == srcNone {
		return s.vector
	}
	return s.vector | (uint8(src) << 1)
}

// SetVector sets the WR2 base interrupt vector register.
func (s *SCC) SetVector(v uint8) {
	s.vector = v
}
