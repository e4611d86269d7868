package scc_test

import (
	"testing"

	"github.com/snowmac/snow/core/scc"
	"github.com/snowmac/snow/test"
)

// pointAndWrite performs the two-write "point then access" sequence the Z8530
// uses to reach a non-zero register: the first WriteControl selects the
// register, the second supplies its value.
func pointAndWrite(s *scc.SCC, ch scc.Channel, reg, value uint8) {
	s.WriteControl(ch, reg)
	s.WriteControl(ch, value)
}

// TestMasterIEClearNoIRQ is the quantified invariant of spec.md §8: for all
// SCC states with master-IE clear, IRQPending() is always false.
func TestMasterIEClearNoIRQ(t *testing.T) {
	s := scc.NewSCC()

	// enable RX on both channels and IRQs, but never set master-IE (WR9
	// bit 3).
	pointAndWrite(s, scc.A, 1, 0x08|0x02|0x01) // WR1: rxIE (bits3-4), txIE, extStatusIE
	pointAndWrite(s, scc.A, 3, 0x01)           // WR3: rxEnable
	pointAndWrite(s, scc.B, 1, 0x08|0x02|0x01)
	pointAndWrite(s, scc.B, 3, 0x01)

	s.PushRX(scc.A, []uint8{0x41})
	s.PushRX(scc.B, []uint8{0x42})
	s.WriteData(scc.A, 0x01)
	s.SetDCD(scc.A, true)

	test.ExpectFailure(t, s.IRQPending())
}

func TestMasterIERaisesRXPending(t *testing.T) {
	s := scc.NewSCC()

	pointAndWrite(s, scc.A, 3, 0x01)    // rxEnable
	pointAndWrite(s, scc.A, 1, 0x08)    // rxIE
	pointAndWrite(s, scc.A, 9, 0x08)    // masterIE

	test.ExpectFailure(t, s.IRQPending())

	s.PushRX(scc.A, []uint8{0x55})
	test.ExpectSuccess(t, s.IRQPending())

	got := s.ReadData(scc.A)
	test.ExpectEquality(t, got, uint8(0x55))
	test.ExpectFailure(t, s.IRQPending())
}

func TestReadDataEmptyReturnsZero(t *testing.T) {
	s := scc.NewSCC()
	test.ExpectEquality(t, s.ReadData(scc.A), uint8(0))
}

func TestWriteDataRequiresEnableAndIE(t *testing.T) {
	s := scc.NewSCC()
	pointAndWrite(s, scc.A, 9, 0x08) // masterIE only

	s.WriteData(scc.A, 0x10)
	test.ExpectFailure(t, s.IRQPending()) // txEnable/txIE not set

	pointAndWrite(s, scc.A, 5, 0x08) // txEnable
	pointAndWrite(s, scc.A, 1, 0x02) // txIE

	s.WriteData(scc.A, 0x11)
	test.ExpectSuccess(t, s.IRQPending())

	tx := s.TakeTX(scc.A)
	test.ExpectEquality(t, tx, []uint8{0x10, 0x11})
}

func TestSCCIRQPriority(t *testing.T) {
	s := scc.NewSCC()
	pointAndWrite(s, scc.A, 9, 0x08) // masterIE
	pointAndWrite(s, scc.A, 3, 0x01)
	pointAndWrite(s, scc.A, 1, 0x08)
	pointAndWrite(s, scc.A, 5, 0x08)
	pointAndWrite(s, scc.A, 1, 0x0A) // rxIE + txIE

	s.WriteData(scc.A, 0xFF) // raises A TX pending
	s.PushRX(scc.A, []uint8{0x01}) // raises A RX pending, higher priority

	test.ExpectEquality(t, s.ReadControl(scc.A)&0x1, uint8(1)) // RR0 rx-available bit
	test.ExpectSuccess(t, s.IRQPending())
	test.ExpectEquality(t, s.Vector(), uint8(0x02)) // A RX available wins over A TX empty (0x04)
}

func TestSetDCDRaisesExtStatus(t *testing.T) {
	s := scc.NewSCC()
	pointAndWrite(s, scc.A, 9, 0x08)    // masterIE
	pointAndWrite(s, scc.A, 15, 0x08)   // extStatusIE via WR15

	test.ExpectFailure(t, s.IRQPending())
	s.SetDCD(scc.A, true)
	test.ExpectSuccess(t, s.IRQPending())
}
