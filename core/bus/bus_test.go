package bus_test

import (
	"testing"

	"github.com/snowmac/snow/core/bus"
	"github.com/snowmac/snow/core/bus/cpubus"
	"github.com/snowmac/snow/core/model"
	"github.com/snowmac/snow/test"
)

func newTestBus() *bus.Bus {
	rom := make([]byte, 64*1024)
	return bus.New(model.Descriptors[model.MacPlus], rom)
}

func TestROMReadsBeforeOverlayCleared(t *testing.T) {
	b := newTestBus()
	b.ROM()[0] = 0xAB
	v, err := b.Read(0x0, cpubus.Byte)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, v, uint32(0xAB))
}

func TestROMWritesAreDiscarded(t *testing.T) {
	b := newTestBus()
	test.ExpectSuccess(t, b.Write(0x0, cpubus.Byte, 0xFF))
	v, _ := b.Read(0x0, cpubus.Byte)
	test.ExpectEquality(t, v, uint32(0))
}

func TestOddAddressWordReadIsAddressError(t *testing.T) {
	b := newTestBus()
	_, err := b.Read(0x1, cpubus.Word)
	test.ExpectEquality(t, err, cpubus.ErrAddressError)
}

func TestOverlaySwitchesToDRAMAfterVIAWrite(t *testing.T) {
	b := newTestBus()
	b.ROM()[0] = 0xAB
	// writing PA0=1 via Port A (register index 1) sets the overlay latch;
	// the first write latches it and flips DRAM into low memory, and per the
	// one-shot rule the second write is ignored.
	test.ExpectSuccess(t, b.Write(0xE80200, cpubus.Byte, 0x01))
	test.ExpectSuccess(t, b.Write(0xE80200, cpubus.Byte, 0x01))
	v, err := b.InspectRead(0x0, cpubus.Byte)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, v, uint32(0))
}
