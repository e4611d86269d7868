package rtc_test

import (
	"testing"

	"github.com/snowmac/snow/core/rtc"
	"github.com/snowmac/snow/test"
)

func shiftByte(r *rtc.RTC, enable bool, b uint8) {
	for i := 7; i >= 0; i-- {
		bit := b&(1<<uint(i)) != 0
		r.SetLines(enable, false, bit)
		r.SetLines(enable, true, bit)
	}
}

func TestSecondsReadByte(t *testing.T) {
	r := rtc.New()
	r.SetSeconds(0xAABBCCDD)

	shiftByte(r, false, 0b10000101)

	var out uint8
	for i := 0; i < 8; i++ {
		r.SetLines(false, false, false)
		r.SetLines(false, true, false)
		var bit uint8
		if r.DataOut() {
			bit = 1
		}
		out = (out << 1) | bit
	}
	test.ExpectEquality(t, out, uint8(0xCC))
}

func TestWriteProtectBlocksSecondsWrite(t *testing.T) {
	r := rtc.New()
	r.SetSeconds(0x11223344)
	test.ExpectEquality(t, r.WriteProtected(), true)

	shiftByte(r, false, 0b00000101)
	shiftByte(r, false, 0xFF)

	test.ExpectEquality(t, r.Seconds(), uint32(0x11223344))
}

func TestClearWriteProtectThenWriteSucceeds(t *testing.T) {
	r := rtc.New()

	shiftByte(r, false, 0b00011100)
	shiftByte(r, false, 0x00)
	test.ExpectEquality(t, r.WriteProtected(), false)

	r.SetSeconds(0)
	shiftByte(r, false, 0b00000101)
	shiftByte(r, false, 0xCC)
	test.ExpectEquality(t, r.Seconds(), uint32(0x0000CC00))
}
