package iwm_test

import (
	"testing"

	"github.com/snowmac/snow/core/iwm"
	"github.com/snowmac/snow/core/tick"
	"github.com/snowmac/snow/test"
)

func TestStepClampsToTrackRange(t *testing.T) {
	c := iwm.NewController(false)
	d := c.Drive(0)
	c.SetWriteMode(false)

	for i := 0; i < iwm.TracksPerSide+5; i++ {
		c.SetPhase(1, true)
		c.SetPhase(2, false)
		c.SetPhase(2, true)
		c.SetPhase(1, false)
	}
	test.ExpectEquality(t, d.Track(), iwm.TracksPerSide-1)
}

func TestSingleSidedRPMInterpolation(t *testing.T) {
	d := iwm.NewDrive(0, false)
	d.FeedPWMSample(uint8(9.4 / 100.0 * 255))
	lo := d.RPM()
	test.ExpectApproximate(t, lo, 342, 20)
}

func TestDoubleSidedRPMZones(t *testing.T) {
	d := iwm.NewDrive(0, true)
	test.ExpectApproximate(t, d.RPM(), 402, 0.1)
}

func TestEjectScheduledAfterDelay(t *testing.T) {
	c := iwm.NewController(true)
	img := iwm.NewImage(iwm.Image800K)
	c.Drive(0).Insert(img)
	c.Eject()

	c.Tick(tick.PerSecond / 2 / 2)
	test.ExpectEquality(t, c.Drive(0).Present, true)

	c.Tick(tick.PerSecond)
	test.ExpectEquality(t, c.Drive(0).Present, false)
}

func TestWriteThenReadBitRoundTrips(t *testing.T) {
	img := iwm.NewImage(iwm.Image400K)
	img.Tracks[0][0] = iwm.Track{Bits: &iwm.Bitstream{Bits: make([]bool, 32), Len: 32}}

	c := iwm.NewController(false)
	c.Drive(0).Insert(img)
	c.SetWriteMode(true)
	c.WriteDataRegister(0xA5)

	d := c.Drive(0)
	test.ExpectEquality(t, d.TrackPosition(), 8)
	for i, want := range []bool{true, false, true, false, false, true, false, true} {
		test.ExpectEquality(t, img.GetTrackBit(0, 0, i), want)
	}
}
