package scsi_test

import (
	"testing"

	"github.com/snowmac/snow/core/scsi"
	"github.com/snowmac/snow/test"
)

func TestRequestSenseAfterCheckCondition(t *testing.T) {
	c := scsi.NewController()
	test.ExpectSuccess(t, c.Attach(0, scsi.NewDiskTarget(make([]byte, 512*10))))

	c.Arbitrate()
	c.Select(0)
	c.BeginCommand()
	// READ(6) past the end of a 10-block disk -> CHECK CONDITION.
	for _, b := range []byte{0x08, 0, 0, 20, 1, 0} {
		c.PushCommandByte(b)
	}
	test.ExpectEquality(t, c.Phase(), scsi.PhaseStatus)
	test.ExpectEquality(t, c.Status(), uint8(scsi.StatusCheckCondition))

	c.Arbitrate()
	c.Select(0)
	c.BeginCommand()
	for _, b := range []byte{0x03, 0, 0, 0, 14, 0} {
		c.PushCommandByte(b)
	}
	test.ExpectEquality(t, c.Phase(), scsi.PhaseDataIn)
	buf := make([]byte, 14)
	c.ReadData(buf)
	test.ExpectEquality(t, buf[2], uint8(scsi.SenseIllegalReq))
}

func TestReadWriteRoundTrip(t *testing.T) {
	c := scsi.NewController()
	test.ExpectSuccess(t, c.Attach(1, scsi.NewDiskTarget(make([]byte, 512*4))))

	c.Arbitrate()
	c.Select(1)
	c.BeginCommand()
	for _, b := range []byte{0x0A, 0, 0, 0, 1, 0} {
		c.PushCommandByte(b)
	}
	test.ExpectEquality(t, c.Phase(), scsi.PhaseDataOut)
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = 0x42
	}
	c.WriteData(payload)
	test.ExpectEquality(t, c.Status(), uint8(scsi.StatusGood))

	c.Arbitrate()
	c.Select(1)
	c.BeginCommand()
	for _, b := range []byte{0x08, 0, 0, 0, 1, 0} {
		c.PushCommandByte(b)
	}
	test.ExpectEquality(t, c.Phase(), scsi.PhaseDataIn)
	out := make([]byte, 512)
	c.ReadData(out)
	test.ExpectEquality(t, out[0], uint8(0x42))
}
