package adb_test

import (
	"testing"

	"github.com/snowmac/snow/core/adb"
	"github.com/snowmac/snow/test"
)

func talk(t *testing.T, tr *adb.Transceiver, addr, reg int) []byte {
	t.Helper()
	tr.SetLines(false, false) // Transmit
	tr.TransmitCommandByte(uint8(addr<<4 | (0xC | reg)))
	tr.SetLines(true, false) // Ack -> dispatches Talk
	tr.SetLines(false, true) // Receive

	var out []byte
	for {
		b, ok := tr.ReadReplyByte()
		if !ok {
			break
		}
		out = append(out, b)
	}
	tr.SetLines(true, true) // back to Idle
	return out
}

func TestKeyboardTalk0ReturnsQueuedScancodes(t *testing.T) {
	tr := adb.New()
	kb := adb.NewKeyboard()
	tr.Attach(2, kb)

	kb.KeyDown(0x00)
	kb.KeyUp(0x00)

	reply := talk(t, tr, 2, 0)
	test.ExpectEquality(t, len(reply), 2)
	test.ExpectEquality(t, reply[0], uint8(0x00))
	test.ExpectEquality(t, reply[1], uint8(0x80))

	second := talk(t, tr, 2, 0)
	test.ExpectEquality(t, len(second), 0)
}

func TestKeyboardTalk2ReflectsControlModifier(t *testing.T) {
	tr := adb.New()
	kb := adb.NewKeyboard()
	tr.Attach(2, kb)

	kb.KeyDown(0x36)

	reply := talk(t, tr, 2, 2)
	test.ExpectEquality(t, reply[0]&0x01, uint8(0x01))
}

func TestMouseTalk0ReportsButtonAndMotion(t *testing.T) {
	tr := adb.New()
	m := adb.NewMouse()
	tr.Attach(3, m)

	m.AddMotion(5, -3)
	m.SetButton(true)

	reply := talk(t, tr, 3, 0)
	test.ExpectEquality(t, len(reply), 2)
	test.ExpectEquality(t, reply[0]&0x80, uint8(0))
	test.ExpectEquality(t, reply[0]&0x7F, uint8(0x7D))
	test.ExpectEquality(t, reply[1]&0x7F, uint8(0x05))
}
