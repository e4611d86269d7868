package keymap_test

import (
	"testing"

	"github.com/snowmac/snow/core/keymap"
	"github.com/snowmac/snow/test"
)

func TestUniversalPassesThrough(t *testing.T) {
	sc, ok := keymap.Universal.Translate(0x00)
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, sc, uint8(0x00))
}

func TestM0110TranslatesKnownScancode(t *testing.T) {
	sc, ok := keymap.AkM0110.Translate(0x00)
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, sc, uint8(0x01))
}

func TestM0110DropsUnmappedScancode(t *testing.T) {
	_, ok := keymap.AkM0110.Translate(0x7F)
	test.ExpectEquality(t, ok, false)
}
