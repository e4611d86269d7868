package model

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/snowmac/snow/test"
)

func TestIdentifyROMTooShort(t *testing.T) {
	_, ok := IdentifyROM(make([]byte, romIdentLen-1))
	test.ExpectFailure(t, ok)
}

func TestIdentifyROMUnknown(t *testing.T) {
	_, ok := IdentifyROM(make([]byte, romIdentLen))
	test.ExpectFailure(t, ok)
}

func TestIdentifyROMKnown(t *testing.T) {
	rom := make([]byte, romIdentLen)
	for i := range rom {
		rom[i] = byte(i)
	}
	sum := sha256.Sum256(rom[:romIdentLen])
	digest := hex.EncodeToString(sum[:])

	saved := knownROMs[digest]
	knownROMs[digest] = MacSE
	defer func() {
		if saved == Type(0) {
			delete(knownROMs, digest)
		} else {
			knownROMs[digest] = saved
		}
	}()

	got, ok := IdentifyROM(rom)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, got, MacSE)
}
