package audio_test

import (
	"testing"

	"github.com/snowmac/snow/core/audio"
	"github.com/snowmac/snow/test"
)

func TestSamplerEmitsBlockOnceFull(t *testing.T) {
	value := uint8(200)
	s := audio.NewSampler(func() uint8 { return value })
	s.SetEnabled(true)

	for i := 0; i < audio.FrameSize-1; i++ {
		s.OnHBlankEnter()
	}
	select {
	case <-s.Blocks():
		t.Fatal("block emitted before frame was full")
	default:
	}

	s.OnHBlankEnter()
	select {
	case b := <-s.Blocks():
		test.ExpectEquality(t, len(b.Samples), audio.FrameSize)
	default:
		t.Fatal("expected a block once the frame filled")
	}
}

func TestSamplerIgnoresWhenDisabled(t *testing.T) {
	s := audio.NewSampler(func() uint8 { return 128 })
	for i := 0; i < audio.FrameSize*2; i++ {
		s.OnHBlankEnter()
	}
	select {
	case <-s.Blocks():
		t.Fatal("disabled sampler should not emit")
	default:
	}
}
