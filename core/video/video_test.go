package video_test

import (
	"testing"

	"github.com/snowmac/snow/core/tick"
	"github.com/snowmac/snow/core/video"
	"github.com/snowmac/snow/test"
)

func TestVBlankInvariant(t *testing.T) {
	e := video.NewEngine(func() []byte { return nil })
	e.Tick(tick.Tick(video.VVisible*video.HDots) - 1)
	test.ExpectEquality(t, e.InVBlank(), false)
	e.Tick(1)
	test.ExpectEquality(t, e.InVBlank(), true)
}

func TestVBlankLatchSelfClears(t *testing.T) {
	e := video.NewEngine(func() []byte { return nil })
	e.Tick(tick.Tick(video.VVisible * video.HDots))
	test.ExpectEquality(t, e.VBlankLatch(), true)
	test.ExpectEquality(t, e.VBlankLatch(), false)
}

func TestScanoutProducesFrameOnVBlankExit(t *testing.T) {
	fb := make([]byte, video.FramebufferWidth/8*video.FramebufferHeight)
	fb[0] = 0x80 // first pixel black
	e := video.NewEngine(func() []byte { return fb })

	e.Tick(tick.Tick(video.FrameDots))

	select {
	case f := <-e.Frames():
		test.ExpectEquality(t, f.Pixels[0], byte(0x22))
	default:
		t.Fatal("expected a frame to be produced")
	}
}
