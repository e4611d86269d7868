// Package video implements the compact Macintosh's video timing generator
// and framebuffer scanout, per spec.md §4.10.
package video

import "github.com/snowmac/snow/core/tick"

// Timing constants, per spec.md §3 "Video state".
const (
	HVisible = 512
	HBlank   = 192
	HDots    = HVisible + HBlank // 704

	VVisible = 342
	VBlankLn = 28
	VLines   = VVisible + VBlankLn // 370

	FrameDots = HDots * VLines
)

// FramebufferWidth/Height are the fixed 1-bpp source bitmap dimensions.
const (
	FramebufferWidth  = 512
	FramebufferHeight = 342
)

var palette = [2][4]byte{
	{0xEE, 0xEE, 0xEE, 0xFF},
	{0x22, 0x22, 0x22, 0xFF},
}

// Frame is an RGBA8 snapshot of one rasterized display.
type Frame struct {
	Pixels [FramebufferWidth * FramebufferHeight * 4]byte
}

// Engine is the free-running dot-counter video timing generator.
type Engine struct {
	dot uint64

	hblankLatch bool
	vblankLatch bool

	wasHBlank bool
	wasVBlank bool

	frames chan *Frame

	// source selects which of two framebuffer regions in DRAM the next
	// scanout reads from, mirrored from VIA A bit 4.
	source func() []byte
}

// NewEngine creates a video engine whose bounded frame output channel has
// depth 1 (try-send, drop on full), per spec.md §5.
func NewEngine(source func() []byte) *Engine {
	return &Engine{frames: make(chan *Frame, 1), source: source}
}

// Frames returns the read side of the bounded frame channel.
func (e *Engine) Frames() <-chan *Frame {
	return e.frames
}

func (e *Engine) inHBlank() bool {
	return e.dot%HDots >= HVisible
}

func (e *Engine) inVBlank() bool {
	return e.dot >= uint64(VVisible)*HDots
}

// HBlankLatch reads and clears the self-clearing "HBlank just entered"
// latch.
func (e *Engine) HBlankLatch() bool {
	v := e.hblankLatch
	e.hblankLatch = false
	return v
}

// VBlankLatch reads and clears the self-clearing "VBlank just entered"
// latch.
func (e *Engine) VBlankLatch() bool {
	v := e.vblankLatch
	e.vblankLatch = false
	return v
}

// InVBlank reports the live (non-latched) vblank state.
func (e *Engine) InVBlank() bool {
	return e.inVBlank()
}

// InHBlank reports the live (non-latched) hblank state.
func (e *Engine) InHBlank() bool {
	return e.inHBlank()
}

// Tick advances the dot counter by n ticks, updating the self-clearing
// latches and, on the vblank exit transition, rasterizing a frame.
func (e *Engine) Tick(n tick.Tick) {
	for i := tick.Tick(0); i < n; i++ {
		e.dot = (e.dot + 1) % FrameDots

		hb := e.inHBlank()
		if hb && !e.wasHBlank {
			e.hblankLatch = true
		}
		e.wasHBlank = hb

		vb := e.inVBlank()
		if vb && !e.wasVBlank {
			e.vblankLatch = true
		}
		if e.wasVBlank && !vb {
			e.scanout()
		}
		e.wasVBlank = vb
	}
}

func (e *Engine) scanout() {
	src := e.source()
	if src == nil {
		return
	}
	f := &Frame{}
	rowBytes := FramebufferWidth / 8
	for y := 0; y < FramebufferHeight; y++ {
		for xByte := 0; xByte < rowBytes; xByte++ {
			off := y*rowBytes + xByte
			if off >= len(src) {
				continue
			}
			b := src[off]
			for bit := 0; bit < 8; bit++ {
				x := xByte*8 + bit
				v := (b >> uint(7-bit)) & 1
				px := (y*FramebufferWidth + x) * 4
				copy(f.Pixels[px:px+4], palette[v][:])
			}
		}
	}

	select {
	case e.frames <- f:
	default:
	}
}
