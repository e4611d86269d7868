// Package audio implements the compact Macintosh's HBlank-triggered PCM
// sampling path and its DC-blocking filter, per spec.md §4.11.
package audio

import "math"

// FrameSize is the number of 8-bit PCM samples per emitted audio frame.
const FrameSize = 500

// SampleRate is the nominal compact-Mac sound output rate in Hz, the rate
// the DC-blocking filter is designed for.
const SampleRate = 22254

// Block is one filled PCM frame.
type Block struct {
	Samples [FrameSize]float64
}

// highPass is a second-order Butterworth high-pass DC-blocking filter at
// ~10 Hz, 22254 Hz sample rate.
type highPass struct {
	x1, x2 float64
	y1, y2 float64

	b0, b1, b2 float64
	a1, a2     float64
}

// newHighPass derives the biquad coefficients for a second-order
// Butterworth high-pass at cutoff Hz against sampleRate Hz.
func newHighPass(cutoff, sampleRate float64) *highPass {
	omega := 2 * math.Pi * cutoff / sampleRate
	cosw := math.Cos(omega)
	sinw := math.Sin(omega)
	alpha := sinw / math.Sqrt2

	b0 := (1 + cosw) / 2
	b1 := -(1 + cosw)
	b2 := (1 + cosw) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	return &highPass{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

func (f *highPass) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Sampler accumulates PCM samples read from the sound buffer and emits
// filtered, bounded-channel blocks.
type Sampler struct {
	enabled bool
	source  func() uint8

	filter *highPass

	buf     Block
	bufLen  int
	blocks  chan *Block
	line    int
}

// NewSampler creates a sampler whose bounded output channel has depth 2
// (try-send, drop on full), per spec.md §5. source reads the current
// sound-buffer byte for the active scanline.
func NewSampler(source func() uint8) *Sampler {
	return &Sampler{
		source: source,
		filter: newHighPass(10, SampleRate),
		blocks: make(chan *Block, 2),
	}
}

// Blocks returns the read side of the bounded audio channel.
func (s *Sampler) Blocks() <-chan *Block {
	return s.blocks
}

// SetEnabled mirrors the VIA sound-disable bit (active low at the VIA; the
// caller passes the logical "sound enabled" value).
func (s *Sampler) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// OnHBlankEnter is called once per transition into HBlank; it samples one
// byte, applies the DC-blocking filter, and appends it to the current
// frame, emitting the frame once full.
func (s *Sampler) OnHBlankEnter() {
	if !s.enabled {
		return
	}
	raw := float64(s.source()) - 128
	filtered := s.filter.process(raw)

	s.buf.Samples[s.bufLen] = filtered
	s.bufLen++
	if s.bufLen == FrameSize {
		out := s.buf
		s.bufLen = 0
		select {
		case s.blocks <- &out:
		default:
		}
	}
}
