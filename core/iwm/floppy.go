// Package iwm implements the IWM/SWIM floppy disk controller, the per-drive
// flux/bitstream track model and PWM-derived spindle speed, per spec.md
// §3 and §4.5. Floppy image *decoding* (reading files of various disk
// archive formats into this in-memory representation) is explicitly out of
// scope (spec.md §1); this package only defines the representation and the
// controller that plays it back.
package iwm

// ImageType identifies a floppy's physical format.
type ImageType int

const (
	Image400K ImageType = iota // single-sided GCR, 400 KB
	Image800K                  // double-sided GCR, 800 KB
)

// Sides returns the number of recorded sides for the image type.
func (t ImageType) Sides() int {
	if t == Image800K {
		return 2
	}
	return 1
}

// TracksPerSide is fixed at 80 for both supported formats.
const TracksPerSide = 80

// Bitstream is a track stored as packed physical bits at a fixed density.
type Bitstream struct {
	Bits []bool
	Len  int
}

// Get returns bit i, modulo the track's bit length (spec.md §3 invariant).
func (b *Bitstream) Get(i int) bool {
	if b.Len == 0 {
		return false
	}
	return b.Bits[i%b.Len]
}

// Set writes bit i, modulo the track's bit length, without affecting any
// other bit.
func (b *Bitstream) Set(i int, v bool) {
	if b.Len == 0 {
		return
	}
	b.Bits[i%b.Len] = v
}

// FluxTransition is a signed transition delta in 125 ns units.
type FluxTransition int16

// Flux is a track stored as a list of magnetic-transition intervals.
type Flux struct {
	Deltas []FluxTransition
}

// Track is the per-(side,track) representation: exactly one of Bits or Flux
// is non-nil.
type Track struct {
	Bits *Bitstream
	Flux *Flux
}

// IsFlux reports whether this track uses flux-transition encoding.
func (t Track) IsFlux() bool {
	return t.Flux != nil
}

// Image is the in-memory representation of a floppy disk, produced by an
// external loader and consumed by the IWM/SWIM controller.
type Image struct {
	Type     ImageType
	Title    string
	Metadata map[string]string

	// Tracks[side][track]
	Tracks [2][]Track
}

// NewImage creates an empty image of the given type with TracksPerSide
// zero-value tracks per side (no bitstream or flux data).
func NewImage(t ImageType) *Image {
	img := &Image{Type: t, Metadata: make(map[string]string)}
	for side := 0; side < t.Sides(); side++ {
		img.Tracks[side] = make([]Track, TracksPerSide)
	}
	return img
}

// GetTrackBit reads bit `bit` of track (side, track), modulo the track's
// length. Returns false if the track has no bitstream.
func (img *Image) GetTrackBit(side, track, bit int) bool {
	tr := &img.Tracks[side][track]
	if tr.Bits != nil {
		return tr.Bits.Get(bit)
	}
	return false
}

// SetTrackBit writes bit `bit` of track (side, track), modulo the track's
// length, without affecting any other bit.
func (img *Image) SetTrackBit(side, track, bit int, v bool) {
	tr := &img.Tracks[side][track]
	if tr.Bits != nil {
		tr.Bits.Set(bit, v)
	}
}

// ApproxTrackLengthBits returns the nominal bit length for a track in the
// given zone (zones are 16-track groups, five zones total for an 80-track
// disk), used to derive IWM bit timing for bitstream tracks. Real tracks may
// be up to ±10% off this nominal length without warning, per spec.md §3.
func ApproxTrackLengthBits(track int) int {
	zone := track / 16
	if zone > 4 {
		zone = 4
	}
	// GCR zoned-CLV nominal bit counts, outer (zone 0) to inner (zone 4).
	nominal := [5]int{74640, 68240, 62200, 55980, 49760}
	return nominal[zone]
}
