package iwm

import "github.com/snowmac/snow/core/tick"

// StepDirection is the head's commanded step direction.
type StepDirection int

const (
	StepUp StepDirection = iota
	StepDown
)

// steppingDuration is the 30 ms head-settling time, in ticks.
const steppingDuration = tick.Tick(tick.PerSecond * 30 / 1000)

// ejectDelay is the 0.5 s delay between an eject request and the drive
// actually clearing its floppy, per spec.md §4.5.
const ejectDelay = tick.Tick(tick.PerSecond / 2)

// Drive models one physical floppy disk mechanism.
type Drive struct {
	Index        int
	Present      bool
	DoubleSided  bool

	image *Image

	motorOn bool

	track     int
	side      int
	direction StepDirection

	steppingRemaining tick.Tick

	ejectScheduled bool
	ejectAt        tick.Tick

	// bitPosition is the current bit index into the current track (for
	// bitstream tracks) or flux transition index (for flux tracks).
	bitPosition int

	// fluxRemaining is the remaining ticks (125ns units) on the current flux
	// transition.
	fluxRemaining int
	fluxIndex     int
	headBit       bool

	// bitAccumulator accumulates fractional ticks-per-bit for bitstream
	// playback.
	bitAccumulator tick.Tick

	// pwmAccum/pwmCount average PWM duty samples for single-sided RPM
	// derivation.
	pwmAccumulator float64
	pwmCount       int
	pwmAverage     float64

	tachoToggles uint64
	tachoAccum   float64

	onMediaRemoved func(index int)
}

// NewDrive creates an empty, absent drive.
func NewDrive(index int, doubleSided bool) *Drive {
	return &Drive{Index: index, DoubleSided: doubleSided}
}

// OnMediaRemoved registers a callback invoked when an eject completes.
func (d *Drive) OnMediaRemoved(fn func(index int)) {
	d.onMediaRemoved = fn
}

// Insert mounts img into the drive.
func (d *Drive) Insert(img *Image) {
	d.image = img
	d.Present = true
	d.track = 0
	d.side = 0
	d.bitPosition = 0
	d.fluxIndex = 0
	d.ejectScheduled = false
}

// Image returns the currently mounted image, or nil.
func (d *Drive) Image() *Image {
	return d.image
}

// Track returns the current track number.
func (d *Drive) Track() int { return d.track }

// TrackPosition returns the current bit/flux index into the current track.
func (d *Drive) TrackPosition() int { return d.bitPosition }

// Stepping reports whether the head is still settling from the last step.
func (d *Drive) Stepping() bool {
	return d.steppingRemaining > 0
}

// SetMotor turns the spindle motor on or off.
func (d *Drive) SetMotor(on bool) {
	d.motorOn = on
}

// MotorOn reports the spindle motor state.
func (d *Drive) MotorOn() bool { return d.motorOn }

// SetDirection sets the commanded head step direction.
func (d *Drive) SetDirection(dir StepDirection) {
	d.direction = dir
}

// Step moves the head one track in the commanded direction, clamped to
// [0, TracksPerSide), resets the track bit position to 0, and starts the
// 30 ms settling countdown.
func (d *Drive) Step() {
	if d.direction == StepUp {
		if d.track < TracksPerSide-1 {
			d.track++
		}
	} else {
		if d.track > 0 {
			d.track--
		}
	}
	d.bitPosition = 0
	d.fluxIndex = 0
	d.fluxRemaining = 0
	d.steppingRemaining = steppingDuration
}

// ScheduleEject schedules media removal half a second from now.
func (d *Drive) ScheduleEject() {
	d.ejectScheduled = true
	d.ejectAt = ejectDelay
}

// RPM returns the instantaneous spindle speed for the current track,
// following the invariants of spec.md §3: single-sided drives interpolate
// linearly against the live PWM duty average; double-sided drives use a
// piecewise-constant per-zone table.
func (d *Drive) RPM() float64 {
	if d.DoubleSided {
		zone := d.track / 16
		if zone > 4 {
			zone = 4
		}
		rpms := [5]float64{402, 438, 482, 536, 603}
		return rpms[zone]
	}

	// single-sided: 9.4% duty -> 342 RPM at track 0, 91% duty -> 702 RPM at
	// track 79, linearly interpolated against the live PWM average.
	const dutyLo, dutyHi = 9.4, 91.0
	const rpmLo, rpmHi = 342.0, 702.0
	duty := d.pwmAverage
	if duty == 0 {
		duty = dutyLo + (dutyHi-dutyLo)*float64(d.track)/79.0
	}
	if duty < dutyLo {
		duty = dutyLo
	}
	if duty > dutyHi {
		duty = dutyHi
	}
	frac := (duty - dutyLo) / (dutyHi - dutyLo)
	return rpmLo + frac*(rpmHi-rpmLo)
}

// FeedPWMSample folds one 8-bit PWM duty sample (one per horizontal line,
// per spec.md §4.5) into the drive's running average used to derive RPM for
// single-sided drives.
func (d *Drive) FeedPWMSample(duty8 uint8) {
	pct := float64(duty8) / 255.0 * 100.0
	d.pwmCount++
	d.pwmAccumulator += pct
	// block average: recomputed and reset every 512 samples; until the
	// first estimate exists, the running mean of the current block is used
	const window = 512
	if d.pwmCount >= window {
		d.pwmAverage = d.pwmAccumulator / float64(d.pwmCount)
		d.pwmAccumulator = 0
		d.pwmCount = 0
	} else if d.pwmAverage == 0 {
		d.pwmAverage = d.pwmAccumulator / float64(d.pwmCount)
	}
}

// ticksPerBit computes the bitstream advancement rate per spec.md §4.5:
// ticks_per_bit = (60 * TICKS_PER_SECOND) / (rpm * approx_track_length_bits) + 1.
func (d *Drive) ticksPerBit() tick.Tick {
	rpm := d.RPM()
	length := ApproxTrackLengthBits(d.track)
	return tick.Tick(60*float64(tick.PerSecond)/(rpm*float64(length))) + 1
}

// Tick advances the drive by n ticks: the step-settle timer always, and the
// tachometer and track playback position only while the motor is on and a
// disk is present.
func (d *Drive) Tick(n tick.Tick) {
	if d.steppingRemaining > 0 {
		if d.steppingRemaining > n {
			d.steppingRemaining -= n
		} else {
			d.steppingRemaining = 0
		}
	}

	if !d.motorOn || !d.Present {
		d.advanceEject(n)
		return
	}

	rpm := d.RPM()
	// tachometer toggles 2*rpm*60/TICKS_PER_SECOND times per tick-second;
	// track exact toggle count via an accumulator of toggles-per-tick.
	togglesPerTick := 2.0 * rpm * 60.0 / float64(tick.PerSecond)
	d.tachoAccum += togglesPerTick * float64(n)
	for d.tachoAccum >= 1.0 {
		d.tachoAccum -= 1.0
		d.tachoToggles++
	}

	tr := d.currentTrack()
	if tr == nil {
		d.advanceEject(n)
		return
	}

	if tr.IsFlux() {
		d.advanceFlux(tr, n)
	} else {
		d.advanceBitstream(tr, n)
	}

	d.advanceEject(n)
}

func (d *Drive) advanceEject(n tick.Tick) {
	if !d.ejectScheduled {
		return
	}
	if d.ejectAt <= n {
		d.ejectAt = 0
	} else {
		d.ejectAt -= n
	}
}

func (d *Drive) currentTrack() *Track {
	if d.image == nil {
		return nil
	}
	side := d.side
	if side >= len(d.image.Tracks) || d.track >= len(d.image.Tracks[side]) {
		return nil
	}
	return &d.image.Tracks[side][d.track]
}

func (d *Drive) advanceBitstream(tr *Track, n tick.Tick) {
	d.bitAccumulator += n
	tpb := d.ticksPerBit()
	for d.bitAccumulator >= tpb {
		d.bitAccumulator -= tpb
		if tr.Bits != nil && tr.Bits.Len > 0 {
			d.headBit = tr.Bits.Get(d.bitPosition)
			d.bitPosition = (d.bitPosition + 1) % tr.Bits.Len
		}
	}
}

func (d *Drive) advanceFlux(tr *Track, n tick.Tick) {
	const ticksPer125ns = 1 // flux deltas are already in 125ns units; one
	// master tick is 125ns at 8MHz, so advancement is 1:1.
	_ = ticksPer125ns

	remaining := int(n)
	for remaining > 0 {
		if len(tr.Flux.Deltas) == 0 {
			return
		}
		if d.fluxRemaining <= 0 {
			d.fluxRemaining = int(tr.Flux.Deltas[d.fluxIndex])
			if d.fluxRemaining < 0 {
				d.fluxRemaining = -d.fluxRemaining
			}
			d.fluxIndex = (d.fluxIndex + 1) % len(tr.Flux.Deltas)
			d.headBit = !d.headBit
		}
		step := remaining
		if d.fluxRemaining < step {
			step = d.fluxRemaining
		}
		d.fluxRemaining -= step
		remaining -= step
	}
}

// ReadBit returns the current head bit, as fed to the IWM data line.
func (d *Drive) ReadBit() bool {
	return d.headBit
}

// WriteBit writes a bit at the current track position (SWIM write-data
// protocol), then advances one bit position as in reads.
func (d *Drive) WriteBit(v bool) {
	tr := d.currentTrack()
	if tr == nil || tr.Bits == nil || tr.Bits.Len == 0 {
		return
	}
	tr.Bits.Set(d.bitPosition, v)
	d.bitPosition = (d.bitPosition + 1) % tr.Bits.Len
}

// Tacho returns the cumulative tachometer toggle count.
func (d *Drive) Tacho() uint64 {
	return d.tachoToggles
}

// Eject immediately clears the mounted image (used when an eject's 0.5s
// delay has fully elapsed, checked by the controller).
func (d *Drive) Eject() {
	d.Present = false
	d.image = nil
	if d.onMediaRemoved != nil {
		d.onMediaRemoved(d.Index)
	}
}

// EjectDue reports whether a previously scheduled eject has elapsed.
func (d *Drive) EjectDue() bool {
	return d.ejectScheduled && d.ejectAt == 0
}
