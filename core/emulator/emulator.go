// Package emulator owns the Bus+CPU aggregate and runs the single-threaded
// control loop described in spec.md §4.12 and §5: commands drain off an
// unbounded queue between every CPU step, frames and audio are delivered
// over bounded try-send channels, and the emulator thread never blocks.
package emulator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/snowmac/snow/core/adb"
	"github.com/snowmac/snow/core/bus"
	"github.com/snowmac/snow/core/bus/cpubus"
	"github.com/snowmac/snow/core/cpu"
	"github.com/snowmac/snow/core/debugger"
	"github.com/snowmac/snow/core/iwm"
	"github.com/snowmac/snow/core/keymap"
	"github.com/snowmac/snow/core/model"
	"github.com/snowmac/snow/core/rpc"
	"github.com/snowmac/snow/core/savestate"
	"github.com/snowmac/snow/core/scsi"
	"github.com/snowmac/snow/core/tick"
	"github.com/snowmac/snow/curated"
	"github.com/snowmac/snow/logger"
)

// Speed is the pacing mode the control loop runs under, per spec.md §4.12.
type Speed int

const (
	// Accurate sleeps each loop iteration to track real 8 MHz wall time.
	Accurate Speed = iota
	// Uncapped runs the tick loop as fast as the host can manage.
	Uncapped
	// Video paces to the rate frames are actually being consumed.
	Video
)

// statusThrottle bounds how often Status snapshots are emitted.
const statusThrottle = 16 * time.Millisecond

// formatNoSCSIBus is queryable with curated.Is so an RPC dispatcher can
// distinguish "this model has no SCSI bus" from any other attach/detach
// failure without string-matching the rendered message.
const formatNoSCSIBus = "emulator: model has no SCSI bus"

// Emulator is the single owning aggregate: Bus, CPU and Debugger, plus the
// command/event plumbing that lets UI and RPC collaborators drive it
// without ever touching core state directly.
type Emulator struct {
	desc model.Descriptor
	bus  *bus.Bus
	cpu  *cpu.CPU
	dbg  *debugger.Debugger
	km   keymap.Keymap

	mu      sync.Mutex
	queue   []func()
	running bool
	speed   Speed
	fpsCap  int

	keyboard *adb.Keyboard
	mouse    *adb.Mouse

	drivePaths [2]string

	lastStatus time.Time

	events *rpc.EventSink
	log    *logger.Logger
}

// New constructs an Emulator for the given model and ROM image, wiring the
// Bus/CPU/Debugger stack and resetting the CPU core.
func New(desc model.Descriptor, rom []byte) (*Emulator, error) {
	b := bus.New(desc, rom)
	b.ApplyRAMTestPatch()

	dbg := debugger.New(b)
	c := cpu.New(dbg)
	dbg.BindCPU(c)
	if err := c.Reset(); err != nil {
		return nil, fmt.Errorf("emulator: reset: %w", err)
	}

	e := &Emulator{
		desc:  desc,
		bus:   b,
		cpu:   c,
		dbg:   dbg,
		km:    keymapFor(desc),
		speed: Accurate,
		log:   b.Log(),
	}

	if desc.HasADB {
		e.keyboard = adb.NewKeyboard()
		e.mouse = adb.NewMouse()
		b.ADB().Attach(2, e.keyboard)
		b.ADB().Attach(3, e.mouse)
	}

	return e, nil
}

func keymapFor(desc model.Descriptor) keymap.Keymap {
	switch desc.Keymap {
	case "aekm0115":
		return keymap.AekM0115
	case "aekm0110":
		return keymap.AkM0110
	default:
		return keymap.Universal
	}
}

// AttachEvents wires an RPC event sink so the control loop can push
// Status/NextCode/Frame/Audio notifications, per spec.md §6.
func (e *Emulator) AttachEvents(sink *rpc.EventSink) { e.events = sink }

// Bus exposes the owned Bus for host-side wiring (loading floppy images,
// attaching SCSI targets before Run).
func (e *Emulator) Bus() *bus.Bus { return e.bus }

// post enqueues fn on the command queue; per spec.md §5 the queue is
// unbounded so posting never blocks.
func (e *Emulator) post(fn func()) {
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	e.mu.Unlock()
}

// postSync posts fn and blocks until it has run, used by command-surface
// methods that must report success/failure synchronously to the caller
// (the RPC Backend contract).
func (e *Emulator) postSync(fn func()) {
	done := make(chan struct{})
	e.post(func() {
		fn()
		close(done)
	})
	<-done
}

func (e *Emulator) drainCommands() {
	e.mu.Lock()
	queue := e.queue
	e.queue = nil
	e.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
}

// Loop runs the control loop until ctx is cancelled, per spec.md §4.12's
// pseudocode: drain commands, step if running, tick the bus, pace per
// speed mode, and throttle status snapshots.
func (e *Emulator) Loop(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			e.drainCommands()

			if !e.running {
				time.Sleep(time.Millisecond)
				continue
			}

			before := e.cpu.Now()
			hit, stopped, err := e.dbg.Step()
			if stopped {
				e.running = false
				e.log.Logf(logger.Allow, "emulator", "breakpoint hit: %+v", hit.Breakpoint)
			} else if err != nil {
				e.log.Logf(logger.Allow, "emulator", "step error: %v", err)
			}

			spent := e.cpu.Now() - before
			e.bus.Tick(spent)
			e.paceFor(spent)
			e.maybeEmitStatus(ctx)
		}
	})
	return g.Wait()
}

func (e *Emulator) paceFor(spent tick.Tick) {
	switch e.speed {
	case Accurate:
		wall := time.Duration(spent) * time.Second / time.Duration(tick.PerSecond)
		if wall > 0 {
			time.Sleep(wall)
		}
	case Video:
		if e.fpsCap > 0 {
			time.Sleep(time.Second / time.Duration(e.fpsCap) / 1000)
		}
	case Uncapped:
	}
}

func (e *Emulator) maybeEmitStatus(ctx context.Context) {
	if e.events == nil {
		return
	}
	now := time.Now()
	if now.Sub(e.lastStatus) < statusThrottle {
		return
	}
	e.lastStatus = now
	e.events.NotifyStatus(ctx, rpc.StatusEvent{
		Running:     e.running,
		PC:          e.cpu.Regs.PC,
		Cycles:      uint64(e.cpu.Now()),
		Speed:       speedName(e.speed),
		Breakpoints: len(e.dbg.ListBreakpoints()),
	})
}

func speedName(s Speed) string {
	switch s {
	case Uncapped:
		return "uncapped"
	case Video:
		return "video"
	default:
		return "accurate"
	}
}

// --- Backend command surface (rpc.Backend) ---

// InsertFloppy reads and decodes the image at path on the calling
// goroutine (the long-running file operation happens before the command
// is posted, per spec.md §4.12's cancellation note), then posts the
// insertion itself as a command.
func (e *Emulator) InsertFloppy(drive int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return curated.Errorf("emulator: read floppy image: %v", err)
	}
	img := decodeRawImage(data, e.desc.DoubleSidedFloppy)
	e.postSync(func() {
		e.bus.IWM().Drive(drive).Insert(img)
		e.drivePaths[drive] = path
	})
	return nil
}

// SaveFloppy writes the drive's current image back to the path it was
// last inserted from.
func (e *Emulator) SaveFloppy(drive int) error {
	var img *iwm.Image
	var path string
	e.postSync(func() {
		img = e.bus.IWM().Drive(drive).Image()
		path = e.drivePaths[drive]
	})
	if img == nil {
		return curated.Errorf("emulator: no image in drive %d", drive)
	}
	if path == "" {
		return curated.Errorf("emulator: drive %d has no known save path", drive)
	}
	return os.WriteFile(path, encodeRawImage(img), 0o644)
}

// EjectFloppy schedules the drive's eject sequence.
func (e *Emulator) EjectFloppy(drive int) error {
	e.postSync(func() { e.bus.IWM().Drive(drive).ScheduleEject() })
	return nil
}

// MouseUpdateAbsolute has no equivalent on the ADB relative mouse this
// core models; accepted as a no-op so host UIs can use one mouse code
// path regardless of model.
func (e *Emulator) MouseUpdateAbsolute(x, y int) error { return nil }

// MouseUpdateRelative feeds a relative motion delta to the ADB mouse.
func (e *Emulator) MouseUpdateRelative(dx, dy int) error {
	if e.mouse == nil {
		return nil
	}
	e.postSync(func() { e.mouse.AddMotion(dx, dy) })
	return nil
}

// KeyEvent translates scancode through the model's keymap and feeds the
// translated scancode to the ADB keyboard.
func (e *Emulator) KeyEvent(scancode uint8, down bool) error {
	translated, ok := e.km.Translate(scancode)
	if !ok {
		return nil
	}
	e.postSync(func() {
		if e.keyboard == nil {
			return
		}
		if down {
			e.keyboard.KeyDown(translated)
		} else {
			e.keyboard.KeyUp(translated)
		}
	})
	return nil
}

// Run starts the control loop stepping the CPU.
func (e *Emulator) Run() error {
	e.postSync(func() { e.running = true })
	return nil
}

// Stop halts CPU stepping without tearing down the loop.
func (e *Emulator) Stop() error {
	e.postSync(func() { e.running = false })
	return nil
}

type stepResult struct {
	PC     uint32 `json:"pc"`
	Cycles uint64 `json:"cycles"`
}

// Step executes exactly one instruction while stopped.
func (e *Emulator) Step() (json.RawMessage, error) {
	var result stepResult
	e.postSync(func() {
		e.dbg.Step()
		result = stepResult{PC: e.cpu.Regs.PC, Cycles: uint64(e.cpu.Now())}
	})
	return json.Marshal(result)
}

// SetSpeed switches the pacing mode.
func (e *Emulator) SetSpeed(mode string) error {
	var s Speed
	switch mode {
	case "uncapped":
		s = Uncapped
	case "video":
		s = Video
	default:
		s = Accurate
	}
	e.postSync(func() { e.speed = s })
	return nil
}

// SetFpsLimit sets the frame-rate cap consulted by Video speed mode.
func (e *Emulator) SetFpsLimit(fps int) error {
	e.postSync(func() { e.fpsCap = fps })
	return nil
}

type breakpointResult struct {
	ID string `json:"id"`
}

// ToggleBreakpoint adds a breakpoint of the given kind/address/level and
// returns its assigned ID.
func (e *Emulator) ToggleBreakpoint(kind int, address uint32, level int) (json.RawMessage, error) {
	var bp debugger.Breakpoint
	e.postSync(func() {
		bp = e.dbg.AddBreakpoint(debugger.Breakpoint{
			Kind:    cpu.BreakpointKind(kind),
			Address: address,
			Level:   level,
		})
	})
	return json.Marshal(breakpointResult{ID: bp.ID.String()})
}

// ListBreakpoints returns the current breakpoint set.
func (e *Emulator) ListBreakpoints() (json.RawMessage, error) {
	var bps []debugger.Breakpoint
	e.postSync(func() { bps = e.dbg.ListBreakpoints() })
	return json.Marshal(bps)
}

// RemoveBreakpoint deletes the breakpoint with the given ID.
func (e *Emulator) RemoveBreakpoint(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("emulator: invalid breakpoint id: %w", err)
	}
	e.postSync(func() { e.dbg.RemoveBreakpoint(parsed) })
	return nil
}

// BusWrite patches memory directly via the side-effect-free inspect path.
func (e *Emulator) BusWrite(addr uint32, width int, value uint32) error {
	var err error
	e.postSync(func() { err = e.bus.InspectWrite(addr, cpubus.Width(width), value) })
	return err
}

// BusRead reads memory directly via the side-effect-free inspect path.
func (e *Emulator) BusRead(addr uint32, width int) (uint32, error) {
	var v uint32
	var err error
	e.postSync(func() { v, err = e.bus.InspectRead(addr, cpubus.Width(width)) })
	return v, err
}

// Disassemble returns count decoded instructions starting at addr.
func (e *Emulator) Disassemble(addr uint32, count int) (json.RawMessage, error) {
	var insns []debugger.Instruction
	e.postSync(func() { insns = e.dbg.Disassemble(addr, count) })
	return json.Marshal(insns)
}

// AttachHdd attaches a hard disk image at the given SCSI target ID.
func (e *Emulator) AttachHdd(id int, path string) error {
	return e.attachSCSI(id, path, false)
}

// AttachCdrom attaches a CD-ROM image at the given SCSI target ID.
func (e *Emulator) AttachCdrom(id int, path string) error {
	return e.attachSCSI(id, path, true)
}

func (e *Emulator) attachSCSI(id int, path string, cdrom bool) error {
	if e.bus.SCSI() == nil {
		return curated.Errorf(formatNoSCSIBus)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return curated.Errorf("emulator: read disk image: %v", err)
	}
	var target *scsi.Target
	if cdrom {
		target = scsi.NewCDROMTarget(data)
	} else {
		target = scsi.NewDiskTarget(data)
	}
	var attachErr error
	e.postSync(func() { attachErr = e.bus.SCSI().Attach(id, target) })
	return attachErr
}

// Detach removes whatever SCSI target is attached at id.
func (e *Emulator) Detach(id int) error {
	if e.bus.SCSI() == nil {
		return curated.Errorf(formatNoSCSIBus)
	}
	var err error
	e.postSync(func() { err = e.bus.SCSI().Attach(id, nil) })
	return err
}

// ToggleBusTrace turns bus-access tracing on or off.
func (e *Emulator) ToggleBusTrace() (bool, error) {
	var enabled bool
	e.postSync(func() { enabled = e.dbg.ToggleBusTrace() })
	return enabled, nil
}

// ToggleHistory turns systrap history recording on or off.
func (e *Emulator) ToggleHistory() (bool, error) {
	var enabled bool
	e.postSync(func() { enabled = e.dbg.ToggleHistory() })
	return enabled, nil
}

// Quit stops the loop; the caller is expected to cancel the Loop context
// after this returns, per spec.md §5's cancellation model.
func (e *Emulator) Quit() error {
	e.postSync(func() { e.running = false })
	return nil
}

// SaveState captures the current emulator configuration into a
// savestate.Config, for the host to pass to savestate.Save. The returned
// image array is always empty: attached SCSI target images are not
// captured.
func (e *Emulator) SaveState() (savestate.Config, [savestate.MaxSCSITargets][]byte) {
	var cfg savestate.Config
	var images [savestate.MaxSCSITargets][]byte
	e.postSync(func() {
		cfg.Model = e.desc.Type.String()
		cfg.CPU.D = e.cpu.Regs.D
		cfg.CPU.A = e.cpu.Regs.A
		cfg.CPU.PC = e.cpu.Regs.PC
		cfg.CPU.SSP = e.cpu.Regs.SSP
		cfg.CPU.USP = e.cpu.Regs.USP
		cfg.CPU.Cycles = uint64(e.cpu.Now())
		cfg.RTC.Seconds = e.bus.RTC().Seconds()
		cfg.RTC.PRAM = e.bus.RTC().PRAM()
		cfg.FloppyDoubleSided = e.desc.DoubleSidedFloppy
		for i := 0; i < 2; i++ {
			img := e.bus.IWM().Drive(i).Image()
			cfg.FloppyInserted[i] = img != nil
			cfg.FloppyTrack[i] = e.bus.IWM().Drive(i).Track()
		}
		for _, bp := range e.dbg.ListBreakpoints() {
			cfg.Breakpoints = append(cfg.Breakpoints, savestate.BreakpointRecord{
				ID:      bp.ID.String(),
				Kind:    int(bp.Kind),
				Address: bp.Address,
				Level:   bp.Level,
			})
		}
	})
	return cfg, images
}

// decodeRawImage is a minimal loader that packs a raw byte stream into
// per-track bitstreams, spreading bytes evenly across the zoned track
// layout. It does not understand any real disk archive format (DiskCopy,
// WOZ); full format decoding is out of scope (spec.md §1), so this exists
// only to give the command surface something to exercise.
func decodeRawImage(data []byte, doubleSided bool) *iwm.Image {
	t := iwm.Image400K
	if doubleSided {
		t = iwm.Image800K
	}
	img := iwm.NewImage(t)
	pos := 0
	for side := 0; side < t.Sides(); side++ {
		for track := 0; track < iwm.TracksPerSide; track++ {
			bits := iwm.ApproxTrackLengthBits(track)
			bs := &iwm.Bitstream{Bits: make([]bool, bits), Len: bits}
			for i := 0; i < bits; i++ {
				if len(data) == 0 {
					continue
				}
				b := data[pos/8%len(data)]
				bs.Bits[i] = b&(1<<uint(pos%8)) != 0
				pos++
			}
			img.Tracks[side][track] = iwm.Track{Bits: bs}
		}
	}
	return img
}

// encodeRawImage is the inverse of decodeRawImage, packing bitstream bits
// back into a flat byte slice.
func encodeRawImage(img *iwm.Image) []byte {
	var out []byte
	var cur byte
	var nbits int
	for side := range img.Tracks {
		for _, tr := range img.Tracks[side] {
			if tr.Bits == nil {
				continue
			}
			for i := 0; i < tr.Bits.Len; i++ {
				if tr.Bits.Get(i) {
					cur |= 1 << uint(nbits)
				}
				nbits++
				if nbits == 8 {
					out = append(out, cur)
					cur, nbits = 0, 0
				}
			}
		}
	}
	if nbits > 0 {
		out = append(out, cur)
	}
	return out
}
