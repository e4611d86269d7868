// Package savestate implements the save-state container format described
// in spec.md §6: a magic-tagged, versioned header followed by a
// zstd-compressed msgpack body and, for each present SCSI target, its raw
// disk image, each chunk delimited by an EOFC marker so a truncated file
// fails loudly rather than silently.
package savestate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/snowmac/snow/curated"
)

// Magic is the fixed 5-byte file signature.
var Magic = [5]byte{'S', 'N', 'O', 'W', 'S'}

// EOFC terminates the config body and each SCSI image chunk (the header
// has none) so a truncated write is caught at load time instead of silently loading
// partial state.
var EOFC = [4]byte{'E', 'O', 'F', 'C'}

// FormatVersion is the container version written by this build.
const FormatVersion uint16 = 1

// Compression identifies the body compression algorithm. Only zstd is
// implemented; the tag exists so a future format revision can add others
// without breaking the header layout.
type Compression uint8

const (
	CompressionZstd Compression = 2
)

// MaxSCSITargets bounds the per-target image-size table in the header,
// matching the compact Macintosh's NCR5380 bus (7 addressable targets).
const MaxSCSITargets = 7

// Config is the msgpack-serialized emulator configuration body: everything
// needed to resume a session except the SCSI target images themselves,
// which are stored as raw trailing chunks to avoid doubling their size
// through msgpack's byte-string encoding overhead on multi-megabyte blobs.
type Config struct {
	Model string

	CPU struct {
		D, A       [8]uint32
		PC, SSP, USP uint32
		SR         uint16
		Cycles     uint64
	}

	RAM []byte

	VIA struct {
		Registers [16]uint8
		ORA, ORB  uint8
		DDRA, DDRB uint8
		T1Counter, T1Latch uint16
		T2Counter, T2Latch uint16
		ACR, PCR, IFR, IER uint8
	}

	RTC struct {
		Seconds uint32
		PRAM    [20]byte
	}

	FloppyInserted    [2]bool
	FloppyTrack       [2]int
	FloppyDoubleSided bool

	Breakpoints []BreakpointRecord
}

// BreakpointRecord is the serializable shape of a debugger breakpoint.
type BreakpointRecord struct {
	ID      string
	Kind    int
	Address uint32
	Level   int
}

// Header is the fixed-layout preamble written before the compressed body.
type Header struct {
	Version         uint16
	Compression     Compression
	CompressionLevel uint8
	Model           string
	BuildVersion    string
	SCSIImageSizes  [MaxSCSITargets]uint64
}

// format identifies the three ways a Load can reject a container as not
// being one this build understands, queryable downstream with curated.Is
// without string-matching the rendered message (a caller deciding whether
// to offer "try a different ROM model" needs to tell a bad-magic file from
// a future-format one).
const (
	formatBadMagic          = "savestate: bad magic"
	formatBadChunk          = "savestate: missing chunk terminator"
	formatUnsupportedVersion = "savestate: unsupported version %d"
)

var (
	// ErrBadMagic is returned when the file does not begin with Magic.
	ErrBadMagic = curated.Errorf(formatBadMagic)
	// ErrBadChunk is returned when an expected EOFC marker is missing,
	// indicating truncation or corruption.
	ErrBadChunk = curated.Errorf(formatBadChunk)
)

// errUnsupportedVersion builds the version-mismatch error for the header
// version actually found, still queryable with curated.Is(err,
// formatUnsupportedVersion) regardless of which version it names.
func errUnsupportedVersion(got uint16) error {
	return curated.Errorf(formatUnsupportedVersion, got)
}

// Save writes the full container: header, compressed config body, then one
// raw chunk per non-empty entry of scsiImages, each followed by EOFC.
func Save(w io.Writer, buildVersion string, cfg Config, scsiImages [MaxSCSITargets][]byte, level zstd.EncoderLevel) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, FormatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, CompressionZstd); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(level)); err != nil {
		return err
	}
	if err := writeCString(w, cfg.Model); err != nil {
		return err
	}
	if err := writeCString(w, buildVersion); err != nil {
		return err
	}
	for _, img := range scsiImages {
		if err := binary.Write(w, binary.BigEndian, uint64(len(img))); err != nil {
			return err
		}
	}

	body, err := msgpack.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("savestate: marshal config: %w", err)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("savestate: new zstd writer: %w", err)
	}
	if _, err := enc.Write(body); err != nil {
		enc.Close()
		return fmt.Errorf("savestate: write config body: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("savestate: close zstd writer: %w", err)
	}
	if _, err := w.Write(EOFC[:]); err != nil {
		return err
	}

	for _, img := range scsiImages {
		if len(img) == 0 {
			continue
		}
		if _, err := w.Write(img); err != nil {
			return err
		}
		if _, err := w.Write(EOFC[:]); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and validates a container, returning the header, decoded
// config, and any present SCSI target images.
func Load(r io.Reader) (Header, Config, [MaxSCSITargets][]byte, error) {
	var hdr Header
	var cfg Config
	var images [MaxSCSITargets][]byte

	var magic [5]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return hdr, cfg, images, err
	}
	if magic != Magic {
		return hdr, cfg, images, ErrBadMagic
	}

	if err := binary.Read(r, binary.BigEndian, &hdr.Version); err != nil {
		return hdr, cfg, images, err
	}
	if hdr.Version != FormatVersion {
		return hdr, cfg, images, errUnsupportedVersion(hdr.Version)
	}
	if err := binary.Read(r, binary.BigEndian, &hdr.Compression); err != nil {
		return hdr, cfg, images, err
	}
	if err := binary.Read(r, binary.BigEndian, &hdr.CompressionLevel); err != nil {
		return hdr, cfg, images, err
	}
	model, err := readCString(r)
	if err != nil {
		return hdr, cfg, images, err
	}
	hdr.Model = model
	buildVersion, err := readCString(r)
	if err != nil {
		return hdr, cfg, images, err
	}
	hdr.BuildVersion = buildVersion

	for i := range hdr.SCSIImageSizes {
		if err := binary.Read(r, binary.BigEndian, &hdr.SCSIImageSizes[i]); err != nil {
			return hdr, cfg, images, err
		}
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return hdr, cfg, images, fmt.Errorf("savestate: new zstd reader: %w", err)
	}
	defer dec.Close()

	body, eofErr := readChunk(dec, r)
	if eofErr != nil {
		return hdr, cfg, images, eofErr
	}
	if err := msgpack.Unmarshal(body, &cfg); err != nil {
		return hdr, cfg, images, fmt.Errorf("savestate: unmarshal config: %w", err)
	}

	for i, size := range hdr.SCSIImageSizes {
		if size == 0 {
			continue
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return hdr, cfg, images, err
		}
		var term [4]byte
		if _, err := io.ReadFull(r, term[:]); err != nil {
			return hdr, cfg, images, err
		}
		if term != EOFC {
			return hdr, cfg, images, ErrBadChunk
		}
		images[i] = buf
	}

	return hdr, cfg, images, nil
}

// readChunk decodes dec to EOF (the config body is the only chunk inside
// the zstd stream) and confirms the stream was followed by EOFC in r.
func readChunk(dec *zstd.Decoder, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return nil, fmt.Errorf("savestate: decompress config body: %w", err)
	}
	var term [4]byte
	if _, err := io.ReadFull(r, term[:]); err != nil {
		return nil, err
	}
	if term != EOFC {
		return nil, ErrBadChunk
	}
	return buf.Bytes(), nil
}

func writeCString(w io.Writer, s string) error {
	if _, err := w.Write([]byte(s)); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

func readCString(r io.Reader) (string, error) {
	var out []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
	}
}
