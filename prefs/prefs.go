// Package prefs implements a small file-backed key/value preference store.
// It is used for persistent, cross-session settings (default speed mode,
// keymap selection, last-used floppy/HDD paths) that are distinct from the
// immutable, per-session Mac model descriptor the emulator core itself
// works with.
package prefs

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// WarningBoilerPlate is written as the first line of every saved preferences
// file.
const WarningBoilerPlate = "; this file is automatically generated - do not edit directly"

// Value is the dynamic value passed to a Pref's Set method.
type Value interface{}

// Pref is the interface every preference value type implements so that a
// Disk can save and load it generically.
type Pref interface {
	Set(v Value) error
	String() string
	unmarshal(s string) error
}

// Disk associates named Pref values with a backing file.
type Disk struct {
	filename string
	entries  map[string]Pref
}

// NewDisk prepares a Disk backed by filename. The file is not read until
// Load is called, and is not created until Save is called.
func NewDisk(filename string) (*Disk, error) {
	return &Disk{
		filename: filename,
		entries:  make(map[string]Pref),
	}, nil
}

// Add registers a Pref under key. Key must be unique within this Disk.
func (d *Disk) Add(key string, p Pref) error {
	if _, ok := d.entries[key]; ok {
		return fmt.Errorf("prefs: key %q already registered", key)
	}
	d.entries[key] = p
	return nil
}

// readRaw reads the existing file (if any) into an ordered key/value map,
// preserving entries that don't belong to this Disk's registry so that
// multiple Disk instances sharing a file don't clobber one another.
func (d *Disk) readRaw() (map[string]string, error) {
	raw := make(map[string]string)

	f, err := os.Open(d.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return raw, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		parts := strings.SplitN(line, "::", 2)
		if len(parts) != 2 {
			continue
		}
		raw[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return raw, scanner.Err()
}

// Save writes every registered Pref to the backing file, merged with any
// entries already on disk that this Disk instance doesn't own.
func (d *Disk) Save() error {
	raw, err := d.readRaw()
	if err != nil {
		return err
	}

	for key, p := range d.entries {
		raw[key] = p.String()
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var s strings.Builder
	s.WriteString(WarningBoilerPlate)
	s.WriteByte('\n')
	for _, k := range keys {
		fmt.Fprintf(&s, "%s :: %s\n", k, raw[k])
	}

	return os.WriteFile(d.filename, []byte(s.String()), 0o644)
}

// Load reads the backing file and updates every registered Pref found in it.
// Unregistered keys in the file are ignored.
func (d *Disk) Load() error {
	raw, err := d.readRaw()
	if err != nil {
		return err
	}

	for key, p := range d.entries {
		if v, ok := raw[key]; ok {
			if err := p.unmarshal(v); err != nil {
				return fmt.Errorf("prefs: loading %q: %w", key, err)
			}
		}
	}

	return nil
}

// Bool is a boolean Pref.
type Bool struct {
	v bool
}

func (b *Bool) Set(v Value) error {
	switch x := v.(type) {
	case bool:
		b.v = x
	case string:
		b.v = strings.EqualFold(x, "true") || x == "1"
	default:
		return fmt.Errorf("prefs: unsupported type for Bool: %T", v)
	}
	return nil
}

func (b *Bool) String() string {
	if b.v {
		return "true"
	}
	return "false"
}

func (b *Bool) Get() bool { return b.v }

func (b *Bool) unmarshal(s string) error {
	return b.Set(s)
}

// String is a string-valued Pref, optionally capped to a maximum length.
type String struct {
	v      string
	maxLen int
}

func (s *String) Set(v Value) error {
	x, ok := v.(string)
	if !ok {
		return fmt.Errorf("prefs: unsupported type for String: %T", v)
	}
	s.v = x
	s.crop()
	return nil
}

// SetMaxLen caps the stored string to n bytes. A value of zero removes any
// existing cap but does not restore an already-cropped string.
func (s *String) SetMaxLen(n int) {
	s.maxLen = n
	s.crop()
}

func (s *String) crop() {
	if s.maxLen > 0 && len(s.v) > s.maxLen {
		s.v = s.v[:s.maxLen]
	}
}

func (s *String) String() string { return s.v }

func (s *String) unmarshal(v string) error {
	return s.Set(v)
}

// Int is an integer-valued Pref.
type Int struct {
	v int
}

func (i *Int) Set(v Value) error {
	switch x := v.(type) {
	case int:
		i.v = x
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return fmt.Errorf("prefs: invalid int value %q: %w", x, err)
		}
		i.v = n
	default:
		return fmt.Errorf("prefs: unsupported type for Int: %T", v)
	}
	return nil
}

func (i *Int) String() string { return strconv.Itoa(i.v) }

func (i *Int) Get() int { return i.v }

func (i *Int) unmarshal(s string) error {
	return i.Set(s)
}

// Float is a float64-valued Pref. Unlike Int it does not accept a string
// representation via Set (only via file loading).
type Float struct {
	v float64
}

func (fl *Float) Set(v Value) error {
	x, ok := v.(float64)
	if !ok {
		return fmt.Errorf("prefs: unsupported type for Float: %T", v)
	}
	fl.v = x
	return nil
}

func (fl *Float) String() string { return strconv.FormatFloat(fl.v, 'g', -1, 64) }

func (fl *Float) Get() float64 { return fl.v }

func (fl *Float) unmarshal(s string) error {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	fl.v = n
	return nil
}

// Generic adapts an arbitrary setter/getter pair to the Pref interface.
type Generic struct {
	set func(Value) error
	get func() Value
}

// NewGeneric creates a Generic Pref from a setter and getter.
func NewGeneric(set func(Value) error, get func() Value) *Generic {
	return &Generic{set: set, get: get}
}

func (g *Generic) Set(v Value) error { return g.set(v) }

func (g *Generic) String() string {
	v := g.get()
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func (g *Generic) unmarshal(s string) error {
	return g.set(s)
}
