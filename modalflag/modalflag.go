// Package modalflag implements a small recursive flag parser for commands
// that are structured as a tree of sub-modes (e.g. "snow run ..." vs.
// "snow debug ..."), each with its own flag set. It is grounded on the
// teacher's modalflag package: a Modes value owns one flag.FlagSet, an
// optional list of sub-mode names, and reports whether parsing should
// continue, print help and stop, or hand control to a chosen sub-mode.
package modalflag

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ParseResult is returned by Parse to tell the caller what to do next.
type ParseResult int

const (
	// ParseContinue means flags were parsed successfully and the caller
	// should proceed with RemainingArgs().
	ParseContinue ParseResult = iota
	// ParseHelp means help text was printed to Output and the caller
	// should stop without error.
	ParseHelp
)

// Modes is one level of a modal flag tree: a flag.FlagSet plus, optionally,
// the names of sub-modes nested beneath it.
type Modes struct {
	Output io.Writer

	fs       *flag.FlagSet
	args     []string
	subModes []string
	mode     string
}

// NewArgs resets m with a fresh argument list, ready for AddBool/AddSubModes
// followed by Parse.
func (m *Modes) NewArgs(args []string) {
	m.args = args
	m.fs = flag.NewFlagSet("", flag.ContinueOnError)
	m.fs.SetOutput(io.Discard)
	m.mode = ""
}

// AddBool registers a boolean flag on this level's flag set, returning the
// pointer flag.Bool would.
func (m *Modes) AddBool(name string, value bool, usage string) *bool {
	if m.fs == nil {
		m.fs = flag.NewFlagSet("", flag.ContinueOnError)
		m.fs.SetOutput(io.Discard)
	}
	return m.fs.Bool(name, value, usage)
}

// AddString registers a string flag on this level's flag set.
func (m *Modes) AddString(name string, value string, usage string) *string {
	if m.fs == nil {
		m.fs = flag.NewFlagSet("", flag.ContinueOnError)
		m.fs.SetOutput(io.Discard)
	}
	return m.fs.String(name, value, usage)
}

// AddSubModes records the names of sub-modes nested beneath this level. The
// first name is the default, selected when the caller supplies none.
func (m *Modes) AddSubModes(modes ...string) {
	m.subModes = modes
}

// Mode returns the sub-mode chosen by the most recent Parse (the first
// sub-mode if none was named), or "" if there were no sub-modes.
func (m *Modes) Mode() string { return m.mode }

// Path returns the same value as Mode; it exists so that nested Modes can
// be asked for a dotted mode path without the caller tracking it itself.
func (m *Modes) Path() string { return m.mode }

// RemainingArgs returns the arguments left over after flags (and, if
// present, the leading sub-mode name) were consumed.
func (m *Modes) RemainingArgs() []string { return m.fs.Args() }

// Parse parses m.args against the registered flags. If "-help" or "-h" is
// present, usage text is written to Output and ParseHelp is returned.
// Otherwise flags are parsed in place and ParseContinue is returned.
func (m *Modes) Parse() (ParseResult, error) {
	for _, a := range m.args {
		if a == "-help" || a == "--help" || a == "-h" {
			m.printHelp()
			return ParseHelp, nil
		}
	}

	if err := m.fs.Parse(m.args); err != nil {
		return ParseContinue, err
	}

	rest := m.fs.Args()
	if len(m.subModes) > 0 {
		m.mode = m.subModes[0]
	}
	if len(m.subModes) > 0 && len(rest) > 0 {
		for _, sm := range m.subModes {
			if strings.EqualFold(sm, rest[0]) {
				m.mode = sm
				_ = m.fs.Parse(rest[1:])
				break
			}
		}
	}

	return ParseContinue, nil
}

func (m *Modes) printHelp() {
	if m.Output == nil {
		return
	}

	hasFlags := false
	m.fs.VisitAll(func(*flag.Flag) { hasFlags = true })
	if !hasFlags && len(m.subModes) == 0 {
		fmt.Fprint(m.Output, "No help available\n")
		return
	}

	fmt.Fprint(m.Output, "Usage:\n")
	if hasFlags {
		fs := flag.NewFlagSet("", flag.ContinueOnError)
		fs.SetOutput(m.Output)
		m.fs.VisitAll(func(f *flag.Flag) { fs.Var(f.Value, f.Name, f.Usage) })
		fs.PrintDefaults()
	}
	if len(m.subModes) > 0 {
		if hasFlags {
			fmt.Fprint(m.Output, "\n")
		}
		fmt.Fprintf(m.Output, "  available sub-modes: %s\n", strings.Join(m.subModes, ", "))
		fmt.Fprintf(m.Output, "    default: %s\n", m.subModes[0])
	}
}
