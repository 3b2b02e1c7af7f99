// Package linker combines eZ80 ADL relocatable object files and library
// archives into a flat binary image. It mirrors the assembler's
// two-pass-then-emit shape with three stages of its own: selective
// loading (loader.go), layout and symbol resolution
// (layout.go), and relocation (relocate.go).
package linker

import (
	"fmt"

	"github.com/beevik/ez80toolchain/isa"
	"github.com/beevik/ez80toolchain/objfile"
)

// Option holds bit flags controlling Link's behavior.
type Option uint

const (
	Verbose Option = 1 << iota
)

// object is a loaded input object together with its provenance and the
// absolute base addresses assigned to it during layout.
type object struct {
	path         string // originating file: a command-line object, or a library member
	file         *objfile.File
	lib          string // non-empty if loaded from a library archive
	loaded       bool
	memberOffset int64 // byte offset within lib, for library members only
	code         int
	data         int
	bss          int
}

// globalSymbol is one entry in the linker's cross-object symbol table.
// Lookup is case-insensitive, per the spec's "the linker performs
// case-insensitive matching across objects."
type globalSymbol struct {
	name    string // original-case spelling, for diagnostics and the map file
	section isa.Section
	value   int // section-relative until resolveSymbols adds the base
	obj     *object
}

// Context carries all state threaded through a single Link invocation:
// the loaded object set, the growing global symbol table, and the
// command-line configuration that drives loading and layout.
type Context struct {
	BaseAddr  int
	LibDirs   []string
	LibNames  []string
	Verbose   bool

	objs    []*object
	syms    map[string]*globalSymbol // key: strings.ToLower(name)
	undef   map[string]bool          // key: strings.ToLower(name)
	libs    []libSource

	totalCode, totalData, totalBss int

	warnings []string
}

// libSource is one -L/-l pair resolved to a concrete archive path, or a
// bare archive path given directly on the command line.
type libSource struct {
	path    string
	members []objfile.Member
	scanned bool
}

// NewContext creates an empty linking context with the given base
// address (the address section Code of the first object is laid out
// at).
func NewContext(baseAddr int, options Option) *Context {
	return &Context{
		BaseAddr: baseAddr,
		Verbose:  options&Verbose != 0,
		syms:     make(map[string]*globalSymbol),
		undef:    make(map[string]bool),
	}
}

func (c *Context) logf(format string, args ...interface{}) {
	if c.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func (c *Context) warnf(format string, args ...interface{}) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns every warning accumulated during Link.
func (c *Context) Warnings() []string { return c.warnings }
