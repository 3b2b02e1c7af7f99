// Package objfile implements the eZ80 ADL relocatable object file format:
// a 24-bit little-endian layout with code/data/BSS sections, a symbol
// table, a relocation table, an external-reference table and a shared
// string table. It is consumed by the assembler (writer), the linker
// (reader, plus an archive scanner) and the dump utility (reader).
package objfile

import (
	"fmt"

	"github.com/beevik/ez80toolchain/isa"
)

// Magic is the 4-byte "EZ8O" signature every object file starts with.
var Magic = [4]byte{0x45, 0x5A, 0x38, 0x4F}

// Version is the only object file format version this package writes
// and the only one it accepts on read.
const Version = 3

// Fixed record sizes, in bytes.
const (
	HeaderSize = 27
	SymbolSize = 10
	RelocSize  = 8
	ExternSize = 6
)

// Header is the 27-byte object file header.
type Header struct {
	Version    byte
	Flags      byte
	CodeSize   int
	DataSize   int
	BssSize    int
	NumSymbols int
	NumRelocs  int
	NumExterns int
	StrtabSize int
}

// Symbol is an exported symbol record. Only exported symbols are
// written to the object file; local and external symbols never appear
// here (externals are recorded in the Externs table instead).
type Symbol struct {
	Name    string
	Section isa.Section
	Flags   isa.SymFlag
	Value   int
}

// Reloc is a single 24-bit relocation record.
type Reloc struct {
	Offset     int
	Section    isa.Section
	Type       isa.RelocType
	TargetSect isa.TargetSect
	ExtIndex   int
}

// Extern is a reference to a symbol defined in another object file.
// SymbolIndex is the stable index assigned to this external by the
// assembler (the order in which xref names were first seen); it is the
// index relocations refer to via Reloc.ExtIndex.
type Extern struct {
	Name        string
	SymbolIndex int
}

// File is the fully decoded in-memory form of an object file.
type File struct {
	Header  Header
	Code    []byte
	Data    []byte
	Symbols []Symbol
	Relocs  []Reloc
	Externs []Extern
}

func (e *Reloc) String() string {
	return fmt.Sprintf("off=%06X sect=%s type=%d target=%d ext=%d",
		e.Offset, e.Section, e.Type, e.TargetSect, e.ExtIndex)
}

// ErrBadMagic is returned when a stream does not begin with the object
// file magic number.
var ErrBadMagic = fmt.Errorf("objfile: bad magic")

// ErrBadVersion is returned when a stream's version field does not
// match Version.
var ErrBadVersion = fmt.Errorf("objfile: unsupported version")
