package main

import (
	"fmt"
	"io"

	"github.com/beevik/ez80toolchain/isa"
	"github.com/beevik/ez80toolchain/objfile"
)

func flagName(f isa.SymFlag) string {
	switch f {
	case isa.SymLocal:
		return "local"
	case isa.SymExport:
		return "export"
	case isa.SymExtern:
		return "extern"
	default:
		return "?"
	}
}

func targetName(t isa.TargetSect) string {
	switch t {
	case isa.TargetExternal:
		return "EXTERN"
	case isa.TargetCode:
		return "CODE"
	case isa.TargetData:
		return "DATA"
	case isa.TargetBss:
		return "BSS"
	default:
		return "?"
	}
}

// dumpHeader prints the object file's header summary: the section and
// table sizes recorded at write time, mirroring objdump.c's header
// dump but reformatted for this format's field layout.
func dumpHeader(w io.Writer, f *objfile.File) {
	h := f.Header
	fmt.Fprintf(w, "  version=%d  code=%d data=%d bss=%d  symbols=%d relocs=%d externs=%d strtab=%d\n",
		h.Version, h.CodeSize, h.DataSize, h.BssSize, h.NumSymbols, h.NumRelocs, h.NumExterns, h.StrtabSize)
}

// dumpSymbols prints one row per exported symbol, annotated with its
// section name, as objdump.c's symbol table does.
func dumpSymbols(w io.Writer, f *objfile.File) {
	if len(f.Symbols) == 0 {
		fmt.Fprintln(w, "  (no exported symbols)")
		return
	}
	for _, s := range f.Symbols {
		fmt.Fprintf(w, "  %-32s %-4s %-7s %#06x\n", s.Name, s.Section, flagName(s.Flags), s.Value)
	}
}

// dumpRelocs prints one row per relocation, resolving target_sect and
// ext_index to a human-readable target the way objdump.c does.
func dumpRelocs(w io.Writer, f *objfile.File) {
	if len(f.Relocs) == 0 {
		fmt.Fprintln(w, "  (no relocations)")
		return
	}
	for _, r := range f.Relocs {
		target := targetName(r.TargetSect)
		if r.TargetSect == isa.TargetExternal {
			name := "?"
			if r.ExtIndex >= 0 && r.ExtIndex < len(f.Externs) {
				name = f.Externs[r.ExtIndex].Name
			}
			target = fmt.Sprintf("EXTERN(%s)", name)
		}
		fmt.Fprintf(w, "  off=%#06x sect=%-4s type=%d -> %s\n", r.Offset, r.Section, r.Type, target)
	}
}

// dumpExterns prints the ordered extern-name table, the index
// relocations refer to by ExtIndex.
func dumpExterns(w io.Writer, f *objfile.File) {
	if len(f.Externs) == 0 {
		fmt.Fprintln(w, "  (no externs)")
		return
	}
	for i, e := range f.Externs {
		fmt.Fprintf(w, "  [%d] %s\n", i, e.Name)
	}
}

// dumpObject prints the full object summary: header, symbols, relocs,
// externs. Used for both standalone objects and archive members in -v
// mode.
func dumpObject(w io.Writer, f *objfile.File) {
	fmt.Fprintln(w, "Header:")
	dumpHeader(w, f)
	fmt.Fprintln(w, "Symbols:")
	dumpSymbols(w, f)
	fmt.Fprintln(w, "Relocations:")
	dumpRelocs(w, f)
	fmt.Fprintln(w, "Externs:")
	dumpExterns(w, f)
}

// dumpArchiveMembers prints the per-member offset table for a library
// archive, as objdump.c does for an archive file.
func dumpArchiveMembers(w io.Writer, members []objfile.Member) {
	fmt.Fprintf(w, "Archive: %d members\n", len(members))
	for i, m := range members {
		fmt.Fprintf(w, "  [%d] offset=%#08x size=%d exports=%v externs=%v\n",
			i, m.Offset, m.Size, m.Exports, m.Externs)
	}
}

// hexDump writes a conventional offset/hex/ASCII dump of b, wrapped to
// width bytes per line (width is clamped to a sane range so a narrow or
// unqueryable terminal still produces readable output).
func hexDump(w io.Writer, b []byte, base, width int) {
	if width < 8 {
		width = 8
	}
	if width > 32 {
		width = 32
	}
	for off := 0; off < len(b); off += width {
		end := off + width
		if end > len(b) {
			end = len(b)
		}
		row := b[off:end]
		fmt.Fprintf(w, "%06x  ", base+off)
		for i := 0; i < width; i++ {
			if i < len(row) {
				fmt.Fprintf(w, "%02x ", row[i])
			} else {
				fmt.Fprint(w, "   ")
			}
		}
		fmt.Fprint(w, " ")
		for _, c := range row {
			if c >= 0x20 && c < 0x7f {
				fmt.Fprintf(w, "%c", c)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w)
	}
}
