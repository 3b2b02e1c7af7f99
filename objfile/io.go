package objfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/beevik/ez80toolchain/internal/bitio"
	"github.com/beevik/ez80toolchain/isa"
)

// StringTable accumulates NUL-terminated names and hands back the byte
// offset each one was written at; Write uses it for the names of symbol
// and extern records. Names are deduplicated, so a symbol and an extern
// with the same name share one string table entry.
type StringTable struct {
	buf     bytes.Buffer
	offsets map[string]int
}

// NewStringTable creates an empty string table builder.
func NewStringTable() *StringTable {
	return &StringTable{offsets: make(map[string]int)}
}

// Add appends name (if not already present) and returns its offset.
func (t *StringTable) Add(name string) int {
	if off, ok := t.offsets[name]; ok {
		return off
	}
	off := t.buf.Len()
	t.buf.WriteString(name)
	t.buf.WriteByte(0)
	t.offsets[name] = off
	return off
}

// Bytes returns the accumulated raw string table.
func (t *StringTable) Bytes() []byte { return t.buf.Bytes() }

// Len returns the current size of the string table in bytes.
func (t *StringTable) Len() int { return t.buf.Len() }

// StringAt reads a NUL-terminated name starting at offset off within
// raw string table bytes strtab.
func StringAt(strtab []byte, off int) (string, error) {
	if off < 0 || off > len(strtab) {
		return "", fmt.Errorf("objfile: string offset %d out of range", off)
	}
	end := off
	for end < len(strtab) && strtab[end] != 0 {
		end++
	}
	if end >= len(strtab) {
		return "", fmt.Errorf("objfile: unterminated string at offset %d", off)
	}
	return string(strtab[off:end]), nil
}

// Write serializes f to w in header/code/data/symbols/relocs/externs/
// strtab order. The header fields are derived from f's already-final
// slices, matching the bytes a streaming placeholder-then-rewrite
// header write would produce.
func Write(w io.Writer, f *File) error {
	strtab := NewStringTable()
	symRecs := make([]byte, 0, len(f.Symbols)*SymbolSize)
	for _, s := range f.Symbols {
		off := strtab.Add(s.Name)
		rec := make([]byte, SymbolSize)
		bitio.Put24(rec[0:3], off)
		rec[3] = byte(s.Section)
		rec[4] = byte(s.Flags)
		bitio.Put24(rec[5:8], s.Value)
		symRecs = append(symRecs, rec...)
	}

	relocRecs := make([]byte, 0, len(f.Relocs)*RelocSize)
	for _, r := range f.Relocs {
		rec := make([]byte, RelocSize)
		bitio.Put24(rec[0:3], r.Offset)
		rec[3] = byte(r.Section)
		rec[4] = byte(r.Type)
		rec[5] = byte(r.TargetSect)
		bitio.Put16(rec[6:8], r.ExtIndex)
		relocRecs = append(relocRecs, rec...)
	}

	externRecs := make([]byte, 0, len(f.Externs)*ExternSize)
	for _, e := range f.Externs {
		off := strtab.Add(e.Name)
		rec := make([]byte, ExternSize)
		bitio.Put24(rec[0:3], off)
		bitio.Put24(rec[3:6], e.SymbolIndex)
		externRecs = append(externRecs, rec...)
	}

	hdr := make([]byte, HeaderSize)
	copy(hdr[0:4], Magic[:])
	hdr[4] = Version
	hdr[5] = f.Header.Flags
	bitio.Put24(hdr[6:9], len(f.Code))
	bitio.Put24(hdr[9:12], len(f.Data))
	bitio.Put24(hdr[12:15], f.Header.BssSize)
	bitio.Put24(hdr[15:18], len(f.Symbols))
	bitio.Put24(hdr[18:21], len(f.Relocs))
	bitio.Put24(hdr[21:24], len(f.Externs))
	bitio.Put24(hdr[24:27], strtab.Len())

	for _, chunk := range [][]byte{hdr, f.Code, f.Data, symRecs, relocRecs, externRecs, strtab.Bytes()} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Read parses a single object file from r.
func Read(r io.Reader) (*File, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("objfile: read header: %w", err)
	}
	f, _, err := decode(hdr, r)
	return f, err
}

// decode parses a header already read into hdr, then streams the
// remaining sections from r. It returns the total byte size consumed
// (including the header) so callers scanning a concatenated archive
// can advance past this object without re-reading it.
func decode(hdr []byte, r io.Reader) (*File, int, error) {
	if !bytes.Equal(hdr[0:4], Magic[:]) {
		return nil, 0, ErrBadMagic
	}
	if hdr[4] != Version {
		return nil, 0, ErrBadVersion
	}

	f := &File{Header: Header{
		Version:    hdr[4],
		Flags:      hdr[5],
		CodeSize:   bitio.Get24(hdr[6:9]),
		DataSize:   bitio.Get24(hdr[9:12]),
		BssSize:    bitio.Get24(hdr[12:15]),
		NumSymbols: bitio.Get24(hdr[15:18]),
		NumRelocs:  bitio.Get24(hdr[18:21]),
		NumExterns: bitio.Get24(hdr[21:24]),
		StrtabSize: bitio.Get24(hdr[24:27]),
	}}

	total := HeaderSize

	f.Code = make([]byte, f.Header.CodeSize)
	if _, err := io.ReadFull(r, f.Code); err != nil {
		return nil, 0, fmt.Errorf("objfile: read code: %w", err)
	}
	total += f.Header.CodeSize

	f.Data = make([]byte, f.Header.DataSize)
	if _, err := io.ReadFull(r, f.Data); err != nil {
		return nil, 0, fmt.Errorf("objfile: read data: %w", err)
	}
	total += f.Header.DataSize

	symRecs := make([]byte, f.Header.NumSymbols*SymbolSize)
	if _, err := io.ReadFull(r, symRecs); err != nil {
		return nil, 0, fmt.Errorf("objfile: read symbols: %w", err)
	}
	total += len(symRecs)

	relocRecs := make([]byte, f.Header.NumRelocs*RelocSize)
	if _, err := io.ReadFull(r, relocRecs); err != nil {
		return nil, 0, fmt.Errorf("objfile: read relocs: %w", err)
	}
	total += len(relocRecs)

	externRecs := make([]byte, f.Header.NumExterns*ExternSize)
	if _, err := io.ReadFull(r, externRecs); err != nil {
		return nil, 0, fmt.Errorf("objfile: read externs: %w", err)
	}
	total += len(externRecs)

	strtab := make([]byte, f.Header.StrtabSize)
	if _, err := io.ReadFull(r, strtab); err != nil {
		return nil, 0, fmt.Errorf("objfile: read strtab: %w", err)
	}
	total += f.Header.StrtabSize

	f.Symbols = make([]Symbol, f.Header.NumSymbols)
	for i := range f.Symbols {
		rec := symRecs[i*SymbolSize : (i+1)*SymbolSize]
		name, err := StringAt(strtab, bitio.Get24(rec[0:3]))
		if err != nil {
			return nil, 0, err
		}
		f.Symbols[i] = Symbol{
			Name:    name,
			Section: isa.Section(rec[3]),
			Flags:   isa.SymFlag(rec[4]),
			Value:   bitio.Get24(rec[5:8]),
		}
	}

	f.Relocs = make([]Reloc, f.Header.NumRelocs)
	for i := range f.Relocs {
		rec := relocRecs[i*RelocSize : (i+1)*RelocSize]
		f.Relocs[i] = Reloc{
			Offset:     bitio.Get24(rec[0:3]),
			Section:    isa.Section(rec[3]),
			Type:       isa.RelocType(rec[4]),
			TargetSect: isa.TargetSect(rec[5]),
			ExtIndex:   bitio.Get16(rec[6:8]),
		}
	}

	f.Externs = make([]Extern, f.Header.NumExterns)
	for i := range f.Externs {
		rec := externRecs[i*ExternSize : (i+1)*ExternSize]
		name, err := StringAt(strtab, bitio.Get24(rec[0:3]))
		if err != nil {
			return nil, 0, err
		}
		f.Externs[i] = Extern{
			Name:        name,
			SymbolIndex: bitio.Get24(rec[3:6]),
		}
	}

	return f, total, nil
}
