package objfile_test

import (
	"bytes"
	"testing"

	"github.com/beevik/ez80toolchain/isa"
	"github.com/beevik/ez80toolchain/objfile"
)

func sampleFile() *objfile.File {
	return &objfile.File{
		Header: objfile.Header{BssSize: 4},
		Code:   []byte{0xC3, 0x00, 0x00, 0x00}, // jp $000000 (patched later)
		Data:   []byte{0x2A, 0x00},
		Symbols: []objfile.Symbol{
			{Name: "_main", Section: isa.SectCode, Flags: isa.SymExport, Value: 0},
		},
		Relocs: []objfile.Reloc{
			{Offset: 1, Section: isa.SectCode, Type: isa.RelocAddr24, TargetSect: isa.TargetCode, ExtIndex: 0},
			{Offset: 0, Section: isa.SectData, Type: isa.RelocAddr24, TargetSect: isa.TargetExternal, ExtIndex: 0},
		},
		Externs: []objfile.Extern{
			{Name: "_printf", SymbolIndex: 0},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := sampleFile()

	var buf bytes.Buffer
	if err := objfile.Write(&buf, f); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := objfile.Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(got.Code, f.Code) {
		t.Errorf("Code mismatch: got %v, want %v", got.Code, f.Code)
	}
	if !bytes.Equal(got.Data, f.Data) {
		t.Errorf("Data mismatch: got %v, want %v", got.Data, f.Data)
	}
	if got.Header.BssSize != f.Header.BssSize {
		t.Errorf("BssSize: got %d, want %d", got.Header.BssSize, f.Header.BssSize)
	}
	if len(got.Symbols) != 1 || got.Symbols[0].Name != "_main" {
		t.Fatalf("Symbols: got %+v", got.Symbols)
	}
	if len(got.Relocs) != 2 {
		t.Fatalf("Relocs: got %d, want 2", len(got.Relocs))
	}
	if len(got.Externs) != 1 || got.Externs[0].Name != "_printf" {
		t.Fatalf("Externs: got %+v", got.Externs)
	}
}

func TestReadBadMagic(t *testing.T) {
	buf := bytes.NewReader(make([]byte, objfile.HeaderSize))
	_, err := objfile.Read(buf)
	if err != objfile.ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestScanArchiveConcatenated(t *testing.T) {
	a := sampleFile()
	b := sampleFile()
	b.Symbols[0].Name = "_other"

	var buf bytes.Buffer
	if err := objfile.Write(&buf, a); err != nil {
		t.Fatal(err)
	}
	if err := objfile.Write(&buf, b); err != nil {
		t.Fatal(err)
	}

	r := bytes.NewReader(buf.Bytes())
	members, err := objfile.ScanArchive(r)
	if err != nil {
		t.Fatalf("ScanArchive: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].Exports[0] != "_main" || members[1].Exports[0] != "_other" {
		t.Fatalf("unexpected export order: %+v", members)
	}

	decoded, err := objfile.ReadMember(r, members[1])
	if err != nil {
		t.Fatalf("ReadMember: %v", err)
	}
	if decoded.Symbols[0].Name != "_other" {
		t.Fatalf("ReadMember got wrong object: %+v", decoded.Symbols)
	}
}
