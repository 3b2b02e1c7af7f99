package linker

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/ez80toolchain/isa"
	"github.com/beevik/ez80toolchain/objfile"
)

func writeObj(t *testing.T, dir, name string, f *objfile.File) string {
	t.Helper()
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	if err := objfile.Write(out, f); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLinkResolvesExternAndPatches(t *testing.T) {
	dir := t.TempDir()

	main := &objfile.File{
		Code: []byte{0xC3, 0x00, 0x00, 0x00},
		Relocs: []objfile.Reloc{
			{Offset: 1, Section: isa.SectCode, Type: isa.RelocAddr24, TargetSect: isa.TargetExternal, ExtIndex: 0},
		},
		Externs: []objfile.Extern{{Name: "_printf", SymbolIndex: 0}},
	}
	lib := &objfile.File{
		Code: []byte{0x00},
		Symbols: []objfile.Symbol{
			{Name: "_printf", Section: isa.SectCode, Flags: isa.SymExport, Value: 0},
		},
	}

	mainPath := writeObj(t, dir, "main.o", main)
	libPath := writeObj(t, dir, "lib.o", lib)

	c := NewContext(0x1000, 0)
	if err := c.LoadObjects([]string{mainPath, libPath}); err != nil {
		t.Fatalf("LoadObjects: %v", err)
	}
	if err := c.Layout(); err != nil {
		t.Fatalf("Layout: %v", err)
	}
	image, err := c.Relocate()
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}

	want := []byte{0xC3, 0x04, 0x10, 0x00, 0x00}
	if !bytes.Equal(image, want) {
		t.Errorf("image = % x, want % x", image, want)
	}

	sym, ok := c.lookupSymbol("_printf")
	if !ok || sym.value != 0x1004 {
		t.Errorf("_printf = %+v, want value 0x1004", sym)
	}
}

func TestLinkUndefinedExternIsError(t *testing.T) {
	dir := t.TempDir()
	main := &objfile.File{
		Code: []byte{0xC3, 0x00, 0x00, 0x00},
		Relocs: []objfile.Reloc{
			{Offset: 1, Section: isa.SectCode, Type: isa.RelocAddr24, TargetSect: isa.TargetExternal, ExtIndex: 0},
		},
		Externs: []objfile.Extern{{Name: "_missing", SymbolIndex: 0}},
	}
	mainPath := writeObj(t, dir, "main.o", main)

	c := NewContext(0, 0)
	if err := c.LoadObjects([]string{mainPath}); err != nil {
		t.Fatal(err)
	}
	if err := c.Layout(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Relocate(); err == nil {
		t.Fatal("expected an error for an undefined external")
	}
}

func TestSelectiveLibraryLoading(t *testing.T) {
	dir := t.TempDir()

	main := &objfile.File{
		Externs: []objfile.Extern{{Name: "_used", SymbolIndex: 0}},
	}
	used := &objfile.File{
		Symbols: []objfile.Symbol{{Name: "_used", Section: isa.SectAbs, Flags: isa.SymExport, Value: 1}},
	}
	unused := &objfile.File{
		Symbols: []objfile.Symbol{{Name: "_unused", Section: isa.SectAbs, Flags: isa.SymExport, Value: 2}},
	}

	mainPath := writeObj(t, dir, "main.o", main)

	libPath := filepath.Join(dir, "libc.a")
	f, err := os.Create(libPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := objfile.Write(f, used); err != nil {
		t.Fatal(err)
	}
	if err := objfile.Write(f, unused); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c := NewContext(0, 0)
	if err := c.LoadObjects([]string{mainPath}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddLibraryPath(libPath); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadFromLibraries(); err != nil {
		t.Fatal(err)
	}
	if err := c.Layout(); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.lookupSymbol("_used"); !ok {
		t.Error("_used should have been loaded from the library")
	}

	loadedUnused := false
	for _, o := range c.objs {
		for _, s := range o.file.Symbols {
			if s.Name == "_unused" {
				loadedUnused = true
			}
		}
	}
	if loadedUnused {
		t.Error("_unused's object should not have been loaded")
	}
}
