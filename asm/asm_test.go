package asm_test

import (
	"strings"
	"testing"

	"github.com/beevik/ez80toolchain/asm"
	"github.com/beevik/ez80toolchain/isa"
)

func assembleString(t *testing.T, src string) *asm.Result {
	t.Helper()
	r, err := asm.Assemble(strings.NewReader(src), "test.asm", 0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return r
}

func TestAssembleBasicLoadAndJump(t *testing.T) {
	src := `
	assume adl=1
	org $0000
start:
	ld a, 5
	jp start
`
	r := assembleString(t, src)
	want := []byte{0x3E, 0x05, 0xC3, 0x00, 0x00, 0x00}
	if string(r.Object.Code) != string(want) {
		t.Errorf("code = % x, want % x", r.Object.Code, want)
	}
}

func TestAssembleExportedSymbol(t *testing.T) {
	src := `
	assume adl=1
	xdef _start
_start:
	ld hl, 0
	ret
`
	r := assembleString(t, src)
	var found *isa.SymFlag
	for _, s := range r.Object.Symbols {
		if s.Name == "_start" {
			found = &s.Flags
		}
	}
	if found == nil {
		t.Fatal("_start not found in symbol table")
	}
	if *found&isa.SymExport == 0 {
		t.Errorf("_start flags = %v, want SymExport set", *found)
	}
}

func TestAssembleExternReferenceProducesReloc(t *testing.T) {
	src := `
	assume adl=1
	xref _value
	ld hl, _value
`
	r := assembleString(t, src)
	if len(r.Object.Externs) != 1 || r.Object.Externs[0].Name != "_value" {
		t.Fatalf("Externs = %+v, want one entry named _value", r.Object.Externs)
	}
	if len(r.Object.Relocs) != 1 {
		t.Fatalf("Relocs = %+v, want exactly one relocation", r.Object.Relocs)
	}
	reloc := r.Object.Relocs[0]
	if reloc.TargetSect != isa.TargetExternal || reloc.ExtIndex != 0 {
		t.Errorf("reloc = %+v, want TargetExternal pointing at extern 0", reloc)
	}
	// ld hl,nn is 0x21 (0x01 | dd<<4, dd=2 for HL) followed by the
	// 24-bit operand, so the operand starts one byte into the
	// instruction.
	if reloc.Offset != 1 {
		t.Errorf("reloc.Offset = %d, want 1", reloc.Offset)
	}
	want := []byte{0x21, 0x00, 0x00, 0x00}
	if string(r.Object.Code) != string(want) {
		t.Errorf("code = % x, want % x", r.Object.Code, want)
	}
}

func TestAssembleMissingAssumeIsError(t *testing.T) {
	src := `
	ld a, 1
`
	_, err := asm.Assemble(strings.NewReader(src), "test.asm", 0)
	if err == nil {
		t.Fatal("expected an error for a missing 'assume adl=1' directive")
	}
}

func TestAssembleTwoPassLabelForwardReference(t *testing.T) {
	src := `
	assume adl=1
	org $0000
	jp forward
forward:
	ld a, 1
`
	r := assembleString(t, src)
	want := []byte{0xC3, 0x04, 0x00, 0x00, 0x3E, 0x01}
	if string(r.Object.Code) != string(want) {
		t.Errorf("code = % x, want % x (forward reference to 'forward' at offset 4)", r.Object.Code, want)
	}
}
