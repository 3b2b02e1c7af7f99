// Package asm implements a two-pass assembler for the Zilog eZ80
// processor restricted to ADL (24-bit Address/Data Long) mode. It
// tokenizes a line at a time, classifies operands, and encodes
// instructions into relocatable code/data sections, recording
// relocations for any 24-bit field that depends on an unresolved or
// external symbol.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/beevik/ez80toolchain/isa"
	"github.com/beevik/ez80toolchain/objfile"
)

var errParse = errors.New("parse error")

// Option controls optional assembler behavior.
type Option uint

const (
	Verbose Option = 1 << iota // log each pass's progress to Out
)

// asmError records one diagnostic, positioned at the source line that
// produced it.
type asmError struct {
	file string
	row  int
	col  int
	msg  string
}

func (e asmError) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.file, e.row, e.col+1, e.msg)
}

// sourceLine is one line of the fully include-expanded source, tagged
// with the file it came from for diagnostics.
type sourceLine struct {
	file string
	row  int
	text string
}

// assembler is the owning state record threaded through both passes:
// symbol table, current section/PC, accumulated code/data bytes,
// relocations, and diagnostics. There are no package-level globals
// carrying assembly state; everything lives here.
type assembler struct {
	syms    *symtab
	pc      [4]int // indexed by isa.Section
	curSect isa.Section
	code    []byte
	data    []byte
	bssSize int
	relocs  []objfile.Reloc
	adl     bool

	pass1 bool
	lines []sourceLine

	errors   []asmError
	warnings []string

	out     io.Writer
	verbose bool

	fileIndex map[string]int
	files     []string
	mapLines  []SourceLine
}

// Result is the outcome of a successful assembly.
type Result struct {
	Object    *objfile.File
	Warnings  []string
	SourceMap *SourceMap
}

// AssembleFile reads path (expanding any 'include' directives inline),
// assembles it, and writes the resulting object file to outPath.
func AssembleFile(path, outPath string, options Option) error {
	out := os.Stdout
	lines, err := loadSource(path)
	if err != nil {
		return err
	}

	a := newAssembler(lines, out, options)
	res, err := a.run()
	if err != nil {
		for _, e := range a.errors {
			fmt.Fprintln(out, e.String())
		}
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(out, "warning:", w)
	}

	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := objfile.Write(f, res.Object); err != nil {
		return err
	}

	ext := filepath.Ext(outPath)
	mapPath := outPath[:len(outPath)-len(ext)] + ".map"
	mapFile, err := os.OpenFile(mapPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer mapFile.Close()
	if _, err := res.SourceMap.WriteTo(mapFile); err != nil {
		return err
	}

	fmt.Fprintf(out, "Assembled '%s' to produce '%s' and '%s'.\n", filepath.Base(path), filepath.Base(outPath), filepath.Base(mapPath))
	return nil
}

// Assemble runs the two-pass pipeline over the source text read from r.
// 'include' lines are expanded inline as the text is read, with
// relative paths resolved against the directory of filename.
func Assemble(r io.Reader, filename string, options Option) (*Result, error) {
	lines, err := readLines(r, filename)
	if err != nil {
		return nil, err
	}
	a := newAssembler(lines, os.Stdout, options)
	return a.run()
}

func newAssembler(lines []sourceLine, out io.Writer, options Option) *assembler {
	return &assembler{
		syms:      newSymtab(),
		curSect:   isa.SectCode,
		lines:     lines,
		out:       out,
		verbose:   options&Verbose != 0,
		fileIndex: make(map[string]int),
	}
}

// run executes pass 1 (symbol collection and section sizing), then
// pass 2 (code generation and relocation recording), and finally
// builds the object file. Because every ADL instruction's length is
// syntactically determined — no addressing mode depends on an
// operand's runtime value — one pass suffices to size sections; no
// fixed-point iteration like a variable-width ISA would need.
func (a *assembler) run() (*Result, error) {
	a.logSection("Pass 1: collecting symbols and sizing sections")
	a.pass1 = true
	if err := a.assemblePass(); err != nil {
		return nil, err
	}
	if len(a.errors) > 0 {
		return a.fail()
	}
	pass1Sizes := a.pc

	a.logSection("Pass 2: generating code")
	a.pass1 = false
	a.syms.scope = 0 // number local-label scopes exactly as pass 1 did
	a.pc = [4]int{}
	a.curSect = isa.SectCode
	a.code = nil
	a.data = nil
	a.relocs = nil
	if err := a.assemblePass(); err != nil {
		return nil, err
	}
	if len(a.errors) > 0 {
		return a.fail()
	}

	for s := isa.SectCode; s <= isa.SectBss; s++ {
		if a.pc[s] != pass1Sizes[s] {
			return nil, fmt.Errorf("internal error: pass 1/2 size mismatch in section %s (%d != %d)", s, pass1Sizes[s], a.pc[s])
		}
	}

	obj := a.buildObject()
	return &Result{Object: obj, Warnings: a.warnings, SourceMap: a.buildSourceMap()}, nil
}

func (a *assembler) fail() (*Result, error) {
	return nil, errParse
}

// assemblePass runs one complete pass over a.lines. Errors on
// individual lines are accumulated and the driver moves on to the
// next line, so a single run reports as many diagnostics as possible.
func (a *assembler) assemblePass() error {
	sawAssume := false
	for _, sl := range a.lines {
		if !a.pass1 {
			a.recordMapLine(sl)
		}
		if err := a.assembleLine(sl); err != nil {
			a.addError(sl, err)
			continue
		}
		if a.adl {
			sawAssume = true
		}
	}
	if !sawAssume {
		return fmt.Errorf("missing 'assume adl=1' directive")
	}
	return nil
}

func (a *assembler) addError(sl sourceLine, err error) {
	a.errors = append(a.errors, asmError{file: sl.file, row: sl.row, col: 0, msg: err.Error()})
}

func (a *assembler) warnf(lex *lexer, format string, args ...interface{}) {
	a.warnings = append(a.warnings, fmt.Sprintf(format, args...))
}

// assembleLine tokenizes and dispatches a single source line: an
// optional label, then either a directive or an instruction mnemonic.
func (a *assembler) assembleLine(sl sourceLine) error {
	line := newFstring(0, sl.row, sl.text)
	lex := newLexer(line)

	t := lex.Peek()
	if t.kind == tokEOL {
		return nil
	}

	var label string
	if t.kind == tokLabel {
		lex.Next()
		label = t.str
	}

	t = lex.Peek()
	if t.kind == tokEOL {
		return a.defineLabelHere(label)
	}

	if t.kind == tokIdent {
		if fn, ok := lookupDirective(t.str); ok {
			lex.Next()
			return fn(a, label, lex)
		}
		if op, ok := isa.SimpleOps[toLowerASCII(t.str)]; ok {
			lex.Next()
			if err := a.defineLabelHere(label); err != nil {
				return err
			}
			if err := expectEOL(lex); err != nil {
				return err
			}
			if op.Prefix != 0 {
				a.emitByte(op.Prefix)
			}
			a.emitByte(op.Opcode)
			return nil
		}
		if fn, ok := lookupInstruction(t.str); ok {
			lex.Next()
			if err := a.defineLabelHere(label); err != nil {
				return err
			}
			ops, err := a.parseOperandList(lex)
			if err != nil {
				return err
			}
			if err := fn(a, ops); err != nil {
				return err
			}
			return expectEOL(lex)
		}
		if label == "" {
			// "name equ expr" / "name = expr": a bare identifier
			// followed by equ or '=' names the symbol being defined.
			lex.Next()
			next := lex.Peek()
			if next.kind == tokEquals || (next.kind == tokIdent &&
				(toLowerASCII(next.str) == "equ" || toLowerASCII(next.str) == ".equ")) {
				lex.Next()
				return dirEqu(a, t.str, lex)
			}
		}
	}

	if t.kind == tokEquals {
		lex.Next()
		return dirEqu(a, label, lex)
	}

	return fmt.Errorf("unknown mnemonic or directive %q", t.String())
}

func (a *assembler) parseOperandList(lex *lexer) ([]operand, error) {
	if lex.Peek().kind == tokEOL {
		return nil, nil
	}
	var ops []operand
	for {
		o, err := parseOperand(lex, a.syms, a.pc[a.curSect], a.pass1)
		if err != nil {
			return nil, err
		}
		ops = append(ops, o)
		if lex.Peek().kind != tokComma {
			break
		}
		lex.Next()
	}
	return ops, nil
}

// defineLabelHere defines label (if present) at the current
// section/PC and closes the local-label scope.
func (a *assembler) defineLabelHere(label string) error {
	if label == "" {
		return nil
	}
	name := a.mangle(label)
	_, err := a.syms.define(name, a.curSect, a.pc[a.curSect], a.pass1)
	if err != nil {
		return err
	}
	if len(label) == 0 || label[0] != '@' {
		a.syms.endScope()
	}
	return nil
}

func (a *assembler) mangle(name string) string {
	if len(name) > 0 && name[0] == '@' {
		return a.syms.mangleLocal(name)
	}
	return name
}

// evalConst evaluates an expression that must be a pure constant
// (no relocatable symbol).
func (a *assembler) evalConst(lex *lexer) (int, error) {
	expr := newExprParser(lex, a.syms, a.pc[a.curSect], a.pass1)
	v, err := expr.parse()
	if err != nil {
		return 0, err
	}
	if v.sym != nil {
		return 0, fmt.Errorf("expected a constant expression")
	}
	return v.value, nil
}

//
// emission helpers
//

func (a *assembler) emitByte(b byte) {
	switch a.curSect {
	case isa.SectCode:
		if !a.pass1 {
			a.code = append(a.code, b)
		}
	case isa.SectData:
		if !a.pass1 {
			a.data = append(a.data, b)
		}
	case isa.SectBss:
		// BSS never materializes bytes, only reserves space.
	}
	a.pc[a.curSect]++
}

func (a *assembler) emit8(v exprValue) error {
	if v.sym != nil {
		return fmt.Errorf("relocatable value not allowed here")
	}
	a.emitByte(byte(isa.Mask8(v.value)))
	return nil
}

func (a *assembler) emit16(v exprValue) error {
	if v.sym != nil {
		return fmt.Errorf("relocatable value not allowed here (use dl)")
	}
	val := isa.Mask16(v.value)
	a.emitByte(byte(val))
	a.emitByte(byte(val >> 8))
	return nil
}

// emit24 writes a 24-bit little-endian field, recording a relocation
// if v carries a symbol. Local/global symbols record target_sect as
// the symbol's own section with the symbol's section-relative value
// as the placeholder bytes; externals record target_sect=External
// with all-zero placeholder bytes.
func (a *assembler) emit24(v exprValue) {
	if v.sym != nil && !a.pass1 {
		var targetSect isa.TargetSect
		var extIdx int
		if v.sym.flags == isa.SymExtern {
			targetSect = isa.TargetExternal
			idx, _ := a.syms.externIndex(v.sym)
			extIdx = idx
		} else {
			targetSect = isa.SectionToTarget(v.sym.section)
		}
		a.relocs = append(a.relocs, objfile.Reloc{
			Offset:     a.pc[a.curSect],
			Section:    a.curSect,
			Type:       isa.RelocAddr24,
			TargetSect: targetSect,
			ExtIndex:   extIdx,
		})
	}
	val := v.value
	if v.sym != nil && v.sym.flags == isa.SymExtern {
		val = 0
	}
	val = isa.Mask24(val)
	a.emitByte(byte(val))
	a.emitByte(byte(val >> 8))
	a.emitByte(byte(val >> 16))
}

//
// object construction
//

func (a *assembler) buildObject() *objfile.File {
	f := &objfile.File{
		Code: a.code,
		Data: a.data,
	}
	f.Header.BssSize = a.pc[isa.SectBss]

	for _, s := range a.syms.entries {
		if s.flags != isa.SymExport {
			continue
		}
		f.Symbols = append(f.Symbols, objfile.Symbol{
			Name:    s.name,
			Section: s.section,
			Flags:   s.flags,
			Value:   s.value,
		})
	}

	for i, s := range a.syms.externs {
		f.Externs = append(f.Externs, objfile.Extern{
			Name:        s.name,
			SymbolIndex: i,
		})
	}

	f.Relocs = a.relocs
	return f
}

// recordMapLine notes the code address at which sl begins, so the
// resulting source map can later answer "what line produced the byte
// at address X". Only meaningful for lines that contribute to the
// code section; lines assembled while a non-code section is active
// still get an entry so Search's binary search stays monotonic, but
// they map to whatever code address immediately precedes them.
func (a *assembler) recordMapLine(sl sourceLine) {
	idx, ok := a.fileIndex[sl.file]
	if !ok {
		idx = len(a.files)
		a.fileIndex[sl.file] = idx
		a.files = append(a.files, sl.file)
	}
	a.mapLines = append(a.mapLines, SourceLine{
		Address:   a.pc[isa.SectCode],
		FileIndex: idx,
		Line:      sl.row,
	})
}

// buildSourceMap assembles the SourceMap for this run: the file table,
// the address/line table recorded during pass 2, and every exported
// symbol, for consumers (debuggers, linker map files) that want to
// translate an address back to source.
func (a *assembler) buildSourceMap() *SourceMap {
	m := &SourceMap{Files: a.files, Lines: a.mapLines}
	for _, s := range a.syms.entries {
		if s.flags != isa.SymExport {
			continue
		}
		m.Exports = append(m.Exports, Export{Label: s.name, Address: s.value})
	}
	return m
}

//
// logging
//

func (a *assembler) logSection(name string) {
	if a.verbose {
		fmt.Fprintf(a.out, "--- %s ---\n", name)
	}
}

func (a *assembler) log(format string, args ...interface{}) {
	if a.verbose {
		fmt.Fprintf(a.out, format+"\n", args...)
	}
}

//
// source loading, with inline 'include' expansion
//

func loadSource(path string) ([]sourceLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return expandIncludes(f, path, make(map[string]bool))
}

func readLines(r io.Reader, filename string) ([]sourceLine, error) {
	return expandIncludes(r, filename, make(map[string]bool))
}

// expandIncludes performs the assembler's one preprocessing pass:
// 'include "file"' lines are replaced inline by the named file's
// fully-expanded lines, recursively. 'incbin' is left untouched; it is
// a directive resolved during assembly, not at load time.
func expandIncludes(r io.Reader, filename string, active map[string]bool) ([]sourceLine, error) {
	abs, err := filepath.Abs(filename)
	if err == nil {
		if active[abs] {
			return nil, fmt.Errorf("%s: circular include", filename)
		}
		active[abs] = true
		defer delete(active, abs)
	}

	var out []sourceLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	row := 0
	for scanner.Scan() {
		row++
		text := scanner.Text()
		if incPath, ok := parseIncludeLine(text); ok {
			dir := filepath.Dir(filename)
			full := incPath
			if !filepath.IsAbs(incPath) {
				full = filepath.Join(dir, incPath)
			}
			sub, err := os.Open(full)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: include %q: %w", filename, row, incPath, err)
			}
			nested, err := expandIncludes(sub, full, active)
			sub.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, sourceLine{file: filename, row: row, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseIncludeLine recognizes a bare 'include "file"' / '.include
// "file"' line with the lexer alone, since the preprocessor
// runs before any assembler state (symbol table, sections) exists.
func parseIncludeLine(text string) (string, bool) {
	line := newFstring(0, 0, text).stripTrailingComment()
	lex := newLexer(line)
	t := lex.Peek()
	if t.kind != tokIdent {
		return "", false
	}
	name := toLowerASCII(t.str)
	if name != "include" && name != ".include" {
		return "", false
	}
	lex.Next()
	arg := lex.Next()
	if arg.kind != tokString {
		return "", false
	}
	if lex.Peek().kind != tokEOL {
		return "", false
	}
	return arg.str, true
}
