package asm

import (
	"fmt"
	"os"
	"strings"

	"github.com/beevik/ez80toolchain/isa"
)

// directiveFunc handles one recognized directive. label is the label
// given on the same line, if any. The caller does not define it: each
// handler that takes a label defines it itself, at the current
// section/PC via defineLabelHere, or in the absolute section for equ/=.
type directiveFunc func(a *assembler, label string, lex *lexer) error

// directives is keyed by every accepted spelling (including the
// '.'-prefixed alias). A directive name must match exactly: "or" must
// never resolve to "org", so this is a plain map, not a prefix index.
var directives = make(map[string]directiveFunc)

func registerDirective(fn directiveFunc, names ...string) {
	for _, n := range names {
		directives[n] = fn
		directives["."+n] = fn
	}
}

func init() {
	registerDirective(dirOrg, "org")
	registerDirective(dirEqu, "equ")
	registerDirective(dirEqu, "=")
	registerDirective(dirData(1), "db", "defb", "byte")
	registerDirective(dirData(2), "dw", "defw", "word")
	registerDirective(dirData(3), "dl", "defl", "long", "dd")
	registerDirective(dirSpace, "ds", "defs", "rmb", "blkb")
	registerDirective(dirAscii(false), "ascii")
	registerDirective(dirAscii(true), "asciz", "asciiz")
	registerDirective(dirSection, "section", "segment")
	registerDirective(dirVisibility(isa.SymExport), "xdef", "public", "global")
	registerDirective(dirVisibility(isa.SymExtern), "xref", "extern", "external")
	registerDirective(dirAssume, "assume")
	registerDirective(dirAlign, "align")
	registerDirective(dirInclude, "include")
	registerDirective(dirIncbin, "incbin")
	registerDirective(dirEnd, "end")
}

func lookupDirective(name string) (directiveFunc, bool) {
	fn, ok := directives[strings.ToLower(name)]
	return fn, ok
}

func dirOrg(a *assembler, label string, lex *lexer) error {
	v, err := a.evalConst(lex)
	if err != nil {
		return err
	}
	a.pc[a.curSect] = v
	if err := expectEOL(lex); err != nil {
		return err
	}
	return a.defineLabelHere(label)
}

func dirEqu(a *assembler, label string, lex *lexer) error {
	if label == "" {
		return fmt.Errorf("equ requires a label")
	}
	v, err := a.evalConst(lex)
	if err != nil {
		return err
	}
	if err := expectEOL(lex); err != nil {
		return err
	}
	name := a.mangle(label)
	_, err = a.syms.define(name, isa.SectAbs, v, a.pass1)
	return err
}

// dirData returns a directive handler for db/dw/dl, parameterized by
// the field width in bytes.
func dirData(width int) directiveFunc {
	return func(a *assembler, label string, lex *lexer) error {
		if err := a.defineLabelHere(label); err != nil {
			return err
		}
		for {
			t := lex.Peek()
			if t.kind == tokString && width == 1 {
				lex.Next()
				for i := 0; i < len(t.str); i++ {
					a.emitByte(t.str[i])
				}
			} else {
				expr := newExprParser(lex, a.syms, a.pc[a.curSect], a.pass1)
				v, err := expr.parse()
				if err != nil {
					return err
				}
				switch width {
				case 1:
					if v.sym != nil {
						return fmt.Errorf("db cannot hold a relocatable value (use dl)")
					}
					if err := a.emit8(v); err != nil {
						return err
					}
				case 2:
					if v.sym != nil {
						return fmt.Errorf("dw cannot hold a relocatable value (use dl)")
					}
					if err := a.emit16(v); err != nil {
						return err
					}
				case 3:
					a.emit24(v)
				}
			}
			if lex.Peek().kind != tokComma {
				break
			}
			lex.Next()
		}
		return expectEOL(lex)
	}
}

func dirSpace(a *assembler, label string, lex *lexer) error {
	if err := a.defineLabelHere(label); err != nil {
		return err
	}
	v, err := a.evalConst(lex)
	if err != nil {
		return err
	}
	if err := expectEOL(lex); err != nil {
		return err
	}
	for i := 0; i < v; i++ {
		a.emitByte(0)
	}
	return nil
}

func dirAscii(terminate bool) directiveFunc {
	return func(a *assembler, label string, lex *lexer) error {
		if err := a.defineLabelHere(label); err != nil {
			return err
		}
		for {
			t := lex.Next()
			if t.kind != tokString {
				return fmt.Errorf("expected a string literal")
			}
			for i := 0; i < len(t.str); i++ {
				a.emitByte(t.str[i])
			}
			if terminate {
				a.emitByte(0)
			}
			if lex.Peek().kind != tokComma {
				break
			}
			lex.Next()
		}
		return expectEOL(lex)
	}
}

var sectionNames = map[string]isa.Section{
	"code": isa.SectCode, "text": isa.SectCode, ".text": isa.SectCode,
	"data": isa.SectData, ".data": isa.SectData,
	"bss": isa.SectBss, ".bss": isa.SectBss,
}

func dirSection(a *assembler, label string, lex *lexer) error {
	t := lex.Next()
	if t.kind != tokIdent {
		return fmt.Errorf("expected a section name")
	}
	sect, ok := sectionNames[toLowerASCII(t.str)]
	if !ok {
		a.warnf(lex, "unknown section %q, defaulting to code", t.str)
		sect = isa.SectCode
	}
	a.curSect = sect
	if err := expectEOL(lex); err != nil {
		return err
	}
	return a.defineLabelHere(label)
}

func dirVisibility(flag isa.SymFlag) directiveFunc {
	return func(a *assembler, label string, lex *lexer) error {
		if err := a.defineLabelHere(label); err != nil {
			return err
		}
		for {
			t := lex.Next()
			if t.kind != tokIdent {
				return fmt.Errorf("expected a symbol name")
			}
			var err error
			if flag == isa.SymExport {
				_, err = a.syms.setExport(t.str)
			} else {
				_, err = a.syms.setExtern(t.str)
			}
			if err != nil {
				return err
			}
			if lex.Peek().kind != tokComma {
				break
			}
			lex.Next()
		}
		return expectEOL(lex)
	}
}

func dirAssume(a *assembler, label string, lex *lexer) error {
	t := lex.Next()
	if t.kind != tokIdent || toLowerASCII(t.str) != "adl" {
		return fmt.Errorf("expected ADL=<0|1>")
	}
	if lex.Next().kind != tokEquals {
		return fmt.Errorf("expected '='")
	}
	v := lex.Next()
	if v.kind != tokNumber {
		return fmt.Errorf("expected 0 or 1")
	}
	if v.num != 1 {
		return fmt.Errorf("ADL=0 is not supported; this assembler targets ADL mode only")
	}
	a.adl = true
	return expectEOL(lex)
}

func dirAlign(a *assembler, label string, lex *lexer) error {
	v, err := a.evalConst(lex)
	if err != nil {
		return err
	}
	if v <= 0 || v&(v-1) != 0 {
		return fmt.Errorf("align argument must be a power of two")
	}
	if err := expectEOL(lex); err != nil {
		return err
	}
	pc := a.pc[a.curSect]
	pad := (v - (pc % v)) % v
	for i := 0; i < pad; i++ {
		a.emitByte(0)
	}
	return a.defineLabelHere(label)
}

func dirInclude(a *assembler, label string, lex *lexer) error {
	// Textual inclusion is resolved by the line loader before passes
	// run, and the loader expands only a line holding nothing but
	// 'include "file"'. Any other include line (one with a label, for
	// example) reaches this handler and is rejected.
	return fmt.Errorf("include must be resolved before assembly")
}

func dirIncbin(a *assembler, label string, lex *lexer) error {
	if err := a.defineLabelHere(label); err != nil {
		return err
	}
	t := lex.Next()
	if t.kind != tokString {
		return fmt.Errorf("incbin requires a file name string")
	}
	if err := expectEOL(lex); err != nil {
		return err
	}
	data, err := os.ReadFile(t.str)
	if err != nil {
		return fmt.Errorf("incbin: %w", err)
	}
	for _, b := range data {
		a.emitByte(b)
	}
	return nil
}

func dirEnd(a *assembler, label string, lex *lexer) error {
	return a.defineLabelHere(label)
}
