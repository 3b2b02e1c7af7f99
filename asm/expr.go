package asm

import (
	"fmt"

	"github.com/beevik/ez80toolchain/isa"
)

// exprValue is the result of evaluating an expression: a 24-bit
// constant, optionally tagged with at most one relocatable symbol. This
// is the tagged-union reformulation of "a value plus a copy of a
// symbol name" — the tag (sym == nil or not) carries the "at most one
// symbol" invariant directly instead of a separate bookkeeping flag.
type exprValue struct {
	value int
	sym   *symbol // nil for a pure constant
}

func constValue(v int) exprValue { return exprValue{value: isa.Wrap24(v)} }

func relValue(v int, s *symbol) exprValue { return exprValue{value: isa.Wrap24(v), sym: s} }

// exprParser evaluates the limited arithmetic grammar of an operand
// expression: primary -> mulDiv -> addSub. Parentheses are handled by
// the caller (operand classifier) for indirection; here they only
// nest sub-expressions.
type exprParser struct {
	lex   *lexer
	pc    int // current-PC value the '$' atom resolves to
	syms  *symtab
	pass1 bool
}

func newExprParser(lex *lexer, syms *symtab, pc int, pass1 bool) *exprParser {
	return &exprParser{lex: lex, pc: pc, syms: syms, pass1: pass1}
}

func (p *exprParser) parse() (exprValue, error) {
	return p.parseAddSub()
}

func (p *exprParser) parseAddSub() (exprValue, error) {
	lhs, err := p.parseMulDiv()
	if err != nil {
		return exprValue{}, err
	}
	for {
		switch p.lex.Peek().kind {
		case tokPlus:
			p.lex.Next()
			rhs, err := p.parseMulDiv()
			if err != nil {
				return exprValue{}, err
			}
			lhs, err = addValues(lhs, rhs)
			if err != nil {
				return exprValue{}, err
			}
		case tokMinus:
			p.lex.Next()
			rhs, err := p.parseMulDiv()
			if err != nil {
				return exprValue{}, err
			}
			lhs, err = subValues(lhs, rhs)
			if err != nil {
				return exprValue{}, err
			}
		default:
			return lhs, nil
		}
	}
}

func (p *exprParser) parseMulDiv() (exprValue, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return exprValue{}, err
	}
	for {
		switch p.lex.Peek().kind {
		case tokStar:
			p.lex.Next()
			rhs, err := p.parseUnary()
			if err != nil {
				return exprValue{}, err
			}
			if lhs.sym != nil || rhs.sym != nil {
				return exprValue{}, fmt.Errorf("relocatable value cannot be used with '*'")
			}
			lhs = constValue(lhs.value * rhs.value)
		case tokSlash:
			p.lex.Next()
			rhs, err := p.parseUnary()
			if err != nil {
				return exprValue{}, err
			}
			if lhs.sym != nil || rhs.sym != nil {
				return exprValue{}, fmt.Errorf("relocatable value cannot be used with '/'")
			}
			if rhs.value == 0 {
				return constValue(0), fmt.Errorf("division by zero")
			}
			lhs = constValue(lhs.value / rhs.value)
		default:
			return lhs, nil
		}
	}
}

func (p *exprParser) parseUnary() (exprValue, error) {
	switch p.lex.Peek().kind {
	case tokPlus:
		p.lex.Next()
		return p.parseUnary()
	case tokMinus:
		p.lex.Next()
		v, err := p.parseUnary()
		if err != nil {
			return exprValue{}, err
		}
		if v.sym != nil {
			return exprValue{}, fmt.Errorf("relocatable value cannot be negated")
		}
		return constValue(-v.value), nil
	default:
		return p.parsePrimary()
	}
}

func (p *exprParser) parsePrimary() (exprValue, error) {
	t := p.lex.Next()
	switch t.kind {
	case tokNumber:
		return constValue(t.num), nil
	case tokDollar:
		return constValue(p.pc), nil
	case tokLParen:
		v, err := p.parseAddSub()
		if err != nil {
			return exprValue{}, err
		}
		if p.lex.Peek().kind != tokRParen {
			return exprValue{}, fmt.Errorf("expected ')'")
		}
		p.lex.Next()
		return v, nil
	case tokIdent:
		return p.resolveIdent(t.str)
	case tokString:
		if len(t.str) == 0 {
			return constValue(0), nil
		}
		return constValue(int(t.str[0])), nil
	default:
		return exprValue{}, fmt.Errorf("unexpected token %s in expression", t)
	}
}

func (p *exprParser) resolveIdent(name string) (exprValue, error) {
	lookup := name
	if len(name) > 0 && name[0] == '@' {
		lookup = p.syms.mangleLocal(name)
	}
	s, ok := p.syms.find(lookup)
	if !ok {
		if p.pass1 {
			// Forward reference: create it now so PC advancement
			// stays stable across passes, and report it relocatable.
			s = p.syms.add(lookup)
			return relValue(0, s), nil
		}
		return exprValue{}, fmt.Errorf("undefined symbol %q", name)
	}
	if !s.defined {
		if s.flags == isa.SymExtern {
			return relValue(0, s), nil
		}
		if p.pass1 {
			return relValue(0, s), nil
		}
		return exprValue{}, fmt.Errorf("undefined symbol %q", name)
	}
	if s.section == isa.SectAbs {
		return constValue(s.value), nil
	}
	return relValue(s.value, s), nil
}

func addValues(lhs, rhs exprValue) (exprValue, error) {
	switch {
	case lhs.sym == nil && rhs.sym == nil:
		return constValue(lhs.value + rhs.value), nil
	case lhs.sym != nil && rhs.sym == nil:
		return relValue(lhs.value+rhs.value, lhs.sym), nil
	case lhs.sym == nil && rhs.sym != nil:
		return relValue(lhs.value+rhs.value, rhs.sym), nil
	default:
		return exprValue{}, fmt.Errorf("sum of two relocatable values")
	}
}

func subValues(lhs, rhs exprValue) (exprValue, error) {
	switch {
	case lhs.sym == nil && rhs.sym == nil:
		return constValue(lhs.value - rhs.value), nil
	case lhs.sym != nil && rhs.sym == nil:
		return relValue(lhs.value-rhs.value, lhs.sym), nil
	case lhs.sym == nil && rhs.sym != nil:
		return relValue(lhs.value-rhs.value, rhs.sym), nil
	default:
		// Both sides carry a symbol: they cancel to a constant only
		// if they're the same symbol, or distinct symbols defined in
		// the same non-absolute section.
		if lhs.sym == rhs.sym {
			return constValue(lhs.value - rhs.value), nil
		}
		if lhs.sym.flags == isa.SymExtern || rhs.sym.flags == isa.SymExtern {
			return exprValue{}, fmt.Errorf("difference of two externals")
		}
		if !lhs.sym.defined || !rhs.sym.defined {
			// A pass-1 forward reference: its section is not known
			// yet, so the difference is taken as a constant for now.
			return constValue(lhs.value - rhs.value), nil
		}
		if lhs.sym.section != isa.SectAbs && lhs.sym.section == rhs.sym.section {
			return constValue(lhs.value - rhs.value), nil
		}
		return exprValue{}, fmt.Errorf("difference of symbols in different sections")
	}
}
