package asm

import (
	"fmt"

	"github.com/beevik/ez80toolchain/isa"
)

// operandKind classifies the shape of a parsed operand.
type operandKind int

const (
	opReg    operandKind = iota // bare register
	opCond                      // bare condition code
	opIndReg                    // (HL), (BC), (DE), (SP), (C)
	opIxOff                     // (IX+d) or bare IX+d
	opIyOff                     // (IY+d) or bare IY+d
	opAddr                      // (expr) — indirect memory address
	opImm                       // expr — immediate / absolute value
)

// operand is the result of classifying one comma-separated argument
// of an instruction.
type operand struct {
	kind  operandKind
	reg   isa.Reg
	cond  isa.Cond
	asCC  bool // for "C": also valid as a condition, let encoder retry
	disp  exprValue
	value exprValue
}

// asCondition reports whether o can serve as a condition operand: a
// bare condition code always can, and a bare "C" register can too
// (asCC), since C is syntactically ambiguous between the register and
// the carry condition until the instruction decides which it wants.
func asCondition(o operand) (isa.Cond, bool) {
	switch {
	case o.kind == opCond:
		return o.cond, true
	case o.kind == opReg && o.asCC:
		return o.cond, true
	default:
		return 0, false
	}
}

// indirectRegs is the set of register identifiers recognized as the
// sole content of a parenthesized indirection.
var indirectRegs = map[string]isa.Reg{
	"hl": isa.RegHL,
	"bc": isa.RegBC,
	"de": isa.RegDE,
	"sp": isa.RegSP,
	"c":  isa.RegC,
	"ix": isa.RegIX,
	"iy": isa.RegIY,
}

// parseOperand classifies the operand starting at the lexer's current
// position. pc and pass1 are forwarded to the expression evaluator for
// '$' resolution and forward-reference handling.
func parseOperand(lex *lexer, syms *symtab, pc int, pass1 bool) (operand, error) {
	t := lex.Peek()

	if t.kind == tokLParen {
		return parseIndirect(lex, syms, pc, pass1)
	}

	if t.kind == tokIdent {
		lower := toLowerASCII(t.str)
		if reg, ok := isa.LookupRegister(lower); ok {
			lex.Next()
			if reg == isa.RegIX || reg == isa.RegIY {
				if lex.Peek().kind == tokPlus || lex.Peek().kind == tokMinus {
					return parseTopLevelIndexOffset(lex, syms, pc, pass1, reg)
				}
			}
			o := operand{kind: opReg, reg: reg}
			if reg == isa.RegC {
				o.asCC = true
				o.cond = isa.CondC
			}
			return o, nil
		}
		if cond, ok := isa.LookupCondition(lower); ok {
			lex.Next()
			return operand{kind: opCond, cond: cond}, nil
		}
	}

	expr := newExprParser(lex, syms, pc, pass1)
	v, err := expr.parse()
	if err != nil {
		return operand{}, err
	}
	return operand{kind: opImm, value: v}, nil
}

func parseTopLevelIndexOffset(lex *lexer, syms *symtab, pc int, pass1 bool, reg isa.Reg) (operand, error) {
	expr := newExprParser(lex, syms, pc, pass1)
	v, err := expr.parse()
	if err != nil {
		return operand{}, err
	}
	if v.sym != nil {
		return operand{}, fmt.Errorf("index displacement must be a constant")
	}
	kind := opIxOff
	if reg == isa.RegIY {
		kind = opIyOff
	}
	return operand{kind: kind, reg: reg, disp: v}, nil
}

func parseIndirect(lex *lexer, syms *symtab, pc int, pass1 bool) (operand, error) {
	lex.Next() // consume '('

	t := lex.Peek()
	if t.kind == tokIdent {
		if reg, ok := indirectRegs[toLowerASCII(t.str)]; ok {
			lex.Next()
			if reg == isa.RegIX || reg == isa.RegIY {
				switch lex.Peek().kind {
				case tokPlus, tokMinus:
					expr := newExprParser(lex, syms, pc, pass1)
					v, err := expr.parse()
					if err != nil {
						return operand{}, err
					}
					if v.sym != nil {
						return operand{}, fmt.Errorf("index displacement must be a constant")
					}
					if err := expectRParen(lex); err != nil {
						return operand{}, err
					}
					kind := opIxOff
					if reg == isa.RegIY {
						kind = opIyOff
					}
					return operand{kind: kind, reg: reg, disp: v}, nil
				case tokRParen:
					lex.Next()
					return operand{kind: opIndReg, reg: reg}, nil
				default:
					return operand{}, fmt.Errorf("expected '+', '-' or ')' after %s", t.str)
				}
			}
			if err := expectRParen(lex); err != nil {
				return operand{}, err
			}
			return operand{kind: opIndReg, reg: reg}, nil
		}
	}

	expr := newExprParser(lex, syms, pc, pass1)
	v, err := expr.parse()
	if err != nil {
		return operand{}, err
	}
	if err := expectRParen(lex); err != nil {
		return operand{}, err
	}
	return operand{kind: opAddr, value: v}, nil
}

func expectRParen(lex *lexer) error {
	if lex.Peek().kind != tokRParen {
		return fmt.Errorf("expected ')'")
	}
	lex.Next()
	return nil
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
