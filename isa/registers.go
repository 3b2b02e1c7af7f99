package isa

// Reg identifies a register operand. The numeric values are arbitrary
// distinct identifiers (RegNone is 0, so RegB is 1); the eZ80 "r"
// encoding field of an 8-bit register (B=0 .. A=7) comes from RCode.
type Reg byte

const (
	RegNone Reg = iota

	// 8-bit registers, in eZ80 "r" field order (RCode gives the field).
	RegB
	RegC
	RegD
	RegE
	RegH
	RegL
	RegIndHL // placeholder for the "r" field value (HL) occupies; never classified directly
	RegA

	RegIXH
	RegIXL
	RegIYH
	RegIYL
	RegI
	RegR
	RegMB

	// 16-bit register pairs.
	RegAF
	RegBC
	RegDE
	RegHL
	RegSP
	RegIX
	RegIY
	RegAFAlt // AF'
)

// RCodeIndHL is the "r" field code that (HL) occupies in opcode byte
// fields. (HL) is never produced by the operand classifier as a
// register (it becomes an IndReg operand instead), so RCode never
// returns this code.
const RCodeIndHL = 6

// RCode returns the 3-bit "r" field encoding for an 8-bit register.
// IXH/IXL and IYH/IYL share the H/L encodings, since they only ever
// appear alongside a DD/FD prefix that already disambiguates them.
func RCode(r Reg) (code byte, ok bool) {
	switch r {
	case RegB:
		return 0, true
	case RegC:
		return 1, true
	case RegD:
		return 2, true
	case RegE:
		return 3, true
	case RegH, RegIXH, RegIYH:
		return 4, true
	case RegL, RegIXL, RegIYL:
		return 5, true
	case RegA:
		return 7, true
	default:
		return 0, false
	}
}

// IsIndexHalf reports whether r is one of IXH/IXL/IYH/IYL, which forces
// a DD or FD prefix and conflicts with plain H/L or the other index
// register's halves in the same instruction.
func IsIndexHalf(r Reg) bool {
	switch r {
	case RegIXH, RegIXL, RegIYH, RegIYL:
		return true
	default:
		return false
	}
}

// IndexPrefix returns the prefix byte (0xDD or 0xFD) forced by r, or 0
// if r does not force an index prefix.
func IndexPrefix(r Reg) byte {
	switch r {
	case RegIX, RegIXH, RegIXL:
		return 0xDD
	case RegIY, RegIYH, RegIYL:
		return 0xFD
	default:
		return 0
	}
}

// DDCode returns the "dd" 16-bit register pair encoding used by most
// 16-bit load/arithmetic opcodes: BC=0, DE=1, HL=2, SP=3.
func DDCode(r Reg) (code byte, ok bool) {
	switch r {
	case RegBC:
		return 0, true
	case RegDE:
		return 1, true
	case RegHL, RegIX, RegIY:
		return 2, true
	case RegSP:
		return 3, true
	default:
		return 0, false
	}
}

// QQCode returns the "qq" encoding used by PUSH/POP: BC=0, DE=1, HL=2, AF=3.
func QQCode(r Reg) (code byte, ok bool) {
	switch r {
	case RegBC:
		return 0, true
	case RegDE:
		return 1, true
	case RegHL, RegIX, RegIY:
		return 2, true
	case RegAF:
		return 3, true
	default:
		return 0, false
	}
}

// Cond identifies a branch condition code.
type Cond byte

const (
	CondNone Cond = iota
	CondNZ
	CondZ
	CondNC
	CondC
	CondPO
	CondPE
	CondP
	CondM
)

// CCCode returns the 3-bit condition field: NZ=0 Z=1 NC=2 C=3 PO=4 PE=5 P=6 M=7.
func CCCode(c Cond) (code byte, ok bool) {
	switch c {
	case CondNZ:
		return 0, true
	case CondZ:
		return 1, true
	case CondNC:
		return 2, true
	case CondC:
		return 3, true
	case CondPO:
		return 4, true
	case CondPE:
		return 5, true
	case CondP:
		return 6, true
	case CondM:
		return 7, true
	default:
		return 0, false
	}
}

// IsShortCond reports whether c is one of the four conditions JR accepts.
func IsShortCond(c Cond) bool {
	return c == CondNZ || c == CondZ || c == CondNC || c == CondC
}

// registerNames maps lowercase register spellings to their Reg value.
// IX/IY indirect forms and condition-only names are handled separately
// by the operand classifier.
var registerNames = map[string]Reg{
	"a":   RegA,
	"b":   RegB,
	"c":   RegC,
	"d":   RegD,
	"e":   RegE,
	"h":   RegH,
	"l":   RegL,
	"ixh": RegIXH,
	"ixl": RegIXL,
	"iyh": RegIYH,
	"iyl": RegIYL,
	"i":   RegI,
	"r":   RegR,
	"mb":  RegMB,
	"af":  RegAF,
	"bc":  RegBC,
	"de":  RegDE,
	"hl":  RegHL,
	"sp":  RegSP,
	"ix":  RegIX,
	"iy":  RegIY,
	"af'": RegAFAlt,
}

// LookupRegister returns the Reg for a lower-cased identifier, if any.
func LookupRegister(name string) (Reg, bool) {
	r, ok := registerNames[name]
	return r, ok
}

var conditionNames = map[string]Cond{
	"nz": CondNZ,
	"z":  CondZ,
	"nc": CondNC,
	"po": CondPO,
	"pe": CondPE,
	"p":  CondP,
	"m":  CondM,
	// "c" is deliberately absent: the token "c" is always classified as
	// register C first; the encoder falls back to the C-as-condition
	// interpretation via the operand's asCC field when an instruction
	// needs a condition there (see asCondition in package asm).
}

// LookupCondition returns the Cond for a lower-cased identifier, if any.
// It does not recognize "c", which is handled specially by the operand
// classifier (ambiguous with register C).
func LookupCondition(name string) (Cond, bool) {
	c, ok := conditionNames[name]
	return c, ok
}
