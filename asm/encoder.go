package asm

import (
	"fmt"
	"strings"

	"github.com/beevik/ez80toolchain/isa"
)

// instrFunc encodes one instruction given its already-classified
// operands. It calls the assembler's emit* helpers, which themselves
// respect a.pass1 (no bytes materialize, but PC still advances and
// shapes stay identical across both passes — eZ80 ADL addressing
// modes never depend on an unresolved operand's value, so a single
// code path serves both passes).
type instrFunc func(a *assembler, ops []operand) error

// instrTable is the two-tier dispatch described in the encoder design:
// a table of fixed no-operand opcodes (isa.SimpleOps) is checked
// first by the caller; everything else lands here, keyed by mnemonic.
var instrTable = map[string]instrFunc{
	"ld":   encodeLD,
	"add":  encodeALUOrAdd16,
	"adc":  encodeALUOrAdc16,
	"sbc":  encodeALUOrSbc16,
	"inc":  encodeIncDec(0x04, 0x03),
	"dec":  encodeIncDec(0x05, 0x0B),
	"jp":   encodeJP,
	"jr":   encodeJR,
	"djnz": encodeDJNZ,
	"call": encodeCALL,
	"ret":  encodeRET,
	"rst":  encodeRST,
	"push": encodePUSHPOP(0xC5),
	"pop":  encodePUSHPOP(0xC1),
	"ex":   encodeEX,
	"in":   encodeIN,
	"out":  encodeOUT,
	"in0":  encodeIN0,
	"out0": encodeOUT0,
	"bit":  encodeBitOp(0x40),
	"set":  encodeBitOp(0xC0),
	"res":  encodeBitOp(0x80),
	"rlc":  encodeShift(0x00),
	"rrc":  encodeShift(0x08),
	"rl":   encodeShift(0x10),
	"rr":   encodeShift(0x18),
	"sla":  encodeShift(0x20),
	"sra":  encodeShift(0x28),
	"srl":  encodeShift(0x38),
	"lea":  encodeLEA,
	"pea":  encodePEA,
	"mlt":  encodeMLT,
	"tst":  encodeTST,
	"im":   encodeIM,
}

// isReg16 reports whether r is one of the 16-bit register pairs the
// RegPairHLIXIY and dd/qq encodings operate on.
func isReg16(r isa.Reg) bool {
	switch r {
	case isa.RegBC, isa.RegDE, isa.RegHL, isa.RegSP, isa.RegIX, isa.RegIY, isa.RegAF:
		return true
	default:
		return false
	}
}

func isReg8(r isa.Reg) bool {
	_, ok := isa.RCode(r)
	return ok
}

// indexPrefix determines the DD/FD prefix implied by the operands of
// an instruction, erroring on the two conflicts the spec calls out:
// mixing IX-half with IY-half, and mixing an index half with plain H
// or L in the same instruction.
func indexPrefix(ops ...operand) (byte, error) {
	var prefix byte
	var sawH, sawL bool
	for _, o := range ops {
		var p byte
		switch o.kind {
		case opReg:
			p = isa.IndexPrefix(o.reg)
			if o.reg == isa.RegH {
				sawH = true
			}
			if o.reg == isa.RegL {
				sawL = true
			}
		case opIxOff:
			p = 0xDD
		case opIyOff:
			p = 0xFD
		case opIndReg:
			if o.reg == isa.RegIX {
				p = 0xDD
			} else if o.reg == isa.RegIY {
				p = 0xFD
			}
		}
		if p == 0 {
			continue
		}
		if prefix != 0 && prefix != p {
			return 0, fmt.Errorf("cannot mix IX and IY in the same instruction")
		}
		prefix = p
	}
	if prefix != 0 && (sawH || sawL) {
		return 0, fmt.Errorf("cannot mix an index half register with H or L")
	}
	return prefix, nil
}

func expectEOL(lex *lexer) error {
	if lex.Peek().kind != tokEOL {
		return fmt.Errorf("unexpected content after operand")
	}
	return nil
}

//
// LD
//

func encodeLD(a *assembler, ops []operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("ld requires two operands")
	}
	dst, src := ops[0], ops[1]

	// 16-bit register destination.
	if dst.kind == opReg && isReg16(dst.reg) {
		return encodeLDFrom16(a, dst, src)
	}

	// 8-bit register or (HL)/(IX+d)/(IY+d) destination.
	switch dst.kind {
	case opReg:
		return encodeLDFromReg8(a, dst, src)
	case opIndReg:
		if dst.reg == isa.RegBC {
			return encodeLDSpecialIndirect(a, 0x02, dst, src, false)
		}
		if dst.reg == isa.RegDE {
			return encodeLDSpecialIndirect(a, 0x12, dst, src, false)
		}
		return encodeLDToIndirect(a, dst, src)
	case opIxOff, opIyOff:
		return encodeLDToIndirect(a, dst, src)
	case opAddr:
		return encodeLDToAddr(a, dst, src)
	}
	return fmt.Errorf("invalid destination for ld")
}

func encodeLDFrom16(a *assembler, dst, src operand) error {
	switch src.kind {
	case opImm:
		prefix, err := indexPrefix(dst)
		if err != nil {
			return err
		}
		dd, ok := isa.DDCode(dst.reg)
		if !ok {
			return fmt.Errorf("invalid ld destination register")
		}
		if prefix != 0 {
			a.emitByte(prefix)
		}
		a.emitByte(0x01 | dd<<4)
		a.emit24(src.value)
		return nil
	case opAddr:
		return encodeLDRegFromAddr(a, dst, src)
	case opReg:
		key := strings.ToLower(regName(dst.reg) + "," + regName(src.reg))
		if op, ok := isa.SpecialLD[key]; ok {
			if op.Prefix != 0 {
				a.emitByte(op.Prefix)
			}
			a.emitByte(op.Opcode)
			return nil
		}
		return fmt.Errorf("invalid ld %s,%s", regName(dst.reg), regName(src.reg))
	case opIndReg, opIxOff, opIyOff:
		entry, ok := isa.RegPairHLIXIY[dst.reg]
		if !ok {
			return fmt.Errorf("invalid 24-bit ld destination")
		}
		return emitRegPairMem(a, src, entry.LoadHL, entry.LoadIX, entry.LoadIY, true)
	}
	return fmt.Errorf("invalid ld source")
}

func encodeLDRegFromAddr(a *assembler, dst, src operand) error {
	switch dst.reg {
	case isa.RegHL:
		a.emitByte(0x2A)
	case isa.RegIX:
		a.emitByte(0xDD)
		a.emitByte(0x2A)
	case isa.RegIY:
		a.emitByte(0xFD)
		a.emitByte(0x2A)
	default:
		dd, ok := isa.DDCode(dst.reg)
		if !ok {
			return fmt.Errorf("invalid ld destination register")
		}
		a.emitByte(0xED)
		a.emitByte(0x4B | dd<<4)
	}
	a.emit24(src.value)
	return nil
}

func encodeLDToAddr(a *assembler, dst, src operand) error {
	if src.kind == opReg && src.reg == isa.RegA {
		a.emitByte(0x32)
		a.emit24(dst.value)
		return nil
	}
	if src.kind != opReg || !isReg16(src.reg) {
		return fmt.Errorf("invalid ld (nn) source")
	}
	switch src.reg {
	case isa.RegHL:
		a.emitByte(0x22)
	case isa.RegIX:
		a.emitByte(0xDD)
		a.emitByte(0x22)
	case isa.RegIY:
		a.emitByte(0xFD)
		a.emitByte(0x22)
	default:
		dd, ok := isa.DDCode(src.reg)
		if !ok {
			return fmt.Errorf("invalid ld destination register")
		}
		a.emitByte(0xED)
		a.emitByte(0x43 | dd<<4)
	}
	a.emit24(dst.value)
	return nil
}

func encodeLDFromReg8(a *assembler, dst, src operand) error {
	if dst.reg == isa.RegA && src.kind == opIndReg && src.reg == isa.RegBC {
		a.emitByte(0x0A)
		return nil
	}
	if dst.reg == isa.RegA && src.kind == opIndReg && src.reg == isa.RegDE {
		a.emitByte(0x1A)
		return nil
	}
	if dst.reg == isa.RegA && src.kind == opAddr {
		a.emitByte(0x3A)
		a.emit24(src.value)
		return nil
	}

	switch src.kind {
	case opReg:
		key := strings.ToLower(regName(dst.reg) + "," + regName(src.reg))
		if op, ok := isa.SpecialLD[key]; ok {
			if op.Prefix != 0 {
				a.emitByte(op.Prefix)
			}
			a.emitByte(op.Opcode)
			return nil
		}
		prefix, err := indexPrefix(dst, src)
		if err != nil {
			return err
		}
		rd, ok := isa.RCode(dst.reg)
		if !ok {
			return fmt.Errorf("invalid ld destination register")
		}
		rs, ok := isa.RCode(src.reg)
		if !ok {
			return fmt.Errorf("invalid ld source register")
		}
		if prefix != 0 {
			a.emitByte(prefix)
		}
		a.emitByte(0x40 | rd<<3 | rs)
		return nil
	case opImm:
		prefix, err := indexPrefix(dst)
		if err != nil {
			return err
		}
		rd, ok := isa.RCode(dst.reg)
		if !ok {
			return fmt.Errorf("invalid ld destination register")
		}
		if prefix != 0 {
			a.emitByte(prefix)
		}
		a.emitByte(0x06 | rd<<3)
		return a.emit8(src.value)
	case opIndReg:
		return encodeLDRegFromIndirect(a, dst, src, 0)
	case opIxOff, opIyOff:
		return encodeLDRegFromIndirect(a, dst, src, src.disp.value)
	}
	return fmt.Errorf("invalid ld source for register destination")
}

func encodeLDRegFromIndirect(a *assembler, dst, src operand, disp int) error {
	rd, ok := isa.RCode(dst.reg)
	if !ok {
		return fmt.Errorf("invalid ld destination register")
	}
	switch {
	case src.kind == opIndReg && src.reg == isa.RegHL:
		a.emitByte(0x46 | rd<<3)
	case src.kind == opIxOff:
		a.emitByte(0xDD)
		a.emitByte(0x46 | rd<<3)
		a.emitByte(byte(isa.Mask8(disp)))
	case src.kind == opIyOff:
		a.emitByte(0xFD)
		a.emitByte(0x46 | rd<<3)
		a.emitByte(byte(isa.Mask8(disp)))
	default:
		return fmt.Errorf("invalid ld indirect source")
	}
	return nil
}

func encodeLDToIndirect(a *assembler, dst, src operand) error {
	var disp exprValue
	if dst.kind == opIxOff || dst.kind == opIyOff {
		disp = dst.disp
	}
	if src.kind == opReg && isReg16(src.reg) {
		entry, ok := isa.RegPairHLIXIY[src.reg]
		if !ok {
			return fmt.Errorf("invalid ld indirect destination")
		}
		return emitRegPairMemStore(a, dst, entry.StoreHL, entry.StoreIX, entry.StoreIY, disp)
	}
	switch src.kind {
	case opReg:
		rs, ok := isa.RCode(src.reg)
		if !ok {
			return fmt.Errorf("invalid ld source register")
		}
		switch dst.kind {
		case opIndReg:
			a.emitByte(0x70 | rs)
		case opIxOff:
			a.emitByte(0xDD)
			a.emitByte(0x70 | rs)
			a.emitByte(byte(isa.Mask8(disp.value)))
		case opIyOff:
			a.emitByte(0xFD)
			a.emitByte(0x70 | rs)
			a.emitByte(byte(isa.Mask8(disp.value)))
		}
		return nil
	case opImm:
		switch dst.kind {
		case opIndReg:
			a.emitByte(0x36)
		case opIxOff:
			a.emitByte(0xDD)
			a.emitByte(0x36)
			a.emitByte(byte(isa.Mask8(disp.value)))
		case opIyOff:
			a.emitByte(0xFD)
			a.emitByte(0x36)
			a.emitByte(byte(isa.Mask8(disp.value)))
		}
		return a.emit8(src.value)
	}
	return fmt.Errorf("invalid ld indirect source")
}

// emitRegPairMem emits a 24-bit register-pair load from (HL)/(IX+d)/(IY+d)
// using the irregular per-register opcode table.
func emitRegPairMem(a *assembler, src operand, hl, ix, iy byte, isLoad bool) error {
	switch src.kind {
	case opIndReg:
		if src.reg != isa.RegHL {
			return fmt.Errorf("invalid 24-bit ld indirect form")
		}
		a.emitByte(0xED)
		a.emitByte(hl)
	case opIxOff:
		a.emitByte(0xDD)
		a.emitByte(ix)
		a.emitByte(byte(isa.Mask8(src.disp.value)))
	case opIyOff:
		a.emitByte(0xFD)
		a.emitByte(iy)
		a.emitByte(byte(isa.Mask8(src.disp.value)))
	default:
		return fmt.Errorf("invalid 24-bit ld indirect form")
	}
	return nil
}

func emitRegPairMemStore(a *assembler, dst operand, hl, ix, iy byte, disp exprValue) error {
	switch dst.kind {
	case opIndReg:
		if dst.reg != isa.RegHL {
			return fmt.Errorf("invalid 24-bit ld indirect form")
		}
		a.emitByte(0xED)
		a.emitByte(hl)
	case opIxOff:
		a.emitByte(0xDD)
		a.emitByte(ix)
		a.emitByte(byte(isa.Mask8(disp.value)))
	case opIyOff:
		a.emitByte(0xFD)
		a.emitByte(iy)
		a.emitByte(byte(isa.Mask8(disp.value)))
	default:
		return fmt.Errorf("invalid 24-bit ld indirect form")
	}
	return nil
}

func encodeLDSpecialIndirect(a *assembler, opcode byte, dst, src operand, _ bool) error {
	if src.kind != opReg || src.reg != isa.RegA {
		return fmt.Errorf("(%s) may only be loaded from A", regName(dst.reg))
	}
	a.emitByte(opcode)
	return nil
}

// regNames is the inverse of isa's register name table, used only to
// build SpecialLD lookup keys like "sp,hl" from classified operands.
var regNames = map[isa.Reg]string{
	isa.RegA: "a", isa.RegB: "b", isa.RegC: "c", isa.RegD: "d", isa.RegE: "e",
	isa.RegH: "h", isa.RegL: "l",
	isa.RegIXH: "ixh", isa.RegIXL: "ixl", isa.RegIYH: "iyh", isa.RegIYL: "iyl",
	isa.RegI: "i", isa.RegR: "r", isa.RegMB: "mb",
	isa.RegAF: "af", isa.RegBC: "bc", isa.RegDE: "de", isa.RegHL: "hl",
	isa.RegSP: "sp", isa.RegIX: "ix", isa.RegIY: "iy", isa.RegAFAlt: "af'",
}

func regName(r isa.Reg) string {
	if name, ok := regNames[r]; ok {
		return name
	}
	return "?"
}

//
// ALU: ADD/ADC/SBC (8-bit r/n form shared with 16-bit HL/IX/IY,rr form)
//

func encodeALUOrAdd16(a *assembler, ops []operand) error {
	return encodeALUFamily(a, ops, 0x80, 0xC6, 0x09, 0xED, 0x00, false)
}
func encodeALUOrAdc16(a *assembler, ops []operand) error {
	return encodeALUFamily(a, ops, 0x88, 0xCE, 0x4A, 0xED, 0x00, true)
}
func encodeALUOrSbc16(a *assembler, ops []operand) error {
	return encodeALUFamily(a, ops, 0x98, 0xDE, 0x42, 0xED, 0x00, true)
}

// encodeALUFamily covers ADD/ADC/SBC, which uniquely among the ALU
// mnemonics also have a 16-bit "HL/IX/IY, rr" form.
func encodeALUFamily(a *assembler, ops []operand, base8, imm8, op16 byte, prefix16 byte, _ byte, always16PrefixED bool) error {
	if len(ops) == 2 && ops[0].kind == opReg && isReg16(ops[0].reg) {
		dst, src := ops[0], ops[1]
		if src.kind != opReg || !isReg16(src.reg) {
			return fmt.Errorf("invalid 16-bit operand")
		}
		if dst.reg == isa.RegHL {
			dd, ok := isa.DDCode(src.reg)
			if !ok || (src.reg == isa.RegIX || src.reg == isa.RegIY) {
				return fmt.Errorf("invalid register pair")
			}
			if always16PrefixED {
				a.emitByte(prefix16)
				a.emitByte(op16 | dd<<4)
			} else {
				a.emitByte(op16 | dd<<4)
			}
			return nil
		}
		if dst.reg == isa.RegIX || dst.reg == isa.RegIY {
			var dd byte
			switch src.reg {
			case isa.RegBC:
				dd = 0
			case isa.RegDE:
				dd = 1
			case isa.RegSP:
				dd = 3
			case dst.reg:
				dd = 2
			default:
				return fmt.Errorf("invalid register pair for add to %s", regName(dst.reg))
			}
			// ADD is the only 16-bit index form; ADC/SBC HL,rr don't
			// extend to IX/IY on the eZ80.
			if !always16PrefixED {
				a.emitByte(isa.IndexPrefix(dst.reg))
				a.emitByte(0x09 | dd<<4)
				return nil
			}
			return fmt.Errorf("%s does not support index register pairs", "adc/sbc")
		}
		return fmt.Errorf("invalid 16-bit destination register")
	}
	return encodeALU8(a, ops, base8, imm8)
}

// The five single-operand ALU mnemonics (sub/and/or/xor/cp) and the
// explicit-A forms of add/adc/sbc share this 8-bit encoder; wrap it
// per mnemonic via a small adapter table instead of one generic func
// so each keeps its own opcode base.
var alu8Bases = map[string][2]byte{
	"sub": {0x90, 0xD6},
	"and": {0xA0, 0xE6},
	"or":  {0xB0, 0xF6},
	"xor": {0xA8, 0xEE},
	"cp":  {0xB8, 0xFE},
}

func encodeALU8(a *assembler, ops []operand, base8, imm8 byte) error {
	var src operand
	switch len(ops) {
	case 1:
		src = ops[0]
	case 2:
		if ops[0].kind != opReg || ops[0].reg != isa.RegA {
			return fmt.Errorf("first operand must be A")
		}
		src = ops[1]
	default:
		return fmt.Errorf("invalid operand count")
	}
	return emitALU8Src(a, src, base8, imm8)
}

func emitALU8Src(a *assembler, src operand, base8, imm8 byte) error {
	switch src.kind {
	case opReg:
		prefix, err := indexPrefix(src)
		if err != nil {
			return err
		}
		r, ok := isa.RCode(src.reg)
		if !ok {
			return fmt.Errorf("invalid register operand")
		}
		if prefix != 0 {
			a.emitByte(prefix)
		}
		a.emitByte(base8 | r)
		return nil
	case opIndReg:
		if src.reg != isa.RegHL {
			return fmt.Errorf("invalid indirect operand")
		}
		a.emitByte(base8 | 6)
		return nil
	case opIxOff, opIyOff:
		if src.kind == opIxOff {
			a.emitByte(0xDD)
		} else {
			a.emitByte(0xFD)
		}
		a.emitByte(base8 | 6)
		a.emitByte(byte(isa.Mask8(src.disp.value)))
		return nil
	case opImm:
		a.emitByte(imm8)
		return a.emit8(src.value)
	}
	return fmt.Errorf("invalid operand")
}

func init() {
	for mnem, bases := range alu8Bases {
		mnem, bases := mnem, bases
		instrTable[mnem] = func(a *assembler, ops []operand) error {
			return encodeALU8(a, ops, bases[0], bases[1])
		}
	}
}

//
// INC / DEC
//

func encodeIncDec(op8, op16 byte) instrFunc {
	return func(a *assembler, ops []operand) error {
		if len(ops) != 1 {
			return fmt.Errorf("requires one operand")
		}
		o := ops[0]
		switch o.kind {
		case opReg:
			if isReg16(o.reg) {
				dd, ok := isa.DDCode(o.reg)
				if !ok {
					return fmt.Errorf("invalid register")
				}
				if p := isa.IndexPrefix(o.reg); p != 0 {
					a.emitByte(p)
				}
				a.emitByte(op16 | dd<<4)
				return nil
			}
			prefix, err := indexPrefix(o)
			if err != nil {
				return err
			}
			r, ok := isa.RCode(o.reg)
			if !ok {
				return fmt.Errorf("invalid register")
			}
			if prefix != 0 {
				a.emitByte(prefix)
			}
			a.emitByte(op8 | r<<3)
			return nil
		case opIndReg:
			if o.reg != isa.RegHL {
				return fmt.Errorf("invalid operand")
			}
			a.emitByte(op8 | 6<<3)
			return nil
		case opIxOff, opIyOff:
			if o.kind == opIxOff {
				a.emitByte(0xDD)
			} else {
				a.emitByte(0xFD)
			}
			a.emitByte(op8 | 6<<3)
			a.emitByte(byte(isa.Mask8(o.disp.value)))
			return nil
		}
		return fmt.Errorf("invalid operand")
	}
}

//
// Jumps, calls, returns
//

func encodeJP(a *assembler, ops []operand) error {
	if len(ops) == 1 {
		o := ops[0]
		switch o.kind {
		case opIndReg:
			switch o.reg {
			case isa.RegHL:
				a.emitByte(0xE9)
				return nil
			case isa.RegIX:
				a.emitByte(0xDD)
				a.emitByte(0xE9)
				return nil
			case isa.RegIY:
				a.emitByte(0xFD)
				a.emitByte(0xE9)
				return nil
			}
		case opImm, opAddr:
			a.emitByte(0xC3)
			a.emit24(o.value)
			return nil
		}
		return fmt.Errorf("invalid jp operand")
	}
	if len(ops) == 2 {
		if cond, ok := asCondition(ops[0]); ok {
			cc, ok := isa.CCCode(cond)
			if !ok {
				return fmt.Errorf("invalid condition")
			}
			a.emitByte(0xC2 | cc<<3)
			a.emit24(ops[1].value)
			return nil
		}
	}
	return fmt.Errorf("invalid jp operands")
}

func encodeJR(a *assembler, ops []operand) error {
	var target exprValue
	var opcode byte
	switch len(ops) {
	case 1:
		target = ops[0].value
		opcode = 0x18
	case 2:
		cond, ok := asCondition(ops[0])
		if !ok || !isa.IsShortCond(cond) {
			return fmt.Errorf("jr accepts only nz/z/nc/c conditions")
		}
		cc, _ := isa.CCCode(cond)
		opcode = 0x20 | cc<<3
		target = ops[1].value
	default:
		return fmt.Errorf("invalid jr operands")
	}
	return emitRelBranch(a, opcode, target)
}

func encodeDJNZ(a *assembler, ops []operand) error {
	if len(ops) != 1 {
		return fmt.Errorf("djnz requires one operand")
	}
	return emitRelBranch(a, 0x10, ops[0].value)
}

func emitRelBranch(a *assembler, opcode byte, target exprValue) error {
	if target.sym != nil && target.sym.flags == isa.SymExtern {
		return fmt.Errorf("relative branch cannot target an external symbol")
	}
	a.emitByte(opcode)
	pcAfter := a.pc[a.curSect] + 1
	disp := target.value - pcAfter
	if !a.pass1 && (disp < -128 || disp > 127) {
		return fmt.Errorf("relative branch out of range")
	}
	a.emitByte(byte(isa.Mask8(disp)))
	return nil
}

func encodeCALL(a *assembler, ops []operand) error {
	switch len(ops) {
	case 1:
		a.emitByte(0xCD)
		a.emit24(ops[0].value)
		return nil
	case 2:
		cond, ok := asCondition(ops[0])
		if !ok {
			return fmt.Errorf("invalid call operands")
		}
		cc, ok := isa.CCCode(cond)
		if !ok {
			return fmt.Errorf("invalid condition")
		}
		a.emitByte(0xC4 | cc<<3)
		a.emit24(ops[1].value)
		return nil
	}
	return fmt.Errorf("invalid call operands")
}

func encodeRET(a *assembler, ops []operand) error {
	if len(ops) == 0 {
		a.emitByte(0xC9)
		return nil
	}
	if len(ops) == 1 {
		cond, ok := asCondition(ops[0])
		if !ok {
			return fmt.Errorf("invalid ret operands")
		}
		cc, ok := isa.CCCode(cond)
		if !ok {
			return fmt.Errorf("invalid condition")
		}
		a.emitByte(0xC0 | cc<<3)
		return nil
	}
	return fmt.Errorf("invalid ret operands")
}

func encodeRST(a *assembler, ops []operand) error {
	if len(ops) != 1 || ops[0].kind != opImm || ops[0].value.sym != nil {
		return fmt.Errorf("rst requires a constant vector")
	}
	v := ops[0].value.value
	var vec int
	switch {
	case v >= 0 && v <= 7:
		vec = v * 8
	case v == 0x00 || v == 0x08 || v == 0x10 || v == 0x18 || v == 0x20 || v == 0x28 || v == 0x30 || v == 0x38:
		vec = v
	default:
		return fmt.Errorf("invalid rst vector")
	}
	a.emitByte(0xC7 | byte(vec))
	return nil
}

func init() {
	instrTable["rst.lil"] = func(a *assembler, ops []operand) error {
		a.emitByte(0x5B)
		return encodeRST(a, ops)
	}
}

// lookupInstruction resolves a mnemonic by exact match against
// instrTable: "or" must never match "ori"-like spellings by prefix, so
// this is a plain map lookup, the same exact-match style used for
// directives and symbols.
func lookupInstruction(mnemonic string) (instrFunc, bool) {
	fn, ok := instrTable[strings.ToLower(mnemonic)]
	return fn, ok
}

//
// PUSH / POP
//

func encodePUSHPOP(base byte) instrFunc {
	return func(a *assembler, ops []operand) error {
		if len(ops) != 1 || ops[0].kind != opReg {
			return fmt.Errorf("requires a register pair operand")
		}
		r := ops[0].reg
		qq, ok := isa.QQCode(r)
		if !ok {
			return fmt.Errorf("invalid register pair")
		}
		if p := isa.IndexPrefix(r); p != 0 {
			a.emitByte(p)
		}
		a.emitByte(base | qq<<4)
		return nil
	}
}

//
// EX
//

func encodeEX(a *assembler, ops []operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("ex requires two operands")
	}
	a1, a2 := ops[0], ops[1]
	switch {
	case a1.kind == opReg && a1.reg == isa.RegDE && a2.kind == opReg && a2.reg == isa.RegHL:
		a.emitByte(0xEB)
	case a1.kind == opReg && a1.reg == isa.RegAF && a2.kind == opReg && a2.reg == isa.RegAFAlt:
		a.emitByte(0x08)
	case a1.kind == opIndReg && a1.reg == isa.RegSP && a2.kind == opReg:
		switch a2.reg {
		case isa.RegHL:
			a.emitByte(0xE3)
		case isa.RegIX:
			a.emitByte(0xDD)
			a.emitByte(0xE3)
		case isa.RegIY:
			a.emitByte(0xFD)
			a.emitByte(0xE3)
		default:
			return fmt.Errorf("invalid ex (sp), operand")
		}
	default:
		return fmt.Errorf("invalid ex operands")
	}
	return nil
}

//
// IN / OUT / IN0 / OUT0
//

func encodeIN(a *assembler, ops []operand) error {
	if len(ops) == 1 && ops[0].kind == opIndReg && ops[0].reg == isa.RegC {
		a.emitByte(0xED)
		a.emitByte(0x70)
		return nil
	}
	if len(ops) != 2 || ops[0].kind != opReg {
		return fmt.Errorf("invalid in operands")
	}
	if ops[1].kind == opIndReg && ops[1].reg == isa.RegC {
		r, ok := isa.RCode(ops[0].reg)
		if !ok {
			return fmt.Errorf("invalid register")
		}
		a.emitByte(0xED)
		a.emitByte(0x40 | r<<3)
		return nil
	}
	if ops[0].reg == isa.RegA && ops[1].kind == opAddr {
		a.emitByte(0xDB)
		return a.emit8(ops[1].value)
	}
	return fmt.Errorf("invalid in operands")
}

func encodeOUT(a *assembler, ops []operand) error {
	if len(ops) != 2 {
		return fmt.Errorf("invalid out operands")
	}
	if ops[0].kind == opIndReg && ops[0].reg == isa.RegC {
		if ops[1].kind == opImm && ops[1].value.value == 0 && ops[1].value.sym == nil {
			a.emitByte(0xED)
			a.emitByte(0x71)
			return nil
		}
		if ops[1].kind != opReg {
			return fmt.Errorf("invalid out (c), operand")
		}
		r, ok := isa.RCode(ops[1].reg)
		if !ok {
			return fmt.Errorf("invalid register")
		}
		a.emitByte(0xED)
		a.emitByte(0x41 | r<<3)
		return nil
	}
	if ops[0].kind == opAddr && ops[1].kind == opReg && ops[1].reg == isa.RegA {
		a.emitByte(0xD3)
		return a.emit8(ops[0].value)
	}
	return fmt.Errorf("invalid out operands")
}

func encodeIN0(a *assembler, ops []operand) error {
	if len(ops) != 2 || ops[0].kind != opReg || ops[1].kind != opAddr {
		return fmt.Errorf("invalid in0 operands")
	}
	r, ok := isa.RCode(ops[0].reg)
	if !ok {
		return fmt.Errorf("invalid register")
	}
	a.emitByte(0xED)
	a.emitByte(0x00 | r<<3)
	return a.emit8(ops[1].value)
}

func encodeOUT0(a *assembler, ops []operand) error {
	if len(ops) != 2 || ops[0].kind != opAddr || ops[1].kind != opReg {
		return fmt.Errorf("invalid out0 operands")
	}
	r, ok := isa.RCode(ops[1].reg)
	if !ok {
		return fmt.Errorf("invalid register")
	}
	a.emitByte(0xED)
	a.emitByte(0x01 | r<<3)
	return a.emit8(ops[0].value)
}

//
// BIT / SET / RES and rotate/shift group
//

func encodeBitOp(base byte) instrFunc {
	return func(a *assembler, ops []operand) error {
		if len(ops) != 2 || ops[0].kind != opImm || ops[0].value.sym != nil {
			return fmt.Errorf("requires a constant bit number")
		}
		bit := ops[0].value.value
		if bit < 0 || bit > 7 {
			return fmt.Errorf("bit number out of range")
		}
		return emitCBForm(a, ops[1], base|byte(bit)<<3)
	}
}

func encodeShift(base byte) instrFunc {
	return func(a *assembler, ops []operand) error {
		if len(ops) != 1 {
			return fmt.Errorf("requires one operand")
		}
		return emitCBForm(a, ops[0], base)
	}
}

// emitCBForm emits a CB-prefixed opcode against a register or indexed
// operand. For (IX+d)/(IY+d) the displacement precedes the opcode
// byte, the historical Z80 CB-prefix quirk.
func emitCBForm(a *assembler, o operand, cbOp byte) error {
	switch o.kind {
	case opReg:
		r, ok := isa.RCode(o.reg)
		if !ok || isa.IsIndexHalf(o.reg) {
			return fmt.Errorf("invalid CB-form register")
		}
		a.emitByte(0xCB)
		a.emitByte(cbOp | r)
		return nil
	case opIndReg:
		if o.reg != isa.RegHL {
			return fmt.Errorf("invalid CB-form operand")
		}
		a.emitByte(0xCB)
		a.emitByte(cbOp | 6)
		return nil
	case opIxOff, opIyOff:
		if o.kind == opIxOff {
			a.emitByte(0xDD)
		} else {
			a.emitByte(0xFD)
		}
		a.emitByte(0xCB)
		a.emitByte(byte(isa.Mask8(o.disp.value)))
		a.emitByte(cbOp | 6)
		return nil
	}
	return fmt.Errorf("invalid CB-form operand")
}

//
// LEA / PEA
//

func encodeLEA(a *assembler, ops []operand) error {
	if len(ops) != 2 || ops[0].kind != opReg || !isReg16(ops[0].reg) {
		return fmt.Errorf("invalid lea operands")
	}
	src := ops[1]
	if src.kind != opIxOff && src.kind != opIyOff {
		return fmt.Errorf("lea source must be an indexed displacement")
	}
	dd, ok := isa.DDCode(ops[0].reg)
	if !ok {
		return fmt.Errorf("invalid lea destination")
	}
	a.emitByte(0xED)
	base := byte(0x02)
	if src.kind == opIyOff {
		base = 0x05
	}
	a.emitByte(base | dd<<3)
	return a.emit8(src.disp)
}

func encodePEA(a *assembler, ops []operand) error {
	if len(ops) != 1 {
		return fmt.Errorf("pea requires one operand")
	}
	src := ops[0]
	if src.kind != opIxOff && src.kind != opIyOff {
		return fmt.Errorf("pea operand must be an indexed displacement")
	}
	a.emitByte(0xED)
	if src.kind == opIxOff {
		a.emitByte(0x65)
	} else {
		a.emitByte(0x66)
	}
	return a.emit8(src.disp)
}

//
// MLT / TST / IM
//

func encodeMLT(a *assembler, ops []operand) error {
	if len(ops) != 1 || ops[0].kind != opReg {
		return fmt.Errorf("mlt requires a register pair operand")
	}
	dd, ok := isa.DDCode(ops[0].reg)
	if !ok {
		return fmt.Errorf("invalid register pair")
	}
	a.emitByte(0xED)
	a.emitByte(0x4C | dd<<4)
	return nil
}

func encodeTST(a *assembler, ops []operand) error {
	if len(ops) != 1 {
		return fmt.Errorf("tst requires one operand")
	}
	o := ops[0]
	a.emitByte(0xED)
	switch o.kind {
	case opReg:
		r, ok := isa.RCode(o.reg)
		if !ok {
			return fmt.Errorf("invalid register")
		}
		a.emitByte(0x04 | r<<3)
		return nil
	case opImm:
		a.emitByte(0x64)
		return a.emit8(o.value)
	}
	return fmt.Errorf("invalid tst operand")
}

func encodeIM(a *assembler, ops []operand) error {
	if len(ops) != 1 || ops[0].kind != opImm || ops[0].value.sym != nil {
		return fmt.Errorf("im requires a constant mode")
	}
	a.emitByte(0xED)
	switch ops[0].value.value {
	case 0:
		a.emitByte(0x46)
	case 1:
		a.emitByte(0x56)
	case 2:
		a.emitByte(0x5E)
	default:
		return fmt.Errorf("invalid interrupt mode")
	}
	return nil
}
