package isa

// SimpleOp describes a no-operand instruction: an optional prefix byte
// (0 meaning none) followed by an opcode byte.
type SimpleOp struct {
	Prefix byte
	Opcode byte
}

// SimpleOps is the table of fixed-encoding, no-operand ADL instructions.
// Keys are lower-case mnemonics.
var SimpleOps = map[string]SimpleOp{
	"nop":  {0, 0x00},
	"halt": {0, 0x76},
	"rlca": {0, 0x07},
	"rrca": {0, 0x0F},
	"rla":  {0, 0x17},
	"rra":  {0, 0x1F},
	"daa":  {0, 0x27},
	"cpl":  {0, 0x2F},
	"scf":  {0, 0x37},
	"ccf":  {0, 0x3F},
	"exx":  {0, 0xD9},
	"di":   {0, 0xF3},
	"ei":   {0, 0xFB},

	"neg":  {0xED, 0x44},
	"retn": {0xED, 0x45},
	"reti": {0xED, 0x4D},
	"rrd":  {0xED, 0x67},
	"rld":  {0xED, 0x6F},

	"ldi":  {0xED, 0xA0},
	"cpi":  {0xED, 0xA1},
	"ini":  {0xED, 0xA2},
	"outi": {0xED, 0xA3},
	"ldd":  {0xED, 0xA8},
	"cpd":  {0xED, 0xA9},
	"ind":  {0xED, 0xAA},
	"outd": {0xED, 0xAB},
	"ldir": {0xED, 0xB0},
	"cpir": {0xED, 0xB1},
	"inir": {0xED, 0xB2},
	"otir": {0xED, 0xB3},
	"lddr": {0xED, 0xB8},
	"cpdr": {0xED, 0xB9},
	"indr": {0xED, 0xBA},
	"otdr": {0xED, 0xBB},
}

// RegPairHLIXIY describes, for a 16-bit register pair r, the ED/DD/FD
// opcode bytes used to load r from, or store r to, memory addressed by
// (HL), (IX+d) or (IY+d). This is the irregular table from the LD
// encoding matrix: every row but IX/IY follows the obvious pattern, but
// IX-as-operand and IY-as-operand each have a distinct, non-symmetric
// opcode assignment and must come from this fixed table.
type RegPairMemOp struct {
	LoadHL, StoreHL byte // ED-prefixed
	LoadIX, StoreIX byte // DD-prefixed
	LoadIY, StoreIY byte // FD-prefixed
}

var RegPairHLIXIY = map[Reg]RegPairMemOp{
	RegBC: {LoadHL: 0x07, StoreHL: 0x0F, LoadIX: 0x07, StoreIX: 0x0F, LoadIY: 0x07, StoreIY: 0x0F},
	RegDE: {LoadHL: 0x17, StoreHL: 0x1F, LoadIX: 0x17, StoreIX: 0x1F, LoadIY: 0x17, StoreIY: 0x1F},
	RegHL: {LoadHL: 0x27, StoreHL: 0x2F, LoadIX: 0x27, StoreIX: 0x2F, LoadIY: 0x27, StoreIY: 0x2F},
	RegIX: {LoadHL: 0x37, StoreHL: 0x3F, LoadIX: 0x37, StoreIX: 0x3E, LoadIY: 0x31, StoreIY: 0x3D},
	RegIY: {LoadHL: 0x31, StoreHL: 0x3E, LoadIX: 0x31, StoreIX: 0x3D, LoadIY: 0x37, StoreIY: 0x3E},
}

// SpecialLD holds the fixed (prefix, opcode) pairs for the irregular LD
// forms that aren't part of the register-pair matrix above.
var SpecialLD = map[string]SimpleOp{
	"sp,hl": {0, 0xF9},
	"sp,ix": {0xDD, 0xF9},
	"sp,iy": {0xFD, 0xF9},
	"i,a":   {0xED, 0x47},
	"r,a":   {0xED, 0x4F},
	"a,i":   {0xED, 0x57},
	"a,r":   {0xED, 0x5F},
	"a,mb":  {0xED, 0x6E},
	"mb,a":  {0xED, 0x6D},
}
