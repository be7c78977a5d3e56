// Package isa holds the static SArch32 instruction, register and
// condition-code tables.
package isa

// ArgumentType identifies the kind of value an instruction argument slot
// accepts.
type ArgumentType int

const (
	AbsPointer ArgumentType = iota
	RelPointer
	Register8
	Register16
	Register32
	Immediate8
	Immediate16
	Immediate32
	FloatingPoint
	Condition
)

// Size returns the encoded width, in bytes, of an argument of this type.
func (a ArgumentType) Size() int {
	switch a {
	case AbsPointer, RelPointer, Immediate32, FloatingPoint:
		return 4
	case Immediate16:
		return 2
	case Register8, Register16, Register32, Immediate8, Condition:
		return 1
	default:
		return 0
	}
}

// Instruction is one entry in the instruction table: a display name
// (may encode a width suffix, e.g. "loadm dw"; consumed only by the
// disassembler), an opcode, and its argument signature.
type Instruction struct {
	Name   string
	Opcode uint16
	Args   []ArgumentType
}

// Extended reports whether the opcode requires two bytes on the wire
// (bit 7 of the low byte set).
func (i Instruction) Extended() bool {
	return i.Opcode&0x80 != 0
}

// OpcodeBytes returns 2 for an extended opcode, 1 otherwise.
func (i Instruction) OpcodeBytes() int {
	if i.Extended() {
		return 2
	}
	return 1
}

// EncodedSize returns the total encoded size of this instruction: opcode
// bytes plus the sum of its argument sizes.
func (i Instruction) EncodedSize() int {
	size := i.OpcodeBytes()
	for _, arg := range i.Args {
		size += arg.Size()
	}
	return size
}

// Table is the immutable mnemonic->Instruction registry.
type Table struct {
	byMnemonic map[string]Instruction
}

// NewTable builds the default SArch32 instruction table.
func NewTable() *Table {
	t := &Table{byMnemonic: make(map[string]Instruction, len(defaultInstructions))}
	for mnemonic, inst := range defaultInstructions {
		t.byMnemonic[mnemonic] = inst
	}
	return t
}

// Lookup finds an instruction by mnemonic.
func (t *Table) Lookup(mnemonic string) (Instruction, bool) {
	inst, ok := t.byMnemonic[mnemonic]
	return inst, ok
}

// ByOpcode finds the instruction table entry with the given opcode.
func (t *Table) ByOpcode(opcode uint16) (Instruction, bool) {
	for _, inst := range t.byMnemonic {
		if inst.Opcode == opcode {
			return inst, true
		}
	}
	return Instruction{}, false
}

// defaultInstructions is the SArch32 instruction set.
var defaultInstructions = map[string]Instruction{
	"nop":  {Name: "nop", Opcode: 0, Args: nil},
	"halt": {Name: "halt", Opcode: 1, Args: nil},

	"radd": {Name: "add", Opcode: 2, Args: []ArgumentType{Register32, Register32}},
	"iadd": {Name: "add", Opcode: 3, Args: []ArgumentType{Immediate32, Register32}},

	"loadmd": {Name: "loadm dw", Opcode: 4, Args: []ArgumentType{AbsPointer, Register32}},
	"loadid": {Name: "loadi dw", Opcode: 5, Args: []ArgumentType{Immediate32, Register32}},

	"madd":   {Name: "add", Opcode: 6, Args: []ArgumentType{AbsPointer, Register32}},
	"loadmb": {Name: "loadm b", Opcode: 7, Args: []ArgumentType{AbsPointer, Register8}},
	"loadib": {Name: "loadi b", Opcode: 8, Args: []ArgumentType{Immediate8, Register8}},

	"jmp":  {Name: "jmp", Opcode: 9, Args: []ArgumentType{AbsPointer}},
	"jpc":  {Name: "jpc", Opcode: 10, Args: []ArgumentType{AbsPointer, Condition}},
	"call": {Name: "call", Opcode: 11, Args: []ArgumentType{AbsPointer}},

	"jpr":   {Name: "jpr", Opcode: 12, Args: []ArgumentType{RelPointer}},
	"jrc":   {Name: "jrc", Opcode: 13, Args: []ArgumentType{RelPointer, Condition}},
	"callr": {Name: "callr", Opcode: 14, Args: []ArgumentType{RelPointer}},
	"push":  {Name: "push", Opcode: 15, Args: []ArgumentType{Register32}},
	"pop":   {Name: "pop", Opcode: 16, Args: []ArgumentType{Register32}},
	"ret":   {Name: "ret", Opcode: 17, Args: nil},

	"movrd": {Name: "movrd", Opcode: 18, Args: []ArgumentType{Register32, Register32}},
	"movrw": {Name: "movrw", Opcode: 19, Args: []ArgumentType{Register16, Register16}},
	"movrb": {Name: "movrb", Opcode: 20, Args: []ArgumentType{Register8, Register8}},
	"int":   {Name: "int", Opcode: 21, Args: []ArgumentType{Immediate8}},
	"isub":  {Name: "isub", Opcode: 22, Args: []ArgumentType{Immediate32, Register32}},
	"msub":  {Name: "msub", Opcode: 23, Args: []ArgumentType{AbsPointer, Register32}},

	"rsub": {Name: "rsub", Opcode: 24, Args: []ArgumentType{Register32, Register32}},
	"ngi":  {Name: "ngi", Opcode: 25, Args: []ArgumentType{Register32}},

	"rmulsd": {Name: "rmulsd", Opcode: 26, Args: []ArgumentType{Register32, Register32}},
	"rdivsd": {Name: "rdivsd", Opcode: 27, Args: []ArgumentType{Register32, Register32}},
	"rmulud": {Name: "rmulud", Opcode: 28, Args: []ArgumentType{Register32, Register32}},
	"rdivud": {Name: "rdivud", Opcode: 29, Args: []ArgumentType{Register32, Register32}},

	"imulsd": {Name: "imulsd", Opcode: 30, Args: []ArgumentType{Immediate32, Register32}},
	"idivsd": {Name: "idivsd", Opcode: 31, Args: []ArgumentType{Immediate32, Register32}},
	"imulud": {Name: "imulud", Opcode: 32, Args: []ArgumentType{Immediate32, Register32}},
	"idivud": {Name: "idivud", Opcode: 33, Args: []ArgumentType{Immediate32, Register32}},

	"cvsdf": {Name: "cvsdf", Opcode: 34, Args: []ArgumentType{Register32}},
	"cvfsd": {Name: "cvfsd", Opcode: 35, Args: []ArgumentType{Register32}},
}
