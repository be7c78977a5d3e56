// Package objectgen walks a parsed AST and produces an object.ObjectFile:
// directives manage sections, defines and data payloads; instructions are
// resolved against the instruction table into opcodes with typed
// constants and unresolved references.
package objectgen

import (
	"fmt"
	"os"

	"github.com/pi4erd/sarch32asm/internal/ast"
	"github.com/pi4erd/sarch32asm/internal/isa"
	"github.com/pi4erd/sarch32asm/internal/object"
)

// maxDefineDepth bounds `.define` alias chasing; deeper is a "looping
// defines" error.
const maxDefineDepth = 100

// Error is a semantic object-generation error: it carries no source
// position but names the offending symbol or section.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func errf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// DataReader resolves `.data "PATH"` file contents. The default reads
// from the local filesystem relative to BaseDir.
type DataReader interface {
	ReadData(path string) ([]byte, error)
}

// OSDataReader reads `.data` files from disk.
type OSDataReader struct {
	BaseDir string
}

func (r OSDataReader) ReadData(path string) ([]byte, error) {
	full := path
	if r.BaseDir != "" && !isAbs(path) {
		full = r.BaseDir + string(os.PathSeparator) + path
	}
	return os.ReadFile(full)
}

func isAbs(path string) bool {
	return len(path) > 0 && (path[0] == '/' || (len(path) > 1 && path[1] == ':'))
}

// Generator walks an AST program in source order, maintaining the
// current section and the define table.
type Generator struct {
	table   *isa.Table
	data    DataReader
	file    *object.ObjectFile
	sec     *object.Section
	secName string
}

// New creates a Generator using the default instruction table.
func New(data DataReader) *Generator {
	return &Generator{
		table: isa.NewTable(),
		data:  data,
		file:  object.NewObjectFile(),
	}
}

// Generate walks the program root and returns the resulting object file.
func (g *Generator) Generate(program *ast.Node) (*object.ObjectFile, error) {
	g.switchSection("text")

	for _, stmt := range program.Children {
		if err := g.statement(stmt); err != nil {
			return nil, err
		}
	}

	return g.file, nil
}

func (g *Generator) switchSection(name string) {
	g.secName = name
	g.sec = g.file.Section(name)
}

func (g *Generator) statement(n *ast.Node) error {
	switch n.Type {
	case ast.NodeLabel:
		return g.sec.AddLabel(n.Name)
	case ast.CompilerInstruction:
		return g.directive(n)
	case ast.Instruction:
		return g.instruction(n)
	default:
		return errf("unexpected top-level node kind %d", n.Type)
	}
}

func (g *Generator) directive(n *ast.Node) error {
	switch n.Name {
	case "section":
		if len(n.Children) != 1 || n.Children[0].Type != ast.String {
			return errf(".section requires a single string argument")
		}
		g.switchSection(n.Children[0].StrValue)
		return nil

	case "define":
		if len(n.Children) != 2 || n.Children[0].Type != ast.Identifier {
			return errf(".define requires a name and an expression")
		}
		g.file.Defines[n.Children[0].Name] = n.Children[1]
		return nil

	case "db":
		return g.appendBinary(n.Children, object.SizeByte)
	case "dw":
		return g.appendBinary(n.Children, object.SizeWord)
	case "dd":
		return g.appendBinary(n.Children, object.SizeDWord)

	case "resb":
		if len(n.Children) != 1 {
			return errf(".resb requires exactly one argument")
		}
		if g.sec.IsCodeMode() {
			return errf("section %q already holds instructions, cannot append binary data", g.secName)
		}
		count, err := g.resolveInt(n.Children[0])
		if err != nil {
			return err
		}
		for i := int64(0); i < count; i++ {
			g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: object.SizeByte, Value: 0})
		}
		return nil

	case "data":
		if len(n.Children) != 1 || n.Children[0].Type != ast.String {
			return errf(".data requires a single string path argument")
		}
		if g.sec.IsCodeMode() {
			return errf("section %q already holds instructions, cannot append binary data", g.secName)
		}
		contents, err := g.data.ReadData(n.Children[0].StrValue)
		if err != nil {
			return errf("reading .data file %q: %v", n.Children[0].StrValue, err)
		}
		for _, b := range contents {
			g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: object.SizeByte, Value: int64(b)})
		}
		return nil

	default:
		return errf("unknown directive %q", n.Name)
	}
}

// appendBinary implements .db/.dw/.dd: integers become constants, strings
// expand to one unit per byte, identifiers naming a define become
// constants and other identifiers become references, all at the given
// unit size. The section becomes binary-mode on first append.
func (g *Generator) appendBinary(args []*ast.Node, size object.ConstSize) error {
	if g.sec.IsCodeMode() {
		return errf("section %q already holds instructions, cannot append binary data", g.secName)
	}
	for _, arg := range args {
		switch arg.Type {
		case ast.ConstInteger:
			g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: size, Value: arg.IntValue})
		case ast.ConstFloat:
			g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: size, Value: int64(arg.FloatValue)})
		case ast.String:
			for _, b := range []byte(arg.StrValue) {
				g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: size, Value: int64(b)})
			}
		case ast.Identifier:
			if value, ok, err := g.resolveDefineInt(arg.Name); err != nil {
				return err
			} else if ok {
				g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: size, Value: value})
				continue
			}
			g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: size, IsReference: true, Symbol: arg.Name})
		case ast.Expression:
			value, err := g.resolveInt(arg)
			if err != nil {
				return err
			}
			g.sec.BinaryUnits = append(g.sec.BinaryUnits, object.BinaryUnit{Size: size, Value: value})
		default:
			return errf("value of type %d is not valid in a binary directive", arg.Type)
		}
	}
	return nil
}

// instruction resolves a mnemonic against the instruction table and each
// argument against its expected type.
func (g *Generator) instruction(n *ast.Node) error {
	if g.sec.IsBinaryMode() {
		return errf("section %q already holds binary data, cannot append instructions", g.secName)
	}

	inst, ok := g.table.Lookup(n.Name)
	if !ok {
		return errf("unknown instruction mnemonic %q", n.Name)
	}
	if len(n.Children) != len(inst.Args) {
		return errf("instruction %q expects %d argument(s), got %d", n.Name, len(inst.Args), len(n.Children))
	}

	data := object.InstructionData{Opcode: inst.Opcode}

	for pos, arg := range n.Children {
		expected := inst.Args[pos]
		if err := g.resolveArgument(&data, pos, expected, arg); err != nil {
			return err
		}
	}

	g.sec.Instructions = append(g.sec.Instructions, data)
	return nil
}

func (g *Generator) resolveArgument(data *object.InstructionData, pos int, expected isa.ArgumentType, arg *ast.Node) error {
	switch expected {
	case isa.AbsPointer, isa.RelPointer:
		switch arg.Type {
		case ast.ConstInteger, ast.Expression:
			v, err := g.resolveInt(arg)
			if err != nil {
				return err
			}
			data.Constants = append(data.Constants, object.Constant{ArgPos: pos, Size: object.SizeDWord, Value: v})
		case ast.Identifier:
			if v, ok, err := g.resolveDefineInt(arg.Name); err != nil {
				return err
			} else if ok {
				data.Constants = append(data.Constants, object.Constant{ArgPos: pos, Size: object.SizeDWord, Value: v})
				return nil
			}
			data.References = append(data.References, object.Reference{ArgPos: pos, Symbol: arg.Name})
		case ast.Register:
			return errf("register %q is not valid for a pointer argument", arg.Name)
		default:
			return errf("argument %d: expected a pointer or label, got an incompatible value", pos)
		}

	case isa.Immediate32, isa.FloatingPoint:
		v, err := g.resolveNumeric(arg)
		if err != nil {
			return err
		}
		data.Constants = append(data.Constants, object.Constant{ArgPos: pos, Size: object.SizeDWord, Value: v})

	case isa.Immediate16:
		v, err := g.resolveNumeric(arg)
		if err != nil {
			return err
		}
		data.Constants = append(data.Constants, object.Constant{ArgPos: pos, Size: object.SizeWord, Value: v & 0xFFFF})

	case isa.Immediate8:
		v, err := g.resolveNumeric(arg)
		if err != nil {
			return err
		}
		data.Constants = append(data.Constants, object.Constant{ArgPos: pos, Size: object.SizeByte, Value: v & 0xFF})

	case isa.Register8, isa.Register16, isa.Register32:
		if arg.Type != ast.Register {
			return errf("argument %d: expected a register", pos)
		}
		width := registerWidth(expected)
		code, ok := isa.LookupRegister(width, arg.Name)
		if !ok {
			return errf("register %q is not valid at the expected width", arg.Name)
		}
		data.Constants = append(data.Constants, object.Constant{ArgPos: pos, Size: object.SizeByte, Value: int64(code)})

	case isa.Condition:
		if arg.Type != ast.Identifier {
			return errf("argument %d: expected a condition name", pos)
		}
		code, ok := isa.LookupCondition(arg.Name)
		if !ok {
			return errf("unknown condition %q", arg.Name)
		}
		data.Constants = append(data.Constants, object.Constant{ArgPos: pos, Size: object.SizeByte, Value: int64(code)})

	default:
		return errf("unsupported argument type")
	}

	return nil
}

func registerWidth(t isa.ArgumentType) isa.RegisterWidth {
	switch t {
	case isa.Register8:
		return isa.Width8
	case isa.Register16:
		return isa.Width16
	default:
		return isa.Width32
	}
}

// resolveNumeric resolves an Immediate/FloatingPoint argument: integer or
// float literals directly, or an identifier that must resolve to a
// define.
func (g *Generator) resolveNumeric(arg *ast.Node) (int64, error) {
	switch arg.Type {
	case ast.ConstInteger, ast.ConstFloat, ast.Expression:
		return g.resolveInt(arg)
	case ast.Identifier:
		v, ok, err := g.resolveDefineInt(arg.Name)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errf("identifier %q does not resolve to a define", arg.Name)
		}
		return v, nil
	case ast.Register:
		return 0, errf("register %q is not valid for an immediate argument", arg.Name)
	default:
		return 0, errf("value is not valid as an immediate argument")
	}
}

// resolveInt evaluates a literal or unfolded Expression node to an
// integer, following identifier operands through the define table.
func (g *Generator) resolveInt(n *ast.Node) (int64, error) {
	switch n.Type {
	case ast.ConstInteger:
		return n.IntValue, nil
	case ast.ConstFloat:
		return int64(n.FloatValue), nil
	case ast.Identifier:
		v, ok, err := g.resolveDefineInt(n.Name)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errf("identifier %q does not resolve to a define", n.Name)
		}
		return v, nil
	case ast.Expression:
		if len(n.Children) == 1 {
			v, err := g.resolveInt(n.Children[0])
			if err != nil {
				return 0, err
			}
			if n.Op == ast.Negate {
				return -v, nil
			}
			return v, nil
		}
		left, err := g.resolveInt(n.Children[0])
		if err != nil {
			return 0, err
		}
		right, err := g.resolveInt(n.Children[1])
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case ast.Add:
			return left + right, nil
		case ast.Sub:
			return left - right, nil
		case ast.Mul:
			return left * right, nil
		case ast.Div:
			if right == 0 {
				return 0, errf("division by zero in constant expression")
			}
			return left / right, nil
		default:
			return 0, errf("unsupported expression operator")
		}
	default:
		return 0, errf("value does not resolve to an integer constant")
	}
}

// resolveDefineInt chases `.define` aliases up to maxDefineDepth,
// returning ok=false when name is not in the define table at all (so the
// caller can fall back to treating it as a reference).
func (g *Generator) resolveDefineInt(name string) (int64, bool, error) {
	seen := 0
	for {
		node, ok := g.file.Defines[name]
		if !ok {
			return 0, false, nil
		}
		seen++
		if seen > maxDefineDepth {
			return 0, false, errf("looping defines: %q exceeds maximum alias depth of %d", name, maxDefineDepth)
		}
		if node.Type == ast.Identifier {
			name = node.Name
			continue
		}
		v, err := g.resolveInt(node)
		return v, true, err
	}
}
