// Package disasm pretty-prints object-model sections; the driver uses it
// to render `-d`/`--disassemble` output.
package disasm

import (
	"fmt"
	"strings"

	"github.com/pi4erd/sarch32asm/internal/isa"
	"github.com/pi4erd/sarch32asm/internal/object"
)

// Options controls the column layout of the rendered assembly.
type Options struct {
	MnemonicColumn int
	OperandColumn  int
}

// DefaultOptions returns sensible column widths for terminal output.
func DefaultOptions() *Options {
	return &Options{MnemonicColumn: 8, OperandColumn: 24}
}

// Section renders one section's contents (instructions or binary units)
// as human-readable text.
func Section(name string, sec *object.Section, table *isa.Table, opts *Options) string {
	if opts == nil {
		opts = DefaultOptions()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "section %q:\n", name)

	labelsByPtr := make(map[int][]string)
	for _, l := range sec.Labels {
		labelsByPtr[l.Ptr] = append(labelsByPtr[l.Ptr], l.Name)
	}

	if sec.IsCodeMode() {
		for i, inst := range sec.Instructions {
			for _, label := range labelsByPtr[i] {
				fmt.Fprintf(&b, "%s:\n", label)
			}
			writeInstruction(&b, inst, table, opts)
		}
		return b.String()
	}

	for i, bu := range sec.BinaryUnits {
		for _, label := range labelsByPtr[i] {
			fmt.Fprintf(&b, "%s:\n", label)
		}
		writeBinaryUnit(&b, bu, opts)
	}
	return b.String()
}

func writeInstruction(b *strings.Builder, inst object.InstructionData, table *isa.Table, opts *Options) {
	entry, ok := table.ByOpcode(inst.Opcode)
	mnemonic := entry.Name
	if !ok {
		mnemonic = fmt.Sprintf("<opcode:%d>", inst.Opcode)
	}

	args := make([]string, len(inst.Constants)+len(inst.References))
	for _, c := range inst.Constants {
		if c.ArgPos < len(args) {
			args[c.ArgPos] = fmt.Sprintf("%d", c.Value)
		}
	}
	for _, r := range inst.References {
		if r.ArgPos < len(args) {
			args[r.ArgPos] = r.Symbol
		}
	}

	line := pad("    "+mnemonic, opts.MnemonicColumn+4)
	b.WriteString(line)
	b.WriteString(strings.Join(args, ", "))
	b.WriteByte('\n')
}

func writeBinaryUnit(b *strings.Builder, bu object.BinaryUnit, opts *Options) {
	directive := directiveFor(bu.Size)
	line := pad("    "+directive, opts.MnemonicColumn+4)
	b.WriteString(line)
	if bu.IsReference {
		b.WriteString(bu.Symbol)
	} else {
		fmt.Fprintf(b, "%d", bu.Value)
	}
	b.WriteByte('\n')
}

func directiveFor(size object.ConstSize) string {
	switch size {
	case object.SizeByte:
		return ".db"
	case object.SizeWord:
		return ".dw"
	case object.SizeDWord:
		return ".dd"
	default:
		return ".db"
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}
