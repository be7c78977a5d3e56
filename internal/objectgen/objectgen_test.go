package objectgen_test

import (
	"testing"

	"github.com/pi4erd/sarch32asm/internal/lexer"
	"github.com/pi4erd/sarch32asm/internal/objectgen"
	"github.com/pi4erd/sarch32asm/internal/parser"
)

type noData struct{}

func (noData) ReadData(path string) ([]byte, error) { return nil, nil }

func TestGenerateLabelAndJump(t *testing.T) {
	toks, err := lexer.New("test.s32", "start:\njmp start\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	program, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	g := objectgen.New(noData{})
	file, err := g.Generate(program)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sec := file.Sections["text"]
	if len(sec.Labels) != 1 || sec.Labels[0].Name != "start" {
		t.Fatalf("expected label 'start' at ptr 0, got %+v", sec.Labels)
	}
	if len(sec.Instructions) != 1 || len(sec.Instructions[0].References) != 1 {
		t.Fatalf("expected jmp with one unresolved reference, got %+v", sec.Instructions)
	}
}

func TestGenerateSectionSwitchAndBinary(t *testing.T) {
	toks, err := lexer.New("t.s32", `.section "data"` + "\n.db 1, 2, 3\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	program, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	g := objectgen.New(noData{})
	file, err := g.Generate(program)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sec, ok := file.Sections["data"]
	if !ok {
		t.Fatal("expected a 'data' section")
	}
	if len(sec.BinaryUnits) != 3 {
		t.Fatalf("expected 3 binary units, got %d", len(sec.BinaryUnits))
	}
}

func TestGenerateRejectsMixedSectionModes(t *testing.T) {
	toks, err := lexer.New("t.s32", "nop\n.db 1\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	program, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	g := objectgen.New(noData{})
	if _, err := g.Generate(program); err == nil {
		t.Fatal("expected error mixing instructions and binary data in one section")
	}
}

func TestGenerateDefineResolution(t *testing.T) {
	toks, err := lexer.New("t.s32", ".define A 12\n.define B A\nloadid B, r0\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	program, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	g := objectgen.New(noData{})
	file, err := g.Generate(program)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sec := file.Sections["text"]
	if len(sec.Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(sec.Instructions))
	}
	inst := sec.Instructions[0]
	if len(inst.References) != 0 {
		t.Fatalf("expected no unresolved references, got %+v", inst.References)
	}
	// B chases to A, which is the literal 12, emitted as a 4-byte constant.
	if inst.Constants[0].Size != 4 || inst.Constants[0].Value != 12 {
		t.Fatalf("expected a 4-byte constant 12, got %+v", inst.Constants[0])
	}
}

// Defines chained through folded parenthesized arithmetic over integer
// literals resolve through to their numeric value.
func TestGenerateChainedExpressionDefines(t *testing.T) {
	src := ".define B (5 + 2)\n.define C (10 * 5)\n.define D (C * 10)\niadd D, r0\n"
	toks, err := lexer.New("t.s32", src).Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	program, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	g := objectgen.New(noData{})
	file, err := g.Generate(program)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(file.Sections["text"].Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(file.Sections["text"].Instructions))
	}
	got := file.Sections["text"].Instructions[0].Constants[0].Value
	if got != 500 {
		t.Fatalf("expected D to resolve to 500 (C=50, D=C*10), got %d", got)
	}
}

func TestGenerateLoopingDefinesIsError(t *testing.T) {
	toks, err := lexer.New("t.s32", ".define A B\n.define B A\niadd A, r0\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	program, err := parser.New(toks).Parse()
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	g := objectgen.New(noData{})
	if _, err := g.Generate(program); err == nil {
		t.Fatal("expected looping-defines error")
	}
}
