package object_test

import (
	"errors"
	"testing"

	"github.com/pi4erd/sarch32asm/internal/object"
)

func TestRoundTripEmpty(t *testing.T) {
	f := object.NewObjectFile()
	data, err := object.Write(f)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := object.Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Sections) != 0 {
		t.Fatalf("expected no sections, got %d", len(got.Sections))
	}
}

func TestRoundTripCodeSection(t *testing.T) {
	f := object.NewObjectFile()
	text := f.Section("text")
	text.Labels = append(text.Labels, object.Label{Name: "start", Ptr: 0})
	text.Instructions = append(text.Instructions,
		object.InstructionData{
			Opcode:     9, // jmp
			References: []object.Reference{{ArgPos: 0, Symbol: "start"}},
		},
		object.InstructionData{
			Opcode: 3, // iadd
			Constants: []object.Constant{
				{ArgPos: 0, Size: object.SizeDWord, Value: -7},
				{ArgPos: 1, Size: object.SizeByte, Value: 2},
			},
		},
	)

	data, err := object.Write(f)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := object.Read(data)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	sec, ok := got.Sections["text"]
	if !ok {
		t.Fatalf("missing section %q", "text")
	}
	if len(sec.Labels) != 1 || sec.Labels[0].Name != "start" {
		t.Fatalf("labels = %+v", sec.Labels)
	}
	if len(sec.Instructions) != 2 {
		t.Fatalf("instructions = %+v", sec.Instructions)
	}
	if sec.Instructions[1].Constants[0].Value != -7 {
		t.Fatalf("expected sign-extended constant -7, got %d", sec.Instructions[1].Constants[0].Value)
	}
}

func TestRoundTripBinarySection(t *testing.T) {
	f := object.NewObjectFile()
	data := f.Section("data")
	data.BinaryUnits = append(data.BinaryUnits,
		object.BinaryUnit{Size: object.SizeByte, Value: 65},
		object.BinaryUnit{Size: object.SizeDWord, IsReference: true, Symbol: "target"},
	)

	encoded, err := object.Write(f)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := object.Read(encoded)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	sec := got.Sections["data"]
	if len(sec.BinaryUnits) != 2 {
		t.Fatalf("binary units = %+v", sec.BinaryUnits)
	}
	if sec.BinaryUnits[1].Symbol != "target" {
		t.Fatalf("expected reference symbol %q, got %q", "target", sec.BinaryUnits[1].Symbol)
	}
}

func TestWriteRejectsMixedModeSection(t *testing.T) {
	f := object.NewObjectFile()
	sec := f.Section("mixed")
	sec.Instructions = append(sec.Instructions, object.InstructionData{Opcode: 0})
	sec.BinaryUnits = append(sec.BinaryUnits, object.BinaryUnit{Size: object.SizeByte, Value: 1})

	if _, err := object.Write(f); err == nil {
		t.Fatal("expected error writing a section with both instructions and binary units")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := object.Read([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err == nil {
		t.Fatal("expected error on truncated/bad magic")
	}
}

func TestReadWarnsOnVersionMismatch(t *testing.T) {
	f := object.NewObjectFile()
	data, err := object.Write(f)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Version is the four bytes right after magic(8) + section_count(8).
	data[16] = 99

	_, err = object.Read(data)
	var warn *object.Warning
	if !errors.As(err, &warn) {
		t.Fatalf("expected a *object.Warning for version mismatch, got %v", err)
	}
}

func TestSectionAppendOtherAdjustsLabelPtr(t *testing.T) {
	a := object.NewSection("text")
	a.Instructions = append(a.Instructions, object.InstructionData{Opcode: 0}, object.InstructionData{Opcode: 0})

	b := object.NewSection("text")
	b.Instructions = append(b.Instructions, object.InstructionData{Opcode: 1})
	b.Labels = append(b.Labels, object.Label{Name: "here", Ptr: 0})

	if err := a.AppendOther(b); err != nil {
		t.Fatalf("AppendOther: %v", err)
	}
	if len(a.Instructions) != 3 {
		t.Fatalf("expected 3 merged instructions, got %d", len(a.Instructions))
	}
	l, ok := a.FindLabel("here")
	if !ok || l.Ptr != 2 {
		t.Fatalf("expected label %q adjusted to ptr 2, got %+v (found=%v)", "here", l, ok)
	}
}

func TestSectionAppendOtherRejectsModeMismatch(t *testing.T) {
	code := object.NewSection("text")
	code.Instructions = append(code.Instructions, object.InstructionData{Opcode: 0})

	bin := object.NewSection("text")
	bin.BinaryUnits = append(bin.BinaryUnits, object.BinaryUnit{Size: object.SizeByte, Value: 1})

	if err := code.AppendOther(bin); err == nil {
		t.Fatal("expected error merging a code-mode section with a binary-mode section")
	}
}
