package linker_test

import (
	"testing"

	"github.com/pi4erd/sarch32asm/internal/linker"
	"github.com/pi4erd/sarch32asm/internal/object"
)

// textOnlyStructure is for tests whose inputs only populate a text
// section; the link script must not name sections absent from the
// inputs.
func textOnlyStructure() *linker.LinkStructure {
	return &linker.LinkStructure{Sections: []linker.LinkSection{
		{Name: "text", Alignment: 0x100},
	}}
}

func TestLinkSimpleJump(t *testing.T) {
	f := object.NewObjectFile()
	text := f.Section("text")
	text.AddLabel("start") // ptr 0
	text.Instructions = append(text.Instructions,
		object.InstructionData{ // jmp start -> opcode 9
			Opcode:     9,
			References: []object.Reference{{ArgPos: 0, Symbol: "start"}},
		},
	)

	l := linker.New()
	if err := l.AddObject(f); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	image, err := l.Link(textOnlyStructure())
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	// jmp is opcode 9 (1 byte) + AbsPointer (4 bytes) = 5 bytes; text is
	// laid out at offset 0, so "start" resolves to address 0.
	if len(image) < 5 {
		t.Fatalf("expected at least 5 bytes, got %d", len(image))
	}
	if image[0] != 9 {
		t.Fatalf("expected opcode byte 9, got %d", image[0])
	}
	addr := uint32(image[1]) | uint32(image[2])<<8 | uint32(image[3])<<16 | uint32(image[4])<<24
	if addr != 0 {
		t.Fatalf("expected resolved address 0, got %d", addr)
	}
}

func TestLinkRelativeJumpEncoding(t *testing.T) {
	f := object.NewObjectFile()
	text := f.Section("text")
	// nop (1 byte) at pc=0, then "jpr target" (opcode 12, 1+4 bytes) at
	// pc=1, target label at pc=6.
	text.Instructions = append(text.Instructions,
		object.InstructionData{Opcode: 0}, // nop
		object.InstructionData{Opcode: 12, References: []object.Reference{{ArgPos: 0, Symbol: "target"}}},
	)
	text.AddLabel("target") // ptr 2, right after the two instructions above

	l := linker.New()
	if err := l.AddObject(f); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	image, err := l.Link(textOnlyStructure())
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	// jpr's displacement is measured from the start of the jpr instruction
	// (pc=1) to the label's address (pc=6): 6-1 = 5.
	if image[1] != 12 {
		t.Fatalf("expected opcode byte 12 at offset 1, got %d", image[1])
	}
	disp := int32(uint32(image[2]) | uint32(image[3])<<8 | uint32(image[4])<<16 | uint32(image[5])<<24)
	if disp != 5 {
		t.Fatalf("expected relative displacement 5, got %d", disp)
	}
}

func TestLinkUnresolvedReferenceIsFatal(t *testing.T) {
	f := object.NewObjectFile()
	text := f.Section("text")
	text.Instructions = append(text.Instructions,
		object.InstructionData{Opcode: 9, References: []object.Reference{{ArgPos: 0, Symbol: "missing"}}},
	)

	l := linker.New()
	if err := l.AddObject(f); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if _, err := l.Link(textOnlyStructure()); err == nil {
		t.Fatal("expected unresolved reference error")
	}
}

func TestLinkMissingSectionInScriptIsError(t *testing.T) {
	f := object.NewObjectFile()
	f.Section("text")

	l := linker.New()
	if err := l.AddObject(f); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	ls := &linker.LinkStructure{Sections: []linker.LinkSection{{Name: "rodata", Alignment: 0x100}}}
	if _, err := l.Link(ls); err == nil {
		t.Fatal("expected error for link section absent from inputs")
	}
}

func TestLinkAlignmentPadding(t *testing.T) {
	f := object.NewObjectFile()
	text := f.Section("text")
	text.Instructions = append(text.Instructions, object.InstructionData{Opcode: 0}) // nop, 1 byte

	data := f.Section("data")
	data.BinaryUnits = append(data.BinaryUnits, object.BinaryUnit{Size: object.SizeByte, Value: 7})

	l := linker.New()
	if err := l.AddObject(f); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	ls := &linker.LinkStructure{Sections: []linker.LinkSection{
		{Name: "text", Alignment: 0x10},
		{Name: "data", Alignment: 0x10},
	}}
	image, err := l.Link(ls)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if image[0x10] != 7 {
		t.Fatalf("expected data section aligned to 0x10, got byte %d at offset 0x10", image[0x10])
	}
}

// Three labels in text, each followed by two nops; a data section
// referencing each label at a different binary-unit width; an empty
// rodata section. All three link sections default to 0x100 alignment.
func TestLinkLabelAddressesIntoDataUnits(t *testing.T) {
	f := object.NewObjectFile()

	text := f.Section("text")
	text.AddLabel("label1") // ptr 0
	text.Instructions = append(text.Instructions,
		object.InstructionData{Opcode: 0}, object.InstructionData{Opcode: 0})
	text.AddLabel("label2") // ptr 2
	text.Instructions = append(text.Instructions,
		object.InstructionData{Opcode: 0}, object.InstructionData{Opcode: 0})
	text.AddLabel("label3") // ptr 4
	text.Instructions = append(text.Instructions,
		object.InstructionData{Opcode: 0}, object.InstructionData{Opcode: 0})

	data := f.Section("data")
	data.BinaryUnits = append(data.BinaryUnits,
		object.BinaryUnit{Size: object.SizeByte, IsReference: true, Symbol: "label1"},
		object.BinaryUnit{Size: object.SizeWord, IsReference: true, Symbol: "label2"},
		object.BinaryUnit{Size: object.SizeDWord, IsReference: true, Symbol: "label3"},
	)

	f.Section("rodata")

	l := linker.New()
	if err := l.AddObject(f); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	image, err := l.Link(linker.DefaultLinkStructure())
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	if len(image) != 512 {
		t.Fatalf("expected a 512-byte image, got %d", len(image))
	}
	for i := 0; i < 6; i++ {
		if image[i] != 0 {
			t.Fatalf("byte %d: expected 0 (nop), got %d", i, image[i])
		}
	}
	want := []byte{0, 2, 0, 4, 0, 0, 0}
	for i, w := range want {
		if image[0x100+i] != w {
			t.Fatalf("byte 0x100+%d: expected %d, got %d", i, w, image[0x100+i])
		}
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	f := object.NewObjectFile()
	text := f.Section("text")
	text.Instructions = append(text.Instructions, object.InstructionData{Opcode: 0})

	l := linker.New()
	if err := l.AddObject(f); err != nil {
		t.Fatalf("AddObject: %v", err)
	}

	data, err := l.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := linker.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := reloaded.Link(textOnlyStructure()); err != nil {
		t.Fatalf("Link after reload: %v", err)
	}
}
