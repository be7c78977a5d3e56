// Package linker merges object files by section, lays sections out per a
// link script, resolves label references (including PC-relative ones),
// and emits the final byte image.
package linker

import (
	"encoding/json"
	"fmt"

	"github.com/pi4erd/sarch32asm/internal/isa"
	"github.com/pi4erd/sarch32asm/internal/object"
)

// LinkSection is one entry of a LinkStructure: a section name and its
// byte alignment.
type LinkSection struct {
	Name      string `json:"name"`
	Alignment int    `json:"alignment"`
}

// LinkStructure is the ordered list of sections the linker emits, loaded
// from a JSON link script or defaulted to `[text, data, rodata]` at
// 0x100 alignment.
type LinkStructure struct {
	Sections []LinkSection `json:"sections"`
}

// DefaultLinkStructure returns the built-in layout used when no link
// script is given.
func DefaultLinkStructure() *LinkStructure {
	return &LinkStructure{Sections: []LinkSection{
		{Name: "text", Alignment: 0x100},
		{Name: "data", Alignment: 0x100},
		{Name: "rodata", Alignment: 0x100},
	}}
}

// LoadLinkStructure parses a link script from JSON.
func LoadLinkStructure(data []byte) (*LinkStructure, error) {
	var ls LinkStructure
	if err := json.Unmarshal(data, &ls); err != nil {
		return nil, fmt.Errorf("parsing link script: %w", err)
	}
	return &ls, nil
}

// Error is a semantic linker error: it carries no source position but
// names the offending symbol or section.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func errf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Linker accumulates merged sections from one or more object files and
// links them against a LinkStructure.
type Linker struct {
	table    *isa.Table
	sections map[string]*object.Section
	order    []string
}

// New creates an empty Linker.
func New() *Linker {
	return &Linker{
		table:    isa.NewTable(),
		sections: make(map[string]*object.Section),
	}
}

// AddObject merges an object file's sections in:
// a section not yet seen is inserted; one already present is appended
// to, adjusting the incoming section's label pointers and refusing a
// mode mismatch or colliding label name.
func (l *Linker) AddObject(f *object.ObjectFile) error {
	names := f.Order
	if len(names) == 0 {
		for name := range f.Sections {
			names = append(names, name)
		}
	}

	for _, name := range names {
		incoming := f.Sections[name]
		existing, ok := l.sections[name]
		if !ok {
			merged := object.NewSection(name)
			if err := merged.AppendOther(incoming); err != nil {
				return err
			}
			l.sections[name] = merged
			l.order = append(l.order, name)
			continue
		}
		if err := existing.AppendOther(incoming); err != nil {
			return err
		}
	}

	return nil
}

// layout is the resolved byte offset and size of one link section.
type layout struct {
	offset int
	size   int
}

// Link performs section layout, label resolution, and image emission
// against the given LinkStructure.
func (l *Linker) Link(ls *LinkStructure) ([]byte, error) {
	layouts := make(map[string]layout, len(ls.Sections))
	offset := 0

	for _, ln := range ls.Sections {
		sec, ok := l.sections[ln.Name]
		if !ok {
			return nil, errf("link script references section %q, which is absent from all inputs", ln.Name)
		}
		size, err := l.sectionByteSize(sec)
		if err != nil {
			return nil, err
		}

		aligned := alignUp(offset, ln.Alignment)
		layouts[ln.Name] = layout{offset: aligned, size: size}
		offset = aligned + size
	}

	image := make([]byte, 0, offset)
	for _, ln := range ls.Sections {
		sec := l.sections[ln.Name]
		lay := layouts[ln.Name]

		for len(image) < lay.offset {
			image = append(image, 0)
		}

		encoded, err := l.emitSection(sec, ln.Name, lay.offset, layouts)
		if err != nil {
			return nil, err
		}
		image = append(image, encoded...)
	}

	if n := len(ls.Sections); n > 0 {
		final := alignUp(len(image), ls.Sections[n-1].Alignment)
		for len(image) < final {
			image = append(image, 0)
		}
	}

	return image, nil
}

func alignUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return ((offset + alignment - 1) / alignment) * alignment
}

// sectionByteSize sums the encoded size of a section's content.
func (l *Linker) sectionByteSize(sec *object.Section) (int, error) {
	size := 0
	if sec.IsCodeMode() {
		for _, inst := range sec.Instructions {
			instSize, err := l.instructionSize(inst)
			if err != nil {
				return 0, err
			}
			size += instSize
		}
		return size, nil
	}
	for _, bu := range sec.BinaryUnits {
		size += int(bu.Size)
	}
	return size, nil
}

func (l *Linker) instructionSize(inst object.InstructionData) (int, error) {
	isaInst, ok := l.table.ByOpcode(inst.Opcode)
	if !ok {
		return 0, errf("opcode %d has no instruction table entry", inst.Opcode)
	}
	return isaInst.EncodedSize(), nil
}

// localByteOffset walks a section's content sequence up to ptr, summing
// per-entry encoded sizes.
func (l *Linker) localByteOffset(sec *object.Section, ptr int) (int, error) {
	offset := 0
	if sec.IsCodeMode() {
		for i := 0; i < ptr && i < len(sec.Instructions); i++ {
			size, err := l.instructionSize(sec.Instructions[i])
			if err != nil {
				return 0, err
			}
			offset += size
		}
		return offset, nil
	}
	for i := 0; i < ptr && i < len(sec.BinaryUnits); i++ {
		offset += int(sec.BinaryUnits[i].Size)
	}
	return offset, nil
}

// resolveSymbol finds the absolute byte address of a label by scanning
// every merged section.
func (l *Linker) resolveSymbol(name string, layouts map[string]layout) (int, error) {
	for _, secName := range l.order {
		sec := l.sections[secName]
		label, ok := sec.FindLabel(name)
		if !ok {
			continue
		}
		lay, ok := layouts[secName]
		if !ok {
			return 0, errf("label %q is defined in section %q, which is absent from the link script", name, secName)
		}
		localOffset, err := l.localByteOffset(sec, label.Ptr)
		if err != nil {
			return 0, err
		}
		return lay.offset + localOffset, nil
	}
	return 0, errf("unresolved reference to symbol %q", name)
}

// emitSection encodes one section's content at the given base byte
// offset.
func (l *Linker) emitSection(sec *object.Section, name string, base int, layouts map[string]layout) ([]byte, error) {
	var out []byte

	if sec.IsBinaryMode() {
		for _, bu := range sec.BinaryUnits {
			value := bu.Value
			if bu.IsReference {
				addr, err := l.resolveSymbol(bu.Symbol, layouts)
				if err != nil {
					return nil, fmt.Errorf("section %q: %w", name, err)
				}
				value = int64(addr)
			}
			out = appendLittleEndian(out, value, int(bu.Size))
		}
		return out, nil
	}

	pc := base
	for _, inst := range sec.Instructions {
		isaInst, ok := l.table.ByOpcode(inst.Opcode)
		if !ok {
			return nil, fmt.Errorf("section %q: opcode %d has no instruction table entry", name, inst.Opcode)
		}

		if isaInst.Extended() {
			out = append(out, byte(inst.Opcode), byte(inst.Opcode>>8))
		} else {
			out = append(out, byte(inst.Opcode))
		}

		for argPos, argType := range isaInst.Args {
			value, size, err := l.resolveArgument(inst, argPos, argType, pc, layouts)
			if err != nil {
				return nil, fmt.Errorf("section %q: instruction at pc=0x%X: %w", name, pc, err)
			}
			out = appendLittleEndian(out, value, size)
		}

		pc += isaInst.EncodedSize()
	}

	return out, nil
}

// resolveArgument picks the constant or reference at argPos, resolving a
// RelPointer reference to a PC-relative displacement from the start of
// the current instruction. Constants are returned as stored, for every
// argument type.
func (l *Linker) resolveArgument(inst object.InstructionData, argPos int, argType isa.ArgumentType, instStart int, layouts map[string]layout) (int64, int, error) {
	size := argType.Size()

	for _, ref := range inst.References {
		if ref.ArgPos != argPos {
			continue
		}
		addr, err := l.resolveSymbol(ref.Symbol, layouts)
		if err != nil {
			return 0, 0, err
		}
		if argType == isa.RelPointer {
			return int64(addr - instStart), size, nil
		}
		return int64(addr), size, nil
	}

	for _, c := range inst.Constants {
		if c.ArgPos != argPos {
			continue
		}
		return c.Value, size, nil
	}

	return 0, 0, errf("argument position %d has neither a constant nor a reference", argPos)
}

func appendLittleEndian(out []byte, value int64, size int) []byte {
	for i := 0; i < size; i++ {
		out = append(out, byte(value>>(8*uint(i))))
	}
	return out
}

// SectionNames returns the merged section names in first-seen order.
func (l *Linker) SectionNames() []string {
	return append([]string(nil), l.order...)
}

// Section returns a merged section by name.
func (l *Linker) Section(name string) (*object.Section, bool) {
	sec, ok := l.sections[name]
	return sec, ok
}

// SectionLayout is the resolved placement of one link section: its base
// byte offset in the image, its content length, and the alignment the
// link script gave it.
type SectionLayout struct {
	Name      string
	Offset    int
	Size      int
	Alignment int
}

// Layout computes each link section's base offset and byte size, in the
// link script's declared order. Link sections absent from the inputs are
// skipped here rather than treated as fatal, so a layout can be reported
// for the sections that do exist; Link itself still rejects them.
func (l *Linker) Layout(ls *LinkStructure) ([]SectionLayout, error) {
	var layouts []SectionLayout
	offset := 0
	for _, ln := range ls.Sections {
		sec, ok := l.sections[ln.Name]
		if !ok {
			continue
		}
		size, err := l.sectionByteSize(sec)
		if err != nil {
			return nil, err
		}
		aligned := alignUp(offset, ln.Alignment)
		layouts = append(layouts, SectionLayout{
			Name:      ln.Name,
			Offset:    aligned,
			Size:      size,
			Alignment: ln.Alignment,
		})
		offset = aligned + size
	}
	return layouts, nil
}

// LabelAddresses resolves every label in each merged section that the
// given LinkStructure names to its absolute byte address, for diagnostic
// reporting. Labels in sections the link script does not name are
// omitted.
func (l *Linker) LabelAddresses(ls *LinkStructure) (map[string]int, error) {
	layouts, err := l.Layout(ls)
	if err != nil {
		return nil, err
	}

	addrs := make(map[string]int)
	for _, lay := range layouts {
		sec := l.sections[lay.Name]
		for _, label := range sec.Labels {
			localOffset, err := l.localByteOffset(sec, label.Ptr)
			if err != nil {
				return nil, err
			}
			addrs[label.Name] = lay.Offset + localOffset
		}
	}
	return addrs, nil
}

// Save serializes every merged section as an ObjectFile, reusing the
// object package's wire format.
func (l *Linker) Save() ([]byte, error) {
	f := object.NewObjectFile()
	for _, name := range l.order {
		f.Sections[name] = l.sections[name]
		f.Order = append(f.Order, name)
	}
	return object.Write(f)
}

// Load restores a Linker's merged-section state from a previously-saved
// object image.
func Load(data []byte) (*Linker, error) {
	f, err := object.Read(data)
	if _, isWarning := err.(*object.Warning); err != nil && !isWarning {
		return nil, err
	}
	l := New()
	for _, name := range f.Order {
		l.sections[name] = f.Sections[name]
		l.order = append(l.order, name)
	}
	return l, nil
}
