package object

import "github.com/pi4erd/sarch32asm/internal/ast"

// ObjectFile is the top-level artifact the object generator produces and
// the linker consumes: a named collection of sections plus a table of
// `.define` aliases.
//
// Defines is resolved entirely within one translation unit and is never
// part of the wire format; deserializing an object file always yields an
// empty Defines map.
type ObjectFile struct {
	Version  int
	Sections map[string]*Section
	Order    []string // declaration order, since Go maps don't preserve one
	Defines  map[string]*ast.Node
}

// NewObjectFile creates an empty object file at the current wire version.
func NewObjectFile() *ObjectFile {
	return &ObjectFile{
		Version:  wireVersion,
		Sections: make(map[string]*Section),
		Defines:  make(map[string]*ast.Node),
	}
}

// Section returns the named section, creating it (and recording its
// declaration order) if it does not yet exist.
func (f *ObjectFile) Section(name string) *Section {
	if s, ok := f.Sections[name]; ok {
		return s
	}
	s := NewSection(name)
	f.Sections[name] = s
	f.Order = append(f.Order, name)
	return s
}
