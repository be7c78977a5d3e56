package preprocessor

import "github.com/pi4erd/sarch32asm/internal/token"

// Macro is a registered %macro definition: a name, an optional parameter
// list, and a captured token-for-token body.
type Macro struct {
	Name   string
	Params []string
	Body   []token.Token
	Pos    token.Position
}

// macroTable is an immutable-after-definition registry of macros.
// Redefinition is an error.
type macroTable struct {
	macros map[string]*Macro
}

func newMacroTable() *macroTable {
	return &macroTable{macros: make(map[string]*Macro)}
}

func (mt *macroTable) define(m *Macro) error {
	if _, exists := mt.macros[m.Name]; exists {
		return &Error{Pos: m.Pos, Message: "redefinition of macro " + m.Name}
	}
	mt.macros[m.Name] = m
	return nil
}

func (mt *macroTable) lookup(name string) (*Macro, bool) {
	m, ok := mt.macros[name]
	return m, ok
}
