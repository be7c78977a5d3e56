// Package token defines the lexical tokens produced by the lexer and
// consumed by the preprocessor and parser.
package token

import "fmt"

// Kind identifies the syntactic class of a Token.
type Kind int

const (
	Identifier Kind = iota
	Integer
	Label
	FloatingPoint
	CompilerInstruction
	PreprocessInstruction
	Newline
	String
	Character
	Comment
	Escaped
	LParen
	RParen
	LBrace
	RBrace
	Comma
	Plus
	Minus
	Star
	Slash
	EnterInclude
	ExitInclude
	EOF
)

var kindNames = map[Kind]string{
	Identifier:            "IDENTIFIER",
	Integer:               "INTEGER",
	Label:                 "LABEL",
	FloatingPoint:         "FLOAT",
	CompilerInstruction:   "COMPILER_INSTRUCTION",
	PreprocessInstruction: "PREPROCESS_INSTRUCTION",
	Newline:               "NEWLINE",
	String:                "STRING",
	Character:             "CHARACTER",
	Comment:               "COMMENT",
	Escaped:               "ESCAPED",
	LParen:                "(",
	RParen:                ")",
	LBrace:                "{",
	RBrace:                "}",
	Comma:                 ",",
	Plus:                  "+",
	Minus:                 "-",
	Star:                  "*",
	Slash:                 "/",
	EnterInclude:          "ENTER_INCLUDE",
	ExitInclude:           "EXIT_INCLUDE",
	EOF:                   "EOF",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Position locates a token within a source file. Lines and columns are
// 1-based.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Token is a single lexeme plus its position. Lexeme is shared/immutable
// text sliced from the original source.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %s", t.Kind, t.Lexeme, t.Pos)
}
