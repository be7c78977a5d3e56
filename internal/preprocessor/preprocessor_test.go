package preprocessor_test

import (
	"testing"

	"github.com/pi4erd/sarch32asm/internal/lexer"
	"github.com/pi4erd/sarch32asm/internal/preprocessor"
	"github.com/pi4erd/sarch32asm/internal/token"
)

type mapReader map[string]string

func (m mapReader) ReadInclude(path string) (string, error) {
	return m[path], nil
}

func process(t *testing.T, src string, files map[string]string) []token.Token {
	t.Helper()
	toks, err := lexer.New("main.s32", src).Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	cache := preprocessor.NewFileCache(mapReader(files))
	out, err := preprocessor.New(cache).Process("main.s32", toks)
	if err != nil {
		t.Fatalf("preprocessor: %v", err)
	}
	return out
}

func lexemes(toks []token.Token) []string {
	var out []string
	for _, tok := range toks {
		if tok.Kind == token.Newline || tok.Kind == token.EnterInclude || tok.Kind == token.ExitInclude {
			continue
		}
		out = append(out, tok.Lexeme)
	}
	return out
}

func TestMacroExpansionWithArgument(t *testing.T) {
	src := "%macro double(x) { iadd \\x, \\x }\ndouble(r0)\n"
	out := process(t, src, nil)
	got := lexemes(out)
	want := []string{"iadd", "r0", ",", "r0"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMacroRedefinitionIsError(t *testing.T) {
	toks, err := lexer.New("m.s32", "%macro m { nop }\n%macro m { halt }\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	cache := preprocessor.NewFileCache(mapReader(nil))
	if _, err := preprocessor.New(cache).Process("m.s32", toks); err == nil {
		t.Fatal("expected error redefining macro")
	}
}

func TestIncludeExpansion(t *testing.T) {
	files := map[string]string{"lib.s32": "nop\n"}
	out := process(t, `%include "lib.s32"`+"\nhalt\n", files)
	got := lexemes(out)
	want := []string{"nop", "halt"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCommentsDroppedOutsideMacros(t *testing.T) {
	out := process(t, "nop ; a comment\n", nil)
	for _, tok := range out {
		if tok.Kind == token.Comment {
			t.Fatal("expected comments to be dropped")
		}
	}
}

func TestMacroArgumentCountMismatchIsError(t *testing.T) {
	toks, err := lexer.New("m.s32", "%macro double(x) { iadd \\x, \\x }\ndouble(r0, r1)\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	cache := preprocessor.NewFileCache(mapReader(nil))
	if _, err := preprocessor.New(cache).Process("m.s32", toks); err == nil {
		t.Fatal("expected error for macro argument count mismatch")
	}
}

// After preprocessing a parameterized macro definition and invocation,
// no comment, paren, or preprocess-instruction token reaches the parser.
func TestMacroDefinitionLeavesNoStructuralTokens(t *testing.T) {
	src := "%macro some_macro { nop }\n" +
		"%macro argumented_macro(hello, world) { \\hello \\world }\n" +
		"some_macro\n" +
		"argumented_macro(r0, r1)\n"
	out := process(t, src, nil)

	for _, tok := range out {
		switch tok.Kind {
		case token.Comment, token.LParen, token.RParen, token.PreprocessInstruction:
			t.Fatalf("unexpected %s token %q reached the parser-facing stream", tok.Kind, tok.Lexeme)
		}
	}

	got := lexemes(out)
	want := []string{"nop", "r0", "r1"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
