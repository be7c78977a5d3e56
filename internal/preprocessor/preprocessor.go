// Package preprocessor rewrites a raw token stream into one with macros
// expanded, includes inlined, and comments dropped.
package preprocessor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pi4erd/sarch32asm/internal/lexer"
	"github.com/pi4erd/sarch32asm/internal/token"
)

// IncludeReader resolves and reads the contents of a %include path. The
// default OSIncludeReader resolves relative to a base directory.
type IncludeReader interface {
	ReadInclude(path string) (string, error)
}

// FileCache memoizes include reads by the path as written in the
// %include directive, so each such path is read at most once. It does
// not detect include cycles.
type FileCache struct {
	reader IncludeReader
	seen   map[string]string
}

// NewFileCache wraps a reader with a read-once cache.
func NewFileCache(reader IncludeReader) *FileCache {
	return &FileCache{reader: reader, seen: make(map[string]string)}
}

func (c *FileCache) read(path string) (string, error) {
	if content, ok := c.seen[path]; ok {
		return content, nil
	}
	content, err := c.reader.ReadInclude(path)
	if err != nil {
		return "", err
	}
	c.seen[path] = content
	return content, nil
}

// Preprocessor expands macros and includes over a token stream.
type Preprocessor struct {
	cache  *FileCache
	macros *macroTable
}

// New creates a Preprocessor that resolves %include paths through cache.
func New(cache *FileCache) *Preprocessor {
	return &Preprocessor{
		cache:  cache,
		macros: newMacroTable(),
	}
}

// Process expands the given token stream to completion: comments are
// dropped, %macro definitions are registered and removed from the
// stream, %include directives are recursively tokenized and spliced in
// (bracketed by EnterInclude/ExitInclude markers), and macro invocations
// are replaced by their expansion.
func (p *Preprocessor) Process(filename string, tokens []token.Token) ([]token.Token, error) {
	var out []token.Token

	work := append([]token.Token(nil), tokens...)

	for i := 0; i < len(work); i++ {
		tok := work[i]

		switch tok.Kind {
		case token.Comment:
			continue

		case token.PreprocessInstruction:
			switch tok.Lexeme {
			case "%macro":
				macro, next, err := p.parseMacroDef(work, i+1)
				if err != nil {
					return nil, err
				}
				if err := p.macros.define(macro); err != nil {
					return nil, err
				}
				i = next - 1
				continue

			case "%include":
				included, next, err := p.expandInclude(filename, work, i+1)
				if err != nil {
					return nil, err
				}
				// Splice the expanded include tokens into the work list
				// so nested macros/includes inside it are processed too.
				rest := append([]token.Token(nil), work[next:]...)
				work = append(append(append([]token.Token(nil), work[:i]...), included...), rest...)
				i--
				continue

			default:
				return nil, &Error{Pos: tok.Pos, Message: fmt.Sprintf("unknown preprocessor directive %q", tok.Lexeme)}
			}

		case token.Identifier:
			if macro, ok := p.macros.lookup(tok.Lexeme); ok {
				expansion, next, err := p.expandInvocation(macro, work, i)
				if err != nil {
					return nil, err
				}
				rest := append([]token.Token(nil), work[next:]...)
				work = append(append(append([]token.Token(nil), work[:i]...), expansion...), rest...)
				i--
				continue
			}
			out = append(out, tok)

		default:
			out = append(out, tok)
		}
	}

	return out, nil
}

// parseMacroDef parses `NAME [ ( ARG,... ) ] { BODY }` starting at tokens[pos],
// returning the parsed macro and the index just past the closing brace.
func (p *Preprocessor) parseMacroDef(tokens []token.Token, pos int) (*Macro, int, error) {
	if pos >= len(tokens) || tokens[pos].Kind != token.Identifier {
		return nil, 0, &Error{Pos: endPos(tokens, pos), Message: "expected macro name after %macro"}
	}
	name := tokens[pos].Lexeme
	defPos := tokens[pos].Pos
	pos++

	var params []string
	if pos < len(tokens) && tokens[pos].Kind == token.LParen {
		pos++
		for pos < len(tokens) && tokens[pos].Kind != token.RParen {
			if tokens[pos].Kind == token.Comma {
				pos++
				continue
			}
			if tokens[pos].Kind != token.Identifier {
				return nil, 0, &Error{Pos: tokens[pos].Pos, Message: "expected parameter name in macro argument list"}
			}
			params = append(params, tokens[pos].Lexeme)
			pos++
		}
		if pos >= len(tokens) {
			return nil, 0, &Error{Pos: endPos(tokens, pos), Message: "unterminated macro argument list"}
		}
		pos++ // consume ')'
	}

	for pos < len(tokens) && tokens[pos].Kind == token.Newline {
		pos++
	}
	if pos >= len(tokens) || tokens[pos].Kind != token.LBrace {
		return nil, 0, &Error{Pos: endPos(tokens, pos), Message: "expected '{' to begin macro body"}
	}
	pos++

	var body []token.Token
	depth := 1
	for pos < len(tokens) {
		switch tokens[pos].Kind {
		case token.LBrace:
			depth++
			body = append(body, tokens[pos])
		case token.RBrace:
			depth--
			if depth == 0 {
				pos++
				return &Macro{Name: name, Params: params, Body: body, Pos: defPos}, pos, nil
			}
			body = append(body, tokens[pos])
		case token.Comment:
			// dropped at definition time
		default:
			body = append(body, tokens[pos])
		}
		pos++
	}

	return nil, 0, &Error{Pos: defPos, Message: fmt.Sprintf("unterminated macro body for %q (unbalanced braces)", name)}
}

// expandInvocation consumes a macro call at tokens[pos] (the identifier
// itself) and an optional parenthesized, comma-separated argument list,
// returning the substituted body and the index just past the call.
func (p *Preprocessor) expandInvocation(macro *Macro, tokens []token.Token, pos int) ([]token.Token, int, error) {
	callPos := tokens[pos].Pos
	pos++

	var args []token.Token
	if pos < len(tokens) && tokens[pos].Kind == token.LParen {
		pos++
		for pos < len(tokens) && tokens[pos].Kind != token.RParen {
			if tokens[pos].Kind == token.Comma {
				pos++
				continue
			}
			args = append(args, tokens[pos])
			pos++
		}
		if pos >= len(tokens) {
			return nil, 0, &Error{Pos: callPos, Message: fmt.Sprintf("unterminated argument list calling macro %q", macro.Name)}
		}
		pos++ // consume ')'
	}

	if len(args) != len(macro.Params) {
		return nil, 0, &Error{Pos: callPos, Message: fmt.Sprintf("macro %q expects %d argument(s), got %d", macro.Name, len(macro.Params), len(args))}
	}

	substitutions := make(map[string]token.Token, len(macro.Params))
	for i, param := range macro.Params {
		substitutions[param] = args[i]
	}

	expanded := make([]token.Token, 0, len(macro.Body))
	for _, bodyTok := range macro.Body {
		if bodyTok.Kind == token.Escaped {
			if sub, ok := substitutions[bodyTok.Lexeme]; ok {
				expanded = append(expanded, sub)
				continue
			}
		}
		expanded = append(expanded, bodyTok)
	}

	return expanded, pos, nil
}

// expandInclude consumes `"PATH"` at tokens[pos], tokenizes and
// recursively preprocesses the referenced file, and wraps the result in
// EnterInclude/ExitInclude markers for diagnostics.
func (p *Preprocessor) expandInclude(fromFile string, tokens []token.Token, pos int) ([]token.Token, int, error) {
	if pos >= len(tokens) || tokens[pos].Kind != token.String {
		return nil, 0, &Error{Pos: endPos(tokens, pos), Message: "expected string path after %include"}
	}
	path := tokens[pos].Lexeme
	incPos := tokens[pos].Pos
	pos++

	content, err := p.cache.read(path)
	if err != nil {
		return nil, 0, &Error{Pos: incPos, Message: fmt.Sprintf("failed to include %q: %v", path, err)}
	}

	incTokens, err := lexer.New(path, content).Tokenize()
	if err != nil {
		return nil, 0, &Error{Pos: incPos, Message: fmt.Sprintf("failed to lex included file %q: %v", path, err)}
	}

	processed, err := p.Process(path, incTokens)
	if err != nil {
		return nil, 0, err
	}

	out := make([]token.Token, 0, len(processed)+2)
	out = append(out, token.Token{Kind: token.EnterInclude, Lexeme: path, Pos: incPos})
	out = append(out, processed...)
	out = append(out, token.Token{Kind: token.ExitInclude, Lexeme: path, Pos: incPos})
	return out, pos, nil
}

func endPos(tokens []token.Token, pos int) token.Position {
	if pos > 0 && pos-1 < len(tokens) {
		return tokens[pos-1].Pos
	}
	if len(tokens) > 0 {
		return tokens[len(tokens)-1].Pos
	}
	return token.Position{}
}

// OSIncludeReader reads include files from disk relative to BaseDir.
type OSIncludeReader struct {
	BaseDir  string
	ReadFile func(path string) ([]byte, error)
}

func (r OSIncludeReader) ReadInclude(path string) (string, error) {
	full := path
	if r.BaseDir != "" && !filepath.IsAbs(path) {
		full = filepath.Join(r.BaseDir, path)
	}
	readFile := r.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	data, err := readFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
