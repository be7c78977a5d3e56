// Package parser turns a preprocessed token stream into the AST consumed
// by the object generator. Statements are newline-terminated; labels,
// instructions and compiler directives each occupy one line.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pi4erd/sarch32asm/internal/ast"
	"github.com/pi4erd/sarch32asm/internal/isa"
	"github.com/pi4erd/sarch32asm/internal/token"
)

// Parser builds an AST from a flat token stream, one statement per line.
type Parser struct {
	tokens []token.Token
	pos    int

	outerLabel string
}

// New creates a Parser over tokens (comments and EnterInclude/ExitInclude
// markers are expected to have already been filtered or handled upstream;
// Parse skips them defensively so a raw lexer stream still parses).
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the entire token stream and returns the Program root.
func (p *Parser) Parse() (*ast.Node, error) {
	program := ast.NewProgram()

	for !p.atEnd() {
		tok := p.peek()

		switch tok.Kind {
		case token.Newline, token.Comment, token.EnterInclude, token.ExitInclude:
			p.advance()
			continue
		}

		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			program.AddChild(stmt)
		}

		if !p.atLineEnd() {
			return nil, &Error{Pos: p.peek().Pos, Message: fmt.Sprintf("expected newline after statement, got %s", p.peek().Kind)}
		}
	}

	return program, nil
}

func (p *Parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *Parser) peek() token.Token {
	if p.atEnd() {
		if len(p.tokens) > 0 {
			return token.Token{Kind: token.EOF, Pos: p.tokens[len(p.tokens)-1].Pos}
		}
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	p.pos++
	return tok
}

// parseStatement dispatches to label / instruction / directive based on
// the lookahead token kind.
func (p *Parser) parseStatement() (*ast.Node, error) {
	tok := p.peek()

	switch tok.Kind {
	case token.Label:
		return p.parseLabel()
	case token.CompilerInstruction:
		return p.parseDirective()
	case token.Identifier:
		return p.parseInstruction()
	default:
		return nil, &Error{Pos: tok.Pos, Message: fmt.Sprintf("unexpected token %s at start of statement", tok.Kind)}
	}
}

// parseLabel consumes a LABEL token, mangling `@`-prefixed sublabels to
// `OUTER@INNER` and tracking the current outer label.
func (p *Parser) parseLabel() (*ast.Node, error) {
	tok := p.advance()
	name := strings.TrimSuffix(tok.Lexeme, ":")

	if strings.HasPrefix(name, "@") {
		if p.outerLabel == "" {
			return nil, &Error{Pos: tok.Pos, Message: fmt.Sprintf("sublabel %q used with no enclosing label", name)}
		}
		name = p.outerLabel + name
	} else {
		p.outerLabel = name
	}

	return &ast.Node{Type: ast.NodeLabel, Pos: tok.Pos, Name: name}, nil
}

// parseInstruction consumes `IDENT [ expr { ',' expr } ]`.
func (p *Parser) parseInstruction() (*ast.Node, error) {
	tok := p.advance()
	node := &ast.Node{Type: ast.Instruction, Pos: tok.Pos, Name: tok.Lexeme}

	if p.atLineEnd() {
		return node, nil
	}

	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if arg.Type == ast.String {
			return nil, &Error{Pos: arg.Pos, Message: "string literals are not allowed as instruction arguments"}
		}
		node.AddChild(arg)

		if p.atLineEnd() {
			break
		}
		if p.peek().Kind != token.Comma {
			return nil, &Error{Pos: p.peek().Pos, Message: fmt.Sprintf("expected ',' between instruction arguments, got %s", p.peek().Kind)}
		}
		p.advance()
	}

	return node, nil
}

// parseDirective consumes `'.' IDENT [ expr { ',' expr } ]`; the lexer
// already fused the leading dot and name into one CompilerInstruction
// token, so here we only strip the dot. `.define NAME EXPR` may separate
// its name from its value by whitespace alone.
func (p *Parser) parseDirective() (*ast.Node, error) {
	tok := p.advance()
	node := &ast.Node{Type: ast.CompilerInstruction, Pos: tok.Pos, Name: strings.TrimPrefix(tok.Lexeme, ".")}

	if p.atLineEnd() {
		return node, nil
	}

	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if arg.Type == ast.Register {
			return nil, &Error{Pos: arg.Pos, Message: "registers are not allowed as directive arguments"}
		}
		node.AddChild(arg)

		if p.atLineEnd() {
			break
		}
		if node.Name == "define" && len(node.Children) == 1 && p.peek().Kind != token.Comma {
			continue
		}
		if p.peek().Kind != token.Comma {
			return nil, &Error{Pos: p.peek().Pos, Message: fmt.Sprintf("expected ',' between directive arguments, got %s", p.peek().Kind)}
		}
		p.advance()
	}

	return node, nil
}

// atLineEnd reports whether the next token terminates the current
// statement. Include boundary markers terminate statements too: an
// included file need not end with a newline. A trailing comment also
// ends the statement; Parse then skips it.
func (p *Parser) atLineEnd() bool {
	if p.atEnd() {
		return true
	}
	switch p.peek().Kind {
	case token.Newline, token.Comment, token.EnterInclude, token.ExitInclude:
		return true
	}
	return false
}

// parseExpr implements `expr := primary | '(' expr OP expr ')' | '-' expr
// | '+' expr`, folding parenthesized or unary arithmetic over literal
// operands into a single ConstInteger/ConstFloat node. Arithmetic
// involving an unresolved identifier (a label) is left as an unfolded
// Expression node for the object generator to resolve.
func (p *Parser) parseExpr() (*ast.Node, error) {
	tok := p.peek()

	switch tok.Kind {
	case token.Minus:
		p.advance()
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return foldUnary(tok.Pos, ast.Negate, operand), nil

	case token.Plus:
		p.advance()
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return foldUnary(tok.Pos, ast.Identity, operand), nil

	case token.LParen:
		p.advance()
		left, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		opTok := p.peek()
		op, err := binaryOpFromToken(opTok)
		if err != nil {
			return nil, err
		}
		p.advance()

		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		if p.peek().Kind != token.RParen {
			return nil, &Error{Pos: p.peek().Pos, Message: fmt.Sprintf("expected ')' to close expression, got %s", p.peek().Kind)}
		}
		p.advance()

		return foldBinary(tok.Pos, op, left, right), nil

	default:
		return p.parsePrimary()
	}
}

// parsePrimary implements `primary := INT | FLOAT | CHAR | STRING | IDENT
// | REGISTER`.
func (p *Parser) parsePrimary() (*ast.Node, error) {
	tok := p.advance()

	switch tok.Kind {
	case token.Integer:
		v, err := parseInteger(tok.Lexeme)
		if err != nil {
			return nil, &Error{Pos: tok.Pos, Message: err.Error()}
		}
		return &ast.Node{Type: ast.ConstInteger, Pos: tok.Pos, IntValue: v}, nil

	case token.FloatingPoint:
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, &Error{Pos: tok.Pos, Message: fmt.Sprintf("invalid float literal %q: %v", tok.Lexeme, err)}
		}
		return &ast.Node{Type: ast.ConstFloat, Pos: tok.Pos, FloatValue: v}, nil

	case token.Character:
		if tok.Lexeme == "" {
			return nil, &Error{Pos: tok.Pos, Message: "empty character literal"}
		}
		return &ast.Node{Type: ast.ConstInteger, Pos: tok.Pos, IntValue: int64([]byte(tok.Lexeme)[0])}, nil

	case token.String:
		return &ast.Node{Type: ast.String, Pos: tok.Pos, StrValue: tok.Lexeme}, nil

	case token.Identifier:
		if isa.IsRegisterName(tok.Lexeme) {
			return &ast.Node{Type: ast.Register, Pos: tok.Pos, Name: tok.Lexeme}, nil
		}
		name := tok.Lexeme
		if name == "@" {
			if p.outerLabel == "" {
				return nil, &Error{Pos: tok.Pos, Message: "bare '@' used with no enclosing label"}
			}
			name = p.outerLabel
		} else if strings.HasPrefix(name, "@") {
			if p.outerLabel == "" {
				return nil, &Error{Pos: tok.Pos, Message: fmt.Sprintf("sublabel %q used with no enclosing label", name)}
			}
			name = p.outerLabel + name
		}
		return &ast.Node{Type: ast.Identifier, Pos: tok.Pos, Name: name}, nil

	default:
		return nil, &Error{Pos: tok.Pos, Message: fmt.Sprintf("unexpected token %s in expression", tok.Kind)}
	}
}

func binaryOpFromToken(tok token.Token) (ast.BinaryOp, error) {
	switch tok.Kind {
	case token.Plus:
		return ast.Add, nil
	case token.Minus:
		return ast.Sub, nil
	case token.Star:
		return ast.Mul, nil
	case token.Slash:
		return ast.Div, nil
	default:
		return ast.NoOp, &Error{Pos: tok.Pos, Message: fmt.Sprintf("expected an operator in parenthesized expression, got %s", tok.Kind)}
	}
}

// foldUnary resolves a unary +/- over a literal; anything else (an
// identifier or an already-unfolded Expression) is wrapped in an
// Expression node for the object generator.
func foldUnary(pos token.Position, op ast.BinaryOp, operand *ast.Node) *ast.Node {
	switch operand.Type {
	case ast.ConstInteger:
		v := operand.IntValue
		if op == ast.Negate {
			v = -v
		}
		return &ast.Node{Type: ast.ConstInteger, Pos: pos, IntValue: v}
	case ast.ConstFloat:
		v := operand.FloatValue
		if op == ast.Negate {
			v = -v
		}
		return &ast.Node{Type: ast.ConstFloat, Pos: pos, FloatValue: v}
	default:
		return &ast.Node{Type: ast.Expression, Pos: pos, Op: op, Children: []*ast.Node{operand}}
	}
}

// foldBinary evaluates a parenthesized arithmetic expression when both
// operands are already literal (ConstInteger/ConstFloat), promoting to
// float if either operand is float. Arithmetic involving a label
// (Identifier/Expression operand) is left unfolded.
func foldBinary(pos token.Position, op ast.BinaryOp, left, right *ast.Node) *ast.Node {
	leftLit := left.Type == ast.ConstInteger || left.Type == ast.ConstFloat
	rightLit := right.Type == ast.ConstInteger || right.Type == ast.ConstFloat
	if !leftLit || !rightLit {
		return &ast.Node{Type: ast.Expression, Pos: pos, Op: op, Children: []*ast.Node{left, right}}
	}

	if left.Type == ast.ConstFloat || right.Type == ast.ConstFloat {
		a, b := asFloat(left), asFloat(right)
		return &ast.Node{Type: ast.ConstFloat, Pos: pos, FloatValue: applyFloat(op, a, b)}
	}

	a, b := left.IntValue, right.IntValue
	return &ast.Node{Type: ast.ConstInteger, Pos: pos, IntValue: applyInt(op, a, b)}
}

func asFloat(n *ast.Node) float64 {
	if n.Type == ast.ConstFloat {
		return n.FloatValue
	}
	return float64(n.IntValue)
}

func applyInt(op ast.BinaryOp, a, b int64) int64 {
	switch op {
	case ast.Add:
		return a + b
	case ast.Sub:
		return a - b
	case ast.Mul:
		return a * b
	case ast.Div:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}

func applyFloat(op ast.BinaryOp, a, b float64) float64 {
	switch op {
	case ast.Add:
		return a + b
	case ast.Sub:
		return a - b
	case ast.Mul:
		return a * b
	case ast.Div:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}

// parseInteger decodes an INTEGER lexeme: 0x.., 0b.., 0d.., or implicit
// decimal.
func parseInteger(lexeme string) (int64, error) {
	lower := strings.ToLower(lexeme)
	switch {
	case strings.HasPrefix(lower, "0x"):
		v, err := strconv.ParseUint(lower[2:], 16, 64)
		return int64(v), err
	case strings.HasPrefix(lower, "0b"):
		v, err := strconv.ParseUint(lower[2:], 2, 64)
		return int64(v), err
	case strings.HasPrefix(lower, "0d"):
		v, err := strconv.ParseInt(lower[2:], 10, 64)
		return v, err
	default:
		return strconv.ParseInt(lexeme, 10, 64)
	}
}
