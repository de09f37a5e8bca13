// Package cypher implements KGLite's Cypher-subset lexer, parser, planner,
// evaluator, function library, and execution engine (spec §4.3-§4.8).
//
// A hand-written recursive-descent parser with a Pratt-style expression
// layer sits on top of this hand-written lexer, per spec §9's guidance that
// a parser generator is overkill for this grammar's size.
package cypher

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kkollsga/kglite/pkg/kgerr"
)

// TokenKind identifies the lexical category of a Token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokKeyword
	TokInt
	TokFloat
	TokString
	TokPunct // single/multi-char punctuation: ( ) [ ] { } , . : = etc.
)

// Token is a single lexical unit with its 1-based source position.
type Token struct {
	Kind   TokenKind
	Text   string // raw text for punctuation/identifiers; upper-cased for keywords; unescaped for strings
	Line   int
	Column int
}

// keywords are case-insensitive per spec §4.3; identifiers are case-
// sensitive.
var keywords = map[string]bool{
	"MATCH": true, "OPTIONAL": true, "WHERE": true, "WITH": true, "RETURN": true,
	"AS": true, "AND": true, "OR": true, "XOR": true, "NOT": true, "IN": true,
	"IS": true, "NULL": true, "TRUE": true, "FALSE": true, "DISTINCT": true,
	"ORDER": true, "BY": true, "ASC": true, "DESC": true, "SKIP": true, "LIMIT": true,
}

// Lexer tokenizes Cypher query text.
type Lexer struct {
	src    string
	pos    int
	line   int
	column int
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, column: 1}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		c := l.peekByte()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// Next returns the next Token in the stream, or a TokEOF token when
// exhausted. Lexical errors (unterminated strings, malformed numbers)
// surface as *kgerr.Error of kind SyntaxError with a line/column (spec
// §4.3).
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespaceAndComments()
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF, Line: l.line, Column: l.column}, nil
	}

	startLine, startCol := l.line, l.column
	c := l.peekByte()

	switch {
	case c == '\'' || c == '"':
		return l.lexString(startLine, startCol)
	case isDigit(c):
		return l.lexNumber(startLine, startCol)
	case isIdentStart(c):
		return l.lexIdentOrKeyword(startLine, startCol)
	case c == '-':
		// "->" is lexed as a single token so the parser can distinguish a
		// right-pointing relationship arrow from a bare minus/undirected
		// dash with one token of lookahead.
		l.advance()
		if l.peekByte() == '>' {
			l.advance()
			return Token{Kind: TokPunct, Text: "->", Line: startLine, Column: startCol}, nil
		}
		return Token{Kind: TokPunct, Text: "-", Line: startLine, Column: startCol}, nil
	default:
		return l.lexPunct(startLine, startCol)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func (l *Lexer) lexIdentOrKeyword(line, col int) (Token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peekByte()) {
		l.advance()
	}
	text := l.src[start:l.pos]
	if keywords[strings.ToUpper(text)] {
		return Token{Kind: TokKeyword, Text: strings.ToUpper(text), Line: line, Column: col}, nil
	}
	return Token{Kind: TokIdent, Text: text, Line: line, Column: col}, nil
}

// lexNumber lexes integer and floating-point literals, including
// scientific notation with an optionally signed exponent (spec §4.3: `1e6`,
// `1.5e3`, `2e-3`).
func (l *Lexer) lexNumber(line, col int) (Token, error) {
	start := l.pos
	isFloat := false

	for l.pos < len(l.src) && isDigit(l.peekByte()) {
		l.advance()
	}
	if l.peekByte() == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	if c := l.peekByte(); c == 'e' || c == 'E' {
		save := l.pos
		saveLine, saveCol := l.line, l.column
		l.advance()
		if c2 := l.peekByte(); c2 == '+' || c2 == '-' {
			l.advance()
		}
		if !isDigit(l.peekByte()) {
			// Not actually an exponent (e.g. identifier starting with 'e'
			// glued to a number is not valid Cypher, but guard anyway):
			// rewind.
			l.pos, l.line, l.column = save, saveLine, saveCol
		} else {
			isFloat = true
			for l.pos < len(l.src) && isDigit(l.peekByte()) {
				l.advance()
			}
		}
	}

	text := l.src[start:l.pos]
	kind := TokInt
	if isFloat {
		kind = TokFloat
	}
	return Token{Kind: kind, Text: text, Line: line, Column: col}, nil
}

// lexString lexes a single- or double-quoted string literal with backslash
// escapes (spec §4.3).
func (l *Lexer) lexString(line, col int) (Token, error) {
	quote := l.advance()
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, kgerr.AtPosition(line, col, "unterminated string literal")
		}
		c := l.peekByte()
		if c == quote {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			if l.pos >= len(l.src) {
				return Token{}, kgerr.AtPosition(line, col, "unterminated string literal")
			}
			esc := l.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(l.advance())
	}
	return Token{Kind: TokString, Text: sb.String(), Line: line, Column: col}, nil
}

// multiCharPunct lists punctuation sequences the lexer recognizes as a
// single token. "->" is handled directly in Next since it starts with '-',
// which has its own dispatch case; "<-" is listed here since '<' falls
// through to lexPunct's ordinary prefix scan.
var multiCharPunct = []string{"<=", ">=", "<>", "!=", "=~", "..", "<-"}

func (l *Lexer) lexPunct(line, col int) (Token, error) {
	for _, mc := range multiCharPunct {
		if strings.HasPrefix(l.src[l.pos:], mc) {
			for range mc {
				l.advance()
			}
			return Token{Kind: TokPunct, Text: mc, Line: line, Column: col}, nil
		}
	}
	c := l.advance()
	if c >= utf8.RuneSelf {
		r, _ := utf8.DecodeRuneInString(l.src[l.pos-1:])
		if !unicode.IsPrint(r) {
			return Token{}, kgerr.AtPosition(line, col, "unexpected character %q", r)
		}
	}
	switch c {
	case '(', ')', '[', ']', '{', '}', ',', '.', ':', '=', '<', '>', '+', '*', '/', '%', '|', '!', '$':
		return Token{Kind: TokPunct, Text: string(c), Line: line, Column: col}, nil
	default:
		return Token{}, kgerr.AtPosition(line, col, "unexpected character %q", c)
	}
}

// AllTokens lexes src to completion, returning every token up to and
// including a terminal TokEOF. Used by the parser to get simple lookahead.
func AllTokens(src string) ([]Token, error) {
	lx := NewLexer(src)
	var out []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out, nil
		}
	}
}

func tokenDesc(t Token) string {
	if t.Kind == TokEOF {
		return "end of query"
	}
	return fmt.Sprintf("%q", t.Text)
}
