package lexer

import (
	"strconv"
	"strings"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
)

// Lexer scans one source file into a Token buffer.
type Lexer struct {
	src      string
	pos      int
	line     int
	col      int
	filename string
	tab      *symtab.Table
	bag      *diag.Bag
}

// New returns a Lexer over src, interning spellings into tab and recording
// fatal problems (unterminated comments/strings) into bag.
func New(filename, src string, tab *symtab.Table, bag *diag.Bag) *Lexer {
	return &Lexer{src: src, line: 1, col: 1, filename: filename, tab: tab, bag: bag}
}

func (l *Lexer) here() diag.Range {
	p := diag.Position{Line: l.line, Col: l.col}
	return diag.Range{File: l.filename, Start: p, End: p}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// Lex tokenizes the entire source, returning the buffer plus a trailing
// EOF token. Fatal lexical errors (unterminated comment/string) abort
// early with the diagnostic already recorded in bag.
func (l *Lexer) Lex() []Token {
	var toks []Token
	for {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.src) {
			toks = append(toks, Token{Kind: EOF, Pos: Position{l.line, l.col}})
			return toks
		}
		tok, ok := l.next()
		if !ok {
			toks = append(toks, Token{Kind: EOF, Pos: Position{l.line, l.col}})
			return toks
		}
		toks = append(toks, tok)
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			startLine, startCol := l.line, l.col
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				l.bag.Errorf(diag.UnterminatedComment, diag.Range{
					File:  l.filename,
					Start: diag.Position{Line: startLine, Col: startCol},
				}, "unterminated block comment")
				l.pos = len(l.src)
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentCont(c byte) bool  { return isIdentStart(c) || (c >= '0' && c <= '9') }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }

func (l *Lexer) next() (Token, bool) {
	startPos := Position{Line: l.line, Col: l.col}
	c := l.peek()

	switch {
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentCont(l.peek()) {
			l.advance()
		}
		text := l.src[start:l.pos]
		kind := Ident
		if Keywords[text] {
			kind = Keyword
		}
		return Token{Kind: kind, Pos: startPos, Symbol: l.tab.Intern(text)}, true

	case isDigit(c):
		return l.lexNumber(startPos), true

	case c == '"':
		return l.lexString(startPos), true

	case c == '\'':
		return l.lexChar(startPos), true

	default:
		return l.lexOperator(startPos), true
	}
}

func (l *Lexer) lexNumber(startPos Position) Token {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	unsigned := false
	if !isFloat && (l.peek() == 'u' || l.peek() == 'U') {
		unsigned = true
		l.advance()
	}
	text := l.src[start:l.pos]
	text = strings.TrimSuffix(strings.TrimSuffix(text, "u"), "U")
	sym := l.tab.Intern(text)
	if isFloat {
		v, _ := strconv.ParseFloat(text, 64)
		return Token{Kind: FloatLiteral, Pos: startPos, Symbol: sym, FloatValue: v}
	}
	v, _ := strconv.ParseInt(text, 10, 64)
	kind := IntLiteral
	if unsigned {
		kind = UintLiteral
	}
	return Token{Kind: kind, Pos: startPos, Symbol: sym, IntValue: v}
}

func (l *Lexer) lexString(startPos Position) Token {
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) && l.peek() != '"' {
		c := l.advance()
		if c == '\\' && l.pos < len(l.src) {
			sb.WriteByte(unescape(l.advance()))
			continue
		}
		sb.WriteByte(c)
	}
	if l.pos < len(l.src) {
		l.advance() // closing quote
	} else {
		l.bag.Errorf(diag.MalformedToken, diag.Range{File: l.filename, Start: diag.Position{Line: startPos.Line, Col: startPos.Col}}, "unterminated string literal")
	}
	return Token{Kind: StringLiteral, Pos: startPos, Symbol: l.tab.Intern(sb.String())}
}

func (l *Lexer) lexChar(startPos Position) Token {
	l.advance() // opening quote
	var v byte
	if l.peek() == '\\' {
		l.advance()
		v = unescape(l.advance())
	} else if l.pos < len(l.src) {
		v = l.advance()
	}
	if l.peek() == '\'' {
		l.advance()
	}
	return Token{Kind: CharLiteral, Pos: startPos, Symbol: l.tab.Intern(string(v)), IntValue: int64(v)}
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case '\\', '"', '\'':
		return c
	default:
		return c
	}
}

func (l *Lexer) lexOperator(startPos Position) Token {
	for _, op := range multiCharOps {
		if strings.HasPrefix(l.src[l.pos:], op) {
			for range op {
				l.advance()
			}
			return Token{Kind: Punct, Pos: startPos, Symbol: l.tab.Intern(op)}
		}
	}
	c := l.advance()
	return Token{Kind: Punct, Pos: startPos, Symbol: l.tab.Intern(string(c))}
}
