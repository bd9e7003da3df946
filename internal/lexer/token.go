// Package lexer is a mechanical tokenizer producing the token buffer the
// rest of the pipeline consumes by index. It favors being obviously
// correct over exhaustive language
// coverage: just enough of Sigma's surface syntax to drive
// internal/parser end to end, built as a keyword table, a longest-match
// multi-character operator list, and a byte-at-a-time scanner.
package lexer

import "github.com/Goubermouche/sigma-sub002/internal/symtab"

// Kind discriminates a lexed token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	IntLiteral
	UintLiteral
	FloatLiteral
	StringLiteral
	CharLiteral
	Punct
)

// Keywords is the reserved-word table; type names are keywords.
var Keywords = map[string]bool{
	"ret": true, "if": true, "else": true, "while": true, "for": true,
	"break": true, "continue": true, "goto": true, "struct": true,
	"var": true, "const": true, "extern": true, "asm": true, "sizeof": true,
	"void": true, "bool": true, "char": true,
	"i8": true, "i16": true, "i32": true, "i64": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"f32": true, "f64": true,
	"true": true, "false": true,
}

// multiCharOps is tried longest-first so e.g. "<=" isn't split into "<","=".
var multiCharOps = []string{"&&", "||", "==", "!=", "<=", ">=", "<<", ">>", "::"}

// Position is a 1-based line/column pair.
type Position struct {
	Line, Col int
}

// Token is one lexed unit: its kind, source position, and interned
// spelling. There is no file handle; one Lexer processes one file and
// the caller already knows which.
type Token struct {
	Kind   Kind
	Pos    Position
	Symbol symtab.Key
	// IntValue/FloatValue cache the parsed numeric literal for literal
	// checking; the spelling itself stays in Symbol.
	IntValue   int64
	FloatValue float64
}

func (t Token) Text(tab *symtab.Table) string { return tab.Get(t.Symbol) }
