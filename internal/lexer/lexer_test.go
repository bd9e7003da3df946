package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/lexer"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
)

func lex(t *testing.T, src string) ([]lexer.Token, *symtab.Table, *diag.Bag) {
	t.Helper()
	tab := symtab.New()
	bag := &diag.Bag{}
	toks := lexer.New("t.s", src, tab, bag).Lex()
	return toks, tab, bag
}

func TestLexKeywordsAndIdentifiers(t *testing.T) {
	toks, tab, bag := lex(t, "i32 x if foo_bar")
	require.False(t, bag.HasErrors())

	require.Equal(t, lexer.Keyword, toks[0].Kind)
	require.Equal(t, "i32", toks[0].Text(tab))
	require.Equal(t, lexer.Ident, toks[1].Kind)
	require.Equal(t, "x", toks[1].Text(tab))
	require.Equal(t, lexer.Keyword, toks[2].Kind)
	require.Equal(t, lexer.Ident, toks[3].Kind)
	require.Equal(t, "foo_bar", toks[3].Text(tab))
	require.Equal(t, lexer.EOF, toks[len(toks)-1].Kind)
}

func TestLexIntUintFloatLiterals(t *testing.T) {
	toks, _, bag := lex(t, "42 7u 3.14")
	require.False(t, bag.HasErrors())

	require.Equal(t, lexer.IntLiteral, toks[0].Kind)
	require.EqualValues(t, 42, toks[0].IntValue)

	require.Equal(t, lexer.UintLiteral, toks[1].Kind)
	require.EqualValues(t, 7, toks[1].IntValue)

	require.Equal(t, lexer.FloatLiteral, toks[2].Kind)
	require.InDelta(t, 3.14, toks[2].FloatValue, 1e-9)
}

func TestLexStringWithEscapes(t *testing.T) {
	toks, tab, bag := lex(t, `"hello\nworld"`)
	require.False(t, bag.HasErrors())
	require.Equal(t, lexer.StringLiteral, toks[0].Kind)
	require.Equal(t, "hello\nworld", toks[0].Text(tab))
}

func TestLexCharLiteral(t *testing.T) {
	toks, _, bag := lex(t, "'a'")
	require.False(t, bag.HasErrors())
	require.Equal(t, lexer.CharLiteral, toks[0].Kind)
	require.EqualValues(t, 'a', toks[0].IntValue)
}

func TestLexMultiCharOperatorsLongestMatch(t *testing.T) {
	toks, tab, _ := lex(t, "<= == && < =")
	require.Equal(t, "<=", toks[0].Text(tab))
	require.Equal(t, "==", toks[1].Text(tab))
	require.Equal(t, "&&", toks[2].Text(tab))
	require.Equal(t, "<", toks[3].Text(tab))
	require.Equal(t, "=", toks[4].Text(tab))
}

func TestLexSkipsLineAndBlockComments(t *testing.T) {
	toks, tab, bag := lex(t, "i32 // comment\nx /* block */ y")
	require.False(t, bag.HasErrors())
	var idents []string
	for _, tok := range toks {
		if tok.Kind == lexer.Ident || tok.Kind == lexer.Keyword {
			idents = append(idents, tok.Text(tab))
		}
	}
	require.Equal(t, []string{"i32", "x", "y"}, idents)
}

func TestLexUnterminatedBlockCommentReportsDiagnostic(t *testing.T) {
	_, _, bag := lex(t, "i32 x /* never closed")
	require.True(t, bag.HasErrors())
	require.Equal(t, diag.UnterminatedComment, bag.Errors()[0].Code)
}

func TestLexTracksLineAndColumn(t *testing.T) {
	toks, _, _ := lex(t, "a\nb")
	require.Equal(t, 1, toks[0].Pos.Line)
	require.Equal(t, 2, toks[1].Pos.Line)
	require.Equal(t, 1, toks[1].Pos.Col)
}
