package diagio_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/diagio"
)

func TestRenderPlainDiagnosticWithNoRange(t *testing.T) {
	var buf bytes.Buffer
	r := diagio.New(&buf, -1)
	r.Render(diag.Diagnostic{Code: diag.FileNotFound, Severity: diag.Error, Message: "cannot read x.s"})
	require.Contains(t, buf.String(), "error")
	require.Contains(t, buf.String(), "C1000")
	require.Contains(t, buf.String(), "cannot read x.s")
}

func TestRenderWithRangeQuotesSourceLineAndCaret(t *testing.T) {
	var buf bytes.Buffer
	r := diagio.New(&buf, -1)
	r.AddSource("t.s", "i32 main() {\n  ret y;\n}")
	r.Render(diag.Diagnostic{
		Code:     diag.UnknownVariable,
		Severity: diag.Error,
		Message:  `unknown variable "y"`,
		Range: &diag.Range{
			File:  "t.s",
			Start: diag.Position{Line: 2, Col: 7},
			End:   diag.Position{Line: 2, Col: 8},
		},
	})
	out := buf.String()
	require.Contains(t, out, "t.s:2:7:")
	require.Contains(t, out, "ret y;")
	require.Contains(t, out, "^")
}

func TestRenderWarningUsesWarningLabel(t *testing.T) {
	var buf bytes.Buffer
	r := diagio.New(&buf, -1)
	r.Render(diag.Diagnostic{Code: diag.ImplicitCast, Severity: diag.Warning, Message: "implicit cast"})
	require.Contains(t, buf.String(), "warning")
}

func TestNewWithNegativeFDNeverColorizes(t *testing.T) {
	var buf bytes.Buffer
	r := diagio.New(&buf, -1)
	r.Render(diag.Diagnostic{Code: diag.FileNotFound, Severity: diag.Error, Message: "x"})
	require.NotContains(t, buf.String(), "\x1b[")
}

func TestRenderAllPrintsEveryDiagnosticInOrder(t *testing.T) {
	var buf bytes.Buffer
	r := diagio.New(&buf, -1)
	r.RenderAll([]diag.Diagnostic{
		{Code: diag.UnknownFunction, Severity: diag.Error, Message: "first"},
		{Code: diag.UnknownVariable, Severity: diag.Error, Message: "second"},
	})
	out := buf.String()
	require.True(t, bytes.Index([]byte(out), []byte("first")) < bytes.Index([]byte(out), []byte("second")))
}

func TestRenderOutOfRangeLineSkipsSourceQuote(t *testing.T) {
	var buf bytes.Buffer
	r := diagio.New(&buf, -1)
	r.AddSource("t.s", "i32 main() { ret 0; }")
	r.Render(diag.Diagnostic{
		Code:     diag.UnknownVariable,
		Severity: diag.Error,
		Message:  "oops",
		Range:    &diag.Range{File: "t.s", Start: diag.Position{Line: 99, Col: 1}, End: diag.Position{Line: 99, Col: 2}},
	})
	// Only the header line is printed; no panic, no caret line.
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}
