// Package diagio renders internal/diag.Diagnostic values to a writer as
// "path:line:col: error Cxxxx: message", followed by the offending source
// line and a caret underline of the range. When the writer is a terminal
// the code is bolded and the caret line colored; piped output gets the
// plain form, byte-for-byte reproducible across runs.
package diagio

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
)

const (
	ansiRed   = "\x1b[31m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// Renderer prints diagnostics against a set of in-memory source files, so
// the caret underline can quote the exact offending line.
type Renderer struct {
	out     io.Writer
	color   bool
	sources map[string][]string // file -> lines, split on '\n', no trailing newline
}

// New returns a Renderer writing to out, colorizing iff out is a
// terminal and fd names its underlying file descriptor (pass -1 to force
// plain output, e.g. when out is a bytes.Buffer in a test).
func New(out io.Writer, fd int) *Renderer {
	color := fd >= 0 && term.IsTerminal(fd)
	return &Renderer{out: out, color: color, sources: make(map[string][]string)}
}

// AddSource registers file's text so diagnostics anchored in it can quote
// the offending line. Call once per compiled file before rendering.
func (r *Renderer) AddSource(file, text string) {
	r.sources[file] = strings.Split(text, "\n")
}

// RenderAll prints every diagnostic in d in order.
func (r *Renderer) RenderAll(ds []diag.Diagnostic) {
	for _, d := range ds {
		r.Render(d)
	}
}

// Render prints one diagnostic: the header line, then — if the
// diagnostic carries a Range and the file's text was registered — the
// source line and a caret underline beneath it.
func (r *Renderer) Render(d diag.Diagnostic) {
	kind := "error"
	if d.Severity == diag.Warning {
		kind = "warning"
	}
	if d.Range == nil {
		fmt.Fprintf(r.out, "%s C%04d: %s\n", r.colorize(ansiRed, kind), d.Code, d.Message)
		return
	}
	fmt.Fprintf(r.out, "%s:%d:%d: %s %s: %s\n",
		d.Range.File, d.Range.Start.Line, d.Range.Start.Col,
		r.colorize(ansiRed, kind), r.colorize(ansiBold, fmt.Sprintf("C%04d", d.Code)), d.Message)

	lines := r.sources[d.Range.File]
	lineIdx := d.Range.Start.Line - 1
	if lineIdx < 0 || lineIdx >= len(lines) {
		return
	}
	line := lines[lineIdx]
	trimmed, removed := stripLeading(line)
	fmt.Fprintf(r.out, "    %s\n", trimmed)
	fmt.Fprintf(r.out, "    %s\n", r.colorize(ansiRed, caretLine(trimmed, d.Range.Start.Col-1-removed, d.Range.End.Col-1-removed)))
}

func (r *Renderer) colorize(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

// stripLeading removes leading spaces/tabs from line, reporting how many
// columns were removed so caret positions can be adjusted to match
// (mirrors detail::remove_leading_spaces).
func stripLeading(line string) (string, int) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[i:], i
}

// caretLine builds a run of spaces up to startCol followed by '^'
// characters spanning [startCol, endCol), always at least one caret.
func caretLine(line string, startCol, endCol int) string {
	if startCol < 0 {
		startCol = 0
	}
	width := endCol - startCol
	if width < 1 {
		width = 1
	}
	return strings.Repeat(" ", startCol) + strings.Repeat("^", width)
}
