// Package diag implements the compiler's diagnostic taxonomy: a stable
// decimal code per diagnostic, partitioned by phase, carrying either a
// plain message or a source range, plus a Bag that collects every
// diagnostic raised during one phase so a source file with three unknown
// variables gets three UNKNOWN_VARIABLE diagnostics in one run instead
// of stopping at the first. Rendering lives in internal/diagio.
package diag

import "fmt"

// Severity distinguishes a fatal diagnostic from an advisory one.
type Severity int

const (
	Error Severity = iota
	Warning
)

// Code is the stable decimal identifier of a diagnostic: 1000s
// filesystem, 2000s lexer, 3000s parser, 4000s semantic/codegen, 5000s
// linker/driver.
type Code int

const (
	// Filesystem (1000s)
	FileNotFound    Code = 1000
	FileUnreadable  Code = 1001
	WrongExtension  Code = 1002

	// Lexer (2000s)
	UnterminatedComment Code = 2000
	IdentifierTooLong   Code = 2001
	MalformedToken      Code = 2002

	// Parser (3000s)
	UnexpectedToken Code = 3000

	// Semantic / codegen (4000s)
	UnknownVariable           Code = 4000
	UnknownFunction           Code = 4001
	UnknownNamespace          Code = 4002
	UnknownType               Code = 4003
	NoCallOverload            Code = 4004
	InvalidCast               Code = 4005
	ImplicitCast              Code = 4006
	ImplicitTruncationCast    Code = 4007
	ImplicitExtensionCast     Code = 4008
	NumericalBool             Code = 4009
	NumericalChar             Code = 4010
	LiteralOverflow           Code = 4011
	NotAllControlPathsReturn  Code = 4012
	DuplicateDeclaration      Code = 4013
	InvalidVoidUse            Code = 4014
	TypeMismatch              Code = 4015
	CodegenAssertion          Code = 4016

	// Driver / linker (5000s)
	ObjectEmissionFailure Code = 5000
	StackProbeUnsupported Code = 5001
)

// Position is a 1-based line/column pair.
type Position struct {
	Line, Col int
}

// Range is a half-open source range within one file.
type Range struct {
	File       string
	Start, End Position
}

// Diagnostic is one error or warning, anchored either at a Range or
// carrying only a plain message (e.g. a filesystem error before any file
// content exists to anchor a range to).
type Diagnostic struct {
	Code     Code
	Severity Severity
	Message  string
	Range    *Range // nil if this diagnostic has no source anchor
}

func (d Diagnostic) Error() string {
	if d.Range == nil {
		return fmt.Sprintf("C%04d: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: C%04d: %s", d.Range.File, d.Range.Start.Line, d.Range.Start.Col, d.Code, d.Message)
}

// Bag accumulates diagnostics raised over the course of one phase. Warnings
// never abort the phase; the first Error recorded still lets the phase
// finish collecting, and it's the driver's job to check
// HasErrors after the phase returns before moving to the next one.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic with no source anchor.
func (b *Bag) Add(sev Severity, code Code, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Code:     code,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

// AddAt appends a diagnostic anchored at r.
func (b *Bag) AddAt(sev Severity, code Code, r Range, format string, args ...any) {
	rr := r
	b.items = append(b.items, Diagnostic{
		Code:     code,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Range:    &rr,
	})
}

// Errorf is shorthand for AddAt(Error, ...).
func (b *Bag) Errorf(code Code, r Range, format string, args ...any) {
	b.AddAt(Error, code, r, format, args...)
}

// Warnf is shorthand for AddAt(Warning, ...).
func (b *Bag) Warnf(code Code, r Range, format string, args ...any) {
	b.AddAt(Warning, code, r, format, args...)
}

// All returns every diagnostic recorded so far, in recording order.
func (b *Bag) All() []Diagnostic { return b.items }

// HasErrors reports whether any recorded diagnostic is Error severity.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the Error-severity diagnostics.
func (b *Bag) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.items {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}
