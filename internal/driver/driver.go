// Package driver orchestrates the whole pipeline lexer → parser → sema →
// irgen → cfg → sched → isel → liverange → regalloc → emit → objfile for
// one compilation unit. Each phase runs to completion and the pipeline
// aborts after the first phase that leaves error-class diagnostics in the
// bag; warnings are carried through and never abort.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/clog"
	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/diagio"
	"github.com/Goubermouche/sigma-sub002/internal/emit"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/irgen"
	"github.com/Goubermouche/sigma-sub002/internal/isel"
	"github.com/Goubermouche/sigma-sub002/internal/lexer"
	"github.com/Goubermouche/sigma-sub002/internal/liverange"
	"github.com/Goubermouche/sigma-sub002/internal/objfile"
	"github.com/Goubermouche/sigma-sub002/internal/parser"
	"github.com/Goubermouche/sigma-sub002/internal/regalloc"
	"github.com/Goubermouche/sigma-sub002/internal/sched"
	"github.com/Goubermouche/sigma-sub002/internal/sema"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
)

// EmitKind selects how much of the pipeline to run, matching the CLI's
// `--emit {none|object|executable}`.
type EmitKind int

const (
	EmitNone       EmitKind = iota // run the pipeline, discard the result (diagnostics only)
	EmitObject                     // write a relocatable COFF/ELF object
	EmitExecutable                 // write the object, then report that no linker is invoked (always an error)
)

// Config carries one compilation's options. OptimizeLevel and
// SizeOptimizeLevel are accepted for CLI compatibility; the compiler has
// no optimization passes beyond what the scheduler implicitly performs,
// so any level is accepted and has no effect.
type Config struct {
	Source            string
	Output            string
	Emit              EmitKind
	Format            objfile.Format
	OptimizeLevel     int
	SizeOptimizeLevel int
	Verbose           bool
	KeepAssembly      bool
	// Progress, when non-nil, is invoked with a short stage name as
	// each pipeline phase begins. The TUI front end hangs off this.
	Progress func(stage string)
}

// Result is what Run produced: the rendered diagnostics (possibly empty)
// and, when Emit != EmitNone and there were no errors, the written
// artifact path.
type Result struct {
	Diagnostics []diag.Diagnostic
	OutputPath  string
	// Assembly holds every function's textual Intel-syntax listing,
	// concatenated in compilation order, populated only when
	// Config.KeepAssembly is set.
	Assembly string
}

// Run executes the full pipeline for cfg.Source and returns once every
// phase has either produced output or aborted on its first error-class
// diagnostic. Warnings are accumulated and returned alongside success.
func Run(cfg Config) (*Result, error) {
	progress := cfg.Progress
	if progress == nil {
		progress = func(string) {}
	}
	data, err := os.ReadFile(cfg.Source)
	if err != nil {
		bag := &diag.Bag{}
		bag.Add(diag.Error, diag.FileNotFound, "cannot read %s: %v", cfg.Source, err)
		return &Result{Diagnostics: bag.All()}, nil
	}
	if filepath.Ext(cfg.Source) != ".s" {
		bag := &diag.Bag{}
		bag.Add(diag.Error, diag.WrongExtension, "%s: expected a .s source file", cfg.Source)
		return &Result{Diagnostics: bag.All()}, nil
	}

	tab := symtab.New()
	bag := &diag.Bag{}

	progress("lex")
	clog.Info("lexing", "file", cfg.Source)
	lx := lexer.New(cfg.Source, string(data), tab, bag)
	tokens := lx.Lex()
	if bag.HasErrors() {
		return &Result{Diagnostics: bag.All()}, nil
	}

	progress("parse")
	clog.Info("parsing", "file", cfg.Source)
	ps := parser.New(cfg.Source, tokens, tab, bag)
	prog := ps.Parse()
	if bag.HasErrors() {
		return &Result{Diagnostics: bag.All()}, nil
	}

	progress("check")
	clog.Info("type checking", "file", cfg.Source)
	checker := sema.NewChecker(cfg.Source, tab, bag)
	checker.Check(prog)
	if bag.HasErrors() {
		return &Result{Diagnostics: bag.All()}, nil
	}

	progress("ir")
	clog.Info("generating IR")
	gen := irgen.New(tab, bag)
	mod := gen.GenProgram(prog)
	if bag.HasErrors() {
		return &Result{Diagnostics: bag.All()}, nil
	}

	progress("codegen")
	var objects []*emit.Object
	for _, name := range mod.Order {
		fn := mod.Functions[name]
		clog.Info("compiling function", "name", name)
		obj, err := compileFunction(fn, bag)
		if err != nil {
			bag.Add(diag.Error, diag.CodegenAssertion, "%s: %v", name, err)
			return &Result{Diagnostics: bag.All()}, nil
		}
		if bag.HasErrors() {
			return &Result{Diagnostics: bag.All()}, nil
		}
		objects = append(objects, obj)
	}

	var assembly string
	if cfg.KeepAssembly {
		var b strings.Builder
		for _, obj := range objects {
			fmt.Fprintf(&b, "; %s\n", obj.Name)
			b.WriteString(obj.Assembly)
		}
		assembly = b.String()
	}

	if cfg.Emit == EmitNone {
		return &Result{Diagnostics: bag.All(), Assembly: assembly}, nil
	}

	progress("object")
	clog.Info("writing object")
	container := objfile.Build(objects)
	bytes := objfile.Write(container, cfg.Format)

	outPath := cfg.Output
	if outPath == "" {
		outPath = defaultOutputName(cfg.Source, cfg.Format, cfg.Emit)
	}
	if err := os.WriteFile(outPath, bytes, 0644); err != nil {
		bag.Add(diag.Error, diag.ObjectEmissionFailure, "writing %s: %v", outPath, err)
		return &Result{Diagnostics: bag.All()}, nil
	}
	clog.Info("wrote object", "path", outPath)

	if cfg.Emit == EmitExecutable {
		if err := invokeLinker(outPath, cfg); err != nil {
			bag.Add(diag.Error, diag.ObjectEmissionFailure, "link: %v", err)
			return &Result{Diagnostics: bag.All()}, nil
		}
	}

	return &Result{Diagnostics: bag.All(), OutputPath: outPath, Assembly: assembly}, nil
}

// compileFunction runs the backend half of the pipeline — cfg → sched →
// isel → liverange → regalloc → emit — for one already-generated IR
// function.
func compileFunction(fn *ir.Function, bag *diag.Bag) (*emit.Object, error) {
	graph := cfg.Build(fn)
	schedule := sched.Schedule(fn, graph)
	selFn := isel.Select(fn, graph, schedule)
	intervals := liverange.Analyze(selFn)
	result := regalloc.Allocate(selFn, intervals)
	return emit.Emit(selFn, result)
}

func defaultOutputName(source string, format objfile.Format, kind EmitKind) string {
	base := source[:len(source)-len(filepath.Ext(source))]
	if kind == EmitExecutable {
		if format == objfile.FormatCOFF {
			return base + ".exe"
		}
		return base
	}
	if format == objfile.FormatCOFF {
		return base + ".obj"
	}
	return base + ".o"
}

// invokeLinker does not run a linker: it logs the object path and
// returns an error saying that no system linker is invoked.
func invokeLinker(objPath string, cfg Config) error {
	clog.Info("linking", "object", objPath)
	return fmt.Errorf("linking %s to an executable requires a system linker (clang/lld-link); not invoked in this environment", objPath)
}

// RenderDiagnostics prints every diagnostic in r to stderr using diagio,
// quoting cfg.Source's text for any diagnostic carrying a Range.
func RenderDiagnostics(r *Result, cfg Config, source string) {
	rend := diagio.New(os.Stderr, int(os.Stderr.Fd()))
	rend.AddSource(cfg.Source, source)
	rend.RenderAll(r.Diagnostics)
}
