package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/driver"
	"github.com/Goubermouche/sigma-sub002/internal/objfile"
)

var (
	emitFlag         string
	targetFlag       string
	outputFlag       string
	optimizeFlag     int
	sizeOptimizeFlag int
	keepAssemblyFlag bool
	tuiFlag          bool
)

func init() {
	rootCmd.AddCommand(newCompileCmd())
}

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <source>.s...",
		Short: "Compile Sigma source files",
		Long: `compile runs the full pipeline over each .s file and, depending on
--emit, either just reports diagnostics or writes a relocatable object
file. With --emit executable the object is written and then an error is
reported, since no system linker is invoked.

Example:
  sigmac compile main.s --emit object
  sigmac compile main.s --emit executable -o main
  sigmac compile a.s b.s c.s --tui`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tuiFlag {
				return runCompileTUI(args)
			}
			return runCompile(args)
		},
	}
	cmd.Flags().StringVar(&emitFlag, "emit", "object", "how much of the pipeline to run: none, object, executable")
	cmd.Flags().StringVar(&targetFlag, "target", defaultTarget(), "object file format: coff (Windows) or elf (Linux)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output path (default derived from the source name)")
	cmd.Flags().IntVar(&optimizeFlag, "optimize", 0, "optimization level 0-3 (accepted, currently no effect)")
	cmd.Flags().IntVar(&sizeOptimizeFlag, "size-optimize", 0, "size-optimization level 0-2 (accepted, currently no effect)")
	cmd.Flags().BoolVar(&keepAssemblyFlag, "keep-assembly", false, "print the generated Intel-syntax assembly to stdout")
	cmd.Flags().BoolVar(&tuiFlag, "tui", false, "show a live per-file progress view for multi-file builds")
	return cmd
}

func defaultTarget() string {
	if runtime.GOOS == "windows" {
		return "coff"
	}
	return "elf"
}

func parseEmit(s string) (driver.EmitKind, error) {
	switch s {
	case "none":
		return driver.EmitNone, nil
	case "object":
		return driver.EmitObject, nil
	case "executable":
		return driver.EmitExecutable, nil
	default:
		return 0, fmt.Errorf("invalid --emit %q: expected none, object, or executable", s)
	}
}

func parseFormat(s string) (objfile.Format, error) {
	switch s {
	case "coff":
		return objfile.FormatCOFF, nil
	case "elf":
		return objfile.FormatELF, nil
	default:
		return 0, fmt.Errorf("invalid --target %q: expected coff or elf", s)
	}
}

func runCompile(args []string) error {
	initLogging()

	emitKind, err := parseEmit(emitFlag)
	if err != nil {
		return err
	}
	format, err := parseFormat(targetFlag)
	if err != nil {
		return err
	}

	if outputFlag != "" && len(args) > 1 {
		return fmt.Errorf("-o cannot be combined with multiple source files")
	}

	hasErrors := false
	for _, source := range args {
		cfg := driver.Config{
			Source:            source,
			Output:            outputFlag,
			Emit:              emitKind,
			Format:            format,
			OptimizeLevel:     optimizeFlag,
			SizeOptimizeLevel: sizeOptimizeFlag,
			Verbose:           verbose,
			KeepAssembly:      keepAssemblyFlag,
		}

		data, readErr := os.ReadFile(source)
		var text string
		if readErr == nil {
			text = string(data)
		}

		result, err := driver.Run(cfg)
		if err != nil {
			return err
		}

		driver.RenderDiagnostics(result, cfg, text)

		if keepAssemblyFlag && result.Assembly != "" {
			fmt.Fprint(os.Stdout, result.Assembly)
		}

		for _, d := range result.Diagnostics {
			if d.Severity == diag.Error {
				hasErrors = true
			}
		}
		if result.OutputPath != "" {
			printInfo("wrote %s\n", result.OutputPath)
		}
	}
	if hasErrors {
		os.Exit(1)
	}
	return nil
}
