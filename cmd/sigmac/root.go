// Command sigmac is the whole-program ahead-of-time compiler for Sigma:
// it drives internal/driver's lexer→parser→sema→irgen→cfg→sched→isel→
// liverange→regalloc→emit→objfile pipeline over .s source files.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Goubermouche/sigma-sub002/internal/clog"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "sigmac",
	Short: "Compile Sigma source files to native object code",
	Long: `sigmac is a whole-program ahead-of-time compiler for Sigma, a small
statically typed systems language. It lowers a .s source file through a
typed AST, a sea-of-nodes SSA IR, an x64 instruction selection and
register allocation pipeline, and emits a relocatable COFF or ELF object
file ready to be linked by clang or ld.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log each pipeline stage to stderr")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except diagnostics")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging wires -v into internal/clog before a subcommand runs the
// pipeline.
func initLogging() {
	level := slog.LevelInfo
	clog.Init(clog.Options{Enabled: verbose, Level: level})
}

// printInfo prints an info message unless --quiet was given.
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "sigmac: "+format, args...)
}
