package driver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/driver"
	"github.com/Goubermouche/sigma-sub002/internal/objfile"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.s")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestRunAdditionProducesNoDiagnostics(t *testing.T) {
	path := writeSource(t, "i32 main() { ret 100 + 200; }")
	res, err := driver.Run(driver.Config{Source: path, Emit: driver.EmitNone})
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	require.Empty(t, res.OutputPath)
}

// A function missing a return on one control path is rejected before
// codegen ever runs.
func TestRunMissingReturnPathAbortsAtSema(t *testing.T) {
	path := writeSource(t, "i32 main() { i32 x = 3; if (x == 1) { ret 1; } }")
	res, err := driver.Run(driver.Config{Source: path, Emit: driver.EmitNone})
	require.NoError(t, err)
	require.NotEmpty(t, res.Diagnostics)
	require.Equal(t, diag.NotAllControlPathsReturn, res.Diagnostics[0].Code)
	require.Empty(t, res.OutputPath)
}

func TestRunIfElseIfElseAllPathsReturnSucceeds(t *testing.T) {
	src := `i32 main() {
		i32 x = 3;
		if (x == 1) { ret 10; } else if (x == 3) { ret 30; } else { ret 99; }
	}`
	path := writeSource(t, src)
	res, err := driver.Run(driver.Config{Source: path, Emit: driver.EmitNone})
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
}

func TestRunPrintfVariadicCallCompiles(t *testing.T) {
	src := `extern i32 printf(char* fmt, ...);
	i32 main() { printf("result: %d\n", 42); ret 0; }`
	path := writeSource(t, src)
	res, err := driver.Run(driver.Config{Source: path, Emit: driver.EmitNone})
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
}

func TestRunEmitObjectWritesCOFFFile(t *testing.T) {
	path := writeSource(t, "i32 main() { ret 7; }")
	res, err := driver.Run(driver.Config{
		Source: path,
		Emit:   driver.EmitObject,
		Format: objfile.FormatCOFF,
	})
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	require.NotEmpty(t, res.OutputPath)
	require.Equal(t, ".obj", filepath.Ext(res.OutputPath))

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestRunEmitObjectWritesELFFile(t *testing.T) {
	path := writeSource(t, "i32 main() { ret 7; }")
	res, err := driver.Run(driver.Config{
		Source: path,
		Emit:   driver.EmitObject,
		Format: objfile.FormatELF,
	})
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	require.Equal(t, ".o", filepath.Ext(res.OutputPath))

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, data[0:4])
}

func TestRunEmitExecutableFailsWithoutSystemLinker(t *testing.T) {
	path := writeSource(t, "i32 main() { ret 0; }")
	res, err := driver.Run(driver.Config{
		Source: path,
		Emit:   driver.EmitExecutable,
		Format: objfile.FormatELF,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Diagnostics)
	require.Equal(t, diag.ObjectEmissionFailure, res.Diagnostics[0].Code)
}

func TestRunNonSourceExtensionIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.txt")
	require.NoError(t, os.WriteFile(path, []byte("i32 main() { ret 0; }"), 0644))

	res, err := driver.Run(driver.Config{Source: path, Emit: driver.EmitNone})
	require.NoError(t, err)
	require.Equal(t, diag.WrongExtension, res.Diagnostics[0].Code)
}

func TestRunMissingFileReportsFileNotFound(t *testing.T) {
	res, err := driver.Run(driver.Config{Source: filepath.Join(t.TempDir(), "missing.s"), Emit: driver.EmitNone})
	require.NoError(t, err)
	require.Equal(t, diag.FileNotFound, res.Diagnostics[0].Code)
}

func TestRunKeepAssemblyPopulatesAssemblyField(t *testing.T) {
	path := writeSource(t, "i32 main() { ret 1 + 2; }")
	res, err := driver.Run(driver.Config{Source: path, Emit: driver.EmitNone, KeepAssembly: true})
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	require.NotEmpty(t, res.Assembly)
	require.Contains(t, res.Assembly, "main")
}

// Compiling the same source twice with the same configuration must
// produce byte-identical assembly and object output.
func TestRunIsDeterministic(t *testing.T) {
	src := `i32 helper(i32 a, i32 b) { ret a + b; }
	i32 main() {
		i32 x = 3;
		if (x == 1) { ret helper(1, 2); } else { ret helper(10, 20); }
	}`

	run := func() (string, []byte) {
		path := writeSource(t, src)
		res, err := driver.Run(driver.Config{
			Source:       path,
			Emit:         driver.EmitObject,
			Format:       objfile.FormatELF,
			KeepAssembly: true,
		})
		require.NoError(t, err)
		require.Empty(t, res.Diagnostics)
		data, err := os.ReadFile(res.OutputPath)
		require.NoError(t, err)
		return res.Assembly, data
	}

	asm1, obj1 := run()
	asm2, obj2 := run()

	if asm1 != asm2 {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(asm1),
			B:        difflib.SplitLines(asm2),
			FromFile: "first run",
			ToFile:   "second run",
			Context:  3,
		})
		t.Fatalf("assembly differs between runs:\n%s", diff)
	}
	require.Equal(t, obj1, obj2)
}

func TestRunUnknownFunctionAbortsBeforeIRGen(t *testing.T) {
	path := writeSource(t, "i32 main() { ret nope(1); }")
	res, err := driver.Run(driver.Config{Source: path, Emit: driver.EmitNone})
	require.NoError(t, err)
	require.Equal(t, diag.UnknownFunction, res.Diagnostics[0].Code)
}
