package clog_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/clog"
)

// TestInitDisabledDiscardsOutput covers the default --verbose-less mode
//: nothing written anywhere, not even to a buffer the test
// could swap in, so we only assert that calling the logging functions
// doesn't panic and leaves L non-nil.
func TestInitDisabledDiscardsOutput(t *testing.T) {
	clog.Init(clog.Options{Enabled: false})
	require.NotNil(t, clog.L)
	clog.Info("should not appear", "k", "v")
}

func TestInitEnabledDefaultsToInfoLevel(t *testing.T) {
	clog.Init(clog.Options{Enabled: true})
	require.NotNil(t, clog.L)
	require.True(t, clog.L.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, clog.L.Enabled(context.Background(), slog.LevelDebug))
}

func TestInitEnabledHonorsExplicitLevel(t *testing.T) {
	clog.Init(clog.Options{Enabled: true, Level: slog.LevelDebug})
	require.True(t, clog.L.Enabled(context.Background(), slog.LevelDebug))

	// Reset to the package's quiescent default so later tests in other
	// packages that import clog (e.g. internal/driver) don't inherit a
	// chatty logger.
	clog.Init(clog.Options{Enabled: false})
}

func TestHandlerSwapDoesNotPanicAcrossLevels(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	prev := clog.L
	clog.L = l
	defer func() { clog.L = prev }()

	clog.Debug("d")
	clog.Info("i")
	clog.Warn("w")
	clog.Error("e")
	require.NotEmpty(t, buf.String())
}
