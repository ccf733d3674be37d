// Package testutil provides small helpers shared by package tests.
package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// Logger returns a slog.Logger that routes through t.Log, so structured
// output shows up attached to the failing test instead of stderr.
func Logger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
