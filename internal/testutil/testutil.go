// Package testutil provides shared fixtures for package tests: a quiet
// logger, throwaway sqlite paths, and generated run output.
package testutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashita-ai/kanshi/internal/model"
)

// Epoch is the base timestamp for generated fixtures.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// TempDBPath returns a sqlite file path inside a directory removed when t ends.
func TempDBPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "kanshi.db")
}

// OutputLines generates n contiguous lines numbered from start.
func OutputLines(start, n int) []model.OutputLine {
	lines := make([]model.OutputLine, n)
	for i := range lines {
		num := start + i
		lines[i] = model.OutputLine{
			LineNumber: num,
			Content:    fmt.Sprintf("line %d", num),
			Timestamp:  Epoch.Add(time.Duration(num) * time.Second),
		}
	}
	return lines
}

// LineNumbers extracts the line numbers of lines, in order.
func LineNumbers(lines []model.OutputLine) []int {
	nums := make([]int, len(lines))
	for i, l := range lines {
		nums[i] = l.LineNumber
	}
	return nums
}
