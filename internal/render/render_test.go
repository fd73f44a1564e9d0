package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kanshi/internal/compare"
	"github.com/ashita-ai/kanshi/internal/diff"
	"github.com/ashita-ai/kanshi/internal/model"
	"github.com/ashita-ai/kanshi/internal/testutil"
)

// A bytes.Buffer is not a terminal, so output carries no escape codes.

func TestPatch_GutterAndMarkers(t *testing.T) {
	var buf bytes.Buffer
	f := diff.ParseFileDiff(model.FileDiff{
		Path:  "main.go",
		Patch: "@@ -8,3 +8,3 @@ func main() {\n a\n-b\n+c\n d\n",
	})
	require.NoError(t, New(&buf, "dark").Patch(f))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "main.go +1 -1", lines[0])
	assert.Equal(t, "@@ -8,3 +8,3 @@ func main() {", lines[1])
	assert.Equal(t, "  8   8  a", lines[2])
	assert.Equal(t, "  9     -b", lines[3])
	assert.Equal(t, "      9 +c", lines[4])
	assert.Equal(t, " 10  10  d", lines[5])
}

func TestPatch_WideGutterAndUnnamed(t *testing.T) {
	var buf bytes.Buffer
	f := diff.Parse("@@ -0,0 +1200,1 @@\n+x\n")[0]
	require.NoError(t, New(&buf, "auto").Patch(f))

	out := buf.String()
	assert.Contains(t, out, "(unnamed) +1 -0")
	assert.Contains(t, out, "     1200 +x")
}

func TestComparison(t *testing.T) {
	runs := []model.Run{
		succeeded("A", "claude", "x", "y"),
		succeeded("B", "codex", "y", "z"),
		succeeded("C", "gemini", "y"),
	}
	c, ok := compare.Compare(runs, compare.Options{})
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, "light").Comparison(c))
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "EXECUTOR  RUN  CREATED"), lines[0])
	assert.Contains(t, lines[1], "claude")
	assert.Contains(t, lines[1], "+2")
	assert.Contains(t, out, "Common files (1)\n  y\n")
	assert.Contains(t, out, "Only in claude A (1)\n  x\n")
	assert.Contains(t, out, "Only in codex B (1)\n  z\n")
	assert.Contains(t, out, "Only in gemini C (0)\n  none\n")
	assert.NotContains(t, out, "Shared by some runs")
}

func TestComparison_SharedSection(t *testing.T) {
	runs := []model.Run{
		succeeded("A", "claude", "x", "y"),
		succeeded("B", "codex", "x"),
		succeeded("C", "gemini", "z"),
	}
	c, ok := compare.Compare(runs, compare.Options{})
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, "").Comparison(c))
	assert.Contains(t, buf.String(), "Common files (0)\n  none\n")
	assert.Contains(t, buf.String(), "Shared by some runs (1)\n  x\n")
}

func TestUnavailable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, "").Unavailable(1))
	assert.Equal(t, "comparison needs at least 2 succeeded runs, found 1\n", buf.String())
}

func TestLogLineAndEnd(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, "")
	for _, l := range testutil.OutputLines(41, 2) {
		require.NoError(t, p.LogLine(l))
	}
	require.NoError(t, p.LogEnd(model.LogPage{RunStatus: model.RunStatusFailed, TotalLines: 43}))

	assert.Equal(t, "    41  line 41\n    42  line 42\nrun failed after 43 lines\n", buf.String())
}

func TestRunLine(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, "")
	require.NoError(t, p.RunLine(succeeded("r1", "claude", "a", "b")))
	require.NoError(t, p.RunLine(model.Run{ID: "r2", Executor: "codex", Status: model.RunStatusRunning}))

	assert.Equal(t, "claude  r1  succeeded  2 files +2 -0\ncodex  r2  running\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestWriteError(t *testing.T) {
	err := New(failingWriter{}, "").LogLine(model.OutputLine{})
	assert.ErrorIs(t, err, assert.AnError)
}

func succeeded(id, executor string, paths ...string) model.Run {
	r := model.Run{ID: id, Executor: executor, Status: model.RunStatusSucceeded, CreatedAt: testutil.Epoch}
	for _, p := range paths {
		r.FilesChanged = append(r.FilesChanged, model.FileDiff{Path: p, Additions: 1})
	}
	return r
}
