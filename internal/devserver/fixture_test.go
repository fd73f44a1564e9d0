package devserver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kanshi/internal/model"
)

func TestLoadFixture_Demo(t *testing.T) {
	f, err := LoadFixture("")
	require.NoError(t, err)
	require.Len(t, f.Runs, 4)

	store := NewStore(0)
	pending, err := f.Seed(store)
	require.NoError(t, err)
	assert.Equal(t, 4, store.Len())

	require.Len(t, pending, 1)
	assert.Equal(t, "run-claude-2", pending[0].RunID)
	assert.Len(t, pending[0].Lines, 7)
	assert.Equal(t, model.RunStatusSucceeded, pending[0].Status)

	live, err := store.GetRun("run-claude-2")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, live.Status)
	page, err := store.Logs("run-claude-2", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Logs, "live output is left for the replayer")

	failed, err := store.GetRun("run-gemini-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, failed.Status)
	assert.Empty(t, failed.FilesChanged)
}

func TestLoadFixture_DemoDerivesCounts(t *testing.T) {
	f, err := LoadFixture("")
	require.NoError(t, err)
	store := NewStore(0)
	_, err = f.Seed(store)
	require.NoError(t, err)

	run, err := store.GetRun("run-claude-1")
	require.NoError(t, err)
	require.Len(t, run.FilesChanged, 2)
	assert.Equal(t, "internal/fetch/client.go", run.FilesChanged[0].Path)
	assert.Equal(t, 7, run.FilesChanged[0].Additions)
	assert.Equal(t, 1, run.FilesChanged[0].Deletions)
	assert.Equal(t, 5, run.FilesChanged[1].Additions)
	assert.Equal(t, 0, run.FilesChanged[1].Deletions)

	page, err := store.Logs("run-claude-1", 0)
	require.NoError(t, err)
	assert.Len(t, page.Logs, 4)
	assert.True(t, page.IsComplete)
}

func TestParseFixture_ExplicitCountsWin(t *testing.T) {
	f, err := ParseFixture(strings.NewReader(`
runs:
  - id: r
    executor: x
    files:
      - path: a.go
        additions: 9
        deletions: 3
        patch: "@@ -1 +1 @@\n-a\n+b\n"
`))
	require.NoError(t, err)
	files := f.Runs[0].fileDiffs()
	require.Len(t, files, 1)
	assert.Equal(t, 9, files[0].Additions)
	assert.Equal(t, 3, files[0].Deletions)
}

func TestParseFixture_RejectsUnknownFields(t *testing.T) {
	_, err := ParseFixture(strings.NewReader("runs:\n  - id: r\n    colour: blue\n"))
	assert.ErrorContains(t, err, "decode fixture")
}

func TestParseFixture_Empty(t *testing.T) {
	f, err := ParseFixture(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Runs)
}

func TestSeed_DefaultsAndErrors(t *testing.T) {
	store := NewStore(0)
	pending, err := Fixture{Runs: []FixtureRun{{ID: "a", Logs: []string{"x"}}}}.Seed(store)
	require.NoError(t, err)
	assert.Empty(t, pending)

	run, err := store.GetRun("a")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, run.Status, "blank status means succeeded")

	_, err = Fixture{Runs: []FixtureRun{{ID: "b", Status: "paused"}}}.Seed(store)
	assert.ErrorContains(t, err, "invalid status")

	_, err = Fixture{Runs: []FixtureRun{{ID: "a"}}}.Seed(store)
	assert.ErrorIs(t, err, ErrRunExists)
}

func TestLoadFixture_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runs:\n  - id: q\n    status: queued\n"), 0o600))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	store := NewStore(0)
	_, err = f.Seed(store)
	require.NoError(t, err)

	run, err := store.GetRun("q")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "open fixture")
}
