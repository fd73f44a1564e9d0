package devserver

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/kanshi/internal/diff"
	"github.com/ashita-ai/kanshi/internal/model"
)

//go:embed fixtures/demo.yaml
var demoFixture []byte

// Fixture describes runs to seed into a Store.
type Fixture struct {
	Runs []FixtureRun `yaml:"runs"`
}

// FixtureRun is one seeded run. Status is the status the run ends in. A live
// run starts as running and reaches Status only after a Replayer has
// dripped its logs.
type FixtureRun struct {
	ID        string          `yaml:"id"`
	TaskID    string          `yaml:"task_id"`
	Executor  string          `yaml:"executor"`
	Status    model.RunStatus `yaml:"status"`
	CreatedAt time.Time       `yaml:"created_at"`
	Live      bool            `yaml:"live"`
	Logs      []string        `yaml:"logs"`
	Files     []FixtureFile   `yaml:"files"`
}

// FixtureFile is a changed file. Zero counts are derived from the patch.
type FixtureFile struct {
	Path      string `yaml:"path"`
	Additions int    `yaml:"additions"`
	Deletions int    `yaml:"deletions"`
	Patch     string `yaml:"patch"`
}

// Replay is the pending output of a live run.
type Replay struct {
	RunID  string
	Lines  []string
	Status model.RunStatus
	Files  []model.FileDiff
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Fixture{}, fmt.Errorf("devserver: decode fixture: %w", err)
	}
	return f, nil
}

// LoadFixture reads a fixture file. An empty path loads the built-in demo.
func LoadFixture(path string) (Fixture, error) {
	if path == "" {
		return ParseFixture(bytes.NewReader(demoFixture))
	}
	file, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("devserver: open fixture: %w", err)
	}
	defer func() { _ = file.Close() }()
	return ParseFixture(file)
}

// Seed adds every fixture run to store. Finished runs get all their logs at
// once. Live runs are left running and returned for a Replayer.
func (f Fixture) Seed(store *Store) ([]Replay, error) {
	var pending []Replay
	for i, fr := range f.Runs {
		status := fr.Status
		if status == "" {
			status = model.RunStatusSucceeded
		}
		if !status.Valid() {
			return nil, fmt.Errorf("devserver: fixture run %d: invalid status %q", i, status)
		}
		files := fr.fileDiffs()

		initial := model.RunStatusRunning
		if !fr.Live && status == model.RunStatusQueued {
			initial = model.RunStatusQueued
		}
		run, err := store.CreateRun(model.Run{
			ID:        fr.ID,
			TaskID:    fr.TaskID,
			Executor:  fr.Executor,
			Status:    initial,
			CreatedAt: fr.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("devserver: fixture run %d: %w", i, err)
		}

		if fr.Live {
			pending = append(pending, Replay{RunID: run.ID, Lines: fr.Logs, Status: status, Files: files})
			continue
		}
		if len(fr.Logs) > 0 {
			if _, err := store.AppendLogs(run.ID, fr.Logs...); err != nil {
				return nil, err
			}
		}
		if status.IsTerminal() {
			if _, err := store.Finish(run.ID, status, files); err != nil {
				return nil, err
			}
		}
	}
	return pending, nil
}

func (fr FixtureRun) fileDiffs() []model.FileDiff {
	if len(fr.Files) == 0 {
		return nil
	}
	out := make([]model.FileDiff, len(fr.Files))
	for i, ff := range fr.Files {
		fd := model.FileDiff{Path: ff.Path, Additions: ff.Additions, Deletions: ff.Deletions, Patch: ff.Patch}
		if fd.Additions == 0 && fd.Deletions == 0 && fd.Patch != "" {
			parsed := diff.ParseFileDiff(fd)
			fd.Additions, fd.Deletions = parsed.Additions, parsed.Deletions
		}
		out[i] = fd
	}
	return out
}
