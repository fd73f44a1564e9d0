package model_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kanshi/internal/model"
)

// ---- ValidateRunID -------------------------------------------------------

func TestValidateRunID_HappyPath(t *testing.T) {
	assert.NoError(t, model.ValidateRunID("run-42"))
	assert.NoError(t, model.ValidateRunID("5c1e8a2e-3f0d-4c55-9a8e-0b7c1d2e3f40"))
}

func TestValidateRunID_Empty(t *testing.T) {
	err := model.ValidateRunID("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestValidateRunID_AtExactMax(t *testing.T) {
	assert.NoError(t, model.ValidateRunID(strings.Repeat("r", model.MaxRunIDLen)), "at the limit should pass")
}

func TestValidateRunID_OverMax(t *testing.T) {
	err := model.ValidateRunID(strings.Repeat("r", model.MaxRunIDLen+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum length")
}

func TestValidateRunID_ReservedCharacters(t *testing.T) {
	for _, id := range []string{"a/b", "a?b", "a#b", "a%2Fb", "a b", "..\\x"} {
		err := model.ValidateRunID(id)
		assert.Error(t, err, "id %q should be rejected", id)
	}
}

// ---- RunStatus -----------------------------------------------------------

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.False(t, model.RunStatusQueued.IsTerminal())
	assert.False(t, model.RunStatusRunning.IsTerminal())
	assert.True(t, model.RunStatusSucceeded.IsTerminal())
	assert.True(t, model.RunStatusFailed.IsTerminal())
	assert.True(t, model.RunStatusCanceled.IsTerminal())
}

func TestRunStatus_Valid(t *testing.T) {
	assert.True(t, model.RunStatusCanceled.Valid())
	assert.False(t, model.RunStatus("cancelled").Valid())
	assert.False(t, model.RunStatus("").Valid())
}

// ---- Run -----------------------------------------------------------------

func TestRunNormalize_DropsFilesFromUnsucceededRuns(t *testing.T) {
	files := []model.FileDiff{{Path: "main.go", Additions: 1}}

	failed := model.Run{ID: "r1", Status: model.RunStatusFailed, FilesChanged: files}.Normalize()
	assert.Nil(t, failed.FilesChanged)

	ok := model.Run{ID: "r2", Status: model.RunStatusSucceeded, FilesChanged: files}.Normalize()
	assert.Equal(t, files, ok.FilesChanged)
}

func TestLogPage_WireFormat(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	page := model.LogPage{
		Logs:       []model.OutputLine{{LineNumber: 3, Content: "building", Timestamp: ts}},
		IsComplete: true,
		TotalLines: 4,
		RunStatus:  model.RunStatusSucceeded,
	}
	data, err := json.Marshal(page)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, true, raw["is_complete"])
	assert.Equal(t, float64(4), raw["total_lines"])
	assert.Equal(t, "succeeded", raw["run_status"])
	logs := raw["logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, float64(3), logs[0].(map[string]any)["line_number"])
}
