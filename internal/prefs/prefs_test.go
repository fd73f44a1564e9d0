package prefs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kanshi/internal/testutil"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := testutil.TempDBPath(t)
	s, err := Open(context.Background(), path, testutil.TestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestLoad_DefaultsWhenEmpty(t *testing.T) {
	s, _ := openTestStore(t)
	p, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
	assert.Equal(t, 500*time.Millisecond, p.PollInterval)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	want := Preferences{
		Theme:           "dark",
		PollInterval:    2 * time.Second,
		LatestOnly:      true,
		PinnedExecutors: []string{"claude", "codex"},
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.Save(ctx, Preferences{Theme: "light", PollInterval: time.Second}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, testutil.TestLogger())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	p, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "light", p.Theme)
	assert.Equal(t, time.Second, p.PollInterval)
}

func TestSave_RejectsInvalid(t *testing.T) {
	s, _ := openTestStore(t)
	err := s.Save(context.Background(), Preferences{Theme: "neon", PollInterval: time.Second})
	assert.ErrorContains(t, err, "theme")

	err = s.Save(context.Background(), Preferences{Theme: "dark"})
	assert.ErrorContains(t, err, "poll_interval")
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Get(ctx, KeyTheme)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyPollInterval, "1500ms"))
	v, err := s.Get(ctx, KeyPollInterval)
	require.NoError(t, err)
	assert.Equal(t, "1.5s", v)

	require.NoError(t, s.Set(ctx, KeyPinnedExecutors, " claude, ,gemini "))
	v, err = s.Get(ctx, KeyPinnedExecutors)
	require.NoError(t, err)
	assert.Equal(t, "claude,gemini", v)

	p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, p.PollInterval)
	assert.Equal(t, []string{"claude", "gemini"}, p.PinnedExecutors)
	assert.Equal(t, "auto", p.Theme, "unsaved keys keep defaults")
}

func TestSet_Rejects(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	assert.ErrorContains(t, s.Set(ctx, "font_size", "12"), "unknown key")
	assert.Error(t, s.Set(ctx, KeyTheme, "neon"))
	assert.Error(t, s.Set(ctx, KeyPollInterval, "-1s"))
	assert.Error(t, s.Set(ctx, KeyLatestOnly, "sometimes"))

	_, err := s.Get(ctx, "font_size")
	assert.ErrorContains(t, err, "unknown key")
}

func TestLoad_IgnoresCorruptRow(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES ('poll_interval', 'fast', '')`)
	require.NoError(t, err)

	p, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults().PollInterval, p.PollInterval)
}

func TestCursor(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	_, err := s.Cursor(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveCursor(ctx, "run-1", 40))
	require.NoError(t, s.SaveCursor(ctx, "run-1", 42))
	c, err := s.Cursor(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 42, c)

	assert.Error(t, s.SaveCursor(ctx, "run-1", -1))
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.Close())

	// Reopening must not re-run applied files.
	reopened, err := Open(ctx, path, testutil.TestLogger())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	var n int
	require.NoError(t, reopened.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", testutil.TestLogger())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Set(context.Background(), KeyLatestOnly, "true"))
	p, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, p.LatestOnly)
}

func TestBuildDSN(t *testing.T) {
	d := buildDSN("/tmp/kanshi.db")
	assert.Contains(t, d, "_pragma=journal_mode(WAL)")
	assert.Contains(t, d, "_pragma=busy_timeout(5000)")
	assert.NotContains(t, buildDSN(":memory:"), "journal_mode")
}

var _ execer = (*sql.DB)(nil)
var _ execer = (*sql.Tx)(nil)
