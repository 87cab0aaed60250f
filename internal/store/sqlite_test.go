package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/ghwatch/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

// --- Watermarks ---

func TestSQLiteLoad_EmptyDatabase(t *testing.T) {
	s := newTestStore(t)

	state, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state)
	assert.NotNil(t, state)
}

func TestSQLiteSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := models.State{
		"a/b": {
			models.SourceIssue:      {LastTimestamp: mustTime(t, "2023-01-03T00:00:00Z")},
			models.SourceDiscussion: {LastTimestamp: mustTime(t, "2023-01-05T10:00:00.123456789Z")},
		},
		"c/d": {
			models.SourcePullRequest: {LastTimestamp: mustTime(t, "2024-06-01T12:30:00Z")},
		},
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for repo, rs := range want {
		for st, src := range rs {
			assert.True(t, src.LastTimestamp.Equal(got[repo][st].LastTimestamp), "%s/%s", repo, st)
		}
	}
}

func TestSQLiteSave_ReplacesPreviousState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, models.State{
		"a/b": {models.SourceIssue: {LastTimestamp: mustTime(t, "2023-01-01T00:00:00Z")}},
	}))
	require.NoError(t, s.Save(ctx, models.State{
		"c/d": {models.SourceIssue: {LastTimestamp: mustTime(t, "2023-02-01T00:00:00Z")}},
	}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, got, "a/b")
	assert.Contains(t, got, "c/d")
}

// --- Runs ---

func TestRecordRun_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := mustTime(t, "2024-01-01T00:00:00Z")
	for i, status := range []models.RunStatus{models.RunStatusNoActivity, models.RunStatusNotified, models.RunStatusNotifyFailed} {
		run := &models.Run{
			ID:         string(rune('A' + i)),
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			Status:     status,
			Fetched:    i * 2,
			Notified:   i,
			StateSaved: status == models.RunStatusNotified,
		}
		if status == models.RunStatusNotifyFailed {
			run.Error = "send notifications: webhook returned 500"
		}
		require.NoError(t, s.RecordRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "C", runs[0].ID, "most recent first")
	assert.Equal(t, models.RunStatusNotifyFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "webhook returned 500")
	assert.True(t, runs[1].StateSaved)
	assert.Equal(t, 2, runs[1].Fetched)
	assert.True(t, runs[2].StartedAt.Equal(base))

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordRun_ReplacesSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{ID: "01J", StartedAt: time.Now(), FinishedAt: time.Now(), Status: models.RunStatusFailed}
	require.NoError(t, s.RecordRun(ctx, run))
	run.Status = models.RunStatusNotified
	require.NoError(t, s.RecordRun(ctx, run))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusNotified, runs[0].Status)
}

func TestOpenState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	js, closeFn, err := OpenState(ctx, BackendJSON, filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, js)
	assert.NoError(t, closeFn())

	ss, closeFn, err := OpenState(ctx, BackendSQLite, filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, ss)
	assert.NoError(t, closeFn())

	_, _, err = OpenState(ctx, "redis", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state backend")
}
