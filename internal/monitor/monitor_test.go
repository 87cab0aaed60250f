package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/ghwatch/internal/models"
	"github.com/joescharf/ghwatch/internal/store"
)

type fakeFetcher struct {
	items []models.ActivityItem
	err   error
	panic bool
	seen  models.State
}

func (f *fakeFetcher) FetchNewActivities(_ context.Context, current models.State) ([]models.ActivityItem, error) {
	f.seen = current
	if f.panic {
		panic("fetcher blew up")
	}
	return f.items, f.err
}

type fakeNotifier struct {
	err          error
	calls        int
	items        []models.ActivityItem
	totalFetched int
	maxItems     int
}

func (n *fakeNotifier) Send(_ context.Context, items []models.ActivityItem, totalFetched, maxItems int) error {
	n.calls++
	n.items = items
	n.totalFetched = totalFetched
	n.maxItems = maxItems
	return n.err
}

type fakeStore struct {
	state   models.State
	loadErr error
	saveErr error
	saves   int
}

func (s *fakeStore) Load(context.Context) (models.State, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.state.Clone(), nil
}

func (s *fakeStore) Save(_ context.Context, state models.State) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = state
	return nil
}

type fakeRecorder struct {
	runs []*models.Run
}

func (r *fakeRecorder) RecordRun(_ context.Context, run *models.Run) error {
	cp := *run
	r.runs = append(r.runs, &cp)
	return nil
}

type harness struct {
	fetcher  *fakeFetcher
	notifier *fakeNotifier
	store    *fakeStore
	recorder *fakeRecorder
}

func newHarness(items []models.ActivityItem) *harness {
	return &harness{
		fetcher:  &fakeFetcher{items: items},
		notifier: &fakeNotifier{},
		store:    &fakeStore{state: models.State{}},
		recorder: &fakeRecorder{},
	}
}

func (h *harness) monitor(t *testing.T, maxItems int) *Monitor {
	t.Helper()
	logger, _ := testLogger()
	return New(Deps{
		Fetcher:   h.fetcher,
		Processor: NewProcessor(ProcessorConfig{MaxItemsPerRun: maxItems}, nil, logger),
		Notifier:  h.notifier,
		Store:     h.store,
		Recorder:  h.recorder,
		Logger:    logger,
	}, maxItems)
}

func TestRun_HappyPathAdvancesState(t *testing.T) {
	items := []models.ActivityItem{
		act("a/b", models.SourceIssue, "1", "2023-01-01T00:00:00Z"),
		act("a/b", models.SourceIssue, "2", "2023-01-03T00:00:00Z"),
	}
	h := newHarness(items)

	res := h.monitor(t, 5).Run(context.Background())
	require.NoError(t, res.Err)

	assert.Equal(t, 1, h.notifier.calls)
	assert.Equal(t, []string{"1", "2"}, ids(h.notifier.items))
	assert.Equal(t, 2, h.notifier.totalFetched)
	assert.Equal(t, 5, h.notifier.maxItems)

	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, ts("2023-01-03T00:00:00Z"), h.store.state["a/b"].Watermark(models.SourceIssue))

	assert.Equal(t, models.RunStatusNotified, res.Run.Status)
	assert.Equal(t, 2, res.Run.Fetched)
	assert.Equal(t, 2, res.Run.Notified)
	assert.True(t, res.Run.StateSaved)
	assert.NotEmpty(t, res.Run.ID)
}

func TestRun_AdvancesPastCappedItems(t *testing.T) {
	items := seq("o/r", models.SourceIssue, 6, ts("2024-01-01T00:00:00Z"))
	// The oldest item is not sent, but the watermark still covers all fetched.
	h := newHarness(items)

	res := h.monitor(t, 2).Run(context.Background())
	require.NoError(t, res.Err)
	assert.Len(t, h.notifier.items, 2)
	assert.Equal(t, 6, h.notifier.totalFetched)
	assert.Equal(t, items[5].CreatedAt, h.store.state["o/r"].Watermark(models.SourceIssue))
}

func TestRun_NoActivityShortCircuits(t *testing.T) {
	h := newHarness(nil)

	res := h.monitor(t, 5).Run(context.Background())
	require.NoError(t, res.Err)
	assert.Zero(t, h.notifier.calls)
	assert.Zero(t, h.store.saves)
	assert.Equal(t, models.RunStatusNoActivity, res.Run.Status)
}

func TestRun_LoadErrorStartsFromEmptyState(t *testing.T) {
	h := newHarness([]models.ActivityItem{act("a/b", models.SourceIssue, "1", "2023-01-01T00:00:00Z")})
	h.store.loadErr = errors.New("corrupt")

	res := h.monitor(t, 5).Run(context.Background())
	require.NoError(t, res.Err)
	assert.NotNil(t, h.fetcher.seen)
	assert.Empty(t, h.fetcher.seen)
	assert.Equal(t, 1, h.store.saves)
}

func TestRun_PassesLoadedStateToFetcher(t *testing.T) {
	h := newHarness(nil)
	h.store.state = models.State{"a/b": {models.SourceIssue: {LastTimestamp: ts("2023-01-01T00:00:00Z")}}}

	h.monitor(t, 5).Run(context.Background())
	assert.Equal(t, ts("2023-01-01T00:00:00Z"), h.fetcher.seen["a/b"].Watermark(models.SourceIssue))
}

func TestRun_NotifyFailureDoesNotAdvanceState(t *testing.T) {
	h := newHarness([]models.ActivityItem{act("a/b", models.SourceIssue, "1", "2023-01-01T00:00:00Z")})
	h.notifier.err = errors.New("webhook returned 500")

	res := h.monitor(t, 5).Run(context.Background())
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "webhook returned 500")
	assert.Zero(t, h.store.saves)
	assert.Equal(t, models.RunStatusNotifyFailed, res.Run.Status)
	assert.False(t, res.Run.StateSaved)
	assert.Contains(t, res.Run.Error, "webhook returned 500")
}

func TestRun_NotifyFailureKeepsPersistedWatermark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	js := store.NewJSONStore(path)
	ctx := context.Background()

	prior := models.State{"a/b": {models.SourceIssue: {LastTimestamp: ts("2023-01-01T00:00:00Z")}}}
	require.NoError(t, js.Save(ctx, prior))

	logger, _ := testLogger()
	m := New(Deps{
		Fetcher:   &fakeFetcher{items: []models.ActivityItem{act("a/b", models.SourceIssue, "9", "2023-01-05T10:00:00Z")}},
		Processor: NewProcessor(ProcessorConfig{MaxItemsPerRun: 5}, nil, logger),
		Notifier:  &fakeNotifier{err: errors.New("discord down")},
		Store:     js,
		Logger:    logger,
	}, 5)

	res := m.Run(ctx)
	require.Error(t, res.Err)

	reloaded, err := store.NewJSONStore(path).Load(ctx)
	require.NoError(t, err)
	assert.True(t, reloaded["a/b"].Watermark(models.SourceIssue).Equal(ts("2023-01-01T00:00:00Z")))
}

func TestRun_SaveFailureStillReportsNotified(t *testing.T) {
	h := newHarness([]models.ActivityItem{act("a/b", models.SourceIssue, "1", "2023-01-01T00:00:00Z")})
	h.store.saveErr = errors.New("disk full")

	res := h.monitor(t, 5).Run(context.Background())
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, h.notifier.calls)
	assert.Equal(t, models.RunStatusNotified, res.Run.Status)
	assert.False(t, res.Run.StateSaved)
}

func TestRun_FetchErrorFails(t *testing.T) {
	h := newHarness(nil)
	h.fetcher.err = errors.New("boom")

	res := h.monitor(t, 5).Run(context.Background())
	require.Error(t, res.Err)
	assert.Equal(t, models.RunStatusFailed, res.Run.Status)
	assert.Zero(t, h.notifier.calls)
}

func TestRun_RecoversFromPanic(t *testing.T) {
	h := newHarness(nil)
	h.fetcher.panic = true

	var res Result
	assert.NotPanics(t, func() { res = h.monitor(t, 5).Run(context.Background()) })
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "fetcher blew up")
	assert.Equal(t, models.RunStatusFailed, res.Run.Status)
	require.Len(t, h.recorder.runs, 1)
	assert.Equal(t, models.RunStatusFailed, h.recorder.runs[0].Status)
}

func TestRun_DryRunSkipsNotifyAndSave(t *testing.T) {
	h := newHarness([]models.ActivityItem{act("a/b", models.SourceIssue, "1", "2023-01-01T00:00:00Z")})
	m := h.monitor(t, 5)
	m.DryRun = true

	res := m.Run(context.Background())
	require.NoError(t, res.Err)
	assert.Zero(t, h.notifier.calls)
	assert.Zero(t, h.store.saves)
	assert.Equal(t, models.RunStatusDryRun, res.Run.Status)
	assert.Len(t, res.Items, 1)
}

func TestRun_RecordsRunWithTimestamps(t *testing.T) {
	h := newHarness(nil)
	clock := ts("2024-05-01T12:00:00Z")
	logger, _ := testLogger()
	m := New(Deps{
		Fetcher:   h.fetcher,
		Processor: NewProcessor(ProcessorConfig{MaxItemsPerRun: 5}, nil, logger),
		Notifier:  h.notifier,
		Store:     h.store,
		Recorder:  h.recorder,
		Logger:    logger,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}, 5)

	res := m.Run(context.Background())
	require.Len(t, h.recorder.runs, 1)
	rec := h.recorder.runs[0]
	assert.Equal(t, res.Run.ID, rec.ID)
	assert.Equal(t, models.RunStatusNoActivity, rec.Status)
	assert.True(t, rec.FinishedAt.After(rec.StartedAt))
}
