package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/ghwatch/internal/models"
)

// ActivityFetcher returns all activity newer than the given state.
type ActivityFetcher interface {
	FetchNewActivities(ctx context.Context, current models.State) ([]models.ActivityItem, error)
}

// StateStore loads and persists watermark state.
type StateStore interface {
	Load(ctx context.Context) (models.State, error)
	Save(ctx context.Context, state models.State) error
}

// Notifier delivers activity notifications. A returned error means the
// items may not have been delivered.
type Notifier interface {
	Send(ctx context.Context, items []models.ActivityItem, totalFetched, maxItems int) error
}

// RunRecorder persists run outcomes.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.Run) error
}

// Deps holds the collaborators of a Monitor.
type Deps struct {
	Fetcher   ActivityFetcher
	Processor *Processor
	Notifier  Notifier
	Store     StateStore
	Recorder  RunRecorder // optional
	Logger    *slog.Logger
	Now       func() time.Time
}

// Monitor sequences one run: load state, fetch, process, notify and
// persist the advanced state.
type Monitor struct {
	deps     Deps
	maxItems int
	DryRun   bool
}

// New creates a Monitor. maxItems is forwarded to the notifier for
// informational text.
func New(deps Deps, maxItems int) *Monitor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Monitor{deps: deps, maxItems: maxItems}
}

// Result describes the outcome of Run.
type Result struct {
	Run   models.Run
	Err   error
	Items []models.ActivityItem
}

// Run performs one monitoring pass. It never panics; failures are logged
// and reported in the Result. State only advances after the notifier
// accepted every item, so a failed delivery is retried by the next run.
func (m *Monitor) Run(ctx context.Context) (res Result) {
	log := m.deps.Logger
	start := m.deps.Now().UTC()
	res.Run = models.Run{
		ID:        ulid.MustNew(ulid.Timestamp(start), ulid.DefaultEntropy()).String(),
		StartedAt: start,
	}
	log = log.With("run_id", res.Run.ID)
	log.Info("monitor run starting")

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic during run: %v", r)
			res.Run.Status = models.RunStatusFailed
		}
		if res.Err != nil {
			res.Run.Error = res.Err.Error()
			log.Error("monitor run failed", "status", res.Run.Status, "error", res.Err)
		} else {
			log.Info("monitor run finished", "status", res.Run.Status, "fetched", res.Run.Fetched, "notified", res.Run.Notified)
		}
		res.Run.FinishedAt = m.deps.Now().UTC()
		m.record(ctx, log, &res.Run)
	}()

	current := m.loadState(ctx, log)

	fetched, err := m.deps.Fetcher.FetchNewActivities(ctx, current)
	if err != nil {
		res.Err = fmt.Errorf("fetch activities: %w", err)
		res.Run.Status = models.RunStatusFailed
		return res
	}
	res.Run.Fetched = len(fetched)
	if len(fetched) == 0 {
		log.Info("no new activities found")
		res.Run.Status = models.RunStatusNoActivity
		return res
	}
	log.Info("found new activities", "count", len(fetched))

	items := m.deps.Processor.ProcessForNotification(ctx, fetched)
	res.Items = items

	if m.DryRun {
		log.Info("dry run: skipping notification and state update", "would_notify", len(items))
		res.Run.Status = models.RunStatusDryRun
		return res
	}

	if err := m.deps.Notifier.Send(ctx, items, len(fetched), m.maxItems); err != nil {
		res.Err = fmt.Errorf("send notifications: %w", err)
		res.Run.Status = models.RunStatusNotifyFailed
		return res
	}
	res.Run.Notified = len(items)
	res.Run.Status = models.RunStatusNotified

	// Advance over everything fetched, not just what was capped for sending.
	next := CalculateNextState(current, fetched)
	if err := m.deps.Store.Save(ctx, next); err != nil {
		log.Error("failed to save state; next run may notify duplicates", "error", err)
		return res
	}
	res.Run.StateSaved = true
	return res
}

func (m *Monitor) loadState(ctx context.Context, log *slog.Logger) models.State {
	state, err := m.deps.Store.Load(ctx)
	if err != nil {
		log.Error("failed to load state, starting with empty state", "error", err)
		return models.State{}
	}
	if state == nil {
		return models.State{}
	}
	return state
}

func (m *Monitor) record(ctx context.Context, log *slog.Logger, run *models.Run) {
	if m.deps.Recorder == nil {
		return
	}
	if err := m.deps.Recorder.RecordRun(ctx, run); err != nil {
		log.Warn("failed to record run history", "error", err)
	}
}
