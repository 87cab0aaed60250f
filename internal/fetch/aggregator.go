package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/joescharf/ghwatch/internal/models"
)

// Aggregator fans fetches out across every configured repository and
// monitored source type and merges the results chronologically.
type Aggregator struct {
	fetchers    []Fetcher
	byType      map[models.SourceType]int // index into fetchers
	repos       []models.RepoConfig
	concurrency int
	logger      *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithConcurrency bounds the number of fetches in flight. Zero or less
// means unbounded.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// NewAggregator registers each fetcher under every source type it declares.
// When two fetchers claim the same type the later one wins.
func NewAggregator(fetchers []Fetcher, repos []models.RepoConfig, opts ...Option) *Aggregator {
	a := &Aggregator{
		byType: make(map[models.SourceType]int),
		repos:  repos,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, f := range fetchers {
		if f == nil {
			continue
		}
		idx := len(a.fetchers)
		a.fetchers = append(a.fetchers, f)
		for _, t := range f.SourceTypes() {
			if prev, ok := a.byType[t]; ok {
				a.logger.Debug("fetcher registration overridden", "source_type", t, "previous", Describe(a.fetchers[prev]), "current", Describe(f))
			}
			a.byType[t] = idx
		}
		a.logger.Debug("registered fetcher", "source_types", Describe(f))
	}

	if len(a.byType) == 0 {
		a.logger.Warn("aggregator initialized without any registered fetchers")
	}
	return a
}

// FetcherFor returns the fetcher registered for t.
func (a *Aggregator) FetcherFor(t models.SourceType) (Fetcher, bool) {
	idx, ok := a.byType[t]
	if !ok {
		return nil, false
	}
	return a.fetchers[idx], true
}

type job struct {
	repo    string
	state   models.RepositoryState
	fetcher Fetcher
	types   map[models.SourceType]bool // monitored types routed to fetcher
}

// plan resolves the (repo, fetcher) pairs to run. A fetcher serving
// several monitored types of one repo is scheduled once for that repo,
// also when the repo is listed more than once.
func (a *Aggregator) plan(current models.State) []*job {
	var jobs []*job
	scheduled := make(map[string]map[int]*job)
	for _, rc := range a.repos {
		byFetcher, ok := scheduled[rc.Name]
		if !ok {
			byFetcher = make(map[int]*job)
			scheduled[rc.Name] = byFetcher
		}
		for _, t := range rc.MonitorTypes {
			idx, ok := a.byType[t]
			if !ok {
				a.logger.Warn("no fetcher registered for source type", "repo", rc.Name, "source_type", t)
				continue
			}
			if j, ok := byFetcher[idx]; ok {
				j.types[t] = true
				continue
			}
			j := &job{
				repo:    rc.Name,
				state:   current.Repo(rc.Name).Clone(),
				fetcher: a.fetchers[idx],
				types:   map[models.SourceType]bool{t: true},
			}
			byFetcher[idx] = j
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// FetchNewActivities runs every planned fetch concurrently and waits for
// all of them. A failing fetch contributes nothing and never affects the
// others. The result is sorted by creation time, oldest first. The only
// error is cancellation of ctx.
func (a *Aggregator) FetchNewActivities(ctx context.Context, current models.State) ([]models.ActivityItem, error) {
	jobs := a.plan(current)
	a.logger.Info("starting aggregated fetch", "repos", len(a.repos), "fetches", len(jobs))

	p := pool.NewWithResults[[]models.ActivityItem]()
	if a.concurrency > 0 {
		p = p.WithMaxGoroutines(a.concurrency)
	}
	for _, j := range jobs {
		p.Go(func() []models.ActivityItem {
			return a.run(ctx, j)
		})
	}

	var all []models.ActivityItem
	for _, items := range p.Wait() {
		all = append(all, items...)
	}
	// A cancelled run may have silently lost fetches; report nothing.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch cancelled: %w", err)
	}
	SortChronological(all)

	a.logger.Info("aggregated fetch complete", "activities", len(all))
	return all, nil
}

// run executes one fetch, converting errors and panics into an empty
// contribution. Items of types the repo does not monitor are dropped.
func (a *Aggregator) run(ctx context.Context, j *job) (items []models.ActivityItem) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("fetcher panicked", "repo", j.repo, "source_types", Describe(j.fetcher), "panic", fmt.Sprint(r))
			items = nil
		}
	}()

	fetched, err := j.fetcher.FetchNewActivities(ctx, j.repo, j.state)
	if err != nil {
		a.logger.Error("fetcher failed", "repo", j.repo, "source_types", Describe(j.fetcher), "error", err)
		return nil
	}
	for _, it := range fetched {
		if j.types[it.SourceType] {
			items = append(items, it)
		}
	}
	return items
}

// SortChronological sorts items oldest first with a deterministic
// tie-break on repo, source type and id.
func SortChronological(items []models.ActivityItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Before(items[j])
	})
}
