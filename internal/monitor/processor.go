package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/joescharf/ghwatch/internal/fetch"
	"github.com/joescharf/ghwatch/internal/models"
)

// CapScope selects how the per-run item cap is applied.
type CapScope string

const (
	// CapPerRepo caps the number of items per repository.
	CapPerRepo CapScope = "repo"
	// CapPerRepoType caps the number of items per repository and source type.
	CapPerRepoType CapScope = "repo_type"
)

// Summarizer fills in item summaries.
type Summarizer interface {
	Summarize(ctx context.Context, items []models.ActivityItem) ([]models.ActivityItem, error)
}

// ProcessorConfig controls notification preparation.
type ProcessorConfig struct {
	MaxItemsPerRun       int
	CapScope             CapScope
	SummarizationEnabled bool
}

// Processor caps, orders and optionally summarizes fetched activity.
type Processor struct {
	cfg        ProcessorConfig
	summarizer Summarizer
	logger     *slog.Logger
}

// NewProcessor creates a Processor. summarizer may be nil when
// summarization is disabled.
func NewProcessor(cfg ProcessorConfig, summarizer Summarizer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CapScope == "" {
		cfg.CapScope = CapPerRepo
	}
	return &Processor{cfg: cfg, summarizer: summarizer, logger: logger}
}

// ProcessForNotification returns the items to notify: at most
// MaxItemsPerRun of the newest items per group, oldest first, summarized
// when enabled. Items without a repo are dropped. A summarization failure
// yields the unsummarized items.
func (p *Processor) ProcessForNotification(ctx context.Context, activities []models.ActivityItem) []models.ActivityItem {
	groups, order := p.group(activities)

	var capped []models.ActivityItem
	for _, key := range order {
		capped = append(capped, newest(groups[key], p.cfg.MaxItemsPerRun)...)
	}
	fetch.SortChronological(capped)

	if len(capped) == 0 || !p.cfg.SummarizationEnabled || p.summarizer == nil {
		return capped
	}
	return p.summarize(ctx, capped)
}

func (p *Processor) group(activities []models.ActivityItem) (map[string][]models.ActivityItem, []string) {
	groups := make(map[string][]models.ActivityItem)
	var order []string
	for _, a := range activities {
		if a.Repo == "" {
			continue
		}
		key := a.Repo
		if p.cfg.CapScope == CapPerRepoType {
			key = a.Repo + "\x00" + string(a.SourceType)
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], a)
	}
	return groups, order
}

// newest returns up to n of the most recent items.
func newest(items []models.ActivityItem, n int) []models.ActivityItem {
	if n <= 0 {
		return nil
	}
	sorted := make([]models.ActivityItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[j].Before(sorted[i])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func (p *Processor) summarize(ctx context.Context, items []models.ActivityItem) (out []models.ActivityItem) {
	p.logger.Info("summarizing activities", "count", len(items))
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("summarization panicked", "panic", fmt.Sprint(r))
			out = items
		}
	}()

	summarized, err := p.summarizer.Summarize(ctx, items)
	if err != nil {
		p.logger.Error("summarization failed, sending unsummarized activities", "error", err)
		return items
	}
	return summarized
}
