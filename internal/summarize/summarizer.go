// Package summarize attaches short LLM-generated summaries to activity
// items.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/joescharf/ghwatch/internal/models"
)

// Placeholder summaries.
const (
	NoContentSummary = "No content to summarize"
	FailedSummary    = "Summary generation failed"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configure an LLMSummarizer.
type Options struct {
	Language     string // defaults to English
	MaxBodyChars int    // body runes included in the prompt; <= 0 means unlimited
	Concurrency  int    // parallel generations; <= 0 means GOMAXPROCS
	Logger       *slog.Logger
}

// LLMSummarizer summarizes each item independently through a Generator.
type LLMSummarizer struct {
	gen  Generator
	opts Options
}

// New returns an LLMSummarizer using gen.
func New(gen Generator, opts Options) *LLMSummarizer {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LLMSummarizer{gen: gen, opts: opts}
}

// Summarize returns copies of items with summaries set. Items that already
// have a summary are kept as is; items without a body get
// NoContentSummary; a failed generation yields FailedSummary for that item
// only. The input slice is not modified.
func (s *LLMSummarizer) Summarize(ctx context.Context, items []models.ActivityItem) ([]models.ActivityItem, error) {
	if len(items) == 0 {
		return items, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mapper := iter.Mapper[models.ActivityItem, models.ActivityItem]{MaxGoroutines: s.opts.Concurrency}
	out := mapper.Map(items, func(it *models.ActivityItem) models.ActivityItem {
		return s.summarizeOne(ctx, *it)
	})

	s.opts.Logger.Info("finished summarizing activities", "count", len(out))
	return out, nil
}

func (s *LLMSummarizer) summarizeOne(ctx context.Context, item models.ActivityItem) (out models.ActivityItem) {
	if item.HasSummary() {
		return item
	}
	if strings.TrimSpace(item.Body) == "" {
		return item.WithSummary(NoContentSummary)
	}

	defer func() {
		if r := recover(); r != nil {
			s.opts.Logger.Error("summary generation panicked", "repo", item.Repo, "id", item.ID, "panic", fmt.Sprint(r))
			out = item.WithSummary(FailedSummary)
		}
	}()

	text, err := s.gen.Generate(ctx, BuildPrompt(item, s.opts.Language, s.opts.MaxBodyChars))
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err == nil {
			err = fmt.Errorf("empty completion")
		}
		s.opts.Logger.Error("summary generation failed", "repo", item.Repo, "id", item.ID, "error", err)
		return item.WithSummary(FailedSummary)
	}
	s.opts.Logger.Debug("activity summarized", "repo", item.Repo, "id", item.ID)
	return item.WithSummary(text)
}

// Noop leaves items unchanged.
type Noop struct{}

// Summarize returns items unchanged.
func (Noop) Summarize(_ context.Context, items []models.ActivityItem) ([]models.ActivityItem, error) {
	return items, nil
}
