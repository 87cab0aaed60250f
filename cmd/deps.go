package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/joescharf/ghwatch/internal/config"
	"github.com/joescharf/ghwatch/internal/fetch"
	"github.com/joescharf/ghwatch/internal/github"
	"github.com/joescharf/ghwatch/internal/monitor"
	"github.com/joescharf/ghwatch/internal/notify"
	"github.com/joescharf/ghwatch/internal/store"
	"github.com/joescharf/ghwatch/internal/summarize"
)

// stores holds the opened state store and, when enabled, the run history.
type stores struct {
	state   store.StateStore
	history *store.SQLiteStore
	closers []func() error
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// recorder returns the run history as a monitor.RunRecorder, or nil when
// history is disabled.
func (s *stores) recorder() monitor.RunRecorder {
	if s.history == nil {
		return nil
	}
	return s.history
}

// openStores opens the state store and run history configured in viper.
// Commands that only inspect local state use this without validating the
// rest of the configuration.
func openStores(ctx context.Context, withHistory bool) (*stores, error) {
	s := &stores{}

	backend := store.Backend(viper.GetString("state.backend"))
	statePath := viper.GetString("state.path")
	st, closeState, err := store.OpenState(ctx, backend, statePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	s.state = st
	s.closers = append(s.closers, closeState)

	if !withHistory || !viper.GetBool("history.enabled") {
		return s, nil
	}

	dbPath := viper.GetString("history.db_path")
	if sq, ok := st.(*store.SQLiteStore); ok && samePath(dbPath, statePath) {
		s.history = sq
		return s, nil
	}

	h, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := h.Migrate(ctx); err != nil {
		_ = h.Close()
		_ = s.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	s.history = h
	s.closers = append(s.closers, h.Close)
	return s, nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// newMonitor wires a Monitor from cfg over the opened stores.
func newMonitor(ctx context.Context, cfg *config.Config, s *stores) (*monitor.Monitor, error) {
	client, err := github.NewClient(ctx, github.Config{
		Token:       cfg.GitHub.Token,
		Timeout:     cfg.Fetch.HTTPTimeout,
		PageSize:    cfg.Fetch.PageSize,
		RESTBaseURL: cfg.GitHub.APIURL,
		GraphQLURL:  cfg.GitHub.GraphQLURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create github client: %w", err)
	}

	aggregator := fetch.NewAggregator(client.Fetchers(), cfg.Repos,
		fetch.WithLogger(logger),
		fetch.WithConcurrency(cfg.Fetch.Concurrency),
	)

	var summarizer monitor.Summarizer
	if cfg.Summarization.Enabled {
		gen, err := summarize.NewGenerator(ctx, cfg.ProviderConfig())
		if err != nil {
			return nil, fmt.Errorf("create summarizer: %w", err)
		}
		summarizer = summarize.New(gen, summarize.Options{
			Language:     cfg.Summarization.Language,
			MaxBodyChars: cfg.Summarization.MaxBodyChars,
			Concurrency:  cfg.Summarization.Concurrency,
			Logger:       logger,
		})
	}

	processor := monitor.NewProcessor(monitor.ProcessorConfig{
		MaxItemsPerRun:       cfg.MaxItemsPerRun,
		CapScope:             monitor.CapScope(cfg.CapScope),
		SummarizationEnabled: cfg.Summarization.Enabled,
	}, summarizer, logger)

	m := monitor.New(monitor.Deps{
		Fetcher:   aggregator,
		Processor: processor,
		Notifier:  newNotifier(cfg),
		Store:     s.state,
		Recorder:  s.recorder(),
		Logger:    logger,
	}, cfg.MaxItemsPerRun)
	return m, nil
}

// newNotifier fans out to every configured webhook.
func newNotifier(cfg *config.Config) *notify.MultiNotifier {
	var ns []notify.Notifier
	if u := cfg.Notifier.DiscordWebhookURL; u != "" {
		ns = append(ns, notify.NewDiscord(u, notify.WithLogger(logger)))
	}
	if u := cfg.Notifier.SlackWebhookURL; u != "" {
		ns = append(ns, notify.NewSlack(u, notify.WithLogger(logger)))
	}
	return notify.NewMulti(ns...)
}
