package store

import (
	"context"
	"fmt"

	"github.com/joescharf/ghwatch/internal/models"
)

// Backend names a StateStore implementation.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
)

// StateStore persists the watermark state.
type StateStore interface {
	// Load returns the persisted state. A store that has never been
	// written returns an empty state and a nil error.
	Load(ctx context.Context) (models.State, error)
	// Save replaces the persisted state.
	Save(ctx context.Context, state models.State) error
}

// RunHistory records and lists monitor runs.
type RunHistory interface {
	RecordRun(ctx context.Context, run *models.Run) error
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
}

// OpenState opens the state store for backend at path. The returned close
// function releases any resources held by the store.
func OpenState(ctx context.Context, backend Backend, path string) (StateStore, func() error, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(path), func() error { return nil }, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend: %s (use: json, sqlite)", backend)
	}
}
