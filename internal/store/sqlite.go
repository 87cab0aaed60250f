package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joescharf/ghwatch/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements StateStore and RunHistory using modernc.org/sqlite
// (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes access; SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout has fixed-width fractional seconds so stored values sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- Watermarks ---

// Load returns every stored watermark.
func (s *SQLiteStore) Load(ctx context.Context) (models.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT repo, source_type, last_timestamp FROM watermarks ORDER BY repo, source_type`)
	if err != nil {
		return nil, fmt.Errorf("load watermarks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	state := models.State{}
	for rows.Next() {
		var repo, sourceType, ts string
		if err := rows.Scan(&repo, &sourceType, &ts); err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse watermark %s/%s: %w", repo, sourceType, err)
		}
		if state[repo] == nil {
			state[repo] = models.RepositoryState{}
		}
		state[repo][models.SourceType(sourceType)] = models.SourceState{LastTimestamp: t}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load watermarks: %w", err)
	}
	return state, nil
}

// Save replaces all watermarks in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, state models.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM watermarks"); err != nil {
		return fmt.Errorf("clear watermarks: %w", err)
	}
	for repo, rs := range state {
		for sourceType, src := range rs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO watermarks (repo, source_type, last_timestamp) VALUES (?, ?, ?)`,
				repo, string(sourceType), formatTime(src.LastTimestamp),
			)
			if err != nil {
				return fmt.Errorf("save watermark %s/%s: %w", repo, sourceType, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit watermarks: %w", err)
	}
	return nil
}

// --- Runs ---

// RecordRun inserts or replaces a run record.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *models.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, started_at, finished_at, status, fetched, notified, state_saved, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), string(run.Status),
		run.Fetched, run.Notified, boolToInt(run.StateSaved), run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	query := `SELECT id, started_at, finished_at, status, fetched, notified, state_saved, error
		FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*models.Run
	for rows.Next() {
		r := &models.Run{}
		var started, finished, status string
		if err := rows.Scan(&r.ID, &started, &finished, &status, &r.Fetched, &r.Notified, &r.StateSaved, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse run %s started_at: %w", r.ID, err)
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("parse run %s finished_at: %w", r.ID, err)
		}
		r.Status = models.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
