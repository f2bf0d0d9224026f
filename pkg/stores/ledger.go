// Package stores persists a local ledger of command runs and their step
// outcomes, so an operator can see what a previous install or deploy did
// and where it stopped.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger stores runs and step events in a local SQLite database.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the ledger database at path and applies
// pending migrations. Use ":memory:" for an ephemeral ledger.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	l := &Ledger{db: db, path: path}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(l.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// CreateRun inserts a new run in the running state.
func (l *Ledger) CreateRun(ctx context.Context, id, command, project string) error {
	query := `
		INSERT INTO runs (id, command, project, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query, id, command, project, RunStatusRunning, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun marks a run completed or halted. runErr may be nil.
func (l *Ledger) FinishRun(ctx context.Context, id string, status RunStatus, runErr error) error {
	var errText *string
	if runErr != nil {
		s := runErr.Error()
		errText = &s
	}
	query := `
		UPDATE runs SET status = ?, completed_at = ?, error = ?
		WHERE id = ?
	`
	_, err := l.db.ExecContext(ctx, query, status, time.Now().UTC(), errText, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun retrieves one run by id.
func (l *Ledger) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, command, project, status, started_at, completed_at, error
		FROM runs WHERE id = ?
	`
	run := &Run{}
	err := l.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Command, &run.Project, &run.Status,
		&run.StartedAt, &run.CompletedAt, &run.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// RecordStep appends a step event to a run. Implements pipeline.Ledger.
func (l *Ledger) RecordStep(ctx context.Context, runID string, seq int, step, status, message string) error {
	query := `
		INSERT INTO step_events (run_id, seq, step, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query, runID, seq, step, status, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// StepEvents lists a run's step events in execution order.
func (l *Ledger) StepEvents(ctx context.Context, runID string) ([]StepEvent, error) {
	query := `
		SELECT run_id, seq, step, status, message, created_at
		FROM step_events WHERE run_id = ? ORDER BY seq
	`
	rows, err := l.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list step events: %w", err)
	}
	defer rows.Close()

	var events []StepEvent
	for rows.Next() {
		var ev StepEvent
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Step, &ev.Status, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
