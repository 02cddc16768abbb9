package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the SQLite deployment history store. It implements
// deploy.Recorder.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a store for the database at path. Call Init before use.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is required")
	}
	return &Store{path: path}, nil
}

// Init opens the database and runs migrations.
func (s *Store) Init(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	s.db = db
	return s.migrate()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// RecordStart inserts a new running deployment and returns its run ID.
func (s *Store) RecordStart(ctx context.Context, target deploy.Target, mode string) (string, error) {
	runID := uuid.New().String()

	query := `
		INSERT INTO deployments (id, app_name, app_folder, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		runID, target.AppName, target.AppFolder, mode, StatusRunning, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return runID, nil
}

// RecordStage appends one stage outcome to a run.
func (s *Store) RecordStage(ctx context.Context, runID, stage string, stageErr error, took time.Duration) error {
	status := StageOK
	var errMsg *string
	if stageErr != nil {
		status = StageFailed
		msg := stageErr.Error()
		errMsg = &msg
	}

	query := `
		INSERT INTO stages (run_id, name, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		runID, stage, status, errMsg, took.Milliseconds(), time.Now().UTC()); err != nil {
		return fmt.Errorf("recording stage %s: %w", stage, err)
	}
	return nil
}

// RecordFinish marks a run completed with its terminal status.
func (s *Store) RecordFinish(ctx context.Context, runID string, runErr error) error {
	status := StatusSucceeded
	var errMsg *string
	if runErr != nil {
		status = StatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	query := `
		UPDATE deployments
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, status, errMsg, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetDeployment retrieves one run by ID.
func (s *Store) GetDeployment(ctx context.Context, runID string) (*Deployment, error) {
	query := `
		SELECT id, app_name, app_folder, mode, status, error, started_at, completed_at
		FROM deployments
		WHERE id = ?
	`

	d := &Deployment{}
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&d.ID, &d.AppName, &d.AppFolder, &d.Mode, &d.Status, &d.Error, &d.StartedAt, &d.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return d, nil
}

// ListDeployments lists runs newest first.
func (s *Store) ListDeployments(ctx context.Context, limit, offset int) ([]*Deployment, error) {
	query := `
		SELECT id, app_name, app_folder, mode, status, error, started_at, completed_at
		FROM deployments
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	deployments := []*Deployment{}
	for rows.Next() {
		d := &Deployment{}
		if err := rows.Scan(
			&d.ID, &d.AppName, &d.AppFolder, &d.Mode, &d.Status, &d.Error, &d.StartedAt, &d.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return deployments, nil
}

// ListStages lists a run's stages in execution order.
func (s *Store) ListStages(ctx context.Context, runID string) ([]*Stage, error) {
	query := `
		SELECT id, run_id, name, status, error, duration_ms, created_at
		FROM stages
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("listing stages: %w", err)
	}
	defer rows.Close()

	stages := []*Stage{}
	for rows.Next() {
		stage := &Stage{}
		if err := rows.Scan(
			&stage.ID, &stage.RunID, &stage.Name, &stage.Status, &stage.Error, &stage.DurationMS, &stage.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stages: %w", err)
	}
	return stages, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
