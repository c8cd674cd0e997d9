// Package history keeps a SQLite ledger of completed sweeps.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/basekick-labs/scalebench/pkg/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Run is one recorded sweep
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	InputURI   string
	OutputURI  string
	Cells      int
}

// Store is the ledger
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the ledger at path. ":memory:" keeps it
// in process.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One writer; an in-memory database lives only as long as its connection
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		input_uri TEXT NOT NULL,
		output_uri TEXT NOT NULL,
		cells INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cells (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		threads INTEGER NOT NULL,
		fraction REAL NOT NULL,
		n_rows INTEGER NOT NULL,
		n_cols INTEGER NOT NULL,
		t_moving_avg_7d REAL NOT NULL,
		t_acidentes_estado REAL NOT NULL,
		t_clima_grave REAL NOT NULL,
		t_severidade_hora REAL NOT NULL,
		t_condicoes_via REAL NOT NULL,
		t_tipo_acidente REAL NOT NULL,
		t_total REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history tables: %w", err)
	}
	return nil
}

// Record stores a run and its cells in one transaction
func (s *Store) Record(ctx context.Context, run Run, records []models.MetricsRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, input_uri, output_uri, cells) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.InputURI, run.OutputURI, len(records))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (run_id, seq, threads, fraction, n_rows, n_cols,
			t_moving_avg_7d, t_acidentes_estado, t_clima_grave, t_severidade_hora,
			t_condicoes_via, t_tipo_acidente, t_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx, run.ID, i, r.Threads, r.Fraction, r.NRows, r.NCols,
			r.MovingAvg7d, r.AcidentesEstado, r.ClimaGrave, r.SeveridadeHora,
			r.CondicoesVia, r.TipoAcidente, r.Total)
		if err != nil {
			return fmt.Errorf("failed to insert cell %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Int("cells", len(records)).
		Msg("Run recorded")

	return nil
}

// Runs returns every recorded run, most recent first
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, input_uri, output_uri, cells FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.InputURI, &r.OutputURI, &r.Cells); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Cells returns the records of one run in sweep order
func (s *Store) Cells(ctx context.Context, runID string) ([]models.MetricsRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT threads, fraction, n_rows, n_cols,
			t_moving_avg_7d, t_acidentes_estado, t_clima_grave, t_severidade_hora,
			t_condicoes_via, t_tipo_acidente, t_total
		FROM cells WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var records []models.MetricsRecord
	for rows.Next() {
		var r models.MetricsRecord
		if err := rows.Scan(&r.Threads, &r.Fraction, &r.NRows, &r.NCols,
			&r.MovingAvg7d, &r.AcidentesEstado, &r.ClimaGrave, &r.SeveridadeHora,
			&r.CondicoesVia, &r.TipoAcidente, &r.Total); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the ledger
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close history database: %w", err)
	}
	return nil
}
