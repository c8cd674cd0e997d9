// Package dataset loads the accident CSV into the engine as the source
// table every grid cell samples from.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/storage"
	"github.com/basekick-labs/scalebench/pkg/models"
	"github.com/rs/zerolog"
)

// TableName is the engine table holding the full, unsampled dataset
const TableName = "accidents"

// ErrMissingColumn is returned when the input lacks a column the battery reads
var ErrMissingColumn = errors.New("missing required column")

// Column is one inferred column of the loaded table
type Column struct {
	Name string
	Type string
}

// Table describes the loaded source table. Its schema is fixed once Load
// returns.
type Table struct {
	Name    string
	Columns []Column
	Rows    int64
}

// NumColumns returns the column count of the unsampled table
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// ColumnType returns the inferred type of a column, or "" if absent
func (t *Table) ColumnType(name string) string {
	return columnType(t.Columns, name)
}

// Loader reads the input object into the engine
type Loader struct {
	db         *database.DuckDB
	storage    *storage.Config
	stagingDir string
	logger     zerolog.Logger
}

// NewLoader creates a loader. Remote objects are staged under stagingDir
// (os.TempDir() when empty) before the engine reads them.
func NewLoader(db *database.DuckDB, storageCfg *storage.Config, stagingDir string, logger zerolog.Logger) *Loader {
	return &Loader{
		db:         db,
		storage:    storageCfg,
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// Load reads the CSV at uri with header-derived names and inferred types.
// Any failure is a load error; nothing is retried.
func (l *Loader) Load(ctx context.Context, uri string) (*Table, error) {
	start := time.Now()

	loc, err := storage.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", uri, err)
	}

	localPath := loc.LocalPath()
	if !loc.IsLocal() {
		staged, err := l.stage(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", uri, err)
		}
		defer os.Remove(staged)
		localPath = staged
	} else if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", uri, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("load %s: %w", uri, err)
	}

	table, err := l.createTable(ctx, localPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", uri, err)
	}

	l.logger.Info().
		Str("uri", uri).
		Int("columns", table.NumColumns()).
		Int64("rows", table.Rows).
		Dur("elapsed", time.Since(start)).
		Msg("Dataset loaded")

	return table, nil
}

// stage copies a remote object to a local temp file and returns its path
func (l *Loader) stage(ctx context.Context, uri string) (string, error) {
	backend, key, err := storage.Resolve(ctx, uri, l.storage, l.logger)
	if err != nil {
		return "", err
	}
	defer backend.Close()

	dir := l.stagingDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	// Keep the object's suffix so the reader can detect .csv.gz
	f, err := os.CreateTemp(dir, "scalebench-*-"+path.Base(key))
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}

	start := time.Now()
	if err := backend.ReadTo(ctx, key, f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}

	l.logger.Debug().
		Str("uri", uri).
		Str("staged", f.Name()).
		Str("storage", backend.Type()).
		Dur("elapsed", time.Since(start)).
		Msg("Input staged")

	return f.Name(), nil
}

func (l *Loader) createTable(ctx context.Context, filePath string) (*Table, error) {
	create := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv('%s', auto_detect=true, header=true)",
		database.QuoteIdent(TableName), database.EscapeSQLString(filePath))
	if _, err := l.db.Exec(ctx, create); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	columns, err := describe(ctx, l.db, TableName)
	if err != nil {
		return nil, err
	}

	if err := checkRequired(columns); err != nil {
		return nil, err
	}

	if typ := columnType(columns, models.ColumnStartTime); typ == "VARCHAR" {
		if err := normalizeStartTime(ctx, l.db); err != nil {
			return nil, err
		}
		if columns, err = describe(ctx, l.db, TableName); err != nil {
			return nil, err
		}
	}

	rows, err := database.Count(ctx, l.db, "SELECT count(*) FROM "+database.QuoteIdent(TableName))
	if err != nil {
		return nil, err
	}

	return &Table{Name: TableName, Columns: columns, Rows: rows}, nil
}

func describe(ctx context.Context, q database.Querier, table string) ([]Column, error) {
	rows, err := q.Query(ctx, fmt.Sprintf("SELECT column_name, column_type FROM (DESCRIBE %s)", database.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	return columns, nil
}

func checkRequired(columns []Column) error {
	var missing []string
	for _, name := range models.RequiredColumns {
		if columnType(columns, name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func columnType(columns []Column, name string) string {
	for _, c := range columns {
		if c.Name == name {
			return c.Type
		}
	}
	return ""
}

// normalizeStartTime converts a text Start_Time to TIMESTAMP. Some exports
// carry nanosecond fractions the cast rejects, so those fall back to the
// seconds prefix. Anything else unparsable becomes NULL.
func normalizeStartTime(ctx context.Context, db *database.DuckDB) error {
	col := database.QuoteIdent(models.ColumnStartTime)
	stmt := fmt.Sprintf(
		"ALTER TABLE %s ALTER %s TYPE TIMESTAMP USING COALESCE(TRY_CAST(%s AS TIMESTAMP), TRY_CAST(left(%s, 19) AS TIMESTAMP))",
		database.QuoteIdent(TableName), col, col, col)
	if _, err := db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to normalize %s: %w", models.ColumnStartTime, err)
	}
	return nil
}
