package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/dataset"
	"github.com/basekick-labs/scalebench/internal/grid"
	"github.com/basekick-labs/scalebench/internal/history"
	"github.com/basekick-labs/scalebench/internal/logger"
	"github.com/basekick-labs/scalebench/internal/metrics"
	"github.com/basekick-labs/scalebench/internal/results"
	"github.com/klauspost/compress/gzip"
)

// generateCSV writes n synthetic accident rows with DuckDB itself
func generateCSV(t *testing.T, db *database.DuckDB, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "generated.csv")
	query := fmt.Sprintf(`
		COPY (
			SELECT
				'A-' || i::VARCHAR AS "ID",
				1 + (i %% 4) AS "Severity",
				TIMESTAMP '2016-02-08 00:00:00' + INTERVAL (i * 37) MINUTE AS "Start_Time",
				['OH', 'CA', 'TX', 'FL'][1 + (i %% 4)] AS "State",
				['Rain', 'Snow', 'Clear', 'Fog', 'Overcast'][1 + (i %% 5)] AS "Weather_Condition",
				i %% 7 = 0 AS "Crossing",
				i %% 3 = 0 AS "Traffic_Signal",
				['Accident on I-70', 'Collision at exit', 'Crash near bridge', 'Slow traffic'][1 + (i %% 4)] AS "Description",
				i * 0.01 AS "Distance(mi)"
			FROM range(%d) t(i)
		) TO '%s' (HEADER, DELIMITER ',')`, n, database.EscapeSQLString(path))

	if _, err := db.Exec(context.Background(), query); err != nil {
		t.Fatalf("Failed to generate CSV: %v", err)
	}
	return path
}

func newDB(t *testing.T) *database.DuckDB {
	t.Helper()
	logger.Setup("info", "json")

	db, err := database.New(&database.Config{
		MaxConnections: 3,
		MemoryLimit:    "1GB",
		TempDirectory:  filepath.Join(t.TempDir(), "spill"),
	}, logger.Get("test"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPipelineGeneratedData(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	input := generateCSV(t, db, 5000)

	table, err := dataset.NewLoader(db, nil, t.TempDir(), logger.Get("dataset")).Load(ctx, input)
	if err != nil {
		t.Fatalf("Failed to load dataset: %v", err)
	}
	if table.Rows != 5000 {
		t.Fatalf("Expected 5000 rows, got %d", table.Rows)
	}
	if table.NumColumns() != 9 {
		t.Errorf("Expected 9 columns, got %d", table.NumColumns())
	}

	collector := metrics.NewCollector("integration", logger.Get("metrics"))
	driver, err := grid.New(db, grid.Config{
		Fractions:   []float64{0.1, 1.0},
		Parallelism: []int{1, 4},
		Seed:        42,
		Progress:    os.Stderr,
	}, collector, "integration", logger.Get("grid"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	records, err := driver.Run(ctx, table)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(records))
	}

	// Same fraction, same seed: the sample does not depend on parallelism
	if records[0].NRows != records[1].NRows {
		t.Errorf("Sample size changed with parallelism: %d vs %d", records[0].NRows, records[1].NRows)
	}
	if records[2].NRows != 5000 || records[3].NRows != 5000 {
		t.Errorf("Full fraction should keep every row, got %d and %d", records[2].NRows, records[3].NRows)
	}
	if records[0].NRows == 0 || records[0].NRows >= 5000 {
		t.Errorf("Unexpected 10%% sample size %d", records[0].NRows)
	}

	out := filepath.Join(t.TempDir(), "metrics.csv.gz")
	target, err := results.NewWriter(nil, logger.Get("results")).Write(ctx, out, records)
	if err != nil {
		t.Fatalf("Failed to write results: %v", err)
	}

	f, err := os.Open(target)
	if err != nil {
		t.Fatalf("Failed to open results: %v", err)
	}
	defer f.Close()
	if _, err := gzip.NewReader(f); err != nil {
		t.Fatalf("Results are not gzip: %v", err)
	}

	store, err := history.Open(":memory:", logger.Get("history"))
	if err != nil {
		t.Fatalf("Failed to open history: %v", err)
	}
	defer store.Close()

	if err := store.Record(ctx, history.Run{ID: "integration", InputURI: input, OutputURI: target}, records); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}
	cells, err := store.Cells(ctx, "integration")
	if err != nil {
		t.Fatalf("Failed to read cells: %v", err)
	}
	if len(cells) != len(records) {
		t.Fatalf("Expected %d cells, got %d", len(records), len(cells))
	}
	for i := range cells {
		if cells[i] != records[i] {
			t.Errorf("Cell %d differs after round trip: %+v vs %+v", i, cells[i], records[i])
		}
	}
}

func TestConnectionPool(t *testing.T) {
	db := newDB(t)

	stats := db.Stats()
	if stats.MaxOpenConnections != 3 {
		t.Errorf("Expected max open connections=3, got %d", stats.MaxOpenConnections)
	}

	t.Logf("Pool stats: Open=%d, InUse=%d, Idle=%d",
		stats.OpenConnections, stats.InUse, stats.Idle)
}
