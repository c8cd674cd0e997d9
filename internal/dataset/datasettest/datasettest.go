// Package datasettest builds small accident CSV fixtures for tests.
package datasettest

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/dataset"
	"github.com/rs/zerolog"
)

// Header is the fixture column order. Extra columns beyond the required
// ones make sure nothing depends on the exact schema width.
var Header = []string{
	"ID", "Source", "Severity", "Start_Time", "State", "Weather_Condition",
	"Crossing", "Traffic_Signal", "Description", "Distance(mi)",
}

// Row is one fixture row. Empty strings are written as empty fields,
// which the CSV reader loads as NULL.
type Row struct {
	ID               string
	Severity         string
	StartTime        string
	State            string
	WeatherCondition string
	Crossing         bool
	TrafficSignal    bool
	Description      string
}

func (r Row) record() []string {
	return []string{
		r.ID, "Source2", r.Severity, r.StartTime, r.State, r.WeatherCondition,
		boolString(r.Crossing), boolString(r.TrafficSignal), r.Description, "0.01",
	}
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

var (
	states       = []string{"CA", "TX", "FL", "NY", "OH"}
	weather      = []string{"Clear", "Rain", "Snow", "Fog", "Heavy Rain"}
	descriptions = []string{
		"colisão frontal na via",
		"capotamento na rodovia",
		"atropelamento de pedestre",
		"batida traseira",
		"Accident on I-5 at exit 12",
		"Lane blocked due to accident",
	}
)

// Generate returns n rows spread over days starting at 2016-02-08,
// reproducible for a given seed
func Generate(n int, seed int64) []Row {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2016, 2, 8, 0, 0, 0, 0, time.UTC)

	rows := make([]Row, n)
	for i := range rows {
		ts := base.Add(time.Duration(i%30) * 24 * time.Hour).Add(time.Duration(rng.Intn(24*60)) * time.Minute)
		rows[i] = Row{
			ID:               fmt.Sprintf("A-%d", i+1),
			Severity:         fmt.Sprintf("%d", 1+rng.Intn(4)),
			StartTime:        ts.Format("2006-01-02 15:04:05"),
			State:            states[rng.Intn(len(states))],
			WeatherCondition: weather[rng.Intn(len(weather))],
			Crossing:         rng.Intn(4) == 0,
			TrafficSignal:    rng.Intn(3) == 0,
			Description:      descriptions[rng.Intn(len(descriptions))],
		}
	}
	return rows
}

// WriteCSV writes rows to a CSV file in a test temp dir and returns its path
func WriteCSV(t testing.TB, rows []Row) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "accidents.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		t.Fatalf("write fixture header: %v", err)
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			t.Fatalf("write fixture row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush fixture: %v", err)
	}
	return path
}

// NewDB opens an in-memory engine closed at test cleanup
func NewDB(t testing.TB) *database.DuckDB {
	t.Helper()

	db, err := database.New(&database.Config{MaxConnections: 2}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Load writes rows to a fixture file and loads it into db
func Load(t testing.TB, db *database.DuckDB, rows []Row) *dataset.Table {
	t.Helper()

	path := WriteCSV(t, rows)
	table, err := dataset.NewLoader(db, nil, "", zerolog.Nop()).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return table
}
