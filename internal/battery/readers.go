package battery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/basekick-labs/scalebench/internal/database"
)

// The readers return the rows behind the timed queries. They share the
// query builders, so what they return is what the battery materializes.

// DailyCount is one date of the rolling-window result
type DailyCount struct {
	Date         time.Time
	DailyCount   int64
	RollingAvg7d float64
}

// StateCount is one row of the per-state counts
type StateCount struct {
	State sql.NullString
	Count int64
}

// WeatherCount is one row of the severe-weather counts
type WeatherCount struct {
	Condition sql.NullString
	Count     int64
}

// HourSeverity is one row of the hourly average severity
type HourSeverity struct {
	Hour        sql.NullInt64
	AvgSeverity sql.NullFloat64
}

// RoadConditions holds the crossing and traffic-signal counts
type RoadConditions struct {
	Crossings      int64
	TrafficSignals int64
}

// TypeCount is one row of the accident-type counts. Label is "" for
// descriptions with no keyword and NULL for a NULL description.
type TypeCount struct {
	Label sql.NullString
	Count int64
}

func ordered(inner string) string {
	return "SELECT * FROM (" + inner + ") ORDER BY 1 NULLS FIRST"
}

func scanAll[T any](ctx context.Context, q database.Querier, query string, scan func(*sql.Rows, *T) error) ([]T, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

// DailyCounts returns the per-date counts and rolling average, by date.
// Rows with a NULL Start_Time form their own NULL date, which sorts first.
func DailyCounts(ctx context.Context, q database.Querier, table string) ([]DailyCount, error) {
	return scanAll(ctx, q, ordered(buildDailyCounts(table)), func(r *sql.Rows, d *DailyCount) error {
		var date sql.NullTime
		if err := r.Scan(&date, &d.DailyCount, &d.RollingAvg7d); err != nil {
			return err
		}
		d.Date = date.Time
		return nil
	})
}

// StateCounts returns the per-state accident counts
func StateCounts(ctx context.Context, q database.Querier, table string) ([]StateCount, error) {
	return scanAll(ctx, q, ordered(buildStateCounts(table)), func(r *sql.Rows, s *StateCount) error {
		return r.Scan(&s.State, &s.Count)
	})
}

// SevereWeather returns accident counts per weather condition for
// Severity >= SevereThreshold
func SevereWeather(ctx context.Context, q database.Querier, table string) ([]WeatherCount, error) {
	return scanAll(ctx, q, ordered(buildSevereWeather(table)), func(r *sql.Rows, w *WeatherCount) error {
		return r.Scan(&w.Condition, &w.Count)
	})
}

// HourlySeverity returns the mean Severity per hour of day
func HourlySeverity(ctx context.Context, q database.Querier, table string) ([]HourSeverity, error) {
	return scanAll(ctx, q, ordered(buildHourlySeverity(table)), func(r *sql.Rows, h *HourSeverity) error {
		return r.Scan(&h.Hour, &h.AvgSeverity)
	})
}

// ReadRoadConditions returns the crossing and traffic-signal counts
func ReadRoadConditions(ctx context.Context, q database.Querier, table string) (RoadConditions, error) {
	rc, err := scanAll(ctx, q, buildRoadConditions(table), func(r *sql.Rows, c *RoadConditions) error {
		return r.Scan(&c.Crossings, &c.TrafficSignals)
	})
	if err != nil {
		return RoadConditions{}, err
	}
	if len(rc) != 1 {
		return RoadConditions{}, fmt.Errorf("road conditions returned %d rows", len(rc))
	}
	return rc[0], nil
}

// AccidentTypes returns the counts per extracted accident type
func AccidentTypes(ctx context.Context, q database.Querier, table string) ([]TypeCount, error) {
	return scanAll(ctx, q, ordered(buildAccidentTypes(table)), func(r *sql.Rows, t *TypeCount) error {
		return r.Scan(&t.Label, &t.Count)
	})
}
