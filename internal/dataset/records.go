package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/pkg/models"
)

// ReadRecords returns up to limit rows of table in insertion order, typed
// as AccidentRecord. limit <= 0 reads every row.
func ReadRecords(ctx context.Context, q database.Querier, table string, limit int) ([]models.AccidentRecord, error) {
	cols := []string{
		fmt.Sprintf("CAST(%s AS VARCHAR)", database.QuoteIdent(models.ColumnID)),
		fmt.Sprintf("TRY_CAST(%s AS TIMESTAMP)", database.QuoteIdent(models.ColumnStartTime)),
		fmt.Sprintf("CAST(%s AS VARCHAR)", database.QuoteIdent(models.ColumnState)),
		fmt.Sprintf("TRY_CAST(%s AS BIGINT)", database.QuoteIdent(models.ColumnSeverity)),
		fmt.Sprintf("CAST(%s AS VARCHAR)", database.QuoteIdent(models.ColumnWeatherCondition)),
		fmt.Sprintf("TRY_CAST(%s AS BOOLEAN)", database.QuoteIdent(models.ColumnCrossing)),
		fmt.Sprintf("TRY_CAST(%s AS BOOLEAN)", database.QuoteIdent(models.ColumnTrafficSignal)),
		fmt.Sprintf("CAST(%s AS VARCHAR)", database.QuoteIdent(models.ColumnDescription)),
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), database.QuoteIdent(table))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AccidentRecord
	for rows.Next() {
		var (
			id, state, weather, description sql.NullString
			start                           sql.NullTime
			severity                        sql.NullInt64
			crossing, signal                sql.NullBool
		)
		if err := rows.Scan(&id, &start, &state, &severity, &weather, &crossing, &signal, &description); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec := models.AccidentRecord{ID: id.String}
		if start.Valid {
			rec.StartTime = &start.Time
		}
		if state.Valid {
			rec.State = &state.String
		}
		if severity.Valid {
			rec.Severity = &severity.Int64
		}
		if weather.Valid {
			rec.WeatherCondition = &weather.String
		}
		if crossing.Valid {
			rec.Crossing = &crossing.Bool
		}
		if signal.Valid {
			rec.TrafficSignal = &signal.Bool
		}
		if description.Valid {
			rec.Description = &description.String
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}
