package battery

import (
	"fmt"
	"strings"

	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/pkg/models"
)

// Materialize is how a query result is forced
type Materialize int

const (
	// Count wraps the query in SELECT count(*) so the engine produces every row
	Count Materialize = iota
	// Collect reads every result row back to the client
	Collect
)

func (m Materialize) String() string {
	switch m {
	case Count:
		return "count"
	case Collect:
		return "collect"
	default:
		return fmt.Sprintf("Materialize(%d)", int(m))
	}
}

// Query is one timed entry of the battery
type Query struct {
	Name        string
	Metric      string // MetricsRecord timing field
	Materialize Materialize
	// InTotal marks queries covered by the t_total stopwatch
	InTotal bool
	// Build returns the result query over the given sample table
	Build func(table string) string
}

// Statement returns the SQL executed when the query is timed
func (q Query) Statement(table string) string {
	inner := q.Build(table)
	if q.Materialize == Count {
		return "SELECT count(*) FROM (" + inner + ")"
	}
	return inner
}

// RollingWindow is the number of dates averaged by the rolling query,
// the current date included
const RollingWindow = 7

// AccidentKeywords are matched in order against Description
var AccidentKeywords = []string{"colisão", "capotamento", "atropelamento", "batida"}

// accidentPattern captures the first keyword found
var accidentPattern = "(" + strings.Join(AccidentKeywords, "|") + ")"

var (
	colID          = database.QuoteIdent(models.ColumnID)
	colStartTime   = database.QuoteIdent(models.ColumnStartTime)
	colState       = database.QuoteIdent(models.ColumnState)
	colSeverity    = database.QuoteIdent(models.ColumnSeverity)
	colWeather     = database.QuoteIdent(models.ColumnWeatherCondition)
	colCrossing    = database.QuoteIdent(models.ColumnCrossing)
	colSignal      = database.QuoteIdent(models.ColumnTrafficSignal)
	colDescription = database.QuoteIdent(models.ColumnDescription)
)

// SevereThreshold is the lowest Severity counted as severe
const SevereThreshold = 4

func buildDailyCounts(table string) string {
	return fmt.Sprintf(`SELECT "date", daily_count,
  avg(daily_count) OVER (ORDER BY "date" ROWS BETWEEN %d PRECEDING AND CURRENT ROW) AS rolling_avg_7d
FROM (
  SELECT CAST(%s AS DATE) AS "date", count(%s) AS daily_count
  FROM %s
  GROUP BY 1
)`, RollingWindow-1, colStartTime, colID, database.QuoteIdent(table))
}

func buildStateCounts(table string) string {
	return fmt.Sprintf(`SELECT %s, count(%s) AS "Qtd_Acidentes" FROM %s GROUP BY 1`,
		colState, colID, database.QuoteIdent(table))
}

func buildSevereWeather(table string) string {
	return fmt.Sprintf(`SELECT %s, count(%s) AS "Qtd_Grave" FROM %s WHERE %s >= %d GROUP BY 1`,
		colWeather, colID, database.QuoteIdent(table), colSeverity, SevereThreshold)
}

func buildHourlySeverity(table string) string {
	return fmt.Sprintf(`SELECT hour(%s) AS hora, avg(%s) AS "Media_Severidade" FROM %s GROUP BY 1`,
		colStartTime, colSeverity, database.QuoteIdent(table))
}

func buildRoadConditions(table string) string {
	return fmt.Sprintf(`SELECT
  count(*) FILTER (WHERE %s = true) AS "Qtd_Cruzamentos",
  count(*) FILTER (WHERE %s = true) AS "Qtd_Sinais"
FROM %s`, colCrossing, colSignal, database.QuoteIdent(table))
}

func buildAccidentTypes(table string) string {
	return fmt.Sprintf(`SELECT regexp_extract(%s, '%s', 1) AS tipo_acidente, count(*) AS "count" FROM %s GROUP BY 1`,
		colDescription, database.EscapeSQLString(accidentPattern), database.QuoteIdent(table))
}

// Default returns the battery in execution order. The rolling-window
// query runs first and stays outside t_total.
func Default() []Query {
	return []Query{
		{Name: "moving_avg_7d", Metric: models.FieldMovingAvg7d, Materialize: Count, Build: buildDailyCounts},
		{Name: "acidentes_estado", Metric: models.FieldAcidentesEstado, Materialize: Count, InTotal: true, Build: buildStateCounts},
		{Name: "clima_grave", Metric: models.FieldClimaGrave, Materialize: Count, InTotal: true, Build: buildSevereWeather},
		{Name: "severidade_hora", Metric: models.FieldSeveridadeHora, Materialize: Count, InTotal: true, Build: buildHourlySeverity},
		{Name: "condicoes_via", Metric: models.FieldCondicoesVia, Materialize: Collect, InTotal: true, Build: buildRoadConditions},
		{Name: "tipo_acidente", Metric: models.FieldTipoAcidente, Materialize: Count, InTotal: true, Build: buildAccidentTypes},
	}
}
