package models

import (
	"sort"
	"strconv"
)

// Metric field names. These are also the CSV header names.
const (
	FieldThreads         = "threads"
	FieldFraction        = "fraction"
	FieldNRows           = "n_rows"
	FieldNCols           = "n_cols"
	FieldMovingAvg7d     = "t_moving_avg_7d"
	FieldAcidentesEstado = "t_acidentes_estado"
	FieldClimaGrave      = "t_clima_grave"
	FieldSeveridadeHora  = "t_severidade_hora"
	FieldCondicoesVia    = "t_condicoes_via"
	FieldTipoAcidente    = "t_tipo_acidente"
	FieldTotal           = "t_total"
)

// MetricsRecord is the measurement for one grid cell. Timings are seconds.
type MetricsRecord struct {
	Threads  int     `json:"threads"`
	Fraction float64 `json:"fraction"`
	NRows    int64   `json:"n_rows"`
	NCols    int     `json:"n_cols"`

	MovingAvg7d     float64 `json:"t_moving_avg_7d"`
	AcidentesEstado float64 `json:"t_acidentes_estado"`
	ClimaGrave      float64 `json:"t_clima_grave"`
	SeveridadeHora  float64 `json:"t_severidade_hora"`
	CondicoesVia    float64 `json:"t_condicoes_via"`
	TipoAcidente    float64 `json:"t_tipo_acidente"`

	// Total spans the five non-rolling queries; MovingAvg7d is not part of it
	Total float64 `json:"t_total"`
}

var metricFields = func() []string {
	f := []string{
		FieldThreads, FieldFraction, FieldNRows, FieldNCols,
		FieldMovingAvg7d, FieldAcidentesEstado, FieldClimaGrave,
		FieldSeveridadeHora, FieldCondicoesVia, FieldTipoAcidente, FieldTotal,
	}
	sort.Strings(f)
	return f
}()

// MetricFields returns the field names in output (alphabetical) order
func MetricFields() []string {
	out := make([]string, len(metricFields))
	copy(out, metricFields)
	return out
}

// Values returns the record as a field name -> value mapping
func (r MetricsRecord) Values() map[string]float64 {
	return map[string]float64{
		FieldThreads:         float64(r.Threads),
		FieldFraction:        r.Fraction,
		FieldNRows:           float64(r.NRows),
		FieldNCols:           float64(r.NCols),
		FieldMovingAvg7d:     r.MovingAvg7d,
		FieldAcidentesEstado: r.AcidentesEstado,
		FieldClimaGrave:      r.ClimaGrave,
		FieldSeveridadeHora:  r.SeveridadeHora,
		FieldCondicoesVia:    r.CondicoesVia,
		FieldTipoAcidente:    r.TipoAcidente,
		FieldTotal:           r.Total,
	}
}

// Strings renders the record in MetricFields order. Integer fields are
// printed without a decimal point; floats use the shortest representation
// that round-trips.
func (r MetricsRecord) Strings() []string {
	values := r.Values()
	out := make([]string, 0, len(metricFields))
	for _, f := range metricFields {
		switch f {
		case FieldThreads:
			out = append(out, strconv.Itoa(r.Threads))
		case FieldNRows:
			out = append(out, strconv.FormatInt(r.NRows, 10))
		case FieldNCols:
			out = append(out, strconv.Itoa(r.NCols))
		default:
			out = append(out, strconv.FormatFloat(values[f], 'f', -1, 64))
		}
	}
	return out
}

// SetTiming stores seconds under a timing field name. Unknown names are
// reported as false.
func (r *MetricsRecord) SetTiming(field string, seconds float64) bool {
	switch field {
	case FieldMovingAvg7d:
		r.MovingAvg7d = seconds
	case FieldAcidentesEstado:
		r.AcidentesEstado = seconds
	case FieldClimaGrave:
		r.ClimaGrave = seconds
	case FieldSeveridadeHora:
		r.SeveridadeHora = seconds
	case FieldCondicoesVia:
		r.CondicoesVia = seconds
	case FieldTipoAcidente:
		r.TipoAcidente = seconds
	case FieldTotal:
		r.Total = seconds
	default:
		return false
	}
	return true
}
