package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricFieldsAlphabetical(t *testing.T) {
	assert.Equal(t, []string{
		"fraction", "n_cols", "n_rows",
		"t_acidentes_estado", "t_clima_grave", "t_condicoes_via",
		"t_moving_avg_7d", "t_severidade_hora", "t_tipo_acidente",
		"t_total", "threads",
	}, MetricFields())
}

func TestMetricFieldsReturnsCopy(t *testing.T) {
	f := MetricFields()
	f[0] = "mutated"
	assert.Equal(t, "fraction", MetricFields()[0])
}

func TestMetricsRecordStrings(t *testing.T) {
	r := MetricsRecord{
		Threads:         16,
		Fraction:        0.05,
		NRows:           384212,
		NCols:           46,
		MovingAvg7d:     0.031,
		AcidentesEstado: 0.5,
		ClimaGrave:      0.25,
		SeveridadeHora:  0.125,
		CondicoesVia:    1,
		TipoAcidente:    2.5,
		Total:           4.375,
	}

	got := r.Strings()
	require.Len(t, got, len(MetricFields()))

	byName := make(map[string]string, len(got))
	for i, name := range MetricFields() {
		byName[name] = got[i]
	}
	assert.Equal(t, "0.05", byName[FieldFraction])
	assert.Equal(t, "46", byName[FieldNCols])
	assert.Equal(t, "384212", byName[FieldNRows])
	assert.Equal(t, "16", byName[FieldThreads])
	assert.Equal(t, "0.031", byName[FieldMovingAvg7d])
	assert.Equal(t, "1", byName[FieldCondicoesVia])
	assert.Equal(t, "4.375", byName[FieldTotal])
}

func TestMetricsRecordValuesCoverEveryField(t *testing.T) {
	values := MetricsRecord{}.Values()
	for _, f := range MetricFields() {
		_, ok := values[f]
		assert.True(t, ok, "missing %s", f)
	}
	assert.Len(t, values, len(MetricFields()))
}

func TestSetTiming(t *testing.T) {
	var r MetricsRecord
	assert.True(t, r.SetTiming(FieldClimaGrave, 1.5))
	assert.True(t, r.SetTiming(FieldTotal, 3))
	assert.False(t, r.SetTiming(FieldNRows, 10))
	assert.False(t, r.SetTiming("t_unknown", 1))

	assert.Equal(t, 1.5, r.ClimaGrave)
	assert.Equal(t, 3.0, r.Total)
	assert.Zero(t, r.NRows)
}
