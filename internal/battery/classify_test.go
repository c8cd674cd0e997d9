package battery

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestClassifyDescription(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"colisão frontal", "colisão"},
		{"capotamento na BR-116", "capotamento"},
		{"atropelamento de ciclista", "atropelamento"},
		{"batida leve no estacionamento", "batida"},
		{"batida seguida de capotamento", "batida"},
		{"Accident on I-5 at exit 12", ""},
		{"Colisão com maiúscula", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDescription(tt.text))
		})
	}
}

func TestClassifyDescriptionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("label is empty or one of the keywords", prop.ForAll(
		func(text string) bool {
			label := ClassifyDescription(text)
			if label == "" {
				return true
			}
			for _, k := range AccidentKeywords {
				if label == k {
					return true
				}
			}
			return false
		},
		gen.AnyString(),
	))

	properties.Property("a keyword embedded in text is found", prop.ForAll(
		func(prefix, suffix string, idx int) bool {
			keyword := AccidentKeywords[idx]
			return ClassifyDescription(prefix+" "+keyword+" "+suffix) != ""
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, len(AccidentKeywords)-1),
	))

	properties.TestingRun(t)
}

func TestRollingAverage(t *testing.T) {
	counts := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := RollingAverage(counts, RollingWindow)

	assert.Len(t, got, 10)
	assert.Equal(t, 1.0, got[0])
	assert.Equal(t, 1.5, got[1])
	assert.Equal(t, 4.0, got[6])
	assert.Equal(t, 7.0, got[9])

	assert.Empty(t, RollingAverage(nil, RollingWindow))
	assert.Equal(t, []float64{3, 5}, RollingAverage([]int64{3, 5}, 0))
}

func TestRollingAverageMatchesDefinition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("position i averages max(0, i-w+1)..i", prop.ForAll(
		func(counts []int64, window int) bool {
			got := RollingAverage(counts, window)
			for i := range counts {
				lo := i - window + 1
				if lo < 0 {
					lo = 0
				}
				var sum int64
				for _, c := range counts[lo : i+1] {
					sum += c
				}
				want := float64(sum) / float64(i-lo+1)
				if diff := got[i] - want; diff > 1e-9 || diff < -1e-9 {
					return false
				}
			}
			return len(got) == len(counts)
		},
		gen.SliceOf(gen.Int64Range(0, 10000)),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

func TestStatementWrapsCountQueries(t *testing.T) {
	for _, q := range Default() {
		stmt := q.Statement("sample_cell")
		switch q.Materialize {
		case Count:
			assert.Contains(t, stmt, "SELECT count(*) FROM (", q.Name)
		case Collect:
			assert.NotContains(t, stmt, "SELECT count(*) FROM (", q.Name)
		}
		assert.Contains(t, stmt, `"sample_cell"`, q.Name)
	}
}

func TestDefaultOrder(t *testing.T) {
	var names []string
	var inTotal int
	for _, q := range Default() {
		names = append(names, q.Name)
		if q.InTotal {
			inTotal++
		}
	}
	assert.Equal(t, []string{
		"moving_avg_7d", "acidentes_estado", "clima_grave",
		"severidade_hora", "condicoes_via", "tipo_acidente",
	}, names)
	assert.Equal(t, 5, inTotal)
	assert.False(t, Default()[0].InTotal)
	assert.Equal(t, Collect, Default()[4].Materialize)
}
