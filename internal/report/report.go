// Package report summarizes how t_total scales with parallelism.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/basekick-labs/scalebench/pkg/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FractionSummary aggregates every cell of one sample fraction
type FractionSummary struct {
	Fraction float64
	Cells    int

	MeanTotal     float64
	StdDevTotal   float64
	MeanMovingAvg float64

	BestThreads  int
	BestTotal    float64
	WorstThreads int
	WorstTotal   float64

	// Speedup is t_total at the lowest parallelism over the best t_total
	BaselineThreads int
	Speedup         float64
}

// Summarize groups records by fraction, keeping first-seen fraction order
func Summarize(records []models.MetricsRecord) []FractionSummary {
	var order []float64
	groups := make(map[float64][]models.MetricsRecord)
	for _, r := range records {
		if _, ok := groups[r.Fraction]; !ok {
			order = append(order, r.Fraction)
		}
		groups[r.Fraction] = append(groups[r.Fraction], r)
	}

	out := make([]FractionSummary, 0, len(order))
	for _, f := range order {
		out = append(out, summarize(f, groups[f]))
	}
	return out
}

func summarize(fraction float64, cells []models.MetricsRecord) FractionSummary {
	totals := make([]float64, len(cells))
	moving := make([]float64, len(cells))
	baseline := 0
	for i, c := range cells {
		totals[i] = c.Total
		moving[i] = c.MovingAvg7d
		if c.Threads < cells[baseline].Threads {
			baseline = i
		}
	}

	best := floats.MinIdx(totals)
	worst := floats.MaxIdx(totals)

	s := FractionSummary{
		Fraction:        fraction,
		Cells:           len(cells),
		MeanTotal:       stat.Mean(totals, nil),
		MeanMovingAvg:   stat.Mean(moving, nil),
		BestThreads:     cells[best].Threads,
		BestTotal:       totals[best],
		WorstThreads:    cells[worst].Threads,
		WorstTotal:      totals[worst],
		BaselineThreads: cells[baseline].Threads,
	}
	if len(cells) > 1 {
		s.StdDevTotal = stat.StdDev(totals, nil)
	}
	if totals[best] > 0 {
		s.Speedup = totals[baseline] / totals[best]
	}
	return s
}

// Print writes summaries as an aligned table
func Print(w io.Writer, summaries []FractionSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "fraction\tcells\tmean_t_total\tstddev\tmean_t_moving_avg_7d\tbest\tworst\tspeedup")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%.2f\t%d\t%.3fs\t%.3fs\t%.3fs\t%d (%.3fs)\t%d (%.3fs)\t%.2fx vs %d\n",
			s.Fraction, s.Cells, s.MeanTotal, s.StdDevTotal, s.MeanMovingAvg,
			s.BestThreads, s.BestTotal, s.WorstThreads, s.WorstTotal,
			s.Speedup, s.BaselineThreads)
	}
	return tw.Flush()
}
