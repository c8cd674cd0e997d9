package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/basekick-labs/scalebench/internal/battery"
	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/dataset"
	"github.com/basekick-labs/scalebench/internal/logger"
	"github.com/basekick-labs/scalebench/internal/sampler"
)

func inspectCmd(v *viper.Viper) *cobra.Command {
	var (
		fraction    float64
		parallelism int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Sample the dataset once and print what each battery query returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sampler.ValidateFraction(fraction); err != nil {
				return err
			}
			if err := database.Parallelism(parallelism).Validate(); err != nil {
				return err
			}

			cfg, err := loadConfig(v)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := a.shutdown.Watch(cmd.Context())
			defer stop()

			return a.inspect(ctx, cmd.OutOrStdout(), fraction, parallelism, limit)
		},
	}

	cmd.Flags().Float64Var(&fraction, "fraction", 0.01, "Sample fraction in (0, 1]")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "Parallelism level for the sample")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows printed per query (0 prints all)")

	return cmd
}

func (a *app) inspect(ctx context.Context, out io.Writer, fraction float64, threads, limit int) error {
	table, err := a.load(ctx, a.cfg.Experiment.InputURI)
	if err != nil {
		return err
	}

	s := sampler.New(a.cfg.Experiment.Seed, logger.Get("sampler"))

	return a.db.WithResources(ctx, database.Parallelism(threads), func(sess *database.Session) error {
		sample, err := s.Sample(ctx, sess, table.Name, fraction)
		if err != nil {
			return err
		}
		n, err := sample.Measure(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "source=%s columns=%d rows=%d fraction=%g threads=%d sample_rows=%d\n",
			table.Name, table.NumColumns(), table.Rows, fraction, threads, n)

		return printReaders(ctx, out, sess, sample.Table, limit)
	})
}

func printReaders(ctx context.Context, out io.Writer, q database.Querier, table string, limit int) error {
	recs, err := dataset.ReadRecords(ctx, q, table, limit)
	if err != nil {
		return err
	}
	section(out, "sample", len(recs), "id\tstart_time\tstate\tseverity\tweather_condition", func(w io.Writer, i int) {
		r := recs[i]
		start := "NULL"
		if r.StartTime != nil {
			start = r.StartTime.Format("2006-01-02 15:04:05")
		}
		severity := "NULL"
		if r.Severity != nil {
			severity = fmt.Sprintf("%d", *r.Severity)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, start, deref(r.State), severity, deref(r.WeatherCondition))
	}, 0)

	daily, err := battery.DailyCounts(ctx, q, table)
	if err != nil {
		return err
	}
	section(out, "moving_avg_7d", len(daily), "date\tdaily_count\trolling_avg_7d", func(w io.Writer, i int) {
		d := daily[i]
		fmt.Fprintf(w, "%s\t%d\t%.3f\n", d.Date.Format("2006-01-02"), d.DailyCount, d.RollingAvg7d)
	}, limit)

	states, err := battery.StateCounts(ctx, q, table)
	if err != nil {
		return err
	}
	section(out, "acidentes_estado", len(states), "state\tcount", func(w io.Writer, i int) {
		fmt.Fprintf(w, "%s\t%d\n", nullString(states[i].State), states[i].Count)
	}, limit)

	weather, err := battery.SevereWeather(ctx, q, table)
	if err != nil {
		return err
	}
	section(out, "clima_grave", len(weather), "weather_condition\tcount", func(w io.Writer, i int) {
		fmt.Fprintf(w, "%s\t%d\n", nullString(weather[i].Condition), weather[i].Count)
	}, limit)

	hours, err := battery.HourlySeverity(ctx, q, table)
	if err != nil {
		return err
	}
	section(out, "severidade_hora", len(hours), "hour\tavg_severity", func(w io.Writer, i int) {
		h := hours[i]
		hour, avg := "NULL", "NULL"
		if h.Hour.Valid {
			hour = fmt.Sprintf("%d", h.Hour.Int64)
		}
		if h.AvgSeverity.Valid {
			avg = fmt.Sprintf("%.3f", h.AvgSeverity.Float64)
		}
		fmt.Fprintf(w, "%s\t%s\n", hour, avg)
	}, limit)

	road, err := battery.ReadRoadConditions(ctx, q, table)
	if err != nil {
		return err
	}
	section(out, "condicoes_via", 1, "crossings\ttraffic_signals", func(w io.Writer, _ int) {
		fmt.Fprintf(w, "%d\t%d\n", road.Crossings, road.TrafficSignals)
	}, limit)

	types, err := battery.AccidentTypes(ctx, q, table)
	if err != nil {
		return err
	}
	section(out, "tipo_acidente", len(types), "accident_type\tcount", func(w io.Writer, i int) {
		fmt.Fprintf(w, "%s\t%d\n", nullString(types[i].Label), types[i].Count)
	}, limit)

	return nil
}

func section(out io.Writer, name string, n int, header string, row func(w io.Writer, i int), limit int) {
	fmt.Fprintf(out, "\n== %s (%d rows)\n", name, n)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	shown := n
	if limit > 0 && shown > limit {
		shown = limit
	}
	for i := 0; i < shown; i++ {
		row(tw, i)
	}
	tw.Flush()

	if shown < n {
		fmt.Fprintf(out, "... %d more\n", n-shown)
	}
}

func deref(s *string) string {
	if s == nil {
		return "NULL"
	}
	return *s
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return "NULL"
	}
	return s.String
}
