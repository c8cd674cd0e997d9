package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/basekick-labs/scalebench/internal/grid"
	"github.com/basekick-labs/scalebench/internal/history"
	"github.com/basekick-labs/scalebench/internal/logger"
	"github.com/basekick-labs/scalebench/internal/metrics"
	"github.com/basekick-labs/scalebench/internal/report"
	"github.com/basekick-labs/scalebench/internal/results"
	"github.com/basekick-labs/scalebench/internal/shutdown"
)

func runCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full fraction x parallelism sweep and write the metrics CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			return a.run(ctx, cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("output", "", "Destination URI for the metrics CSV (a trailing / writes part-00000.csv)")
	flags.StringSlice("fractions", nil, "Sample fractions, outer loop (e.g. 0.01,0.5,1.0)")
	flags.StringSlice("parallelism", nil, "Parallelism levels, inner loop (e.g. 2,4,8)")
	mustBind(v.BindPFlag("experiment.output_uri", flags.Lookup("output")))
	mustBind(v.BindPFlag("experiment.fractions", flags.Lookup("fractions")))
	mustBind(v.BindPFlag("experiment.parallelism", flags.Lookup("parallelism")))

	return cmd
}

func (a *app) run(ctx context.Context, cmd *cobra.Command) error {
	exp := a.cfg.Experiment
	runID := uuid.New().String()
	startedAt := time.Now()

	log := a.logger.With().Str("run_id", runID).Logger()
	log.Info().
		Str("version", Version).
		Str("input", exp.InputURI).
		Str("output", exp.OutputURI).
		Msg("Starting scalebench run")

	collector := metrics.NewCollector(runID, logger.Get("metrics"))
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		// Runs on interruption too, so partial sweeps still leave their histograms
		a.shutdown.RegisterHook("metrics-textfile", func(ctx context.Context) error {
			return collector.WriteTextfile(path)
		}, shutdown.PriorityMetrics)
	}

	var ledger *history.Store
	if a.cfg.History.Enabled {
		var err error
		ledger, err = history.Open(a.cfg.History.DBPath, logger.Get("history"))
		if err != nil {
			return err
		}
		a.shutdown.Register("history", ledger, shutdown.PriorityHistory)
	}

	dest, err := results.NewWriter(a.storage, logger.Get("results")).Open(ctx, exp.OutputURI)
	if err != nil {
		return err
	}
	a.shutdown.Register("results", dest, shutdown.PriorityStorage)

	table, err := a.load(ctx, exp.InputURI)
	if err != nil {
		return err
	}

	driver, err := grid.New(a.db, grid.Config{
		Fractions:   exp.Fractions,
		Parallelism: exp.Parallelism,
		Seed:        exp.Seed,
		Progress:    cmd.OutOrStdout(),
	}, collector, runID, logger.Get("grid"))
	if err != nil {
		return err
	}

	records, err := driver.Run(ctx, table)
	if err != nil {
		return err
	}

	if err := dest.Write(ctx, records); err != nil {
		return err
	}
	target := dest.URI()

	if ledger != nil {
		run := history.Run{
			ID:         runID,
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			InputURI:   exp.InputURI,
			OutputURI:  target,
		}
		if err := ledger.Record(ctx, run, records); err != nil {
			return fmt.Errorf("metrics written to %s but history failed: %w", target, err)
		}
	}

	summaries := report.Summarize(records)
	for _, s := range summaries {
		log.Info().
			Float64("fraction", s.Fraction).
			Float64("mean_total", s.MeanTotal).
			Int("best_threads", s.BestThreads).
			Float64("speedup", s.Speedup).
			Msg("Scaling summary")
	}
	if err := report.Print(cmd.OutOrStdout(), summaries); err != nil {
		return err
	}

	log.Info().
		Str("output", target).
		Int("cells", len(records)).
		Dur("elapsed", time.Since(startedAt)).
		Msg("Run completed")

	return nil
}
