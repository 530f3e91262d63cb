package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stockanalyzer/internal/analysis"
	"stockanalyzer/internal/chart"
	"stockanalyzer/internal/forecast"
	"stockanalyzer/internal/report"
	"stockanalyzer/internal/scheduler"
	"stockanalyzer/internal/web"
	"stockanalyzer/pkg/model"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	switch format {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	rng, err := rangeFromFlags()
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	tickers := args
	if len(tickers) == 0 {
		tickers = a.cfg.Universe.Defaults
	}
	if horizon == 0 && !cmd.Flags().Changed("horizon") {
		horizon = a.cfg.Analysis.Horizon
	}

	bar := newProgressBar(cmd, len(tickers))
	rep, err := a.service.Run(cmd.Context(), analysis.Request{
		Tickers:  tickers,
		Exchange: exchange,
		Range:    rng,
		Horizon:  horizon,
		Strategy: strategy,
		Refresh:  refresh,
		Progress: func(fetched, total int) {
			if bar.GetMax() != total {
				bar.ChangeMax(total)
			}
			bar.Set(fetched)
		},
	})
	bar.Finish()
	if err != nil {
		var runErr *analysis.RunError
		if errors.As(err, &runErr) {
			report.WarningsTable(os.Stderr, runErr.Warnings)
		}
		return err
	}

	if chartFile != "" {
		png, err := chart.Comparison(rep.Series, indexed, "Adjusted Close Prices")
		if err != nil {
			return fmt.Errorf("rendering chart: %w", err)
		}
		if err := os.WriteFile(chartFile, png, 0o644); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Chart written to %s\n", chartFile)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return report.WriteJSON(out, rep)
	case "csv":
		return report.WriteCSV(out, rep.Stats)
	default:
		report.RenderReport(out, rep)
		return nil
	}
}

func runForecast(cmd *cobra.Command, args []string) error {
	rng, err := rangeFromFlags()
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	fc, err := a.service.Forecast(cmd.Context(), args[0], exchange, rng, fcHorizon, strategy)
	if err != nil {
		return err
	}

	if chartFile != "" {
		hist, err := a.service.History(cmd.Context(), args[0], exchange, rng)
		if err != nil {
			return err
		}
		png, err := chart.Forecast(hist, fc.Points, fmt.Sprintf("%s forecast (%s)", fc.Ticker, fc.Strategy))
		if err != nil {
			return fmt.Errorf("rendering chart: %w", err)
		}
		if err := os.WriteFile(chartFile, png, 0o644); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Chart written to %s\n", chartFile)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return report.WriteJSON(out, fc)
	}
	fmt.Fprintf(out, "Forecast %s (%s), %d days\n", fc.Ticker, fc.Strategy, len(fc.Points))
	report.ForecastTable(out, fc.Points)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx := cmd.Context()
	if a.cfg.Schedule.Enabled {
		sched := scheduler.New(ctx, a.service, a.cfg.Schedule.Watchlist,
			model.DateRange{Period: a.cfg.Schedule.Period}, a.cached, a.service.Cache())
		if err := sched.Register(a.cfg.Schedule.Spec); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := web.NewServer(a.cfg, a.service)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("[WEB] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.service.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return report.WriteJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs.")
		return nil
	}
	report.HistoryTable(out, runs)
	return nil
}

func runStrategies(cmd *cobra.Command, args []string) error {
	report.StrategiesTable(cmd.OutOrStdout(), forecast.AllInfo())
	return nil
}
