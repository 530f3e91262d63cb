package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"stockanalyzer/internal/analysis"
	"stockanalyzer/internal/config"
	"stockanalyzer/internal/forecast"
	"stockanalyzer/internal/provider"
	"stockanalyzer/internal/recorder"
	"stockanalyzer/pkg/model"
)

// app bundles what every command needs
type app struct {
	cfg      *config.Config
	cached   *provider.CachingProvider
	recorder recorder.Recorder
	service  *analysis.Service
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Printf("[STORE] close: %v", err)
	}
}

func setup() (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	providers := createProviders(cfg)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no API providers available. Enable yahoo or set FINNHUB_API_KEY or ALPHAVANTAGE_API_KEY")
	}
	fallback := provider.NewFallbackProvider(providers...)
	if verbose {
		names := make([]string, 0, len(providers))
		for _, p := range fallback.Providers() {
			names = append(names, p.Name())
		}
		fmt.Printf("Using providers: %s\n", strings.Join(names, ", "))
	}
	cached := provider.NewCachingProvider(fallback, cfg.Cache.TTL)

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Store.Enabled {
		sqlite, err := recorder.NewSQLiteRecorder(cfg.Store.Path)
		if err != nil {
			log.Printf("[STORE] disabled, cannot open %s: %v", cfg.Store.Path, err)
		} else {
			rec = sqlite
		}
	}

	start, _ := cfg.DefaultStartDate()
	svc := analysis.NewService(analysis.Options{
		Provider:        cached,
		Workers:         cfg.Fetch.Workers,
		Timeout:         cfg.Fetch.Timeout,
		Suffixes:        cfg.Exchanges,
		Forecast:        forecast.Options{IntervalWidth: cfg.Analysis.IntervalWidth},
		Recorder:        rec,
		CacheTTL:        cfg.Cache.TTL,
		DefaultStart:    start,
		DefaultExchange: cfg.Universe.Exchange,
		DefaultStrategy: cfg.Analysis.Strategy,
	})

	return &app{cfg: cfg, cached: cached, recorder: rec, service: svc}, nil
}

// createProviders builds the enabled providers in configured fallback order
func createProviders(cfg *config.Config) []provider.Provider {
	var providers []provider.Provider
	for _, name := range cfg.API.Order {
		switch name {
		case "yahoo":
			if !cfg.API.Yahoo.Disabled {
				providers = append(providers, provider.NewYahooProvider(cfg.API.Yahoo.RateLimit, cfg.Fetch.Timeout))
			}
		case "finnhub":
			if !cfg.API.Finnhub.Disabled && cfg.API.Finnhub.Key != "" {
				providers = append(providers, provider.NewFinnhubProvider(cfg.API.Finnhub.Key, cfg.API.Finnhub.RateLimit))
			}
		case "alphavantage":
			if !cfg.API.AlphaVantage.Disabled && cfg.API.AlphaVantage.Key != "" {
				providers = append(providers, provider.NewAlphaVantageProvider(cfg.API.AlphaVantage.Key, cfg.API.AlphaVantage.RateLimit))
			}
		}
	}
	return providers
}

// rangeFromFlags builds the requested date range. A period wins over dates.
func rangeFromFlags() (model.DateRange, error) {
	var rng model.DateRange
	if period != "" {
		rng.Period = period
		return rng, nil
	}
	var err error
	if startDate != "" {
		if rng.Start, err = time.Parse(model.DateLayout, startDate); err != nil {
			return rng, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if endDate != "" {
		if rng.End, err = time.Parse(model.DateLayout, endDate); err != nil {
			return rng, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return rng, nil
}

// newProgressBar draws fetch progress on stderr so stdout stays machine readable
func newProgressBar(cmd *cobra.Command, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Fetching"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
