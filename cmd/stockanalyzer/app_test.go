package main

import (
	"strings"
	"testing"

	"stockanalyzer/internal/config"
	"stockanalyzer/internal/provider"
)

func TestCreateProvidersOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.Finnhub.Key = "fh"
	cfg.API.AlphaVantage.Key = ""
	cfg.API.Order = []string{"finnhub", "alphavantage", "yahoo"}

	providers := createProviders(cfg)
	if len(providers) != 2 {
		t.Fatalf("Expected 2 providers, got %d", len(providers))
	}
	if providers[0].Name() != "finnhub" || providers[1].Name() != "yahoo" {
		t.Errorf("Unexpected order: %s, %s", providers[0].Name(), providers[1].Name())
	}

	cfg.API.Yahoo.Disabled = true
	cfg.API.Finnhub.Disabled = true
	if got := createProviders(cfg); len(got) != 0 {
		t.Errorf("Expected no providers, got %d", len(got))
	}
}

func TestRangeFromFlags(t *testing.T) {
	defer func() { period, startDate, endDate = "", "", "" }()

	period, startDate = "6mo", "2024-01-01"
	rng, err := rangeFromFlags()
	if err != nil || rng.Period != "6mo" || !rng.Start.IsZero() {
		t.Errorf("Period should win over dates: %+v %v", rng, err)
	}

	period, startDate, endDate = "", "2024-01-01", "2024-02-01"
	rng, err = rangeFromFlags()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rng.Start.Day() != 1 || rng.End.Month() != 2 {
		t.Errorf("Unexpected range: %+v", rng)
	}

	startDate = "2024/01/01"
	if _, err := rangeFromFlags(); err == nil {
		t.Error("Expected error for malformed start")
	}
}

func TestPeriodHelpListsSupportedPeriods(t *testing.T) {
	usage := analyzeCmd().Flags().Lookup("period").Usage
	for _, p := range provider.Periods() {
		if !strings.Contains(usage, " "+p) {
			t.Errorf("Help text missing %q: %s", p, usage)
		}
	}
	if strings.Contains(usage, " 1d") {
		t.Errorf("Help text offers unsupported 1d: %s", usage)
	}
}
