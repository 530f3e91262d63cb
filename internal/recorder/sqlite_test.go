package recorder

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"stockanalyzer/pkg/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndRecent(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := &RunRecord{
		ID:        "run-1",
		CreatedAt: base,
		Tickers:   []string{"AAPL", "MSFT"},
		Range:     "2024-01-01..2024-05-01",
		Best:      "MSFT",
		Worst:     "AAPL",
		Stats: []model.TickerStats{
			{Ticker: "MSFT", TotalReturn: 0.12, AvgDailyReturn: 0.001, Volatility: 0.013, Observations: 80},
			{Ticker: "AAPL", TotalReturn: -0.03, AvgDailyReturn: -0.0002, Volatility: 0.015, Observations: 80},
		},
		AvgTotalReturn: 0.045,
	}
	second := &RunRecord{
		ID:        "run-2",
		CreatedAt: base.Add(time.Hour),
		Tickers:   []string{"TSLA"},
		Range:     "period=1mo",
		Horizon:   30,
		Strategy:  "arima",
		Warnings:  1,
		Stats: []model.TickerStats{
			{Ticker: "TSLA", TotalReturn: 0.2, AvgDailyReturn: 0.01, Volatility: math.NaN(), Observations: 2},
		},
		AvgTotalReturn: 0.2,
	}

	if err := r.RecordRun(ctx, first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := r.RecordRun(ctx, second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	runs, err := r.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Errorf("Newest run should come first, got %s", runs[0].ID)
	}
	if runs[0].Strategy != "arima" || runs[0].Horizon != 30 || runs[0].Warnings != 1 {
		t.Errorf("Unexpected run fields: %+v", runs[0])
	}
	if !math.IsNaN(runs[0].Stats[0].Volatility) {
		t.Errorf("NaN volatility should round-trip, got %v", runs[0].Stats[0].Volatility)
	}

	older := runs[1]
	if len(older.Tickers) != 2 || older.Tickers[1] != "MSFT" {
		t.Errorf("Unexpected tickers: %v", older.Tickers)
	}
	if len(older.Stats) != 2 || older.Stats[0].Ticker != "MSFT" {
		t.Errorf("Stats should keep their order, got %+v", older.Stats)
	}
	if older.Stats[1].TotalReturn != -0.03 {
		t.Errorf("Expected -0.03, got %v", older.Stats[1].TotalReturn)
	}

	limited, err := r.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Expected 1 run with limit, got %d (%v)", len(limited), err)
	}
}

func TestRecordDuplicateID(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	run := &RunRecord{ID: "dup", Tickers: []string{"AAPL"}}
	if err := r.RecordRun(ctx, run); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := r.RecordRun(ctx, run); err == nil {
		t.Error("Expected error for duplicate run id")
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordRun(context.Background(), &RunRecord{ID: "x"}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	runs, err := r.Recent(context.Background(), 5)
	if err != nil || len(runs) != 0 {
		t.Errorf("Noop should return no runs, got %v (%v)", runs, err)
	}
}
