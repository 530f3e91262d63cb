package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"stockanalyzer/internal/forecast"
	"stockanalyzer/internal/provider"
	"stockanalyzer/internal/recorder"
	"stockanalyzer/pkg/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeProvider serves canned closes per symbol
type fakeProvider struct {
	closes map[string][]float64
	starts map[string]time.Time
	errs   map[string]error
	block  map[string]bool

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Name() string      { return "fake" }
func (p *fakeProvider) IsAvailable() bool { return true }
func (p *fakeProvider) RateLimit() int    { return 600 }

func (p *fakeProvider) GetDailyHistory(ctx context.Context, symbol string, rng model.DateRange) (*model.RawSeries, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.block[symbol] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := p.errs[symbol]; err != nil {
		return nil, err
	}
	closes, ok := p.closes[symbol]
	if !ok {
		return nil, &provider.ProviderError{Provider: "fake", Err: provider.ErrNoData}
	}
	start := day0
	if s, ok := p.starts[symbol]; ok {
		start = s
	}
	bars := make([]model.RawBar, len(closes))
	for i, c := range closes {
		c := c
		bars[i] = model.RawBar{Date: start.AddDate(0, 0, i), Close: &c, AdjClose: &c}
	}
	return &model.RawSeries{Symbol: symbol, Provider: "fake", Bars: bars}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memRecorder keeps runs in memory
type memRecorder struct {
	mu   sync.Mutex
	runs []recorder.RunRecord
}

func (r *memRecorder) RecordRun(_ context.Context, run *recorder.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *memRecorder) Recent(_ context.Context, limit int) ([]recorder.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, nil
}

func (r *memRecorder) Close() error { return nil }

func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	v := 100.0
	for i := range out {
		v *= 1 + 0.002 + rng.NormFloat64()*0.01
		out[i] = v
	}
	return out
}

func newTestService(p provider.Provider, rec recorder.Recorder) *Service {
	s := NewService(Options{
		Provider:        p,
		Workers:         3,
		Timeout:         time.Second,
		Recorder:        rec,
		CacheTTL:        time.Hour,
		DefaultExchange: "US",
	})
	s.now = func() time.Time { return time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC) }
	return s
}

func TestRunExample(t *testing.T) {
	p := &fakeProvider{
		closes: map[string][]float64{
			"AAPL": {100, 110, 99},
			"MSFT": {100, 105, 110},
		},
	}
	rec := &memRecorder{}
	s := newTestService(p, rec)

	report, err := s.Run(context.Background(), Request{Tickers: []string{"AAPL", "MSFT", "EMPTY"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(report.Stats) != 2 {
		t.Fatalf("Expected 2 stats rows, got %d", len(report.Stats))
	}
	if report.Stats[0].Ticker != "MSFT" || report.Stats[1].Ticker != "AAPL" {
		t.Errorf("Stats should be sorted by total return, got %s, %s", report.Stats[0].Ticker, report.Stats[1].Ticker)
	}
	aapl := report.Stats[1]
	if math.Abs(aapl.TotalReturn-(-0.01)) > 1e-12 {
		t.Errorf("Expected total return -0.01, got %v", aapl.TotalReturn)
	}
	if math.Abs(aapl.Volatility-0.1414213562) > 1e-6 {
		t.Errorf("Expected volatility ~0.1414, got %v", aapl.Volatility)
	}

	if len(report.Correlation.Tickers) != 2 {
		t.Errorf("EMPTY must not appear in the correlation matrix: %v", report.Correlation.Tickers)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Ticker != "EMPTY" || report.Warnings[0].Kind != KindNoData {
		t.Errorf("Expected one NoData warning for EMPTY, got %+v", report.Warnings)
	}

	if report.RunID == "" {
		t.Error("Run ID should be set")
	}
	if report.Summary.Best.Ticker != "MSFT" || report.Summary.Worst.Ticker != "AAPL" {
		t.Errorf("Unexpected summary: %+v", report.Summary)
	}
	if len(rec.runs) != 1 || rec.runs[0].ID != report.RunID {
		t.Errorf("Run should be recorded once, got %d", len(rec.runs))
	}
	if report.RangeKey != "2023-01-01..2024-12-31" {
		t.Errorf("Expected default range, got %s", report.RangeKey)
	}
}

func TestRunNoTickers(t *testing.T) {
	s := newTestService(&fakeProvider{}, nil)
	for _, tickers := range [][]string{nil, {""}, {" , "}} {
		if _, err := s.Run(context.Background(), Request{Tickers: tickers}); !errors.Is(err, ErrNoTickers) {
			t.Errorf("%q: expected ErrNoTickers, got %v", tickers, err)
		}
	}
}

func TestRunInvalidHorizonBeforeFetch(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{"AAPL": randomWalk(60, 1)}}
	s := newTestService(p, nil)

	for _, h := range []int{-1, 6, 91} {
		_, err := s.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Horizon: h})
		if !errors.Is(err, forecast.ErrInvalidHorizon) {
			t.Errorf("horizon %d: expected ErrInvalidHorizon, got %v", h, err)
		}
	}
	if p.callCount() != 0 {
		t.Errorf("Provider should not be called, got %d calls", p.callCount())
	}

	if _, err := s.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Horizon: 30, Strategy: "prophet"}); !errors.Is(err, forecast.ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy, got %v", err)
	}
}

func TestRunInvalidRange(t *testing.T) {
	s := newTestService(&fakeProvider{}, nil)

	inverted := model.DateRange{Start: day0, End: day0.AddDate(0, 0, -3)}
	if _, err := s.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Range: inverted}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
	if _, err := s.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Range: model.DateRange{Period: "7w"}}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for bad period, got %v", err)
	}
}

func TestRunAllFailed(t *testing.T) {
	p := &fakeProvider{errs: map[string]error{"BAD": errors.New("upstream 500")}}
	s := newTestService(p, nil)

	_, err := s.Run(context.Background(), Request{Tickers: []string{"BAD", "NONE"}})
	if !errors.Is(err, ErrNoUsableData) {
		t.Fatalf("Expected ErrNoUsableData, got %v", err)
	}
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Expected *RunError, got %T", err)
	}
	if len(runErr.Warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %+v", runErr.Warnings)
	}
	if runErr.Warnings[0].Kind != KindFetchFailed || runErr.Warnings[1].Kind != KindNoData {
		t.Errorf("Unexpected warning kinds: %+v", runErr.Warnings)
	}
}

func TestRunTimeoutIsolated(t *testing.T) {
	p := &fakeProvider{
		closes: map[string][]float64{"AAPL": {100, 101, 102}},
		block:  map[string]bool{"SLOW": true},
	}
	s := newTestService(p, nil)
	s.timeout = 30 * time.Millisecond

	report, err := s.Run(context.Background(), Request{Tickers: []string{"SLOW", "AAPL"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(report.Stats) != 1 || report.Stats[0].Ticker != "AAPL" {
		t.Errorf("AAPL should survive the timeout, got %+v", report.Stats)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Kind != KindTimeout {
		t.Errorf("Expected a timeout warning, got %+v", report.Warnings)
	}
}

func TestRunCancelled(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{"AAPL": {100, 101}}}
	s := newTestService(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx, Request{Tickers: []string{"AAPL"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRunPartialOverlap(t *testing.T) {
	p := &fakeProvider{
		closes: map[string][]float64{"A": {100, 101, 102}, "B": {50, 51, 52}},
		starts: map[string]time.Time{"B": day0.AddDate(0, 1, 0)},
	}
	s := newTestService(p, nil)

	report, err := s.Run(context.Background(), Request{Tickers: []string{"A", "B"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !report.PartialOverlap {
		t.Error("Expected partial overlap")
	}
	v, _ := report.Correlation.Get("A", "B")
	if !math.IsNaN(v) {
		t.Errorf("Expected NaN correlation, got %v", v)
	}
	found := false
	for _, w := range report.Warnings {
		if w.Kind == KindPartialOverlap {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a partial overlap warning, got %+v", report.Warnings)
	}
}

func TestRunForecasts(t *testing.T) {
	p := &fakeProvider{
		closes: map[string][]float64{
			"WALK": randomWalk(200, 7),
			"FLAT": make([]float64, 60),
		},
	}
	for i := range p.closes["FLAT"] {
		p.closes["FLAT"][i] = 42
	}
	s := newTestService(p, nil)

	for _, tt := range []struct {
		strategy   string
		wantBounds bool
	}{
		{forecast.StrategyARIMA, false},
		{forecast.StrategyAdditive, true},
	} {
		report, err := s.Run(context.Background(), Request{
			Tickers:  []string{"WALK", "FLAT"},
			Horizon:  30,
			Strategy: tt.strategy,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.strategy, err)
		}
		if len(report.Forecasts) != 2 {
			t.Fatalf("%s: expected 2 forecasts, got %d", tt.strategy, len(report.Forecasts))
		}

		walk, flat := report.Forecasts[0], report.Forecasts[1]
		if len(walk.Points) != 30 || walk.Unavailable != "" {
			t.Errorf("%s: expected 30 points, got %d (%s)", tt.strategy, len(walk.Points), walk.Unavailable)
		}
		for _, pt := range walk.Points {
			if pt.HasBounds() != tt.wantBounds {
				t.Errorf("%s: bounds = %v, want %v", tt.strategy, pt.HasBounds(), tt.wantBounds)
				break
			}
		}
		if flat.Unavailable == "" || len(flat.Points) != 0 {
			t.Errorf("%s: constant series should be unavailable, got %+v", tt.strategy, flat)
		}

		kinds := map[WarningKind]int{}
		for _, w := range report.Warnings {
			kinds[w.Kind]++
		}
		if kinds[KindForecastUnavailable] != 1 {
			t.Errorf("%s: expected one forecast warning, got %+v", tt.strategy, report.Warnings)
		}
	}
}

func TestRunCache(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{"AAPL": {100, 101, 103}}}
	rec := &memRecorder{}
	s := newTestService(p, rec)
	ctx := context.Background()

	first, err := s.Run(ctx, Request{Tickers: []string{"AAPL"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := s.Run(ctx, Request{Tickers: []string{"aapl"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.callCount() != 1 {
		t.Errorf("Second run should hit the cache, got %d provider calls", p.callCount())
	}
	if !second.Cached || first.Cached {
		t.Error("Only the second report should be marked cached")
	}
	if second.RunID != first.RunID {
		t.Error("Cached report should keep its run id")
	}

	if _, err := s.Run(ctx, Request{Tickers: []string{"AAPL"}, Refresh: true}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.callCount() != 2 {
		t.Errorf("Refresh should bypass the cache, got %d calls", p.callCount())
	}
	if len(rec.runs) != 2 {
		t.Errorf("Cached runs should not be recorded again, got %d records", len(rec.runs))
	}
}

func TestServiceForecast(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{"WALK": randomWalk(120, 3), "TINY": {1, 2, 3}}}
	s := newTestService(p, nil)
	ctx := context.Background()

	fc, err := s.Forecast(ctx, "WALK", "", model.DateRange{Period: "1y"}, 14, forecast.StrategyAdditive)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(fc.Points) != 14 || !fc.Points[0].HasBounds() {
		t.Errorf("Expected 14 bounded points, got %d", len(fc.Points))
	}

	if _, err := s.Forecast(ctx, "WALK", "", model.DateRange{}, 100, ""); !errors.Is(err, forecast.ErrInvalidHorizon) {
		t.Errorf("Expected ErrInvalidHorizon, got %v", err)
	}
	if _, err := s.Forecast(ctx, "TINY", "", model.DateRange{}, 7, forecast.StrategyARIMA); !errors.Is(err, forecast.ErrForecastUnavailable) {
		t.Errorf("Expected ErrForecastUnavailable, got %v", err)
	}
	if _, err := s.Forecast(ctx, "NONE", "", model.DateRange{}, 7, ""); !errors.Is(err, provider.ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}

func TestHistories(t *testing.T) {
	p := &fakeProvider{closes: map[string][]float64{"AAPL": {1, 2}, "INFY.NS": {3, 4, 5}}}
	s := newTestService(p, nil)

	got, err := s.Histories(context.Background(), []string{"AAPL", "NONE", "INFY.NS"}, "", model.DateRange{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 2 || got["INFY.NS"].Len() != 3 {
		t.Errorf("Unexpected histories: %+v", got)
	}

	ps, err := s.History(context.Background(), "INFY", "NSE", model.DateRange{Period: "1mo"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ps.Ticker != "INFY.NS" {
		t.Errorf("Expected suffixed ticker, got %s", ps.Ticker)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := day0
	c.now = func() time.Time { return now }

	key := CacheKey([]string{"A", "B"}, model.DateRange{Period: "1y"}, 30, "arima")
	if key != "A,B|period=1y|h=30|s=arima" {
		t.Errorf("Unexpected key %q", key)
	}
	if CacheKey([]string{"B", "A"}, model.DateRange{Period: "1y"}, 30, "arima") == key {
		t.Error("Ticker order must be part of the key")
	}

	c.Put(key, &Report{RunID: "x"})
	if _, ok := c.Get(key); !ok {
		t.Error("Expected fresh entry")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Error("Entry should have expired")
	}

	c.Put("other", &Report{})
	now = now.Add(2 * time.Minute)
	if removed := c.Purge(); removed != 1 || c.Len() != 0 {
		t.Errorf("Expected 1 purged entry, got %d (len %d)", removed, c.Len())
	}

	disabled := NewCache(0)
	disabled.Put(key, &Report{})
	if _, ok := disabled.Get(key); ok {
		t.Error("Zero TTL should disable caching")
	}
}

func TestCachePutSweepsExpired(t *testing.T) {
	c := NewCache(time.Hour)
	now := day0
	c.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		c.Put(fmt.Sprintf("k%d", i), &Report{})
	}
	if c.Len() != 1000 {
		t.Fatalf("Expected 1000 entries, got %d", c.Len())
	}

	now = now.Add(48 * time.Hour)
	c.Put("fresh", &Report{})
	if c.Len() != 1 {
		t.Errorf("Expected only the fresh entry to remain, got %d", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("Fresh entry should be served")
	}
}
