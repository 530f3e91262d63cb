package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"stockanalyzer/internal/fetcher"
	"stockanalyzer/internal/forecast"
	"stockanalyzer/internal/metrics"
	"stockanalyzer/internal/provider"
	"stockanalyzer/internal/recorder"
	"stockanalyzer/internal/series"
	"stockanalyzer/internal/symbols"
	"stockanalyzer/pkg/model"
)

// Request selects what a run analyzes
type Request struct {
	Tickers  []string        `json:"tickers"`
	Exchange string          `json:"exchange,omitempty"` // applied to bare tickers
	Range    model.DateRange `json:"range"`
	Horizon  int             `json:"horizon,omitempty"` // 0 skips forecasting
	Strategy string          `json:"strategy,omitempty"`

	// Refresh bypasses the report cache and overwrites the entry
	Refresh bool `json:"-"`

	// Progress receives fetch progress
	Progress fetcher.ProgressCallback `json:"-"`
}

// TickerForecast is the forecast outcome for one ticker. Exactly one of
// Points and Unavailable is set.
type TickerForecast struct {
	Ticker      string                `json:"ticker"`
	Strategy    string                `json:"strategy"`
	Points      []model.ForecastPoint `json:"points,omitempty"`
	Unavailable string                `json:"unavailable,omitempty"`
}

// Report is the result of one run
type Report struct {
	RunID          string                  `json:"run_id"`
	CreatedAt      time.Time               `json:"created_at"`
	Tickers        []string                `json:"tickers"`
	RangeKey       string                  `json:"range"`
	Range          model.DateRange         `json:"-"`
	Stats          []model.TickerStats     `json:"stats"`
	Correlation    model.CorrelationMatrix `json:"correlation"`
	CommonDates    int                     `json:"common_dates"`
	PartialOverlap bool                    `json:"partial_overlap"`
	Summary        metrics.Summary         `json:"summary"`
	Forecasts      []TickerForecast        `json:"forecasts,omitempty"`
	Warnings       []Warning               `json:"warnings"`
	Cached         bool                    `json:"cached"`

	// Series holds the normalized input in request order, for charts
	Series []model.NormalizedSeries `json:"-"`
}

// Options configure a Service
type Options struct {
	Provider        provider.Provider
	Workers         int
	Timeout         time.Duration // per ticker
	Suffixes        map[string]string
	Forecast        forecast.Options
	Recorder        recorder.Recorder
	CacheTTL        time.Duration
	DefaultStart    time.Time
	DefaultExchange string
	DefaultStrategy string
}

// Service runs the fetch → normalize → aggregate → forecast pipeline
type Service struct {
	provider provider.Provider
	workers  int
	timeout  time.Duration
	resolver *symbols.Resolver
	engine   *forecast.Engine
	recorder recorder.Recorder
	cache    *Cache

	defaultStart    time.Time
	defaultExchange string
	defaultStrategy string
	now             func() time.Time
}

// NewService creates an analysis service
func NewService(opts Options) *Service {
	rec := opts.Recorder
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	strategy := opts.DefaultStrategy
	if strategy == "" {
		strategy = forecast.StrategyARIMA
	}
	start := opts.DefaultStart
	if start.IsZero() {
		start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Service{
		provider:        opts.Provider,
		workers:         opts.Workers,
		timeout:         opts.Timeout,
		resolver:        symbols.NewResolver(opts.Suffixes),
		engine:          forecast.NewEngine(opts.Forecast),
		recorder:        rec,
		cache:           NewCache(opts.CacheTTL),
		defaultStart:    start,
		defaultExchange: opts.DefaultExchange,
		defaultStrategy: strategy,
		now:             time.Now,
	}
}

// Cache returns the report cache
func (s *Service) Cache() *Cache {
	return s.cache
}

// Run executes one analysis. Per-ticker failures become warnings; only an
// empty selection, an invalid horizon or strategy, a bad ticker, a total
// failure or cancellation abort the run.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	if len(symbols.ParseList(req.Tickers)) == 0 {
		return nil, ErrNoTickers
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	if req.Horizon != 0 {
		if err := forecast.ValidateHorizon(req.Horizon); err != nil {
			return nil, err
		}
		if _, err := forecast.Get(strategy, forecast.DefaultOptions()); err != nil {
			return nil, err
		}
	}

	stocks, err := s.resolver.ResolveAll(req.Tickers, s.exchange(req.Exchange))
	if err != nil {
		return nil, err
	}
	tickers := symbols.Symbols(stocks)
	rng, err := s.resolveRange(req.Range)
	if err != nil {
		return nil, err
	}

	key := CacheKey(tickers, rng, req.Horizon, strategy)
	if !req.Refresh {
		if cached, ok := s.cache.Get(key); ok {
			log.Printf("[CACHE] report hit for %s", key)
			out := *cached
			out.Cached = true
			return &out, nil
		}
	}

	log.Printf("[ANALYSIS] run: %d tickers, range %s", len(tickers), rng.Key())

	f := fetcher.New(s.provider, s.workers, s.timeout)
	if req.Progress != nil {
		f.SetProgressCallback(req.Progress)
	}
	results := f.FetchAll(ctx, stocks, rng)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var warnings []Warning
	var usable []model.NormalizedSeries
	for _, res := range results {
		if w, ok := fetchWarning(res); ok {
			warnings = append(warnings, w)
			continue
		}
		ns := series.Normalize(res.Series)
		if ns.Empty() {
			warnings = append(warnings, Warning{
				Ticker:  res.Stock.Symbol,
				Kind:    KindNoData,
				Message: "fewer than two usable prices in range",
			})
			continue
		}
		ns.Prices.Ticker = res.Stock.Symbol
		usable = append(usable, ns)
	}

	if len(usable) == 0 {
		return nil, &RunError{Warnings: warnings}
	}

	agg, err := metrics.Aggregate(usable)
	if err != nil {
		return nil, fmt.Errorf("aggregating: %w", err)
	}
	if agg.PartialOverlap {
		warnings = append(warnings, Warning{
			Kind:    KindPartialOverlap,
			Message: fmt.Sprintf("only %d common dates across tickers, correlation undefined", agg.CommonDates),
		})
	}

	report := &Report{
		RunID:          uuid.NewString(),
		CreatedAt:      s.now(),
		Tickers:        tickers,
		RangeKey:       rng.Key(),
		Range:          rng,
		Stats:          agg.Stats,
		Correlation:    agg.Correlation,
		CommonDates:    agg.CommonDates,
		PartialOverlap: agg.PartialOverlap,
		Summary:        agg.Summary,
		Series:         usable,
	}

	if req.Horizon > 0 {
		for _, ns := range usable {
			fc, err := s.forecastSeries(ctx, ns.Prices, req.Horizon, strategy)
			if err != nil {
				return nil, err
			}
			if fc.Unavailable != "" {
				warnings = append(warnings, Warning{
					Ticker:  fc.Ticker,
					Kind:    KindForecastUnavailable,
					Message: fc.Unavailable,
				})
			}
			report.Forecasts = append(report.Forecasts, fc)
		}
	}

	if warnings == nil {
		warnings = []Warning{}
	}
	report.Warnings = warnings

	s.record(ctx, report, req.Horizon, strategy)
	s.cache.Put(key, report)

	log.Printf("[ANALYSIS] run %s: %d ok, %d warnings", report.RunID, len(usable), len(warnings))
	return report, nil
}

// forecastSeries maps an unavailable forecast onto the entry itself; any
// other error (cancellation) is returned
func (s *Service) forecastSeries(ctx context.Context, ps model.PriceSeries, horizon int, strategy string) (TickerForecast, error) {
	fc := TickerForecast{Ticker: ps.Ticker, Strategy: strategy}
	points, err := s.engine.Forecast(ctx, ps, horizon, strategy)
	if err != nil {
		if errors.Is(err, forecast.ErrForecastUnavailable) {
			fc.Unavailable = err.Error()
			return fc, nil
		}
		return fc, err
	}
	fc.Points = points
	return fc, nil
}

// Forecast forecasts a single ticker. The horizon is validated before any
// data is fetched.
func (s *Service) Forecast(ctx context.Context, ticker, exchange string, rng model.DateRange, horizon int, strategy string) (*TickerForecast, error) {
	if err := forecast.ValidateHorizon(horizon); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	if _, err := forecast.Get(strategy, forecast.DefaultOptions()); err != nil {
		return nil, err
	}

	ps, err := s.History(ctx, ticker, exchange, rng)
	if err != nil {
		return nil, err
	}

	points, err := s.engine.Forecast(ctx, ps, horizon, strategy)
	if err != nil {
		return nil, err
	}
	return &TickerForecast{Ticker: ps.Ticker, Strategy: strategy, Points: points}, nil
}

// History returns the normalized daily prices of one ticker. An empty
// result is reported as provider.ErrNoData.
func (s *Service) History(ctx context.Context, ticker, exchange string, rng model.DateRange) (model.PriceSeries, error) {
	stock, err := s.resolver.Resolve(ticker, s.exchange(exchange))
	if err != nil {
		return model.PriceSeries{}, err
	}

	resolved, err := s.resolveRange(rng)
	if err != nil {
		return model.PriceSeries{}, err
	}

	res := fetcher.New(s.provider, 1, s.timeout).FetchAll(ctx, []model.Stock{stock}, resolved)[0]
	if res.Err != nil {
		return model.PriceSeries{}, res.Err
	}

	ns := series.Normalize(res.Series)
	if ns.Empty() {
		return model.PriceSeries{}, fmt.Errorf("%s: %w", stock.Symbol, provider.ErrNoData)
	}
	ns.Prices.Ticker = stock.Symbol
	return ns.Prices, nil
}

// Histories fetches several tickers and keeps those with data, keyed by
// symbol. Tickers that fail are skipped.
func (s *Service) Histories(ctx context.Context, tickers []string, exchange string, rng model.DateRange) (map[string]model.PriceSeries, error) {
	if len(symbols.ParseList(tickers)) == 0 {
		return nil, ErrNoTickers
	}
	stocks, err := s.resolver.ResolveAll(tickers, s.exchange(exchange))
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolveRange(rng)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.PriceSeries, len(stocks))
	for _, res := range fetcher.New(s.provider, s.workers, s.timeout).FetchAll(ctx, stocks, resolved) {
		if !res.OK() {
			continue
		}
		ns := series.Normalize(res.Series)
		if ns.Empty() {
			continue
		}
		ns.Prices.Ticker = res.Stock.Symbol
		out[res.Stock.Symbol] = ns.Prices
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Recent returns the latest recorded runs
func (s *Service) Recent(ctx context.Context, limit int) ([]recorder.RunRecord, error) {
	return s.recorder.Recent(ctx, limit)
}

func (s *Service) record(ctx context.Context, r *Report, horizon int, strategy string) {
	run := &recorder.RunRecord{
		ID:             r.RunID,
		CreatedAt:      r.CreatedAt,
		Tickers:        r.Tickers,
		Range:          r.RangeKey,
		Horizon:        horizon,
		Best:           r.Summary.Best.Ticker,
		Worst:          r.Summary.Worst.Ticker,
		AvgTotalReturn: r.Summary.AvgTotalReturn,
		Warnings:       len(r.Warnings),
		Stats:          r.Stats,
	}
	if horizon > 0 {
		run.Strategy = strategy
	}
	if err := s.recorder.RecordRun(ctx, run); err != nil {
		log.Printf("[STORE] failed to record run %s: %v", r.RunID, err)
	}
}

func (s *Service) exchange(requested string) string {
	if requested != "" {
		return requested
	}
	return s.defaultExchange
}

// resolveRange fills in the default start and pins an open end to today,
// so equal requests on the same day share a cache key. End is exclusive.
func (s *Service) resolveRange(rng model.DateRange) (model.DateRange, error) {
	if rng.Period != "" {
		if !provider.ValidPeriod(rng.Period) {
			return rng, fmt.Errorf("%w: unsupported period %q", ErrInvalidRange, rng.Period)
		}
		return model.DateRange{Period: rng.Period}, nil
	}
	if rng.Start.IsZero() {
		rng.Start = s.defaultStart
	}
	if rng.End.IsZero() {
		now := s.now().UTC()
		rng.End = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if !rng.Start.Before(rng.End) {
		return rng, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange,
			rng.Start.Format(model.DateLayout), rng.End.Format(model.DateLayout))
	}
	return rng, nil
}

// fetchWarning classifies a failed fetch
func fetchWarning(res fetcher.Result) (Warning, bool) {
	w := Warning{Ticker: res.Stock.Symbol}
	switch {
	case res.OK():
		return w, false
	case res.TimedOut:
		w.Kind = KindTimeout
		w.Message = "fetch timed out"
	case errors.Is(res.Err, provider.ErrNoData), res.Err == nil:
		w.Kind = KindNoData
		w.Message = "provider returned no data"
	default:
		w.Kind = KindFetchFailed
		w.Message = res.Err.Error()
	}
	return w, true
}
