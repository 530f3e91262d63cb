package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stockanalyzer/internal/ratelimit"
	"stockanalyzer/pkg/model"
)

// ErrNoData is returned when a provider has no history for a symbol/range
var ErrNoData = errors.New("no data available")

// Provider defines the interface for daily price history sources
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetDailyHistory fetches daily bars for symbol over the given range.
	// Providers that return nothing wrap ErrNoData.
	GetDailyHistory(ctx context.Context, symbol string, rng model.DateRange) (*model.RawSeries, error)

	// IsAvailable checks if the provider is usable (e.g. has an API key)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider from the available providers
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetDailyHistory tries each provider in order until one returns data.
// A cancelled or expired context stops the chain immediately.
func (f *FallbackProvider) GetDailyHistory(ctx context.Context, symbol string, rng model.DateRange) (*model.RawSeries, error) {
	lastErr := fmt.Errorf("no providers configured: %w", ErrNoData)
	for _, p := range f.providers {
		data, err := p.GetDailyHistory(ctx, symbol, rng)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

// periods maps named periods onto a lookback from now
var periods = map[string]func(now time.Time) time.Time{
	"5d":  func(now time.Time) time.Time { return now.AddDate(0, 0, -5) },
	"1mo": func(now time.Time) time.Time { return now.AddDate(0, -1, 0) },
	"3mo": func(now time.Time) time.Time { return now.AddDate(0, -3, 0) },
	"6mo": func(now time.Time) time.Time { return now.AddDate(0, -6, 0) },
	"1y":  func(now time.Time) time.Time { return now.AddDate(-1, 0, 0) },
	"2y":  func(now time.Time) time.Time { return now.AddDate(-2, 0, 0) },
	"5y":  func(now time.Time) time.Time { return now.AddDate(-5, 0, 0) },
	"10y": func(now time.Time) time.Time { return now.AddDate(-10, 0, 0) },
	"ytd": func(now time.Time) time.Time { return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()) },
	"max": func(now time.Time) time.Time { return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC) },
}

// periodOrder lists the named periods from shortest to longest
var periodOrder = []string{"5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// Periods returns the supported named periods, shortest first
func Periods() []string {
	return append([]string(nil), periodOrder...)
}

// ValidPeriod reports whether p is a supported named period
func ValidPeriod(p string) bool {
	_, ok := periods[p]
	return ok
}

// Resolve turns a range into an explicit [start, end) window
func Resolve(rng model.DateRange, now time.Time) (time.Time, time.Time, error) {
	if rng.Period != "" {
		start, ok := periods[rng.Period]
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("unsupported period %q", rng.Period)
		}
		return start(now), now, nil
	}
	end := rng.End
	if end.IsZero() {
		end = now
	}
	if rng.Start.IsZero() {
		return time.Time{}, time.Time{}, errors.New("start date is required")
	}
	if !rng.Start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s",
			rng.Start.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	return rng.Start, end, nil
}

// fetchJSON performs a rate-limited GET and decodes the JSON body into out.
// 429 responses pause the limiter and are reported as retryable.
func fetchJSON(ctx context.Context, client *http.Client, limiter *ratelimit.Limiter, name, url string, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return &ProviderError{Provider: name, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		limiter.SignalRateLimited()
		return &ProviderError{Provider: name, Err: errors.New("rate limited"), Retryable: true}
	}
	if resp.StatusCode == http.StatusNotFound {
		return &ProviderError{Provider: name, Err: ErrNoData, Retryable: false}
	}
	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: name, Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	limiter.ResetBackoff()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: name, Err: fmt.Errorf("decoding response: %w", err), Retryable: false}
	}
	return nil
}
