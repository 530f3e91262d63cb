package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stockanalyzer/internal/ratelimit"
	"stockanalyzer/pkg/model"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubProvider implements the Provider interface for Finnhub API.
// Finnhub candles carry no adjusted close, so normalization falls back to close.
type FinnhubProvider struct {
	apiKey    string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	baseURL   string
	now       func() time.Time
}

// NewFinnhubProvider creates a new Finnhub provider
func NewFinnhubProvider(apiKey string, rateLimitPerMin int) *FinnhubProvider {
	return &FinnhubProvider{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("finnhub", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
		baseURL:   finnhubBaseURL,
		now:       time.Now,
	}
}

// WithBaseURL points the provider at another endpoint (used by tests)
func (p *FinnhubProvider) WithBaseURL(u string) *FinnhubProvider {
	p.baseURL = u
	return p
}

// Name returns the provider name
func (p *FinnhubProvider) Name() string {
	return "finnhub"
}

// IsAvailable checks if the provider has an API key
func (p *FinnhubProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *FinnhubProvider) RateLimit() int {
	return p.rateLimit
}

// finnhubCandle represents the Finnhub candle response
type finnhubCandle struct {
	C []float64 `json:"c"` // Close prices
	H []float64 `json:"h"` // High prices
	L []float64 `json:"l"` // Low prices
	O []float64 `json:"o"` // Open prices
	S string    `json:"s"` // Status
	T []int64   `json:"t"` // Timestamps
	V []float64 `json:"v"` // Volumes
}

// GetDailyHistory fetches daily candles over the range
func (p *FinnhubProvider) GetDailyHistory(ctx context.Context, symbol string, rng model.DateRange) (*model.RawSeries, error) {
	start, end, err := Resolve(rng, p.now())
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: false}
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", "D")
	q.Set("from", fmt.Sprintf("%d", start.Unix()))
	q.Set("to", fmt.Sprintf("%d", end.Unix()))
	q.Set("token", p.apiKey)

	var data finnhubCandle
	if err := fetchJSON(ctx, p.client, p.limiter, p.Name(), p.baseURL+"/stock/candle?"+q.Encode(), &data); err != nil {
		return nil, err
	}

	if data.S == "no_data" || len(data.T) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	bars := make([]model.RawBar, 0, len(data.T))
	for i, ts := range data.T {
		t := time.Unix(ts, 0).UTC()
		bar := model.RawBar{
			Date:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Open:  index(data.O, i),
			High:  index(data.H, i),
			Low:   index(data.L, i),
			Close: index(data.C, i),
		}
		if i < len(data.V) {
			bar.Volume = int64(data.V[i])
		}
		bars = append(bars, bar)
	}

	return &model.RawSeries{
		Symbol:   symbol,
		Provider: p.Name(),
		Bars:     bars,
	}, nil
}

func index(values []float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	v := values[i]
	return &v
}
