package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"stockanalyzer/internal/ratelimit"
	"stockanalyzer/pkg/model"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageProvider implements the Provider interface for Alpha Vantage API
type AlphaVantageProvider struct {
	apiKey    string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	baseURL   string
	now       func() time.Time
}

// NewAlphaVantageProvider creates a new Alpha Vantage provider
func NewAlphaVantageProvider(apiKey string, rateLimitPerMin int) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("alphavantage", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
		baseURL:   alphaVantageBaseURL,
		now:       time.Now,
	}
}

// WithBaseURL points the provider at another endpoint (used by tests)
func (p *AlphaVantageProvider) WithBaseURL(u string) *AlphaVantageProvider {
	p.baseURL = u
	return p
}

// Name returns the provider name
func (p *AlphaVantageProvider) Name() string {
	return "alphavantage"
}

// IsAvailable checks if the provider has an API key
func (p *AlphaVantageProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit per minute
func (p *AlphaVantageProvider) RateLimit() int {
	return p.rateLimit
}

// alphaVantageResponse represents the daily adjusted response structure
type alphaVantageResponse struct {
	MetaData    map[string]string            `json:"Meta Data"`
	TimeSeries  map[string]map[string]string `json:"Time Series (Daily)"`
	Note        string                       `json:"Note"`        // Rate limit message
	Information string                       `json:"Information"` // Premium / quota message
	Error       string                       `json:"Error Message"`
}

// GetDailyHistory fetches TIME_SERIES_DAILY_ADJUSTED and trims it to the range
func (p *AlphaVantageProvider) GetDailyHistory(ctx context.Context, symbol string, rng model.DateRange) (*model.RawSeries, error) {
	start, end, err := Resolve(rng, p.now())
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: false}
	}

	// compact covers the latest 100 sessions, roughly 140 calendar days
	outputSize := "compact"
	if p.now().Sub(start) > 140*24*time.Hour {
		outputSize = "full"
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	q.Set("symbol", symbol)
	q.Set("outputsize", outputSize)
	q.Set("apikey", p.apiKey)

	var data alphaVantageResponse
	if err := fetchJSON(ctx, p.client, p.limiter, p.Name(), p.baseURL+"?"+q.Encode(), &data); err != nil {
		return nil, err
	}

	if data.Note != "" {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited: %s", data.Note), Retryable: true}
	}
	if data.Information != "" {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", data.Information), Retryable: false}
	}
	if data.Error != "" {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w: %s", ErrNoData, data.Error), Retryable: false}
	}

	bars := p.parseTimeSeries(data.TimeSeries, start, end)
	if len(bars) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	return &model.RawSeries{
		Symbol:   symbol,
		Provider: p.Name(),
		Bars:     bars,
	}, nil
}

// parseTimeSeries converts the API response to bars within [start, end)
func (p *AlphaVantageProvider) parseTimeSeries(timeSeries map[string]map[string]string, start, end time.Time) []model.RawBar {
	from := start.Format(model.DateLayout)
	to := end.Format(model.DateLayout)

	var bars []model.RawBar
	for dateStr, values := range timeSeries {
		if dateStr < from || dateStr >= to {
			continue
		}
		t, err := time.Parse(model.DateLayout, dateStr)
		if err != nil {
			continue
		}

		volume, _ := strconv.ParseInt(values["6. volume"], 10, 64)
		bars = append(bars, model.RawBar{
			Date:     t,
			Open:     parseField(values, "1. open"),
			High:     parseField(values, "2. high"),
			Low:      parseField(values, "3. low"),
			Close:    parseField(values, "4. close"),
			AdjClose: parseField(values, "5. adjusted close"),
			Volume:   volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	return bars
}

func parseField(values map[string]string, key string) *float64 {
	s, ok := values[key]
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
