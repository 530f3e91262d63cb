package model

import (
	"encoding/json"
	"math"
	"time"
)

// DateLayout is the calendar-date format used on every external surface
const DateLayout = "2006-01-02"

// Stock represents basic stock information
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"` // US, NSE, BSE, ...
}

// DateRange selects a window of daily history. When Period is set it wins
// over Start/End (e.g. "1mo", "1y", "max").
type DateRange struct {
	Start  time.Time `json:"start,omitempty"`
	End    time.Time `json:"end,omitempty"`
	Period string    `json:"period,omitempty"`
}

// Key returns a stable string form used for cache keys
func (r DateRange) Key() string {
	if r.Period != "" {
		return "period=" + r.Period
	}
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// RawBar is one daily bar as delivered by a provider. Any field may be
// missing because providers emit nulls for halted or partial sessions.
type RawBar struct {
	Date     time.Time `json:"date"`
	Open     *float64  `json:"open,omitempty"`
	High     *float64  `json:"high,omitempty"`
	Low      *float64  `json:"low,omitempty"`
	Close    *float64  `json:"close,omitempty"`
	AdjClose *float64  `json:"adj_close,omitempty"`
	Volume   int64     `json:"volume"`
}

// RawSeries is the un-normalized daily history for one symbol
type RawSeries struct {
	Symbol   string   `json:"symbol"`
	Provider string   `json:"provider"`
	Bars     []RawBar `json:"bars"`
}

// PricePoint is a normalized daily price. AdjClose is always populated.
type PricePoint struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// PriceSeries is an ascending, duplicate-free sequence of prices for one ticker
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of price points
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Dates returns the observation dates in order
func (s PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// AdjCloses returns the adjusted close column in order
func (s PriceSeries) AdjCloses() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.AdjClose
	}
	return values
}

// ReturnPoint is the percentage change of adjusted close versus the previous point
type ReturnPoint struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// NormalizedSeries pairs a cleaned price series with its daily returns.
// An empty value means "no data for this ticker".
type NormalizedSeries struct {
	Prices  PriceSeries   `json:"prices"`
	Returns []ReturnPoint `json:"returns"`
}

// Ticker returns the ticker symbol of the series
func (n NormalizedSeries) Ticker() string {
	return n.Prices.Ticker
}

// Empty reports whether the series carries no usable data
func (n NormalizedSeries) Empty() bool {
	return len(n.Prices.Points) < 2 || len(n.Returns) == 0
}

// TickerStats holds the summary statistics for one ticker in a run
type TickerStats struct {
	Ticker         string  `json:"ticker"`
	TotalReturn    float64 `json:"total_return"`
	AvgDailyReturn float64 `json:"avg_daily_return"`
	Volatility     float64 `json:"volatility"`
	Observations   int     `json:"observations"`
}

// MarshalJSON encodes undefined statistics as null
func (s TickerStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Ticker         string   `json:"ticker"`
		TotalReturn    *float64 `json:"total_return"`
		AvgDailyReturn *float64 `json:"avg_daily_return"`
		Volatility     *float64 `json:"volatility"`
		Observations   int      `json:"observations"`
	}{
		Ticker:         s.Ticker,
		TotalReturn:    finiteOrNil(s.TotalReturn),
		AvgDailyReturn: finiteOrNil(s.AvgDailyReturn),
		Volatility:     finiteOrNil(s.Volatility),
		Observations:   s.Observations,
	})
}

// CorrelationMatrix is a square, symmetric matrix of return correlations.
// Cells that cannot be computed hold NaN.
type CorrelationMatrix struct {
	Tickers []string    `json:"tickers"`
	Values  [][]float64 `json:"values"`
}

// Get returns the correlation between two tickers
func (m CorrelationMatrix) Get(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Values[i][j], true
}

func (m CorrelationMatrix) index(ticker string) int {
	for i, t := range m.Tickers {
		if t == ticker {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes NaN cells as null
func (m CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = finiteOrNil(v)
		}
	}
	return json.Marshal(struct {
		Tickers []string     `json:"tickers"`
		Values  [][]*float64 `json:"values"`
	}{m.Tickers, values})
}

// ForecastPoint is one predicted value. Lower/Upper are nil for strategies
// that do not produce an interval.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Lower *float64  `json:"lower,omitempty"`
	Upper *float64  `json:"upper,omitempty"`
}

// HasBounds reports whether both interval bounds are populated
func (p ForecastPoint) HasBounds() bool {
	return p.Lower != nil && p.Upper != nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
