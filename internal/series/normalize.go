package series

import (
	"math"
	"sort"
	"time"

	"stockanalyzer/pkg/model"
)

// Normalize converts a provider series into a canonical price series with
// adjusted close populated and its daily returns derived.
//
// It never fails loudly: nil input, no bars, no usable close values or fewer
// than two usable points all yield an empty NormalizedSeries, which callers
// treat as "no data for this ticker".
func Normalize(raw *model.RawSeries) model.NormalizedSeries {
	if raw == nil || len(raw.Bars) == 0 {
		return model.NormalizedSeries{}
	}

	bars := make([]model.RawBar, len(raw.Bars))
	copy(bars, raw.Bars)
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	points := make([]model.PricePoint, 0, len(bars))
	for _, b := range bars {
		closePrice, ok := price(b.Close)
		if !ok {
			continue // incomplete row
		}
		adj, ok := price(b.AdjClose)
		if !ok {
			adj = closePrice
		}

		p := model.PricePoint{
			Date:     truncateDay(b.Date),
			Open:     value(b.Open, closePrice),
			High:     value(b.High, closePrice),
			Low:      value(b.Low, closePrice),
			Close:    closePrice,
			AdjClose: adj,
			Volume:   b.Volume,
		}

		// Same calendar date twice: the later bar wins
		if n := len(points); n > 0 && points[n-1].Date.Equal(p.Date) {
			points[n-1] = p
			continue
		}
		points = append(points, p)
	}

	if len(points) < 2 {
		return model.NormalizedSeries{}
	}

	prices := model.PriceSeries{Ticker: raw.Symbol, Points: points}
	return model.NormalizedSeries{
		Prices:  prices,
		Returns: Returns(prices),
	}
}

// Returns derives the daily return series from adjusted closes. The first
// point has no return, so a series of N points yields N-1 returns.
func Returns(s model.PriceSeries) []model.ReturnPoint {
	if len(s.Points) < 2 {
		return nil
	}
	returns := make([]model.ReturnPoint, 0, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		prev := s.Points[i-1].AdjClose
		cur := s.Points[i].AdjClose
		returns = append(returns, model.ReturnPoint{
			Date:   s.Points[i].Date,
			Return: cur/prev - 1,
		})
	}
	return returns
}

// TotalReturn is last adjusted close over first adjusted close, minus one.
// NaN when the series has fewer than two points.
func TotalReturn(s model.PriceSeries) float64 {
	if len(s.Points) < 2 {
		return math.NaN()
	}
	first := s.Points[0].AdjClose
	last := s.Points[len(s.Points)-1].AdjClose
	return last/first - 1
}

// ReturnValues strips dates from a return series
func ReturnValues(r []model.ReturnPoint) []float64 {
	values := make([]float64, len(r))
	for i, p := range r {
		values[i] = p.Return
	}
	return values
}

func price(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return 0, false
	}
	return *v, true
}

func value(v *float64, fallback float64) float64 {
	if p, ok := price(v); ok {
		return p
	}
	return fallback
}

// truncateDay keeps the calendar date in the bar's own location so exchange
// local dates do not shift when converted to UTC.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
