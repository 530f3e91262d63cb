package chart

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vicanso/go-charts/v2"
	"gonum.org/v1/gonum/floats"

	"stockanalyzer/pkg/model"
)

// ErrNoSeries is returned when there is nothing to plot
var ErrNoSeries = errors.New("no series to plot")

// maxForecastHistory caps how much history precedes a forecast
const maxForecastHistory = 120

// Comparison renders adjusted close prices of several tickers as a PNG.
// With indexed set, every series is rebased to 100 at its first point.
// Tickers are aligned on the union of their dates; gaps carry the last
// known price forward.
func Comparison(input []model.NormalizedSeries, indexed bool, title string) ([]byte, error) {
	var usable []model.PriceSeries
	for _, s := range input {
		if s.Prices.Len() > 0 {
			usable = append(usable, s.Prices)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoSeries
	}

	dates := unionDates(usable)
	values := make([][]float64, len(usable))
	names := make([]string, len(usable))
	for i, s := range usable {
		values[i] = align(s, dates)
		if indexed {
			base := values[i][0]
			floats.Scale(100/base, values[i])
		}
		names[i] = s.Ticker
	}

	subtitle := strings.Join(names, ", ")
	if indexed {
		subtitle += " • indexed to 100"
	}
	yMin, yMax := bounds(values...)

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	p, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels(dates), BoundaryGap: charts.FalseFlag(), SplitNumber: splitNumber(len(dates))}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// Forecast renders recent history followed by forecast points, plus the
// interval bounds when the forecast has them
func Forecast(history model.PriceSeries, points []model.ForecastPoint, title string) ([]byte, error) {
	if history.Len() == 0 || len(points) == 0 {
		return nil, ErrNoSeries
	}

	hist := history.Points
	if len(hist) > maxForecastHistory {
		hist = hist[len(hist)-maxForecastHistory:]
	}

	dates := make([]time.Time, 0, len(hist)+len(points))
	past := make([]float64, 0, len(hist))
	for _, p := range hist {
		dates = append(dates, p.Date)
		past = append(past, p.AdjClose)
	}

	// Forecast lines repeat the history so they start at the same x origin;
	// history is drawn last and covers the overlap
	predicted := append([]float64(nil), past...)
	var lower, upper []float64
	withBounds := points[0].HasBounds()
	if withBounds {
		lower = append([]float64(nil), past...)
		upper = append([]float64(nil), past...)
	}
	for _, p := range points {
		dates = append(dates, p.Date)
		predicted = append(predicted, p.Value)
		if withBounds {
			lower = append(lower, *p.Lower)
			upper = append(upper, *p.Upper)
		}
	}

	values := [][]float64{predicted}
	names := []string{"forecast"}
	if withBounds {
		values = append(values, lower, upper)
		names = append(names, "lower", "upper")
	}
	values = append(values, past)
	names = append(names, history.Ticker)

	yMin, yMax := bounds(values...)

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	p, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc(title, fmt.Sprintf("%d day forecast", len(points))),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels(dates), BoundaryGap: charts.FalseFlag(), SplitNumber: splitNumber(len(dates))}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// unionDates returns every date present in any series, ascending
func unionDates(series []model.PriceSeries) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, s := range series {
		for _, p := range s.Points {
			if !seen[p.Date] {
				seen[p.Date] = true
				dates = append(dates, p.Date)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// align maps a series onto dates. Dates before the first point take the
// first price, later gaps take the previous price.
func align(s model.PriceSeries, dates []time.Time) []float64 {
	out := make([]float64, len(dates))
	j := 0
	last := s.Points[0].AdjClose
	for i, d := range dates {
		for j < len(s.Points) && !s.Points[j].Date.After(d) {
			last = s.Points[j].AdjClose
			j++
		}
		out[i] = last
	}
	return out
}

// bounds returns a padded y-axis range over all values
func bounds(values ...[]float64) (float64, float64) {
	lo, hi := values[0][0], values[0][0]
	for _, v := range values {
		if len(v) == 0 {
			continue
		}
		if m := floats.Min(v); m < lo {
			lo = m
		}
		if m := floats.Max(v); m > hi {
			hi = m
		}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = hi * 0.01
		if pad == 0 {
			pad = 1
		}
	}
	return lo - pad, hi + pad
}

func labels(dates []time.Time) []string {
	layout := "Jan 02"
	if len(dates) > 0 && dates[len(dates)-1].Sub(dates[0]) > 300*24*time.Hour {
		layout = "Jan '06"
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(layout)
	}
	return out
}

func splitNumber(n int) int {
	switch {
	case n <= 10:
		return n
	case n <= 30:
		return n / 3
	default:
		return 10
	}
}
