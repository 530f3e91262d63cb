package metrics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"stockanalyzer/pkg/model"
)

// Correlation builds the return correlation matrix over the dates shared by
// every series (inner join). It also returns how many dates survived the
// join. With fewer than two common dates every off-diagonal cell is NaN.
func Correlation(input []model.NormalizedSeries) (model.CorrelationMatrix, int) {
	n := len(input)
	m := model.CorrelationMatrix{
		Tickers: make([]string, n),
		Values:  make([][]float64, n),
	}
	for i, s := range input {
		m.Tickers[i] = s.Ticker()
		m.Values[i] = make([]float64, n)
		for j := range m.Values[i] {
			m.Values[i][j] = math.NaN()
		}
		m.Values[i][i] = 1.0
	}

	columns := AlignReturns(input)
	common := 0
	if n > 0 {
		common = len(columns[0])
	}
	if common < 2 {
		return m, common
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := clamp(stat.Correlation(columns[i], columns[j], nil))
			m.Values[i][j] = c
			m.Values[j][i] = c
		}
	}
	return m, common
}

// AlignReturns inner-joins the return series by date. The result has one
// column per input series, all of equal length, in ascending date order.
func AlignReturns(input []model.NormalizedSeries) [][]float64 {
	if len(input) == 0 {
		return nil
	}

	lookups := make([]map[time.Time]float64, len(input))
	for i, s := range input {
		lookup := make(map[time.Time]float64, len(s.Returns))
		for _, r := range s.Returns {
			lookup[r.Date] = r.Return
		}
		lookups[i] = lookup
	}

	// Returns are already date ascending, so walking the first series keeps order
	columns := make([][]float64, len(input))
	for _, r := range input[0].Returns {
		row := make([]float64, len(input))
		present := true
		for i, lookup := range lookups {
			v, ok := lookup[r.Date]
			if !ok || math.IsNaN(v) {
				present = false
				break
			}
			row[i] = v
		}
		if !present {
			continue
		}
		for i, v := range row {
			columns[i] = append(columns[i], v)
		}
	}
	return columns
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(-1, math.Min(1, v))
}
