package metrics

import (
	"encoding/json"
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"stockanalyzer/internal/series"
	"stockanalyzer/pkg/model"
)

// ErrNoSeries is returned when no non-empty series is supplied
var ErrNoSeries = errors.New("no series to aggregate")

// Summary highlights the extremes of a run
type Summary struct {
	Best           model.TickerStats `json:"best"`
	Worst          model.TickerStats `json:"worst"`
	AvgTotalReturn float64           `json:"avg_total_return"`
}

// MarshalJSON encodes an undefined average as null
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	var avg *float64
	if !math.IsNaN(s.AvgTotalReturn) && !math.IsInf(s.AvgTotalReturn, 0) {
		avg = &s.AvgTotalReturn
	}
	return json.Marshal(struct {
		plain
		AvgTotalReturn *float64 `json:"avg_total_return"`
	}{plain(s), avg})
}

// Result is the output of Aggregate
type Result struct {
	Stats          []model.TickerStats     `json:"stats"`
	Correlation    model.CorrelationMatrix `json:"correlation"`
	CommonDates    int                     `json:"common_dates"`
	PartialOverlap bool                    `json:"partial_overlap"`
	Summary        Summary                 `json:"summary"`
}

// Aggregate computes per-ticker statistics and the return correlation matrix.
// Input order matters: it breaks ties between equal total returns. Empty
// series are skipped. Values are kept at full precision.
func Aggregate(input []model.NormalizedSeries) (*Result, error) {
	usable := make([]model.NormalizedSeries, 0, len(input))
	for _, s := range input {
		if !s.Empty() {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoSeries
	}

	stats := make([]model.TickerStats, len(usable))
	for i, s := range usable {
		stats[i] = Stats(s)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalReturn > stats[j].TotalReturn
	})

	corr, common := Correlation(usable)

	return &Result{
		Stats:          stats,
		Correlation:    corr,
		CommonDates:    common,
		PartialOverlap: len(usable) > 1 && common < 2,
		Summary:        summarize(stats),
	}, nil
}

// Stats computes the summary statistics of a single normalized series.
// Volatility is the sample standard deviation, NaN for fewer than two returns.
func Stats(s model.NormalizedSeries) model.TickerStats {
	returns := series.ReturnValues(s.Returns)

	st := model.TickerStats{
		Ticker:         s.Ticker(),
		TotalReturn:    series.TotalReturn(s.Prices),
		AvgDailyReturn: math.NaN(),
		Volatility:     math.NaN(),
		Observations:   len(returns),
	}
	if len(returns) > 0 {
		st.AvgDailyReturn = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		st.Volatility = stat.StdDev(returns, nil)
	}
	return st
}

func summarize(stats []model.TickerStats) Summary {
	sum := Summary{
		Best:  stats[0],
		Worst: stats[len(stats)-1],
	}
	totals := make([]float64, len(stats))
	for i, s := range stats {
		totals[i] = s.TotalReturn
	}
	sum.AvgTotalReturn = stat.Mean(totals, nil)
	return sum
}
