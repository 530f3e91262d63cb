package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stockanalyzer/pkg/model"
)

// Horizon bounds, inclusive
const (
	MinHorizon = 7
	MaxHorizon = 90
)

// Registered strategy names
const (
	StrategyARIMA    = "arima"
	StrategyAdditive = "additive"
)

// ValidateHorizon rejects horizons outside [MinHorizon, MaxHorizon]
func ValidateHorizon(horizon int) error {
	if horizon < MinHorizon || horizon > MaxHorizon {
		return fmt.Errorf("%w: %d (must be between %d and %d)", ErrInvalidHorizon, horizon, MinHorizon, MaxHorizon)
	}
	return nil
}

// Engine runs registered strategies over price series
type Engine struct {
	opts Options
}

// NewEngine creates a forecast engine
func NewEngine(opts Options) *Engine {
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		opts.IntervalWidth = DefaultOptions().IntervalWidth
	}
	return &Engine{opts: opts}
}

// Forecast extrapolates the adjusted close of s for horizon calendar days
// using the named strategy. Dates continue one calendar day at a time from
// the last observation; weekends and holidays are not skipped.
//
// A strategy that cannot fit yields an *UnavailableError; a nil error always
// comes with exactly horizon points.
func (e *Engine) Forecast(ctx context.Context, s model.PriceSeries, horizon int, strategy string) ([]model.ForecastPoint, error) {
	if err := ValidateHorizon(horizon); err != nil {
		return nil, err
	}

	strat, err := Get(strategy, e.opts)
	if err != nil {
		return nil, err
	}

	unavailable := func(err error) error {
		return &UnavailableError{Strategy: strat.Name(), Ticker: s.Ticker, Err: err}
	}

	if s.Len() == 0 {
		return nil, unavailable(errors.New("empty series"))
	}

	est, err := strat.Predict(ctx, s.Dates(), s.AdjCloses(), horizon)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unavailable(err)
	}
	if err := checkEstimate(est, horizon); err != nil {
		return nil, unavailable(err)
	}

	dates := FutureDates(s.Points[s.Len()-1].Date, horizon)
	points := make([]model.ForecastPoint, horizon)
	for i := 0; i < horizon; i++ {
		p := model.ForecastPoint{
			Date:  dates[i],
			Value: est.Values[i],
		}
		if est.Lower != nil && est.Upper != nil {
			lo, hi := est.Lower[i], est.Upper[i]
			p.Lower, p.Upper = &lo, &hi
		}
		points[i] = p
	}
	return points, nil
}

// Forecast runs a strategy with default options
func Forecast(ctx context.Context, s model.PriceSeries, horizon int, strategy string) ([]model.ForecastPoint, error) {
	return NewEngine(DefaultOptions()).Forecast(ctx, s, horizon, strategy)
}

func checkEstimate(est *Estimate, horizon int) error {
	if est == nil || len(est.Values) != horizon {
		return errors.New("strategy returned wrong number of values")
	}
	if (est.Lower == nil) != (est.Upper == nil) {
		return errors.New("strategy returned a one-sided interval")
	}
	if est.Lower != nil && (len(est.Lower) != horizon || len(est.Upper) != horizon) {
		return errors.New("strategy returned wrong number of bounds")
	}
	for i, v := range est.Values {
		if !finite(v) {
			return fmt.Errorf("non-finite forecast at step %d", i+1)
		}
		if est.Lower != nil && (!finite(est.Lower[i]) || !finite(est.Upper[i])) {
			return fmt.Errorf("non-finite interval at step %d", i+1)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FutureDates returns the horizon calendar days following last
func FutureDates(last time.Time, horizon int) []time.Time {
	dates := make([]time.Time, horizon)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}
	return dates
}
