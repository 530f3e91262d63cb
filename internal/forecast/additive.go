package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minAdditiveObservations is two full weekly cycles
const minAdditiveObservations = 14

// Additive decomposes the series into a linear trend plus a day-of-week
// seasonal component and extrapolates both. Uncertainty comes from the
// residual spread, widened for distance from the centre of the sample.
type Additive struct {
	width float64
}

// NewAdditive creates the strategy with the given interval width (e.g. 0.80)
func NewAdditive(width float64) *Additive {
	if width <= 0 || width >= 1 {
		width = DefaultOptions().IntervalWidth
	}
	return &Additive{width: width}
}

func (a *Additive) Name() string { return StrategyAdditive }

func (a *Additive) Description() string {
	return fmt.Sprintf("Additive trend + weekly seasonality with %.0f%% prediction interval", a.width*100)
}

// Intervals reports that this strategy produces bounds
func (a *Additive) Intervals() bool { return true }

// Decomposition holds the fitted components
type Decomposition struct {
	Intercept float64
	Slope     float64 // per calendar day
	Seasonal  [7]float64
	Sigma     float64

	origin time.Time
	n      int
	tMean  float64
	sxx    float64
}

// Decompose fits the trend and seasonal components
func (a *Additive) Decompose(dates []time.Time, values []float64) (*Decomposition, error) {
	n := len(values)
	if n != len(dates) {
		return nil, fmt.Errorf("%d dates for %d values", len(dates), n)
	}
	if n < minAdditiveObservations {
		return nil, fmt.Errorf("need at least %d observations, have %d", minAdditiveObservations, n)
	}
	if stat.Variance(values, nil) == 0 {
		return nil, errors.New("constant series")
	}

	origin := dates[0]
	t := make([]float64, n)
	for i, d := range dates {
		t[i] = d.Sub(origin).Hours() / 24
	}

	alpha, beta := stat.LinearRegression(t, values, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return nil, errors.New("trend regression failed")
	}

	detrended := make([]float64, n)
	for i := range values {
		detrended[i] = values[i] - (alpha + beta*t[i])
	}

	// Weekday means of the detrended series, centred over observed weekdays
	var sums [7]float64
	var counts [7]int
	for i, d := range dates {
		wd := d.Weekday()
		sums[wd] += detrended[i]
		counts[wd]++
	}
	var seasonal [7]float64
	observed := 0
	centre := 0.0
	for wd := range seasonal {
		if counts[wd] > 0 {
			seasonal[wd] = sums[wd] / float64(counts[wd])
			centre += seasonal[wd]
			observed++
		}
	}
	centre /= float64(observed)
	for wd := range seasonal {
		if counts[wd] > 0 {
			seasonal[wd] -= centre
		}
	}

	ssr := 0.0
	for i, d := range dates {
		r := detrended[i] - seasonal[d.Weekday()]
		ssr += r * r
	}
	dof := n - 2 - (observed - 1)
	if dof < 1 {
		dof = n - 2
	}
	sigma := math.Sqrt(ssr / float64(dof))
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, errors.New("residual spread undefined")
	}

	tMean := stat.Mean(t, nil)
	sxx := 0.0
	for _, v := range t {
		sxx += (v - tMean) * (v - tMean)
	}
	if sxx == 0 {
		return nil, errors.New("observations share a single date")
	}

	return &Decomposition{
		Intercept: alpha,
		Slope:     beta,
		Seasonal:  seasonal,
		Sigma:     sigma,
		origin:    origin,
		n:         n,
		tMean:     tMean,
		sxx:       sxx,
	}, nil
}

// Predict returns point forecasts with lower and upper bounds
func (a *Additive) Predict(ctx context.Context, dates []time.Time, values []float64, horizon int) (*Estimate, error) {
	dec, err := a.Decompose(dates, values)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	z := distuv.UnitNormal.Quantile(0.5 + a.width/2)
	future := FutureDates(dates[len(dates)-1], horizon)

	est := &Estimate{
		Values: make([]float64, horizon),
		Lower:  make([]float64, horizon),
		Upper:  make([]float64, horizon),
	}
	for i, d := range future {
		tf := d.Sub(dec.origin).Hours() / 24
		yhat := dec.Intercept + dec.Slope*tf + dec.Seasonal[d.Weekday()]
		se := dec.Sigma * math.Sqrt(1+1/float64(dec.n)+(tf-dec.tMean)*(tf-dec.tMean)/dec.sxx)

		est.Values[i] = yhat
		est.Lower[i] = yhat - z*se
		est.Upper[i] = yhat + z*se
	}
	return est, nil
}
