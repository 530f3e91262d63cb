package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ARIMAConfig bounds the automatic order search
type ARIMAConfig struct {
	MaxP            int
	MaxD            int
	MaxQ            int
	MinObservations int
}

// DefaultARIMAConfig returns the default search space
func DefaultARIMAConfig() ARIMAConfig {
	return ARIMAConfig{
		MaxP:            3,
		MaxD:            2,
		MaxQ:            2,
		MinObservations: 30,
	}
}

// Order is an ARIMA(p,d,q) specification
type Order struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// ARIMA picks the differencing order by the lowest-variance rule, then the
// ARMA orders by AIC. Coefficients are estimated with the Hannan-Rissanen
// two-stage regression: a long autoregression supplies innovation estimates
// that stand in for the moving-average regressors.
type ARIMA struct {
	cfg ARIMAConfig
}

// NewARIMA creates an automatic-order ARIMA strategy
func NewARIMA(cfg ARIMAConfig) *ARIMA {
	return &ARIMA{cfg: cfg}
}

func (a *ARIMA) Name() string { return StrategyARIMA }

func (a *ARIMA) Description() string {
	return "Automatic-order ARIMA selected by AIC; point forecasts only"
}

// Predict fits the series and returns point forecasts without bounds
func (a *ARIMA) Predict(ctx context.Context, dates []time.Time, values []float64, horizon int) (*Estimate, error) {
	fit, err := a.Fit(ctx, values)
	if err != nil {
		return nil, err
	}
	diffed := fit.extrapolate(horizon)
	return &Estimate{Values: integrate(values, fit.Order.D, diffed)}, nil
}

// ARIMAFit is a fitted model on the differenced series
type ARIMAFit struct {
	Order  Order
	AIC    float64
	Sigma2 float64

	intercept float64
	ar        []float64
	ma        []float64
	y         []float64 // differenced series
	resid     []float64 // innovation estimates aligned with y
}

// Fit selects orders and estimates coefficients
func (a *ARIMA) Fit(ctx context.Context, values []float64) (*ARIMAFit, error) {
	if len(values) < a.cfg.MinObservations {
		return nil, fmt.Errorf("need at least %d observations, have %d", a.cfg.MinObservations, len(values))
	}
	if stat.Variance(values, nil) == 0 {
		return nil, errors.New("constant series")
	}

	d := chooseDifferencing(values, a.cfg.MaxD)
	y := values
	for i := 0; i < d; i++ {
		y = difference(y)
	}
	n := len(y)

	m := longAROrder(n)
	start := m + a.cfg.MaxQ
	if start < a.cfg.MaxP {
		start = a.cfg.MaxP
	}

	// Stage one: long autoregression for innovation estimates
	innov, err := longARResiduals(y, m)
	if err != nil {
		innov = nil
	}

	floor := 1e-12 * math.Max(1, meanSquare(y))

	var best *ARIMAFit
	for p := 0; p <= a.cfg.MaxP; p++ {
		for q := 0; q <= a.cfg.MaxQ; q++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if q > 0 && innov == nil {
				continue
			}

			fit, err := fitARMA(y, innov, p, q, start, floor)
			if err != nil {
				continue
			}
			fit.Order = Order{P: p, D: d, Q: q}
			if best == nil || fit.AIC < best.AIC {
				best = fit
			}
		}
	}

	if best == nil {
		return nil, errors.New("no candidate order could be fitted")
	}
	return best, nil
}

// fitARMA is stage two: regress y_t on its own lags and lagged innovations
// over the common sample [start, n).
func fitARMA(y, innov []float64, p, q, start int, floor float64) (*ARIMAFit, error) {
	n := len(y)
	k := 1 + p + q
	if n-start < k+5 {
		return nil, fmt.Errorf("sample too short for p=%d q=%d", p, q)
	}

	rows := make([][]float64, 0, n-start)
	target := make([]float64, 0, n-start)
	for t := start; t < n; t++ {
		row := make([]float64, 0, k)
		row = append(row, 1)
		for i := 1; i <= p; i++ {
			row = append(row, y[t-i])
		}
		for j := 1; j <= q; j++ {
			row = append(row, innov[t-j])
		}
		rows = append(rows, row)
		target = append(target, y[t])
	}

	beta, resid, err := leastSquares(rows, target)
	if err != nil {
		return nil, err
	}

	ssr := 0.0
	for _, r := range resid {
		ssr += r * r
	}
	sigma2 := math.Max(ssr/float64(len(resid)), floor)
	aic := float64(len(resid))*math.Log(sigma2) + 2*float64(k+1)

	full := make([]float64, n)
	if innov != nil {
		copy(full, innov)
	}
	copy(full[start:], resid)

	return &ARIMAFit{
		AIC:       aic,
		Sigma2:    sigma2,
		intercept: beta[0],
		ar:        beta[1 : 1+p],
		ma:        beta[1+p:],
		y:         y,
		resid:     full,
	}, nil
}

// extrapolate forecasts the differenced series; future innovations are zero
func (f *ARIMAFit) extrapolate(horizon int) []float64 {
	y := append([]float64(nil), f.y...)
	e := append([]float64(nil), f.resid...)
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		v := f.intercept
		for i, phi := range f.ar {
			v += phi * y[len(y)-1-i]
		}
		for j, theta := range f.ma {
			v += theta * e[len(e)-1-j]
		}
		y = append(y, v)
		e = append(e, 0)
		out[h] = v
	}
	return out
}

func longARResiduals(y []float64, m int) ([]float64, error) {
	n := len(y)
	rows := make([][]float64, 0, n-m)
	target := make([]float64, 0, n-m)
	for t := m; t < n; t++ {
		row := make([]float64, 0, m+1)
		row = append(row, 1)
		for i := 1; i <= m; i++ {
			row = append(row, y[t-i])
		}
		rows = append(rows, row)
		target = append(target, y[t])
	}
	_, resid, err := leastSquares(rows, target)
	if err != nil {
		return nil, err
	}
	innov := make([]float64, n)
	copy(innov[m:], resid)
	return innov, nil
}

// longAROrder grows with log(n) but never exceeds a quarter of the sample
func longAROrder(n int) int {
	m := int(10 * math.Log10(float64(n)))
	if limit := n / 4; m > limit {
		m = limit
	}
	if m < 4 {
		m = 4
	}
	return m
}

// chooseDifferencing returns the d in [0, maxD] whose differenced series has
// the lowest variance. Ties go to the smaller d.
func chooseDifferencing(values []float64, maxD int) int {
	best, bestVar := 0, stat.Variance(values, nil)
	x := values
	for d := 1; d <= maxD; d++ {
		if len(x) < 3 {
			break
		}
		x = difference(x)
		if v := stat.Variance(x, nil); v < bestVar {
			best, bestVar = d, v
		}
	}
	return best
}

func difference(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// integrate undoes d rounds of differencing, anchoring each level on the
// last observed value of that level.
func integrate(values []float64, d int, forecast []float64) []float64 {
	levels := make([][]float64, d+1)
	levels[0] = values
	for k := 1; k <= d; k++ {
		levels[k] = difference(levels[k-1])
	}

	out := forecast
	for k := d - 1; k >= 0; k-- {
		prev := levels[k][len(levels[k])-1]
		next := make([]float64, len(out))
		for i, v := range out {
			prev += v
			next[i] = prev
		}
		out = next
	}
	return out
}

func meanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range x {
		s += v * v
	}
	return s / float64(len(x))
}
