package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrForecastUnavailable marks every failure of a strategy to fit
	ErrForecastUnavailable = errors.New("forecast unavailable")

	// ErrInvalidHorizon is returned before any strategy runs
	ErrInvalidHorizon = errors.New("invalid forecast horizon")

	// ErrUnknownStrategy is returned for unregistered strategy names
	ErrUnknownStrategy = errors.New("unknown forecast strategy")
)

// UnavailableError describes why a strategy could not produce a forecast
type UnavailableError struct {
	Strategy string
	Ticker   string
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Ticker != "" {
		return fmt.Sprintf("forecast unavailable (%s, %s): %v", e.Strategy, e.Ticker, e.Err)
	}
	return fmt.Sprintf("forecast unavailable (%s): %v", e.Strategy, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrForecastUnavailable
func (e *UnavailableError) Is(target error) bool {
	return target == ErrForecastUnavailable
}

// Estimate is the raw output of a strategy, one entry per future period.
// Lower and Upper are nil when the strategy has no interval.
type Estimate struct {
	Values []float64
	Lower  []float64
	Upper  []float64
}

// Strategy fits a model to an observed series and extrapolates it
type Strategy interface {
	// Name returns the registry name
	Name() string

	// Description returns a brief description
	Description() string

	// Predict fits the observed values and returns horizon future estimates
	Predict(ctx context.Context, dates []time.Time, values []float64, horizon int) (*Estimate, error)
}

// Options tune strategy construction
type Options struct {
	// IntervalWidth is the probability mass covered by prediction intervals
	IntervalWidth float64
}

// DefaultOptions returns the default strategy options
func DefaultOptions() Options {
	return Options{IntervalWidth: 0.80}
}

// Factory builds a strategy from options
type Factory func(opts Options) Strategy

var (
	registry     = make(map[string]Factory)
	registryLock sync.RWMutex
)

// Register adds a strategy under name, replacing any previous registration
func Register(name string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[name] = factory
}

// Get builds the strategy registered under name
func Get(name string, opts Options) (Strategy, error) {
	registryLock.RLock()
	factory, ok := registry[name]
	registryLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownStrategy, name, List())
	}
	return factory(opts), nil
}

// List returns registered strategy names in sorted order
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info describes a registered strategy
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Intervals   bool   `json:"intervals"`
}

// AllInfo describes every registered strategy
func AllInfo() []Info {
	names := List()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		s, err := Get(name, DefaultOptions())
		if err != nil {
			continue
		}
		_, intervals := s.(interface{ Intervals() bool })
		infos = append(infos, Info{
			Name:        s.Name(),
			Description: s.Description(),
			Intervals:   intervals,
		})
	}
	return infos
}

func init() {
	Register(StrategyARIMA, func(opts Options) Strategy {
		return NewARIMA(DefaultARIMAConfig())
	})
	Register(StrategyAdditive, func(opts Options) Strategy {
		return NewAdditive(opts.IntervalWidth)
	})
}
