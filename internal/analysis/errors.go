package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTickers is returned when a run selects nothing
	ErrNoTickers = errors.New("no tickers selected")

	// ErrNoUsableData is returned when every selected ticker failed
	ErrNoUsableData = errors.New("no usable data for any ticker")

	// ErrInvalidRange is returned for an empty or inverted date range
	ErrInvalidRange = errors.New("invalid date range")
)

// WarningKind classifies a non-fatal problem in a run
type WarningKind string

const (
	KindNoData              WarningKind = "no_data"
	KindFetchFailed         WarningKind = "fetch_failed"
	KindTimeout             WarningKind = "timeout"
	KindPartialOverlap      WarningKind = "partial_overlap"
	KindForecastUnavailable WarningKind = "forecast_unavailable"
)

// Warning is a per-ticker (or run-wide, when Ticker is empty) problem that
// did not abort the run
type Warning struct {
	Ticker  string      `json:"ticker,omitempty"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Ticker == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s %s: %s", w.Ticker, w.Kind, w.Message)
}

// RunError aborts a run in which no ticker produced usable data. It carries
// the per-ticker reasons.
type RunError struct {
	Warnings []Warning
}

func (e *RunError) Error() string {
	parts := make([]string, len(e.Warnings))
	for i, w := range e.Warnings {
		parts[i] = w.String()
	}
	return fmt.Sprintf("%v (%s)", ErrNoUsableData, strings.Join(parts, "; "))
}

func (e *RunError) Unwrap() error {
	return ErrNoUsableData
}
