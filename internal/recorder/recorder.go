package recorder

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"stockanalyzer/pkg/model"
)

// RunRecord is the persisted summary of one analysis run. Price data is
// never stored, only the derived statistics.
type RunRecord struct {
	ID             string              `json:"id"`
	CreatedAt      time.Time           `json:"created_at"`
	Tickers        []string            `json:"tickers"`
	Range          string              `json:"range"`
	Horizon        int                 `json:"horizon"`
	Strategy       string              `json:"strategy,omitempty"`
	Best           string              `json:"best"`
	Worst          string              `json:"worst"`
	AvgTotalReturn float64             `json:"avg_total_return"`
	Warnings       int                 `json:"warnings"`
	Stats          []model.TickerStats `json:"stats"`
}

// MarshalJSON encodes an undefined average return as null
func (r RunRecord) MarshalJSON() ([]byte, error) {
	type plain RunRecord
	var avg *float64
	if !math.IsNaN(r.AvgTotalReturn) && !math.IsInf(r.AvgTotalReturn, 0) {
		avg = &r.AvgTotalReturn
	}
	return json.Marshal(struct {
		plain
		AvgTotalReturn *float64 `json:"avg_total_return"`
	}{plain(r), avg})
}

// Recorder persists run summaries
type Recorder interface {
	RecordRun(ctx context.Context, run *RunRecord) error
	// Recent returns the latest runs, newest first
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
