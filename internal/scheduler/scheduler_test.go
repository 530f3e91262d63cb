package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stockanalyzer/internal/analysis"
	"stockanalyzer/pkg/model"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []analysis.Request
	err  error
}

func (r *fakeRunner) Run(ctx context.Context, req analysis.Request) (*analysis.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &analysis.Report{Stats: make([]model.TickerStats, len(req.Tickers))}, nil
}

type countingPurger struct{ n int }

func (p *countingPurger) Purge() int {
	p.n++
	return 0
}

func TestRunNow(t *testing.T) {
	runner := &fakeRunner{}
	purger := &countingPurger{}
	s := New(context.Background(), runner, []string{"AAPL", "MSFT"}, model.DateRange{Period: "1y"}, purger)

	if err := s.RunNow(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(runner.reqs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runner.reqs))
	}
	req := runner.reqs[0]
	if !req.Refresh {
		t.Error("Scheduled runs should bypass the cache")
	}
	if len(req.Tickers) != 2 || req.Range.Period != "1y" {
		t.Errorf("Unexpected request: %+v", req)
	}
	if purger.n != 1 {
		t.Errorf("Expected caches to be purged once, got %d", purger.n)
	}
	if s.LastRun().IsZero() {
		t.Error("LastRun should be set")
	}
}

func TestRunNowError(t *testing.T) {
	runner := &fakeRunner{err: analysis.ErrNoUsableData}
	s := New(context.Background(), runner, []string{"AAPL"}, model.DateRange{Period: "1mo"})

	if err := s.RunNow(); !errors.Is(err, analysis.ErrNoUsableData) {
		t.Errorf("Expected ErrNoUsableData, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	s := New(context.Background(), &fakeRunner{}, nil, model.DateRange{})
	if err := s.Register("0 0 * * * *"); err != nil {
		t.Errorf("Valid spec rejected: %v", err)
	}
	if err := s.Register("every hour"); err == nil {
		t.Error("Expected error for invalid spec")
	}
	s.Start()
	s.Stop()
}
