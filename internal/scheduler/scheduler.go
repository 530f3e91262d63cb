package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stockanalyzer/internal/analysis"
	"stockanalyzer/pkg/model"
)

// Runner executes analysis runs
type Runner interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Report, error)
}

// Purger drops expired cache entries
type Purger interface {
	Purge() int
}

// Scheduler re-runs a watchlist on a cron schedule so that requests for it
// are served from a warm cache.
type Scheduler struct {
	cron      *cron.Cron
	runner    Runner
	purgers   []Purger
	watchlist []string
	rng       model.DateRange
	timeout   time.Duration
	ctx       context.Context

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// New creates a scheduler for the watchlist
func New(ctx context.Context, runner Runner, watchlist []string, rng model.DateRange, purgers ...Purger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		runner:    runner,
		purgers:   purgers,
		watchlist: watchlist,
		rng:       rng,
		timeout:   5 * time.Minute,
		ctx:       ctx,
	}
}

// Register adds the refresh job under spec (cron with seconds field)
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[SCHED] started, watchlist %v", s.watchlist)
}

// Stop stops the scheduler and waits for a running job
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[SCHED] stopped")
}

// RunNow executes the refresh immediately
func (s *Scheduler) RunNow() error {
	s.refresh()
	return s.LastError()
}

// LastRun returns when the refresh last finished
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// LastError returns the error of the last refresh, if any
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) refresh() {
	for _, p := range s.purgers {
		p.Purge()
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	report, err := s.runner.Run(ctx, analysis.Request{
		Tickers: s.watchlist,
		Range:   s.rng,
		Refresh: true,
	})

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		log.Printf("[SCHED] refresh failed: %v", err)
		return
	}
	log.Printf("[SCHED] refreshed %d tickers in %s (%d warnings)",
		len(report.Stats), time.Since(start).Round(time.Millisecond), len(report.Warnings))
}
