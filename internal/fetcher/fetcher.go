package fetcher

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"stockanalyzer/internal/provider"
	"stockanalyzer/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(fetched, total int)

// Result is the outcome of fetching one stock
type Result struct {
	Stock    model.Stock
	Series   *model.RawSeries
	Err      error
	TimedOut bool
	Elapsed  time.Duration
}

// OK reports whether the fetch produced a series
func (r Result) OK() bool {
	return r.Err == nil && r.Series != nil
}

// Fetcher downloads daily history for many stocks in parallel
type Fetcher struct {
	provider     provider.Provider
	workers      int
	timeout      time.Duration
	progressFunc ProgressCallback
}

// New creates a fetcher. timeout bounds each ticker's fetch individually.
func New(p provider.Provider, workers int, timeout time.Duration) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		provider: p,
		workers:  workers,
		timeout:  timeout,
	}
}

// SetProgressCallback sets the progress callback function
func (f *Fetcher) SetProgressCallback(fn ProgressCallback) {
	f.progressFunc = fn
}

// FetchAll fetches every stock and returns one Result per input, in input
// order. A failing or slow ticker never stops the others; cancelling ctx
// marks the remaining tickers with the context error.
func (f *Fetcher) FetchAll(ctx context.Context, stocks []model.Stock, rng model.DateRange) []Result {
	results := make([]Result, len(stocks))
	if len(stocks) == 0 {
		return results
	}

	jobs := make(chan int, len(stocks))
	for i := range stocks {
		jobs <- i
	}
	close(jobs)

	var fetched int64

	workers := f.workers
	if workers > len(stocks) {
		workers = len(stocks)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Each worker owns results[i] for the indices it receives
				results[i] = f.fetchOne(ctx, stocks[i], rng)

				count := atomic.AddInt64(&fetched, 1)
				if f.progressFunc != nil {
					f.progressFunc(int(count), len(stocks))
				}
			}
		}()
	}
	wg.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, stock model.Stock, rng model.DateRange) Result {
	res := Result{Stock: stock}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	fetchCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	series, err := f.provider.GetDailyHistory(fetchCtx, stock.Symbol, rng)
	res.Elapsed = time.Since(start)

	if err != nil {
		res.Err = err
		// Our own deadline, not the caller's cancellation
		res.TimedOut = errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		if res.TimedOut {
			log.Printf("[FETCH] %s: timed out after %s", stock.Symbol, f.timeout)
		} else {
			log.Printf("[FETCH] %s: %v", stock.Symbol, err)
		}
		return res
	}

	res.Series = series
	return res
}
