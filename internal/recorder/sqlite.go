package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"stockanalyzer/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[STORE] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id               TEXT PRIMARY KEY,
			created_at       INTEGER NOT NULL,
			tickers          TEXT NOT NULL,
			date_range       TEXT,
			horizon          INTEGER,
			strategy         TEXT,
			best             TEXT,
			worst            TEXT,
			avg_total_return REAL,
			warnings         INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS run_stats (
			run_id           TEXT NOT NULL REFERENCES runs(id),
			position         INTEGER NOT NULL,
			ticker           TEXT NOT NULL,
			total_return     REAL,
			avg_daily_return REAL,
			volatility       REAL,
			observations     INTEGER,
			PRIMARY KEY (run_id, position)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores a run and its per-ticker statistics in one transaction
func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, created_at, tickers, date_range, horizon, strategy, best, worst, avg_total_return, warnings)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, created.Unix(), strings.Join(run.Tickers, ","), run.Range,
		run.Horizon, run.Strategy, run.Best, run.Worst,
		nullable(run.AvgTotalReturn), run.Warnings,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, s := range run.Stats {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_stats
			(run_id, position, ticker, total_return, avg_daily_return, volatility, observations)
			VALUES (?,?,?,?,?,?,?)`,
			run.ID, i, s.Ticker,
			nullable(s.TotalReturn), nullable(s.AvgDailyReturn), nullable(s.Volatility),
			s.Observations,
		)
		if err != nil {
			return fmt.Errorf("insert stats for %s: %w", s.Ticker, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit runs, newest first
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `SELECT
		id, created_at, tickers, date_range, horizon, strategy, best, worst, avg_total_return, warnings
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var (
			run     RunRecord
			created int64
			tickers string
			avg     sql.NullFloat64
		)
		if err := rows.Scan(&run.ID, &created, &tickers, &run.Range, &run.Horizon,
			&run.Strategy, &run.Best, &run.Worst, &avg, &run.Warnings); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.Unix(created, 0)
		if tickers != "" {
			run.Tickers = strings.Split(tickers, ",")
		}
		run.AvgTotalReturn = fromNullable(avg)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		stats, err := r.stats(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stats = stats
	}
	return runs, nil
}

func (r *SQLiteRecorder) stats(ctx context.Context, runID string) ([]model.TickerStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		ticker, total_return, avg_daily_return, volatility, observations
		FROM run_stats WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []model.TickerStats
	for rows.Next() {
		var (
			s             model.TickerStats
			total, avg, v sql.NullFloat64
		)
		if err := rows.Scan(&s.Ticker, &total, &avg, &v, &s.Observations); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		s.TotalReturn = fromNullable(total)
		s.AvgDailyReturn = fromNullable(avg)
		s.Volatility = fromNullable(v)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[STORE] closing sqlite recorder")
	return r.db.Close()
}

// nullable maps undefined statistics onto SQL NULL
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
