package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/shopspring/decimal"

	"stockanalyzer/internal/metrics"
	"stockanalyzer/pkg/model"
)

// CSVFilename is the suggested download name for metrics exports
const CSVFilename = "stock_metrics.csv"

// Display precision
const (
	returnPlaces     = 2 // percent
	volatilityPlaces = 4
	corrPlaces       = 2
)

// Row is one ticker's statistics rounded for display. Return figures are in
// percent. A nil field means the statistic is undefined.
type Row struct {
	Ticker            string           `json:"ticker"`
	TotalReturnPct    *decimal.Decimal `json:"total_return_pct"`
	AvgDailyReturnPct *decimal.Decimal `json:"avg_daily_return_pct"`
	Volatility        *decimal.Decimal `json:"volatility"`
}

// Rows rounds statistics at the presentation boundary, keeping their order
func Rows(stats []model.TickerStats) []Row {
	rows := make([]Row, len(stats))
	for i, s := range stats {
		rows[i] = Row{
			Ticker:            s.Ticker,
			TotalReturnPct:    percent(s.TotalReturn),
			AvgDailyReturnPct: percent(s.AvgDailyReturn),
			Volatility:        round(s.Volatility, volatilityPlaces),
		}
	}
	return rows
}

// SummaryRow is the run summary rounded for display
type SummaryRow struct {
	Best              string           `json:"best"`
	BestReturnPct     *decimal.Decimal `json:"best_return_pct"`
	Worst             string           `json:"worst"`
	WorstReturnPct    *decimal.Decimal `json:"worst_return_pct"`
	AvgTotalReturnPct *decimal.Decimal `json:"avg_total_return_pct"`
}

// Summarize rounds a run summary
func Summarize(s metrics.Summary) SummaryRow {
	return SummaryRow{
		Best:              s.Best.Ticker,
		BestReturnPct:     percent(s.Best.TotalReturn),
		Worst:             s.Worst.Ticker,
		WorstReturnPct:    percent(s.Worst.TotalReturn),
		AvgTotalReturnPct: percent(s.AvgTotalReturn),
	}
}

// WriteCSV writes the metrics table with columns ticker, total_return,
// avg_daily_return, volatility. Returns are percentages at 2 dp, volatility
// at 4 dp; undefined values are empty cells.
func WriteCSV(w io.Writer, stats []model.TickerStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ticker", "total_return", "avg_daily_return", "volatility"}); err != nil {
		return err
	}
	for _, r := range Rows(stats) {
		record := []string{r.Ticker, cell(r.TotalReturnPct), cell(r.AvgDailyReturnPct), cell(r.Volatility)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatPct renders a fraction as a rounded percentage, "n/a" when undefined
func FormatPct(v float64) string {
	return cellOr(percent(v), "n/a", "%")
}

func percent(v float64) *decimal.Decimal {
	if !finite(v) {
		return nil
	}
	d := decimal.NewFromFloat(v).Shift(2).Round(returnPlaces)
	return &d
}

func round(v float64, places int32) *decimal.Decimal {
	if !finite(v) {
		return nil
	}
	d := decimal.NewFromFloat(v).Round(places)
	return &d
}

func cell(d *decimal.Decimal) string {
	return cellOr(d, "", "")
}

func cellOr(d *decimal.Decimal, missing, suffix string) string {
	if d == nil {
		return missing
	}
	return d.String() + suffix
}

func fixed(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "n/a"
	}
	return d.StringFixed(places)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatPrice(v float64) string {
	if !finite(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
