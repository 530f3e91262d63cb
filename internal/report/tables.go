package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"stockanalyzer/internal/analysis"
	"stockanalyzer/internal/forecast"
	"stockanalyzer/internal/recorder"
	"stockanalyzer/pkg/model"
)

// RenderReport prints every section of a run as terminal tables
func RenderReport(w io.Writer, r *analysis.Report) {
	fmt.Fprintf(w, "Run %s  range %s  tickers %s", r.RunID, r.RangeKey, strings.Join(r.Tickers, ", "))
	if r.Cached {
		fmt.Fprint(w, "  (cached)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "\nPerformance Metrics")
	StatsTable(w, r.Stats)

	fmt.Fprintln(w, "\nReturn Correlation Matrix")
	CorrelationTable(w, r.Correlation)
	if r.PartialOverlap {
		fmt.Fprintf(w, "Only %d common dates; correlation is undefined.\n", r.CommonDates)
	}

	fmt.Fprintln(w, "\nSummary")
	SummaryText(w, r)

	for _, fc := range r.Forecasts {
		fmt.Fprintf(w, "\nForecast %s (%s)\n", fc.Ticker, fc.Strategy)
		if fc.Unavailable != "" {
			fmt.Fprintf(w, "Unavailable: %s\n", fc.Unavailable)
			continue
		}
		ForecastTable(w, fc.Points)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings")
		WarningsTable(w, r.Warnings)
	}
}

// StatsTable prints the ranked statistics
func StatsTable(w io.Writer, stats []model.TickerStats) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Stock", "Total Return (%)", "Avg Daily Return (%)", "Volatility (Std Dev)", "Days"}),
	)
	for i, row := range Rows(stats) {
		table.Append([]string{
			row.Ticker,
			fixed(row.TotalReturnPct, returnPlaces),
			fixed(row.AvgDailyReturnPct, returnPlaces),
			fixed(row.Volatility, volatilityPlaces),
			fmt.Sprintf("%d", stats[i].Observations),
		})
	}
	table.Render()
}

// CorrelationTable prints the correlation matrix
func CorrelationTable(w io.Writer, m model.CorrelationMatrix) {
	header := append([]string{""}, m.Tickers...)
	table := tablewriter.NewTable(w, tablewriter.WithHeader(header))
	for i, ticker := range m.Tickers {
		row := make([]string, 0, len(m.Tickers)+1)
		row = append(row, ticker)
		for j := range m.Tickers {
			row = append(row, fixed(round(m.Values[i][j], corrPlaces), corrPlaces))
		}
		table.Append(row)
	}
	table.Render()
}

// SummaryText prints best and worst performers and the average return
func SummaryText(w io.Writer, r *analysis.Report) {
	if len(r.Stats) == 0 {
		fmt.Fprintln(w, "Not enough data for summary.")
		return
	}
	s := Summarize(r.Summary)
	fmt.Fprintf(w, "Best Performer:  %s with %s return\n", s.Best, cellOr(s.BestReturnPct, "n/a", "%"))
	fmt.Fprintf(w, "Worst Performer: %s with %s return\n", s.Worst, cellOr(s.WorstReturnPct, "n/a", "%"))
	fmt.Fprintf(w, "Average Total Return across selected stocks: %s\n", cellOr(s.AvgTotalReturnPct, "n/a", "%"))
}

// WarningsTable prints per-ticker warnings
func WarningsTable(w io.Writer, warnings []analysis.Warning) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Ticker", "Kind", "Message"}),
	)
	for _, wn := range warnings {
		ticker := wn.Ticker
		if ticker == "" {
			ticker = "-"
		}
		msg := wn.Message
		if len(msg) > 70 {
			msg = msg[:70] + "..."
		}
		table.Append([]string{ticker, string(wn.Kind), msg})
	}
	table.Render()
}

// ForecastTable prints forecast points, with bounds when present
func ForecastTable(w io.Writer, points []model.ForecastPoint) {
	bounds := len(points) > 0 && points[0].HasBounds()
	header := []string{"Date", "Forecast"}
	if bounds {
		header = append(header, "Lower", "Upper")
	}

	table := tablewriter.NewTable(w, tablewriter.WithHeader(header))
	for _, p := range points {
		row := []string{p.Date.Format(model.DateLayout), formatPrice(p.Value)}
		if bounds {
			row = append(row, formatPrice(*p.Lower), formatPrice(*p.Upper))
		}
		table.Append(row)
	}
	table.Render()
}

// PriceTable prints daily prices
func PriceTable(w io.Writer, s model.PriceSeries) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}),
	)
	for _, p := range s.Points {
		table.Append([]string{
			p.Date.Format(model.DateLayout),
			formatPrice(p.Open),
			formatPrice(p.High),
			formatPrice(p.Low),
			formatPrice(p.Close),
			formatPrice(p.AdjClose),
			fmt.Sprintf("%d", p.Volume),
		})
	}
	table.Render()
}

// HistoryTable prints recorded runs
func HistoryTable(w io.Writer, runs []recorder.RunRecord) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"When", "Run", "Tickers", "Range", "Best", "Worst", "Avg Return", "Warnings"}),
	)
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		table.Append([]string{
			run.CreatedAt.Format("2006-01-02 15:04"),
			id,
			strings.Join(run.Tickers, ","),
			run.Range,
			run.Best,
			run.Worst,
			FormatPct(run.AvgTotalReturn),
			fmt.Sprintf("%d", run.Warnings),
		})
	}
	table.Render()
}

// StrategiesTable prints the registered forecast strategies
func StrategiesTable(w io.Writer, infos []forecast.Info) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Name", "Intervals", "Description"}),
	)
	for _, info := range infos {
		intervals := "no"
		if info.Intervals {
			intervals = "yes"
		}
		table.Append([]string{info.Name, intervals, info.Description})
	}
	table.Render()
}
