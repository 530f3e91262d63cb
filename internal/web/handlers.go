package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockanalyzer/internal/analysis"
	"stockanalyzer/internal/chart"
	"stockanalyzer/internal/forecast"
	"stockanalyzer/internal/provider"
	"stockanalyzer/internal/report"
	"stockanalyzer/internal/symbols"
	"stockanalyzer/pkg/model"
)

// requestTimeout bounds a single API request including all fetches
const requestTimeout = 2 * time.Minute

// recordsStart is the default start of /stocks
var recordsStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// StockResponse is the price history of one ticker
type StockResponse struct {
	Ticker string             `json:"ticker"`
	Data   []model.PricePoint `json:"data"`
}

// UniverseResponse lists predefined stocks and supported exchanges
type UniverseResponse struct {
	Universe  string        `json:"universe"`
	Stocks    []model.Stock `json:"stocks"`
	Defaults  []string      `json:"defaults"`
	Exchanges []string      `json:"exchanges"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string             `json:"error"`
	Warnings []analysis.Warning `json:"warnings,omitempty"`
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Stock Analyzer API"})
}

// handleStock returns the last month of prices for one ticker
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	q := r.URL.Query()
	ticker := strings.TrimSpace(q.Get("ticker"))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ps, err := s.service.History(ctx, ticker, q.Get("exchange"), model.DateRange{Period: "1mo"})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{Ticker: ps.Ticker, Data: ps.Points})
}

// handleStocks returns prices for several tickers between two dates,
// keyed by symbol
func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	q := r.URL.Query()
	rng, err := parseRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rng.Period == "" && rng.Start.IsZero() {
		rng.Start = recordsStart
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	histories, err := s.service.Histories(ctx, tickersParam(q), q.Get("exchange"), rng)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(histories) == 0 {
		writeError(w, http.StatusNotFound, "no data found for the requested tickers")
		return
	}

	resp := make(map[string][]model.PricePoint, len(histories))
	for symbol, ps := range histories {
		resp[symbol] = ps.Points
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnalyze runs a full comparison and returns the report
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.analyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleMetricsCSV runs a comparison and returns the metrics table as CSV
func (s *Server) handleMetricsCSV(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.analyze(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.CSVFilename))
	if err := report.WriteCSV(w, rep.Stats); err != nil {
		log.Printf("[WEB] failed to write CSV: %v", err)
	}
}

// handleChart renders the comparison chart of a run as PNG
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.analyze(w, r)
	if !ok {
		return
	}
	indexed, _ := strconv.ParseBool(r.URL.Query().Get("indexed"))

	png, err := chart.Comparison(rep.Series, indexed, "Adjusted Close Prices")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// handleForecast forecasts one ticker
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	q := r.URL.Query()
	ticker := strings.TrimSpace(q.Get("ticker"))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	horizon, err := strconv.Atoi(q.Get("horizon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "horizon must be an integer")
		return
	}
	rng, err := parseRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	fc, err := s.service.Forecast(ctx, ticker, q.Get("exchange"), rng, horizon, q.Get("strategy"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": forecast.AllInfo()})
}

// handleUniverse returns a predefined stock list, the configured one by default
func (s *Server) handleUniverse(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	name := r.URL.Query().Get("name")
	stocks := s.config.Universe.Stocks
	if name != "" {
		stocks = symbols.GetUniverse(symbols.Universe(strings.ToLower(name)))
		if stocks == nil {
			writeError(w, http.StatusNotFound, "unknown universe "+name)
			return
		}
	} else {
		name = "configured"
	}

	writeJSON(w, http.StatusOK, UniverseResponse{
		Universe:  name,
		Stocks:    stocks,
		Defaults:  s.config.Universe.Defaults,
		Exchanges: s.resolver.Exchanges(),
	})
}

// handleHistory lists recently recorded runs
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.service.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// analyze parses the shared run query and executes it. It writes the error
// response itself and reports whether the caller should continue.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*analysis.Report, bool) {
	if !allowGet(w, r) {
		return nil, false
	}
	q := r.URL.Query()

	rng, err := parseRange(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	horizon := 0
	if v := q.Get("horizon"); v != "" {
		if horizon, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "horizon must be an integer")
			return nil, false
		}
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rep, err := s.service.Run(ctx, analysis.Request{
		Tickers:  tickersParam(q),
		Exchange: q.Get("exchange"),
		Range:    rng,
		Horizon:  horizon,
		Strategy: q.Get("strategy"),
		Refresh:  refresh,
	})
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return rep, true
}

// fail maps an error to a status code and writes it
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[WEB] %s %s: %v", r.Method, r.URL.Path, err)
	}

	resp := ErrorResponse{Error: err.Error()}
	var runErr *analysis.RunError
	if errors.As(err, &runErr) {
		resp.Warnings = runErr.Warnings
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrNoTickers),
		errors.Is(err, analysis.ErrInvalidRange),
		errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, forecast.ErrUnknownStrategy),
		errors.Is(err, symbols.ErrInvalidTicker),
		errors.Is(err, symbols.ErrUnknownExchange):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrNoData), errors.Is(err, chart.ErrNoSeries):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrForecastUnavailable), errors.Is(err, analysis.ErrNoUsableData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseRange reads period, start and end. start_date and end_date are
// accepted as aliases.
func parseRange(q url.Values) (model.DateRange, error) {
	var rng model.DateRange
	if p := q.Get("period"); p != "" {
		rng.Period = p
		return rng, nil
	}

	var err error
	if rng.Start, err = parseDate(first(q, "start", "start_date")); err != nil {
		return rng, fmt.Errorf("invalid start date: %w", err)
	}
	if rng.End, err = parseDate(first(q, "end", "end_date")); err != nil {
		return rng, fmt.Errorf("invalid end date: %w", err)
	}
	return rng, nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(model.DateLayout, v)
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// tickersParam collects tickers from repeated or comma-separated parameters
func tickersParam(q url.Values) []string {
	values := append([]string(nil), q["tickers"]...)
	values = append(values, q["ticker"]...)
	return symbols.ParseList(values)
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WEB] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
