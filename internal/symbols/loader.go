package symbols

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"stockanalyzer/pkg/model"
)

// DefaultSuffixes maps an exchange identifier to the symbol suffix the
// market-data providers expect. US listings carry no suffix.
var DefaultSuffixes = map[string]string{
	"US":     "",
	"NYSE":   "",
	"NASDAQ": "",
	"NSE":    ".NS",
	"BSE":    ".BO",
	"LSE":    ".L",
	"TSX":    ".TO",
	"ASX":    ".AX",
	"HKEX":   ".HK",
	"TSE":    ".T",
	"KRX":    ".KS",
	"KOSDAQ": ".KQ",
	"XETRA":  ".DE",
}

// ErrUnknownExchange is returned for an exchange missing from the suffix table
var ErrUnknownExchange = errors.New("unknown exchange")

// ErrInvalidTicker is returned for tickers with unsupported characters
var ErrInvalidTicker = errors.New("invalid ticker")

// Resolver qualifies bare tickers with their exchange suffix
type Resolver struct {
	suffixes map[string]string
}

// NewResolver creates a resolver over the given exchange → suffix table.
// A nil table uses DefaultSuffixes.
func NewResolver(table map[string]string) *Resolver {
	if table == nil {
		table = DefaultSuffixes
	}
	suffixes := make(map[string]string, len(table))
	for exchange, suffix := range table {
		suffixes[strings.ToUpper(exchange)] = strings.ToUpper(suffix)
	}
	return &Resolver{suffixes: suffixes}
}

// Resolve returns the provider symbol for a ticker on an exchange. The
// suffix is applied at most once: a ticker that already carries any known
// exchange suffix is returned unchanged.
func (r *Resolver) Resolve(ticker, exchange string) (model.Stock, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if !isValidSymbol(symbol) {
		return model.Stock{}, fmt.Errorf("%w %q", ErrInvalidTicker, ticker)
	}

	if ex, ok := r.exchangeOf(symbol); ok {
		return model.Stock{Symbol: symbol, Name: symbol, Exchange: ex}, nil
	}

	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	if exchange == "" {
		exchange = "US"
	}
	suffix, ok := r.suffixes[exchange]
	if !ok {
		return model.Stock{}, fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
	}

	return model.Stock{Symbol: symbol + suffix, Name: symbol, Exchange: exchange}, nil
}

// ResolveAll parses, de-duplicates and resolves a list of tickers, keeping
// first-seen order
func (r *Resolver) ResolveAll(tickers []string, exchange string) ([]model.Stock, error) {
	seen := make(map[string]bool, len(tickers))
	stocks := make([]model.Stock, 0, len(tickers))
	for _, t := range ParseList(tickers) {
		stock, err := r.Resolve(t, exchange)
		if err != nil {
			return nil, err
		}
		if seen[stock.Symbol] {
			continue
		}
		seen[stock.Symbol] = true
		stocks = append(stocks, stock)
	}
	return stocks, nil
}

// Exchanges returns the configured exchange identifiers, sorted
func (r *Resolver) Exchanges() []string {
	names := make([]string, 0, len(r.suffixes))
	for name := range r.suffixes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exchangeOf reports the exchange whose non-empty suffix the symbol already carries
func (r *Resolver) exchangeOf(symbol string) (string, bool) {
	dot := strings.LastIndex(symbol, ".")
	if dot <= 0 {
		return "", false
	}
	tail := symbol[dot:]
	match := ""
	for exchange, suffix := range r.suffixes {
		if suffix == "" || suffix != tail {
			continue
		}
		// Several exchanges could share a suffix; pick deterministically
		if match == "" || exchange < match {
			match = exchange
		}
	}
	return match, match != ""
}

// ParseList splits comma or whitespace separated ticker lists and drops blanks
func ParseList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		}) {
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// isValidSymbol checks if a symbol looks like a ticker
func isValidSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 20 {
		return false
	}
	for _, c := range symbol {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '-', c == '^', c == '&', c == '=':
		default:
			return false
		}
	}
	return true
}
