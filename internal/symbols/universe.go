package symbols

import "stockanalyzer/pkg/model"

// Universe represents a predefined stock universe
type Universe string

const (
	UniverseDefault Universe = "default"
	UniverseUS      Universe = "us"
	UniverseIndia   Universe = "india"
)

// DefaultStocks is the selectable list offered when nothing is configured
var DefaultStocks = []model.Stock{
	{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Exchange: "NASDAQ"},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Exchange: "NASDAQ"},
	{Symbol: "TSLA", Name: "Tesla Inc.", Exchange: "NASDAQ"},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Exchange: "NASDAQ"},
	{Symbol: "INFY.NS", Name: "Infosys Ltd.", Exchange: "NSE"},
	{Symbol: "TCS.NS", Name: "Tata Consultancy Services", Exchange: "NSE"},
	{Symbol: "RELIANCE.NS", Name: "Reliance Industries", Exchange: "NSE"},
	{Symbol: "HDFCBANK.NS", Name: "HDFC Bank Ltd.", Exchange: "NSE"},
	{Symbol: "SBIN.NS", Name: "State Bank of India", Exchange: "NSE"},
}

// DefaultSelection is what a run compares when no tickers are given
var DefaultSelection = []string{"AAPL", "MSFT", "RELIANCE.NS"}

// GetUniverse returns the list of stocks for a given universe
func GetUniverse(u Universe) []model.Stock {
	switch u {
	case UniverseDefault:
		return DefaultStocks
	case UniverseUS:
		return filter(DefaultStocks, func(s model.Stock) bool { return s.Exchange != "NSE" })
	case UniverseIndia:
		return filter(DefaultStocks, func(s model.Stock) bool { return s.Exchange == "NSE" })
	default:
		return nil
	}
}

// Symbols returns just the ticker symbols of a stock list
func Symbols(stocks []model.Stock) []string {
	out := make([]string, len(stocks))
	for i, s := range stocks {
		out[i] = s.Symbol
	}
	return out
}

func filter(stocks []model.Stock, keep func(model.Stock) bool) []model.Stock {
	var out []model.Stock
	for _, s := range stocks {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
