package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"stockanalyzer/internal/provider"
)

var (
	cfgFile string
	envFile string
	verbose bool

	startDate string
	endDate   string
	period    string
	exchange  string
	horizon   int
	fcHorizon int
	strategy  string
	format    string
	chartFile string
	indexed   bool
	refresh   bool
	limit     int
	port      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stockanalyzer",
		Short: "Compare stock performance and forecast prices",
		Long: `Stock Analyzer fetches daily prices for a set of tickers, compares their
returns, volatility and correlation, and optionally forecasts future prices.

Examples:
  stockanalyzer analyze AAPL MSFT RELIANCE.NS --start 2023-01-01
  stockanalyzer analyze TCS INFY --exchange NSE --period 1y --format csv
  stockanalyzer forecast AAPL --horizon 30 --strategy additive --chart aapl.png
  stockanalyzer serve --port 8080`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with API keys")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "show detailed output")

	rootCmd.AddCommand(analyzeCmd(), forecastCmd(), serveCmd(), historyCmd(), strategiesCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&startDate, "start", "", "start date YYYY-MM-DD (default from config)")
	cmd.Flags().StringVar(&endDate, "end", "", "end date YYYY-MM-DD, exclusive (default today)")
	cmd.Flags().StringVar(&period, "period", "", "relative period instead of dates: "+strings.Join(provider.Periods(), " "))
	cmd.Flags().StringVar(&exchange, "exchange", "", "exchange applied to bare tickers (default from config)")
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [tickers...]",
		Short: "Compare returns, volatility and correlation of several tickers",
		RunE:  runAnalyze,
	}
	addRangeFlags(cmd)
	cmd.Flags().IntVar(&horizon, "horizon", 0, "forecast horizon in days, 7-90 (0 disables)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "forecast strategy (default from config)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, csv")
	cmd.Flags().StringVar(&chartFile, "chart", "", "write a comparison chart PNG to this file")
	cmd.Flags().BoolVar(&indexed, "indexed", false, "rebase the chart to 100")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached results")
	return cmd
}

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast <ticker>",
		Short: "Forecast the adjusted close of one ticker",
		Args:  cobra.ExactArgs(1),
		RunE:  runForecast,
	}
	addRangeFlags(cmd)
	cmd.Flags().IntVar(&fcHorizon, "horizon", 30, "forecast horizon in days, 7-90")
	cmd.Flags().StringVar(&strategy, "strategy", "", "forecast strategy (default from config)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	cmd.Flags().StringVar(&chartFile, "chart", "", "write a forecast chart PNG to this file")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs",
		RunE:  runHistory,
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	return cmd
}

func strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List forecast strategies",
		RunE:  runStrategies,
	}
}
