package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "An event-driven backtesting engine for bar-based trading strategies",
	Long: `Backtester replays historical OHLCV bars through trading strategies and
reports the results.

It provides tools for:
  - Backtesting rule-based and model-driven strategies on CSV bar data
  - Stop-loss/take-profit simulation with margin-checked position sizing
  - Trade journals (CSV or SQLite) and per-bar equity curves
  - Parallel parameter sweeps ranked by performance
  - Report export as text, JSON, CSV, or Parquet`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the logging config.
func newLogger(level, format string) *slog.Logger {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: slevel}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
