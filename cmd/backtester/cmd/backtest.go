package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/analyzer"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/engine"
	"github.com/rustyeddy/backtester/feed"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one strategy over historical bar data",
	Long: `Backtest replays a CSV bar series through a strategy and prints the
performance summary.

Supported strategies:
  - ema-cross: price/EMA crossover with pip-distance stops
  - rsi-reversal: oversold/overbought reversal entries
  - rsi-scalping: RSI band-exit scalping with a spread filter

Example:
  backtester backtest --config config.yaml
  backtester backtest --data ./data --symbol EURUSD --strategy ema-cross`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btDataDir    string
	btSymbol     string
	btTimeframe  string
	btBalance    float64
	btStrategy   string
	btOutDir     string
	btParquet    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to YAML config (flags override it)")
	backtestCmd.Flags().StringVarP(&btDataDir, "data", "d", "", "directory of SYMBOL_TF.csv bar files")
	backtestCmd.Flags().StringVar(&btSymbol, "symbol", "", "instrument symbol, e.g. EURUSD")
	backtestCmd.Flags().StringVarP(&btTimeframe, "timeframe", "t", "", "bar timeframe (M1, M5, M15, M30, H1, H4, D1)")
	backtestCmd.Flags().Float64VarP(&btBalance, "balance", "b", 0, "starting account balance")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "strategy name")
	backtestCmd.Flags().StringVarP(&btOutDir, "out", "o", "", "directory for report exports (JSON + CSV)")
	backtestCmd.Flags().BoolVar(&btParquet, "parquet", false, "also export trades and equity as Parquet")
}

// loadConfig merges the config file (or defaults) with command-line flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if btConfigPath != "" {
		cfg, err = config.Load(btConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if btDataDir != "" {
		cfg.Data.Dir = btDataDir
	}
	if btSymbol != "" {
		cfg.Data.Symbol = btSymbol
	}
	if btTimeframe != "" {
		cfg.Data.Timeframe = btTimeframe
	}
	if btBalance > 0 {
		cfg.Account.Balance = btBalance
	}
	if btStrategy != "" {
		cfg.Strategy.Name = btStrategy
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildJournal creates the journal the config asks for.
func buildJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
}

// buildStrategy resolves the configured strategy name and knobs.
func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	meta := cfg.Instrument()
	return strategy.ByName(cfg.Strategy.Name, strategy.Options{
		LotSize:        cfg.Strategy.LotSize,
		StopLossPips:   cfg.Strategy.StopLossPips,
		TakeProfitPips: cfg.Strategy.TakeProfitPips,
		PipSize:        meta.PipSize,
		EMAPeriod:      cfg.Strategy.EMAPeriod,
		RSIPeriod:      cfg.Strategy.RSIPeriod,
		RSIOverbought:  cfg.Strategy.RSIOverbought,
		RSIOversold:    cfg.Strategy.RSIOversold,
	})
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	jrn, err := buildJournal(cfg)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer jrn.Close()

	strat, err := buildStrategy(cfg)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	led, err := ledger.New(ledger.Config{
		InitialBalance: cfg.Account.Balance,
		Instrument:     cfg.Instrument(),
	})
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	policy, err := engine.ParseErrorPolicy(cfg.Engine.ErrorPolicy)
	if err != nil {
		return err
	}

	start, end, err := cfg.DataRange()
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Config{
		Symbol:    cfg.Data.Symbol,
		Timeframe: cfg.Timeframe(),
		Start:     start,
		End:       end,
		Policy:    policy,
		Journal:   jrn,
		Logger:    log,
	}, feed.NewCSVSource(cfg.Data.Dir), strat, led)
	if err != nil {
		return err
	}

	report, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}

	stats := analyzer.Analyze(report)
	if err := analyzer.WriteSummary(os.Stdout, report); err != nil {
		return err
	}

	if btOutDir != "" {
		if err := exportReport(btOutDir, report, stats); err != nil {
			return err
		}
		log.Info("report exported", "dir", btOutDir)
	}

	return nil
}

func exportReport(dir string, report *engine.Report, stats analyzer.Stats) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	prefix := fmt.Sprintf("%s_%s_%s", report.Strategy, report.Symbol, report.Start.Format("20060102"))

	if err := analyzer.WriteSummaryJSON(filepath.Join(dir, prefix+"_summary.json"), report, stats); err != nil {
		return err
	}
	if err := analyzer.WriteTradesCSV(filepath.Join(dir, prefix+"_trades.csv"), report); err != nil {
		return err
	}
	if err := analyzer.WriteEquityCSV(filepath.Join(dir, prefix+"_equity.csv"), report); err != nil {
		return err
	}

	if btParquet {
		if err := analyzer.WriteTradesParquet(filepath.Join(dir, prefix+"_trades.parquet"), report); err != nil {
			return err
		}
		if err := analyzer.WriteEquityParquet(filepath.Join(dir, prefix+"_equity.parquet"), report); err != nil {
			return err
		}
	}
	return nil
}
