package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/engine"
	"github.com/rustyeddy/backtester/feed"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/strategy"
	"github.com/rustyeddy/backtester/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a strategy across a parameter grid and rank the results",
	Long: `Sweep runs one backtest per parameter combination, in parallel, and
prints the results ranked by total return. Each run gets a fresh ledger
and strategy instance.

Grid axes are given as name=v1,v2,... flags:

  backtester sweep --config config.yaml \
      --grid ema_period=10,20,50 --grid lot_size=0.05,0.1`,
	RunE: runSweep,
}

var sweepGrid []string

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to YAML config (flags override it)")
	sweepCmd.Flags().StringVarP(&btDataDir, "data", "d", "", "directory of SYMBOL_TF.csv bar files")
	sweepCmd.Flags().StringVar(&btSymbol, "symbol", "", "instrument symbol, e.g. EURUSD")
	sweepCmd.Flags().StringVarP(&btTimeframe, "timeframe", "t", "", "bar timeframe (M1, M5, M15, M30, H1, H4, D1)")
	sweepCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "strategy name")
	sweepCmd.Flags().StringArrayVarP(&sweepGrid, "grid", "g", nil, "grid axis as name=v1,v2,... (repeatable)")
}

// parseGrid turns --grid flags into parameter axes. Values parse as int,
// then float, then stay strings.
func parseGrid(flags []string) (map[string][]any, error) {
	axes := make(map[string][]any, len(flags))
	for _, f := range flags {
		name, list, ok := strings.Cut(f, "=")
		if !ok || name == "" || list == "" {
			return nil, fmt.Errorf("grid axis %q: want name=v1,v2,...", f)
		}
		var values []any
		for _, raw := range strings.Split(list, ",") {
			raw = strings.TrimSpace(raw)
			if n, err := strconv.Atoi(raw); err == nil {
				values = append(values, n)
				continue
			}
			if x, err := strconv.ParseFloat(raw, 64); err == nil {
				values = append(values, x)
				continue
			}
			values = append(values, raw)
		}
		axes[name] = values
	}
	return axes, nil
}

// gridOptions maps one grid combination onto strategy options.
func gridOptions(base strategy.Options, params map[string]any) (strategy.Options, error) {
	opts := base
	for name, v := range params {
		switch name {
		case "ema_period":
			opts.EMAPeriod = toInt(v)
		case "rsi_period":
			opts.RSIPeriod = toInt(v)
		case "rsi_overbought":
			opts.RSIOverbought = toFloat(v)
		case "rsi_oversold":
			opts.RSIOversold = toFloat(v)
		case "lot_size":
			opts.LotSize = toFloat(v)
		case "stop_loss_pips":
			opts.StopLossPips = toFloat(v)
		case "take_profit_pips":
			opts.TakeProfitPips = toFloat(v)
		default:
			return opts, fmt.Errorf("unknown grid parameter %q", name)
		}
	}
	return opts, nil
}

func toInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case float64:
		return int(x)
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return 0
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(sweepGrid) == 0 {
		return fmt.Errorf("at least one --grid axis is required")
	}

	axes, err := parseGrid(sweepGrid)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	meta := cfg.Instrument()

	baseOpts := strategy.Options{
		LotSize:        cfg.Strategy.LotSize,
		StopLossPips:   cfg.Strategy.StopLossPips,
		TakeProfitPips: cfg.Strategy.TakeProfitPips,
		PipSize:        meta.PipSize,
		EMAPeriod:      cfg.Strategy.EMAPeriod,
		RSIPeriod:      cfg.Strategy.RSIPeriod,
		RSIOverbought:  cfg.Strategy.RSIOverbought,
		RSIOversold:    cfg.Strategy.RSIOversold,
	}

	specs := sweep.Grid(cfg.Strategy.Name, axes, func(params map[string]any) (strategy.Strategy, error) {
		opts, err := gridOptions(baseOpts, params)
		if err != nil {
			return nil, err
		}
		return strategy.ByName(cfg.Strategy.Name, opts)
	})

	policy, err := engine.ParseErrorPolicy(cfg.Engine.ErrorPolicy)
	if err != nil {
		return err
	}
	start, end, err := cfg.DataRange()
	if err != nil {
		return err
	}

	runner := &sweep.Runner{
		Source: feed.NewCSVSource(cfg.Data.Dir),
		Engine: engine.Config{
			Symbol:    cfg.Data.Symbol,
			Timeframe: cfg.Timeframe(),
			Start:     start,
			End:       end,
			Policy:    policy,
			Logger:    log,
		},
		Ledger: ledger.Config{
			InitialBalance: cfg.Account.Balance,
			Instrument:     meta,
		},
		Workers: cfg.Sweep.Workers,
		Timeout: cfg.SweepTimeout(),
		Logger:  log,
	}

	results, err := runner.Run(cmd.Context(), specs)
	if err != nil {
		return err
	}

	printRanking(sweep.RankBy(results, sweep.ByReturn))
	return nil
}

func printRanking(ranked []sweep.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tTRADES\tRETURN%\tPROFIT FACTOR\tMAX DD%\tSTATUS")
	for i, r := range ranked {
		if r.Failed() {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t-\tFAILED: %v\n", i+1, r.Name, r.Err)
			continue
		}
		m := r.Report.Metrics
		pf := "n/a"
		if v, ok := m.ProfitFactor.Value(); ok {
			pf = strconv.FormatFloat(v, 'f', 2, 64)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%s\t%.2f\tok\n",
			i+1, r.Name, m.TotalTrades, m.TotalReturnPct, pf, m.MaxDrawdownPct)
	}
	w.Flush()
}
