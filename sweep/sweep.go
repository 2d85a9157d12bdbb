// Package sweep runs one strategy configuration per parameter set over the
// same data and ranks the outcomes. Every run gets its own ledger and
// strategy instance; nothing is shared between runs but the bar source.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/backtester/engine"
	"github.com/rustyeddy/backtester/feed"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/strategy"
)

// Spec is one candidate configuration. NewStrategy is called once per run
// so strategies never carry state across runs.
type Spec struct {
	Name        string
	NewStrategy func() (strategy.Strategy, error)
}

// Result is the outcome of one run. Exactly one of Report and Err is set;
// a run with zero trades is a valid Report, not an error.
type Result struct {
	Name    string
	Report  *engine.Report
	Err     error
	Elapsed time.Duration
}

// Failed reports whether the run errored (including timeout).
func (r Result) Failed() bool { return r.Err != nil }

// Runner executes a sweep. The bar source must be safe for concurrent
// reads; feed.SliceSource and feed.CSVSource both are.
type Runner struct {
	Source feed.BarSource
	Engine engine.Config
	Ledger ledger.Config

	// Workers is the number of concurrent runs. Zero means 4.
	Workers int

	// Timeout bounds each individual run. Zero means no per-run limit.
	Timeout time.Duration

	Logger *slog.Logger
}

// Run executes every spec and returns one Result per spec, in spec order.
// A failing run is recorded and skipped; it never aborts the sweep.
func (r *Runner) Run(ctx context.Context, specs []Spec) ([]Result, error) {
	if r.Source == nil {
		return nil, errors.New("sweep: nil bar source")
	}
	if len(specs) == 0 {
		return nil, errors.New("sweep: no specs")
	}

	workers := r.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(specs) {
		workers = len(specs)
	}
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	results := make([]Result, len(specs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.runOne(ctx, specs[i])
				if results[i].Failed() {
					log.Warn("sweep run failed", "name", specs[i].Name, "error", results[i].Err)
				} else {
					log.Info("sweep run done",
						"name", specs[i].Name,
						"trades", results[i].Report.Metrics.TotalTrades,
						"return_pct", results[i].Report.Metrics.TotalReturnPct,
					)
				}
			}
		}()
	}

	for i := range specs {
		if err := ctx.Err(); err != nil {
			close(jobs)
			wg.Wait()
			return nil, err
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

func (r *Runner) runOne(ctx context.Context, spec Spec) Result {
	start := time.Now()
	result := Result{Name: spec.Name}

	defer func() {
		result.Elapsed = time.Since(start)
	}()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	strat, err := spec.NewStrategy()
	if err != nil {
		result.Err = fmt.Errorf("build strategy: %w", err)
		return result
	}

	led, err := ledger.New(r.Ledger)
	if err != nil {
		result.Err = fmt.Errorf("build ledger: %w", err)
		return result
	}

	eng, err := engine.New(r.Engine, r.Source, strat, led)
	if err != nil {
		result.Err = err
		return result
	}

	report, err := eng.Run(ctx)
	if err != nil {
		result.Err = err
		return result
	}
	result.Report = report
	return result
}

// RankBy sorts successful results by the given metric, best first. Failed
// runs sort to the end; among them order is by name for stability.
func RankBy(results []Result, metric func(ledger.Metrics) float64) []Result {
	out := make([]Result, len(results))
	copy(out, results)

	sort.SliceStable(out, func(i, j int) bool {
		switch {
		case out[i].Failed() && out[j].Failed():
			return out[i].Name < out[j].Name
		case out[i].Failed():
			return false
		case out[j].Failed():
			return true
		}
		return metric(out[i].Report.Metrics) > metric(out[j].Report.Metrics)
	})
	return out
}

// ByReturn ranks on total return percentage.
func ByReturn(m ledger.Metrics) float64 { return m.TotalReturnPct }

// ByProfitFactor ranks on profit factor; undefined factors rank lowest.
func ByProfitFactor(m ledger.Metrics) float64 { return m.ProfitFactor.Float64() }
