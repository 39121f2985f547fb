// Package ingestion implements the Ingestion Orchestrator: it reads a
// watchlist, computes each symbol's watermark against the Market Store,
// and fetches only the missing range from the Data Provider with
// exponential-backoff retries.
package ingestion

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/config"
	"github.com/nitinkhare/swingdss/internal/market"
	"github.com/nitinkhare/swingdss/internal/vendor"
)

// retryDelays is the exponential backoff table. fetchWithRetry makes
// len(retryDelays) attempts and sleeps retryDelays[i] after failed attempt
// i, except after the last one, so the final entry is never slept.
var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}

// Provider is the subset of vendor.Client the orchestrator needs,
// narrowed for testability.
type Provider interface {
	GetHistorical(ctx context.Context, symbol string, from, to time.Time) (bar.Series, error)
}

// Store is the subset of market.Store the orchestrator needs.
type Store interface {
	LastTimestamp(ctx context.Context, symbol string) (time.Time, bool, error)
	Upsert(ctx context.Context, symbol string, bars []bar.Bar) error
}

// Orchestrator drives the daily/backfill sync of the watchlist's symbols.
type Orchestrator struct {
	provider        Provider
	store           Store
	historicalYears int
	concurrency     int
	logger          zerolog.Logger
}

// New creates an Orchestrator. concurrency is resolved from the plan tier
// via config.PlanConcurrency (1 for free, up to 50 for developer/advanced).
func New(provider Provider, store Store, cfg config.DataProviderConfig, logger zerolog.Logger) *Orchestrator {
	concurrency := config.PlanConcurrency[cfg.Plan]
	if concurrency <= 0 {
		concurrency = 1
	}
	years := cfg.HistoricalYears
	if years <= 0 {
		years = 5
	}
	return &Orchestrator{
		provider:        provider,
		store:           store,
		historicalYears: years,
		concurrency:     concurrency,
		logger:          logger.With().Str("component", "ingestion").Logger(),
	}
}

// LoadWatchlist reads a symbols file: one ticker per line, '#'-prefixed
// lines and blank lines ignored.
func LoadWatchlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open watchlist %s: %w", path, err)
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingestion: read watchlist %s: %w", path, err)
	}
	return symbols, nil
}

// Result summarizes one symbol's sync outcome.
type Result struct {
	Symbol  string
	Fetched int
	Skipped bool
	Err     error
}

// Sync brings every symbol in the watchlist up to date as of `end`,
// respecting historicalYears as the backfill floor and running batches of
// `concurrency` symbols at a time via errgroup.
func (o *Orchestrator) Sync(ctx context.Context, symbols []string, end time.Time, forceFull bool) []Result {
	results := make([]Result, len(symbols))

	for batchStart := 0; batchStart < len(symbols); batchStart += o.concurrency {
		batchEnd := batchStart + o.concurrency
		if batchEnd > len(symbols) {
			batchEnd = len(symbols)
		}
		batch := symbols[batchStart:batchEnd]

		g, gctx := errgroup.WithContext(ctx)
		batchResults := make([]Result, len(batch))
		for i, sym := range batch {
			i, sym := i, sym
			g.Go(func() error {
				batchResults[i] = o.syncSymbol(gctx, sym, end, forceFull)
				return nil // per-symbol errors are captured in the Result, not propagated
			})
		}
		_ = g.Wait()
		copy(results[batchStart:batchEnd], batchResults)
	}

	return results
}

func (o *Orchestrator) syncSymbol(ctx context.Context, symbol string, end time.Time, forceFull bool) Result {
	floor := end.AddDate(-o.historicalYears, 0, 0)

	start := floor
	if !forceFull {
		last, ok, err := o.store.LastTimestamp(ctx, symbol)
		if err != nil {
			return Result{Symbol: symbol, Err: fmt.Errorf("watermark: %w", err)}
		}
		if ok {
			candidate := last.AddDate(0, 0, 1)
			if candidate.After(floor) {
				start = candidate
			}
		}
	}

	if start.After(end) {
		return Result{Symbol: symbol, Skipped: true}
	}

	series, err := o.fetchWithRetry(ctx, symbol, start, end)
	if err != nil {
		o.logger.Warn().Str("symbol", symbol).Err(err).Msg("sync failed")
		return Result{Symbol: symbol, Err: err}
	}
	if series.Len() == 0 {
		return Result{Symbol: symbol, Skipped: true}
	}

	if err := o.store.Upsert(ctx, symbol, series.Bars); err != nil {
		return Result{Symbol: symbol, Err: fmt.Errorf("upsert: %w", err)}
	}

	return Result{Symbol: symbol, Fetched: series.Len()}
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, symbol string, start, end time.Time) (bar.Series, error) {
	var lastErr error
	for attempt := 0; attempt < len(retryDelays); attempt++ {
		series, err := o.provider.GetHistorical(ctx, symbol, start, end)
		if err == nil {
			return series, nil
		}
		lastErr = err
		if attempt < len(retryDelays)-1 {
			select {
			case <-ctx.Done():
				return bar.Series{}, ctx.Err()
			case <-time.After(retryDelays[attempt]):
			}
		}
	}
	return bar.Series{}, fmt.Errorf("ingestion: fetch %s after %d attempts: %w", symbol, len(retryDelays), lastErr)
}

var _ Provider = (*vendor.Client)(nil)
var _ Store = (*market.Store)(nil)
