package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/ingestion"
	"github.com/nitinkhare/swingdss/internal/portfolio"
)

// loadUniverse loads the watchlist's symbols plus the benchmark symbol,
// as-of the given date, returning the benchmark's own series separately.
func loadUniverse(ctx context.Context, a *app, asOf time.Time) (universe map[string]bar.Series, benchmark bar.Series, err error) {
	symbols, err := ingestion.LoadWatchlist(a.cfg.DataProvider.SymbolsFile)
	if err != nil {
		return nil, bar.Series{}, fmt.Errorf("load watchlist: %w", err)
	}

	bench := a.cfg.Filters.BenchmarkSymbol
	fetch := symbols
	hasBench := false
	for _, s := range symbols {
		if s == bench {
			hasBench = true
			break
		}
	}
	if !hasBench {
		fetch = append(append([]string{}, symbols...), bench)
	}

	universe, err = a.market.GetUntil(ctx, fetch, asOf)
	if err != nil {
		return nil, bar.Series{}, fmt.Errorf("load universe: %w", err)
	}

	benchmark, ok := universe[bench]
	if !ok {
		return nil, bar.Series{}, fmt.Errorf("no stored history for benchmark symbol %q", bench)
	}
	delete(universe, bench)
	return universe, benchmark, nil
}

// loadSectorMap reads the symbol->sector JSON file configured at
// cfg.SectorMapPath. A missing file degrades gracefully to an empty map
// (sector diversity then treats every symbol as a single sector).
func loadSectorMap(path string) (portfolio.SectorMap, error) {
	if path == "" {
		return portfolio.SectorMap{}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return portfolio.SectorMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sector map: %w", err)
	}

	var sectors portfolio.SectorMap
	if err := json.Unmarshal(data, &sectors); err != nil {
		return nil, fmt.Errorf("parse sector map: %w", err)
	}
	return sectors, nil
}
