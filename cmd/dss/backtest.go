package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nitinkhare/swingdss/internal/analytics"
	"github.com/nitinkhare/swingdss/internal/backtest"
	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/fxrate"
	"github.com/nitinkhare/swingdss/internal/ingestion"
	"github.com/nitinkhare/swingdss/internal/portfolio"
	"github.com/nitinkhare/swingdss/internal/risk"
)

func newBacktestCmd() *cobra.Command {
	var years int
	var capital float64
	var slots int

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the weekly state-machine simulator over stored history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if years <= 0 {
				return badArgs("--years must be > 0, got %d", years)
			}
			if capital < 0 {
				return badArgs("--capital must be >= 0, got %f", capital)
			}
			if slots < 0 {
				return badArgs("--slots must be >= 0, got %d", slots)
			}

			logger := newLogger()
			a, err := bootstrap(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if capital > 0 {
				a.cfg.Capital = capital
			}
			if slots > 0 {
				a.cfg.Risk.MaxStockPositions = slots
			}

			return runBacktest(cmd.Context(), a, logger, years)
		},
	}

	cmd.Flags().IntVar(&years, "years", 5, "number of years of history to simulate")
	cmd.Flags().Float64Var(&capital, "capital", 0, "override the configured account capital (EUR)")
	cmd.Flags().IntVar(&slots, "slots", 0, "override the configured max stock positions")
	return cmd
}

func runBacktest(ctx context.Context, a *app, logger zerolog.Logger, years int) error {
	end := time.Now()
	start := end.AddDate(-years, 0, 0)

	symbols, err := ingestion.LoadWatchlist(a.cfg.DataProvider.SymbolsFile)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	bench := a.cfg.Filters.BenchmarkSymbol
	benchmark, err := a.market.Get(ctx, bench, start, end)
	if err != nil {
		return fmt.Errorf("load benchmark history: %w", err)
	}

	data := make(map[string]bar.Series, len(symbols))
	for _, sym := range symbols {
		series, err := a.market.Get(ctx, sym, start, end)
		if err != nil {
			return fmt.Errorf("load history for %s: %w", sym, err)
		}
		if series.Len() > 0 {
			data[sym] = series
		}
	}

	sectors, err := loadSectorMap(a.cfg.SectorMapPath)
	if err != nil {
		return err
	}

	fx := fxrate.NewResolver(a.user, logger).Rate(ctx)
	riskMgr := risk.NewManager(a.cfg.Risk)
	mgr := portfolio.NewManager(riskMgr, sectors, a.cfg.Filters, a.cfg.Risk)

	sim := backtest.NewSimulator(backtest.Config{
		Data:           data,
		Benchmark:      benchmark,
		Calendar:       a.calendar,
		Portfolio:      mgr,
		RiskConfig:     a.cfg.Risk,
		Filters:        a.cfg.Filters,
		Sectors:        sectors,
		FXRate:         fx,
		InitialCapital: a.cfg.Capital,
	})

	result, err := sim.Run(ctx, start, end)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	fmt.Println(analytics.FormatReport(result))
	return nil
}
