package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nitinkhare/swingdss/internal/fxrate"
	"github.com/nitinkhare/swingdss/internal/portfolio"
	"github.com/nitinkhare/swingdss/internal/risk"
)

func newSignalsCmd() *cobra.Command {
	var capital float64
	var slots int

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Generate a one-shot trading plan for the current date",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			ctx := cmd.Context()
			asOf := time.Now()

			universe, benchmark, err := loadUniverse(ctx, a, asOf)
			if err != nil {
				return err
			}

			sectors, err := loadSectorMap(a.cfg.SectorMapPath)
			if err != nil {
				return err
			}

			openPositions, err := a.user.OpenPositions(ctx)
			if err != nil {
				return fmt.Errorf("load open positions: %w", err)
			}
			open := make(map[string]bool, len(openPositions))
			usedCapital := 0.0
			for _, p := range openPositions {
				open[p.Symbol] = true
				usedCapital += p.EntryPrice * float64(p.Quantity)
			}
			available := a.cfg.Capital - usedCapital
			if available < 0 {
				available = 0
			}

			fx := fxrate.NewResolver(a.user, logger).Rate(ctx)
			riskMgr := risk.NewManager(a.cfg.Risk)
			mgr := portfolio.NewManager(riskMgr, sectors, a.cfg.Filters, a.cfg.Risk)

			plan, err := mgr.Build(ctx, portfolio.BuildInput{
				Benchmark:        benchmark,
				Universe:         universe,
				AsOf:             asOf,
				FXRate:           fx,
				TotalEquity:      a.cfg.Capital,
				AvailableCapital: available,
				OpenPositions:    open,
				StockAlloc:       a.cfg.StockAlloc,
			})
			if err != nil {
				return fmt.Errorf("build plan: %w", err)
			}

			printPlan(plan)
			return nil
		},
	}

	cmd.Flags().Float64Var(&capital, "capital", 0, "override the configured account capital (EUR)")
	cmd.Flags().IntVar(&slots, "slots", 0, "override the configured max stock positions")
	return cmd
}

func printPlan(plan portfolio.Plan) {
	fmt.Printf("Regime: %s (ADX %.1f, ATR%% %.2f)\n", plan.Regime.Regime, plan.Regime.ADX, plan.Regime.ATRPercent)
	fmt.Printf("Primary strategy: %s\n", plan.PrimaryStrategy)
	fmt.Printf("Capital allocation: stock=%.2f cash=%.2f total=%.2f\n\n",
		plan.CapitalAllocation.Stock, plan.CapitalAllocation.Cash, plan.CapitalAllocation.Total)

	if len(plan.StockSignals) == 0 {
		fmt.Println("No signals this cycle.")
		return
	}

	fmt.Printf("%-8s %-14s %10s %10s %10s %6s %7s\n", "SYMBOL", "STRATEGY", "ENTRY", "STOP", "TARGET", "QTY", "SCORE")
	for _, sig := range plan.StockSignals {
		fmt.Printf("%-8s %-14s %10.2f %10.2f %10.2f %6d %7.2f\n",
			sig.Symbol, sig.Strategy, sig.EntryPrice, sig.StopLoss, sig.TargetPrice, sig.PositionSize, sig.Score)
	}
}
