package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nitinkhare/swingdss/internal/broker"
	"github.com/nitinkhare/swingdss/internal/fxrate"
	"github.com/nitinkhare/swingdss/internal/portfolio"
	"github.com/nitinkhare/swingdss/internal/risk"
	"github.com/nitinkhare/swingdss/internal/userstore"
)

func newPaperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Drive the paper-trading broker: start, check, summary, export",
	}
	cmd.AddCommand(newPaperStartCmd(), newPaperCheckCmd(), newPaperSummaryCmd(), newPaperExportCmd())
	return cmd
}

func newPaperStartCmd() *cobra.Command {
	var capital float64
	var slots int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Generate today's plan and open new paper positions for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if capital < 0 {
				return badArgs("--capital must be >= 0, got %f", capital)
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
			pb, err := broker.LoadPaperBroker(ctx, a.user, a.cfg.Capital)
			if err != nil {
				return fmt.Errorf("load paper broker: %w", err)
			}

			asOf := time.Now()
			universe, benchmark, err := loadUniverse(ctx, a, asOf)
			if err != nil {
				return err
			}
			sectors, err := loadSectorMap(a.cfg.SectorMapPath)
			if err != nil {
				return err
			}

			holdings, err := pb.GetHoldings(ctx)
			if err != nil {
				return fmt.Errorf("load holdings: %w", err)
			}
			open := make(map[string]bool, len(holdings))
			for _, h := range holdings {
				open[h.Symbol] = true
			}

			funds, err := pb.GetFunds(ctx)
			if err != nil {
				return fmt.Errorf("load funds: %w", err)
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
				AvailableCapital: funds.AvailableCash,
				OpenPositions:    open,
				StockAlloc:       a.cfg.StockAlloc,
			})
			if err != nil {
				return fmt.Errorf("build plan: %w", err)
			}

			opened := 0
			filled := make(map[string]bool)
			for _, sig := range plan.StockSignals {
				if open[sig.Symbol] {
					continue
				}
				order := broker.Order{
					Symbol:   sig.Symbol,
					Exchange: "NASDAQ",
					Side:     broker.OrderSideBuy,
					Type:     broker.OrderTypeLimit,
					Quantity: sig.PositionSize,
					Price:    sig.EntryPrice,
					Product:  "EQUITY",
					Tag:      string(sig.Strategy),
				}
				resp, err := pb.PlaceOrder(ctx, order)
				if err != nil {
					logger.Error().Err(err).Str("symbol", sig.Symbol).Msg("place paper order failed")
					continue
				}
				if resp.Status != broker.OrderStatusCompleted {
					logger.Warn().Str("symbol", sig.Symbol).Str("status", string(resp.Status)).Msg("paper order not filled")
					continue
				}
				filled[sig.Symbol] = true
				opened++
			}

			if err := pb.Persist(ctx, a.user); err != nil {
				return fmt.Errorf("persist paper broker: %w", err)
			}

			// Persist wrote generic stop/target multipliers for every holding;
			// overwrite the ones opened this cycle with the real signal levels.
			for _, sig := range plan.StockSignals {
				if !filled[sig.Symbol] {
					continue
				}
				if err := a.user.SavePosition(ctx, userstore.Position{
					Symbol:      sig.Symbol,
					Strategy:    string(sig.Strategy),
					EntryPrice:  sig.EntryPrice,
					StopLoss:    sig.StopLoss,
					TargetPrice: sig.TargetPrice,
					Quantity:    sig.PositionSize,
					EntryDate:   asOf,
				}); err != nil {
					logger.Error().Err(err).Str("symbol", sig.Symbol).Msg("save position failed")
				}
			}

			fmt.Printf("opened %d new paper positions\n", opened)
			return nil
		},
	}

	cmd.Flags().Float64Var(&capital, "capital", 0, "override the configured account capital (EUR)")
	cmd.Flags().IntVar(&slots, "slots", 0, "override the configured max stock positions")
	return cmd
}

func newPaperCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check open paper positions against their stops and close triggered ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, err := bootstrap(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			pb, err := broker.LoadPaperBroker(ctx, a.user, a.cfg.Capital)
			if err != nil {
				return fmt.Errorf("load paper broker: %w", err)
			}

			positions, err := a.user.OpenPositions(ctx)
			if err != nil {
				return fmt.Errorf("load open positions: %w", err)
			}

			closed := 0
			for _, p := range positions {
				latest, ok, err := a.market.LastTimestamp(ctx, p.Symbol)
				if err != nil || !ok {
					continue
				}
				b, ok, err := a.market.GetForDate(ctx, p.Symbol, latest)
				if err != nil || !ok || b.Low > p.StopLoss {
					continue
				}

				resp, err := pb.PlaceOrder(ctx, broker.Order{
					Symbol:   p.Symbol,
					Exchange: "NASDAQ",
					Side:     broker.OrderSideSell,
					Type:     broker.OrderTypeLimit,
					Quantity: p.Quantity,
					Price:    p.StopLoss,
					Product:  "EQUITY",
				})
				if err != nil || resp.Status != broker.OrderStatusCompleted {
					continue
				}

				pnl := (p.StopLoss - p.EntryPrice) * float64(p.Quantity)
				a.user.RecordTrade(ctx, recordFromClose(p, p.StopLoss, pnl, "stop_loss"))
				a.user.ClosePosition(ctx, p.Symbol)
				closed++
			}

			if err := pb.Persist(ctx, a.user); err != nil {
				return fmt.Errorf("persist paper broker: %w", err)
			}

			fmt.Printf("closed %d paper positions\n", closed)
			return nil
		},
	}
}

func newPaperSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print current paper-trading funds, holdings, and journaled trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, err := bootstrap(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			pb, err := broker.LoadPaperBroker(ctx, a.user, a.cfg.Capital)
			if err != nil {
				return fmt.Errorf("load paper broker: %w", err)
			}

			funds, err := pb.GetFunds(ctx)
			if err != nil {
				return err
			}
			holdings, err := pb.GetHoldings(ctx)
			if err != nil {
				return err
			}
			trades, err := a.user.Trades(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Available cash: %.2f\nUsed margin:    %.2f\n\n", funds.AvailableCash, funds.UsedMargin)
			fmt.Printf("Open holdings (%d):\n", len(holdings))
			for _, h := range holdings {
				fmt.Printf("  %-8s qty=%-6d avg=%.2f last=%.2f\n", h.Symbol, h.Quantity, h.AveragePrice, h.LastPrice)
			}

			wins, totalPnL := 0, 0.0
			for _, t := range trades {
				totalPnL += t.PnLEUR
				if t.PnLEUR > 0 {
					wins++
				}
			}
			fmt.Printf("\nClosed trades: %d", len(trades))
			if len(trades) > 0 {
				fmt.Printf(" (win rate %.1f%%, total P&L %.2f EUR)", 100*float64(wins)/float64(len(trades)), totalPnL)
			}
			fmt.Println()
			return nil
		},
	}
}

func newPaperExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the journaled trade history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, err := bootstrap(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			trades, err := a.user.Trades(cmd.Context())
			if err != nil {
				return fmt.Errorf("load trade journal: %w", err)
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				out = f
			}

			w := csv.NewWriter(out)
			defer w.Flush()

			w.Write([]string{"symbol", "strategy", "regime", "entry_price", "exit_price", "quantity", "entry_date", "exit_date", "exit_reason", "pnl_eur"})
			for _, t := range trades {
				w.Write([]string{
					t.Symbol, t.Strategy, t.Regime,
					strconv.FormatFloat(t.EntryPrice, 'f', 2, 64),
					strconv.FormatFloat(t.ExitPrice, 'f', 2, 64),
					strconv.Itoa(t.Quantity),
					t.EntryDate.Format("2006-01-02"),
					t.ExitDate.Format("2006-01-02"),
					t.ExitReason,
					strconv.FormatFloat(t.PnLEUR, 'f', 2, 64),
				})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write CSV to this file instead of stdout")
	return cmd
}

func recordFromClose(p userstore.Position, exitPrice, pnlEUR float64, reason string) userstore.TradeJournalEntry {
	return userstore.TradeJournalEntry{
		Symbol:     p.Symbol,
		Strategy:   p.Strategy,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   p.Quantity,
		EntryDate:  p.EntryDate,
		ExitDate:   time.Now(),
		ExitReason: reason,
		PnLEUR:     pnlEUR,
	}
}
