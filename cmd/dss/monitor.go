package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nitinkhare/swingdss/internal/fxrate"
	"github.com/nitinkhare/swingdss/internal/ingestion"
	"github.com/nitinkhare/swingdss/internal/portfolio"
	"github.com/nitinkhare/swingdss/internal/risk"
	"github.com/nitinkhare/swingdss/internal/scheduler"
	"github.com/nitinkhare/swingdss/internal/vendor"
	"github.com/nitinkhare/swingdss/internal/webhook"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the long-lived loop: nightly sync, weekly planning, market-hour position checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, err := bootstrap(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			notifier := webhook.NewNotifier(a.cfg.Webhook, logger)
			sched := scheduler.New(a.calendar, logger)

			sched.RegisterJob(scheduler.Job{
				Name:    "sync_market_data",
				Type:    scheduler.JobTypeNightly,
				RunFunc: func(ctx context.Context) error { return runNightlySync(ctx, a, logger, notifier) },
			})
			sched.RegisterJob(scheduler.Job{
				Name:    "check_open_positions",
				Type:    scheduler.JobTypeMarketHour,
				RunFunc: func(ctx context.Context) error { return checkOpenPositions(ctx, a, logger, notifier) },
			})
			sched.RegisterJob(scheduler.Job{
				Name:    "weekly_plan",
				Type:    scheduler.JobTypeWeekly,
				RunFunc: func(ctx context.Context) error { return logWeeklyPlan(ctx, a, logger, notifier) },
			})

			return runMonitorLoop(ctx, a, sched, logger)
		},
	}
	return cmd
}

// runMonitorLoop polls every 5 minutes, running market-hour jobs whenever
// the market is open, and nightly/weekly jobs once per eligible window.
func runMonitorLoop(ctx context.Context, a *app, sched *scheduler.Scheduler, logger zerolog.Logger) error {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	var lastNightly, lastWeekly time.Time
	logger.Info().Msg("monitor loop started")

	runCycle := func(now time.Time) {
		if err := sched.RunMarketHourJobs(ctx); err != nil {
			logger.Error().Err(err).Msg("market-hour jobs failed")
		}
		if a.calendar.IsTradingDay(now) && !a.calendar.IsMarketOpen(now) && now.Sub(lastNightly) > 12*time.Hour {
			if err := sched.RunNightlyJobs(ctx); err != nil {
				logger.Error().Err(err).Msg("nightly jobs failed")
			}
			lastNightly = now
		}
		if now.Weekday() == time.Monday && now.Sub(lastWeekly) > 24*time.Hour {
			if err := sched.RunWeeklyJobs(ctx); err != nil {
				logger.Error().Err(err).Msg("weekly jobs failed")
			}
			lastWeekly = now
		}
	}

	runCycle(time.Now())

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("monitor loop stopping")
			return nil
		case now := <-ticker.C:
			runCycle(now)
		}
	}
}

func runNightlySync(ctx context.Context, a *app, logger zerolog.Logger, notifier *webhook.Notifier) error {
	symbols, err := ingestion.LoadWatchlist(a.cfg.DataProvider.SymbolsFile)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	client := vendor.NewClient(a.cfg.DataProvider)
	orchestrator := ingestion.New(client, a.market, a.cfg.DataProvider, logger)
	results := orchestrator.Sync(ctx, symbols, time.Now(), false)

	updated := 0
	for _, r := range results {
		if r.Err == nil {
			updated++
			continue
		}
		logger.Warn().Str("symbol", r.Symbol).Err(r.Err).Msg("symbol not updated this cycle")
		notifier.Send(ctx, webhook.IngestFailedAlert(r.Symbol, r.Err))
	}
	logger.Info().Int("updated", updated).Int("total", len(results)).Msg("nightly sync complete")
	return nil
}

// checkOpenPositions re-checks every open position's stop against the
// latest stored bar and emits a dedup'd heartbeat alert when a position
// is at or past its stop.
func checkOpenPositions(ctx context.Context, a *app, logger zerolog.Logger, notifier *webhook.Notifier) error {
	positions, err := a.user.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	for _, p := range positions {
		latest, ok, err := a.market.LastTimestamp(ctx, p.Symbol)
		if err != nil || !ok {
			continue
		}
		b, ok, err := a.market.GetForDate(ctx, p.Symbol, latest)
		if err != nil || !ok {
			continue
		}

		if b.Low > p.StopLoss {
			continue
		}

		const level = "stop_triggered"
		sent, err := a.user.AlreadySent(ctx, p.Symbol, level)
		if err != nil || sent {
			continue
		}

		notifier.Send(ctx, webhook.Alert{
			Level:     webhook.LevelDrawdown,
			Symbol:    p.Symbol,
			Message:   fmt.Sprintf("%s: low %.2f breached stop %.2f", p.Symbol, b.Low, p.StopLoss),
			Timestamp: time.Now(),
		})
		a.user.MarkSent(ctx, p.Symbol, level, time.Now())
	}
	return nil
}

func logWeeklyPlan(ctx context.Context, a *app, logger zerolog.Logger, notifier *webhook.Notifier) error {
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
		return fmt.Errorf("build weekly plan: %w", err)
	}

	logger.Info().Str("regime", string(plan.Regime.Regime)).Int("signals", len(plan.StockSignals)).Msg("weekly plan generated")
	for _, sig := range plan.StockSignals {
		notifier.Send(ctx, webhook.SignalAlert(sig.Symbol, string(sig.Strategy)))
	}
	return nil
}
