package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nitinkhare/swingdss/internal/ingestion"
	"github.com/nitinkhare/swingdss/internal/vendor"
)

func newUpdateCmd() *cobra.Command {
	var years int
	var forceFull bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Backfill or incrementally sync the market store from the configured data provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if years < 0 {
				return badArgs("--years must be >= 0, got %d", years)
			}

			logger := newLogger()
			a, err := bootstrap(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if years > 0 {
				a.cfg.DataProvider.HistoricalYears = years
			}

			symbols, err := ingestion.LoadWatchlist(a.cfg.DataProvider.SymbolsFile)
			if err != nil {
				return fmt.Errorf("load watchlist: %w", err)
			}

			client := vendor.NewClient(a.cfg.DataProvider)
			orchestrator := ingestion.New(client, a.market, a.cfg.DataProvider, logger)

			results := orchestrator.Sync(cmd.Context(), symbols, time.Now(), forceFull)

			updated := 0
			for _, r := range results {
				if r.Err == nil {
					updated++
					continue
				}
				logger.Warn().Str("symbol", r.Symbol).Err(r.Err).Msg("symbol not updated this cycle")
			}

			fmt.Printf("%d/%d symbols updated\n", updated, len(results))
			return nil
		},
	}

	cmd.Flags().IntVar(&years, "years", 0, "override the configured historical backfill depth in years")
	cmd.Flags().BoolVar(&forceFull, "force-full", false, "ignore the stored watermark and refetch full history")
	return cmd
}
