// Command dss is the discretionary swing-trading engine's single CLI
// entrypoint: update, signals, monitor, backtest, ui, and paper.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nitinkhare/swingdss/internal/config"
	"github.com/nitinkhare/swingdss/internal/market"
	"github.com/nitinkhare/swingdss/internal/userstore"
)

var configPath string

// usageError marks an argument/flag validation failure, mapped to exit
// code 2 (vs. 1 for any other fatal error).
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func badArgs(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}

func main() {
	root := newRootCmd()
	err := root.Execute()
	if err == nil {
		os.Exit(0)
	}

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(os.Stderr, "error:", ue.Error())
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dss",
		Short:        "Discretionary weekly swing-trading engine",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config/config.json", "path to the configuration file")

	cmd.AddCommand(
		newUpdateCmd(),
		newSignalsCmd(),
		newMonitorCmd(),
		newBacktestCmd(),
		newUICmd(),
		newPaperCmd(),
	)
	return cmd
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// app bundles the dependencies every subcommand needs after loading config.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	market   *market.Store
	user     *userstore.Store
	calendar *market.Calendar
}

func bootstrap(logger zerolog.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	mkt, err := market.Open(cfg.MarketStorePath)
	if err != nil {
		return nil, fmt.Errorf("open market store: %w", err)
	}

	usr, err := userstore.Open(cfg.UserStorePath)
	if err != nil {
		mkt.Close()
		return nil, fmt.Errorf("open user store: %w", err)
	}

	cal, err := market.NewCalendar(cfg.MarketCalendarPath)
	if err != nil {
		mkt.Close()
		usr.Close()
		return nil, fmt.Errorf("load market calendar: %w", err)
	}

	return &app{cfg: cfg, logger: logger, market: mkt, user: usr, calendar: cal}, nil
}

func (a *app) Close() {
	a.market.Close()
	a.user.Close()
}
