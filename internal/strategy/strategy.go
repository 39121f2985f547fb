// Package strategy implements the three independent pass/fail filters
// that turn a symbol's history into a candidate Signal: momentum,
// mean_reversion, and breakout.
//
// Design rules:
//   - A strategy is a pure decision engine: (Input) -> (Signal, ok).
//   - Strategies are stateless, deterministic, and testable in isolation.
//   - Strategies never reach back into the Portfolio Manager or the Risk
//     Manager; they only consume Series, a Regime Snapshot, and numeric
//     configuration.
//   - The closed set of three variants is dispatched by tag, not by
//     dynamic lookup — see the portfolio package.
package strategy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/config"
	"github.com/nitinkhare/swingdss/internal/regime"
)

// Tag identifies which of the three strategies produced a Signal.
type Tag string

const (
	Momentum      Tag = "momentum"
	MeanReversion Tag = "mean_reversion"
	Breakout      Tag = "breakout"
)

// DefaultSignalRiskEUR is the nominal risk amount a strategy sizes a fresh
// signal with. The Portfolio Manager recomputes position size at the
// account's configured risk before the signal becomes part of a plan.
const DefaultSignalRiskEUR = 20.0

// Signal is a proposed, not-yet-executed trade emitted by a strategy.
type Signal struct {
	ID            string
	Symbol        string
	Strategy      Tag
	EntryPrice    float64
	StopLoss      float64
	TargetPrice   float64
	PositionSize  int
	RiskAmount    decimal.Decimal // EUR
	SignalDate    time.Time
	Metrics       map[string]float64
	FiltersPassed map[string]string
}

// Validate checks the invariants every strategy output must satisfy.
func (s Signal) Validate() error {
	if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TargetPrice) {
		return signalError("strategy: invalid signal: stop_loss < entry_price < target_price violated")
	}
	if s.PositionSize < 1 {
		return signalError("strategy: invalid signal: position_size must be >= 1")
	}
	if !s.RiskAmount.IsPositive() {
		return signalError("strategy: invalid signal: risk_amount must be > 0")
	}
	return nil
}

type signalError string

func (e signalError) Error() string { return string(e) }

// Input is the complete bundle passed to a strategy's Evaluate method.
type Input struct {
	// Series is the symbol's history sliced up to (and including) AsOf.
	Series bar.Series

	// Benchmark is the benchmark's history sliced up to AsOf, fetched once
	// per batch by the caller and shared across symbols and strategies.
	Benchmark bar.Series

	// Regime is the current benchmark regime snapshot.
	Regime regime.Snapshot

	// AsOf is the date being evaluated.
	AsOf time.Time

	// FXRate converts USD to EUR for nominal position sizing.
	FXRate float64

	Filters config.FilterConfig
}

// Strategy is the interface all three variants implement.
type Strategy interface {
	ID() Tag
	Name() string

	// Evaluate applies the strategy's filter chain to one symbol. It
	// returns (signal, true) on a pass, or (zero Signal, false) on a
	// skip — strategies never log or mutate state, that is the caller's
	// responsibility.
	Evaluate(in Input) (Signal, bool)
}

func newSignalID() string { return uuid.NewString() }

// commonStop returns the tighter of a 2-ATR stop and a 5% cap below entry.
func commonStop(entry, atr float64) float64 {
	atrStop := entry - 2*atr
	pctStop := entry * 0.95
	if atrStop > pctStop {
		return atrStop
	}
	return pctStop
}

// commonTarget returns the looser of a 3-ATR target and a 4% cap above entry.
func commonTarget(entry, atr float64) float64 {
	atrTarget := entry + 3*atr
	pctTarget := entry * 1.04
	if atrTarget > pctTarget {
		return atrTarget
	}
	return pctTarget
}

// passesDollarVolume implements the common dollar-volume filter.
func passesDollarVolume(b bar.Bar, minDollarVolume float64) (float64, bool) {
	dv := b.Close * float64(b.Volume)
	return dv, dv > minDollarVolume
}

// passesTradeEconomics implements the common trade-economics gate: trade
// value must be >= minTradeValue and commission/value < 2%.
func passesTradeEconomics(tradeValueEUR, commissionEUR, minTradeValue float64) bool {
	if tradeValueEUR < minTradeValue {
		return false
	}
	return commissionEUR/tradeValueEUR < 0.02
}

// sizeNominal computes the nominal share count a freshly generated signal
// carries before the Risk Manager's real sizing pass.
func sizeNominal(entry, stop, fxRate float64) int {
	riskPerShare := entry - stop
	if riskPerShare <= 0 || fxRate <= 0 {
		return 0
	}
	qty := int(DefaultSignalRiskEUR / (riskPerShare * fxRate))
	if qty < 1 {
		return 1
	}
	return qty
}
