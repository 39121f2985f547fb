// Package risk - circuit_breaker.go implements drawdown protection: a
// state machine that throttles risk after consecutive losses and halts
// trading after a severe monthly drawdown.
//
// State is owned by the caller (persisted via the user store) and passed
// in by value on every call; DrawdownState's methods only compute
// transitions.
package risk

import (
	"time"
)

// DrawdownState is the persisted drawdown-protection state, round-tripped
// through the user store between runs.
type DrawdownState struct {
	ConsecutiveLosses   int
	ConsecutiveWins     int
	RiskMultiplier      float64 // 0.5 or 1.0
	MaxPositionsOverride int    // 0 = no override, else the capped value
	MonthlyStartEquity  float64
	MonthlyStartMonth   time.Month
	MonthlyStartYear    int
	IsPaused            bool
	IsStopped           bool
}

// NewDrawdownState returns the initial (unthrottled) state for a fresh
// account starting with the given equity.
func NewDrawdownState(startEquity float64, asOf time.Time) DrawdownState {
	return DrawdownState{
		RiskMultiplier:     1.0,
		MonthlyStartEquity: startEquity,
		MonthlyStartMonth:  asOf.Month(),
		MonthlyStartYear:   asOf.Year(),
	}
}

// RecordTradeOutcome applies one closed trade's win/loss result to the
// drawdown state, implementing the consecutive-loss/win thresholds.
//
//	3 consecutive losses  -> risk_multiplier = 0.5
//	5 consecutive losses  -> risk_multiplier = 0.5 AND max_positions = 1
//	2 consecutive wins    -> risk_multiplier restored to 1.0
//	3 consecutive wins    -> max_positions override cleared
func (s DrawdownState) RecordTradeOutcome(won bool, configuredMaxPositions int) DrawdownState {
	if won {
		s.ConsecutiveLosses = 0
		s.ConsecutiveWins++
		if s.ConsecutiveWins >= 2 {
			s.RiskMultiplier = 1.0
		}
		if s.ConsecutiveWins >= 3 {
			s.MaxPositionsOverride = 0
		}
		return s
	}

	s.ConsecutiveWins = 0
	s.ConsecutiveLosses++
	if s.ConsecutiveLosses >= 3 {
		s.RiskMultiplier = 0.5
	}
	if s.ConsecutiveLosses >= 5 {
		s.MaxPositionsOverride = 1
	}
	return s
}

// EffectiveMaxPositions returns the max-open-positions cap after applying
// any drawdown-protection override.
func (s DrawdownState) EffectiveMaxPositions(configured int) int {
	if s.MaxPositionsOverride > 0 && s.MaxPositionsOverride < configured {
		return s.MaxPositionsOverride
	}
	return configured
}

// UpdateMonthlyDrawdown recomputes the monthly-drawdown trigger for the
// given current equity and date, rolling the monthly baseline over at a
// month boundary. Gains don't count: drawdown is floored at 0.
func (s DrawdownState) UpdateMonthlyDrawdown(currentEquity float64, asOf time.Time) DrawdownState {
	if asOf.Month() != s.MonthlyStartMonth || asOf.Year() != s.MonthlyStartYear {
		s.MonthlyStartEquity = currentEquity
		s.MonthlyStartMonth = asOf.Month()
		s.MonthlyStartYear = asOf.Year()
		s.IsPaused = false
		return s
	}

	if s.MonthlyStartEquity <= 0 {
		return s
	}
	drawdown := (s.MonthlyStartEquity - currentEquity) / s.MonthlyStartEquity
	if drawdown < 0 {
		drawdown = 0
	}

	if drawdown >= 0.10 {
		s.IsStopped = true
	}
	if drawdown >= 0.06 {
		s.IsPaused = true
	}
	return s
}

// Reset manually clears the stopped flag (drawdown §4.7's stated
// "manual reset" recovery path for the 10% trigger).
func (s DrawdownState) Reset() DrawdownState {
	s.IsStopped = false
	s.IsPaused = false
	return s
}

// CanTrade reports whether new entries are allowed under the current
// drawdown-protection state. Exits are never blocked by this state — the
// caller should always permit exit/stop processing regardless.
func (s DrawdownState) CanTrade() bool {
	return !s.IsStopped && !s.IsPaused
}
