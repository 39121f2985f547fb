// Package userstore - drawdown.go persists drawdown-protection state
// (internal/risk.DrawdownState) across runs as a row of settings keys.
package userstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nitinkhare/swingdss/internal/risk"
)

const (
	keyDrawdownConsecutiveLosses    = "drawdown.consecutive_losses"
	keyDrawdownConsecutiveWins      = "drawdown.consecutive_wins"
	keyDrawdownRiskMultiplier       = "drawdown.risk_multiplier"
	keyDrawdownMaxPositionsOverride = "drawdown.max_positions_override"
	keyDrawdownMonthlyStartEquity   = "drawdown.monthly_start_equity"
	keyDrawdownMonthlyStartMonth    = "drawdown.monthly_start_month"
	keyDrawdownMonthlyStartYear     = "drawdown.monthly_start_year"
	keyDrawdownIsPaused             = "drawdown.is_paused"
	keyDrawdownIsStopped            = "drawdown.is_stopped"
)

// LoadDrawdownState reads the persisted drawdown-protection state,
// falling back to a fresh unthrottled state if none has been saved yet.
func (s *Store) LoadDrawdownState(ctx context.Context, fallbackEquity float64, asOf time.Time) (risk.DrawdownState, error) {
	_, ok, err := s.GetSetting(ctx, keyDrawdownRiskMultiplier)
	if err != nil {
		return risk.DrawdownState{}, err
	}
	if !ok {
		return risk.NewDrawdownState(fallbackEquity, asOf), nil
	}

	losses, err := s.GetSettingInt(ctx, keyDrawdownConsecutiveLosses, 0)
	if err != nil {
		return risk.DrawdownState{}, err
	}
	wins, err := s.GetSettingInt(ctx, keyDrawdownConsecutiveWins, 0)
	if err != nil {
		return risk.DrawdownState{}, err
	}
	riskMult, err := s.GetSettingFloat(ctx, keyDrawdownRiskMultiplier, 1.0)
	if err != nil {
		return risk.DrawdownState{}, err
	}
	maxPosOverride, err := s.GetSettingInt(ctx, keyDrawdownMaxPositionsOverride, 0)
	if err != nil {
		return risk.DrawdownState{}, err
	}
	monthlyStartEquity, err := s.GetSettingFloat(ctx, keyDrawdownMonthlyStartEquity, fallbackEquity)
	if err != nil {
		return risk.DrawdownState{}, err
	}
	monthInt, err := s.GetSettingInt(ctx, keyDrawdownMonthlyStartMonth, int(asOf.Month()))
	if err != nil {
		return risk.DrawdownState{}, err
	}
	year, err := s.GetSettingInt(ctx, keyDrawdownMonthlyStartYear, asOf.Year())
	if err != nil {
		return risk.DrawdownState{}, err
	}
	paused, err := s.getSettingBool(ctx, keyDrawdownIsPaused)
	if err != nil {
		return risk.DrawdownState{}, err
	}
	stopped, err := s.getSettingBool(ctx, keyDrawdownIsStopped)
	if err != nil {
		return risk.DrawdownState{}, err
	}

	return risk.DrawdownState{
		ConsecutiveLosses:    losses,
		ConsecutiveWins:      wins,
		RiskMultiplier:       riskMult,
		MaxPositionsOverride: maxPosOverride,
		MonthlyStartEquity:   monthlyStartEquity,
		MonthlyStartMonth:    time.Month(monthInt),
		MonthlyStartYear:     year,
		IsPaused:             paused,
		IsStopped:            stopped,
	}, nil
}

// SaveDrawdownState persists the drawdown-protection state.
func (s *Store) SaveDrawdownState(ctx context.Context, state risk.DrawdownState) error {
	sets := map[string]string{
		keyDrawdownConsecutiveLosses:    strconv.Itoa(state.ConsecutiveLosses),
		keyDrawdownConsecutiveWins:      strconv.Itoa(state.ConsecutiveWins),
		keyDrawdownRiskMultiplier:       strconv.FormatFloat(state.RiskMultiplier, 'f', -1, 64),
		keyDrawdownMaxPositionsOverride: strconv.Itoa(state.MaxPositionsOverride),
		keyDrawdownMonthlyStartEquity:   strconv.FormatFloat(state.MonthlyStartEquity, 'f', -1, 64),
		keyDrawdownMonthlyStartMonth:    strconv.Itoa(int(state.MonthlyStartMonth)),
		keyDrawdownMonthlyStartYear:     strconv.Itoa(state.MonthlyStartYear),
		keyDrawdownIsPaused:             strconv.FormatBool(state.IsPaused),
		keyDrawdownIsStopped:            strconv.FormatBool(state.IsStopped),
	}
	for k, v := range sets {
		if err := s.SetSetting(ctx, k, v); err != nil {
			return fmt.Errorf("userstore: save drawdown state: %w", err)
		}
	}
	return nil
}

func (s *Store) getSettingBool(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.GetSetting(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("userstore: decode setting %s as bool: %w", key, err)
	}
	return v, nil
}
