// Package strategy - mean_reversion.go implements an RSI oversold-bounce
// entry in an intact long-term uptrend.
//
// Entry rules:
//   - Close > SMA(200) (long-term uptrend guardrail).
//   - RSI(14), Wilder-smoothed, < 40.
//   - Common filters: dollar-volume, trade economics.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/nitinkhare/swingdss/internal/indicator"
)

// MeanReversionStrategy buys oversold dips within a long-term uptrend.
type MeanReversionStrategy struct {
	SMAWindow      int
	RSIPeriod      int
	RSIOversold    float64
}

// NewMeanReversionStrategy creates the strategy with its Wilder-smoothed
// RSI(14) < 40 entry.
func NewMeanReversionStrategy() *MeanReversionStrategy {
	return &MeanReversionStrategy{SMAWindow: 200, RSIPeriod: 14, RSIOversold: 40}
}

func (s *MeanReversionStrategy) ID() Tag      { return MeanReversion }
func (s *MeanReversionStrategy) Name() string { return "Mean Reversion RSI" }

func (s *MeanReversionStrategy) Evaluate(in Input) (Signal, bool) {
	needed := s.SMAWindow + 60
	n := in.Series.Len()
	if n < needed {
		return Signal{}, false
	}

	closes := in.Series.Closes()
	last, _ := in.Series.Last()

	if _, ok := passesDollarVolume(last, in.Filters.MinDollarVolume); !ok {
		return Signal{}, false
	}

	sma200 := indicator.SMA(closes, s.SMAWindow)[n-1]
	if last.Close <= sma200 {
		return Signal{}, false
	}

	rsi := lastValid(indicator.RSI(closes, s.RSIPeriod))
	if rsi >= s.RSIOversold {
		return Signal{}, false
	}

	atr := lastValid(indicator.ATR(in.Series.Bars, 14))
	entry := last.Close
	stop := commonStop(entry, atr)
	target := commonTarget(entry, atr)

	riskAmount := decimal.NewFromFloat(DefaultSignalRiskEUR)
	qty := sizeNominal(entry, stop, in.FXRate)
	tradeValueEUR := entry * float64(qty) * in.FXRate
	if !passesTradeEconomics(tradeValueEUR, in.Filters.CommissionEUR, in.Filters.MinTradeValue) {
		return Signal{}, false
	}

	sig := Signal{
		ID:           newSignalID(),
		Symbol:       in.Series.Symbol,
		Strategy:     MeanReversion,
		EntryPrice:   entry,
		StopLoss:     stop,
		TargetPrice:  target,
		PositionSize: qty,
		RiskAmount:   riskAmount,
		SignalDate:   in.AsOf,
		Metrics: map[string]float64{
			"rsi":           rsi,
			"natr":          lastValid(indicator.NATR(in.Series.Bars, 14)),
			"atr_stop_pct":  (entry - stop) / entry * 100,
			"dollar_volume": last.Close * float64(last.Volume),
			"score":         100 - rsi,
		},
		FiltersPassed: map[string]string{
			"close_above_sma200": "long-term uptrend intact",
			"rsi_oversold":       "Wilder RSI(14) below threshold",
		},
	}
	return sig, true
}
