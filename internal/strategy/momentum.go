// Package strategy - momentum.go implements trending-uptrend continuation.
//
// Entry rules:
//   - Close > SMA(100).
//   - Relative strength vs benchmark: the stock's 3-month return must not
//     underperform the benchmark's 3-month return by more than 3 points.
//   - Common filters: dollar-volume, trade economics.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/nitinkhare/swingdss/internal/indicator"
)

const threeMonthBars = 63 // ~21 trading days/month

// MomentumStrategy buys stocks already trending with the benchmark.
type MomentumStrategy struct {
	SMAWindow           int
	RelativeStrengthGap float64 // stock may underperform benchmark by at most this many points
}

// NewMomentumStrategy creates a momentum strategy with its default parameters.
func NewMomentumStrategy() *MomentumStrategy {
	return &MomentumStrategy{SMAWindow: 100, RelativeStrengthGap: 3.0}
}

func (s *MomentumStrategy) ID() Tag      { return Momentum }
func (s *MomentumStrategy) Name() string { return "Momentum Continuation" }

func (s *MomentumStrategy) Evaluate(in Input) (Signal, bool) {
	needed := s.SMAWindow + 60
	n := in.Series.Len()
	if n < needed {
		return Signal{}, false
	}

	closes := in.Series.Closes()
	last, _ := in.Series.Last()

	if dv, ok := passesDollarVolume(last, in.Filters.MinDollarVolume); !ok {
		_ = dv
		return Signal{}, false
	}

	sma := indicator.SMA(closes, s.SMAWindow)
	smaVal := sma[n-1]
	if last.Close <= smaVal {
		return Signal{}, false
	}

	stockReturn3m := threeMonthReturn(closes)
	benchReturn3m := threeMonthReturn(in.Benchmark.Closes())
	if stockReturn3m < benchReturn3m-s.RelativeStrengthGap {
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
		Strategy:     Momentum,
		EntryPrice:   entry,
		StopLoss:     stop,
		TargetPrice:  target,
		PositionSize: qty,
		RiskAmount:   riskAmount,
		SignalDate:   in.AsOf,
		Metrics: map[string]float64{
			"return_3m":      stockReturn3m,
			"benchmark_3m":   benchReturn3m,
			"natr":           lastValid(indicator.NATR(in.Series.Bars, 14)),
			"atr_stop_pct":   (entry - stop) / entry * 100,
			"dollar_volume":  last.Close * float64(last.Volume),
			"score":          stockReturn3m * 100,
		},
		FiltersPassed: map[string]string{
			"close_above_sma100": "trending continuation",
			"relative_strength":  "within tolerance of benchmark",
		},
	}
	return sig, true
}

// threeMonthReturn computes the trailing ~63-bar return of a close series,
// or 0 if there isn't enough history.
func threeMonthReturn(closes []float64) float64 {
	n := len(closes)
	if n <= threeMonthBars {
		return 0
	}
	past := closes[n-1-threeMonthBars]
	if past == 0 {
		return 0
	}
	return (closes[n-1] - past) / past * 100
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] == series[i] { // NaN check without importing math here
			return series[i]
		}
	}
	return 0
}
