// Package strategy - breakout.go implements a volatility-expansion entry:
// a squeeze followed by a volume-confirmed break of the 20-day high.
//
// Entry rules:
//   - Close > SMA(50).
//   - Within the last 3 bars: close > the PRIOR bar's 20-day high (a
//     3-day breakout window compensates for weekly signal cadence).
//   - On the breakout bar: BB bandwidth < 0.05 (prior squeeze) AND
//     volume > 1.3x the 20-day average volume.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/indicator"
)

// BreakoutStrategy buys volatility expansions out of a squeeze.
type BreakoutStrategy struct {
	SMAWindow        int
	HighLookback     int
	BreakoutWindow   int
	MaxBBBandwidth   float64
	VolumeMultiplier float64
}

// NewBreakoutStrategy creates the strategy with its default parameters.
func NewBreakoutStrategy() *BreakoutStrategy {
	return &BreakoutStrategy{
		SMAWindow:        50,
		HighLookback:      20,
		BreakoutWindow:    3,
		MaxBBBandwidth:    0.05,
		VolumeMultiplier:  1.3,
	}
}

func (s *BreakoutStrategy) ID() Tag      { return Breakout }
func (s *BreakoutStrategy) Name() string { return "Breakout" }

func (s *BreakoutStrategy) Evaluate(in Input) (Signal, bool) {
	needed := s.HighLookback + 60
	n := in.Series.Len()
	if n < needed {
		return Signal{}, false
	}

	closes := in.Series.Closes()
	bars := in.Series.Bars
	last := bars[n-1]

	if _, ok := passesDollarVolume(last, in.Filters.MinDollarVolume); !ok {
		return Signal{}, false
	}

	sma50 := indicator.SMA(closes, s.SMAWindow)[n-1]
	if last.Close <= sma50 {
		return Signal{}, false
	}

	donchian := indicator.Donchian(bars, s.HighLookback)
	bb := indicator.Bollinger(closes, 20, 2)

	breakoutIdx := -1
	for offset := 0; offset < s.BreakoutWindow; offset++ {
		i := n - 1 - offset
		if i-1 < 0 {
			continue
		}
		priorHigh := donchian.Upper[i-1]
		if priorHigh != priorHigh { // NaN
			continue
		}
		if bars[i].Close > priorHigh {
			breakoutIdx = i
			break
		}
	}
	if breakoutIdx == -1 {
		return Signal{}, false
	}

	bandwidth := bb.Bandwidth[breakoutIdx]
	if bandwidth != bandwidth || bandwidth >= s.MaxBBBandwidth {
		return Signal{}, false
	}

	avgVol := averageVolume(bars, breakoutIdx, s.HighLookback)
	volumeRatio := 0.0
	if avgVol > 0 {
		volumeRatio = float64(bars[breakoutIdx].Volume) / avgVol
	}
	if avgVol <= 0 || volumeRatio <= s.VolumeMultiplier {
		return Signal{}, false
	}

	atr := lastValid(indicator.ATR(bars, 14))
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
		Strategy:     Breakout,
		EntryPrice:   entry,
		StopLoss:     stop,
		TargetPrice:  target,
		PositionSize: qty,
		RiskAmount:   riskAmount,
		SignalDate:   in.AsOf,
		Metrics: map[string]float64{
			"volume_ratio":  volumeRatio,
			"natr":          lastValid(indicator.NATR(bars, 14)),
			"atr_stop_pct":  (entry - stop) / entry * 100,
			"dollar_volume": last.Close * float64(last.Volume),
			"score":         volumeRatio * 50,
		},
		FiltersPassed: map[string]string{
			"close_above_sma50": "uptrend base",
			"donchian_breakout": "closed above prior 20-day high within window",
			"bb_squeeze":        "bandwidth below threshold on breakout bar",
			"volume_confirm":    "volume above 1.3x 20-day average",
		},
	}
	return sig, true
}

func averageVolume(bars []bar.Bar, idx, period int) float64 {
	start := idx - period
	if start < 0 {
		start = 0
	}
	var sum float64
	count := 0
	for i := start; i < idx; i++ {
		sum += float64(bars[i].Volume)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
