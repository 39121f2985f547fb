// Package regime classifies the prevailing state of a benchmark series,
// directing which strategy the Portfolio Manager treats as primary for a
// given as-of date.
//
// Design rules (generalized from the strategy package's AI-regime model):
//   - Classification is a pure function of a benchmark Series; no I/O.
//   - First-matching-rule semantics: rules are tried in order and the
//     first one that matches wins.
package regime

import (
	"math"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/indicator"
)

// Regime is the benchmark classification.
type Regime string

const (
	RegimeTrending    Regime = "trending"
	RegimeStrongTrend Regime = "strong_trend"
	RegimeChoppy      Regime = "choppy"
	RegimeBreakout    Regime = "breakout"
)

// TrendDirection describes the benchmark's directional bias.
type TrendDirection string

const (
	TrendUp      TrendDirection = "up"
	TrendDown    TrendDirection = "down"
	TrendNeutral TrendDirection = "neutral"
)

// Snapshot is the full regime assessment for one as-of date.
type Snapshot struct {
	Date           string
	Regime         Regime
	ADX            float64
	ATRPercent     float64
	TrendDirection TrendDirection
	BBBandwidth    float64
	Confidence     float64
	SMA50          float64
	SMA200         float64
	Price          float64
}

// Detect classifies the benchmark series as of its last bar. Series must
// already be sliced to the as-of date by the caller (bar.Series.AsOf).
//
// Classification, first matching rule wins:
//  1. ADX > 30 AND trend = up AND ATR% < 2.5        -> strong_trend, confidence 90
//  2. BB bandwidth < 0.02 AND ADX < 20               -> breakout (squeeze), confidence 75
//  3. ADX > 25                                        -> trending, confidence 70 (80 if ADX>30)
//  4. ADX < 20                                        -> choppy, confidence 65
//  5. default                                         -> choppy, confidence 50
func Detect(benchmark bar.Series) Snapshot {
	n := benchmark.Len()
	if n < 50 {
		return Snapshot{Regime: RegimeChoppy, Confidence: 50, TrendDirection: TrendNeutral}
	}

	closes := benchmark.Closes()
	last := benchmark.Bars[n-1]
	date := last.Timestamp.Format("2006-01-02")

	sma50 := indicator.SMA(closes, 50)[n-1]
	sma200 := sma50
	if n >= 200 {
		sma200 = indicator.SMA(closes, 200)[n-1]
	}

	direction := TrendNeutral
	switch {
	case last.Close > sma50 && last.Close > sma200:
		direction = TrendUp
	case last.Close < sma50 && last.Close < sma200:
		direction = TrendDown
	}

	adxSeries := indicator.ADX(benchmark.Bars, 14)
	adx := lastValid(adxSeries.ADX)
	natr := lastValid(indicator.NATR(benchmark.Bars, 14))
	bb := indicator.Bollinger(closes, 20, 2)
	bandwidth := lastValid(bb.Bandwidth)

	snap := Snapshot{
		Date:           date,
		ADX:            adx,
		ATRPercent:     natr,
		TrendDirection: direction,
		BBBandwidth:    bandwidth,
		SMA50:          sma50,
		SMA200:         sma200,
		Price:          last.Close,
	}

	switch {
	case adx > 30 && direction == TrendUp && natr < 2.5:
		snap.Regime = RegimeStrongTrend
		snap.Confidence = 90
	case bandwidth < 0.02 && adx < 20:
		snap.Regime = RegimeBreakout
		snap.Confidence = 75
	case adx > 25:
		snap.Regime = RegimeTrending
		snap.Confidence = 70
		if adx > 30 {
			snap.Confidence = 80
		}
	case adx < 20:
		snap.Regime = RegimeChoppy
		snap.Confidence = 65
	default:
		snap.Regime = RegimeChoppy
		snap.Confidence = 50
	}

	return snap
}

// lastValid returns the last non-NaN value in a series, or 0 if every
// value is NaN (insufficient warmup).
func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return 0
}
