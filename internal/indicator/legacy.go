package indicator

import (
	"math"

	"github.com/nitinkhare/swingdss/internal/bar"
)

// The functions in this file back the deprecated 0-100 composite scoring
// pipeline. They are not used by the primary strategy/regime/portfolio
// core. Config.LegacyEnabled is their flag, but these functions do not
// check it: they are plain exported functions, and callers that don't run
// the legacy backtest harness simply never call them. Parabolic SAR,
// SuperTrend, Ichimoku, Williams %R, MFI and A/D Line are not implemented
// here — the legacy harness in the reference implementation never reads
// them, so there is nothing in this repository that would exercise them.

// MACDResult holds the Moving Average Convergence Divergence series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the standard 12/26/9 configuration: MACD = EMA(fast) -
// EMA(slow); Signal = EMA(MACD, signalPeriod); Histogram = MACD - Signal.
func MACD(closes []float64, fast, slow, signalPeriod int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal := EMA(macd, signalPeriod)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}
	return MACDResult{MACD: macd, Signal: signal, Histogram: hist}
}

// StochasticResult holds %K and %D.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes the standard %K/%D oscillator: %K = 100 *
// (close - lowestLow) / (highestHigh - lowestLow) over `period`; %D is the
// `smoothK`-period SMA of %K.
func Stochastic(bars []bar.Bar, period, smoothK int) StochasticResult {
	n := len(bars)
	k := nanSlice(n)
	if period > 0 && n >= period {
		for i := period - 1; i < n; i++ {
			hi, lo := bars[i-period+1].High, bars[i-period+1].Low
			for j := i - period + 2; j <= i; j++ {
				if bars[j].High > hi {
					hi = bars[j].High
				}
				if bars[j].Low < lo {
					lo = bars[j].Low
				}
			}
			if hi != lo {
				k[i] = 100 * (bars[i].Close - lo) / (hi - lo)
			} else {
				k[i] = 50
			}
		}
	}
	d := SMA(k, smoothK)
	return StochasticResult{K: k, D: d}
}

// CCI computes the Commodity Channel Index: (typical - SMA(typical)) /
// (0.015 * mean absolute deviation).
func CCI(bars []bar.Bar, period int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	if period <= 0 || n < period {
		return out
	}
	typical := make([]float64, n)
	for i, b := range bars {
		typical[i] = (b.High + b.Low + b.Close) / 3
	}
	smaTypical := SMA(typical, period)
	for i := period - 1; i < n; i++ {
		var mad float64
		for j := i - period + 1; j <= i; j++ {
			mad += math.Abs(typical[j] - smaTypical[i])
		}
		mad /= float64(period)
		if mad == 0 {
			out[i] = 0
			continue
		}
		out[i] = (typical[i] - smaTypical[i]) / (0.015 * mad)
	}
	return out
}

// ROC computes the Rate of Change: (close - close[n-periods]) / close[n-periods].
func ROC(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n < period+1 {
		return out
	}
	for i := period; i < n; i++ {
		past := closes[i-period]
		if past == 0 {
			continue
		}
		out[i] = (closes[i] - past) / past
	}
	return out
}

// OBV computes On-Balance Volume: a running total that adds volume on up
// days and subtracts it on down days. Seeded at 0, no NaN warmup.
func OBV(bars []bar.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			out[i] = out[i-1] + float64(bars[i].Volume)
		case bars[i].Close < bars[i-1].Close:
			out[i] = out[i-1] - float64(bars[i].Volume)
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// CMF computes the Chaikin Money Flow over `period` bars using the Money
// Flow Multiplier/Volume formulation.
func CMF(bars []bar.Bar, period int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	if period <= 0 || n < period {
		return out
	}
	mfv := make([]float64, n)
	for i, b := range bars {
		rng := b.High - b.Low
		if rng == 0 {
			continue
		}
		mult := ((b.Close - b.Low) - (b.High - b.Close)) / rng
		mfv[i] = mult * float64(b.Volume)
	}
	for i := period - 1; i < n; i++ {
		var sumMFV, sumVol float64
		for j := i - period + 1; j <= i; j++ {
			sumMFV += mfv[j]
			sumVol += float64(bars[j].Volume)
		}
		if sumVol == 0 {
			continue
		}
		out[i] = sumMFV / sumVol
	}
	return out
}
