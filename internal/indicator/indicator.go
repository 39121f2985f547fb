// Package indicator implements the pure numerical core: (Series, params) →
// new aligned series. Every function here is stateless and deterministic,
// generalized from "latest scalar value" to a full index-aligned series
// with an explicit NaN-prefixed warmup window.
//
// Contract shared by every function in this package: the returned slice has
// exactly the same length as the input, element i of the output describes
// the same trading day as element i of the input, and no function silently
// coalesces missing history to zero — positions before the warmup window is
// satisfied are math.NaN().
package indicator

import (
	"math"

	"github.com/nitinkhare/swingdss/internal/bar"
)

// Config selects which parts of the indicator engine are active. The
// primary core (SMA/EMA/RSI/ATR/ADX/Bollinger/Keltner/Donchian/VWAP/Volume
// Profile) is always available. LegacyEnabled names the deprecated
// scoring-era indicators in legacy.go; no function in this package reads
// it, so those indicators are callable whether or not it is set.
type Config struct {
	LegacyEnabled bool
}

// nanSlice returns a float64 slice of length n filled with NaN.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA returns the simple moving average of closes over the trailing n bars.
// Output[i] is NaN for i < n-1; for i >= n-1 it is mean(closes[i-n+1..i]).
func SMA(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 || len(closes) < n {
		return out
	}
	var sum float64
	nanCount := 0
	for i, c := range closes {
		if math.IsNaN(c) {
			nanCount++
		} else {
			sum += c
		}
		if i >= n {
			old := closes[i-n]
			if math.IsNaN(old) {
				nanCount--
			} else {
				sum -= old
			}
		}
		if i >= n-1 && nanCount == 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the exponential moving average with alpha = 2/(n+1), seeded
// at the first input value. Unlike SMA, EMA has no NaN warmup prefix: the
// series is fully defined from index 0.
func EMA(closes []float64, n int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	alpha := 2.0 / (float64(n) + 1.0)
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = alpha*closes[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI returns the Relative Strength Index using Wilder's smoothing (EMA
// with alpha = 1/period), not a plain SMA of gains/losses. This is the
// mandated smoothing per the mean-reversion entry rule: Wilder reacts
// faster to recent moves than an SMA-based RSI would.
//
// Output[i] is NaN for i < period; RSI[period] is seeded from the simple
// average gain/loss over the first `period` changes, and subsequent values
// apply Wilder's recurrence.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum += -change
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// trueRange returns the True Range series: TR[0] is NaN (no previous
// close), TR[i] = max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(bars []bar.Bar) []float64 {
	out := nanSlice(len(bars))
	for i := 1; i < len(bars); i++ {
		curr, prev := bars[i], bars[i-1]
		tr1 := curr.High - curr.Low
		tr2 := math.Abs(curr.High - prev.Close)
		tr3 := math.Abs(curr.Low - prev.Close)
		out[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	return out
}

// ATR returns the Average True Range over `period` bars using Wilder's
// recurrence: seeded as a simple average of the first `period` true
// ranges, then smoothed. Output[i] is NaN for i < period.
func ATR(bars []bar.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	if period <= 0 || len(bars) < period+1 {
		return out
	}
	tr := trueRange(bars)

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// NATR returns ATR expressed as a percentage of the close on the same bar.
func NATR(bars []bar.Bar, period int) []float64 {
	atr := ATR(bars, period)
	out := nanSlice(len(bars))
	for i, b := range bars {
		if math.IsNaN(atr[i]) || b.Close == 0 {
			continue
		}
		out[i] = atr[i] / b.Close * 100
	}
	return out
}

// ADXResult holds the three index-aligned series produced by the Wilder
// directional movement system.
type ADXResult struct {
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64
}

// ADX computes the canonical Wilder DMI: smoothed +DM, -DM, TR feed +DI,
// -DI, and DX, which is itself Wilder-smoothed into ADX. All three output
// series share the input's index — a historically easy invariant to break
// by aligning by position instead of by timestamp, called out explicitly
// here because it previously caused silent data loss.
//
// No NaN remains after 2*period bars.
func ADX(bars []bar.Bar, period int) ADXResult {
	n := len(bars)
	res := ADXResult{PlusDI: nanSlice(n), MinusDI: nanSlice(n), ADX: nanSlice(n)}
	if period <= 0 || n < 2*period+1 {
		return res
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := trueRange(bars)
	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	// Wilder-smooth +DM, -DM, TR, seeded as a simple sum over the first
	// `period` values (indices 1..period), matching the ATR seeding above.
	var smTR, smPlusDM, smMinusDM float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlusDM += plusDM[i]
		smMinusDM += minusDM[i]
	}
	setDI := func(i int) {
		if smTR == 0 {
			res.PlusDI[i], res.MinusDI[i] = 0, 0
			return
		}
		res.PlusDI[i] = 100 * smPlusDM / smTR
		res.MinusDI[i] = 100 * smMinusDM / smTR
	}
	setDI(period)

	dx := nanSlice(n)
	dx[period] = dxFromDI(res.PlusDI[period], res.MinusDI[period])

	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM[i]
		smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM[i]
		setDI(i)
		dx[i] = dxFromDI(res.PlusDI[i], res.MinusDI[i])
	}

	// ADX: Wilder-smoothed average of DX, first seeded as a simple average
	// over the first `period` DX values (indices period..2*period-1).
	var dxSum float64
	for i := period; i < 2*period; i++ {
		dxSum += dx[i]
	}
	adx := dxSum / float64(period)
	res.ADX[2*period-1] = adx
	for i := 2 * period; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		res.ADX[i] = adx
	}
	return res
}

func dxFromDI(plusDI, minusDI float64) float64 {
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}

// BollingerResult holds the five series produced by a Bollinger Bands
// calculation, all aligned to the source index.
type BollingerResult struct {
	Middle    []float64
	Upper     []float64
	Lower     []float64
	Bandwidth []float64
	PercentB  []float64
}

// Bollinger computes Bollinger Bands: middle = SMA(period), upper/lower =
// middle +/- numStd * rolling population standard deviation of closes.
func Bollinger(closes []float64, period int, numStd float64) BollingerResult {
	n := len(closes)
	res := BollingerResult{
		Middle:    nanSlice(n),
		Upper:     nanSlice(n),
		Lower:     nanSlice(n),
		Bandwidth: nanSlice(n),
		PercentB:  nanSlice(n),
	}
	mid := SMA(closes, period)
	res.Middle = mid
	for i := period - 1; i < n; i++ {
		var sumSq float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mid[i]
			sumSq += d * d
		}
		std := math.Sqrt(sumSq / float64(period))
		res.Upper[i] = mid[i] + numStd*std
		res.Lower[i] = mid[i] - numStd*std
		if mid[i] != 0 {
			res.Bandwidth[i] = (res.Upper[i] - res.Lower[i]) / mid[i]
		}
		if width := res.Upper[i] - res.Lower[i]; width != 0 {
			res.PercentB[i] = (closes[i] - res.Lower[i]) / width
		}
	}
	return res
}

// KeltnerResult holds the Keltner Channel series.
type KeltnerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Keltner computes Keltner Channels: middle = EMA(period), upper/lower =
// middle +/- atrMult * ATR(period).
func Keltner(bars []bar.Bar, period int, atrMult float64) KeltnerResult {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	mid := EMA(closes, period)
	atr := ATR(bars, period)

	res := KeltnerResult{Middle: mid, Upper: nanSlice(len(bars)), Lower: nanSlice(len(bars))}
	for i := range bars {
		if math.IsNaN(atr[i]) {
			continue
		}
		res.Upper[i] = mid[i] + atrMult*atr[i]
		res.Lower[i] = mid[i] - atrMult*atr[i]
	}
	return res
}

// DonchianResult holds the rolling channel extremes.
type DonchianResult struct {
	Upper []float64
	Lower []float64
}

// Donchian computes the rolling max(high) / min(low) over `period` bars.
func Donchian(bars []bar.Bar, period int) DonchianResult {
	n := len(bars)
	res := DonchianResult{Upper: nanSlice(n), Lower: nanSlice(n)}
	if period <= 0 || n < period {
		return res
	}
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
		res.Upper[i] = hi
		res.Lower[i] = lo
	}
	return res
}

// VWAP computes a rolling volume-weighted average price over the last w
// bars: sum(typical*volume) / sum(volume), NaN before the window fills.
func VWAP(bars []bar.Bar, w int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	if w <= 0 || n < w {
		return out
	}
	var numSum, volSum float64
	for i := 0; i < n; i++ {
		typical := (bars[i].High + bars[i].Low + bars[i].Close) / 3
		vol := float64(bars[i].Volume)
		numSum += typical * vol
		volSum += vol
		if i >= w {
			j := i - w
			typicalJ := (bars[j].High + bars[j].Low + bars[j].Close) / 3
			volJ := float64(bars[j].Volume)
			numSum -= typicalJ * volJ
			volSum -= volJ
		}
		if i >= w-1 && volSum > 0 {
			out[i] = numSum / volSum
		}
	}
	return out
}
