// Package risk implements position sizing, stop selection, and
// drawdown-protection rules. These rules are deliberately strict and
// CANNOT be overridden by a strategy: every position must carry a stop,
// and the system prefers not trading over a bad trade.
package risk

import (
	"fmt"
	"math"

	"github.com/nitinkhare/swingdss/internal/bar"
	"github.com/nitinkhare/swingdss/internal/config"
	"github.com/nitinkhare/swingdss/internal/indicator"
)

// Manager applies sizing, stop selection, and the trade-economics gate to
// a proposed signal. It holds no mutable state of its own — drawdown
// protection state lives in DrawdownState, persisted by the caller.
type Manager struct {
	cfg config.RiskConfig
}

// NewManager creates a risk manager bound to the given risk configuration.
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg}
}

// UpdateConfig replaces the risk configuration atomically, used by
// config hot-reload.
func (m *Manager) UpdateConfig(cfg config.RiskConfig) {
	m.cfg = cfg
}

// OptimalStop returns the tighter (higher, less risk) of three stop
// candidates: an ATR-based stop, a swing-low support stop, and a
// volume-profile stop.
func OptimalStop(bars []bar.Bar, entry float64, atrMultiplier float64) float64 {
	n := len(bars)
	if n == 0 {
		return entry * 0.95
	}

	atr := lastValid(indicator.ATR(bars, 14))
	atrStop := entry - atrMultiplier*atr

	supportStop := math.Inf(-1)
	if support, ok := nearestSupportBelow(bars, entry); ok {
		supportStop = support * 0.995
	}

	window := bars
	if n > 50 {
		window = bars[n-50:]
	}
	vp := indicator.ComputeVolumeProfile(window, 20)
	vpLevel := vp.VAL
	if vp.POC < entry && vp.POC > vp.VAL {
		vpLevel = vp.POC
	}
	vpStop := math.Inf(-1)
	if vpLevel > 0 && vpLevel < entry {
		vpStop = vpLevel * 0.995
	}

	stop := atrStop
	if supportStop > stop && supportStop < entry {
		stop = supportStop
	}
	if vpStop > stop && vpStop < entry {
		stop = vpStop
	}
	return stop
}

// nearestSupportBelow finds the nearest swing-low support level below
// entry, where a swing low is a local minimum over a 2-bar left/right
// window across the trailing 50 bars.
func nearestSupportBelow(bars []bar.Bar, entry float64) (float64, bool) {
	n := len(bars)
	start := 0
	if n > 50 {
		start = n - 50
	}
	window := bars[start:]

	best := math.Inf(-1)
	found := false
	for i := 2; i < len(window)-2; i++ {
		low := window[i].Low
		isSwingLow := true
		for j := i - 2; j <= i+2; j++ {
			if j == i {
				continue
			}
			if window[j].Low < low {
				isSwingLow = false
				break
			}
		}
		if isSwingLow && low < entry && low > best {
			best = low
			found = true
		}
	}
	return best, found
}

// SizingResult is the outcome of a position-sizing pass.
type SizingResult struct {
	Quantity      int
	PositionValue float64
	RiskAmountEUR float64
	Skip          bool
	SkipReason    string
}

// SizeRiskBased implements the default risk-based sizing path: qty is
// driven by (risk_amount / per-share risk), then capped at 33% of total
// equity and at remaining available capital.
func SizeRiskBased(entry, stop, fxRate, riskAmountEUR, totalEquity, availableCapital float64) SizingResult {
	riskPerShare := entry - stop
	if riskPerShare <= 0 || fxRate <= 0 {
		return SizingResult{Skip: true, SkipReason: "non-positive risk per share or fx rate"}
	}

	qty := int(math.Floor(riskAmountEUR / (riskPerShare * fxRate)))
	if qty < 1 {
		return SizingResult{Skip: true, SkipReason: "sized quantity below 1 share"}
	}

	maxByEquity := int(math.Floor(0.33 * totalEquity / (entry * fxRate)))
	if maxByEquity < qty {
		qty = maxByEquity
	}
	maxByCapital := int(math.Floor(availableCapital / (entry * fxRate)))
	if maxByCapital < qty {
		qty = maxByCapital
	}
	if qty < 1 {
		return SizingResult{Skip: true, SkipReason: "capped quantity below 1 share after equity/capital caps"}
	}

	value := entry * float64(qty) * fxRate
	return SizingResult{Quantity: qty, PositionValue: value, RiskAmountEUR: riskPerShare * float64(qty) * fxRate}
}

// SizeSlotBased implements the opt-in slot-based sizing path: available
// capital is divided evenly across the configured slot count.
func SizeSlotBased(entry, fxRate, availableCapital float64, slotsCount int) SizingResult {
	if slotsCount <= 0 || fxRate <= 0 {
		return SizingResult{Skip: true, SkipReason: "non-positive slot count or fx rate"}
	}
	slotValue := availableCapital / float64(slotsCount)
	qty := int(math.Floor(slotValue / (entry * fxRate)))
	if qty < 1 {
		return SizingResult{Skip: true, SkipReason: "slot value too small for 1 share"}
	}
	return SizingResult{Quantity: qty, PositionValue: entry * float64(qty) * fxRate}
}

// Size dispatches to the configured sizing method.
func (m *Manager) Size(entry, stop, fxRate, totalEquity, availableCapital float64) SizingResult {
	switch m.cfg.SizingMethod {
	case config.SizingSlotBased:
		return SizeSlotBased(entry, fxRate, availableCapital, m.cfg.SlotsCount)
	default:
		riskAmountEUR := m.cfg.MaxRiskPerTradeFixed
		if !m.cfg.UseFixedRisk {
			riskAmountEUR = totalEquity * (m.cfg.MaxRiskPerTradePercent / 100.0)
		}
		return SizeRiskBased(entry, stop, fxRate, riskAmountEUR, totalEquity, availableCapital)
	}
}

// PassesTradeEconomics checks the trade-value and commission-ratio gate.
func PassesTradeEconomics(tradeValueEUR, minTradeValue, commissionEUR float64) (bool, error) {
	if tradeValueEUR < minTradeValue {
		return false, fmt.Errorf("risk: trade value %.2f below minimum %.2f", tradeValueEUR, minTradeValue)
	}
	if commissionEUR/tradeValueEUR >= 0.02 {
		return false, fmt.Errorf("risk: commission ratio %.4f exceeds 2%%", commissionEUR/tradeValueEUR)
	}
	return true, nil
}

// TPLadder describes the take-profit ladder. Disabled in the primary
// backtest; kept available for live/paper mode.
type TPLadder struct {
	TP1 float64 // entry + 1.5*ATR, sell 50%, move stop to breakeven
	TP2 float64 // entry + 3*ATR, close remainder
}

// ComputeTPLadder derives the two-rung take-profit ladder from entry and ATR.
func ComputeTPLadder(entry, atr float64) TPLadder {
	return TPLadder{TP1: entry + 1.5*atr, TP2: entry + 3*atr}
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return 0
}
