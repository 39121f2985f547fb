package backtest

import (
	"math"
	"time"

	"github.com/nitinkhare/swingdss/internal/regime"
)

// Result is the full output of a backtest run: the closed-trade ledger,
// the weekly equity curve, and the summary metrics computed from both.
type Result struct {
	Trades           []TradeOutcome
	Equity           []EquityPoint
	TotalTrades      int
	WinRate          float64
	ProfitFactor     float64
	AvgRMultiple     float64
	WeeklySharpe     float64
	MaxDrawdownPct   float64
	BestTradeEUR     float64
	WorstTradeEUR    float64
	CAGR             float64
	StrategyWinRate  map[string]float64
	RegimeTradeCount map[regime.Regime]int
	ExitReasonCount  map[ExitReason]int
	FinalEquity      float64
}

// computeResult derives every summary metric from the closed trades and
// the weekly equity curve accumulated during Run.
func (s *Simulator) computeResult(start, end time.Time) *Result {
	r := &Result{
		Trades:           s.trades,
		Equity:           s.equity,
		TotalTrades:      len(s.trades),
		StrategyWinRate:  make(map[string]float64),
		RegimeTradeCount: make(map[regime.Regime]int),
		ExitReasonCount:  make(map[ExitReason]int),
		FinalEquity:      s.equityMTM(end),
	}

	if len(s.trades) == 0 {
		r.CAGR = computeCAGR(s.initial, r.FinalEquity, start, end)
		return r
	}

	var wins, losses int
	var grossProfit, grossLoss, sumR float64
	var best, worst = math.Inf(-1), math.Inf(1)
	strategyWins := make(map[string]int)
	strategyTotals := make(map[string]int)

	for _, t := range s.trades {
		if t.PnLEUR > 0 {
			wins++
			grossProfit += t.PnLEUR
		} else {
			losses++
			grossLoss += -t.PnLEUR
		}
		sumR += t.RMultiple
		if t.PnLEUR > best {
			best = t.PnLEUR
		}
		if t.PnLEUR < worst {
			worst = t.PnLEUR
		}
		r.RegimeTradeCount[t.Regime]++
		r.ExitReasonCount[t.ExitReason]++

		strategyTotals[t.Strategy]++
		if t.PnLEUR > 0 {
			strategyWins[t.Strategy]++
		}
	}

	r.WinRate = float64(wins) / float64(len(s.trades))
	r.AvgRMultiple = sumR / float64(len(s.trades))
	r.BestTradeEUR = best
	r.WorstTradeEUR = worst
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		r.ProfitFactor = math.Inf(1)
	}

	for strat, total := range strategyTotals {
		r.StrategyWinRate[strat] = float64(strategyWins[strat]) / float64(total)
	}

	r.WeeklySharpe = weeklySharpe(s.equity)
	r.MaxDrawdownPct = maxDrawdown(s.equity)
	r.CAGR = computeCAGR(s.initial, r.FinalEquity, start, end)

	return r
}

// weeklySharpe computes mean(weekly returns)/stddev(weekly returns) * sqrt(52).
// Weekly, not daily, because the simulator's cadence is one decision per
// week — annualizing with sqrt(252) would overstate the ratio.
func weeklySharpe(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	var sum float64
	for _, v := range returns {
		sum += v
	}
	mean := sum / float64(len(returns))

	var sumSq float64
	for _, v := range returns {
		d := v - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(returns)))
	if stddev == 0 {
		return 0
	}
	return mean / stddev * math.Sqrt(52)
}

// maxDrawdown returns the largest peak-to-trough percentage decline in
// the equity curve.
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Equity) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func computeCAGR(initial, final float64, start, end time.Time) float64 {
	if initial <= 0 || final <= 0 {
		return 0
	}
	years := end.Sub(start).Hours() / 24 / 365.25
	if years <= 0 {
		return 0
	}
	return math.Pow(final/initial, 1/years) - 1
}
