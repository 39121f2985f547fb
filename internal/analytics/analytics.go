// Package analytics formats a backtest Result into a human-readable
// performance report. All the actual metric computation (Sharpe, max
// drawdown, profit factor, CAGR) happens inside internal/backtest as the
// run completes; this package is presentation only.
package analytics

import (
	"fmt"
	"strings"

	"github.com/nitinkhare/swingdss/internal/backtest"
)

// FormatReport returns a human-readable text summary of a backtest Result.
func FormatReport(r *backtest.Result) string {
	if r == nil || r.TotalTrades == 0 {
		return "No closed trades to analyze."
	}

	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════\n")
	b.WriteString("              BACKTEST PERFORMANCE REPORT\n")
	b.WriteString("═══════════════════════════════════════════════════\n\n")

	winning := int(r.WinRate*float64(r.TotalTrades) + 0.5)

	b.WriteString("── TRADE SUMMARY ──\n")
	fmt.Fprintf(&b, "  Total trades:    %d\n", r.TotalTrades)
	fmt.Fprintf(&b, "  Win rate:        %.1f%% (%d winners)\n", r.WinRate*100, winning)
	b.WriteString("\n")

	b.WriteString("── PROFIT & LOSS ──\n")
	fmt.Fprintf(&b, "  Profit factor:   %.2f\n", r.ProfitFactor)
	fmt.Fprintf(&b, "  Avg R-multiple:  %.2f\n", r.AvgRMultiple)
	fmt.Fprintf(&b, "  Best trade:      €%.2f\n", r.BestTradeEUR)
	fmt.Fprintf(&b, "  Worst trade:     €%.2f\n", r.WorstTradeEUR)
	fmt.Fprintf(&b, "  Final equity:    €%.2f\n", r.FinalEquity)
	b.WriteString("\n")

	b.WriteString("── RISK METRICS ──\n")
	fmt.Fprintf(&b, "  Max drawdown:    %.2f%%\n", r.MaxDrawdownPct*100)
	fmt.Fprintf(&b, "  Weekly Sharpe:   %.2f\n", r.WeeklySharpe)
	fmt.Fprintf(&b, "  CAGR:            %.2f%%\n", r.CAGR*100)
	b.WriteString("\n")

	if len(r.StrategyWinRate) > 0 {
		b.WriteString("── PER-STRATEGY WIN RATE ──\n")
		for strat, wr := range r.StrategyWinRate {
			fmt.Fprintf(&b, "  %-16s %.1f%%\n", strat, wr*100)
		}
		b.WriteString("\n")
	}

	if len(r.RegimeTradeCount) > 0 {
		b.WriteString("── TRADES BY REGIME ──\n")
		for regime, count := range r.RegimeTradeCount {
			fmt.Fprintf(&b, "  %-16s %d\n", regime, count)
		}
		b.WriteString("\n")
	}

	if len(r.ExitReasonCount) > 0 {
		b.WriteString("── EXIT REASONS ──\n")
		for reason, count := range r.ExitReasonCount {
			fmt.Fprintf(&b, "  %-16s %d\n", reason, count)
		}
		b.WriteString("\n")
	}

	b.WriteString("═══════════════════════════════════════════════════\n")

	return b.String()
}
