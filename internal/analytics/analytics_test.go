package analytics

import (
	"strings"
	"testing"

	"github.com/nitinkhare/swingdss/internal/backtest"
	"github.com/nitinkhare/swingdss/internal/regime"
)

func TestFormatReportEmpty(t *testing.T) {
	if got := FormatReport(nil); got != "No closed trades to analyze." {
		t.Errorf("FormatReport(nil) = %q", got)
	}
	if got := FormatReport(&backtest.Result{}); got != "No closed trades to analyze." {
		t.Errorf("FormatReport(empty) = %q", got)
	}
}

func TestFormatReportPopulated(t *testing.T) {
	r := &backtest.Result{
		TotalTrades:    10,
		WinRate:        0.6,
		ProfitFactor:   1.8,
		AvgRMultiple:   0.75,
		WeeklySharpe:   1.1,
		MaxDrawdownPct: 0.12,
		BestTradeEUR:   340.50,
		WorstTradeEUR:  -120.0,
		CAGR:           0.22,
		FinalEquity:    12500.0,
		StrategyWinRate: map[string]float64{
			"momentum": 0.65,
		},
		RegimeTradeCount: map[regime.Regime]int{
			regime.RegimeTrending: 7,
		},
		ExitReasonCount: map[backtest.ExitReason]int{
			backtest.ExitTrailingStop: 4,
		},
	}

	out := FormatReport(r)
	for _, want := range []string{"Total trades:    10", "Win rate:        60.0%", "momentum", "trending", "trailing_stop"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatReport missing %q in:\n%s", want, out)
		}
	}
}
