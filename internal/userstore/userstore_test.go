package userstore

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/user.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetSetting(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing setting, got ok=%v err=%v", ok, err)
	}

	if err := s.SetSetting(ctx, "plan", "risk_based"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	val, ok, err := s.GetSetting(ctx, "plan")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if !ok || val != "risk_based" {
		t.Errorf("expected plan=risk_based, got %q ok=%v", val, ok)
	}

	if err := s.SetSetting(ctx, "plan", "slot_based"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	val, _, err = s.GetSetting(ctx, "plan")
	if err != nil {
		t.Fatalf("GetSetting after overwrite: %v", err)
	}
	if val != "slot_based" {
		t.Errorf("expected overwritten value slot_based, got %q", val)
	}
}

func TestSettings_FloatAndIntDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f, err := s.GetSettingFloat(ctx, "unset_float", 0.92)
	if err != nil {
		t.Fatalf("GetSettingFloat: %v", err)
	}
	if f != 0.92 {
		t.Errorf("expected default 0.92, got %f", f)
	}

	i, err := s.GetSettingInt(ctx, "unset_int", 7)
	if err != nil {
		t.Fatalf("GetSettingInt: %v", err)
	}
	if i != 7 {
		t.Errorf("expected default 7, got %d", i)
	}

	if err := s.SetSetting(ctx, "cached_rate", "0.88"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	f, err = s.GetSettingFloat(ctx, "cached_rate", 0.92)
	if err != nil {
		t.Fatalf("GetSettingFloat: %v", err)
	}
	if f != 0.88 {
		t.Errorf("expected 0.88, got %f", f)
	}
}

func TestPositions_SaveListAndClose(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := Position{
		Symbol:      "AAPL",
		Strategy:    "momentum",
		EntryPrice:  150.0,
		StopLoss:    142.5,
		TargetPrice: 165.0,
		Quantity:    10,
		EntryDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := s.SavePosition(ctx, p); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	open, err := s.OpenPositions(ctx)
	if err != nil {
		t.Fatalf("OpenPositions: %v", err)
	}
	if len(open) != 1 || open[0].Symbol != "AAPL" {
		t.Fatalf("expected one open position AAPL, got %+v", open)
	}

	// SavePosition on an existing symbol updates it in place rather than
	// creating a second row.
	p.Quantity = 20
	if err := s.SavePosition(ctx, p); err != nil {
		t.Fatalf("SavePosition (update): %v", err)
	}
	open, err = s.OpenPositions(ctx)
	if err != nil {
		t.Fatalf("OpenPositions after update: %v", err)
	}
	if len(open) != 1 || open[0].Quantity != 20 {
		t.Fatalf("expected updated quantity 20, got %+v", open)
	}

	if err := s.ClosePosition(ctx, "AAPL"); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	open, err = s.OpenPositions(ctx)
	if err != nil {
		t.Fatalf("OpenPositions after close: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open positions after close, got %+v", open)
	}
}

func TestTradeJournal_RecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := TradeJournalEntry{
		Symbol:     "MSFT",
		Strategy:   "breakout",
		Regime:     "trending",
		EntryPrice: 300.0,
		ExitPrice:  315.0,
		Quantity:   5,
		EntryDate:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		ExitDate:   time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		ExitReason: "target_hit",
		PnLEUR:     69.0,
	}
	if err := s.RecordTrade(ctx, entry); err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}

	trades, err := s.Trades(ctx)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(trades))
	}
	if trades[0].PnLEUR != 69.0 {
		t.Errorf("expected PnLEUR 69.0, got %f", trades[0].PnLEUR)
	}
}

func TestAlertDedup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sent, err := s.AlreadySent(ctx, "AAPL", "stop_triggered")
	if err != nil {
		t.Fatalf("AlreadySent: %v", err)
	}
	if sent {
		t.Fatal("expected not already sent before MarkSent")
	}

	if err := s.MarkSent(ctx, "AAPL", "stop_triggered", time.Now()); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	sent, err = s.AlreadySent(ctx, "AAPL", "stop_triggered")
	if err != nil {
		t.Fatalf("AlreadySent after mark: %v", err)
	}
	if !sent {
		t.Error("expected already sent after MarkSent")
	}

	// A different level for the same symbol is tracked independently.
	sent, err = s.AlreadySent(ctx, "AAPL", "drawdown_warning")
	if err != nil {
		t.Fatalf("AlreadySent (different level): %v", err)
	}
	if sent {
		t.Error("expected a different alert level to be independently un-sent")
	}
}
