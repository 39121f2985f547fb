package market

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nitinkhare/swingdss/internal/bar"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.duckdb")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBars(symbol string, start time.Time, n int) []bar.Bar {
	bars := make([]bar.Bar, n)
	for i := 0; i < n; i++ {
		price := 100.0 + float64(i)
		bars[i] = bar.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    1_000_000,
		}
	}
	return bars
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := sampleBars("AAPL", start, 5)

	if err := s.Upsert(ctx, "AAPL", bars); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	series, err := s.Get(ctx, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if series.Len() != 5 {
		t.Fatalf("expected 5 bars, got %d", series.Len())
	}
	if series.Bars[0].Close != 100.5 {
		t.Errorf("expected first close 100.5, got %f", series.Bars[0].Close)
	}
}

func TestStore_UpsertReplacesOverlappingRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if err := s.Upsert(ctx, "AAPL", sampleBars("AAPL", start, 3)); err != nil {
		t.Fatalf("initial Upsert: %v", err)
	}

	corrected := sampleBars("AAPL", start, 3)
	corrected[0].Close = 999.0
	if err := s.Upsert(ctx, "AAPL", corrected); err != nil {
		t.Fatalf("corrective Upsert: %v", err)
	}

	series, err := s.Get(ctx, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 bars after correction, got %d", series.Len())
	}
	if series.Bars[0].Close != 999.0 {
		t.Errorf("expected corrected close 999.0, got %f", series.Bars[0].Close)
	}
}

func TestStore_GetForDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := sampleBars("MSFT", start, 3)
	if err := s.Upsert(ctx, "MSFT", bars); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	b, ok, err := s.GetForDate(ctx, "MSFT", start)
	if err != nil {
		t.Fatalf("GetForDate: %v", err)
	}
	if !ok {
		t.Fatal("expected bar to be found")
	}
	if b.Close != bars[0].Close {
		t.Errorf("expected close %f, got %f", bars[0].Close, b.Close)
	}

	_, ok, err = s.GetForDate(ctx, "MSFT", start.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("GetForDate (missing): %v", err)
	}
	if ok {
		t.Error("expected no bar for a date with no data")
	}
}

func TestStore_LastTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LastTimestamp(ctx, "GOOGL"); err != nil || ok {
		t.Fatalf("expected no watermark for unseen symbol, got ok=%v err=%v", ok, err)
	}

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bars := sampleBars("GOOGL", start, 4)
	if err := s.Upsert(ctx, "GOOGL", bars); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	last, ok, err := s.LastTimestamp(ctx, "GOOGL")
	if err != nil {
		t.Fatalf("LastTimestamp: %v", err)
	}
	if !ok {
		t.Fatal("expected a watermark after upsert")
	}
	want := bars[len(bars)-1].Timestamp
	if !last.Equal(want) {
		t.Errorf("expected watermark %s, got %s", want, last)
	}
}

func TestStore_AllSymbols(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if err := s.Upsert(ctx, "AAPL", sampleBars("AAPL", start, 2)); err != nil {
		t.Fatalf("Upsert AAPL: %v", err)
	}
	if err := s.Upsert(ctx, "MSFT", sampleBars("MSFT", start, 2)); err != nil {
		t.Fatalf("Upsert MSFT: %v", err)
	}

	symbols, err := s.AllSymbols(ctx)
	if err != nil {
		t.Fatalf("AllSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d: %v", len(symbols), symbols)
	}
}

func TestStore_GetUntilOmitsEmptySymbols(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if err := s.Upsert(ctx, "AAPL", sampleBars("AAPL", start, 2)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	result, err := s.GetUntil(ctx, []string{"AAPL", "NOPE"}, start.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("GetUntil: %v", err)
	}
	if _, ok := result["AAPL"]; !ok {
		t.Error("expected AAPL in result")
	}
	if _, ok := result["NOPE"]; ok {
		t.Error("expected NOPE to be omitted (no stored bars)")
	}
}

func TestOpen_SingletonPerPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.duckdb")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Open (second): %v", err)
	}
	if s1 != s2 {
		t.Error("expected the same *Store instance for the same path")
	}
}
