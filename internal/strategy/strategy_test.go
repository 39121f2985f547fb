package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validSignal() Signal {
	return Signal{
		ID:           "test-id",
		Symbol:       "AAPL",
		Strategy:     Momentum,
		EntryPrice:   150.0,
		StopLoss:     142.5,
		TargetPrice:  165.0,
		PositionSize: 10,
		RiskAmount:   decimal.NewFromFloat(20.0),
		SignalDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestSignal_ValidateAccepts(t *testing.T) {
	if err := validSignal().Validate(); err != nil {
		t.Errorf("expected a well-formed signal to validate, got %v", err)
	}
}

func TestSignal_ValidateRejectsStopAboveEntry(t *testing.T) {
	s := validSignal()
	s.StopLoss = s.EntryPrice + 1
	if err := s.Validate(); err == nil {
		t.Error("expected an error when stop_loss >= entry_price")
	}
}

func TestSignal_ValidateRejectsTargetBelowEntry(t *testing.T) {
	s := validSignal()
	s.TargetPrice = s.EntryPrice - 1
	if err := s.Validate(); err == nil {
		t.Error("expected an error when target_price <= entry_price")
	}
}

func TestSignal_ValidateRejectsZeroPositionSize(t *testing.T) {
	s := validSignal()
	s.PositionSize = 0
	if err := s.Validate(); err == nil {
		t.Error("expected an error when position_size < 1")
	}
}

func TestSignal_ValidateRejectsNonPositiveRisk(t *testing.T) {
	s := validSignal()
	s.RiskAmount = decimal.Zero
	if err := s.Validate(); err == nil {
		t.Error("expected an error when risk_amount is not positive")
	}

	s.RiskAmount = decimal.NewFromFloat(-5)
	if err := s.Validate(); err == nil {
		t.Error("expected an error when risk_amount is negative")
	}
}
