package broker

import (
	"context"
	"testing"

	"github.com/nitinkhare/swingdss/internal/userstore"
)

func TestPaperBroker_InitialFunds(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	funds, err := pb.GetFunds(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if funds.AvailableCash != 500000 {
		t.Errorf("expected 500000, got %.2f", funds.AvailableCash)
	}
}

func TestPaperBroker_BuyReducesCash(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	order := Order{
		Symbol:   "AAPL",
		Exchange: "NASDAQ",
		Side:     OrderSideBuy,
		Type:     OrderTypeLimit,
		Quantity: 10,
		Price:    250,
		Product:  "EQUITY",
	}

	resp, err := pb.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != OrderStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", resp.Status)
	}

	funds, _ := pb.GetFunds(ctx)
	expectedCash := 500000.0 - (250.0 * 10)
	if funds.AvailableCash != expectedCash {
		t.Errorf("expected %.2f, got %.2f", expectedCash, funds.AvailableCash)
	}
}

func TestPaperBroker_SellIncreaseCash(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	buyOrder := Order{
		Symbol: "MSFT", Exchange: "NASDAQ", Side: OrderSideBuy,
		Type: OrderTypeLimit, Quantity: 5, Price: 350, Product: "EQUITY",
	}
	pb.PlaceOrder(ctx, buyOrder)

	sellOrder := Order{
		Symbol: "MSFT", Exchange: "NASDAQ", Side: OrderSideSell,
		Type: OrderTypeLimit, Quantity: 5, Price: 360, Product: "EQUITY",
	}
	resp, err := pb.PlaceOrder(ctx, sellOrder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != OrderStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", resp.Status)
	}

	funds, _ := pb.GetFunds(ctx)
	expectedCash := 500000.0 - 1750.0 + 1800.0
	if funds.AvailableCash != expectedCash {
		t.Errorf("expected %.2f, got %.2f", expectedCash, funds.AvailableCash)
	}
}

func TestPaperBroker_RejectsInsufficientFunds(t *testing.T) {
	pb := NewPaperBroker(1000)
	ctx := context.Background()

	order := Order{
		Symbol: "AAPL", Exchange: "NASDAQ", Side: OrderSideBuy,
		Type: OrderTypeLimit, Quantity: 10, Price: 250, Product: "EQUITY",
	}

	resp, err := pb.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != OrderStatusRejected {
		t.Errorf("expected REJECTED, got %s", resp.Status)
	}
}

func TestPaperBroker_RejectsInsufficientHoldings(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	order := Order{
		Symbol: "MSFT", Exchange: "NASDAQ", Side: OrderSideSell,
		Type: OrderTypeLimit, Quantity: 10, Price: 350, Product: "EQUITY",
	}

	resp, err := pb.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != OrderStatusRejected {
		t.Errorf("expected REJECTED, got %s", resp.Status)
	}
}

func TestPaperBroker_HoldingsTrack(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	order := Order{
		Symbol: "NVDA", Exchange: "NASDAQ", Side: OrderSideBuy,
		Type: OrderTypeLimit, Quantity: 20, Price: 120, Product: "EQUITY",
	}
	pb.PlaceOrder(ctx, order)

	holdings, err := pb.GetHoldings(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(holdings))
	}
	if holdings[0].Symbol != "NVDA" || holdings[0].Quantity != 20 {
		t.Errorf("unexpected holding: %+v", holdings[0])
	}
}

func TestPaperBroker_OrderStatusTracked(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	order := Order{
		Symbol: "AMD", Exchange: "NASDAQ", Side: OrderSideBuy,
		Type: OrderTypeLimit, Quantity: 50, Price: 60, Product: "EQUITY",
	}
	resp, _ := pb.PlaceOrder(ctx, order)

	status, err := pb.GetOrderStatus(ctx, resp.OrderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != OrderStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", status.Status)
	}
	if status.FilledQty != 50 {
		t.Errorf("expected filled qty 50, got %d", status.FilledQty)
	}
}

func TestPaperBroker_PersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := userstore.Open(dir + "/user.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	pb := NewPaperBroker(100000)
	pb.PlaceOrder(ctx, Order{
		Symbol: "AAPL", Exchange: "NASDAQ", Side: OrderSideBuy,
		Type: OrderTypeLimit, Quantity: 10, Price: 200, Product: "EQUITY",
	})

	if err := pb.Persist(ctx, store); err != nil {
		t.Fatalf("persist: %v", err)
	}

	reloaded, err := LoadPaperBroker(ctx, store, 100000)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	funds, _ := reloaded.GetFunds(ctx)
	if funds.AvailableCash != 100000-2000 {
		t.Errorf("expected cash %.2f, got %.2f", 100000-2000.0, funds.AvailableCash)
	}
	holdings, _ := reloaded.GetHoldings(ctx)
	if len(holdings) != 1 || holdings[0].Symbol != "AAPL" {
		t.Errorf("unexpected reloaded holdings: %+v", holdings)
	}
}
