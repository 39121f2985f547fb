package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nitinkhare/swingdss/internal/config"
)

func TestNotifierDisabledIsNoop(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	n := NewNotifier(config.WebhookConfig{Enabled: false, URL: ts.URL}, zerolog.Nop())
	n.Send(context.Background(), SignalAlert("AAPL", "momentum"))

	if called {
		t.Error("expected no HTTP call when webhook disabled")
	}
}

func TestNotifierSendsJSON(t *testing.T) {
	received := make(chan Alert, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			t.Errorf("decode alert: %v", err)
		}
		received <- a
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n := NewNotifier(config.WebhookConfig{Enabled: true, URL: ts.URL, TimeoutSeconds: 5}, zerolog.Nop())
	n.Send(context.Background(), DrawdownAlert("risk multiplier reduced to 0.5"))

	select {
	case a := <-received:
		if a.Level != LevelDrawdown {
			t.Errorf("Level = %q, want %q", a.Level, LevelDrawdown)
		}
	default:
		t.Fatal("notifier did not deliver alert")
	}
}

func TestIngestFailedAlert(t *testing.T) {
	a := IngestFailedAlert("AAPL", context.DeadlineExceeded)
	if a.Level != LevelIngestFailed || a.Symbol != "AAPL" {
		t.Errorf("unexpected alert: %+v", a)
	}
}
