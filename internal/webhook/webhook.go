// Package webhook sends outbound alert notifications from the monitor
// loop: a new signal, a drawdown-protection state change, or an ingestion
// failure, each POSTed as JSON to a configured URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nitinkhare/swingdss/internal/config"
)

// AlertLevel classifies an outbound alert for the dedup key the caller
// uses against userstore's alert_dedup table.
type AlertLevel string

const (
	LevelSignal       AlertLevel = "signal"
	LevelDrawdown     AlertLevel = "drawdown"
	LevelIngestFailed AlertLevel = "ingest_failed"
)

// Alert is the broker-agnostic payload POSTed to the configured webhook URL.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Symbol    string     `json:"symbol,omitempty"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// Notifier sends Alerts to a configured HTTP endpoint. A disabled
// Notifier (Enabled=false) is a no-op, so callers never need to branch
// on whether webhooks are configured.
type Notifier struct {
	cfg    config.WebhookConfig
	http   *http.Client
	logger zerolog.Logger
}

// NewNotifier creates a Notifier from the webhook configuration.
func NewNotifier(cfg config.WebhookConfig, logger zerolog.Logger) *Notifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "webhook").Logger(),
	}
}

// Send POSTs the alert as JSON. It logs and swallows delivery errors
// rather than returning them — a failed notification must never abort
// the monitor loop that triggered it.
func (n *Notifier) Send(ctx context.Context, alert Alert) {
	if !n.cfg.Enabled || n.cfg.URL == "" {
		return
	}
	alert.Timestamp = time.Now()

	body, err := json.Marshal(alert)
	if err != nil {
		n.logger.Error().Err(err).Msg("marshal alert")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error().Err(err).Msg("build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.Warn().Err(err).Str("level", string(alert.Level)).Msg("alert delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn().Int("status", resp.StatusCode).Str("level", string(alert.Level)).Msg("alert endpoint rejected")
	}
}

// SignalAlert builds a new-signal alert message.
func SignalAlert(symbol, strategy string) Alert {
	return Alert{
		Level:   LevelSignal,
		Symbol:  symbol,
		Message: fmt.Sprintf("new %s signal on %s", strategy, symbol),
	}
}

// DrawdownAlert builds a drawdown-protection state-change alert message.
func DrawdownAlert(message string) Alert {
	return Alert{Level: LevelDrawdown, Message: message}
}

// IngestFailedAlert builds an ingestion-failure alert message.
func IngestFailedAlert(symbol string, cause error) Alert {
	return Alert{
		Level:   LevelIngestFailed,
		Symbol:  symbol,
		Message: fmt.Sprintf("ingestion failed for %s: %v", symbol, cause),
	}
}
