// Package fxrate resolves the USD->EUR conversion rate used to translate
// position sizing and P&L into EUR. It caches the rate in the User Store
// for 24h and falls back to the last cached value, then a hardcoded rate,
// when the upstream API is unreachable.
package fxrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nitinkhare/swingdss/internal/userstore"
)

const (
	cacheKey          = "cached_exchange_rate"
	cacheTimestampKey = "cached_exchange_rate_timestamp"
	cacheTTL          = 24 * time.Hour
	fallbackRate      = 0.92

	defaultAPIURL = "https://open.er-api.com/v6/latest/USD"
)

// ratesResponse mirrors a free public USD-base rates API response.
type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Resolver resolves and caches the USD->EUR rate.
type Resolver struct {
	store  *userstore.Store
	http   *http.Client
	apiURL string
	logger zerolog.Logger
}

// NewResolver creates a Resolver backed by the given user store.
func NewResolver(store *userstore.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		http:   &http.Client{Timeout: 10 * time.Second},
		apiURL: defaultAPIURL,
		logger: logger.With().Str("component", "fxrate").Logger(),
	}
}

// Rate returns the current USD->EUR rate: fresh cache, then a live fetch
// (which refreshes the cache), then a stale cache, then the hardcoded
// fallback — in that order, never returning an error.
func (r *Resolver) Rate(ctx context.Context) float64 {
	cached, cachedOK := r.cached(ctx)
	if cachedOK.valid && time.Since(cachedOK.at) < cacheTTL {
		return cached
	}

	live, err := r.fetch(ctx)
	if err == nil {
		r.store.SetSetting(ctx, cacheKey, fmt.Sprintf("%.6f", live))
		r.store.SetSetting(ctx, cacheTimestampKey, time.Now().Format(time.RFC3339))
		return live
	}
	r.logger.Warn().Err(err).Msg("exchange rate fetch failed")

	if cachedOK.valid {
		return cached
	}
	return fallbackRate
}

type cacheState struct {
	valid bool
	at    time.Time
}

func (r *Resolver) cached(ctx context.Context) (float64, cacheState) {
	rateStr, ok, err := r.store.GetSetting(ctx, cacheKey)
	if err != nil || !ok {
		return 0, cacheState{}
	}
	tsStr, ok, err := r.store.GetSetting(ctx, cacheTimestampKey)
	if err != nil || !ok {
		return 0, cacheState{}
	}
	ts, err := time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return 0, cacheState{}
	}

	var rate float64
	if _, err := fmt.Sscanf(rateStr, "%f", &rate); err != nil {
		return 0, cacheState{}
	}
	return rate, cacheState{valid: true, at: ts}
}

func (r *Resolver) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("fxrate: build request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fxrate: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fxrate: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("fxrate: read body: %w", err)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("fxrate: parse response: %w", err)
	}

	eur, ok := parsed.Rates["EUR"]
	if !ok {
		return 0, fmt.Errorf("fxrate: response missing EUR rate")
	}
	return eur, nil
}
