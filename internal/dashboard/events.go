package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nitinkhare/swingdss/internal/userstore"
)

// PollEmitter polls the User Store for position and trade-journal changes
// and broadcasts them to WebSocket clients. The User Store is SQLite, so
// there is no LISTEN/NOTIFY channel to subscribe to — polling on a short
// interval is the idiomatic substitute for an embedded database.
type PollEmitter struct {
	store       *userstore.Store
	broadcaster *Broadcaster
	interval    time.Duration
	logger      zerolog.Logger
	shutdown    chan struct{}

	knownPositions map[string]bool
	lastTradeCount int
}

// NewPollEmitter creates a PollEmitter. interval defaults to 5 seconds.
func NewPollEmitter(store *userstore.Store, broadcaster *Broadcaster, interval time.Duration, logger zerolog.Logger) *PollEmitter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PollEmitter{
		store:          store,
		broadcaster:    broadcaster,
		interval:       interval,
		logger:         logger.With().Str("component", "dashboard").Logger(),
		shutdown:       make(chan struct{}),
		knownPositions: make(map[string]bool),
	}
}

// Start begins the polling loop in a background goroutine.
func (e *PollEmitter) Start(ctx context.Context) {
	go e.loop(ctx)
}

// Stop halts the polling loop.
func (e *PollEmitter) Stop() {
	close(e.shutdown)
}

func (e *PollEmitter) loop(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.shutdown:
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

func (e *PollEmitter) poll(ctx context.Context) {
	positions, err := e.store.OpenPositions(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("poll open positions")
		return
	}

	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		seen[p.Symbol] = true
		if !e.knownPositions[p.Symbol] {
			e.emit("position_opened", p)
		}
	}
	for symbol := range e.knownPositions {
		if !seen[symbol] {
			e.emit("position_closed", map[string]string{"symbol": symbol})
		}
	}
	e.knownPositions = seen

	trades, err := e.store.Trades(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("poll trade journal")
		return
	}
	if len(trades) > e.lastTradeCount {
		for _, t := range trades[e.lastTradeCount:] {
			e.emit("trade_closed", t)
		}
		e.lastTradeCount = len(trades)
	}
}

func (e *PollEmitter) emit(eventType string, data interface{}) {
	e.broadcaster.Broadcast(WebSocketMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
