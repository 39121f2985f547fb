// Server exposes the read-only HTTP/WebSocket surface behind the `ui`
// CLI subcommand: JSON status/positions, a Prometheus /metrics endpoint,
// and a WebSocket event feed fed by PollEmitter. It is an interface stub,
// not a trading UI — no order placement, no chart rendering.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nitinkhare/swingdss/internal/userstore"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server holds dependencies for the status/heartbeat HTTP surface.
type Server struct {
	store        *userstore.Store
	totalCapital float64
	logger       zerolog.Logger
	broadcaster  *Broadcaster
	emitter      *PollEmitter
}

// NewServer builds a Server. totalCapital is used to compute available
// capital in the status response.
func NewServer(store *userstore.Store, totalCapital float64, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "dashboard").Logger()
	broadcaster := NewBroadcaster(logger)
	emitter := NewPollEmitter(store, broadcaster, 5*time.Second, logger)
	return &Server{
		store:        store,
		totalCapital: totalCapital,
		logger:       logger,
		broadcaster:  broadcaster,
		emitter:      emitter,
	}
}

// Serve starts the broadcaster, the poll emitter, and the HTTP server,
// blocking until ctx is cancelled or the server returns an error.
func (s *Server) Serve(ctx context.Context, addr string) error {
	go s.broadcaster.Run()
	s.emitter.Start(ctx)
	defer s.emitter.Stop()
	defer s.broadcaster.Shutdown()

	router := mux.NewRouter()
	router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/positions", s.handlePositions).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/ws", s.handleWebSocket)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("dashboard listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// StatusResponse is the dashboard's top-level system status.
type StatusResponse struct {
	OpenPositions    int       `json:"open_positions"`
	AvailableCapital float64   `json:"available_capital"`
	TotalCapital     float64   `json:"total_capital"`
	Timestamp        time.Time `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.OpenPositions(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}

	used := 0.0
	for _, p := range positions {
		used += p.EntryPrice * float64(p.Quantity)
	}
	available := s.totalCapital - used
	if available < 0 {
		available = 0
	}

	s.respondJSON(w, http.StatusOK, StatusResponse{
		OpenPositions:    len(positions),
		AvailableCapital: available,
		TotalCapital:     s.totalCapital,
		Timestamp:        time.Now(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.OpenPositions(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, positions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.logger.Error().Err(err).Msg("request failed")
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// handleWebSocket upgrades the connection and registers it with the
// broadcaster; position/trade events are pushed by PollEmitter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	client := &Client{ID: r.RemoteAddr, Send: make(chan interface{}, 256)}
	s.broadcaster.Register(client)
	defer s.broadcaster.Unregister(client)

	s.logger.Info().Str("client", client.ID).Msg("websocket client connected")

	go s.writePump(ws, client)
	s.readPump(ws, client)
}

func (s *Server) writePump(ws *websocket.Conn, client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(message); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Error().Err(err).Str("client", client.ID).Msg("websocket write error")
				}
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(ws *websocket.Conn, client *Client) {
	defer func() {
		s.broadcaster.Unregister(client)
		s.logger.Info().Str("client", client.ID).Msg("websocket client disconnected")
	}()

	ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("client", client.ID).Msg("websocket read error")
			}
			return
		}
	}
}
