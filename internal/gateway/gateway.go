// ABOUTME: Gateway orchestrator wiring the HTTP server, WebSocket upgrade path and fan-out
// ABOUTME: Manages session registry, store and broadcaster lifecycle with graceful shutdown

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tckeong/ChatWidget/internal/auth"
	"github.com/tckeong/ChatWidget/internal/broadcast"
	"github.com/tckeong/ChatWidget/internal/config"
	"github.com/tckeong/ChatWidget/internal/session"
	"github.com/tckeong/ChatWidget/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Gateway orchestrates the relay server components. It owns the HTTP server
// that carries both the WebSocket endpoint and the REST API, and runs the
// broadcaster's bridge subscription alongside it.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *session.Registry
	broadcaster *broadcast.Broadcaster
	verifier    auth.Verifier
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	logger      *slog.Logger
}

// New assembles a Gateway from its components. The caller owns the store and
// bridge; Gateway closes neither.
func New(cfg *config.Config, st store.Store, registry *session.Registry, broadcaster *broadcast.Broadcaster, verifier auth.Verifier, logger *slog.Logger) *Gateway {
	g := &Gateway{
		config:      cfg,
		store:       st,
		registry:    registry,
		broadcaster: broadcaster,
		verifier:    verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser widgets embed on arbitrary business sites.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "gateway"),
	}
	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Handler builds the full route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	requireAuth := auth.Middleware(g.verifier)

	mux.HandleFunc("GET /ws", g.handleWS)
	mux.Handle("POST /api/messages", requireAuth(http.HandlerFunc(g.handleSendMessage)))
	mux.Handle("GET /api/conversations/{conversationID}/messages", requireAuth(http.HandlerFunc(g.handleHistory)))
	mux.Handle("GET /api/conversations", requireAuth(http.HandlerFunc(g.handleListConversations)))
	mux.HandleFunc("GET /healthz", g.handleHealth)

	return mux
}

// Run starts the HTTP server and the broadcaster's bridge subscription, and
// blocks until ctx is cancelled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := g.broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Error("broadcaster stopped", "error", err)
		}
	}()

	go func() {
		g.logger.Info("http server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutting down")
		return g.shutdown()
	case err := <-errCh:
		return err
	}
}

func (g *Gateway) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := g.httpServer.Shutdown(ctx)

	// Shutdown does not touch hijacked connections; close the remaining
	// websocket sessions so their pumps exit.
	for _, sess := range g.registry.All() {
		if removed, ok := g.registry.Remove(sess.ID); ok {
			removed.Sender.Close()
		}
	}

	return err
}

// handleWS authenticates the request, upgrades it and hands the connection to
// the protocol state machine. Auth failures are rejected before the upgrade so
// no session is ever registered for them.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Warn("websocket auth rejected", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn, *identity, g.logger)
	client.sessionID = g.registry.Register(client, *identity)

	g.logger.Info("websocket connected",
		"session_id", client.sessionID,
		"user_id", identity.ID)

	client.sendFrame(frameWelcome, map[string]string{
		"sessionId": client.sessionID,
		"userId":    identity.ID,
	})

	go client.writePump()
	go client.readPump(
		func(data []byte) { g.handleFrame(client, data) },
		func() { g.handleDisconnect(client) },
	)

	// An optional conversationId query parameter joins immediately, saving
	// the widget a round trip on reconnect.
	if convID := r.URL.Query().Get("conversationId"); convID != "" {
		g.handleJoin(r.Context(), client, JoinEvent{ConversationID: convID})
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sessions": g.registry.Len(),
	})
}
