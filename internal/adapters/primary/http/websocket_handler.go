package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	wsAdapter "github.com/lorrc/helpdesk-analytics/internal/adapters/primary/websocket"
	"github.com/lorrc/helpdesk-analytics/internal/config"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
)

// WebSocketHandler upgrades dashboard connections for live filtering
type WebSocketHandler struct {
	hub       *wsAdapter.Hub
	analytics ports.AnalyticsService
	upgrader  websocket.Upgrader
	limit     wsAdapter.FilterLimit
	logger    *slog.Logger

	// baseCtx outlives the upgrade request; client requests derive from it
	baseCtx context.Context
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	ctx context.Context,
	hub *wsAdapter.Hub,
	analytics ports.AnalyticsService,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:       hub,
		analytics: analytics,
		limit:     wsAdapter.FilterLimit{Rate: cfg.WebSocket.FilterRate, Burst: cfg.WebSocket.FilterBurst},
		logger:    logger,
		baseCtx:   ctx,
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if cfg.IsDevelopment() {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		if originAllowed(parsedOrigin.Host, allowedOrigins) {
			return true
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// originAllowed matches a host against entries like "dash.example.com"
// or "*.example.com".
func originAllowed(host string, allowed []string) bool {
	for _, entry := range allowed {
		if strings.HasPrefix(entry, "*.") {
			suffix := entry[1:] // keep ".example.com"
			if strings.HasSuffix(host, suffix) || host == entry[2:] {
				return true
			}
		} else if host == entry {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			"request_id", requestID,
			"error", err,
		)
		return
	}

	client := wsAdapter.NewClient(h.hub, conn, h.analytics, h.limit, h.logger)

	h.logger.Info("websocket connection established",
		"request_id", requestID,
		"client_id", client.ID.String(),
		"remote_addr", r.RemoteAddr,
	)

	if !client.Hub.Join(client) {
		h.logger.Info("rejecting websocket connection during shutdown", "request_id", requestID)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.baseCtx)
}
