package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-analytics/internal/core/errors"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Filter requests may carry a
	// full ticket list.
	maxMessageSize = 4 << 20

	// Upper bound on a single filter pass.
	filterTimeout = 10 * time.Second
)

// Message types exchanged with the dashboard.
const (
	TypeFilter       = "FILTER"
	TypeFilterResult = "FILTER_RESULT"
	TypeRefresh      = "REFRESH"
	TypeError        = "ERROR"
	TypePing         = "PING"
	TypePong         = "PONG"
)

// Message is the envelope for everything sent to the client.
type Message struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID uuid.UUID

	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan Message

	analytics ports.AnalyticsService

	// filters limits FILTER requests; the dashboard sends one per keystroke
	filters *rate.Limiter

	// watching is the technician the last filter request targeted
	watching int64

	// closeOnce ensures the Send channel is only closed once
	closeOnce sync.Once

	// mu protects watching
	mu sync.RWMutex

	logger *slog.Logger
}

// FilterLimit bounds how fast one connection may send FILTER requests.
// A non-positive Rate disables the limit.
type FilterLimit struct {
	Rate  float64
	Burst int
}

func (l FilterLimit) limiter() *rate.Limiter {
	if l.Rate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := l.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(l.Rate), burst)
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, analytics ports.AnalyticsService, limit FilterLimit, logger *slog.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:        id,
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan Message, 64),
		analytics: analytics,
		filters:   limit.limiter(),
		logger:    logger.With("client_id", id.String()),
	}
}

// CloseSend safely closes the Send channel exactly once
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// Watching returns the technician this client last filtered, or 0.
func (c *Client) Watching() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching
}

func (c *Client) setWatching(technicianID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching = technicianID
}

// ReadPump pumps messages from the websocket connection and answers them.
// This method runs in its own goroutine. Requests are handled in order,
// so results arrive in keystroke order.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(ctx, message)
	}
}

// WritePump pumps messages from the Send channel to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (c *Client) writeJSON(msg Message) error {
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(msg); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// FilterPayload asks for one filter pass. With a technician ID the stored
// tickets are filtered, otherwise the tickets in the payload.
type FilterPayload struct {
	TechnicianID       int64             `json:"technicianId"`
	Tickets            domain.TicketList `json:"tickets"`
	SearchTerm         string            `json:"searchTerm"`
	SelectedCategories domain.StringList `json:"selectedCategories"`
	ReferenceName      string            `json:"referenceName"`
}

// FilterResultPayload is the answer to a FILTER message.
type FilterResultPayload struct {
	Data       []domain.Ticket    `json:"data"`
	Count      int                `json:"count"`
	Stats      domain.FilterStats `json:"stats"`
	Categories []string           `json:"categories"`
	Truncated  bool               `json:"truncated"`
}

// RefreshPayload is pushed when a watched technician's tickets were re-synced.
type RefreshPayload struct {
	TechnicianID int64 `json:"technicianId"`
}

// ErrorPayload describes a failed request.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) handleIncomingMessage(ctx context.Context, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		c.send(Message{Type: TypeError, Payload: ErrorPayload{Error: "Invalid message", Code: "BAD_REQUEST"}})
		return
	}

	switch msg.Type {
	case TypeFilter:
		c.handleFilter(ctx, msg)

	case TypePing:
		// Client-side keep-alive, respond with pong
		c.send(Message{Type: TypePong, RequestID: msg.RequestID})

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) handleFilter(ctx context.Context, msg ClientMessage) {
	if !c.filters.Allow() {
		c.sendError(msg.RequestID, apperrors.NewRateLimitError())
		return
	}

	var p FilterPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.sendError(msg.RequestID, apperrors.NewBadRequestError(err, "Invalid filter payload"))
			return
		}
	}

	if p.TechnicianID < 0 {
		c.sendError(msg.RequestID, apperrors.ErrInvalidTechnician)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, filterTimeout)
	defer cancel()

	criteria := domain.FilterCriteria{
		SearchTerm:         p.SearchTerm,
		SelectedCategories: p.SelectedCategories,
		ReferenceName:      p.ReferenceName,
	}

	var (
		result *domain.FilterResult
		err    error
	)
	if p.TechnicianID > 0 {
		c.Hub.watch(c, p.TechnicianID)
		result, err = c.analytics.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{
			TechnicianID: p.TechnicianID,
			Criteria:     criteria,
		})
	} else {
		result, err = c.analytics.Filter(ctx, p.Tickets, criteria)
	}
	if err != nil {
		c.sendError(msg.RequestID, err)
		return
	}

	c.send(Message{
		Type:      TypeFilterResult,
		RequestID: msg.RequestID,
		Payload:   toFilterResultPayload(result),
	})
}

func toFilterResultPayload(result *domain.FilterResult) FilterResultPayload {
	tickets := result.Tickets
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	categories := result.Categories
	if categories == nil {
		categories = []string{}
	}
	return FilterResultPayload{
		Data:       tickets,
		Count:      len(tickets),
		Stats:      result.Stats,
		Categories: categories,
		Truncated:  result.Truncated,
	}
}

func (c *Client) sendError(requestID string, err error) {
	payload := ErrorPayload{Error: "An unexpected error occurred", Code: "INTERNAL_ERROR"}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		payload = ErrorPayload{Error: appErr.Message, Code: appErr.Code}
	case errors.Is(err, apperrors.ErrTechnicianNotFound):
		payload = ErrorPayload{Error: "Technician not found", Code: "TECHNICIAN_NOT_FOUND"}
	case errors.Is(err, apperrors.ErrInvalidTechnician):
		payload = ErrorPayload{Error: err.Error(), Code: "VALIDATION_ERROR"}
	default:
		c.logger.Error("filter request failed", "request_id", requestID, "error", err)
	}

	c.send(Message{Type: TypeError, RequestID: requestID, Payload: payload})
}

// send queues a message without blocking the read loop.
func (c *Client) send(msg Message) {
	defer func() {
		// Send was closed by the hub while we were answering.
		_ = recover()
	}()

	select {
	case c.Send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}
