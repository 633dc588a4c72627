package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// maxMessageSize bounds inbound envelopes; the client protocol is small
// control messages only.
const maxMessageSize = 32 * 1024

// DataProvider serves request_data snapshots for authenticated clients.
// Implementations live with the business handlers.
type DataProvider interface {
	Fetch(ctx context.Context, dataType string, params map[string]any) (any, error)
}

// DataProviderFunc adapts a function to the DataProvider interface.
type DataProviderFunc func(ctx context.Context, dataType string, params map[string]any) (any, error)

func (f DataProviderFunc) Fetch(ctx context.Context, dataType string, params map[string]any) (any, error) {
	return f(ctx, dataType, params)
}

// Handler upgrades inbound requests at the realtime endpoint and runs the
// per-connection read loop. Replies go through the dispatcher, which owns
// delivery logging and send-error accounting. Message processing for one
// connection is serialized by construction: the read loop is that
// connection's only message consumer, so no two auth handshakes for the
// same clientId can interleave.
type Handler struct {
	registry   *Registry
	dispatcher *Dispatcher
	provider   DataProvider
	upgrader   websocket.Upgrader
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(registry *Registry, dispatcher *Dispatcher, provider DataProvider) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		provider:   provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients authenticate in-band with the auth message; origin
			// policy is handled at the HTTP layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and processes messages until the peer
// goes away. The registry entry is removed on any exit path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	sock.SetReadLimit(maxMessageSize)

	conn := h.registry.Connect(sock)
	defer h.registry.Disconnect(conn.ClientID)

	h.readLoop(r.Context(), conn)
}

func (h *Handler) readLoop(ctx context.Context, conn *Connection) {
	for {
		_, raw, err := conn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("client_id", conn.ClientID).Msg("Read failed")
			}
			return
		}

		// Every inbound message counts as activity.
		h.registry.Touch(conn.ClientID)

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(conn, "invalid message envelope")
			continue
		}

		h.handleEvent(ctx, conn, env)
	}
}

func (h *Handler) handleEvent(ctx context.Context, conn *Connection, env Envelope) {
	switch env.Event {
	case EventAuth:
		var req AuthRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			h.sendError(conn, "invalid auth payload")
			return
		}
		// Failure is reported to the client inside Authenticate; the
		// socket stays open for a retry.
		_ = h.registry.Authenticate(ctx, conn.ClientID, req.Token)

	case EventPing:
		h.dispatcher.SendTo(conn.ClientID, EventPong, pongPayload{
			Timestamp: nowMillis(),
			ClientID:  conn.ClientID,
		})

	case EventRequestData:
		h.handleRequestData(ctx, conn, env)

	default:
		h.sendError(conn, "unknown event: "+env.Event)
	}
}

func (h *Handler) handleRequestData(ctx context.Context, conn *Connection, env Envelope) {
	if state, ok := h.registry.Lookup(conn.ClientID); !ok || state != StateAuthenticated {
		h.sendError(conn, "authentication required")
		return
	}

	var req DataRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		h.sendError(conn, "invalid request_data payload")
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := h.provider.Fetch(fetchCtx, req.Type, req.Params)
	if err != nil {
		log.Warn().Err(err).
			Str("client_id", conn.ClientID).
			Str("type", req.Type).
			Msg("Data request failed")
		h.sendError(conn, "failed to fetch data: "+req.Type)
		return
	}

	h.dispatcher.SendTo(conn.ClientID, EventDataResponse, dataResponsePayload{
		Type:      req.Type,
		Timestamp: nowMillis(),
		Data:      data,
	})
}

func (h *Handler) sendError(conn *Connection, message string) {
	h.dispatcher.SendTo(conn.ClientID, EventError, errorPayload{Message: message})
}
