package realtime

import (
	"encoding/json"
	"time"
)

// Client and server event names for the realtime message envelope.
const (
	// Client to server
	EventAuth        = "auth"
	EventPing        = "ping"
	EventRequestData = "request_data"

	// Server to client
	EventConnection   = "connection"
	EventPong         = "pong"
	EventDataResponse = "data_response"
	EventError        = "error"

	// Out-of-band broadcast kinds
	EventSystemAlert   = "system_alert"
	EventStatsUpdate   = "stats_update"
	EventSessionUpdate = "session_update"
	EventPaymentUpdate = "payment_update"
	EventUserUpdate    = "user_update"
	EventNotification  = "notification"
)

// Envelope is the wire format for every realtime message: an event name
// plus an event-specific data object.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound builds a server-to-client envelope. Marshal failures are a
// programming error in the payload type; writeJSON returns them to the
// caller, which logs and drops the send.
func outbound(event string, data any) any {
	return struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data}
}

// AuthRequest is the client auth handshake payload.
type AuthRequest struct {
	Token string `json:"token"`
}

// DataRequest asks the server for a snapshot of the named data set.
type DataRequest struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// welcomePayload is sent once on connect.
type welcomePayload struct {
	ClientID      string `json:"clientId"`
	Message       string `json:"message"`
	Authenticated bool   `json:"authenticated"`
}

// authResultPayload reports the outcome of an auth handshake. On failure
// the socket stays open so the client may retry with a fresh token.
type authResultPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type pongPayload struct {
	Timestamp int64  `json:"timestamp"`
	ClientID  string `json:"clientId"`
}

type dataResponsePayload struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// broadcastPayload wraps every out-of-band broadcast kind.
type broadcastPayload struct {
	Payload   any   `json:"payload"`
	Timestamp int64 `json:"timestamp"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
