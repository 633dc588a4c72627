// Package realtime implements the in-memory registry of live websocket
// connections, the heartbeat sweep that evicts stale ones, and the
// best-effort broadcast dispatcher.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the lifecycle state of a connection.
type State int

const (
	// StateConnected means the socket is open but the client has not
	// completed the auth handshake.
	StateConnected State = iota
	// StateAuthenticated means the auth handshake succeeded and the
	// connection is bound to a principal.
	StateAuthenticated
	// StateClosed is terminal; a closed connection is removed from the
	// registry atomically with its closure.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// writeWait bounds every socket write so one slow peer cannot stall a
// broadcast loop or the sweep.
const writeWait = 10 * time.Second

// Connection represents one live realtime channel. Domain state lives
// here; the transport socket is held by reference only. All fields are
// owned by the Registry and guarded by its lock; the socket is written
// through writeJSON/writeClose, which serialize writers.
type Connection struct {
	ClientID     string
	PrincipalID  *uuid.UUID
	State        State
	LastActivity time.Time

	sock    *websocket.Conn
	writeMu sync.Mutex
}

// newClientID generates a process-unique connection id: time-based with a
// random suffix, so collisions are practically impossible within one
// process lifetime.
func newClientID() string {
	return fmt.Sprintf("client_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// writeJSON sends one envelope over the socket with a bounded deadline.
func (c *Connection) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

// writeClose sends a close frame with the given code, waits no longer
// than writeWait, then tears the socket down.
func (c *Connection) writeClose(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	_ = c.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.sock.Close()
}
