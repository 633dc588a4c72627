package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantgate/internal/telemetry"
)

// Dispatcher delivers events to live connections. Every operation is
// best-effort and fire-and-forget: no acknowledgement, no retry, no
// persistence of undelivered messages. A failed send to one socket never
// aborts delivery to the remaining recipients.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// SendTo delivers an event to a single connection. It is a no-op if the
// connection is absent.
func (d *Dispatcher) SendTo(clientID, event string, data any) {
	d.registry.mu.RLock()
	conn, ok := d.registry.conns[clientID]
	d.registry.mu.RUnlock()
	if !ok {
		return
	}

	d.deliver(conn, event, data)
}

// BroadcastAuthenticated delivers an event to every authenticated
// connection, silently skipping the rest.
func (d *Dispatcher) BroadcastAuthenticated(event string, payload any) {
	conns := d.registry.snapshot(func(c *Connection) bool {
		return c.State == StateAuthenticated
	})
	d.broadcast(conns, event, payload)
}

// BroadcastToPrincipal delivers an event to every connection bound to the
// principal, covering multiple simultaneous devices. Zero matches is not
// an error.
func (d *Dispatcher) BroadcastToPrincipal(principalID uuid.UUID, event string, payload any) {
	conns := d.registry.snapshot(func(c *Connection) bool {
		return c.PrincipalID != nil && *c.PrincipalID == principalID
	})
	d.broadcast(conns, event, payload)
}

func (d *Dispatcher) broadcast(conns []*Connection, event string, payload any) {
	if len(conns) == 0 {
		return
	}

	metrics := telemetry.GetMetrics()
	wrapped := broadcastPayload{Payload: payload, Timestamp: nowMillis()}
	for _, conn := range conns {
		metrics.BroadcastsTotal.Add(context.Background(), 1)
		d.deliver(conn, event, wrapped)
	}
}

// deliver performs one send. Write deadlines inside writeJSON bound the
// wait on a slow peer; failures are logged and counted, never raised.
func (d *Dispatcher) deliver(conn *Connection, event string, data any) {
	if err := conn.writeJSON(outbound(event, data)); err != nil {
		telemetry.GetMetrics().SendErrorsTotal.Add(context.Background(), 1)
		log.Warn().Err(err).
			Str("client_id", conn.ClientID).
			Str("event", event).
			Msg("Failed to deliver event")
	}
}
