package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantgate/internal/auth"
	"github.com/wolfeidau/tenantgate/internal/telemetry"
)

// Default sweep behavior.
const (
	DefaultSweepInterval = 30 * time.Second
	DefaultIdleTimeout   = 5 * time.Minute
)

// ErrConnectionNotFound is returned when an operation names a clientId
// that is not in the registry.
var ErrConnectionNotFound = errors.New("connection not found")

// Registry owns the table of live realtime connections. It is the one
// piece of shared mutable state in the gateway: connects, per-message
// touches, auth transitions, disconnects and the periodic sweep all
// mutate it concurrently, so every mutating operation takes the lock.
// The underlying map is never exposed.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	verifier      auth.TokenVerifier
	sweepInterval time.Duration
	idleTimeout   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// RegistryConfig tunes the heartbeat sweep.
type RegistryConfig struct {
	SweepInterval time.Duration
	IdleTimeout   time.Duration
}

// NewRegistry creates a connection registry that delegates credential
// verification to the given verifier.
func NewRegistry(verifier auth.TokenVerifier, cfg RegistryConfig) *Registry {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		conns:         make(map[string]*Connection),
		verifier:      verifier,
		sweepInterval: cfg.SweepInterval,
		idleTimeout:   cfg.IdleTimeout,
	}
}

// Start launches the heartbeat sweep loop. The loop stops when the given
// context is cancelled or Stop is called.
func (r *Registry) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()

	log.Info().
		Dur("interval", r.sweepInterval).
		Dur("timeout", r.idleTimeout).
		Msg("Connection sweep started")
}

// Stop cancels the sweep loop and waits for it to exit, then closes every
// remaining connection with a bounded per-socket wait.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}

	r.mu.Lock()
	remaining := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conn.State = StateClosed
		remaining = append(remaining, conn)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range remaining {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			c.writeClose(websocket.CloseGoingAway, "server shutting down")
		}(conn)
	}
	wg.Wait()

	if len(remaining) > 0 {
		telemetry.GetMetrics().ActiveConnections.Add(context.Background(), -int64(len(remaining)))
		log.Info().Int("count", len(remaining)).Msg("Closed remaining connections on shutdown")
	}
}

// Connect inserts a new entry for an open socket and sends the welcome
// event carrying the generated clientId.
func (r *Registry) Connect(sock *websocket.Conn) *Connection {
	conn := &Connection{
		ClientID:     newClientID(),
		State:        StateConnected,
		LastActivity: time.Now(),
		sock:         sock,
	}

	r.mu.Lock()
	r.conns[conn.ClientID] = conn
	r.mu.Unlock()

	telemetry.GetMetrics().ActiveConnections.Add(context.Background(), 1)

	if err := conn.writeJSON(outbound(EventConnection, welcomePayload{
		ClientID:      conn.ClientID,
		Message:       "Connected to realtime gateway",
		Authenticated: false,
	})); err != nil {
		log.Warn().Err(err).Str("client_id", conn.ClientID).Msg("Failed to send welcome event")
	}

	log.Debug().Str("client_id", conn.ClientID).Msg("Client connected")
	return conn
}

// Authenticate runs the auth handshake for a connection. Verification is
// delegated to the external credential verifier and happens on the
// caller's goroutine (the connection's read loop), never under the
// registry lock, so a slow signature check cannot stall the sweep or
// other clients. A failed handshake leaves the connection open in the
// connected state; the client may retry with a new token.
func (r *Registry) Authenticate(ctx context.Context, clientID, token string) error {
	r.mu.RLock()
	conn, ok := r.conns[clientID]
	r.mu.RUnlock()
	if !ok {
		return ErrConnectionNotFound
	}

	metrics := telemetry.GetMetrics()
	metrics.AuthHandshakesTotal.Add(ctx, 1)

	principal, err := r.verifier.Verify(ctx, token)
	if err != nil {
		metrics.AuthFailuresTotal.Add(ctx, 1)
		log.Warn().Err(err).Str("client_id", clientID).Msg("Realtime auth failed")

		if werr := conn.writeJSON(outbound(EventAuth, authResultPayload{
			Success: false,
			Message: "Authentication failed",
			Error:   err.Error(),
		})); werr != nil {
			log.Warn().Err(werr).Str("client_id", clientID).Msg("Failed to send auth failure")
		}
		return err
	}

	r.mu.Lock()
	// The entry may have been evicted while the signature check ran.
	if _, ok := r.conns[clientID]; !ok {
		r.mu.Unlock()
		return ErrConnectionNotFound
	}
	pid := principal.PrincipalID
	conn.PrincipalID = &pid
	conn.State = StateAuthenticated
	conn.LastActivity = time.Now()
	r.mu.Unlock()

	log.Info().
		Str("client_id", clientID).
		Str("principal_id", pid.String()).
		Msg("Realtime client authenticated")

	if err := conn.writeJSON(outbound(EventAuth, authResultPayload{
		Success: true,
		Message: "Authentication successful",
		UserID:  pid.String(),
	})); err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("Failed to send auth success")
	}
	return nil
}

// Touch updates the connection's last-activity timestamp. It is called
// for every inbound message, ping included.
func (r *Registry) Touch(clientID string) {
	r.mu.Lock()
	if conn, ok := r.conns[clientID]; ok {
		conn.LastActivity = time.Now()
	}
	r.mu.Unlock()
}

// Disconnect removes a connection from the registry and closes its
// socket. It is idempotent: disconnecting an unknown clientId is a no-op.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	conn, ok := r.conns[clientID]
	if ok {
		conn.State = StateClosed
		delete(r.conns, clientID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	telemetry.GetMetrics().ActiveConnections.Add(context.Background(), -1)
	_ = conn.sock.Close()
	log.Debug().Str("client_id", clientID).Msg("Client disconnected")
}

// Lookup returns a snapshot of the connection's registry state.
func (r *Registry) Lookup(clientID string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[clientID]
	if !ok {
		return StateClosed, false
	}
	return conn.State, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// sweep evicts every connection whose last activity is older than the
// idle timeout. Entries are removed under the lock; the sockets are
// closed afterwards, each on its own goroutine, so one wedged peer cannot
// delay eviction of the rest.
func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []*Connection
	for id, conn := range r.conns {
		if conn.LastActivity.Before(cutoff) {
			conn.State = StateClosed
			delete(r.conns, id)
			expired = append(expired, conn)
		}
	}
	r.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	metrics := telemetry.GetMetrics()
	metrics.SweepEvictionsTotal.Add(context.Background(), int64(len(expired)))
	metrics.ActiveConnections.Add(context.Background(), -int64(len(expired)))

	for _, conn := range expired {
		log.Info().
			Str("client_id", conn.ClientID).
			Time("last_activity", conn.LastActivity).
			Msg("Evicting idle connection")
		go conn.writeClose(websocket.CloseNormalClosure, "idle timeout")
	}
}

// snapshot returns the live connections matching the filter. The slice is
// built under the read lock so senders can iterate without holding it.
func (r *Registry) snapshot(match func(*Connection) bool) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for _, conn := range r.conns {
		if match(conn) {
			out = append(out, conn)
		}
	}
	return out
}
