package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/tenantgate"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Guard pipeline metrics
	AuthFailuresTotal   metric.Int64Counter
	TenantRejectedTotal metric.Int64Counter
	RoleRejectedTotal   metric.Int64Counter
	IspLookupMissTotal  metric.Int64Counter

	// Realtime gateway metrics
	ActiveConnections   metric.Int64UpDownCounter
	AuthHandshakesTotal metric.Int64Counter
	SweepEvictionsTotal metric.Int64Counter
	BroadcastsTotal     metric.Int64Counter
	SendErrorsTotal     metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.AuthFailuresTotal, _ = meter.Int64Counter(
		"gateway.auth.failures.total",
		metric.WithDescription("Total number of failed credential verifications"),
		metric.WithUnit("{failure}"),
	)

	m.TenantRejectedTotal, _ = meter.Int64Counter(
		"gateway.authz.tenant.rejected.total",
		metric.WithDescription("Total number of requests rejected for a missing or invalid tenant identifier"),
		metric.WithUnit("{request}"),
	)

	m.RoleRejectedTotal, _ = meter.Int64Counter(
		"gateway.authz.role.rejected.total",
		metric.WithDescription("Total number of requests rejected for insufficient role"),
		metric.WithUnit("{request}"),
	)

	m.IspLookupMissTotal, _ = meter.Int64Counter(
		"gateway.isp.lookup.miss.total",
		metric.WithDescription("Total number of ISP context lookups that found no organization record"),
		metric.WithUnit("{lookup}"),
	)

	m.ActiveConnections, _ = meter.Int64UpDownCounter(
		"gateway.ws.connections.active",
		metric.WithDescription("Number of live realtime connections"),
		metric.WithUnit("{connection}"),
	)

	m.AuthHandshakesTotal, _ = meter.Int64Counter(
		"gateway.ws.auth.handshakes.total",
		metric.WithDescription("Total number of realtime auth handshake attempts"),
		metric.WithUnit("{handshake}"),
	)

	m.SweepEvictionsTotal, _ = meter.Int64Counter(
		"gateway.ws.evictions.total",
		metric.WithDescription("Total number of connections evicted by the heartbeat sweep"),
		metric.WithUnit("{connection}"),
	)

	m.BroadcastsTotal, _ = meter.Int64Counter(
		"gateway.ws.broadcasts.total",
		metric.WithDescription("Total number of broadcast deliveries attempted"),
		metric.WithUnit("{message}"),
	)

	m.SendErrorsTotal, _ = meter.Int64Counter(
		"gateway.ws.send.errors.total",
		metric.WithDescription("Total number of failed realtime sends"),
		metric.WithUnit("{error}"),
	)

	return m
}
