package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/wolfeidau/tenantgate/internal/auth"
	"github.com/wolfeidau/tenantgate/internal/httpapi"
	"github.com/wolfeidau/tenantgate/internal/logger"
	"github.com/wolfeidau/tenantgate/internal/realtime"
	"github.com/wolfeidau/tenantgate/internal/store"
	memorystore "github.com/wolfeidau/tenantgate/internal/store/memory"
	postgresstore "github.com/wolfeidau/tenantgate/internal/store/postgres"
	"github.com/wolfeidau/tenantgate/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"GATEWAY_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"GATEWAY_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"GATEWAY_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"GATEWAY_CORS_ORIGINS"`

	// Credential verification
	JWTSecret string `help:"secret key for HMAC verification of bearer tokens" env:"GATEWAY_JWT_SECRET"`
	JWTIssuer string `help:"required token issuer (empty disables the issuer check)" default:"" env:"GATEWAY_JWT_ISSUER"`

	// Version normalizer
	RoutesConfig string `help:"path to YAML config for the version normalizer endpoint set" default:"" env:"GATEWAY_ROUTES_CONFIG"`

	// Realtime configuration
	SweepInterval time.Duration `help:"heartbeat sweep period" default:"30s" env:"GATEWAY_SWEEP_INTERVAL"`
	IdleTimeout   time.Duration `help:"connection inactivity timeout" default:"5m" env:"GATEWAY_IDLE_TIMEOUT"`

	// Operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"GATEWAY_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"GATEWAY_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"GATEWAY_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting gateway")

	if c.JWTSecret == "" {
		return errors.New("JWT secret is required (--jwt-secret or GATEWAY_JWT_SECRET)")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT secret must be at least 32 bytes (256 bits) for HMAC-SHA256")
	}

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "tenantgate-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	// Create the organization store based on store type
	var organizationStore store.OrganizationStore

	switch c.StoreType {
	case "postgres":
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		organizationStore = postgresstore.NewOrganizationStore(pool)
		log.Info().Msg("Using PostgreSQL organization store")

	default:
		organizationStore = memorystore.NewOrganizationStore()
		log.Info().Msg("Using in-memory organization store")
	}

	verifier := auth.NewJWTVerifier([]byte(c.JWTSecret), c.JWTIssuer)

	// Version normalizer endpoint set
	normalizerCfg := httpapi.DefaultNormalizerConfig()
	if c.RoutesConfig != "" {
		var err error
		normalizerCfg, err = httpapi.LoadNormalizerConfig(c.RoutesConfig)
		if err != nil {
			return fmt.Errorf("failed to load routes config: %w", err)
		}
		log.Info().Str("path", c.RoutesConfig).Msg("Loaded routes config")
	}
	normalizer := httpapi.NewNormalizer(normalizerCfg)

	// Route descriptor table and guard pipeline
	table := registerRoutes()
	pipeline := httpapi.NewPipeline(table, verifier, organizationStore)

	// Realtime registry, sweep and dispatcher
	registry := realtime.NewRegistry(verifier, realtime.RegistryConfig{
		SweepInterval: c.SweepInterval,
		IdleTimeout:   c.IdleTimeout,
	})
	registry.Start(ctx)
	defer registry.Stop()

	dispatcher := realtime.NewDispatcher(registry)
	wsHandler := realtime.NewHandler(registry, dispatcher, newDataProvider(organizationStore))

	mux := http.NewServeMux()
	registerHandlers(mux, pipeline)
	mux.Handle("/api/ws", wsHandler)

	// Client IP resolution runs outermost so the request logger and the
	// guard rejection logs see the originating address.
	clientIPMiddleware := httpapi.ClientIPMiddleware()
	requestLogger := logger.NewHTTPRequests(log)

	handler := clientIPMiddleware(requestLogger(normalizer.Middleware()(withCORS(c.CORSOrigins, mux))))

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", c.Cert != "").Msg("Starting HTTP server")
		if c.Cert != "" && c.Key != "" {
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// withCORS adds CORS support to API routes.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", httpapi.TenantHeader},
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}
