package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sidu-provider/portal-api/internal/config"
	"github.com/sidu-provider/portal-api/internal/content"
	"github.com/sidu-provider/portal-api/internal/domain"
	"github.com/sidu-provider/portal-api/internal/handler"
	"github.com/sidu-provider/portal-api/internal/infra/cache"
	"github.com/sidu-provider/portal-api/internal/infra/events"
	"github.com/sidu-provider/portal-api/internal/infra/localauth"
	"github.com/sidu-provider/portal-api/internal/infra/objectstore"
	"github.com/sidu-provider/portal-api/internal/infra/observability"
	"github.com/sidu-provider/portal-api/internal/infra/resilience"
	"github.com/sidu-provider/portal-api/internal/infra/supabase"
	"github.com/sidu-provider/portal-api/internal/port"
	"github.com/sidu-provider/portal-api/internal/service"
	"github.com/sidu-provider/portal-api/internal/session"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("supabase_configured", cfg.SupabaseConfigured()),
		zap.Bool("minio_configured", cfg.MinioConfigured()),
		zap.Bool("local_auth", cfg.LocalAuth),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "portal-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Session tracking ---
	tracker := session.NewTracker()
	tracker.OnActiveCountChange(metrics.SetActiveSessions)

	// --- Caches ---
	tokenCache := cache.New[*domain.Identity](cfg.CacheTTL)
	defer tokenCache.Close()
	profileCache := cache.New[*domain.UserProfile](cfg.CacheTTL)
	defer profileCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var identity port.IdentityProvider
	var store port.RecordStore

	switch {
	case cfg.LocalAuth:
		logger.Info("using in-memory identity provider (LOCAL_AUTH=true)")
		identity = localauth.New(cfg.LocalAuthSecret, logger)
		store = pickStore(cfg, httpClient, cb, resilienceCfg, logger)
	case cfg.SupabaseConfigured():
		logger.Info("using Supabase identity provider",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		identity = supabase.NewIdentityClient(
			httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseJWTSecret,
			cb, resilienceCfg, logger,
		)
		store = pickStore(cfg, httpClient, cb, resilienceCfg, logger)
	default:
		logger.Warn("no identity provider configured, auth routes will return 502",
			zap.String("hint", "set SUPABASE_URL, SUPABASE_ANON_KEY and SUPABASE_JWT_SECRET, or LOCAL_AUTH=true"),
		)
		identity = localauth.Disabled{}
		store = service.UnavailableStore{Key: "SUPABASE_URL"}
	}

	// --- Object storage ---
	var objects port.ObjectStore
	if cfg.MinioConfigured() {
		minioStore, err := objectstore.NewMinioStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioBucket, cfg.MinioUseSSL, logger,
		)
		if err != nil {
			logger.Fatal("failed to init object storage", zap.Error(err))
		}
		objects = minioStore
		logger.Info("object storage enabled", zap.String("bucket", cfg.MinioBucket))
	} else {
		logger.Warn("object storage not configured, document uploads will return 503")
	}

	// --- Services ---
	authSvc := service.NewAuth(identity, store, tracker, tokenCache, metrics, logger)
	portalSvc := service.NewPortal(store, objects, profileCache, cfg.DocumentURLTTL, cfg.OpsUserID, metrics, logger)

	// --- Event consumer ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		consumer, err := events.NewConsumer(cfg.AMQPURL, store, metrics, logger)
		if err != nil {
			logger.Fatal("failed to connect event broker", zap.Error(err))
		}
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("event consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("event consumer started")
	} else {
		logger.Info("AMQP_URL not set, external event ingestion disabled")
	}

	// --- Router ---
	router := handler.NewRouter(authSvc, portalSvc, content.Load(), metrics, cfg.AllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// pickStore returns the Supabase record store when configured, otherwise
// a store whose every call reports the missing setting.
func pickStore(cfg *config.Config, httpClient *http.Client, cb *gobreaker.CircuitBreaker, resilienceCfg resilience.Config, logger *zap.Logger) port.RecordStore {
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		return supabase.NewClient(
			httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey,
			cb, resilienceCfg, logger,
		)
	}
	logger.Warn("record store not configured, dashboard will serve placeholder data")
	return service.UnavailableStore{Key: "SUPABASE_SERVICE_ROLE_KEY"}
}
