package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/festival/pkg/api"
	"github.com/platinummonkey/festival/pkg/auth"
	"github.com/platinummonkey/festival/pkg/config"
	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/middleware"
	"github.com/platinummonkey/festival/pkg/observability"
	"github.com/platinummonkey/festival/pkg/storage/cache"
	"github.com/platinummonkey/festival/pkg/storage/sqlstore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Festival server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	db, err := sqlstore.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })
	logger.WithField("driver", cfg.Storage.Driver).Info("Database ready")

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
		logger.Info("Redis connected")
	}

	tokens, err := auth.NewTokenService(cfg.Auth.TokenConfig())
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	users := sqlstore.NewUserStore(db, metrics)
	var festivals api.FestivalStore = sqlstore.NewFestivalStore(db, metrics)
	if cfg.Storage.CacheEnabled {
		festivals = cache.NewFestivalCache(festivals, redisClient, cfg.Storage, metrics, logger)
	}
	audit := auth.NewAuditLogger(logger)

	server := api.NewServer(api.Dependencies{
		Users:        users,
		Festivals:    festivals,
		Performances: sqlstore.NewPerformanceStore(db, metrics),
		Tokens:       tokens,
		Hasher:       auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Logger:       logger,
		Metrics:      metrics,
		Audit:        audit,
		StaticDir:    cfg.Server.StaticDir,
	})
	if cfg.Observability.MetricsEnabled {
		server.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	policy := middleware.NewPolicy(middleware.DefaultRules(), cfg.Auth.DenyUnlistedMutations)
	for _, route := range policy.UnprotectedMutations(server.Routes()) {
		logger.WithFields(map[string]interface{}{
			"method": route.Method,
			"path":   route.Path,
		}).Warn("Mutating route is reachable without authentication; set FESTIVAL_AUTH_DENY_UNLISTED_MUTATIONS=true to require it")
	}

	proxies, err := httputil.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.ClientIPMiddleware(proxies),
		httputil.LoggingMiddleware(logger),
		httputil.CORSMiddleware(cfg.Server.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	}
	if cfg.RateLimit.Enabled {
		chain = append(chain, rateLimiter(ctx, cfg, redisClient, logger).Handler)
	}
	chain = append(chain,
		middleware.NewAuthFilter(tokens, users, logger, metrics).Handler,
		middleware.NewPolicyGate(policy, audit, metrics).Handler,
	)
	handler := observability.TraceHandler(httputil.Chain(chain...)(server), "festival-api")

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.RegisterServer(apiServer)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, version))
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdown.RegisterServer(healthServer)

	servers := []*http.Server{apiServer, healthServer}
	if cfg.Observability.MetricsEnabled {
		metricsMux := http.NewServeMux()
		observability.RegisterMetricsEndpoint(metricsMux, registry)
		metricsServer := &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		shutdown.RegisterServer(metricsServer)
		servers = append(servers, metricsServer)

		jobs, err := scheduleDBStats(db, metrics, logger)
		if err != nil {
			return err
		}
		jobs.Start()
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			select {
			case <-jobs.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		// returns on a signal, or when a listener above fails
		err := shutdown.WaitForShutdown(gctx)
		cancel()
		return err
	})

	logger.WithField("version", version).Info("Festival server started")
	return g.Wait()
}

// rateLimiter throttles the credential endpoints, sharing counters through
// Redis when it is configured.
func rateLimiter(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *observability.Logger) *middleware.RateLimitMiddleware {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		WindowDuration:    cfg.RateLimit.Window,
	}

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewDistributedRateLimiter(redisClient, limits, "")
	} else {
		local := middleware.NewRateLimiter(limits)
		local.StartCleanup(ctx)
		limiter = local
	}
	return middleware.NewRateLimitMiddleware(limiter, middleware.CredentialEndpoints(), logger)
}

// dbStatsSchedule is how often connection pool gauges are refreshed
const dbStatsSchedule = "@every 15s"

func scheduleDBStats(db *sql.DB, metrics *observability.Metrics, logger *observability.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(dbStatsSchedule, func() {
		defer observability.RecoverPanic(logger, "db stats collector")
		metrics.RecordDBStats(db.Stats())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule db stats collection: %w", err)
	}
	return c, nil
}
