// Package observability provides structured logging, Prometheus metrics, health
// checks and OpenTelemetry tracing for the festival service.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.ParseLogLevel("info"), os.Stdout)
//	logger.WithField("port", 8080).Info("Server started")
//
// Request-scoped logging picks up the request id and user set by middleware:
//
//	observability.FromContext(r.Context()).WithError(err).Error("Failed to create festival")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordAuth("login", observability.OutcomeSuccess)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "festival",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
