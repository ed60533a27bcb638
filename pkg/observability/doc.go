// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Logging
//
//	logger, err := observability.NewLogger("info", "json", os.Stderr)
//	observability.FromContext(ctx).WithField("message", name).Info("Validated")
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	http.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Instrumented validation
//
// Instrumented wraps a validate.Engine so each call is timed, counted by
// outcome and traced. The engine itself never logs or records metrics.
//
//	inst, err := observability.NewInstrumented(engine, metrics)
//	violations, err := inst.Validate(ctx, msg, validate.AccumulateAll)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "protoguard",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
