package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/platinummonkey/protoguard/pkg/api"
	"github.com/platinummonkey/protoguard/pkg/audit"
	"github.com/platinummonkey/protoguard/pkg/config"
	"github.com/platinummonkey/protoguard/pkg/interceptor"
	"github.com/platinummonkey/protoguard/pkg/middleware"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/reload"
	"github.com/platinummonkey/protoguard/pkg/schema"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rulesFile := flag.String("rules", "", "Rules manifest (overrides PROTOGUARD_RULES_FILE)")
	flag.Parse()
	if *rulesFile != "" {
		os.Setenv("PROTOGUARD_RULES_FILE", *rulesFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	opts := reload.Options{
		Mode:     cfg.ModeOverride(),
		MaxDepth: cfg.Rules.MaxDepth,
		Metrics:  metrics,
		Logger:   logger,
	}
	snap, err := reload.Build(ctx, cfg.Rules.File, opts)
	if err != nil {
		logger.WithError(err).WithField("rules", cfg.Rules.File).Fatal("Failed to load validation rules")
	}
	holder := reload.NewHolder(snap)

	if cfg.Rules.Watch || cfg.Rules.ReloadSchedule != "" {
		wopts := []reload.WatcherOption{reload.WithDebounce(cfg.Rules.WatchDebounce)}
		if cfg.Rules.ReloadSchedule != "" {
			wopts = append(wopts, reload.WithSchedule(cfg.Rules.ReloadSchedule))
		}
		watcher := reload.NewWatcher(holder, opts, wopts...)
		go func() {
			defer observability.RecoverPanic(logger, "rules watcher")
			if err := watcher.Run(ctx); err != nil {
				logger.WithError(err).Error("Rules watcher stopped")
			}
		}()
	}

	recorder, auditStore, err := openAudit(cfg.Audit, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open audit sink")
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return recorder.Close()
	})

	if cfg.Server.HTTPAddr != "" {
		apiCfg := api.Config{
			Backend:         holder,
			Metrics:         metrics,
			MetricsRegistry: registry,
			Recorder:        recorder,
			AuditStore:      auditStore,
			Logger:          logger,
			Version:         version,
		}
		if cfg.Check.Enabled {
			apiCfg.Cache = schema.NewCache(cfg.Check.CacheSize, cfg.Check.CacheTTL)
			apiCfg.TrustProxyHeaders = cfg.Check.TrustProxyHeaders
			apiCfg.CheckLimiter, err = newCheckLimiter(ctx, cfg.Check)
			if err != nil {
				logger.WithError(err).Fatal("Failed to create rate limiter")
			}
		}

		httpServer := &http.Server{
			Addr:         cfg.Server.HTTPAddr,
			Handler:      api.NewServer(apiCfg),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
		go func() {
			logger.WithField("addr", cfg.Server.HTTPAddr).Info("Starting HTTP server")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Fatal("HTTP server failed")
			}
		}()
		shutdown.RegisterShutdownFunc(httpServer.Shutdown)
	}

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.WithError(err).Fatal("Failed to listen for gRPC")
		}

		iopts := []interceptor.Option{
			interceptor.WithStrict(cfg.Rules.Strict),
			interceptor.WithLogger(logger),
			interceptor.WithRecorder(recorder),
			interceptor.WithSkipMethods(interceptor.InfrastructureMethods...),
		}
		grpcServer := grpc.NewServer(
			grpc.ChainUnaryInterceptor(interceptor.UnaryServerInterceptor(holder, iopts...)),
			grpc.ChainStreamInterceptor(interceptor.StreamServerInterceptor(holder, iopts...)),
		)
		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		reflection.Register(grpcServer)

		go func() {
			logger.WithField("addr", cfg.Server.GRPCAddr).Info("Starting gRPC server")
			if err := grpcServer.Serve(lis); err != nil {
				logger.WithError(err).Fatal("gRPC server failed")
			}
		}()
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			healthServer.Shutdown()
			grpcServer.GracefulStop()
			return nil
		})
	}

	if err := shutdown.WaitForShutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}
	logger.Info("protoguard stopped")
}

// openAudit returns the recorder for cfg and, for database drivers, the
// store that backs GET /v1/audit.
func openAudit(cfg config.AuditConfig, logger logrus.FieldLogger) (*audit.Recorder, audit.Store, error) {
	fileConfig := audit.FileLoggerConfig{
		BasePath: cfg.Dir,
		MaxSize:  cfg.MaxSize,
		MaxFiles: cfg.MaxFiles,
	}

	var (
		sink  audit.Logger
		store audit.Store
	)
	switch cfg.Driver {
	case config.AuditNone:
		sink = audit.NoOp()
	case config.AuditFile:
		file, err := audit.NewFileLogger(fileConfig)
		if err != nil {
			return nil, nil, err
		}
		sink = file
	default:
		db, err := audit.Open(audit.Dialect(cfg.Driver), cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		sink, store = db, db
		// A directory alongside a database keeps a local copy of every event.
		if cfg.Dir != "" {
			file, err := audit.NewFileLogger(fileConfig)
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			sink = audit.NewMultiLogger(db, file)
		}
	}

	logger.WithField("driver", cfg.Driver).Info("Audit sink ready")
	return audit.NewRecorder(sink, logger, cfg.RecordPass), store, nil
}

func newCheckLimiter(ctx context.Context, cfg config.CheckConfig) (middleware.Limiter, error) {
	if cfg.RateLimit <= 0 {
		return nil, nil
	}

	limits := middleware.DefaultRateLimitConfig()
	limits.RequestsPerWindow = cfg.RateLimit
	limits.BurstSize = cfg.RateBurst

	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return middleware.NewDistributedRateLimiter(client, limits, ""), nil
	}

	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter, nil
}
