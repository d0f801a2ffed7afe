package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cvrapp "github.com/erp/cvr/internal/application/cvr"
	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/infrastructure/auth"
	"github.com/erp/cvr/internal/infrastructure/cache"
	"github.com/erp/cvr/internal/infrastructure/config"
	"github.com/erp/cvr/internal/infrastructure/event"
	"github.com/erp/cvr/internal/infrastructure/logger"
	"github.com/erp/cvr/internal/infrastructure/matching"
	"github.com/erp/cvr/internal/infrastructure/migration"
	"github.com/erp/cvr/internal/infrastructure/persistence"
	"github.com/erp/cvr/internal/infrastructure/scheduler"
	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"github.com/erp/cvr/internal/interfaces/http/handler"
	"github.com/erp/cvr/internal/interfaces/http/middleware"
	"github.com/erp/cvr/internal/interfaces/http/router"
	"github.com/erp/cvr/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/erp/cvr/docs"
)

//	@title			CVR Ledger API
//	@version		1.0
//	@description	Cost-value reconciliation ledger: commitment and actual cost facts derived from contracts and payment applications

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry: traces, metrics, logs and profiles. Every signal is off by default.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log := telemetry.BridgeLogger(baseLog, loggerProvider, logger.ParseLevel(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", zap.Error(err))
	} else if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting CVR ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := migrateSchema(db, log); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        db.Driver(),
	}, log); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}

	meter := meterProvider.Meter("cvr-ledger")
	if sqlDB, err := db.SQLDB(); err == nil {
		poolMetrics, err := telemetry.NewDBPoolMetrics(meter, sqlDB, cfg.Telemetry.MetricsInterval, log)
		if err != nil {
			log.Warn("Database pool metrics disabled", zap.Error(err))
		} else {
			poolMetrics.Start(ctx)
			defer poolMetrics.Stop()
		}
	}
	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter)
	if err != nil {
		log.Warn("Ledger metrics disabled", zap.Error(err))
		ledgerMetrics = nil
	}

	// Coordination stores: Redis when configured, in-process otherwise
	stores, err := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Redis.Host == "" || cfg.App.Env != "production"),
	).Create()
	if err != nil {
		log.Fatal("Failed to initialize coordination stores", zap.Error(err))
	}
	defer func() { _ = stores.Close() }()

	// Ledger
	repos := cvrapp.Repositories{
		Sources:     persistence.NewGormSourceDocumentRepository(db.DB),
		Packages:    persistence.NewGormPackageRepository(db.DB),
		Commitments: persistence.NewGormCommitmentFactRepository(db.DB),
		Actuals:     persistence.NewGormActualFactRepository(db.DB),
		Runs:        persistence.NewGormBackfillRunRepository(db.DB),
	}
	eventBus := event.NewInMemoryEventBus(log)
	reconciler := cvrapp.NewReconciler(repos,
		cvr.NewDerivationSchema(cvr.NewDeriver(cfg.CVR.DefaultCurrency)),
		cvrapp.ReconcilerConfig{
			BatchSize:        cfg.CVR.BatchSize,
			BatchesPerSecond: cfg.CVR.BatchesPerSecond,
			LockTTL:          cfg.CVR.LockTTL,
			MaxStatusRetries: cfg.CVR.MaxStatusRetries,
		},
		log,
		cvrapp.WithLocker(stores.Locker),
		cvrapp.WithEventPublisher(eventBus),
		cvrapp.WithLedgerMetrics(ledgerMetrics),
	)
	positions := cvrapp.NewFinancialPositionService(repos, ledgerMetrics, log)

	// Source document changes reconcile one document; redeliveries are dropped
	sourceHandler := event.NewIdempotentHandler(
		cvrapp.NewSourceDocumentChangedHandler(reconciler, ledgerMetrics, log),
		stores.Idempotency,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: cfg.CVR.EventDedupeTTL}),
		event.WithDeliveryMeter(meter),
	)
	eventBus.Subscribe(sourceHandler)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	log.Info("Event handlers registered", zap.Strings("source_document_events", sourceHandler.EventTypes()))

	// Scheduled backfill per active tenant
	var (
		backfillScheduler *scheduler.Scheduler
		backfillTrigger   *scheduler.IntervalTrigger
	)
	if cfg.Scheduler.Enabled {
		backfillScheduler = scheduler.NewScheduler(scheduler.SchedulerConfig{
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			QueueSize:         cfg.Scheduler.QueueSize,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, scheduler.NewBackfillExecutor(reconciler, log), log)
		if err := backfillScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start backfill scheduler", zap.Error(err))
		}
		backfillTrigger = scheduler.NewIntervalTrigger(scheduler.IntervalTriggerConfig{
			Interval: cfg.Scheduler.BackfillInterval,
		}, backfillScheduler, persistence.NewGormTenantDirectory(db.DB), log)
		if err := backfillTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start backfill trigger", zap.Error(err))
		}
	}

	// Invoice matching is optional
	var matcher cvr.InvoiceMatcher
	if cfg.Matching.BaseURL != "" {
		client, err := matching.NewClient(matching.Config{BaseURL: cfg.Matching.BaseURL, Timeout: cfg.Matching.Timeout})
		if err != nil {
			log.Fatal("Invalid matching service configuration", zap.Error(err))
		}
		matcher = client
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if stores.Distributed {
		checks["redis"] = stores.Ping
	}
	engine := router.NewEngine(router.EngineDeps{
		Config: cfg,
		Logger: log,
		Meter:  meter,
		JWT:    auth.NewJWTService(cfg.JWT),
		CVR: handler.NewCVRHandler(reconciler, positions, cvrapp.NewMatchingService(matcher, log),
			eventBus, cfg.CVR.RunHistoryLimit),
		Health: handler.NewHealthHandler(checks),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop accepting requests, then stop scheduling, then
	// let running backfills record themselves as interrupted.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if backfillTrigger != nil {
		if err := backfillTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping backfill trigger", zap.Error(err))
		}
	}
	if backfillScheduler != nil {
		if err := backfillScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping backfill scheduler", zap.Error(err))
		}
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the embedded migrations on PostgreSQL. SQLite is a
// development driver and is migrated from the GORM models.
func migrateSchema(db *persistence.Database, log *zap.Logger) error {
	if db.Driver() == config.DriverSQLite {
		return db.AutoMigrate()
	}
	sqlDB, err := db.SQLDB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	// closing the migrator would close the shared connection pool
	return m.Up()
}
