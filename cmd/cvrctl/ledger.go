package main

import (
	"context"
	"fmt"

	cvrapp "github.com/erp/cvr/internal/application/cvr"
	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/cache"
	"github.com/erp/cvr/internal/infrastructure/config"
	"github.com/erp/cvr/internal/infrastructure/logger"
	"github.com/erp/cvr/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// ledger is the reconciler and position service over one database
type ledger struct {
	db         *persistence.Database
	stores     *cache.Stores
	reconciler *cvrapp.Reconciler
	positions  *cvrapp.FinancialPositionService
	log        *zap.Logger
}

func openLedger(configPath, logLevel string) (*ledger, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, err
	}

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel)))
	if err != nil {
		return nil, err
	}
	// sqlite files are created on demand; postgres is migrated by `migrate up`
	if db.Driver() == config.DriverSQLite {
		err = db.AutoMigrate()
	} else {
		err = db.CheckSchema(context.Background())
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// with Redis configured the tenant lock is shared with running servers
	stores, err := cache.NewFactory(cfg.Redis, cache.WithLogger(log), cache.WithInMemoryFallback(true)).Create()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return newLedger(db, stores, cfg.CVR, log), nil
}

func newLedger(db *persistence.Database, stores *cache.Stores, cfg config.CVRConfig, log *zap.Logger) *ledger {
	repos := cvrapp.Repositories{
		Sources:     persistence.NewGormSourceDocumentRepository(db.DB),
		Packages:    persistence.NewGormPackageRepository(db.DB),
		Commitments: persistence.NewGormCommitmentFactRepository(db.DB),
		Actuals:     persistence.NewGormActualFactRepository(db.DB),
		Runs:        persistence.NewGormBackfillRunRepository(db.DB),
	}
	reconciler := cvrapp.NewReconciler(repos,
		cvr.NewDerivationSchema(cvr.NewDeriver(cfg.DefaultCurrency)),
		cvrapp.ReconcilerConfig{
			BatchSize:        cfg.BatchSize,
			BatchesPerSecond: cfg.BatchesPerSecond,
			LockTTL:          cfg.LockTTL,
			MaxStatusRetries: cfg.MaxStatusRetries,
		},
		log,
		cvrapp.WithLocker(stores.Locker),
	)
	return &ledger{
		db:         db,
		stores:     stores,
		reconciler: reconciler,
		positions:  cvrapp.NewFinancialPositionService(repos, nil, log),
		log:        log,
	}
}

func (l *ledger) Close() error {
	_ = l.log.Sync()
	_ = l.stores.Close()
	return l.db.Close()
}
