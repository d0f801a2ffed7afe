// Package integration runs the ledger against a real PostgreSQL started with
// testcontainers. The schema comes from the embedded SQL migrations, the same
// set the server applies on start.
package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/config"
	"github.com/erp/cvr/internal/infrastructure/migration"
	"github.com/erp/cvr/internal/infrastructure/persistence"
	"github.com/erp/cvr/internal/infrastructure/persistence/models"
	"github.com/erp/cvr/migrations"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testDBName     = "cvr_test"
	testDBUser     = "postgres"
	testDBPassword = "admin123"
)

var (
	sharedContainer   *tcpostgres.PostgresContainer
	sharedContainerMu sync.Mutex
	sharedConfig      config.DatabaseConfig
)

// TestDB is a migrated connection to the shared container
type TestDB struct {
	*persistence.Database
	Config config.DatabaseConfig
	t      *testing.T
}

// NewTestDB connects to the shared PostgreSQL container, starting and
// migrating it on first use, and truncates every table on cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	cfg := startSharedContainer(t)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg, gormLogger())
	require.NoError(t, err, "Failed to connect to database")

	tdb := &TestDB{Database: db, Config: cfg, t: t}
	t.Cleanup(func() {
		tdb.CleanTables()
		_ = db.Close()
	})
	return tdb
}

func startSharedContainer(t *testing.T) config.DatabaseConfig {
	t.Helper()
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()
	if sharedContainer != nil {
		return sharedConfig
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         host,
		Port:         port.Int(),
		User:         testDBUser,
		Password:     testDBPassword,
		DBName:       testDBName,
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
	db, err := persistence.NewDatabase(&cfg)
	require.NoError(t, err, "Failed to connect to database")
	defer func() { _ = db.Close() }()

	sqlDB, err := db.SQLDB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")

	sharedContainer = container
	sharedConfig = cfg
	return cfg
}

func gormLogger() logger.Interface {
	if os.Getenv("TEST_DB_DEBUG") != "" {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}

// CleanupSharedContainer terminates the shared container. Called from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()
	if sharedContainer != nil {
		_ = sharedContainer.Terminate(context.Background())
		sharedContainer = nil
	}
}

// CleanTables truncates every table except the migration bookkeeping
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			tdb.t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}
}

// Project is one seeded project of one tenant
type Project struct {
	TenantID  uuid.UUID
	ProjectID uuid.UUID
	db        *gorm.DB
	t         *testing.T
}

// NewProject returns a seeding helper for a fresh tenant and project
func (tdb *TestDB) NewProject() *Project {
	return &Project{TenantID: uuid.New(), ProjectID: uuid.New(), db: tdb.DB, t: tdb.t}
}

func (p *Project) create(m any) {
	p.t.Helper()
	require.NoError(p.t, p.db.Create(m).Error)
}

// Package seeds a package with one budget line of the given planned amount
func (p *Project) Package(name string, budget int64) uuid.UUID {
	p.t.Helper()
	pkg := &models.PackageModel{ProjectID: p.ProjectID, Name: name, Code: name[:2]}
	pkg.ID, pkg.TenantID = uuid.New(), p.TenantID
	p.create(pkg)

	planned := decimal.NewFromInt(budget)
	line := &models.BudgetLineModel{ProjectID: p.ProjectID, PackageID: &pkg.ID, Code: "BL-" + name[:2], Description: name, PlannedAmount: &planned}
	line.ID, line.TenantID = uuid.New(), p.TenantID
	p.create(line)
	return pkg.ID
}

// Contract seeds a contract; a nil packageID leaves it unallocated
func (p *Project) Contract(packageID *uuid.UUID, status string, value int64) uuid.UUID {
	p.t.Helper()
	now := time.Now().UTC()
	m := &models.ContractModel{}
	m.FromDomain(&cvr.Contract{
		ID: uuid.New(), TenantID: p.TenantID, ProjectID: &p.ProjectID, PackageID: packageID,
		Reference: "SC-" + uuid.NewString()[:6], Value: decimal.NewFromInt(value), Currency: "GBP",
		Status: status, CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
	})
	p.create(m)
	return m.ID
}

// PaymentApplication seeds an AFP against a contract
func (p *Project) PaymentApplication(contractID uuid.UUID, status string, certified int64, paid *int64) uuid.UUID {
	p.t.Helper()
	now := time.Now().UTC()
	afp := &cvr.ApplicationForPayment{
		ID: uuid.New(), TenantID: p.TenantID, ContractID: &contractID, Number: "AFP-" + uuid.NewString()[:6],
		ClaimedThisPeriod: decimal.NewFromInt(certified), CertifiedThisPeriod: decimal.NewFromInt(certified),
		Status: status, CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
	}
	if paid != nil {
		amount := decimal.NewFromInt(*paid)
		afp.AmountPaid = &amount
		afp.PaidDate = &now
	}
	m := &models.ApplicationForPaymentModel{}
	m.FromDomain(afp)
	p.create(m)
	return m.ID
}

// SetStatus rewrites a source document's status and bumps updated_at
func (p *Project) SetStatus(table string, id uuid.UUID, status string) {
	p.t.Helper()
	require.NoError(p.t, p.db.Table(table).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error)
}
