package cvr

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/infrastructure/persistence"
	"github.com/erp/cvr/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// ledgerEnv is a reconciler and position service over an in-memory database
type ledgerEnv struct {
	t         *testing.T
	db        *gorm.DB
	repos     Repositories
	rec       *Reconciler
	positions *FinancialPositionService
	events    *recordingPublisher
	tenantID  uuid.UUID
	projectID uuid.UUID
}

func newLedgerEnv(t *testing.T, opts ...ReconcilerOption) *ledgerEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	repos := Repositories{
		Sources:     persistence.NewGormSourceDocumentRepository(db),
		Packages:    persistence.NewGormPackageRepository(db),
		Commitments: persistence.NewGormCommitmentFactRepository(db),
		Actuals:     persistence.NewGormActualFactRepository(db),
		Runs:        persistence.NewGormBackfillRunRepository(db),
	}
	events := &recordingPublisher{}
	deriver := &cvr.Deriver{DefaultCurrency: "GBP", Now: func() time.Time { return testNow }}
	opts = append([]ReconcilerOption{
		WithEventPublisher(events),
		WithClock(func() time.Time { return testNow }),
	}, opts...)

	return &ledgerEnv{
		t:         t,
		db:        db,
		repos:     repos,
		rec:       NewReconciler(repos, cvr.NewDerivationSchema(deriver), ReconcilerConfig{BatchSize: 2}, zap.NewNop(), opts...),
		positions: NewFinancialPositionService(repos, nil, zap.NewNop()),
		events:    events,
		tenantID:  uuid.New(),
		projectID: uuid.New(),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (e *ledgerEnv) scope() cvr.BackfillScope {
	return cvr.BackfillScope{TenantID: e.tenantID}
}

func (e *ledgerEnv) backfill() *cvr.BackfillReport {
	e.t.Helper()
	report, err := e.rec.Backfill(context.Background(), e.scope())
	require.NoError(e.t, err)
	return report
}

func (e *ledgerEnv) position() *cvr.FinancialPosition {
	e.t.Helper()
	pos, err := e.positions.GetFinancialPosition(context.Background(), e.tenantID, e.projectID)
	require.NoError(e.t, err)
	return pos
}

func (e *ledgerEnv) addPackage(name string) uuid.UUID {
	e.t.Helper()
	m := &models.PackageModel{ProjectID: e.projectID, Name: name, Code: name[:2]}
	m.ID = uuid.New()
	m.TenantID = e.tenantID
	m.CreatedAt, m.UpdatedAt = testNow, testNow
	require.NoError(e.t, e.db.Create(m).Error)
	return m.ID
}

func (e *ledgerEnv) addBudgetLine(packageID *uuid.UUID, planned string) {
	e.t.Helper()
	m := &models.BudgetLineModel{ProjectID: e.projectID, PackageID: packageID, Code: "BL", PlannedAmount: decPtr(planned)}
	m.ID = uuid.New()
	m.TenantID = e.tenantID
	m.CreatedAt, m.UpdatedAt = testNow, testNow
	require.NoError(e.t, e.db.Create(m).Error)
}

func (e *ledgerEnv) addContract(packageID *uuid.UUID, status, value string) uuid.UUID {
	e.t.Helper()
	projectID := e.projectID
	c := &cvr.Contract{
		ID:        uuid.New(),
		TenantID:  e.tenantID,
		ProjectID: &projectID,
		PackageID: packageID,
		Reference: "SC-" + status,
		Value:     dec(value),
		Status:    status,
		CreatedAt: testNow.Add(-48 * time.Hour),
		UpdatedAt: testNow,
	}
	m := &models.ContractModel{}
	m.FromDomain(c)
	require.NoError(e.t, e.db.Create(m).Error)
	return c.ID
}

func (e *ledgerEnv) addAFP(contractID *uuid.UUID, status, certified string) uuid.UUID {
	e.t.Helper()
	a := &cvr.ApplicationForPayment{
		ID:                  uuid.New(),
		TenantID:            e.tenantID,
		ContractID:          contractID,
		Number:              "AFP-" + status,
		ClaimedThisPeriod:   dec(certified).Add(dec("1000")),
		CertifiedThisPeriod: dec(certified),
		Status:              status,
		CreatedAt:           testNow.Add(-24 * time.Hour),
		UpdatedAt:           testNow,
	}
	m := &models.ApplicationForPaymentModel{}
	m.FromDomain(a)
	require.NoError(e.t, e.db.Create(m).Error)
	return a.ID
}

func (e *ledgerEnv) setContractStatus(id uuid.UUID, status string) {
	e.t.Helper()
	require.NoError(e.t, e.db.Model(&models.ContractModel{}).Where("id = ?", id).Update("status", status).Error)
}

func (e *ledgerEnv) setAFP(id uuid.UUID, fields map[string]any) {
	e.t.Helper()
	require.NoError(e.t, e.db.Model(&models.ApplicationForPaymentModel{}).Where("id = ?", id).Updates(fields).Error)
}

func (e *ledgerEnv) commitment(id uuid.UUID) *cvr.CommitmentFact {
	e.t.Helper()
	f, err := e.repos.Commitments.FindByKey(context.Background(), cvr.FactKey{TenantID: e.tenantID, SourceType: cvr.SourceTypeContract, SourceID: id})
	require.NoError(e.t, err)
	return f
}

func (e *ledgerEnv) actual(id uuid.UUID) *cvr.ActualFact {
	e.t.Helper()
	f, err := e.repos.Actuals.FindByKey(context.Background(), cvr.FactKey{TenantID: e.tenantID, SourceType: cvr.SourceTypePaymentApplication, SourceID: id})
	require.NoError(e.t, err)
	return f
}

func (e *ledgerEnv) packageActualCost(id uuid.UUID) decimal.Decimal {
	e.t.Helper()
	var m models.PackageModel
	require.NoError(e.t, e.db.First(&m, "id = ?", id).Error)
	return m.ActualCost
}
