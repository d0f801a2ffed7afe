package persistence

import (
	"testing"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func seedPackage(t *testing.T, db *gorm.DB, tenantID, projectID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	m := &models.PackageModel{ProjectID: projectID, Name: name, Code: name[:1]}
	m.ID = uuid.New()
	m.TenantID = tenantID
	m.CreatedAt, m.UpdatedAt = testNow, testNow
	require.NoError(t, db.Create(m).Error)
	return m.ID
}

func seedContract(t *testing.T, db *gorm.DB, c *cvr.Contract) {
	t.Helper()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = testNow
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = testNow
	}
	m := &models.ContractModel{}
	m.FromDomain(c)
	require.NoError(t, db.Create(m).Error)
}

func seedAFP(t *testing.T, db *gorm.DB, a *cvr.ApplicationForPayment) {
	t.Helper()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = testNow
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = testNow
	}
	m := &models.ApplicationForPaymentModel{}
	m.FromDomain(a)
	require.NoError(t, db.Create(m).Error)
}

func newActual(tenantID, projectID uuid.UUID, packageID *uuid.UUID, amount string, status cvr.FactStatus) *cvr.ActualFact {
	return &cvr.ActualFact{
		TenantID:      tenantID,
		ProjectID:     projectID,
		PackageID:     packageID,
		SourceType:    cvr.SourceTypePaymentApplication,
		SourceID:      uuid.New(),
		Amount:        dec(amount),
		Currency:      "GBP",
		Status:        status,
		IncurredDate:  testNow,
		SchemaVersion: cvr.CurrentSchemaVersion,
	}
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func budgetLineRow(tenantID, projectID uuid.UUID, code string) *models.BudgetLineModel {
	m := &models.BudgetLineModel{ProjectID: projectID, Code: code, PlannedAmount: decPtr("500")}
	m.ID = uuid.New()
	m.TenantID = tenantID
	m.CreatedAt, m.UpdatedAt = testNow, testNow
	return m
}
