// Package tenant provides multi-tenant query scoping for GORM.
//
// Every ledger table carries tenant_id. Repositories open their queries through
// TenantDB so that a missing tenant fails the query instead of reading across
// tenants.
//
// Usage:
//
//	db := tenant.NewTenantDB(gormDB)
//	db.ForTenant(ctx, tenantID).Find(&facts) // WHERE tenant_id = 'xxx'
package tenant

import (
	"context"
	"errors"

	"github.com/erp/cvr/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when tenant_id is required but not found
var ErrTenantIDRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// TenantScope applies tenant filtering to GORM queries
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// ProjectScope narrows a query to one project. A nil project leaves the query as is.
func ProjectScope(projectID *uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if projectID == nil {
			return db
		}
		return db.Where("project_id = ?", *projectID)
	}
}

// TenantDB wraps GORM DB with tenant scoping
type TenantDB struct {
	db *gorm.DB
}

// NewTenantDB creates a new TenantDB
func NewTenantDB(db *gorm.DB) *TenantDB {
	return &TenantDB{db: db}
}

// DB returns the underlying GORM DB without tenant scoping
func (t *TenantDB) DB() *gorm.DB {
	return t.db
}

// ForTenant returns a DB bound to ctx and scoped to tenantID.
// A nil tenant yields a DB that errors on execution.
func (t *TenantDB) ForTenant(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	db := t.db.WithContext(ctx)
	if tenantID == uuid.Nil {
		_ = db.AddError(ErrTenantIDRequired)
		return db
	}
	return db.Scopes(TenantScope(tenantID))
}

// WithContext returns a DB scoped to the tenant carried by ctx (set by the
// tenant middleware).
func (t *TenantDB) WithContext(ctx context.Context) *gorm.DB {
	raw := logger.GetTenantID(ctx)
	if raw == "" {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrTenantIDRequired)
		return db
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidTenantID)
		return db
	}
	return t.ForTenant(ctx, tenantID)
}
