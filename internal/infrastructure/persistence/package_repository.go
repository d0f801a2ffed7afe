package persistence

import (
	"context"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/persistence/models"
	"github.com/erp/cvr/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// paidActualCostExpr is the correlated sum of PAID actual facts for the package row being updated
const paidActualCostExpr = `COALESCE((SELECT SUM(af.amount) FROM actual_facts af
	WHERE af.tenant_id = packages.tenant_id AND af.package_id = packages.id AND af.status = ?), 0)`

// GormPackageRepository reads packages and maintains their actual cost rollup
type GormPackageRepository struct {
	db *tenant.TenantDB
}

// NewGormPackageRepository creates a new package repository
func NewGormPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: tenant.NewTenantDB(db)}
}

// ListByProject returns the packages of a project
func (r *GormPackageRepository) ListByProject(ctx context.Context, tenantID, projectID uuid.UUID) ([]cvr.Package, error) {
	var rows []models.PackageModel
	if err := r.db.ForTenant(ctx, tenantID).Where("project_id = ?", projectID).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]cvr.Package, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// RecomputeActualCost rewrites actual_cost from the ledger in a single statement.
// Packages without PAID facts are set to zero.
func (r *GormPackageRepository) RecomputeActualCost(ctx context.Context, tenantID uuid.UUID, projectID *uuid.UUID, packageIDs []uuid.UUID, at time.Time) (int64, error) {
	q := r.db.ForTenant(ctx, tenantID).
		Model(&models.PackageModel{}).
		Scopes(tenant.ProjectScope(projectID))
	if len(packageIDs) > 0 {
		q = q.Where("id IN ?", packageIDs)
	}

	// UpdateColumns leaves the ERP-owned updated_at untouched
	res := q.UpdateColumns(map[string]any{
		"actual_cost":               gorm.Expr(paidActualCostExpr, string(cvr.FactStatusPaid)),
		"actual_cost_recomputed_at": at,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

var _ cvr.PackageRepository = (*GormPackageRepository)(nil)
