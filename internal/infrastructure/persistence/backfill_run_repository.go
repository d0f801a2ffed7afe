package persistence

import (
	"context"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/persistence/models"
	"github.com/erp/cvr/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBackfillRunRepository stores reconciliation run history
type GormBackfillRunRepository struct {
	db *tenant.TenantDB
}

// NewGormBackfillRunRepository creates a new run repository
func NewGormBackfillRunRepository(db *gorm.DB) *GormBackfillRunRepository {
	return &GormBackfillRunRepository{db: tenant.NewTenantDB(db)}
}

// Create records the start of a run
func (r *GormBackfillRunRepository) Create(ctx context.Context, run *cvr.BackfillRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	model := &models.BackfillRunModel{}
	model.FromDomain(run)
	return r.db.DB().WithContext(ctx).Create(model).Error
}

// Complete writes the terminal status, report and error of a run
func (r *GormBackfillRunRepository) Complete(ctx context.Context, run *cvr.BackfillRun) error {
	model := &models.BackfillRunModel{}
	model.FromDomain(run)
	return r.db.ForTenant(ctx, run.TenantID).
		Model(model).
		Select("status", "completed_at", "report", "error").
		Updates(model).Error
}

// ListRecent returns the latest runs of a tenant, newest first
func (r *GormBackfillRunRepository) ListRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]cvr.BackfillRun, error) {
	var rows []models.BackfillRunModel
	err := r.db.ForTenant(ctx, tenantID).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]cvr.BackfillRun, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ cvr.BackfillRunRepository = (*GormBackfillRunRepository)(nil)
