package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/persistence/models"
	"github.com/erp/cvr/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var factKeyColumns = []clause.Column{{Name: "tenant_id"}, {Name: "source_type"}, {Name: "source_id"}}

func factKeyScope(key cvr.FactKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("source_type = ? AND source_id = ?", string(key.SourceType), key.SourceID)
	}
}

func statusScope(statuses []cvr.FactStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 0 {
			return db
		}
		raw := make([]string, len(statuses))
		for i, s := range statuses {
			raw[i] = string(s)
		}
		return db.Where("status IN ?", raw)
	}
}

func prepareFact(id *uuid.UUID, createdAt, updatedAt *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}

// GormCommitmentFactRepository persists commitment facts
type GormCommitmentFactRepository struct {
	db *tenant.TenantDB
}

// NewGormCommitmentFactRepository creates a new commitment fact repository
func NewGormCommitmentFactRepository(db *gorm.DB) *GormCommitmentFactRepository {
	return &GormCommitmentFactRepository{db: tenant.NewTenantDB(db)}
}

// FindByKey finds the fact for a source document
func (r *GormCommitmentFactRepository) FindByKey(ctx context.Context, key cvr.FactKey) (*cvr.CommitmentFact, error) {
	var row models.CommitmentFactModel
	if err := r.db.ForTenant(ctx, key.TenantID).Scopes(factKeyScope(key)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cvr.ErrFactNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// InsertIfAbsent inserts with ON CONFLICT DO NOTHING on the fact key
func (r *GormCommitmentFactRepository) InsertIfAbsent(ctx context.Context, fact *cvr.CommitmentFact) (bool, error) {
	prepareFact(&fact.ID, &fact.CreatedAt, &fact.UpdatedAt)
	model := &models.CommitmentFactModel{}
	model.FromDomain(fact)

	res := r.db.DB().WithContext(ctx).
		Clauses(clause.OnConflict{Columns: factKeyColumns, DoNothing: true}).
		Create(model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompareAndSetStatus moves status from -> to in one conditional update
func (r *GormCommitmentFactRepository) CompareAndSetStatus(ctx context.Context, key cvr.FactKey, from, to cvr.FactStatus, at time.Time) (bool, error) {
	res := r.db.ForTenant(ctx, key.TenantID).
		Model(&models.CommitmentFactModel{}).
		Scopes(factKeyScope(key)).
		Where("status = ?", string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResnapshotAmount overwrites the amount and schema version of an existing fact
func (r *GormCommitmentFactRepository) ResnapshotAmount(ctx context.Context, key cvr.FactKey, amount decimal.Decimal, schemaVersion int, at time.Time) error {
	res := r.db.ForTenant(ctx, key.TenantID).
		Model(&models.CommitmentFactModel{}).
		Scopes(factKeyScope(key)).
		Updates(map[string]any{"amount": amount, "schema_version": schemaVersion, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cvr.ErrFactNotFound
	}
	return nil
}

// ListByProject lists the facts of a project
func (r *GormCommitmentFactRepository) ListByProject(ctx context.Context, tenantID, projectID uuid.UUID, statuses []cvr.FactStatus) ([]cvr.CommitmentFact, error) {
	var rows []models.CommitmentFactModel
	err := r.db.ForTenant(ctx, tenantID).
		Where("project_id = ?", projectID).
		Scopes(statusScope(statuses)).
		Order("source_type").Order("source_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]cvr.CommitmentFact, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// GormActualFactRepository persists actual facts
type GormActualFactRepository struct {
	db *tenant.TenantDB
}

// NewGormActualFactRepository creates a new actual fact repository
func NewGormActualFactRepository(db *gorm.DB) *GormActualFactRepository {
	return &GormActualFactRepository{db: tenant.NewTenantDB(db)}
}

// FindByKey finds the fact for a source document
func (r *GormActualFactRepository) FindByKey(ctx context.Context, key cvr.FactKey) (*cvr.ActualFact, error) {
	var row models.ActualFactModel
	if err := r.db.ForTenant(ctx, key.TenantID).Scopes(factKeyScope(key)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cvr.ErrFactNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// InsertIfAbsent inserts with ON CONFLICT DO NOTHING on the fact key
func (r *GormActualFactRepository) InsertIfAbsent(ctx context.Context, fact *cvr.ActualFact) (bool, error) {
	prepareFact(&fact.ID, &fact.CreatedAt, &fact.UpdatedAt)
	model := &models.ActualFactModel{}
	model.FromDomain(fact)

	res := r.db.DB().WithContext(ctx).
		Clauses(clause.OnConflict{Columns: factKeyColumns, DoNothing: true}).
		Create(model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompareAndSetStatus moves status from -> to and writes paid_date in one conditional update
func (r *GormActualFactRepository) CompareAndSetStatus(ctx context.Context, key cvr.FactKey, from, to cvr.FactStatus, paidDate *time.Time, at time.Time) (bool, error) {
	res := r.db.ForTenant(ctx, key.TenantID).
		Model(&models.ActualFactModel{}).
		Scopes(factKeyScope(key)).
		Where("status = ?", string(from)).
		Updates(map[string]any{"status": string(to), "paid_date": paidDate, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResnapshotAmount overwrites the amount and schema version of an existing fact
func (r *GormActualFactRepository) ResnapshotAmount(ctx context.Context, key cvr.FactKey, amount decimal.Decimal, schemaVersion int, at time.Time) error {
	res := r.db.ForTenant(ctx, key.TenantID).
		Model(&models.ActualFactModel{}).
		Scopes(factKeyScope(key)).
		Updates(map[string]any{"amount": amount, "schema_version": schemaVersion, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return cvr.ErrFactNotFound
	}
	return nil
}

// ListByProject lists the facts of a project
func (r *GormActualFactRepository) ListByProject(ctx context.Context, tenantID, projectID uuid.UUID, statuses []cvr.FactStatus) ([]cvr.ActualFact, error) {
	var rows []models.ActualFactModel
	err := r.db.ForTenant(ctx, tenantID).
		Where("project_id = ?", projectID).
		Scopes(statusScope(statuses)).
		Order("source_type").Order("source_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]cvr.ActualFact, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var (
	_ cvr.CommitmentFactRepository = (*GormCommitmentFactRepository)(nil)
	_ cvr.ActualFactRepository     = (*GormActualFactRepository)(nil)
)
