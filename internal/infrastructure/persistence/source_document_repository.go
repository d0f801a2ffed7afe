package persistence

import (
	"context"
	"errors"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/infrastructure/persistence/models"
	"github.com/erp/cvr/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSourceDocumentRepository reads contracts, AFPs and budget lines.
// It never writes to the source tables.
type GormSourceDocumentRepository struct {
	db *tenant.TenantDB
}

// NewGormSourceDocumentRepository creates a new source document repository
func NewGormSourceDocumentRepository(db *gorm.DB) *GormSourceDocumentRepository {
	return &GormSourceDocumentRepository{db: tenant.NewTenantDB(db)}
}

func updatedWindow(f cvr.SourceFilter, column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.UpdatedFrom != nil {
			db = db.Where(column+" >= ?", *f.UpdatedFrom)
		}
		if f.UpdatedTo != nil {
			db = db.Where(column+" <= ?", *f.UpdatedTo)
		}
		return db
	}
}

// ListContracts returns one keyset page of contracts ordered by id
func (r *GormSourceDocumentRepository) ListContracts(ctx context.Context, filter cvr.SourceFilter, afterID uuid.UUID, limit int) ([]cvr.Contract, error) {
	var rows []models.ContractModel
	err := r.db.ForTenant(ctx, filter.TenantID).
		Scopes(tenant.ProjectScope(filter.ProjectID), updatedWindow(filter, "updated_at")).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]cvr.Contract, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// ListPaymentApplications returns one keyset page of AFPs ordered by id, each
// paired with its contract. A project filter also matches AFPs without their
// own project whose contract belongs to the project.
func (r *GormSourceDocumentRepository) ListPaymentApplications(ctx context.Context, filter cvr.SourceFilter, afterID uuid.UUID, limit int) ([]cvr.PaymentApplication, error) {
	q := r.db.ForTenant(ctx, filter.TenantID).
		Scopes(updatedWindow(filter, "updated_at"))
	if filter.ProjectID != nil {
		contractIDs := r.db.DB().Model(&models.ContractModel{}).
			Select("id").
			Where("tenant_id = ? AND project_id = ?", filter.TenantID, *filter.ProjectID)
		q = q.Where("(project_id = ? OR (project_id IS NULL AND contract_id IN (?)))", *filter.ProjectID, contractIDs)
	}

	var rows []models.ApplicationForPaymentModel
	if err := q.Where("id > ?", afterID).Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.attachContracts(ctx, filter.TenantID, rows)
}

func (r *GormSourceDocumentRepository) attachContracts(ctx context.Context, tenantID uuid.UUID, rows []models.ApplicationForPaymentModel) ([]cvr.PaymentApplication, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if row.ContractID == nil {
			continue
		}
		if _, ok := seen[*row.ContractID]; ok {
			continue
		}
		seen[*row.ContractID] = struct{}{}
		ids = append(ids, *row.ContractID)
	}

	contracts := make(map[uuid.UUID]*cvr.Contract, len(ids))
	if len(ids) > 0 {
		var cms []models.ContractModel
		if err := r.db.ForTenant(ctx, tenantID).Where("id IN ?", ids).Find(&cms).Error; err != nil {
			return nil, err
		}
		for i := range cms {
			contracts[cms[i].ID] = cms[i].ToDomain()
		}
	}

	out := make([]cvr.PaymentApplication, len(rows))
	for i := range rows {
		out[i] = cvr.PaymentApplication{ApplicationForPayment: rows[i].ToDomain()}
		if rows[i].ContractID != nil {
			out[i].Contract = contracts[*rows[i].ContractID]
		}
	}
	return out, nil
}

// FindContract finds a contract by id
func (r *GormSourceDocumentRepository) FindContract(ctx context.Context, tenantID, id uuid.UUID) (*cvr.Contract, error) {
	var row models.ContractModel
	if err := r.db.ForTenant(ctx, tenantID).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cvr.ErrSourceNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// FindPaymentApplication finds an AFP by id together with its contract
func (r *GormSourceDocumentRepository) FindPaymentApplication(ctx context.Context, tenantID, id uuid.UUID) (*cvr.PaymentApplication, error) {
	var row models.ApplicationForPaymentModel
	if err := r.db.ForTenant(ctx, tenantID).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cvr.ErrSourceNotFound
		}
		return nil, err
	}
	out, err := r.attachContracts(ctx, tenantID, []models.ApplicationForPaymentModel{row})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ListBudgetLines returns the budget lines of a project ordered by code
func (r *GormSourceDocumentRepository) ListBudgetLines(ctx context.Context, tenantID, projectID uuid.UUID) ([]cvr.BudgetLine, error) {
	var rows []models.BudgetLineModel
	err := r.db.ForTenant(ctx, tenantID).
		Where("project_id = ?", projectID).
		Order("code").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]cvr.BudgetLine, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ cvr.SourceDocumentRepository = (*GormSourceDocumentRepository)(nil)
