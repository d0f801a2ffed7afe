package persistence

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantDirectory lists tenants that own source documents. The ledger has
// no tenant table of its own, so any tenant with a contract or AFP is active.
type GormTenantDirectory struct {
	db *gorm.DB
}

// NewGormTenantDirectory creates a new tenant directory
func NewGormTenantDirectory(db *gorm.DB) *GormTenantDirectory {
	return &GormTenantDirectory{db: db}
}

// GetAllActiveTenantIDs returns the distinct tenant ids of all source documents
func (d *GormTenantDirectory) GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).
		Raw("SELECT tenant_id FROM contracts UNION SELECT tenant_id FROM applications_for_payment").
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
