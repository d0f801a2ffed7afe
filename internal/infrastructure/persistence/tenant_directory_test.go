package persistence

import (
	"context"
	"testing"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTenantDirectory_GetAllActiveTenantIDs(t *testing.T) {
	db := setupTestDB(t)
	dir := NewGormTenantDirectory(db)

	ids, err := dir.GetAllActiveTenantIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	a, b := uuid.New(), uuid.New()
	seedContract(t, db, &cvr.Contract{TenantID: a, Status: "signed", Value: dec("1")})
	seedContract(t, db, &cvr.Contract{TenantID: a, Status: "draft", Value: dec("2")})
	seedAFP(t, db, &cvr.ApplicationForPayment{TenantID: b, Status: "SUBMITTED"})

	ids, err = dir.GetAllActiveTenantIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, ids)
}
