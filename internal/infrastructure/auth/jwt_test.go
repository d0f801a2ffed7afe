package auth

import (
	"testing"
	"time"

	"github.com/erp/cvr/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "erp",
	})
}

func TestJWTService_SignAndValidate(t *testing.T) {
	svc := newTestJWTService()
	tenantID := uuid.New()

	token, err := svc.Sign(Claims{TenantID: tenantID.String(), Username: "qs", Permissions: []string{"cvr:backfill"}}, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	got, err := claims.GetTenantUUID()
	require.NoError(t, err)
	assert.Equal(t, tenantID, got)
	assert.Equal(t, "erp", claims.Issuer)
	assert.True(t, claims.HasPermission("cvr:backfill"))
	assert.False(t, claims.HasPermission("cvr:admin"))
}

func TestJWTService_ValidateAccessToken_Rejects(t *testing.T) {
	svc := newTestJWTService()
	tenant := uuid.New().String()

	expired, err := svc.Sign(Claims{TenantID: tenant}, -time.Minute)
	require.NoError(t, err)

	otherIssuer, err := NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else"}).
		Sign(Claims{TenantID: tenant}, time.Minute)
	require.NoError(t, err)

	wrongKey, err := NewJWTService(config.JWTConfig{Secret: "another-secret-key-at-least-32-chars", Issuer: "erp"}).
		Sign(Claims{TenantID: tenant}, time.Minute)
	require.NoError(t, err)

	noTenant, err := svc.Sign(Claims{Username: "qs"}, time.Minute)
	require.NoError(t, err)

	badTenant, err := svc.Sign(Claims{TenantID: "not-a-uuid"}, time.Minute)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{TenantID: tenant}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrExpiredToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"missing tenant", noTenant, ErrMissingTenantID},
		{"malformed tenant", badTenant, ErrInvalidClaims},
		{"unsigned", none, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
