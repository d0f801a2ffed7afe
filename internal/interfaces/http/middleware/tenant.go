package middleware

import (
	"strings"

	"github.com/erp/cvr/internal/infrastructure/logger"
	"github.com/erp/cvr/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant context keys
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// SkipPathPrefixes never need a tenant
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// Tenant resolves the calling tenant. A JWT claim wins over the X-Tenant-ID
// header; a header naming a different tenant than the token is rejected.
func Tenant(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		header := c.GetHeader(TenantHeaderKey)
		tenantID := c.GetString(JWTTenantIDKey)
		method := "jwt"
		switch {
		case tenantID != "" && header != "" && !strings.EqualFold(header, tenantID):
			cfg.Logger.Warn("Tenant header does not match token",
				zap.String("token_tenant", tenantID),
				zap.String("header_tenant", header),
			)
			abortWithError(c, dto.ErrCodeForbidden, "Tenant header does not match token")
			return
		case tenantID == "":
			tenantID = header
			method = "header"
		}

		if tenantID == "" {
			abortWithError(c, dto.ErrCodeUnauthorized, "Tenant identification required")
			return
		}
		parsed, err := uuid.Parse(tenantID)
		if err != nil || parsed == uuid.Nil {
			abortWithError(c, dto.ErrCodeInvalidInput, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, parsed.String())
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), parsed.String()))
		cfg.Logger.Debug("Tenant identified",
			zap.String("tenant_id", parsed.String()),
			zap.String("method", method),
		)
		c.Next()
	}
}

// GetTenantUUID returns the tenant resolved by Tenant, or uuid.Nil
func GetTenantUUID(c *gin.Context) uuid.UUID {
	id, err := uuid.Parse(c.GetString(TenantIDKey))
	if err != nil {
		return uuid.Nil
	}
	return id
}
