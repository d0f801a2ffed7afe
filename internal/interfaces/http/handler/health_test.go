package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_Check(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{"no checks", nil, http.StatusOK, "healthy", map[string]string{}},
		{"all up", map[string]HealthCheck{"database": ok, "redis": ok}, http.StatusOK, "healthy", map[string]string{"database": "ok", "redis": "ok"}},
		{"one down", map[string]HealthCheck{"database": ok, "redis": down}, http.StatusServiceUnavailable, "unhealthy", map[string]string{"database": "ok", "redis": "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/health", NewHealthHandler(tt.checks).Check)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
			assert.NotEmpty(t, resp.Time)
		})
	}
}
