package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	l, err := New(&Config{Level: "error", Format: "json", Output: "stderr"}, core)
	require.NoError(t, err)

	l.Info("to the observer only")
	assert.Equal(t, 1, recorded.Len())
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cvr.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("written")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written"`)

	_, err = New(&Config{Output: filepath.Join(t.TempDir(), "missing", "cvr.log")})
	assert.ErrorContains(t, err, "open log file")
}

func TestContextLogger_EnrichesWithContextFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenantID(ctx, "tenant-1")
	ctx = WithRunID(ctx, "run-1")

	L(ctx).With(zap.String("component", "test")).Info("hello")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "test", fields["component"])
}

func TestContextLogger_NoLoggerIsNop(t *testing.T) {
	assert.NotPanics(t, func() {
		L(context.Background()).Error("dropped")
		WithLogger(context.Background(), nil).With(zap.Int("n", 1)).Warn("dropped")
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.DebugLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(GinRequestIDKey, "test-req-123")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core), WithQuietRoutes("/health")))

	var seenRequestID string
	router.GET("/facts/:id", func(c *gin.Context) {
		seenRequestID = GetRequestID(c.Request.Context())
		L(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusOK)
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve := func(path string) {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	t.Run("request scoped logger and route template", func(t *testing.T) {
		serve("/facts/42")
		assert.Equal(t, "test-req-123", seenRequestID)
		assert.Equal(t, 1, recorded.FilterMessage("inside handler").Len())

		lines := recorded.FilterMessage("HTTP request").FilterField(zap.String("route", "/facts/:id")).All()
		require.Len(t, lines, 1)
		assert.Equal(t, zapcore.InfoLevel, lines[0].Level)
		assert.Equal(t, "/facts/42", lines[0].ContextMap()["path"])
		assert.Equal(t, "test-req-123", lines[0].ContextMap()["request_id"])
	})

	t.Run("server errors log at error", func(t *testing.T) {
		serve("/boom")
		lines := recorded.FilterMessage("HTTP request").FilterField(zap.Int("status", 500)).All()
		require.Len(t, lines, 1)
		assert.Equal(t, zapcore.ErrorLevel, lines[0].Level)
	})

	t.Run("quiet routes log at debug", func(t *testing.T) {
		serve("/health")
		lines := recorded.FilterMessage("HTTP request").FilterField(zap.String("route", "/health")).All()
		require.Len(t, lines, 1)
		assert.Equal(t, zapcore.DebugLevel, lines[0].Level)
	})

	t.Run("unmatched paths", func(t *testing.T) {
		serve("/nope")
		lines := recorded.FilterMessage("HTTP request").FilterField(zap.String("route", "unmatched")).All()
		require.Len(t, lines, 1)
		assert.Equal(t, zapcore.WarnLevel, lines[0].Level)
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		respond  func(c *gin.Context)
		wantBody string
	}{
		{"bare status", nil, ""},
		{"custom body", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		}, `{"success":false}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.ErrorLevel)
			router := gin.New()
			router.Use(Recovery(zap.New(core), tt.respond))
			router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
		})
	}
}

func TestGormLogger_Trace(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(10*time.Millisecond), WithMaxSQLLength(16))
	ctx := WithRunID(WithTenantID(context.Background(), "tenant-1"), "run-7")
	sql := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("record not found is ignored", func(t *testing.T) {
		gl.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("errors carry the tenant and run", func(t *testing.T) {
		gl.Trace(ctx, time.Now(), sql, errors.New("syntax"))
		entries := recorded.FilterMessage("sql failed").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "tenant-1", fields["tenant_id"])
		assert.Equal(t, "run-7", fields["run_id"])
	})

	t.Run("slow queries warn with truncated sql", func(t *testing.T) {
		long := func() (string, int64) { return "INSERT INTO commitment_facts VALUES (1),(2),(3)", 3 }
		gl.Trace(ctx, time.Now().Add(-time.Second), long, nil)
		entries := recorded.FilterMessage("slow sql").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "INSERT INTO comm...", entries[0].ContextMap()["sql"])
	})

	t.Run("silent mode logs nothing", func(t *testing.T) {
		before := recorded.Len()
		gl.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("x"))
		assert.Equal(t, before, recorded.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
