package router

import (
	"github.com/erp/cvr/internal/infrastructure/auth"
	"github.com/erp/cvr/internal/infrastructure/config"
	"github.com/erp/cvr/internal/infrastructure/logger"
	"github.com/erp/cvr/internal/interfaces/http/handler"
	"github.com/erp/cvr/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BackfillPermission guards manual backfills for token-authenticated callers
const BackfillPermission = "cvr:backfill"

// EngineDeps holds everything the HTTP engine serves
type EngineDeps struct {
	Config *config.Config
	Logger *zap.Logger
	Meter  metric.Meter // nil disables HTTP metrics
	JWT    *auth.JWTService
	CVR    *handler.CVRHandler
	Health *handler.HealthHandler
}

// NewEngine builds the gin engine with the global middleware stack, the
// health and docs endpoints, and the versioned CVR API.
func NewEngine(deps EngineDeps) *gin.Engine {
	cfg, log := deps.Config, deps.Logger

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log, middleware.InternalError),
		logger.GinMiddleware(log, logger.WithQuietRoutes("/health")),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.Secure(),
		middleware.CORS(corsConfig(cfg.HTTP)),
		middleware.RequestTimeout(cfg.HTTP.RequestTimeout),
	)
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	engine.GET("/health", deps.Health.Check)
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(
		middleware.JWTAuth(middleware.JWTMiddlewareConfig{
			JWTService: deps.JWT,
			Required:   cfg.JWT.Required,
			Logger:     log,
		}),
		middleware.Tenant(middleware.TenantMiddlewareConfig{Logger: log}),
		middleware.TracingAttributes(),
		middleware.HTTPMetrics(deps.Meter, log),
	)

	limiter := middleware.NewTenantRateLimiter(cfg.HTTP.BackfillRatePerMinute, cfg.HTTP.BackfillBurst)
	r.Register(CVRRoutes(deps.CVR,
		middleware.RateLimit(limiter),
		middleware.RequirePermission(BackfillPermission),
	))
	routes := r.Setup()
	for _, rt := range routes {
		log.Debug("Route registered", zap.String("group", rt.Group), zap.String("method", rt.Method), zap.String("path", rt.Path))
	}
	log.Info("API routes registered", zap.String("base_path", r.BasePath()), zap.Int("count", len(routes)))

	return engine
}

// CVRRoutes maps the ledger endpoints. Guards run in front of manual backfills only.
func CVRRoutes(h *handler.CVRHandler, backfillGuards ...gin.HandlerFunc) *RouteGroup {
	g := NewRouteGroup("cvr", "/cvr")
	g.GET("/projects/:project_id/financial-position", h.GetFinancialPosition)

	g.POST("/backfill", append(backfillGuards, h.RunBackfill)...)
	g.GET("/backfill/runs", h.ListBackfillRuns)

	facts := g.Group("facts", "/facts")
	facts.GET("/commitments", h.ListCommitments)
	facts.GET("/actuals", h.ListActuals)
	facts.GET("/:source_type/:source_id", h.GetFact)
	facts.POST("/:source_type/:source_id/rederive", h.RederiveFact)

	g.POST("/source-events", h.NotifySourceEvent)

	invoices := g.Group("invoices", "/invoices")
	invoices.POST("/:invoice_id/match-attempts", h.AttemptMatch)
	invoices.POST("/:invoice_id/match-acceptance", h.AcceptMatch)
	return g
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	cors.ExposeHeaders = append(cors.ExposeHeaders, "X-RateLimit-Limit")
	return cors
}
