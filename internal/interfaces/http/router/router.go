// Package router 提供 HTTP 路由配置
package router

import (
	"nexus-marketing-api/internal/config"
	"nexus-marketing-api/internal/interfaces/http/handler"
	"nexus-marketing-api/internal/interfaces/http/middleware"
	redisinfra "nexus-marketing-api/internal/infrastructure/persistence/redis"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
}

// Dependencies 路由依赖
type Dependencies struct {
	Health     *handler.HealthHandler
	Onboarding *handler.OnboardingHandler
	Company    *handler.CompanyHandler

	Redis *redisinfra.Client
}

// New 创建新的路由器
func New(cfg *config.Config, deps Dependencies) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine: engine,
		cfg:    cfg,
	}

	r.setupMiddleware(deps)
	r.setupRoutes(deps)

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware(deps Dependencies) {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.Tenant(middleware.TenantConfig{
		HeaderName:      r.cfg.Security.Tenant.HeaderName,
		DefaultTenantID: r.cfg.Security.Tenant.DefaultTenantID,
	}))

	r.engine.Use(middleware.AuditWithConfig(middleware.AuditConfig{
		Enabled:   true,
		SkipPaths: middleware.DefaultAuditSkipPaths,
	}))

	if r.cfg.Security.RateLimit.Enabled && deps.Redis != nil {
		r.engine.Use(middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
			Burst:             r.cfg.Security.RateLimit.Burst,
		}, deps.Redis.Redis()))
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes(deps Dependencies) {
	r.engine.GET("/health", deps.Health.Health)
	r.engine.GET("/ready", deps.Health.Ready)
	r.engine.GET("/live", deps.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	RegisterV1Routes(v1, deps.Onboarding, deps.Company)
}
