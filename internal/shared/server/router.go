package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seo-analysis-backend/internal/analyses"
	"seo-analysis-backend/internal/credits"
	"seo-analysis-backend/internal/services/health"
	"seo-analysis-backend/internal/shared/config"
	"seo-analysis-backend/internal/shared/metrics"
	"seo-analysis-backend/internal/shared/server/middleware"
)

const (
	groupDefault  = "DEFAULT"
	groupAnalysis = "ANALYSIS"
	groupPolling  = "POLLING"
)

var rateLimitRules = map[string]middleware.RateLimitRule{
	groupDefault:  {Rate: 5, Burst: 20},
	groupAnalysis: {Rate: 0.5, Burst: 5},
	groupPolling:  {Rate: 5, Burst: 10},
}

// RouterDeps are the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	CreditsHandler  *credits.Handler
	Health          *health.Service
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(0)
	}
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthSvc.Handler())

	secured := api.Group("")
	secured.Use(
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rateLimitRules,
			DefaultGroup: groupDefault,
			GroupFor:     rateLimitGroup,
			Limiter:      deps.RateLimiter,
		}),
	)
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(secured)
	}
	if deps.CreditsHandler != nil {
		deps.CreditsHandler.RegisterRoutes(secured)
		if deps.Config.Env == "dev" {
			deps.CreditsHandler.RegisterDevRoutes(secured.Group("/dev"))
		}
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	switch {
	case c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/tasks/:taskId":
		return groupPolling
	case c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyses/:type":
		return groupAnalysis
	default:
		return groupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
