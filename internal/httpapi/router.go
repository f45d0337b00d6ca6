package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/agent-platform/internal/common"
	"github.com/suPer8Hu/agent-platform/internal/config"
	"github.com/suPer8Hu/agent-platform/internal/httpapi/handlers"
	"github.com/suPer8Hu/agent-platform/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	// operational endpoints are not key gated
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.APIKey(cfg.APIKeyHeader, cfg.APIKey, cfg.APIKeyHash))
	api.Use(middleware.Identity())

	api.GET("/threads", h.ListThreads)
	api.POST("/threads", h.CreateThread)
	api.GET("/threads/:id", h.GetThread)
	api.DELETE("/threads/:id", h.DeleteThread)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	agentGroup := api.Group("/agent")
	agentGroup.Use(limiter.Handler())
	agentGroup.POST("/query", h.Query)
	agentGroup.POST("/stream", h.Stream)
	agentGroup.POST("/jobs", h.CreateJob)
	agentGroup.GET("/jobs/:id", h.GetJob)
	return r
}
