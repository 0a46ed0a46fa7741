package api

import (
	"time"

	"github.com/chxlky/trello-citydash/internal/metrics"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var publicPaths = []string{"/api/health", "/api/auth/login", "/metrics"}

// NewRouter wires every route behind the session gate. gatherer serves /metrics.
func NewRouter(h *Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	if m != nil {
		router.Use(m.Middleware())
	}
	router.Use(h.Sessions.Gate(publicPaths...))

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", h.HealthCheckHandler)
		apiGroup.POST("/auth/login", h.LoginHandler)
		apiGroup.POST("/auth/logout", h.LogoutHandler)
		apiGroup.GET("/dashboard", h.DashboardHandler)
		apiGroup.GET("/cities", h.CitiesHandler)
		apiGroup.GET("/cities/:city", h.CityHandler)
		apiGroup.GET("/gallery", h.GalleryHandler)
		apiGroup.POST("/refresh", h.RefreshHandler)
	}

	return router
}
