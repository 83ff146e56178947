// Package api implements the HTTP control plane: the Pusher-signed
// trigger and channel-inspection endpoints, user termination, and the
// operator-facing health/usage/metrics routes, grounded on the teacher's
// gin router and middleware wiring.
package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenbridge/broker/internal/middleware"
	"github.com/lumenbridge/broker/internal/server"
)

// NewRouter builds the full gin engine: global middleware, the
// WebSocket upgrade route, and the Pusher HTTP API grouped under
// /apps/:app_id with signature verification.
func NewRouter(s *server.Server) *gin.Engine {
	if !s.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		Origins:     s.Config.CORS.Origins,
		Methods:     s.Config.CORS.Methods,
		Headers:     s.Config.CORS.Headers,
		Credentials: s.Config.CORS.Credentials,
	}))
	r.Use(middleware.Security())
	if s.Config.RateLimiter.Enabled {
		r.Use(middleware.RateLimit(s.RateLimiter, middleware.RateLimitConfig{
			MaxRequests: s.Config.RateLimiter.MaxRequests,
			Window:      time.Duration(s.Config.RateLimiter.WindowSeconds) * time.Second,
			TrustedHops: s.Config.RateLimiter.TrustHops,
		}))
	}

	r.GET("/app/:app_key", s.WS.HandleConnection)

	r.GET("/up/:app_id", func(c *gin.Context) { upCheck(c, s) })

	usageGroup := r.Group("/usage")
	usageGroup.Use(middleware.AdminAuth(s.Config.AdminSecret))
	usageGroup.GET("", func(c *gin.Context) { usage(c, s) })

	if s.Config.Metrics.Enabled {
		metricsGroup := r.Group("/metrics")
		metricsGroup.Use(middleware.AdminAuth(s.Config.AdminSecret))
		metricsGroup.GET("", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
	}

	apps := r.Group("/apps/:app_id")
	apps.Use(signatureAuth(s))
	{
		apps.POST("/events", func(c *gin.Context) { triggerEvent(c, s) })
		apps.POST("/batch_events", func(c *gin.Context) { triggerBatch(c, s) })
		apps.GET("/channels", func(c *gin.Context) { listChannels(c, s) })
		apps.GET("/channels/:name", func(c *gin.Context) { inspectChannel(c, s) })
		apps.GET("/channels/:name/users", func(c *gin.Context) { channelUsers(c, s) })
		apps.POST("/users/:user_id/terminate_connections", func(c *gin.Context) { terminateUser(c, s) })
	}

	return r
}

func upCheck(c *gin.Context, s *server.Server) {
	ctx := c.Request.Context()
	appID := c.Param("app_id")
	if _, err := s.Apps.ByID(ctx, appID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
		return
	}
	if !s.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}
	c.Status(http.StatusOK)
}

func usage(c *gin.Context, s *server.Server) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(s.Uptime().Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	})
}
