package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/missing-persons-intake/internal/metrics"
)

// OpsConfig configures the HTTP ops router.
type OpsConfig struct {
	// HealthCheck reports dependency health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
	// UploadDir is served under UploadPath when both are set.
	UploadDir  string
	UploadPath string
	Sessions   *Sessions
}

// NewOpsRouter serves /healthz, /metrics and, optionally, the uploaded photos.
func NewOpsRouter(cfg OpsConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if cfg.Sessions != nil {
			body["sessions"] = cfg.Sessions.Len()
		}
		if cfg.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := cfg.HealthCheck(ctx); err != nil {
				body["status"] = "unavailable"
				body["error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.UploadDir != "" && cfg.UploadPath != "" {
		r.Static("/"+strings.Trim(cfg.UploadPath, "/"), cfg.UploadDir)
	}
	return r
}
