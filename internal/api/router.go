// Package api exposes the operator-facing HTTP surface: manual crawl
// trigger, source inspection, and duplicate management.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/godigest/internal/logger"
)

// NewRouter builds the service router.
func NewRouter(h *Handler, log logger.Logger, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.POST("/crawl", h.TriggerCrawl)
	v1.GET("/sources", h.ListSources)
	v1.GET("/sources/:id/metrics", h.SourceMetrics)
	v1.GET("/duplicates", h.DuplicateReport)
	v1.GET("/duplicates/candidates", h.DuplicateCandidates)
	v1.POST("/duplicates/:id/resolve", h.ResolveDuplicate)

	return router
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", c.Writer.Status()),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", time.Since(start)),
		)
	}
}
