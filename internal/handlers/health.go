package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/logger"
)

// Health reports whether the database and the cache store answer
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "cache": "ok"}
	status := http.StatusOK

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.WarnWithFields("Database health check failed", err)
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Store().Ping(ctx); err != nil {
		logger.WarnWithFields("Cache health check failed", err)
		checks["cache"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":    http.StatusText(status),
		"timestamp": time.Now().UTC(),
		"service":   "blog-backend",
		"checks":    checks,
	})
}
