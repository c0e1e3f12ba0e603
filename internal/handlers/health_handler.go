package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"excelsql/internal/database"
	"excelsql/internal/logger"
)

// DBChecker reports whether the database answers.
type DBChecker interface {
	TestConnection(ctx context.Context) database.ConnectionStatus
}

type HealthHandler struct {
	db   DBChecker
	lggr *zap.Logger
}

func NewHealthHandler(db DBChecker, lggr *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, lggr: lggr}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API funcionando correctamente"})
}

// Liveness answers without touching the database.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Database reports 503 until the database is reachable.
func (h *HealthHandler) Database(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status := h.db.TestConnection(ctx)
	if !status.Success {
		logger.LogDatabaseConnection(h.lggr, false, map[string]any{"error": status.Error, "type": status.Type})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
			"details":  status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
}
