package routes

import (
	"github.com/gin-gonic/gin"

	"excelsql/internal/handlers"
)

type BalanceRoutes struct {
	handler *handlers.UploadHandler
	health  *handlers.HealthHandler
}

func NewBalanceRoutes(handler *handlers.UploadHandler, health *handlers.HealthHandler) *BalanceRoutes {
	return &BalanceRoutes{handler: handler, health: health}
}

func (r *BalanceRoutes) RegisterRoutes(router *gin.RouterGroup) {
	balance := router.Group("/balance")
	{
		balance.POST("/process", r.handler.Process)
		balance.GET("/status/:job_id", r.handler.Status)
		balance.GET("/health", r.health.Database)
	}
}
