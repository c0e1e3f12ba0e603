package routes

import (
	"github.com/gin-gonic/gin"

	"excelsql/internal/handlers"
)

type FlujoCajaRoutes struct {
	handler *handlers.UploadHandler
}

func NewFlujoCajaRoutes(handler *handlers.UploadHandler) *FlujoCajaRoutes {
	return &FlujoCajaRoutes{handler: handler}
}

func (r *FlujoCajaRoutes) RegisterRoutes(router *gin.RouterGroup) {
	flujo := router.Group("/flujo-caja")
	{
		flujo.POST("/process", r.handler.Process)
		flujo.GET("/status/:job_id", r.handler.Status)
	}
}
