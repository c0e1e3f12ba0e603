package routes

import (
	"github.com/gin-gonic/gin"

	"excelsql/internal/handlers"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Health    *handlers.HealthHandler
	Balance   *handlers.UploadHandler
	FlujoCaja *handlers.UploadHandler
	Logs      *handlers.LogHandler
}

// RegisterRoutes mounts the API. A non-empty logSecret puts the log routes
// behind Bearer token authentication.
func RegisterRoutes(router *gin.Engine, h Handlers, logSecret []byte) {
	router.GET("/", h.Health.Root)
	router.GET("/health", h.Health.Liveness)

	api := router.Group("/api")

	balanceRoutes := NewBalanceRoutes(h.Balance, h.Health)
	balanceRoutes.RegisterRoutes(api)

	flujoCajaRoutes := NewFlujoCajaRoutes(h.FlujoCaja)
	flujoCajaRoutes.RegisterRoutes(api)

	logRoutes := NewLogRoutes(h.Logs, logSecret)
	logRoutes.RegisterRoutes(api)
}
