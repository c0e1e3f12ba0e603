package routes

import (
	"github.com/gin-gonic/gin"

	"excelsql/internal/handlers"
	"excelsql/internal/middlewares"
)

type LogRoutes struct {
	handler *handlers.LogHandler
	secret  []byte
}

func NewLogRoutes(handler *handlers.LogHandler, secret []byte) *LogRoutes {
	return &LogRoutes{handler: handler, secret: secret}
}

func (r *LogRoutes) RegisterRoutes(router *gin.RouterGroup) {
	logs := router.Group("/logs")
	if len(r.secret) > 0 {
		logs.Use(middlewares.Authenticate(r.secret))
	}
	{
		logs.GET("/list", r.handler.List)
		logs.GET("/view/:log_name", r.handler.View)
		logs.GET("/download/:log_name", r.handler.Download)
		logs.GET("/errors", r.handler.Errors)
		logs.GET("/tail/:log_name", r.handler.Tail)
		logs.POST("/clear/:log_name", r.handler.Clear)
		logs.GET("/stats", r.handler.Stats)
	}
}
