package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Search *SearchHandler
	Health *HealthHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/search", deps.Search.Search)
	api.GET("/healthz", deps.Health.Check)
}
