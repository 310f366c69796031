package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Recommend *RecommendHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/roles", deps.Recommend.Roles)
	api.GET("/recommendations", deps.Recommend.Recommend)
	api.GET("/recommendations/export", deps.Recommend.Export)
	api.GET("/page", deps.Recommend.Page)
}
