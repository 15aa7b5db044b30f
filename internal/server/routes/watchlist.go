package routes

import (
	"github.com/alfarkas/basic-contract-interaction/internal/handler"

	"github.com/gin-gonic/gin"
)

func RegisterWatchListRoutes(rg *gin.RouterGroup, h *handler.WatchListHandler) {
	watchGroup := rg.Group("/watchlist")
	{
		watchGroup.GET("", h.List)
		watchGroup.POST("", h.Subscribe)
		watchGroup.GET("/:address", h.IsSubscribed)
		watchGroup.DELETE("/:address", h.Unsubscribe)
	}
}
