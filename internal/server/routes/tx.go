package routes

import (
	"github.com/alfarkas/basic-contract-interaction/internal/handler"

	"github.com/gin-gonic/gin"
)

func RegisterTxRoutes(rg *gin.RouterGroup, h *handler.TxHandler) {
	rg.GET("/tx/:hash", h.Status)
}
