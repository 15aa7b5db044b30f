package routes

import (
	"github.com/alfarkas/basic-contract-interaction/internal/handler"

	"github.com/gin-gonic/gin"
)

// RegisterProductRoutes 产品查询与状态变更
func RegisterProductRoutes(rg *gin.RouterGroup, h *handler.ProductHandler) {
	rg.GET("/products", h.ListProducts)

	productGroup := rg.Group("/product")
	{
		productGroup.POST("", h.CreateProduct)
		productGroup.GET("/:ref", h.GetProduct)
		productGroup.POST("/:id/delegate", h.DelegateProduct)
		productGroup.POST("/:id/accept", h.AcceptProduct)
	}
}
