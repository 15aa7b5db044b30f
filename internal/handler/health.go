package handler

import (
	"github.com/alfarkas/basic-contract-interaction/internal/handler/response"

	"github.com/gin-gonic/gin"
)

// NodeStatus 返回最近一次访问链节点是否成功
type NodeStatus interface {
	NodeHealthy() bool
}

// HealthCheck 进程存活即返回 UP, ledger 字段反映节点状态
func HealthCheck(node NodeStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		ledger := "UNKNOWN"
		if node != nil {
			ledger = "DOWN"
			if node.NodeHealthy() {
				ledger = "UP"
			}
		}
		response.Success(c, gin.H{
			"status":  "UP",
			"ledger":  ledger,
			"version": "1.0.0",
			"service": "product-server",
		})
	}
}
