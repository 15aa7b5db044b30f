package server

import (
	"github.com/alfarkas/basic-contract-interaction/internal/handler"
	"github.com/alfarkas/basic-contract-interaction/internal/handler/response"
	"github.com/alfarkas/basic-contract-interaction/internal/server/routes"
	"github.com/alfarkas/basic-contract-interaction/pkg/monitor"

	"github.com/gin-gonic/gin"
)

// Handlers HTTP 层依赖, 为 nil 的模块不注册路由
type Handlers struct {
	Product   *handler.ProductHandler
	WatchList *handler.WatchListHandler
	Tx        *handler.TxHandler
	Node      handler.NodeStatus
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()
	r.Use(monitor.PrometheusMiddleware())

	// 2. 注册基础路由
	r.GET("/health", handler.HealthCheck(h.Node))
	r.GET("/metrics", monitor.Handler())

	// 3. 注册 API 路由组, 未配置的模块不注册
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		if h.Product != nil {
			routes.RegisterProductRoutes(api, h.Product)
		}
		if h.WatchList != nil {
			routes.RegisterWatchListRoutes(api, h.WatchList)
		}
		if h.Tx != nil {
			routes.RegisterTxRoutes(api, h.Tx)
		}
	}

	return r
}

// NewSignerRouter 签名服务只暴露 POST / 和监控接口
func NewSignerRouter(h *handler.SignerHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), monitor.PrometheusMiddleware())

	r.POST("/", h.Sign)
	r.GET("/health", handler.HealthCheck(nil))
	r.GET("/metrics", monitor.Handler())
	return r
}
