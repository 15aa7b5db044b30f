package server

import (
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// LedgerHealthService gRPC 健康检查里代表链节点的服务名
const LedgerHealthService = "ledger"

// NodeHealth 汇总轮询器上报的节点状态, 同时供 HTTP /health 和 gRPC 健康检查使用
type NodeHealth struct {
	health *health.Server

	mu      sync.Mutex
	seen    bool
	healthy bool
}

func NewNodeHealth() *NodeHealth {
	h := &NodeHealth{health: health.NewServer()}
	h.health.SetServingStatus(LedgerHealthService, healthpb.HealthCheckResponse_UNKNOWN)
	return h
}

// ReportNode 只在状态变化时更新 gRPC 健康状态
func (h *NodeHealth) ReportNode(healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seen && h.healthy == healthy {
		return
	}
	h.seen, h.healthy = true, healthy
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(LedgerHealthService, status)
}

// NodeHealthy 尚未收到上报时视为健康
func (h *NodeHealth) NodeHealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.seen || h.healthy
}

// Shutdown 通知健康检查客户端服务即将退出
func (h *NodeHealth) Shutdown() {
	h.health.Shutdown()
}

// NewGRPCServer 初始化并注册 gRPC 服务 (健康检查 + 反射)
func NewGRPCServer(h *NodeHealth) *grpc.Server {
	s := grpc.NewServer()

	healthpb.RegisterHealthServer(s, h.health)
	reflection.Register(s)

	return s
}
