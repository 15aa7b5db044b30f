package observer

import (
	"context"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
)

// ChainObserver 定义了事件轮询器的通用行为
type ChainObserver interface {
	// Start 启动轮询, ctx 取消后退出
	Start(ctx context.Context) error

	// Stop 停止轮询并等待所有确认任务退出
	Stop() error

	// Cursor 返回某类事件已轮询到的区块高度
	Cursor(kind model.EventKind) (uint64, bool)
}

// Sink 接收已达到确认数的事件
type Sink interface {
	Emit(ctx context.Context, ev model.LedgerEvent) error
}

// HealthReporter 轮询结果反映节点是否可用
type HealthReporter interface {
	ReportNode(healthy bool)
}
