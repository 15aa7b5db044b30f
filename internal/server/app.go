package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

type Config struct {
	HttpPort string
	GrpcPort string // 为空时不启动 gRPC
}

// Worker 随应用启动的后台任务 (事件轮询, 消息中继), ctx 取消后应返回
type Worker func(ctx context.Context) error

type App struct {
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener
	workers      []namedWorker
}

type namedWorker struct {
	name string
	run  Worker
}

func New(cfg Config, httpHandler http.Handler, grpcServer *grpc.Server) (*App, error) {
	// HTTP Server
	app := &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// gRPC Listener
	if grpcServer != nil && cfg.GrpcPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GrpcPort)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on grpc port %s: %w", cfg.GrpcPort, err)
		}
		app.grpcServer = grpcServer
		app.grpcListener = lis
	}
	return app, nil
}

// AddWorker 注册后台任务, 需在 Run 之前调用
func (a *App) AddWorker(name string, w Worker) {
	a.workers = append(a.workers, namedWorker{name: name, run: w})
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.RunContext(ctx)
}

// RunContext ctx 结束后优雅退出: 先停止接收请求, 再等待后台任务退出
func (a *App) RunContext(ctx context.Context) {
	// 1. Start HTTP
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Server failure", zap.Error(err))
		}
	}()

	// 2. Start gRPC
	if a.grpcServer != nil {
		go func() {
			logger.Info("Starting gRPC Server", zap.String("addr", a.grpcListener.Addr().String()))
			if err := a.grpcServer.Serve(a.grpcListener); err != nil {
				logger.Fatal("gRPC Server failure", zap.Error(err))
			}
		}()
	}

	// 3. Start workers
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	var g errgroup.Group
	for _, w := range a.workers {
		g.Go(func() error {
			logger.Info("Starting worker", zap.String("worker", w.name))
			if err := w.run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Worker exited with error", zap.String("worker", w.name), zap.Error(err))
				return err
			}
			logger.Info("Worker stopped", zap.String("worker", w.name))
			return nil
		})
	}

	// 4. Signal Handling (Blocking)
	<-ctx.Done()
	logger.Info("⚠️  Shutting down server...")

	// 5. Graceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	cancelWorkers()
	_ = g.Wait()
	logger.Info("Server exited properly")
}
