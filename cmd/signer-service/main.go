package main

import (
	"flag"

	"github.com/alfarkas/basic-contract-interaction/internal/handler"
	"github.com/alfarkas/basic-contract-interaction/internal/server"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"go.uber.org/zap"
)

// 签名服务: 持有私钥, 只对外提供 POST / 签名接口
func main() {
	port := flag.String("port", "5001", "HTTP port")
	flag.Parse()

	// 0. 初始化 Config / Logger
	config.Init()
	logger.Init(config.Global.App.Env, zap.String("service", "signer-service"))
	defer logger.Sync()

	// 1. 加载私钥: 优先环境变量 KEY, 否则读取加密的 keystore 文件
	cfg := config.Global.Signer
	var (
		local *signer.LocalSigner
		err   error
	)
	if cfg.Key != "" {
		local, err = signer.NewLocalSignerFromHex(cfg.Key)
	} else {
		local, err = signer.NewLocalSignerFromKeystore(cfg.KeystorePath, cfg.Password)
	}
	if err != nil {
		logger.Fatal("加载签名私钥失败", zap.Error(err))
	}
	logger.Info("签名账户已加载", zap.String("address", local.Address().Hex()))

	// 2. 启动 HTTP
	r := server.NewSignerRouter(handler.NewSignerHandler(local))
	app, err := server.New(server.Config{HttpPort: *port}, r, nil)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}
	app.Run()
	logger.Info("签名服务已退出")
}
