package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/handler"
	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/server"
	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/internal/service/mq"
	"github.com/alfarkas/basic-contract-interaction/internal/service/observer"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/internal/service/watchlist"
	"github.com/alfarkas/basic-contract-interaction/pkg/cache"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"
	"github.com/alfarkas/basic-contract-interaction/pkg/database"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"
	"github.com/alfarkas/basic-contract-interaction/pkg/utils/lock"
	"github.com/alfarkas/basic-contract-interaction/pkg/validator"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 0. 初始化 Config
	config.Init()
	config.Watch()

	// 1. 初始化 Logger / Validator
	logger.Init(config.Global.App.Env, zap.String("service", "product-server"))
	defer logger.Sync()
	validator.Init()

	cfg := config.Global

	// 2. 连接链节点
	client, err := ledger.Dial(context.Background(), cfg.Ledger.RpcUrl, common.HexToAddress(cfg.Ledger.ContractAddr),
		ledger.WithRateLimit(cfg.Ledger.RateLimitRPS, cfg.Ledger.RateLimitBurst),
		ledger.WithCallTimeout(cfg.Ledger.CallTimeout),
	)
	if err != nil {
		logger.Fatal("链节点连接失败", zap.String("rpc", cfg.Ledger.RpcUrl), zap.Error(err))
	}
	defer client.Close()

	// 3. 可选: 数据库
	var db *gorm.DB
	if cfg.DB.Enabled {
		dsn := database.PostgresDSN(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
		db, err = database.ConnectPostgres(dsn, cfg.App.Env == "development")
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		if cfg.App.Env == "development" {
			logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
			if err := db.AutoMigrate(model.AllModels()...); err != nil {
				logger.Fatal("数据库自动迁移失败", zap.Error(err))
			}
		} else {
			logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
		}
	}

	// 4. 可选: Redis
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
	}

	// 5. 签名方式
	defaultSigner, err := newSigner(cfg.Signer)
	if err != nil {
		logger.Fatal("初始化签名器失败", zap.String("mode", cfg.Signer.Mode), zap.Error(err))
	}

	// 6. 提交服务
	opts := []service.SubmitterOption{service.WithGasLimit(cfg.Ledger.GasLimit)}
	if cfg.Ledger.ChainID > 0 {
		opts = append(opts, service.WithChainID(cfg.Ledger.ChainID))
	}
	if rdb != nil && cfg.Lock.SenderLock {
		opts = append(opts, service.WithSenderLock(lock.NewRedisLock(rdb), cfg.Lock.TTL))
	}
	var recorder service.SubmissionRecorder
	if db != nil {
		recorder = service.NewSubmissionStore(db)
		opts = append(opts, service.WithRecorder(recorder))
	}
	submitter := service.NewSubmitterService(client, defaultSigner, opts...)

	// 7. 产品查询 (本地缓存, 有 Redis 时加二级缓存)
	var productCache cache.Cache = cache.NewMemoryCache(cfg.Cache.ProductsTTL, time.Minute)
	if rdb != nil {
		productCache = cache.NewMultiLevelCache(productCache, cache.NewRedisCache(rdb, "product:"), cfg.Cache.ProductsTTL/2)
	}
	products := service.NewProductService(client, productCache, cfg.Cache.ProductsTTL)

	// 8. 事件投递: 先检查依赖 (outbox 需要 DB, Redis Streams 需要 Redis), 再创建生产者
	if err := checkEventsConfig(cfg, db, rdb); err != nil {
		logger.Fatal("事件投递配置错误", zap.Error(err))
	}
	var producer mq.Producer
	if needsProducer(cfg.Events.Sink) {
		producer = newProducer(cfg, rdb)
	}
	sink, err := newSink(cfg.Events, db, producer)
	if err != nil {
		logger.Fatal("初始化事件投递失败", zap.Error(err))
	}

	// 9. 轮询器
	watch := watchlist.New()
	tracker := observer.NewConfirmationTracker(client, config.MinConfirmations)
	nodeHealth := server.NewNodeHealth()
	poller := observer.NewEventPoller(client, tracker, watch, sink, observer.PollerConfig{
		PollInterval:    cfg.Ledger.PollInterval,
		ConfirmInterval: cfg.Ledger.ConfirmInterval,
		ConfirmTimeout:  cfg.Ledger.ConfirmTimeout,
		MaxWaiters:      cfg.Ledger.MaxWaiters,
	}, observer.WithHealthReporter(nodeHealth))

	// 10. HTTP / gRPC
	r := server.NewHTTPRouter(server.Handlers{
		Product:   handler.NewProductHandler(products, submitter),
		WatchList: handler.NewWatchListHandler(watch),
		Tx:        handler.NewTxHandler(tracker, recorder),
		Node:      nodeHealth,
	})
	grpcServer := server.NewGRPCServer(nodeHealth)

	app, err := server.New(server.Config{
		HttpPort: cfg.App.HttpPort,
		GrpcPort: cfg.App.GrpcPort,
	}, r, grpcServer)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}

	app.AddWorker("event-poller", poller.Run)
	if cfg.Events.Sink == "outbox" {
		relay := service.NewRelayService(db, producer)
		app.AddWorker("outbox-relay", func(ctx context.Context) error {
			relay.Start(ctx)
			return nil
		})

		var locker lock.DistributedLock
		if rdb != nil {
			locker = lock.NewRedisLock(rdb)
		}
		cronService := service.NewCronService(db, locker, service.CronConfig{Retention: cfg.Events.OutboxRetention})
		app.AddWorker("outbox-cron", cronService.Run)
	}

	// 运行 (阻塞)
	app.Run()
	nodeHealth.Shutdown()

	// 11. 退出后资源清理
	if c, ok := producer.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("关闭消息队列失败", zap.Error(err))
		}
	}
	if db != nil {
		logger.Info("正在关闭数据库连接...")
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("系统已退出")
}

var (
	errOutboxNeedsDB    = errors.New("events.sink=outbox requires db.enabled")
	errStreamsNeedRedis = errors.New("redis.mq_type=redis requires redis.enabled")
)

func needsProducer(sink string) bool {
	return sink == "mq" || sink == "outbox"
}

// checkEventsConfig 启动时检查投递方式所需的依赖, 数据库缺失优先报告
func checkEventsConfig(cfg config.Config, db *gorm.DB, rdb *redis.Client) error {
	switch cfg.Events.Sink {
	case "", "log", "stdout":
		return nil
	case "mq", "outbox":
	default:
		return errUnknownSink(cfg.Events.Sink)
	}
	if cfg.Events.Sink == "outbox" && db == nil {
		return errOutboxNeedsDB
	}
	if cfg.Redis.MQType != "kafka" && rdb == nil {
		return errStreamsNeedRedis
	}
	return nil
}

func errUnknownSink(name string) error {
	return fmt.Errorf("unknown events.sink %q", name)
}

func newSigner(cfg config.SignerConfig) (signer.Signer, error) {
	if cfg.Mode == signer.ModeLocal {
		if cfg.Key != "" {
			return signer.NewLocalSignerFromHex(cfg.Key)
		}
		return signer.NewLocalSignerFromKeystore(cfg.KeystorePath, cfg.Password)
	}
	logger.Info("使用远程签名服务", zap.String("endpoint", cfg.Endpoint))
	return signer.NewRemoteSigner(cfg.Endpoint, cfg.Timeout), nil
}

// newProducer 依赖已由 checkEventsConfig 检查
func newProducer(cfg config.Config, rdb *redis.Client) mq.Producer {
	if cfg.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers)
	}
	logger.Info("使用 Redis Streams 作为消息队列...")
	return mq.NewRedisProducer(rdb, 10000)
}

// newSink log 始终开启; mq 直接发布; outbox 先落库再由中继发布
func newSink(cfg config.EventsConfig, db *gorm.DB, producer mq.Producer) (observer.Sink, error) {
	sinks := observer.MultiSink{observer.LogSink{}}
	switch cfg.Sink {
	case "", "log":
	case "stdout":
		sinks = append(sinks, observer.NewWriterSink(os.Stdout))
	case "mq":
		sinks = append(sinks, observer.NewPublishSink(producer, cfg.Topic))
	case "outbox":
		if db == nil {
			return nil, errOutboxNeedsDB
		}
		sinks = append(sinks, observer.NewOutboxSink(db, cfg.Topic))
	default:
		return nil, errUnknownSink(cfg.Sink)
	}
	return sinks, nil
}
