package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/mq"
	"github.com/alfarkas/basic-contract-interaction/internal/service/observer"
	"github.com/alfarkas/basic-contract-interaction/internal/service/watchlist"
	"github.com/alfarkas/basic-contract-interaction/pkg/address"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"
	"github.com/alfarkas/basic-contract-interaction/pkg/database"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅或查询合约事件",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "持续输出达到最小确认数的事件 (每行一个 JSON)",
	Long: `NewProduct 和 AcceptProduct 全部输出; DelegateProduct 只输出新 owner 在 --watch 列表中的事件。
Ctrl+C 退出。`,
	Run: func(cmd *cobra.Command, args []string) {
		watched, _ := cmd.Flags().GetStringSlice("watch")
		fromBlock, _ := cmd.Flags().GetUint64("from-block")
		kinds := kindsFlag(cmd)

		// 1. 订阅地址
		watch := watchlist.New()
		for _, a := range watched {
			addr, err := address.ParseETH(a)
			if err != nil {
				fail("地址无效: %s", a)
			}
			watch.Subscribe(addr)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		client := dialLedger(ctx)
		defer client.Close()

		// 2. 启动轮询, 事件写到标准输出
		var opts []observer.PollerOption
		if cmd.Flags().Changed("from-block") {
			opts = append(opts, observer.WithStartCursor(fromBlock))
		}
		poller := observer.NewEventPoller(client,
			observer.NewConfirmationTracker(client, config.MinConfirmations),
			watch,
			observer.NewWriterSink(os.Stdout),
			observer.PollerConfig{
				PollInterval:    config.Global.Ledger.PollInterval,
				ConfirmInterval: config.Global.Ledger.ConfirmInterval,
				ConfirmTimeout:  config.Global.Ledger.ConfirmTimeout,
				MaxWaiters:      config.Global.Ledger.MaxWaiters,
				Kinds:           kinds,
			}, opts...)
		if err := poller.Run(ctx); err != nil {
			fail("轮询退出: %v", err)
		}
	},
}

var eventsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "查询区块区间内的历史事件, 不等待确认",
	Run: func(cmd *cobra.Command, args []string) {
		from, _ := cmd.Flags().GetUint64("from-block")
		to, _ := cmd.Flags().GetUint64("to-block")
		if !cmd.Flags().Changed("from-block") {
			from = config.Global.Ledger.CreatedBlock
		}

		ctx := context.Background()
		client := dialLedger(ctx)
		defer client.Close()

		if to == 0 {
			head, err := client.BlockHeight(ctx)
			if err != nil {
				fail("查询最新高度失败: %v", err)
			}
			to = head
		}
		if from > to {
			fail("from-block (%d) 大于 to-block (%d)", from, to)
		}

		sink := observer.NewWriterSink(os.Stdout)
		for _, kind := range kindsFlag(cmd) {
			events, err := client.FilterEvents(ctx, kind, from, to)
			if err != nil {
				fail("查询 %s 事件失败: %v", kind, err)
			}
			for _, ev := range events {
				_ = sink.Emit(ctx, ev)
			}
		}
	},
}

var eventsConsumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "从消息队列消费最终确认事件",
	Run: func(cmd *cobra.Command, args []string) {
		topic, _ := cmd.Flags().GetString("topic")
		group, _ := cmd.Flags().GetString("group")
		if topic == "" {
			topic = config.Global.Events.Topic
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var consumer mq.Consumer
		if config.Global.Redis.MQType == "kafka" {
			consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, group)
		} else {
			rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
			if err != nil {
				fail("Redis 连接失败: %v", err)
			}
			host, _ := os.Hostname()
			consumer = mq.NewRedisConsumer(rdb, group, fmt.Sprintf("%s-%d", host, os.Getpid()))
		}
		defer consumer.Close()

		err := consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
			fmt.Printf("%s\n", msg.Payload)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			fail("消费失败: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd, eventsHistoryCmd, eventsConsumeCmd)

	eventsTailCmd.Flags().StringSlice("watch", nil, "关注的新 owner 地址, 可重复")
	eventsTailCmd.Flags().Uint64("from-block", 0, "从该高度之后开始 (默认当前最新高度)")
	eventsTailCmd.Flags().StringSlice("kind", nil, "事件类型: NewProduct, DelegateProduct, AcceptProduct (默认全部)")

	eventsHistoryCmd.Flags().Uint64("from-block", 0, "起始高度 (默认合约部署高度)")
	eventsHistoryCmd.Flags().Uint64("to-block", 0, "结束高度 (默认最新高度)")
	eventsHistoryCmd.Flags().StringSlice("kind", nil, "事件类型 (默认全部)")

	eventsConsumeCmd.Flags().String("topic", "", "主题 (默认读取 events.topic)")
	eventsConsumeCmd.Flags().String("group", "product-cli", "消费组")
}

func kindsFlag(cmd *cobra.Command) []model.EventKind {
	names, _ := cmd.Flags().GetStringSlice("kind")
	if len(names) == 0 {
		return model.EventKinds()
	}
	known := make(map[model.EventKind]bool)
	for _, k := range model.EventKinds() {
		known[k] = true
	}
	kinds := make([]model.EventKind, 0, len(names))
	for _, n := range names {
		k := model.EventKind(n)
		if !known[k] {
			fail("未知事件类型: %s", n)
		}
		kinds = append(kinds, k)
	}
	return kinds
}
