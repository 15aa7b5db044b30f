package service

import (
	"context"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/mq"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"
	"github.com/alfarkas/basic-contract-interaction/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RelayService 负责将本地消息表的最终确认事件搬运到 MQ
type RelayService struct {
	db        *gorm.DB
	producer  mq.Producer
	interval  time.Duration
	batchSize int
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{
		db:        db,
		producer:  producer,
		interval:  500 * time.Millisecond,
		batchSize: 50,
	}
}

// Start 阻塞运行直到 ctx 取消
func (s *RelayService) Start(ctx context.Context) {
	logger.Info("启动消息中继服务", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("消息中继服务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

// processPendingMessages 发送成功后才标记 SENT, 至少一次投递, 消费方按 message_id 去重
func (s *RelayService) processPendingMessages(ctx context.Context) int {
	// 1. 按写入顺序取一批 Pending 消息
	var messages []model.OutboxMessage
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id").
		Limit(s.batchSize).
		Find(&messages).Error; err != nil {
		logger.Error("查询待发送消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		// 2. 发送 MQ
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			monitor.Business.RelayPublishedTotal.WithLabelValues(msg.Topic, "failed").Inc()
			logger.Warn("发送消息失败", zap.Uint64("id", msg.ID), zap.String("topic", msg.Topic), zap.Error(err))
			s.db.WithContext(ctx).Model(&msg).UpdateColumn("attempts", gorm.Expr("attempts + 1"))
			continue
		}
		monitor.Business.RelayPublishedTotal.WithLabelValues(msg.Topic, "ok").Inc()

		// 3. 更新状态为 SENT
		now := time.Now()
		if err := s.db.WithContext(ctx).Model(&msg).Updates(map[string]interface{}{
			"status":  model.OutboxSent,
			"sent_at": &now,
		}).Error; err != nil {
			logger.Error("更新消息状态失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		logger.Debug("消息已投递", zap.Int("count", sent))
	}
	return sent
}
