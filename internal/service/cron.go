package service

import (
	"context"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"
	"github.com/alfarkas/basic-contract-interaction/pkg/utils/lock"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CronConfig outbox 维护任务参数
type CronConfig struct {
	Retention   time.Duration // SENT 消息保留时长
	StuckAfter  time.Duration // PENDING 超过该时长视为积压
	PurgeSpec   string
	InspectSpec string
	LockTTL     time.Duration
}

// CronService 定时清理已投递的 outbox 消息并检查积压
// 多实例部署时通过分布式锁保证同一任务只有一个实例执行
type CronService struct {
	cron   *cron.Cron
	db     *gorm.DB
	locker lock.DistributedLock
	cfg    CronConfig
}

// NewCronService locker 为 nil 时不加锁 (单实例)
func NewCronService(db *gorm.DB, locker lock.DistributedLock, cfg CronConfig) *CronService {
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = 10 * time.Minute
	}
	if cfg.PurgeSpec == "" {
		cfg.PurgeSpec = "@every 1h"
	}
	if cfg.InspectSpec == "" {
		cfg.InspectSpec = "@every 1m"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &CronService{
		cron:   cron.New(),
		db:     db,
		locker: locker,
		cfg:    cfg,
	}
}

// Start 注册任务并在后台调度, 返回 cron 表达式错误
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.PurgeSpec, func() {
		s.runLocked("cron:lock:outbox_purge", s.PurgeSentOutbox)
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.InspectSpec, func() {
		s.runLocked("cron:lock:outbox_inspect", s.InspectPendingOutbox)
	}); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Cron Service started",
		zap.String("purge", s.cfg.PurgeSpec),
		zap.String("inspect", s.cfg.InspectSpec))
	return nil
}

// Run 阻塞直到 ctx 取消, 等待正在执行的任务结束
func (s *CronService) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// runLocked 获取锁失败说明其他实例正在执行, 直接跳过
func (s *CronService) runLocked(key string, job func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LockTTL)
	defer cancel()

	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
		if err != nil || !ok {
			logger.Debug("获取任务锁失败或已有实例在运行", zap.String("key", key), zap.Error(err))
			return false
		}
		defer func() {
			if err := s.locker.Release(context.Background(), key, token); err != nil {
				logger.Warn("释放任务锁失败", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	if err := job(ctx); err != nil {
		logger.Error("定时任务执行失败", zap.String("key", key), zap.Error(err))
	}
	return true
}

// PurgeSentOutbox 删除超过保留期的 SENT 消息
func (s *CronService) PurgeSentOutbox(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.Retention)
	res := s.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", model.OutboxSent, cutoff).
		Delete(&model.OutboxMessage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		logger.Info("已清理过期 outbox 消息", zap.Int64("count", res.RowsAffected), zap.Time("before", cutoff))
	}
	return nil
}

// InspectPendingOutbox 消息长时间未投递时告警 (MQ 不可用或消息体无法发送)
func (s *CronService) InspectPendingOutbox(ctx context.Context) error {
	var stuck struct {
		Count       int64
		MaxAttempts int
	}
	err := s.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Select("COUNT(*) AS count, COALESCE(MAX(attempts), 0) AS max_attempts").
		Where("status = ? AND created_at < ?", model.OutboxPending, time.Now().Add(-s.cfg.StuckAfter)).
		Scan(&stuck).Error
	if err != nil {
		return err
	}
	if stuck.Count > 0 {
		logger.Warn("outbox 消息积压",
			zap.Int64("pending", stuck.Count),
			zap.Int("max_attempts", stuck.MaxAttempts),
			zap.Duration("older_than", s.cfg.StuckAfter))
	}
	return nil
}
