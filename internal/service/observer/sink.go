package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/mq"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LogSink 以结构化日志输出事件
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, ev model.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	logger.Info("事件已最终确认", zap.String("kind", string(ev.Kind())), zap.ByteString("event", payload))
	return nil
}

// WriterSink 每个事件写一行 JSON (命令行使用)
type WriterSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriterSink(out io.Writer) *WriterSink {
	return &WriterSink{out: out}
}

func (s *WriterSink) Emit(ctx context.Context, ev model.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = fmt.Fprintf(s.out, "%s\n", payload)
	return err
}

// ChannelSink 进程内的事件流, 消费方读取 Events()
type ChannelSink struct {
	ch chan model.LedgerEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan model.LedgerEvent, buffer)}
}

func (s *ChannelSink) Events() <-chan model.LedgerEvent {
	return s.ch
}

// Emit 缓冲区满时阻塞直到被读取或 ctx 结束
func (s *ChannelSink) Emit(ctx context.Context, ev model.LedgerEvent) error {
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSink 直接发送到 MQ, 以产品 ID 作为分区键
type PublishSink struct {
	producer mq.Producer
	topic    string
}

func NewPublishSink(producer mq.Producer, topic string) *PublishSink {
	return &PublishSink{producer: producer, topic: topic}
}

func (s *PublishSink) Emit(ctx context.Context, ev model.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.producer.Publish(ctx, s.topic, partitionKey(ev), payload)
}

// OutboxSink 写入本地消息表, 由 RelayService 投递到 MQ
type OutboxSink struct {
	db    *gorm.DB
	topic string
}

func NewOutboxSink(db *gorm.DB, topic string) *OutboxSink {
	return &OutboxSink{db: db, topic: topic}
}

func (s *OutboxSink) Emit(ctx context.Context, ev model.LedgerEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := model.CreateOutboxMessage(tx, s.topic, partitionKey(ev), ev)
		return err
	})
}

// MultiSink 依次投递到所有 sink, 返回合并后的错误
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev model.LedgerEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func partitionKey(ev model.LedgerEvent) string {
	return strconv.FormatUint(ev.ProductID, 10)
}
