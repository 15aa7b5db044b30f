package observer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/watchlist"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"
	"github.com/alfarkas/basic-contract-interaction/pkg/monitor"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PollerConfig 轮询参数
type PollerConfig struct {
	PollInterval    time.Duration
	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration // 0 表示一直等待确认
	MaxWaiters      int
	Kinds           []model.EventKind
}

func (c *PollerConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ConfirmInterval <= 0 {
		c.ConfirmInterval = 3 * time.Second
	}
	if c.MaxWaiters <= 0 {
		c.MaxWaiters = 256
	}
	if len(c.Kinds) == 0 {
		c.Kinds = model.EventKinds()
	}
}

// EventPoller 每类事件一个轮询循环 (生产者), 每个相关事件一个确认任务 (消费者)
// 确认任务数量受 MaxWaiters 限制, 超出时阻塞发现新事件, 形成背压
type EventPoller struct {
	client  ledger.Client
	tracker *ConfirmationTracker
	watch   *watchlist.WatchList
	sink    Sink
	health  HealthReporter
	cfg     PollerConfig

	sem     chan struct{}
	waiters sync.WaitGroup

	mu      sync.Mutex
	cursors map[model.EventKind]uint64

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

type PollerOption func(*EventPoller)

// WithHealthReporter 轮询成功/失败时上报节点健康状态
func WithHealthReporter(h HealthReporter) PollerOption {
	return func(p *EventPoller) {
		p.health = h
	}
}

// WithStartCursor 从指定高度之后开始轮询, 默认从启动时的最新高度开始
func WithStartCursor(height uint64) PollerOption {
	return func(p *EventPoller) {
		for _, kind := range p.cfg.Kinds {
			p.cursors[kind] = height
		}
	}
}

func NewEventPoller(client ledger.Client, tracker *ConfirmationTracker, watch *watchlist.WatchList, sink Sink, cfg PollerConfig, opts ...PollerOption) *EventPoller {
	cfg.setDefaults()
	p := &EventPoller{
		client:  client,
		tracker: tracker,
		watch:   watch,
		sink:    sink,
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.MaxWaiters),
		cursors: make(map[model.EventKind]uint64),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

var _ ChainObserver = (*EventPoller)(nil)

// Start 在后台运行轮询器
func (p *EventPoller) Start(ctx context.Context) error {
	if p.done != nil {
		return errors.New("event poller already started")
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.err = p.Run(ctx)
	}()
	return nil
}

// Stop 取消轮询并等待确认任务退出
func (p *EventPoller) Stop() error {
	if p.done == nil {
		return nil
	}
	p.cancel()
	<-p.done
	return p.err
}

// Run 阻塞运行直到 ctx 取消, 返回前等待所有确认任务退出
func (p *EventPoller) Run(ctx context.Context) error {
	logger.Info("启动事件轮询",
		zap.Int("kinds", len(p.cfg.Kinds)),
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Duration("confirm_interval", p.cfg.ConfirmInterval),
		zap.Int("max_waiters", p.cfg.MaxWaiters))

	g, gCtx := errgroup.WithContext(ctx)
	for _, kind := range p.cfg.Kinds {
		g.Go(func() error {
			return p.pollLoop(gCtx, kind)
		})
	}
	err := g.Wait()

	p.waiters.Wait()
	logger.Info("事件轮询已停止")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *EventPoller) Cursor(kind model.EventKind) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cursors[kind]
	return c, ok
}

func (p *EventPoller) setCursor(kind model.EventKind, c uint64) {
	p.mu.Lock()
	p.cursors[kind] = c
	p.mu.Unlock()
}

// pollLoop 节点错误只记录日志, 下一个周期重试, 循环只因 ctx 结束而退出
func (p *EventPoller) pollLoop(ctx context.Context, kind model.EventKind) error {
	log := logger.With(zap.String("kind", string(kind)))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx, kind, log)

		select {
		case <-ctx.Done():
			log.Info("轮询循环退出")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *EventPoller) pollOnce(ctx context.Context, kind model.EventKind, log *zap.Logger) {
	// 1. 首次启动时以最新高度作为游标
	cursor, ok := p.Cursor(kind)
	if !ok {
		head, err := p.client.BlockHeight(ctx)
		if err != nil {
			p.pollFailed(ctx, kind, log, err)
			return
		}
		p.setCursor(kind, head)
		p.reportNode(true)
		log.Info("轮询起始高度", zap.Uint64("cursor", head))
		return
	}

	// 2. 拉取 (cursor, head] 区间的新事件
	events, next, err := p.client.PollNewEvents(ctx, kind, cursor)
	if err != nil {
		p.pollFailed(ctx, kind, log, err)
		return
	}
	p.reportNode(true)
	p.setCursor(kind, next)

	// 3. 每个相关事件交给一个确认任务
	for _, ev := range events {
		monitor.Business.EventsDiscovered.WithLabelValues(string(kind)).Inc()
		if !p.relevant(ev) {
			monitor.Business.EventsDropped.WithLabelValues(string(kind)).Inc()
			continue
		}
		if !p.dispatch(ctx, ev) {
			return
		}
	}
}

func (p *EventPoller) pollFailed(ctx context.Context, kind model.EventKind, log *zap.Logger, err error) {
	if ctx.Err() != nil {
		return
	}
	monitor.Business.PollErrorsTotal.WithLabelValues(string(kind)).Inc()
	p.reportNode(false)
	log.Warn("轮询事件失败, 下个周期重试", zap.Error(err))
}

func (p *EventPoller) reportNode(healthy bool) {
	if p.health != nil {
		p.health.ReportNode(healthy)
	}
}

// relevant 转交事件只有新 owner 在订阅列表中才上报, 其余事件全部上报
func (p *EventPoller) relevant(ev model.LedgerEvent) bool {
	newOwner, ok := ev.NewOwner()
	if !ok {
		return true
	}
	return p.watch.IsSubscribed(newOwner)
}

// dispatch 获取许可后启动确认任务, ctx 结束时返回 false
func (p *EventPoller) dispatch(ctx context.Context, ev model.LedgerEvent) bool {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	kind := string(ev.Kind())
	monitor.Business.PendingWaiters.WithLabelValues(kind).Inc()
	p.waiters.Add(1)
	go func() {
		defer func() {
			<-p.sem
			monitor.Business.PendingWaiters.WithLabelValues(kind).Dec()
			p.waiters.Done()
		}()
		p.awaitFinality(ctx, ev)
	}()
	return true
}

func (p *EventPoller) awaitFinality(ctx context.Context, ev model.LedgerEvent) {
	log := logger.With(
		zap.String("kind", string(ev.Kind())),
		zap.Uint64("product_id", ev.ProductID),
		zap.Uint64("block", ev.BlockNumber),
		zap.String("tx_hash", ev.TxHash.Hex()))
	started := time.Now()

	if p.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(p.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		final, err := p.tracker.HasMinConfirmations(ctx, ev.BlockNumber, ev.TxHash)
		if err != nil && ctx.Err() == nil {
			log.Debug("查询确认数失败, 稍后重试", zap.Error(err))
		}
		if final {
			break
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				monitor.Business.EventsAbandoned.WithLabelValues(string(ev.Kind())).Inc()
				log.Warn("等待确认超时, 放弃该事件", zap.Duration("timeout", p.cfg.ConfirmTimeout))
			}
			return
		case <-ticker.C:
		}
	}

	monitor.Business.ConfirmationWait.WithLabelValues(string(ev.Kind())).Observe(time.Since(started).Seconds())
	if err := p.sink.Emit(ctx, ev); err != nil {
		log.Error("投递最终确认事件失败", zap.Error(err))
		return
	}
	monitor.Business.EventsFinalized.WithLabelValues(string(ev.Kind())).Inc()
}
