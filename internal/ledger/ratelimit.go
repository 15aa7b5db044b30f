package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alfarkas/basic-contract-interaction/pkg/monitor"

	"golang.org/x/time/rate"
)

// Limiter 令牌桶限速, 避免轮询任务打满公共节点的配额
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter rps <= 0 时不限速
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait 阻塞直到拿到一个令牌或 ctx 结束
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return errors.New("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	monitor.Business.LedgerRateLimitWaits.Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// classifyRPCError 把节点错误归类, 用作指标的 status 标签
func classifyRPCError(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrReceiptNotFound) {
		return "not_found"
	}
	if errors.Is(err, ErrContractReverted) {
		return "reverted"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "eof"):
		return "network_error"
	default:
		return "error"
	}
}

func recordCall(method string, err error) {
	monitor.Business.LedgerRPCTotal.WithLabelValues(method, classifyRPCError(err)).Inc()
}
