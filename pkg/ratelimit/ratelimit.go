package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter 令牌桶限速器。nil Limiter 表示不限速。
type Limiter struct {
	l *rate.Limiter
}

// New 每秒 rps 个请求，突发 burst；rps <= 0 返回 nil（不限速）
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait 阻塞直到拿到令牌或 ctx 结束
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return l.l.Wait(ctx)
}

// Allow 非阻塞取令牌
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.l.Allow()
}
