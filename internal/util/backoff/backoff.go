// Package backoff 实现指数退避与有限次数重试。
// 用于建连失败后的重试间隔计算，避免对服务端连续发起握手。
// 默认基础间隔 500ms，最大间隔 5s，抖动 ±20%
package backoff

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Backoff 指数退避计算器
// 每次调用 Next() 返回下一次重试的等待时间，按指数增长直到达到最大值。
// 非并发安全，每个重试流程独占一个实例。
type Backoff struct {
	// base 基础等待时间
	base time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1），例如 0.2 表示 ±20%
	jitter float64
	// attempt 已计算的重试次数
	attempt int
}

// New 创建新的退避计算器
// 参数 base: 基础等待时间
// 参数 max: 最大等待时间
// 参数 jitter: 抖动比例，超出 [0,1] 时截断
func New(base, max time.Duration, jitter float64) *Backoff {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Backoff{base: base, max: max, jitter: jitter}
}

// NewDefault 创建默认配置的退避计算器
func NewDefault() *Backoff {
	return New(500*time.Millisecond, 5*time.Second, 0.2)
}

// Next 获取下次重试的等待时间
// 计算公式: min(base * 2^attempt, max)，然后应用抖动
func (b *Backoff) Next() time.Duration {
	delay := b.max
	// 位移超过 30 位后必然超过 max，避免溢出
	if b.attempt < 31 {
		if d := b.base * time.Duration(int64(1)<<b.attempt); d > 0 && d < b.max {
			delay = d
		}
	}

	if b.jitter > 0 {
		factor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}

	b.attempt++
	return delay
}

// Reset 重置重试次数
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 获取已计算的重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Wait 等待 Next() 给出的时长
// 返回: 上下文取消时返回 ctx.Err()
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry 最多执行 attempts 次 fn，两次之间按退避等待
// 参数 fn: 第 n 次（从 1 开始）执行的操作
// 返回: 首次成功时返回 nil；全部失败时返回包装最后一次错误的错误
func Retry(ctx context.Context, attempts int, b *Backoff, fn func(attempt int) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if lastErr = fn(i); lastErr == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if err := b.Wait(ctx); err != nil {
			return fmt.Errorf("重试等待被取消（已尝试 %d 次）: %w", i, lastErr)
		}
	}
	return fmt.Errorf("重试 %d 次后仍失败: %w", attempts, lastErr)
}
