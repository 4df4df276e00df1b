package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Collector 在条数目标与截止时间双重约束下采集单个主题的推送
type Collector struct {
	// conn 已订阅的连接
	conn *Conn
	// recvTimeout 单次接收等待时限
	recvTimeout time.Duration
}

// NewCollector 创建采集器
// 参数 conn: 已订阅的连接
// 参数 recvTimeout: 单次接收等待时限，不大于 0 时使用连接的配置
func NewCollector(conn *Conn, recvTimeout time.Duration) *Collector {
	if recvTimeout <= 0 {
		recvTimeout = conn.recvTimeout
	}
	return &Collector{conn: conn, recvTimeout: recvTimeout}
}

// Collect 采集 target 条属于 topic 的推送
// 每轮先检查外层截止时间，再以 min(recvTimeout, 剩余时间) 等待一帧，
// 因此最迟在 deadline + recvTimeout 内返回。心跳由分发层应答，
// 其他主题的推送与无关帧被丢弃且不重置截止时间。
// 参数 ctx: 上下文
// 参数 topic: 主题
// 参数 target: 目标条数（>= 1）
// 参数 deadline: 截止时长（> 0）
// 返回: 按到达顺序的推送；未达到目标时返回 *DeadlineError，连接断开返回 *ConnectionLostError
func (c *Collector) Collect(ctx context.Context, topic string, target int, deadline time.Duration) ([]*BookPush, error) {
	if topic == "" || target < 1 || deadline <= 0 {
		return nil, fmt.Errorf("%w: topic=%q, target=%d, deadline=%s", ErrInvalidArgument, topic, target, deadline)
	}

	logger := c.conn.logger.With(zap.String("topic", topic))
	start := time.Now()
	pushes := make([]*BookPush, 0, target)

	for len(pushes) < target {
		elapsed := time.Since(start)
		if elapsed >= deadline {
			logger.Warn("采集超时", zap.Int("collected", len(pushes)), zap.Int("target", target))
			return nil, &DeadlineError{
				Topic:     topic,
				Target:    target,
				Collected: len(pushes),
				Elapsed:   elapsed,
				Deadline:  deadline,
				Partial:   pushes,
			}
		}

		frame, err := c.conn.next(ctx, min(c.recvTimeout, deadline-elapsed))
		if err != nil {
			if errors.Is(err, ErrConnectionLost) {
				return nil, &ConnectionLostError{Topic: topic, Collected: len(pushes), Err: err}
			}
			return nil, err
		}
		if frame == nil {
			continue
		}

		if frame.Kind != FrameData {
			c.conn.bump(func(m *ConnectionMetrics) { m.UnrelatedDiscarded++ })
			continue
		}
		if frame.Push.Subscription != topic {
			c.conn.bump(func(m *ConnectionMetrics) { m.OffTopicDiscarded++ })
			logger.Debug("丢弃其他主题推送", zap.String("subscription", frame.Push.Subscription))
			continue
		}

		pushes = append(pushes, frame.Push)
		c.conn.bump(func(m *ConnectionMetrics) { m.PushesAccepted++ })
	}

	logger.Info("采集完成", zap.Int("count", len(pushes)), zap.Duration("elapsed", time.Since(start)))
	return pushes, nil
}
