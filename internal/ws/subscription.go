package ws

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Ack 订阅/取消订阅确认
type Ack struct {
	// ID 关联 ID
	ID int64 `json:"id"`
	// Method 方法
	Method string `json:"method"`
	// Code 状态码，0 表示成功
	Code int64 `json:"code"`
	// Channel 回显的频道（可能为空）
	Channel string `json:"channel,omitempty"`
	// Message 错误说明（可能为空）
	Message string `json:"message,omitempty"`
}

// OK 是否成功
func (a *Ack) OK() bool {
	return a.Code == 0
}

// Err 拒绝时返回 *RejectedError，成功时返回 nil
func (a *Ack) Err() error {
	if a.OK() {
		return nil
	}
	return &RejectedError{Method: a.Method, ID: a.ID, Code: a.Code, Message: a.Message}
}

// Subscribe 订阅主题并等待确认
// 服务端拒绝时仍返回 Ack（Code 非零），由调用方断言具体错误码
// 参数 ctx: 上下文
// 参数 topics: 主题列表
// 参数 timeout: 等待确认时限
func (c *Conn) Subscribe(ctx context.Context, topics []string, timeout time.Duration) (*Ack, error) {
	return c.request(ctx, MethodSubscribe, topics, timeout)
}

// Unsubscribe 取消订阅并等待确认
func (c *Conn) Unsubscribe(ctx context.Context, topics []string, timeout time.Duration) (*Ack, error) {
	return c.request(ctx, MethodUnsubscribe, topics, timeout)
}

// request 发送请求并等待关联 ID 与方法都匹配的确认
func (c *Conn) request(ctx context.Context, method string, topics []string, timeout time.Duration) (*Ack, error) {
	if len(topics) == 0 || timeout <= 0 {
		return nil, fmt.Errorf("%w: topics=%d, timeout=%s", ErrInvalidArgument, len(topics), timeout)
	}

	id := c.NextID()
	req := SubscribeRequest{
		ID:     id,
		Method: method,
		Params: SubscribeParams{Channels: topics},
		Nonce:  time.Now().UnixMilli(),
	}
	if err := c.Send(req); err != nil {
		return nil, err
	}
	c.logger.Info("请求已发送", zap.String("method", method), zap.Int64("id", id), zap.Strings("topics", topics))

	start := time.Now()
	for {
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			return nil, &TimeoutError{Method: method, ID: id, Topics: topics, Timeout: timeout}
		}

		frame, err := c.next(ctx, min(c.recvTimeout, remaining))
		if err != nil {
			return nil, err
		}
		if frame == nil {
			continue
		}

		switch frame.Kind {
		case FrameAck:
			if frame.ID == id && frame.Method == method {
				ack := &Ack{ID: frame.ID, Method: frame.Method, Code: frame.Code, Channel: frame.Channel, Message: frame.Message}
				c.logger.Info("收到确认",
					zap.String("method", method),
					zap.Int64("id", id),
					zap.Int64("code", ack.Code),
					zap.String("message", ack.Message))
				return ack, nil
			}
			c.bump(func(m *ConnectionMetrics) { m.UnmatchedAcks++ })
			c.logger.Warn("丢弃不匹配的确认",
				zap.Int64("want_id", id),
				zap.Int64("id", frame.ID),
				zap.String("method", frame.Method))
		case FrameData:
			c.bump(func(m *ConnectionMetrics) { m.EarlyPushes++ })
			c.logger.Debug("确认前收到推送，已丢弃", zap.String("subscription", frame.Push.Subscription))
		default:
			c.bump(func(m *ConnectionMetrics) { m.UnrelatedDiscarded++ })
			c.logger.Debug("丢弃无关帧", zap.ByteString("data", sample(frame.Raw)))
		}
	}
}
