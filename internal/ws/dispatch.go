package ws

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// next 分发一步
// 接收一帧并分类：心跳立即应答，解码失败记录后跳过，两者都返回 (nil, nil)；
// 确认、推送、无关帧交给调用方。单次等待超时同样返回 (nil, nil)。
// 参数 ctx: 上下文
// 参数 wait: 本次等待时限
func (c *Conn) next(ctx context.Context, wait time.Duration) (*Frame, error) {
	raw, err := c.Receive(ctx, wait)
	if err != nil {
		if errors.Is(err, errNoFrame) {
			return nil, nil
		}
		return nil, err
	}

	frame, err := Classify(raw)
	if err != nil {
		c.bump(func(m *ConnectionMetrics) { m.DecodeErrors++ })
		c.logger.Warn("消息解码失败，已跳过", zap.Error(err), zap.ByteString("data", sample(raw)))
		return nil, nil
	}

	if frame.Kind == FrameHeartbeat {
		if err := c.Send(HeartbeatReply{ID: frame.ID, Method: MethodRespondHeartbeat}); err != nil {
			return nil, err
		}
		c.bump(func(m *ConnectionMetrics) { m.HeartbeatsAnswered++ })
		c.logger.Debug("已应答心跳", zap.Int64("id", frame.ID))
		return nil, nil
	}

	return frame, nil
}
