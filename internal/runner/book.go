package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"market-api-conformance/internal/cases"
	"market-api-conformance/internal/orderbook"
	"market-api-conformance/internal/report"
	"market-api-conformance/internal/util/backoff"
	"market-api-conformance/internal/ws"
)

// runBook 执行订单簿用例：建连、订阅、采集、校验、取消订阅、断开
func (r *Runner) runBook(ctx context.Context, bc *cases.BookCase) (res report.Result) {
	res = newResult(bc.ID, cases.KindOrderBook)
	logger := r.logger.With(zap.String("case_id", bc.ID))

	conn := ws.NewConn(&r.cfg.WS, r.logger)
	err := backoff.Retry(ctx, r.cfg.WS.ConnectAttempts, backoff.NewDefault(), func(attempt int) error {
		err := conn.Connect(ctx)
		if err != nil {
			logger.Warn("建连失败", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	if err != nil {
		fail(&res, "建连失败: %v", err)
		return res
	}
	defer func() {
		m := conn.Metrics()
		res.Counts["heartbeats"] = m.HeartbeatsAnswered
		res.Counts["frames"] = m.FramesReceived
		res.Counts["decode_errors"] = m.DecodeErrors
		r.rec.Save(bc.ID, "connection_metrics", m)
		if err := conn.Disconnect(); err != nil {
			logger.Warn("断开连接失败", zap.Error(err))
		}
	}()

	topics := bc.Topics()
	ack, err := conn.Subscribe(ctx, topics, r.cfg.WS.AckTimeout())
	if err != nil {
		fail(&res, "订阅未获确认: %v", err)
		return res
	}
	r.rec.Save(bc.ID, "subscribe_ack", ack)

	if !bc.Expected.SubscriptionSuccess {
		switch {
		case ack.OK():
			fail(&res, "期望订阅被拒绝，实际成功")
		case bc.Expected.ErrorCode != 0 && ack.Code != bc.Expected.ErrorCode:
			fail(&res, "期望错误码 %d，实际 %d（%s）", bc.Expected.ErrorCode, ack.Code, ack.Message)
		}
		return res
	}
	if err := ws.ValidateAck(ack, ws.MethodSubscribe, topics); err != nil {
		fail(&res, "订阅确认校验失败: %v", err)
		return res
	}

	if target := bc.PerTopicTarget(); target > 0 {
		collector := ws.NewCollector(conn, r.cfg.WS.RecvTimeout())
		for i, ch := range bc.Channels() {
			topic := topics[i]
			pushes, err := collector.Collect(ctx, topic, target, r.cfg.WS.CollectDeadline())
			if err != nil {
				fail(&res, "采集 %s 失败: %v", topic, err)
				return res
			}
			res.Counts["pushes"] += int64(len(pushes))

			for j, p := range pushes {
				r.rec.Save(bc.ID, "push", p)
				if err := checkPush(p, topic, ch.Depth, bc.Expected); err != nil {
					fail(&res, "%s 第 %d 条推送: %v", topic, j, err)
					return res
				}
			}
			logger.Info("采集完成", zap.String("topic", topic), zap.Int("pushes", len(pushes)))
		}
	}

	if bc.Expected.UnsubscribeSuccess {
		ack, err := conn.Unsubscribe(ctx, topics, r.cfg.WS.AckTimeout())
		if err != nil {
			fail(&res, "取消订阅未获确认: %v", err)
			return res
		}
		r.rec.Save(bc.ID, "unsubscribe_ack", ack)
		if err := ws.ValidateAck(ack, ws.MethodUnsubscribe, topics); err != nil {
			fail(&res, "取消订阅确认校验失败: %v", err)
			return res
		}
	}
	return res
}

// checkPush 推送结构与每个快照内容的校验
func checkPush(p *ws.BookPush, topic string, depth int, exp cases.BookExpected) error {
	if err := ws.ValidatePush(p, topic, depth); err != nil {
		return err
	}
	for i := range p.Data {
		s := &p.Data[i]
		if err := orderbook.CheckDepth(s, depth); err != nil {
			return fmt.Errorf("快照 %d: %w", i, err)
		}
		if err := orderbook.CheckLevels(s); err != nil {
			return fmt.Errorf("快照 %d: %w", i, err)
		}
		if err := orderbook.Validate(s); err != nil {
			return fmt.Errorf("快照 %d: %w", i, err)
		}
		if len(s.Bids) < exp.MinBids || len(s.Asks) < exp.MinAsks {
			return fmt.Errorf("快照 %d: 档位不足（bids %d < %d 或 asks %d < %d）",
				i, len(s.Bids), exp.MinBids, len(s.Asks), exp.MinAsks)
		}
	}
	return nil
}
