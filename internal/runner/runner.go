// Package runner 按用例表驱动订单簿订阅与 K线请求，并汇总结论。
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"market-api-conformance/internal/candle"
	"market-api-conformance/internal/cases"
	"market-api-conformance/internal/config"
	"market-api-conformance/internal/report"
	"market-api-conformance/internal/stats/latency"
	"market-api-conformance/internal/util/timeutil"
)

// latencyWindow 每个序列保留的样本数
const latencyWindow = 10000

// Runner 用例执行器
// 用例串行执行，每个订单簿用例独占一条 WebSocket 连接。
type Runner struct {
	cfg     *config.Config
	client  *candle.Client
	tracker *latency.Tracker
	rec     *report.Recorder
	logger  *zap.Logger
}

// New 创建用例执行器
// 参数 cfg: 已验证的配置
// 参数 rec: 报告记录器，可为 nil（不落盘）
// 参数 logger: 日志记录器
func New(cfg *config.Config, rec *report.Recorder, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		client:  candle.NewClient(&cfg.REST, logger),
		tracker: latency.NewTracker(latencyWindow),
		rec:     rec,
		logger:  logger.Named("runner"),
	}
}

// Tracker 响应时延统计
func (r *Runner) Tracker() *latency.Tracker {
	return r.tracker
}

// Run 依次执行用例并记录结论
// 上下文取消后不再开始新用例，已开始的用例仍完成清理
func (r *Runner) Run(ctx context.Context, cs []cases.Case) []report.Result {
	results := make([]report.Result, 0, len(cs))
	for i, c := range cs {
		if ctx.Err() != nil {
			r.logger.Warn("运行已取消，跳过剩余用例", zap.Int("remaining", len(cs)-i))
			break
		}

		res := r.RunCase(ctx, c)
		if err := r.rec.Record(res); err != nil {
			r.logger.Warn("结论记录失败", zap.String("case_id", res.CaseID), zap.Error(err))
		}
		if res.Passed {
			r.logger.Info("用例通过", zap.String("case_id", res.CaseID), zap.Float64("duration_ms", res.DurationMs))
		} else {
			r.logger.Error("用例失败", zap.String("case_id", res.CaseID), zap.String("reason", res.Reason))
		}
		results = append(results, res)
	}
	return results
}

// RunCase 执行单个用例
func (r *Runner) RunCase(ctx context.Context, c cases.Case) report.Result {
	r.logger.Info("开始执行用例",
		zap.String("case_id", c.ID()),
		zap.String("kind", string(c.Kind)),
		zap.String("description", c.Description()))

	start := time.Now()
	var res report.Result
	switch {
	case c.Kind == cases.KindOrderBook && c.Book != nil:
		res = r.runBook(ctx, c.Book)
	case c.Kind == cases.KindCandle && c.Candle != nil:
		res = r.runCandle(ctx, c.Candle)
	default:
		res = newResult(c.ID(), c.Kind)
		fail(&res, "未知用例类别 %q", c.Kind)
	}
	res.DurationMs = timeutil.DurationMs(time.Since(start))
	return res
}

func newResult(id string, kind cases.Kind) report.Result {
	return report.Result{
		CaseID: id,
		Kind:   string(kind),
		Passed: true,
		Counts: make(map[string]int64),
	}
}

// fail 标记失败，只保留第一个原因
func fail(res *report.Result, format string, args ...any) {
	if !res.Passed {
		return
	}
	res.Passed = false
	res.Reason = fmt.Sprintf(format, args...)
}
