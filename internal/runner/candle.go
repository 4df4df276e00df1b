package runner

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"market-api-conformance/internal/candle"
	"market-api-conformance/internal/cases"
	"market-api-conformance/internal/report"
	"market-api-conformance/internal/stats/latency"
	"market-api-conformance/internal/util/timeutil"
)

// responseRecord 落盘的响应摘要
type responseRecord struct {
	URL        string  `json:"url"`
	StatusCode int     `json:"status_code"`
	LatencyMs  float64 `json:"latency_ms"`
	// Body 合法 JSON 原样嵌入，否则以字符串保存
	Body any `json:"body"`
}

func newResponseRecord(resp *candle.Response) responseRecord {
	rec := responseRecord{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		LatencyMs:  timeutil.DurationMs(resp.Latency),
	}
	if json.Valid(resp.Body) {
		rec.Body = json.RawMessage(resp.Body)
	} else {
		rec.Body = string(resp.Body)
	}
	return rec
}

// runCandle 执行 K线用例
func (r *Runner) runCandle(ctx context.Context, cc *cases.CandleCase) report.Result {
	res := newResult(cc.ID, cases.KindCandle)
	logger := r.logger.With(zap.String("case_id", cc.ID))

	var last *candle.Response
	for i := 0; i < cc.Runs(); i++ {
		resp, err := r.client.GetCandles(ctx, cc.Query())
		if err != nil {
			fail(&res, "第 %d 次请求失败: %v", i+1, err)
			return res
		}
		r.tracker.Add(cc.ID, resp.Latency)
		r.rec.Save(cc.ID, "response", newResponseRecord(resp))

		if err := r.checkResponse(cc, resp, logger); err != nil {
			fail(&res, "第 %d 次请求: %v", i+1, err)
			return res
		}
		if limit := cc.Expected.MaxResponseTimeMs; limit > 0 {
			if ms := timeutil.DurationMs(resp.Latency); ms > limit {
				fail(&res, "响应时间超标: 期望 <= %.0f ms，实际 %.2f ms", limit, ms)
				return res
			}
		}
		last = resp
	}

	res.Counts["status_code"] = int64(last.StatusCode)
	res.Counts["candles"] = int64(len(last.Data()))
	res.Counts["requests"] = int64(cc.Runs())

	if cc.Category == "performance" || cc.Expected.MaxResponseTimeMs > 0 {
		stats := r.tracker.Stats(cc.ID)
		res.Latency = &stats
		r.checkPerformance(&res, cc, stats, logger)
	}
	return res
}

// checkResponse 状态码、业务码、数据存在性与按需的数据校验
func (r *Runner) checkResponse(cc *cases.CandleCase, resp *candle.Response, logger *zap.Logger) error {
	exp := cc.Expected
	if err := candle.ValidateStatus(resp, exp.StatusCode); err != nil {
		return err
	}
	if exp.Code != nil {
		if err := candle.ValidateCode(resp, *exp.Code); err != nil {
			return err
		}
	}

	data := resp.Data()
	if exp.HasData {
		var err error
		if data, err = candle.DataExists(resp); err != nil {
			return err
		}
	}
	if err := candle.ValidateCount(data, exp.ExactCount, exp.MaxDataPoints); err != nil {
		return err
	}
	if err := candle.ValidateMinCount(data, exp.MinDataPoints); err != nil {
		return err
	}
	if exp.DefaultCount > 0 {
		logger.Info("默认条数", zap.Int("documented", exp.DefaultCount), zap.Int("actual", len(data)))
	}

	checks := cc.Checks
	if checks.Candles {
		if err := candle.ValidateStructure(data); err != nil {
			return err
		}
		if err := candle.ValidatePriceLogic(data); err != nil {
			return err
		}
		if err := candle.ValidateTimestampOrder(data); err != nil {
			return err
		}
	}
	if checks.Interval || checks.Continuity {
		step, _ := candle.TimeframeInterval(cc.Timeframe())
		if checks.Interval {
			if err := candle.ValidateInterval(data, step, checks.Tolerance); err != nil {
				return err
			}
		}
		if checks.Continuity {
			if err := candle.ValidateContinuity(data, step, checks.Tolerance); err != nil {
				return err
			}
		}
	}
	if checks.Completeness {
		if err := candle.ValidateCompleteness(data); err != nil {
			return err
		}
	}
	return nil
}

// checkPerformance 均值与分位数预算在样本数 >= 2 时校验，否则只记录
func (r *Runner) checkPerformance(res *report.Result, cc *cases.CandleCase, stats latency.Stats, logger *zap.Logger) {
	logger.Info("响应时延统计",
		zap.Int64("count", stats.Count),
		zap.Float64("p50_ms", stats.P50Ms),
		zap.Float64("p90_ms", stats.P90Ms),
		zap.Float64("p95_ms", stats.P95Ms),
		zap.Float64("p99_ms", stats.P99Ms),
		zap.Float64("max_ms", stats.MaxMs),
		zap.Float64("mean_ms", stats.MeanMs))

	if stats.Count < 2 {
		return
	}
	if limit := cc.Expected.AvgResponseTimeMs; limit > 0 && stats.MeanMs > limit {
		fail(res, "平均响应时间超标: 期望 <= %.0f ms，实际 %.2f ms", limit, stats.MeanMs)
		return
	}
	p := cc.Performance
	if p == nil {
		return
	}
	for _, b := range []struct {
		name   string
		budget float64
		actual float64
	}{
		{"P50", p.P50, stats.P50Ms},
		{"P90", p.P90, stats.P90Ms},
		{"P95", p.P95, stats.P95Ms},
		{"P99", p.P99, stats.P99Ms},
	} {
		if b.budget > 0 && b.actual > b.budget {
			fail(res, "%s 响应时间超标: 期望 <= %.0f ms，实际 %.2f ms", b.name, b.budget, b.actual)
			return
		}
	}
}
