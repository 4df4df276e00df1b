// Package report 将每次运行的步骤记录与用例结论写入 JSONL 文件。
// 每次运行在 <output.dir>/<run-id>/ 下生成 steps.jsonl 与 results.jsonl。
package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"market-api-conformance/internal/config"
	"market-api-conformance/internal/stats/latency"
	"market-api-conformance/internal/util/timeutil"
)

const (
	// StepsFile 步骤记录文件名
	StepsFile = "steps.jsonl"
	// ResultsFile 用例结论文件名，末行为运行汇总
	ResultsFile = "results.jsonl"
)

// Step 一条步骤记录
type Step struct {
	RunID  string `json:"run_id"`
	CaseID string `json:"case_id"`
	Step   string `json:"step"`
	TsMs   int64  `json:"ts_ms"`
	Data   any    `json:"data,omitempty"`
}

// Result 一个用例的执行结论
type Result struct {
	CaseID string `json:"case_id"`
	// Kind 用例类别: orderbook 或 candle
	Kind   string `json:"kind"`
	Passed bool   `json:"passed"`
	// Reason 失败原因，通过时为空
	Reason string `json:"reason,omitempty"`
	// Counts 执行过程中的计数（推送数、K线数等）
	Counts     map[string]int64 `json:"counts,omitempty"`
	DurationMs float64          `json:"duration_ms"`
	// Latency 性能用例的响应时延统计
	Latency *latency.Stats `json:"latency,omitempty"`
}

// Summary 运行汇总
type Summary struct {
	Type       string   `json:"type"`
	RunID      string   `json:"run_id"`
	Total      int      `json:"total"`
	Passed     int      `json:"passed"`
	Failed     int      `json:"failed"`
	FailedIDs  []string `json:"failed_ids,omitempty"`
	StartedMs  int64    `json:"started_ms"`
	FinishedMs int64    `json:"finished_ms"`
	// DroppedSteps 未能写入的步骤记录数
	DroppedSteps int64 `json:"dropped_steps"`
}

// Recorder 运行记录器
// Save 为即发即忘，写入失败只记日志，不影响用例执行。
type Recorder struct {
	runID     string
	dir       string
	startedMs int64

	steps   *Writer
	results *Writer

	logger *zap.Logger

	mu      sync.Mutex
	summary Summary
}

// NewRecorder 创建运行记录器并生成 run id
// 参数 cfg: 输出配置
// 参数 logger: 日志记录器
func NewRecorder(cfg config.OutputConfig, logger *zap.Logger) (*Recorder, error) {
	runID := uuid.NewString()
	dir := filepath.Join(cfg.Dir, runID)

	steps, err := NewWriter(filepath.Join(dir, StepsFile), cfg.BufferSize)
	if err != nil {
		return nil, fmt.Errorf("创建步骤记录失败: %w", err)
	}
	results, err := NewWriter(filepath.Join(dir, ResultsFile), cfg.BufferSize)
	if err != nil {
		_ = steps.Close()
		return nil, fmt.Errorf("创建结论记录失败: %w", err)
	}

	r := &Recorder{
		runID:     runID,
		dir:       dir,
		startedMs: timeutil.NowMs(),
		steps:     steps,
		results:   results,
		logger:    logger.Named("report"),
	}
	r.logger.Info("报告目录已创建", zap.String("run_id", runID), zap.String("dir", dir))
	return r, nil
}

// RunID 本次运行的 ID
func (r *Recorder) RunID() string {
	return r.runID
}

// Dir 本次运行的输出目录
func (r *Recorder) Dir() string {
	return r.dir
}

// Save 记录一个步骤
// 参数 caseID: 用例 ID
// 参数 step: 步骤名，例如 "subscribe_ack"
// 参数 data: 任意可 JSON 编码的数据
func (r *Recorder) Save(caseID, step string, data any) {
	if r == nil {
		return
	}
	err := r.steps.Write(Step{
		RunID:  r.runID,
		CaseID: caseID,
		Step:   step,
		TsMs:   timeutil.NowMs(),
		Data:   data,
	})
	if err != nil {
		r.logger.Warn("步骤记录写入失败", zap.String("case_id", caseID), zap.String("step", step), zap.Error(err))
	}
}

// Record 记录一个用例结论并计入汇总
func (r *Recorder) Record(res Result) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	r.summary.Total++
	if res.Passed {
		r.summary.Passed++
	} else {
		r.summary.Failed++
		r.summary.FailedIDs = append(r.summary.FailedIDs, res.CaseID)
	}
	r.mu.Unlock()

	if err := r.results.Write(res); err != nil {
		return fmt.Errorf("结论写入失败: %w", err)
	}
	return nil
}

// Summary 当前汇总快照
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summary
	s.Type = "summary"
	s.RunID = r.runID
	s.StartedMs = r.startedMs
	s.FailedIDs = append([]string(nil), r.summary.FailedIDs...)
	s.DroppedSteps = r.steps.Dropped()
	return s
}

// Close 写入汇总行并关闭全部文件
// 返回: 汇总快照与关闭过程中的错误
func (r *Recorder) Close() (Summary, error) {
	if err := r.steps.Close(); err != nil {
		r.logger.Warn("步骤记录关闭失败", zap.Error(err))
	}

	s := r.Summary()
	s.FinishedMs = timeutil.NowMs()

	var errs []error
	if err := r.results.Write(s); err != nil {
		errs = append(errs, fmt.Errorf("汇总写入失败: %w", err))
	}
	if err := r.results.Close(); err != nil {
		errs = append(errs, fmt.Errorf("结论记录关闭失败: %w", err))
	}

	r.logger.Info("报告已关闭",
		zap.String("run_id", r.runID),
		zap.Int("total", s.Total),
		zap.Int("passed", s.Passed),
		zap.Int("failed", s.Failed),
		zap.Int64("dropped_steps", s.DroppedSteps))
	return s, errors.Join(errs...)
}
