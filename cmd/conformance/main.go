// Package main 是行情接口一致性测试的入口点。
// 按用例表依次执行订单簿订阅用例与 K线 REST 用例，
// 每次运行的过程数据与结论写入 <output.dir>/<run-id>/ 下的 JSONL 文件。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"market-api-conformance/internal/cases"
	"market-api-conformance/internal/config"
	"market-api-conformance/internal/logging"
	"market-api-conformance/internal/report"
	"market-api-conformance/internal/runner"
)

// caseIDs 可重复的 -case 参数，每个值可以是逗号分隔的列表
type caseIDs []string

func (c *caseIDs) String() string {
	return strings.Join(*c, ",")
}

func (c *caseIDs) Set(v string) error {
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			*c = append(*c, id)
		}
	}
	return nil
}

func main() {
	os.Exit(run())
}

// run 执行一次完整运行
// 返回: 进程退出码，全部通过为 0
func run() int {
	var (
		configPath string
		kindFlag   string
		ids        caseIDs
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&kindFlag, "kind", "all", "用例类别: orderbook, candle, all")
	flag.Var(&ids, "case", "要执行的用例 ID，逗号分隔，可重复")
	flag.Parse()

	kind, err := cases.ParseKind(kindFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.App)
	defer logger.Sync()

	table, err := cases.Load(cfg.Cases.File)
	if err != nil {
		logger.Error("加载用例失败", zap.Error(err))
		return 1
	}
	selected, err := table.Select(ids, kind)
	if err != nil {
		logger.Error("筛选用例失败", zap.Error(err))
		return 1
	}
	if len(selected) == 0 {
		logger.Warn("没有匹配的用例", zap.Strings("case", ids), zap.String("kind", kindFlag))
		return 0
	}

	rec, err := report.NewRecorder(cfg.Output, logger)
	if err != nil {
		logger.Error("创建报告记录器失败", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，当前用例完成清理后停止
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer ossignal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("收到退出信号，停止执行剩余用例")
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("开始运行",
		zap.String("run_id", rec.RunID()),
		zap.String("dir", rec.Dir()),
		zap.Int("cases", len(selected)))

	results := runner.New(cfg, rec, logger).Run(ctx, selected)

	summary, err := rec.Close()
	if err != nil {
		logger.Error("关闭报告记录器失败", zap.Error(err))
	}
	logger.Info("运行结束",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Strings("failed_ids", summary.FailedIDs),
		zap.Int64("dropped_steps", summary.DroppedSteps))

	if summary.Failed > 0 || len(results) < len(selected) || err != nil {
		return 1
	}
	return 0
}
