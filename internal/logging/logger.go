// Package logging 构建全局使用的 zap 日志记录器。
// 标准输出使用 JSON 编码；配置了日志文件时额外写入滚动文件。
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"market-api-conformance/internal/config"
)

// New 根据应用配置创建日志记录器
// 参数 cfg: 应用基础配置（级别、日志文件、滚动参数）
// 返回: 日志记录器；级别无法识别时使用 info
func New(cfg config.AppConfig) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(cfg.LogLevel); err != nil {
		lvl = zapcore.InfoLevel
	}
	atomicLvl := zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), atomicLvl),
	}

	if cfg.LogFile != "" {
		sink := &lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxSize:  cfg.LogMaxSizeMB,
			MaxAge:   cfg.LogMaxAgeDays,
			Compress: true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), atomicLvl))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	if cfg.Name != "" {
		logger = logger.Named(cfg.Name)
	}
	return logger
}
