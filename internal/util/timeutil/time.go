// Package timeutil 提供时间相关的工具函数。
// 主要用于报告记录的时间戳、延迟换算与相对时间区间的解析。
package timeutil

import (
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// 使用“单调时钟 + 启动时 Unix 时间”组合实现，系统时间跳变时时间差仍保持单调。
// 返回: 当前时间的 Unix 纳秒时间戳
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NowMs 获取当前时间的毫秒时间戳
// 返回: 当前时间的 Unix 毫秒时间戳
func NowMs() int64 {
	return NowNano() / 1_000_000
}

// OffsetMs 以当前时间为基准偏移后的毫秒时间戳
// 参数 d: 偏移量，负数表示过去
// 返回: Unix 毫秒时间戳
func OffsetMs(d time.Duration) int64 {
	return NowMs() + d.Milliseconds()
}

// MsToTime 将毫秒时间戳转换为 time.Time
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// DurationMs 将时长换算为毫秒（浮点数以保留精度）
func DurationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
