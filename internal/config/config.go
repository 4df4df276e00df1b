// Package config 负责加载和验证 YAML 配置文件。
// 提供一致性测试所需的全部配置项，包括 WebSocket 连接、REST 接口、输出目录和用例文件等。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量覆盖项（可写入 .env）
const (
	// EnvWSURL 覆盖 ws.url
	EnvWSURL = "CONFORMANCE_WS_URL"
	// EnvRESTBaseURL 覆盖 rest.base_url
	EnvRESTBaseURL = "CONFORMANCE_REST_BASE_URL"
	// EnvLogLevel 覆盖 app.log_level
	EnvLogLevel = "CONFORMANCE_LOG_LEVEL"
	// EnvRequestTimeout 覆盖 rest.timeout_ms（单位秒）
	EnvRequestTimeout = "REQUEST_TIMEOUT"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// WS WebSocket 行情接口配置
	WS WSConfig `yaml:"ws"`
	// REST K线 REST 接口配置
	REST RESTConfig `yaml:"rest"`
	// Output 报告输出配置
	Output OutputConfig `yaml:"output"`
	// Cases 测试用例表配置
	Cases CasesConfig `yaml:"cases"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// LogFile 日志文件路径，为空则只输出到标准输出
	LogFile string `yaml:"log_file"`
	// LogMaxSizeMB 单个日志文件最大体积（MB）
	LogMaxSizeMB int `yaml:"log_max_size_mb"`
	// LogMaxAgeDays 日志文件保留天数
	LogMaxAgeDays int `yaml:"log_max_age_days"`
}

// WSConfig WebSocket 行情接口配置
type WSConfig struct {
	// URL WebSocket 连接地址
	URL string `yaml:"url"`
	// ConnectTimeoutMs 建连超时（毫秒），同时作为握手超时
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
	// ConnectAttempts 建连尝试次数（调用方重试，核心不重试）
	ConnectAttempts int `yaml:"connect_attempts"`
	// AckTimeoutMs 订阅/取消订阅确认的等待上限（毫秒）
	AckTimeoutMs int `yaml:"ack_timeout_ms"`
	// RecvTimeoutMs 单次接收等待（毫秒），必须小于采集总时限
	RecvTimeoutMs int `yaml:"recv_timeout_ms"`
	// CollectDeadlineMs 数据采集总时限（毫秒）
	CollectDeadlineMs int `yaml:"collect_deadline_ms"`
}

// RESTConfig K线 REST 接口配置
type RESTConfig struct {
	// BaseURL REST 基础地址
	BaseURL string `yaml:"base_url"`
	// CandlestickPath K线接口路径
	CandlestickPath string `yaml:"candlestick_path"`
	// TimeoutMs HTTP 请求超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// RequestsPerSec 请求速率上限
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	// Burst 突发请求数
	Burst int `yaml:"burst"`
}

// OutputConfig 报告输出配置
type OutputConfig struct {
	// Dir 输出根目录，每次运行在其下创建一个 run id 子目录
	Dir string `yaml:"dir"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// CasesConfig 用例表配置
type CasesConfig struct {
	// File 用例 YAML 文件，为空则使用内置用例
	File string `yaml:"file"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// .env 不存在时忽略
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// applyEnv 使用环境变量覆盖配置
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvWSURL); v != "" {
		c.WS.URL = v
	}
	if v := os.Getenv(EnvRESTBaseURL); v != "" {
		c.REST.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("环境变量 %s 不是整数: %w", EnvRequestTimeout, err)
		}
		c.REST.TimeoutMs = sec * 1000
	}
	return nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "market-api-conformance"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogMaxSizeMB == 0 {
		c.App.LogMaxSizeMB = 100
	}
	if c.App.LogMaxAgeDays == 0 {
		c.App.LogMaxAgeDays = 7
	}

	if c.WS.URL == "" {
		c.WS.URL = "wss://stream.crypto.com/exchange/v1/market"
	}
	if c.WS.ConnectTimeoutMs == 0 {
		c.WS.ConnectTimeoutMs = 30000 // 30 秒
	}
	if c.WS.ConnectAttempts == 0 {
		c.WS.ConnectAttempts = 3
	}
	if c.WS.AckTimeoutMs == 0 {
		c.WS.AckTimeoutMs = 30000 // 30 秒
	}
	if c.WS.RecvTimeoutMs == 0 {
		c.WS.RecvTimeoutMs = 1000 // 1 秒
	}
	if c.WS.CollectDeadlineMs == 0 {
		c.WS.CollectDeadlineMs = 20000 // 20 秒
	}

	if c.REST.BaseURL == "" {
		c.REST.BaseURL = "https://api.crypto.com/exchange/v1"
	}
	if c.REST.CandlestickPath == "" {
		c.REST.CandlestickPath = "/public/get-candlestick"
	}
	if c.REST.TimeoutMs == 0 {
		c.REST.TimeoutMs = 30000
	}
	if c.REST.RequestsPerSec == 0 {
		c.REST.RequestsPerSec = 10
	}
	if c.REST.Burst == 0 {
		c.REST.Burst = 1
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./reports"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	if !strings.HasPrefix(c.WS.URL, "ws://") && !strings.HasPrefix(c.WS.URL, "wss://") {
		errs = append(errs, fmt.Sprintf("ws.url: 必须以 ws:// 或 wss:// 开头，当前值: '%s'", c.WS.URL))
	}
	if c.WS.ConnectTimeoutMs <= 0 {
		errs = append(errs, "ws.connect_timeout_ms: 建连超时必须为正数")
	}
	if c.WS.ConnectAttempts <= 0 {
		errs = append(errs, "ws.connect_attempts: 建连次数必须为正数")
	}
	if c.WS.AckTimeoutMs <= 0 {
		errs = append(errs, "ws.ack_timeout_ms: 确认超时必须为正数")
	}
	if c.WS.RecvTimeoutMs <= 0 {
		errs = append(errs, "ws.recv_timeout_ms: 单次接收超时必须为正数")
	}
	if c.WS.CollectDeadlineMs <= 0 {
		errs = append(errs, "ws.collect_deadline_ms: 采集总时限必须为正数")
	}
	if c.WS.RecvTimeoutMs > 0 && c.WS.CollectDeadlineMs > 0 && c.WS.RecvTimeoutMs >= c.WS.CollectDeadlineMs {
		errs = append(errs, fmt.Sprintf("ws.recv_timeout_ms: 必须小于 collect_deadline_ms（%d >= %d）", c.WS.RecvTimeoutMs, c.WS.CollectDeadlineMs))
	}

	if !strings.HasPrefix(c.REST.BaseURL, "http://") && !strings.HasPrefix(c.REST.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("rest.base_url: 必须以 http:// 或 https:// 开头，当前值: '%s'", c.REST.BaseURL))
	}
	if c.REST.TimeoutMs <= 0 {
		errs = append(errs, "rest.timeout_ms: 请求超时必须为正数")
	}
	if c.REST.RequestsPerSec <= 0 {
		errs = append(errs, "rest.requests_per_sec: 请求速率必须为正数")
	}
	if c.REST.Burst <= 0 {
		errs = append(errs, "rest.burst: 突发请求数必须为正数")
	}

	if c.Output.BufferSize < 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小不能为负数")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ConnectTimeout 建连超时
func (w *WSConfig) ConnectTimeout() time.Duration {
	return time.Duration(w.ConnectTimeoutMs) * time.Millisecond
}

// AckTimeout 确认等待上限
func (w *WSConfig) AckTimeout() time.Duration {
	return time.Duration(w.AckTimeoutMs) * time.Millisecond
}

// RecvTimeout 单次接收等待
func (w *WSConfig) RecvTimeout() time.Duration {
	return time.Duration(w.RecvTimeoutMs) * time.Millisecond
}

// CollectDeadline 采集总时限
func (w *WSConfig) CollectDeadline() time.Duration {
	return time.Duration(w.CollectDeadlineMs) * time.Millisecond
}

// Timeout HTTP 请求超时
func (r *RESTConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// CandlestickURL 完整 K线接口地址
func (r *RESTConfig) CandlestickURL() string {
	return strings.TrimRight(r.BaseURL, "/") + r.CandlestickPath
}
