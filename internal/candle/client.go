package candle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"market-api-conformance/internal/config"
)

const userAgent = "market-api-conformance/1.0"

// Client K线接口客户端
// 请求经 rate.Limiter 限速；失败不重试。
type Client struct {
	// endpoint 完整接口地址
	endpoint string
	// httpClient HTTP 客户端
	httpClient *http.Client
	// limiter 请求限速器
	limiter *rate.Limiter
	// logger 日志记录器
	logger *zap.Logger
}

// NewClient 创建 K线接口客户端
// 参数 cfg: REST 配置
// 参数 logger: 日志记录器
func NewClient(cfg *config.RESTConfig, logger *zap.Logger) *Client {
	return &Client{
		endpoint:   cfg.CandlestickURL(),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), max(cfg.Burst, 1)),
		logger:     logger.Named("candle"),
	}
}

// GetCandles 请求 K线数据
// 参数 params: 查询参数，原样编码（包括非法值）
// 返回: 任意 HTTP 状态码都作为结果返回；仅传输层失败返回错误
func (c *Client) GetCandles(ctx context.Context, params url.Values) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("等待限速失败: %w", err)
	}

	u := c.endpoint
	if q := params.Encode(); q != "" {
		u += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("请求失败", zap.String("url", u), zap.Error(err))
		return nil, fmt.Errorf("请求 K线接口失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	out := &Response{
		URL:        u,
		StatusCode: resp.StatusCode,
		Latency:    latency,
		Body:       body,
	}
	if env, err := DecodeEnvelope(body); err == nil {
		out.Envelope = env
	} else {
		c.logger.Warn("响应体无法解码", zap.Int("status", resp.StatusCode), zap.Error(err))
	}

	c.logger.Debug("K线请求完成",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", latency),
		zap.Int("candles", len(out.Data())))
	return out, nil
}
