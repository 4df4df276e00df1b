// Package cases 定义订单簿与 K线用例表。
// 默认用例内置于二进制，可通过 cases.file 指定外部 YAML 覆盖。
package cases

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"market-api-conformance/internal/util/timeutil"
	"market-api-conformance/internal/ws"
)

// Kind 用例类别
type Kind string

const (
	KindOrderBook Kind = "orderbook"
	KindCandle    Kind = "candle"
)

// ParseKind 解析类别，"all" 或空串返回空 Kind 表示全部
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "all":
		return "", nil
	case string(KindOrderBook):
		return KindOrderBook, nil
	case string(KindCandle):
		return KindCandle, nil
	default:
		return "", fmt.Errorf("未知用例类别 %q，有效值: orderbook, candle, all", s)
	}
}

// Case 一个用例，Book 与 Candle 二者其一非空
type Case struct {
	Kind   Kind
	Book   *BookCase
	Candle *CandleCase
}

// ID 用例 ID
func (c Case) ID() string {
	if c.Book != nil {
		return c.Book.ID
	}
	if c.Candle != nil {
		return c.Candle.ID
	}
	return ""
}

// Description 用例描述
func (c Case) Description() string {
	if c.Book != nil {
		return c.Book.Description
	}
	if c.Candle != nil {
		return c.Candle.Description
	}
	return ""
}

// BookChannel 订阅的一个订单簿频道
type BookChannel struct {
	InstrumentName string `yaml:"instrument_name"`
	Depth          int    `yaml:"depth"`
}

// BookParams 订单簿用例参数
// Channels 非空时为多频道订阅，否则使用 InstrumentName/Depth
type BookParams struct {
	InstrumentName string        `yaml:"instrument_name"`
	Depth          int           `yaml:"depth"`
	Channels       []BookChannel `yaml:"channels"`
}

// BookExpected 订单簿用例期望
type BookExpected struct {
	// SubscriptionSuccess 订阅是否应成功
	SubscriptionSuccess bool `yaml:"subscription_success"`
	// ErrorCode 订阅失败时期望的业务码，0 表示任意非零
	ErrorCode int64 `yaml:"error_code"`
	// MessageCount 期望采集的推送总数，0 表示不采集
	MessageCount int `yaml:"message_count"`
	MinBids      int `yaml:"min_bids"`
	MinAsks      int `yaml:"min_asks"`
	// UnsubscribeSuccess 采集后是否取消订阅并校验确认
	UnsubscribeSuccess bool `yaml:"unsubscribe_success"`
	// BidsSorted / AsksSorted 仅用于描述，排序规则始终校验
	BidsSorted string `yaml:"bids_sorted"`
	AsksSorted string `yaml:"asks_sorted"`
}

// BookCase 订单簿用例
type BookCase struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description"`
	Priority    string       `yaml:"priority"`
	Tags        []string     `yaml:"tags"`
	Params      BookParams   `yaml:"params"`
	Expected    BookExpected `yaml:"expected"`
}

// Channels 全部待订阅频道
func (b *BookCase) Channels() []BookChannel {
	if len(b.Params.Channels) > 0 {
		return b.Params.Channels
	}
	return []BookChannel{{InstrumentName: b.Params.InstrumentName, Depth: b.Params.Depth}}
}

// Topics 全部待订阅主题
func (b *BookCase) Topics() []string {
	chans := b.Channels()
	out := make([]string, len(chans))
	for i, ch := range chans {
		out[i] = ws.BookTopic(ch.InstrumentName, ch.Depth)
	}
	return out
}

// PerTopicTarget 每个主题需要采集的推送数（向上取整）
func (b *BookCase) PerTopicTarget() int {
	n := len(b.Channels())
	if b.Expected.MessageCount <= 0 || n == 0 {
		return 0
	}
	return (b.Expected.MessageCount + n - 1) / n
}

// StatusCodes 期望的 HTTP 状态码，YAML 中可写单值或列表
type StatusCodes []int

// UnmarshalYAML 接受标量或序列
func (s *StatusCodes) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v int
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("status_code 不是整数: %w", err)
		}
		*s = StatusCodes{v}
		return nil
	case yaml.SequenceNode:
		var vs []int
		if err := node.Decode(&vs); err != nil {
			return fmt.Errorf("status_code 列表不是整数: %w", err)
		}
		*s = vs
		return nil
	default:
		return fmt.Errorf("status_code 必须为整数或整数列表")
	}
}

// TimeRange 相对当前时间的请求区间，解析为 start_ts / end_ts
type TimeRange struct {
	Start *time.Duration `yaml:"start"`
	End   *time.Duration `yaml:"end"`
}

// CandleExpected K线用例期望
type CandleExpected struct {
	StatusCode StatusCodes `yaml:"status_code"`
	// Code 期望业务码，nil 表示不校验
	Code *int64 `yaml:"code"`
	// HasData 是否要求 result.data 非空
	HasData bool `yaml:"has_data"`
	// ErrorType 仅用于描述
	ErrorType     string `yaml:"error_type"`
	ExactCount    int    `yaml:"exact_count"`
	MaxDataPoints int    `yaml:"max_data_points"`
	MinDataPoints int    `yaml:"min_data_points"`
	// DefaultCount 不传 count 时接口的默认条数，仅记录不校验
	DefaultCount int `yaml:"default_count"`
	// MaxResponseTimeMs 单次响应时间上限
	MaxResponseTimeMs float64 `yaml:"max_response_time_ms"`
	// AvgResponseTimeMs 平均响应时间上限
	AvgResponseTimeMs float64 `yaml:"avg_response_time_ms"`
}

// CandleChecks 对 K线数据附加的校验
type CandleChecks struct {
	// Candles 结构、价格逻辑与时间戳顺序
	Candles bool `yaml:"candles"`
	// Interval 按 timeframe 推导周期并校验间隔
	Interval bool `yaml:"interval"`
	// Tolerance 间隔容差，0 表示周期的 10%
	Tolerance time.Duration `yaml:"tolerance"`
	// Continuity 校验间隙率
	Continuity bool `yaml:"continuity"`
	// Completeness 字段齐全、无空值、无重复时间戳、结构一致
	Completeness bool `yaml:"completeness"`
}

// Percentiles 响应时间分位数预算（毫秒），0 表示不校验
type Percentiles struct {
	P50 float64 `yaml:"p50"`
	P90 float64 `yaml:"p90"`
	P95 float64 `yaml:"p95"`
	P99 float64 `yaml:"p99"`
}

// CandleCase K线用例
type CandleCase struct {
	ID          string   `yaml:"id"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Priority    string   `yaml:"priority"`
	Tags        []string `yaml:"tags"`
	// Params 请求参数，值原样转为字符串；null 值不发送
	Params    map[string]any `yaml:"params"`
	TimeRange *TimeRange     `yaml:"time_range"`
	Expected  CandleExpected `yaml:"expected"`
	Checks    CandleChecks   `yaml:"checks"`
	// Performance 分位数预算，仅在 Iterations >= 2 时校验
	Performance *Percentiles `yaml:"performance"`
	// Iterations 重复请求次数，默认 1
	Iterations int `yaml:"iterations"`
}

// Timeframe 请求中的周期参数
func (c *CandleCase) Timeframe() string {
	if v, ok := c.Params["timeframe"].(string); ok {
		return v
	}
	return ""
}

// Query 构造查询参数，相对时间区间按调用时刻解析
func (c *CandleCase) Query() url.Values {
	q := url.Values{}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.Params[k]
		if v == nil {
			continue
		}
		q.Set(k, fmt.Sprint(v))
	}
	if c.TimeRange != nil {
		if c.TimeRange.Start != nil {
			q.Set("start_ts", fmt.Sprint(timeutil.OffsetMs(*c.TimeRange.Start)))
		}
		if c.TimeRange.End != nil {
			q.Set("end_ts", fmt.Sprint(timeutil.OffsetMs(*c.TimeRange.End)))
		}
	}
	return q
}

// Runs 实际请求次数
func (c *CandleCase) Runs() int {
	if c.Iterations <= 0 {
		return 1
	}
	return c.Iterations
}
