// Package candle 实现 K线 REST 接口的请求与响应校验。
package candle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Field K线字段，接口可能返回短名或长名
type Field struct {
	Short string
	Long  string
}

var (
	FieldTime   = Field{Short: "t", Long: "timestamp"}
	FieldOpen   = Field{Short: "o", Long: "open"}
	FieldHigh   = Field{Short: "h", Long: "high"}
	FieldLow    = Field{Short: "l", Long: "low"}
	FieldClose  = Field{Short: "c", Long: "close"}
	FieldVolume = Field{Short: "v", Long: "volume"}
)

// RequiredFields 每根 K线必须具备的字段
var RequiredFields = []Field{FieldTime, FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

func (f Field) String() string {
	return f.Short + "/" + f.Long
}

// Envelope K线接口响应
type Envelope struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	// Code 业务码，缺失时为 nil
	Code    *int64  `json:"code"`
	Message string  `json:"message,omitempty"`
	Result  *Result `json:"result"`
}

// Result 响应中的 result 对象
type Result struct {
	InstrumentName string   `json:"instrument_name"`
	Interval       string   `json:"interval"`
	Data           []Candle `json:"data"`
}

// Candle 一根 K线，数值保持原始 JSON 形式（json.Number 或字符串）
type Candle map[string]any

// Get 按短名优先取字段
// 返回: 值与字段是否存在（存在但为 null 时值为 nil）
func (c Candle) Get(f Field) (any, bool) {
	if v, ok := c[f.Short]; ok {
		return v, true
	}
	v, ok := c[f.Long]
	return v, ok
}

// Decimal 以十进制读取价格或成交量字段
func (c Candle) Decimal(f Field) (decimal.Decimal, error) {
	v, ok := c.Get(f)
	if !ok {
		return decimal.Zero, fmt.Errorf("缺少字段 %s", f)
	}
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	case nil:
		return decimal.Zero, fmt.Errorf("字段 %s 为空值", f)
	default:
		return decimal.Zero, fmt.Errorf("字段 %s 类型不支持: %T", f, v)
	}
}

// Timestamp 读取毫秒时间戳
func (c Candle) Timestamp() (int64, error) {
	v, ok := c.Get(FieldTime)
	if !ok {
		return 0, fmt.Errorf("缺少字段 %s", FieldTime)
	}
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = x
	default:
		return 0, fmt.Errorf("字段 %s 类型不支持: %T", FieldTime, v)
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("字段 %s 不是整数: %w", FieldTime, err)
	}
	return ts, nil
}

// DecodeEnvelope 解码响应体，数值保留为 json.Number
func DecodeEnvelope(body []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("响应不是合法 JSON: %w", err)
	}
	return &env, nil
}

// Response 一次请求的结果
type Response struct {
	URL        string
	StatusCode int
	Latency    time.Duration
	Body       []byte
	// Envelope 响应体无法解码时为 nil
	Envelope *Envelope
}

// Data 返回 result.data，不存在时返回 nil
func (r *Response) Data() []Candle {
	if r == nil || r.Envelope == nil || r.Envelope.Result == nil {
		return nil
	}
	return r.Envelope.Result.Data
}

// intervals 周期与时长对照，同时接受短格式（1m）与枚举格式（M1）
var intervals = map[string]time.Duration{
	"1m": time.Minute, "M1": time.Minute,
	"5m": 5 * time.Minute, "M5": 5 * time.Minute,
	"15m": 15 * time.Minute, "M15": 15 * time.Minute,
	"30m": 30 * time.Minute, "M30": 30 * time.Minute,
	"1h": time.Hour, "H1": time.Hour,
	"2h": 2 * time.Hour, "H2": 2 * time.Hour,
	"4h": 4 * time.Hour, "H4": 4 * time.Hour,
	"12h": 12 * time.Hour, "H12": 12 * time.Hour,
	"1D": 24 * time.Hour, "D1": 24 * time.Hour,
	"7D": 7 * 24 * time.Hour, "D7": 7 * 24 * time.Hour,
	"14D": 14 * 24 * time.Hour, "D14": 14 * 24 * time.Hour,
	// 按 30 天近似，默认 10% 容差覆盖 28 至 31 天
	"1M": 30 * 24 * time.Hour, "M": 30 * 24 * time.Hour,
}

// TimeframeInterval 周期对应的时长
// 返回: 未知周期返回 false
func TimeframeInterval(tf string) (time.Duration, bool) {
	d, ok := intervals[tf]
	return d, ok
}
