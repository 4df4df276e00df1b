// Package orderbook 定义订单簿快照结构及其内容校验。
// 价格、数量保留交易所下发的原始文本，校验时再解码为 decimal，
// 以便区分“无法解析”与“违反业务规则”两类问题。
package orderbook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Side 买卖方向
type Side string

const (
	// SideBid 买盘
	SideBid Side = "bids"
	// SideAsk 卖盘
	SideAsk Side = "asks"
)

// Value 数值字段的线上文本
// 交易所可能下发数字或数字字符串，两种形式统一保存为去引号的文本
type Value string

// UnmarshalJSON 接受 JSON 数字或字符串
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	// 非字符串原样保留（null/true 等在解码为 decimal 时报错）
	*v = Value(b)
	return nil
}

// Decimal 解码为 decimal
func (v Value) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(v))
}

// Int 解码为整数
func (v Value) Int() (int64, error) {
	return strconv.ParseInt(string(v), 10, 64)
}

// Level 订单簿深度档位
// 线上格式: [价格, 数量, 订单数]
type Level struct {
	// Price 价格
	Price Value
	// Size 数量
	Size Value
	// Count 订单数（部分推送可能缺省）
	Count Value
}

// UnmarshalJSON 解析 [price, size, count] 数组
func (l *Level) UnmarshalJSON(b []byte) error {
	var raw []Value
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("档位应为数组: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("档位至少包含价格和数量，实际长度: %d", len(raw))
	}
	l.Price = raw[0]
	l.Size = raw[1]
	if len(raw) > 2 {
		l.Count = raw[2]
	}
	return nil
}

// MarshalJSON 输出为字符串数组，便于报告落盘
func (l Level) MarshalJSON() ([]byte, error) {
	if l.Count == "" {
		return json.Marshal([]string{string(l.Price), string(l.Size)})
	}
	return json.Marshal([]string{string(l.Price), string(l.Size), string(l.Count)})
}

// Snapshot 订单簿快照
// 一次推送中 data 数组的单个元素；交给校验器后视为只读
type Snapshot struct {
	// Bids 买盘档位，应按价格从高到低排列
	Bids []Level `json:"bids"`
	// Asks 卖盘档位，应按价格从低到高排列
	Asks []Level `json:"asks"`
	// T 快照时间戳（毫秒）
	T Value `json:"t"`
}

// BestBid 买一价（原始文本），买盘为空时返回空串
func (s *Snapshot) BestBid() Value {
	if len(s.Bids) == 0 {
		return ""
	}
	return s.Bids[0].Price
}

// BestAsk 卖一价（原始文本），卖盘为空时返回空串
func (s *Snapshot) BestAsk() Value {
	if len(s.Asks) == 0 {
		return ""
	}
	return s.Asks[0].Price
}

// Spread 计算买卖价差
// 公式: BestAsk - BestBid
func (s *Snapshot) Spread() (decimal.Decimal, error) {
	bid, err := s.BestBid().Decimal()
	if err != nil {
		return decimal.Zero, err
	}
	ask, err := s.BestAsk().Decimal()
	if err != nil {
		return decimal.Zero, err
	}
	return ask.Sub(bid), nil
}
