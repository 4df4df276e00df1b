package orderbook

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation 订单簿违反业务规则
	ErrValidation = errors.New("订单簿校验失败")
	// ErrMalformedLevel 档位数值无法解析
	ErrMalformedLevel = errors.New("订单簿数值无法解析")
)

// Reason 校验失败原因
type Reason string

const (
	// ReasonEmptySide 买盘或卖盘为空
	ReasonEmptySide Reason = "EmptySide"
	// ReasonBidOrder 买盘价格未按降序排列
	ReasonBidOrder Reason = "BidOrderViolation"
	// ReasonAskOrder 卖盘价格未按升序排列
	ReasonAskOrder Reason = "AskOrderViolation"
	// ReasonCrossedBook 买一价不小于卖一价
	ReasonCrossedBook Reason = "CrossedBook"
	// ReasonDepthExceeded 档位数超过订阅深度
	ReasonDepthExceeded Reason = "DepthExceeded"
	// ReasonNonPositive 价格或数量不为正
	ReasonNonPositive Reason = "NonPositive"
	// ReasonBadTimestamp 时间戳缺失或不为正
	ReasonBadTimestamp Reason = "BadTimestamp"
)

// ValidationError 订单簿业务规则违例
type ValidationError struct {
	// Reason 违例类型
	Reason Reason
	// Side 违例所在方向（CrossedBook 时为空）
	Side Side
	// Index 违例档位下标；顺序违例时为后一个档位，前一个为 Index-1
	Index int
	// Prev 前一个档位价格（顺序违例）或买一价（CrossedBook）
	Prev decimal.Decimal
	// Cur 当前档位价格（顺序违例）或卖一价（CrossedBook）
	Cur decimal.Decimal
	// Detail 附加说明
	Detail string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonBidOrder:
		return fmt.Sprintf("%s: 买盘价格未按降序排列（位置 %d: %s, 位置 %d: %s）", e.Reason, e.Index-1, e.Prev, e.Index, e.Cur)
	case ReasonAskOrder:
		return fmt.Sprintf("%s: 卖盘价格未按升序排列（位置 %d: %s, 位置 %d: %s）", e.Reason, e.Index-1, e.Prev, e.Index, e.Cur)
	case ReasonCrossedBook:
		return fmt.Sprintf("%s: 订单簿倒挂，买一价(%s) >= 卖一价(%s)", e.Reason, e.Prev, e.Cur)
	default:
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
}

// Unwrap 支持 errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// DecodeError 档位数值解析失败
type DecodeError struct {
	// Side 所在方向
	Side Side
	// Index 档位下标
	Index int
	// Field 字段名: price, size, t
	Field string
	// Raw 原始文本
	Raw Value
	// Err 底层解析错误
	Err error
}

func (e *DecodeError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("%s 无法解析: %q: %v", e.Field, e.Raw, e.Err)
	}
	return fmt.Sprintf("%s[%d].%s 无法解析: %q: %v", e.Side, e.Index, e.Field, e.Raw, e.Err)
}

// Unwrap 同时匹配 ErrMalformedLevel 与底层错误
func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformedLevel, e.Err}
}
