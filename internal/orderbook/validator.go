package orderbook

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate 校验单个快照的结构与业务不变式
// 按顺序检查，首个违例即返回:
//  1. 买卖盘均非空（EmptySide）
//  2. 买盘价格不递增（BidOrderViolation）
//  3. 卖盘价格不递减（AskOrderViolation）
//  4. 买一价严格小于卖一价（CrossedBook）
//
// 价格无法解析时返回 *DecodeError；违反规则时返回 *ValidationError。
// 纯函数，不修改入参。
func Validate(s *Snapshot) error {
	if s == nil || len(s.Bids) == 0 || len(s.Asks) == 0 {
		var bids, asks int
		if s != nil {
			bids, asks = len(s.Bids), len(s.Asks)
		}
		return &ValidationError{
			Reason: ReasonEmptySide,
			Detail: fmt.Sprintf("买盘或卖盘为空（bids=%d, asks=%d）", bids, asks),
		}
	}

	bids, err := prices(SideBid, s.Bids)
	if err != nil {
		return err
	}
	for i := 1; i < len(bids); i++ {
		if bids[i].GreaterThan(bids[i-1]) {
			return &ValidationError{Reason: ReasonBidOrder, Side: SideBid, Index: i, Prev: bids[i-1], Cur: bids[i]}
		}
	}

	asks, err := prices(SideAsk, s.Asks)
	if err != nil {
		return err
	}
	for i := 1; i < len(asks); i++ {
		if asks[i].LessThan(asks[i-1]) {
			return &ValidationError{Reason: ReasonAskOrder, Side: SideAsk, Index: i, Prev: asks[i-1], Cur: asks[i]}
		}
	}

	if !bids[0].LessThan(asks[0]) {
		return &ValidationError{Reason: ReasonCrossedBook, Prev: bids[0], Cur: asks[0]}
	}

	return nil
}

// prices 解码一侧全部价格
func prices(side Side, levels []Level) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(levels))
	for i, lv := range levels {
		d, err := lv.Price.Decimal()
		if err != nil {
			return nil, &DecodeError{Side: side, Index: i, Field: "price", Raw: lv.Price, Err: err}
		}
		out[i] = d
	}
	return out, nil
}
