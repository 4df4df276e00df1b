package orderbook

import "fmt"

// CheckDepth 校验每侧档位数不超过订阅深度
func CheckDepth(s *Snapshot, depth int) error {
	if depth <= 0 {
		return nil
	}
	if len(s.Bids) > depth {
		return &ValidationError{Reason: ReasonDepthExceeded, Side: SideBid, Detail: fmt.Sprintf("买盘深度超出预期（预期: %d, 实际: %d）", depth, len(s.Bids))}
	}
	if len(s.Asks) > depth {
		return &ValidationError{Reason: ReasonDepthExceeded, Side: SideAsk, Detail: fmt.Sprintf("卖盘深度超出预期（预期: %d, 实际: %d）", depth, len(s.Asks))}
	}
	return nil
}

// CheckLevels 校验所有档位的价格、数量为正数，时间戳为正
func CheckLevels(s *Snapshot) error {
	for _, side := range []struct {
		side   Side
		levels []Level
	}{{SideBid, s.Bids}, {SideAsk, s.Asks}} {
		for i, lv := range side.levels {
			px, err := lv.Price.Decimal()
			if err != nil {
				return &DecodeError{Side: side.side, Index: i, Field: "price", Raw: lv.Price, Err: err}
			}
			qty, err := lv.Size.Decimal()
			if err != nil {
				return &DecodeError{Side: side.side, Index: i, Field: "size", Raw: lv.Size, Err: err}
			}
			if !px.IsPositive() || !qty.IsPositive() {
				return &ValidationError{
					Reason: ReasonNonPositive,
					Side:   side.side,
					Index:  i,
					Detail: fmt.Sprintf("%s[%d] 价格和数量应大于 0（价格: %s, 数量: %s）", side.side, i, px, qty),
				}
			}
		}
	}

	if s.T == "" {
		return &ValidationError{Reason: ReasonBadTimestamp, Detail: "缺少时间戳 t"}
	}
	ts, err := s.T.Int()
	if err != nil {
		return &DecodeError{Field: "t", Raw: s.T, Err: err}
	}
	if ts <= 0 {
		return &ValidationError{Reason: ReasonBadTimestamp, Detail: fmt.Sprintf("时间戳应大于 0（实际: %d）", ts)}
	}
	return nil
}
