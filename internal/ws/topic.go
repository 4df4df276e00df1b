package ws

import (
	"fmt"
	"strconv"
	"strings"
)

// 频道名
const (
	ChannelBook   = "book"
	ChannelTrade  = "trade"
	ChannelTicker = "ticker"
)

// BookTopic 订单簿主题: book.<instrument>.<depth>
func BookTopic(instrument string, depth int) string {
	return ChannelBook + "." + instrument + "." + strconv.Itoa(depth)
}

// TradeTopic 成交主题: trade.<instrument>
func TradeTopic(instrument string) string {
	return ChannelTrade + "." + instrument
}

// TickerTopic 行情主题: ticker.<instrument>
func TickerTopic(instrument string) string {
	return ChannelTicker + "." + instrument
}

// ParseBookTopic 解析订单簿主题
// 返回: 交易对、深度；格式不符时返回 ErrInvalidArgument
func ParseBookTopic(topic string) (string, int, error) {
	parts := strings.Split(topic, ".")
	if len(parts) != 3 || parts[0] != ChannelBook || parts[1] == "" {
		return "", 0, fmt.Errorf("%w: 订单簿主题格式应为 book.<instrument>.<depth>: %q", ErrInvalidArgument, topic)
	}
	depth, err := strconv.Atoi(parts[2])
	if err != nil || depth <= 0 {
		return "", 0, fmt.Errorf("%w: 订单簿主题深度非法: %q", ErrInvalidArgument, topic)
	}
	return parts[1], depth, nil
}
