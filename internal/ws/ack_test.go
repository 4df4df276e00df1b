package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-api-conformance/internal/orderbook"
)

func TestValidateAck(t *testing.T) {
	topics := []string{"book.BTCUSD-PERP.10"}

	assert.NoError(t, ValidateAck(&Ack{ID: 1, Method: MethodSubscribe}, MethodSubscribe, topics))
	assert.NoError(t, ValidateAck(&Ack{ID: 1, Method: MethodSubscribe, Channel: topics[0]}, MethodSubscribe, topics))
	assert.ErrorIs(t, ValidateAck(nil, MethodSubscribe, topics), ErrStructure)
	assert.ErrorIs(t, ValidateAck(&Ack{Method: MethodUnsubscribe}, MethodSubscribe, topics), ErrStructure)
	assert.ErrorIs(t, ValidateAck(&Ack{Method: MethodSubscribe, Channel: "book.ETH_USDT.10"}, MethodSubscribe, topics), ErrStructure)
	assert.ErrorIs(t, ValidateAck(&Ack{Method: MethodSubscribe, Code: 40003}, MethodSubscribe, topics), ErrSubscribeRejected)
}

func TestValidatePush(t *testing.T) {
	valid := func() *BookPush {
		return &BookPush{
			ID:           -1,
			Method:       MethodSubscribe,
			Subscription: "book.BTC_USDT.150",
			Channel:      ChannelBook,
			Depth:        150,
			Data:         []orderbook.Snapshot{{}},
		}
	}

	tests := []struct {
		name   string
		mutate func(p *BookPush)
		ok     bool
	}{
		{name: "合法", mutate: func(p *BookPush) {}, ok: true},
		{name: "method 错误", mutate: func(p *BookPush) { p.Method = "public/get-book" }},
		{name: "code 非零", mutate: func(p *BookPush) { p.Code = 10004 }},
		{name: "channel 错误", mutate: func(p *BookPush) { p.Channel = ChannelTrade }},
		{name: "subscription 错误", mutate: func(p *BookPush) { p.Subscription = "book.BTC_USDT.10" }},
		{name: "depth 错误", mutate: func(p *BookPush) { p.Depth = 50 }},
		{name: "data 为空", mutate: func(p *BookPush) { p.Data = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := ValidatePush(p, "book.BTC_USDT.150", 150)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrStructure)
		})
	}

	assert.ErrorIs(t, ValidatePush(nil, "book.BTC_USDT.150", 150), ErrStructure)
	p := valid()
	p.Depth = 0
	assert.NoError(t, ValidatePush(p, "book.BTC_USDT.150", 0))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "book.BTCUSD-PERP.10", BookTopic("BTCUSD-PERP", 10))
	assert.Equal(t, "trade.BTC_USDT", TradeTopic("BTC_USDT"))
	assert.Equal(t, "ticker.ETH_USDT", TickerTopic("ETH_USDT"))

	inst, depth, err := ParseBookTopic(BookTopic("BTC_USDT", 150))
	require.NoError(t, err)
	assert.Equal(t, "BTC_USDT", inst)
	assert.Equal(t, 150, depth)

	for _, bad := range []string{"", "book", "book.BTC_USDT", "trade.BTC_USDT.10", "book..10", "book.BTC_USDT.x", "book.BTC_USDT.0"} {
		_, _, err := ParseBookTopic(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
}
