package ws

import (
	"encoding/json"

	"market-api-conformance/internal/orderbook"
)

// 协议方法名
const (
	// MethodHeartbeat 服务端心跳
	MethodHeartbeat = "public/heartbeat"
	// MethodRespondHeartbeat 客户端心跳应答
	MethodRespondHeartbeat = "public/respond-heartbeat"
	// MethodSubscribe 订阅
	MethodSubscribe = "subscribe"
	// MethodUnsubscribe 取消订阅
	MethodUnsubscribe = "unsubscribe"
)

// SubscribeRequest 订阅/取消订阅请求
// 示例: {"id":1,"method":"subscribe","params":{"channels":["book.BTCUSD-PERP.10"]},"nonce":1654780033786}
type SubscribeRequest struct {
	// ID 请求关联 ID，同一连接内单调递增
	ID int64 `json:"id"`
	// Method 方法: subscribe, unsubscribe
	Method string `json:"method"`
	// Params 请求参数
	Params SubscribeParams `json:"params"`
	// Nonce 请求时间戳（毫秒）
	Nonce int64 `json:"nonce"`
}

// SubscribeParams 订阅参数
type SubscribeParams struct {
	// Channels 主题列表: book.<instrument>.<depth>
	Channels []string `json:"channels"`
}

// HeartbeatReply 心跳应答，ID 必须回显服务端心跳的 ID
type HeartbeatReply struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
}

// BookPush 订单簿数据推送
// 示例: {"id":-1,"method":"subscribe","code":0,"result":{"instrument_name":"BTCUSD-PERP",
// "subscription":"book.BTCUSD-PERP.10","channel":"book","depth":10,"data":[{"bids":[...],"asks":[...],"t":...}]}}
type BookPush struct {
	// ID 推送 ID（服务端通常为 -1）
	ID int64 `json:"id"`
	// Method 方法，推送沿用 subscribe
	Method string `json:"method"`
	// Code 状态码
	Code int64 `json:"code"`
	// InstrumentName 交易对
	InstrumentName string `json:"instrument_name"`
	// Subscription 推送所属主题，用于与请求主题比对
	Subscription string `json:"subscription"`
	// Channel 频道名: book
	Channel string `json:"channel"`
	// Depth 深度
	Depth int `json:"depth"`
	// Data 快照列表
	Data []orderbook.Snapshot `json:"data"`
}

// pushEnvelope 推送外层结构
type pushEnvelope struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Code   int64           `json:"code"`
	Result json.RawMessage `json:"result"`
}

// pushResult 推送 result 字段
type pushResult struct {
	InstrumentName string               `json:"instrument_name"`
	Subscription   string               `json:"subscription"`
	Channel        string               `json:"channel"`
	Depth          int                  `json:"depth"`
	Data           []orderbook.Snapshot `json:"data"`
}

// ConnectionMetrics 连接与采集计数
type ConnectionMetrics struct {
	// FramesReceived 收到的帧数
	FramesReceived int64
	// HeartbeatsAnswered 已应答心跳数
	HeartbeatsAnswered int64
	// DecodeErrors 解码失败帧数
	DecodeErrors int64
	// PushesAccepted 计入采集结果的推送数
	PushesAccepted int64
	// OffTopicDiscarded 丢弃的其他主题推送数
	OffTopicDiscarded int64
	// UnrelatedDiscarded 丢弃的无关帧数（含采集中的确认帧）
	UnrelatedDiscarded int64
	// UnmatchedAcks 关联 ID 不匹配的确认帧数
	UnmatchedAcks int64
	// EarlyPushes 确认之前到达并被丢弃的推送数
	EarlyPushes int64
}
