package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// FrameKind 入站帧类型
type FrameKind int

const (
	// FrameUnrelated 与当前流程无关的帧
	FrameUnrelated FrameKind = iota
	// FrameHeartbeat 服务端心跳
	FrameHeartbeat
	// FrameAck 订阅/取消订阅确认
	FrameAck
	// FrameData 订单簿数据推送
	FrameData
)

func (k FrameKind) String() string {
	switch k {
	case FrameHeartbeat:
		return "heartbeat"
	case FrameAck:
		return "ack"
	case FrameData:
		return "data"
	default:
		return "unrelated"
	}
}

// Frame 分类后的入站帧
type Frame struct {
	// Kind 帧类型
	Kind FrameKind
	// ID 关联 ID（心跳、确认）
	ID int64
	// Method 方法名
	Method string
	// Code 状态码（确认）
	Code int64
	// Channel 确认回显的频道
	Channel string
	// Message 确认附带的说明
	Message string
	// Push 数据推送内容（仅 FrameData）
	Push *BookPush
	// Raw 原始帧
	Raw []byte
}

// Classify 将原始帧归为唯一一种类型
// 判定顺序:
//  1. 不是 JSON 对象 → ErrDecode
//  2. method 为 public/heartbeat → 心跳（缺少 id 视为解码失败，应答需要回显）
//  3. 带 result 对象 → 数据推送（解码失败视为解码失败）
//  4. method 为 subscribe/unsubscribe 且带 id → 确认（缺少 code 视为解码失败）
//  5. 其他 → 无关帧
func Classify(raw []byte) (*Frame, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: 不是 JSON 对象", ErrDecode)
	}

	method, err := jsonparser.GetString(trimmed, "method")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, fmt.Errorf("%w: method 字段非法: %v", ErrDecode, err)
	}

	if method == MethodHeartbeat {
		id, err := jsonparser.GetInt(trimmed, "id")
		if err != nil {
			return nil, fmt.Errorf("%w: 心跳缺少 id: %v", ErrDecode, err)
		}
		return &Frame{Kind: FrameHeartbeat, ID: id, Method: method, Raw: raw}, nil
	}

	if _, dt, _, err := jsonparser.Get(trimmed, "result"); err == nil && dt == jsonparser.Object {
		push, err := decodePush(trimmed)
		if err != nil {
			return nil, err
		}
		return &Frame{
			Kind:    FrameData,
			ID:      push.ID,
			Method:  push.Method,
			Code:    push.Code,
			Channel: push.Channel,
			Push:    push,
			Raw:     raw,
		}, nil
	}

	if method == MethodSubscribe || method == MethodUnsubscribe {
		if id, err := jsonparser.GetInt(trimmed, "id"); err == nil {
			code, err := jsonparser.GetInt(trimmed, "code")
			if err != nil {
				return nil, fmt.Errorf("%w: 确认缺少 code: %v", ErrDecode, err)
			}
			channel, _ := jsonparser.GetString(trimmed, "channel")
			message, _ := jsonparser.GetString(trimmed, "message")
			return &Frame{
				Kind:    FrameAck,
				ID:      id,
				Method:  method,
				Code:    code,
				Channel: channel,
				Message: message,
				Raw:     raw,
			}, nil
		}
	}

	return &Frame{Kind: FrameUnrelated, Method: method, Raw: raw}, nil
}

// decodePush 解码数据推送
func decodePush(data []byte) (*BookPush, error) {
	var env pushEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: 推送外层结构: %v", ErrDecode, err)
	}
	var res pushResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return nil, fmt.Errorf("%w: 推送 result: %v", ErrDecode, err)
	}
	return &BookPush{
		ID:             env.ID,
		Method:         env.Method,
		Code:           env.Code,
		InstrumentName: res.InstrumentName,
		Subscription:   res.Subscription,
		Channel:        res.Channel,
		Depth:          res.Depth,
		Data:           res.Data,
	}, nil
}
