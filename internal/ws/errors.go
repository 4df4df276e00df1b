package ws

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConnectFailure 建立连接失败（超时、握手被拒、地址不可达）
	ErrConnectFailure = errors.New("建立 WebSocket 连接失败")
	// ErrNotConnected 连接未打开
	ErrNotConnected = errors.New("WebSocket 未连接")
	// ErrSubscribeRejected 服务端返回非零确认码
	ErrSubscribeRejected = errors.New("订阅请求被拒绝")
	// ErrSubscribeTimeout 未在时限内收到匹配的确认
	ErrSubscribeTimeout = errors.New("等待订阅确认超时")
	// ErrDeadlineExceeded 采集截止前未达到目标条数
	ErrDeadlineExceeded = errors.New("采集截止时间已到")
	// ErrConnectionLost 传输层意外关闭
	ErrConnectionLost = errors.New("WebSocket 连接已断开")
	// ErrDecode 单帧无法解析；循环内记录后跳过
	ErrDecode = errors.New("消息解码失败")
	// ErrStructure 确认或推送的字段与预期不符
	ErrStructure = errors.New("消息结构不符合预期")
	// ErrInvalidArgument 调用参数非法
	ErrInvalidArgument = errors.New("参数非法")

	// errNoFrame 单次接收等待超时，只在包内流转
	errNoFrame = errors.New("等待消息超时")
)

// TimeoutError 订阅/取消订阅确认超时
type TimeoutError struct {
	// Method 请求方法
	Method string
	// ID 请求关联 ID
	ID int64
	// Topics 请求的主题
	Topics []string
	// Timeout 等待时限
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s 请求（id=%d, topics=%s）在 %s 内未收到确认", e.Method, e.ID, strings.Join(e.Topics, ","), e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrSubscribeTimeout }

// RejectedError 服务端拒绝订阅
// 拒绝本身作为 Ack 返回，需要错误值的调用方通过 Ack.Err 取得
type RejectedError struct {
	Method  string
	ID      int64
	Code    int64
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s 请求（id=%d）被拒绝: code=%d, message=%s", e.Method, e.ID, e.Code, e.Message)
}

func (e *RejectedError) Unwrap() error { return ErrSubscribeRejected }

// DeadlineError 采集截止时仍未达到目标条数
type DeadlineError struct {
	// Topic 采集的主题
	Topic string
	// Target 目标条数
	Target int
	// Collected 已采集条数
	Collected int
	// Elapsed 实际耗时
	Elapsed time.Duration
	// Deadline 截止时长
	Deadline time.Duration
	// Partial 已采集的推送，仅用于诊断
	Partial []*BookPush
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("主题 %s 在 %s 内仅采集到 %d/%d 条推送（耗时 %s）", e.Topic, e.Deadline, e.Collected, e.Target, e.Elapsed.Round(time.Millisecond))
}

func (e *DeadlineError) Unwrap() error { return ErrDeadlineExceeded }

// ConnectionLostError 采集过程中连接断开
type ConnectionLostError struct {
	// Topic 采集的主题
	Topic string
	// Collected 断开前已采集条数
	Collected int
	// Err 底层错误
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("采集主题 %s 时连接断开（已采集 %d 条）: %v", e.Topic, e.Collected, e.Err)
}

func (e *ConnectionLostError) Unwrap() []error {
	return []error{ErrConnectionLost, e.Err}
}
