// Package ws 实现行情 WebSocket 的连接、帧分类、订阅确认与推送采集。
// 单个 Conn 由一次用例独占：一个读 goroutine 按到达顺序把帧送入通道，
// 调用方以“单次接收等待 + 外层截止时间”的方式消费，任何等待都不会无限阻塞。
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"market-api-conformance/internal/config"
)

// Transport 帧传输接口，*websocket.Conn 满足该接口
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// State 连接状态
type State int32

const (
	// StateIdle 尚未连接
	StateIdle State = iota
	// StateOpen 已连接
	StateOpen
	// StateClosed 已关闭（主动断开或传输层断开）
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// inboundBuffer 读 goroutine 与消费者之间的缓冲帧数
const inboundBuffer = 256

// inbound 读 goroutine 送出的一帧或终止错误
type inbound struct {
	data []byte
	err  error
}

// Conn 行情 WebSocket 连接
type Conn struct {
	// url 服务端地址
	url string
	// connectTimeout 连接（含握手）时限
	connectTimeout time.Duration
	// recvTimeout 单次接收等待时限
	recvTimeout time.Duration
	// logger 日志记录器
	logger *zap.Logger

	// connMu 保护 transport/frames/done 及状态迁移
	connMu sync.Mutex
	// writeMu 串行化写入（gorilla/websocket 不允许并发写）
	writeMu sync.Mutex
	// transport 底层传输
	transport Transport
	// frames 按到达顺序的入站帧
	frames chan inbound
	// done 关闭时通知读 goroutine 退出
	done chan struct{}
	// state 当前状态
	state atomic.Int32
	// nextID 请求关联计数器
	nextID atomic.Int64

	// metrics 连接计数
	metrics ConnectionMetrics
	// metricsMu 指标锁
	metricsMu sync.Mutex
}

// NewConn 创建连接（未拨号）
// 参数 cfg: WebSocket 配置
// 参数 logger: 日志记录器
func NewConn(cfg *config.WSConfig, logger *zap.Logger) *Conn {
	return &Conn{
		url:            cfg.URL,
		connectTimeout: cfg.ConnectTimeout(),
		recvTimeout:    cfg.RecvTimeout(),
		logger:         logger.Named("ws"),
	}
}

// NewConnWithTransport 基于已建立的传输创建连接，状态直接为 open
// 参数 t: 已建立的传输
// 参数 recvTimeout: 单次接收等待时限
// 参数 logger: 日志记录器
func NewConnWithTransport(t Transport, recvTimeout time.Duration, logger *zap.Logger) *Conn {
	c := &Conn{
		recvTimeout: recvTimeout,
		logger:      logger.Named("ws"),
	}
	c.connMu.Lock()
	c.attach(t)
	c.connMu.Unlock()
	return c
}

// Connect 建立 WebSocket 连接
// 在 connectTimeout 内完成拨号与握手；失败时返回包装 ErrConnectFailure 的错误，状态保持未打开
// 参数 ctx: 上下文，用于取消连接
func (c *Conn) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if State(c.state.Load()) == StateOpen {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("User-Agent", "market-api-conformance/1.0")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.connectTimeout,
	}

	conn, resp, err := dialer.DialContext(dialCtx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: %s（HTTP %d）: %w", ErrConnectFailure, c.url, resp.StatusCode, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrConnectFailure, c.url, err)
	}

	c.attach(conn)
	c.logger.Info("WebSocket 连接成功", zap.String("url", c.url))
	return nil
}

// attach 挂载传输并启动读 goroutine，调用方需持有 connMu
func (c *Conn) attach(t Transport) {
	c.transport = t
	c.frames = make(chan inbound, inboundBuffer)
	c.done = make(chan struct{})
	c.state.Store(int32(StateOpen))
	go readLoop(t, c.frames, c.done)
}

// readLoop 读取循环
// 持续读取并按顺序投递；读取出错时投递一次错误后退出
func readLoop(t Transport, frames chan<- inbound, done <-chan struct{}) {
	for {
		_, data, err := t.ReadMessage()
		if err != nil {
			select {
			case frames <- inbound{err: err}:
			case <-done:
			}
			return
		}
		select {
		case frames <- inbound{data: data}:
		case <-done:
			return
		}
	}
}

// Disconnect 关闭连接
// 任意状态下可调用，重复调用为空操作
func (c *Conn) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if State(c.state.Load()) != StateOpen {
		c.state.Store(int32(StateClosed))
		return nil
	}
	c.closeLocked()
	c.logger.Info("WebSocket 连接已关闭", zap.String("url", c.url))
	return nil
}

// closeLocked 关闭传输，调用方需持有 connMu 且状态为 open
func (c *Conn) closeLocked() {
	c.state.Store(int32(StateClosed))
	close(c.done)
	if err := c.transport.Close(); err != nil {
		c.logger.Debug("关闭传输返回错误", zap.Error(err))
	}
}

// markLost 传输层断开后标记为关闭
func (c *Conn) markLost(cause error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if State(c.state.Load()) != StateOpen {
		return
	}
	c.closeLocked()
	c.logger.Warn("WebSocket 连接意外断开", zap.String("url", c.url), zap.Error(cause))
}

// IsConnected 连接是否处于 open 状态
func (c *Conn) IsConnected() bool {
	return State(c.state.Load()) == StateOpen
}

// State 当前状态
func (c *Conn) State() State {
	return State(c.state.Load())
}

// NextID 分配下一个请求关联 ID，从 1 开始单调递增
func (c *Conn) NextID() int64 {
	return c.nextID.Add(1)
}

// Send 序列化并发送一个文本帧
// 参数 v: 待发送的消息
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	c.connMu.Lock()
	t := c.transport
	open := State(c.state.Load()) == StateOpen
	c.connMu.Unlock()
	if !open {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err = t.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.markLost(err)
		return fmt.Errorf("%w: 发送消息失败: %w", ErrConnectionLost, err)
	}
	return nil
}

// Receive 按到达顺序取下一帧
// 参数 ctx: 上下文
// 参数 wait: 本次等待时限
// 返回: 帧内容；超时返回 errNoFrame，传输断开返回包装 ErrConnectionLost 的错误
func (c *Conn) Receive(ctx context.Context, wait time.Duration) ([]byte, error) {
	c.connMu.Lock()
	frames, done := c.frames, c.done
	st := State(c.state.Load())
	c.connMu.Unlock()

	switch st {
	case StateIdle:
		return nil, ErrNotConnected
	case StateClosed:
		return nil, fmt.Errorf("%w: 连接已关闭", ErrConnectionLost)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case in := <-frames:
		if in.err != nil {
			c.markLost(in.err)
			return nil, fmt.Errorf("%w: %w", ErrConnectionLost, in.err)
		}
		c.bump(func(m *ConnectionMetrics) { m.FramesReceived++ })
		return in.data, nil
	case <-done:
		return nil, fmt.Errorf("%w: 连接已关闭", ErrConnectionLost)
	case <-timer.C:
		return nil, errNoFrame
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Metrics 获取连接计数快照
func (c *Conn) Metrics() ConnectionMetrics {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	return c.metrics
}

// bump 在指标锁内更新计数
func (c *Conn) bump(fn func(m *ConnectionMetrics)) {
	c.metricsMu.Lock()
	fn(&c.metrics)
	c.metricsMu.Unlock()
}

// sample 截断原始帧用于日志
func sample(data []byte) []byte {
	if len(data) > 200 {
		return data[:200]
	}
	return data
}
