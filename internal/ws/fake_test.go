package ws

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// fakeRead 脚本化的一次读取结果
type fakeRead struct {
	data []byte
	err  error
}

// fakeTransport 内存传输，按脚本顺序返回帧并记录写入
type fakeTransport struct {
	inbox     chan fakeRead
	closeCh   chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32

	mu      sync.Mutex
	written [][]byte
	onWrite func(f *fakeTransport, data []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:   make(chan fakeRead, 1024),
		closeCh: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case r := <-f.inbox:
		if r.err != nil {
			return 0, nil, r.err
		}
		return websocket.TextMessage, r.data, nil
	case <-f.closeCh:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closeCh:
		return net.ErrClosed
	default:
	}

	f.mu.Lock()
	f.written = append(f.written, append([]byte(nil), data...))
	hook := f.onWrite
	f.mu.Unlock()

	if hook != nil {
		hook(f, data)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closeCh) })
	f.closes.Add(1)
	return nil
}

// push 追加一帧
func (f *fakeTransport) push(frames ...string) {
	for _, s := range frames {
		f.inbox <- fakeRead{data: []byte(s)}
	}
}

// fail 追加一次读取错误
func (f *fakeTransport) fail(err error) {
	f.inbox <- fakeRead{err: err}
}

// writes 已写入的帧，按 method 过滤；method 为空时返回全部
func (f *fakeTransport) writes(method string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(f.written))
	for _, w := range f.written {
		var m map[string]any
		if err := json.Unmarshal(w, &m); err != nil {
			continue
		}
		if method == "" || m["method"] == method {
			out = append(out, m)
		}
	}
	return out
}

// ackWith 返回一个写入钩子：收到订阅类请求时回复指定 code 的确认，随后追加 after 中的帧
func ackWith(code int64, message string, after ...string) func(f *fakeTransport, data []byte) {
	return func(f *fakeTransport, data []byte) {
		var req SubscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		if req.Method != MethodSubscribe && req.Method != MethodUnsubscribe {
			return
		}
		f.push(ackJSON(req.ID, req.Method, code, message))
		f.push(after...)
	}
}

// newTestConn 基于内存传输创建连接
func newTestConn(t *testing.T, ft *fakeTransport, recvTimeout time.Duration) *Conn {
	t.Helper()
	c := NewConnWithTransport(ft, recvTimeout, zap.NewNop())
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func ackJSON(id int64, method string, code int64, message string) string {
	if message == "" {
		return fmt.Sprintf(`{"id":%d,"method":"%s","code":%d}`, id, method, code)
	}
	return fmt.Sprintf(`{"id":%d,"method":"%s","code":%d,"message":"%s"}`, id, method, code, message)
}

func heartbeatJSON(id int64) string {
	return fmt.Sprintf(`{"id":%d,"method":"public/heartbeat","code":0}`, id)
}

// bookPushJSON 构造一条单快照推送，买一 bid、卖一 ask
func bookPushJSON(topic string, bid, ask int) string {
	instrument, depth, err := ParseBookTopic(topic)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf(`{"id":-1,"method":"subscribe","code":0,"result":{"instrument_name":"%s","subscription":"%s","channel":"book","depth":%d,"data":[{"bids":[["%d","1.5","2"],["%d","0.1","1"]],"asks":[["%d","0.4","2"],["%d","3","1"]],"t":1654780033786}]}}`,
		instrument, topic, depth, bid, bid-1, ask, ask+1)
}
