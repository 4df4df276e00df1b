package runner

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"market-api-conformance/internal/candle"
	"market-api-conformance/internal/config"
	"market-api-conformance/internal/ws"
)

// fakeExchange 模拟行情 WebSocket：应答订阅、周期推送订单簿、穿插心跳
type fakeExchange struct {
	// reject 订阅该交易对时返回 10004
	reject string
	// crossed 推送买一高于卖一的盘口
	crossed bool
	// silent 确认后不推送
	silent bool

	upgrader         websocket.Upgrader
	unsubscribes     atomic.Int32
	heartbeatReplies atomic.Int32
}

type wsRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params struct {
		Channels []string `json:"channels"`
	} `json:"params"`
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var (
		writeMu  sync.Mutex
		topicsMu sync.Mutex
		topics   []string
	)
	write := func(s string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, []byte(s))
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for n := 0; ; n++ {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			if n%7 == 0 {
				if write(fmt.Sprintf(`{"id":%d,"method":"public/heartbeat","code":0}`, 1000+n)) != nil {
					return
				}
			}
			if f.silent {
				continue
			}
			topicsMu.Lock()
			cur := append([]string(nil), topics...)
			topicsMu.Unlock()
			for _, tp := range cur {
				if write(f.bookPush(tp, n)) != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if json.Unmarshal(data, &req) != nil {
			continue
		}
		switch req.Method {
		case ws.MethodRespondHeartbeat:
			f.heartbeatReplies.Add(1)
		case ws.MethodSubscribe:
			if f.rejects(req.Params.Channels) {
				_ = write(fmt.Sprintf(`{"id":%d,"method":"subscribe","code":10004,"message":"INVALID_REQUEST"}`, req.ID))
				continue
			}
			_ = write(fmt.Sprintf(`{"id":%d,"method":"subscribe","code":0}`, req.ID))
			topicsMu.Lock()
			topics = append(topics, req.Params.Channels...)
			topicsMu.Unlock()
		case ws.MethodUnsubscribe:
			f.unsubscribes.Add(1)
			topicsMu.Lock()
			topics = nil
			topicsMu.Unlock()
			_ = write(fmt.Sprintf(`{"id":%d,"method":"unsubscribe","code":0}`, req.ID))
		}
	}
}

func (f *fakeExchange) rejects(channels []string) bool {
	if f.reject == "" {
		return false
	}
	for _, ch := range channels {
		if strings.Contains(ch, "."+f.reject+".") {
			return true
		}
	}
	return false
}

func (f *fakeExchange) bookPush(topic string, n int) string {
	instrument, depth, err := ws.ParseBookTopic(topic)
	if err != nil {
		panic(err)
	}
	bestAsk := "101.0"
	if f.crossed {
		bestAsk = "100.0"
	}
	return fmt.Sprintf(`{"id":-1,"method":"subscribe","code":0,"result":{"instrument_name":"%s","subscription":"%s","channel":"book","depth":%d,`+
		`"data":[{"bids":[["100.5","1","1"],["100.0","2","1"],["99.5","3","2"]],"asks":[["%s","1","1"],["101.5","2","1"]],"t":%d}]}}`,
		instrument, topic, depth, bestAsk, 1654780033786+int64(n))
}

// candleServer 模拟 K线接口
type candleServer struct {
	// status 非零时固定返回该状态码
	status int
	// delay 每次响应前的延迟
	delay time.Duration
	// badPrice 生成 high 低于 open 的 K线
	badPrice bool
	hits     atomic.Int32
}

func (s *candleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(`{"code":50001,"message":"SYS_ERROR"}`))
		return
	}

	q := r.URL.Query()
	inst, tf := q.Get("instrument_name"), q.Get("timeframe")
	step, ok := candle.TimeframeInterval(tf)
	count := 25
	if c := q.Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n <= 0 {
			ok = false
		}
		count = min(n, 300)
	}
	if inst == "" || inst == "INVALID_PAIR" || !ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"id":-1,"method":"public/get-candlestick","code":40003,"message":"INVALID_OR_MISSING_PARAMETER"}`))
		return
	}

	data := make([]map[string]any, count)
	start := int64(1654776000000)
	for i := range data {
		high := "105"
		if s.badPrice && i == count-1 {
			high = "99"
		}
		data[i] = map[string]any{
			"o": "100", "h": high, "l": "95", "c": "101", "v": "2.5",
			"t": start + int64(i)*step.Milliseconds(),
		}
	}
	body, _ := json.Marshal(map[string]any{
		"id":     -1,
		"method": "public/get-candlestick",
		"code":   0,
		"result": map[string]any{"instrument_name": inst, "interval": tf, "data": data},
	})
	_, _ = w.Write(body)
}

func testConfig(t *testing.T, wsURL, restURL string) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{Name: "test", LogLevel: "info"},
		WS: config.WSConfig{
			URL:               wsURL,
			ConnectTimeoutMs:  2000,
			ConnectAttempts:   2,
			AckTimeoutMs:      2000,
			RecvTimeoutMs:     50,
			CollectDeadlineMs: 2000,
		},
		REST: config.RESTConfig{
			BaseURL:         restURL,
			CandlestickPath: "/public/get-candlestick",
			TimeoutMs:       2000,
			RequestsPerSec:  1000,
			Burst:           100,
		},
		Output: config.OutputConfig{Dir: t.TempDir(), BufferSize: 64},
	}
}

func startWS(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startREST(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}
