package cases

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"market-api-conformance/internal/candle"
)

//go:embed cases.yaml
var defaultCases []byte

// Combinations 交易对与周期的轮询组合
type Combinations struct {
	Instruments []string `yaml:"instruments"`
	Timeframes  []string `yaml:"timeframes"`
	Count       int      `yaml:"count"`
}

type file struct {
	OrderBook    []*BookCase   `yaml:"orderbook"`
	Candle       []*CandleCase `yaml:"candle"`
	Combinations *Combinations `yaml:"combinations"`
}

// Table 用例表，保持文件中的顺序
type Table struct {
	all  []Case
	byID map[string]Case
}

// Default 加载内置用例表
func Default() (*Table, error) {
	return Parse(defaultCases)
}

// Load 加载用例表
// 参数 path: YAML 文件路径，为空时使用内置用例
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取用例文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验用例表
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析用例文件失败: %w", err)
	}

	t := &Table{byID: make(map[string]Case)}
	var errs []string
	add := func(c Case) {
		id := c.ID()
		if id == "" {
			errs = append(errs, fmt.Sprintf("第 %d 个用例缺少 id", len(t.all)+1))
			return
		}
		if _, dup := t.byID[id]; dup {
			errs = append(errs, fmt.Sprintf("%s: 用例 ID 重复", id))
			return
		}
		t.byID[id] = c
		t.all = append(t.all, c)
	}

	for _, b := range f.OrderBook {
		errs = append(errs, validateBook(b)...)
		add(Case{Kind: KindOrderBook, Book: b})
	}
	for _, c := range f.Candle {
		errs = append(errs, validateCandle(c)...)
		add(Case{Kind: KindCandle, Candle: c})
	}
	if f.Combinations != nil {
		for _, c := range f.Combinations.Generate() {
			add(Case{Kind: KindCandle, Candle: c})
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("用例表验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return t, nil
}

func validateBook(b *BookCase) []string {
	var errs []string
	for _, ch := range b.Channels() {
		if ch.InstrumentName == "" || ch.Depth <= 0 {
			errs = append(errs, fmt.Sprintf("%s: 频道需要 instrument_name 与正数 depth", b.ID))
		}
	}
	if b.Expected.MessageCount < 0 {
		errs = append(errs, fmt.Sprintf("%s: message_count 不能为负数", b.ID))
	}
	if !b.Expected.SubscriptionSuccess && (b.Expected.MessageCount > 0 || b.Expected.UnsubscribeSuccess) {
		errs = append(errs, fmt.Sprintf("%s: 订阅预期失败时不能要求推送或取消订阅", b.ID))
	}
	return errs
}

func validateCandle(c *CandleCase) []string {
	var errs []string
	if (c.Checks.Interval || c.Checks.Continuity) && c.Timeframe() != "" {
		if _, ok := candle.TimeframeInterval(c.Timeframe()); !ok {
			errs = append(errs, fmt.Sprintf("%s: 无法由周期 %q 推导间隔", c.ID, c.Timeframe()))
		}
	}
	if c.Iterations < 0 {
		errs = append(errs, fmt.Sprintf("%s: iterations 不能为负数", c.ID))
	}
	return errs
}

// Generate 轮询生成组合用例，保证每个交易对与周期至少出现一次
func (cb *Combinations) Generate() []*CandleCase {
	if len(cb.Instruments) == 0 || len(cb.Timeframes) == 0 {
		return nil
	}
	n := max(len(cb.Instruments), len(cb.Timeframes))
	code := int64(0)
	out := make([]*CandleCase, 0, n)
	for i := 0; i < n; i++ {
		inst := cb.Instruments[i%len(cb.Instruments)]
		tf := cb.Timeframes[i%len(cb.Timeframes)]
		params := map[string]any{"instrument_name": inst, "timeframe": tf}
		if cb.Count > 0 {
			params["count"] = cb.Count
		}
		out = append(out, &CandleCase{
			ID:          fmt.Sprintf("TC_COMBO_%03d", i+1),
			Category:    "combination",
			Description: fmt.Sprintf("获取 %s %s K线数据", inst, tf),
			Priority:    "P2",
			Tags:        []string{"combination", "coverage"},
			Params:      params,
			Expected:    CandleExpected{StatusCode: StatusCodes{200}, Code: &code},
		})
	}
	return out
}

// All 全部用例
func (t *Table) All() []Case {
	return append([]Case(nil), t.all...)
}

// Get 按 ID 查找用例
func (t *Table) Get(id string) (Case, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// ByKind 按类别筛选，空 Kind 返回全部
func (t *Table) ByKind(kind Kind) []Case {
	if kind == "" {
		return t.All()
	}
	var out []Case
	for _, c := range t.all {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Select 按 ID 列表与类别筛选
// 参数 ids: 为空时按类别返回；否则按给定顺序返回，未知 ID 报错
func (t *Table) Select(ids []string, kind Kind) ([]Case, error) {
	if len(ids) == 0 {
		return t.ByKind(kind), nil
	}
	var out []Case
	for _, id := range ids {
		c, ok := t.byID[id]
		if !ok {
			return nil, fmt.Errorf("未知用例 %q", id)
		}
		if kind != "" && c.Kind != kind {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
