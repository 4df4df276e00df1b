package candle

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// 校验规则
var (
	ErrStatus         = errors.New("HTTP 状态码不符")
	ErrCode           = errors.New("业务码不符")
	ErrNoData         = errors.New("响应缺少数据")
	ErrStructure      = errors.New("K线结构错误")
	ErrPriceLogic     = errors.New("K线价格逻辑错误")
	ErrTimestampOrder = errors.New("时间戳无序")
	ErrCount          = errors.New("数据数量不符")
	ErrInterval       = errors.New("时间间隔不一致")
	ErrContinuity     = errors.New("数据不连续")
	ErrPriceRange     = errors.New("价格超出范围")
	ErrDuplicate      = errors.New("时间戳重复")
	ErrNullValue      = errors.New("存在空值")
	ErrConsistency    = errors.New("字段结构不一致")
)

const (
	// structureSample 结构校验抽样条数
	structureSample = 3
	// minIntervalRate 间隔符合率下限（百分比）
	minIntervalRate = 80.0
	// maxGapRate 间隙率上限（百分比）
	maxGapRate = 5.0
)

// ValidationError 校验失败详情
type ValidationError struct {
	// Rule 违反的规则（上方的哨兵错误之一）
	Rule error
	// Index K线下标，-1 表示针对整体
	Index  int
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s", e.Rule, e.Detail)
	}
	return fmt.Sprintf("%v: 第 %d 条: %s", e.Rule, e.Index, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Rule
}

func fail(rule error, index int, format string, args ...any) error {
	return &ValidationError{Rule: rule, Index: index, Detail: fmt.Sprintf(format, args...)}
}

// ValidateStatus 校验 HTTP 状态码
// 参数 expected: 允许的状态码，为空时要求 200
func ValidateStatus(resp *Response, expected []int) error {
	if len(expected) == 0 {
		expected = []int{200}
	}
	if resp == nil {
		return fail(ErrStatus, -1, "无响应")
	}
	if !slices.Contains(expected, resp.StatusCode) {
		return fail(ErrStatus, -1, "期望 %v，实际 %d", expected, resp.StatusCode)
	}
	return nil
}

// ValidateCode 校验响应业务码
func ValidateCode(resp *Response, expected int64) error {
	if resp == nil || resp.Envelope == nil {
		return fail(ErrCode, -1, "响应体不是合法 JSON")
	}
	if resp.Envelope.Code == nil {
		return fail(ErrCode, -1, "缺少 code 字段")
	}
	if got := *resp.Envelope.Code; got != expected {
		return fail(ErrCode, -1, "期望 %d，实际 %d", expected, got)
	}
	return nil
}

// DataExists 校验 result.data 存在且非空
// 返回: K线列表
func DataExists(resp *Response) ([]Candle, error) {
	if resp == nil || resp.Envelope == nil {
		return nil, fail(ErrNoData, -1, "响应体不是合法 JSON")
	}
	if resp.Envelope.Result == nil {
		return nil, fail(ErrNoData, -1, "缺少 result 字段")
	}
	if len(resp.Envelope.Result.Data) == 0 {
		return nil, fail(ErrNoData, -1, "result.data 为空")
	}
	return resp.Envelope.Result.Data, nil
}

// ValidateStructure 校验前 3 条 K线具备全部必需字段
func ValidateStructure(data []Candle) error {
	for i, c := range data[:min(structureSample, len(data))] {
		for _, f := range RequiredFields {
			if _, ok := c.Get(f); !ok {
				return fail(ErrStructure, i, "缺少字段 %s", f)
			}
		}
	}
	return nil
}

// ValidateNoMissingFields 校验所有 K线具备全部必需字段
func ValidateNoMissingFields(data []Candle) error {
	missing := 0
	first := -1
	for i, c := range data {
		for _, f := range RequiredFields {
			if _, ok := c.Get(f); !ok {
				missing++
				if first < 0 {
					first = i
				}
			}
		}
	}
	if missing > 0 {
		return fail(ErrStructure, first, "共缺失 %d 个字段", missing)
	}
	return nil
}

// ValidatePriceLogic 校验价格关系
// high >= open, close, low；low <= open, close；价格 > 0；成交量 >= 0
func ValidatePriceLogic(data []Candle) error {
	for i, c := range data {
		var px [5]decimal.Decimal
		for j, f := range []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume} {
			d, err := c.Decimal(f)
			if err != nil {
				return fail(ErrStructure, i, "%v", err)
			}
			px[j] = d
		}
		o, h, l, cl, v := px[0], px[1], px[2], px[3], px[4]

		switch {
		case h.LessThan(o):
			return fail(ErrPriceLogic, i, "high (%s) 应 >= open (%s)", h, o)
		case h.LessThan(cl):
			return fail(ErrPriceLogic, i, "high (%s) 应 >= close (%s)", h, cl)
		case h.LessThan(l):
			return fail(ErrPriceLogic, i, "high (%s) 应 >= low (%s)", h, l)
		case l.GreaterThan(o):
			return fail(ErrPriceLogic, i, "low (%s) 应 <= open (%s)", l, o)
		case l.GreaterThan(cl):
			return fail(ErrPriceLogic, i, "low (%s) 应 <= close (%s)", l, cl)
		case !o.IsPositive() || !h.IsPositive() || !l.IsPositive() || !cl.IsPositive():
			return fail(ErrPriceLogic, i, "价格必须为正数")
		case v.IsNegative():
			return fail(ErrPriceLogic, i, "成交量 (%s) 应 >= 0", v)
		}
	}
	return nil
}

func timestamps(data []Candle) ([]int64, error) {
	out := make([]int64, len(data))
	for i, c := range data {
		ts, err := c.Timestamp()
		if err != nil {
			return nil, fail(ErrStructure, i, "%v", err)
		}
		out[i] = ts
	}
	return out, nil
}

// ValidateTimestampOrder 校验时间戳整体升序或整体降序（允许相等）
// 少于 2 条时跳过
func ValidateTimestampOrder(data []Candle) error {
	if len(data) < 2 {
		return nil
	}
	ts, err := timestamps(data)
	if err != nil {
		return err
	}
	asc := sort.SliceIsSorted(ts, func(i, j int) bool { return ts[i] < ts[j] })
	desc := sort.SliceIsSorted(ts, func(i, j int) bool { return ts[i] > ts[j] })
	if !asc && !desc {
		return fail(ErrTimestampOrder, -1, "既非升序也非降序")
	}
	return nil
}

// ValidateCount 校验数据数量
// 参数 exact: 精确数量，<= 0 表示不校验
// 参数 maxCount: 数量上限，<= 0 表示不校验
func ValidateCount(data []Candle, exact, maxCount int) error {
	if exact > 0 && len(data) != exact {
		return fail(ErrCount, -1, "期望 %d 条，实际 %d 条", exact, len(data))
	}
	if maxCount > 0 && len(data) > maxCount {
		return fail(ErrCount, -1, "期望 <= %d 条，实际 %d 条", maxCount, len(data))
	}
	return nil
}

// ValidateMinCount 校验数据数量下限，minCount <= 0 表示不校验
func ValidateMinCount(data []Candle, minCount int) error {
	if minCount > 0 && len(data) < minCount {
		return fail(ErrCount, -1, "期望 >= %d 条，实际 %d 条", minCount, len(data))
	}
	return nil
}

// ValidatePriceRange 校验收盘价范围，nil 表示该侧不限
func ValidatePriceRange(data []Candle, lo, hi *decimal.Decimal) error {
	for i, c := range data {
		cl, err := c.Decimal(FieldClose)
		if err != nil {
			return fail(ErrStructure, i, "%v", err)
		}
		if lo != nil && cl.LessThan(*lo) {
			return fail(ErrPriceRange, i, "close (%s) 应 >= %s", cl, lo)
		}
		if hi != nil && cl.GreaterThan(*hi) {
			return fail(ErrPriceRange, i, "close (%s) 应 <= %s", cl, hi)
		}
	}
	return nil
}

// diffs 相邻时间戳差的绝对值（毫秒），兼容降序数据
func diffs(data []Candle) ([]int64, error) {
	ts, err := timestamps(data)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(ts))
	for i := 1; i < len(ts); i++ {
		d := ts[i] - ts[i-1]
		if d < 0 {
			d = -d
		}
		out = append(out, d)
	}
	return out, nil
}

func toleranceMs(expected, tolerance time.Duration) int64 {
	if tolerance <= 0 {
		return expected.Milliseconds() / 10
	}
	return tolerance.Milliseconds()
}

// ValidateInterval 校验相邻间隔与周期一致
// 至少 80% 的间隔落在 expected±tolerance 内；tolerance <= 0 时取 expected 的 10%
func ValidateInterval(data []Candle, expected, tolerance time.Duration) error {
	if len(data) < 2 || expected <= 0 {
		return nil
	}
	ds, err := diffs(data)
	if err != nil {
		return err
	}
	want, tol := expected.Milliseconds(), toleranceMs(expected, tolerance)
	valid := 0
	for _, d := range ds {
		if abs(d-want) <= tol {
			valid++
		}
	}
	rate := float64(valid) / float64(len(ds)) * 100
	if rate < minIntervalRate {
		return fail(ErrInterval, -1, "符合率 %.1f%% < %.0f%%（期望间隔 %dms）", rate, minIntervalRate, want)
	}
	return nil
}

// ValidateContinuity 校验间隙率不超过 5%
func ValidateContinuity(data []Candle, expected, tolerance time.Duration) error {
	if len(data) < 2 || expected <= 0 {
		return nil
	}
	ds, err := diffs(data)
	if err != nil {
		return err
	}
	want, tol := expected.Milliseconds(), toleranceMs(expected, tolerance)
	gaps := 0
	for _, d := range ds {
		if abs(d-want) > tol {
			gaps++
		}
	}
	rate := float64(gaps) / float64(len(ds)) * 100
	if rate > maxGapRate {
		return fail(ErrContinuity, -1, "间隙率 %.1f%% > %.0f%%（%d 处）", rate, maxGapRate, gaps)
	}
	return nil
}

// ValidateNoDuplicateTimestamps 校验时间戳唯一
func ValidateNoDuplicateTimestamps(data []Candle) error {
	ts, err := timestamps(data)
	if err != nil {
		return err
	}
	seen := make(map[int64]int, len(ts))
	for i, t := range ts {
		if first, ok := seen[t]; ok {
			return fail(ErrDuplicate, i, "时间戳 %d 与第 %d 条重复", t, first)
		}
		seen[t] = i
	}
	return nil
}

// ValidateNoNulls 校验任何字段都不为 null
func ValidateNoNulls(data []Candle) error {
	for i, c := range data {
		for k, v := range c {
			if v == nil {
				return fail(ErrNullValue, i, "字段 %q 为空值", k)
			}
		}
	}
	return nil
}

// ValidateConsistency 校验所有 K线字段集合相同
func ValidateConsistency(data []Candle) error {
	if len(data) == 0 {
		return nil
	}
	first := data[0]
	for i, c := range data[1:] {
		if len(c) != len(first) {
			return fail(ErrConsistency, i+1, "字段数 %d 与首条 %d 不同", len(c), len(first))
		}
		for k := range first {
			if _, ok := c[k]; !ok {
				return fail(ErrConsistency, i+1, "缺少首条中的字段 %q", k)
			}
		}
	}
	return nil
}

// ValidateCompleteness 组合完整性校验：字段齐全、无空值、无重复时间戳、结构一致
func ValidateCompleteness(data []Candle) error {
	return errors.Join(
		ValidateNoMissingFields(data),
		ValidateNoNulls(data),
		ValidateNoDuplicateTimestamps(data),
		ValidateConsistency(data),
	)
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
