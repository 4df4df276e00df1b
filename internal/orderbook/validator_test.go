// Package orderbook 订单簿校验测试
package orderbook

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// levels 由整数价格构造档位，数量固定为 1
func levels(px ...int) []Level {
	out := make([]Level, len(px))
	for i, p := range px {
		out[i] = Level{Price: Value(strconv.Itoa(p)), Size: "1", Count: "1"}
	}
	return out
}

// expectedReason 参考实现：按检查顺序返回首个违例，合法时返回空串
func expectedReason(bids, asks []int) Reason {
	if len(bids) == 0 || len(asks) == 0 {
		return ReasonEmptySide
	}
	for i := 1; i < len(bids); i++ {
		if bids[i] > bids[i-1] {
			return ReasonBidOrder
		}
	}
	for i := 1; i < len(asks); i++ {
		if asks[i] < asks[i-1] {
			return ReasonAskOrder
		}
	}
	if bids[0] >= asks[0] {
		return ReasonCrossedBook
	}
	return ""
}

// TestValidate_MatchesReference 校验结果与参考实现一致
// 属性: 当且仅当四条规则全部满足时通过，否则返回首个违例类型
func TestValidate_MatchesReference(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("任意快照的校验结果与参考实现一致", prop.ForAll(
		func(bidPool, askPool []int, nb, na int) bool {
			bids, asks := bidPool[:nb], askPool[:na]
			want := expectedReason(bids, asks)

			err := Validate(&Snapshot{Bids: levels(bids...), Asks: levels(asks...), T: "1"})
			if want == "" {
				return err == nil
			}
			var ve *ValidationError
			return errors.As(err, &ve) && ve.Reason == want
		},
		gen.SliceOfN(6, gen.IntRange(1, 20)),
		gen.SliceOfN(6, gen.IntRange(1, 20)),
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
	))

	properties.Property("排序且不倒挂的快照必然通过", prop.ForAll(
		func(bids, asks []int) bool {
			sort.Sort(sort.Reverse(sort.IntSlice(bids)))
			sort.Ints(asks)
			// 卖盘整体抬高到买一之上
			for i := range asks {
				asks[i] += bids[0]
			}
			return Validate(&Snapshot{Bids: levels(bids...), Asks: levels(asks...), T: "1"}) == nil
		},
		gen.SliceOfN(5, gen.IntRange(1, 1000)),
		gen.SliceOfN(5, gen.IntRange(1, 1000)),
	))

	properties.TestingRun(t)
}

func TestValidate_Cases(t *testing.T) {
	tests := []struct {
		name   string
		bids   []Level
		asks   []Level
		reason Reason
		index  int
	}{
		{name: "合法快照", bids: levels(100, 99), asks: levels(101, 102)},
		{name: "同侧价格相等允许", bids: levels(100, 100, 99), asks: levels(101, 101)},
		{name: "买盘为空", bids: nil, asks: levels(101), reason: ReasonEmptySide},
		{name: "卖盘为空", bids: levels(100), asks: nil, reason: ReasonEmptySide},
		{name: "买盘升序", bids: levels(100, 105), asks: levels(106), reason: ReasonBidOrder, index: 1},
		{name: "卖盘降序", bids: levels(100), asks: levels(102, 101, 103), reason: ReasonAskOrder, index: 1},
		{name: "买卖价相等视为倒挂", bids: levels(101, 99), asks: levels(101, 102), reason: ReasonCrossedBook},
		{name: "买一高于卖一", bids: levels(103), asks: levels(101), reason: ReasonCrossedBook},
		{name: "买盘顺序先于倒挂报告", bids: levels(100, 200), asks: levels(50, 40), reason: ReasonBidOrder, index: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&Snapshot{Bids: tt.bids, Asks: tt.asks, T: "1"})
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.reason, ve.Reason)
			assert.ErrorIs(t, err, ErrValidation)
			if tt.index > 0 {
				assert.Equal(t, tt.index, ve.Index)
			}
		})
	}
}

func TestValidate_NilSnapshot(t *testing.T) {
	var ve *ValidationError
	require.ErrorAs(t, Validate(nil), &ve)
	assert.Equal(t, ReasonEmptySide, ve.Reason)
}

func TestValidate_UnparseablePrice(t *testing.T) {
	s := &Snapshot{
		Bids: []Level{{Price: "100", Size: "1"}, {Price: "abc", Size: "1"}},
		Asks: levels(101),
	}
	err := Validate(s)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, SideBid, de.Side)
	assert.Equal(t, 1, de.Index)
	assert.ErrorIs(t, err, ErrMalformedLevel)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestValidate_DoesNotMutate(t *testing.T) {
	s := &Snapshot{Bids: levels(100, 105), Asks: levels(101), T: "7"}
	before, err := json.Marshal(s)
	require.NoError(t, err)

	_ = Validate(s)

	after, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestSnapshot_UnmarshalWire(t *testing.T) {
	raw := `{"bids":[["50126.000000","0.400000","2"],[50125,1.5,1]],"asks":[["50130.000000","0.400000","2"]],"t":1654780033786}`

	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	require.Len(t, s.Bids, 2)
	assert.Equal(t, Value("50126.000000"), s.Bids[0].Price)
	assert.Equal(t, Value("50125"), s.Bids[1].Price)
	assert.Equal(t, Value("1.5"), s.Bids[1].Size)
	assert.Equal(t, Value("1654780033786"), s.T)
	assert.NoError(t, Validate(&s))

	spread, err := s.Spread()
	require.NoError(t, err)
	assert.Equal(t, "4", spread.String())
}

func TestLevel_UnmarshalRejectsShortArray(t *testing.T) {
	var l Level
	assert.Error(t, json.Unmarshal([]byte(`["100"]`), &l))
	assert.Error(t, json.Unmarshal([]byte(`{"price":"100"}`), &l))
	require.NoError(t, json.Unmarshal([]byte(`["100","2"]`), &l))
	assert.Equal(t, Value(""), l.Count)
}

func TestValidate_WireScenarios(t *testing.T) {
	t.Run("买盘乱序", func(t *testing.T) {
		var s Snapshot
		require.NoError(t, json.Unmarshal([]byte(`{"bids":[[100,1,1],[105,1,1]],"asks":[[110,1,1]],"t":1}`), &s))

		var ve *ValidationError
		require.ErrorAs(t, Validate(&s), &ve)
		assert.Equal(t, ReasonBidOrder, ve.Reason)
		assert.Equal(t, 1, ve.Index)
		assert.Equal(t, "100", ve.Prev.String())
		assert.Equal(t, "105", ve.Cur.String())
	})

	t.Run("买卖倒挂", func(t *testing.T) {
		var s Snapshot
		require.NoError(t, json.Unmarshal([]byte(`{"bids":[["110","1","1"]],"asks":[["105","1","1"]],"t":1}`), &s))

		var ve *ValidationError
		require.ErrorAs(t, Validate(&s), &ve)
		assert.Equal(t, ReasonCrossedBook, ve.Reason)
		assert.Equal(t, "110", ve.Prev.String())
		assert.Equal(t, "105", ve.Cur.String())
	})
}
