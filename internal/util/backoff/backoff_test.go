package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackoff_ExponentialGrowth 测试退避时间指数增长
func TestBackoff_ExponentialGrowth(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("无抖动时退避单调不减且不超过上限", prop.ForAll(
		func(baseMs int, maxMs int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			b := New(base, max, 0)

			prev := time.Duration(0)
			for i := 0; i < 40; i++ {
				delay := b.Next()
				if delay < prev || delay > max {
					return false
				}
				prev = delay
			}
			return prev == max
		},
		gen.IntRange(10, 2000),
		gen.IntRange(2000, 60000),
	))

	properties.TestingRun(t)
}

// TestBackoff_JitterBounds 测试抖动范围
func TestBackoff_JitterBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("首次延迟落在 base*(1±jitter) 内", prop.ForAll(
		func(jitterPercent int) bool {
			jitter := float64(jitterPercent) / 100.0
			base := 500 * time.Millisecond
			b := New(base, 5*time.Second, jitter)

			for i := 0; i < 50; i++ {
				b.Reset()
				delay := float64(b.Next())
				if delay < float64(base)*(1-jitter) || delay > float64(base)*(1+jitter) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func TestBackoff_DefaultConfig(t *testing.T) {
	b := NewDefault()
	assert.Equal(t, 500*time.Millisecond, b.base)
	assert.Equal(t, 5*time.Second, b.max)
	assert.Equal(t, 0.2, b.jitter)
}

func TestBackoff_SpecificValues(t *testing.T) {
	b := New(500*time.Millisecond, 5*time.Second, 0)
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second, // 8s 被截断
		5 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "attempt %d", i)
	}
	assert.Equal(t, len(want), b.Attempt())

	b.Reset()
	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, 500*time.Millisecond, b.Next())
}

func TestBackoff_JitterClamped(t *testing.T) {
	assert.Equal(t, 0.0, New(time.Second, time.Second, -1).jitter)
	assert.Equal(t, 1.0, New(time.Second, time.Second, 3).jitter)
}

func TestRetry(t *testing.T) {
	t.Run("第三次成功", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 5, New(time.Millisecond, 5*time.Millisecond, 0), func(attempt int) error {
			calls++
			assert.Equal(t, calls, attempt)
			if attempt < 3 {
				return errors.New("拒绝连接")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("全部失败保留最后一次错误", func(t *testing.T) {
		last := errors.New("第二次失败")
		calls := 0
		err := Retry(context.Background(), 2, New(time.Millisecond, time.Millisecond, 0), func(attempt int) error {
			calls++
			if attempt == 2 {
				return last
			}
			return errors.New("第一次失败")
		})
		assert.ErrorIs(t, err, last)
		assert.Equal(t, 2, calls)
	})

	t.Run("次数非正时执行一次", func(t *testing.T) {
		calls := 0
		_ = Retry(context.Background(), 0, NewDefault(), func(int) error {
			calls++
			return errors.New("失败")
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("等待期间取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cause := errors.New("握手失败")
		calls := 0
		start := time.Now()
		err := Retry(ctx, 3, New(time.Hour, time.Hour, 0), func(int) error {
			calls++
			cancel()
			return cause
		})
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), time.Second)
	})
}
