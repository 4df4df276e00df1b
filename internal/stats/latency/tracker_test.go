package latency

import (
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestTracker_Percentiles(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("分位数、最大值、均值与排序结果一致", prop.ForAll(
		func(samplesMs []int64) bool {
			tr := NewTracker(1000)
			for _, ms := range samplesMs {
				tr.Add("TC_PERF_001", time.Duration(ms)*time.Millisecond)
			}
			stats := tr.Stats("TC_PERF_001")

			sorted := make([]int64, len(samplesMs))
			copy(sorted, samplesMs)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

			var sum int64
			for _, v := range sorted {
				sum += v
			}
			n := len(sorted)
			return stats.Count == int64(n) &&
				approxEqual(stats.P50Ms, float64(sorted[int(float64(n-1)*0.50)]), 1e-9) &&
				approxEqual(stats.P90Ms, float64(sorted[int(float64(n-1)*0.90)]), 1e-9) &&
				approxEqual(stats.P95Ms, float64(sorted[int(float64(n-1)*0.95)]), 1e-9) &&
				approxEqual(stats.P99Ms, float64(sorted[int(float64(n-1)*0.99)]), 1e-9) &&
				approxEqual(stats.MaxMs, float64(sorted[n-1]), 1e-9) &&
				approxEqual(stats.MeanMs, float64(sum)/float64(n), 1e-6)
		},
		gen.SliceOfN(20, gen.Int64Range(0, 5000)),
	))

	properties.TestingRun(t)
}

func TestTracker_SeriesIndependence(t *testing.T) {
	tr := NewTracker(100)
	tr.Add("BTCUSD-PERP/1h", 10*time.Millisecond)
	tr.Add("ETHUSD-PERP/5m", 100*time.Millisecond)
	tr.Add("BTCUSD-PERP/1h", 10*time.Millisecond)

	assert.Equal(t, 10.0, tr.Stats("BTCUSD-PERP/1h").P50Ms)
	assert.Equal(t, int64(2), tr.Stats("BTCUSD-PERP/1h").Count)
	assert.Equal(t, 100.0, tr.Stats("ETHUSD-PERP/5m").P50Ms)
	assert.Equal(t, []string{"BTCUSD-PERP/1h", "ETHUSD-PERP/5m"}, tr.Series())

	empty := tr.Stats("missing")
	assert.Equal(t, "missing", empty.Series)
	assert.Zero(t, empty.Count)
}

func TestTracker_WindowRolls(t *testing.T) {
	tr := NewTracker(3)
	for _, ms := range []int64{1000, 1000, 1000, 5, 5, 5} {
		tr.Add("s", time.Duration(ms)*time.Millisecond)
	}
	stats := tr.Stats("s")
	assert.Equal(t, int64(6), stats.Count)
	assert.Equal(t, 5.0, stats.MaxMs, "窗口外的旧样本不参与统计")
}

func TestTracker_NegativeClamped(t *testing.T) {
	tr := NewTracker(10)
	tr.Add("s", -time.Second)
	assert.Equal(t, 0.0, tr.Stats("s").MaxMs)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(10000)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tr.Add("shared", time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(4000), tr.Stats("shared").Count)
	assert.Len(t, tr.Series(), 1)
}

func approxEqual(a, b float64, eps float64) bool {
	return math.Abs(a-b) <= eps
}
