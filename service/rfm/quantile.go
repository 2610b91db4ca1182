package rfm

import (
	"math"
	"sort"
)

// Bins 分箱数量
const Bins = 5

// QuantileEdges 计算 0, 1/5, ..., 1 六个分位点，线性插值，位置为 p*(n-1)
func QuantileEdges(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	edges := make([]float64, Bins+1)
	for i := 0; i <= Bins; i++ {
		pos := float64(i) / Bins * float64(n-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		edges[i] = sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
	}
	return edges
}

// BinOf 返回值所在分箱 1..5：满足 value <= edge[k] 的最小k
func BinOf(value float64, edges []float64) int {
	for k := 1; k <= Bins; k++ {
		if value <= edges[k] {
			return k
		}
	}
	return Bins
}

// DistinctCount 统计不同取值个数
func DistinctCount(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Classify 按总分阈值从高到低匹配分群
func Classify(total int) string {
	for _, t := range thresholds {
		if total >= t.min {
			return t.segment
		}
	}
	return thresholds[len(thresholds)-1].segment
}
