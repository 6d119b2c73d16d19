package report

import (
	"math"
	"sort"

	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats 单列描述统计，缺失值不参与计算
type ColumnStats struct {
	Name  string
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
}

// Describe 计算 count/mean/std/min/25%/50%/75%/max
//
// std 为样本标准差(n-1)，少于2个值时为NaN；分位数在相邻秩之间线性插值。
func Describe(s series.Series) ColumnStats {
	vals := make([]float64, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		if f := e.Float(); !math.IsNaN(f) {
			vals = append(vals, f)
		}
	}

	cs := ColumnStats{Name: s.Name, Count: len(vals)}
	if len(vals) == 0 {
		nan := math.NaN()
		cs.Mean, cs.Std, cs.Min, cs.Q25, cs.Q50, cs.Q75, cs.Max = nan, nan, nan, nan, nan, nan, nan
		return cs
	}

	sort.Float64s(vals)
	cs.Mean = stat.Mean(vals, nil)
	cs.Std = math.NaN()
	if len(vals) > 1 {
		cs.Std = stat.StdDev(vals, nil)
	}
	cs.Min = vals[0]
	cs.Max = vals[len(vals)-1]
	cs.Q25 = quantile(vals, 0.25)
	cs.Q50 = quantile(vals, 0.50)
	cs.Q75 = quantile(vals, 0.75)
	return cs
}

// quantile sorted 必须已升序
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// IsNumeric int/float 列参与描述统计
func IsNumeric(s series.Series) bool {
	return s.Type() == series.Int || s.Type() == series.Float
}
