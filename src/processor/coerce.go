package processor

import (
	"math"
	"strconv"
	"strings"

	"github.com/EMen11/Aviation-Data-Pipeline/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
)

// TypeCoercer 数值列转换:
//   - 计数/延误分钟列: 无法解析或缺失记为0(月度汇总数据，缺失即未发生)
//   - 年/月列: 转为可空整数，无法解析保持缺失
type TypeCoercer struct {
	NumericColumns []string
	IntColumns     []string
}

func NewTypeCoercer(numericCols []string) *TypeCoercer {
	return &TypeCoercer{
		NumericColumns: numericCols,
		IntColumns:     []string{"year", "month"},
	}
}

func (tc *TypeCoercer) Name() string { return "coerce_types" }

func (tc *TypeCoercer) Process(df *dataframe.DataFrame) error {
	for _, col := range tc.NumericColumns {
		if !utils.HasColumn(*df, col) {
			continue
		}
		*df = df.Mutate(ZeroFilledFloats(df.Col(col)))
		if df.Err != nil {
			return eris.Wrapf(df.Err, "coerce: %s", col)
		}
	}

	for _, col := range tc.IntColumns {
		if !utils.HasColumn(*df, col) {
			continue
		}
		*df = df.Mutate(NullableInts(df.Col(col)))
		if df.Err != nil {
			return eris.Wrapf(df.Err, "coerce: %s", col)
		}
	}
	return nil
}

// ZeroFilledFloats 转为float列，缺失/无法解析/NaN 记为0
func ZeroFilledFloats(s series.Series) series.Series {
	vals := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		f, ok := parseFloat(s.Elem(i))
		if !ok || math.IsNaN(f) {
			f = 0
		}
		vals[i] = f
	}
	return series.New(vals, series.Float, s.Name)
}

// NullableInts 转为int列，缺失/无法解析/非整数 记为NA
func NullableInts(s series.Series) series.Series {
	vals := make([]string, s.Len())
	for i := 0; i < s.Len(); i++ {
		if v, ok := parseNullableInt(s.Elem(i)); ok {
			vals[i] = strconv.Itoa(v)
		} else {
			vals[i] = "NaN"
		}
	}
	return series.New(vals, series.Int, s.Name)
}

func parseFloat(e series.Element) (float64, bool) {
	if e.IsNA() {
		return 0, false
	}
	switch e.Type() {
	case series.Float, series.Int, series.Bool:
		return e.Float(), true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(e.String()), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseNullableInt(e series.Element) (int, bool) {
	if e.IsNA() {
		return 0, false
	}
	if e.Type() == series.Int {
		v, err := e.Int()
		return v, err == nil
	}
	f, ok := parseFloat(e)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
