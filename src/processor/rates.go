package processor

import (
	"fmt"
	"math"
	"time"

	"github.com/EMen11/Aviation-Data-Pipeline/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// KPI 列名
const (
	YearMonthCol     = "year_month"
	YearMonthKeyCol  = "year_month_key"
	DelayedRateCol   = "delayed_rate"
	CancelRateCol    = "cancellation_rate"
	AvgDelayCol      = "avg_delay_min_per_delayed_flight"
	causeShareCtFmt  = "%s_cause_share_ct"
	causeShareMinFmt = "%s_cause_share_min"
)

// SafeRatio 逐元素相除，分母为0的位置返回NaN而不是报错或0
func SafeRatio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		if i >= len(den) || den[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out
}

// KpiRule 一条派生规则: Requires 中的列全部存在时才执行 Derive
type KpiRule struct {
	Name     string
	Requires []string
	Derive   func(df dataframe.DataFrame) []series.Series
}

// Applicable 判断前置列是否齐全
func (r KpiRule) Applicable(df dataframe.DataFrame) bool {
	return utils.HasColumns(df, r.Requires...)
}

// DefaultKpiRules 内置的KPI派生规则，causes 决定按原因拆分的占比列
func DefaultKpiRules(causes []string) []KpiRule {
	rules := []KpiRule{
		{
			Name:     "year_month",
			Requires: []string{"year", "month"},
			Derive:   deriveYearMonth,
		},
		ratioRule(DelayedRateCol, "arr_del15", "arr_flights"),
		{
			// 分母为 计划+取消+备降 的总保障量，不是 arr_flights
			Name:     CancelRateCol,
			Requires: []string{"arr_flights", "arr_cancelled", "arr_diverted"},
			Derive: func(df dataframe.DataFrame) []series.Series {
				flights := floatCol(df, "arr_flights")
				cancelled := floatCol(df, "arr_cancelled")
				handled := floats.AddTo(make([]float64, len(flights)), flights, cancelled)
				floats.Add(handled, floatCol(df, "arr_diverted"))
				return []series.Series{
					series.New(SafeRatio(cancelled, handled), series.Float, CancelRateCol),
				}
			},
		},
		ratioRule(AvgDelayCol, "arr_delay", "arr_del15"),
	}

	// 按原因: 延误架次占比
	for _, cause := range causes {
		rules = append(rules, ratioRule(CauseShareCtCol(cause), cause+"_ct", "arr_del15"))
	}
	// 按原因: 延误分钟占比
	for _, cause := range causes {
		rules = append(rules, ratioRule(CauseShareMinCol(cause), cause+"_delay", "arr_delay"))
	}
	return rules
}

func CauseShareCtCol(cause string) string  { return fmt.Sprintf(causeShareCtFmt, cause) }
func CauseShareMinCol(cause string) string { return fmt.Sprintf(causeShareMinFmt, cause) }

// ratioRule name = SafeRatio(numCol, denCol)
func ratioRule(name, numCol, denCol string) KpiRule {
	return KpiRule{
		Name:     name,
		Requires: []string{numCol, denCol},
		Derive: func(df dataframe.DataFrame) []series.Series {
			ratio := SafeRatio(floatCol(df, numCol), floatCol(df, denCol))
			return []series.Series{series.New(ratio, series.Float, name)}
		},
	}
}

// deriveYearMonth 生成当月1日的日期列和 "YYYY-MM" 键，非法年月为NA
func deriveYearMonth(df dataframe.DataFrame) []series.Series {
	years := df.Col("year")
	months := df.Col("month")

	dates := make([]string, df.Nrow())
	keys := make([]string, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		dates[i], keys[i] = "NaN", "NaN"

		y, okY := parseNullableInt(years.Elem(i))
		m, okM := parseNullableInt(months.Elem(i))
		if !okY || !okM || y < 1 || y > 9999 || m < 1 || m > 12 {
			continue
		}
		t := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		dates[i] = t.Format(utils.DateLayout)
		keys[i] = t.Format("2006-01")
	}

	return []series.Series{
		series.New(dates, series.String, YearMonthCol),
		series.New(keys, series.String, YearMonthKeyCol),
	}
}

// floatCol 取列的float值，NA为NaN
func floatCol(df dataframe.DataFrame, name string) []float64 {
	return df.Col(name).Float()
}

// KpiDeriver 依次尝试每条规则，前置列缺失的规则直接跳过
type KpiDeriver struct {
	Rules   []KpiRule
	Applied []string
	Skipped []string
}

func NewKpiDeriver(causes []string) *KpiDeriver {
	return &KpiDeriver{Rules: DefaultKpiRules(causes)}
}

func (kd *KpiDeriver) Name() string { return "derive_kpis" }

func (kd *KpiDeriver) Process(df *dataframe.DataFrame) error {
	kd.Applied, kd.Skipped = nil, nil

	for _, rule := range kd.Rules {
		if !rule.Applicable(*df) {
			kd.Skipped = append(kd.Skipped, rule.Name)
			continue
		}
		for _, s := range rule.Derive(*df) {
			*df = df.Mutate(s)
			if df.Err != nil {
				return eris.Wrapf(df.Err, "kpi: %s", rule.Name)
			}
		}
		kd.Applied = append(kd.Applied, rule.Name)
	}
	return nil
}
