package processor

import (
	"math"
	"testing"

	"github.com/EMen11/Aviation-Data-Pipeline/src/config"
	"github.com/EMen11/Aviation-Data-Pipeline/src/storage"
	"github.com/EMen11/Aviation-Data-Pipeline/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var scenarioHeader = []string{
	"Year", "Month", "Arr Flights", "arr_del15", "arr-cancelled", "arr.diverted",
	"carrier_ct", "weather_ct", "nas_ct", "security_ct", "late_aircraft_ct",
	"arr_delay", "carrier_delay", "weather_delay", "nas_delay", "security_delay", "late_aircraft_delay",
	"carrier_name",
}

var scenarioRow = []string{
	"2023", "1", "100", "20", "5", "0",
	"10", "5", "3", "0", "2",
	"500", "200", "100", "100", "0", "100",
	"Endeavor Air Inc.",
}

// loadRaw 构造与读取原始csv一致的全字符串表
func loadRaw(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
	)
	require.NoError(t, df.Err)
	return df
}

func TestToSnake(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Arr Flights ", "arr_flights"},
		{"carrier/name", "carrier_name"},
		{"arr-del.15", "arr_del_15"},
		{"NAS_Delay", "nas_delay"},
		{"a__b", "a_b"},
		{"Late  Aircraft\tCt", "late_aircraft_ct"},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSnake(tt.in))
		})
	}
}

func TestToSnakeIdempotent(t *testing.T) {
	inputs := []string{
		"Arr Flights", "Weather (ct)", "%%%", "__x__", "Año/Mes", "a - b . c", "İstanbul", "ÄrR_DEL15",
	}
	for _, in := range inputs {
		once := ToSnake(in)
		assert.Equal(t, once, ToSnake(once), "input %q", in)
	}
}

func TestNormalizeNames(t *testing.T) {
	got := NormalizeNames([]string{"Year", "year", " ", "YEAR", "Carrier Name"})
	assert.Equal(t, []string{"year", "year_2", "unnamed_2", "year_3", "carrier_name"}, got)
}

func TestSafeRatio(t *testing.T) {
	got := SafeRatio([]float64{1, 0, 5, 3, 7}, []float64{2, 0, 0, 4})

	require.Len(t, got, 5)
	assert.Equal(t, 0.5, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsNaN(got[2]))
	assert.Equal(t, 0.75, got[3])
	assert.True(t, math.IsNaN(got[4]))

	assert.Empty(t, SafeRatio(nil, nil))
}

func TestTypeCoercer(t *testing.T) {
	df := loadRaw(t, [][]string{
		{"year", "month", "arr_flights", "arr_delay", "carrier_name"},
		{"2023", "1", "100", "12.5", "AA"},
		{"20x3", "1.5", "abc", "", "DL"},
		{"", "12", "NaN", " 7 ", "UA"},
	})

	tc := NewTypeCoercer([]string{"arr_flights", "arr_delay", "weather_ct"})
	require.NoError(t, tc.Process(&df))

	assert.Equal(t, series.Float, df.Col("arr_flights").Type())
	assert.Equal(t, []float64{100, 0, 0}, df.Col("arr_flights").Float())
	assert.Equal(t, []float64{12.5, 0, 7}, df.Col("arr_delay").Float())
	assert.False(t, utils.HasColumn(df, "weather_ct"))

	years := df.Col("year")
	assert.Equal(t, series.Int, years.Type())
	v, err := years.Elem(0).Int()
	require.NoError(t, err)
	assert.Equal(t, 2023, v)
	assert.True(t, years.Elem(1).IsNA())
	assert.True(t, years.Elem(2).IsNA())

	months := df.Col("month")
	assert.True(t, months.Elem(1).IsNA())
	v, err = months.Elem(2).Int()
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	assert.Equal(t, series.String, df.Col("carrier_name").Type())
}

func TestKpiRulesSkippedWithoutSources(t *testing.T) {
	causes := config.DefaultDataConfig().GetCauses()
	full := loadRaw(t, [][]string{scenarioHeader, scenarioRow})
	require.NoError(t, ColumnNormalizer{}.Process(&full))
	require.NoError(t, NewTypeCoercer(config.DefaultDataConfig().NumericColumns()).Process(&full))

	for _, rule := range DefaultKpiRules(causes) {
		rule := rule
		t.Run(rule.Name, func(t *testing.T) {
			// 逐个删除前置列，规则都应跳过且不产生任何派生列
			for _, missing := range rule.Requires {
				df := full.Drop(missing)
				require.NoError(t, df.Err)

				kd := &KpiDeriver{Rules: []KpiRule{rule}}
				require.NoError(t, kd.Process(&df))

				assert.Equal(t, []string{rule.Name}, kd.Skipped)
				assert.Empty(t, kd.Applied)
				assert.Equal(t, full.Ncol()-1, df.Ncol(), "missing %s", missing)
			}
		})
	}
}

func TestKpiDeriverAppliesAllRules(t *testing.T) {
	dcfg := config.DefaultDataConfig()
	df := loadRaw(t, [][]string{scenarioHeader, scenarioRow})
	require.NoError(t, ColumnNormalizer{}.Process(&df))
	require.NoError(t, NewTypeCoercer(dcfg.NumericColumns()).Process(&df))

	kd := NewKpiDeriver(dcfg.GetCauses())
	require.NoError(t, kd.Process(&df))

	assert.Empty(t, kd.Skipped)
	assert.Len(t, kd.Applied, 4+2*len(dcfg.GetCauses()))
	for _, cause := range dcfg.GetCauses() {
		assert.True(t, utils.HasColumn(df, CauseShareCtCol(cause)), cause)
		assert.True(t, utils.HasColumn(df, CauseShareMinCol(cause)), cause)
	}
}

func TestDeriveYearMonth(t *testing.T) {
	df := loadRaw(t, [][]string{
		{"year", "month"},
		{"2023", "1"},
		{"2023", "13"},
		{"", "5"},
		{"1999", "12"},
	})
	require.NoError(t, NewTypeCoercer(nil).Process(&df))

	kd := &KpiDeriver{Rules: DefaultKpiRules(nil)}
	require.NoError(t, kd.Process(&df))
	assert.Equal(t, []string{"year_month"}, kd.Applied)

	dates := df.Col(YearMonthCol)
	keys := df.Col(YearMonthKeyCol)
	assert.Equal(t, "2023-01-01", dates.Elem(0).String())
	assert.Equal(t, "2023-01", keys.Elem(0).String())
	assert.True(t, dates.Elem(1).IsNA())
	assert.True(t, keys.Elem(1).IsNA())
	assert.True(t, dates.Elem(2).IsNA())
	assert.Equal(t, "1999-12", keys.Elem(3).String())
}

func TestQualityCheckerCountsExactly(t *testing.T) {
	df := loadRaw(t, [][]string{
		{"arr_del15", "carrier_ct", "weather_ct", "nas_ct", "security_ct", "late_aircraft_ct"},
		{"20", "10", "5", "3", "0", "2"},   // 20 = 20
		{"20", "10", "5", "3", "0", "2.5"}, // 20.5 > 20
		{"0", "0", "0", "0", "0", "1"},     // 1 > 0
		{"", "1", "", "", "", ""},          // 缺失记0: 1 > 0
		{"100", "1", "1", "1", "1", "1"},   // 5 < 100
	})
	dcfg := config.DefaultDataConfig()
	require.NoError(t, NewTypeCoercer(dcfg.NumericColumns()).Process(&df))

	qc := NewQualityChecker(dcfg.GetCauses())
	require.NoError(t, qc.Process(&df))

	flags := df.Col(FlagColumn)
	assert.Equal(t, series.Bool, flags.Type())
	got := make([]bool, flags.Len())
	for i := range got {
		b, err := flags.Elem(i).Bool()
		require.NoError(t, err)
		got[i] = b
	}
	assert.Equal(t, []bool{false, true, true, true, false}, got)
	assert.Equal(t, map[string]int{CheckKey: 3}, qc.Results())
}

func TestQualityCheckerSkipsWithoutColumns(t *testing.T) {
	df := loadRaw(t, [][]string{
		{"arr_del15", "carrier_ct"},
		{"1", "2"},
	})
	qc := NewQualityChecker(config.DefaultDataConfig().GetCauses())
	require.NoError(t, qc.Process(&df))

	assert.False(t, qc.Checked)
	assert.Empty(t, qc.Results())
	assert.False(t, utils.HasColumn(df, FlagColumn))
}

func TestPipelineScenario(t *testing.T) {
	raw := loadRaw(t, [][]string{scenarioHeader, scenarioRow})

	p := NewPipeline(config.DefaultDataConfig(), nil)
	df, checks, err := p.Run(raw)
	require.NoError(t, err)

	// 原始表不受影响
	assert.Equal(t, "Arr Flights", raw.Names()[2])

	assert.Equal(t, 1, df.Nrow())
	assert.InDelta(t, 0.20, df.Col(DelayedRateCol).Elem(0).Float(), 1e-12)
	assert.InDelta(t, 5.0/105.0, df.Col(CancelRateCol).Elem(0).Float(), 1e-12)
	assert.InDelta(t, 25.0, df.Col(AvgDelayCol).Elem(0).Float(), 1e-12)
	assert.InDelta(t, 0.5, df.Col(CauseShareCtCol("carrier")).Elem(0).Float(), 1e-12)
	assert.InDelta(t, 0.4, df.Col(CauseShareMinCol("carrier")).Elem(0).Float(), 1e-12)
	assert.Equal(t, "2023-01-01", df.Col(YearMonthCol).Elem(0).String())
	assert.Equal(t, "2023-01", df.Col(YearMonthKeyCol).Elem(0).String())

	flag, err := df.Col(FlagColumn).Elem(0).Bool()
	require.NoError(t, err)
	assert.False(t, flag)
	assert.Equal(t, map[string]int{CheckKey: 0}, checks)

	assert.Equal(t, "Endeavor Air Inc.", df.Col("carrier_name").Elem(0).String())
	assert.Contains(t, df.Names(), "arr_cancelled")
	assert.Contains(t, df.Names(), "arr_diverted")
}

func TestPipelineZeroFlights(t *testing.T) {
	raw := loadRaw(t, [][]string{
		{"year", "month", "arr_flights", "arr_del15", "arr_cancelled", "arr_diverted", "arr_delay"},
		{"2023", "2", "0", "0", "0", "0", "0"},
	})

	df, _, err := NewPipeline(config.DefaultDataConfig(), nil).Run(raw)
	require.NoError(t, err)

	rate := df.Col(DelayedRateCol).Elem(0)
	assert.True(t, math.IsNaN(rate.Float()))
	assert.True(t, math.IsNaN(df.Col(CancelRateCol).Elem(0).Float()))
	assert.True(t, math.IsNaN(df.Col(AvgDelayCol).Elem(0).Float()))
	assert.False(t, utils.HasColumn(df, FlagColumn))
}

func TestPipelineLogsFlaggedRows(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := storage.NewLoggerFromZap(zap.New(core))

	raw := loadRaw(t, [][]string{
		{"arr_del15", "carrier_ct", "weather_ct", "nas_ct", "security_ct", "late_aircraft_ct"},
		{"1", "1", "1", "0", "0", "0"},
		{"1", "1", "0", "0", "0", "0"},
	})
	_, checks, err := NewPipeline(config.DefaultDataConfig(), logger).Run(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, checks[CheckKey])

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, int64(1), warnings[0].ContextMap()["rows"])

	passes := logs.FilterMessage("pass finished").Len()
	assert.Equal(t, len(NewPipeline(config.DefaultDataConfig(), nil).Passes()), passes)
}

func TestPipelineRejectsBrokenInput(t *testing.T) {
	_, _, err := NewPipeline(config.DefaultDataConfig(), nil).Run(dataframe.DataFrame{Err: assert.AnError})
	assert.Error(t, err)
}

func TestPipelineNormalizesRawHeader(t *testing.T) {
	raw := loadRaw(t, [][]string{
		{"Year", "year", "", "Month"},
		{"2023", "2022", "x", "1"},
	})
	// 读取时保留的原始表头(含空/重复列名)
	require.NoError(t, raw.SetNames("Year", "year", "", "Month"))

	df, _, err := NewPipeline(config.DefaultDataConfig(), nil).Run(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"year", "year_2", "unnamed_2", "month", YearMonthCol, YearMonthKeyCol}, df.Names())
	assert.Equal(t, "x", df.Col("unnamed_2").Elem(0).String())
	assert.Equal(t, "2023-01-01", df.Col(YearMonthCol).Elem(0).String())
}

func TestPipelineZeroRows(t *testing.T) {
	header := []string{"Year", "Month", "Arr Flights", "arr_del15"}
	cols := make([]series.Series, len(header))
	for i, name := range header {
		cols[i] = series.New([]string{}, series.String, name)
	}
	raw := dataframe.New(cols...)
	require.NoError(t, raw.Err)

	df, checks, err := NewPipeline(config.DefaultDataConfig(), nil).Run(raw)
	require.NoError(t, err)

	assert.Equal(t, 0, df.Nrow())
	assert.Equal(t, []string{"year", "month", "arr_flights", "arr_del15", YearMonthCol, YearMonthKeyCol, DelayedRateCol}, df.Names())
	assert.Equal(t, series.Float, df.Col("arr_flights").Type())
	assert.Empty(t, checks)
}

func TestYearMonthLabelledAsDate(t *testing.T) {
	assert.True(t, utils.Contains(utils.DateColumns, YearMonthCol))
}
