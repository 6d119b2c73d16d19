package processor

import (
	"github.com/EMen11/Aviation-Data-Pipeline/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

const (
	// FlagColumn 原因计数之和超过延误架次时为true
	FlagColumn = "cause_counts_exceed_delayed_flag"
	// CheckKey 质量检查结果中的计数键
	CheckKey = "rows_where_cause_counts_exceed_delayed"
)

// QualityChecker 检查各原因延误架次之和是否超过总延误架次，只打标记不删行
type QualityChecker struct {
	Causes  []string
	Flagged int
	Checked bool
}

func NewQualityChecker(causes []string) *QualityChecker {
	return &QualityChecker{Causes: causes}
}

func (qc *QualityChecker) Name() string { return "quality_checks" }

// CountColumns 参与求和的原因计数列
func (qc *QualityChecker) CountColumns() []string {
	cols := make([]string, len(qc.Causes))
	for i, cause := range qc.Causes {
		cols[i] = cause + "_ct"
	}
	return cols
}

func (qc *QualityChecker) Process(df *dataframe.DataFrame) error {
	qc.Flagged, qc.Checked = 0, false

	required := append(qc.CountColumns(), "arr_del15")
	if !utils.HasColumns(*df, required...) {
		return nil
	}

	sum := make([]float64, df.Nrow())
	for _, col := range qc.CountColumns() {
		floats.Add(sum, floatCol(*df, col))
	}

	delayed := floatCol(*df, "arr_del15")
	flags := make([]bool, df.Nrow())
	for i := range flags {
		// NaN 参与比较结果为false
		flags[i] = sum[i] > delayed[i]
		if flags[i] {
			qc.Flagged++
		}
	}

	*df = df.Mutate(series.New(flags, series.Bool, FlagColumn))
	if df.Err != nil {
		return eris.Wrap(df.Err, "quality: add flag column")
	}
	qc.Checked = true
	return nil
}

// Results 质量检查结果，未执行时为空
func (qc *QualityChecker) Results() map[string]int {
	results := map[string]int{}
	if qc.Checked {
		results[CheckKey] = qc.Flagged
	}
	return results
}
