package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/EMen11/Aviation-Data-Pipeline/src/datasource/file"
	"github.com/EMen11/Aviation-Data-Pipeline/src/storage"
	"github.com/EMen11/Aviation-Data-Pipeline/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	previewRows    = 5
	topMissingCols = 10
	dtypeCols      = 10
	numericCols    = 10
)

// MissingColumn 列缺失率(百分数, 保留2位)
type MissingColumn struct {
	Name string
	Pct  float64
}

// ColumnDtype 列名和类型标签
type ColumnDtype struct {
	Name  string
	Dtype string
}

// Summary 校验报告内容
type Summary struct {
	Rows         int
	Cols         int
	Head         dataframe.DataFrame
	TopMissing   []MissingColumn
	Dtypes       []ColumnDtype
	NumericStats []ColumnStats
	KpiStats     []ColumnStats
}

// Validator 重新读取已写出的清洗结果并输出校验报告
type Validator struct {
	KpiColumns []string
	out        io.Writer
	logger     *storage.Logger
}

func NewValidator(kpiColumns []string, out io.Writer, logger *storage.Logger) *Validator {
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &Validator{KpiColumns: kpiColumns, out: out, logger: logger}
}

// Validate 读取 path 指向的csv(推断列类型)，生成并打印报告
func (v *Validator) Validate(path string) (*Summary, error) {
	df, err := file.ReadCSVTyped(path)
	if err != nil {
		return nil, eris.Wrap(err, "validate: re-read cleaned table")
	}

	s := v.Summarize(df)
	v.logger.Info("validation summary",
		zap.String("path", path),
		zap.Int("rows", s.Rows),
		zap.Int("cols", s.Cols))

	if err := s.Render(v.out); err != nil {
		return s, eris.Wrap(err, "validate: render report")
	}
	return s, nil
}

func (v *Validator) Summarize(df dataframe.DataFrame) *Summary {
	s := &Summary{Rows: df.Nrow(), Cols: df.Ncol()}

	// 1. 前几行预览
	n := previewRows
	if n > df.Nrow() {
		n = df.Nrow()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	s.Head = df.Subset(idx)

	// 2. 缺失率最高的列(降序，同缺失率保持原列序)
	names := df.Names()
	missing := make([]MissingColumn, len(names))
	for i, name := range names {
		missing[i] = MissingColumn{Name: name, Pct: utils.NullPct(df.Col(name))}
	}
	sort.SliceStable(missing, func(i, j int) bool { return missing[i].Pct > missing[j].Pct })
	if len(missing) > topMissingCols {
		missing = missing[:topMissingCols]
	}
	s.TopMissing = missing

	// 3. 前几列的类型
	for i, name := range names {
		if i >= dtypeCols {
			break
		}
		s.Dtypes = append(s.Dtypes, ColumnDtype{Name: name, Dtype: utils.DtypeLabel(df.Col(name))})
	}

	// 4. 数值列描述统计
	for _, name := range names {
		if len(s.NumericStats) >= numericCols {
			break
		}
		if col := df.Col(name); IsNumeric(col) {
			s.NumericStats = append(s.NumericStats, Describe(col))
		}
	}

	// 5. KPI列描述统计(存在的才统计)
	for _, name := range v.KpiColumns {
		if utils.HasColumn(df, name) {
			s.KpiStats = append(s.KpiStats, Describe(df.Col(name)))
		}
	}
	return s
}

// Render 以文本形式输出报告
func (s *Summary) Render(out io.Writer) error {
	_, _ = fmt.Fprintf(out, "Shape: (%d, %d)\n\n", s.Rows, s.Cols)

	_, _ = fmt.Fprintln(out, "Head:")
	_, _ = fmt.Fprintln(out, s.Head.String())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "Missing % (top 10):")
	for _, m := range s.TopMissing {
		_, _ = fmt.Fprintf(w, "  %s\t%.2f\n", m.Name, m.Pct)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Dtypes (first 10 columns):")
	for _, d := range s.Dtypes {
		_, _ = fmt.Fprintf(w, "  %s\t%s\n", d.Name, d.Dtype)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Describe (numeric):")
	if err := renderStats(out, s.NumericStats); err != nil {
		return err
	}

	if len(s.KpiStats) > 0 {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, "KPI checks:")
		if err := renderStats(out, s.KpiStats); err != nil {
			return err
		}
	}
	return nil
}

func renderStats(out io.Writer, stats []ColumnStats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "column\tcount\tmean\tstd\tmin\t25%\t50%\t75%\tmax\t")
	for _, cs := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			cs.Name, cs.Count,
			fmtStat(cs.Mean), fmtStat(cs.Std), fmtStat(cs.Min),
			fmtStat(cs.Q25), fmtStat(cs.Q50), fmtStat(cs.Q75), fmtStat(cs.Max))
	}
	return w.Flush()
}

func fmtStat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}
