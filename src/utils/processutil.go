package utils

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// DateLayout year_month 等日期列的文本格式
const DateLayout = "2006-01-02"

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// HasColumns 所有列都存在时返回true
func HasColumns(df dataframe.DataFrame, names ...string) bool {
	have := df.Names()
	for _, n := range names {
		if !Contains(have, n) {
			return false
		}
	}
	return true
}

// ParseDate 解析 YYYY-MM-DD，空值或NA返回 ok=false
func ParseDate(e series.Element) (time.Time, bool) {
	if e.IsNA() || e.String() == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, e.String())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DateColumns 派生的日期列，值全部缺失时仍标记为date
var DateColumns = []string{"year_month"}

// DtypeLabel 列的类型标签: int, float, bool, string, date
func DtypeLabel(s series.Series) string {
	switch s.Type() {
	case series.Int:
		return "int"
	case series.Float:
		return "float"
	case series.Bool:
		return "bool"
	}

	seen := false
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		if _, ok := ParseDate(e); !ok {
			return "string"
		}
		seen = true
	}
	if seen || Contains(DateColumns, s.Name) {
		return "date"
	}
	return "string"
}

// NullPct 缺失值占比(百分数, 保留2位)，空列返回NaN
func NullPct(s series.Series) float64 {
	if s.Len() == 0 {
		return math.NaN()
	}
	missing := 0
	for i := 0; i < s.Len(); i++ {
		if s.Elem(i).IsNA() {
			missing++
		}
	}
	return math.Round(float64(missing)/float64(s.Len())*100*100) / 100
}

// FormatFloat 最短可还原表示，整数值补 ".0" 以保留浮点类型; NaN 输出空串
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatElement 输出到csv时单元格的文本
func FormatElement(e series.Element) string {
	if e.IsNA() {
		return ""
	}
	if e.Type() == series.Float {
		return FormatFloat(e.Float())
	}
	return e.String()
}

// Records 将DataFrame转为带表头的二维字符串(NA为空串)
func Records(df dataframe.DataFrame) [][]string {
	names := df.Names()
	records := make([][]string, 0, df.Nrow()+1)
	records = append(records, names)

	cols := make([]series.Series, len(names))
	for i, name := range names {
		cols[i] = df.Col(name)
	}
	for r := 0; r < df.Nrow(); r++ {
		row := make([]string, len(cols))
		for c, col := range cols {
			row[c] = FormatElement(col.Elem(r))
		}
		records = append(records, row)
	}
	return records
}

// SaveToExcel 将DataFrame保存为xlsx文件
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return eris.Wrapf(err, "excel: write header %s", name)
		}
	}

	// 写入数据, NA 保持空单元格
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			val := col.Val(rowIdx)
			if val == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return eris.Wrapf(err, "excel: write cell %s", cell)
			}
		}
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return eris.Wrapf(err, "excel: save %s", filePath)
	}
	return nil
}
