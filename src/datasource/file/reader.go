// reader.go
package file

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RawNaNValues 读入时视为缺失的文本
var RawNaNValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "<nil>"}

// ReadTable 按扩展名读取原始数据表，所有列均为字符串
func ReadTable(filePath, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx":
		return ReadXLSX(filePath, sheetName)
	default:
		return ReadCSV(filePath)
	}
}

// ReadCSV 读取带表头的csv，不做类型推断
func ReadCSV(filePath string) (dataframe.DataFrame, error) {
	return readCSVFile(filePath,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(RawNaNValues),
	)
}

// ReadCSVTyped 读取已输出的csv并推断列类型(int/float/bool/string)
func ReadCSVTyped(filePath string) (dataframe.DataFrame, error) {
	return readCSVFile(filePath,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(RawNaNValues),
	)
}

func readCSVFile(filePath string, options ...dataframe.LoadOption) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(err, "reader: open %s", filePath)
	}
	defer f.Close()

	records, err := csv.NewReader(stripBOM(f)).ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(err, "reader: parse %s", filePath)
	}

	df, err := loadRecords(records, options...)
	if err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(err, "reader: parse %s", filePath)
	}
	return df, nil
}

// loadRecords 第一行为表头; 只有表头时返回0行的字符串列表
//
// gota 会把空列名改为 X<i>、重复列名加后缀，这里恢复原始表头，交给列名规范化处理。
func loadRecords(records [][]string, options ...dataframe.LoadOption) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return dataframe.DataFrame{}, eris.New("no header row")
	}
	header := records[0]

	var df dataframe.DataFrame
	if len(records) == 1 {
		cols := make([]series.Series, len(header))
		for i, name := range header {
			cols[i] = series.New([]string{}, series.String, name)
		}
		df = dataframe.New(cols...)
	} else {
		df = dataframe.LoadRecords(records, options...)
	}
	if df.Err != nil {
		return dataframe.DataFrame{}, eris.Wrap(df.Err, "load records")
	}

	if err := df.SetNames(header...); err != nil {
		return dataframe.DataFrame{}, eris.Wrap(err, "restore header")
	}
	return df, nil
}

// stripBOM Excel导出的csv常带 UTF-8 BOM，去掉以免污染第一个列名
func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadXLSX 读取xlsx工作表(第一行为表头)，sheetName为空时取第一个工作表
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {

	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(err, "reader: open xlsx %s", filePath)
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, eris.Errorf("reader: %s has no sheets", filePath)
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, eris.Errorf("reader: sheet %q not found in %s", sheetName, filePath)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, eris.Errorf("reader: sheet %q has no header row", sheet.Name)
	}

	// 获取列名(第一行是标题行)
	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.Value)
	}

	// 填充数据(从第二行开始)，短行补空
	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)
	for _, row := range sheet.Rows[1:] {
		record := make([]string, len(headers))
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				record[i] = cell.Value
			}
		}
		records = append(records, record)
	}

	df, err := loadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(RawNaNValues),
	)
	if err != nil {
		return dataframe.DataFrame{}, eris.Wrapf(err, "reader: load sheet %q", sheet.Name)
	}
	return df, nil
}
