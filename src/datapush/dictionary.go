package datapush

import (
	"github.com/EMen11/Aviation-Data-Pipeline/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 数据字典列名
const (
	DictColumn  = "column"
	DictDtype   = "dtype"
	DictNullPct = "null_pct"
	DictExample = "example"
)

// BuildDictionary 每个输出列一行: 列名、类型、缺失率(0-100, 保留2位)、首个非缺失样例，按列名排序
func BuildDictionary(df dataframe.DataFrame) dataframe.DataFrame {
	names := df.Names()
	dtypes := make([]string, len(names))
	nullPct := make([]float64, len(names))
	examples := make([]string, len(names))

	for i, name := range names {
		col := df.Col(name)
		dtypes[i] = utils.DtypeLabel(col)
		nullPct[i] = utils.NullPct(col)
		examples[i] = "NaN"
		for r := 0; r < col.Len(); r++ {
			if e := col.Elem(r); !e.IsNA() {
				examples[i] = utils.FormatElement(e)
				break
			}
		}
	}

	dict := dataframe.New(
		series.New(names, series.String, DictColumn),
		series.New(dtypes, series.String, DictDtype),
		series.New(nullPct, series.Float, DictNullPct),
		series.New(examples, series.String, DictExample),
	)
	return dict.Arrange(dataframe.Sort(DictColumn))
}
