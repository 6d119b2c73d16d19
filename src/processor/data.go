// data.go
package processor

import (
	"fmt"
	"time"

	"github.com/EMen11/Aviation-Data-Pipeline/src/config"
	"github.com/EMen11/Aviation-Data-Pipeline/src/storage"
	"github.com/go-gota/gota/dataframe"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DataProcess 流水线中的一道处理工序，原地修改表
type DataProcess interface {
	Name() string
	Process(df *dataframe.DataFrame) error
}

// Pipeline 按固定顺序执行: 列名规范化 → 类型转换 → KPI派生 → 质量检查
type Pipeline struct {
	Normalizer ColumnNormalizer
	Coercer    *TypeCoercer
	Deriver    *KpiDeriver
	Checker    *QualityChecker

	logger *storage.Logger
}

func NewPipeline(dcfg *config.DataConfig, logger *storage.Logger) *Pipeline {
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	causes := dcfg.GetCauses()
	return &Pipeline{
		Coercer: NewTypeCoercer(dcfg.NumericColumns()),
		Deriver: NewKpiDeriver(causes),
		Checker: NewQualityChecker(causes),
		logger:  logger,
	}
}

// Passes 各工序，按执行顺序排列
func (p *Pipeline) Passes() []DataProcess {
	return []DataProcess{p.Normalizer, p.Coercer, p.Deriver, p.Checker}
}

// Run 在原始表的副本上执行所有工序，返回清洗后的表和质量检查结果
func (p *Pipeline) Run(raw dataframe.DataFrame) (dataframe.DataFrame, map[string]int, error) {
	if raw.Err != nil {
		return dataframe.DataFrame{}, nil, eris.Wrap(raw.Err, "pipeline: input table")
	}
	// Copy 会重命名空列名和重复列名，恢复原始表头后再规范化
	df := raw.Copy()
	if err := df.SetNames(raw.Names()...); err != nil {
		return dataframe.DataFrame{}, nil, eris.Wrap(err, "pipeline: copy input table")
	}

	for _, pass := range p.Passes() {
		t1 := time.Now()
		if err := pass.Process(&df); err != nil {
			return dataframe.DataFrame{}, nil, eris.Wrapf(err, "pipeline: %s", pass.Name())
		}
		p.logger.Debug("pass finished",
			zap.String("pass", pass.Name()),
			zap.Int("rows", df.Nrow()),
			zap.Int("cols", df.Ncol()),
			zap.Duration("elapsed", time.Since(t1)))
	}

	if len(p.Deriver.Skipped) > 0 {
		p.logger.Info("kpi rules skipped, source columns missing",
			zap.Strings("rules", p.Deriver.Skipped))
	}

	checks := p.Checker.Results()
	if p.Checker.Flagged > 0 {
		p.logger.Warning(fmt.Sprintf("%d rows where cause counts exceed delayed flights", p.Checker.Flagged),
			zap.String("column", FlagColumn),
			zap.Int("rows", p.Checker.Flagged))
	}
	return df, checks, nil
}
