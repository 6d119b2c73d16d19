package datapush

import (
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/EMen11/Aviation-Data-Pipeline/src/config"
	"github.com/EMen11/Aviation-Data-Pipeline/src/storage"
	"github.com/EMen11/Aviation-Data-Pipeline/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Artifacts 一次运行输出的文件路径，未导出xlsx时 XLSX 为空
type Artifacts struct {
	Cleaned    string
	Sample     string
	Dictionary string
	XLSX       string
}

// ArtifactWriter 输出清洗结果: 全量表、抽样表、数据字典
type ArtifactWriter struct {
	cfg    *config.Config
	logger *storage.Logger
}

func NewArtifactWriter(cfg *config.Config, logger *storage.Logger) *ArtifactWriter {
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &ArtifactWriter{cfg: cfg, logger: logger}
}

// WriteAll 依次写出所有产物，任一失败即返回
func (w *ArtifactWriter) WriteAll(df dataframe.DataFrame) (Artifacts, error) {
	var out Artifacts
	var err error

	if out.Cleaned, err = w.WriteCleaned(df); err != nil {
		return out, err
	}
	if out.Sample, err = w.WriteSample(df); err != nil {
		return out, err
	}
	if out.Dictionary, err = w.WriteDictionary(df); err != nil {
		return out, err
	}
	if w.cfg.ExportXLSX {
		if out.XLSX, err = w.ExportXLSX(df); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (w *ArtifactWriter) WriteCleaned(df dataframe.DataFrame) (string, error) {
	path := w.cfg.CleanedPath()
	if err := writeCSV(path, df); err != nil {
		return "", err
	}
	w.logger.Info("cleaned table saved", zap.String("path", path), zap.Int("rows", df.Nrow()))
	return path, nil
}

func (w *ArtifactWriter) WriteSample(df dataframe.DataFrame) (string, error) {
	path := w.cfg.SamplePath()
	sample := Sample(df, w.cfg.Sample.Size, w.cfg.Sample.Seed)
	if sample.Err != nil {
		return "", eris.Wrap(sample.Err, "artifact: sample rows")
	}
	if err := writeCSV(path, sample); err != nil {
		return "", err
	}
	w.logger.Info("sample saved", zap.String("path", path), zap.Int("rows", sample.Nrow()))
	return path, nil
}

func (w *ArtifactWriter) WriteDictionary(df dataframe.DataFrame) (string, error) {
	path := w.cfg.DictionaryPath()
	dict := BuildDictionary(df)
	if dict.Err != nil {
		return "", eris.Wrap(dict.Err, "artifact: build dictionary")
	}
	if err := writeCSV(path, dict); err != nil {
		return "", err
	}
	w.logger.Info("data dictionary saved", zap.String("path", path), zap.Int("columns", dict.Nrow()))
	return path, nil
}

// ExportXLSX 额外输出一份xlsx，便于直接用Excel/BI打开
func (w *ArtifactWriter) ExportXLSX(df dataframe.DataFrame) (string, error) {
	path := w.cfg.XLSXPath()
	if err := ensureDir(path); err != nil {
		return "", err
	}
	if err := utils.SaveToExcel(df, path); err != nil {
		return "", eris.Wrap(err, "artifact: export xlsx")
	}
	w.logger.Info("xlsx copy saved", zap.String("path", path))
	return path, nil
}

// Sample 固定种子无放回抽取 min(行数, size) 行，保持抽取顺序
func Sample(df dataframe.DataFrame, size int, seed int64) dataframe.DataFrame {
	n := df.Nrow()
	if n == 0 {
		return df
	}
	k := size
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))
	return df.Subset(rng.Perm(n)[:k])
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return eris.Wrapf(err, "artifact: create dir for %s", path)
	}
	return nil
}

// writeCSV 写出csv，目录不存在时创建
func writeCSV(path string, df dataframe.DataFrame) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "artifact: create %s", path)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(utils.Records(df)); err != nil {
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "artifact: close %s", path)
	}
	return nil
}
