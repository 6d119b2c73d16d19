package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config 结构体定义了清洗流水线的运行配置
type Config struct {
	Paths struct {
		RawFile        string `mapstructure:"raw_file"`        // 原始数据文件(csv/xlsx)
		ProcessedDir   string `mapstructure:"processed_dir"`   // 输出目录
		CleanedFile    string `mapstructure:"cleaned_file"`    // 清洗后全量数据
		SampleFile     string `mapstructure:"sample_file"`     // 抽样数据
		DictionaryFile string `mapstructure:"dictionary_file"` // 数据字典
		XLSXFile       string `mapstructure:"xlsx_file"`       // 可选的xlsx副本
	} `mapstructure:"paths"`

	Sample struct {
		Size int   `mapstructure:"size"` // 抽样行数上限
		Seed int64 `mapstructure:"seed"` // 固定随机种子，保证结果可复现
	} `mapstructure:"sample"`

	ExportXLSX bool   `mapstructure:"export_xlsx"`
	SheetName  string `mapstructure:"sheet_name"`
	LogName    string `mapstructure:"log_name"`
	LogLevel   string `mapstructure:"log_level"`
	LogMaxSize string `mapstructure:"log_max_size"`
}

// DataConfig 定义数据列分组
type DataConfig struct {
	CountColumns    []string `mapstructure:"count_columns"`
	DelayMinColumns []string `mapstructure:"delay_min_columns"`
	Causes          []string `mapstructure:"causes"`
	KpiColumns      []string `mapstructure:"kpi_columns"`
}

var (
	defaultCountColumns = []string{
		"arr_flights", "arr_del15", "carrier_ct", "weather_ct", "nas_ct",
		"security_ct", "late_aircraft_ct", "arr_cancelled", "arr_diverted",
	}
	defaultDelayMinColumns = []string{
		"arr_delay", "carrier_delay", "weather_delay", "nas_delay",
		"security_delay", "late_aircraft_delay",
	}
	defaultCauses     = []string{"carrier", "weather", "nas", "security", "late_aircraft"}
	defaultKpiColumns = []string{"delayed_rate", "cancellation_rate", "avg_delay_min_per_delayed_flight"}
)

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// LoadConfig 只加载一次配置，之后返回同一实例
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = Load(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

// Load 每次调用都重新读取配置文件
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var errs []error

	cfg, err := parseConfig(jsonFolder, jsonFile)
	if err != nil {
		errs = append(errs, err)
	}

	dcfg, err := parseDataConfig(jsonFolder, dataJsonFile)
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}
	return cfg, dcfg, nil
}

// newViper 按 文件夹+文件名 定位json配置; 文件不存在时只使用默认值
func newViper(jsonFolder, jsonFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(jsonFile, filepath.Ext(jsonFile)))
	v.SetConfigType("json")
	if jsonFolder == "" {
		jsonFolder = "."
	}
	v.AddConfigPath(jsonFolder)
	return v
}

func readInConfig(v *viper.Viper, name string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return eris.Wrapf(err, "config: read %s", name)
		}
	}
	return nil
}

func parseConfig(jsonFolder, jsonFile string) (*Config, error) {
	v := newViper(jsonFolder, jsonFile)

	v.SetDefault("paths.raw_file", filepath.Join("data", "raw", "airline_delay.csv"))
	v.SetDefault("paths.processed_dir", filepath.Join("data", "processed"))
	v.SetDefault("paths.cleaned_file", "airline_delay_cleaned.csv")
	v.SetDefault("paths.sample_file", "airline_delay_cleaned_sample.csv")
	v.SetDefault("paths.dictionary_file", "airline_delay_data_dictionary.csv")
	v.SetDefault("paths.xlsx_file", "airline_delay_cleaned.xlsx")
	v.SetDefault("sample.size", 500)
	v.SetDefault("sample.seed", 42)
	v.SetDefault("export_xlsx", false)
	v.SetDefault("sheet_name", "")
	v.SetDefault("log_name", "pipeline.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_max_size", "10 * 1024 * 1024")

	if err := readInConfig(v, jsonFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal Config")
	}
	if cfg.Sample.Size < 0 {
		return nil, eris.Errorf("config: sample.size must be >= 0, got %d", cfg.Sample.Size)
	}
	return &cfg, nil
}

func parseDataConfig(jsonFolder, dataJsonFile string) (*DataConfig, error) {
	v := newViper(jsonFolder, dataJsonFile)

	v.SetDefault("count_columns", defaultCountColumns)
	v.SetDefault("delay_min_columns", defaultDelayMinColumns)
	v.SetDefault("causes", defaultCauses)
	v.SetDefault("kpi_columns", defaultKpiColumns)

	if err := readInConfig(v, dataJsonFile); err != nil {
		return nil, err
	}

	var dcfg DataConfig
	if err := v.Unmarshal(&dcfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal DataConfig")
	}
	return &dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "config: multiple errors:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return eris.New(msg)
}

// CleanedPath 输出文件的完整路径
func (c *Config) CleanedPath() string {
	return filepath.Join(c.Paths.ProcessedDir, c.Paths.CleanedFile)
}

func (c *Config) SamplePath() string {
	return filepath.Join(c.Paths.ProcessedDir, c.Paths.SampleFile)
}

func (c *Config) DictionaryPath() string {
	return filepath.Join(c.Paths.ProcessedDir, c.Paths.DictionaryFile)
}

func (c *Config) XLSXPath() string {
	return filepath.Join(c.Paths.ProcessedDir, c.Paths.XLSXFile)
}

// NumericColumns 需要按 "缺失即0" 规则转换的列
func (dc *DataConfig) NumericColumns() []string {
	mu.RLock()
	defer mu.RUnlock()
	cols := make([]string, 0, len(dc.CountColumns)+len(dc.DelayMinColumns))
	cols = append(cols, dc.CountColumns...)
	return append(cols, dc.DelayMinColumns...)
}

func (dc *DataConfig) GetCauses() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), dc.Causes...)
}

func (dc *DataConfig) GetKpiColumns() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), dc.KpiColumns...)
}

// DefaultDataConfig 返回内置的列分组(与没有 dataconfig.json 时一致)
func DefaultDataConfig() *DataConfig {
	return &DataConfig{
		CountColumns:    append([]string(nil), defaultCountColumns...),
		DelayMinColumns: append([]string(nil), defaultDelayMinColumns...),
		Causes:          append([]string(nil), defaultCauses...),
		KpiColumns:      append([]string(nil), defaultKpiColumns...),
	}
}
