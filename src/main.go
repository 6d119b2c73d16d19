package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/EMen11/Aviation-Data-Pipeline/src/config"
	"github.com/EMen11/Aviation-Data-Pipeline/src/datapush"
	"github.com/EMen11/Aviation-Data-Pipeline/src/datasource/file"
	"github.com/EMen11/Aviation-Data-Pipeline/src/processor"
	"github.com/EMen11/Aviation-Data-Pipeline/src/report"
	"github.com/EMen11/Aviation-Data-Pipeline/src/storage"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	if err := logger.CheckRotate(cfg); err != nil {
		logger.Warning("log rotation failed", zap.Error(err))
	}

	if err := run(cfg, dcfg, logger, os.Stdout); err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}
}

// run 读取原始数据 → 清洗 → 输出产物 → 校验报告
func run(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, out io.Writer) error {
	t1 := time.Now()
	warnings := logger.Subscribe(storage.WARNING)

	// 1. 读取原始数据
	raw, err := file.ReadTable(cfg.Paths.RawFile, cfg.SheetName)
	if err != nil {
		return err
	}
	logger.Info("raw table loaded",
		zap.String("path", cfg.Paths.RawFile),
		zap.Int("rows", raw.Nrow()),
		zap.Int("cols", raw.Ncol()))

	// 2. 清洗和派生KPI
	df, checks, err := processor.NewPipeline(dcfg, logger).Run(raw)
	if err != nil {
		return err
	}

	// 3. 输出产物
	arts, err := datapush.NewArtifactWriter(cfg, logger).WriteAll(df)
	if err != nil {
		return err
	}

	printSummary(out, df.Nrow(), df.Ncol(), arts, checks)
	printWarnings(out, storage.Drain(warnings))

	// 4. 重新读取输出文件做校验
	if _, err := report.NewValidator(dcfg.GetKpiColumns(), out, logger).Validate(arts.Cleaned); err != nil {
		return err
	}

	logger.Info("pipeline finished", zap.Duration("elapsed", time.Since(t1)))
	return nil
}

func printSummary(out io.Writer, rows, cols int, arts datapush.Artifacts, checks map[string]int) {
	p := message.NewPrinter(language.English)

	_, _ = p.Fprintln(out, "Cleaning completed successfully")
	_, _ = p.Fprintf(out, "Rows: %d | Columns: %d\n", rows, cols)
	_, _ = fmt.Fprintf(out, "Saved cleaned: %s\n", arts.Cleaned)
	_, _ = fmt.Fprintf(out, "Saved sample: %s\n", arts.Sample)
	_, _ = fmt.Fprintf(out, "Saved dictionary: %s\n", arts.Dictionary)
	if arts.XLSX != "" {
		_, _ = fmt.Fprintf(out, "Saved xlsx: %s\n", arts.XLSX)
	}

	if len(checks) == 0 {
		_, _ = fmt.Fprintln(out, "Quality checks: none run (cause count columns missing)")
		return
	}
	_, _ = fmt.Fprintln(out, "Quality checks:")
	keys := make([]string, 0, len(checks))
	for key := range checks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		_, _ = p.Fprintf(out, "  %s: %d\n", key, checks[key])
	}
	_, _ = fmt.Fprintln(out)
}

// printWarnings 运行中记录的警告(质量检查等)一并输出给操作员
func printWarnings(out io.Writer, msgs []string) {
	if len(msgs) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "Warnings:")
	for _, msg := range msgs {
		_, _ = fmt.Fprintf(out, "  %s\n", msg)
	}
	_, _ = fmt.Fprintln(out)
}
