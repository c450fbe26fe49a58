package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pdf-translator/internal/config"
	"pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/results"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// Command line flags
var (
	configFlag  = flag.String("config", "", "Config file path (YAML or JSON)")
	inFlag      = flag.String("in", "", "Input PDF file path")
	outFlag     = flag.String("out", "", "Output PDF file path (default: <input>_<target>.pdf)")
	sourceFlag  = flag.String("source", "", "Source language code, or auto")
	targetFlag  = flag.String("target", "", "Target language code")
	provider    = flag.String("provider", "", "Translation backend: openai or google")
	dpiFlag     = flag.Int("dpi", 0, "OCR rasterization DPI")
	workersFlag = flag.Int("workers", 0, "Translation worker count")
	batchFlag   = flag.Int("batch-size", 0, "Scheduler queue capacity and progress step")
	retriesFlag = flag.Int("retries", 0, "Maximum backend attempts per text unit")
	timeoutFlag = flag.Int("timeout", 0, "Backend request timeout in seconds")
	fontFlag    = flag.String("font", "", "Primary font file for the target script")
	ocrLangFlag = flag.String("ocr-lang", "", "Tesseract language hint, e.g. ara+eng")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	dryRun      = flag.Bool("dry-run", false, "Extract text only and print the per-page decisions")
	clearCache  = flag.Bool("clear-cache", false, "Clear the translation cache for the language pair")
	historyFlag = flag.Bool("history", false, "List the latest run of every translated document")
	retryList   = flag.String("export-retry", "", "Write the inputs of retryable failed runs to this file")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("PDF Translator - 翻译 PDF 文档并保留页面布局，支持 OCR 与阿拉伯文从右到左排版")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  pdf-translator [选项] [input.pdf]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  --in <PATH>          输入 PDF 文件")
	fmt.Println("  --out <PATH>         输出 PDF 文件 (默认: <输入>_<目标语言>.pdf)")
	fmt.Println("  --config <PATH>      配置文件 (YAML 或 JSON)")
	fmt.Println("  --source <LANG>      源语言 (例如: en, 或 auto 自动检测)")
	fmt.Println("  --target <LANG>      目标语言 (例如: ar)")
	fmt.Println("  --provider <NAME>    翻译后端: openai 或 google")
	fmt.Println("  --dpi <N>            OCR 渲染分辨率")
	fmt.Println("  --workers <N>        翻译并发数")
	fmt.Println("  --batch-size <N>     队列容量与进度报告间隔")
	fmt.Println("  --retries <N>        每个文本单元的最大请求次数")
	fmt.Println("  --timeout <SEC>      单次请求超时 (秒)")
	fmt.Println("  --font <PATH>        目标文字的首选字体文件")
	fmt.Println("  --ocr-lang <LANGS>   Tesseract 语言 (例如: ara+eng)")
	fmt.Println("  --log-level <LEVEL>  日志级别: debug, info, warn, error")
	fmt.Println("  --dry-run            只提取文本，打印每页的提取方式")
	fmt.Println("  --clear-cache        清空当前语言对的翻译缓存")
	fmt.Println("  --history            列出已翻译文档的最近一次运行")
	fmt.Println("  --export-retry <P>   导出可重试的失败输入列表")
	fmt.Println("  -h, --help           显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pdf-translator --in report.pdf --target ar")
	fmt.Println("  pdf-translator --provider google --source auto --target ar scan.pdf")
	fmt.Println("  pdf-translator --dry-run scan.pdf")
	fmt.Println()
	fmt.Println("说明:")
	fmt.Println("  配置按以下顺序叠加: 默认值, 配置文件, .env, PDFT_* 环境变量, 命令行参数。")
	fmt.Println("  OpenAI 后端需要 OPENAI_API_KEY 或配置项 openai_api_key。")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cm, err := config.NewConfigManager(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	if err := cm.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: 加载配置失败: %v\n", err)
		return 1
	}
	cfg := cm.GetConfig()
	if err := applyFlagOverrides(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	if err := logger.Init(&logger.Config{
		LogFilePath:   cfg.LogFile,
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		Level:         level,
		EnableConsole: cfg.LogConsole,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "警告: 无法初始化日志: %v\n", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := translator.NewTranslationCache(cfg.CachePath)
	if *clearCache {
		if err := cache.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "错误: 清空缓存失败: %v\n", err)
			return 1
		}
		fmt.Printf("已清空翻译缓存: %s\n", cfg.CachePath)
	}

	if *historyFlag {
		return printHistory(cfg)
	}
	if *retryList != "" {
		return exportRetryList(cfg, *retryList)
	}

	input := *inFlag
	if input == "" {
		input = flag.Arg(0)
	}
	if input == "" {
		if *clearCache {
			return 0
		}
		fmt.Fprintln(os.Stderr, "错误: 请指定输入 PDF 文件")
		fmt.Println()
		printHelp()
		return 1
	}

	if *dryRun {
		return runDryRun(ctx, cfg, input)
	}
	return runTranslation(ctx, cm, cfg, cache, input)
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cfg *types.Config) error {
	derivedCache := cfg.CachePath == config.DefaultCachePath(cfg.SourceLang, cfg.TargetLang)

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.SourceLang = *sourceFlag
		case "target":
			cfg.TargetLang = *targetFlag
		case "provider":
			cfg.Provider = *provider
		case "dpi":
			cfg.DPI = *dpiFlag
		case "workers":
			cfg.WorkerCount = *workersFlag
		case "batch-size":
			cfg.BatchSize = *batchFlag
		case "retries":
			cfg.Retries = *retriesFlag
		case "timeout":
			cfg.Timeout = *timeoutFlag
		case "font":
			cfg.TargetFont = *fontFlag
		case "ocr-lang":
			cfg.OCRLanguage = *ocrLangFlag
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	// a derived cache follows the language pair
	if derivedCache {
		cfg.CachePath = config.DefaultCachePath(cfg.SourceLang, cfg.TargetLang)
	}
	if err := config.Validate(cfg); err != nil {
		return types.NewAppError(types.ErrInvalidInput, "invalid command line option", err)
	}
	return nil
}

// defaultOutputPath places the translation next to the input.
func defaultOutputPath(input, targetLang string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	return fmt.Sprintf("%s_%s.pdf", base, targetLang)
}

// runDryRun extracts every page and prints how its text was obtained.
func runDryRun(ctx context.Context, cfg *types.Config, input string) int {
	fmt.Println("=== PDF 文本提取 (dry run) ===")
	fmt.Printf("输入文件: %s\n", input)

	p := pdf.NewTranslationPipeline(pdf.PipelineConfigFromConfig(cfg), nil)
	info, extractions, err := p.Extract(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 加载 PDF 失败: %v\n", err)
		return 1
	}

	fmt.Printf("PDF 信息: %d 页\n\n", info.PageCount)
	total := 0
	for _, ex := range extractions {
		geom := info.Pages[ex.PageIndex]
		w, h := geom.DisplaySize()
		line := fmt.Sprintf("  第 %d 页 (%.0fx%.0f): %s", ex.PageIndex+1, w, h, ex.State)
		if ex.State == pdf.ExtractionExtracted {
			line += fmt.Sprintf(", 来源 %s, %d 个文本单元", ex.Origin, len(ex.Units))
			if ex.Dropped > 0 {
				line += fmt.Sprintf(", 丢弃 %d 行低置信度 OCR", ex.Dropped)
			}
		}
		if ex.Err != nil {
			line += fmt.Sprintf(" (%v)", ex.Err)
		}
		fmt.Println(line)
		total += len(ex.Units)
	}
	fmt.Printf("\n共 %d 个文本单元\n", total)
	return 0
}

func runTranslation(ctx context.Context, cm *config.ConfigManager, cfg *types.Config, cache *translator.TranslationCache, input string) int {
	fmt.Println("=== PDF 翻译 ===")
	fmt.Printf("输入文件: %s\n", input)
	fmt.Printf("语言: %s -> %s (后端: %s)\n", cfg.SourceLang, cfg.TargetLang, cfg.Provider)

	if err := cache.Load(); err != nil {
		logger.Warn("translation cache unreadable, starting empty", logger.Err(err))
	}

	backend, _, err := translator.NewBackendFromConfig(ctx, cfg, cm.GetAPIKey())
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	tr, err := translator.NewTranslator(backend, cache, translator.OptionsFromConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	output := *outFlag
	if output == "" {
		output = defaultOutputPath(input, cfg.TargetLang)
	}

	resultManager, err := results.NewResultManager(cfg.ResultsDir)
	if err != nil {
		logger.Warn("run history disabled", logger.Err(err))
	}
	errorManager, err := errors.NewErrorManager(cfg.ErrorsDir)
	if err != nil {
		logger.Warn("failure records disabled", logger.Err(err))
	}

	inputMD5, err := results.CalculateFileMD5(input)
	if err != nil {
		logger.Debug("input hash unavailable", logger.Err(err))
	}
	if resultManager != nil && inputMD5 != "" {
		if prev := resultManager.FindPreviousOutput(inputMD5, cfg.TargetLang); prev != nil {
			fmt.Printf("提示: 该文档已翻译过 (%s)，缓存的译文将被复用\n", prev.OutputPath)
		}
	}

	p := pdf.NewTranslationPipeline(pdf.PipelineConfigFromConfig(cfg), tr)

	// Start a goroutine to monitor progress
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		lastProgress := -1
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				status := p.GetStatus()
				if status.Progress != lastProgress {
					fmt.Printf("  [%d%%] %s: %s\n", status.Progress, status.Phase, status.Message)
					lastProgress = status.Progress
				}
			}
		}
	}()

	summary, runErr := p.Run(ctx, input, output)
	close(done)

	if inputMD5 != "" {
		recordRun(resultManager, errorManager, summary, inputMD5, input, runErr)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "\n错误: 翻译失败: %v\n", runErr)
		return 1
	}

	printSummary(summary)
	return 0
}

// recordRun stores the run in the history and keeps the failure records in step.
func recordRun(rm *results.ResultManager, em *errors.ErrorManager, summary *pdf.RunSummary, inputMD5, input string, runErr error) {
	if rm != nil && summary != nil {
		if err := rm.SaveRun(results.RecordFromSummary(summary, inputMD5, runErr)); err != nil {
			logger.Warn("failed to save run history", logger.Err(err))
		}
	}
	if em == nil {
		return
	}

	if runErr == nil {
		if err := em.RemoveError(inputMD5); err != nil {
			logger.Warn("failed to clear failure record", logger.Err(err))
		}
		return
	}

	stage := errors.StageTranslate
	var pdfErr *pdf.PDFError
	if stderrors.As(runErr, &pdfErr) {
		stage = errors.StageFromCode(string(pdfErr.Code))
	}
	if err := em.RecordError(inputMD5, filepath.Base(input), input, stage, runErr.Error()); err != nil {
		logger.Warn("failed to record failure", logger.Err(err))
	}
}

func printSummary(s *pdf.RunSummary) {
	fmt.Println()
	fmt.Println("=== 翻译完成 ===")
	fmt.Printf("运行 ID: %s\n", s.RunID)
	fmt.Printf("原始 PDF: %s\n", s.InputPath)
	fmt.Printf("翻译 PDF: %s\n", s.OutputPath)
	fmt.Printf("页数: %d (OCR: %d, 失败: %d)\n", s.Pages, len(s.OCRPages), len(s.FailedPages))
	fmt.Printf("文本单元: %d (翻译: %d, 缓存: %d, 回退原文: %d)\n",
		s.TotalUnits, s.TranslatedUnits, s.CachedUnits, len(s.FallbackUnits))
	if len(s.PlaceholderUnits) > 0 {
		fmt.Printf("缺字单元: %d\n", len(s.PlaceholderUnits))
	}
	if len(s.TruncatedUnits) > 0 {
		fmt.Printf("截断单元: %d\n", len(s.TruncatedUnits))
	}
	if s.CacheWriteErrors > 0 {
		fmt.Printf("缓存写入失败: %d\n", s.CacheWriteErrors)
	}
	fmt.Printf("耗时: %s\n", s.Duration.Round(time.Millisecond))

	if len(s.FailedPages) > 0 {
		pages := make([]string, len(s.FailedPages))
		for i, p := range s.FailedPages {
			pages[i] = fmt.Sprint(p + 1)
		}
		fmt.Printf("警告: 以下页面未能提取文本: %s\n", strings.Join(pages, ", "))
	}
	for _, fb := range s.FallbackUnits {
		fmt.Printf("警告: %s 保留原文: %s\n", fb.ID, fb.Reason)
	}
}

func printHistory(cfg *types.Config) int {
	rm, err := results.NewResultManager(cfg.ResultsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	runs, err := rm.ListLatest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("暂无翻译记录")
		return 0
	}
	for _, r := range runs {
		fmt.Printf("%s  %-9s %s -> %s  %s  %d 页, %d 单元\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.SourceLang, r.TargetLang,
			r.InputFileName, r.Pages, r.TotalUnits)
		if r.OutputPath != "" {
			fmt.Printf("    输出: %s\n", r.OutputPath)
		}
		if r.ErrorMessage != "" {
			fmt.Printf("    错误: %s\n", r.ErrorMessage)
		}
	}
	return 0
}

func exportRetryList(cfg *types.Config, path string) int {
	em, err := errors.NewErrorManager(cfg.ErrorsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	for _, rec := range em.ListErrors() {
		fmt.Printf("%s  [%s] %s: %s\n", rec.Timestamp.Format("2006-01-02 15:04"),
			errors.GetStageDisplayName(rec.Stage), rec.FileName, rec.ErrorMsg)
	}
	if err := em.ExportRetryList(path); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	fmt.Printf("已导出重试列表: %s\n", path)
	return 0
}
