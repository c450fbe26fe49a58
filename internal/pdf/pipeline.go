package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// PipelineConfig 翻译流水线配置
type PipelineConfig struct {
	SourceLang  string
	TargetLang  string
	Extractor   ExtractorConfig
	Workers     int // translation pool size and page-extraction parallelism
	BatchSize   int
	OCRWorkers  int // concurrent OCR passes
	Fonts       FontConfig
	MinFontSize float64
}

// PipelineConfigFromConfig maps the application config onto the pipeline.
func PipelineConfigFromConfig(cfg *types.Config) PipelineConfig {
	return PipelineConfig{
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		Extractor: ExtractorConfig{
			DPI:           cfg.DPI,
			MinConfidence: cfg.MinConfidence,
			MinTextArea:   cfg.MinTextArea,
			OCRLanguage:   cfg.OCRLanguage,
			PageSegMode:   cfg.PageSegMode,
		},
		Workers:    cfg.WorkerCount,
		BatchSize:  cfg.BatchSize,
		OCRWorkers: cfg.OCRWorkers,
		Fonts: FontConfig{
			Primary:     cfg.TargetFont,
			Alternates:  cfg.AlternateFonts,
			SearchDirs:  cfg.FontSearchDirs,
			DefaultFont: cfg.DefaultFont,
		},
		MinFontSize: cfg.MinFontSize,
	}
}

// StatusCallback receives a copy of the status on every change.
type StatusCallback func(status PDFStatus)

// TranslationPipeline 是 PDF 翻译流程的主控制器：提取 -> 翻译 -> 渲染
type TranslationPipeline struct {
	cfg        PipelineConfig
	translator UnitTranslator
	openSource PageSourceOpener
	raster     Rasterizer
	ocr        OCREngine

	fontsOnce sync.Once
	fonts     *FontRegistry

	mu       sync.RWMutex
	status   PDFStatus
	onStatus StatusCallback
}

// NewTranslationPipeline wires the default collaborators: the ledongthuc text
// layer, pdftoppm rasterization when installed and tesseract OCR.
func NewTranslationPipeline(cfg PipelineConfig, tr UnitTranslator) *TranslationPipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.OCRWorkers <= 0 {
		cfg.OCRWorkers = 1
	}

	p := &TranslationPipeline{
		cfg:        cfg,
		translator: tr,
		openSource: OpenLedongthucSource,
		ocr:        NewTesseractEngine(),
		status:     PDFStatus{Phase: PDFPhaseIdle},
	}
	if r := NewPopplerRasterizer(); r != nil {
		p.raster = r
	}
	return p
}

// SetPageSourceOpener replaces the digital text layer reader.
func (p *TranslationPipeline) SetPageSourceOpener(open PageSourceOpener) {
	p.openSource = open
}

// SetOCR replaces the rasterizer and OCR engine. Either may be nil to disable OCR.
func (p *TranslationPipeline) SetOCR(raster Rasterizer, ocr OCREngine) {
	p.raster = raster
	p.ocr = ocr
}

// SetFontRegistry replaces the fonts built from the configuration.
func (p *TranslationPipeline) SetFontRegistry(fonts *FontRegistry) {
	p.fontsOnce.Do(func() {})
	p.fonts = fonts
}

// SetStatusCallback registers a callback for status changes.
func (p *TranslationPipeline) SetStatusCallback(callback StatusCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStatus = callback
}

// GetStatus 获取当前处理状态
func (p *TranslationPipeline) GetStatus() PDFStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *TranslationPipeline) updateStatus(update func(s *PDFStatus)) {
	p.mu.Lock()
	update(&p.status)
	if p.status.Progress < 0 {
		p.status.Progress = 0
	}
	if p.status.Progress > 100 {
		p.status.Progress = 100
	}
	if p.status.Phase != PDFPhaseError {
		p.status.Error = ""
	}
	status := p.status
	callback := p.onStatus
	p.mu.Unlock()

	if callback != nil {
		callback(status)
	}
}

func (p *TranslationPipeline) setPhase(phase PDFPhase, progress int, message string) {
	p.updateStatus(func(s *PDFStatus) {
		s.Phase = phase
		s.Progress = progress
		s.Message = message
	})
}

func (p *TranslationPipeline) fail(err error) error {
	p.updateStatus(func(s *PDFStatus) {
		s.Phase = PDFPhaseError
		s.Error = err.Error()
	})
	return err
}

func (p *TranslationPipeline) fontRegistry() *FontRegistry {
	p.fontsOnce.Do(func() {
		p.fonts = NewFontRegistry(p.cfg.Fonts)
	})
	return p.fonts
}

// Extract inspects the document and extracts every page. Pages run in
// parallel up to Workers; OCR passes are further limited to OCRWorkers. The
// returned slice is in page order. Only an unreadable input is an error.
func (p *TranslationPipeline) Extract(ctx context.Context, inputPath string) (*PDFInfo, []PageExtraction, error) {
	p.setPhase(PDFPhaseLoading, 0, "正在加载 PDF...")
	info, err := InspectDocument(inputPath)
	if err != nil {
		return nil, nil, p.fail(err)
	}
	logger.Info("document loaded",
		logger.String("path", inputPath),
		logger.Int("pages", info.PageCount))

	var source PageSource
	if p.openSource != nil {
		source, err = p.openSource(inputPath)
		if err != nil {
			logger.Warn("digital text layer unavailable, relying on OCR", logger.Err(err))
			source = nil
		}
	}
	if source != nil {
		defer source.Close()
	}

	p.setPhase(PDFPhaseExtracting, 5, "正在提取文本...")
	extractor := NewTextExtractor(inputPath, lockedSource(source), info.Pages, p.raster, p.ocr, p.cfg.Extractor)
	ocrGate := semaphore.NewWeighted(int64(p.cfg.OCRWorkers))

	extractions := make([]PageExtraction, info.PageCount)
	var done int
	var doneMu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)
	for i := 0; i < info.PageCount; i++ {
		pageIndex := i
		g.Go(func() error {
			result := p.extractPage(ctx, extractor, ocrGate, pageIndex)
			extractions[pageIndex] = result

			doneMu.Lock()
			done++
			n := done
			doneMu.Unlock()
			p.setPhase(PDFPhaseExtracting, 5+n*25/info.PageCount, fmt.Sprintf("正在提取文本... (%d/%d)", n, info.PageCount))
			return nil
		})
	}
	g.Wait()

	return info, extractions, nil
}

func (p *TranslationPipeline) extractPage(ctx context.Context, e *TextExtractor, ocrGate *semaphore.Weighted, pageIndex int) PageExtraction {
	digital, usable := e.ExtractDigital(pageIndex)
	if usable {
		return digital
	}
	if !e.OCRAvailable() {
		if digital.State == ExtractionExtracted {
			return digital
		}
		digital.State = ExtractionFailed
		if digital.Err == nil {
			digital.Err = NewPDFErrorWithPage(ErrExtractFailed, "no text layer and OCR is not available", pageIndex, nil)
		}
		return digital
	}

	if err := ocrGate.Acquire(ctx, 1); err != nil {
		return PageExtraction{PageIndex: pageIndex, State: ExtractionFailed, Origin: OriginOCR, Err: err}
	}
	defer ocrGate.Release(1)
	return e.ocrFallback(ctx, digital)
}

// Run translates inputPath into outputPath. The output is written to a
// temporary file next to outputPath and renamed only after it is complete
// and valid. Per-unit and per-page failures degrade the result and are listed
// in the summary; reading the input, writing the output and cancellation are
// the only errors returned.
func (p *TranslationPipeline) Run(ctx context.Context, inputPath, outputPath string) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:      uuid.NewString(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		SourceLang: p.cfg.SourceLang,
		TargetLang: p.cfg.TargetLang,
		StartedAt:  time.Now(),
	}
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	logger.Info("translation run started",
		logger.String("run_id", summary.RunID),
		logger.String("input", inputPath),
		logger.String("source_lang", p.cfg.SourceLang),
		logger.String("target_lang", p.cfg.TargetLang))

	info, extractions, err := p.Extract(ctx, inputPath)
	if err != nil {
		return summary, err
	}
	summary.Pages = info.PageCount
	if err := ctx.Err(); err != nil {
		return summary, p.fail(NewPDFError(ErrCancelled, "translation cancelled", err))
	}

	var units []TextUnit
	for _, ex := range extractions {
		if ex.Origin == OriginOCR && ex.State == ExtractionExtracted {
			summary.OCRPages = append(summary.OCRPages, ex.PageIndex)
		}
		if ex.State == ExtractionFailed {
			summary.FailedPages = append(summary.FailedPages, ex.PageIndex)
		}
		units = append(units, ex.Units...)
	}
	summary.TotalUnits = len(units)

	results := p.translate(ctx, units, summary)
	if err := ctx.Err(); err != nil {
		return summary, p.fail(NewPDFError(ErrCancelled, "translation cancelled", err))
	}

	if err := p.render(ctx, inputPath, outputPath, info, extractions, results, summary); err != nil {
		return summary, p.fail(err)
	}

	p.setPhase(PDFPhaseComplete, 100, "翻译完成")
	logger.Info("translation run finished",
		logger.String("run_id", summary.RunID),
		logger.String("output", outputPath),
		logger.Int("units", summary.TotalUnits),
		logger.Int("cached", summary.CachedUnits),
		logger.Int("fallback", len(summary.FallbackUnits)),
		logger.Bool("degraded", summary.Degraded()),
		logger.Duration("duration", time.Since(summary.StartedAt)))
	return summary, nil
}

func (p *TranslationPipeline) translate(ctx context.Context, units []TextUnit, summary *RunSummary) map[UnitID]TranslationResult {
	total := len(units)
	p.updateStatus(func(s *PDFStatus) {
		s.Phase = PDFPhaseTranslating
		s.Progress = 30
		s.Message = fmt.Sprintf("正在翻译... (0/%d)", total)
		s.TotalUnits = total
		s.CompletedUnits = 0
		s.CachedUnits = 0
	})

	scheduler := NewTranslationScheduler(p.translator, SchedulerConfig{
		Workers:    p.cfg.Workers,
		BatchSize:  p.cfg.BatchSize,
		SourceLang: p.cfg.SourceLang,
		TargetLang: p.cfg.TargetLang,
	})
	results := scheduler.Run(ctx, units, func(completed, total int) {
		p.updateStatus(func(s *PDFStatus) {
			s.CompletedUnits = completed
			s.Progress = 30 + completed*60/total
			s.Message = fmt.Sprintf("正在翻译... (%d/%d)", completed, total)
		})
	})

	for _, unit := range units {
		res := results[unit.ID()]
		switch {
		case res.Fallback:
			reason := "translation failed"
			if res.Err != nil {
				reason = res.Err.Error()
			}
			summary.FallbackUnits = append(summary.FallbackUnits, FallbackUnit{ID: res.ID, Reason: reason})
		case res.FromCache:
			summary.CachedUnits++
		default:
			summary.TranslatedUnits++
		}
		if res.CacheWriteFailed {
			summary.CacheWriteErrors++
		}
	}
	p.updateStatus(func(s *PDFStatus) { s.CachedUnits = summary.CachedUnits })
	return results
}

func (p *TranslationPipeline) render(ctx context.Context, inputPath, outputPath string, info *PDFInfo, extractions []PageExtraction, results map[UnitID]TranslationResult, summary *RunSummary) error {
	p.setPhase(PDFPhaseRendering, 90, "正在生成 PDF...")

	renderer := NewPageRenderer(p.fontRegistry(), p.cfg.MinFontSize)
	doc, err := renderer.NewDocument(inputPath)
	if err != nil {
		return err
	}

	failed := make(map[int]bool, len(summary.FailedPages))
	for _, idx := range summary.FailedPages {
		failed[idx] = true
	}
	for i, geom := range info.Pages {
		if err := ctx.Err(); err != nil {
			return NewPDFError(ErrCancelled, "translation cancelled", err)
		}
		page, err := doc.RenderPage(geom, extractions[i].Units, results)
		if err != nil {
			logger.Warn("page rendered without original content",
				logger.Int("page", i),
				logger.Err(err))
			if !failed[i] {
				failed[i] = true
				summary.FailedPages = append(summary.FailedPages, i)
			}
		}
		for _, ru := range page.RenderedUnits {
			if ru.Placeholder {
				summary.PlaceholderUnits = append(summary.PlaceholderUnits, ru.ID)
			}
			if ru.Truncated {
				summary.TruncatedUnits = append(summary.TruncatedUnits, ru.ID)
			}
		}
	}
	sort.Ints(summary.FailedPages)

	return writeAtomically(outputPath, summary.RunID, doc.WriteFile)
}

// writeAtomically writes through a temporary sibling of outputPath, validates
// it and renames it into place. The temporary file never survives a failure.
func writeAtomically(outputPath, runID string, write func(path string) error) (err error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewPDFError(ErrWriteFailed, "无法创建输出目录", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp-%s", outputPath, runID)
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("failed to remove temporary output", logger.String("path", tmpPath), logger.Err(rmErr))
			}
		}
	}()

	if err := write(tmpPath); err != nil {
		return err
	}
	if err := ValidateOutput(tmpPath); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return NewPDFError(ErrWriteFailed, "无法保存输出文件", err)
	}
	return nil
}

// lockedSource serializes access to a PageSource shared by page workers.
func lockedSource(src PageSource) PageSource {
	if src == nil {
		return nil
	}
	return &syncSource{src: src}
}

type syncSource struct {
	mu  sync.Mutex
	src PageSource
}

func (s *syncSource) NumPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.NumPages()
}

func (s *syncSource) Rows(pageIndex int) ([]TextRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Rows(pageIndex)
}

func (s *syncSource) Close() error {
	return s.src.Close()
}
