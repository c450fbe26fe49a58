package pdf

import (
	"context"
	"errors"
	"math"
	"strings"

	"pdf-translator/internal/logger"
)

// ExtractorConfig 文本提取配置
type ExtractorConfig struct {
	DPI           int
	MinConfidence float64 // OCR lines below are dropped
	MinTextArea   float64 // page-area fraction the digital layer must cover
	OCRLanguage   string
	PageSegMode   int
}

// DefaultExtractorConfig returns the defaults used by the CLI.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		DPI:           300,
		MinConfidence: 0.5,
		MinTextArea:   0.001,
		OCRLanguage:   "ara+eng",
		PageSegMode:   3,
	}
}

// TextExtractor 负责从页面获取文本单元：优先数字文本层，不可用时走 OCR
type TextExtractor struct {
	pdfPath string
	source  PageSource
	pages   []PageGeometry
	raster  Rasterizer
	ocr     OCREngine
	cfg     ExtractorConfig
}

// NewTextExtractor builds an extractor over an open page source. raster and
// ocr may be nil, in which case pages without a usable digital layer fail.
func NewTextExtractor(pdfPath string, source PageSource, pages []PageGeometry, raster Rasterizer, ocr OCREngine, cfg ExtractorConfig) *TextExtractor {
	return &TextExtractor{
		pdfPath: pdfPath,
		source:  source,
		pages:   pages,
		raster:  raster,
		ocr:     ocr,
		cfg:     cfg,
	}
}

// OCRAvailable reports whether the OCR fallback can run.
func (e *TextExtractor) OCRAvailable() bool {
	return e.raster != nil && e.ocr != nil
}

func (e *TextExtractor) geometry(pageIndex int) PageGeometry {
	if pageIndex >= 0 && pageIndex < len(e.pages) {
		return e.pages[pageIndex]
	}
	return PageGeometry{Index: pageIndex, Width: DefaultPageWidth, Height: DefaultPageHeight}
}

// ExtractDigital reads the page's text layer. usable reports whether the
// layer has at least one unit and covers MinTextArea of the page.
func (e *TextExtractor) ExtractDigital(pageIndex int) (PageExtraction, bool) {
	result := PageExtraction{PageIndex: pageIndex, State: ExtractionNotAttempted, Origin: OriginDigital}
	if e.source == nil {
		return result, false
	}

	rows, err := e.source.Rows(pageIndex)
	if err != nil {
		result.State = ExtractionFailed
		result.Err = err
		logger.Warn("digital text layer unreadable",
			logger.Int("page", pageIndex),
			logger.Err(err))
		return result, false
	}

	geom := e.geometry(pageIndex)
	units := rowsToUnits(rows, geom)
	result.State = ExtractionExtracted
	result.Units = units

	coverage := textCoverage(units, geom)
	usable := len(units) > 0 && coverage >= e.cfg.MinTextArea
	logger.Debug("digital layer extracted",
		logger.Int("page", pageIndex),
		logger.Int("units", len(units)),
		logger.Float64("coverage", coverage),
		logger.Bool("usable", usable))
	return result, usable
}

// ExtractOCR rasterizes the page and recognises its text lines. Any failure
// leaves the page in the Failed state with no units.
func (e *TextExtractor) ExtractOCR(ctx context.Context, pageIndex int) PageExtraction {
	result := PageExtraction{PageIndex: pageIndex, State: ExtractionNotAttempted, Origin: OriginOCR}
	if !e.OCRAvailable() {
		result.State = ExtractionFailed
		result.Err = NewPDFErrorWithPage(ErrOCRFailed, "OCR is not available", pageIndex, nil)
		return result
	}

	imagePath, release, err := e.raster.Rasterize(ctx, e.pdfPath, pageIndex, e.cfg.DPI)
	if err != nil {
		result.State = ExtractionFailed
		result.Err = NewPDFErrorWithPage(ErrOCRFailed, "failed to rasterize page", pageIndex, err)
		return result
	}
	defer release()

	lines, err := e.ocr.Recognize(ctx, imagePath, OCROptions{Language: e.cfg.OCRLanguage, PageSegMode: e.cfg.PageSegMode, DPI: e.cfg.DPI})
	if err != nil {
		result.State = ExtractionFailed
		result.Err = NewPDFErrorWithPage(ErrOCRFailed, "OCR engine failed", pageIndex, err)
		return result
	}

	units, dropped := e.linesToUnits(lines, e.geometry(pageIndex))
	result.State = ExtractionExtracted
	result.Units = units
	result.Dropped = dropped
	return result
}

// linesToUnits converts pixel boxes to page points and drops empty or
// low-confidence lines.
func (e *TextExtractor) linesToUnits(lines []OCRLine, geom PageGeometry) ([]TextUnit, int) {
	dpi := e.cfg.DPI
	if dpi <= 0 {
		dpi = 72
	}
	scale := 72.0 / float64(dpi)

	var units []TextUnit
	dropped := 0
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		if line.Confidence < e.cfg.MinConfidence {
			dropped++
			continue
		}
		bbox := BBox{
			X0: float64(line.Box.Min.X) * scale,
			Y0: float64(line.Box.Min.Y) * scale,
			X1: float64(line.Box.Max.X) * scale,
			Y1: float64(line.Box.Max.Y) * scale,
		}.Clamp(geom.DisplaySize())
		if bbox.Width() <= 0 || bbox.Height() <= 0 {
			continue
		}
		units = append(units, TextUnit{
			PageIndex:    geom.Index,
			BBox:         bbox,
			SourceText:   text,
			FontSizeHint: math.Max(bbox.Height()*0.75, 1),
			Origin:       OriginOCR,
			Confidence:   math.Min(math.Max(line.Confidence, 0), 1),
		})
	}

	sortReadingOrder(units)
	for i := range units {
		units[i].Ordinal = i
	}
	return units, dropped
}

// Extract runs the digital pass and falls back to OCR when the layer is not
// usable.
func (e *TextExtractor) Extract(ctx context.Context, pageIndex int) PageExtraction {
	digital, usable := e.ExtractDigital(pageIndex)
	if usable {
		return digital
	}
	return e.ocrFallback(ctx, digital)
}

// ocrFallback replaces an unusable digital result with OCR output. A page
// whose digital layer has units but too little coverage keeps those units
// when OCR is unavailable or fails.
func (e *TextExtractor) ocrFallback(ctx context.Context, digital PageExtraction) PageExtraction {
	pageIndex := digital.PageIndex
	if err := ctx.Err(); err != nil {
		digital.State = ExtractionFailed
		digital.Err = err
		return digital
	}

	ocrResult := e.ExtractOCR(ctx, pageIndex)
	if ocrResult.State == ExtractionExtracted {
		logger.Info("page extracted with OCR",
			logger.Int("page", pageIndex),
			logger.Int("units", len(ocrResult.Units)),
			logger.Int("dropped", ocrResult.Dropped))
		return ocrResult
	}

	if digital.State == ExtractionExtracted && len(digital.Units) > 0 {
		logger.Warn("OCR fallback failed, keeping sparse digital layer",
			logger.Int("page", pageIndex),
			logger.Err(ocrResult.Err))
		return digital
	}

	logger.Warn("page has no extractable text",
		logger.Int("page", pageIndex),
		logger.Err(errors.Join(digital.Err, ocrResult.Err)))
	return ocrResult
}
