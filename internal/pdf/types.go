// Package pdf implements the document side of the translator: text
// acquisition from the digital layer or OCR, the translation scheduler, page
// rendering with font fallback and the pipeline that ties them together.
package pdf

import (
	"fmt"
	"time"
)

// Origin 文本来源
type Origin string

const (
	OriginDigital Origin = "digital"
	OriginOCR     Origin = "ocr"
)

// BBox is a rectangle in PDF points with a top-left origin.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (b BBox) Width() float64  { return b.X1 - b.X0 }
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }
func (b BBox) Area() float64   { return b.Width() * b.Height() }

// Clamp limits the box to a page of the given size.
func (b BBox) Clamp(width, height float64) BBox {
	clamp := func(v, hi float64) float64 {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	return BBox{
		X0: clamp(b.X0, width),
		Y0: clamp(b.Y0, height),
		X1: clamp(b.X1, width),
		Y1: clamp(b.Y1, height),
	}
}

// UnitID identifies a text unit by page and extraction order.
type UnitID struct {
	PageIndex int `json:"page_index"`
	Ordinal   int `json:"ordinal"`
}

func (id UnitID) String() string {
	return fmt.Sprintf("p%d-u%d", id.PageIndex, id.Ordinal)
}

// TextUnit 文本单元：页面上一段连续的源文本。创建后不再修改。
type TextUnit struct {
	PageIndex    int     `json:"page_index"` // 0-based
	Ordinal      int     `json:"ordinal"`
	BBox         BBox    `json:"bbox"`
	SourceText   string  `json:"source_text"`
	FontSizeHint float64 `json:"font_size_hint"`
	Origin       Origin  `json:"origin"`
	Confidence   float64 `json:"confidence"`
	// Rotation is the clockwise angle of the text baseline on the page as
	// shown: 0, 90, 180 or 270.
	Rotation int `json:"rotation,omitempty"`
}

func (u TextUnit) ID() UnitID {
	return UnitID{PageIndex: u.PageIndex, Ordinal: u.Ordinal}
}

// TranslationResult 翻译结果，与源文本单元一一对应
type TranslationResult struct {
	ID             UnitID `json:"id"`
	TranslatedText string `json:"translated_text"`
	FromCache      bool   `json:"from_cache"`
	Fallback       bool   `json:"fallback"` // source text substituted after a failure
	Err            error  `json:"-"`

	CacheWriteFailed bool `json:"cache_write_failed,omitempty"`
}

// PageGeometry 页面尺寸（单位：点）
//
// Width and Height are the unrotated MediaBox, whose lower-left corner sits at
// (OriginX, OriginY) in PDF user space. Rotation is the page's /Rotate value,
// normalised to 0, 90, 180 or 270. Text unit boxes are in the top-left
// coordinates of the page as shown, see ToDisplay.
type PageGeometry struct {
	Index    int     `json:"index"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	OriginX  float64 `json:"origin_x,omitempty"`
	OriginY  float64 `json:"origin_y,omitempty"`
	Rotation int     `json:"rotation,omitempty"`
}

// DisplaySize returns the page size as shown, after rotation.
func (g PageGeometry) DisplaySize() (width, height float64) {
	if g.Rotation%180 != 0 {
		return g.Height, g.Width
	}
	return g.Width, g.Height
}

// ToDisplay maps a box from unrotated top-left page space onto the page as
// shown, turning it clockwise by Rotation.
func (g PageGeometry) ToDisplay(b BBox) BBox {
	w, h := g.Width, g.Height
	switch g.Rotation {
	case 90:
		return BBox{X0: h - b.Y1, Y0: b.X0, X1: h - b.Y0, Y1: b.X1}
	case 180:
		return BBox{X0: w - b.X1, Y0: h - b.Y1, X1: w - b.X0, Y1: h - b.Y0}
	case 270:
		return BBox{X0: b.Y0, Y0: w - b.X1, X1: b.Y1, Y1: w - b.X0}
	}
	return b
}

// normalizeRotation snaps a /Rotate value onto 0, 90, 180 or 270.
func normalizeRotation(rot int) int {
	r := ((rot % 360) + 360) % 360
	return (r + 45) / 90 * 90 % 360
}

// RenderedUnit is one unit as drawn on the output page.
type RenderedUnit struct {
	ID          UnitID  `json:"id"`
	BBox        BBox    `json:"bbox"`
	Text        string  `json:"text"` // shaped, visual order
	Font        string  `json:"font"`
	FontSize    float64 `json:"font_size"`
	Truncated   bool    `json:"truncated"`
	Placeholder bool    `json:"placeholder"` // font lacks some glyphs, or the draw failed after clearing
}

// Page 输出页面
type Page struct {
	Index         int            `json:"index"`
	Width         float64        `json:"width"`
	Height        float64        `json:"height"`
	RenderedUnits []RenderedUnit `json:"rendered_units"`
}

// ExtractionState 页面文本提取状态
type ExtractionState string

const (
	ExtractionNotAttempted ExtractionState = "not_attempted"
	ExtractionExtracted    ExtractionState = "extracted"
	ExtractionFailed       ExtractionState = "failed"
)

// PageExtraction records how one page's units were obtained.
type PageExtraction struct {
	PageIndex int             `json:"page_index"`
	State     ExtractionState `json:"state"`
	Origin    Origin          `json:"origin,omitempty"`
	Units     []TextUnit      `json:"units"`
	Dropped   int             `json:"dropped"` // OCR lines under the confidence floor
	Err       error           `json:"-"`
}

// PDFPhase PDF 处理阶段
type PDFPhase string

const (
	PDFPhaseIdle        PDFPhase = "idle"
	PDFPhaseLoading     PDFPhase = "loading"
	PDFPhaseExtracting  PDFPhase = "extracting"
	PDFPhaseTranslating PDFPhase = "translating"
	PDFPhaseRendering   PDFPhase = "rendering"
	PDFPhaseComplete    PDFPhase = "complete"
	PDFPhaseError       PDFPhase = "error"
)

// PDFStatus PDF 处理状态
type PDFStatus struct {
	Phase          PDFPhase `json:"phase"`
	Progress       int      `json:"progress"`
	Message        string   `json:"message"`
	TotalUnits     int      `json:"total_units"`
	CompletedUnits int      `json:"completed_units"`
	CachedUnits    int      `json:"cached_units"`
	Error          string   `json:"error,omitempty"`
}

// IsValidPhase checks if the given phase is a valid PDFPhase
func IsValidPhase(phase PDFPhase) bool {
	switch phase {
	case PDFPhaseIdle, PDFPhaseLoading, PDFPhaseExtracting,
		PDFPhaseTranslating, PDFPhaseRendering, PDFPhaseComplete, PDFPhaseError:
		return true
	default:
		return false
	}
}

// IsValidStatus checks if the PDFStatus has valid values
func (s *PDFStatus) IsValidStatus() bool {
	return IsValidPhase(s.Phase) &&
		s.Progress >= 0 && s.Progress <= 100 &&
		s.CompletedUnits <= s.TotalUnits
}

// FallbackUnit names a unit that kept its source text and why.
type FallbackUnit struct {
	ID     UnitID `json:"id"`
	Reason string `json:"reason"`
}

// RunSummary 单次运行摘要
type RunSummary struct {
	RunID            string         `json:"run_id"`
	InputPath        string         `json:"input_path"`
	OutputPath       string         `json:"output_path"`
	SourceLang       string         `json:"source_lang"`
	TargetLang       string         `json:"target_lang"`
	Pages            int            `json:"pages"`
	OCRPages         []int          `json:"ocr_pages"`
	FailedPages      []int          `json:"failed_pages"`
	TotalUnits       int            `json:"total_units"`
	CachedUnits      int            `json:"cached_units"`
	TranslatedUnits  int            `json:"translated_units"`
	FallbackUnits    []FallbackUnit `json:"fallback_units"`
	PlaceholderUnits []UnitID       `json:"placeholder_units"`
	TruncatedUnits   []UnitID       `json:"truncated_units"`
	CacheWriteErrors int            `json:"cache_write_errors"`
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration"`
}

// Degraded reports whether any unit or page fell short of a full translation.
func (s *RunSummary) Degraded() bool {
	return len(s.FailedPages) > 0 || len(s.FallbackUnits) > 0 || len(s.PlaceholderUnits) > 0 || len(s.TruncatedUnits) > 0
}

// PDFErrorCode 错误代码枚举
type PDFErrorCode string

const (
	ErrPDFNotFound   PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid    PDFErrorCode = "PDF_INVALID"
	ErrExtractFailed PDFErrorCode = "EXTRACT_FAILED"
	ErrOCRFailed     PDFErrorCode = "OCR_FAILED"
	ErrRenderFailed  PDFErrorCode = "RENDER_FAILED"
	ErrWriteFailed   PDFErrorCode = "WRITE_FAILED"
	ErrCacheFailed   PDFErrorCode = "CACHE_FAILED"
	ErrCancelled     PDFErrorCode = "CANCELLED"
)

// PDFError PDF 处理错误
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Page    int          `json:"page,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface for PDFError
func (e *PDFError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// NewPDFError creates a new PDFError with the given code, message, and optional cause
func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPDFErrorWithDetails creates a new PDFError with details
func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewPDFErrorWithPage creates a new PDFError with page information
func NewPDFErrorWithPage(code PDFErrorCode, message string, page int, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}
