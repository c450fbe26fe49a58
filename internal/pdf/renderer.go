package pdf

import (
	"fmt"
	"math"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/shaper"
)

const (
	// AscentRatio places the baseline inside a line box of one font size.
	AscentRatio = 0.718
	// DefaultMinFontSize is the shrink floor when none is configured.
	DefaultMinFontSize = 4.0
	fontSizeStep       = 0.5
	ellipsis           = "…"
)

// PageRenderer 负责把翻译后的文本绘制回原页面的位置
type PageRenderer struct {
	fonts       *FontRegistry
	minFontSize float64
}

func NewPageRenderer(fonts *FontRegistry, minFontSize float64) *PageRenderer {
	if minFontSize <= 0 {
		minFontSize = DefaultMinFontSize
	}
	return &PageRenderer{fonts: fonts, minFontSize: minFontSize}
}

// OutputDocument is the PDF being written for one run. Pages are imported
// from the source document and overlaid with translated text.
type OutputDocument struct {
	pdf        *fpdf.Fpdf
	importer   *gofpdi.Importer
	sourcePath string
	renderer   *PageRenderer
	pages      int
}

// NewDocument starts an output document and registers the fonts on it.
func (r *PageRenderer) NewDocument(sourcePath string) (*OutputDocument, error) {
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	if err := r.fonts.Register(pdf); err != nil {
		return nil, err
	}
	return &OutputDocument{
		pdf:        pdf,
		importer:   gofpdi.NewImporter(),
		sourcePath: sourcePath,
		renderer:   r,
	}, nil
}

// PageCount returns the number of pages added so far.
func (d *OutputDocument) PageCount() int {
	return d.pages
}

// RenderPage adds one page: the original page as background, then each unit
// with a translation drawn over a cleared box. Units are drawn in extraction
// order. The page is always added; a non-nil error means the original
// content could not be imported.
func (d *OutputDocument) RenderPage(geom PageGeometry, units []TextUnit, results map[UnitID]TranslationResult) (Page, error) {
	w, h := geom.DisplaySize()
	page := Page{Index: geom.Index, Width: w, Height: h}

	// 输出页按显示方向建立，不再带 /Rotate
	d.pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	d.pages++

	importErr := d.importOriginal(geom.Index, w, h)
	if importErr != nil {
		logger.Warn("original page content not imported",
			logger.Int("page", geom.Index),
			logger.Err(importErr))
	}

	for _, unit := range units {
		res, ok := results[unit.ID()]
		if !ok {
			continue
		}
		rendered, drawn := d.renderer.drawUnit(d.pdf, unit, res.TranslatedText)
		if !drawn {
			continue
		}
		page.RenderedUnits = append(page.RenderedUnits, rendered)
	}

	if importErr != nil {
		return page, NewPDFErrorWithPage(ErrRenderFailed, "failed to import original page", geom.Index, importErr)
	}
	return page, nil
}

// importOriginal draws the source page as a template filling the new page.
// The imported template is already turned to the source's /Rotate.
func (d *OutputDocument) importOriginal(index int, w, h float64) (err error) {
	// gofpdi panics on unreadable sources
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	tpl := d.importer.ImportPage(d.pdf, d.sourcePath, index+1, "/MediaBox")
	d.importer.UseImportedTemplate(d.pdf, tpl, 0, 0, w, h)
	if ferr := d.pdf.Error(); ferr != nil {
		d.pdf.ClearError()
		return ferr
	}
	return nil
}

// WriteFile writes the document and closes it.
func (d *OutputDocument) WriteFile(path string) error {
	if err := d.pdf.OutputFileAndClose(path); err != nil {
		return NewPDFErrorWithDetails(ErrWriteFailed, "failed to write output PDF", path, err)
	}
	return nil
}

// drawUnit clears the unit's box and draws the shaped translation inside it,
// along the unit's baseline rotation. Empty translations are skipped and
// drawn is false. The box is only cleared once the font is usable.
func (r *PageRenderer) drawUnit(pdf *fpdf.Fpdf, unit TextUnit, translated string) (RenderedUnit, bool) {
	text := strings.Join(strings.Fields(translated), " ")
	if text == "" {
		return RenderedUnit{}, false
	}
	shaped := shaper.Shape(text)
	if strings.TrimSpace(shaped) == "" {
		return RenderedUnit{}, false
	}
	rtl := shaper.DirectionOf(text) == shaper.RTL

	box := unit.BBox
	rot := normalizeRotation(unit.Rotation)
	length, thickness := box.Width(), box.Height()
	if rot%180 != 0 {
		length, thickness = thickness, length
	}

	choice := r.fonts.Select(shaped)
	fitted := r.fit(pdf, choice, shaped, length, unit.FontSizeHint, rtl)
	if err := pdf.Error(); err != nil {
		logger.Warn("unit font not usable, source text kept",
			logger.String("unit", unit.ID().String()),
			logger.String("font", choice.Family),
			logger.Err(err))
		pdf.ClearError()
		return RenderedUnit{}, false
	}

	pdf.SetFillColor(255, 255, 255)
	pdf.Rect(box.X0, box.Y0, box.Width(), box.Height(), "F")

	along := 0.0
	if rtl {
		along = length - fitted.width
	}
	down := (thickness-fitted.size)/2 + fitted.size*AscentRatio
	x, y := textAnchor(box, rot, along, down)

	pdf.SetTextColor(0, 0, 0)
	if rot != 0 {
		pdf.TransformBegin()
		pdf.TransformRotate(-float64(rot), x, y)
	}
	pdf.Text(x, y, fitted.drawText)
	if rot != 0 {
		pdf.TransformEnd()
	}

	rendered := RenderedUnit{
		ID:          unit.ID(),
		BBox:        box,
		Text:        fitted.text,
		Font:        choice.Family,
		FontSize:    fitted.size,
		Truncated:   fitted.truncated,
		Placeholder: choice.Placeholder,
	}
	// 底色已经盖掉原文，失败的单元按占位记录
	if err := pdf.Error(); err != nil {
		logger.Warn("failed to draw unit",
			logger.String("unit", unit.ID().String()),
			logger.Err(err))
		pdf.ClearError()
		rendered.Placeholder = true
	}
	return rendered, true
}

// textAnchor returns the baseline start of a line drawn in box with its
// baseline turned rot degrees clockwise. along runs in reading direction from
// the start edge, down runs from the top edge of the line toward its bottom.
func textAnchor(box BBox, rot int, along, down float64) (x, y float64) {
	switch rot {
	case 90:
		return box.X1 - down, box.Y0 + along
	case 180:
		return box.X1 - along, box.Y1 - down
	case 270:
		return box.X0 + down, box.Y1 - along
	default:
		return box.X0 + along, box.Y0 + down
	}
}

type fittedText struct {
	text      string // visual order, as shown
	drawText  string // text passed to fpdf, cp1252 for core fonts
	size      float64
	width     float64
	truncated bool
}

// fit shrinks the font size from the hint in half-point steps until text fits
// maxWidth, never going below the floor. A hint already under the floor is
// kept as is. Text that still overflows is truncated with an ellipsis; RTL
// text loses its logical end, which is the visual start.
func (r *PageRenderer) fit(pdf *fpdf.Fpdf, choice FontChoice, text string, maxWidth, hint float64, rtl bool) fittedText {
	size := hint
	if size <= 0 {
		size = defaultFontSize
	}

	encode := func(s string) string {
		if choice.Face != nil {
			return s
		}
		enc, _ := encodeCoreText(s)
		return enc
	}

	pdf.SetFont(choice.Family, "", size)
	drawText := encode(text)
	width := pdf.GetStringWidth(drawText)
	for width > maxWidth && size > r.minFontSize {
		size = math.Max(size-fontSizeStep, r.minFontSize)
		pdf.SetFontSize(size)
		width = pdf.GetStringWidth(drawText)
	}
	if width <= maxWidth {
		return fittedText{text: text, drawText: drawText, size: size, width: width}
	}

	mark := ellipsis
	if choice.Face != nil && !choice.Face.Covers(ellipsis) {
		mark = "..."
	}
	runes := []rune(text)
	for n := len(runes) - 1; n >= 0; n-- {
		var candidate string
		if rtl {
			candidate = mark + strings.TrimLeft(string(runes[len(runes)-n:]), " ")
		} else {
			candidate = strings.TrimRight(string(runes[:n]), " ") + mark
		}
		drawText = encode(candidate)
		width = pdf.GetStringWidth(drawText)
		if width <= maxWidth || n == 0 {
			return fittedText{text: candidate, drawText: drawText, size: size, width: width, truncated: true}
		}
	}
	return fittedText{text: mark, drawText: encode(mark), size: size, width: pdf.GetStringWidth(encode(mark)), truncated: true}
}
