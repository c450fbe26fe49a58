package pdf

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// TextRun is one positioned string of the digital text layer. X and Y are in
// PDF user space with a bottom-left origin; Y is the baseline.
type TextRun struct {
	Text     string
	X, Y, W  float64
	FontSize float64
	Font     string
}

// TextRow is a sequence of runs sharing a baseline, left to right.
type TextRow []TextRun

// PageSource exposes the digital text layer of a document page by page.
type PageSource interface {
	NumPages() int
	Rows(pageIndex int) ([]TextRow, error)
	Close() error
}

// PageSourceOpener opens the digital text layer of a document.
type PageSourceOpener func(pdfPath string) (PageSource, error)

// OpenLedongthucSource is the default PageSourceOpener.
func OpenLedongthucSource(pdfPath string) (PageSource, error) {
	p, err := OpenPDFParser(pdfPath)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PDFParser 负责读取 PDF 的数字文本层
type PDFParser struct {
	file   *os.File
	reader *pdf.Reader
}

// OpenPDFParser opens pdfPath for text extraction. Close releases the file.
func OpenPDFParser(pdfPath string) (*PDFParser, error) {
	if _, err := checkInputFile(pdfPath); err != nil {
		return nil, err
	}
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法打开 PDF 文件", err)
	}
	return &PDFParser{file: f, reader: r}, nil
}

func (p *PDFParser) NumPages() int {
	return p.reader.NumPage()
}

// Rows returns the text rows of one page (0-based). Pages without a content
// stream have no rows.
func (p *PDFParser) Rows(pageIndex int) (rows []TextRow, err error) {
	// the reader panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = NewPDFErrorWithPage(ErrExtractFailed, "failed to read page text", pageIndex, fmt.Errorf("%v", r))
		}
	}()

	page := p.reader.Page(pageIndex + 1)
	if page.V.IsNull() {
		return nil, nil
	}
	if page.V.Key("Contents").Kind() == pdf.Null {
		return nil, nil
	}

	// Content walks the full text and graphics matrices, one entry per glyph
	content := page.Content()
	glyphs := make([]TextRun, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, TextRun{
			Text:     t.S,
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
			FontSize: t.FontSize,
			Font:     t.Font,
		})
	}
	return glyphsToRows(glyphs), nil
}

// glyphsToRows joins glyphs, in content stream order, into runs of adjacent
// glyphs and groups the runs into rows by baseline, top row first. Fonts
// without a /Widths array report zero-width glyphs that all share the
// position of their show operation; such runs keep W = 0 so the width is
// estimated later.
func glyphsToRows(glyphs []TextRun) []TextRow {
	var runs []TextRun
	var unknownWidth []bool
	for _, g := range glyphs {
		if g.Text == "" {
			continue
		}
		g.FontSize = math.Abs(g.FontSize)
		if n := len(runs); n > 0 && continuesRun(runs[n-1], g) {
			last := &runs[n-1]
			last.Text += g.Text
			if end := g.X + math.Max(g.W, 0); end > last.X+last.W {
				last.W = end - last.X
			}
			unknownWidth[n-1] = unknownWidth[n-1] || g.W <= 0
			continue
		}
		runs = append(runs, g)
		unknownWidth = append(unknownWidth, g.W <= 0)
	}
	for i := range runs {
		if unknownWidth[i] {
			runs[i].W = 0
		}
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Y > runs[j].Y })

	var rows []TextRow
	for _, run := range runs {
		if n := len(rows); n > 0 {
			anchor := rows[n-1][0]
			if math.Abs(anchor.Y-run.Y) <= baselineTolerance(math.Max(anchor.FontSize, run.FontSize)) {
				rows[n-1] = append(rows[n-1], run)
				continue
			}
		}
		rows = append(rows, TextRow{run})
	}
	return rows
}

// continuesRun reports whether glyph g directly follows run on the same line
// in the same font.
func continuesRun(run, g TextRun) bool {
	if g.Font != run.Font || math.Abs(g.FontSize-run.FontSize) > 0.5 {
		return false
	}
	if math.Abs(g.Y-run.Y) > 0.5 {
		return false
	}
	size := g.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	end := run.X + math.Max(run.W, 0)
	return g.X >= run.X-0.5 && g.X <= end+size*wordGapFactor
}

func baselineTolerance(fontSize float64) float64 {
	return math.Max(1, fontSize*0.3)
}

func (p *PDFParser) Close() error {
	return p.file.Close()
}

const (
	defaultFontSize = 10.0
	// a horizontal gap wider than this many font sizes starts a new unit
	gapSplitFactor = 3.0
	// a gap wider than this fraction of the font size gets a space
	wordGapFactor = 0.25
)

// unitBuilder accumulates the runs of one unit.
type unitBuilder struct {
	text          strings.Builder
	minX, maxX    float64
	baseline      float64
	totalFontSize float64
	runs          int
	lastEnd       float64
	lastRune      rune
}

func (b *unitBuilder) add(run TextRun, fontSize float64) {
	end := run.X + run.W
	if run.W <= 0 {
		end = run.X + float64(len([]rune(run.Text)))*fontSize*0.5
	}
	if b.runs == 0 {
		b.minX, b.maxX, b.baseline = run.X, end, run.Y
	} else {
		gap := run.X - b.lastEnd
		first := []rune(run.Text)[0]
		if gap > fontSize*wordGapFactor && !unicode.IsSpace(b.lastRune) && !unicode.IsSpace(first) {
			b.text.WriteByte(' ')
		}
		b.minX = math.Min(b.minX, run.X)
		b.maxX = math.Max(b.maxX, end)
	}
	b.text.WriteString(run.Text)
	b.totalFontSize += fontSize
	b.runs++
	b.lastEnd = end
	rs := []rune(run.Text)
	b.lastRune = rs[len(rs)-1]
}

// rowsToUnits merges digital-layer rows into text units for one page. Rows
// are split on wide horizontal gaps, cleaned of operator garbage and ordered
// top to bottom, then left to right. Boxes are returned on the page as shown.
func rowsToUnits(rows []TextRow, geom PageGeometry) []TextUnit {
	var units []TextUnit

	flush := func(b *unitBuilder) {
		if b.runs == 0 {
			return
		}
		text := strings.TrimSpace(b.text.String())
		if text == "" || isPostScriptCode(text) || hasExcessiveNonPrintable(text) {
			return
		}
		fontSize := b.totalFontSize / float64(b.runs)
		if fontSize <= 0 {
			fontSize = defaultFontSize
		}
		// baseline in bottom-left user space to a top-left box spanning
		// ascender and descender, relative to the MediaBox corner
		baseline := b.baseline - geom.OriginY
		top := geom.Height - (baseline + fontSize*0.9)
		bottom := geom.Height - (baseline - fontSize*0.25)
		bbox := BBox{
			X0: b.minX - geom.OriginX,
			Y0: top,
			X1: b.maxX - geom.OriginX,
			Y1: bottom,
		}.Clamp(geom.Width, geom.Height)
		if bbox.Width() <= 0 || bbox.Height() <= 0 {
			return
		}
		units = append(units, TextUnit{
			PageIndex:    geom.Index,
			BBox:         bbox,
			SourceText:   text,
			FontSizeHint: fontSize,
			Origin:       OriginDigital,
			Confidence:   1.0,
			Rotation:     geom.Rotation,
		})
	}

	for _, row := range rows {
		runs := make([]TextRun, 0, len(row))
		for _, run := range row {
			if run.Text == "" || isPostScriptCode(run.Text) {
				continue
			}
			runs = append(runs, run)
		}
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

		var b unitBuilder
		for _, run := range runs {
			fontSize := run.FontSize
			if fontSize <= 0 {
				fontSize = defaultFontSize
			}
			if b.runs > 0 && run.X-b.lastEnd > fontSize*gapSplitFactor {
				flush(&b)
				b = unitBuilder{}
			}
			b.add(run, fontSize)
		}
		flush(&b)
	}

	// reading order is decided before rotation, along the text lines
	sortReadingOrder(units)
	for i := range units {
		units[i].Ordinal = i
		units[i].BBox = geom.ToDisplay(units[i].BBox)
	}
	return units
}

// sortReadingOrder sorts units top to bottom; units whose tops are within a
// few points count as one line and are sorted left to right.
func sortReadingOrder(units []TextUnit) {
	const yTolerance = 3.0
	sort.SliceStable(units, func(i, j int) bool {
		if math.Abs(units[i].BBox.Y0-units[j].BBox.Y0) < yTolerance {
			return units[i].BBox.X0 < units[j].BBox.X0
		}
		return units[i].BBox.Y0 < units[j].BBox.Y0
	})
}

// textCoverage returns the fraction of the page area covered by units.
func textCoverage(units []TextUnit, geom PageGeometry) float64 {
	pageArea := geom.Width * geom.Height
	if pageArea <= 0 {
		return 0
	}
	var covered float64
	for _, u := range units {
		covered += u.BBox.Area()
	}
	return math.Min(covered/pageArea, 1)
}

// isPostScriptCode checks if text looks like PostScript/PDF operator code
// leaking out of the content stream instead of real page text.
func isPostScriptCode(text string) bool {
	if len(text) == 0 {
		return false
	}

	textLower := strings.ToLower(text)

	// "/name def" or "/name { ... } def"
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(textLower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if strings.Contains(textLower, "/burl") || strings.Contains(textLower, "burl@") {
		return true
	}

	psSpecificPatterns := []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
		"moveto", "lineto", "curveto",
	}
	for _, pattern := range psSpecificPatterns {
		if strings.Contains(textLower, pattern) {
			return true
		}
	}

	// Three or more "/Name" tokens outside a URL
	if !strings.Contains(text, "://") && !strings.Contains(textLower, "http") {
		slashNameCount := 0
		for _, word := range strings.Fields(text) {
			if len(word) < 2 || word[0] != '/' {
				continue
			}
			isName := true
			for _, c := range word[1:] {
				if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@') {
					isName = false
					break
				}
			}
			if isName {
				slashNameCount++
			}
		}
		if slashNameCount >= 3 {
			return true
		}
	}

	return false
}

// hasExcessiveNonPrintable checks if more than 10% of the runes are control characters.
func hasExcessiveNonPrintable(text string) bool {
	total, nonPrintable := 0, 0
	for _, r := range text {
		total++
		if (r < 32 && r != '\n' && r != '\r' && r != '\t') || (r >= 0x7F && r <= 0x9F) {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(nonPrintable)/float64(total) > 0.1
}
