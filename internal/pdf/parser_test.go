package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenPDFParser_NonExistentFile tests that OpenPDFParser returns an error for non-existent files
func TestOpenPDFParser_NonExistentFile(t *testing.T) {
	_, err := OpenPDFParser("/non/existent/file.pdf")
	requirePDFError(t, err, ErrPDFNotFound)
}

// TestOpenPDFParser_Directory tests that OpenPDFParser returns an error when path is a directory
func TestOpenPDFParser_Directory(t *testing.T) {
	_, err := OpenPDFParser(t.TempDir())
	requirePDFError(t, err, ErrPDFInvalid)
}

// TestOpenPDFParser_InvalidFile tests that OpenPDFParser returns an error for invalid PDF files
func TestOpenPDFParser_InvalidFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.pdf")
	if err := os.WriteFile(tmpFile, []byte("This is not a PDF file"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err := OpenPDFParser(tmpFile)
	requirePDFError(t, err, ErrPDFInvalid)
}

func TestOpenPDFParser_GeneratedDocument(t *testing.T) {
	path := writeFixturePDF(t, t.TempDir(),
		fixturePage{Width: 595, Height: 842, Text: "First page"},
		fixturePage{Width: 595, Height: 842})

	parser, err := OpenPDFParser(path)
	require.NoError(t, err)
	defer parser.Close()

	assert.Equal(t, 2, parser.NumPages())
	_, err = parser.Rows(0)
	assert.NoError(t, err)
}

// 真实文档：位置来自 ledongthuc 的字形矩阵
func TestLedongthucSource_UnitsAtDrawnPositions(t *testing.T) {
	path := writeLinesPDF(t, t.TempDir(), 595, 842,
		fixtureLine{X: 72, Y: 100, Text: "First heading line"},
		fixtureLine{X: 300, Y: 500, Text: "Second paragraph line"})

	src, err := OpenLedongthucSource(path)
	require.NoError(t, err)
	defer src.Close()

	rows, err := src.Rows(0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	units := rowsToUnits(rows, PageGeometry{Index: 0, Width: 595, Height: 842})
	require.Len(t, units, 2)

	first, second := units[0], units[1]
	assert.Equal(t, "First heading line", first.SourceText)
	assert.Equal(t, "Second paragraph line", second.SourceText)

	// baselines at 100 and 500 from the top, tops one ascender above
	assert.InDelta(t, 72, first.BBox.X0, 2)
	assert.InDelta(t, 100-12*0.9, first.BBox.Y0, 3)
	assert.InDelta(t, 100+12*0.25, first.BBox.Y1, 3)
	assert.InDelta(t, 300, second.BBox.X0, 2)
	assert.InDelta(t, 500-12*0.9, second.BBox.Y0, 3)
	assert.Greater(t, first.BBox.X1, first.BBox.X0+50)

	assert.InDelta(t, 12, first.FontSizeHint, 0.5)
	assert.InDelta(t, 12, second.FontSizeHint, 0.5)
	assert.Zero(t, first.Rotation)
}

func TestLedongthucSource_RotatedPage(t *testing.T) {
	dir := t.TempDir()
	src := writeLinesPDF(t, dir, 595, 842, fixtureLine{X: 72, Y: 100, Text: "Rotated heading"})
	rotated := writeRotatedPDF(t, src, 90)

	info, err := InspectDocument(rotated)
	require.NoError(t, err)
	geom := info.Pages[0]

	parser, err := OpenPDFParser(rotated)
	require.NoError(t, err)
	defer parser.Close()

	rows, err := parser.Rows(0)
	require.NoError(t, err)
	units := rowsToUnits(rows, geom)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, 90, u.Rotation)
	// the line's top edge now faces right, 100pt in from the right edge
	assert.InDelta(t, 842-(100+12*0.25), u.BBox.X0, 3)
	assert.InDelta(t, 842-(100-12*0.9), u.BBox.X1, 3)
	assert.InDelta(t, 72, u.BBox.Y0, 2)
	assert.Greater(t, u.BBox.Y1, u.BBox.Y0+50)

	w, h := geom.DisplaySize()
	assert.LessOrEqual(t, u.BBox.X1, w)
	assert.LessOrEqual(t, u.BBox.Y1, h)
}

func TestGlyphsToRows(t *testing.T) {
	glyphs := []TextRun{
		// no /Widths: every glyph of the show operation sits at its start
		{Text: "H", X: 50, Y: 700, FontSize: 12, Font: "F1"},
		{Text: "i", X: 50, Y: 700, FontSize: 12, Font: "F1"},
		{Text: "", X: 60, Y: 700, FontSize: 12, Font: "F1"},
		{Text: "a", X: 100, Y: 700.2, W: 6, FontSize: 12, Font: "F1"},
		{Text: "b", X: 106, Y: 700.2, W: 6, FontSize: 12, Font: "F1"},
		{Text: "c", X: 112, Y: 700.2, W: 6, FontSize: 9, Font: "F2"},
		{Text: "low", X: 50, Y: 650, W: 18, FontSize: -12, Font: "F1"},
	}

	rows := glyphsToRows(glyphs)
	require.Len(t, rows, 2)

	byText := map[string]TextRun{}
	for _, run := range rows[0] {
		byText[run.Text] = run
	}
	require.Len(t, byText, 3, "runs: %v", rows[0])

	hi := byText["Hi"]
	assert.Equal(t, 50.0, hi.X)
	assert.Zero(t, hi.W, "unknown widths are left for estimation")

	ab := byText["ab"]
	assert.Equal(t, 100.0, ab.X)
	assert.InDelta(t, 12, ab.W, 1e-9)

	assert.Contains(t, byText, "c", "a font change starts a new run")

	require.Len(t, rows[1], 1)
	assert.Equal(t, "low", rows[1][0].Text)
	assert.Equal(t, 12.0, rows[1][0].FontSize)
}

func TestOpenLedongthucSource_ErrorIsUntypedNil(t *testing.T) {
	src, err := OpenLedongthucSource("/non/existent/file.pdf")
	require.Error(t, err)
	assert.True(t, src == nil, "a failed open must return a nil interface")
}

func TestRowsToUnits_JoinsWordsAndSplitsWideGaps(t *testing.T) {
	geom := PageGeometry{Index: 0, Width: 600, Height: 800}
	rows := []TextRow{{
		{Text: "Hello", X: 50, Y: 700, W: 30, FontSize: 10},
		{Text: "world", X: 85, Y: 700, W: 30, FontSize: 10},
		{Text: "Column", X: 300, Y: 700, W: 40, FontSize: 10},
	}}

	units := rowsToUnits(rows, geom)
	require.Len(t, units, 2)

	assert.Equal(t, "Hello world", units[0].SourceText)
	assert.Equal(t, "Column", units[1].SourceText)
	assert.Equal(t, 0, units[0].Ordinal)
	assert.Equal(t, 1, units[1].Ordinal)

	// baseline 700 in a page of height 800, with a 10pt font
	assert.InDelta(t, 50, units[0].BBox.X0, 1e-9)
	assert.InDelta(t, 115, units[0].BBox.X1, 1e-9)
	assert.InDelta(t, 91, units[0].BBox.Y0, 1e-9)
	assert.InDelta(t, 102.5, units[0].BBox.Y1, 1e-9)
	assert.Equal(t, 10.0, units[0].FontSizeHint)
	assert.Equal(t, OriginDigital, units[0].Origin)
	assert.Equal(t, 1.0, units[0].Confidence)
}

func TestRowsToUnits_AdjacentRunsHaveNoSpace(t *testing.T) {
	geom := PageGeometry{Width: 600, Height: 800}
	rows := []TextRow{{
		{Text: "lo", X: 65, Y: 500, W: 10, FontSize: 10},
		{Text: "Hel", X: 50, Y: 500, W: 15, FontSize: 10},
	}}

	units := rowsToUnits(rows, geom)
	require.Len(t, units, 1)
	assert.Equal(t, "Hello", units[0].SourceText)
}

func TestRowsToUnits_ReadingOrderTopToBottom(t *testing.T) {
	geom := PageGeometry{Index: 3, Width: 600, Height: 800}
	rows := []TextRow{
		line("footer", 50, 40),
		line("title", 50, 750),
		line("body", 50, 400),
	}

	units := rowsToUnits(rows, geom)
	require.Len(t, units, 3)
	assert.Equal(t, []string{"title", "body", "footer"},
		[]string{units[0].SourceText, units[1].SourceText, units[2].SourceText})
	for i, u := range units {
		assert.Equal(t, 3, u.PageIndex)
		assert.Equal(t, i, u.Ordinal)
	}
}

func TestRowsToUnits_DropsOperatorGarbage(t *testing.T) {
	geom := PageGeometry{Width: 600, Height: 800}
	rows := []TextRow{
		line("/Type /Page /Parent /Resources", 50, 700),
		line("gsave 0 0 1 setrgbcolor", 50, 600),
		line("Real text", 50, 500),
		{{Text: "", X: 50, Y: 400, W: 0, FontSize: 10}},
	}

	units := rowsToUnits(rows, geom)
	require.Len(t, units, 1)
	assert.Equal(t, "Real text", units[0].SourceText)
}

func TestRowsToUnits_ClampsToPage(t *testing.T) {
	geom := PageGeometry{Width: 600, Height: 800}
	rows := []TextRow{{{Text: "edge", X: 580, Y: 795, W: 50, FontSize: 10}}}

	units := rowsToUnits(rows, geom)
	require.Len(t, units, 1)
	assert.Equal(t, 600.0, units[0].BBox.X1)
	assert.Equal(t, 0.0, units[0].BBox.Y0)
}

func TestRowsToUnits_DefaultFontSize(t *testing.T) {
	geom := PageGeometry{Width: 600, Height: 800}
	rows := []TextRow{{{Text: "tiny", X: 10, Y: 400, W: 20}}}

	units := rowsToUnits(rows, geom)
	require.Len(t, units, 1)
	assert.Equal(t, defaultFontSize, units[0].FontSizeHint)
}

func TestTextCoverage(t *testing.T) {
	geom := PageGeometry{Width: 100, Height: 100}
	units := []TextUnit{
		{BBox: BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}},
		{BBox: BBox{X0: 50, Y0: 50, X1: 60, Y1: 60}},
	}
	assert.InDelta(t, 0.02, textCoverage(units, geom), 1e-9)
	assert.Equal(t, 0.0, textCoverage(nil, geom))
	assert.Equal(t, 0.0, textCoverage(units, PageGeometry{}))
}

// TestIsPostScriptCode tests PostScript code detection
func TestIsPostScriptCode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"empty", "", false},
		{"plain sentence", "The quick brown fox", false},
		{"arabic", "مرحبا بالعالم", false},
		{"def operator", "/x 12 def", true},
		{"null def", "/Foo null def", true},
		{"graphics state", "gsave 1 0 0 setrgbcolor", true},
		{"path operators", "10 20 moveto 30 40 lineto", true},
		{"hyperref markers", "@stx something", true},
		{"name tokens", "/Type /Page /Parent", true},
		{"url with slashes", "see http://a.org/b/c/d", false},
		{"two names", "/a and /b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPostScriptCode(tt.text); got != tt.expected {
				t.Errorf("isPostScriptCode(%q) = %v, want %v", tt.text, got, tt.expected)
			}
		})
	}
}

func TestHasExcessiveNonPrintable(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"", false},
		{"normal text\twith tab", false},
		{"ab\x01\x02", true},
		{"abcdefghijklmnopqrstuvwxyz\x01", false},
		{"\u0085\u0086x", true},
	}
	for _, tt := range tests {
		if got := hasExcessiveNonPrintable(tt.text); got != tt.expected {
			t.Errorf("hasExcessiveNonPrintable(%q) = %v, want %v", tt.text, got, tt.expected)
		}
	}
}
