package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/translator"
)

// fixturePage describes one page of a generated test document.
type fixturePage struct {
	Width, Height float64
	Text          string
}

// writeFixturePDF generates a PDF with one line of Helvetica text per page.
func writeFixturePDF(t *testing.T, dir string, pages ...fixturePage) string {
	t.Helper()
	doc := fpdf.New("P", "pt", "", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetFont("Helvetica", "", 12)
	for _, p := range pages {
		doc.AddPageFormat("P", fpdf.SizeType{Wd: p.Width, Ht: p.Height})
		if p.Text != "" {
			doc.Text(50, 100, p.Text)
		}
	}
	path := filepath.Join(dir, "input.pdf")
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

// fixtureLine is one line of Helvetica 12 with its baseline at Y from the top.
type fixtureLine struct {
	X, Y float64
	Text string
}

// writeLinesPDF generates a single page document with the given lines.
func writeLinesPDF(t *testing.T, dir string, width, height float64, lines ...fixtureLine) string {
	t.Helper()
	doc := fpdf.New("P", "pt", "", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetFont("Helvetica", "", 12)
	doc.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
	for _, l := range lines {
		doc.Text(l.X, l.Y, l.Text)
	}
	path := filepath.Join(dir, "lines.pdf")
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

// writeRotatedPDF copies src with /Rotate set on every page.
func writeRotatedPDF(t *testing.T, src string, rotation int) string {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	out := filepath.Join(filepath.Dir(src), fmt.Sprintf("rotated_%d.pdf", rotation))
	require.NoError(t, api.RotateFile(src, out, rotation, nil, conf))
	return out
}

// fakeSource serves scripted rows per page.
type fakeSource struct {
	rows   map[int][]TextRow
	errs   map[int]error
	closed atomic.Bool
}

func (s *fakeSource) NumPages() int { return len(s.rows) }

func (s *fakeSource) Rows(pageIndex int) ([]TextRow, error) {
	if err := s.errs[pageIndex]; err != nil {
		return nil, err
	}
	return s.rows[pageIndex], nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *fakeSource) opener() PageSourceOpener {
	return func(string) (PageSource, error) { return s, nil }
}

// line is a single-run row at baseline y.
func line(text string, x, y float64) TextRow {
	return TextRow{{Text: text, X: x, Y: y, W: float64(len(text)) * 6, FontSize: 12}}
}

// fakeRasterizer hands out a fixed image path and counts releases.
type fakeRasterizer struct {
	err      error
	calls    atomic.Int32
	released atomic.Int32
}

func (r *fakeRasterizer) Rasterize(ctx context.Context, pdfPath string, pageIndex, dpi int) (string, func(), error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", nil, r.err
	}
	return fmt.Sprintf("page_%d.png", pageIndex+1), func() { r.released.Add(1) }, nil
}

// fakeOCR returns scripted lines for every image.
type fakeOCR struct {
	lines []OCRLine
	err   error
	calls atomic.Int32
}

func (o *fakeOCR) Recognize(ctx context.Context, imagePath string, opts OCROptions) ([]OCRLine, error) {
	o.calls.Add(1)
	if o.err != nil {
		return nil, o.err
	}
	return o.lines, nil
}

// fakeTranslator upper-cases text and fails on texts listed in fail.
type fakeTranslator struct {
	mu       sync.Mutex
	fail     map[string]bool
	calls    int
	inFlight int
	maxSeen  int
	hook     func()
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (translator.Result, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	hook := f.hook
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hook != nil {
		hook()
	}
	if f.fail[text] {
		return translator.Result{Attempts: 3}, errors.New("backend unavailable")
	}
	return translator.Result{Text: strings.ToUpper(text), Attempts: 1}, nil
}

func (f *fakeTranslator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingBackend is a translator.Backend for end-to-end cache tests.
type countingBackend struct {
	calls atomic.Int32
}

func (b *countingBackend) Name() string { return "counting" }

func (b *countingBackend) Translate(ctx context.Context, req translator.Request) (string, error) {
	b.calls.Add(1)
	return "[" + req.TargetLang + "] " + req.Text, nil
}

// coreFonts returns a registry without TrueType faces.
func coreFonts(t *testing.T) *FontRegistry {
	t.Helper()
	return NewFontRegistry(FontConfig{SearchDirs: []string{t.TempDir()}})
}

func requirePDFError(t *testing.T, err error, code PDFErrorCode) {
	t.Helper()
	require.Error(t, err)
	var pdfErr *PDFError
	require.True(t, errors.As(err, &pdfErr), "expected *PDFError, got %T", err)
	require.Equal(t, code, pdfErr.Code)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
