package pdf

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/encoding/charmap"

	"pdf-translator/internal/logger"
)

// fontKeywords are file-name fragments of fonts likely to carry Arabic glyphs.
var fontKeywords = []string{"arab", "amiri", "noto", "freesans"}

// arabicSample is shaped Arabic text a discovered font must cover to be kept.
const arabicSample = "\ufeb3\ufefc\ufee1"

// maxDiscoveredFonts caps how many discovered fonts are loaded.
const maxDiscoveredFonts = 3

// FontConfig 字体选择配置
type FontConfig struct {
	Primary     string   // font file preferred for the target script
	Alternates  []string // tried in order after Primary
	SearchDirs  []string // scanned when no configured file loads
	DefaultFont string   // core font family used last, e.g. "Helvetica"
}

// FontFace is a TrueType font loaded from disk.
type FontFace struct {
	Name string // family name registered with fpdf
	Path string
	data []byte
	font *sfnt.Font
}

// Covers reports whether every visible rune of text has a glyph.
func (f *FontFace) Covers(text string) bool {
	covered, total := f.coverage(text)
	return covered == total
}

func (f *FontFace) coverage(text string) (covered, total int) {
	var buf sfnt.Buffer
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.Is(unicode.Bidi_Control, r) || unicode.IsControl(r) {
			continue
		}
		total++
		idx, err := f.font.GlyphIndex(&buf, r)
		if err == nil && idx != 0 {
			covered++
		}
	}
	return covered, total
}

// FontChoice is the result of font selection for one text.
type FontChoice struct {
	Face        *FontFace // nil for the core default font
	Family      string
	Placeholder bool // some glyphs will not render
}

// FontRegistry 持有本次渲染可用的字体。字体只在渲染开始前注册一次
type FontRegistry struct {
	faces       []*FontFace // primary first, then alternates
	defaultFont string
}

// NewFontRegistry loads Primary then Alternates. Files that are missing or
// unparsable are skipped. When none load, SearchDirs are scanned.
func NewFontRegistry(cfg FontConfig) *FontRegistry {
	r := &FontRegistry{defaultFont: cfg.DefaultFont}
	if r.defaultFont == "" {
		r.defaultFont = "Helvetica"
	}

	seen := make(map[string]bool)
	load := func(path string, sample string) bool {
		if path == "" || seen[path] {
			return false
		}
		seen[path] = true
		face, err := LoadFontFace(path, fmt.Sprintf("F%d", len(r.faces)))
		if err != nil {
			logger.Debug("font not usable", logger.String("path", path), logger.Err(err))
			return false
		}
		if sample != "" && !face.Covers(sample) {
			return false
		}
		r.faces = append(r.faces, face)
		logger.Info("font loaded", logger.String("path", path), logger.String("family", face.Name))
		return true
	}

	load(cfg.Primary, "")
	for _, p := range cfg.Alternates {
		load(p, "")
	}
	if len(r.faces) == 0 {
		dirs := cfg.SearchDirs
		if len(dirs) == 0 {
			dirs = DefaultFontSearchDirs()
		}
		for _, p := range DiscoverFonts(dirs) {
			if load(p, arabicSample) && len(r.faces) >= maxDiscoveredFonts {
				break
			}
		}
	}
	if len(r.faces) == 0 {
		logger.Warn("no script font available, using core font",
			logger.String("font", r.defaultFont))
	}
	return r
}

// LoadFontFace reads and parses a TrueType file.
func LoadFontFace(path, family string) (*FontFace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) >= 4 && string(data[:4]) == "OTTO" {
		return nil, fmt.Errorf("CFF-flavoured OpenType is not supported")
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &FontFace{Name: family, Path: path, data: data, font: f}, nil
}

// Faces returns the loaded faces in preference order.
func (r *FontRegistry) Faces() []*FontFace {
	return r.faces
}

// Register adds every face to a new output document before any page is
// drawn.
func (r *FontRegistry) Register(pdf *fpdf.Fpdf) error {
	for _, face := range r.faces {
		pdf.AddUTF8FontFromBytes(face.Name, "", face.data)
		if err := pdf.Error(); err != nil {
			return NewPDFErrorWithDetails(ErrRenderFailed, "failed to register font", face.Path, err)
		}
	}
	return nil
}

// Select picks the first face covering all of text. When none does, the face
// with the best partial coverage is used with Placeholder set; with no faces
// at all the core default font is used.
func (r *FontRegistry) Select(text string) FontChoice {
	var best *FontFace
	bestCovered := -1
	for _, face := range r.faces {
		covered, total := face.coverage(text)
		if covered == total {
			return FontChoice{Face: face, Family: face.Name}
		}
		if covered > bestCovered {
			best, bestCovered = face, covered
		}
	}
	if best != nil {
		return FontChoice{Face: best, Family: best.Name, Placeholder: true}
	}
	_, ok := encodeCoreText(text)
	return FontChoice{Family: r.defaultFont, Placeholder: !ok}
}

// encodeCoreText converts text to cp1252 for the core fonts. Runes outside
// the code page become '?' and ok is false.
func encodeCoreText(text string) (string, bool) {
	var b strings.Builder
	ok := true
	for _, r := range text {
		c, found := charmap.Windows1252.EncodeRune(r)
		if !found {
			c = '?'
			ok = false
		}
		b.WriteByte(c)
	}
	return b.String(), ok
}

// DefaultFontSearchDirs lists the usual system font directories.
func DefaultFontSearchDirs() []string {
	dirs := []string{
		"/usr/share/fonts",
		"/usr/local/share/fonts",
		`C:\Windows\Fonts`,
		"./fonts",
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".fonts"),
			filepath.Join(home, ".local", "share", "fonts"),
			filepath.Join(home, "Library", "Fonts"))
	}
	return dirs
}

// DiscoverFonts walks dirs for .ttf files whose names suggest Arabic
// coverage. Results are sorted for a stable preference order.
func DiscoverFonts(dirs []string) []string {
	var found []string
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		logger.Debug("searching fonts", logger.String("dir", dir))
		var inDir []string
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			name := strings.ToLower(d.Name())
			if filepath.Ext(name) != ".ttf" {
				return nil
			}
			for _, kw := range fontKeywords {
				if strings.Contains(name, kw) {
					inDir = append(inDir, path)
					break
				}
			}
			return nil
		})
		sort.Strings(inDir)
		found = append(found, inDir...)
	}
	return found
}
