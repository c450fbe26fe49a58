package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// OCRLine is one recognised line in image pixel coordinates.
type OCRLine struct {
	Text       string
	Box        image.Rectangle
	Confidence float64 // 0..1
}

// OCROptions 控制 OCR 的语言与分页模式
type OCROptions struct {
	Language    string // tesseract form, "ara+eng"
	PageSegMode int
	DPI         int // resolution the image was rendered at
}

// OCREngine recognises text lines in an image file.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string, opts OCROptions) ([]OCRLine, error)
}

// TesseractEngine runs tesseract through gosseract. A client is created per
// call since gosseract clients are not safe for concurrent use.
type TesseractEngine struct {
	prep *ImagePreprocessor // nil hands the raster to tesseract untouched
}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{prep: NewImagePreprocessor(ocrTargetDPI, 10)}
}

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string, opts OCROptions) ([]OCRLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if opts.Language != "" {
		if err := client.SetLanguage(strings.Split(opts.Language, "+")...); err != nil {
			return nil, fmt.Errorf("set language %q: %w", opts.Language, err)
		}
	}
	if opts.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode %d: %w", opts.PageSegMode, err)
		}
	}
	prepared, err := e.loadImage(client, imagePath, opts.DPI)
	if err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	lines := make([]OCRLine, 0, len(boxes))
	for _, b := range boxes {
		box := b.Box
		if prepared != nil {
			box = prepared.ToSource(box)
		}
		lines = append(lines, OCRLine{
			Text:       b.Word,
			Box:        box,
			Confidence: b.Confidence / 100,
		})
	}
	return lines, nil
}

// loadImage feeds the raster to the client, preprocessed when the engine has
// a preprocessor. The returned image maps boxes back to raster pixels.
func (e *TesseractEngine) loadImage(client *gosseract.Client, imagePath string, dpi int) (*PreparedImage, error) {
	if e.prep == nil {
		if err := client.SetImage(imagePath); err != nil {
			return nil, fmt.Errorf("load image: %w", err)
		}
		return nil, nil
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	prepared := e.prep.Prepare(img, dpi)
	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared.Image); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	return prepared, nil
}
