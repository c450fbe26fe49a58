package pdf

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"pdf-translator/internal/logger"
)

// tesseract is tuned for text scanned at roughly this resolution
const ocrTargetDPI = 300

// ImagePreprocessor prepares a rasterized page for OCR: grayscale, contrast
// stretch, upscaling of low resolution rasters and a white margin.
type ImagePreprocessor struct {
	targetDPI int
	margin    int
	clip      float64 // histogram fraction clipped at each end of the stretch
}

// NewImagePreprocessor creates a preprocessor that upscales below targetDPI.
func NewImagePreprocessor(targetDPI, margin int) *ImagePreprocessor {
	if targetDPI <= 0 {
		targetDPI = ocrTargetDPI
	}
	if margin < 0 {
		margin = 0
	}
	return &ImagePreprocessor{targetDPI: targetDPI, margin: margin, clip: 0.01}
}

// PreparedImage is the preprocessed raster plus the mapping back to the
// coordinates of the original image.
type PreparedImage struct {
	Image  *image.Gray
	Scale  float64
	Offset int
}

// ToSource maps a rectangle in prepared-image pixels back onto the source raster.
func (p *PreparedImage) ToSource(r image.Rectangle) image.Rectangle {
	conv := func(v int) int {
		return int(float64(v-p.Offset)/p.Scale + 0.5)
	}
	return image.Rect(conv(r.Min.X), conv(r.Min.Y), conv(r.Max.X), conv(r.Max.Y))
}

// Prepare converts img rendered at dpi into an OCR-friendly grayscale image.
func (p *ImagePreprocessor) Prepare(img image.Image, dpi int) *PreparedImage {
	scale := 1.0
	if dpi > 0 && dpi < p.targetDPI {
		scale = float64(p.targetDPI) / float64(dpi)
	}

	gray := toGray(img)
	if scale != 1 {
		b := gray.Bounds()
		w := int(float64(b.Dx())*scale + 0.5)
		h := int(float64(b.Dy())*scale + 0.5)
		scaled := image.NewGray(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), gray, b, xdraw.Src, nil)
		gray = scaled
	}
	stretchContrast(gray, p.clip)

	logger.Debug("ocr image prepared",
		logger.Int("width", gray.Bounds().Dx()),
		logger.Int("height", gray.Bounds().Dy()),
		logger.Float64("scale", scale))

	return &PreparedImage{
		Image:  PadImage(gray, p.margin),
		Scale:  scale,
		Offset: p.margin,
	}
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// stretchContrast maps the [clip, 1-clip] luminance percentiles onto 0..255
// in place. Flat images are left alone.
func stretchContrast(img *image.Gray, clip float64) {
	var hist [256]int
	for _, v := range img.Pix {
		hist[v]++
	}
	total := len(img.Pix)
	if total == 0 {
		return
	}

	cut := int(float64(total) * clip)
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > cut {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > cut {
			break
		}
	}
	if hi <= lo {
		return
	}

	var lut [256]uint8
	span := float64(hi - lo)
	for i := range lut {
		switch {
		case i <= lo:
			lut[i] = 0
		case i >= hi:
			lut[i] = 255
		default:
			lut[i] = uint8(float64(i-lo)*255/span + 0.5)
		}
	}
	for i, v := range img.Pix {
		img.Pix[i] = lut[v]
	}
}

// PadImage surrounds img with a white border of margin pixels.
func PadImage(img *image.Gray, margin int) *image.Gray {
	if margin == 0 {
		return img
	}
	b := img.Bounds()
	padded := image.NewGray(image.Rect(0, 0, b.Dx()+2*margin, b.Dy()+2*margin))
	draw.Draw(padded, padded.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(padded, image.Rect(margin, margin, margin+b.Dx(), margin+b.Dy()), img, b.Min, draw.Src)
	return padded
}
