package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"pdf-translator/internal/logger"
)

// Rasterizer renders one page to an image file for OCR. The caller must call
// release once it is done with the image, whether or not OCR succeeded.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, pageIndex, dpi int) (imagePath string, release func(), err error)
}

// PopplerRasterizer shells out to pdftoppm.
type PopplerRasterizer struct {
	binary string
}

// NewPopplerRasterizer returns a rasterizer, or nil when pdftoppm is not on PATH.
func NewPopplerRasterizer() *PopplerRasterizer {
	path, err := exec.LookPath("pdftoppm")
	if err != nil {
		logger.Warn("pdftoppm not found, OCR fallback disabled", logger.Err(err))
		return nil
	}
	return &PopplerRasterizer{binary: path}
}

// Rasterize writes page pageIndex (0-based) as a PNG into a private temp
// directory that release removes.
func (r *PopplerRasterizer) Rasterize(ctx context.Context, pdfPath string, pageIndex, dpi int) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "pdf2img_*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	release := func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("failed to remove raster temp dir", logger.String("dir", tempDir), logger.Err(err))
		}
	}

	pageNum := strconv.Itoa(pageIndex + 1)
	outputPrefix := filepath.Join(tempDir, "page_"+pageNum)
	args := []string{
		"-f", pageNum,
		"-l", pageNum,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	detachConsole(cmd)

	logger.Debug("rasterizing page",
		logger.String("pdf", filepath.Base(pdfPath)),
		logger.Int("page", pageIndex),
		logger.Int("dpi", dpi))

	if output, err := cmd.CombinedOutput(); err != nil {
		release()
		return "", nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(output))
	}

	imagePath := outputPrefix + ".png"
	if _, err := os.Stat(imagePath); err != nil {
		release()
		return "", nil, fmt.Errorf("rasterized image not found: %w", err)
	}
	return imagePath, release, nil
}
