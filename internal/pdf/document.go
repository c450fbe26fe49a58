package pdf

import (
	"math"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-translator/internal/logger"
)

// DefaultPageWidth and DefaultPageHeight describe A4 in points.
const (
	DefaultPageWidth  = 595.276
	DefaultPageHeight = 841.890
)

// PDFInfo PDF 文件信息
type PDFInfo struct {
	FilePath  string         `json:"file_path"`
	FileName  string         `json:"file_name"`
	PageCount int            `json:"page_count"`
	FileSize  int64          `json:"file_size"`
	Pages     []PageGeometry `json:"pages"`
}

// checkInputFile maps stat failures onto PDF error codes.
func checkInputFile(pdfPath string) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFErrorWithDetails(ErrPDFNotFound, "文件不存在，请检查路径", pdfPath, err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "无法访问文件", err)
	}
	if fileInfo.IsDir() {
		return nil, NewPDFError(ErrPDFInvalid, "路径指向目录而非文件", nil)
	}
	return fileInfo, nil
}

// InspectDocument 读取页数与每页尺寸
func InspectDocument(pdfPath string) (*PDFInfo, error) {
	fileInfo, err := checkInputFile(pdfPath)
	if err != nil {
		return nil, err
	}

	ctx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法读取PDF文件", err)
	}

	info := &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		PageCount: ctx.PageCount,
		FileSize:  fileInfo.Size(),
		Pages:     make([]PageGeometry, ctx.PageCount),
	}

	boundaries, err := ctx.PageBoundaries(nil)
	if err != nil {
		logger.Warn("page boundaries unreadable, assuming A4",
			logger.String("path", pdfPath),
			logger.Err(err))
	}
	for i := range info.Pages {
		geom := PageGeometry{Index: i, Width: DefaultPageWidth, Height: DefaultPageHeight}
		if i < len(boundaries) {
			geom = pageGeometry(i, boundaries[i])
		}
		info.Pages[i] = geom
	}
	return info, nil
}

// pageGeometry takes the unrotated MediaBox and the effective rotation.
func pageGeometry(index int, pb model.PageBoundaries) PageGeometry {
	geom := PageGeometry{Index: index, Width: DefaultPageWidth, Height: DefaultPageHeight}
	if mb := pb.MediaBox(); mb != nil && mb.Width() > 0 && mb.Height() > 0 {
		geom.Width = mb.Width()
		geom.Height = mb.Height()
		geom.OriginX = math.Min(mb.LL.X, mb.UR.X)
		geom.OriginY = math.Min(mb.LL.Y, mb.UR.Y)
	}
	geom.Rotation = normalizeRotation(pb.Rot)
	return geom
}

// GetPageCount 获取PDF页数
func GetPageCount(pdfPath string) (int, error) {
	if _, err := checkInputFile(pdfPath); err != nil {
		return 0, err
	}
	ctx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		return 0, NewPDFError(ErrPDFInvalid, "无法读取PDF文件", err)
	}
	return ctx.PageCount, nil
}

// ValidateOutput checks that a written PDF exists, is non-empty and parses.
func ValidateOutput(pdfPath string) error {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewPDFError(ErrWriteFailed, "生成的 PDF 文件不存在", err)
		}
		return NewPDFError(ErrWriteFailed, "无法访问生成的 PDF 文件", err)
	}
	if fileInfo.Size() == 0 {
		return NewPDFError(ErrWriteFailed, "生成的 PDF 文件为空", nil)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(pdfPath, conf); err != nil {
		return NewPDFError(ErrWriteFailed, "生成的 PDF 文件格式无效", err)
	}
	return nil
}
