package pdf

import (
	"fmt"
	"math"
	"strings"

	"pdf-translator/internal/logger"
)

// pageSizeTolerance is the allowed difference in points between page sizes.
const pageSizeTolerance = 0.5

// PageCheckResult holds the result of comparing an input PDF with its translation
type PageCheckResult struct {
	IsComplete      bool     `json:"is_complete"`
	OriginalPages   int      `json:"original_pages"`
	TranslatedPages int      `json:"translated_pages"`
	SizeMismatches  []int    `json:"size_mismatches"` // 0-based page indexes
	Valid           bool     `json:"valid"`           // translated file parses
	Warnings        []string `json:"warnings"`
	Score           float64  `json:"score"` // 0-100
}

// CheckPages verifies that a translated PDF has the same pages, in the same
// order and sizes, as the original.
func CheckPages(originalPath, translatedPath string) (*PageCheckResult, error) {
	logger.Info("checking translated pages",
		logger.String("original", originalPath),
		logger.String("translated", translatedPath))

	original, err := InspectDocument(originalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read original PDF: %w", err)
	}

	result := &PageCheckResult{
		OriginalPages: original.PageCount,
		Valid:         true,
		Score:         100.0,
	}

	if err := ValidateOutput(translatedPath); err != nil {
		result.Valid = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("翻译后PDF无效: %v", err))
		result.Score = 0
		return result, nil
	}

	translated, err := InspectDocument(translatedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translated PDF: %w", err)
	}
	result.TranslatedPages = translated.PageCount

	if translated.PageCount != original.PageCount {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("页数不一致: 原始 %d 页, 翻译后 %d 页", original.PageCount, translated.PageCount))
		diff := math.Abs(float64(original.PageCount - translated.PageCount))
		result.Score -= math.Min(60, diff/math.Max(float64(original.PageCount), 1)*100)
	}

	n := min(len(original.Pages), len(translated.Pages))
	for i := 0; i < n; i++ {
		// compared as shown, the output carries rotation in its page size
		ow, oh := original.Pages[i].DisplaySize()
		tw, th := translated.Pages[i].DisplaySize()
		if math.Abs(ow-tw) > pageSizeTolerance || math.Abs(oh-th) > pageSizeTolerance {
			result.SizeMismatches = append(result.SizeMismatches, i)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("第%d页尺寸不一致: %.1fx%.1f vs %.1fx%.1f", i+1, ow, oh, tw, th))
		}
	}
	if n > 0 {
		result.Score -= float64(len(result.SizeMismatches)) / float64(n) * 40
	}
	if result.Score < 0 {
		result.Score = 0
	}

	result.IsComplete = result.Valid &&
		result.OriginalPages == result.TranslatedPages &&
		len(result.SizeMismatches) == 0

	logger.Info("page check completed",
		logger.Bool("isComplete", result.IsComplete),
		logger.Float64("score", result.Score))
	return result, nil
}

// FormatPageCheckResult formats the check result as a human-readable string
func FormatPageCheckResult(result *PageCheckResult) string {
	var sb strings.Builder

	sb.WriteString("=== 页面检测结果 ===\n\n")
	if result.IsComplete {
		sb.WriteString("✓ 页面检测通过\n")
	} else {
		sb.WriteString("✗ 页面检测未通过\n")
	}
	sb.WriteString(fmt.Sprintf("评分: %.1f/100\n", result.Score))
	sb.WriteString(fmt.Sprintf("页数对比: 原始 %d 页, 翻译后 %d 页\n", result.OriginalPages, result.TranslatedPages))

	if len(result.Warnings) > 0 {
		sb.WriteString("\n警告:\n")
		for _, w := range result.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", w))
		}
	}
	return sb.String()
}
