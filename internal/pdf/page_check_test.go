package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPages(t *testing.T) {
	a4 := fixturePage{Width: 595, Height: 842}
	letter := fixturePage{Width: 612, Height: 792}

	original := writeFixturePDF(t, t.TempDir(), a4, letter)

	t.Run("identical pages", func(t *testing.T) {
		translated := writeFixturePDF(t, t.TempDir(), a4, letter)
		result, err := CheckPages(original, translated)
		require.NoError(t, err)
		assert.True(t, result.IsComplete)
		assert.Equal(t, 100.0, result.Score)
		assert.Empty(t, result.Warnings)
	})

	t.Run("missing page", func(t *testing.T) {
		translated := writeFixturePDF(t, t.TempDir(), a4)
		result, err := CheckPages(original, translated)
		require.NoError(t, err)
		assert.False(t, result.IsComplete)
		assert.Equal(t, 2, result.OriginalPages)
		assert.Equal(t, 1, result.TranslatedPages)
		assert.Less(t, result.Score, 100.0)
	})

	t.Run("pages out of order", func(t *testing.T) {
		translated := writeFixturePDF(t, t.TempDir(), letter, a4)
		result, err := CheckPages(original, translated)
		require.NoError(t, err)
		assert.False(t, result.IsComplete)
		assert.Equal(t, []int{0, 1}, result.SizeMismatches)
		assert.InDelta(t, 60, result.Score, 1e-9)
	})

	t.Run("invalid translation", func(t *testing.T) {
		translated := filepath.Join(t.TempDir(), "broken.pdf")
		require.NoError(t, os.WriteFile(translated, []byte("%PDF-1.4 garbage"), 0644))
		result, err := CheckPages(original, translated)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.False(t, result.IsComplete)
		assert.Zero(t, result.Score)
	})

	t.Run("unreadable original", func(t *testing.T) {
		_, err := CheckPages("/non/existent.pdf", original)
		assert.Error(t, err)
	})
}

func TestFormatPageCheckResult(t *testing.T) {
	out := FormatPageCheckResult(&PageCheckResult{
		IsComplete:      false,
		OriginalPages:   3,
		TranslatedPages: 2,
		Score:           70,
		Warnings:        []string{"页数不一致: 原始 3 页, 翻译后 2 页"},
	})
	assert.True(t, strings.Contains(out, "✗"))
	assert.Contains(t, out, "70.0/100")
	assert.Contains(t, out, "页数不一致")

	out = FormatPageCheckResult(&PageCheckResult{IsComplete: true, Score: 100})
	assert.Contains(t, out, "✓")
	assert.NotContains(t, out, "警告")
}
