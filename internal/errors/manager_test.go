package errors

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestErrorManager(t *testing.T) {
	tempDir := t.TempDir()

	em, err := NewErrorManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create error manager: %v", err)
	}

	err = em.RecordError("abc123", "report.pdf", "/docs/report.pdf", StageWrite, "disk full")
	if err != nil {
		t.Fatalf("Failed to record error: %v", err)
	}

	record, ok := em.GetError("abc123")
	if !ok {
		t.Fatal("Error record not found")
	}
	if record.Stage != StageWrite {
		t.Errorf("Expected stage write, got %s", record.Stage)
	}
	if !record.CanRetry {
		t.Error("Write failures should be retryable")
	}
	if record.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", record.RetryCount)
	}

	// 同一输入再次失败
	err = em.RecordError("abc123", "report.pdf", "/docs/report.pdf", StageTranslate, "backend down")
	if err != nil {
		t.Fatalf("Failed to record error: %v", err)
	}
	record, _ = em.GetError("abc123")
	if record.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", record.RetryCount)
	}
	if record.ErrorMsg != "backend down" {
		t.Errorf("Expected latest message, got %q", record.ErrorMsg)
	}

	if err := em.IncrementRetry("abc123"); err != nil {
		t.Fatalf("Failed to increment retry: %v", err)
	}
	record, _ = em.GetError("abc123")
	if record.RetryCount != 2 {
		t.Errorf("Expected retry count 2, got %d", record.RetryCount)
	}
	if err := em.IncrementRetry("missing"); err == nil {
		t.Error("Expected error for unknown record")
	}

	if len(em.ListErrors()) != 1 {
		t.Errorf("Expected 1 error record, got %d", len(em.ListErrors()))
	}

	if err := em.RemoveError("abc123"); err != nil {
		t.Fatalf("Failed to remove error: %v", err)
	}
	if len(em.ListErrors()) != 0 {
		t.Errorf("Expected 0 error records, got %d", len(em.ListErrors()))
	}
	if err := em.RemoveError("abc123"); err != nil {
		t.Errorf("Removing an absent record should succeed, got %v", err)
	}
}

func TestErrorManagerPersistence(t *testing.T) {
	tempDir := t.TempDir()

	em1, err := NewErrorManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create error manager: %v", err)
	}
	if err := em1.RecordError("id1", "a.pdf", "a.pdf", StageExtract, "error1"); err != nil {
		t.Fatalf("Failed to record error: %v", err)
	}

	em2, err := NewErrorManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create second error manager: %v", err)
	}
	record, ok := em2.GetError("id1")
	if !ok {
		t.Fatal("Error record not found after reload")
	}
	if record.ErrorMsg != "error1" {
		t.Errorf("Expected error message 'error1', got '%s'", record.ErrorMsg)
	}
}

func TestErrorManagerCorruptFile(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "errors.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewErrorManager(tempDir); err == nil {
		t.Error("Expected error for corrupt errors file")
	}
}

func TestStageFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected ErrorStage
	}{
		{"PDF_NOT_FOUND", StageLoad},
		{"PDF_INVALID", StageLoad},
		{"OCR_FAILED", StageExtract},
		{"RENDER_FAILED", StageRender},
		{"WRITE_FAILED", StageWrite},
		{"CANCELLED", StageCancelled},
		{"", StageTranslate},
	}
	for _, tt := range tests {
		if got := StageFromCode(tt.code); got != tt.expected {
			t.Errorf("StageFromCode(%q) = %s, want %s", tt.code, got, tt.expected)
		}
	}
}

func TestGetStageDisplayName(t *testing.T) {
	tests := []struct {
		stage    ErrorStage
		expected string
	}{
		{StageLoad, "读取文档"},
		{StageExtract, "文本提取"},
		{StageTranslate, "翻译"},
		{StageRender, "页面渲染"},
		{StageWrite, "写出文件"},
		{StageCancelled, "已取消"},
		{ErrorStage("other"), "other"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			result := GetStageDisplayName(tt.stage)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestExportRetryList(t *testing.T) {
	tempDir := t.TempDir()

	em, err := NewErrorManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create error manager: %v", err)
	}

	retryable := []string{"/in/one.pdf", "/in/two.pdf"}
	for i, input := range retryable {
		if err := em.RecordError(string(rune('a'+i)), filepath.Base(input), input, StageTranslate, "x"); err != nil {
			t.Fatalf("Failed to record error: %v", err)
		}
	}
	// 无法读取的输入不可重试
	if err := em.RecordError("z", "bad.pdf", "/in/bad.pdf", StageLoad, "not a pdf"); err != nil {
		t.Fatalf("Failed to record error: %v", err)
	}

	outputPath := filepath.Join(tempDir, "retry.txt")
	if err := em.ExportRetryList(outputPath); err != nil {
		t.Fatalf("Failed to export retry list: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read exported file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != len(retryable) {
		t.Errorf("Expected %d lines, got %d", len(retryable), len(lines))
	}
	for _, input := range retryable {
		if !strings.Contains(string(content), input) {
			t.Errorf("Expected exported file to contain %q", input)
		}
	}
	if strings.Contains(string(content), "bad.pdf") {
		t.Error("Non-retryable input should not be exported")
	}
}

func TestExportRetryListEmpty(t *testing.T) {
	tempDir := t.TempDir()

	em, err := NewErrorManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create error manager: %v", err)
	}

	outputPath := filepath.Join(tempDir, "empty.txt")
	if err := em.ExportRetryList(outputPath); err != nil {
		t.Fatalf("Failed to export empty list: %v", err)
	}
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read exported file: %v", err)
	}
	if len(content) != 0 {
		t.Errorf("Expected empty file, got %d bytes", len(content))
	}
}
