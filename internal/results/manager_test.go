package results

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pdf-translator/internal/pdf"
)

func newTestManager(t *testing.T) *ResultManager {
	t.Helper()
	manager, err := NewResultManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}
	return manager
}

func sampleSummary(output string) *pdf.RunSummary {
	return &pdf.RunSummary{
		RunID:           "run-1",
		InputPath:       "/docs/report.pdf",
		OutputPath:      output,
		SourceLang:      "en",
		TargetLang:      "ar",
		Pages:           3,
		OCRPages:        []int{2},
		TotalUnits:      10,
		CachedUnits:     4,
		TranslatedUnits: 6,
		StartedAt:       time.Now(),
		Duration:        2 * time.Second,
	}
}

func TestNewResultManager(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewResultManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}
	if manager.GetBaseDir() != tempDir {
		t.Errorf("Expected base dir %s, got %s", tempDir, manager.GetBaseDir())
	}
}

func TestRecordFromSummary(t *testing.T) {
	summary := sampleSummary("/out/report_ar.pdf")

	rec := RecordFromSummary(summary, "abc", nil)
	if rec.Status != StatusComplete {
		t.Errorf("Expected complete, got %s", rec.Status)
	}
	if rec.InputFileName != "report.pdf" {
		t.Errorf("Expected file name report.pdf, got %s", rec.InputFileName)
	}
	if rec.TotalUnits != 10 || rec.CachedUnits != 4 {
		t.Errorf("Unit counts not copied: %+v", rec)
	}

	summary.FallbackUnits = []pdf.FallbackUnit{{ID: pdf.UnitID{PageIndex: 0, Ordinal: 1}, Reason: "exhausted"}}
	rec = RecordFromSummary(summary, "abc", nil)
	if rec.Status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", rec.Status)
	}
	if rec.FallbackUnits != 1 {
		t.Errorf("Expected 1 fallback unit, got %d", rec.FallbackUnits)
	}

	rec = RecordFromSummary(summary, "abc", errors.New("disk full"))
	if rec.Status != StatusError {
		t.Errorf("Expected error, got %s", rec.Status)
	}
	if rec.ErrorMessage != "disk full" || rec.OutputPath != "" {
		t.Errorf("Unexpected error record: %+v", rec)
	}
}

func TestSaveAndLoadHistory(t *testing.T) {
	manager := newTestManager(t)

	if err := manager.SaveRun(&RunRecord{RunID: "x"}); err == nil {
		t.Error("Expected error for record without input hash")
	}

	for i := 0; i < 3; i++ {
		rec := RecordFromSummary(sampleSummary("/out/a.pdf"), "hash1", nil)
		rec.RunID = string(rune('a' + i))
		if err := manager.SaveRun(rec); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	history, err := manager.LoadHistory("hash1")
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(history))
	}
	if history[0].RunID != "a" || history[2].RunID != "c" {
		t.Errorf("History out of order: %s..%s", history[0].RunID, history[2].RunID)
	}

	latest, err := manager.LatestRun("hash1")
	if err != nil {
		t.Fatalf("Failed to load latest run: %v", err)
	}
	if latest.RunID != "c" {
		t.Errorf("Expected latest run c, got %s", latest.RunID)
	}

	if _, err := manager.LatestRun("unknown"); err == nil {
		t.Error("Expected error for unknown input")
	}
}

func TestSaveRunTrimsHistory(t *testing.T) {
	manager := newTestManager(t)
	for i := 0; i < MaxHistory+5; i++ {
		rec := RecordFromSummary(sampleSummary(""), "hash", nil)
		if err := manager.SaveRun(rec); err != nil {
			t.Fatalf("Failed to save run %d: %v", i, err)
		}
	}
	history, err := manager.LoadHistory("hash")
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(history) != MaxHistory {
		t.Errorf("Expected %d runs, got %d", MaxHistory, len(history))
	}
}

func TestListLatestAndDelete(t *testing.T) {
	manager := newTestManager(t)

	older := RecordFromSummary(sampleSummary(""), "old", nil)
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := RecordFromSummary(sampleSummary(""), "new", nil)
	for _, rec := range []*RunRecord{older, newer} {
		if err := manager.SaveRun(rec); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}
	// Stray directories without history are ignored
	if err := os.MkdirAll(filepath.Join(manager.GetBaseDir(), "stray"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := manager.ListLatest()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 inputs, got %d", len(runs))
	}
	if runs[0].InputMD5 != "new" {
		t.Errorf("Expected newest first, got %s", runs[0].InputMD5)
	}

	if err := manager.DeleteHistory("old"); err != nil {
		t.Fatalf("Failed to delete history: %v", err)
	}
	runs, _ = manager.ListLatest()
	if len(runs) != 1 {
		t.Errorf("Expected 1 input after delete, got %d", len(runs))
	}
}

func TestFindPreviousOutput(t *testing.T) {
	manager := newTestManager(t)
	output := filepath.Join(t.TempDir(), "report_ar.pdf")
	if err := os.WriteFile(output, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	good := RecordFromSummary(sampleSummary(output), "h", nil)
	good.RunID = "good"
	failed := RecordFromSummary(sampleSummary(output), "h", errors.New("boom"))
	gone := RecordFromSummary(sampleSummary("/nonexistent/out.pdf"), "h", nil)
	for _, rec := range []*RunRecord{good, failed, gone} {
		if err := manager.SaveRun(rec); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	found := manager.FindPreviousOutput("h", "ar")
	if found == nil || found.RunID != "good" {
		t.Fatalf("Expected run good, got %+v", found)
	}
	if manager.FindPreviousOutput("h", "fr") != nil {
		t.Error("Expected no match for another target language")
	}
	if manager.FindPreviousOutput("missing", "ar") != nil {
		t.Error("Expected no match for unknown input")
	}
}

func TestCalculateFileMD5(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("Hello, World!"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	md5Hash, err := CalculateFileMD5(testFile)
	if err != nil {
		t.Fatalf("Failed to calculate MD5: %v", err)
	}
	expectedMD5 := "65a8e27d8879283831b664bd8b7f0ad4"
	if md5Hash != expectedMD5 {
		t.Errorf("Expected MD5 %s, got %s", expectedMD5, md5Hash)
	}
}

func TestCalculateFileMD5_NonExistent(t *testing.T) {
	_, err := CalculateFileMD5("/nonexistent/file.txt")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}
