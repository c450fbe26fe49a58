// Package results keeps the history of translation runs per input document.
// Runs are grouped by the MD5 of the input file so a renamed or moved copy of
// the same document shares its history.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"pdf-translator/internal/pdf"
)

// MaxHistory is the number of runs kept per input.
const MaxHistory = 20

// RunStatus represents the outcome of a run
type RunStatus string

const (
	// StatusComplete indicates every unit was translated and rendered
	StatusComplete RunStatus = "complete"
	// StatusDegraded indicates an output was written with fallbacks
	StatusDegraded RunStatus = "degraded"
	// StatusError indicates no output was written
	StatusError RunStatus = "error"
)

// RunRecord is the stored form of one run.
type RunRecord struct {
	RunID         string    `json:"run_id"`
	InputMD5      string    `json:"input_md5"`
	InputFileName string    `json:"input_file_name"`
	InputPath     string    `json:"input_path"`
	OutputPath    string    `json:"output_path,omitempty"`
	SourceLang    string    `json:"source_lang"`
	TargetLang    string    `json:"target_lang"`
	Status        RunStatus `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`

	Pages            int   `json:"pages"`
	OCRPages         []int `json:"ocr_pages,omitempty"`
	FailedPages      []int `json:"failed_pages,omitempty"`
	TotalUnits       int   `json:"total_units"`
	CachedUnits      int   `json:"cached_units"`
	TranslatedUnits  int   `json:"translated_units"`
	FallbackUnits    int   `json:"fallback_units"`
	PlaceholderUnits int   `json:"placeholder_units"`
	TruncatedUnits   int   `json:"truncated_units"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RecordFromSummary builds a record from a run summary. runErr is the error
// returned by the pipeline, if any.
func RecordFromSummary(summary *pdf.RunSummary, inputMD5 string, runErr error) *RunRecord {
	rec := &RunRecord{
		RunID:            summary.RunID,
		InputMD5:         inputMD5,
		InputFileName:    filepath.Base(summary.InputPath),
		InputPath:        summary.InputPath,
		OutputPath:       summary.OutputPath,
		SourceLang:       summary.SourceLang,
		TargetLang:       summary.TargetLang,
		Status:           StatusComplete,
		Pages:            summary.Pages,
		OCRPages:         summary.OCRPages,
		FailedPages:      summary.FailedPages,
		TotalUnits:       summary.TotalUnits,
		CachedUnits:      summary.CachedUnits,
		TranslatedUnits:  summary.TranslatedUnits,
		FallbackUnits:    len(summary.FallbackUnits),
		PlaceholderUnits: len(summary.PlaceholderUnits),
		TruncatedUnits:   len(summary.TruncatedUnits),
		StartedAt:        summary.StartedAt,
		Duration:         summary.Duration,
	}
	switch {
	case runErr != nil:
		rec.Status = StatusError
		rec.ErrorMessage = runErr.Error()
		rec.OutputPath = ""
	case summary.Degraded():
		rec.Status = StatusDegraded
	}
	return rec
}

// ResultManager manages run history stored in user directory
type ResultManager struct {
	baseDir string
}

// NewResultManager creates a new ResultManager with the specified base directory
// If baseDir is empty, uses default location in user's home directory
func NewResultManager(baseDir string) (*ResultManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".pdf-translator", "results")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &ResultManager{baseDir: baseDir}, nil
}

// GetBaseDir returns the base directory for results
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

// GetInputDir returns the directory holding the history of one input
func (m *ResultManager) GetInputDir(inputMD5 string) string {
	return filepath.Join(m.baseDir, inputMD5)
}

func (m *ResultManager) historyPath(inputMD5 string) string {
	return filepath.Join(m.GetInputDir(inputMD5), "history.json")
}

// SaveRun appends a run to its input's history, keeping the latest MaxHistory.
func (m *ResultManager) SaveRun(rec *RunRecord) error {
	if rec.InputMD5 == "" {
		return fmt.Errorf("run record has no input hash")
	}

	history, err := m.LoadHistory(rec.InputMD5)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	history = append(history, rec)
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	if err := os.MkdirAll(m.GetInputDir(rec.InputMD5), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.historyPath(rec.InputMD5), data, 0644)
}

// LoadHistory returns the runs of one input, oldest first
func (m *ResultManager) LoadHistory(inputMD5 string) ([]*RunRecord, error) {
	data, err := os.ReadFile(m.historyPath(inputMD5))
	if err != nil {
		return nil, err
	}

	var history []*RunRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// LatestRun returns the most recent run of one input
func (m *ResultManager) LatestRun(inputMD5 string) (*RunRecord, error) {
	history, err := m.LoadHistory(inputMD5)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, os.ErrNotExist
	}
	return history[len(history)-1], nil
}

// ListLatest returns the latest run of every input, newest first
func (m *ResultManager) ListLatest() ([]*RunRecord, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, err
	}

	var runs []*RunRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := m.LatestRun(entry.Name())
		if err != nil {
			// Skip directories without valid history
			continue
		}
		runs = append(runs, rec)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// DeleteHistory removes all runs of one input
func (m *ResultManager) DeleteHistory(inputMD5 string) error {
	return os.RemoveAll(m.GetInputDir(inputMD5))
}

// FindPreviousOutput returns the latest successful run of the input whose
// output file still exists, or nil.
func (m *ResultManager) FindPreviousOutput(inputMD5, targetLang string) *RunRecord {
	history, err := m.LoadHistory(inputMD5)
	if err != nil {
		return nil
	}
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		if rec.Status == StatusError || rec.TargetLang != targetLang || rec.OutputPath == "" {
			continue
		}
		if _, err := os.Stat(rec.OutputPath); err == nil {
			return rec
		}
	}
	return nil
}

// CalculateFileMD5 calculates the MD5 hash of a file
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
