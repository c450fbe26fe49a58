// Package errors keeps a persistent record of failed translation runs so they
// can be listed and retried.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrorStage 错误阶段枚举
type ErrorStage string

const (
	StageLoad      ErrorStage = "load"      // 读取输入文档
	StageExtract   ErrorStage = "extract"   // 文本提取
	StageTranslate ErrorStage = "translate" // 翻译
	StageRender    ErrorStage = "render"    // 页面渲染
	StageWrite     ErrorStage = "write"     // 写出文件
	StageCancelled ErrorStage = "cancelled" // 用户取消
)

// StageFromCode maps a pipeline error code onto the stage that produced it.
func StageFromCode(code string) ErrorStage {
	switch code {
	case "PDF_NOT_FOUND", "PDF_INVALID":
		return StageLoad
	case "EXTRACT_FAILED", "OCR_FAILED":
		return StageExtract
	case "RENDER_FAILED":
		return StageRender
	case "WRITE_FAILED":
		return StageWrite
	case "CANCELLED":
		return StageCancelled
	default:
		return StageTranslate
	}
}

// ErrorRecord 错误记录
type ErrorRecord struct {
	ID         string     `json:"id"`          // 输入文件的 MD5
	FileName   string     `json:"file_name"`   // 输入文件名
	Input      string     `json:"input"`       // 输入路径
	Stage      ErrorStage `json:"stage"`       // 出错阶段
	ErrorMsg   string     `json:"error_msg"`   // 错误信息
	Timestamp  time.Time  `json:"timestamp"`   // 错误发生时间
	CanRetry   bool       `json:"can_retry"`   // 是否可以重试
	RetryCount int        `json:"retry_count"` // 重试次数
	LastRetry  time.Time  `json:"last_retry"`  // 最后重试时间
}

// ErrorManager 错误管理器
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	errors  map[string]*ErrorRecord // key: ID
}

// NewErrorManager 创建新的错误管理器
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".pdf-translator", "errors")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		errors:  make(map[string]*ErrorRecord),
	}
	if err := em.load(); err != nil {
		return nil, err
	}
	return em, nil
}

// RecordError 记录错误。同一输入再次失败视为一次重试
func (em *ErrorManager) RecordError(id, fileName, input string, stage ErrorStage, errorMsg string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	now := time.Now()
	record := &ErrorRecord{
		ID:        id,
		FileName:  fileName,
		Input:     input,
		Stage:     stage,
		ErrorMsg:  errorMsg,
		Timestamp: now,
		CanRetry:  stage != StageLoad,
	}

	if existing, ok := em.errors[id]; ok {
		record.RetryCount = existing.RetryCount + 1
		record.LastRetry = now
	}

	em.errors[id] = record
	return em.save()
}

// IncrementRetry 增加重试次数
func (em *ErrorManager) IncrementRetry(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if record, ok := em.errors[id]; ok {
		record.RetryCount++
		record.LastRetry = time.Now()
		return em.save()
	}
	return fmt.Errorf("error record not found: %s", id)
}

// RemoveError 移除错误记录（翻译成功后）
func (em *ErrorManager) RemoveError(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.errors[id]; !ok {
		return nil
	}
	delete(em.errors, id)
	return em.save()
}

// ListErrors 列出所有错误记录，最新的在前
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

// GetError 获取特定错误记录
func (em *ErrorManager) GetError(id string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[id]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// ClearAll 清除所有错误记录
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.errors = make(map[string]*ErrorRecord)
	return em.save()
}

func (em *ErrorManager) load() error {
	filePath := filepath.Join(em.baseDir, "errors.json")

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}
	for _, record := range records {
		em.errors[record.ID] = record
	}
	return nil
}

func (em *ErrorManager) save() error {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	filePath := filepath.Join(em.baseDir, "errors.json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}
	return nil
}

// ExportRetryList 导出所有可重试的输入路径，每行一个
func (em *ErrorManager) ExportRetryList(outputPath string) error {
	var inputs []string
	for _, record := range em.ListErrors() {
		if record.CanRetry {
			inputs = append(inputs, record.Input)
		}
	}

	content := ""
	if len(inputs) > 0 {
		content = strings.Join(inputs, "\n") + "\n"
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write retry list: %w", err)
	}
	return nil
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageLoad:
		return "读取文档"
	case StageExtract:
		return "文本提取"
	case StageTranslate:
		return "翻译"
	case StageRender:
		return "页面渲染"
	case StageWrite:
		return "写出文件"
	case StageCancelled:
		return "已取消"
	default:
		return string(stage)
	}
}
