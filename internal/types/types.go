// Package types defines the shared configuration and error types for the PDF translator.
package types

import "time"

// Config 应用配置
//
// Every field carries a json/yaml key for the config file and an envconfig key
// (prefixed with PDFT_ by the config package) for environment overrides.
type Config struct {
	SourceLang string `json:"source_lang" yaml:"source_lang" envconfig:"SOURCE_LANG"` // ISO 639-1, or "auto"
	TargetLang string `json:"target_lang" yaml:"target_lang" envconfig:"TARGET_LANG"`

	// Extraction
	DPI           int     `json:"dpi" yaml:"dpi" envconfig:"DPI"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" envconfig:"MIN_CONFIDENCE"`
	MinTextArea   float64 `json:"min_text_area" yaml:"min_text_area" envconfig:"MIN_TEXT_AREA"` // page-area fraction a digital layer must cover
	OCRLanguage   string  `json:"ocr_language" yaml:"ocr_language" envconfig:"OCR_LANGUAGE"`    // tesseract form, e.g. "ara+eng"
	PageSegMode   int     `json:"page_seg_mode" yaml:"page_seg_mode" envconfig:"PAGE_SEG_MODE"`
	OCRWorkers    int     `json:"ocr_workers" yaml:"ocr_workers" envconfig:"OCR_WORKERS"`

	// Translation
	Provider          string  `json:"provider" yaml:"provider" envconfig:"PROVIDER"` // openai | google
	OpenAIAPIKey      string  `json:"openai_api_key" yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string  `json:"openai_base_url" yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	OpenAIModel       string  `json:"openai_model" yaml:"openai_model" envconfig:"OPENAI_MODEL"`
	GoogleEndpoint    string  `json:"google_endpoint" yaml:"google_endpoint" envconfig:"GOOGLE_ENDPOINT"`
	BatchSize         int     `json:"batch_size" yaml:"batch_size" envconfig:"BATCH_SIZE"`
	Timeout           int     `json:"timeout" yaml:"timeout" envconfig:"TIMEOUT"` // seconds per backend request
	Retries           int     `json:"retries" yaml:"retries" envconfig:"RETRIES"`
	RetryBaseDelayMs  int     `json:"retry_base_delay_ms" yaml:"retry_base_delay_ms" envconfig:"RETRY_BASE_DELAY_MS"`
	RetryMaxDelayMs   int     `json:"retry_max_delay_ms" yaml:"retry_max_delay_ms" envconfig:"RETRY_MAX_DELAY_MS"`
	WorkerCount       int     `json:"worker_count" yaml:"worker_count" envconfig:"WORKER_COUNT"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	MaxTextLength     int     `json:"max_text_length" yaml:"max_text_length" envconfig:"MAX_TEXT_LENGTH"`
	CachePath         string  `json:"cache_path" yaml:"cache_path" envconfig:"CACHE_PATH"`

	// Rendering
	TargetFont     string   `json:"target_font" yaml:"target_font" envconfig:"TARGET_FONT"`
	AlternateFonts []string `json:"alternate_fonts" yaml:"alternate_fonts" envconfig:"ALTERNATE_FONTS"`
	FontSearchDirs []string `json:"font_search_dirs" yaml:"font_search_dirs" envconfig:"FONT_SEARCH_DIRS"`
	DefaultFont    string   `json:"default_font" yaml:"default_font" envconfig:"DEFAULT_FONT"`
	MinFontSize    float64  `json:"min_font_size" yaml:"min_font_size" envconfig:"MIN_FONT_SIZE"`

	// Bookkeeping
	ResultsDir string `json:"results_dir" yaml:"results_dir" envconfig:"RESULTS_DIR"`
	ErrorsDir  string `json:"errors_dir" yaml:"errors_dir" envconfig:"ERRORS_DIR"`
	LogFile    string `json:"log_file" yaml:"log_file" envconfig:"LOG_FILE"`
	LogLevel   string `json:"log_level" yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogConsole bool   `json:"log_console" yaml:"log_console" envconfig:"LOG_CONSOLE"`
}

// RequestTimeout returns the per-request backend timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// RetryBaseDelay returns the first backoff delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
