// Package config provides configuration management for the PDF translator.
//
// Values are layered: built-in defaults, then the config file (YAML or JSON,
// validated against an embedded JSON schema), then .env files, then PDFT_*
// environment variables. Command-line flags are applied by the caller.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdf-translator.yaml"
	// EnvPrefix prefixes every environment override (PDFT_DPI, PDFT_TARGET_LANG, ...).
	// envconfig also honours the unprefixed name, so OPENAI_API_KEY works as-is.
	EnvPrefix = "PDFT"
	// EnvOpenAIAPIKey is the environment variable name for OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default chat model used for translation
	DefaultModel = "gpt-4o-mini"
	// DefaultGoogleEndpoint is the public web translation endpoint
	DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

	DefaultSourceLang        = "en"
	DefaultTargetLang        = "ar"
	DefaultDPI               = 300
	DefaultMinConfidence     = 0.5
	DefaultMinTextArea       = 0.001
	DefaultOCRLanguage       = "ara+eng"
	DefaultPageSegMode       = 3
	DefaultOCRWorkers        = 1
	DefaultProvider          = "openai"
	DefaultBatchSize         = 10
	DefaultTimeout           = 30
	DefaultRetries           = 3
	DefaultRetryBaseDelayMs  = 2000
	DefaultRetryMaxDelayMs   = 30000
	DefaultWorkerCount       = 3
	DefaultMaxTextLength     = 5000
	DefaultFont              = "Helvetica"
	DefaultMinFontSize       = 4.0
	DefaultLogLevel          = "info"
	appDirName               = "pdf-translator"
	configSchemaResourceName = "config.schema.json"
)

// DefaultAlternateFonts lists the Arabic-capable fonts tried after TargetFont.
var DefaultAlternateFonts = []string{
	"/usr/share/fonts/truetype/fonts-arabeyes/ae_AlArabiya.ttf",
	"/usr/share/fonts/truetype/fonts-arabeyes/ae_Furat.ttf",
	"/usr/local/share/fonts/Amiri-Regular.ttf",
	"./fonts/Amiri-Regular.ttf",
}

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	envFiles   []string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in the user's config directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			logger.Error("failed to get user config directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user config directory", err)
		}
		configPath = filepath.Join(dir, appDirName, DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		envFiles:   []string{".env"},
		config:     DefaultConfig(),
	}, nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *types.Config {
	cfg := &types.Config{
		SourceLang:       DefaultSourceLang,
		TargetLang:       DefaultTargetLang,
		DPI:              DefaultDPI,
		MinConfidence:    DefaultMinConfidence,
		MinTextArea:      DefaultMinTextArea,
		OCRLanguage:      DefaultOCRLanguage,
		PageSegMode:      DefaultPageSegMode,
		OCRWorkers:       DefaultOCRWorkers,
		Provider:         DefaultProvider,
		OpenAIBaseURL:    DefaultBaseURL,
		OpenAIModel:      DefaultModel,
		GoogleEndpoint:   DefaultGoogleEndpoint,
		BatchSize:        DefaultBatchSize,
		Timeout:          DefaultTimeout,
		Retries:          DefaultRetries,
		RetryBaseDelayMs: DefaultRetryBaseDelayMs,
		RetryMaxDelayMs:  DefaultRetryMaxDelayMs,
		WorkerCount:      DefaultWorkerCount,
		MaxTextLength:    DefaultMaxTextLength,
		AlternateFonts:   append([]string(nil), DefaultAlternateFonts...),
		DefaultFont:      DefaultFont,
		MinFontSize:      DefaultMinFontSize,
		LogLevel:         DefaultLogLevel,
		LogConsole:       true,
	}
	return cfg
}

// SetEnvFiles replaces the list of .env files consulted by Load. Missing files are skipped.
func (m *ConfigManager) SetEnvFiles(paths ...string) {
	m.envFiles = paths
}

// Load loads configuration from the config file, .env files and the environment.
// A missing config file means defaults; a malformed or schema-violating one is an error.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	cfg := DefaultConfig()

	data, err := os.ReadFile(m.configPath)
	switch {
	case err == nil:
		if err := decodeConfigFile(data, cfg); err != nil {
			logger.Error("invalid config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "invalid config file "+m.configPath, err)
		}
		logger.Info("configuration file loaded", logger.String("path", m.configPath))
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
	default:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}

	for _, envFile := range m.envFiles {
		if _, statErr := os.Stat(envFile); statErr != nil {
			continue
		}
		// Load never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil {
			logger.Warn("failed to load env file", logger.String("path", envFile), logger.Err(err))
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return types.NewAppError(types.ErrConfig, "invalid environment override", err)
	}

	applyDerivedDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return types.NewAppError(types.ErrConfig, "configuration validation failed", err)
	}

	m.config = cfg
	logger.Debug("configuration ready",
		logger.String("provider", cfg.Provider),
		logger.String("sourceLang", cfg.SourceLang),
		logger.String("targetLang", cfg.TargetLang),
		logger.Int("apiKeyLength", len(cfg.OpenAIAPIKey)))
	return nil
}

// decodeConfigFile validates raw file content against the schema and decodes it over cfg.
func decodeConfigFile(data []byte, cfg *types.Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	// YAML is a superset of JSON, so both file flavours go through yaml.v3.
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if raw == nil {
		return nil
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(normalized))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(configSchemaResourceName, strings.NewReader(configSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(configSchemaResourceName)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// applyDerivedDefaults fills values that depend on other settings or on the host.
func applyDerivedDefaults(cfg *types.Config) {
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = DefaultBaseURL
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = DefaultModel
	}
	if cfg.GoogleEndpoint == "" {
		cfg.GoogleEndpoint = DefaultGoogleEndpoint
	}
	if cfg.DefaultFont == "" {
		cfg.DefaultFont = DefaultFont
	}
	if cfg.CachePath == "" {
		cfg.CachePath = DefaultCachePath(cfg.SourceLang, cfg.TargetLang)
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = filepath.Join(configDir, appDirName, "results")
	}
	if cfg.ErrorsDir == "" {
		cfg.ErrorsDir = filepath.Join(configDir, appDirName, "errors")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(configDir, appDirName, "pdf-translator.log")
	}
}

// DefaultCachePath returns the cache file used for one language pair when
// cache_path is not configured.
func DefaultCachePath(sourceLang, targetLang string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	name := fmt.Sprintf("translations-%s-%s.json", sourceLang, targetLang)
	return filepath.Join(base, appDirName, name)
}

// Validate checks option ranges and language codes.
func Validate(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validateLang("source_lang", cfg.SourceLang, true); err != nil {
		return err
	}
	if err := validateLang("target_lang", cfg.TargetLang, false); err != nil {
		return err
	}
	if cfg.DPI < 72 || cfg.DPI > 1200 {
		return fmt.Errorf("dpi must be within [72, 1200], got %d", cfg.DPI)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1")
	}
	if cfg.Timeout < 1 {
		return fmt.Errorf("timeout must be >= 1 second")
	}
	if cfg.Retries < 1 {
		return fmt.Errorf("retries must be >= 1")
	}
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be >= 1")
	}
	if cfg.OCRWorkers < 1 {
		return fmt.Errorf("ocr_workers must be >= 1")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0, 1]")
	}
	if cfg.MinTextArea < 0 || cfg.MinTextArea > 1 {
		return fmt.Errorf("min_text_area must be within [0, 1]")
	}
	if cfg.PageSegMode < 0 || cfg.PageSegMode > 13 {
		return fmt.Errorf("page_seg_mode must be within [0, 13]")
	}
	if cfg.RetryBaseDelayMs < 0 || cfg.RetryMaxDelayMs < cfg.RetryBaseDelayMs {
		return fmt.Errorf("retry delays must satisfy 0 <= retry_base_delay_ms <= retry_max_delay_ms")
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0")
	}
	if cfg.MaxTextLength < 1 {
		return fmt.Errorf("max_text_length must be >= 1")
	}
	if cfg.MinFontSize <= 0 {
		return fmt.Errorf("min_font_size must be > 0")
	}
	if strings.TrimSpace(cfg.OCRLanguage) == "" {
		return fmt.Errorf("ocr_language is required")
	}
	switch cfg.Provider {
	case "openai", "google":
	default:
		return fmt.Errorf("provider must be one of openai, google; got %q", cfg.Provider)
	}
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

func validateLang(field, code string, allowAuto bool) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%s is required", field)
	}
	if code == "auto" {
		if allowAuto {
			return nil
		}
		return fmt.Errorf("%s cannot be auto", field)
	}
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("%s %q is not a valid language code: %w", field, code, err)
	}
	return nil
}

// Save saves the current configuration to the config file as YAML.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(m.GetConfig())
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	// 0600: the file may hold an API key.
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// GetAPIKey returns the OpenAI API key.
// It first checks the loaded configuration, then falls back to the environment variable.
func (m *ConfigManager) GetAPIKey() string {
	if m.config != nil && m.config.OpenAIAPIKey != "" {
		return m.config.OpenAIAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return DefaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}
