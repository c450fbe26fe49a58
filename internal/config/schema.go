package config

// configSchemaJSON describes the on-disk config file. Unknown keys are rejected
// so that typos surface instead of silently falling back to defaults.
const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "source_lang":         {"type": "string", "minLength": 2},
    "target_lang":         {"type": "string", "minLength": 2},
    "dpi":                 {"type": "integer", "minimum": 72, "maximum": 1200},
    "min_confidence":      {"type": "number", "minimum": 0, "maximum": 1},
    "min_text_area":       {"type": "number", "minimum": 0, "maximum": 1},
    "ocr_language":        {"type": "string", "minLength": 1},
    "page_seg_mode":       {"type": "integer", "minimum": 0, "maximum": 13},
    "ocr_workers":         {"type": "integer", "minimum": 1},
    "provider":            {"enum": ["openai", "google"]},
    "openai_api_key":      {"type": "string"},
    "openai_base_url":     {"type": "string"},
    "openai_model":        {"type": "string"},
    "google_endpoint":     {"type": "string"},
    "batch_size":          {"type": "integer", "minimum": 1},
    "timeout":             {"type": "integer", "minimum": 1},
    "retries":             {"type": "integer", "minimum": 1},
    "retry_base_delay_ms": {"type": "integer", "minimum": 0},
    "retry_max_delay_ms":  {"type": "integer", "minimum": 0},
    "worker_count":        {"type": "integer", "minimum": 1},
    "requests_per_second": {"type": "number", "minimum": 0},
    "max_text_length":     {"type": "integer", "minimum": 1},
    "cache_path":          {"type": "string"},
    "target_font":         {"type": "string"},
    "alternate_fonts":     {"type": "array", "items": {"type": "string"}},
    "font_search_dirs":    {"type": "array", "items": {"type": "string"}},
    "default_font":        {"type": "string"},
    "min_font_size":       {"type": "number", "exclusiveMinimum": 0},
    "results_dir":         {"type": "string"},
    "errors_dir":          {"type": "string"},
    "log_file":            {"type": "string"},
    "log_level":           {"enum": ["debug", "info", "warn", "warning", "error"]},
    "log_console":         {"type": "boolean"}
  }
}`
