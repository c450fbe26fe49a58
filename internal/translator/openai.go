package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/logger"
)

const (
	// DefaultOpenAIModel is the chat model used when none is configured.
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the OpenAI API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIBackend translates through an OpenAI compatible chat model.
type OpenAIBackend struct {
	chat  model.BaseChatModel
	model string
}

// NewOpenAIBackend creates the eino chat model for the given endpoint.
func NewOpenAIBackend(ctx context.Context, apiKey, baseURL, modelName string, timeout time.Duration) (*OpenAIBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai backend: API key is not configured")
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}

	chatModelConfig := &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  apiKey,
		Timeout: timeout,
	}
	if baseURL != "" {
		chatModelConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewOpenAIBackendWithModel(chatModel, modelName), nil
}

// NewOpenAIBackendWithModel wraps an existing chat model.
func NewOpenAIBackendWithModel(chat model.BaseChatModel, modelName string) *OpenAIBackend {
	return &OpenAIBackend{chat: chat, model: modelName}
}

func (b *OpenAIBackend) Name() string {
	return ProviderOpenAI
}

func (b *OpenAIBackend) Translate(ctx context.Context, req Request) (string, error) {
	logger.Debug("calling chat model for translation",
		logger.String("model", b.model),
		logger.Int("length", len(req.Text)))

	resp, err := b.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(req.SourceLang, req.TargetLang)),
		schema.UserMessage(req.Text),
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", &BackendError{Backend: b.Name(), Message: "empty response", Retryable: true}
	}

	translated := cleanTranslationResult(resp.Content)
	if translated == "" {
		return "", &BackendError{Backend: b.Name(), Message: "model returned no text", Retryable: true}
	}
	return translated, nil
}

func buildSystemPrompt(source, target string) string {
	from := languageName(source)
	if source == "" || source == "auto" {
		from = "the source language"
	}
	return fmt.Sprintf(`You are a professional document translator.
Translate the user's text from %s to %s.

RULES:
1. Output ONLY the translation, with no explanations, quotes or notes.
2. Keep numbers, URLs, e-mail addresses and code identifiers unchanged.
3. Keep the line breaks of the input.
4. If the text has nothing to translate, return it unchanged.`, from, languageName(target))
}

// cleanTranslationResult strips wrappers chat models sometimes add around the answer.
func cleanTranslationResult(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
		// drop a language tag such as ```text
		if nl := strings.IndexByte(s, '\n'); nl > 0 && isASCIIWord(s[:nl]) {
			s = s[nl+1:]
		}
		s = strings.TrimSpace(s)
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && strings.Count(s, `"`) == 2 {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

var languageNames = map[string]string{
	"ar": "Arabic",
	"fa": "Persian",
	"ur": "Urdu",
	"he": "Hebrew",
	"en": "English",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"tr": "Turkish",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return s != ""
}
