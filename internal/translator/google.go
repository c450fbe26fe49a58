package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGoogleEndpoint is the public web translation endpoint.
const DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleBackend calls the keyless Google web translation endpoint.
type GoogleBackend struct {
	endpoint string
	client   *http.Client
}

func NewGoogleBackend(endpoint string, timeout time.Duration) *GoogleBackend {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultGoogleEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleBackend{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *GoogleBackend) Name() string {
	return ProviderGoogle
}

func (b *GoogleBackend) Translate(ctx context.Context, req Request) (string, error) {
	source := req.SourceLang
	if source == "" {
		source = "auto"
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", req.TargetLang)
	params.Set("dt", "t")
	params.Set("q", req.Text)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", &BackendError{Backend: b.Name(), Message: "build request", Cause: err}
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send translation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read translation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", NewHTTPError(b.Name(), resp.StatusCode, body)
	}

	translated, err := parseGoogleResponse(body)
	if err != nil {
		return "", &BackendError{Backend: b.Name(), Message: "decode response", Cause: err}
	}
	if strings.TrimSpace(translated) == "" {
		return "", &BackendError{Backend: b.Name(), Message: "empty translation", Retryable: true}
	}
	return translated, nil
}

// parseGoogleResponse joins the translated segments of a
// [[["translated","source",...],...],...] response.
func parseGoogleResponse(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("response has no segments")
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected segment list: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(seg[0], &part); err != nil {
			continue
		}
		b.WriteString(part)
	}
	return b.String(), nil
}
