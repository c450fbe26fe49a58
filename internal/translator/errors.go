package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ErrorKind 翻译错误类型
type ErrorKind string

const (
	KindInvalidInput    ErrorKind = "INVALID_INPUT"
	KindBackendRejected ErrorKind = "BACKEND_REJECTED"
	KindExhausted       ErrorKind = "EXHAUSTED"
)

var (
	ErrInvalidInput    = errors.New("invalid translation input")
	ErrBackendRejected = errors.New("translation backend rejected the request")
	ErrExhausted       = errors.New("translation retries exhausted")
)

// TranslationError is returned by Translator.Translate. Callers substitute the
// source text whenever one is returned.
type TranslationError struct {
	Kind     ErrorKind
	Attempts int
	Cause    error
}

func (e *TranslationError) Error() string {
	msg := fmt.Sprintf("translation %s", strings.ToLower(string(e.Kind)))
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinels by kind.
func (e *TranslationError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrBackendRejected:
		return e.Kind == KindBackendRejected
	case ErrExhausted:
		return e.Kind == KindExhausted
	}
	return false
}

// BackendError describes a failed backend call with its HTTP status when known.
type BackendError struct {
	Backend    string
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *BackendError) Error() string {
	msg := e.Backend + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= 500
}

// NewHTTPError builds a BackendError from a non-2xx response, pulling the
// message out of an OpenAI style error body when there is one.
func NewHTTPError(backend string, statusCode int, body []byte) *BackendError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	details := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		details = errResp.Error.Message
	}
	if len(details) > 200 {
		details = details[:200] + "..."
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		details = "authentication failed: " + details
	case http.StatusTooManyRequests:
		details = "rate limit exceeded: " + details
	}

	return &BackendError{
		Backend:    backend,
		StatusCode: statusCode,
		Message:    details,
		Retryable:  retryableStatus(statusCode),
	}
}

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// IsTransient reports whether err is worth retrying: timeouts, transport
// failures, rate limiting and server errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Retryable
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// client errors from the eino openai model only carry the status in the message
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return retryableStatus(code)
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"connection reset", "connection refused", "timeout", "eof", "temporarily unavailable"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// CacheIOError reports a failed cache load or save. It never stops a run.
type CacheIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error {
	return e.Err
}
