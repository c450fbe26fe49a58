package translator

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend replays scripted errors before answering with a prefix.
type fakeBackend struct {
	mu    sync.Mutex
	calls int32
	errs  []error
	reqs  []Request
	block bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Translate(ctx context.Context, req Request) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if int(n) <= len(f.errs) && f.errs[n-1] != nil {
		return "", f.errs[n-1]
	}
	return "AR:" + req.Text, nil
}

func (f *fakeBackend) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

func transient() error {
	return &BackendError{Backend: "fake", StatusCode: http.StatusServiceUnavailable, Message: "busy", Retryable: true}
}

func newTestTranslator(t *testing.T, backend Backend, cache *TranslationCache) (*Translator, *[]time.Duration) {
	t.Helper()
	opts := DefaultOptions()
	opts.BaseDelay = 100 * time.Millisecond
	opts.MaxDelay = 250 * time.Millisecond
	opts.MaxTextLength = 50

	tr, err := NewTranslator(backend, cache, opts)
	require.NoError(t, err)

	var slept []time.Duration
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	tr.detect = func(string) string { return "" }
	return tr, &slept
}

func TestTranslate_SuccessStoresInCache(t *testing.T) {
	backend := &fakeBackend{}
	cache := NewTranslationCache(filepath.Join(t.TempDir(), "cache.json"))
	tr, _ := newTestTranslator(t, backend, cache)

	res, err := tr.Translate(context.Background(), "  Hello ", "en", "ar")
	require.NoError(t, err)
	assert.Equal(t, "AR:Hello", res.Text)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []State{StatePending, StateSent, StateSuccess}, res.States)

	cached, ok := cache.Get("Hello")
	assert.True(t, ok)
	assert.Equal(t, "AR:Hello", cached)
}

func TestTranslate_SecondCallIsCacheHit(t *testing.T) {
	backend := &fakeBackend{}
	tr, _ := newTestTranslator(t, backend, NewTranslationCache(""))

	_, err := tr.Translate(context.Background(), "Hello", "en", "ar")
	require.NoError(t, err)

	res, err := tr.Translate(context.Background(), "Hello\n", "en", "ar")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, StateCached, res.Final())
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 1, backend.Calls(), "cache hit must not reach the backend")
}

func TestTranslate_InvalidInput(t *testing.T) {
	backend := &fakeBackend{}
	tr, _ := newTestTranslator(t, backend, nil)

	for _, text := range []string{"", "   \n\t", strings.Repeat("x", 51)} {
		res, err := tr.Translate(context.Background(), text, "en", "ar")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Equal(t, StateInvalid, res.Final())
	}
	assert.Equal(t, 0, backend.Calls())
}

func TestTranslate_RetriesTransientThenSucceeds(t *testing.T) {
	backend := &fakeBackend{errs: []error{transient(), context.DeadlineExceeded}}
	tr, slept := newTestTranslator(t, backend, nil)

	res, err := tr.Translate(context.Background(), "Hello", "en", "ar")
	require.NoError(t, err)
	assert.Equal(t, "AR:Hello", res.Text)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []State{
		StatePending,
		StateSent, StateRetrying,
		StateSent, StateRetrying,
		StateSent, StateSuccess,
	}, res.States)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestTranslate_ExhaustedAfterConfiguredRetries(t *testing.T) {
	backend := &fakeBackend{errs: []error{transient(), transient(), transient(), transient()}}
	tr, slept := newTestTranslator(t, backend, nil)

	res, err := tr.Translate(context.Background(), "Hello", "en", "ar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))

	var trErr *TranslationError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, 3, trErr.Attempts)
	assert.Equal(t, 3, backend.Calls())
	assert.Equal(t, StateExhausted, res.Final())
	assert.Len(t, *slept, 2, "no sleep after the last attempt")

	_, cached := tr.Cache().Get("Hello")
	assert.False(t, cached, "failures are never cached")
}

func TestTranslate_RejectedIsNotRetried(t *testing.T) {
	backend := &fakeBackend{errs: []error{
		NewHTTPError("fake", http.StatusBadRequest, []byte(`{"error":{"message":"unsupported language pair"}}`)),
	}}
	tr, slept := newTestTranslator(t, backend, nil)

	res, err := tr.Translate(context.Background(), "Hello", "en", "xx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendRejected))
	assert.Contains(t, err.Error(), "unsupported language pair")
	assert.Equal(t, 1, backend.Calls())
	assert.Equal(t, StateRejected, res.Final())
	assert.Empty(t, *slept)
}

func TestTranslate_CancelledDuringBackoff(t *testing.T) {
	backend := &fakeBackend{errs: []error{transient(), transient()}}
	tr, _ := newTestTranslator(t, backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res, err := tr.Translate(ctx, "Hello", "en", "ar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, backend.Calls(), "no new request after cancellation")
	assert.Equal(t, StateExhausted, res.Final())
}

func TestTranslate_PerRequestTimeout(t *testing.T) {
	backend := &fakeBackend{block: true}
	opts := DefaultOptions()
	opts.Retries = 2
	opts.BaseDelay = 0
	opts.MaxDelay = 0
	opts.Timeout = 20 * time.Millisecond
	tr, err := NewTranslator(backend, nil, opts)
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), "Hello", "en", "ar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 2, backend.Calls())
}

func TestTranslate_AutoSourceUsesDetector(t *testing.T) {
	backend := &fakeBackend{}
	tr, _ := newTestTranslator(t, backend, nil)
	tr.detect = func(string) string { return "fr" }

	_, err := tr.Translate(context.Background(), "Bonjour tout le monde", "auto", "ar")
	require.NoError(t, err)
	require.Len(t, backend.reqs, 1)
	assert.Equal(t, "fr", backend.reqs[0].SourceLang)
}

func TestNewTranslator_Validation(t *testing.T) {
	_, err := NewTranslator(nil, nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.Retries = 0
	_, err = NewTranslator(&fakeBackend{}, nil, opts)
	var cfgErr *ConfigValidationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "retries", cfgErr.Field)
}

func TestOptionsBackoff(t *testing.T) {
	opts := Options{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{40, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, opts.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", NewHTTPError("x", http.StatusTooManyRequests, nil), true},
		{"server error", NewHTTPError("x", http.StatusBadGateway, nil), true},
		{"request timeout", NewHTTPError("x", http.StatusRequestTimeout, nil), true},
		{"unauthorized", NewHTTPError("x", http.StatusUnauthorized, nil), false},
		{"bad request", NewHTTPError("x", http.StatusBadRequest, nil), false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", errors.Join(errors.New("call"), context.DeadlineExceeded), true},
		{"eino status 429", errors.New("error, status code: 429, message: slow down"), true},
		{"eino status 401", errors.New("error, status code: 401, message: bad key"), false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"unknown", errors.New("something odd"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTranslationErrorIs(t *testing.T) {
	err := &TranslationError{Kind: KindExhausted, Attempts: 3, Cause: transient()}
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.False(t, errors.Is(err, ErrBackendRejected))
	assert.Contains(t, err.Error(), "after 3 attempt(s)")

	var backendErr *BackendError
	assert.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusServiceUnavailable, backendErr.StatusCode)
}
