// Package translator turns source text into target-language text through a
// pluggable backend, with a durable content-addressed cache in front of it and
// a bounded retry policy behind it.
package translator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"pdf-translator/internal/langdetect"
	"pdf-translator/internal/logger"
)

// State is one step of a translation attempt.
type State string

const (
	StatePending   State = "pending"
	StateCached    State = "cached"
	StateSent      State = "sent"
	StateSuccess   State = "success"
	StateRetrying  State = "retrying"
	StateExhausted State = "exhausted"
	StateRejected  State = "rejected"
	StateInvalid   State = "invalid"
)

// Result 单条翻译结果
type Result struct {
	Text      string
	FromCache bool
	Attempts  int
	States    []State // transitions taken, starting with StatePending

	CacheWriteFailed bool // translated, but the cache file was not updated
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// Final returns the last state reached.
func (r Result) Final() State {
	if len(r.States) == 0 {
		return StatePending
	}
	return r.States[len(r.States)-1]
}

// Translator 翻译器：缓存 -> 后端请求 -> 退避重试
type Translator struct {
	backend Backend
	cache   *TranslationCache
	opts    Options
	limiter *rate.Limiter

	sleep  func(ctx context.Context, d time.Duration) error
	detect func(text string) string
}

// NewTranslator creates a Translator. A nil cache disables caching.
func NewTranslator(backend Backend, cache *TranslationCache, opts Options) (*Translator, error) {
	if backend == nil {
		return nil, fmt.Errorf("translator: backend is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewTranslationCache("")
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Translator{
		backend: backend,
		cache:   cache,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleepContext,
		detect:  langdetect.DetectISO6391,
	}, nil
}

// Cache returns the cache in front of the backend.
func (t *Translator) Cache() *TranslationCache {
	return t.cache
}

// Translate returns the translation of text. Cache hits never reach the
// backend. Transient backend failures are retried with exponential backoff
// up to Options.Retries attempts in total.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	res := Result{States: []State{StatePending}}

	normalized := NormalizeText(text)
	if normalized == "" {
		res.enter(StateInvalid)
		return res, &TranslationError{Kind: KindInvalidInput, Cause: errors.New("text is empty")}
	}
	if n := utf8.RuneCountInString(normalized); n > t.opts.MaxTextLength {
		res.enter(StateInvalid)
		return res, &TranslationError{
			Kind:  KindInvalidInput,
			Cause: fmt.Errorf("text has %d characters, limit is %d", n, t.opts.MaxTextLength),
		}
	}

	if cached, ok := t.cache.Get(normalized); ok {
		res.enter(StateCached)
		res.Text = cached
		res.FromCache = true
		return res, nil
	}

	if sourceLang == "auto" {
		if code := t.detect(normalized); code != "" {
			sourceLang = code
		}
	}
	req := Request{Text: normalized, SourceLang: sourceLang, TargetLang: targetLang}

	var lastErr error
	for attempt := 1; attempt <= t.opts.Retries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return t.cancelled(res, ctx, err)
		}

		res.enter(StateSent)
		res.Attempts = attempt

		reqCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
		translated, err := t.backend.Translate(reqCtx, req)
		cancel()

		if err == nil {
			res.enter(StateSuccess)
			res.Text = translated
			res.CacheWriteFailed = !t.cache.Put(normalized, translated)
			return res, nil
		}
		if ctx.Err() != nil {
			return t.cancelled(res, ctx, err)
		}

		lastErr = err
		if !IsTransient(err) {
			res.enter(StateRejected)
			logger.Warn("translation rejected by backend",
				logger.String("backend", t.backend.Name()),
				logger.Int("attempt", attempt),
				logger.Err(err))
			return res, &TranslationError{Kind: KindBackendRejected, Attempts: attempt, Cause: err}
		}

		logger.Warn("translation attempt failed",
			logger.String("backend", t.backend.Name()),
			logger.Int("attempt", attempt),
			logger.Err(err))

		if attempt < t.opts.Retries {
			res.enter(StateRetrying)
			delay := t.opts.Backoff(attempt)
			logger.Debug("retrying after delay", logger.Duration("delay", delay))
			if err := t.sleep(ctx, delay); err != nil {
				return t.cancelled(res, ctx, err)
			}
		}
	}

	res.enter(StateExhausted)
	logger.Error("translation failed after all retries", lastErr, logger.Int("retries", t.opts.Retries))
	return res, &TranslationError{Kind: KindExhausted, Attempts: res.Attempts, Cause: lastErr}
}

// cancelled ends a translation interrupted by the caller's context.
func (t *Translator) cancelled(res Result, ctx context.Context, err error) (Result, error) {
	res.enter(StateExhausted)
	cause := ctx.Err()
	if cause == nil {
		cause = err
	}
	return res, &TranslationError{Kind: KindExhausted, Attempts: res.Attempts, Cause: cause}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
