package pdf

import (
	"context"
	"sync"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/translator"
)

// UnitTranslator translates one text. *translator.Translator satisfies it.
type UnitTranslator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (translator.Result, error)
}

// ProgressCallback is a function type for progress updates during translation
type ProgressCallback func(completed, total int)

// DefaultWorkerCount is the default translation pool size
const DefaultWorkerCount = 3

// DefaultBatchSize is the default queue capacity and progress step
const DefaultBatchSize = 10

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	Workers    int
	BatchSize  int // queue capacity; progress is reported every BatchSize completions
	SourceLang string
	TargetLang string
}

// TranslationScheduler 将所有文本单元分发给固定大小的工作池并收集结果
type TranslationScheduler struct {
	translator UnitTranslator
	cfg        SchedulerConfig
}

// NewTranslationScheduler applies defaults for non-positive sizes.
func NewTranslationScheduler(tr UnitTranslator, cfg SchedulerConfig) *TranslationScheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &TranslationScheduler{translator: tr, cfg: cfg}
}

// Run translates every unit and returns exactly one result per unit ID. It
// returns only after all workers have finished. Units whose translation
// fails, and units never submitted because ctx was cancelled, carry their
// source text with Fallback set.
func (s *TranslationScheduler) Run(ctx context.Context, units []TextUnit, progress ProgressCallback) map[UnitID]TranslationResult {
	results := make(map[UnitID]TranslationResult, len(units))
	if len(units) == 0 {
		return results
	}

	total := len(units)
	queue := make(chan TextUnit, s.cfg.BatchSize)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	record := func(res TranslationResult) {
		mu.Lock()
		defer mu.Unlock()
		results[res.ID] = res
		completed++
		if progress != nil && (completed%s.cfg.BatchSize == 0 || completed == total) {
			progress(completed, total)
		}
	}

	workers := s.cfg.Workers
	if workers > total {
		workers = total
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range queue {
				record(s.translateUnit(ctx, unit))
			}
		}()
	}

	submitted := 0
submit:
	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break submit
		case queue <- unit:
			submitted++
		}
	}
	close(queue)
	wg.Wait()

	if submitted < total {
		logger.Warn("translation cancelled, remaining units keep source text",
			logger.Int("submitted", submitted),
			logger.Int("total", total))
		for _, unit := range units[submitted:] {
			record(fallbackResult(unit, ctx.Err()))
		}
	}
	return results
}

func (s *TranslationScheduler) translateUnit(ctx context.Context, unit TextUnit) TranslationResult {
	res, err := s.translator.Translate(ctx, unit.SourceText, s.cfg.SourceLang, s.cfg.TargetLang)
	if err != nil {
		logger.Warn("unit falls back to source text",
			logger.String("unit", unit.ID().String()),
			logger.Int("attempts", res.Attempts),
			logger.Err(err))
		return fallbackResult(unit, err)
	}
	return TranslationResult{
		ID:               unit.ID(),
		TranslatedText:   res.Text,
		FromCache:        res.FromCache,
		CacheWriteFailed: res.CacheWriteFailed,
	}
}

func fallbackResult(unit TextUnit, err error) TranslationResult {
	return TranslationResult{
		ID:             unit.ID(),
		TranslatedText: unit.SourceText,
		Fallback:       true,
		Err:            err,
	}
}
