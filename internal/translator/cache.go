package translator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pdf-translator/internal/logger"
)

// CacheFileVersion is written into every cache file.
const CacheFileVersion = "1.0"

// CacheEntry 缓存条目
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile 缓存文件结构
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// TranslationCache 负责缓存翻译结果
//
// One mutex guards both the map and the file write, so every Put is persisted
// before the next one starts.
type TranslationCache struct {
	cachePath string
	cache     map[string]CacheEntry // hash -> CacheEntry
	mu        sync.Mutex
}

// NewTranslationCache 创建新的翻译缓存实例
func NewTranslationCache(cachePath string) *TranslationCache {
	return &TranslationCache{
		cachePath: cachePath,
		cache:     make(map[string]CacheEntry),
	}
}

// NormalizeText trims surrounding whitespace. Case and inner spacing are kept.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// ComputeHash 计算规范化文本的 SHA256 哈希
func ComputeHash(text string) string {
	hash := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(hash[:])
}

// Get 获取缓存的翻译
func (c *TranslationCache) Get(text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[ComputeHash(text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Put stores a translation and writes the cache file. It returns false when
// the file could not be written; the entry stays in memory either way.
// Writing an identical value again is a no-op.
func (c *TranslationCache) Put(text, translation string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := ComputeHash(text)
	if existing, ok := c.cache[hash]; ok && existing.Translation == translation {
		return true
	}

	c.cache[hash] = CacheEntry{
		Hash:        hash,
		Original:    NormalizeText(text),
		Translation: translation,
		CreatedAt:   time.Now(),
	}

	if err := c.persistLocked(); err != nil {
		logger.Warn("failed to persist translation cache",
			logger.String("path", c.cachePath),
			logger.Err(err))
		return false
	}
	return true
}

// Load 从文件加载缓存
//
// A missing file is an empty cache. An unreadable or corrupt file also leaves
// the cache empty and is reported as a *CacheIOError.
func (c *TranslationCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]CacheEntry)
	if c.cachePath == "" {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &CacheIOError{Op: "read", Path: c.cachePath, Err: err}
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return &CacheIOError{Op: "parse", Path: c.cachePath, Err: err}
	}

	for _, entry := range cacheFile.Entries {
		if entry.Hash == "" {
			entry.Hash = ComputeHash(entry.Original)
		}
		c.cache[entry.Hash] = entry
	}

	logger.Debug("translation cache loaded",
		logger.String("path", c.cachePath),
		logger.Int("entries", len(c.cache)))
	return nil
}

// Save 保存缓存到文件
func (c *TranslationCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

// persistLocked writes the whole map to a temp file next to the cache and
// renames it into place. The caller holds c.mu.
func (c *TranslationCache) persistLocked() (err error) {
	if c.cachePath == "" {
		return nil
	}

	entries := make([]CacheEntry, 0, len(c.cache))
	for _, entry := range c.cache {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })

	data, err := json.MarshalIndent(CacheFile{Version: CacheFileVersion, Entries: entries}, "", "  ")
	if err != nil {
		return &CacheIOError{Op: "marshal", Path: c.cachePath, Err: err}
	}

	dir := filepath.Dir(c.cachePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &CacheIOError{Op: "mkdir", Path: c.cachePath, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.cachePath)+".tmp-*")
	if err != nil {
		return &CacheIOError{Op: "create", Path: c.cachePath, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &CacheIOError{Op: "write", Path: c.cachePath, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &CacheIOError{Op: "sync", Path: c.cachePath, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &CacheIOError{Op: "close", Path: c.cachePath, Err: err}
	}
	if err = os.Rename(tmpPath, c.cachePath); err != nil {
		return &CacheIOError{Op: "rename", Path: c.cachePath, Err: err}
	}
	return nil
}

// Size 返回缓存中的条目数量
func (c *TranslationCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Clear 清空缓存并删除缓存文件
func (c *TranslationCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]CacheEntry)
	if c.cachePath == "" {
		return nil
	}
	if err := os.Remove(c.cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &CacheIOError{Op: "remove", Path: c.cachePath, Err: err}
	}
	return nil
}

// GetCachePath 返回缓存文件路径
func (c *TranslationCache) GetCachePath() string {
	return c.cachePath
}
