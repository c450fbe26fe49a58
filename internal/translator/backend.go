package translator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// Request describes one backend call.
type Request struct {
	Text       string
	SourceLang string // ISO 639-1, or "auto"
	TargetLang string
}

// Backend translates one piece of text. Implementations return a
// *BackendError for HTTP level failures so the retry policy can classify them.
type Backend interface {
	Name() string
	Translate(ctx context.Context, req Request) (string, error)
}

// Registry stores translation backends by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds one backend, replacing any backend with the same name.
func (r *Registry) Register(backend Backend) error {
	if backend == nil {
		return fmt.Errorf("backend is nil")
	}
	name := normalizeName(backend.Name())
	if name == "" {
		return fmt.Errorf("backend name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = backend
	return nil
}

// Backend resolves a backend by name.
func (r *Registry) Backend(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.backends) == 0 {
		return nil, fmt.Errorf("no translation backends are registered")
	}
	resolved := normalizeName(name)
	if b, ok := r.backends[resolved]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("translation backend %q is not registered (available: %s)",
		resolved, strings.Join(r.namesLocked(), ", "))
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
