package generator

import (
	"os"
	"strings"
	"sync"
)

// KeySource supplies the credential for the remote service. A missing key
// is a precondition failure reported as ErrAPIKeyMissing.
type KeySource interface {
	APIKey() (string, error)
}

// StaticKey is a fixed key, usually read from config.
type StaticKey string

func (k StaticKey) APIKey() (string, error) {
	if strings.TrimSpace(string(k)) == "" {
		return "", ErrAPIKeyMissing
	}
	return string(k), nil
}

// EnvKey reads the key from an environment variable on every call.
type EnvKey string

func (k EnvKey) APIKey() (string, error) {
	v := strings.TrimSpace(os.Getenv(string(k)))
	if v == "" {
		return "", ErrAPIKeyMissing
	}
	return v, nil
}

// MemoryKeySource holds a key that can be set and cleared at runtime. When
// empty it falls back to Fallback, if any.
type MemoryKeySource struct {
	mu       sync.RWMutex
	key      string
	Fallback KeySource
}

func NewMemoryKeySource(fallback KeySource) *MemoryKeySource {
	return &MemoryKeySource{Fallback: fallback}
}

func (m *MemoryKeySource) Set(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = strings.TrimSpace(key)
}

func (m *MemoryKeySource) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
}

// HasKey reports whether APIKey would succeed.
func (m *MemoryKeySource) HasKey() bool {
	_, err := m.APIKey()
	return err == nil
}

func (m *MemoryKeySource) APIKey() (string, error) {
	m.mu.RLock()
	key := m.key
	m.mu.RUnlock()
	if key != "" {
		return key, nil
	}
	if m.Fallback != nil {
		return m.Fallback.APIKey()
	}
	return "", ErrAPIKeyMissing
}
