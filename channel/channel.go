// Package channel defines the transport channel between the converter and
// its host: a string-keyed store used as a one-shot request/response
// mailbox. The host never calls back; the converter observes progress by
// reading the result key once per tick.
package channel

import (
	"strings"
	"sync"
)

const (
	// RequestKey is where the converter writes the source URL.
	RequestKey = "rekav_image_request"

	// ResultKey is where the host writes the base64 payload, an error
	// marker, or the too-large sentinel.
	ResultKey = "rekav_image_result"

	// ResultSourceKey is optional: a host may echo the URL it fetched
	// here before writing ResultKey, letting the converter recognize a
	// result that belongs to an earlier request.
	ResultSourceKey = "rekav_image_result_source"

	// ErrorPrefix starts a host-reported failure; the message follows.
	ErrorPrefix = "__ERROR__:"

	// TooLarge is written by the host instead of a payload whose base64
	// text would not fit the reader's bound.
	TooLarge = "TOO_LARGE"
)

// DefaultMaxResultText is the default bound on the result text: 20 MiB
// of base64 plus one byte of headroom.
const DefaultMaxResultText = 20*1024*1024 + 1

// Store is the shared string key/value store. Implementations must be
// safe for use by the converter and the host from different goroutines.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)
	// Set stores value under key, replacing any previous value.
	Set(key, value string)
	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string)
}

// Take atomically reads and removes key when the store supports it, and
// falls back to Get followed by Delete otherwise.
func Take(s Store, key string) (string, bool) {
	if t, ok := s.(interface {
		Take(key string) (string, bool)
	}); ok {
		return t.Take(key)
	}
	v, ok := s.Get(key)
	if ok {
		s.Delete(key)
	}
	return v, ok
}

// ErrorValue formats a host-side failure for the result key.
func ErrorValue(msg string) string {
	return ErrorPrefix + msg
}

// ParseError reports whether value is an error marker and returns the
// message after the prefix.
func ParseError(value string) (string, bool) {
	if !strings.HasPrefix(value, ErrorPrefix) {
		return "", false
	}
	return value[len(ErrorPrefix):], true
}

// MemoryStore is an in-process Store guarded by a mutex. The zero value
// is an empty store ready to use.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	m.mu.Unlock()
}

func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
}

// Take reads and removes key in one step.
func (m *MemoryStore) Take(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if ok {
		delete(m.values, key)
	}
	return v, ok
}

// Len returns the number of keys held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
