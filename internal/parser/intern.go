package parser

import (
	"sync"
)

// MaxInternPoolSize caps the pool; strings beyond it are returned as-is.
const MaxInternPoolSize = 200000

// StringIntern deduplicates strings repeated across property records, such
// as property-set names, property names and item kinds.
type StringIntern struct {
	mu   sync.RWMutex
	pool map[string]string
}

// NewStringIntern creates an empty pool.
func NewStringIntern() *StringIntern {
	return &StringIntern{pool: make(map[string]string, 1024)}
}

// Intern returns the pooled copy of s, adding s when it is new.
func (si *StringIntern) Intern(s string) string {
	si.mu.RLock()
	pooled, ok := si.pool[s]
	full := len(si.pool) >= MaxInternPoolSize
	si.mu.RUnlock()
	if ok {
		return pooled
	}
	if full {
		return s
	}

	si.mu.Lock()
	defer si.mu.Unlock()
	if pooled, ok := si.pool[s]; ok {
		return pooled
	}
	if len(si.pool) >= MaxInternPoolSize {
		return s
	}
	si.pool[s] = s
	return s
}

// Len returns the number of pooled strings.
func (si *StringIntern) Len() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.pool)
}

// Clear empties the pool.
func (si *StringIntern) Clear() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.pool = make(map[string]string, 1024)
}
