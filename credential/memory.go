package credential

import (
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryCacheSize is the number of credentials kept by a MemoryCache
// when no size is given.
const DefaultMemoryCacheSize = 256

// MemoryCache is an in-process Cache bounded by an LRU policy.
type MemoryCache struct {
	mu    sync.Mutex
	items *lru.Cache[string, *Credential]
	now   func() time.Time
}

// NewMemoryCache returns a MemoryCache holding up to size credentials.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	items, err := lru.New[string, *Credential](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{items: items, now: time.Now}, nil
}

// SetClock replaces the time source used to expire entries.
func (m *MemoryCache) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryCache) Get(key []byte) (*Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := hex.EncodeToString(key)
	cred, ok := m.items.Get(k)
	if !ok {
		return nil, false
	}
	if cred.Expired(m.now()) {
		m.items.Remove(k)
		return nil, false
	}
	return cred, true
}

func (m *MemoryCache) Put(key []byte, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := hex.EncodeToString(key)
	if current, ok := m.items.Peek(k); ok && !current.Expired(m.now()) && !fresher(current, cred) {
		return nil
	}
	m.items.Add(k, cred)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryCache) Len() int {
	return m.items.Len()
}
