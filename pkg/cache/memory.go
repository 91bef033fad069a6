package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache implementa un cache in-memory con LRU eviction
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List
	maxEntries int
	defaultTTL time.Duration
	stats      CacheStats

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache crea un nuovo cache in-memory con pulizia periodica
func NewMemoryCache(maxEntries int, defaultTTL time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	mc := &MemoryCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}

	go mc.cleanupExpired(time.Minute)

	return mc
}

// Get recupera un valore dal cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, exists := m.entries[key]
	if !exists {
		m.stats.Misses++
		return nil, ErrCacheMiss
	}

	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.removeElement(elem)
		m.stats.Misses++
		return nil, ErrCacheMiss
	}

	m.lru.MoveToFront(elem)
	m.stats.Hits++
	return entry.value, nil
}

// Set salva un valore nel cache; ttl 0 usa il default
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.stats.Sets++

	if elem, exists := m.entries[key]; exists {
		entry := elem.Value.(*memoryEntry)
		m.stats.Size += int64(len(value) - len(entry.value))
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		m.lru.MoveToFront(elem)
		return nil
	}

	if m.lru.Len() >= m.maxEntries {
		if oldest := m.lru.Back(); oldest != nil {
			m.removeElement(oldest)
		}
	}

	elem := m.lru.PushFront(&memoryEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	m.entries[key] = elem
	m.stats.Size += int64(len(value))
	return nil
}

// Delete rimuove un valore dal cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, exists := m.entries[key]; exists {
		m.removeElement(elem)
		m.stats.Deletes++
	}
	return nil
}

// Stats restituisce le statistiche
func (m *MemoryCache) Stats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Len restituisce il numero di entry nel cache
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Close ferma la pulizia periodica
func (m *MemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.lru.Remove(elem)
	m.stats.Size -= int64(len(entry.value))
}

func (m *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for elem := m.lru.Back(); elem != nil; {
				prev := elem.Prev()
				if now.After(elem.Value.(*memoryEntry).expiresAt) {
					m.removeElement(elem)
				}
				elem = prev
			}
			m.mu.Unlock()
		}
	}
}
