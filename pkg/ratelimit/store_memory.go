package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimitStore keeps request timestamps in a map keyed by the
// limited subject. It caps the key count and evicts least recently used
// keys past the cap, so a flood of distinct source addresses cannot
// grow memory without bound. Reads take an RWMutex read lock since the
// workload is check-heavy.
type InMemoryRateLimitStore struct {
	mu       sync.RWMutex
	requests map[string]*timestampList
	maxKeys  int
	clock    Clock

	lruList *lruList
}

// timestampList holds timestamps for a single key.
type timestampList struct {
	timestamps []time.Time
	lastAccess time.Time
}

// lruList is a doubly-linked list of keys ordered by last access, most
// recent at the head.
type lruList struct {
	head *lruNode
	tail *lruNode
	keys map[string]*lruNode
}

type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

// InMemoryStoreConfig configures InMemoryRateLimitStore.
type InMemoryStoreConfig struct {
	// MaxKeys caps how many keys the store holds before LRU eviction
	// kicks in. Default 10000.
	MaxKeys int

	// Clock is injectable for tests. Default SystemClock.
	Clock Clock
}

// DefaultInMemoryStoreConfig returns the default configuration.
func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{
		MaxKeys: 10000,
		Clock:   &SystemClock{},
	}
}

// NewInMemoryRateLimitStore creates the store, filling invalid config
// fields with defaults.
func NewInMemoryRateLimitStore(config InMemoryStoreConfig) *InMemoryRateLimitStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}

	return &InMemoryRateLimitStore{
		requests: make(map[string]*timestampList),
		maxKeys:  config.MaxKeys,
		clock:    config.Clock,
		lruList:  newLRUList(),
	}
}

func newLRUList() *lruList {
	return &lruList{
		keys: make(map[string]*lruNode),
	}
}

// AddRequest records a request timestamp for the key, creating the key
// when new and evicting LRU keys first if the store is at capacity.
func (s *InMemoryRateLimitStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) >= s.maxKeys {
		// Only a brand-new key forces an eviction.
		if _, exists := s.requests[key]; !exists {
			s.evictLRU()
		}
	}

	tsList, exists := s.requests[key]
	if !exists {
		tsList = &timestampList{
			timestamps: make([]time.Time, 0, 100),
			lastAccess: timestamp,
		}
		s.requests[key] = tsList
	} else {
		tsList.lastAccess = timestamp
	}

	tsList.timestamps = append(tsList.timestamps, timestamp)

	s.lruList.touch(key)

	return nil
}

// GetRequests returns the key's timestamps newer than cutoff.
func (s *InMemoryRateLimitStore) GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tsList, exists := s.requests[key]
	if !exists {
		return []time.Time{}, nil
	}

	result := make([]time.Time, 0, len(tsList.timestamps))
	for _, ts := range tsList.timestamps {
		if ts.After(cutoff) {
			result = append(result, ts)
		}
	}

	return result, nil
}

// GetRequestCount counts the key's timestamps newer than cutoff without
// building a slice.
func (s *InMemoryRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tsList, exists := s.requests[key]
	if !exists {
		return 0, nil
	}

	count := 0
	for _, ts := range tsList.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}

	return count, nil
}

// Cleanup drops timestamps at or before cutoff from every key, and
// removes keys left empty.
func (s *InMemoryRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keysToRemove := make([]string, 0)

	for key, tsList := range s.requests {
		validTimestamps := make([]time.Time, 0, len(tsList.timestamps))
		for _, ts := range tsList.timestamps {
			if ts.After(cutoff) {
				validTimestamps = append(validTimestamps, ts)
			}
		}

		if len(validTimestamps) == 0 {
			keysToRemove = append(keysToRemove, key)
		} else {
			tsList.timestamps = validTimestamps
		}
	}

	for _, key := range keysToRemove {
		delete(s.requests, key)
		s.lruList.remove(key)
	}

	return nil
}

// KeyCount returns the number of keys currently held.
func (s *InMemoryRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.requests), nil
}

// MemoryUsage estimates the store's footprint from per-entry constants:
// map entry, timestampList header, 24 bytes per timestamp, and the LRU
// nodes.
func (s *InMemoryRateLimitStore) MemoryUsage(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const (
		mapEntryOverhead      = 48
		timestampSize         = 24
		timestampListOverhead = 32
		lruNodeSize           = 48
	)

	var totalBytes int64

	for _, tsList := range s.requests {
		totalBytes += mapEntryOverhead
		totalBytes += timestampListOverhead
		totalBytes += int64(len(tsList.timestamps) * timestampSize)
	}

	totalBytes += int64(len(s.lruList.keys) * lruNodeSize)

	return totalBytes, nil
}

// evictLRU drops the coldest 10% of keys (at least one) so evictions
// happen in batches rather than on every insert at capacity. Caller
// must hold the write lock.
func (s *InMemoryRateLimitStore) evictLRU() {
	evictCount := s.maxKeys / 10
	if evictCount < 1 {
		evictCount = 1
	}

	evicted := 0
	for evicted < evictCount && s.lruList.tail != nil {
		key := s.lruList.tail.key
		delete(s.requests, key)
		s.lruList.remove(key)
		evicted++
	}
}

// touch moves the key to the front of the LRU order, inserting it when
// absent. Caller must hold the write lock.
func (l *lruList) touch(key string) {
	_, exists := l.keys[key]
	if exists {
		l.remove(key)
	}

	newNode := &lruNode{
		key:  key,
		next: l.head,
	}

	if l.head != nil {
		l.head.prev = newNode
	}
	l.head = newNode

	if l.tail == nil {
		l.tail = newNode
	}

	l.keys[key] = newNode
}

// remove unlinks the key from the LRU order. Caller must hold the write
// lock.
func (l *lruList) remove(key string) {
	node, exists := l.keys[key]
	if !exists {
		return
	}

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	delete(l.keys, key)
}

// CheckAndAddRequest counts the key's window, and when under limit,
// records the timestamp, all under one write lock so concurrent
// requests at the boundary cannot both pass. count reports the window
// after the add when allowed, the rejected count otherwise.
func (s *InMemoryRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, cutoff time.Time, limit int) (allowed bool, count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tsList, exists := s.requests[key]
	currentCount := 0

	if exists {
		for _, ts := range tsList.timestamps {
			if ts.After(cutoff) {
				currentCount++
			}
		}
	}

	if currentCount >= limit {
		return false, currentCount, nil
	}

	if len(s.requests) >= s.maxKeys {
		if !exists {
			s.evictLRU()
		}
	}

	if !exists {
		tsList = &timestampList{
			timestamps: make([]time.Time, 0, 100),
			lastAccess: timestamp,
		}
		s.requests[key] = tsList
	} else {
		tsList.lastAccess = timestamp
	}

	tsList.timestamps = append(tsList.timestamps, timestamp)

	s.lruList.touch(key)

	return true, currentCount + 1, nil
}
