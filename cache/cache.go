// Package cache holds extraction results in a sharded LRU bounded by the
// total size of the stored values.
package cache

import (
	"container/list"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var (
	ErrInvalidCapacity = errors.New("cache size must be positive")
	ErrInvalidShards   = errors.New("cache needs at least one shard")
)

// Cache is safe for concurrent use.
type Cache struct {
	shards []*shard
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats are counters since the cache was created.
type Stats struct {
	Entries int
	Bytes   uint64
	Hits    int64
	Misses  int64
}

// New splits maxBytes evenly across shards.
func New(shards int, maxBytes uint64) (*Cache, error) {
	if shards < 1 {
		return nil, ErrInvalidShards
	}
	if maxBytes < uint64(shards) {
		return nil, errors.Wrapf(ErrInvalidCapacity, "%d bytes for %d shards", maxBytes, shards)
	}
	c := &Cache{shards: make([]*shard, shards)}
	for i := range c.shards {
		c.shards[i] = &shard{
			maxBytes: maxBytes / uint64(shards),
			order:    list.New(),
			items:    make(map[uint64]*list.Element),
		}
	}
	return c, nil
}

func (c *Cache) shard(key uint64) *shard {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return c.shards[xxhash.Sum64(b[:])%uint64(len(c.shards))]
}

// Get returns the value stored under key and marks it recently used.
func (c *Cache) Get(key uint64) ([]byte, bool) {
	v, ok := c.shard(key).get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add stores value under key, replacing any previous value. It reports
// whether older entries were evicted to make room. Values larger than a
// shard's budget are not stored.
func (c *Cache) Add(key uint64, value []byte) bool {
	return c.shard(key).add(key, value)
}

// Remove drops key if present.
func (c *Cache) Remove(key uint64) {
	c.shard(key).remove(key)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	for _, s := range c.shards {
		s.purge()
	}
}

// Len is the number of stored entries.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

func (c *Cache) Stats() Stats {
	st := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	for _, s := range c.shards {
		s.mu.Lock()
		st.Entries += len(s.items)
		st.Bytes += s.bytes
		s.mu.Unlock()
	}
	return st
}

type entry struct {
	key   uint64
	value []byte
}

type shard struct {
	mu       sync.Mutex
	maxBytes uint64
	bytes    uint64
	order    *list.List // front is most recently used
	items    map[uint64]*list.Element
}

func (s *shard) get(key uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (s *shard) add(key uint64, value []byte) bool {
	size := uint64(len(value))
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}
	if size > s.maxBytes {
		return false
	}
	evicted := false
	for s.bytes+size > s.maxBytes {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.removeElement(oldest)
		evicted = true
	}
	s.items[key] = s.order.PushFront(&entry{key: key, value: value})
	s.bytes += size
	return evicted
}

func (s *shard) remove(key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}
}

func (s *shard) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[uint64]*list.Element)
	s.order.Init()
	s.bytes = 0
}

func (s *shard) removeElement(el *list.Element) {
	e := s.order.Remove(el).(*entry)
	delete(s.items, e.key)
	s.bytes -= uint64(len(e.value))
}
